// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package modules

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/huddleeco/siteforge/services/forge/datatypes"
)

// DefaultManifests returns the built-in admin module catalog. The
// catalog covers every module the built-in tier bundles reference.
func DefaultManifests() []datatypes.ModuleManifest {
	return []datatypes.ModuleManifest{
		{
			Name:       "admin-core",
			Order:      0,
			Routes:     []string{"/admin", "/admin/settings"},
			Components: []string{"DashboardShell", "SettingsPanel"},
		},
		{
			Name:         "admin-content",
			Dependencies: []string{"admin-core"},
			Order:        10,
			Routes:       []string{"/admin/pages", "/admin/media"},
			Components:   []string{"PageEditor", "MediaLibrary"},
		},
		{
			Name:         "admin-customers",
			Dependencies: []string{"admin-core"},
			Order:        20,
			Routes:       []string{"/admin/customers"},
			Components:   []string{"CustomerTable"},
		},
		{
			Name:         "admin-reservations",
			Dependencies: []string{"admin-customers"},
			Order:        30,
			Routes:       []string{"/admin/reservations"},
			Components:   []string{"BookingCalendar"},
		},
		{
			Name:         "admin-products",
			Dependencies: []string{"admin-core"},
			Order:        40,
			Routes:       []string{"/admin/products"},
			Components:   []string{"CatalogTable", "ProductForm"},
		},
		{
			Name:         "admin-orders",
			Dependencies: []string{"admin-products", "admin-customers"},
			Order:        50,
			Routes:       []string{"/admin/orders"},
			Components:   []string{"OrderQueue"},
		},
		{
			Name:         "admin-analytics",
			Dependencies: []string{"admin-core"},
			Order:        60,
			Routes:       []string{"/admin/analytics"},
			Components:   []string{"TrafficChart", "SalesChart"},
		},
		{
			Name:         "admin-locations",
			Dependencies: []string{"admin-core"},
			Order:        70,
			Routes:       []string{"/admin/locations"},
			Components:   []string{"LocationMap"},
		},
		{
			Name:         "admin-staff",
			Dependencies: []string{"admin-core"},
			Order:        80,
			Routes:       []string{"/admin/staff"},
			Components:   []string{"StaffRoster"},
		},
		{
			Name:         "admin-fleet",
			Dependencies: []string{"admin-core"},
			Order:        90,
			PlatformOnly: true,
			Routes:       []string{"/admin/fleet"},
			Components:   []string{"FleetConsole"},
		},
	}
}

// SeedManifestDir writes the default catalog into dir as one YAML file
// per module. Existing files are left alone so operator edits survive
// restarts; only a missing or empty directory is seeded.
func SeedManifestDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest dir %s: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read manifest dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			return nil
		}
	}

	for _, manifest := range DefaultManifests() {
		data, err := yaml.Marshal(manifest)
		if err != nil {
			return fmt.Errorf("marshal manifest %s: %w", manifest.Name, err)
		}
		path := filepath.Join(dir, manifest.Name+".yaml")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write manifest %s: %w", path, err)
		}
	}
	return nil
}
