// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tiers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/huddleeco/siteforge/services/forge/datatypes"
)

// DefaultTierConfig returns the built-in tier bundles used when no
// tier configuration file is provided.
func DefaultTierConfig() datatypes.TierConfig {
	return datatypes.TierConfig{
		Tiers: map[string]datatypes.Tier{
			"lite": {
				Name:        "Lite",
				Description: "Content editing and contact handling for a simple site",
				Modules:     []string{"admin-core", "admin-content"},
			},
			"standard": {
				Name:        "Standard",
				Description: "Adds customer records and booking management",
				Modules:     []string{"admin-core", "admin-content", "admin-customers", "admin-reservations"},
			},
			"pro": {
				Name:        "Pro",
				Description: "Adds catalog, orders, and analytics",
				Modules:     []string{"admin-core", "admin-content", "admin-customers", "admin-products", "admin-orders", "admin-analytics"},
			},
			"enterprise": {
				Name:        "Enterprise",
				Description: "Multi-location management with staff roles and reporting",
				Modules:     []string{"admin-core", "admin-content", "admin-customers", "admin-products", "admin-orders", "admin-analytics", "admin-locations", "admin-staff"},
			},
		},
		ModuleInfo: map[string]datatypes.ModuleInfo{
			"admin-core":         {Name: "Core", Description: "Dashboard shell and settings", Icon: "layout"},
			"admin-content":      {Name: "Content", Description: "Page and media editing", Icon: "edit"},
			"admin-customers":    {Name: "Customers", Description: "Customer records", Icon: "users"},
			"admin-reservations": {Name: "Reservations", Description: "Booking calendar", Icon: "calendar"},
			"admin-products":     {Name: "Products", Description: "Catalog management", Icon: "package"},
			"admin-orders":       {Name: "Orders", Description: "Order processing", Icon: "shopping-cart"},
			"admin-analytics":    {Name: "Analytics", Description: "Traffic and sales reports", Icon: "bar-chart"},
			"admin-locations":    {Name: "Locations", Description: "Multi-location management", Icon: "map-pin"},
			"admin-staff":        {Name: "Staff", Description: "Staff accounts and roles", Icon: "user-check"},
		},
		TierOrder: []string{"lite", "standard", "pro", "enterprise"},
		Default:   "standard",
	}
}

// DefaultDetectionConfig returns the built-in industry mapping and
// keyword tables.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		Industries: map[string]string{
			"restaurant":   "standard",
			"cafe":         "standard",
			"salon":        "standard",
			"ecommerce":    "pro",
			"retail":       "pro",
			"fitness":      "standard",
			"professional": "lite",
			"portfolio":    "lite",
			"hospitality":  "pro",
		},
		ModuleKeywords: map[string][]string{
			"admin-reservations": {"reservation", "booking", "appointment"},
			"admin-orders":       {"online order", "delivery", "takeout"},
			"admin-analytics":    {"analytics", "reporting", "insights"},
			"admin-staff":        {"staff", "employee", "team schedule"},
		},
		ProKeywords: []string{
			"online store", "sell online", "inventory", "loyalty",
		},
		EnterpriseKeywords: []string{
			"franchise", "multiple locations", "multi-location", "chain",
		},
	}
}

// LoadTierConfig reads a tier configuration document from a YAML
// file.
func LoadTierConfig(path string) (datatypes.TierConfig, error) {
	var cfg datatypes.TierConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read tier config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse tier config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDetectionConfig reads the industry mapping and keyword tables
// from a YAML file.
func LoadDetectionConfig(path string) (DetectionConfig, error) {
	var cfg DetectionConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read detection config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse detection config %s: %w", path, err)
	}
	return cfg, nil
}
