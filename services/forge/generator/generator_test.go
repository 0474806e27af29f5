// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package generator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddleeco/siteforge/services/forge/datatypes"
	"github.com/huddleeco/siteforge/services/forge/modules"
	"github.com/huddleeco/siteforge/services/forge/tiers"
)

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	registry := modules.NewRegistryFromManifests([]datatypes.ModuleManifest{
		{Name: "admin-core", Order: 0},
		{Name: "admin-products", Dependencies: []string{"admin-core"}, Order: 10},
		{Name: "admin-orders", Dependencies: []string{"admin-products"}, Order: 20},
		{Name: "admin-bookings", Dependencies: []string{"admin-core"}, Order: 30},
		{Name: "admin-analytics", Dependencies: []string{"admin-core"}, Order: 40},
		{Name: "admin-internal", Dependencies: []string{"admin-core"}, Order: 90, PlatformOnly: true},
	}, nil)

	cfg := datatypes.TierConfig{
		Tiers: map[string]datatypes.Tier{
			"lite":     {Name: "Lite", Modules: []string{"admin-core"}},
			"standard": {Name: "Standard", Modules: []string{"admin-core", "admin-bookings"}},
			"pro":      {Name: "Pro", Modules: []string{"admin-core", "admin-products", "admin-orders"}},
		},
		TierOrder: []string{"lite", "standard", "pro"},
		Default:   "standard",
	}
	detection := tiers.DetectionConfig{
		Industries: map[string]string{"ecommerce": "pro"},
	}
	resolver := modules.NewResolver(registry, nil)
	engine, err := tiers.NewEngine(cfg, detection, resolver, nil)
	require.NoError(t, err)
	return New(registry, engine, nil)
}

func TestGenerateProducesAllArtifacts(t *testing.T) {
	g := newTestGenerator(t)

	out, err := g.Generate(datatypes.JobDescriptor{
		ID:        "j1",
		Name:      "Harbor Light Cafe",
		Industry:  "restaurant",
		Tagline:   "fresh daily",
		Location:  "Portland, OR",
		Pages:     []string{"home", "menu"},
		AdminTier: "lite",
	})
	require.NoError(t, err)

	require.Contains(t, out.Files, ArtifactSite)
	require.Contains(t, out.Files, ArtifactAdmin)
	require.Contains(t, out.Files, ArtifactCompanion)

	site := out.Files[ArtifactSite]
	assert.Contains(t, site, "index.html", "home page renders as index.html")
	assert.Contains(t, site, "menu.html")
	assert.Contains(t, site, "styles.css")
	assert.Contains(t, site["index.html"], "Harbor Light Cafe")
	assert.Contains(t, site["index.html"], "fresh daily")

	var cfg struct {
		Name      string   `json:"name"`
		AdminTier string   `json:"adminTier"`
		Pages     []string `json:"pages"`
	}
	require.NoError(t, json.Unmarshal([]byte(site["site.config.json"]), &cfg))
	assert.Equal(t, "Harbor Light Cafe", cfg.Name)
	assert.Equal(t, "lite", cfg.AdminTier)
	assert.Equal(t, []string{"home", "menu"}, cfg.Pages)
}

func TestGenerateExplicitTier(t *testing.T) {
	g := newTestGenerator(t)

	out, err := g.Generate(datatypes.JobDescriptor{ID: "j1", Name: "Shop", AdminTier: "pro"})
	require.NoError(t, err)
	assert.Equal(t, "pro", out.Tier)
	assert.Empty(t, out.TierSource, "explicit tier skips suggestion")
	assert.Equal(t, []string{"admin-core", "admin-products", "admin-orders"}, out.Modules)
}

func TestGenerateAutoTierUsesSuggestion(t *testing.T) {
	g := newTestGenerator(t)

	out, err := g.Generate(datatypes.JobDescriptor{ID: "j1", Name: "Shop", Industry: "ecommerce", AdminTier: "auto"})
	require.NoError(t, err)
	assert.Equal(t, "pro", out.Tier)
	assert.Equal(t, datatypes.SourceIndustryMapping, out.TierSource)
}

func TestGenerateUnknownTierFallsBack(t *testing.T) {
	g := newTestGenerator(t)

	out, err := g.Generate(datatypes.JobDescriptor{ID: "j1", Name: "Shop", AdminTier: "platinum"})
	require.NoError(t, err)
	assert.Equal(t, "standard", out.Tier, "unknown tier falls back to the suggested default")
}

func TestGenerateMergesRequestedModules(t *testing.T) {
	g := newTestGenerator(t)

	out, err := g.Generate(datatypes.JobDescriptor{
		ID:        "j1",
		Name:      "Shop",
		AdminTier: "lite",
		Modules:   []string{"admin-orders", "nonexistent"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"admin-core", "admin-products", "admin-orders"}, out.Modules,
		"requested module pulls its dependency chain; unknown names dropped")
}

func TestGenerateExcludesPlatformOnlyModules(t *testing.T) {
	g := newTestGenerator(t)

	out, err := g.Generate(datatypes.JobDescriptor{
		ID:        "j1",
		Name:      "Shop",
		AdminTier: "lite",
		Modules:   []string{"admin-internal"},
	})
	require.NoError(t, err)
	assert.NotContains(t, out.Modules, "admin-internal")
}

func TestGenerateDefaultPages(t *testing.T) {
	g := newTestGenerator(t)

	out, err := g.Generate(datatypes.JobDescriptor{ID: "j1", Name: "Shop", AdminTier: "lite"})
	require.NoError(t, err)
	assert.Equal(t, []string{"home", "about", "contact"}, out.Pages)
}

func TestGenerateRequiresName(t *testing.T) {
	g := newTestGenerator(t)
	_, err := g.Generate(datatypes.JobDescriptor{ID: "j1"})
	assert.Error(t, err)
}

func TestWriteTo(t *testing.T) {
	g := newTestGenerator(t)
	dir := t.TempDir()

	out, err := g.Generate(datatypes.JobDescriptor{ID: "j1", Name: "Shop", AdminTier: "lite"})
	require.NoError(t, err)
	require.NoError(t, g.WriteTo(dir, out))

	data, err := os.ReadFile(filepath.Join(dir, "site", "index.html"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "Shop"))

	_, err = os.Stat(filepath.Join(dir, "admin", "admin.config.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "companion", "index.html"))
	assert.NoError(t, err)
}
