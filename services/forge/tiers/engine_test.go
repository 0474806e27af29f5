// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tiers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddleeco/siteforge/services/forge/datatypes"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(DefaultTierConfig(), DefaultDetectionConfig(), nil, nil)
	require.NoError(t, err)
	return engine
}

func TestSuggestIndustryMapping(t *testing.T) {
	engine := testEngine(t)

	s := engine.Suggest("ecommerce", "")

	assert.Equal(t, "pro", s.Tier)
	assert.Equal(t, "Pro", s.Label)
	assert.Equal(t, datatypes.SourceIndustryMapping, s.Source)
	assert.NotEmpty(t, s.Modules)
}

func TestSuggestAllMappedIndustries(t *testing.T) {
	engine := testEngine(t)
	detection := DefaultDetectionConfig()

	for industry, tier := range detection.Industries {
		s := engine.Suggest(industry, "")
		assert.Equal(t, tier, s.Tier, "industry %q", industry)
		assert.Equal(t, datatypes.SourceIndustryMapping, s.Source, "industry %q", industry)
	}
}

func TestSuggestEnterpriseKeywordWinsOutright(t *testing.T) {
	engine := testEngine(t)

	s := engine.Suggest("", "franchise chain with multiple locations")

	assert.Equal(t, "enterprise", s.Tier)
	assert.Equal(t, datatypes.SourceKeywordBump, s.Source)
}

func TestSuggestEnterpriseKeywordOverridesIndustry(t *testing.T) {
	engine := testEngine(t)

	// Lite industry base plus an enterprise keyword: enterprise wins.
	s := engine.Suggest("portfolio", "growing into a franchise")

	assert.Equal(t, "enterprise", s.Tier)
	assert.Equal(t, datatypes.SourceKeywordBump, s.Source)
}

func TestSuggestProKeywordUpgradesLiteAndStandard(t *testing.T) {
	engine := testEngine(t)

	fromLite := engine.Suggest("portfolio", "wants an online store")
	assert.Equal(t, "pro", fromLite.Tier)
	assert.Equal(t, datatypes.SourceKeywordBump, fromLite.Source)

	fromStandard := engine.Suggest("cafe", "loyalty program for regulars")
	assert.Equal(t, "pro", fromStandard.Tier)
}

func TestSuggestNeverDowngrades(t *testing.T) {
	engine := testEngine(t)

	// Pro industry base plus a pro keyword stays pro with the
	// industry as the source: the bump is not an upgrade.
	s := engine.Suggest("ecommerce", "inventory tracking")
	assert.Equal(t, "pro", s.Tier)
	assert.Equal(t, datatypes.SourceIndustryMapping, s.Source)
}

func TestSuggestDefaultWhenNothingMatches(t *testing.T) {
	engine := testEngine(t)

	s := engine.Suggest("", "")

	assert.Equal(t, "standard", s.Tier)
	assert.Equal(t, datatypes.SourceDefault, s.Source)
	assert.Equal(t, "default", s.Reason)
}

func TestSuggestUnknownIndustryFallsBack(t *testing.T) {
	engine := testEngine(t)

	s := engine.Suggest("spacecraft", "")

	assert.Equal(t, "standard", s.Tier)
	assert.Equal(t, datatypes.SourceDefault, s.Source)
}

func TestSuggestKeywordModulesAdded(t *testing.T) {
	engine := testEngine(t)

	s := engine.Suggest("portfolio", "clients book appointments online")

	assert.Contains(t, s.Modules, "admin-reservations")
	// The base tier is unchanged by module keywords alone.
	assert.Equal(t, "lite", s.Tier)
}

func TestSuggestModulesDeduplicated(t *testing.T) {
	engine := testEngine(t)

	s := engine.Suggest("restaurant", "reservation and booking heavy")

	seen := make(map[string]int)
	for _, m := range s.Modules {
		seen[m]++
	}
	for m, n := range seen {
		assert.Equal(t, 1, n, "module %q duplicated", m)
	}
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	_, err := NewEngine(datatypes.TierConfig{}, DetectionConfig{}, nil, nil)
	assert.Error(t, err)

	cfg := DefaultTierConfig()
	cfg.Default = "missing"
	_, err = NewEngine(cfg, DetectionConfig{}, nil, nil)
	assert.Error(t, err)
}

func TestLoadTierConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	content := `
tiers:
  lite:
    name: Lite
    modules: [admin-core]
  enterprise:
    name: Enterprise
    modules: [admin-core, admin-locations]
tierOrder: [lite, enterprise]
default: lite
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadTierConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "lite", cfg.Default)
	assert.Len(t, cfg.Tiers, 2)
	assert.Equal(t, []string{"admin-core", "admin-locations"}, cfg.Tiers["enterprise"].Modules)
}

func TestLoadDetectionConfigMissingFile(t *testing.T) {
	_, err := LoadDetectionConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
