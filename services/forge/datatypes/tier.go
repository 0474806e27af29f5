// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// Tier is a named, ordered bundle of admin module names.
type Tier struct {
	// Name is the human label ("Pro").
	Name string `json:"name" yaml:"name"`

	// Description explains what the bundle targets.
	Description string `json:"description" yaml:"description"`

	// Modules are the bundle's base module names.
	Modules []string `json:"modules" yaml:"modules"`
}

// ModuleInfo is display metadata for one module in tier listings.
type ModuleInfo struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Icon        string `json:"icon" yaml:"icon"`
}

// TierConfig is the static tier configuration document.
type TierConfig struct {
	// Tiers maps tier key ("lite", "pro") to its bundle.
	Tiers map[string]Tier `json:"tiers" yaml:"tiers"`

	// ModuleInfo maps module name to display metadata.
	ModuleInfo map[string]ModuleInfo `json:"moduleInfo" yaml:"moduleInfo"`

	// TierOrder lists tier keys from smallest to largest bundle.
	// Bump logic never moves a suggestion earlier in this order.
	TierOrder []string `json:"tierOrder" yaml:"tierOrder"`

	// Default is the tier key used when nothing matches.
	Default string `json:"default" yaml:"default"`
}

// Suggestion detection sources.
const (
	// SourceIndustryMapping means a direct industry -> tier lookup hit.
	SourceIndustryMapping = "industry-mapping"

	// SourceKeywordBump means description keywords raised the tier.
	SourceKeywordBump = "keyword-bump"

	// SourceDefault means nothing matched and the default applied.
	SourceDefault = "default"
)

// TierSuggestion is the tier engine's answer for one business
// description.
type TierSuggestion struct {
	// Tier is the selected tier key.
	Tier string `json:"tier"`

	// Label is the tier's human name.
	Label string `json:"label"`

	// Modules are the tier's base modules unioned with any
	// keyword-detected additions, in resolved order.
	Modules []string `json:"modules"`

	// Reason explains the selection for display.
	Reason string `json:"reason"`

	// Source is one of SourceIndustryMapping, SourceKeywordBump,
	// SourceDefault.
	Source string `json:"source"`
}
