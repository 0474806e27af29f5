// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tiers maps an industry classification and a free-text
// description to a suggested admin-module bundle.
package tiers

import (
	"fmt"
	"strings"

	"github.com/huddleeco/siteforge/pkg/logging"
	"github.com/huddleeco/siteforge/services/forge/datatypes"
	"github.com/huddleeco/siteforge/services/forge/modules"
)

// DetectionConfig holds the industry mapping and keyword tables
// consumed only by the suggestion engine. Static configuration.
type DetectionConfig struct {
	// Industries maps an industry classification to its base tier key.
	Industries map[string]string `yaml:"industries"`

	// ModuleKeywords maps a module name to description keywords that
	// add it to the suggestion regardless of tier.
	ModuleKeywords map[string][]string `yaml:"moduleKeywords"`

	// ProKeywords upgrade a lite/standard base to pro.
	ProKeywords []string `yaml:"proKeywords"`

	// EnterpriseKeywords win outright over any base tier.
	EnterpriseKeywords []string `yaml:"enterpriseKeywords"`
}

// Engine is the tier suggestion engine. Pure and stateless after
// construction; safe for concurrent use.
type Engine struct {
	tiers     datatypes.TierConfig
	detection DetectionConfig
	resolver  *modules.Resolver
	logger    *logging.Logger
	tierRank  map[string]int
}

// NewEngine builds an Engine. The resolver is used to expand and
// order the suggested module union; it may be nil, in which case the
// union is returned unresolved.
func NewEngine(tiers datatypes.TierConfig, detection DetectionConfig, resolver *modules.Resolver, logger *logging.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if len(tiers.Tiers) == 0 {
		return nil, fmt.Errorf("tier config has no tiers")
	}
	if _, ok := tiers.Tiers[tiers.Default]; !ok {
		return nil, fmt.Errorf("default tier %q is not defined", tiers.Default)
	}
	rank := make(map[string]int, len(tiers.TierOrder))
	for i, key := range tiers.TierOrder {
		rank[key] = i
	}
	return &Engine{
		tiers:     tiers,
		detection: detection,
		resolver:  resolver,
		logger:    logger,
		tierRank:  rank,
	}, nil
}

// Suggest picks a tier for the given industry and description.
//
// Resolution order: a direct industry lookup sets the base tier; a
// keyword scan of the description adds individual modules; a second
// keyword scan applies tier bumps. Enterprise bump keywords win
// outright; pro bump keywords upgrade a lite or standard base. Bumps
// are upward only. When nothing matches, the default tier is returned
// with reason "default".
func (e *Engine) Suggest(industry, description string) datatypes.TierSuggestion {
	tierKey := e.tiers.Default
	source := datatypes.SourceDefault
	reason := "default"

	industry = strings.ToLower(strings.TrimSpace(industry))
	if industry != "" {
		if mapped, ok := e.detection.Industries[industry]; ok {
			if _, defined := e.tiers.Tiers[mapped]; defined {
				tierKey = mapped
				source = datatypes.SourceIndustryMapping
				reason = fmt.Sprintf("industry %q maps to %s", industry, mapped)
			} else {
				e.logger.Warn("industry maps to undefined tier", "industry", industry, "tier", mapped)
			}
		}
	}

	desc := strings.ToLower(description)

	var extraModules []string
	if desc != "" {
		for module, keywords := range e.detection.ModuleKeywords {
			for _, kw := range keywords {
				if strings.Contains(desc, strings.ToLower(kw)) {
					extraModules = append(extraModules, module)
					break
				}
			}
		}
	}

	if desc != "" {
		if kw, hit := firstMatch(desc, e.detection.EnterpriseKeywords); hit {
			if e.rank("enterprise") >= e.rank(tierKey) {
				tierKey = "enterprise"
				source = datatypes.SourceKeywordBump
				reason = fmt.Sprintf("description mentions %q", kw)
			}
		} else if kw, hit := firstMatch(desc, e.detection.ProKeywords); hit {
			if e.rank("pro") > e.rank(tierKey) {
				tierKey = "pro"
				source = datatypes.SourceKeywordBump
				reason = fmt.Sprintf("description mentions %q", kw)
			}
		}
	}

	tier := e.tiers.Tiers[tierKey]

	union := append(append([]string(nil), tier.Modules...), extraModules...)
	if e.resolver != nil {
		union, _ = e.resolver.Resolve(union)
	} else {
		union = dedupe(union)
	}

	return datatypes.TierSuggestion{
		Tier:    tierKey,
		Label:   tier.Name,
		Modules: union,
		Reason:  reason,
		Source:  source,
	}
}

// Config returns the engine's tier configuration for listing
// endpoints.
func (e *Engine) Config() datatypes.TierConfig {
	return e.tiers
}

// TierModules returns the base module list for an explicitly named
// tier, and whether the tier exists.
func (e *Engine) TierModules(name string) ([]string, bool) {
	tier, ok := e.tiers.Tiers[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), tier.Modules...), true
}

func (e *Engine) rank(tierKey string) int {
	if r, ok := e.tierRank[tierKey]; ok {
		return r
	}
	return -1
}

func firstMatch(haystack string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(haystack, strings.ToLower(kw)) {
			return kw, true
		}
	}
	return "", false
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
