// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package modules

import (
	"sort"

	"github.com/huddleeco/siteforge/pkg/logging"
	"github.com/huddleeco/siteforge/services/forge/datatypes"
)

// Resolver expands a requested module set with transitive
// dependencies and orders it deterministically.
//
// Guarantees:
//   - every dependency of a module appears strictly before it
//   - ties (no dependency relation) break by declared Order, then name
//   - unknown names are dropped with a warning, never an error
//   - idempotent: Resolve(Resolve(M)) == Resolve(M)
//
// Thread Safety: safe for concurrent use; the resolver holds no
// mutable state of its own.
type Resolver struct {
	registry *Registry
	logger   *logging.Logger
}

// NewResolver creates a Resolver over the given registry.
func NewResolver(registry *Registry, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{
		registry: registry,
		logger:   logger,
	}
}

// Resolve returns the requested modules plus every transitive
// dependency, deduplicated and dependency-ordered. The second return
// value lists requested names that were unknown and dropped.
func (r *Resolver) Resolve(requested []string) ([]string, []string) {
	// Collect the closure. Unknown direct requests are reported;
	// unknown dependencies are also dropped but attributed to the
	// manifest that declared them.
	include := make(map[string]bool)
	var dropped []string

	var visit func(name string, direct bool)
	visit = func(name string, direct bool) {
		if include[name] {
			return
		}
		manifest, ok := r.registry.Get(name)
		if !ok {
			if direct {
				dropped = append(dropped, name)
				r.logger.Warn("unknown module requested, dropping", "module", name)
			} else {
				r.logger.Warn("unknown module dependency, dropping", "module", name)
			}
			return
		}
		include[name] = true
		for _, dep := range manifest.Dependencies {
			visit(dep, false)
		}
	}
	for _, name := range requested {
		visit(name, true)
	}

	// Kahn's algorithm with a deterministic ready queue: lowest
	// declared Order first, name as the final tiebreak.
	indegree := make(map[string]int, len(include))
	dependents := make(map[string][]string, len(include))
	for name := range include {
		manifest, _ := r.registry.Get(name)
		for _, dep := range manifest.Dependencies {
			if !include[dep] {
				continue
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name := range include {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	less := func(a, b string) bool {
		ma, _ := r.registry.Get(a)
		mb, _ := r.registry.Get(b)
		if ma.Order != mb.Order {
			return ma.Order < mb.Order
		}
		return a < b
	}

	ordered := make([]string, 0, len(include))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		next := ready[0]
		ready = ready[1:]
		ordered = append(ordered, next)
		for _, dep := range dependents[next] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	// A dependency cycle leaves modules unplaced. Manifests are
	// static config, so treat it as a config bug: drop the cycle
	// members with a warning rather than failing the batch.
	if len(ordered) < len(include) {
		for name := range include {
			if indegree[name] > 0 {
				r.logger.Warn("dependency cycle detected, dropping module", "module", name)
				dropped = append(dropped, name)
			}
		}
	}

	return ordered, dropped
}

// Shippable filters a resolved list down to modules that ship to
// generated projects, excluding platform-internal ones.
func (r *Resolver) Shippable(resolved []string) []string {
	out := make([]string, 0, len(resolved))
	for _, name := range resolved {
		if manifest, ok := r.registry.Get(name); ok && !manifest.PlatformOnly {
			out = append(out, name)
		}
	}
	return out
}

// Manifests returns the manifests for a resolved list, preserving
// order. Unknown names are skipped.
func (r *Resolver) Manifests(resolved []string) []datatypes.ModuleManifest {
	out := make([]datatypes.ModuleManifest, 0, len(resolved))
	for _, name := range resolved {
		if manifest, ok := r.registry.Get(name); ok {
			out = append(out, manifest)
		}
	}
	return out
}
