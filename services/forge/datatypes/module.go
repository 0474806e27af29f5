// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// ModuleManifest describes one optional admin-dashboard feature
// module. Manifests are loaded once at startup into a read-only
// registry keyed by name.
type ModuleManifest struct {
	// Name is the unique module identifier ("admin-orders").
	Name string `json:"name" yaml:"name"`

	// Dependencies lists module names that must be present (and
	// ordered earlier) whenever this module is included.
	Dependencies []string `json:"dependencies" yaml:"dependencies"`

	// Order breaks ties between modules with no dependency relation.
	// Lower sorts earlier.
	Order int `json:"order" yaml:"order"`

	// PlatformOnly marks platform-internal modules that are never
	// shipped to a generated project.
	PlatformOnly bool `json:"platformOnly" yaml:"platformOnly"`

	// Routes are admin route paths contributed by the module.
	Routes []string `json:"routes,omitempty" yaml:"routes,omitempty"`

	// Components are UI component identifiers contributed by the
	// module.
	Components []string `json:"components,omitempty" yaml:"components,omitempty"`
}
