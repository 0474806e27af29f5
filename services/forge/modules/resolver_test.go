// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddleeco/siteforge/services/forge/datatypes"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistryFromManifests([]datatypes.ModuleManifest{
		{Name: "admin-core", Order: 0},
		{Name: "admin-products", Dependencies: []string{"admin-core"}, Order: 10},
		{Name: "admin-orders", Dependencies: []string{"admin-products"}, Order: 20},
		{Name: "admin-customers", Dependencies: []string{"admin-core"}, Order: 15},
		{Name: "admin-reservations", Dependencies: []string{"admin-core", "admin-customers"}, Order: 30},
		{Name: "admin-analytics", Dependencies: []string{"admin-core"}, Order: 40},
		{Name: "platform-billing", Dependencies: []string{"admin-core"}, Order: 5, PlatformOnly: true},
	}, nil)
}

func TestResolveExpandsDependencies(t *testing.T) {
	r := NewResolver(testRegistry(t), nil)

	resolved, dropped := r.Resolve([]string{"admin-orders"})

	require.Empty(t, dropped)
	assert.Equal(t, []string{"admin-core", "admin-products", "admin-orders"}, resolved)
}

func TestResolveDependencyBeforeDependent(t *testing.T) {
	r := NewResolver(testRegistry(t), nil)

	resolved, _ := r.Resolve([]string{"admin-reservations", "admin-orders", "admin-analytics"})

	pos := make(map[string]int, len(resolved))
	for i, name := range resolved {
		pos[name] = i
	}
	for _, name := range resolved {
		manifest, ok := testRegistry(t).Get(name)
		require.True(t, ok)
		for _, dep := range manifest.Dependencies {
			assert.Less(t, pos[dep], pos[name], "%s must precede %s", dep, name)
		}
	}
}

func TestResolveIdempotent(t *testing.T) {
	r := NewResolver(testRegistry(t), nil)

	once, _ := r.Resolve([]string{"admin-reservations", "admin-orders"})
	twice, dropped := r.Resolve(once)

	require.Empty(t, dropped)
	assert.Equal(t, once, twice)
}

func TestResolveTiesBreakByOrder(t *testing.T) {
	r := NewResolver(testRegistry(t), nil)

	// customers (order 15) and orders-chain members have no relation
	// to analytics (order 40); declared order decides.
	resolved, _ := r.Resolve([]string{"admin-analytics", "admin-customers"})

	assert.Equal(t, []string{"admin-core", "admin-customers", "admin-analytics"}, resolved)
}

func TestResolveDropsUnknownWithWarning(t *testing.T) {
	r := NewResolver(testRegistry(t), nil)

	resolved, dropped := r.Resolve([]string{"admin-orders", "admin-crypto"})

	assert.Equal(t, []string{"admin-crypto"}, dropped)
	assert.Contains(t, resolved, "admin-orders")
	assert.NotContains(t, resolved, "admin-crypto")
}

func TestResolveEmptyInput(t *testing.T) {
	r := NewResolver(testRegistry(t), nil)

	resolved, dropped := r.Resolve(nil)

	assert.Empty(t, resolved)
	assert.Empty(t, dropped)
}

func TestResolveCycleDropped(t *testing.T) {
	registry := NewRegistryFromManifests([]datatypes.ModuleManifest{
		{Name: "a", Dependencies: []string{"b"}},
		{Name: "b", Dependencies: []string{"a"}},
		{Name: "c"},
	}, nil)
	r := NewResolver(registry, nil)

	resolved, dropped := r.Resolve([]string{"a", "c"})

	assert.Equal(t, []string{"c"}, resolved)
	assert.ElementsMatch(t, []string{"a", "b"}, dropped)
}

func TestShippableExcludesPlatformOnly(t *testing.T) {
	r := NewResolver(testRegistry(t), nil)

	resolved, _ := r.Resolve([]string{"platform-billing", "admin-products"})
	shipped := r.Shippable(resolved)

	assert.Contains(t, resolved, "platform-billing")
	assert.NotContains(t, shipped, "platform-billing")
	assert.Contains(t, shipped, "admin-products")
}
