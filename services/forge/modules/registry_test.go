// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package modules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestRegistryLoadsManifestDir(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "core.yaml", "name: admin-core\norder: 0\n")
	writeManifest(t, dir, "orders.yaml", `
name: admin-orders
dependencies: [admin-products]
order: 20
routes: ["/admin/orders"]
`)
	writeManifest(t, dir, "products.yaml", "name: admin-products\ndependencies: [admin-core]\norder: 10\n")

	registry, err := NewRegistry(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, registry.Len())

	orders, ok := registry.Get("admin-orders")
	require.True(t, ok)
	assert.Equal(t, []string{"admin-products"}, orders.Dependencies)
	assert.Equal(t, []string{"/admin/orders"}, orders.Routes)
}

func TestRegistrySkipsMalformedManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "good.yaml", "name: admin-core\n")
	writeManifest(t, dir, "bad.yaml", "name: [not: valid: yaml\n")
	writeManifest(t, dir, "unnamed.yaml", "order: 3\n")
	writeManifest(t, dir, "ignored.txt", "name: not-a-manifest\n")

	registry, err := NewRegistry(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryMissingDirFails(t *testing.T) {
	_, err := NewRegistry(filepath.Join(t.TempDir(), "absent"), nil)
	assert.Error(t, err)
}

func TestRegistryReloadReplacesContents(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a.yaml", "name: admin-a\n")

	registry, err := NewRegistry(dir, nil)
	require.NoError(t, err)
	require.Equal(t, 1, registry.Len())

	require.NoError(t, os.Remove(filepath.Join(dir, "a.yaml")))
	writeManifest(t, dir, "b.yaml", "name: admin-b\n")

	require.NoError(t, registry.Reload())
	assert.Equal(t, 1, registry.Len())
	_, ok := registry.Get("admin-b")
	assert.True(t, ok)
	_, ok = registry.Get("admin-a")
	assert.False(t, ok)
}

func TestAllSortsByOrderThenName(t *testing.T) {
	registry := testRegistry(t)
	all := registry.All()

	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		if prev.Order == cur.Order {
			assert.Less(t, prev.Name, cur.Name)
		} else {
			assert.Less(t, prev.Order, cur.Order)
		}
	}
}
