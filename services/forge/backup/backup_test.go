// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddleeco/siteforge/services/forge/providers"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	root := t.TempDir()
	m, err := NewManager(Config{
		ProjectsRoot: filepath.Join(root, "projects"),
		BackupsRoot:  filepath.Join(root, "backups"),
		RetentionCap: 5,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "projects"), 0750))
	return m
}

func seedProject(t *testing.T, m *Manager, name string) string {
	t.Helper()
	dir := m.ProjectDir(name)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "index.html"), []byte("<html>hi</html>"), 0640))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte("{}"), 0640))
	return dir
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "joe-s-pizza", SanitizeName("Joe's Pizza"))
	assert.Equal(t, "acme-corp", SanitizeName("  ACME  Corp!  "))
	assert.Equal(t, "shop-24-7", SanitizeName("Shop 24/7"))
	assert.Equal(t, "plain", SanitizeName("plain"))
}

func TestBackupCreatesSnapshotAndRecord(t *testing.T) {
	m := newTestManager(t)
	seedProject(t, m, "Joe's Pizza")

	rec, err := m.Backup("Joe's Pizza", "pre-regeneration")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "joe-s-pizza", rec.SanitizedName)
	assert.Equal(t, "pre-regeneration", rec.Reason)
	assert.Greater(t, rec.Size, int64(0))

	// Snapshot contains the copied file tree.
	_, err = os.Stat(filepath.Join(rec.Path, "src", "index.html"))
	assert.NoError(t, err)

	records, err := m.List("Joe's Pizza")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.ID, records[0].ID)
}

func TestBackupMissingProject(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Backup("ghost", "manual")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestBackupExcludesBuildCaches(t *testing.T) {
	m := newTestManager(t)
	dir := seedProject(t, m, "shop")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules", "left-pad"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "left-pad", "index.js"), []byte("x"), 0640))

	rec, err := m.Backup("shop", "manual")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(rec.Path, "node_modules"))
	assert.True(t, os.IsNotExist(err), "node_modules must not be copied")
}

func TestRetentionCapEvictsOldest(t *testing.T) {
	m := newTestManager(t)
	seedProject(t, m, "shop")

	var first string
	for i := 0; i < 6; i++ {
		rec, err := m.Backup("shop", "manual")
		require.NoError(t, err)
		if i == 0 {
			first = rec.ID
		}
	}

	records, err := m.List("shop")
	require.NoError(t, err)
	assert.Len(t, records, 5, "cap of 5 keeps exactly the 5 most recent")
	for _, r := range records {
		assert.NotEqual(t, first, r.ID, "oldest snapshot must be evicted")
		_, statErr := os.Stat(r.Path)
		assert.NoError(t, statErr, "surviving snapshot files remain on disk")
	}
}

func TestRetentionIsPerProject(t *testing.T) {
	m := newTestManager(t)
	seedProject(t, m, "shop")
	seedProject(t, m, "cafe")

	for i := 0; i < 6; i++ {
		_, err := m.Backup("shop", "manual")
		require.NoError(t, err)
	}
	_, err := m.Backup("cafe", "manual")
	require.NoError(t, err)

	cafe, err := m.List("cafe")
	require.NoError(t, err)
	assert.Len(t, cafe, 1, "another project's churn must not evict this one")
}

func TestRestoreReplacesCurrentState(t *testing.T) {
	m := newTestManager(t)
	dir := seedProject(t, m, "shop")

	rec, err := m.Backup("shop", "manual")
	require.NoError(t, err)

	// Mutate the live project, then restore.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"changed":true}`), 0640))
	require.NoError(t, m.Restore(rec.ID, false))

	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestRestoreWithSafetyBackup(t *testing.T) {
	m := newTestManager(t)
	seedProject(t, m, "shop")

	rec, err := m.Backup("shop", "manual")
	require.NoError(t, err)
	require.NoError(t, m.Restore(rec.ID, true))

	records, err := m.List("shop")
	require.NoError(t, err)
	assert.Len(t, records, 2, "safety snapshot recorded alongside the original")
}

func TestRestoreUnknownBackup(t *testing.T) {
	m := newTestManager(t)
	assert.ErrorIs(t, m.Restore("nope", false), ErrUnknownBackup)
}

func TestDeleteBackup(t *testing.T) {
	m := newTestManager(t)
	seedProject(t, m, "shop")

	rec, err := m.Backup("shop", "manual")
	require.NoError(t, err)
	require.NoError(t, m.Delete(rec.ID))

	_, err = os.Stat(rec.Path)
	assert.True(t, os.IsNotExist(err))
	records, err := m.List("shop")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func newTestTeardown(t *testing.T) (*Teardown, *Manager, *providers.MemoryGitHost, *providers.MemoryComputeHost, *providers.MemoryDNSHost) {
	t.Helper()
	m := newTestManager(t)
	git := providers.NewMemoryGitHost()
	compute := providers.NewMemoryComputeHost()
	dns := providers.NewMemoryDNSHost()
	return NewTeardown(m, git, compute, dns, nil), m, git, compute, dns
}

func TestTeardownNonexistentProject(t *testing.T) {
	td, _, git, _, _ := newTestTeardown(t)
	ctx := context.Background()

	// An unrelated repo must survive untouched.
	_, err := git.Push(ctx, "other-site", map[string]string{"index.html": "<html></html>"})
	require.NoError(t, err)

	_, err = td.Run(ctx, "ghost", false)
	assert.ErrorIs(t, err, ErrProjectNotFound)

	repos, err := git.ListRepos(ctx)
	require.NoError(t, err)
	assert.Len(t, repos, 1, "not-found teardown performs no deletions")
}

func TestTeardownExactNameMatch(t *testing.T) {
	td, m, git, compute, dns := newTestTeardown(t)
	ctx := context.Background()
	seedProject(t, m, "shop")

	for _, name := range []string{"shop", "shop-admin", "shopping-list"} {
		_, err := git.Push(ctx, name, map[string]string{"index.html": "x"})
		require.NoError(t, err)
	}
	_, err := compute.CreateProject(ctx, "shop")
	require.NoError(t, err)
	_, err = compute.CreateProject(ctx, "shopping-list")
	require.NoError(t, err)
	shopRec, err := dns.UpsertRecord(ctx, providers.DNSRecord{Name: "shop", Type: "CNAME", Value: "x"})
	require.NoError(t, err)
	_, err = dns.UpsertRecord(ctx, providers.DNSRecord{Name: "shopping-list", Type: "CNAME", Value: "y"})
	require.NoError(t, err)

	report, err := td.Run(ctx, "shop", false)
	require.NoError(t, err)
	assert.True(t, report.LocalDeleted)
	assert.ElementsMatch(t, []string{"shop", "shop-admin"}, report.ReposDeleted)
	assert.Len(t, report.ComputeDeleted, 1)
	assert.Equal(t, []string{shopRec.ID}, report.DNSDeleted)
	assert.Empty(t, report.Warnings)

	repos, err := git.ListRepos(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "shopping-list", repos[0].Name, "similarly named project untouched")

	_, err = os.Stat(m.ProjectDir("shop"))
	assert.True(t, os.IsNotExist(err))
}

func TestTeardownProviderFailureIsWarning(t *testing.T) {
	td, m, git, compute, _ := newTestTeardown(t)
	ctx := context.Background()
	seedProject(t, m, "shop")

	_, err := git.Push(ctx, "shop", map[string]string{"index.html": "x"})
	require.NoError(t, err)
	_, err = compute.CreateProject(ctx, "shop")
	require.NoError(t, err)
	git.FailDelete = map[string]bool{"shop": true}

	report, err := td.Run(ctx, "shop", false)
	require.NoError(t, err)
	assert.True(t, report.LocalDeleted)
	assert.Empty(t, report.ReposDeleted)
	assert.Len(t, report.ComputeDeleted, 1, "compute delete proceeds despite repo failure")
	assert.NotEmpty(t, report.Warnings)
}

func TestTeardownContinuesWhenDiscoveryFails(t *testing.T) {
	td, m, git, compute, dns := newTestTeardown(t)
	ctx := context.Background()
	seedProject(t, m, "shop")

	_, err := git.Push(ctx, "shop", map[string]string{"index.html": "x"})
	require.NoError(t, err)
	_, err = compute.CreateProject(ctx, "shop")
	require.NoError(t, err)
	rec, err := dns.UpsertRecord(ctx, providers.DNSRecord{Name: "shop", Type: "CNAME", Value: "x"})
	require.NoError(t, err)

	// Repo listing is down; everything else still gets torn down.
	git.FailList = true

	report, err := td.Run(ctx, "shop", false)
	require.NoError(t, err)
	assert.True(t, report.LocalDeleted)
	assert.Empty(t, report.ReposDeleted)
	assert.Len(t, report.ComputeDeleted, 1)
	assert.Equal(t, []string{rec.ID}, report.DNSDeleted)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[0], "list repos")

	_, err = os.Stat(m.ProjectDir("shop"))
	assert.True(t, os.IsNotExist(err))

	// The unlisted repo was never touched.
	git.FailList = false
	repos, err := git.ListRepos(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "shop", repos[0].Name)
}

func TestTeardownWithPreBackup(t *testing.T) {
	td, m, _, _, _ := newTestTeardown(t)
	ctx := context.Background()
	seedProject(t, m, "shop")

	_, err := td.Run(ctx, "shop", true)
	require.NoError(t, err)

	records, err := m.List("shop")
	require.NoError(t, err)
	assert.Len(t, records, 1, "pre-teardown snapshot recorded")
	assert.Equal(t, "pre-teardown", records[0].Reason)
}

func TestDiscoverDoesNotDelete(t *testing.T) {
	td, m, git, _, _ := newTestTeardown(t)
	ctx := context.Background()
	seedProject(t, m, "shop")
	_, err := git.Push(ctx, "shop", map[string]string{"index.html": "x"})
	require.NoError(t, err)

	manifest := td.Discover(ctx, "shop")
	assert.False(t, manifest.Empty())
	assert.Empty(t, manifest.Warnings)
	assert.Equal(t, []string{"shop"}, manifest.Repos)

	repos, err := git.ListRepos(ctx)
	require.NoError(t, err)
	assert.Len(t, repos, 1)
}
