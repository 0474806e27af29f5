// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package modules holds the admin-module manifest registry and the
// dependency resolver that expands and orders module bundles.
package modules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/huddleeco/siteforge/pkg/logging"
	"github.com/huddleeco/siteforge/services/forge/datatypes"
)

// Registry is the read-mostly store of module manifests keyed by
// name. Manifests are loaded once at startup; Reload swaps the whole
// map atomically, so readers never observe a partial load.
//
// Thread Safety: safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	manifests map[string]datatypes.ModuleManifest
	dir       string
	logger    *logging.Logger
}

// NewRegistry loads every *.yaml manifest under dir. Files that fail
// to parse are skipped with a warning; a missing directory is an
// error because the platform cannot assemble any admin bundle without
// manifests.
func NewRegistry(dir string, logger *logging.Logger) (*Registry, error) {
	if logger == nil {
		logger = logging.Default()
	}
	r := &Registry{
		dir:    dir,
		logger: logger,
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRegistryFromManifests builds a registry directly from manifests.
// Used by tests and by embedded defaults.
func NewRegistryFromManifests(manifests []datatypes.ModuleManifest, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	m := make(map[string]datatypes.ModuleManifest, len(manifests))
	for _, manifest := range manifests {
		m[manifest.Name] = manifest
	}
	return &Registry{
		manifests: m,
		logger:    logger,
	}
}

// Reload re-reads the manifest directory and atomically replaces the
// registry contents. No-op for registries built from literals.
func (r *Registry) Reload() error {
	if r.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("read manifest dir %s: %w", r.dir, err)
	}

	loaded := make(map[string]datatypes.ModuleManifest)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		path := filepath.Join(r.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("skipping unreadable manifest", "path", path, "error", err.Error())
			continue
		}
		var manifest datatypes.ModuleManifest
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			r.logger.Warn("skipping malformed manifest", "path", path, "error", err.Error())
			continue
		}
		if manifest.Name == "" {
			r.logger.Warn("skipping manifest without a name", "path", path)
			continue
		}
		loaded[manifest.Name] = manifest
	}

	r.mu.Lock()
	r.manifests = loaded
	r.mu.Unlock()
	r.logger.Info("module manifests loaded", "count", len(loaded), "dir", r.dir)
	return nil
}

// Get returns the manifest for name.
func (r *Registry) Get(name string) (datatypes.ModuleManifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.manifests[name]
	return m, ok
}

// All returns every manifest sorted by declared order then name.
func (r *Registry) All() []datatypes.ModuleManifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]datatypes.ModuleManifest, 0, len(r.manifests))
	for _, m := range r.manifests {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Len returns the number of registered manifests.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.manifests)
}

// Watch reloads the registry whenever the manifest directory changes.
// It blocks until stop is closed or the watcher fails; run it on its
// own goroutine. Registries built from literals return immediately.
func (r *Registry) Watch(stop <-chan struct{}) error {
	if r.dir == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create manifest watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("watch manifest dir %s: %w", r.dir, err)
	}

	for {
		select {
		case <-stop:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.Reload(); err != nil {
				r.logger.Warn("manifest reload failed", "error", err.Error())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("manifest watcher error", "error", err.Error())
		}
	}
}
