// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package backup snapshots generated project artifacts before
// destructive operations, restores from snapshots, and performs
// best-effort teardown of a project's resources across local storage
// and each external provider.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/huddleeco/siteforge/pkg/logging"
	"github.com/huddleeco/siteforge/services/forge/datatypes"
)

// Sentinel errors.
var (
	// ErrProjectNotFound means the named project has no artifact
	// directory; no partial action is taken.
	ErrProjectNotFound = errors.New("backup: project not found")

	// ErrUnknownBackup means no index record matches the backup ID.
	ErrUnknownBackup = errors.New("backup: unknown backup id")
)

// Transient build outputs excluded from snapshots.
var defaultExcludes = []string{"node_modules", ".next", "dist", ".cache", ".turbo"}

// Config configures the backup manager.
type Config struct {
	// ProjectsRoot holds generated projects, one directory per
	// sanitized project name.
	ProjectsRoot string

	// BackupsRoot holds timestamped snapshots and the metadata index.
	BackupsRoot string

	// RetentionCap is the maximum snapshots kept per project.
	// Oldest-first eviction runs after every successful backup.
	// Default: 5.
	RetentionCap int

	// Excludes are directory names skipped when copying. Defaults to
	// common build caches when empty.
	Excludes []string
}

// Manager implements snapshot, restore, and retention for project
// artifacts. The metadata index is a single JSON document; writes to
// it are serialized, while snapshots for different projects may copy
// files concurrently.
type Manager struct {
	cfg    Config
	logger *logging.Logger

	// indexMu serializes read-modify-write cycles on the index file.
	indexMu sync.Mutex
}

// NewManager creates a Manager, applying defaults and creating the
// backups root.
func NewManager(cfg Config, logger *logging.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.RetentionCap <= 0 {
		cfg.RetentionCap = 5
	}
	if len(cfg.Excludes) == 0 {
		cfg.Excludes = defaultExcludes
	}
	if cfg.ProjectsRoot == "" || cfg.BackupsRoot == "" {
		return nil, fmt.Errorf("backup: projects root and backups root are required")
	}
	if err := os.MkdirAll(cfg.BackupsRoot, 0750); err != nil {
		return nil, fmt.Errorf("backup: create backups root: %w", err)
	}
	return &Manager{cfg: cfg, logger: logger}, nil
}

// SanitizeName converts a display name to its filesystem- and
// provider-safe form: lowercase, runs of non-alphanumerics collapsed
// to single hyphens.
func SanitizeName(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ProjectDir returns the artifact directory for a project name.
func (m *Manager) ProjectDir(projectName string) string {
	return filepath.Join(m.cfg.ProjectsRoot, SanitizeName(projectName))
}

// Backup snapshots a project's artifact directory to a timestamped
// location, appends a metadata record, then enforces the retention
// cap. A missing project returns ErrProjectNotFound with no partial
// action.
func (m *Manager) Backup(projectName, reason string) (datatypes.BackupRecord, error) {
	sanitized := SanitizeName(projectName)
	sourceDir := filepath.Join(m.cfg.ProjectsRoot, sanitized)

	if _, err := os.Stat(sourceDir); os.IsNotExist(err) {
		return datatypes.BackupRecord{}, fmt.Errorf("%w: %s", ErrProjectNotFound, projectName)
	} else if err != nil {
		return datatypes.BackupRecord{}, fmt.Errorf("backup: stat %s: %w", sourceDir, err)
	}

	now := time.Now()
	id := uuid.New().String()
	record := datatypes.BackupRecord{
		ID:            id,
		ProjectName:   projectName,
		SanitizedName: sanitized,
		Timestamp:     now,
		Reason:        reason,
		SourcePath:    sourceDir,
		// The ID suffix keeps paths unique when snapshots land in
		// the same second.
		Path: filepath.Join(m.cfg.BackupsRoot, fmt.Sprintf("%s_%s_%s", sanitized, now.Format("2006-01-02_150405"), id[:8])),
	}

	size, err := m.copyTree(sourceDir, record.Path)
	if err != nil {
		// Leave no partial snapshot behind.
		_ = os.RemoveAll(record.Path)
		return datatypes.BackupRecord{}, fmt.Errorf("backup: copy %s: %w", projectName, err)
	}
	record.Size = size

	if err := m.appendRecord(record); err != nil {
		_ = os.RemoveAll(record.Path)
		return datatypes.BackupRecord{}, err
	}

	m.logger.Info("backup created",
		"project", projectName,
		"backup_id", record.ID,
		"size_bytes", record.Size,
		"reason", reason,
	)

	if err := m.enforceRetention(sanitized); err != nil {
		// The snapshot itself succeeded; retention problems are
		// warnings.
		m.logger.Warn("retention cleanup failed", "project", projectName, "error", err.Error())
	}
	return record, nil
}

// List returns a project's backup records, newest first.
func (m *Manager) List(projectName string) ([]datatypes.BackupRecord, error) {
	sanitized := SanitizeName(projectName)
	index, err := m.readIndex()
	if err != nil {
		return nil, err
	}
	var out []datatypes.BackupRecord
	for _, r := range index.Backups {
		if r.SanitizedName == sanitized {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// Get returns one record by ID.
func (m *Manager) Get(backupID string) (datatypes.BackupRecord, error) {
	index, err := m.readIndex()
	if err != nil {
		return datatypes.BackupRecord{}, err
	}
	for _, r := range index.Backups {
		if r.ID == backupID {
			return r, nil
		}
	}
	return datatypes.BackupRecord{}, fmt.Errorf("%w: %s", ErrUnknownBackup, backupID)
}

// Restore replaces the project's current directory with the chosen
// snapshot. When safetyFirst is set, a fresh snapshot of the current
// state is attempted first; its failure is a warning, not an abort.
func (m *Manager) Restore(backupID string, safetyFirst bool) error {
	record, err := m.Get(backupID)
	if err != nil {
		return err
	}

	if safetyFirst {
		if _, err := m.Backup(record.ProjectName, "pre-restore safety"); err != nil && !errors.Is(err, ErrProjectNotFound) {
			m.logger.Warn("safety backup before restore failed",
				"project", record.ProjectName, "error", err.Error())
		}
	}

	targetDir := filepath.Join(m.cfg.ProjectsRoot, record.SanitizedName)
	if err := os.RemoveAll(targetDir); err != nil {
		return fmt.Errorf("backup: clear %s before restore: %w", targetDir, err)
	}
	if _, err := m.copyTree(record.Path, targetDir); err != nil {
		return fmt.Errorf("backup: restore %s: %w", backupID, err)
	}

	m.logger.Info("backup restored", "project", record.ProjectName, "backup_id", backupID)
	return nil
}

// Delete removes one backup's files and metadata.
func (m *Manager) Delete(backupID string) error {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()

	index, err := m.readIndexLocked()
	if err != nil {
		return err
	}
	kept := index.Backups[:0]
	var removed *datatypes.BackupRecord
	for i := range index.Backups {
		if index.Backups[i].ID == backupID {
			removed = &index.Backups[i]
			continue
		}
		kept = append(kept, index.Backups[i])
	}
	if removed == nil {
		return fmt.Errorf("%w: %s", ErrUnknownBackup, backupID)
	}
	if err := os.RemoveAll(removed.Path); err != nil {
		return fmt.Errorf("backup: remove snapshot files: %w", err)
	}
	index.Backups = kept
	return m.writeIndexLocked(index)
}

// DeleteProjectBackups removes every snapshot for a project. Used
// when a project is torn down for good.
func (m *Manager) DeleteProjectBackups(projectName string) (int, error) {
	sanitized := SanitizeName(projectName)

	m.indexMu.Lock()
	defer m.indexMu.Unlock()

	index, err := m.readIndexLocked()
	if err != nil {
		return 0, err
	}
	kept := index.Backups[:0]
	removed := 0
	for _, r := range index.Backups {
		if r.SanitizedName == sanitized {
			if err := os.RemoveAll(r.Path); err != nil {
				m.logger.Warn("failed to remove snapshot files", "path", r.Path, "error", err.Error())
			}
			removed++
			continue
		}
		kept = append(kept, r)
	}
	index.Backups = kept
	if err := m.writeIndexLocked(index); err != nil {
		return removed, err
	}
	return removed, nil
}

// enforceRetention deletes the oldest snapshots beyond the cap.
func (m *Manager) enforceRetention(sanitized string) error {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()

	index, err := m.readIndexLocked()
	if err != nil {
		return err
	}

	var mine []datatypes.BackupRecord
	for _, r := range index.Backups {
		if r.SanitizedName == sanitized {
			mine = append(mine, r)
		}
	}
	if len(mine) <= m.cfg.RetentionCap {
		return nil
	}

	sort.Slice(mine, func(i, j int) bool { return mine[i].Timestamp.Before(mine[j].Timestamp) })
	evict := make(map[string]bool)
	for _, r := range mine[:len(mine)-m.cfg.RetentionCap] {
		if err := os.RemoveAll(r.Path); err != nil {
			m.logger.Warn("failed to evict snapshot files", "path", r.Path, "error", err.Error())
			continue
		}
		evict[r.ID] = true
		m.logger.Info("evicted old backup", "project", r.ProjectName, "backup_id", r.ID)
	}

	kept := index.Backups[:0]
	for _, r := range index.Backups {
		if !evict[r.ID] {
			kept = append(kept, r)
		}
	}
	index.Backups = kept
	return m.writeIndexLocked(index)
}

// backupIndex is the durable metadata document.
type backupIndex struct {
	Backups []datatypes.BackupRecord `json:"backups"`
}

func (m *Manager) indexPath() string {
	return filepath.Join(m.cfg.BackupsRoot, "index.json")
}

func (m *Manager) readIndex() (backupIndex, error) {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()
	return m.readIndexLocked()
}

func (m *Manager) readIndexLocked() (backupIndex, error) {
	var index backupIndex
	data, err := os.ReadFile(m.indexPath())
	if os.IsNotExist(err) {
		return index, nil
	}
	if err != nil {
		return index, fmt.Errorf("backup: read index: %w", err)
	}
	if err := json.Unmarshal(data, &index); err != nil {
		return index, fmt.Errorf("backup: parse index: %w", err)
	}
	return index, nil
}

func (m *Manager) writeIndexLocked(index backupIndex) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("backup: marshal index: %w", err)
	}
	tmp := m.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return fmt.Errorf("backup: write index: %w", err)
	}
	if err := os.Rename(tmp, m.indexPath()); err != nil {
		return fmt.Errorf("backup: replace index: %w", err)
	}
	return nil
}

func (m *Manager) appendRecord(record datatypes.BackupRecord) error {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()
	index, err := m.readIndexLocked()
	if err != nil {
		return err
	}
	index.Backups = append(index.Backups, record)
	return m.writeIndexLocked(index)
}

// copyTree copies src into dst, skipping excluded directory names,
// and returns the total bytes copied.
func (m *Manager) copyTree(src, dst string) (int64, error) {
	var total int64
	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			for _, ex := range m.cfg.Excludes {
				if d.Name() == ex {
					return filepath.SkipDir
				}
			}
			return os.MkdirAll(filepath.Join(dst, rel), 0750)
		}
		n, err := copyFile(path, filepath.Join(dst, rel))
		total += n
		return err
	})
	if err != nil {
		return total, err
	}
	return total, nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return 0, err
	}
	defer out.Close()

	return io.Copy(out, in)
}
