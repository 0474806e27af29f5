// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// BackupRecord is one snapshot's metadata entry in the durable backup
// index. Records are created before a destructive operation and never
// mutated; they are deleted explicitly or by retention cleanup.
type BackupRecord struct {
	// ID uniquely identifies the backup.
	ID string `json:"id"`

	// ProjectName is the source project's display name.
	ProjectName string `json:"projectName"`

	// SanitizedName is the filesystem/provider-safe form of the name.
	SanitizedName string `json:"sanitizedName"`

	// Timestamp is when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`

	// Reason records why the backup was taken ("pre-regeneration",
	// "manual").
	Reason string `json:"reason"`

	// Path is the snapshot's storage location under the backups root.
	Path string `json:"path"`

	// SourcePath is the project directory that was copied.
	SourcePath string `json:"sourcePath"`

	// Size is the snapshot's total size in bytes.
	Size int64 `json:"size"`
}

// TeardownManifest is the ephemeral set of external resource handles
// discovered for one project. Built by discovery, consumed by
// deletion, then discarded.
type TeardownManifest struct {
	// ProjectName is the project being torn down.
	ProjectName string `json:"projectName"`

	// SanitizedName is the name form matched against provider
	// resources. Matching is exact only, never fuzzy.
	SanitizedName string `json:"sanitizedName"`

	// LocalPath is the project's on-disk artifact directory, empty
	// when none exists.
	LocalPath string `json:"localPath,omitempty"`

	// Repos are version-control repository references.
	Repos []string `json:"repos"`

	// ComputeProjects are compute-service project identifiers.
	ComputeProjects []string `json:"computeProjects"`

	// DNSRecords are DNS record identifiers.
	DNSRecords []string `json:"dnsRecords"`

	// Warnings records providers whose listing failed during
	// discovery. Their resources are unknown, not absent.
	Warnings []string `json:"warnings,omitempty"`
}

// Empty reports whether discovery found nothing to delete.
func (m *TeardownManifest) Empty() bool {
	return m.LocalPath == "" && len(m.Repos) == 0 && len(m.ComputeProjects) == 0 && len(m.DNSRecords) == 0
}

// TeardownReport summarizes one teardown attempt. Provider failures
// are warnings, not errors; each provider is attempted independently.
type TeardownReport struct {
	ProjectName    string   `json:"projectName"`
	LocalDeleted   bool     `json:"localDeleted"`
	ReposDeleted   []string `json:"reposDeleted"`
	ComputeDeleted []string `json:"computeDeleted"`
	DNSDeleted     []string `json:"dnsDeleted"`
	Warnings       []string `json:"warnings,omitempty"`
}
