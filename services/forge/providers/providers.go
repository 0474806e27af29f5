// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package providers defines the capability interfaces for the external
// systems the orchestrator publishes to: a version-control host, a
// compute host, and a DNS host.
//
// The wire format of any specific vendor's API is out of scope; these
// interfaces are the seam where real adapters plug in. The in-memory
// implementations in memory.go back the local deployment mode and the
// test suite.
package providers

import "context"

// RepoRef identifies a repository on the version-control host.
type RepoRef struct {
	// Name is the repository name (sanitized project name).
	Name string

	// URL is the browseable repository location.
	URL string
}

// ComputeProject identifies a project on the compute host. One
// project holds one or more services (main site, admin, companion).
type ComputeProject struct {
	ID   string
	Name string
}

// ComputeService is one deployed service within a compute project.
type ComputeService struct {
	ID        string
	ProjectID string
	Name      string
	URL       string
}

// Build states reported by the compute host.
const (
	BuildQueued    = "queued"
	BuildRunning   = "running"
	BuildSucceeded = "succeeded"
	BuildFailed    = "failed"
)

// DNSRecord is one record on the DNS host. Value is the record data:
// the canonical hostname for a CNAME, the address for an A record.
type DNSRecord struct {
	ID    string
	Name  string
	Type  string
	Value string
}

// GitHost is the version-control provider capability.
type GitHost interface {
	// Push creates or updates a repository with the given files and
	// returns its reference.
	Push(ctx context.Context, repoName string, files map[string]string) (RepoRef, error)

	// ListRepos returns all repository names visible to the account.
	ListRepos(ctx context.Context) ([]RepoRef, error)

	// DeleteRepo removes a repository by name.
	DeleteRepo(ctx context.Context, repoName string) error
}

// ComputeHost is the compute/deployment provider capability.
//
// Implementations typically enforce per-minute project-creation rate
// limits; the orchestrator's companion-deploy phase paces calls to
// stay under them.
type ComputeHost interface {
	// CreateProject provisions a project for the given name.
	CreateProject(ctx context.Context, name string) (ComputeProject, error)

	// CreateService deploys a service from a repository into a
	// project and returns it with its URL.
	CreateService(ctx context.Context, projectID, serviceName string, repo RepoRef) (ComputeService, error)

	// GetBuildStatus reports the service's current build state, one
	// of the Build* constants.
	GetBuildStatus(ctx context.Context, serviceID string) (string, error)

	// ListProjects returns all projects visible to the account.
	ListProjects(ctx context.Context) ([]ComputeProject, error)

	// DeleteProject removes a project and its services.
	DeleteProject(ctx context.Context, projectID string) error
}

// DNSHost is the DNS provider capability.
type DNSHost interface {
	// UpsertRecord creates or updates a record and returns it.
	UpsertRecord(ctx context.Context, record DNSRecord) (DNSRecord, error)

	// ListRecords returns all records in the managed zone.
	ListRecords(ctx context.Context) ([]DNSRecord, error)

	// DeleteRecord removes a record by ID.
	DeleteRecord(ctx context.Context, id string) error
}
