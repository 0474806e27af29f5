// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryGitHost is an in-memory GitHost for local mode and tests.
//
// FailPush and FailDelete, when set, make the corresponding call fail
// for the named repo; FailList makes ListRepos fail outright. Safe
// for concurrent use.
type MemoryGitHost struct {
	mu         sync.Mutex
	repos      map[string]RepoRef
	files      map[string]map[string]string
	FailPush   map[string]bool
	FailDelete map[string]bool
	FailList   bool
}

// NewMemoryGitHost returns an empty in-memory git host.
func NewMemoryGitHost() *MemoryGitHost {
	return &MemoryGitHost{
		repos: make(map[string]RepoRef),
		files: make(map[string]map[string]string),
	}
}

// Push stores the files and returns a synthetic repo reference.
func (h *MemoryGitHost) Push(ctx context.Context, repoName string, files map[string]string) (RepoRef, error) {
	if err := ctx.Err(); err != nil {
		return RepoRef{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.FailPush[repoName] {
		return RepoRef{}, fmt.Errorf("push rejected for %s", repoName)
	}
	ref := RepoRef{
		Name: repoName,
		URL:  "https://git.local/" + repoName,
	}
	h.repos[repoName] = ref
	copied := make(map[string]string, len(files))
	for k, v := range files {
		copied[k] = v
	}
	h.files[repoName] = copied
	return ref, nil
}

// ListRepos returns all stored repo references.
func (h *MemoryGitHost) ListRepos(ctx context.Context) ([]RepoRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.FailList {
		return nil, fmt.Errorf("repo listing unavailable")
	}
	out := make([]RepoRef, 0, len(h.repos))
	for _, r := range h.repos {
		out = append(out, r)
	}
	return out, nil
}

// DeleteRepo removes a repository; deleting an unknown repo is an
// error so teardown warnings surface in tests.
func (h *MemoryGitHost) DeleteRepo(ctx context.Context, repoName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.FailDelete[repoName] {
		return fmt.Errorf("delete rejected for %s", repoName)
	}
	if _, ok := h.repos[repoName]; !ok {
		return fmt.Errorf("repo %s not found", repoName)
	}
	delete(h.repos, repoName)
	delete(h.files, repoName)
	return nil
}

// Files returns a copy of the files last pushed to repoName.
func (h *MemoryGitHost) Files(repoName string) map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	src := h.files[repoName]
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

var _ GitHost = (*MemoryGitHost)(nil)

// MemoryComputeHost is an in-memory ComputeHost.
//
// FailCreateService, when set, makes CreateService fail for the named
// service. CreateCalls records project-creation timestamps are not
// kept here; pacing assertions live with the orchestrator's Pacer.
type MemoryComputeHost struct {
	mu                sync.Mutex
	projects          map[string]ComputeProject
	services          map[string]ComputeService
	FailCreateService map[string]bool
	FailCreateProject map[string]bool
}

// NewMemoryComputeHost returns an empty in-memory compute host.
func NewMemoryComputeHost() *MemoryComputeHost {
	return &MemoryComputeHost{
		projects: make(map[string]ComputeProject),
		services: make(map[string]ComputeService),
	}
}

// CreateProject provisions a synthetic project.
func (h *MemoryComputeHost) CreateProject(ctx context.Context, name string) (ComputeProject, error) {
	if err := ctx.Err(); err != nil {
		return ComputeProject{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.FailCreateProject[name] {
		return ComputeProject{}, fmt.Errorf("project creation rejected for %s", name)
	}
	p := ComputeProject{
		ID:   uuid.New().String(),
		Name: name,
	}
	h.projects[p.ID] = p
	return p, nil
}

// CreateService deploys a synthetic service with an immediate
// successful build.
func (h *MemoryComputeHost) CreateService(ctx context.Context, projectID, serviceName string, repo RepoRef) (ComputeService, error) {
	if err := ctx.Err(); err != nil {
		return ComputeService{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.FailCreateService[serviceName] {
		return ComputeService{}, fmt.Errorf("service creation rejected for %s", serviceName)
	}
	project, ok := h.projects[projectID]
	if !ok {
		return ComputeService{}, fmt.Errorf("project %s not found", projectID)
	}
	s := ComputeService{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Name:      serviceName,
		URL:       fmt.Sprintf("https://%s-%s.apps.local", project.Name, serviceName),
	}
	h.services[s.ID] = s
	return s, nil
}

// GetBuildStatus always reports success for known services.
func (h *MemoryComputeHost) GetBuildStatus(ctx context.Context, serviceID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.services[serviceID]; !ok {
		return "", fmt.Errorf("service %s not found", serviceID)
	}
	return BuildSucceeded, nil
}

// ListProjects returns all stored projects.
func (h *MemoryComputeHost) ListProjects(ctx context.Context) ([]ComputeProject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ComputeProject, 0, len(h.projects))
	for _, p := range h.projects {
		out = append(out, p)
	}
	return out, nil
}

// DeleteProject removes a project and its services.
func (h *MemoryComputeHost) DeleteProject(ctx context.Context, projectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.projects[projectID]; !ok {
		return fmt.Errorf("project %s not found", projectID)
	}
	delete(h.projects, projectID)
	for id, s := range h.services {
		if s.ProjectID == projectID {
			delete(h.services, id)
		}
	}
	return nil
}

var _ ComputeHost = (*MemoryComputeHost)(nil)

// MemoryDNSHost is an in-memory DNSHost.
type MemoryDNSHost struct {
	mu         sync.Mutex
	records    map[string]DNSRecord
	FailUpsert bool
}

// NewMemoryDNSHost returns an empty in-memory DNS host.
func NewMemoryDNSHost() *MemoryDNSHost {
	return &MemoryDNSHost{
		records: make(map[string]DNSRecord),
	}
}

// UpsertRecord stores the record, assigning an ID when empty.
func (h *MemoryDNSHost) UpsertRecord(ctx context.Context, record DNSRecord) (DNSRecord, error) {
	if err := ctx.Err(); err != nil {
		return DNSRecord{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.FailUpsert {
		return DNSRecord{}, fmt.Errorf("dns upsert rejected for %s", record.Name)
	}
	if record.ID == "" {
		// Upsert by name: reuse the existing ID when present.
		for id, r := range h.records {
			if r.Name == record.Name && r.Type == record.Type {
				record.ID = id
				break
			}
		}
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	h.records[record.ID] = record
	return record, nil
}

// ListRecords returns all stored records.
func (h *MemoryDNSHost) ListRecords(ctx context.Context) ([]DNSRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]DNSRecord, 0, len(h.records))
	for _, r := range h.records {
		out = append(out, r)
	}
	return out, nil
}

// DeleteRecord removes a record by ID.
func (h *MemoryDNSHost) DeleteRecord(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.records[id]; !ok {
		return fmt.Errorf("dns record %s not found", id)
	}
	delete(h.records, id)
	return nil
}

var _ DNSHost = (*MemoryDNSHost)(nil)
