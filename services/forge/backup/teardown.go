// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/huddleeco/siteforge/pkg/logging"
	"github.com/huddleeco/siteforge/services/forge/datatypes"
	"github.com/huddleeco/siteforge/services/forge/providers"
)

// Teardown coordinates full removal of a project: local artifacts,
// repositories, compute, and DNS. Discovery matches resources by the
// project's exact sanitized name only.
type Teardown struct {
	manager *Manager
	git     providers.GitHost
	compute providers.ComputeHost
	dns     providers.DNSHost
	logger  *logging.Logger
}

// NewTeardown wires a Teardown. Any provider may be nil; that
// provider's resources are skipped during discovery and deletion.
func NewTeardown(manager *Manager, git providers.GitHost, compute providers.ComputeHost, dns providers.DNSHost, logger *logging.Logger) *Teardown {
	if logger == nil {
		logger = logging.Default()
	}
	return &Teardown{manager: manager, git: git, compute: compute, dns: dns, logger: logger}
}

// Discover enumerates what a teardown of projectName would remove,
// without removing anything. Each provider is listed independently;
// a provider whose listing fails contributes a manifest warning and
// no resources, and the other providers are still listed.
func (t *Teardown) Discover(ctx context.Context, projectName string) datatypes.TeardownManifest {
	sanitized := SanitizeName(projectName)
	manifest := datatypes.TeardownManifest{ProjectName: projectName, SanitizedName: sanitized}

	localDir := t.manager.ProjectDir(projectName)
	if _, err := os.Stat(localDir); err == nil {
		manifest.LocalPath = localDir
	}

	if t.git != nil {
		repos, err := t.git.ListRepos(ctx)
		if err != nil {
			manifest.Warnings = append(manifest.Warnings, fmt.Sprintf("list repos: %v", err))
		}
		for _, r := range repos {
			if repoMatches(r.Name, sanitized) {
				manifest.Repos = append(manifest.Repos, r.Name)
			}
		}
	}

	if t.compute != nil {
		projects, err := t.compute.ListProjects(ctx)
		if err != nil {
			manifest.Warnings = append(manifest.Warnings, fmt.Sprintf("list compute projects: %v", err))
		}
		for _, p := range projects {
			if p.Name == sanitized {
				manifest.ComputeProjects = append(manifest.ComputeProjects, p.ID)
			}
		}
	}

	if t.dns != nil {
		records, err := t.dns.ListRecords(ctx)
		if err != nil {
			manifest.Warnings = append(manifest.Warnings, fmt.Sprintf("list dns records: %v", err))
		}
		for _, rec := range records {
			if rec.Name == sanitized || strings.HasPrefix(rec.Name, sanitized+".") {
				manifest.DNSRecords = append(manifest.DNSRecords, rec.ID)
			}
		}
	}

	return manifest
}

// Run deletes everything discovered for the project. Each provider is
// handled independently, in discovery and in deletion; one provider
// failing does not stop the rest, and every failure is reported as a
// warning. A project with no local directory and no discovered
// resources returns ErrProjectNotFound and nothing is deleted, unless
// discovery itself had failures, in which case absence cannot be
// distinguished from an unlistable provider and the warnings are
// returned instead.
func (t *Teardown) Run(ctx context.Context, projectName string, backupFirst bool) (datatypes.TeardownReport, error) {
	report := datatypes.TeardownReport{ProjectName: projectName}

	manifest := t.Discover(ctx, projectName)
	report.Warnings = append(report.Warnings, manifest.Warnings...)
	if manifest.Empty() {
		if len(manifest.Warnings) > 0 {
			t.logger.Warn("teardown found nothing deletable but discovery was incomplete",
				"project", projectName, "warnings", len(manifest.Warnings))
			return report, nil
		}
		return report, fmt.Errorf("%w: %s", ErrProjectNotFound, projectName)
	}

	if backupFirst && manifest.LocalPath != "" {
		if _, err := t.manager.Backup(projectName, "pre-teardown"); err != nil {
			// The operator asked for teardown; a failed safety
			// snapshot is logged but does not block it.
			report.Warnings = append(report.Warnings, fmt.Sprintf("pre-teardown backup failed: %v", err))
			t.logger.Warn("pre-teardown backup failed", "project", projectName, "error", err.Error())
		}
	}

	if manifest.LocalPath != "" {
		if err := os.RemoveAll(manifest.LocalPath); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("local delete failed: %v", err))
		} else {
			report.LocalDeleted = true
		}
	}

	for _, repo := range manifest.Repos {
		if err := t.git.DeleteRepo(ctx, repo); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("delete repo %s: %v", repo, err))
			continue
		}
		report.ReposDeleted = append(report.ReposDeleted, repo)
	}

	for _, id := range manifest.ComputeProjects {
		if err := t.compute.DeleteProject(ctx, id); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("delete compute project %s: %v", id, err))
			continue
		}
		report.ComputeDeleted = append(report.ComputeDeleted, id)
	}

	for _, id := range manifest.DNSRecords {
		if err := t.dns.DeleteRecord(ctx, id); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("delete dns record %s: %v", id, err))
			continue
		}
		report.DNSDeleted = append(report.DNSDeleted, id)
	}

	if len(report.Warnings) > 0 {
		t.logger.Warn("teardown completed with warnings",
			"project", projectName, "warnings", len(report.Warnings))
	} else {
		t.logger.Info("teardown completed", "project", projectName)
	}
	return report, nil
}

// repoMatches accepts the project repo itself and its admin and
// companion repos, nothing else.
func repoMatches(repoName, sanitized string) bool {
	return repoName == sanitized ||
		repoName == sanitized+"-admin" ||
		repoName == sanitized+"-companion"
}

// IsNotFound reports whether err is the not-found teardown outcome.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound)
}
