// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the shared types for the forge service:
// job descriptors, batch requests, progress events, module manifests,
// tier configuration, and backup records.
package datatypes

import "time"

// JobStatus is the lifecycle state of one generation job.
//
// Transitions are monotonic: pending -> in_progress -> {completed, error}.
// There are no regressions; a completed or errored job never changes again.
type JobStatus string

const (
	// JobPending means the job is accepted but no work has started.
	JobPending JobStatus = "pending"

	// JobInProgress means the job is being generated or deployed.
	JobInProgress JobStatus = "in_progress"

	// JobCompleted means every requested stage finished.
	JobCompleted JobStatus = "completed"

	// JobError means a stage failed; Error holds the reason.
	JobError JobStatus = "error"
)

// terminal reports whether the status admits no further transitions.
func (s JobStatus) terminal() bool {
	return s == JobCompleted || s == JobError
}

// CanTransition reports whether moving from s to next respects the
// monotonic lifecycle.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s == next {
		// Repeated in_progress updates carry new step/progress values.
		return s == JobInProgress
	}
	if s.terminal() {
		return false
	}
	switch s {
	case JobPending:
		return next == JobInProgress || next == JobCompleted || next == JobError
	case JobInProgress:
		return next == JobCompleted || next == JobError
	default:
		return false
	}
}

// JobDescriptor is the immutable input describing one generation
// target. Created when a batch request is accepted; never mutated.
type JobDescriptor struct {
	// ID uniquely identifies the job within its batch.
	ID string `json:"id"`

	// Name is the business display name ("Harbor Light Cafe").
	Name string `json:"name"`

	// Industry is the business classification ("restaurant",
	// "ecommerce"). Used for tier suggestion when AdminTier is "auto".
	Industry string `json:"industry"`

	// Tagline is free text shown on the generated site and scanned
	// for tier keywords.
	Tagline string `json:"tagline"`

	// Location is free text ("Portland, OR").
	Location string `json:"location"`

	// Theme names the color theme applied to generated pages.
	Theme string `json:"theme,omitempty"`

	// Pages lists page identifiers to generate ("home", "menu",
	// "contact").
	Pages []string `json:"pages"`

	// Modules lists explicitly requested admin feature modules.
	Modules []string `json:"modules"`

	// AdminTier names the admin bundle tier, or "auto" to let the
	// tier suggestion engine decide.
	AdminTier string `json:"adminTier"`

	// Deploy controls whether generated artifacts are published to
	// the external providers.
	Deploy bool `json:"deploy"`
}

// JobState is the mutable per-job record owned by the orchestrator
// task handling the job. Other goroutines read it only through
// snapshots published on the progress channel.
type JobState struct {
	// ID matches the descriptor's ID.
	ID string `json:"id"`

	// Name is the human-readable job name.
	Name string `json:"name"`

	// Status is the current lifecycle state.
	Status JobStatus `json:"status"`

	// Step is a free-text label for the current sub-step
	// ("generating site", "waiting for build").
	Step string `json:"step"`

	// Progress is 0-100.
	Progress int `json:"progress"`

	// URLs maps artifact kinds (site, admin, companion, api) to
	// their deployed locations.
	URLs map[string]string `json:"urls,omitempty"`

	// Error is the failure message when Status is JobError.
	Error string `json:"error,omitempty"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *JobState) Clone() JobState {
	out := *s
	if s.URLs != nil {
		out.URLs = make(map[string]string, len(s.URLs))
		for k, v := range s.URLs {
			out.URLs[k] = v
		}
	}
	return out
}

// JobResult is the durable per-job outcome persisted at batch
// completion, successful or not.
type JobResult struct {
	JobID       string            `json:"jobId"`
	BatchID     string            `json:"batchId"`
	Name        string            `json:"name"`
	Status      JobStatus         `json:"status"`
	URLs        map[string]string `json:"urls,omitempty"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt time.Time         `json:"completedAt"`
	DurationMS  int64             `json:"durationMs"`
}
