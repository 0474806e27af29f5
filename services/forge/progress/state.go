// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package progress holds per-job lifecycle tracking and the broadcast
// hub that fans progress events out to observers.
package progress

import (
	"fmt"
	"sync"

	"github.com/huddleeco/siteforge/services/forge/datatypes"
)

// Tracker owns the job state records for one batch. Each record is
// mutated only through Tracker methods; callers receive snapshots.
//
// Transitions are monotonic (pending -> in_progress -> terminal);
// an illegal transition returns an error and leaves the record
// unchanged.
//
// Thread Safety: safe for concurrent use. In practice each job is
// updated by the single task that owns it, but the batch driver and
// status endpoint read concurrently.
type Tracker struct {
	mu     sync.RWMutex
	states map[string]*datatypes.JobState
	order  []string
}

// NewTracker creates pending records for every descriptor.
func NewTracker(jobs []datatypes.JobDescriptor) *Tracker {
	t := &Tracker{
		states: make(map[string]*datatypes.JobState, len(jobs)),
		order:  make([]string, 0, len(jobs)),
	}
	for _, job := range jobs {
		t.states[job.ID] = &datatypes.JobState{
			ID:     job.ID,
			Name:   job.Name,
			Status: datatypes.JobPending,
			URLs:   make(map[string]string),
		}
		t.order = append(t.order, job.ID)
	}
	return t
}

// Advance moves a job to in_progress with a new step label and
// progress value, returning a snapshot of the updated state.
func (t *Tracker) Advance(jobID, step string, progress int) (datatypes.JobState, error) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return t.update(jobID, datatypes.JobInProgress, func(s *datatypes.JobState) {
		s.Step = step
		s.Progress = progress
	})
}

// SetURL records an artifact URL (site, admin, companion, api) on a
// job without changing its status.
func (t *Tracker) SetURL(jobID, kind, url string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[jobID]
	if !ok {
		return fmt.Errorf("unknown job %s", jobID)
	}
	if state.URLs == nil {
		state.URLs = make(map[string]string)
	}
	state.URLs[kind] = url
	return nil
}

// Complete marks a job completed at 100%.
func (t *Tracker) Complete(jobID string) (datatypes.JobState, error) {
	return t.update(jobID, datatypes.JobCompleted, func(s *datatypes.JobState) {
		s.Step = "done"
		s.Progress = 100
	})
}

// Fail marks a job errored with the given message. The step label is
// preserved so the summary shows where the failure happened.
func (t *Tracker) Fail(jobID string, message string) (datatypes.JobState, error) {
	return t.update(jobID, datatypes.JobError, func(s *datatypes.JobState) {
		s.Error = message
	})
}

// Get returns a snapshot of one job's state.
func (t *Tracker) Get(jobID string) (datatypes.JobState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.states[jobID]
	if !ok {
		return datatypes.JobState{}, false
	}
	return state.Clone(), true
}

// All returns snapshots in submission order.
func (t *Tracker) All() []datatypes.JobState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]datatypes.JobState, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.states[id].Clone())
	}
	return out
}

// Succeeded returns the IDs of completed jobs in submission order.
func (t *Tracker) Succeeded() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for _, id := range t.order {
		if t.states[id].Status == datatypes.JobCompleted {
			out = append(out, id)
		}
	}
	return out
}

func (t *Tracker) update(jobID string, next datatypes.JobStatus, apply func(*datatypes.JobState)) (datatypes.JobState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[jobID]
	if !ok {
		return datatypes.JobState{}, fmt.Errorf("unknown job %s", jobID)
	}
	if !state.Status.CanTransition(next) {
		return state.Clone(), fmt.Errorf("job %s: illegal transition %s -> %s", jobID, state.Status, next)
	}
	state.Status = next
	apply(state)
	return state.Clone(), nil
}
