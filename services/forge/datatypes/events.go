// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// Progress event kinds. One producer (the orchestrator), any number
// of consumers.
const (
	// EventBatchStart opens a batch stream.
	EventBatchStart = "batch-start"

	// EventProgress carries one job's state snapshot.
	EventProgress = "progress"

	// EventPhase announces a phase transition ("entering
	// companion-deploy phase").
	EventPhase = "phase"

	// EventBatchComplete closes a batch stream with the summary.
	EventBatchComplete = "batch-complete"

	// EventError reports a batch-level failure that aborts the stream.
	EventError = "error"
)

// ProgressEvent is one message on the progress channel.
//
// Id, CreatedAt, Hash, and PrevHash are populated by the stream writer
// when the event is serialized; producers leave them empty. The hash
// chain gives consumers an integrity check over the event sequence.
type ProgressEvent struct {
	// Id is a UUID assigned at write time.
	Id string `json:"id,omitempty"`

	// Type is one of the Event* constants.
	Type string `json:"type"`

	// CreatedAt is Unix milliseconds, assigned at write time.
	CreatedAt int64 `json:"createdAt,omitempty"`

	// Hash is the SHA-256 of this event's content.
	Hash string `json:"hash,omitempty"`

	// PrevHash links to the previous event's hash.
	PrevHash string `json:"prevHash,omitempty"`

	// BatchID tags every event with its batch.
	BatchID string `json:"batchId,omitempty"`

	// Total is the job count (batch-start, batch-complete).
	Total int `json:"total,omitempty"`

	// Job is the state snapshot (progress events only).
	Job *JobState `json:"job,omitempty"`

	// Phase names the phase being entered (phase events only).
	Phase string `json:"phase,omitempty"`

	// Message is human-readable context for phase and error events.
	Message string `json:"message,omitempty"`

	// Summary is the final accounting (batch-complete only).
	Summary *BatchSummary `json:"summary,omitempty"`
}
