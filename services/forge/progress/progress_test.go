// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package progress

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddleeco/siteforge/services/forge/datatypes"
)

func testJobs(n int) []datatypes.JobDescriptor {
	jobs := make([]datatypes.JobDescriptor, n)
	for i := range jobs {
		jobs[i] = datatypes.JobDescriptor{
			ID:   fmt.Sprintf("job-%d", i),
			Name: fmt.Sprintf("Job %d", i),
		}
	}
	return jobs
}

func TestTrackerLifecycle(t *testing.T) {
	tracker := NewTracker(testJobs(1))

	state, ok := tracker.Get("job-0")
	require.True(t, ok)
	assert.Equal(t, datatypes.JobPending, state.Status)

	state, err := tracker.Advance("job-0", "generating site", 10)
	require.NoError(t, err)
	assert.Equal(t, datatypes.JobInProgress, state.Status)
	assert.Equal(t, "generating site", state.Step)
	assert.Equal(t, 10, state.Progress)

	state, err = tracker.Advance("job-0", "pushing repo", 40)
	require.NoError(t, err)
	assert.Equal(t, 40, state.Progress)

	state, err = tracker.Complete("job-0")
	require.NoError(t, err)
	assert.Equal(t, datatypes.JobCompleted, state.Status)
	assert.Equal(t, 100, state.Progress)
}

func TestTrackerMonotonicStatus(t *testing.T) {
	tracker := NewTracker(testJobs(1))

	_, err := tracker.Complete("job-0")
	require.NoError(t, err)

	// Terminal states admit no further transitions.
	_, err = tracker.Advance("job-0", "late step", 50)
	assert.Error(t, err)
	_, err = tracker.Fail("job-0", "late failure")
	assert.Error(t, err)

	state, _ := tracker.Get("job-0")
	assert.Equal(t, datatypes.JobCompleted, state.Status)
	assert.Empty(t, state.Error)
}

func TestTrackerFailKeepsStep(t *testing.T) {
	tracker := NewTracker(testJobs(1))

	_, err := tracker.Advance("job-0", "waiting for build", 70)
	require.NoError(t, err)
	state, err := tracker.Fail("job-0", "build timed out")
	require.NoError(t, err)

	assert.Equal(t, datatypes.JobError, state.Status)
	assert.Equal(t, "waiting for build", state.Step)
	assert.Equal(t, "build timed out", state.Error)
}

func TestTrackerProgressClamped(t *testing.T) {
	tracker := NewTracker(testJobs(1))

	state, err := tracker.Advance("job-0", "s", 150)
	require.NoError(t, err)
	assert.Equal(t, 100, state.Progress)

	state, err = tracker.Advance("job-0", "s", -5)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Progress)
}

func TestTrackerUnknownJob(t *testing.T) {
	tracker := NewTracker(testJobs(1))

	_, err := tracker.Advance("nope", "s", 1)
	assert.Error(t, err)
	assert.Error(t, tracker.SetURL("nope", "site", "https://x"))
}

func TestTrackerSucceededOrder(t *testing.T) {
	tracker := NewTracker(testJobs(3))

	_, err := tracker.Complete("job-2")
	require.NoError(t, err)
	_, err = tracker.Complete("job-0")
	require.NoError(t, err)
	_, err = tracker.Fail("job-1", "boom")
	require.NoError(t, err)

	assert.Equal(t, []string{"job-0", "job-2"}, tracker.Succeeded())
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	a, cancelA := hub.Subscribe()
	b, cancelB := hub.Subscribe()
	defer cancelA()
	defer cancelB()

	hub.Publish(datatypes.ProgressEvent{Type: datatypes.EventBatchStart, Total: 2})

	assert.Equal(t, datatypes.EventBatchStart, (<-a).Type)
	assert.Equal(t, datatypes.EventBatchStart, (<-b).Type)
}

func TestHubDeadConsumerDropped(t *testing.T) {
	hub := NewHub()
	dead, _ := hub.Subscribe()
	_ = dead // never read

	live, cancel := hub.Subscribe()
	defer cancel()

	// Fill past the dead consumer's buffer; the publisher must not
	// block and must drop the dead subscriber silently.
	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Publish(datatypes.ProgressEvent{Type: datatypes.EventProgress})
		// Keep the live consumer drained.
		<-live
	}

	assert.Equal(t, 1, hub.SubscriberCount())
}

func TestHubReplayForLateSubscriber(t *testing.T) {
	hub := NewHub()
	hub.Publish(datatypes.ProgressEvent{Type: datatypes.EventBatchStart})
	hub.Publish(datatypes.ProgressEvent{Type: datatypes.EventProgress})

	ch, cancel := hub.Subscribe()
	defer cancel()

	assert.Equal(t, datatypes.EventBatchStart, (<-ch).Type)
	assert.Equal(t, datatypes.EventProgress, (<-ch).Type)
}

func TestHubCloseEndsStreams(t *testing.T) {
	hub := NewHub()
	ch, _ := hub.Subscribe()

	hub.Publish(datatypes.ProgressEvent{Type: datatypes.EventBatchComplete})
	hub.Close()

	var got []string
	for ev := range ch {
		got = append(got, ev.Type)
	}
	assert.Equal(t, []string{datatypes.EventBatchComplete}, got)

	// Publishing after close is a no-op, and late subscribers still
	// get the history followed by a closed channel.
	hub.Publish(datatypes.ProgressEvent{Type: datatypes.EventProgress})
	late, _ := hub.Subscribe()
	var lateTypes []string
	for ev := range late {
		lateTypes = append(lateTypes, ev.Type)
	}
	assert.Equal(t, []string{datatypes.EventBatchComplete}, lateTypes)
}

func TestHubUnsubscribeIdempotent(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe()
	cancel()
	cancel()
	assert.Equal(t, 0, hub.SubscriberCount())
}
