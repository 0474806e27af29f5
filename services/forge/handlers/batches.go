// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers exposes the forge service over HTTP: batch
// submission and streaming, the resolver and tier surfaces, and
// backup administration.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/huddleeco/siteforge/services/forge/batch"
	"github.com/huddleeco/siteforge/services/forge/datatypes"
	"github.com/huddleeco/siteforge/services/forge/observability"
	"github.com/huddleeco/siteforge/services/forge/store"
)

// keepAliveInterval paces SSE comment pings during quiet stretches.
const keepAliveInterval = 15 * time.Second

// runEvictionDelay is how long a completed run stays queryable in
// memory. After eviction, status lookups fall through to the durable
// summary in the results store.
const runEvictionDelay = 10 * time.Minute

// Runs tracks live batch runs by ID so stream and status endpoints
// can find them. Completed runs are evicted after runEvictionDelay;
// their durable summary also lives in the results store.
type Runs struct {
	mu   sync.RWMutex
	byID map[string]*batch.Run
}

// NewRuns creates an empty registry.
func NewRuns() *Runs {
	return &Runs{byID: make(map[string]*batch.Run)}
}

// Add registers a run.
func (r *Runs) Add(run *batch.Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[run.ID] = run
}

// Get looks a run up by batch ID.
func (r *Runs) Get(id string) (*batch.Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.byID[id]
	return run, ok
}

// Remove drops a run from the registry.
func (r *Runs) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// evictWhenDone waits for the run's stream to close, then removes the
// run after the eviction delay.
func (r *Runs) evictWhenDone(run *batch.Run) {
	events, unsubscribe := run.Hub().Subscribe()
	defer unsubscribe()
	for range events {
	}
	time.AfterFunc(runEvictionDelay, func() { r.Remove(run.ID) })
}

// HandleCreateBatch accepts a batch request, starts it asynchronously,
// and returns the batch ID. Validation failures reject the request
// before any work starts.
func HandleCreateBatch(orch *batch.Orchestrator, runs *Runs) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// The batch outlives this request; it must not inherit the
		// request context's cancellation.
		// Start fails only on request validation (empty batch,
		// duplicate job IDs, unusable names), so every error here is
		// the caller's.
		run, err := orch.Start(context.Background(), req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		runs.Add(run)
		go runs.evictWhenDone(run)

		c.JSON(http.StatusAccepted, gin.H{"batchId": run.ID})
	}
}

// HandleGetBatch returns a batch's final summary when done, its
// current job states while running, or the persisted summary for
// batches that predate this process.
func HandleGetBatch(runs *Runs, results *store.ResultStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		batchID := c.Param("batchId")

		if run, ok := runs.Get(batchID); ok {
			if summary, done := run.Summary(); done {
				c.JSON(http.StatusOK, gin.H{"batchId": batchID, "done": true, "summary": summary})
				return
			}
			c.JSON(http.StatusOK, gin.H{"batchId": batchID, "done": false, "jobs": run.States()})
			return
		}

		if results != nil {
			summary, err := results.GetBatchSummary(batchID)
			if err == nil {
				c.JSON(http.StatusOK, gin.H{"batchId": batchID, "done": true, "summary": summary})
				return
			}
			if !errors.Is(err, store.ErrNotFound) {
				slog.Error("batch summary lookup failed", "batchId", batchID, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
				return
			}
		}

		c.JSON(http.StatusNotFound, gin.H{"error": "unknown batch"})
	}
}

// HandleBatchEvents streams a batch's progress events over SSE. Late
// subscribers see the full stream from batch-start; the hub replays
// history on subscribe. A client disconnect stops this stream only,
// never the underlying batch.
func HandleBatchEvents(runs *Runs) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, ok := runs.Get(c.Param("batchId"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown batch"})
			return
		}

		SetSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
			return
		}

		events, unsubscribe := run.Hub().Subscribe()
		defer unsubscribe()
		observability.ProgressSubscribers.Inc()
		defer observability.ProgressSubscribers.Dec()

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case ev, open := <-events:
				if !open {
					return
				}
				if err := writer.WriteEvent(ev); err != nil {
					slog.Info("SSE client disconnected", "batchId", run.ID)
					return
				}
			case <-keepAlive.C:
				if err := writer.WriteKeepAlive(); err != nil {
					return
				}
			case <-c.Request.Context().Done():
				return
			}
		}
	}
}
