// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability holds the forge service's prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesTotal counts batch runs by outcome ("completed", "error").
	BatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_batches_total",
		Help: "Total batch runs by outcome",
	}, []string{"outcome"})

	// JobsTotal counts individual jobs by outcome ("completed", "error").
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_jobs_total",
		Help: "Total jobs processed by outcome",
	}, []string{"outcome"})

	// BatchDuration tracks whole-batch wall time.
	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forge_batch_duration_seconds",
		Help:    "Batch duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~400s
	})

	// PhaseDuration tracks per-phase wall time.
	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forge_phase_duration_seconds",
		Help:    "Phase duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"phase"})

	// JobStageDuration tracks per-stage latency within a job.
	JobStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forge_job_stage_duration_seconds",
		Help:    "Job stage duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~160s
	}, []string{"stage"})

	// BackupsTotal counts snapshot operations by outcome.
	BackupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_backups_total",
		Help: "Total backup snapshots by outcome",
	}, []string{"outcome"})

	// TeardownWarnings counts provider failures during teardown.
	TeardownWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forge_teardown_warnings_total",
		Help: "Total provider failures logged during teardown",
	})

	// ProgressSubscribers gauges live progress stream consumers.
	ProgressSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forge_progress_subscribers",
		Help: "Currently connected progress stream consumers",
	})
)
