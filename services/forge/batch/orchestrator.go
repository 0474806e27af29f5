// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package batch is the top-level driver: it consumes a batch of job
// descriptors, runs Phase 1 (parallel generate and deploy) and
// Phase 2 (rate-limited sequential companion deployment), tracks
// per-job state, isolates per-job failures, and persists final
// results.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/huddleeco/siteforge/pkg/logging"
	"github.com/huddleeco/siteforge/services/forge/backup"
	"github.com/huddleeco/siteforge/services/forge/datatypes"
	"github.com/huddleeco/siteforge/services/forge/generator"
	"github.com/huddleeco/siteforge/services/forge/observability"
	"github.com/huddleeco/siteforge/services/forge/progress"
	"github.com/huddleeco/siteforge/services/forge/providers"
	"github.com/huddleeco/siteforge/services/forge/store"
)

// Artifact URL kinds recorded on a job state.
const (
	urlSite      = "site"
	urlAdmin     = "admin"
	urlCompanion = "companion"
)

// ErrEmptyBatch rejects a request with no jobs before any work starts.
var ErrEmptyBatch = errors.New("batch: request has no jobs")

// Config tunes orchestrator scheduling.
type Config struct {
	// WorkDir is where generated project artifacts are written, one
	// directory per sanitized project name.
	WorkDir string

	// BaseDomain is the DNS zone generated sites are wired under.
	BaseDomain string

	// SettleDelay runs once before Phase 2 so Phase 1 provider
	// operations can finish propagating.
	SettleDelay time.Duration

	// InterItemDelay is the minimum spacing between consecutive
	// Phase 2 companion deployments. External compute providers
	// enforce per-minute project-creation limits; this is the only
	// rate-limited section.
	InterItemDelay time.Duration

	// Phase1Concurrency caps parallel Phase 1 jobs. Zero means
	// unbounded, which callers submitting small batches rely on.
	Phase1Concurrency int

	// BuildPollInterval is the compute build status poll spacing.
	BuildPollInterval time.Duration

	// BuildTimeout bounds the wait for one service build.
	BuildTimeout time.Duration
}

// DefaultConfig returns production scheduling defaults.
func DefaultConfig(workDir string) Config {
	return Config{
		WorkDir:           workDir,
		BaseDomain:        "huddle.site",
		SettleDelay:       10 * time.Second,
		InterItemDelay:    15 * time.Second,
		Phase1Concurrency: 0,
		BuildPollInterval: 2 * time.Second,
		BuildTimeout:      3 * time.Minute,
	}
}

// Deps are the orchestrator's collaborators. Generator, Git, Compute,
// DNS, and Teardown are required when the corresponding request flags
// are used; Results may be nil to skip persistence (tests).
type Deps struct {
	Generator *generator.Generator
	Git       providers.GitHost
	Compute   providers.ComputeHost
	DNS       providers.DNSHost
	Backups   *backup.Manager
	Teardown  *backup.Teardown
	Results   *store.ResultStore
	Logger    *logging.Logger

	// Pacer overrides the Phase 2 rate limiter; nil uses a token
	// bucket built from Config.InterItemDelay.
	Pacer Pacer

	// Sleep overrides the settle delay wait; nil uses a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Orchestrator drives batches. Stateless between batches; every
// per-batch value lives on the Run object so concurrent batches never
// share mutable state.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *logging.Logger
}

// New creates an Orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepCtx
	}
	return &Orchestrator{cfg: cfg, deps: deps, logger: deps.Logger}
}

// Run is the per-batch context object: job descriptors, the state
// tracker, the progress hub, and Phase 1 bookkeeping. It is created
// by Start and owned by the executing goroutine; readers use the
// accessor methods.
type Run struct {
	ID      string
	jobs    []datatypes.JobDescriptor
	request datatypes.BatchRequest
	tracker *progress.Tracker
	hub     *progress.Hub

	started time.Time

	mu       sync.Mutex
	jobTimes map[string]jobTiming
	deployed map[string]deployInfo
	summary  *datatypes.BatchSummary
}

type jobTiming struct {
	started   time.Time
	completed time.Time
}

type deployInfo struct {
	projectID string
}

// Hub returns the run's progress channel for subscription.
func (r *Run) Hub() *progress.Hub { return r.hub }

// States returns job state snapshots in submission order.
func (r *Run) States() []datatypes.JobState { return r.tracker.All() }

// Summary returns the final accounting once the batch has completed.
func (r *Run) Summary() (datatypes.BatchSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.summary == nil {
		return datatypes.BatchSummary{}, false
	}
	return *r.summary, true
}

// Start validates the request, builds the per-batch Run, and executes
// it on a new goroutine. The hub replays history on subscribe, so
// consumers attached after Start still see the full stream from
// batch-start.
func (o *Orchestrator) Start(ctx context.Context, req datatypes.BatchRequest) (*Run, error) {
	run, err := o.newRun(req)
	if err != nil {
		return nil, err
	}
	go o.Execute(ctx, run)
	return run, nil
}

// Execute runs the batch to completion synchronously: clean-first,
// Phase 1, Phase 2, persistence, batch-complete, hub close. Exposed
// for tests and the CLI; HTTP callers go through Start.
func (o *Orchestrator) Execute(ctx context.Context, run *Run) datatypes.BatchSummary {
	defer run.hub.Close()

	run.hub.Publish(datatypes.ProgressEvent{
		Type:    datatypes.EventBatchStart,
		BatchID: run.ID,
		Total:   len(run.jobs),
	})

	if run.request.CleanFirst {
		o.cleanFirst(ctx, run)
	}

	o.phaseOne(ctx, run)
	o.phaseTwo(ctx, run)

	summary := o.finish(run)
	run.hub.Publish(datatypes.ProgressEvent{
		Type:    datatypes.EventBatchComplete,
		BatchID: run.ID,
		Total:   summary.Total,
		Summary: &summary,
	})
	return summary
}

func (o *Orchestrator) newRun(req datatypes.BatchRequest) (*Run, error) {
	if len(req.Jobs) == 0 {
		return nil, ErrEmptyBatch
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}

	custom := make(map[string]*datatypes.Customization, len(req.Customizations))
	for i := range req.Customizations {
		custom[req.Customizations[i].ID] = &req.Customizations[i]
	}

	seen := make(map[string]bool, len(req.Jobs))
	jobs := make([]datatypes.JobDescriptor, 0, len(req.Jobs))
	for _, spec := range req.Jobs {
		if seen[spec.ID] {
			return nil, fmt.Errorf("batch: duplicate job id %q", spec.ID)
		}
		seen[spec.ID] = true
		jobs = append(jobs, spec.Descriptor(req.Deploy, custom[spec.ID]))
	}

	return &Run{
		ID:       uuid.New().String(),
		jobs:     jobs,
		request:  req,
		tracker:  progress.NewTracker(jobs),
		hub:      progress.NewHub(),
		started:  time.Now(),
		jobTimes: make(map[string]jobTiming, len(jobs)),
		deployed: make(map[string]deployInfo, len(jobs)),
	}, nil
}

// cleanFirst backs up and tears down each job's existing resources
// before regeneration. Every failure here is a warning; regeneration
// proceeds regardless.
func (o *Orchestrator) cleanFirst(ctx context.Context, run *Run) {
	if o.deps.Teardown == nil {
		o.logger.Warn("cleanFirst requested but no teardown coordinator is wired", "batch", run.ID)
		return
	}
	run.hub.Publish(datatypes.ProgressEvent{
		Type:    datatypes.EventPhase,
		BatchID: run.ID,
		Phase:   "clean",
		Message: "removing previous deployments",
	})
	for _, job := range run.jobs {
		report, err := o.deps.Teardown.Run(ctx, job.Name, true)
		switch {
		case backup.IsNotFound(err):
			// Nothing deployed yet for this job.
		case err != nil:
			o.logger.Warn("clean-first teardown failed", "batch", run.ID, "job", job.ID, "error", err.Error())
		case len(report.Warnings) > 0:
			observability.TeardownWarnings.Add(float64(len(report.Warnings)))
			o.logger.Warn("clean-first teardown had warnings", "batch", run.ID, "job", job.ID, "warnings", len(report.Warnings))
		}
	}
}

// phaseOne runs every job concurrently through generation and, when
// requested, main site and admin deployment. A job's failure is
// caught at the task boundary and never affects other jobs.
func (o *Orchestrator) phaseOne(ctx context.Context, run *Run) {
	run.hub.Publish(datatypes.ProgressEvent{
		Type:    datatypes.EventPhase,
		BatchID: run.ID,
		Phase:   "generate",
		Message: "entering generation phase",
	})
	phaseStart := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	if o.cfg.Phase1Concurrency > 0 {
		g.SetLimit(o.cfg.Phase1Concurrency)
	}
	for _, job := range run.jobs {
		job := job
		g.Go(func() error {
			o.runJob(ctx, run, job)
			// Job errors are recorded on the job, never propagated
			// to the group.
			return nil
		})
	}
	_ = g.Wait()

	observability.PhaseDuration.WithLabelValues("generate").Observe(time.Since(phaseStart).Seconds())
}

// runJob drives one job through its stages sequentially. Any stage
// error marks the job failed and stops the pipeline for that job
// only.
func (o *Orchestrator) runJob(ctx context.Context, run *Run, job datatypes.JobDescriptor) {
	run.mu.Lock()
	run.jobTimes[job.ID] = jobTiming{started: time.Now()}
	run.mu.Unlock()

	stages := []struct {
		name string
		fn   func(context.Context, *Run, datatypes.JobDescriptor, *generator.Output) (*generator.Output, error)
	}{
		{"generate", o.stageGenerate},
		{"publish", o.stagePublish},
		{"deploy", o.stageDeploy},
		{"wire-domain", o.stageWireDomain},
	}

	var out *generator.Output
	for _, stage := range stages {
		stageStart := time.Now()
		next, err := stage.fn(ctx, run, job, out)
		observability.JobStageDuration.WithLabelValues(stage.name).Observe(time.Since(stageStart).Seconds())
		if err != nil {
			o.failJob(run, job.ID, fmt.Sprintf("%s: %v", stage.name, err))
			return
		}
		out = next
	}

	if !job.Deploy {
		// No companion phase; the job is done now.
		o.completeJob(run, job.ID)
	}
}

func (o *Orchestrator) stageGenerate(_ context.Context, run *Run, job datatypes.JobDescriptor, _ *generator.Output) (*generator.Output, error) {
	o.progressJob(run, job.ID, "generating site", 10)

	out, err := o.deps.Generator.Generate(job)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(o.cfg.WorkDir, backup.SanitizeName(job.Name))
	if err := o.deps.Generator.WriteTo(dir, out); err != nil {
		return nil, err
	}

	o.progressJob(run, job.ID, "code written", 30)
	return out, nil
}

func (o *Orchestrator) stagePublish(ctx context.Context, run *Run, job datatypes.JobDescriptor, out *generator.Output) (*generator.Output, error) {
	if !job.Deploy {
		return out, nil
	}
	o.progressJob(run, job.ID, "publishing repositories", 45)

	sanitized := backup.SanitizeName(job.Name)
	if _, err := o.deps.Git.Push(ctx, sanitized, out.Files[generator.ArtifactSite]); err != nil {
		return nil, err
	}
	if _, err := o.deps.Git.Push(ctx, sanitized+"-admin", out.Files[generator.ArtifactAdmin]); err != nil {
		return nil, err
	}

	o.progressJob(run, job.ID, "repositories published", 55)
	return out, nil
}

func (o *Orchestrator) stageDeploy(ctx context.Context, run *Run, job datatypes.JobDescriptor, out *generator.Output) (*generator.Output, error) {
	if !job.Deploy {
		return out, nil
	}
	o.progressJob(run, job.ID, "creating compute services", 65)

	sanitized := backup.SanitizeName(job.Name)
	project, err := o.deps.Compute.CreateProject(ctx, sanitized)
	if err != nil {
		return nil, err
	}
	run.mu.Lock()
	run.deployed[job.ID] = deployInfo{projectID: project.ID}
	run.mu.Unlock()

	siteRepo := providers.RepoRef{Name: sanitized}
	siteSvc, err := o.deps.Compute.CreateService(ctx, project.ID, "site", siteRepo)
	if err != nil {
		return nil, err
	}
	o.progressJob(run, job.ID, "waiting for site build", 75)
	if err := o.awaitBuild(ctx, siteSvc.ID); err != nil {
		return nil, err
	}
	_ = run.tracker.SetURL(job.ID, urlSite, siteSvc.URL)

	adminRepo := providers.RepoRef{Name: sanitized + "-admin"}
	adminSvc, err := o.deps.Compute.CreateService(ctx, project.ID, "admin", adminRepo)
	if err != nil {
		return nil, err
	}
	o.progressJob(run, job.ID, "waiting for admin build", 85)
	if err := o.awaitBuild(ctx, adminSvc.ID); err != nil {
		return nil, err
	}
	_ = run.tracker.SetURL(job.ID, urlAdmin, adminSvc.URL)

	return out, nil
}

func (o *Orchestrator) stageWireDomain(ctx context.Context, run *Run, job datatypes.JobDescriptor, out *generator.Output) (*generator.Output, error) {
	if !job.Deploy {
		return out, nil
	}
	o.progressJob(run, job.ID, "wiring domain", 90)

	sanitized := backup.SanitizeName(job.Name)
	state, _ := run.tracker.Get(job.ID)
	if _, err := o.deps.DNS.UpsertRecord(ctx, providers.DNSRecord{
		Name:  sanitized,
		Type:  "CNAME",
		Value: state.URLs[urlSite],
	}); err != nil {
		return nil, err
	}

	_ = run.tracker.SetURL(job.ID, urlSite, fmt.Sprintf("https://%s.%s", sanitized, o.cfg.BaseDomain))
	o.progressJob(run, job.ID, "main deployment complete", 92)
	return out, nil
}

// phaseTwo deploys each successful job's companion app one at a time,
// paced by the injected rate limiter, after an initial settle delay.
// It only runs when deployment was requested and Phase 1 produced at
// least one survivor.
func (o *Orchestrator) phaseTwo(ctx context.Context, run *Run) {
	if !run.request.Deploy {
		return
	}

	survivors := o.phaseOneSurvivors(run)
	if len(survivors) == 0 {
		return
	}

	run.hub.Publish(datatypes.ProgressEvent{
		Type:    datatypes.EventPhase,
		BatchID: run.ID,
		Phase:   "companion-deploy",
		Message: "entering companion-deploy phase",
	})
	phaseStart := time.Now()

	if o.cfg.SettleDelay > 0 {
		if err := o.deps.Sleep(ctx, o.cfg.SettleDelay); err != nil {
			o.logger.Warn("settle delay interrupted", "batch", run.ID, "error", err.Error())
		}
	}

	pacer := o.deps.Pacer
	if pacer == nil {
		pacer = NewRatePacer(o.cfg.InterItemDelay)
	}

	for _, job := range survivors {
		if err := pacer.Wait(ctx); err != nil {
			o.failJob(run, job.ID, fmt.Sprintf("companion-deploy: %v", err))
			continue
		}
		if err := o.deployCompanion(ctx, run, job); err != nil {
			o.failJob(run, job.ID, fmt.Sprintf("companion-deploy: %v", err))
			continue
		}
		o.completeJob(run, job.ID)
	}

	observability.PhaseDuration.WithLabelValues("companion-deploy").Observe(time.Since(phaseStart).Seconds())
}

// phaseOneSurvivors returns, in submission order, the jobs that are
// still in progress (not failed) after Phase 1.
func (o *Orchestrator) phaseOneSurvivors(run *Run) []datatypes.JobDescriptor {
	var out []datatypes.JobDescriptor
	for _, job := range run.jobs {
		state, ok := run.tracker.Get(job.ID)
		if ok && state.Status == datatypes.JobInProgress {
			out = append(out, job)
		}
	}
	return out
}

func (o *Orchestrator) deployCompanion(ctx context.Context, run *Run, job datatypes.JobDescriptor) error {
	o.progressJob(run, job.ID, "deploying companion app", 95)

	sanitized := backup.SanitizeName(job.Name)
	companionRepo := sanitized + "-companion"

	dir := filepath.Join(o.cfg.WorkDir, sanitized, generator.ArtifactCompanion)
	files, err := readTree(dir)
	if err != nil {
		return err
	}
	repo, err := o.deps.Git.Push(ctx, companionRepo, files)
	if err != nil {
		return err
	}

	run.mu.Lock()
	info := run.deployed[job.ID]
	run.mu.Unlock()
	if info.projectID == "" {
		return fmt.Errorf("no compute project recorded for job %s", job.ID)
	}

	svc, err := o.deps.Compute.CreateService(ctx, info.projectID, "companion", repo)
	if err != nil {
		return err
	}
	if err := o.awaitBuild(ctx, svc.ID); err != nil {
		return err
	}
	_ = run.tracker.SetURL(job.ID, urlCompanion, svc.URL)
	return nil
}

// awaitBuild polls the compute host until the build settles or the
// bounded wait expires.
func (o *Orchestrator) awaitBuild(ctx context.Context, serviceID string) error {
	interval := o.cfg.BuildPollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	timeout := o.cfg.BuildTimeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	deadline := time.Now().Add(timeout)

	for {
		status, err := o.deps.Compute.GetBuildStatus(ctx, serviceID)
		if err != nil {
			return err
		}
		switch status {
		case providers.BuildSucceeded:
			return nil
		case providers.BuildFailed:
			return fmt.Errorf("build failed for service %s", serviceID)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("build timed out for service %s after %s", serviceID, timeout)
		}
		if err := sleepCtx(ctx, interval); err != nil {
			return err
		}
	}
}

func (o *Orchestrator) progressJob(run *Run, jobID, step string, pct int) {
	state, err := run.tracker.Advance(jobID, step, pct)
	if err != nil {
		o.logger.Warn("progress update rejected", "batch", run.ID, "job", jobID, "error", err.Error())
		return
	}
	run.hub.Publish(datatypes.ProgressEvent{
		Type:    datatypes.EventProgress,
		BatchID: run.ID,
		Job:     &state,
	})
}

func (o *Orchestrator) completeJob(run *Run, jobID string) {
	state, err := run.tracker.Complete(jobID)
	if err != nil {
		o.logger.Warn("completion rejected", "batch", run.ID, "job", jobID, "error", err.Error())
		return
	}
	o.markDone(run, jobID)
	observability.JobsTotal.WithLabelValues("completed").Inc()
	run.hub.Publish(datatypes.ProgressEvent{
		Type:    datatypes.EventProgress,
		BatchID: run.ID,
		Job:     &state,
	})
}

func (o *Orchestrator) failJob(run *Run, jobID, message string) {
	state, err := run.tracker.Fail(jobID, message)
	if err != nil {
		o.logger.Warn("failure update rejected", "batch", run.ID, "job", jobID, "error", err.Error())
		return
	}
	o.markDone(run, jobID)
	observability.JobsTotal.WithLabelValues("error").Inc()
	o.logger.Warn("job failed", "batch", run.ID, "job", jobID, "error", message)
	run.hub.Publish(datatypes.ProgressEvent{
		Type:    datatypes.EventProgress,
		BatchID: run.ID,
		Job:     &state,
	})
}

func (o *Orchestrator) markDone(run *Run, jobID string) {
	run.mu.Lock()
	timing := run.jobTimes[jobID]
	timing.completed = time.Now()
	run.jobTimes[jobID] = timing
	run.mu.Unlock()
}

// finish computes the summary from settled job states, persists every
// result, and stores the summary on the run.
func (o *Orchestrator) finish(run *Run) datatypes.BatchSummary {
	elapsed := time.Since(run.started)
	summary := datatypes.BatchSummary{
		BatchID:   run.ID,
		ElapsedMS: elapsed.Milliseconds(),
	}

	for _, state := range run.tracker.All() {
		summary.Total++
		switch state.Status {
		case datatypes.JobCompleted:
			summary.Succeeded++
		default:
			// A job still pending or in progress at this point was
			// orphaned by cancellation; count it as failed.
			summary.Failed++
		}

		run.mu.Lock()
		timing := run.jobTimes[state.ID]
		run.mu.Unlock()

		result := datatypes.JobResult{
			JobID:       state.ID,
			BatchID:     run.ID,
			Name:        state.Name,
			Status:      state.Status,
			URLs:        state.URLs,
			Error:       state.Error,
			StartedAt:   timing.started,
			CompletedAt: timing.completed,
		}
		if !timing.started.IsZero() && !timing.completed.IsZero() {
			result.DurationMS = timing.completed.Sub(timing.started).Milliseconds()
		}
		summary.Results = append(summary.Results, result)

		if o.deps.Results != nil {
			if err := o.deps.Results.RecordJobResult(result); err != nil {
				o.logger.Error("failed to persist job result", "batch", run.ID, "job", state.ID, "error", err.Error())
			}
		}
	}

	if o.deps.Results != nil {
		if err := o.deps.Results.RecordBatchSummary(summary); err != nil {
			o.logger.Error("failed to persist batch summary", "batch", run.ID, "error", err.Error())
		}
	}

	outcome := "completed"
	if summary.Failed > 0 {
		outcome = "partial"
	}
	observability.BatchesTotal.WithLabelValues(outcome).Inc()
	observability.BatchDuration.Observe(elapsed.Seconds())
	o.logger.Info("batch finished",
		"batch", run.ID,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"elapsed_ms", summary.ElapsedMS,
	)

	run.mu.Lock()
	run.summary = &summary
	run.mu.Unlock()
	return summary
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// readTree loads a directory into the flat path-to-content map the
// git host consumes. Paths are slash-separated and relative to dir.
func readTree(dir string) (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
