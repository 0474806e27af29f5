// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/huddleeco/siteforge/services/forge/datatypes"
)

var (
	rootCmd = &cobra.Command{
		Use:   "siteforge",
		Short: "A CLI to manage the SiteForge batch generation service",
		Long: `SiteForge generates complete web properties (public site, admin
panel, companion app) in batch and deploys them through the configured
providers. This CLI talks to a running forge service.`,
	}

	submitCmd = &cobra.Command{
		Use:   "submit [request.json]",
		Short: "Submits a batch request file and optionally streams its progress",
		Args:  cobra.ExactArgs(1),
		Run:   runSubmitCommand,
	}
	statusCmd = &cobra.Command{
		Use:   "status [batchId]",
		Short: "Shows the current state or final summary of a batch",
		Args:  cobra.ExactArgs(1),
		Run:   runStatusCommand,
	}
	watchCmd = &cobra.Command{
		Use:   "watch [batchId]",
		Short: "Streams a batch's progress events until it completes",
		Args:  cobra.ExactArgs(1),
		Run:   runWatchCommand,
	}

	resolveCmd = &cobra.Command{
		Use:   "resolve [module...]",
		Short: "Resolves a module list to its full dependency-ordered bundle",
		Args:  cobra.MinimumNArgs(1),
		Run:   runResolveCommand,
	}
	suggestCmd = &cobra.Command{
		Use:   "suggest",
		Short: "Suggests an admin tier for an industry and description",
		Run:   runSuggestCommand,
	}

	backupCmd = &cobra.Command{
		Use:   "backup [project]",
		Short: "Snapshots a generated project before risky changes",
		Args:  cobra.ExactArgs(1),
		Run:   runBackupCommand,
	}
	backupsCmd = &cobra.Command{
		Use:   "backups [project]",
		Short: "Lists a project's backups, newest first",
		Args:  cobra.ExactArgs(1),
		Run:   runListBackupsCommand,
	}
	restoreCmd = &cobra.Command{
		Use:   "restore [backupId]",
		Short: "Restores a backup over the current project state",
		Args:  cobra.ExactArgs(1),
		Run:   runRestoreCommand,
	}
	teardownCmd = &cobra.Command{
		Use:   "teardown [project]",
		Short: "Removes a project's local artifacts and provider resources",
		Args:  cobra.ExactArgs(1),
		Run:   runTeardownCommand,
	}

	serverURL      string
	watchOnSubmit  bool
	backupReason   string
	suggestIndust  string
	suggestDesc    string
	restoreSafety  bool
	teardownBackup bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server",
		"http://localhost:8090", "Base URL of the forge service")

	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().BoolVar(&watchOnSubmit, "watch", false,
		"Stream progress events after submitting")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(suggestCmd)
	suggestCmd.Flags().StringVar(&suggestIndust, "industry", "", "Business industry (e.g. restaurant, ecommerce)")
	suggestCmd.Flags().StringVar(&suggestDesc, "description", "", "Free-text business description")

	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().StringVar(&backupReason, "reason", "manual", "Why the backup is being taken")
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().BoolVar(&restoreSafety, "safety", true,
		"Take a safety backup of the current state before restoring")
	rootCmd.AddCommand(teardownCmd)
	teardownCmd.Flags().BoolVar(&teardownBackup, "backup", true,
		"Back the project up before tearing it down")
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}

// postJSON sends body to path and decodes the response into out when
// the status matches want.
func postJSON(path string, body, out any, want int) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient().Post(serverURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("could not reach the forge service at %s: %w", serverURL, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out, want)
}

func getJSON(path string, out any) error {
	resp, err := httpClient().Get(serverURL + path)
	if err != nil {
		return fmt.Errorf("could not reach the forge service at %s: %w", serverURL, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out, http.StatusOK)
}

func decodeResponse(resp *http.Response, out any, want int) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != want {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func runSubmitCommand(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatalf("Error reading the request file: %v", err)
	}
	var req datatypes.BatchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Fatalf("Error parsing the request file: %v", err)
	}

	var accepted struct {
		BatchID string `json:"batchId"`
	}
	if err := postJSON("/v1/batches", req, &accepted, http.StatusAccepted); err != nil {
		log.Fatalf("Error submitting the batch: %v", err)
	}
	fmt.Printf("Batch accepted: %s (%d jobs)\n", accepted.BatchID, len(req.Jobs))

	if watchOnSubmit {
		streamEvents(accepted.BatchID)
	} else {
		fmt.Printf("Follow along with: siteforge watch %s\n", accepted.BatchID)
	}
}

func runStatusCommand(cmd *cobra.Command, args []string) {
	var status struct {
		BatchID string                  `json:"batchId"`
		Done    bool                    `json:"done"`
		Jobs    []datatypes.JobState    `json:"jobs"`
		Summary *datatypes.BatchSummary `json:"summary"`
	}
	if err := getJSON("/v1/batches/"+args[0], &status); err != nil {
		log.Fatalf("Error: %v", err)
	}

	if status.Done && status.Summary != nil {
		printSummary(*status.Summary)
		return
	}
	fmt.Printf("Batch %s is still running:\n", status.BatchID)
	for _, job := range status.Jobs {
		fmt.Printf("  %-24s %-12s %3d%%  %s\n", job.Name, job.Status, job.Progress, job.Step)
	}
}

func runWatchCommand(cmd *cobra.Command, args []string) {
	streamEvents(args[0])
}

// streamEvents follows the SSE stream and prints one line per event.
// The service closes the stream when the batch completes.
func streamEvents(batchID string) {
	// No client timeout here; large batches stream for minutes.
	resp, err := http.Get(serverURL + "/v1/batches/" + batchID + "/events")
	if err != nil {
		log.Fatalf("Could not open the event stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Event stream rejected: HTTP %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event datatypes.ProgressEvent
		if err := json.Unmarshal([]byte(line[len("data: "):]), &event); err != nil {
			continue
		}
		printEvent(event)
		if event.Type == datatypes.EventBatchComplete {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Event stream error: %v", err)
	}
}

func printEvent(event datatypes.ProgressEvent) {
	switch event.Type {
	case datatypes.EventBatchStart:
		fmt.Printf("Batch %s started with %d jobs\n", event.BatchID, event.Total)
	case datatypes.EventPhase:
		fmt.Printf("--- Phase: %s ---\n", event.Phase)
	case datatypes.EventProgress:
		if event.Job != nil {
			job := event.Job
			fmt.Printf("  %-24s %-12s %3d%%  %s\n", job.Name, job.Status, job.Progress, job.Step)
			if job.Status == datatypes.JobError {
				fmt.Printf("    error: %s\n", job.Error)
			}
		}
	case datatypes.EventBatchComplete:
		if event.Summary != nil {
			printSummary(*event.Summary)
		}
	}
}

func printSummary(summary datatypes.BatchSummary) {
	fmt.Printf("\nBatch %s complete: %d/%d succeeded, %d failed (%.1fs)\n",
		summary.BatchID, summary.Succeeded, summary.Total, summary.Failed,
		float64(summary.ElapsedMS)/1000.0)
	for _, result := range summary.Results {
		marker := "ok "
		if result.Status != datatypes.JobCompleted {
			marker = "ERR"
		}
		fmt.Printf("  [%s] %s\n", marker, result.Name)
		for kind, url := range result.URLs {
			fmt.Printf("        %s: %s\n", kind, url)
		}
		if result.Error != "" {
			fmt.Printf("        error: %s\n", result.Error)
		}
	}
}

func runResolveCommand(cmd *cobra.Command, args []string) {
	var resolved struct {
		Modules []string `json:"modules"`
		Dropped []string `json:"dropped"`
	}
	request := map[string][]string{"modules": args}
	if err := postJSON("/v1/modules/resolve", request, &resolved, http.StatusOK); err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Println("Resolved bundle (dependency order):")
	for i, name := range resolved.Modules {
		fmt.Printf("  %d. %s\n", i+1, name)
	}
	if len(resolved.Dropped) > 0 {
		fmt.Printf("Dropped (unknown): %s\n", strings.Join(resolved.Dropped, ", "))
	}
}

func runSuggestCommand(cmd *cobra.Command, args []string) {
	request := map[string]string{
		"industry":    suggestIndust,
		"description": suggestDesc,
	}
	var suggestion datatypes.TierSuggestion
	if err := postJSON("/v1/tiers/suggest", request, &suggestion, http.StatusOK); err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Printf("Suggested tier: %s (%s)\n", suggestion.Tier, suggestion.Source)
	if suggestion.Reason != "" {
		fmt.Printf("Reason: %s\n", suggestion.Reason)
	}
	if len(suggestion.Modules) > 0 {
		fmt.Printf("Modules: %s\n", strings.Join(suggestion.Modules, ", "))
	}
}

func runBackupCommand(cmd *cobra.Command, args []string) {
	request := map[string]string{"reason": backupReason}
	var record datatypes.BackupRecord
	if err := postJSON("/v1/projects/"+args[0]+"/backups", request, &record, http.StatusCreated); err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Printf("Backup %s created (%d bytes)\n", record.ID, record.Size)
}

func runListBackupsCommand(cmd *cobra.Command, args []string) {
	var listing struct {
		Backups []datatypes.BackupRecord `json:"backups"`
	}
	if err := getJSON("/v1/projects/"+args[0]+"/backups", &listing); err != nil {
		log.Fatalf("Error: %v", err)
	}
	if len(listing.Backups) == 0 {
		fmt.Println("No backups found.")
		return
	}
	for _, record := range listing.Backups {
		fmt.Printf("%s  %s  %-16s  %d bytes\n",
			record.ID, record.Timestamp.Format("2006-01-02 15:04:05"), record.Reason, record.Size)
	}
}

func runRestoreCommand(cmd *cobra.Command, args []string) {
	request := map[string]bool{"safety": restoreSafety}
	if err := postJSON("/v1/backups/"+args[0]+"/restore", request, nil, http.StatusOK); err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Println("Restore complete.")
}

func runTeardownCommand(cmd *cobra.Command, args []string) {
	path := fmt.Sprintf("/v1/projects/%s?backup=%t", args[0], teardownBackup)
	request, err := http.NewRequest(http.MethodDelete, serverURL+path, nil)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	resp, err := httpClient().Do(request)
	if err != nil {
		log.Fatalf("Could not reach the forge service at %s: %v", serverURL, err)
	}
	defer resp.Body.Close()

	var report datatypes.TeardownReport
	if err := decodeResponse(resp, &report, http.StatusOK); err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Printf("Teardown of %q complete.\n", args[0])
	if len(report.Warnings) > 0 {
		fmt.Println("Warnings:")
		for _, warning := range report.Warnings {
			fmt.Printf("  - %s\n", warning)
		}
	}
}
