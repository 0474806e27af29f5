// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/huddleeco/siteforge/services/forge/backup"
	"github.com/huddleeco/siteforge/services/forge/observability"
)

// BackupRequest names the reason a manual snapshot is being taken.
type BackupRequest struct {
	Reason string `json:"reason"`
}

// RestoreRequest controls restore behavior.
type RestoreRequest struct {
	// Safety takes a fresh snapshot of the current state before
	// restoring over it.
	Safety bool `json:"safety"`
}

// HandleCreateBackup snapshots a project's current artifacts.
func HandleCreateBackup(manager *backup.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		project := c.Param("project")
		var req BackupRequest
		// The body is optional; an empty reason becomes "manual".
		_ = c.ShouldBindJSON(&req)
		if req.Reason == "" {
			req.Reason = "manual"
		}

		record, err := manager.Backup(project, req.Reason)
		if err != nil {
			observability.BackupsTotal.WithLabelValues("error").Inc()
			if errors.Is(err, backup.ErrProjectNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			slog.Error("backup failed", "project", project, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "backup failed"})
			return
		}
		observability.BackupsTotal.WithLabelValues("completed").Inc()
		c.JSON(http.StatusCreated, record)
	}
}

// HandleListBackups returns a project's snapshots, newest first.
func HandleListBackups(manager *backup.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := manager.List(c.Param("project"))
		if err != nil {
			slog.Error("backup listing failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"backups": records})
	}
}

// HandleRestoreBackup restores a project from the named snapshot.
func HandleRestoreBackup(manager *backup.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		var req RestoreRequest
		_ = c.ShouldBindJSON(&req)

		if err := manager.Restore(id, req.Safety); err != nil {
			if errors.Is(err, backup.ErrUnknownBackup) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			slog.Error("restore failed", "backupId", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "restore failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"restored": id})
	}
}

// HandleTeardown deletes a project's resources everywhere: local
// artifacts, repositories, compute, DNS. Provider failures surface as
// warnings in the report, not errors. A backup query parameter of
// "false" skips the pre-teardown safety snapshot.
func HandleTeardown(teardown *backup.Teardown) gin.HandlerFunc {
	return func(c *gin.Context) {
		project := c.Param("project")
		backupFirst := c.DefaultQuery("backup", "true") != "false"

		report, err := teardown.Run(c.Request.Context(), project, backupFirst)
		if err != nil {
			if backup.IsNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			slog.Error("teardown failed", "project", project, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "teardown failed"})
			return
		}
		if len(report.Warnings) > 0 {
			observability.TeardownWarnings.Add(float64(len(report.Warnings)))
		}
		c.JSON(http.StatusOK, report)
	}
}
