// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/huddleeco/siteforge/services/forge/modules"
)

// ResolveRequest asks for a module list's transitive expansion.
type ResolveRequest struct {
	Modules []string `json:"modules" binding:"required,min=1"`
}

// HandleListModules returns every registered module manifest in
// deterministic order.
func HandleListModules(registry *modules.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"modules": registry.All()})
	}
}

// HandleResolveModules expands a requested module list with its
// transitive dependencies in dependency order. Unknown names are
// dropped, not failed, and reported back to the caller.
func HandleResolveModules(resolver *modules.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		resolved, dropped := resolver.Resolve(req.Modules)
		c.JSON(http.StatusOK, gin.H{
			"modules": resolved,
			"dropped": dropped,
		})
	}
}

// HandleReloadModules re-reads the manifest directory on demand.
func HandleReloadModules(registry *modules.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := registry.Reload(); err != nil {
			slog.Error("module registry reload failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"modules": registry.Len()})
	}
}
