// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/huddleeco/siteforge/services/forge/backup"
	"github.com/huddleeco/siteforge/services/forge/batch"
	"github.com/huddleeco/siteforge/services/forge/handlers"
	"github.com/huddleeco/siteforge/services/forge/modules"
	"github.com/huddleeco/siteforge/services/forge/store"
	"github.com/huddleeco/siteforge/services/forge/tiers"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Orchestrator *batch.Orchestrator
	Runs         *handlers.Runs
	Registry     *modules.Registry
	Resolver     *modules.Resolver
	Engine       *tiers.Engine
	Backups      *backup.Manager
	Teardown     *backup.Teardown
	Results      *store.ResultStore
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		batches := v1.Group("/batches")
		{
			batches.POST("", handlers.HandleCreateBatch(deps.Orchestrator, deps.Runs))
			batches.GET("/ws", handlers.HandleBatchWebSocket(deps.Runs))
			batches.GET("/:batchId", handlers.HandleGetBatch(deps.Runs, deps.Results))
			batches.GET("/:batchId/events", handlers.HandleBatchEvents(deps.Runs))
		}

		mods := v1.Group("/modules")
		{
			mods.GET("", handlers.HandleListModules(deps.Registry))
			mods.POST("/resolve", handlers.HandleResolveModules(deps.Resolver))
			mods.POST("/reload", handlers.HandleReloadModules(deps.Registry))
		}

		tierGroup := v1.Group("/tiers")
		{
			tierGroup.GET("", handlers.HandleListTiers(deps.Engine))
			tierGroup.POST("/suggest", handlers.HandleSuggestTier(deps.Engine))
		}

		projects := v1.Group("/projects")
		{
			projects.POST("/:project/backups", handlers.HandleCreateBackup(deps.Backups))
			projects.GET("/:project/backups", handlers.HandleListBackups(deps.Backups))
			projects.DELETE("/:project", handlers.HandleTeardown(deps.Teardown))
		}
		v1.POST("/backups/:id/restore", handlers.HandleRestoreBackup(deps.Backups))
	}
}
