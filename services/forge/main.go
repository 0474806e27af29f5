// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/huddleeco/siteforge/pkg/logging"
	"github.com/huddleeco/siteforge/services/forge/backup"
	"github.com/huddleeco/siteforge/services/forge/batch"
	"github.com/huddleeco/siteforge/services/forge/config"
	"github.com/huddleeco/siteforge/services/forge/generator"
	"github.com/huddleeco/siteforge/services/forge/handlers"
	"github.com/huddleeco/siteforge/services/forge/modules"
	"github.com/huddleeco/siteforge/services/forge/providers"
	"github.com/huddleeco/siteforge/services/forge/routes"
	"github.com/huddleeco/siteforge/services/forge/store"
	"github.com/huddleeco/siteforge/services/forge/tiers"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("forge-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func buildEngine(cfg config.ForgeConfig, resolver *modules.Resolver, logger *logging.Logger) (*tiers.Engine, error) {
	tierCfg := tiers.DefaultTierConfig()
	if cfg.Paths.TierConfig != "" {
		loaded, err := tiers.LoadTierConfig(cfg.Paths.TierConfig)
		if err != nil {
			return nil, err
		}
		tierCfg = loaded
	}
	detection := tiers.DefaultDetectionConfig()
	if cfg.Paths.Detection != "" {
		loaded, err := tiers.LoadDetectionConfig(cfg.Paths.Detection)
		if err != nil {
			return nil, err
		}
		detection = loaded
	}
	return tiers.NewEngine(tierCfg, detection, resolver, logger)
}

func main() {
	configPath := os.Getenv("FORGE_CONFIG")
	var cfg config.ForgeConfig
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		err = config.Load()
		cfg = config.Global
	}
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.New(logging.Config{
		Service: "forge",
		LogDir:  cfg.Paths.LogDir,
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// --- Init the tracer ---
	if cfg.Telemetry.Enabled {
		cleanup, err := initTracer(cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			log.Fatalf("failed to setup the OTLP tracer: %v", err)
		}
		defer cleanup(context.Background())
	}

	if err := modules.SeedManifestDir(cfg.Paths.ManifestDir); err != nil {
		log.Fatalf("failed to seed module manifests: %v", err)
	}
	registry, err := modules.NewRegistry(cfg.Paths.ManifestDir, logger)
	if err != nil {
		log.Fatalf("failed to load module manifests: %v", err)
	}
	resolver := modules.NewResolver(registry, logger)

	// Hot-reload manifests when an operator edits the directory.
	// Watch blocks until stopped, so it gets its own goroutine.
	watchStop := make(chan struct{})
	defer close(watchStop)
	go func() {
		if err := registry.Watch(watchStop); err != nil {
			logger.Warn("manifest watch unavailable", "error", err.Error())
		}
	}()

	engine, err := buildEngine(cfg, resolver, logger)
	if err != nil {
		log.Fatalf("failed to build tier engine: %v", err)
	}

	if cfg.Providers.Mode != "memory" {
		log.Fatalf("unknown provider mode %q", cfg.Providers.Mode)
	}
	git := providers.NewMemoryGitHost()
	compute := providers.NewMemoryComputeHost()
	dns := providers.NewMemoryDNSHost()

	backups, err := backup.NewManager(backup.Config{
		ProjectsRoot: cfg.Paths.WorkDir,
		BackupsRoot:  cfg.Paths.BackupsRoot,
		RetentionCap: cfg.Backup.RetentionCap,
	}, logger)
	if err != nil {
		log.Fatalf("failed to initialize backup manager: %v", err)
	}
	teardown := backup.NewTeardown(backups, git, compute, dns, logger)

	results, err := store.NewResultStore(store.DefaultConfig(cfg.Paths.DataDir))
	if err != nil {
		log.Fatalf("failed to open results store: %v", err)
	}
	defer results.Close()

	orchCfg := batch.DefaultConfig(cfg.Paths.WorkDir)
	orchCfg.BaseDomain = cfg.Providers.BaseDomain
	orchCfg.SettleDelay = time.Duration(cfg.Batch.SettleDelaySeconds) * time.Second
	orchCfg.InterItemDelay = time.Duration(cfg.Batch.InterItemDelaySeconds) * time.Second
	orchCfg.Phase1Concurrency = cfg.Batch.Phase1Concurrency
	orchCfg.BuildPollInterval = time.Duration(cfg.Batch.BuildPollSeconds) * time.Second
	orchCfg.BuildTimeout = time.Duration(cfg.Batch.BuildTimeoutSeconds) * time.Second
	orchestrator := batch.New(orchCfg, batch.Deps{
		Generator: generator.New(registry, engine, logger),
		Git:       git,
		Compute:   compute,
		DNS:       dns,
		Backups:   backups,
		Teardown:  teardown,
		Results:   results,
		Logger:    logger,
	})

	router := gin.Default()
	router.Use(otelgin.Middleware("forge-service"))

	routes.SetupRoutes(router, routes.Deps{
		Orchestrator: orchestrator,
		Runs:         handlers.NewRuns(),
		Registry:     registry,
		Resolver:     resolver,
		Engine:       engine,
		Backups:      backups,
		Teardown:     teardown,
		Results:      results,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Println("Starting the forge server on ", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
