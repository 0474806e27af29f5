// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
)

type ForgeConfig struct {
	// Server: HTTP listener settings
	Server ServerConfig `yaml:"server"`

	// Paths: filesystem layout for artifacts, backups, and config data
	Paths PathsConfig `yaml:"paths"`

	// Batch: orchestrator scheduling knobs
	Batch BatchConfig `yaml:"batch"`

	// Backup: snapshot retention
	Backup BackupConfig `yaml:"backup"`

	// Providers: external provider selection
	Providers ProvidersConfig `yaml:"providers"`

	// Telemetry: tracing toggle
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Host string `yaml:"host"` // e.g. 0.0.0.0
	Port int    `yaml:"port"` // e.g. 8090
}

type PathsConfig struct {
	WorkDir     string `yaml:"work_dir"`     // generated project artifacts
	BackupsRoot string `yaml:"backups_root"` // snapshots and index
	ManifestDir string `yaml:"manifest_dir"` // module manifest yaml files
	TierConfig  string `yaml:"tier_config"`  // tier bundle yaml, empty = built-in defaults
	Detection   string `yaml:"detection"`    // industry/keyword tables, empty = built-in defaults
	DataDir     string `yaml:"data_dir"`     // badger results store
	LogDir      string `yaml:"log_dir"`
}

type BatchConfig struct {
	SettleDelaySeconds    int `yaml:"settle_delay_seconds"`     // before companion phase
	InterItemDelaySeconds int `yaml:"inter_item_delay_seconds"` // companion deploy spacing
	Phase1Concurrency     int `yaml:"phase1_concurrency"`       // 0 = unbounded
	BuildPollSeconds      int `yaml:"build_poll_seconds"`
	BuildTimeoutSeconds   int `yaml:"build_timeout_seconds"`
}

type BackupConfig struct {
	RetentionCap int `yaml:"retention_cap"`
}

type ProvidersConfig struct {
	// Mode selects the provider set: "memory" keeps everything
	// in-process for local use and demos.
	Mode       string `yaml:"mode"`
	BaseDomain string `yaml:"base_domain"`
}

type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// DefaultConfig returns the first-run configuration rooted under the
// user's home directory.
func DefaultConfig() ForgeConfig {
	root := defaultRoot()
	return ForgeConfig{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8090},
		Paths: PathsConfig{
			WorkDir:     filepath.Join(root, "projects"),
			BackupsRoot: filepath.Join(root, "backups"),
			ManifestDir: filepath.Join(root, "modules"),
			DataDir:     filepath.Join(root, "data"),
			LogDir:      filepath.Join(root, "logs"),
		},
		Batch: BatchConfig{
			SettleDelaySeconds:    10,
			InterItemDelaySeconds: 15,
			Phase1Concurrency:     0,
			BuildPollSeconds:      2,
			BuildTimeoutSeconds:   180,
		},
		Backup:    BackupConfig{RetentionCap: 5},
		Providers: ProvidersConfig{Mode: "memory", BaseDomain: "huddle.site"},
		Telemetry: TelemetryConfig{Enabled: false, OTLPEndpoint: "localhost:4317"},
	}
}

func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".siteforge"
	}
	return filepath.Join(home, ".siteforge")
}
