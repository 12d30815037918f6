// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"path/filepath"
	"time"

	"github.com/BrianApollo/Ops-dashboard/internal/adsplatform"
	"github.com/BrianApollo/Ops-dashboard/internal/launch"
)

const (
	DefaultDataDir          = "data"
	DefaultListenAddr       = ":8080"
	DefaultAPIRateLimit     = 30
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultPlatformTimeout  = 30 * time.Second
	DefaultBreakerThreshold = 5
	DefaultBreakerReset     = 30 * time.Second
	DefaultRedisPrefix      = "opsdash"
	DefaultRedisTTL         = 24 * time.Hour
)

func defaults() AppConfig {
	return AppConfig{
		DataDir:    DefaultDataDir,
		LogLevel:   "info",
		LogService: "opsdash",
		Platform: PlatformConfig{
			APIVersion:       adsplatform.DefaultAPIVersion,
			Timeout:          DefaultPlatformTimeout,
			BreakerThreshold: DefaultBreakerThreshold,
			BreakerReset:     DefaultBreakerReset,
		},
		Launch: launch.DefaultOptions(),
		API: APIConfig{
			ListenAddr:      DefaultListenAddr,
			RateLimit:       DefaultAPIRateLimit,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Redis: RedisConfig{
			Prefix: DefaultRedisPrefix,
			TTL:    DefaultRedisTTL,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}

// resolvePaths fills history and report locations under DataDir unless they
// were set explicitly.
func resolvePaths(cfg *AppConfig, historySet, reportSet bool) {
	if !historySet {
		cfg.History.Path = filepath.Join(cfg.DataDir, "history.sqlite")
	}
	if !reportSet {
		cfg.Report.Dir = filepath.Join(cfg.DataDir, "reports")
	}
}
