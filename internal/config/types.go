// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/BrianApollo/Ops-dashboard/internal/adsplatform"
	"github.com/BrianApollo/Ops-dashboard/internal/launch"
	"github.com/BrianApollo/Ops-dashboard/internal/ratelimit"
	"github.com/BrianApollo/Ops-dashboard/internal/telemetry"
)

// FileConfig represents the YAML configuration structure. Durations are Go
// duration strings ("10s"); pointer fields distinguish "unset" from false/zero.
type FileConfig struct {
	DataDir    string `yaml:"dataDir,omitempty"`
	LogLevel   string `yaml:"logLevel,omitempty"`
	LogService string `yaml:"logService,omitempty"`

	Platform  PlatformFileConfig  `yaml:"platform,omitempty"`
	Account   AccountFileConfig   `yaml:"account,omitempty"`
	Launch    LaunchFileConfig    `yaml:"launch,omitempty"`
	API       APIFileConfig       `yaml:"api,omitempty"`
	Redis     RedisFileConfig     `yaml:"redis,omitempty"`
	History   HistoryFileConfig   `yaml:"history,omitempty"`
	Report    ReportFileConfig    `yaml:"report,omitempty"`
	Telemetry TelemetryFileConfig `yaml:"telemetry,omitempty"`
}

// PlatformFileConfig holds ads platform client settings.
type PlatformFileConfig struct {
	BaseURL          string   `yaml:"baseUrl,omitempty"`
	APIVersion       string   `yaml:"apiVersion,omitempty"`
	AccessToken      string   `yaml:"accessToken,omitempty"`
	Timeout          string   `yaml:"timeout,omitempty"`
	BreakerThreshold int      `yaml:"breakerThreshold,omitempty"`
	BreakerReset     string   `yaml:"breakerReset,omitempty"`
	GlobalRate       *float64 `yaml:"globalRate,omitempty"`
	GlobalBurst      int      `yaml:"globalBurst,omitempty"`
}

// AccountFileConfig identifies the ad account to launch into.
type AccountFileConfig struct {
	AccountID string `yaml:"accountId,omitempty"`
	PageID    string `yaml:"pageId,omitempty"`
	PixelID   string `yaml:"pixelId,omitempty"`
}

// LaunchFileConfig tunes the pipeline.
type LaunchFileConfig struct {
	CheckLibraryFirst *bool  `yaml:"checkLibraryFirst,omitempty"`
	ForceReupload     *bool  `yaml:"forceReupload,omitempty"`
	UploadBatchSize   int    `yaml:"uploadBatchSize,omitempty"`
	AdBatchSize       int    `yaml:"adBatchSize,omitempty"`
	UploadStagger     string `yaml:"uploadStagger,omitempty"`
	TickInterval      string `yaml:"tickInterval,omitempty"`
	InitialPollDelay  string `yaml:"initialPollDelay,omitempty"`
	MaxTicks          int    `yaml:"maxTicks,omitempty"`
	MaxRetries        int    `yaml:"maxRetries,omitempty"`
}

// APIFileConfig holds control API settings.
type APIFileConfig struct {
	ListenAddr      string `yaml:"listenAddr,omitempty"`
	Token           string `yaml:"token,omitempty"`
	RateLimit       int    `yaml:"rateLimit,omitempty"`
	ShutdownTimeout string `yaml:"shutdownTimeout,omitempty"`
}

// RedisFileConfig holds progress fan-out settings. Empty addr disables it.
type RedisFileConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	TTL      string `yaml:"ttl,omitempty"`
}

// HistoryFileConfig holds the run ledger location.
type HistoryFileConfig struct {
	Path string `yaml:"path,omitempty"`
}

// ReportFileConfig holds the report directory.
type ReportFileConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// TelemetryFileConfig holds OpenTelemetry settings.
type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
	Environment  string   `yaml:"environment,omitempty"`
}

// AppConfig is the resolved runtime configuration.
type AppConfig struct {
	Version    string
	DataDir    string
	LogLevel   string
	LogService string

	Platform  PlatformConfig
	Account   AccountConfig
	Launch    launch.Options
	API       APIConfig
	Redis     RedisConfig
	History   HistoryConfig
	Report    ReportConfig
	Telemetry TelemetryConfig
}

// PlatformConfig holds the resolved platform client settings.
type PlatformConfig struct {
	BaseURL          string
	APIVersion       string
	AccessToken      string
	Timeout          time.Duration
	BreakerThreshold int
	BreakerReset     time.Duration
	GlobalRate       float64
	GlobalBurst      int
}

// AccountConfig identifies the ad account.
type AccountConfig struct {
	AccountID string
	PageID    string
	PixelID   string
}

// APIConfig holds the resolved control API settings.
type APIConfig struct {
	ListenAddr      string
	Token           string
	RateLimit       int // requests per minute on mutating routes
	ShutdownTimeout time.Duration
}

// RedisConfig holds the resolved progress fan-out settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// HistoryConfig holds the resolved ledger path. Empty disables history.
type HistoryConfig struct {
	Path string
}

// ReportConfig holds the resolved report directory. Empty disables reports.
type ReportConfig struct {
	Dir string
}

// TelemetryConfig holds the resolved tracing settings.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
	Environment  string
}

// ClientOptions maps the platform settings onto the client options.
func (c AppConfig) ClientOptions() adsplatform.Options {
	pacing := ratelimit.DefaultConfig()
	if c.Platform.GlobalRate > 0 {
		pacing.GlobalRate = rate.Limit(c.Platform.GlobalRate)
	}
	if c.Platform.GlobalBurst > 0 {
		pacing.GlobalBurst = c.Platform.GlobalBurst
	}
	return adsplatform.Options{
		BaseURL:          c.Platform.BaseURL,
		APIVersion:       c.Platform.APIVersion,
		AccessToken:      c.Platform.AccessToken,
		Timeout:          c.Platform.Timeout,
		Pacing:           pacing,
		BreakerThreshold: c.Platform.BreakerThreshold,
		BreakerReset:     c.Platform.BreakerReset,
	}
}

// TelemetryOptions maps the tracing settings onto the provider config.
func (c AppConfig) TelemetryOptions() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    c.LogService,
		ServiceVersion: c.Version,
		Environment:    c.Telemetry.Environment,
		ExporterType:   c.Telemetry.Exporter,
		Endpoint:       c.Telemetry.Endpoint,
		SamplingRate:   c.Telemetry.SamplingRate,
	}
}
