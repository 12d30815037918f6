// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// disabledPath turns off history or reports when used as their location.
const disabledPath = "off"

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath      string
	version         string
	dryRun          bool
	ConsumedEnvKeys map[string]struct{}

	historySet bool
	reportSet  bool
}

// NewLoader creates a new configuration loader.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// SetDryRun relaxes validation of the platform endpoint and token, which a
// dry run supplies itself.
func (l *Loader) SetDryRun(dryRun bool) { l.dryRun = dryRun }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence ENV > File > Defaults, then
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := l.mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	resolvePaths(&cfg, l.historySet, l.reportSet)
	if cfg.History.Path == disabledPath {
		cfg.History.Path = ""
	}
	if cfg.Report.Dir == disabledPath {
		cfg.Report.Dir = ""
	}
	cfg.Account.AccountID = strings.TrimPrefix(cfg.Account.AccountID, "act_")
	cfg.Version = l.version

	if err := validateConfig(cfg, l.dryRun); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with strict parsing.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

// LoadFileConfig loads a YAML config file without applying defaults or env overrides.
func LoadFileConfig(path string) (*FileConfig, error) {
	return NewLoader(path, "").loadFile(path)
}

func (l *Loader) mergeFileConfig(cfg *AppConfig, f *FileConfig) error {
	setString(&cfg.DataDir, f.DataDir)
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.LogService, f.LogService)

	p := f.Platform
	setString(&cfg.Platform.BaseURL, p.BaseURL)
	setString(&cfg.Platform.APIVersion, p.APIVersion)
	setString(&cfg.Platform.AccessToken, expandEnv(p.AccessToken))
	setInt(&cfg.Platform.BreakerThreshold, p.BreakerThreshold)
	setInt(&cfg.Platform.GlobalBurst, p.GlobalBurst)
	if p.GlobalRate != nil {
		cfg.Platform.GlobalRate = *p.GlobalRate
	}

	setString(&cfg.Account.AccountID, f.Account.AccountID)
	setString(&cfg.Account.PageID, f.Account.PageID)
	setString(&cfg.Account.PixelID, f.Account.PixelID)

	lc := f.Launch
	if lc.CheckLibraryFirst != nil {
		cfg.Launch.CheckLibraryFirst = *lc.CheckLibraryFirst
	}
	if lc.ForceReupload != nil {
		cfg.Launch.ForceReupload = *lc.ForceReupload
	}
	setInt(&cfg.Launch.UploadBatchSize, lc.UploadBatchSize)
	setInt(&cfg.Launch.AdBatchSize, lc.AdBatchSize)
	setInt(&cfg.Launch.MaxTicks, lc.MaxTicks)
	setInt(&cfg.Launch.MaxRetries, lc.MaxRetries)

	setString(&cfg.API.ListenAddr, f.API.ListenAddr)
	setString(&cfg.API.Token, expandEnv(f.API.Token))
	setInt(&cfg.API.RateLimit, f.API.RateLimit)

	setString(&cfg.Redis.Addr, f.Redis.Addr)
	setString(&cfg.Redis.Password, expandEnv(f.Redis.Password))
	setInt(&cfg.Redis.DB, f.Redis.DB)
	setString(&cfg.Redis.Prefix, f.Redis.Prefix)

	if f.History.Path != "" {
		cfg.History.Path = f.History.Path
		l.historySet = true
	}
	if f.Report.Dir != "" {
		cfg.Report.Dir = f.Report.Dir
		l.reportSet = true
	}

	t := f.Telemetry
	if t.Enabled != nil {
		cfg.Telemetry.Enabled = *t.Enabled
	}
	setString(&cfg.Telemetry.Exporter, t.Exporter)
	setString(&cfg.Telemetry.Endpoint, t.Endpoint)
	setString(&cfg.Telemetry.Environment, t.Environment)
	if t.SamplingRate != nil {
		cfg.Telemetry.SamplingRate = *t.SamplingRate
	}

	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"platform.timeout", p.Timeout, &cfg.Platform.Timeout},
		{"platform.breakerReset", p.BreakerReset, &cfg.Platform.BreakerReset},
		{"launch.uploadStagger", lc.UploadStagger, &cfg.Launch.UploadStagger},
		{"launch.tickInterval", lc.TickInterval, &cfg.Launch.TickInterval},
		{"launch.initialPollDelay", lc.InitialPollDelay, &cfg.Launch.InitialPollDelay},
		{"api.shutdownTimeout", f.API.ShutdownTimeout, &cfg.API.ShutdownTimeout},
		{"redis.ttl", f.Redis.TTL, &cfg.Redis.TTL},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", d.field, d.raw, err)
		}
		*d.dst = parsed
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.DataDir = l.envString(EnvPrefix+"DATA_DIR", cfg.DataDir)
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogLevel = l.envString(EnvPrefix+"LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString(EnvPrefix+"LOG_SERVICE", cfg.LogService)

	cfg.Platform.BaseURL = l.envString(EnvPrefix+"BASE_URL", cfg.Platform.BaseURL)
	cfg.Platform.APIVersion = l.envString(EnvPrefix+"API_VERSION", cfg.Platform.APIVersion)
	cfg.Platform.AccessToken = l.envString(EnvPrefix+"ACCESS_TOKEN", cfg.Platform.AccessToken)
	cfg.Platform.Timeout = l.envDuration(EnvPrefix+"PLATFORM_TIMEOUT", cfg.Platform.Timeout)
	cfg.Platform.BreakerThreshold = l.envInt(EnvPrefix+"BREAKER_THRESHOLD", cfg.Platform.BreakerThreshold)
	cfg.Platform.BreakerReset = l.envDuration(EnvPrefix+"BREAKER_RESET", cfg.Platform.BreakerReset)
	cfg.Platform.GlobalRate = l.envFloat(EnvPrefix+"RATE_GLOBAL", cfg.Platform.GlobalRate)
	cfg.Platform.GlobalBurst = l.envInt(EnvPrefix+"RATE_BURST", cfg.Platform.GlobalBurst)

	cfg.Account.AccountID = l.envString(EnvPrefix+"ACCOUNT_ID", cfg.Account.AccountID)
	cfg.Account.PageID = l.envString(EnvPrefix+"PAGE_ID", cfg.Account.PageID)
	cfg.Account.PixelID = l.envString(EnvPrefix+"PIXEL_ID", cfg.Account.PixelID)

	cfg.Launch.CheckLibraryFirst = l.envBool(EnvPrefix+"CHECK_LIBRARY_FIRST", cfg.Launch.CheckLibraryFirst)
	cfg.Launch.ForceReupload = l.envBool(EnvPrefix+"FORCE_REUPLOAD", cfg.Launch.ForceReupload)
	cfg.Launch.UploadBatchSize = l.envInt(EnvPrefix+"UPLOAD_BATCH_SIZE", cfg.Launch.UploadBatchSize)
	cfg.Launch.AdBatchSize = l.envInt(EnvPrefix+"AD_BATCH_SIZE", cfg.Launch.AdBatchSize)
	cfg.Launch.UploadStagger = l.envDuration(EnvPrefix+"UPLOAD_STAGGER", cfg.Launch.UploadStagger)
	cfg.Launch.TickInterval = l.envDuration(EnvPrefix+"TICK_INTERVAL", cfg.Launch.TickInterval)
	cfg.Launch.InitialPollDelay = l.envDuration(EnvPrefix+"INITIAL_POLL_DELAY", cfg.Launch.InitialPollDelay)
	cfg.Launch.MaxTicks = l.envInt(EnvPrefix+"MAX_TICKS", cfg.Launch.MaxTicks)
	cfg.Launch.MaxRetries = l.envInt(EnvPrefix+"MAX_RETRIES", cfg.Launch.MaxRetries)

	cfg.API.ListenAddr = l.envString(EnvPrefix+"LISTEN_ADDR", cfg.API.ListenAddr)
	cfg.API.Token = l.envString(EnvPrefix+"API_TOKEN", cfg.API.Token)
	cfg.API.RateLimit = l.envInt(EnvPrefix+"API_RATE_LIMIT", cfg.API.RateLimit)
	cfg.API.ShutdownTimeout = l.envDuration(EnvPrefix+"SHUTDOWN_TIMEOUT", cfg.API.ShutdownTimeout)

	cfg.Redis.Addr = l.envString(EnvPrefix+"REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = l.envString(EnvPrefix+"REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = l.envInt(EnvPrefix+"REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Prefix = l.envString(EnvPrefix+"REDIS_PREFIX", cfg.Redis.Prefix)
	cfg.Redis.TTL = l.envDuration(EnvPrefix+"REDIS_TTL", cfg.Redis.TTL)

	if v := l.envString(EnvPrefix+"HISTORY_PATH", ""); v != "" {
		cfg.History.Path = v
		l.historySet = true
	}
	if v := l.envString(EnvPrefix+"REPORT_DIR", ""); v != "" {
		cfg.Report.Dir = v
		l.reportSet = true
	}

	cfg.Telemetry.Enabled = l.envBool(EnvPrefix+"TRACING_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvPrefix+"TRACING_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvPrefix+"TRACING_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvPrefix+"TRACING_SAMPLE_RATE", cfg.Telemetry.SamplingRate)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// expandEnv expands ${VAR} references so secrets can stay out of the file.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}
