// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"strings"

	"github.com/BrianApollo/Ops-dashboard/internal/validate"
)

// Validate validates an AppConfig. Every problem is reported, and the
// missing required settings are listed by validate.ValidationError.Missing.
func Validate(cfg AppConfig) error {
	return validateConfig(cfg, false)
}

func validateConfig(cfg AppConfig, dryRun bool) error {
	v := validate.New()

	if !dryRun {
		v.Required(EnvPrefix+"BASE_URL", cfg.Platform.BaseURL)
		v.Required(EnvPrefix+"ACCESS_TOKEN", cfg.Platform.AccessToken)
	}
	v.Required(EnvPrefix+"ACCOUNT_ID", cfg.Account.AccountID)
	v.Required(EnvPrefix+"PAGE_ID", cfg.Account.PageID)

	if strings.TrimSpace(cfg.Platform.BaseURL) != "" {
		v.URL("platform.baseUrl", cfg.Platform.BaseURL, []string{"http", "https"})
	}
	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		var fe validate.Error
		if errors.As(err, &fe) {
			v.AddError(fe.Field, fe.Message, fe.Value)
		}
	}

	v.Positive("platform.breakerThreshold", cfg.Platform.BreakerThreshold)
	if cfg.Platform.GlobalRate < 0 {
		v.AddError("platform.globalRate", "value cannot be negative", cfg.Platform.GlobalRate)
	}
	v.NonNegative("platform.globalBurst", cfg.Platform.GlobalBurst)

	v.Range("launch.uploadBatchSize", cfg.Launch.UploadBatchSize, 1, 50)
	v.Range("launch.adBatchSize", cfg.Launch.AdBatchSize, 1, 50)
	v.Range("launch.maxTicks", cfg.Launch.MaxTicks, 1, 1000)
	v.Range("launch.maxRetries", cfg.Launch.MaxRetries, 1, 20)
	if cfg.Launch.TickInterval <= 0 {
		v.AddError("launch.tickInterval", "must be positive", cfg.Launch.TickInterval)
	}

	v.NotEmpty("api.listenAddr", cfg.API.ListenAddr)
	v.NonNegative("api.rateLimit", cfg.API.RateLimit)

	if cfg.Redis.Enabled() {
		v.NonNegative("redis.db", cfg.Redis.DB)
		v.NotEmpty("redis.prefix", cfg.Redis.Prefix)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, validate.ExporterTypes())
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.AddError("telemetry.samplingRate", "must be between 0 and 1", cfg.Telemetry.SamplingRate)
		}
	}

	return v.Err()
}
