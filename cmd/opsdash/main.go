// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/BrianApollo/Ops-dashboard/internal/adsplatform"
	"github.com/BrianApollo/Ops-dashboard/internal/config"
	"github.com/BrianApollo/Ops-dashboard/internal/daemon"
	xglog "github.com/BrianApollo/Ops-dashboard/internal/log"
	"github.com/BrianApollo/Ops-dashboard/internal/manifest"
	"github.com/BrianApollo/Ops-dashboard/internal/version"
)

// maskURL removes user info and the query from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	parsedURL.RawQuery = ""
	return parsedURL.String()
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "config":
			return runConfigCLI(args[1:])
		case "manifest":
			return runManifestCLI(args[1:])
		case "history":
			return runHistoryCLI(args[1:])
		}
	}

	flags := flag.NewFlagSet("opsdash", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)
	showVersion := flags.Bool("version", false, "print version and exit")
	configPath := flags.String("config", "", "path to config file (YAML)")
	manifestPath := flags.String("manifest", "", "path to launch manifest (YAML)")
	serve := flags.Bool("serve", false, "keep the control API running after the launch")
	dryRun := flags.Bool("dry-run", false, "launch against an in-process mock of the ads platform")
	envFile := flags.String("env-file", ".env", "dotenv file loaded before configuration")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		return 0
	}

	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "opsdash",
		Version: version.Version,
	})
	logger := xglog.WithComponent("main")

	if err := loadEnvFile(*envFile); err != nil {
		logger.Error().Err(err).Str(xglog.FieldPath, *envFile).Msg("failed to load env file")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(strings.TrimSpace(*configPath), version.Version)
	loader.SetDryRun(*dryRun)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
		return 1
	}

	xglog.Reconfigure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("main")

	path := strings.TrimSpace(*manifestPath)
	if path == "" {
		path = config.ParseString(config.EnvPrefix+"MANIFEST", "")
	}
	if path == "" {
		logger.Error().Msg("a manifest is required: pass -manifest or set " + config.EnvPrefix + "MANIFEST")
		return 2
	}
	m, err := manifest.Load(path)
	if err != nil {
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "manifest.load_failed").
			Str(xglog.FieldPath, path).
			Msg("failed to load manifest")
		return 1
	}

	if *dryRun {
		mock := adsplatform.NewMockServer()
		defer mock.Close()
		cfg.Platform.BaseURL = mock.URL
		cfg.Platform.AccessToken = "dry-run"
		logger.Warn().
			Str(xglog.FieldEvent, "dry_run.enabled").
			Str(xglog.FieldBaseURL, mock.URL).
			Msg("dry run: no real platform calls will be made")
	}

	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str(xglog.FieldBaseURL, maskURL(cfg.Platform.BaseURL)).
		Str(xglog.FieldAccountID, cfg.Account.AccountID).
		Int("items", len(m.Media)).
		Bool("serve", *serve).
		Msg("starting opsdash")

	var buildOpts []daemon.BuildOption
	if *serve {
		buildOpts = append(buildOpts, daemon.WithReloader(config.NewHolder(cfg, loader)))
	}
	app, err := daemon.Build(ctx, xglog.WithComponent("daemon"), cfg, m, buildOpts...)
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.build_failed").Msg("failed to assemble launch daemon")
		return 1
	}

	if err := app.Run(ctx, *serve); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "run.failed").Msg("launch failed")
		return 1
	}

	snap, _ := app.Result()
	logger.Info().
		Str(xglog.FieldEvent, "shutdown").
		Str(xglog.FieldRunID, snap.RunID).
		Str(xglog.FieldPhase, string(snap.Phase)).
		Msg("opsdash stopped")
	return 0
}

// loadEnvFile loads a dotenv file without overriding variables already set.
// A missing file is not an error.
func loadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}
