// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BrianApollo/Ops-dashboard/internal/config"
	"github.com/BrianApollo/Ops-dashboard/internal/version"
)

const redacted = "***"

func runConfigCLI(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(os.Stdout)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], os.Stdout)
	case "dump":
		return runConfigDump(args[1:], os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(os.Stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  opsdash config validate [--file|-f config.yaml] [--dry-run]")
	_, _ = fmt.Fprintln(w, "  opsdash config dump [--file|-f config.yaml] [--format=yaml|json]")
}

func loadConfig(file string, dryRun bool) (config.AppConfig, error) {
	loader := config.NewLoader(strings.TrimSpace(file), version.Version)
	loader.SetDryRun(dryRun)
	return loader.Load()
}

func runConfigValidate(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("opsdash config validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var file string
	var dryRun bool
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	fs.BoolVar(&dryRun, "dry-run", false, "skip platform credential checks")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if _, err := loadConfig(file, dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error:\n  %v\n", err)
		return 1
	}

	source := file
	if source == "" {
		source = "environment"
	}
	_, _ = fmt.Fprintf(out, "✓ %s is valid\n", source)
	return 0
}

func runConfigDump(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("opsdash config dump", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var file string
	var format string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	fs.StringVar(&format, "format", "yaml", "output format: yaml or json")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(file, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error:\n  %v\n", err)
		return 1
	}
	cfg = redact(cfg)

	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		_ = enc.Close()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown format %q\n", format)
		return 2
	}
	return 0
}

// redact blanks secrets before the effective config is printed.
func redact(cfg config.AppConfig) config.AppConfig {
	if cfg.Platform.AccessToken != "" {
		cfg.Platform.AccessToken = redacted
	}
	if cfg.API.Token != "" {
		cfg.API.Token = redacted
	}
	if cfg.Redis.Password != "" {
		cfg.Redis.Password = redacted
	}
	return cfg
}
