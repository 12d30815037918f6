// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/BrianApollo/Ops-dashboard/internal/history"
)

func runHistoryCLI(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printHistoryUsage(os.Stdout)
		return 0
	}

	switch args[0] {
	case "list":
		return runHistoryList(args[1:], os.Stdout)
	case "verify":
		return runHistoryVerify(args[1:], os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n\n", args[0])
		printHistoryUsage(os.Stderr)
		return 2
	}
}

func printHistoryUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  opsdash history list [--config|-c config.yaml] [--path PATH] [--limit N]")
	_, _ = fmt.Fprintln(w, "  opsdash history verify [--config|-c config.yaml] [--path PATH] [--mode quick|full]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Subcommands:")
	_, _ = fmt.Fprintln(w, "  list      Show recent launch runs")
	_, _ = fmt.Fprintln(w, "  verify    Check ledger integrity")
}

// historyPath resolves the ledger from an explicit path or the configuration.
func historyPath(path, configFile string) (string, error) {
	if path = strings.TrimSpace(path); path != "" {
		return path, nil
	}
	cfg, err := loadConfig(configFile, true)
	if err != nil {
		return "", err
	}
	if cfg.History.Path == "" {
		return "", fmt.Errorf("history is disabled in the configuration")
	}
	return cfg.History.Path, nil
}

func runHistoryList(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("opsdash history list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var path, configFile string
	var limit int
	fs.StringVar(&path, "path", "", "path to the history database")
	fs.StringVar(&configFile, "config", "", "path to YAML configuration file")
	fs.StringVar(&configFile, "c", "", "path to YAML configuration file (shorthand)")
	fs.IntVar(&limit, "limit", 20, "maximum number of runs")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	dbPath, err := historyPath(path, configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	store, err := history.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	runs, err := store.List(context.Background(), limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tPHASE\tDONE\tFAILED\tTOTAL\tSTARTED")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.Phase, r.Done, r.Failed, r.Total, r.StartedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
	return 0
}

func runHistoryVerify(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("opsdash history verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var path, configFile, mode string
	fs.StringVar(&path, "path", "", "path to the history database")
	fs.StringVar(&configFile, "config", "", "path to YAML configuration file")
	fs.StringVar(&configFile, "c", "", "path to YAML configuration file (shorthand)")
	fs.StringVar(&mode, "mode", "quick", "verification mode: quick or full")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode != "quick" && mode != "full" {
		fmt.Fprintf(os.Stderr, "Error: invalid mode %q. Use 'quick' or 'full'.\n", mode)
		return 2
	}

	dbPath, err := historyPath(path, configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	issues, err := history.VerifyIntegrity(dbPath, mode == "full")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(issues) > 0 {
		_, _ = fmt.Fprintf(out, "✗ %s (%s): %d issue(s)\n", dbPath, mode, len(issues))
		for _, issue := range issues {
			_, _ = fmt.Fprintf(out, "  - %s\n", issue)
		}
		return 1
	}
	_, _ = fmt.Fprintf(out, "✓ %s (%s) OK\n", dbPath, mode)
	return 0
}
