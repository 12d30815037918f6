// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/BrianApollo/Ops-dashboard/internal/launch"
	"github.com/BrianApollo/Ops-dashboard/internal/manifest"
)

func runManifestCLI(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printManifestUsage(os.Stdout)
		return 0
	}

	switch args[0] {
	case "check":
		return runManifestCheck(args[1:], os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n\n", args[0])
		printManifestUsage(os.Stderr)
		return 2
	}
}

func printManifestUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  opsdash manifest check --file|-f manifest.yaml")
}

func runManifestCheck(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("opsdash manifest check", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var file string
	fs.StringVar(&file, "file", "", "path to the launch manifest")
	fs.StringVar(&file, "f", "", "path to the launch manifest (shorthand)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if file == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required")
		return 2
	}

	m, err := manifest.Load(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Manifest error in %s:\n  %v\n", file, err)
		return 1
	}

	var videos, images int
	for _, in := range m.Media {
		if in.Type == launch.MediaVideo {
			videos++
		} else {
			images++
		}
	}
	_, _ = fmt.Fprintf(out, "✓ %s is valid: campaign %q, %d videos, %d images\n", file, m.Campaign.Name, videos, images)
	return 0
}
