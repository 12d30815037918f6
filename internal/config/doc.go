// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for opsdash.
//
// Precedence is ENV > YAML file > defaults. The file is parsed strictly and
// unknown keys are rejected. Every environment variable uses the OPSDASH_
// prefix.
package config
