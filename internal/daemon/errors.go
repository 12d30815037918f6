// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrMissingLogger is returned when logger is not provided
	ErrMissingLogger = errors.New("logger is required")

	// ErrMissingController is returned when no launch controller is provided
	ErrMissingController = errors.New("launch controller is required")

	// ErrMissingFeed is returned when a publisher is configured without a snapshot feed
	ErrMissingFeed = errors.New("snapshot feed is required when a publisher is configured")
)
