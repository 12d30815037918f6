// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService   = "service"
	FieldVersion   = "version"
	FieldRequestID = "request_id"
	FieldRunID     = "run_id"
	FieldBatchID   = "batch_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPhase     = "phase"
	FieldStage     = "stage"
	FieldTick      = "tick"

	// Media fields
	FieldItem      = "item"
	FieldMediaType = "media_type"
	FieldVideoID   = "video_id"
	FieldAdID      = "ad_id"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Platform fields
	FieldAccountID = "account_id"
	FieldRate      = "rate"
	FieldBaseURL   = "base_url"
	FieldPath      = "path"
)
