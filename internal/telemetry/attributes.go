// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing utilities for the launch pipeline.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	// Launch attributes
	LaunchRunIDKey = "launch.run_id"
	LaunchPhaseKey = "launch.phase"
	LaunchStageKey = "launch.stage"
	LaunchTickKey  = "launch.tick"
	LaunchItemsKey = "launch.items"

	// Batch attributes
	BatchKindKey  = "batch.kind"
	BatchIndexKey = "batch.index"
	BatchSizeKey  = "batch.size"

	// Platform attributes
	PlatformOperationKey = "platform.operation"
	PlatformAccountKey   = "platform.account_id"
	PlatformRateKey      = "platform.rate_percent"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// StageAttributes creates attributes for a pipeline stage span.
func StageAttributes(runID, stage string, items int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if runID != "" {
		attrs = append(attrs, attribute.String(LaunchRunIDKey, runID))
	}
	attrs = append(attrs,
		attribute.String(LaunchStageKey, stage),
		attribute.Int(LaunchItemsKey, items),
	)
	return attrs
}

// BatchAttributes creates attributes for one dispatched platform batch.
func BatchAttributes(kind string, index, size int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(BatchKindKey, kind),
		attribute.Int(BatchIndexKey, index),
		attribute.Int(BatchSizeKey, size),
	}
}

// PlatformAttributes creates attributes for an ads platform call.
func PlatformAttributes(operation, accountID string, rate float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PlatformOperationKey, operation),
		attribute.String(PlatformAccountKey, accountID),
		attribute.Float64(PlatformRateKey, rate),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
