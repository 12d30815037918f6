// SPDX-License-Identifier: MIT
package validate

import (
	"fmt"
	"strings"
)

// LogLevel is a level name accepted by the logger.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevels = []LogLevel{LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}

// ParseLogLevel accepts a level name in any case.
func ParseLogLevel(s string) (LogLevel, error) {
	level := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	for _, l := range logLevels {
		if l == level {
			return level, nil
		}
	}
	return "", Error{
		Field:   "logLevel",
		Value:   s,
		Message: fmt.Sprintf("invalid log level (must be one of %v)", logLevels),
	}
}

// DeliveryStatus is the initial status of a created campaign, ad set or ad.
type DeliveryStatus string

const (
	StatusActive DeliveryStatus = "ACTIVE"
	StatusPaused DeliveryStatus = "PAUSED"
)

// DeliveryStatuses lists the accepted statuses as strings for OneOf.
func DeliveryStatuses() []string {
	return []string{string(StatusActive), string(StatusPaused)}
}

// ExporterTypes lists the supported trace exporters.
func ExporterTypes() []string {
	return []string{"grpc", "http"}
}
