package adsplatform

import (
	"encoding/json"
	"net/http"
)

// Usage headers returned by the platform on every call.
const (
	HeaderBusinessUseCaseUsage = "X-Business-Use-Case-Usage"
	HeaderAdAccountUsage       = "X-Ad-Account-Usage"
	HeaderAppUsage             = "X-App-Usage"
)

// ParseUsage folds the usage headers into the highest reported utilisation
// percentage, clamped to 0..100. Missing or malformed headers count as 0.
func ParseUsage(h http.Header) float64 {
	highest := 0.0

	if raw := h.Get(HeaderBusinessUseCaseUsage); raw != "" {
		var buc map[string][]map[string]any
		if err := json.Unmarshal([]byte(raw), &buc); err == nil {
			for _, entries := range buc {
				for _, e := range entries {
					highest = maxPercent(highest, e, "call_count", "total_cputime", "total_time")
				}
			}
		}
	}

	if raw := h.Get(HeaderAdAccountUsage); raw != "" {
		var acc map[string]any
		if err := json.Unmarshal([]byte(raw), &acc); err == nil {
			highest = maxPercent(highest, acc, "acc_id_util_pct")
		}
	}

	if raw := h.Get(HeaderAppUsage); raw != "" {
		var app map[string]any
		if err := json.Unmarshal([]byte(raw), &app); err == nil {
			highest = maxPercent(highest, app, "call_count", "total_cputime", "total_time")
		}
	}

	return clampPercent(highest)
}

func maxPercent(current float64, values map[string]any, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := values[k].(float64); ok && v > current {
			current = v
		}
	}
	return current
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
