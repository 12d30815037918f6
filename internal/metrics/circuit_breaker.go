// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "opsdash_breaker_state",
		Help: "Circuit breaker state per component (0=closed, 1=half-open, 2=open)",
	}, []string{"component"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsdash_breaker_trips_total",
		Help: "Transitions to the open state, by cause",
	}, []string{"component", "reason"})
)

// SetCircuitBreakerState records the breaker state of component. Unknown
// states are recorded as open.
func SetCircuitBreakerState(component, state string) {
	v := 2.0
	switch state {
	case "closed":
		v = 0
	case "half-open":
		v = 1
	}
	breakerState.WithLabelValues(component).Set(v)
}

// RecordCircuitBreakerTrip counts a transition to open.
func RecordCircuitBreakerTrip(component, reason string) {
	breakerTrips.WithLabelValues(component, reason).Inc()
}
