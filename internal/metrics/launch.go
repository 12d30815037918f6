// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	launchPhase = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "opsdash_launch_phase",
		Help: "Current launch pipeline phase (1 for the active phase, 0 otherwise)",
	}, []string{"phase"})

	launchItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "opsdash_launch_items",
		Help: "Media items per pipeline stage in the current run",
	}, []string{"stage"}) // stage=upload|poll|ad|done|failed

	launchTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opsdash_launch_ticks_total",
		Help: "Total number of completed scheduler ticks",
	})

	launchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsdash_launch_runs_total",
		Help: "Finished launch runs by final phase",
	}, []string{"phase"})

	// Batch metrics
	batchDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsdash_batch_dispatch_total",
		Help: "Platform batches dispatched by kind and outcome",
	}, []string{"kind", "outcome"}) // kind=upload|ads|check|poll, outcome=ok|transport_error

	batchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opsdash_batch_size",
		Help:    "Number of items per dispatched batch",
		Buckets: []float64{1, 5, 10, 25, 50},
	}, []string{"kind"})

	itemFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsdash_item_failures_total",
		Help: "Per-item failures handled by the retry policy",
	}, []string{"stage", "outcome"}) // outcome=fallback|retry|exhausted

	itemsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opsdash_items_completed_total",
		Help: "Media items that reached a live ad",
	})

	// Platform metrics
	platformRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "opsdash_platform_rate_utilization_percent",
		Help: "Last observed platform rate utilisation (0-100)",
	})

	platformRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opsdash_platform_request_duration_seconds",
		Help:    "Latency of ads platform calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	pacerWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsdash_pacer_throttled_total",
		Help: "Outbound calls that had to wait for a pacing token",
	}, []string{"class"})
)

var launchPhases = []string{
	"idle", "checking", "uploading", "polling", "creating_campaign",
	"creating_ads", "stopped", "complete", "error",
}

// SetLaunchPhase records the active pipeline phase.
func SetLaunchPhase(phase string) {
	for _, p := range launchPhases {
		value := 0.0
		if p == phase {
			value = 1.0
		}
		launchPhase.WithLabelValues(p).Set(value)
	}
}

// RecordStageCounts publishes the number of items per stage.
func RecordStageCounts(upload, poll, ad, done, failed int) {
	launchItems.WithLabelValues("upload").Set(float64(upload))
	launchItems.WithLabelValues("poll").Set(float64(poll))
	launchItems.WithLabelValues("ad").Set(float64(ad))
	launchItems.WithLabelValues("done").Set(float64(done))
	launchItems.WithLabelValues("failed").Set(float64(failed))
}

func IncTick()                        { launchTicksTotal.Inc() }
func IncRunFinished(phase string)     { launchRunsTotal.WithLabelValues(phase).Inc() }
func IncItemCompleted()               { itemsCompletedTotal.Inc() }
func SetPlatformRate(percent float64) { platformRate.Set(percent) }
func IncPacerWait(class string)       { pacerWaitsTotal.WithLabelValues(class).Inc() }

// RecordBatch counts one dispatched batch and its size.
func RecordBatch(kind, outcome string, size int) {
	batchDispatchTotal.WithLabelValues(kind, outcome).Inc()
	batchSize.WithLabelValues(kind).Observe(float64(size))
}

func IncItemFailure(stage, outcome string) {
	itemFailuresTotal.WithLabelValues(stage, outcome).Inc()
}

func ObservePlatformRequest(operation, outcome string, seconds float64) {
	platformRequestDuration.WithLabelValues(operation, outcome).Observe(seconds)
}
