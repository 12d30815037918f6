// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"time"

	"github.com/BrianApollo/Ops-dashboard/internal/launch"
	"github.com/BrianApollo/Ops-dashboard/internal/resilience"
)

// BreakerChecker reports the platform circuit breaker. An open circuit makes
// the service unhealthy; half-open is degraded.
type BreakerChecker struct {
	name  string
	state func() resilience.State
}

// NewBreakerChecker creates a checker around a breaker state accessor.
func NewBreakerChecker(name string, state func() resilience.State) *BreakerChecker {
	return &BreakerChecker{name: name, state: state}
}

func (c *BreakerChecker) Name() string { return c.name }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	switch st := c.state(); st {
	case resilience.StateOpen:
		return CheckResult{Status: StatusUnhealthy, Message: "circuit open", Error: "platform unavailable"}
	case resilience.StateHalfOpen:
		return CheckResult{Status: StatusDegraded, Message: "circuit half-open"}
	default:
		return CheckResult{Status: StatusHealthy, Message: "circuit " + string(st)}
	}
}

// PingChecker wraps a ping function with a timeout. Optional dependencies
// report failures as degraded instead of unhealthy.
type PingChecker struct {
	name     string
	ping     func(context.Context) error
	timeout  time.Duration
	optional bool
}

// NewPingChecker creates a checker. A nil ping reports "not configured".
func NewPingChecker(name string, ping func(context.Context) error, optional bool) *PingChecker {
	return &PingChecker{name: name, ping: ping, timeout: 2 * time.Second, optional: optional}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if c.ping == nil {
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.ping(ctx); err != nil {
		status := StatusUnhealthy
		if c.optional {
			status = StatusDegraded
		}
		return CheckResult{Status: status, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "reachable"}
}

// LaunchChecker reports the pipeline phase. A run that ended in error is
// degraded; the service itself can still take a retry.
type LaunchChecker struct {
	state func() launch.Snapshot
}

// NewLaunchChecker creates a checker around a snapshot accessor.
func NewLaunchChecker(state func() launch.Snapshot) *LaunchChecker {
	return &LaunchChecker{state: state}
}

func (c *LaunchChecker) Name() string { return "launch" }

func (c *LaunchChecker) Check(context.Context) CheckResult {
	s := c.state()
	if s.Phase == launch.PhaseError {
		return CheckResult{Status: StatusDegraded, Message: string(s.Phase), Error: s.Error}
	}
	return CheckResult{Status: StatusHealthy, Message: string(s.Phase)}
}
