// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/BrianApollo/Ops-dashboard/internal/metrics"
)

// Call classes used by the ads platform client.
const (
	ClassRead  = "read"  // library lookups and polls
	ClassWrite = "write" // campaign and ad set creation
	ClassBatch = "batch" // batched uploads and ad creation
)

// Config holds outbound pacing configuration
type Config struct {
	// Global limits across every call class
	GlobalRate  rate.Limit // requests per second
	GlobalBurst int        // max burst size

	// Per-class limits
	ClassRates map[string]rate.Limit
	ClassBurst map[string]int
}

// DefaultConfig returns conservative defaults for a single ad account
func DefaultConfig() Config {
	return Config{
		GlobalRate:  5,
		GlobalBurst: 10,

		ClassRates: map[string]rate.Limit{
			ClassRead:  4,
			ClassWrite: 1,
			ClassBatch: 1,
		},
		ClassBurst: map[string]int{
			ClassRead:  8,
			ClassWrite: 2,
			ClassBatch: 2,
		},
	}
}

// Pacer delays outbound calls so the controller stays inside the platform budget.
type Pacer struct {
	global   *rate.Limiter
	perClass map[string]*rate.Limiter
	mu       sync.RWMutex
}

// New creates a new pacer with the given config
func New(config Config) *Pacer {
	p := &Pacer{
		global:   rate.NewLimiter(config.GlobalRate, max(config.GlobalBurst, 1)),
		perClass: make(map[string]*rate.Limiter),
	}

	for class, classRate := range config.ClassRates {
		burst := config.ClassBurst[class]
		p.perClass[class] = rate.NewLimiter(classRate, max(burst, 1))
	}

	return p
}

// Wait blocks until a call of the given class may proceed or ctx is done.
// Unknown classes are only subject to the global limit.
func (p *Pacer) Wait(ctx context.Context, class string) error {
	if !p.global.Allow() {
		metrics.IncPacerWait("global")
		if err := p.global.Wait(ctx); err != nil {
			return fmt.Errorf("pacer global wait: %w", err)
		}
	}

	p.mu.RLock()
	classLimiter, exists := p.perClass[class]
	p.mu.RUnlock()
	if !exists {
		return nil
	}

	if !classLimiter.Allow() {
		metrics.IncPacerWait(class)
		if err := classLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("pacer %s wait: %w", class, err)
		}
	}
	return nil
}

// Throttle scales every class down when the platform reports high utilisation.
// percent is the last observed usage (0-100); above 75 the rates are halved,
// above 90 they drop to a tenth. Below 75 the configured rates are restored.
func (p *Pacer) Throttle(percent float64, base Config) {
	factor := 1.0
	switch {
	case percent >= 90:
		factor = 0.1
	case percent >= 75:
		factor = 0.5
	}

	p.global.SetLimit(base.GlobalRate * rate.Limit(factor))

	p.mu.Lock()
	defer p.mu.Unlock()
	for class, l := range p.perClass {
		if r, ok := base.ClassRates[class]; ok {
			l.SetLimit(r * rate.Limit(factor))
		}
	}
}

// Limit returns the current rate of a class (global when class is empty).
func (p *Pacer) Limit(class string) rate.Limit {
	if class == "" {
		return p.global.Limit()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if l, ok := p.perClass[class]; ok {
		return l.Limit()
	}
	return p.global.Limit()
}
