// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package launch drives a set of media items through the ads platform: library
// check, upload, processing poll and ad creation, under one campaign and ad set.
package launch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	xglog "github.com/BrianApollo/Ops-dashboard/internal/log"
	"github.com/BrianApollo/Ops-dashboard/internal/metrics"
	"github.com/BrianApollo/Ops-dashboard/internal/validate"
)

const tracerName = "opsdash/launch"

// Names accepted by RunPhase.
const (
	RunCheck    = "check"
	RunUpload   = "upload"
	RunCampaign = "campaign"
	RunAds      = "ads"
	RunPoll     = "poll"
)

// PhaseNames lists the names accepted by RunPhase.
func PhaseNames() []string {
	return []string{RunCheck, RunUpload, RunCampaign, RunAds, RunPoll}
}

// Controller owns one launch pipeline. Start and RunPhase run on the caller's
// goroutine; Stop, State, RetryFailed and RetryAll may be called concurrently.
type Controller struct {
	platform Platform
	params   CampaignParams
	opts     Options
	clock    Clock
	observer Observer
	log      zerolog.Logger

	mu         sync.Mutex
	store      *mediaStore
	phase      Phase
	campaignID string
	adsetID    string
	tick       int
	rate       float64
	errMsg     string
	running    bool
	runID      string
	startedAt  time.Time
	finishedAt time.Time
	stopCh     chan struct{}

	stopped atomic.Bool
	emitMu  sync.Mutex
}

// Option customises a Controller.
type Option func(*Controller)

// WithObserver registers the progress observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithClock replaces the wall clock used for delays and elapsed time.
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// New builds a controller for media. Options fields left at zero take the
// package defaults; CheckLibraryFirst is taken as given.
func New(platform Platform, media []MediaInput, params CampaignParams, opts Options, extra ...Option) (*Controller, error) {
	if platform == nil {
		return nil, errors.New("launch: platform is required")
	}

	v := validate.New()
	v.Required("account_id", params.AccountID)
	v.Required("page_id", params.PageID)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("launch: %w", err)
	}

	opts = opts.withDefaults()
	store, err := newMediaStore(media, opts.MaxRetries)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		platform: platform,
		params:   params,
		opts:     opts,
		clock:    realClock{},
		log:      xglog.WithComponent("launch"),
		store:    store,
		phase:    PhaseIdle,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range extra {
		opt(c)
	}
	return c, nil
}

// Options returns the effective options.
func (c *Controller) Options() Options { return c.opts }

// Start runs the whole pipeline and returns the final snapshot. If a run is
// already active it returns the current snapshot without doing anything.
// Only campaign or ad set creation failures are returned as errors; a
// cancelled ctx stops the run and returns ctx.Err().
func (c *Controller) Start(ctx context.Context) (Snapshot, error) {
	runID, ok := c.begin(true)
	if !ok {
		return c.State(), nil
	}
	ctx = xglog.ContextWithRunID(ctx, runID)
	logger := xglog.WithComponentFromContext(ctx, "launch")
	logger.Info().
		Str(xglog.FieldEvent, "run.started").
		Int("items", c.State().Stats.Total).
		Msg("launch run started")

	err := c.run(ctx)
	if err == nil && ctx.Err() != nil {
		c.Stop()
		err = ctx.Err()
	}
	c.end(true)

	snap := c.State()
	metrics.IncRunFinished(string(snap.Phase))
	logger.Info().
		Str(xglog.FieldEvent, "run.finished").
		Str(xglog.FieldPhase, string(snap.Phase)).
		Int(xglog.FieldTick, snap.Tick).
		Int("done", snap.Stats.Stage(StageDone)).
		Int("failed", snap.Stats.Stage(StageFailed)).
		Float64("elapsed_seconds", snap.Elapsed).
		Msg("launch run finished")
	return snap, err
}

// Stop asks the active run to halt. In-flight platform calls finish, no new
// batch is dispatched and pending waits return early. Idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped.Load() {
		c.mu.Unlock()
		return
	}
	c.stopped.Store(true)
	close(c.stopCh)
	if c.phase != PhaseComplete && c.phase != PhaseError {
		c.phase = PhaseStopped
	}
	c.mu.Unlock()

	c.log.Info().Str(xglog.FieldEvent, "run.stop_requested").Msg("stop requested")
	c.emit()
}

// State returns a snapshot with freshly computed stats.
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// RetryFailed requeues every failed item with a fresh retry budget. It does
// not start anything; call Start or RunPhase afterwards.
func (c *Controller) RetryFailed() int {
	c.mu.Lock()
	n := c.store.retryFailed()
	c.mu.Unlock()

	if n > 0 {
		c.log.Info().Str(xglog.FieldEvent, "media.retry_failed").Int("items", n).Msg("failed items requeued")
		c.emit()
	}
	return n
}

// RetryAll requeues every item that has no ad yet and gives back unused
// fallbacks. It is refused while a run is active.
func (c *Controller) RetryAll() (int, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return 0, ErrAlreadyRunning
	}
	n := c.store.retryAll()
	c.mu.Unlock()

	if n > 0 {
		c.log.Info().Str(xglog.FieldEvent, "media.retry_all").Int("items", n).Msg("unfinished items requeued")
		c.emit()
	}
	return n, nil
}

// RunPhase executes a single named stage out of band and returns the snapshot.
func (c *Controller) RunPhase(ctx context.Context, name string) (Snapshot, error) {
	switch name {
	case RunCheck, RunUpload, RunCampaign, RunAds, RunPoll:
	default:
		return c.State(), fmt.Errorf("%w: %q", ErrUnknownPhase, name)
	}

	runID, ok := c.begin(false)
	if !ok {
		return c.State(), ErrAlreadyRunning
	}
	ctx = xglog.ContextWithRunID(ctx, runID)
	logger := xglog.WithComponentFromContext(ctx, "launch")
	logger.Info().
		Str(xglog.FieldEvent, "phase.manual").
		Str(xglog.FieldStage, name).
		Msg("running single phase")

	var err error
	switch name {
	case RunCheck:
		c.checkStage(ctx)
	case RunUpload:
		c.setPhase(PhaseUploading)
		c.uploadStage(ctx)
	case RunCampaign:
		err = c.campaignStage(ctx)
	case RunAds:
		if c.adSetID() == "" {
			err = ErrNoAdSet
			break
		}
		c.setPhase(PhaseCreatingAds)
		err = c.adsStage(ctx)
	case RunPoll:
		c.setPhase(PhasePolling)
		c.pollStage(ctx)
	}
	c.end(false)
	return c.State(), err
}

// begin marks the controller busy and clears a previous stop request.
// A full run also gets a new run id and resets the tick budget.
func (c *Controller) begin(fullRun bool) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return "", false
	}
	c.running = true
	if c.stopped.Load() {
		c.stopped.Store(false)
		c.stopCh = make(chan struct{})
	}
	if fullRun || c.runID == "" {
		c.runID = uuid.NewString()
	}
	if fullRun {
		c.startedAt = c.clock.Now()
		c.finishedAt = time.Time{}
		c.tick = 0
		c.errMsg = ""
	}
	return c.runID, true
}

func (c *Controller) end(fullRun bool) {
	c.mu.Lock()
	c.running = false
	if fullRun {
		c.finishedAt = c.clock.Now()
	}
	c.mu.Unlock()
	c.emit()
}

func (c *Controller) run(ctx context.Context) error {
	if c.opts.CheckLibraryFirst && !c.opts.ForceReupload {
		c.checkStage(ctx)
	}
	if !c.halted(ctx) {
		c.setPhase(PhaseUploading)
		c.uploadStage(ctx)
	}
	if err := c.campaignStage(ctx); err != nil {
		return err
	}
	c.tickLoop(ctx)
	return nil
}

// halted reports whether work must not continue.
func (c *Controller) halted(ctx context.Context) bool {
	return c.stopped.Load() || ctx.Err() != nil
}

func (c *Controller) stopSignal() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopCh
}

// setPhase changes the phase unless a stop is pending; errors always win.
func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	if (c.stopped.Load() && p != PhaseError) || c.phase == p {
		c.mu.Unlock()
		return
	}
	old := c.phase
	c.phase = p
	c.mu.Unlock()

	c.log.Debug().
		Str(xglog.FieldEvent, "phase.changed").
		Str(xglog.FieldOldState, string(old)).
		Str(xglog.FieldNewState, string(p)).
		Msg("phase changed")
	c.emit()
}

// fail records a fatal run error.
func (c *Controller) fail(ctx context.Context, err error) error {
	c.mu.Lock()
	c.phase = PhaseError
	c.errMsg = err.Error()
	c.mu.Unlock()

	logger := xglog.WithComponentFromContext(ctx, "launch")
	logger.Error().
		Str(xglog.FieldEvent, "run.failed").
		Err(err).
		Msg("launch run failed")
	c.emit()
	return err
}

// setRate keeps the last observed utilisation. Negative values mean "no reading".
func (c *Controller) setRate(rate float64) {
	if rate < 0 {
		return
	}
	c.mu.Lock()
	c.rate = rate
	c.mu.Unlock()
}

func (c *Controller) adSetID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adsetID
}

// mutate applies fn to the media store and publishes the result.
func (c *Controller) mutate(fn func(s *mediaStore)) {
	c.mu.Lock()
	fn(c.store)
	c.mu.Unlock()
	c.emit()
}

// emit publishes a snapshot. emitMu keeps deliveries in mutation order.
func (c *Controller) emit() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	snap := c.State()
	metrics.SetLaunchPhase(string(snap.Phase))
	metrics.RecordStageCounts(
		snap.Stats.Stage(StageUpload),
		snap.Stats.Stage(StagePoll),
		snap.Stats.Stage(StageAd),
		snap.Stats.Stage(StageDone),
		snap.Stats.Stage(StageFailed),
	)
	if c.observer != nil {
		c.observer.OnSnapshot(snap)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		RunID:      c.runID,
		Phase:      c.phase,
		CampaignID: c.campaignID,
		AdSetID:    c.adsetID,
		Tick:       c.tick,
		MaxTicks:   c.opts.MaxTicks,
		Rate:       c.rate,
		Error:      c.errMsg,
		IsRunning:  c.running,
		IsStopped:  c.stopped.Load(),
		StartedAt:  c.startedAt,
		FinishedAt: c.finishedAt,
		Stats:      c.store.stats(),
		Media:      c.store.snapshot(),
	}
	if !c.startedAt.IsZero() {
		end := c.finishedAt
		if c.running || end.IsZero() {
			end = c.clock.Now()
		}
		s.Elapsed = end.Sub(c.startedAt).Seconds()
	}
	return s
}
