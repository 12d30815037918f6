// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/BrianApollo/Ops-dashboard/internal/adsplatform"
	"github.com/BrianApollo/Ops-dashboard/internal/health"
	"github.com/BrianApollo/Ops-dashboard/internal/history"
	"github.com/BrianApollo/Ops-dashboard/internal/launch"
	"github.com/BrianApollo/Ops-dashboard/internal/ratelimit"
)

type fakeLauncher struct {
	mu       sync.Mutex
	snap     launch.Snapshot
	starts   int
	stops    int
	phases   []string
	retryAll error
	release  chan struct{}
	requeued int
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{snap: launch.Snapshot{Phase: launch.PhaseIdle}, release: make(chan struct{})}
}

func (f *fakeLauncher) Start(ctx context.Context) (launch.Snapshot, error) {
	f.mu.Lock()
	f.starts++
	f.snap.IsRunning = true
	f.snap.Phase = launch.PhaseUploading
	f.mu.Unlock()

	select {
	case <-f.release:
	case <-ctx.Done():
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap.IsRunning = false
	f.snap.Phase = launch.PhaseComplete
	return f.snap, nil
}

func (f *fakeLauncher) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeLauncher) State() launch.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeLauncher) RetryFailed() int { return f.requeued }

func (f *fakeLauncher) RetryAll() (int, error) { return f.requeued, f.retryAll }

func (f *fakeLauncher) RunPhase(_ context.Context, name string) (launch.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phases = append(f.phases, name)
	return f.snap, nil
}

func do(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_StateAndStart(t *testing.T) {
	fl := newFakeLauncher()
	finished := make(chan launch.Snapshot, 1)
	srv := New(context.Background(), Deps{
		Launcher: fl,
		OnFinish: func(_ context.Context, snap launch.Snapshot, _ error) { finished <- snap },
	})
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/launch", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phase":"idle"`)

	rec = do(t, h, http.MethodPost, "/api/v1/launch/start", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool { return fl.State().IsRunning }, time.Second, 5*time.Millisecond)
	rec = do(t, h, http.MethodPost, "/api/v1/launch/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"already_running"`)

	close(fl.release)
	srv.Wait()
	assert.Equal(t, launch.PhaseComplete, (<-finished).Phase)
	assert.Equal(t, 1, fl.starts)
}

func TestServer_Stop(t *testing.T) {
	fl := newFakeLauncher()
	h := New(context.Background(), Deps{Launcher: fl}).Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/launch/stop", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fl.stops)
}

func TestServer_Retry(t *testing.T) {
	fl := newFakeLauncher()
	fl.requeued = 3
	h := New(context.Background(), Deps{Launcher: fl}).Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/launch/retry-failed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body retryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Requeued)

	fl.retryAll = launch.ErrAlreadyRunning
	rec = do(t, h, http.MethodPost, "/api/v1/launch/retry-all", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_RunPhase(t *testing.T) {
	fl := newFakeLauncher()
	srv := New(context.Background(), Deps{Launcher: fl})
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/launch/phases/bogus", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown phase")

	rec = do(t, h, http.MethodPost, "/api/v1/launch/phases/"+launch.RunPoll, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	srv.Wait()
	assert.Equal(t, []string{launch.RunPoll}, fl.phases)
}

func TestServer_TokenGuardsMutations(t *testing.T) {
	fl := newFakeLauncher()
	h := New(context.Background(), Deps{Launcher: fl, Token: "ops"}).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/launch", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/v1/launch/stop", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/launch/stop", "ops").Code)
}

func TestServer_RateLimitsMutations(t *testing.T) {
	fl := newFakeLauncher()
	h := New(context.Background(), Deps{Launcher: fl, RateLimit: 2}).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/launch/stop", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/launch/stop", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodPost, "/api/v1/launch/stop", "").Code)
	// Reads are not limited.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/launch", "").Code)
}

func TestServer_Runs(t *testing.T) {
	fl := newFakeLauncher()

	rec := do(t, New(context.Background(), Deps{Launcher: fl}).Handler(), http.MethodGet, "/api/v1/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.sqlite"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Record(context.Background(), launch.Snapshot{
		RunID: "run-1", Phase: launch.PhaseComplete, StartedAt: time.Now().UTC(),
	}))

	h := New(context.Background(), Deps{Launcher: fl, Runs: store}).Handler()

	rec = do(t, h, http.MethodGet, "/api/v1/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"run_id":"run-1"`)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/runs/run-1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/runs/nope", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/runs?limit=0", "").Code)
}

func TestServer_ProbesAndMetrics(t *testing.T) {
	fl := newFakeLauncher()
	hm := health.NewManager("test")
	hm.RegisterChecker(health.NewLaunchChecker(fl.State))
	h := New(context.Background(), Deps{Launcher: fl, Health: hm}).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", "").Code)

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "opsdash_http_requests_in_flight"))

	rec = do(t, h, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"not_found"`)
}

func TestServer_EndToEndAgainstMock(t *testing.T) {
	mock := adsplatform.NewMockServer()
	defer mock.Close()

	client, err := adsplatform.New(adsplatform.Options{
		BaseURL:     mock.URL,
		AccessToken: "token",
		Pacing:      ratelimit.Config{GlobalRate: rate.Inf, GlobalBurst: 1},
	})
	require.NoError(t, err)

	media := []launch.MediaInput{
		{Type: launch.MediaVideo, Name: "clip", URL: "https://media.test/clip.mp4"},
		{Type: launch.MediaImage, Name: "still", URL: "https://media.test/still.jpg"},
	}
	params := launch.CampaignParams{
		AccountID: "42",
		PageID:    "page",
		Campaign:  adsplatform.CampaignConfig{Name: "c", Objective: "OUTCOME_SALES"},
		AdSet:     adsplatform.AdSetConfig{Name: "s"},
		Creative:  adsplatform.CreativeConfig{Link: "https://shop.test"},
	}
	opts := launch.Options{
		CheckLibraryFirst: true,
		UploadStagger:     time.Millisecond,
		TickInterval:      time.Millisecond,
		InitialPollDelay:  time.Millisecond,
	}
	ctrl, err := launch.New(client, media, params, opts)
	require.NoError(t, err)

	srv := New(context.Background(), Deps{Launcher: ctrl})
	h := srv.Handler()

	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/api/v1/launch/start", "").Code)
	srv.Wait()

	rec := do(t, h, http.MethodGet, "/api/v1/launch", "")
	var snap launch.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, launch.PhaseComplete, snap.Phase)
	assert.Equal(t, 2, snap.Stats.Stage(launch.StageDone))
	assert.Equal(t, 2, mock.AdCount())
}
