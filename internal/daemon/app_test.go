package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrianApollo/Ops-dashboard/internal/adsplatform"
	"github.com/BrianApollo/Ops-dashboard/internal/config"
	"github.com/BrianApollo/Ops-dashboard/internal/history"
	"github.com/BrianApollo/Ops-dashboard/internal/launch"
	"github.com/BrianApollo/Ops-dashboard/internal/manifest"
	"github.com/BrianApollo/Ops-dashboard/internal/progress"
	"github.com/BrianApollo/Ops-dashboard/internal/report"
)

const testManifest = `
campaign:
  name: Daemon launch
  objective: OUTCOME_SALES
  daily_budget: 1000
adset:
  name: Daemon set
  billing_event: IMPRESSIONS
  optimization_goal: LINK_CLICKS
creative:
  link: https://shop.example.com
media:
  - type: video
    name: Clip
    url: https://cdn.example.com/clip.mp4
  - type: image
    name: Still
    url: https://cdn.example.com/still.jpg
`

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	mock  *adsplatform.MockServer
	redis *miniredis.Miniredis
	cfg   config.AppConfig
	man   *manifest.Manifest
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mock := adsplatform.NewMockServer()
	t.Cleanup(mock.Close)
	mr := miniredis.RunT(t)

	m, err := manifest.Parse([]byte(testManifest))
	require.NoError(t, err)

	dir := t.TempDir()
	cfg := config.AppConfig{
		Version:    "test",
		DataDir:    dir,
		LogService: "opsdash",
		Platform: config.PlatformConfig{
			BaseURL:     mock.URL,
			AccessToken: "token",
			Timeout:     5 * time.Second,
			GlobalRate:  1000,
			GlobalBurst: 100,
		},
		Account: config.AccountConfig{AccountID: "42", PageID: "page"},
		Launch: launch.Options{
			CheckLibraryFirst: true,
			UploadStagger:     time.Millisecond,
			TickInterval:      time.Millisecond,
			InitialPollDelay:  time.Millisecond,
		},
		API: config.APIConfig{
			ListenAddr:      "127.0.0.1:0",
			RateLimit:       1000,
			ShutdownTimeout: 2 * time.Second,
		},
		Redis:   config.RedisConfig{Addr: mr.Addr(), Prefix: "test", TTL: time.Hour},
		History: config.HistoryConfig{Path: filepath.Join(dir, "state", "history.sqlite")},
		Report:  config.ReportConfig{Dir: filepath.Join(dir, "reports")},
	}
	return &fixture{mock: mock, redis: mr, cfg: cfg, man: m}
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestRun_PersistsOutcome(t *testing.T) {
	f := newFixture(t)

	app, err := Build(context.Background(), testLogger(), f.cfg, f.man, WithNow(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	require.NoError(t, app.Run(context.Background(), false))

	snap, runErr := app.Result()
	require.NoError(t, runErr)
	assert.Equal(t, launch.PhaseComplete, snap.Phase)
	assert.Equal(t, 2, snap.Stats.Stage(launch.StageDone))
	assert.Equal(t, 2, f.mock.AdCount())

	data, err := os.ReadFile(report.Path(f.cfg.Report.Dir, snap.RunID))
	require.NoError(t, err)
	var rep report.Report
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.True(t, rep.GeneratedAt.Equal(fixedNow))

	store, err := history.Open(f.cfg.History.Path)
	require.NoError(t, err)
	defer store.Close()
	run, err := store.Get(context.Background(), snap.RunID)
	require.NoError(t, err)
	assert.Equal(t, launch.PhaseComplete, run.Phase)
	assert.Equal(t, 2, run.Done)

	client := redis.NewClient(&redis.Options{Addr: f.redis.Addr()})
	defer client.Close()
	latest, err := progress.NewRedisPublisherWithClient(client, "test", time.Hour).Latest(context.Background(), snap.RunID)
	require.NoError(t, err)
	assert.Equal(t, launch.PhaseComplete, latest.Phase)
}

func TestRun_CampaignFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.mock.FailCampaign(&adsplatform.APIError{Message: "Invalid objective", Type: "OAuthException", Code: 100})
	f.cfg.Redis = config.RedisConfig{}

	app, err := Build(context.Background(), testLogger(), f.cfg, f.man)
	require.NoError(t, err)

	err = app.Run(context.Background(), false)
	require.Error(t, err)

	snap, _ := app.Result()
	assert.Equal(t, launch.PhaseError, snap.Phase)
	assert.NotEmpty(t, snap.Error)
	assert.FileExists(t, report.Path(f.cfg.Report.Dir, snap.RunID))
}

func TestRun_ServeUntilCancelled(t *testing.T) {
	f := newFixture(t)
	f.cfg.History.Path = ""

	app, err := Build(context.Background(), testLogger(), f.cfg, f.man)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, true) }()

	base := "http://" + app.Addr().String()

	require.Eventually(t, func() bool {
		snap, err := app.Result()
		return err == nil && snap.Phase == launch.PhaseComplete
	}, 10*time.Second, 10*time.Millisecond)

	resp, err := http.Get(base + "/api/v1/launch")
	require.NoError(t, err)
	var snap launch.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	assert.Equal(t, launch.PhaseComplete, snap.Phase)

	resp, err = http.Get(base + "/api/v1/runs")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestBuild_RedisUnavailableIsDegraded(t *testing.T) {
	f := newFixture(t)
	f.cfg.Redis.Addr = "127.0.0.1:1"

	app, err := Build(context.Background(), testLogger(), f.cfg, f.man)
	require.NoError(t, err)
	assert.Nil(t, app.deps.Publisher)

	resp := app.deps.Health.Health(context.Background(), true)
	require.Contains(t, resp.Checks, "redis")
	assert.Equal(t, "degraded", string(resp.Checks["redis"].Status))

	require.NoError(t, app.Run(context.Background(), false))
}

func TestNewApp_Validation(t *testing.T) {
	_, err := NewApp(Deps{Logger: zerolog.Nop()})
	assert.True(t, errors.Is(err, ErrMissingLogger))

	_, err = NewApp(Deps{Logger: testLogger()})
	assert.True(t, errors.Is(err, ErrMissingController))

	f := newFixture(t)
	client, err := adsplatform.New(adsplatform.Options{BaseURL: f.mock.URL, AccessToken: "token"})
	require.NoError(t, err)
	ctrl, err := launch.New(client, f.man.Inputs(), f.man.Params(manifest.Account{AccountID: "1", PageID: "p"}), launch.Options{})
	require.NoError(t, err)

	_, err = NewApp(Deps{Logger: testLogger(), Controller: ctrl, Publisher: &progress.RedisPublisher{}})
	assert.True(t, errors.Is(err, ErrMissingFeed))
}

func TestShutdownHooks_RunLIFO(t *testing.T) {
	a := &App{logger: testLogger(), ready: make(chan struct{})}

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string, err error) ShutdownHook {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return err
		}
	}
	a.RegisterShutdownHook("first", record("first", nil))
	a.RegisterShutdownHook("second", record("second", errors.New("boom")))
	a.RegisterShutdownHook("third", record("third", nil))

	a.shutdown(context.Background())
	assert.Equal(t, []string{"third", "second", "first"}, order)
}
