package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrianApollo/Ops-dashboard/internal/launch"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func finishedSnapshot(id string, started time.Time) launch.Snapshot {
	return launch.Snapshot{
		RunID:      id,
		Phase:      launch.PhaseComplete,
		CampaignID: "cmp_1",
		AdSetID:    "ads_1",
		Tick:       4,
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Stats: launch.Stats{
			Total:   3,
			ByStage: map[launch.Stage]int{launch.StageDone: 2, launch.StageFailed: 1},
		},
	}
}

func TestStore_RecordAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, finishedSnapshot("run-a", started)))

	got, err := s.Get(ctx, "run-a")
	require.NoError(t, err)

	want := Run{
		ID: "run-a", Phase: launch.PhaseComplete, CampaignID: "cmp_1", AdSetID: "ads_1",
		Total: 3, Done: 2, Failed: 1, Ticks: 4,
		StartedAt: started, FinishedAt: started.Add(90 * time.Second),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_RecordUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	running := launch.Snapshot{RunID: "run-b", Phase: launch.PhaseUploading, StartedAt: started}
	require.NoError(t, s.Record(ctx, running))

	stopped := running
	stopped.Phase = launch.PhaseStopped
	stopped.Error = "stopped by operator"
	require.NoError(t, s.Record(ctx, stopped))

	runs, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, launch.PhaseStopped, runs[0].Phase)
	assert.Equal(t, "stopped by operator", runs[0].Error)
	assert.True(t, runs[0].FinishedAt.IsZero())
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.Record(ctx, finishedSnapshot(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
}

func TestStore_ListOrdersSubSecondStarts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, finishedSnapshot("whole-second", base)))
	require.NoError(t, s.Record(ctx, finishedSnapshot("half-second", base.Add(500*time.Millisecond))))

	runs, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "half-second", runs[0].ID)
	assert.Equal(t, "whole-second", runs[1].ID)
	assert.Equal(t, base.Add(500*time.Millisecond), runs[0].StartedAt)
}

func TestFormatTime_FixedWidth(t *testing.T) {
	a := formatTime(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	b := formatTime(time.Date(2025, 3, 1, 12, 0, 0, 500_000_000, time.FixedZone("CET", 3600)))
	assert.Equal(t, "2025-03-01T12:00:00.000000000Z", a)
	assert.Equal(t, "2025-03-01T11:00:00.500000000Z", b)
	assert.Len(t, b, len(a))
	assert.True(t, parseTime(a).Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)))
	assert.Empty(t, formatTime(time.Time{}))
}

func TestStore_GetUnknown(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RecordRequiresRunID(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Record(context.Background(), launch.Snapshot{Phase: launch.PhaseComplete}))
}

func TestStore_ReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.sqlite")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, finishedSnapshot("run-c", time.Now().UTC())))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(ctx, "run-c")
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))

	issues, err := s.Verify()
	require.NoError(t, err)
	assert.Nil(t, issues)
}

func TestVerifyIntegrity_DetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corruptible.sqlite")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		snap := finishedSnapshot(fmt.Sprintf("run-%03d", i), base.Add(time.Duration(i)*time.Minute))
		snap.Error = strings.Repeat("x", 64)
		require.NoError(t, s.Record(ctx, snap))
	}
	// Fold the WAL back into the main file before damaging it.
	_, err = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	junk := make([]byte, 512)
	for i := range junk {
		junk[i] = 0xA5
	}
	_, err = f.WriteAt(junk, 4096)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Depending on which page is hit sqlite either reports diagnostic rows
	// or refuses the pragma outright.
	issues, err := VerifyIntegrity(path, true)
	if err == nil {
		assert.NotEmpty(t, issues)
	}
}
