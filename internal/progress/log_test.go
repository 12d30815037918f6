package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/BrianApollo/Ops-dashboard/internal/launch"
)

func TestLogObserver_ThrottlesWithinPhase(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	o := NewLogObserver(logger, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return now }

	o.OnSnapshot(launch.Snapshot{Phase: launch.PhaseUploading})
	o.OnSnapshot(launch.Snapshot{Phase: launch.PhaseUploading}) // throttled
	now = now.Add(2 * time.Minute)
	o.OnSnapshot(launch.Snapshot{Phase: launch.PhaseUploading})
	o.OnSnapshot(launch.Snapshot{Phase: launch.PhasePolling})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"level":"info"`)
	assert.Contains(t, lines[1], `"level":"debug"`)
	assert.Contains(t, lines[2], `"phase":"polling"`)
}
