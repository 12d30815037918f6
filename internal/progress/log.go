package progress

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/BrianApollo/Ops-dashboard/internal/launch"
	xglog "github.com/BrianApollo/Ops-dashboard/internal/log"
)

// LogObserver writes compact progress lines: every phase change at info
// level, other updates at most once per interval at debug level.
type LogObserver struct {
	logger   zerolog.Logger
	interval time.Duration

	mu        sync.Mutex
	lastPhase launch.Phase
	lastLine  time.Time
	now       func() time.Time
}

// NewLogObserver creates a log observer. interval <= 0 logs every update.
func NewLogObserver(logger zerolog.Logger, interval time.Duration) *LogObserver {
	return &LogObserver{logger: logger, interval: interval, now: time.Now}
}

func (o *LogObserver) OnSnapshot(s launch.Snapshot) {
	o.mu.Lock()
	now := o.now()
	phaseChanged := s.Phase != o.lastPhase
	due := o.interval <= 0 || now.Sub(o.lastLine) >= o.interval
	if !phaseChanged && !due {
		o.mu.Unlock()
		return
	}
	o.lastPhase = s.Phase
	o.lastLine = now
	o.mu.Unlock()

	ev := o.logger.Debug()
	if phaseChanged {
		ev = o.logger.Info()
	}
	ev.Str(xglog.FieldEvent, "progress.update").
		Str(xglog.FieldRunID, s.RunID).
		Str(xglog.FieldPhase, string(s.Phase)).
		Int(xglog.FieldTick, s.Tick).
		Int("upload", s.Stats.Stage(launch.StageUpload)).
		Int("poll", s.Stats.Stage(launch.StagePoll)).
		Int("ad", s.Stats.Stage(launch.StageAd)).
		Int("done", s.Stats.Stage(launch.StageDone)).
		Int("failed", s.Stats.Stage(launch.StageFailed)).
		Int("total", s.Stats.Total).
		Float64(xglog.FieldRate, s.Rate).
		Msg("launch progress")
}
