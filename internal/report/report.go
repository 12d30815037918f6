// SPDX-License-Identifier: MIT

// Package report writes the final state of a launch run to disk.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/BrianApollo/Ops-dashboard/internal/launch"
)

// Summary holds the headline numbers of a run.
type Summary struct {
	Total          int     `json:"total"`
	Done           int     `json:"done"`
	Failed         int     `json:"failed"`
	Pending        int     `json:"pending"`
	Ticks          int     `json:"ticks"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// Failure describes one item that ended in the failed stage.
type Failure struct {
	Name       string           `json:"name"`
	Type       launch.MediaType `json:"type"`
	Error      string           `json:"error"`
	RetryCount int              `json:"retry_count"`
	Fallback   bool             `json:"used_fallback"`
}

// Report is the on-disk document.
type Report struct {
	RunID       string             `json:"run_id"`
	Phase       launch.Phase       `json:"phase"`
	GeneratedAt time.Time          `json:"generated_at"`
	CampaignID  string             `json:"campaign_id,omitempty"`
	AdSetID     string             `json:"adset_id,omitempty"`
	Error       string             `json:"error,omitempty"`
	Summary     Summary            `json:"summary"`
	Failures    []Failure          `json:"failures"`
	Media       []launch.MediaItem `json:"media"`
}

// Build condenses a snapshot into a report.
func Build(s launch.Snapshot, now time.Time) Report {
	r := Report{
		RunID:       s.RunID,
		Phase:       s.Phase,
		GeneratedAt: now.UTC(),
		CampaignID:  s.CampaignID,
		AdSetID:     s.AdSetID,
		Error:       s.Error,
		Summary: Summary{
			Total:          s.Stats.Total,
			Done:           s.Stats.Stage(launch.StageDone),
			Failed:         s.Stats.Stage(launch.StageFailed),
			Ticks:          s.Tick,
			ElapsedSeconds: s.Elapsed,
		},
		Failures: []Failure{},
		Media:    s.Media,
	}
	r.Summary.Pending = r.Summary.Total - r.Summary.Done - r.Summary.Failed

	for _, m := range s.Media {
		if m.Stage != launch.StageFailed {
			continue
		}
		r.Failures = append(r.Failures, Failure{
			Name:       m.Name,
			Type:       m.Type,
			Error:      m.Error,
			RetryCount: m.RetryCount,
			Fallback:   m.UsedFallback,
		})
	}
	sort.Slice(r.Failures, func(i, j int) bool { return r.Failures[i].Name < r.Failures[j].Name })
	return r
}

// Encode writes r as indented JSON.
func Encode(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Path returns the report location for a run inside dir.
func Path(dir, runID string) string {
	if runID == "" {
		runID = "unknown"
	}
	return filepath.Join(dir, fmt.Sprintf("launch-%s.json", runID))
}

// Write builds the report for s and atomically writes it into dir. It
// returns the path written.
func Write(ctx context.Context, dir string, s launch.Snapshot, now time.Time) (string, error) {
	path := Path(dir, s.RunID)
	if err := writeAtomic(ctx, path, Build(s, now)); err != nil {
		return "", err
	}
	return path, nil
}
