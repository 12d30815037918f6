// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package launch

import "time"

// MediaType is immutable for the lifetime of an item.
type MediaType string

const (
	MediaVideo MediaType = "video"
	MediaImage MediaType = "image"
)

// Stage is the coarse pipeline position of an item.
type Stage string

const (
	StageUpload Stage = "upload"
	StagePoll   Stage = "poll"
	StageAd     Stage = "ad"
	StageDone   Stage = "done"
	StageFailed Stage = "failed"
)

// Status is the execution state of an item within its stage.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusRetry      Status = "retry"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Phase is the pipeline-wide state shown to operators.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseChecking         Phase = "checking"
	PhaseUploading        Phase = "uploading"
	PhasePolling          Phase = "polling"
	PhaseCreatingCampaign Phase = "creating_campaign"
	PhaseCreatingAds      Phase = "creating_ads"
	PhaseStopped          Phase = "stopped"
	PhaseComplete         Phase = "complete"
	PhaseError            Phase = "error"
)

// MediaInput describes one asset handed to the controller.
type MediaInput struct {
	Type        MediaType `json:"type" yaml:"type"`
	Name        string    `json:"name" yaml:"name"`
	URL         string    `json:"url" yaml:"url"`
	FallbackURL string    `json:"fallback_url,omitempty" yaml:"fallback_url"`

	// VideoID and ThumbnailURL are set when the video already lives in the
	// account library.
	VideoID      string `json:"video_id,omitempty" yaml:"video_id"`
	ThumbnailURL string `json:"thumbnail_url,omitempty" yaml:"thumbnail_url"`
}

// MediaItem is the tracked state of one asset. Empty strings mean "not known yet".
type MediaItem struct {
	Type         MediaType `json:"type"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	FallbackURL  string    `json:"fallback_url,omitempty"`
	Stage        Stage     `json:"stage"`
	Status       Status    `json:"status"`
	RetryCount   int       `json:"retry_count"`
	UsedFallback bool      `json:"used_fallback"`
	FBVideoID    string    `json:"fb_video_id,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	AdID         string    `json:"ad_id,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// sendURL is the source handed to the platform on upload.
func (m MediaItem) sendURL() string {
	if m.UsedFallback && m.FallbackURL != "" {
		return m.FallbackURL
	}
	return m.URL
}

func (m MediaItem) hasUnusedFallback() bool {
	return m.FallbackURL != "" && !m.UsedFallback
}

func (m MediaItem) pending() bool {
	return m.Status == StatusQueued || m.Status == StatusRetry
}

func (m MediaItem) settled() bool {
	return m.Stage == StageDone || m.Stage == StageFailed
}

// evidenceStage derives where an item should resume from what is already known.
func (m MediaItem) evidenceStage() Stage {
	if m.Type == MediaImage {
		return StageAd
	}
	switch {
	case m.FBVideoID == "":
		return StageUpload
	case m.ThumbnailURL == "":
		return StagePoll
	default:
		return StageAd
	}
}

// Stats are aggregate counts computed fresh for every snapshot.
type Stats struct {
	Total    int            `json:"total"`
	ByStage  map[Stage]int  `json:"by_stage"`
	ByStatus map[Status]int `json:"by_status"`
}

// Stage returns the number of items at s.
func (s Stats) Stage(st Stage) int { return s.ByStage[st] }

// Status returns the number of items with status st.
func (s Stats) Status(st Status) int { return s.ByStatus[st] }

// Snapshot is a read-only copy of the pipeline state.
type Snapshot struct {
	RunID      string      `json:"run_id,omitempty"`
	Phase      Phase       `json:"phase"`
	CampaignID string      `json:"campaign_id,omitempty"`
	AdSetID    string      `json:"adset_id,omitempty"`
	Tick       int         `json:"tick"`
	MaxTicks   int         `json:"max_ticks"`
	Rate       float64     `json:"rate"`
	Error      string      `json:"error,omitempty"`
	IsRunning  bool        `json:"is_running"`
	IsStopped  bool        `json:"is_stopped"`
	StartedAt  time.Time   `json:"started_at,omitzero"`
	FinishedAt time.Time   `json:"finished_at,omitzero"`
	Elapsed    float64     `json:"elapsed_seconds"`
	Stats      Stats       `json:"stats"`
	Media      []MediaItem `json:"media"`
}

// Item returns the item called name.
func (s Snapshot) Item(name string) (MediaItem, bool) {
	for _, m := range s.Media {
		if m.Name == name {
			return m, true
		}
	}
	return MediaItem{}, false
}
