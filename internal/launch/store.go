package launch

import (
	"fmt"

	"github.com/BrianApollo/Ops-dashboard/internal/adsplatform"
)

// Failure outcomes, also used as metric labels.
const (
	outcomeFallback  = "fallback"
	outcomeRetry     = "retry"
	outcomeExhausted = "exhausted"
)

const errMaxRetries = "Max retries exceeded"

// mediaStore owns the media list of a controller. Items are addressed by
// index; the list never shrinks or reorders. Callers hold Controller.mu.
type mediaStore struct {
	items      []MediaItem
	maxRetries int
}

// claim records the status an item had before it was marked in progress.
type claim struct {
	index int
	prev  Status
	item  MediaItem // copy taken at claim time
}

func newMediaStore(inputs []MediaInput, maxRetries int) (*mediaStore, error) {
	if len(inputs) == 0 {
		return nil, ErrNoMedia
	}

	seen := make(map[string]string, len(inputs))
	items := make([]MediaItem, 0, len(inputs))
	for i, in := range inputs {
		if in.Name == "" {
			return nil, fmt.Errorf("%w: item %d has no name", ErrInvalidMedia, i)
		}
		if in.Type != MediaVideo && in.Type != MediaImage {
			return nil, fmt.Errorf("%w: %q has unknown type %q", ErrInvalidMedia, in.Name, in.Type)
		}
		if in.URL == "" && in.VideoID == "" {
			return nil, fmt.Errorf("%w: %q has no url", ErrInvalidMedia, in.Name)
		}
		key := adsplatform.TitleKey(in.Name)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %q collides with %q", ErrDuplicateName, in.Name, prev)
		}
		seen[key] = in.Name

		item := MediaItem{
			Type:        in.Type,
			Name:        in.Name,
			URL:         in.URL,
			FallbackURL: in.FallbackURL,
			Stage:       StageUpload,
			Status:      StatusQueued,
		}
		if in.Type == MediaImage {
			item.Stage = StageAd
		} else if in.VideoID != "" {
			item.FBVideoID = in.VideoID
			item.ThumbnailURL = in.ThumbnailURL
			item.Stage = StageAd
		}
		items = append(items, item)
	}

	return &mediaStore{items: items, maxRetries: maxRetries}, nil
}

// claim marks every pending item accepted by match as in progress.
func (s *mediaStore) claim(match func(MediaItem) bool) []claim {
	var out []claim
	for i := range s.items {
		it := &s.items[i]
		if !it.pending() || !match(*it) {
			continue
		}
		out = append(out, claim{index: i, prev: it.Status})
		it.Status = StatusInProgress
		out[len(out)-1].item = *it
	}
	return out
}

// release returns claimed items that were never dispatched to their prior status.
func (s *mediaStore) release(claims []claim) {
	for _, c := range claims {
		if it := &s.items[c.index]; it.Status == StatusInProgress {
			it.Status = c.prev
		}
	}
}

// uploadNames lists videos still waiting for an upload.
func (s *mediaStore) uploadNames() []string {
	var names []string
	for _, it := range s.items {
		if it.Type == MediaVideo && it.Stage == StageUpload && it.Status != StatusInProgress {
			names = append(names, it.Name)
		}
	}
	return names
}

// applyLibrary fast-forwards upload-stage videos that already exist remotely.
func (s *mediaStore) applyLibrary(found map[string]adsplatform.LibraryVideo) int {
	matched := 0
	for i := range s.items {
		it := &s.items[i]
		if it.Type != MediaVideo || it.Stage != StageUpload || it.Status == StatusInProgress {
			continue
		}
		v, ok := found[it.Name]
		if !ok || !v.Ready() {
			continue
		}
		it.FBVideoID = v.ID
		it.ThumbnailURL = v.Thumbnail
		it.Stage = StageAd
		it.Status = StatusQueued
		matched++
	}
	return matched
}

// pollTargets maps the video id of every item waiting on processing to its index.
func (s *mediaStore) pollTargets() map[string]int {
	targets := make(map[string]int)
	for i, it := range s.items {
		if it.Stage == StagePoll && it.FBVideoID != "" {
			targets[it.FBVideoID] = i
		}
	}
	return targets
}

func (s *mediaStore) uploadSucceeded(i int, videoID string) {
	it := &s.items[i]
	it.FBVideoID = videoID
	it.Stage = StagePoll
	it.Status = StatusQueued
}

// uploadFailed applies the upload retry policy and returns its outcome.
func (s *mediaStore) uploadFailed(i int, reason string) string {
	it := &s.items[i]
	it.RetryCount++
	it.Error = reason

	switch {
	case it.hasUnusedFallback():
		it.UsedFallback = true
		it.Status = StatusRetry
		return outcomeFallback
	case it.RetryCount < s.maxRetries:
		it.Status = StatusRetry
		return outcomeRetry
	default:
		s.exhaust(it)
		return outcomeExhausted
	}
}

func (s *mediaStore) processed(i int, thumbnail string) {
	it := &s.items[i]
	it.ThumbnailURL = thumbnail
	it.Stage = StageAd
	it.Status = StatusQueued
}

// processingFailed sends a video rejected by remote processing back to upload.
func (s *mediaStore) processingFailed(i int, reason string) string {
	it := &s.items[i]
	it.FBVideoID = ""
	it.Stage = StageUpload
	return s.uploadFailed(i, reason)
}

// pollFailed charges a failed lookup to a video waiting on processing. The
// item stays at poll so the next tick looks it up again.
func (s *mediaStore) pollFailed(i int, reason string) string {
	it := &s.items[i]
	it.RetryCount++
	it.Error = reason
	if it.RetryCount < s.maxRetries {
		it.Status = StatusRetry
		return outcomeRetry
	}
	s.exhaust(it)
	return outcomeExhausted
}

func (s *mediaStore) adSucceeded(i int, adID string) {
	it := &s.items[i]
	it.AdID = adID
	it.Stage = StageDone
	it.Status = StatusCompleted
	it.Error = ""
}

// adFailed applies the ad retry policy. Images swap their primary URL for the
// fallback permanently; videos never consume their fallback here.
func (s *mediaStore) adFailed(i int, reason string) string {
	it := &s.items[i]
	it.RetryCount++
	it.Error = reason

	switch {
	case it.Type == MediaImage && it.hasUnusedFallback():
		it.URL = it.FallbackURL
		it.UsedFallback = true
		it.Status = StatusRetry
		return outcomeFallback
	case it.RetryCount < s.maxRetries:
		it.Status = StatusRetry
		return outcomeRetry
	default:
		s.exhaust(it)
		return outcomeExhausted
	}
}

func (s *mediaStore) exhaust(it *MediaItem) {
	it.Stage = StageFailed
	it.Status = StatusFailed
	it.Error = errMaxRetries
}

// hasUploadRetry reports whether a video is waiting for another upload pass.
func (s *mediaStore) hasUploadRetry() bool {
	for _, it := range s.items {
		if it.Type == MediaVideo && it.Stage == StageUpload && it.Status == StatusRetry {
			return true
		}
	}
	return false
}

// settled reports whether every item reached done or failed.
func (s *mediaStore) settled() bool {
	for _, it := range s.items {
		if !it.settled() {
			return false
		}
	}
	return true
}

// retryFailed requeues failed items and recomputes their stage.
func (s *mediaStore) retryFailed() int {
	n := 0
	for i := range s.items {
		it := &s.items[i]
		if it.Status != StatusFailed {
			continue
		}
		s.requeue(it)
		n++
	}
	return n
}

// retryAll requeues every unfinished item and gives back its fallback.
func (s *mediaStore) retryAll() int {
	n := 0
	for i := range s.items {
		it := &s.items[i]
		if it.Stage == StageDone {
			continue
		}
		it.UsedFallback = false
		s.requeue(it)
		n++
	}
	return n
}

func (s *mediaStore) requeue(it *MediaItem) {
	it.Status = StatusRetry
	it.RetryCount = 0
	it.Error = ""
	it.Stage = it.evidenceStage()
}

func (s *mediaStore) stats() Stats {
	st := Stats{
		Total:    len(s.items),
		ByStage:  make(map[Stage]int, 5),
		ByStatus: make(map[Status]int, 5),
	}
	for _, it := range s.items {
		st.ByStage[it.Stage]++
		st.ByStatus[it.Status]++
	}
	return st
}

func (s *mediaStore) snapshot() []MediaItem {
	out := make([]MediaItem, len(s.items))
	copy(out, s.items)
	return out
}
