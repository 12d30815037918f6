package launch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BrianApollo/Ops-dashboard/internal/adsplatform"
)

// fakeClock returns immediately from After and records every requested wait.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waits   []time.Duration
	onAfter func(d time.Duration)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	f.waits = append(f.waits, d)
	f.now = f.now.Add(d)
	now, hook := f.now, f.onAfter
	f.mu.Unlock()

	if hook != nil {
		hook(d)
	}
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (f *fakeClock) Waits() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.waits...)
}

// fakePlatform succeeds by default; every operation can be scripted.
type fakePlatform struct {
	mu sync.Mutex

	library  map[string]adsplatform.LibraryVideo
	checkErr error

	uploadFn func(call int, reqs []adsplatform.UploadRequest) (adsplatform.BatchResult, error)
	pollFn   func(call int, ids []string) (adsplatform.LibraryResult, error)
	adsFn    func(call int, ads []adsplatform.AdRequest) (adsplatform.BatchResult, error)

	campaign    adsplatform.CreateResult
	campaignErr error
	adset       adsplatform.CreateResult
	adsetErr    error

	checkCalls    [][]string
	uploadCalls   [][]adsplatform.UploadRequest
	pollCalls     [][]string
	adsCalls      [][]adsplatform.AdRequest
	campaignCalls int
	adsetCalls    int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		library:  make(map[string]adsplatform.LibraryVideo),
		campaign: adsplatform.CreateResult{ID: "cmp-1", Rate: 12},
		adset:    adsplatform.CreateResult{ID: "as-1", Rate: 13},
	}
}

func okItem(id string) adsplatform.BatchItemResult {
	return adsplatform.BatchItemResult{Code: 200, Body: fmt.Sprintf(`{"id":%q}`, id)}
}

func failItem(msg string) adsplatform.BatchItemResult {
	return adsplatform.BatchItemResult{Code: 400, Body: fmt.Sprintf(`{"error":{"message":%q,"code":100}}`, msg)}
}

func (f *fakePlatform) CheckLibraryByName(_ context.Context, _ string, names []string) (adsplatform.LibraryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls = append(f.checkCalls, append([]string(nil), names...))
	if f.checkErr != nil {
		return adsplatform.LibraryResult{Rate: -1}, f.checkErr
	}
	res := adsplatform.LibraryResult{Items: make(map[string]adsplatform.LibraryVideo), Rate: 5}
	for _, n := range names {
		if v, ok := f.library[n]; ok {
			res.Items[n] = v
		}
	}
	return res, nil
}

func (f *fakePlatform) UploadVideoBatch(_ context.Context, _ string, reqs []adsplatform.UploadRequest) (adsplatform.BatchResult, error) {
	f.mu.Lock()
	f.uploadCalls = append(f.uploadCalls, append([]adsplatform.UploadRequest(nil), reqs...))
	call, fn := len(f.uploadCalls), f.uploadFn
	f.mu.Unlock()

	if fn != nil {
		return fn(call, reqs)
	}
	res := adsplatform.BatchResult{Rate: 20}
	for _, r := range reqs {
		res.Items = append(res.Items, okItem("vid-"+r.Name))
	}
	return res, nil
}

func (f *fakePlatform) PollLibrary(_ context.Context, _ string, ids []string) (adsplatform.LibraryResult, error) {
	f.mu.Lock()
	f.pollCalls = append(f.pollCalls, append([]string(nil), ids...))
	call, fn := len(f.pollCalls), f.pollFn
	f.mu.Unlock()

	if fn != nil {
		return fn(call, ids)
	}
	res := adsplatform.LibraryResult{Items: make(map[string]adsplatform.LibraryVideo), Rate: 30}
	for _, id := range ids {
		res.Items[id] = readyVideo(id)
	}
	return res, nil
}

func (f *fakePlatform) CreateCampaign(_ context.Context, _ string, _ adsplatform.CampaignConfig) (adsplatform.CreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaignCalls++
	return f.campaign, f.campaignErr
}

func (f *fakePlatform) CreateAdSet(_ context.Context, _, _ string, _ adsplatform.AdSetConfig, _ string) (adsplatform.CreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adsetCalls++
	return f.adset, f.adsetErr
}

func (f *fakePlatform) CreateAdsBatch(_ context.Context, _, _, _ string, ads []adsplatform.AdRequest, _ adsplatform.CreativeConfig) (adsplatform.BatchResult, error) {
	f.mu.Lock()
	f.adsCalls = append(f.adsCalls, append([]adsplatform.AdRequest(nil), ads...))
	call, fn := len(f.adsCalls), f.adsFn
	f.mu.Unlock()

	if fn != nil {
		return fn(call, ads)
	}
	res := adsplatform.BatchResult{Rate: 40}
	for _, a := range ads {
		res.Items = append(res.Items, okItem("ad-"+a.Name))
	}
	return res, nil
}

func (f *fakePlatform) uploads() [][]adsplatform.UploadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]adsplatform.UploadRequest(nil), f.uploadCalls...)
}

func (f *fakePlatform) ads() [][]adsplatform.AdRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]adsplatform.AdRequest(nil), f.adsCalls...)
}

func readyVideo(id string) adsplatform.LibraryVideo {
	return adsplatform.LibraryVideo{
		ID:        id,
		Status:    adsplatform.VideoStatusReady,
		Thumbnail: "https://thumbs.test/" + id + ".jpg",
	}
}

// recorder keeps every emitted snapshot.
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) OnSnapshot(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

// phases returns the distinct consecutive phases seen.
func (r *recorder) phases() []Phase {
	var out []Phase
	for _, s := range r.all() {
		if len(out) == 0 || out[len(out)-1] != s.Phase {
			out = append(out, s.Phase)
		}
	}
	return out
}

// countAt counts items sitting in stage with status.
func countAt(s Snapshot, stage Stage, status Status) int {
	n := 0
	for _, m := range s.Media {
		if m.Stage == stage && m.Status == status {
			n++
		}
	}
	return n
}

func testParams() CampaignParams {
	return CampaignParams{
		AccountID: "1234",
		PageID:    "page-1",
		PixelID:   "pixel-1",
		Campaign:  adsplatform.CampaignConfig{Name: "Spring", Objective: "OUTCOME_SALES"},
		AdSet:     adsplatform.AdSetConfig{Name: "Spring AS", OptimizationGoal: "OFFSITE_CONVERSIONS"},
		Creative:  adsplatform.CreativeConfig{Message: "Hello", Headline: "Spring", Link: "https://shop.test"},
	}
}

func videos(n int) []MediaInput {
	out := make([]MediaInput, n)
	for i := range out {
		out[i] = MediaInput{Type: MediaVideo, Name: fmt.Sprintf("clip-%02d", i+1), URL: fmt.Sprintf("https://media.test/clip-%02d.mp4", i+1)}
	}
	return out
}

type harness struct {
	ctrl     *Controller
	platform *fakePlatform
	clock    *fakeClock
	rec      *recorder
}

func newHarness(t *testing.T, media []MediaInput, opts Options, setup ...func(*fakePlatform)) *harness {
	t.Helper()
	h := &harness{platform: newFakePlatform(), clock: newFakeClock(), rec: &recorder{}}
	for _, fn := range setup {
		fn(h.platform)
	}
	ctrl, err := New(h.platform, media, testParams(), opts, WithClock(h.clock), WithObserver(h.rec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.ctrl = ctrl
	return h
}
