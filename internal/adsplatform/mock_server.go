// SPDX-License-Identifier: MIT
package adsplatform

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

// MockServer is an in-process stand-in for the platform API used by tests and
// dry runs. Uploaded videos become ready after a configurable number of polls.
type MockServer struct {
	*httptest.Server

	mu          sync.Mutex
	version     string
	token       string
	usage       float64
	readyAfter  int
	nextID      int
	videos      map[string]*mockVideo // by id
	order       []string
	ads         map[string]string // ad id -> name
	uploadFails map[string]int    // file_url -> remaining failures
	processFail map[string]bool   // file_url -> remote processing fails
	adFails     map[string]int    // ad name -> remaining failures
	batchFails  int
	campaignErr *APIError
	adSetErr    *APIError
	calls       map[string]int
	batchSizes  map[string][]int
}

type mockVideo struct {
	id      string
	title   string
	fileURL string
	status  string
	thumb   string
	polls   int
}

// NewMockServer starts a mock serving DefaultAPIVersion.
func NewMockServer() *MockServer {
	m := &MockServer{
		version:     DefaultAPIVersion,
		readyAfter:  1,
		videos:      make(map[string]*mockVideo),
		ads:         make(map[string]string),
		uploadFails: make(map[string]int),
		processFail: make(map[string]bool),
		adFails:     make(map[string]int),
		calls:       make(map[string]int),
		batchSizes:  make(map[string][]int),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.route))
	return m
}

// SetAccessToken makes the mock reject requests without this bearer token.
func (m *MockServer) SetAccessToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// SetUsage sets the utilisation reported in X-Ad-Account-Usage.
func (m *MockServer) SetUsage(percent float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = percent
}

// SetReadyAfter sets how many polls an uploaded video needs before it is ready.
func (m *MockServer) SetReadyAfter(polls int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readyAfter = polls
}

// SeedVideo adds an existing library video and returns its id.
func (m *MockServer) SeedVideo(title, status, thumbnail string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.addVideoLocked(title, "")
	v.status = status
	v.thumb = thumbnail
	return v.id
}

// FailUpload rejects the next times uploads of fileURL.
func (m *MockServer) FailUpload(fileURL string, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadFails[fileURL] = times
}

// FailProcessing accepts uploads of fileURL but reports remote processing errors on poll.
func (m *MockServer) FailProcessing(fileURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processFail[fileURL] = true
}

// FailAd rejects the next times creations of the ad called name.
func (m *MockServer) FailAd(name string, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adFails[name] = times
}

// FailBatches answers the next n batch requests with a 503.
func (m *MockServer) FailBatches(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchFails = n
}

// FailCampaign makes campaign creation return err.
func (m *MockServer) FailCampaign(err *APIError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaignErr = err
}

// FailAdSet makes ad set creation return err.
func (m *MockServer) FailAdSet(err *APIError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adSetErr = err
}

// Calls returns how many requests of op were served.
func (m *MockServer) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// BatchSizes returns the size of every served batch of op, in order.
func (m *MockServer) BatchSizes(op string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.batchSizes[op]...)
}

// AdCount returns the number of ads created so far.
func (m *MockServer) AdCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ads)
}

func (m *MockServer) route(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w.Header().Set(HeaderAdAccountUsage, fmt.Sprintf(`{"acc_id_util_pct":%g}`, m.usage))
	w.Header().Set("Content-Type", "application/json")

	if m.token != "" && r.Header.Get("Authorization") != "Bearer "+m.token {
		writeAPIError(w, http.StatusUnauthorized, &APIError{Message: "Invalid OAuth access token.", Type: "OAuthException", Code: 190})
		return
	}

	prefix := "/" + m.version + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, prefix)

	if err := r.ParseForm(); err != nil {
		writeAPIError(w, http.StatusBadRequest, &APIError{Message: err.Error(), Code: 100})
		return
	}

	switch {
	case rest == "" && r.Method == http.MethodGet:
		m.handleLookup(w, r.Form)
	case rest == "" && r.Method == http.MethodPost:
		m.handleBatch(w, r.Form)
	case strings.HasSuffix(rest, "/advideos") && r.Method == http.MethodGet:
		m.handleLibrary(w, r.Form)
	case strings.HasSuffix(rest, "/campaigns") && r.Method == http.MethodPost:
		m.handleCreate(w, "create_campaign", "cmp", m.campaignErr)
	case strings.HasSuffix(rest, "/adsets") && r.Method == http.MethodPost:
		m.handleCreate(w, "create_adset", "ads", m.adSetErr)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockServer) handleLibrary(w http.ResponseWriter, form url.Values) {
	m.calls["check_library"]++

	var filters []struct {
		Field string   `json:"field"`
		Value []string `json:"value"`
	}
	wanted := make(map[string]bool)
	if err := json.Unmarshal([]byte(form.Get("filtering")), &filters); err == nil {
		for _, f := range filters {
			if f.Field != "title" {
				continue
			}
			for _, v := range f.Value {
				wanted[TitleKey(v)] = true
			}
		}
	}

	data := make([]map[string]any, 0)
	for _, id := range m.order {
		v := m.videos[id]
		if len(wanted) > 0 && !wanted[TitleKey(v.title)] {
			continue
		}
		data = append(data, v.node())
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func (m *MockServer) handleLookup(w http.ResponseWriter, form url.Values) {
	m.calls["poll_library"]++

	out := make(map[string]any)
	for _, id := range strings.Split(form.Get("ids"), ",") {
		v, ok := m.videos[id]
		if !ok {
			continue
		}
		v.polls++
		if v.status == VideoStatusProcessing {
			switch {
			case m.processFail[v.fileURL]:
				v.status = VideoStatusError
			case v.polls >= m.readyAfter:
				v.status = VideoStatusReady
				v.thumb = fmt.Sprintf("https://cdn.mock.local/thumbs/%s.jpg", v.id)
			}
		}
		out[id] = v.node()
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (m *MockServer) handleBatch(w http.ResponseWriter, form url.Values) {
	var ops []batchOp
	if err := json.Unmarshal([]byte(form.Get("batch")), &ops); err != nil {
		writeAPIError(w, http.StatusBadRequest, &APIError{Message: "invalid batch: " + err.Error(), Code: 100})
		return
	}

	kind := "ads_batch"
	if len(ops) > 0 && strings.HasSuffix(ops[0].RelativeURL, "/advideos") {
		kind = "upload_batch"
	}
	m.calls[kind]++
	m.batchSizes[kind] = append(m.batchSizes[kind], len(ops))

	if m.batchFails > 0 {
		m.batchFails--
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("temporarily unavailable"))
		return
	}

	replies := make([]batchReply, 0, len(ops))
	for _, op := range ops {
		body, _ := url.ParseQuery(op.Body)
		switch {
		case strings.HasSuffix(op.RelativeURL, "/advideos"):
			replies = append(replies, m.uploadReply(body))
		case strings.HasSuffix(op.RelativeURL, "/ads"):
			replies = append(replies, m.adReply(body))
		default:
			replies = append(replies, errorReply(http.StatusBadRequest, &APIError{Message: "unsupported path", Code: 100}))
		}
	}
	_ = json.NewEncoder(w).Encode(replies)
}

func (m *MockServer) uploadReply(body url.Values) batchReply {
	fileURL := body.Get("file_url")
	if n := m.uploadFails[fileURL]; n > 0 {
		m.uploadFails[fileURL] = n - 1
		return errorReply(http.StatusBadRequest, &APIError{
			Message: "Failed to fetch video from URL", Type: "OAuthException", Code: 100, Subcode: 1363030,
		})
	}
	v := m.addVideoLocked(body.Get("title"), fileURL)
	return okReply(v.id)
}

func (m *MockServer) adReply(body url.Values) batchReply {
	name := body.Get("name")
	if n := m.adFails[name]; n > 0 {
		m.adFails[name] = n - 1
		return errorReply(http.StatusBadRequest, &APIError{Message: "Invalid creative", Type: "OAuthException", Code: 100})
	}
	m.nextID++
	id := fmt.Sprintf("ad_%d", m.nextID)
	m.ads[id] = name
	return okReply(id)
}

func (m *MockServer) handleCreate(w http.ResponseWriter, op, prefix string, failure *APIError) {
	m.calls[op]++
	if failure != nil {
		writeAPIError(w, http.StatusBadRequest, failure)
		return
	}
	m.nextID++
	_ = json.NewEncoder(w).Encode(map[string]string{"id": fmt.Sprintf("%s_%d", prefix, m.nextID)})
}

func (m *MockServer) addVideoLocked(title, fileURL string) *mockVideo {
	m.nextID++
	v := &mockVideo{
		id:      fmt.Sprintf("vid_%d", m.nextID),
		title:   title,
		fileURL: fileURL,
		status:  VideoStatusProcessing,
	}
	m.videos[v.id] = v
	m.order = append(m.order, v.id)
	return v
}

func (v *mockVideo) node() map[string]any {
	n := map[string]any{
		"id":     v.id,
		"title":  v.title,
		"status": map[string]any{"video_status": v.status},
	}
	if v.thumb != "" {
		n["picture"] = v.thumb
	}
	return n
}

func okReply(id string) batchReply {
	return batchReply{Code: http.StatusOK, Body: fmt.Sprintf(`{"id":%q}`, id)}
}

func errorReply(status int, apiErr *APIError) batchReply {
	body, _ := json.Marshal(errorEnvelope{Error: apiErr})
	return batchReply{Code: status, Body: string(body)}
}

func writeAPIError(w http.ResponseWriter, status int, apiErr *APIError) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: apiErr})
}
