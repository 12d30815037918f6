// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrianApollo/Ops-dashboard/internal/launch"
	"github.com/BrianApollo/Ops-dashboard/internal/resilience"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(context.Context) CheckResult {
	return CheckResult{Status: m.status}
}

func TestManager_Health_NoCheckers(t *testing.T) {
	m := NewManager("v1.0.0")

	resp := m.Health(context.Background(), true)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.GreaterOrEqual(t, resp.Uptime, int64(0))
	assert.Nil(t, resp.Checks)
}

func TestManager_Health_VerboseFoldsStatus(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "healthy", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)

	m.RegisterChecker(&mockChecker{name: "down", status: StatusUnhealthy})
	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestManager_Ready(t *testing.T) {
	m := NewManager("v")
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})
	assert.True(t, m.Ready(context.Background()).Ready)

	m.RegisterChecker(&mockChecker{name: "down", status: StatusUnhealthy})
	resp := m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestServeReady_StatusCodes(t *testing.T) {
	m := NewManager("v")
	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	m.RegisterChecker(&mockChecker{name: "down", status: StatusUnhealthy})
	rec = httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Ready)
	assert.Equal(t, StatusUnhealthy, body.Checks["down"].Status)
}

func TestServeHealth_AlwaysOK(t *testing.T) {
	m := NewManager("v")
	m.RegisterChecker(&mockChecker{name: "down", status: StatusUnhealthy})

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unhealthy"`)
}

func TestBreakerChecker(t *testing.T) {
	state := resilience.StateClosed
	c := NewBreakerChecker("platform", func() resilience.State { return state })

	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)
	state = resilience.StateHalfOpen
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)
	state = resilience.StateOpen
	assert.Equal(t, StatusUnhealthy, c.Check(context.Background()).Status)
}

func TestPingChecker(t *testing.T) {
	boom := errors.New("connection refused")

	assert.Equal(t, StatusHealthy, NewPingChecker("history", nil, false).Check(context.Background()).Status)
	assert.Equal(t, StatusHealthy, NewPingChecker("history", func(context.Context) error { return nil }, false).Check(context.Background()).Status)

	res := NewPingChecker("history", func(context.Context) error { return boom }, false).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "connection refused", res.Error)

	res = NewPingChecker("redis", func(context.Context) error { return boom }, true).Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
}

func TestLaunchChecker(t *testing.T) {
	snap := launch.Snapshot{Phase: launch.PhaseUploading}
	c := NewLaunchChecker(func() launch.Snapshot { return snap })
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	snap = launch.Snapshot{Phase: launch.PhaseError, Error: "create campaign: rejected"}
	res := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, "create campaign: rejected", res.Error)
}
