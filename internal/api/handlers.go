// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BrianApollo/Ops-dashboard/internal/history"
	"github.com/BrianApollo/Ops-dashboard/internal/launch"
	xglog "github.com/BrianApollo/Ops-dashboard/internal/log"
)

// retryResponse reports how many items were requeued.
type retryResponse struct {
	Requeued int             `json:"requeued"`
	Snapshot launch.Snapshot `json:"snapshot"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Launcher.State())
}

// handleStart launches a full run in the background and answers 202 with
// the snapshot at acceptance time.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if snap := s.deps.Launcher.State(); snap.IsRunning {
		writeConflict(w, launch.ErrAlreadyRunning)
		return
	}

	logger := xglog.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(xglog.FieldEvent, "launch.start_requested").
		Msg("launch start requested")

	s.background("launch.run", s.deps.Launcher.Start)
	writeJSON(w, http.StatusAccepted, s.deps.Launcher.State())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.deps.Launcher.Stop()
	logger := xglog.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(xglog.FieldEvent, "launch.stop_requested").
		Msg("launch stop requested")
	writeJSON(w, http.StatusOK, s.deps.Launcher.State())
}

func (s *Server) handleRetryFailed(w http.ResponseWriter, _ *http.Request) {
	n := s.deps.Launcher.RetryFailed()
	writeJSON(w, http.StatusOK, retryResponse{Requeued: n, Snapshot: s.deps.Launcher.State()})
}

func (s *Server) handleRetryAll(w http.ResponseWriter, _ *http.Request) {
	n, err := s.deps.Launcher.RetryAll()
	if errors.Is(err, launch.ErrAlreadyRunning) {
		writeConflict(w, err)
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, retryResponse{Requeued: n, Snapshot: s.deps.Launcher.State()})
}

// handleRunPhase runs one named phase in the background.
func (s *Server) handleRunPhase(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !slices.Contains(launch.PhaseNames(), name) {
		writeNotFound(w, fmt.Sprintf("%v: %q (known: %v)", launch.ErrUnknownPhase, name, launch.PhaseNames()))
		return
	}
	if snap := s.deps.Launcher.State(); snap.IsRunning {
		writeConflict(w, launch.ErrAlreadyRunning)
		return
	}

	s.background("launch.phase", func(ctx context.Context) (launch.Snapshot, error) {
		return s.deps.Launcher.RunPhase(ctx, name)
	})
	writeJSON(w, http.StatusAccepted, s.deps.Launcher.State())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeServiceUnavailable(w, "run history is disabled")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := s.deps.Runs.List(r.Context(), limit)
	if err != nil {
		writeInternal(w, err)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeServiceUnavailable(w, "run history is disabled")
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.deps.Runs.Get(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		writeNotFound(w, fmt.Sprintf("run %q not found", id))
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
