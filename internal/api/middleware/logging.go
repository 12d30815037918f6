// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/BrianApollo/Ops-dashboard/internal/log"
)

// AccessLog writes one structured line per request. Probes and scrapes are
// logged at debug level.
func AccessLog() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			logger := log.WithComponentFromContext(r.Context(), "api")
			var ev *zerolog.Event
			switch {
			case sw.statusCode >= 500:
				ev = logger.Error()
			case isProbe(r.URL.Path):
				ev = logger.Debug()
			default:
				ev = logger.Info()
			}
			ev.Str(log.FieldEvent, "http.request").
				Str("method", r.Method).
				Str(log.FieldPath, routePattern(r)).
				Int("status", sw.statusCode).
				Int("bytes", sw.bytesWritten).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Msg("request handled")
		})
	}
}

func isProbe(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics":
		return true
	}
	return false
}
