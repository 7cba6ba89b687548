package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alexkamer/recall/internal/engine"
	"github.com/alexkamer/recall/internal/log"
)

// health handles GET /health for liveness probes.
func health(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness handles GET /ready. It verifies database connectivity and
// reports the completion engine's circuit breaker state; an open breaker
// degrades the response but does not fail the probe since chat turns can
// still be served once the cool-down elapses.
func readiness(pool *pgxpool.Pool, breakerState func() engine.BreakerState, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}

		if breakerState != nil {
			body["completionBreaker"] = breakerState().String()
		}

		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := pool.Ping(ctx); err != nil {
				logger.Warn("readiness ping failed", "error", err)
				body["status"] = "unavailable"
				body["database"] = err.Error()
				writeJSON(w, http.StatusServiceUnavailable, body, logger)
				return
			}

			stat := pool.Stat()
			body["database"] = map[string]any{
				"totalConns": stat.TotalConns(),
				"idleConns":  stat.IdleConns(),
			}
		}

		writeJSON(w, http.StatusOK, body, logger)
	}
}
