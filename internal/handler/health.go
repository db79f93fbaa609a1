package handler

import (
	"context"
	"net/http"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports the service and database state.
func Health(db Pinger, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"success":  false,
				"error":    "Database unavailable",
				"status":   "degraded",
				"database": "down",
			})
			return
		}
		ok(w, http.StatusOK, map[string]any{
			"service":  "DNS Manager API",
			"version":  version,
			"status":   "running",
			"database": "up",
		})
	}
}
