package httpapi

import (
	"net/http"
	"time"

	"github.com/analytics-sync/backend/infrastructure/httputil"
	"github.com/analytics-sync/backend/infrastructure/middleware"
)

// /health and /monitoring/health are served directly off a
// *middleware.HealthChecker mounted in Routes; see server.go. The latter
// carries a registered "database" check, so it reports unhealthy (503)
// when the pool can't be pinged, while /health stays a cheap liveness-only
// probe with no DB round trip.

// handleMonitoringMetrics answers GET /monitoring/metrics: a thin JSON view
// over runtime stats and cache occupancy. The Prometheus exposition format
// scraped by an external collector is mounted separately at the process
// root, not under this dashboard-facing API.
func (s *Server) handleMonitoringMetrics(w http.ResponseWriter, r *http.Request) {
	stats := middleware.RuntimeStats()
	stats["cache_entries"] = s.Cache.Size()
	stats["uptime_seconds"] = time.Since(s.StartedAt).Seconds()
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// handleMonitoringErrors answers GET /monitoring/errors: the entity types
// whose last sync job failed, as a thin view over sync status rather than a
// general error log.
func (s *Server) handleMonitoringErrors(w http.ResponseWriter, r *http.Request) {
	rows, err := s.SyncStatusRepo.ListAll(r.Context())
	if err != nil {
		s.writeError(w, r, dbErr("load sync status", err))
		return
	}

	failures := make([]syncStatusRow, 0, len(rows))
	for _, row := range rows {
		if row.ErrorMessage != nil {
			failures = append(failures, toSyncStatusRow(row))
		}
	}
	httputil.WriteJSON(w, http.StatusOK, failures)
}

// handleMonitoringStatus answers GET /monitoring/status: overall process
// status plus the per-entity-type sync bookkeeping.
func (s *Server) handleMonitoringStatus(w http.ResponseWriter, r *http.Request) {
	rows, err := s.SyncStatusRepo.ListAll(r.Context())
	if err != nil {
		s.writeError(w, r, dbErr("load sync status", err))
		return
	}

	out := make([]syncStatusRow, len(rows))
	for i, row := range rows {
		out[i] = toSyncStatusRow(row)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "running",
		"startedAt":  s.StartedAt.UTC().Format(time.RFC3339),
		"uptime":     time.Since(s.StartedAt).String(),
		"syncStatus": out,
	})
}
