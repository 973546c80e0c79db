package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/analytics-sync/backend/infrastructure/config"
	"github.com/analytics-sync/backend/infrastructure/httputil"
	"github.com/analytics-sync/backend/internal/model"
	"github.com/analytics-sync/backend/internal/sync"
)

func parseSyncOptions(r *http.Request) sync.Options {
	q := r.URL.Query()
	opts := sync.Options{
		Force: config.ParseBoolOrDefault(q.Get("force"), false),
	}
	if raw := q.Get("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			opts.Since = &t
		}
	}
	if raw := q.Get("entities"); raw != "" {
		opts.EntityTypes = config.SplitAndTrimCSV(raw)
	}
	return opts
}

// handleEntitySync answers POST /{entity}/sync: runs a single entity
// type's sync job immediately, outside its cadence.
func (s *Server) handleEntitySync(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	opts := parseSyncOptions(r)

	result := s.Scheduler.TriggerNow(r.Context(), entity, opts)
	if result.OK {
		s.invalidateEntity(r.Context(), entity)
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// handleSyncAll answers POST /sync/all: runs every requested entity type
// (or every registered one) with bounded fan-out.
func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	opts := parseSyncOptions(r)

	result := s.Scheduler.TriggerAll(r.Context(), opts)
	for entity, entityResult := range result.PerEntity {
		if entityResult.OK {
			s.invalidateEntity(r.Context(), entity)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type syncStatusRow struct {
	EntityType   string     `json:"entityType"`
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`
	Status       string     `json:"status"`
	RecordCount  int64      `json:"recordCount"`
	Success      bool       `json:"success"`
	ErrorMessage *string    `json:"errorMessage,omitempty"`
}

func toSyncStatusRow(st model.SyncStatus) syncStatusRow {
	return syncStatusRow{
		EntityType:   st.EntityType,
		LastSyncTime: st.LastSyncCompletedAt,
		Status:       string(st.Status),
		RecordCount:  st.RecordCount,
		Success:      st.Status == model.SyncStateSucceeded,
		ErrorMessage: st.ErrorMessage,
	}
}

// handleSyncStatus answers GET /sync/status: the latest bookkeeping record
// for every entity type that has ever run a sync job. It is intentionally
// uncached, since its whole purpose is to reflect in-flight job state.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	rows, err := s.SyncStatusRepo.ListAll(r.Context())
	if err != nil {
		s.writeError(w, r, dbErr("load sync status", err))
		return
	}

	out := make([]syncStatusRow, len(rows))
	for i, row := range rows {
		out[i] = toSyncStatusRow(row)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
