// Package httpapi implements the dashboard-facing HTTP API: entity
// listings, sync triggers, analytics/forecast queries, and monitoring
// endpoints, fronted by a read-through response cache.
package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/analytics-sync/backend/infrastructure/cache"
	"github.com/analytics-sync/backend/infrastructure/errors"
	"github.com/analytics-sync/backend/infrastructure/httputil"
	"github.com/analytics-sync/backend/infrastructure/logging"
	appmetrics "github.com/analytics-sync/backend/infrastructure/metrics"
	"github.com/analytics-sync/backend/infrastructure/middleware"
	"github.com/analytics-sync/backend/internal/analytics"
	"github.com/analytics-sync/backend/internal/forecast"
	"github.com/analytics-sync/backend/internal/repository"
	"github.com/analytics-sync/backend/internal/sync"
)

// Cache TTL classes, per spec §4.5: overview/entity reads are cheap to
// refresh often, analytics queries are the most expensive to recompute so
// they get the shortest TTL instead of the longest.
const (
	ttlOverview  = 5 * time.Minute
	ttlEntities  = 10 * time.Minute
	ttlAnalytics = time.Minute
)

// Pinger is satisfied by the database pool, checked by /monitoring/health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server holds every dependency the route handlers need and implements
// http.Handler via Routes.
type Server struct {
	Cache   *cache.TTLCache
	Logger  *logging.Logger
	Metrics *appmetrics.Metrics
	DB      Pinger
	Health  *middleware.HealthChecker
	Ready   *bool

	ServiceName string

	CampaignRepo   *repository.CampaignRepository
	FlowRepo       *repository.FlowRepository
	FormRepo       *repository.FormRepository
	SegmentRepo    *repository.SegmentRepository
	SyncStatusRepo *repository.SyncStatusRepository

	Scheduler *sync.Scheduler
	Analytics *analytics.Engine

	StartedAt time.Time
}

// Routes builds the chi router mounting every endpoint in the external
// interfaces table.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", middleware.LivenessHandler())
	r.Get("/ready", middleware.ReadinessHandler(s.Ready))

	r.Get("/overview", s.handleOverview)
	r.Get("/campaigns", s.handleEntityList("campaigns"))
	r.Get("/flows", s.handleEntityList("flows"))
	r.Get("/forms", s.handleEntityList("forms"))
	r.Get("/segments", s.handleEntityList("segments"))

	r.Post("/{entity}/sync", s.handleEntitySync)
	r.Post("/sync/all", s.handleSyncAll)
	r.Get("/sync/status", s.handleSyncStatus)

	r.Get("/analytics/timeseries/{metricId}", s.handleTimeSeries)
	r.Get("/analytics/decomposition/{metricId}", s.handleDecomposition)
	r.Get("/analytics/anomalies/{metricId}", s.handleAnomalies)
	r.Get("/analytics/forecast/{metricId}", s.handleForecast)
	r.Get("/analytics/correlation", s.handleCorrelation)

	r.Get("/monitoring/health", s.Health.Handler())
	r.Get("/monitoring/metrics", s.handleMonitoringMetrics)
	r.Get("/monitoring/errors", s.handleMonitoringErrors)
	r.Get("/monitoring/status", s.handleMonitoringStatus)

	return r
}

// cached serves route under a key built from route (a fixed route name, or
// the request path for the per-metric analytics endpoints) and the
// request's normalized query string, using GetOrLoad so concurrent misses
// for the same key share one computation.
func (s *Server) cached(w http.ResponseWriter, r *http.Request, route string, ttl time.Duration, compute func(ctx context.Context) (interface{}, error)) {
	key := route + "?" + canonicalQuery(r.URL.Query())

	v, hit, err := s.Cache.GetOrLoad(r.Context(), key, ttl, compute)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.Metrics != nil {
		if hit {
			s.Metrics.RecordCacheHit(s.serviceName(), route)
		} else {
			s.Metrics.RecordCacheMiss(s.serviceName(), route)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func canonicalQuery(values url.Values) string {
	return values.Encode()
}

func (s *Server) serviceName() string {
	if s.ServiceName != "" {
		return s.ServiceName
	}
	return "analytics-api"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	se := errors.GetServiceError(err)
	if se == nil {
		se = errors.Internal("internal error", err)
	}
	if s.Logger != nil {
		s.Logger.WithContext(r.Context()).WithError(err).Warn("httpapi: request failed")
	}
	if s.Metrics != nil {
		s.Metrics.RecordError(s.serviceName(), string(se.Code), r.URL.Path)
	}
	httputil.WriteErrorResponse(w, r, se.HTTPStatus, string(se.Code), se.Message, se.Details)
}

// invalidateEntity drops every cached response for an entity's endpoints
// after its sync completes, per spec §4.5's "campaigns* invalidates on
// campaigns sync" rule.
func (s *Server) invalidateEntity(ctx context.Context, entity string) {
	removed := s.Cache.InvalidatePattern("/" + entity)
	if removed > 0 && s.Logger != nil {
		s.Logger.LogCacheInvalidation(ctx, entity, removed, "sync_completed")
	}
}

// forecasterFor resolves the method query parameter to a forecast.Forecaster.
func forecasterFor(method string, window int) (forecast.Forecaster, error) {
	switch method {
	case "", "naive":
		return forecast.Naive{}, nil
	case "movingAverage", "moving_average":
		return forecast.MovingAverage{Window: window}, nil
	case "linearRegression", "linear_regression":
		return forecast.LinearRegression{}, nil
	default:
		return nil, errors.InvalidInput("method", "must be one of naive, movingAverage, linearRegression")
	}
}
