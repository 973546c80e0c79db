package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/analytics-sync/backend/internal/model"
)

// KPI is a single dashboard metric compared against the prior period of
// equal length.
type KPI struct {
	Current       float64 `json:"current"`
	Previous      float64 `json:"previous"`
	ChangePercent float64 `json:"changePercent"`
}

func newKPI(current, previous float64) KPI {
	kpi := KPI{Current: current, Previous: previous}
	switch {
	case previous == 0 && current == 0:
		kpi.ChangePercent = 0
	case previous == 0:
		kpi.ChangePercent = 100
	default:
		kpi.ChangePercent = (current - previous) / previous * 100
	}
	return kpi
}

type overviewResponse struct {
	Sent        KPI `json:"sent"`
	Opens       KPI `json:"opens"`
	Clicks      KPI `json:"clicks"`
	Conversions KPI `json:"conversions"`
	Revenue     KPI `json:"revenue"`
}

func sumCounters(rows []model.Campaign) (sent, opens, clicks, conversions, revenue float64) {
	for _, c := range rows {
		sent += float64(c.SentCount)
		opens += float64(c.OpenCount)
		clicks += float64(c.ClickCount)
		conversions += float64(c.ConversionCount)
		revenue += c.Revenue.Float64()
	}
	return
}

// handleOverview answers GET /overview: aggregate campaign KPIs for the
// requested date range against the immediately preceding period of equal
// length.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	start, end := ParseDateRange(r.URL.Query().Get("dateRange"), time.Now())

	s.cached(w, r, "/overview", ttlOverview, func(ctx context.Context) (interface{}, error) {
		duration := end.Sub(start)
		prevEnd := start.Add(-time.Millisecond)
		prevStart := prevEnd.Add(-duration)

		current, err := s.CampaignRepo.FindByDateRange(ctx, start, end)
		if err != nil {
			return nil, dbErr("load campaigns", err)
		}
		previous, err := s.CampaignRepo.FindByDateRange(ctx, prevStart, prevEnd)
		if err != nil {
			return nil, dbErr("load campaigns", err)
		}

		curSent, curOpens, curClicks, curConv, curRevenue := sumCounters(current)
		prevSent, prevOpens, prevClicks, prevConv, prevRevenue := sumCounters(previous)

		return overviewResponse{
			Sent:        newKPI(curSent, prevSent),
			Opens:       newKPI(curOpens, prevOpens),
			Clicks:      newKPI(curClicks, prevClicks),
			Conversions: newKPI(curConv, prevConv),
			Revenue:     newKPI(curRevenue, prevRevenue),
		}, nil
	})
}

// dateRangeRepo is satisfied by every counter-entity repository
// (Campaign/Flow/Form/Segment), letting handleEntityList stay generic over
// which one it queries.
type dateRangeRepo[T any] interface {
	FindByDateRange(ctx context.Context, start, end time.Time) ([]T, error)
}

func entityListHandler[T any](s *Server, route string, repo dateRangeRepo[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end := ParseDateRange(r.URL.Query().Get("dateRange"), time.Now())
		s.cached(w, r, route, ttlEntities, func(ctx context.Context) (interface{}, error) {
			rows, err := repo.FindByDateRange(ctx, start, end)
			if err != nil {
				return nil, dbErr("load "+route, err)
			}
			return rows, nil
		})
	}
}

// handleEntityList returns a handler for one of /campaigns, /flows, /forms,
// /segments, each backed by its own repository but sharing the same
// date-range-filtered, cached read path.
func (s *Server) handleEntityList(entity string) http.HandlerFunc {
	route := "/" + entity
	switch entity {
	case "campaigns":
		return entityListHandler[model.Campaign](s, route, s.CampaignRepo)
	case "flows":
		return entityListHandler[model.Flow](s, route, s.FlowRepo)
	case "forms":
		return entityListHandler[model.Form](s, route, s.FormRepo)
	case "segments":
		return entityListHandler[model.Segment](s, route, s.SegmentRepo)
	default:
		return func(w http.ResponseWriter, r *http.Request) {
			s.writeError(w, r, notFoundEntity(entity))
		}
	}
}
