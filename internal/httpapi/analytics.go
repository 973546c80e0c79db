package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/analytics-sync/backend/infrastructure/errors"
	"github.com/analytics-sync/backend/internal/analytics"
	"github.com/analytics-sync/backend/internal/model"
)

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return v
	}
	return fallback
}

func queryFloat(r *http.Request, name string, fallback float64) float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	return fallback
}

func intervalOf(r *http.Request) string {
	if v := r.URL.Query().Get("interval"); v != "" {
		return v
	}
	return "day"
}

type timeseriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

func toTimeseriesPoints(series []model.TimeSeriesPoint) []timeseriesPoint {
	out := make([]timeseriesPoint, len(series))
	for i, p := range series {
		out[i] = timeseriesPoint{Timestamp: p.Timestamp, Value: p.Value}
	}
	return out
}

// downsample reduces series to at most maxPoints by averaging consecutive
// runs into a single point, the simplest of the downsampling strategies a
// dashboard chart needs; a caller asking for "max"/"min" gets the stride's
// extreme instead of its mean.
func downsample(series []model.TimeSeriesPoint, maxPoints int, method string) []model.TimeSeriesPoint {
	if maxPoints <= 0 || len(series) <= maxPoints {
		return series
	}
	stride := (len(series) + maxPoints - 1) / maxPoints
	out := make([]model.TimeSeriesPoint, 0, maxPoints)
	for i := 0; i < len(series); i += stride {
		end := i + stride
		if end > len(series) {
			end = len(series)
		}
		bucket := series[i:end]
		out = append(out, model.TimeSeriesPoint{
			Timestamp: bucket[0].Timestamp,
			Value:     reduceBucket(bucket, method),
		})
	}
	return out
}

func reduceBucket(bucket []model.TimeSeriesPoint, method string) float64 {
	switch method {
	case "max":
		max := bucket[0].Value
		for _, p := range bucket[1:] {
			if p.Value > max {
				max = p.Value
			}
		}
		return max
	case "min":
		min := bucket[0].Value
		for _, p := range bucket[1:] {
			if p.Value < min {
				min = p.Value
			}
		}
		return min
	default:
		var sum float64
		for _, p := range bucket {
			sum += p.Value
		}
		return sum / float64(len(bucket))
	}
}

// handleTimeSeries answers GET /analytics/timeseries/{metricId}.
func (s *Server) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	metricID := chi.URLParam(r, "metricId")
	if metricID == "" {
		s.writeError(w, r, errors.InvalidInput("metricId", "Invalid metric ID"))
		return
	}
	start, end := ParseDateRange(r.URL.Query().Get("dateRange"), time.Now())
	interval := intervalOf(r)
	maxPoints := queryInt(r, "maxPoints", 0)
	downsampleMethod := r.URL.Query().Get("downsampleMethod")

	s.cached(w, r, r.URL.Path, ttlAnalytics, func(ctx context.Context) (interface{}, error) {
		series, err := s.Analytics.GetTimeSeries(ctx, metricID, start, end, interval)
		if err != nil {
			return nil, analyticsErr("Failed to fetch time series data", err)
		}
		series = downsample(series, maxPoints, downsampleMethod)
		return toTimeseriesPoints(series), nil
	})
}

type decompositionResponse struct {
	Original []timeseriesPoint `json:"original"`
	Trend    []timeseriesPoint `json:"trend"`
	Seasonal []timeseriesPoint `json:"seasonal"`
	Residual []timeseriesPoint `json:"residual"`
}

// handleDecomposition answers GET /analytics/decomposition/{metricId}.
func (s *Server) handleDecomposition(w http.ResponseWriter, r *http.Request) {
	metricID := chi.URLParam(r, "metricId")
	start, end := ParseDateRange(r.URL.Query().Get("dateRange"), time.Now())
	interval := intervalOf(r)
	windowSize := queryInt(r, "windowSize", 7)

	s.cached(w, r, r.URL.Path, ttlAnalytics, func(ctx context.Context) (interface{}, error) {
		original, err := s.Analytics.GetTimeSeries(ctx, metricID, start, end, interval)
		if err != nil {
			return nil, analyticsErr("Failed to fetch time series data", err)
		}
		decomposition, err := s.Analytics.Decompose(ctx, metricID, start, end, interval, windowSize, 0)
		if err != nil {
			return nil, errors.InvalidInput("period", err.Error())
		}
		return decompositionResponse{
			Original: toTimeseriesPoints(original),
			Trend:    toTimeseriesPoints(decomposition.Trend),
			Seasonal: toTimeseriesPoints(decomposition.Seasonal),
			Residual: toTimeseriesPoints(decomposition.Residual),
		}, nil
	})
}

type anomalyRow struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	ZScore    float64   `json:"zScore"`
}

// handleAnomalies answers GET /analytics/anomalies/{metricId}.
func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	metricID := chi.URLParam(r, "metricId")
	start, end := ParseDateRange(r.URL.Query().Get("dateRange"), time.Now())
	interval := intervalOf(r)
	threshold := queryFloat(r, "threshold", 3)
	lookback := queryInt(r, "lookbackWindow", 0)

	s.cached(w, r, r.URL.Path, ttlAnalytics, func(ctx context.Context) (interface{}, error) {
		series, err := s.Analytics.GetTimeSeries(ctx, metricID, start, end, interval)
		if err != nil {
			return nil, analyticsErr("Failed to fetch time series data", err)
		}
		if len(series) < 3 {
			return []anomalyRow{}, nil
		}
		points := analytics.DetectAnomalies(series, threshold, lookback)
		out := make([]anomalyRow, len(points))
		for i, p := range points {
			out[i] = anomalyRow{Timestamp: series[p.Index].Timestamp, Value: p.Value, ZScore: p.Score}
		}
		return out, nil
	})
}

type forecastResponse struct {
	Forecast   []timeseriesPoint `json:"forecast"`
	Confidence struct {
		Upper []float64 `json:"upper"`
		Lower []float64 `json:"lower"`
	} `json:"confidence"`
	Accuracy float64 `json:"accuracy"`
	Method   string  `json:"method"`
}

// handleForecast answers GET /analytics/forecast/{metricId}. confidenceLevel
// is accepted but not threaded through: every forecaster's interval width
// is fixed by spec §4.7 (z=1.96 for naive/movingAverage, t≈2.0 for
// linearRegression), not parameterized per request.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	metricID := chi.URLParam(r, "metricId")
	start, end := ParseDateRange(r.URL.Query().Get("dateRange"), time.Now())
	interval := intervalOf(r)
	horizon := queryInt(r, "horizon", 7)
	method := r.URL.Query().Get("method")
	window := queryInt(r, "window", 3)

	s.cached(w, r, r.URL.Path, ttlAnalytics, func(ctx context.Context) (interface{}, error) {
		series, err := s.Analytics.GetTimeSeries(ctx, metricID, start, end, interval)
		if err != nil {
			return nil, analyticsErr("Failed to fetch time series data", err)
		}
		forecaster, err := forecasterFor(method, window)
		if err != nil {
			return nil, err
		}
		result, err := forecaster.Forecast(series, horizon)
		if err != nil {
			return nil, errors.InvalidInput("horizon", "Not enough data for forecasting")
		}

		resp := forecastResponse{
			Forecast: toTimeseriesPoints(result.Forecast),
			Accuracy: result.Accuracy,
			Method:   result.Method,
		}
		resp.Confidence.Upper = result.Confidence.Upper
		resp.Confidence.Lower = result.Confidence.Lower
		return resp, nil
	})
}

type correlationResponse struct {
	Correlation float64 `json:"correlation"`
	N           int     `json:"n"`
}

// handleCorrelation answers GET /analytics/correlation.
func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	metric1 := r.URL.Query().Get("metric1")
	metric2 := r.URL.Query().Get("metric2")
	if metric1 == "" || metric2 == "" {
		s.writeError(w, r, errors.MissingParameter("metric1, metric2"))
		return
	}
	start, end := ParseDateRange(r.URL.Query().Get("dateRange"), time.Now())
	interval := intervalOf(r)
	align := analytics.AlignIndex
	if r.URL.Query().Get("alignTimestamps") == "true" {
		align = analytics.AlignTimestamp
	}

	s.cached(w, r, r.URL.Path, ttlAnalytics, func(ctx context.Context) (interface{}, error) {
		seriesA, err := s.Analytics.GetTimeSeries(ctx, metric1, start, end, interval)
		if err != nil {
			return nil, analyticsErr("Failed to fetch time series data", err)
		}
		seriesB, err := s.Analytics.GetTimeSeries(ctx, metric2, start, end, interval)
		if err != nil {
			return nil, analyticsErr("Failed to fetch time series data", err)
		}

		corr, err := analytics.CalculateCorrelation(seriesA, seriesB, align)
		if err != nil {
			return nil, errors.InvalidInput("dateRange", err.Error())
		}
		return correlationResponse{Correlation: corr, N: analytics.AlignedCount(seriesA, seriesB, align)}, nil
	})
}
