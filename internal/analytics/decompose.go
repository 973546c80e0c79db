package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/analytics-sync/backend/internal/model"
)

// defaultSeasonalPeriod maps a bucket interval to the cycle length (in
// buckets) decomposition assumes when the caller doesn't supply one
// explicitly: 24 hourly buckets to a day, 7 daily buckets to a week, 4
// weekly buckets to roughly a month. Monthly buckets have no well-defined
// short cycle, so decomposition of a monthly series requires an explicit
// period.
var defaultSeasonalPeriod = map[string]int{
	"hour": 24,
	"day":  7,
	"week": 4,
}

// Decomposition is a series split into trend, seasonal, and residual
// components: original = trend + seasonal + residual.
type Decomposition struct {
	Trend    []model.TimeSeriesPoint
	Seasonal []model.TimeSeriesPoint
	Residual []model.TimeSeriesPoint
	Period   int
}

// Decompose fetches metricID's series over [start,end] at interval,
// preprocesses it, and splits it into trend/seasonal/residual components.
// period overrides the interval's default cycle length; pass 0 to use the
// default, which fails with a validation error for intervals with none.
func (e *Engine) Decompose(ctx context.Context, metricID string, start, end time.Time, interval string, window, period int) (Decomposition, error) {
	series, err := e.GetTimeSeries(ctx, metricID, start, end, interval)
	if err != nil {
		return Decomposition{}, err
	}
	return decomposeSeries(series, interval, window, period)
}

// decomposeSeries splits an already-fetched series into trend/seasonal/
// residual components. An empty series decomposes to empty trend, seasonal
// and residual sequences, rather than an error.
func decomposeSeries(series []model.TimeSeriesPoint, interval string, window, period int) (Decomposition, error) {
	if len(series) == 0 {
		return Decomposition{}, nil
	}

	result, err := Preprocess(series, PreprocessOptions{FillMissingValues: true})
	if err != nil {
		return Decomposition{}, err
	}
	data := result.Data

	if period <= 0 {
		detected, ok := defaultSeasonalPeriod[interval]
		if !ok {
			return Decomposition{}, fmt.Errorf("analytics: no default seasonal period for interval %q, pass one explicitly", interval)
		}
		period = detected
	}
	if len(data) < period*2 {
		return Decomposition{}, fmt.Errorf("analytics: need at least %d points to decompose with period %d, got %d", period*2, period, len(data))
	}

	trend := ExtractTrend(data, window)

	detrended := make([]float64, len(data))
	for i := range data {
		detrended[i] = data[i].Value - trend[i].Value
	}

	seasonalShape := averageByPhase(detrended, period)

	seasonal := make([]model.TimeSeriesPoint, len(data))
	residual := make([]model.TimeSeriesPoint, len(data))
	for i := range data {
		s := seasonalShape[i%period]
		seasonal[i] = model.TimeSeriesPoint{Timestamp: data[i].Timestamp, Value: s}
		residual[i] = model.TimeSeriesPoint{Timestamp: data[i].Timestamp, Value: detrended[i] - s}
	}

	return Decomposition{Trend: trend, Seasonal: seasonal, Residual: residual, Period: period}, nil
}

// averageByPhase averages detrended values that fall on the same phase of
// the cycle (index mod period), producing one value per phase.
func averageByPhase(detrended []float64, period int) []float64 {
	sums := make([]float64, period)
	counts := make([]int, period)
	for i, v := range detrended {
		phase := i % period
		sums[phase] += v
		counts[phase]++
	}
	shape := make([]float64, period)
	for i := range shape {
		if counts[i] > 0 {
			shape[i] = sums[i] / float64(counts[i])
		}
	}
	return shape
}
