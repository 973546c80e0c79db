// Package forecast implements the naive, moving-average, and linear
// regression forecasters used to project a metric's time series forward.
package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/analytics-sync/backend/internal/model"
)

// Confidence carries the upper/lower bound for each forecasted point.
type Confidence struct {
	Upper []float64
	Lower []float64
}

// Result is a forecaster's full output.
type Result struct {
	Forecast   []model.TimeSeriesPoint
	Confidence Confidence
	Accuracy   float64
	Method     string
}

// Forecaster projects a series horizon steps into the future.
type Forecaster interface {
	Forecast(series []model.TimeSeriesPoint, horizon int) (Result, error)
}

// z95 is the two-sided normal critical value for a 95% confidence interval.
const z95 = 1.96

// nextTimestamps builds horizon future timestamps spaced at the series'
// own step (the gap between its last two points), starting one step after
// the last observed point.
func nextTimestamps(series []model.TimeSeriesPoint, horizon int) []time.Time {
	step := time.Hour
	if len(series) >= 2 {
		step = series[len(series)-1].Timestamp.Sub(series[len(series)-2].Timestamp)
	}
	last := series[len(series)-1].Timestamp
	out := make([]time.Time, horizon)
	for i := 0; i < horizon; i++ {
		out[i] = last.Add(step * time.Duration(i+1))
	}
	return out
}

func clampLower(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func requireMinPoints(series []model.TimeSeriesPoint, min int, method string) error {
	if len(series) < min {
		return fmt.Errorf("forecast: %s needs at least %d points, got %d", method, min, len(series))
	}
	return nil
}

func stdDevOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sqDiffSum float64
	for _, v := range values {
		d := v - mean
		sqDiffSum += d * d
	}
	return math.Sqrt(sqDiffSum / float64(len(values)))
}
