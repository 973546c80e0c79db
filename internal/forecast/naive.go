package forecast

import "github.com/analytics-sync/backend/internal/model"

// Naive forecasts every future step as the last observed value. Its
// confidence interval is built from the standard deviation of the input
// series itself, held constant across the horizon.
type Naive struct{}

func (Naive) Forecast(series []model.TimeSeriesPoint, horizon int) (Result, error) {
	if err := requireMinPoints(series, 1, "naive"); err != nil {
		return Result{}, err
	}

	last := series[len(series)-1].Value
	sigma := stdDevOf(valuesOf(series))
	times := nextTimestamps(series, horizon)

	forecast := make([]model.TimeSeriesPoint, horizon)
	upper := make([]float64, horizon)
	lower := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		forecast[i] = model.TimeSeriesPoint{Timestamp: times[i], Value: last}
		upper[i] = last + z95*sigma
		lower[i] = clampLower(last - z95*sigma)
	}

	return Result{
		Forecast:   forecast,
		Confidence: Confidence{Upper: upper, Lower: lower},
		Accuracy:   holdoutMAPE(series, func(history []float64) float64 { return history[len(history)-1] }),
		Method:     "naive",
	}, nil
}

func valuesOf(series []model.TimeSeriesPoint) []float64 {
	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}
	return values
}

// holdoutMAPE walks the series one step at a time, asking predict for a
// one-step-ahead forecast from everything seen so far, and returns the mean
// absolute percentage error against what actually came next. Points where
// the actual value is zero are skipped, since percentage error is
// undefined there.
func holdoutMAPE(series []model.TimeSeriesPoint, predict func(history []float64) float64) float64 {
	values := valuesOf(series)
	if len(values) < 2 {
		return 0
	}

	var sumPct float64
	var n int
	for i := 1; i < len(values); i++ {
		predicted := predict(values[:i])
		actual := values[i]
		if actual == 0 {
			continue
		}
		diff := actual - predicted
		if diff < 0 {
			diff = -diff
		}
		sumPct += diff / absFloat(actual)
		n++
	}
	if n == 0 {
		return 0
	}
	return (sumPct / float64(n)) * 100
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
