package forecast

import "github.com/analytics-sync/backend/internal/model"

// MovingAverage forecasts every future step as the mean of the trailing
// window, without rolling the forecast forward into its own window.
type MovingAverage struct {
	Window int
}

func (m MovingAverage) Forecast(series []model.TimeSeriesPoint, horizon int) (Result, error) {
	window := m.Window
	if window <= 0 {
		window = 3
	}
	if err := requireMinPoints(series, window, "moving average"); err != nil {
		return Result{}, err
	}

	values := valuesOf(series)
	tail := values[len(values)-window:]
	var sum float64
	for _, v := range tail {
		sum += v
	}
	mean := sum / float64(window)
	sigma := stdDevOf(tail)
	times := nextTimestamps(series, horizon)

	forecast := make([]model.TimeSeriesPoint, horizon)
	upper := make([]float64, horizon)
	lower := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		forecast[i] = model.TimeSeriesPoint{Timestamp: times[i], Value: mean}
		upper[i] = mean + z95*sigma
		lower[i] = clampLower(mean - z95*sigma)
	}

	predict := func(history []float64) float64 {
		w := window
		if w > len(history) {
			w = len(history)
		}
		var s float64
		for _, v := range history[len(history)-w:] {
			s += v
		}
		return s / float64(w)
	}

	return Result{
		Forecast:   forecast,
		Confidence: Confidence{Upper: upper, Lower: lower},
		Accuracy:   holdoutMAPE(series, predict),
		Method:     "moving_average",
	}, nil
}
