package analytics

import "github.com/analytics-sync/backend/internal/model"

// ExtractTrend smooths series with a centered moving average of the given
// window. Near the edges, where the full window does not fit, each point
// averages only the part of its window that lies inside the series.
func ExtractTrend(series []model.TimeSeriesPoint, window int) []model.TimeSeriesPoint {
	n := len(series)
	trend := make([]model.TimeSeriesPoint, n)
	if n == 0 {
		return trend
	}

	if n < window {
		copy(trend, series)
		return trend
	}
	if window < 2 {
		window = 2
	}
	if window > n {
		window = n
	}

	half := window / 2
	for i := 0; i < n; i++ {
		lo := i - half
		hi := i + half
		if window%2 == 0 {
			hi--
		}
		if lo < 0 {
			lo = 0
		}
		if hi >= n {
			hi = n - 1
		}

		var sum float64
		for k := lo; k <= hi; k++ {
			sum += series[k].Value
		}
		trend[i] = model.TimeSeriesPoint{
			Timestamp: series[i].Timestamp,
			Value:     sum / float64(hi-lo+1),
		}
	}
	return trend
}
