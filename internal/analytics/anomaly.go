package analytics

import (
	"math"

	"github.com/analytics-sync/backend/internal/model"
)

// AnomalyPoint is one flagged point, with the z-score that tripped it.
type AnomalyPoint struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
	Score float64 `json:"score"`
}

// DetectAnomalies flags points whose z-score magnitude exceeds threshold.
//
// Each candidate's score is computed against the mean/stddev of the rest of
// the series (or, with lookback set, the rest of its trailing window) so a
// single extreme point doesn't widen its own baseline and mask itself.
//
// With lookback <= 0, every point is scored against the whole series
// (global mode). With lookback > 0, a point is scored against only its
// preceding `lookback` points (rolling mode); points before the window
// fills are never flagged.
func DetectAnomalies(series []model.TimeSeriesPoint, threshold float64, lookback int) []AnomalyPoint {
	if threshold <= 0 {
		threshold = 3
	}

	var anomalies []AnomalyPoint
	n := len(series)

	if lookback <= 0 {
		values := valuesOf(series)
		for i := 0; i < n; i++ {
			mean, stdDev := meanAndStdDevExcluding(values, i)
			if stdDev == 0 {
				continue
			}
			z := (values[i] - mean) / stdDev
			if math.Abs(z) > threshold {
				anomalies = append(anomalies, AnomalyPoint{Index: i, Value: values[i], Score: z})
			}
		}
		return anomalies
	}

	values := valuesOf(series)
	for i := lookback; i < n; i++ {
		window := values[i-lookback : i]
		mean, stdDev := meanAndStdDev(window)
		if stdDev == 0 {
			continue
		}
		z := (values[i] - mean) / stdDev
		if math.Abs(z) > threshold {
			anomalies = append(anomalies, AnomalyPoint{Index: i, Value: values[i], Score: z})
		}
	}
	return anomalies
}

// meanAndStdDevExcluding computes the mean/stddev of values with the
// element at skip removed, using an (n-1)-denominator sample variance since
// one observation has been withheld.
func meanAndStdDevExcluding(values []float64, skip int) (mean, stdDev float64) {
	n := len(values) - 1
	if n <= 1 {
		return 0, 0
	}

	var sum float64
	for i, v := range values {
		if i == skip {
			continue
		}
		sum += v
	}
	mean = sum / float64(n)

	var sqDiffSum float64
	for i, v := range values {
		if i == skip {
			continue
		}
		d := v - mean
		sqDiffSum += d * d
	}
	stdDev = math.Sqrt(sqDiffSum / float64(n-1))
	return mean, stdDev
}
