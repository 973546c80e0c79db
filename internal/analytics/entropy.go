package analytics

import (
	"fmt"
	"math"

	"github.com/analytics-sync/backend/internal/model"
)

// CalculateSampleEntropy computes the sample entropy (Richman & Moorman) of
// series, a measure of unpredictability: lower values mean the series
// repeats its own patterns more often. m is the template length (default
// 2) and r the tolerance (default 0.2 times the series' standard
// deviation).
func CalculateSampleEntropy(series []model.TimeSeriesPoint, m int, r float64) (float64, error) {
	if m <= 0 {
		m = 2
	}

	values := valuesOf(series)
	if r <= 0 {
		_, stdDev := meanAndStdDev(values)
		r = 0.2 * stdDev
	}
	if len(values) < m+2 {
		return 0, fmt.Errorf("analytics: need at least %d points for sample entropy with m=%d, got %d", m+2, m, len(values))
	}
	if r == 0 {
		return 0, fmt.Errorf("analytics: tolerance r is zero (constant series)")
	}

	// B is counted over the same N-m starting positions that A uses, so the
	// length-m and length-(m+1) counts cover the same templates.
	b := templateMatchCount(values[:len(values)-1], m, r)
	a := templateMatchCount(values, m+1, r)
	if b == 0 || a == 0 {
		return 0, fmt.Errorf("analytics: no template matches found at this tolerance, sample entropy undefined")
	}

	return -math.Log(float64(a) / float64(b)), nil
}

// templateMatchCount counts ordered pairs (i, j), i != j, of length-m
// subsequences whose Chebyshev distance is at most r.
func templateMatchCount(values []float64, m int, r float64) int {
	n := len(values) - m + 1
	if n < 2 {
		return 0
	}

	templates := make([][]float64, n)
	for i := 0; i < n; i++ {
		templates[i] = values[i : i+m]
	}

	count := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if chebyshevDistance(templates[i], templates[j]) <= r {
				count++
			}
		}
	}
	return count
}

func chebyshevDistance(a, b []float64) float64 {
	var max float64
	for k := range a {
		d := math.Abs(a[k] - b[k])
		if d > max {
			max = d
		}
	}
	return max
}
