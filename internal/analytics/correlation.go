package analytics

import (
	"fmt"
	"math"

	"github.com/analytics-sync/backend/internal/model"
)

// AlignIndex pairs two series positionally; CalculateCorrelation rejects
// series of different lengths under it. AlignTimestamp pairs points that
// share an exact timestamp.
const (
	AlignIndex     = "index"
	AlignTimestamp = "timestamp"
)

// CalculateCorrelation returns the Pearson correlation coefficient between
// two series, after aligning them per align (AlignIndex or AlignTimestamp,
// default AlignIndex).
func CalculateCorrelation(a, b []model.TimeSeriesPoint, align string) (float64, error) {
	var xs, ys []float64
	switch align {
	case AlignTimestamp:
		xs, ys = alignByTimestamp(a, b)
	default:
		if len(a) != len(b) {
			return 0, fmt.Errorf("analytics: time series must have the same length, got %d and %d", len(a), len(b))
		}
		xs, ys = alignByIndex(a, b)
	}

	if len(xs) < 2 {
		return 0, fmt.Errorf("analytics: need at least 2 aligned points, got %d", len(xs))
	}

	return pearson(xs, ys)
}

// AlignedCount returns how many paired samples CalculateCorrelation would
// use for a and b under align, without computing the coefficient itself.
// Under AlignIndex it returns the shorter length, even for series whose
// lengths differ and which CalculateCorrelation therefore rejects.
func AlignedCount(a, b []model.TimeSeriesPoint, align string) int {
	var xs []float64
	switch align {
	case AlignTimestamp:
		xs, _ = alignByTimestamp(a, b)
	default:
		xs, _ = alignByIndex(a, b)
	}
	return len(xs)
}

func alignByIndex(a, b []model.TimeSeriesPoint) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i] = a[i].Value
		ys[i] = b[i].Value
	}
	return xs, ys
}

func alignByTimestamp(a, b []model.TimeSeriesPoint) ([]float64, []float64) {
	byTime := make(map[int64]float64, len(b))
	for _, p := range b {
		byTime[p.Timestamp.Unix()] = p.Value
	}

	var xs, ys []float64
	for _, p := range a {
		if v, ok := byTime[p.Timestamp.Unix()]; ok {
			xs = append(xs, p.Value)
			ys = append(ys, v)
		}
	}
	return xs, ys
}

// pearson computes the Pearson correlation coefficient of two equal-length
// samples. Two constant series are treated as perfectly correlated (1.0);
// a constant series against a variable one has an undefined linear
// relationship and correlates 0.
func pearson(xs, ys []float64) (float64, error) {
	if len(xs) != len(ys) {
		return 0, fmt.Errorf("analytics: mismatched sample lengths %d and %d", len(xs), len(ys))
	}

	meanX, _ := meanAndStdDev(xs)
	meanY, _ := meanAndStdDev(ys)

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 && varY == 0 {
		return 1, nil
	}
	if varX == 0 || varY == 0 {
		return 0, nil
	}

	r := cov / math.Sqrt(varX*varY)
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r, nil
}
