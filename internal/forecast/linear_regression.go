package forecast

import (
	"math"

	"github.com/analytics-sync/backend/internal/model"
)

// LinearRegression fits a least-squares line against the series index and
// projects it forward, with a prediction interval based on the residual
// standard error.
type LinearRegression struct{}

// tApprox stands in for the t-distribution's 97.5th percentile critical
// value across the sample sizes this system forecasts over; it converges
// to z95 as sample size grows and stays a reasonable approximation for the
// small samples (tens of points) typical here.
const tApprox = 2.0

func (LinearRegression) Forecast(series []model.TimeSeriesPoint, horizon int) (Result, error) {
	if err := requireMinPoints(series, 2, "linear regression"); err != nil {
		return Result{}, err
	}

	values := valuesOf(series)
	n := len(values)
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}

	slope, intercept := fitLine(xs, values)

	var ssRes, ssTot float64
	meanY := meanOf(values)
	for i, x := range xs {
		predicted := slope*x + intercept
		residual := values[i] - predicted
		ssRes += residual * residual
		d := values[i] - meanY
		ssTot += d * d
	}

	r2 := 1.0
	if ssTot != 0 {
		r2 = 1 - ssRes/ssTot
	}

	var residualStdErr float64
	if n > 2 {
		residualStdErr = math.Sqrt(ssRes / float64(n-2))
	}

	times := nextTimestamps(series, horizon)
	forecast := make([]model.TimeSeriesPoint, horizon)
	upper := make([]float64, horizon)
	lower := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		x := float64(n + i)
		value := slope*x + intercept
		forecast[i] = model.TimeSeriesPoint{Timestamp: times[i], Value: value}
		upper[i] = value + tApprox*residualStdErr
		lower[i] = clampLower(value - tApprox*residualStdErr)
	}

	return Result{
		Forecast:   forecast,
		Confidence: Confidence{Upper: upper, Lower: lower},
		Accuracy:   r2,
		Method:     "linear_regression",
	}, nil
}

func fitLine(xs, ys []float64) (slope, intercept float64) {
	meanX := meanOf(xs)
	meanY := meanOf(ys)

	var num, den float64
	for i := range xs {
		dx := xs[i] - meanX
		num += dx * (ys[i] - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0, meanY
	}
	slope = num / den
	intercept = meanY - slope*meanX
	return slope, intercept
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
