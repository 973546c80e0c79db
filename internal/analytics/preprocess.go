// Package analytics implements the time-series preprocessing, trend/
// seasonal decomposition, anomaly detection, correlation, and entropy
// operations described by the analytics engine.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/analytics-sync/backend/internal/model"
)

// PreprocessOptions controls Preprocess's behavior.
type PreprocessOptions struct {
	FillMissingValues  bool
	RemoveOutliers     bool
	OutlierThreshold   float64 // default 3
	NormalizeTimestamps bool
	ExpectedInterval   time.Duration
}

func DefaultPreprocessOptions() PreprocessOptions {
	return PreprocessOptions{
		FillMissingValues: true,
		RemoveOutliers:    false,
		OutlierThreshold:  3,
	}
}

// Validation reports the outcome of input validation and cleaning.
type Validation struct {
	IsValid  bool
	Errors   []string
	Warnings []string
}

// Metadata describes how Preprocess transformed the input series.
type Metadata struct {
	OriginalLength  int
	ProcessedLength int
	HasMissingValues bool
	HasOutliers     bool
	TimeInterval    time.Duration
}

// PreprocessResult is Preprocess's full output.
type PreprocessResult struct {
	Data       []model.TimeSeriesPoint
	Validation Validation
	Metadata   Metadata
}

// intervalStats summarizes the gaps between consecutive points.
type intervalStats struct {
	Min, Max, Mean time.Duration
	IsRegular      bool
}

// Preprocess validates, sorts, fills, optionally regularizes, and optionally
// strips outliers from series per spec §4.6.
func Preprocess(series []model.TimeSeriesPoint, opts PreprocessOptions) (PreprocessResult, error) {
	if opts.OutlierThreshold == 0 {
		opts.OutlierThreshold = 3
	}

	validation := Validation{IsValid: true}
	if len(series) == 0 {
		validation.IsValid = false
		validation.Errors = append(validation.Errors, "series is empty")
		return PreprocessResult{Data: nil, Validation: validation, Metadata: Metadata{}}, fmt.Errorf("preprocess: empty series")
	}

	for _, p := range series {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			validation.Warnings = append(validation.Warnings, "series contains non-numeric values")
			break
		}
	}

	data := make([]model.TimeSeriesPoint, len(series))
	copy(data, series)
	sort.SliceStable(data, func(i, j int) bool { return data[i].Timestamp.Before(data[j].Timestamp) })

	hasMissing := false
	for _, p := range data {
		if math.IsNaN(p.Value) {
			hasMissing = true
			break
		}
	}
	if hasMissing && opts.FillMissingValues {
		data = fillMissing(data)
	}

	stats := analyzeIntervals(data)

	if opts.NormalizeTimestamps && opts.ExpectedInterval > 0 {
		data = regularize(data, opts.ExpectedInterval)
	}

	hasOutliers := false
	if opts.RemoveOutliers {
		before := len(data)
		data = removeOutliers(data, opts.OutlierThreshold)
		hasOutliers = len(data) != before
	}

	meta := Metadata{
		OriginalLength:   len(series),
		ProcessedLength:  len(data),
		HasMissingValues: hasMissing,
		HasOutliers:      hasOutliers,
		TimeInterval:     stats.Mean,
	}

	return PreprocessResult{Data: data, Validation: validation, Metadata: meta}, nil
}

// fillMissing linearly interpolates NaN values between the nearest
// non-missing neighbors, extrapolating by copying the nearest edge value
// when a run of missing values touches either end of the series.
func fillMissing(data []model.TimeSeriesPoint) []model.TimeSeriesPoint {
	out := make([]model.TimeSeriesPoint, len(data))
	copy(out, data)

	n := len(out)
	i := 0
	for i < n {
		if !math.IsNaN(out[i].Value) {
			i++
			continue
		}
		// find the run [i, j)
		j := i
		for j < n && math.IsNaN(out[j].Value) {
			j++
		}

		switch {
		case i == 0 && j == n:
			// entirely missing; leave as-is, nothing to interpolate from
		case i == 0:
			for k := i; k < j; k++ {
				out[k].Value = out[j].Value
			}
		case j == n:
			for k := i; k < j; k++ {
				out[k].Value = out[i-1].Value
			}
		default:
			left, right := out[i-1].Value, out[j].Value
			span := float64(j - i + 1)
			for k := i; k < j; k++ {
				frac := float64(k-i+1) / span
				out[k].Value = left + (right-left)*frac
			}
		}
		i = j
	}
	return out
}

func analyzeIntervals(data []model.TimeSeriesPoint) intervalStats {
	if len(data) < 2 {
		return intervalStats{IsRegular: true}
	}

	var minGap, maxGap time.Duration
	var total time.Duration
	for i := 1; i < len(data); i++ {
		gap := data[i].Timestamp.Sub(data[i-1].Timestamp)
		if i == 1 || gap < minGap {
			minGap = gap
		}
		if i == 1 || gap > maxGap {
			maxGap = gap
		}
		total += gap
	}
	mean := total / time.Duration(len(data)-1)

	// Regular if no gap deviates from the mean by more than 10%.
	regular := true
	tolerance := time.Duration(float64(mean) * 0.1)
	for i := 1; i < len(data); i++ {
		gap := data[i].Timestamp.Sub(data[i-1].Timestamp)
		diff := gap - mean
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			regular = false
			break
		}
	}

	return intervalStats{Min: minGap, Max: maxGap, Mean: mean, IsRegular: regular}
}

// regularize reindexes data onto a fixed-step grid starting at the first
// timestamp, carrying forward the nearest known value for each grid point.
func regularize(data []model.TimeSeriesPoint, step time.Duration) []model.TimeSeriesPoint {
	if len(data) == 0 || step <= 0 {
		return data
	}

	start := data[0].Timestamp
	end := data[len(data)-1].Timestamp
	var out []model.TimeSeriesPoint

	idx := 0
	for t := start; !t.After(end); t = t.Add(step) {
		for idx < len(data)-1 && data[idx+1].Timestamp.Sub(t) <= 0 {
			idx++
		}
		out = append(out, model.TimeSeriesPoint{Timestamp: t, Value: data[idx].Value})
	}
	return out
}

// removeOutliers drops points whose z-score magnitude exceeds threshold.
func removeOutliers(data []model.TimeSeriesPoint, threshold float64) []model.TimeSeriesPoint {
	mean, stdDev := meanAndStdDev(valuesOf(data))
	if stdDev == 0 {
		return data
	}

	out := make([]model.TimeSeriesPoint, 0, len(data))
	for _, p := range data {
		z := (p.Value - mean) / stdDev
		if math.Abs(z) <= threshold {
			out = append(out, p)
		}
	}
	return out
}

func valuesOf(data []model.TimeSeriesPoint) []float64 {
	values := make([]float64, len(data))
	for i, p := range data {
		values[i] = p.Value
	}
	return values
}

func meanAndStdDev(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var sqDiffSum float64
	for _, v := range values {
		d := v - mean
		sqDiffSum += d * d
	}
	stdDev = math.Sqrt(sqDiffSum / float64(len(values)))
	return mean, stdDev
}
