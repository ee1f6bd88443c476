package benchmark

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

/** @brief Statistical summary of one dimension over a whole session. */
type AggregatedStat struct {
	Average           float64 `json:"average"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
	Median            float64 `json:"median"`
	StandardDeviation float64 `json:"standardDeviation"`
}

/**
 * @brief Reduces a series to its mean, extremes, median and population
 * standard deviation (divided by N). An empty series is an error.
 */
func Aggregate(series []float64) (AggregatedStat, error) {
	if len(series) == 0 {
		return AggregatedStat{}, ErrEmptySeries
	}
	mean, std := stat.PopMeanStdDev(series, nil)
	return AggregatedStat{
		Average:           mean,
		Min:               floats.Min(series),
		Max:               floats.Max(series),
		Median:            median(series),
		StandardDeviation: std,
	}, nil
}

func median(series []float64) float64 {
	sorted := make([]float64, len(series))
	copy(sorted, series)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 != 0 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// mean is used for the live window, where an empty slice means zero.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values) / float64(len(values))
}
