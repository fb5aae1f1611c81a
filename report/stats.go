package report

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"hebench/bench"
)

// PhaseStat summarizes one phase column of a tool table.
type PhaseStat struct {
	Column string  `json:"column"`
	Mean   float64 `json:"mean_s"`
	Std    float64 `json:"std_s"` // 0 when undefined
}

// PhaseStats returns the mean and sample standard deviation of each phase
// column, in seconds. A single-run table has an undefined deviation, counted
// as 0. A column whose cells are all blank contributes nothing to the bar.
func PhaseStats(t *bench.Table, columns []string) ([]PhaseStat, error) {
	out := make([]PhaseStat, len(columns))
	for i, c := range columns {
		values, ok := t.Column(c)
		if !ok {
			return nil, fmt.Errorf("missing column %s", c)
		}
		values = dropNaN(values)
		if len(values) == 0 {
			out[i] = PhaseStat{Column: c}
			continue
		}
		mean, std := stat.MeanStdDev(values, nil)
		if math.IsNaN(std) {
			std = 0
		}
		out[i] = PhaseStat{Column: c, Mean: mean / 1000, Std: std / 1000}
	}
	return out, nil
}

// ErrorBar is the sum of the phase deviations, in seconds.
func ErrorBar(stats []PhaseStat) float64 {
	var sum float64
	for _, s := range stats {
		sum += s.Std
	}
	return sum
}

// Total is the height of the stacked bar, in seconds.
func Total(stats []PhaseStat) float64 {
	var sum float64
	for _, s := range stats {
		sum += s.Mean
	}
	return sum
}

// ColumnMeans averages every column of t, skipping missing values.
func ColumnMeans(t *bench.Table) map[string]float64 {
	out := make(map[string]float64, len(t.Columns))
	for _, c := range t.Columns {
		values, _ := t.Column(c)
		if values = dropNaN(values); len(values) > 0 {
			out[c] = stat.Mean(values, nil)
		}
	}
	return out
}

func dropNaN(values []float64) []float64 {
	out := values[:0:0]
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
