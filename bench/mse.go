package bench

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// MSE returns the mean squared error between got and want.
func MSE(got, want []float64) (float64, error) {
	if len(got) != len(want) {
		return 0, fmt.Errorf("mse: length mismatch %d != %d", len(got), len(want))
	}
	if len(got) == 0 {
		return 0, nil
	}
	d := floats.Distance(got, want, 2)
	return d * d / float64(len(got)), nil
}

// Accuracy returns the fraction of predictions equal to labels.
func Accuracy(predictions, labels []int) (float64, error) {
	if len(predictions) != len(labels) {
		return 0, fmt.Errorf("accuracy: length mismatch %d != %d", len(predictions), len(labels))
	}
	if len(labels) == 0 {
		return math.NaN(), nil
	}
	correct := 0
	for i := range labels {
		if predictions[i] == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}

// Argmax returns the index of the largest value, the first one on ties.
// It returns -1 for an empty slice.
func Argmax(values []float64) int {
	if len(values) == 0 {
		return -1
	}
	return floats.MaxIdx(values)
}
