package ckkswrapper

import (
	"fmt"

	"hebench/utils"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// OpCounts tallies the homomorphic operations issued during a computation.
type OpCounts struct {
	Rotate  int
	Mul     int
	Relin   int
	Rescale int
	Add     int
}

func (c OpCounts) String() string {
	return fmt.Sprintf("Rotates: %d, Muls: %d, Relins: %d, Rescales: %d, Adds: %d",
		c.Rotate, c.Mul, c.Relin, c.Rescale, c.Add)
}

// CountingEvaluator forwards to a ckks.Evaluator and counts every operation.
type CountingEvaluator struct {
	eval   *ckks.Evaluator
	Counts OpCounts
}

// NewCountingEvaluator wraps eval.
func NewCountingEvaluator(eval *ckks.Evaluator) *CountingEvaluator {
	return &CountingEvaluator{eval: eval}
}

// Reset zeroes the counters and returns the previous values.
func (w *CountingEvaluator) Reset() OpCounts {
	prev := w.Counts
	w.Counts = OpCounts{}
	return prev
}

// Log prints the counters of a phase and starts the next phase from zero.
// It returns the counters printed. Printing respects utils.Verbose.
func (w *CountingEvaluator) Log(phase string) OpCounts {
	counts := w.Reset()
	utils.Logf("=== Phase: %s ===\n%v", phase, counts)
	return counts
}

func (w *CountingEvaluator) RotateNew(ct *rlwe.Ciphertext, k int) (*rlwe.Ciphertext, error) {
	w.Counts.Rotate++
	return w.eval.RotateNew(ct, k)
}

// MulRelinNew counts one multiplication and one relinearization.
func (w *CountingEvaluator) MulRelinNew(op0 *rlwe.Ciphertext, op1 rlwe.Operand) (*rlwe.Ciphertext, error) {
	w.Counts.Mul++
	w.Counts.Relin++
	return w.eval.MulRelinNew(op0, op1)
}

func (w *CountingEvaluator) MulThenAdd(op0 *rlwe.Ciphertext, op1 rlwe.Operand, opOut *rlwe.Ciphertext) error {
	w.Counts.Mul++
	return w.eval.MulThenAdd(op0, op1, opOut)
}

func (w *CountingEvaluator) Add(op0 *rlwe.Ciphertext, op1 rlwe.Operand, opOut *rlwe.Ciphertext) error {
	w.Counts.Add++
	return w.eval.Add(op0, op1, opOut)
}

// Sub is counted as an addition.
func (w *CountingEvaluator) Sub(op0 *rlwe.Ciphertext, op1 rlwe.Operand, opOut *rlwe.Ciphertext) error {
	w.Counts.Add++
	return w.eval.Sub(op0, op1, opOut)
}

func (w *CountingEvaluator) Rescale(ct, ctOut *rlwe.Ciphertext) error {
	w.Counts.Rescale++
	return w.eval.Rescale(ct, ctOut)
}
