// Package chisquared benchmarks the chi-squared test statistic for three
// encrypted genotype counts, in CKKS and in BGV.
package chisquared

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
)

// OutputNames lists the circuit outputs in order.
var OutputNames = []string{"alpha", "beta1", "beta2", "beta3"}

// Inputs are the three genotype counts.
type Inputs struct {
	N0, N1, N2 uint64
}

// DefaultInputs are the counts used by every run.
var DefaultInputs = Inputs{N0: 2, N1: 7, N2: 9}

// Reference computes the outputs in the clear with the same expressions as
// the encrypted circuit.
func Reference(in Inputs) []float64 {
	n0, n1, n2 := float64(in.N0), float64(in.N1), float64(in.N2)
	common := 2*n0 + n1
	other := 2*n2 + n1
	d := 4*n0*n2 - n1*n1
	return []float64{d * d, 2 * common * common, common * other, 2 * other * other}
}

// Evaluator is the subset of the ckks and bgv evaluators used by the circuit.
type Evaluator interface {
	MulRelinNew(op0 *rlwe.Ciphertext, op1 rlwe.Operand) (*rlwe.Ciphertext, error)
	Add(op0 *rlwe.Ciphertext, op1 rlwe.Operand, opOut *rlwe.Ciphertext) error
	Sub(op0 *rlwe.Ciphertext, op1 rlwe.Operand, opOut *rlwe.Ciphertext) error
	Rescale(op0, opOut *rlwe.Ciphertext) error
}

// Evaluate runs the circuit on encrypted n0, n1, n2 and returns alpha, beta1,
// beta2 and beta3. It consumes two levels. Constant factors are applied as
// additions so that the same circuit serves both schemes.
func Evaluate(eval Evaluator, n0, n1, n2 *rlwe.Ciphertext) ([]*rlwe.Ciphertext, error) {
	n0n2, err := mulRescale(eval, n0, n2)
	if err != nil {
		return nil, fmt.Errorf("n0*n2: %w", err)
	}
	fourN0N2, err := double(eval, n0n2)
	if err == nil {
		fourN0N2, err = double(eval, fourN0N2)
	}
	if err != nil {
		return nil, fmt.Errorf("4*n0*n2: %w", err)
	}
	n1Sq, err := mulRescale(eval, n1, n1)
	if err != nil {
		return nil, fmt.Errorf("n1^2: %w", err)
	}
	d := fourN0N2.CopyNew()
	if err := eval.Sub(fourN0N2, n1Sq, d); err != nil {
		return nil, fmt.Errorf("4*n0*n2-n1^2: %w", err)
	}
	alpha, err := mulRescale(eval, d, d)
	if err != nil {
		return nil, fmt.Errorf("alpha: %w", err)
	}

	common, err := double(eval, n0)
	if err == nil {
		err = eval.Add(common, n1, common)
	}
	if err != nil {
		return nil, fmt.Errorf("2*n0+n1: %w", err)
	}
	other, err := double(eval, n2)
	if err == nil {
		err = eval.Add(other, n1, other)
	}
	if err != nil {
		return nil, fmt.Errorf("2*n2+n1: %w", err)
	}

	commonSq, err := mulRescale(eval, common, common)
	if err != nil {
		return nil, fmt.Errorf("beta1: %w", err)
	}
	beta1, err := double(eval, commonSq)
	if err != nil {
		return nil, fmt.Errorf("beta1: %w", err)
	}
	beta2, err := mulRescale(eval, common, other)
	if err != nil {
		return nil, fmt.Errorf("beta2: %w", err)
	}
	otherSq, err := mulRescale(eval, other, other)
	if err != nil {
		return nil, fmt.Errorf("beta3: %w", err)
	}
	beta3, err := double(eval, otherSq)
	if err != nil {
		return nil, fmt.Errorf("beta3: %w", err)
	}
	return []*rlwe.Ciphertext{alpha, beta1, beta2, beta3}, nil
}

func mulRescale(eval Evaluator, a, b *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	out, err := eval.MulRelinNew(a, b)
	if err != nil {
		return nil, err
	}
	if err := eval.Rescale(out, out); err != nil {
		return nil, err
	}
	return out, nil
}

func double(eval Evaluator, ct *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	out := ct.CopyNew()
	if err := eval.Add(ct, ct, out); err != nil {
		return nil, err
	}
	return out, nil
}
