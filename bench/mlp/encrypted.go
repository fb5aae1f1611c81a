package mlp

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
	"gonum.org/v1/gonum/mat"

	"hebench/core/ckkswrapper"
)

// Depth is the number of levels consumed by encrypted inference: two dense
// layers and the square inside the activation.
const Depth = 4

// Evaluator is the subset of the CKKS evaluator used by inference.
type Evaluator interface {
	MulRelinNew(op0 *rlwe.Ciphertext, op1 rlwe.Operand) (*rlwe.Ciphertext, error)
	MulThenAdd(op0 *rlwe.Ciphertext, op1 rlwe.Operand, opOut *rlwe.Ciphertext) error
	Add(op0 *rlwe.Ciphertext, op1 rlwe.Operand, opOut *rlwe.Ciphertext) error
	Rescale(op0, opOut *rlwe.Ciphertext) error
}

// EncryptBatch packs lines feature-wise: ciphertext i holds feature i of
// every line, one line per slot.
func EncryptBatch(h *ckkswrapper.HeContext, lines Lines, inputNum int) ([]*rlwe.Ciphertext, error) {
	if len(lines) > h.Params.MaxSlots() {
		return nil, fmt.Errorf("batch of %d samples exceeds %d slots", len(lines), h.Params.MaxSlots())
	}
	cts := make([]*rlwe.Ciphertext, inputNum)
	values := make([]float64, len(lines))
	for i := range cts {
		for k, l := range lines {
			values[k] = l.Inputs[i]
		}
		ct, err := h.EncryptValues(values)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		cts[i] = ct
	}
	return cts, nil
}

// InferEncrypted evaluates the network on feature-packed ciphertexts and
// returns one ciphertext of logits per output class.
func (net *Network) InferEncrypted(params ckks.Parameters, eval Evaluator, in []*rlwe.Ciphertext) ([]*rlwe.Ciphertext, error) {
	if len(in) != net.config.InputNum {
		return nil, fmt.Errorf("expected %d encrypted features, got %d", net.config.InputNum, len(in))
	}
	hidden, err := dense(params, eval, in, net.W1, net.B1)
	if err != nil {
		return nil, fmt.Errorf("dense1: %w", err)
	}
	for i, z := range hidden {
		if hidden[i], err = polyAct(params, eval, z, net.Act); err != nil {
			return nil, fmt.Errorf("activation %d: %w", i, err)
		}
	}
	out, err := dense(params, eval, hidden, net.W2, net.B2)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	return out, nil
}

// newAccumulator returns an empty ciphertext at level whose scale absorbs one
// plaintext constant multiplication of a ciphertext scaled by inScale.
func newAccumulator(params ckks.Parameters, level int, inScale rlwe.Scale) *rlwe.Ciphertext {
	acc := ckks.NewCiphertext(params, 1, level)
	acc.Scale = inScale.Mul(rlwe.NewScale(params.Q()[level]))
	return acc
}

func dense(params ckks.Parameters, eval Evaluator, in []*rlwe.Ciphertext, w, b *mat.Dense) ([]*rlwe.Ciphertext, error) {
	rows, cols := w.Dims()
	if cols != len(in) {
		return nil, fmt.Errorf("weight has %d columns for %d inputs", cols, len(in))
	}
	level := in[0].Level()
	for _, ct := range in[1:] {
		level = min(level, ct.Level())
	}
	out := make([]*rlwe.Ciphertext, rows)
	for r := 0; r < rows; r++ {
		acc := newAccumulator(params, level, in[0].Scale)
		for c, ct := range in {
			wv := w.At(r, c)
			if wv == 0 {
				continue
			}
			if err := eval.MulThenAdd(ct, wv, acc); err != nil {
				return nil, err
			}
		}
		if err := eval.Add(acc, b.At(r, 0), acc); err != nil {
			return nil, err
		}
		if err := eval.Rescale(acc, acc); err != nil {
			return nil, err
		}
		out[r] = acc
	}
	return out, nil
}

// polyAct computes A*z^2 + B*z with two levels.
func polyAct(params ckks.Parameters, eval Evaluator, z *rlwe.Ciphertext, act PolyAct) (*rlwe.Ciphertext, error) {
	sq, err := eval.MulRelinNew(z, z)
	if err != nil {
		return nil, err
	}
	if err := eval.Rescale(sq, sq); err != nil {
		return nil, err
	}
	acc := newAccumulator(params, sq.Level(), sq.Scale)
	if err := eval.MulThenAdd(sq, act.A, acc); err != nil {
		return nil, err
	}
	if err := eval.MulThenAdd(z, act.B, acc); err != nil {
		return nil, err
	}
	if err := eval.Rescale(acc, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// DecryptLogits decrypts the per-class ciphertexts and transposes them into
// one logit vector per sample.
func DecryptLogits(h *ckkswrapper.HeContext, cts []*rlwe.Ciphertext, samples int) ([][]float64, error) {
	logits := make([][]float64, samples)
	for k := range logits {
		logits[k] = make([]float64, len(cts))
	}
	for o, ct := range cts {
		values, err := h.DecryptValues(ct, samples)
		if err != nil {
			return nil, fmt.Errorf("class %d: %w", o, err)
		}
		for k, v := range values {
			logits[k][o] = v
		}
	}
	return logits, nil
}
