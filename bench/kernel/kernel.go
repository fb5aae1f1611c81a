// Package kernel benchmarks a 3x3 sharpening filter over a batched image in
// BGV: rotated copies of the image are weighted and summed slot-wise.
package kernel

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
)

// ImageSize is the default side length of the square input image.
const ImageSize = 8

// Weights of the filter taps, in the order of Offsets.
var Weights = []int64{1, 1, 1, 1, -8, 1, 1, 1, 1}

// Offsets returns the slot rotation of every filter tap for a row-major
// image of the given side length.
func Offsets(size int) []int {
	return []int{
		0, 1, 2,
		size, size + 1, size + 2,
		2 * size, 2*size + 1, 2*size + 2,
	}
}

// Rotations lists the rotation keys needed by Evaluate.
func Rotations(size int) []int {
	var rots []int
	for _, r := range Offsets(size) {
		if r != 0 {
			rots = append(rots, r)
		}
	}
	return rots
}

// Image returns a size x size image, row-major, where every row counts
// 0..size-1.
func Image(size int) []uint64 {
	img := make([]uint64, 0, size*size)
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			img = append(img, uint64(c))
		}
	}
	return img
}

// Reference applies the filter in the clear. Pixels past the end of the
// image read as zero, which matches the empty slots of the ciphertext.
func Reference(img []uint64, size int) []int64 {
	out := make([]int64, len(img))
	offsets := Offsets(size)
	for k := range out {
		for i, w := range Weights {
			if j := k + offsets[i]; j < len(img) {
				out[k] += w * int64(img[j])
			}
		}
	}
	return out
}

// Evaluator is the subset of the bgv evaluator used by the filter.
type Evaluator interface {
	RotateColumnsNew(op0 *rlwe.Ciphertext, k int) (*rlwe.Ciphertext, error)
	MulNew(op0 *rlwe.Ciphertext, op1 rlwe.Operand) (*rlwe.Ciphertext, error)
	Add(op0 *rlwe.Ciphertext, op1 rlwe.Operand, opOut *rlwe.Ciphertext) error
}

// Evaluate filters the encrypted image of pixels slots. Each tap multiplies
// its rotated copy by a plaintext vector holding the tap weight.
func Evaluate(eval Evaluator, img *rlwe.Ciphertext, size, pixels int) (*rlwe.Ciphertext, error) {
	offsets := Offsets(size)
	var sum *rlwe.Ciphertext
	for i, w := range Weights {
		rotated := img
		if offsets[i] != 0 {
			var err error
			if rotated, err = eval.RotateColumnsNew(img, offsets[i]); err != nil {
				return nil, fmt.Errorf("rotate %d: %w", offsets[i], err)
			}
		}
		weighted, err := eval.MulNew(rotated, constant(w, pixels))
		if err != nil {
			return nil, fmt.Errorf("tap %d: %w", i, err)
		}
		if sum == nil {
			sum = weighted
			continue
		}
		if err := eval.Add(sum, weighted, sum); err != nil {
			return nil, fmt.Errorf("tap %d: %w", i, err)
		}
	}
	return sum, nil
}

func constant(v int64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
