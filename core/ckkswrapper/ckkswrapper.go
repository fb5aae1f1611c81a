package ckkswrapper

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// HeContext holds the client-side CKKS objects: parameters, keys, encoder,
// encryptor and decryptor.
type HeContext struct {
	Params    ckks.Parameters
	KeyGen    *rlwe.KeyGenerator
	Sk        *rlwe.SecretKey
	Pk        *rlwe.PublicKey
	Encoder   *ckks.Encoder
	Encryptor *rlwe.Encryptor
	Decryptor *rlwe.Decryptor
}

// ServerKit holds what the evaluating party needs: parameters, an encoder and
// an evaluator loaded with the relinearization and rotation keys.
type ServerKit struct {
	Params    ckks.Parameters
	Encoder   *ckks.Encoder
	Evaluator *ckks.Evaluator
	Evk       *rlwe.MemEvaluationKeySet
}

// ParametersLiteral returns a parameter set for the given ring degree with
// depth multiplicative levels above a 60-bit base prime.
func ParametersLiteral(logN, depth int) ckks.ParametersLiteral {
	logQ := make([]int, depth+1)
	logQ[0] = 60
	for i := 1; i <= depth; i++ {
		logQ[i] = 40
	}
	return ckks.ParametersLiteral{
		LogN:            logN,
		LogQ:            logQ,
		LogP:            []int{60},
		LogDefaultScale: 40,
		Xs:              rlwe.DefaultXs,
		Xe:              rlwe.DefaultXe,
	}
}

// NewParameters instantiates CKKS parameters for logN and depth.
func NewParameters(logN, depth int) (ckks.Parameters, error) {
	params, err := ckks.NewParametersFromLiteral(ParametersLiteral(logN, depth))
	if err != nil {
		return ckks.Parameters{}, fmt.Errorf("ckks parameters (logN=%d, depth=%d): %w", logN, depth, err)
	}
	return params, nil
}

// NewHeContextWithParams generates a fresh key pair for params.
func NewHeContextWithParams(params ckks.Parameters) *HeContext {
	kgen := rlwe.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	return &HeContext{
		Params:    params,
		KeyGen:    kgen,
		Sk:        sk,
		Pk:        pk,
		Encoder:   ckks.NewEncoder(params),
		Encryptor: rlwe.NewEncryptor(params, pk),
		Decryptor: rlwe.NewDecryptor(params, sk),
	}
}

// GenEvaluationKeys generates the relinearization key and the Galois keys
// for the given rotations.
func (h *HeContext) GenEvaluationKeys(rotations []int) *rlwe.MemEvaluationKeySet {
	rlk := h.KeyGen.GenRelinearizationKeyNew(h.Sk)
	if len(rotations) == 0 {
		return rlwe.NewMemEvaluationKeySet(rlk)
	}
	galEls := h.Params.GaloisElements(rotations)
	return rlwe.NewMemEvaluationKeySet(rlk, h.KeyGen.GenGaloisKeysNew(galEls, h.Sk)...)
}

// GenServerKit generates evaluation keys and wraps them in a ServerKit.
func (h *HeContext) GenServerKit(rotations []int) *ServerKit {
	return NewServerKit(h.Params, h.GenEvaluationKeys(rotations))
}

// NewServerKit builds a ServerKit from parameters and evaluation keys, as the
// evaluating party does after loading them from disk.
func NewServerKit(params ckks.Parameters, evk *rlwe.MemEvaluationKeySet) *ServerKit {
	return &ServerKit{
		Params:    params,
		Encoder:   ckks.NewEncoder(params),
		Evaluator: ckks.NewEvaluator(params, evk),
		Evk:       evk,
	}
}

// EncryptValues encodes values at the maximum level and encrypts them with
// the public key.
func (h *HeContext) EncryptValues(values []float64) (*rlwe.Ciphertext, error) {
	if len(values) > h.Params.MaxSlots() {
		return nil, fmt.Errorf("cannot encrypt %d values into %d slots", len(values), h.Params.MaxSlots())
	}
	pt := ckks.NewPlaintext(h.Params, h.Params.MaxLevel())
	if err := h.Encoder.Encode(values, pt); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	ct, err := h.Encryptor.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return ct, nil
}

// DecryptValues decrypts ct and returns the real part of its first n slots.
func (h *HeContext) DecryptValues(ct *rlwe.Ciphertext, n int) ([]float64, error) {
	if n > h.Params.MaxSlots() {
		return nil, fmt.Errorf("cannot decode %d values from %d slots", n, h.Params.MaxSlots())
	}
	pt := h.Decryptor.DecryptNew(ct)
	decoded := make([]float64, h.Params.MaxSlots())
	if err := h.Encoder.Decode(pt, decoded); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return decoded[:n], nil
}
