// Package bgvwrapper groups the BGV objects used for exact integer benchmarks.
package bgvwrapper

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"
)

// DefaultPlaintextModulus is the NTT-friendly prime 2^16+1.
const DefaultPlaintextModulus = 0x10001

// ParametersLiteral returns a Mul+Rescale parameter set for the given ring degree.
func ParametersLiteral(logN int) bgv.ParametersLiteral {
	return bgv.ParametersLiteral{
		LogN:             logN,
		LogQ:             []int{42, 33, 33, 33, 33},
		LogP:             []int{44},
		PlaintextModulus: DefaultPlaintextModulus,
	}
}

// Context holds the client-side BGV objects.
type Context struct {
	Params    bgv.Parameters
	KeyGen    *rlwe.KeyGenerator
	Sk        *rlwe.SecretKey
	Pk        *rlwe.PublicKey
	Encoder   *bgv.Encoder
	Encryptor *rlwe.Encryptor
	Decryptor *rlwe.Decryptor
}

// NewParameters instantiates BGV parameters for logN.
func NewParameters(logN int) (bgv.Parameters, error) {
	params, err := bgv.NewParametersFromLiteral(ParametersLiteral(logN))
	if err != nil {
		return bgv.Parameters{}, fmt.Errorf("bgv parameters (logN=%d): %w", logN, err)
	}
	return params, nil
}

// NewContext generates a fresh key pair for params.
func NewContext(params bgv.Parameters) *Context {
	kgen := rlwe.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	return &Context{
		Params:    params,
		KeyGen:    kgen,
		Sk:        sk,
		Pk:        pk,
		Encoder:   bgv.NewEncoder(params),
		Encryptor: rlwe.NewEncryptor(params, pk),
		Decryptor: rlwe.NewDecryptor(params, sk),
	}
}

// LoadContext rebuilds a context from persisted keys. Either key may be nil:
// a client holding only pk can encrypt, one holding only sk can decrypt.
func LoadContext(params bgv.Parameters, sk *rlwe.SecretKey, pk *rlwe.PublicKey) *Context {
	c := &Context{
		Params:  params,
		KeyGen:  rlwe.NewKeyGenerator(params),
		Sk:      sk,
		Pk:      pk,
		Encoder: bgv.NewEncoder(params),
	}
	if pk != nil {
		c.Encryptor = rlwe.NewEncryptor(params, pk)
	}
	if sk != nil {
		c.Decryptor = rlwe.NewDecryptor(params, sk)
	}
	return c
}

// GenEvaluationKeys generates the relinearization key and the column
// rotation keys for rotations.
func (c *Context) GenEvaluationKeys(rotations []int) *rlwe.MemEvaluationKeySet {
	rlk := c.KeyGen.GenRelinearizationKeyNew(c.Sk)
	if len(rotations) == 0 {
		return rlwe.NewMemEvaluationKeySet(rlk)
	}
	galEls := make([]uint64, len(rotations))
	for i, k := range rotations {
		galEls[i] = c.Params.GaloisElementForColRotation(k)
	}
	return rlwe.NewMemEvaluationKeySet(rlk, c.KeyGen.GenGaloisKeysNew(galEls, c.Sk)...)
}

// NewEvaluator returns an evaluator bound to evk.
func NewEvaluator(params bgv.Parameters, evk rlwe.EvaluationKeySet) *bgv.Evaluator {
	return bgv.NewEvaluator(params, evk)
}

// EncryptInts encodes values at the maximum level and encrypts them.
func (c *Context) EncryptInts(values []uint64) (*rlwe.Ciphertext, error) {
	if c.Encryptor == nil {
		return nil, fmt.Errorf("no public key to encrypt with")
	}
	if len(values) > c.Params.MaxSlots() {
		return nil, fmt.Errorf("cannot encrypt %d values into %d slots", len(values), c.Params.MaxSlots())
	}
	pt := bgv.NewPlaintext(c.Params, c.Params.MaxLevel())
	if err := c.Encoder.Encode(values, pt); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	ct, err := c.Encryptor.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return ct, nil
}

// DecryptInts decrypts ct and returns its first n slots.
func (c *Context) DecryptInts(ct *rlwe.Ciphertext, n int) ([]uint64, error) {
	return decrypt[uint64](c, ct, n)
}

// DecryptSigned is DecryptInts with slots centered around zero, so that
// negative results decode as negative values.
func (c *Context) DecryptSigned(ct *rlwe.Ciphertext, n int) ([]int64, error) {
	return decrypt[int64](c, ct, n)
}

func decrypt[T uint64 | int64](c *Context, ct *rlwe.Ciphertext, n int) ([]T, error) {
	if c.Decryptor == nil {
		return nil, fmt.Errorf("no secret key to decrypt with")
	}
	if n > c.Params.MaxSlots() {
		return nil, fmt.Errorf("cannot decode %d values from %d slots", n, c.Params.MaxSlots())
	}
	pt := c.Decryptor.DecryptNew(ct)
	decoded := make([]T, c.Params.MaxSlots())
	if err := c.Encoder.Decode(pt, decoded); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return decoded[:n], nil
}
