package kernel

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"

	"hebench/bench"
	"hebench/core/artifacts"
	"hebench/core/bgvwrapper"
	"hebench/utils"
)

// LogN is the default ring degree.
const LogN = 13

// Program runs the filter with the client and server exchanging parameters,
// keys and ciphertexts through the artifact directory.
type Program struct {
	Dir  *artifacts.Dir
	LogN int
	Size int

	got []int64
	mse float64
}

// NewProgram returns a program for the default image size.
func NewProgram(dir *artifacts.Dir, logN int) *Program {
	if logN == 0 {
		logN = LogN
	}
	return &Program{Dir: dir, LogN: logN, Size: ImageSize}
}

func (p *Program) Name() string      { return "kernel" }
func (p *Program) Columns() []string { return bench.PhaseColumns }

func (p *Program) Phases() []bench.Phase {
	return []bench.Phase{
		{Name: "compile", Run: p.Compile},
		{Name: "key generation", Column: bench.ColKeyGen, Run: p.KeyGen},
		{Name: "client encryption", Column: bench.ColEncryption, Run: p.Encrypt},
		{Name: "server evaluation", Column: bench.ColComputation, Run: p.Evaluate},
		{Name: "client decryption", Column: bench.ColDecryption, Run: p.Decrypt},
	}
}

func (p *Program) pixels() int { return p.Size * p.Size }

func (p *Program) Compile() error {
	params, err := bgvwrapper.NewParameters(p.LogN)
	if err != nil {
		return err
	}
	// the last tap reads 2*size+2 slots past the final pixel, which must be empty
	if need := p.pixels() + 2*p.Size + 2; need > params.MaxSlots()/2 {
		return fmt.Errorf("a %dx%d image needs %d slots per row, have %d", p.Size, p.Size, need, params.MaxSlots()/2)
	}
	return artifacts.Save(p.Dir.ParamsFile(), params)
}

func (p *Program) loadParams() (bgv.Parameters, error) {
	var params bgv.Parameters
	err := artifacts.Load(p.Dir.ParamsFile(), &params)
	return params, err
}

func (p *Program) KeyGen() error {
	params, err := p.loadParams()
	if err != nil {
		return err
	}
	c := bgvwrapper.NewContext(params)
	if err := artifacts.Save(p.Dir.SecretKeyFile(), c.Sk); err != nil {
		return err
	}
	if err := artifacts.Save(p.Dir.PublicKeyFile(), c.Pk); err != nil {
		return err
	}
	return artifacts.Save(p.Dir.EvalKeysFile(), c.GenEvaluationKeys(Rotations(p.Size)))
}

func (p *Program) Encrypt() error {
	params, err := p.loadParams()
	if err != nil {
		return err
	}
	pk := new(rlwe.PublicKey)
	if err := artifacts.Load(p.Dir.PublicKeyFile(), pk); err != nil {
		return err
	}
	ct, err := bgvwrapper.LoadContext(params, nil, pk).EncryptInts(Image(p.Size))
	if err != nil {
		return fmt.Errorf("image: %w", err)
	}
	return artifacts.SaveCiphertexts(p.Dir.InputsFile(), []*rlwe.Ciphertext{ct})
}

func (p *Program) Evaluate() error {
	params, err := p.loadParams()
	if err != nil {
		return err
	}
	evk := new(rlwe.MemEvaluationKeySet)
	if err := artifacts.Load(p.Dir.EvalKeysFile(), evk); err != nil {
		return err
	}
	in, err := artifacts.LoadCiphertexts(p.Dir.InputsFile())
	if err != nil {
		return err
	}
	if len(in) != 1 {
		return fmt.Errorf("expected 1 encrypted image, got %d", len(in))
	}
	out, err := Evaluate(bgvwrapper.NewEvaluator(params, evk), in[0], p.Size, p.pixels())
	if err != nil {
		return err
	}
	return artifacts.SaveCiphertexts(p.Dir.OutputsFile(), []*rlwe.Ciphertext{out})
}

func (p *Program) Decrypt() error {
	params, err := p.loadParams()
	if err != nil {
		return err
	}
	sk := new(rlwe.SecretKey)
	if err := artifacts.Load(p.Dir.SecretKeyFile(), sk); err != nil {
		return err
	}
	out, err := artifacts.LoadCiphertexts(p.Dir.OutputsFile())
	if err != nil {
		return err
	}
	if len(out) != 1 {
		return fmt.Errorf("expected 1 encrypted result, got %d", len(out))
	}
	p.got, err = bgvwrapper.LoadContext(params, sk, nil).DecryptSigned(out[0], p.pixels())
	return err
}

// Results logs the error against the plaintext filter. The filter is exact,
// so anything but zero points at a broken parameter set.
func (p *Program) Results() (bench.Record, error) {
	want := Reference(Image(p.Size), p.Size)
	mse, err := bench.MSE(toFloats(p.got), toFloats(want))
	if err != nil {
		return nil, err
	}
	p.mse = mse
	utils.Logf("MSE: %g", mse)
	return bench.Record{}, nil
}

// Outputs returns the decrypted filtered image of the last repetition.
func (p *Program) Outputs() []int64 { return p.got }
func (p *Program) MSE() float64     { return p.mse }

func toFloats(values []int64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
