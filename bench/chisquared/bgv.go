package chisquared

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"

	"hebench/bench"
	"hebench/core/artifacts"
	"hebench/core/bgvwrapper"
)

// BGVLogN is the default ring degree of the BGV program.
const BGVLogN = 13

// BGVProgram runs the circuit over BGV with exact integer arithmetic.
type BGVProgram struct {
	Dir    *artifacts.Dir
	LogN   int
	Inputs Inputs

	got []float64
	mse float64
}

// NewBGVProgram returns a program writing its artifacts to dir.
func NewBGVProgram(dir *artifacts.Dir, logN int) *BGVProgram {
	if logN == 0 {
		logN = BGVLogN
	}
	return &BGVProgram{Dir: dir, LogN: logN, Inputs: DefaultInputs}
}

func (p *BGVProgram) Name() string      { return "chi_squared_bfv" }
func (p *BGVProgram) Columns() []string { return bench.PhaseColumns }

func (p *BGVProgram) Phases() []bench.Phase {
	return []bench.Phase{
		{Name: "compile", Run: p.Compile},
		{Name: "key generation", Column: bench.ColKeyGen, Run: p.KeyGen},
		{Name: "client encryption", Column: bench.ColEncryption, Run: p.Encrypt},
		{Name: "server evaluation", Column: bench.ColComputation, Run: p.Evaluate},
		{Name: "client decryption", Column: bench.ColDecryption, Run: p.Decrypt},
	}
}

func (p *BGVProgram) Compile() error {
	params, err := bgvwrapper.NewParameters(p.LogN)
	if err != nil {
		return err
	}
	return artifacts.Save(p.Dir.ParamsFile(), params)
}

func (p *BGVProgram) loadParams() (bgv.Parameters, error) {
	var params bgv.Parameters
	err := artifacts.Load(p.Dir.ParamsFile(), &params)
	return params, err
}

func (p *BGVProgram) KeyGen() error {
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
	return artifacts.Save(p.Dir.EvalKeysFile(), c.GenEvaluationKeys(nil))
}

func (p *BGVProgram) Encrypt() error {
	params, err := p.loadParams()
	if err != nil {
		return err
	}
	pk := new(rlwe.PublicKey)
	if err := artifacts.Load(p.Dir.PublicKeyFile(), pk); err != nil {
		return err
	}
	client := bgvwrapper.LoadContext(params, nil, pk)

	values := []uint64{p.Inputs.N0, p.Inputs.N1, p.Inputs.N2}
	cts := make([]*rlwe.Ciphertext, len(values))
	for i, v := range values {
		if cts[i], err = client.EncryptInts([]uint64{v}); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
	}
	return artifacts.SaveCiphertexts(p.Dir.InputsFile(), cts)
}

func (p *BGVProgram) Evaluate() error {
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
	if len(in) != 3 {
		return fmt.Errorf("expected 3 encrypted inputs, got %d", len(in))
	}
	out, err := Evaluate(bgvwrapper.NewEvaluator(params, evk), in[0], in[1], in[2])
	if err != nil {
		return err
	}
	return artifacts.SaveCiphertexts(p.Dir.OutputsFile(), out)
}

func (p *BGVProgram) Decrypt() error {
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
	client := bgvwrapper.LoadContext(params, sk, nil)

	p.got = make([]float64, len(out))
	for i, ct := range out {
		values, err := client.DecryptInts(ct, 1)
		if err != nil {
			return fmt.Errorf("%s: %w", OutputNames[i], err)
		}
		p.got[i] = float64(values[0])
	}
	return nil
}

func (p *BGVProgram) Results() (bench.Record, error) {
	mse, err := report(p.got, Reference(p.Inputs))
	p.mse = mse
	return bench.Record{}, err
}

func (p *BGVProgram) Outputs() []float64 { return p.got }
func (p *BGVProgram) MSE() float64       { return p.mse }
