package chisquared

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"hebench/bench"
	"hebench/core/artifacts"
	"hebench/core/ckkswrapper"
	"hebench/utils"
)

// CKKSLogN is the default ring degree of the CKKS program.
const CKKSLogN = 13

// CKKSProgram runs the circuit over CKKS. Every phase reads what it needs
// from the artifact directory and writes what the next phase consumes.
type CKKSProgram struct {
	Dir    *artifacts.Dir
	LogN   int
	Inputs Inputs

	got []float64
	mse float64
}

// NewCKKSProgram returns a program writing its artifacts to dir.
func NewCKKSProgram(dir *artifacts.Dir, logN int) *CKKSProgram {
	if logN == 0 {
		logN = CKKSLogN
	}
	return &CKKSProgram{Dir: dir, LogN: logN, Inputs: DefaultInputs}
}

func (p *CKKSProgram) Name() string      { return "chi_squared" }
func (p *CKKSProgram) Columns() []string { return bench.PhaseColumns }

func (p *CKKSProgram) Phases() []bench.Phase {
	return []bench.Phase{
		{Name: "compile", Run: p.Compile},
		{Name: "key generation", Column: bench.ColKeyGen, Run: p.KeyGen},
		{Name: "client encryption", Column: bench.ColEncryption, Run: p.Encrypt},
		{Name: "server evaluation", Column: bench.ColComputation, Run: p.Evaluate},
		{Name: "client decryption", Column: bench.ColDecryption, Run: p.Decrypt},
	}
}

// Compile instantiates parameters with two levels and saves them.
func (p *CKKSProgram) Compile() error {
	params, err := ckkswrapper.NewParameters(p.LogN, 2)
	if err != nil {
		return err
	}
	return artifacts.Save(p.Dir.ParamsFile(), params)
}

func (p *CKKSProgram) loadParams() (ckks.Parameters, error) {
	var params ckks.Parameters
	err := artifacts.Load(p.Dir.ParamsFile(), &params)
	return params, err
}

// KeyGen generates the key pair and the relinearization key.
func (p *CKKSProgram) KeyGen() error {
	params, err := p.loadParams()
	if err != nil {
		return err
	}
	h := ckkswrapper.NewHeContextWithParams(params)
	if err := artifacts.Save(p.Dir.SecretKeyFile(), h.Sk); err != nil {
		return err
	}
	if err := artifacts.Save(p.Dir.PublicKeyFile(), h.Pk); err != nil {
		return err
	}
	return artifacts.Save(p.Dir.EvalKeysFile(), h.GenEvaluationKeys(nil))
}

// Encrypt encrypts n0, n1 and n2 under the public key.
func (p *CKKSProgram) Encrypt() error {
	params, err := p.loadParams()
	if err != nil {
		return err
	}
	pk := new(rlwe.PublicKey)
	if err := artifacts.Load(p.Dir.PublicKeyFile(), pk); err != nil {
		return err
	}
	enc := ckks.NewEncoder(params)
	encryptor := rlwe.NewEncryptor(params, pk)

	values := []uint64{p.Inputs.N0, p.Inputs.N1, p.Inputs.N2}
	cts := make([]*rlwe.Ciphertext, len(values))
	for i, v := range values {
		pt := ckks.NewPlaintext(params, params.MaxLevel())
		if err := enc.Encode([]float64{float64(v)}, pt); err != nil {
			return fmt.Errorf("encode input %d: %w", i, err)
		}
		if cts[i], err = encryptor.EncryptNew(pt); err != nil {
			return fmt.Errorf("encrypt input %d: %w", i, err)
		}
	}
	return artifacts.SaveCiphertexts(p.Dir.InputsFile(), cts)
}

// Evaluate runs the circuit with the evaluation keys only.
func (p *CKKSProgram) Evaluate() error {
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

	eval := ckkswrapper.NewCountingEvaluator(ckkswrapper.NewServerKit(params, evk).Evaluator)
	out, err := Evaluate(eval, in[0], in[1], in[2])
	if err != nil {
		return err
	}
	eval.Log("chi-squared")
	return artifacts.SaveCiphertexts(p.Dir.OutputsFile(), out)
}

// Decrypt decrypts the four outputs with the secret key.
func (p *CKKSProgram) Decrypt() error {
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
	dec := rlwe.NewDecryptor(params, sk)
	enc := ckks.NewEncoder(params)

	p.got = make([]float64, len(out))
	values := make([]float64, params.MaxSlots())
	for i, ct := range out {
		if err := enc.Decode(dec.DecryptNew(ct), values); err != nil {
			return fmt.Errorf("decode %s: %w", OutputNames[i], err)
		}
		p.got[i] = values[0]
	}
	return nil
}

// Results prints the decrypted outputs next to the reference and their MSE.
func (p *CKKSProgram) Results() (bench.Record, error) {
	mse, err := report(p.got, Reference(p.Inputs))
	p.mse = mse
	return bench.Record{}, err
}

// Outputs returns the decrypted outputs of the last run.
func (p *CKKSProgram) Outputs() []float64 { return p.got }

// MSE returns the error of the last run against the reference.
func (p *CKKSProgram) MSE() float64 { return p.mse }

func report(got, want []float64) (float64, error) {
	mse, err := bench.MSE(got, want)
	if err != nil {
		return 0, err
	}
	utils.Logf("Expected %v", named(want))
	utils.Logf("Got %v", named(got))
	utils.Logf("MSE %g", mse)
	return mse, nil
}

func named(values []float64) map[string]float64 {
	m := make(map[string]float64, len(values))
	for i, v := range values {
		if i < len(OutputNames) {
			m[OutputNames[i]] = v
		}
	}
	return m
}
