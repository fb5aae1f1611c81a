// Package micro times individual CKKS primitives.
package micro

import (
	"fmt"
	"math/rand"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"hebench/bench"
	"hebench/core/ckkswrapper"
	"hebench/utils"
)

// Operation columns, in microseconds.
const (
	ColMulCtCt        = "t_mul_ct_ct"
	ColMulCtCtInplace = "t_mul_ct_ct_inplace"
	ColMulCtPt        = "t_mul_ct_pt"
	ColMulCtPtInplace = "t_mul_ct_pt_inplace"
	ColAddCtCt        = "t_add_ct_ct"
	ColAddCtCtInplace = "t_add_ct_ct_inplace"
	ColAddCtPt        = "t_add_ct_pt"
	ColAddCtPtInplace = "t_add_ct_pt_inplace"
	ColEncSk          = "t_enc_sk"
	ColEncPk          = "t_enc_pk"
	ColDec            = "t_dec"
	ColRot            = "t_rot"
)

var Columns = []string{
	ColMulCtCt, ColMulCtCtInplace, ColMulCtPt, ColMulCtPtInplace,
	ColAddCtCt, ColAddCtCtInplace, ColAddCtPt, ColAddCtPtInplace,
	ColEncSk, ColEncPk, ColDec, ColRot,
}

const (
	LogN              = 13
	DefaultIterations = 10
)

// Program measures every operation Iterations times per repetition and
// reports the mean.
type Program struct {
	LogN       int
	Iterations int

	client *ckkswrapper.HeContext
	kit    *ckkswrapper.ServerKit
	skEnc  *rlwe.Encryptor
	ct0    *rlwe.Ciphertext
	ct1    *rlwe.Ciphertext
	pt     *rlwe.Plaintext
	out    *rlwe.Ciphertext

	results bench.Record
}

func NewProgram(logN int) *Program {
	if logN == 0 {
		logN = LogN
	}
	return &Program{LogN: logN, Iterations: DefaultIterations}
}

func (p *Program) Name() string      { return "microbenchmark" }
func (p *Program) Columns() []string { return Columns }

func (p *Program) Phases() []bench.Phase {
	return []bench.Phase{
		{Name: "setup", Run: p.Setup},
		{Name: "operations", Run: p.Measure},
	}
}

// Setup generates keys and two random ciphertexts at the maximum level.
func (p *Program) Setup() error {
	params, err := ckkswrapper.NewParameters(p.LogN, 2)
	if err != nil {
		return err
	}
	p.client = ckkswrapper.NewHeContextWithParams(params)
	p.kit = p.client.GenServerKit([]int{1})
	p.skEnc = rlwe.NewEncryptor(params, p.client.Sk)

	values := make([]float64, params.MaxSlots())
	for i := range values {
		values[i] = rand.Float64()
	}
	p.pt = ckks.NewPlaintext(params, params.MaxLevel())
	if err := p.client.Encoder.Encode(values, p.pt); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if p.ct0, err = p.client.Encryptor.EncryptNew(p.pt); err != nil {
		return err
	}
	if p.ct1, err = p.client.Encryptor.EncryptNew(p.pt); err != nil {
		return err
	}
	p.out = ckks.NewCiphertext(params, 1, params.MaxLevel())
	return nil
}

type op struct {
	column string
	run    func() error
}

func (p *Program) operations() []op {
	eval := p.kit.Evaluator
	discard := func(_ *rlwe.Ciphertext, err error) error { return err }
	return []op{
		{ColMulCtCt, func() error { return discard(eval.MulRelinNew(p.ct0, p.ct1)) }},
		{ColMulCtCtInplace, func() error { return eval.MulRelin(p.ct0, p.ct1, p.out) }},
		{ColMulCtPt, func() error { return discard(eval.MulNew(p.ct0, p.pt)) }},
		{ColMulCtPtInplace, func() error { return eval.Mul(p.ct0, p.pt, p.out) }},
		{ColAddCtCt, func() error { return discard(eval.AddNew(p.ct0, p.ct1)) }},
		{ColAddCtCtInplace, func() error { return eval.Add(p.ct0, p.ct1, p.out) }},
		{ColAddCtPt, func() error { return discard(eval.AddNew(p.ct0, p.pt)) }},
		{ColAddCtPtInplace, func() error { return eval.Add(p.ct0, p.pt, p.out) }},
		{ColEncSk, func() error { return discard(p.skEnc.EncryptNew(p.pt)) }},
		{ColEncPk, func() error { return discard(p.client.Encryptor.EncryptNew(p.pt)) }},
		{ColDec, func() error { p.client.Decryptor.DecryptNew(p.ct0); return nil }},
		{ColRot, func() error { return discard(eval.RotateNew(p.ct0, 1)) }},
	}
}

// Measure times every operation and keeps the mean in microseconds.
func (p *Program) Measure() error {
	if p.kit == nil {
		return fmt.Errorf("setup has not run")
	}
	iters := p.Iterations
	if iters <= 0 {
		iters = 1
	}
	p.results = bench.Record{}
	for _, o := range p.operations() {
		var total float64
		for i := 0; i < iters; i++ {
			d, err := utils.Time(o.run)
			if err != nil {
				return fmt.Errorf("%s: %w", o.column, err)
			}
			total += utils.DurationUS(d)
		}
		p.results[o.column] = total / float64(iters)
		utils.Logf("%-22s %10.1f us", o.column, p.results[o.column])
	}
	return nil
}

func (p *Program) Results() (bench.Record, error) {
	if p.results == nil {
		return nil, fmt.Errorf("no measurements")
	}
	return p.results, nil
}
