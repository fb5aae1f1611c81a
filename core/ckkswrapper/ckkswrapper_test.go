package ckkswrapper

import (
	"math"
	"testing"

	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

func TestHeContextRoundTrip(t *testing.T) {
	h := newTestContext(t)
	vals := []complex128{3.1415926535}
	slots := h.Params.MaxSlots()
	pt := ckks.NewPlaintext(h.Params, h.Params.MaxLevel())
	err := h.Encoder.Encode(vals, pt)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	ct, err := h.Encryptor.EncryptNew(pt)
	if err != nil {
		t.Fatalf("encrypt error: %v", err)
	}
	gotPt := h.Decryptor.DecryptNew(ct)
	decoded := make([]complex128, slots)
	err = h.Encoder.Decode(gotPt, decoded)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if diff := real(decoded[0]) - real(vals[0]); diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("roundtrip mismatch: got %f, want %f", real(decoded[0]), real(vals[0]))
	}

	kit := h.GenServerKit([]int{1, 2, -1})
	ct2, err := kit.Evaluator.MulRelinNew(ct, ct)
	if err != nil {
		t.Fatalf("evaluator MulRelinNew error: %v", err)
	}
	if err := kit.Evaluator.Rescale(ct2, ct2); err != nil {
		t.Fatalf("rescale error: %v", err)
	}
	got, err := h.DecryptValues(ct2, 1)
	if err != nil {
		t.Fatalf("decrypt error: %v", err)
	}
	if math.Abs(got[0]-math.Pow(3.1415926535, 2)) > 1e-4 {
		t.Fatalf("square mismatch: got %f", got[0])
	}
}

func TestEncryptDecryptValues(t *testing.T) {
	h := newTestContext(t)
	values := []float64{-1.5, 0, 2.25, 42}
	ct, err := h.EncryptValues(values)
	if err != nil {
		t.Fatalf("EncryptValues: %v", err)
	}
	got, err := h.DecryptValues(ct, len(values))
	if err != nil {
		t.Fatalf("DecryptValues: %v", err)
	}
	for i := range values {
		if math.Abs(got[i]-values[i]) > 1e-6 {
			t.Errorf("slot %d = %f, want %f", i, got[i], values[i])
		}
	}

	if _, err := h.EncryptValues(make([]float64, h.Params.MaxSlots()+1)); err == nil {
		t.Fatal("expected error for too many values")
	}
}

func TestCountingEvaluator(t *testing.T) {
	h := newTestContext(t)
	kit := h.GenServerKit([]int{1})
	eval := NewCountingEvaluator(kit.Evaluator)

	ct, err := h.EncryptValues([]float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("EncryptValues: %v", err)
	}
	sq, err := eval.MulRelinNew(ct, ct)
	if err != nil {
		t.Fatalf("MulRelinNew: %v", err)
	}
	if err := eval.Rescale(sq, sq); err != nil {
		t.Fatalf("Rescale: %v", err)
	}
	rot, err := eval.RotateNew(ct, 1)
	if err != nil {
		t.Fatalf("RotateNew: %v", err)
	}
	if err := eval.Add(rot, ct, rot); err != nil {
		t.Fatalf("Add: %v", err)
	}

	want := OpCounts{Rotate: 1, Mul: 1, Relin: 1, Rescale: 1, Add: 1}
	if eval.Counts != want {
		t.Fatalf("counters = %v, want %v", eval.Counts, want)
	}
	got, err := h.DecryptValues(rot, 3)
	if err != nil {
		t.Fatalf("DecryptValues: %v", err)
	}
	sums := []float64{3, 5, 7}
	for i := range sums {
		if math.Abs(got[i]-sums[i]) > 1e-5 {
			t.Errorf("slot %d = %f, want %f", i, got[i], sums[i])
		}
	}

	if prev := eval.Log("test"); prev != want {
		t.Fatalf("Log returned %v", prev)
	}
	if eval.Counts != (OpCounts{}) {
		t.Fatal("counters not reset")
	}
}

func newTestContext(t *testing.T) *HeContext {
	t.Helper()
	params, err := NewParameters(12, 3)
	if err != nil {
		t.Fatalf("NewParameters: %v", err)
	}
	return NewHeContextWithParams(params)
}
