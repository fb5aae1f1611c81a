package artifacts

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"hebench/core/ckkswrapper"
)

func TestDirFileNames(t *testing.T) {
	d, err := NewDir(filepath.Join(t.TempDir(), "work"), "chi_squared")
	require.NoError(t, err)
	require.Equal(t, "chi_squared.params", filepath.Base(d.ParamsFile()))
	require.Equal(t, "chi_squared.sk", filepath.Base(d.SecretKeyFile()))
	require.Equal(t, "chi_squared.pk", filepath.Base(d.PublicKeyFile()))
	require.Equal(t, "chi_squared.evk", filepath.Base(d.EvalKeysFile()))
	require.Equal(t, "chi_squared_inputs.ct", filepath.Base(d.InputsFile()))
	require.Equal(t, "chi_squared_outputs.ct", filepath.Base(d.OutputsFile()))
}

func TestSaveLoadKeysAndCiphertexts(t *testing.T) {
	h := newTestContext(t)
	d, err := NewDir(t.TempDir(), "roundtrip")
	require.NoError(t, err)

	require.NoError(t, Save(d.ParamsFile(), h.Params))
	require.NoError(t, Save(d.SecretKeyFile(), h.Sk))
	require.NoError(t, Save(d.EvalKeysFile(), h.GenEvaluationKeys(nil)))

	var params ckks.Parameters
	require.NoError(t, Load(d.ParamsFile(), &params))
	require.Equal(t, h.Params.LogN(), params.LogN())
	require.Equal(t, h.Params.LogQ(), params.LogQ())

	sk := new(rlwe.SecretKey)
	require.NoError(t, Load(d.SecretKeyFile(), sk))
	evk := new(rlwe.MemEvaluationKeySet)
	require.NoError(t, Load(d.EvalKeysFile(), evk))
	require.NotNil(t, evk.RelinearizationKey)

	values := [][]float64{{1.5}, {-2}, {7}}
	cts := make([]*rlwe.Ciphertext, len(values))
	for i, v := range values {
		cts[i], err = h.EncryptValues(v)
		require.NoError(t, err)
	}
	require.NoError(t, SaveCiphertexts(d.InputsFile(), cts))

	loaded, err := LoadCiphertexts(d.InputsFile())
	require.NoError(t, err)
	require.Len(t, loaded, len(values))

	dec := rlwe.NewDecryptor(params, sk)
	enc := ckks.NewEncoder(params)
	for i, ct := range loaded {
		out := make([]float64, params.MaxSlots())
		require.NoError(t, enc.Decode(dec.DecryptNew(ct), out))
		require.Less(t, math.Abs(out[0]-values[i][0]), 1e-6)
	}
}

func TestReadCiphertextsTruncated(t *testing.T) {
	h := newTestContext(t)
	ct, err := h.EncryptValues([]float64{1})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCiphertexts(&buf, []*rlwe.Ciphertext{ct}))
	_, err = ReadCiphertexts(bytes.NewReader(buf.Bytes()[:buf.Len()/2]))
	require.Error(t, err)

	_, err = LoadCiphertexts(filepath.Join(t.TempDir(), "missing.ct"))
	require.Error(t, err)
}

func TestReadCiphertextsRejectsOversizedPrefixes(t *testing.T) {
	var count bytes.Buffer
	require.NoError(t, binary.Write(&count, binary.LittleEndian, uint32(MaxCiphertexts+1)))
	_, err := ReadCiphertexts(&count)
	require.ErrorContains(t, err, "exceeds")

	var size bytes.Buffer
	require.NoError(t, binary.Write(&size, binary.LittleEndian, uint32(1)))
	require.NoError(t, binary.Write(&size, binary.LittleEndian, uint64(math.MaxUint64)))
	_, err = ReadCiphertexts(&size)
	require.ErrorContains(t, err, "exceeds")

	var short bytes.Buffer
	require.NoError(t, binary.Write(&short, binary.LittleEndian, uint32(1)))
	require.NoError(t, binary.Write(&short, binary.LittleEndian, uint64(MaxCiphertextBytes)))
	short.WriteString("abc")
	_, err = ReadCiphertexts(&short)
	require.Error(t, err)
}

func newTestContext(t *testing.T) *ckkswrapper.HeContext {
	t.Helper()
	params, err := ckkswrapper.NewParameters(12, 3)
	require.NoError(t, err)
	return ckkswrapper.NewHeContextWithParams(params)
}
