package bench

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"hebench/utils"
)

type fakeBenchmark struct {
	runs     int
	failAt   int
	accuracy float64
}

func (f *fakeBenchmark) Name() string      { return "fake" }
func (f *fakeBenchmark) Columns() []string { return MLColumns }

func (f *fakeBenchmark) Phases() []Phase {
	noop := func() error { return nil }
	return []Phase{
		{Name: "compile", Run: noop},
		{Name: "keygen", Column: ColKeyGen, Run: noop},
		{Name: "encrypt", Column: ColEncryption, Run: noop},
		{Name: "evaluate", Column: ColComputation, Run: func() error {
			f.runs++
			if f.failAt > 0 && f.runs == f.failAt {
				return errors.New("evaluation failed")
			}
			return nil
		}},
		{Name: "decrypt", Column: ColDecryption, Run: noop},
	}
}

func (f *fakeBenchmark) Results() (Record, error) {
	return Record{ColTestAccuracy: f.accuracy}, nil
}

type fakeUploader struct {
	calls []string
	err   error
}

func (u *fakeUploader) Upload(_ context.Context, localPath, key string) error {
	u.calls = append(u.calls, localPath+"->"+key)
	return u.err
}

func quiet(t *testing.T) {
	prev := utils.Verbose
	utils.Verbose = false
	t.Cleanup(func() { utils.Verbose = prev })
}

func runConfig(t *testing.T, runs int) *utils.RunConfig {
	return &utils.RunConfig{
		Benchmark:      "fake",
		NumRuns:        runs,
		OutputFilename: filepath.Join(t.TempDir(), "out", "fake.csv"),
	}
}

func TestRecorderWritesOneRowPerRun(t *testing.T) {
	quiet(t)
	cfg := runConfig(t, 3)
	table, err := NewRecorder(cfg).Run(context.Background(), &fakeBenchmark{accuracy: 0.9})
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	f, err := os.Open(cfg.OutputFilename)
	require.NoError(t, err)
	defer f.Close()
	read, err := ReadCSV(f)
	require.NoError(t, err)
	require.Equal(t, MLColumns, read.Columns)
	require.Equal(t, 3, read.Len())

	// training is not a phase of this benchmark and is written as 0
	training, ok := read.Column(ColTraining)
	require.True(t, ok)
	require.Equal(t, []float64{0, 0, 0}, training)
	acc, _ := read.Column(ColTestAccuracy)
	require.Equal(t, []float64{0.9, 0.9, 0.9}, acc)
}

func TestRecorderRewritesCSVAfterEachRun(t *testing.T) {
	quiet(t)
	cfg := runConfig(t, 4)
	b := &fakeBenchmark{failAt: 3}
	table, err := NewRecorder(cfg).Run(context.Background(), b)
	require.Error(t, err)
	require.Contains(t, err.Error(), "evaluate")
	require.Contains(t, err.Error(), "evaluation failed")
	require.Equal(t, 2, table.Len())

	data, err := os.ReadFile(cfg.OutputFilename)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, strings.Join(MLColumns, ","), lines[0])
}

func TestRecorderUploadIsBestEffort(t *testing.T) {
	quiet(t)
	cfg := runConfig(t, 1)
	up := &fakeUploader{err: errors.New("access denied")}
	var stderr bytes.Buffer
	r := NewRecorder(cfg)
	r.Uploader = up
	r.UploadKey = "20200729_094952/Lattigo/fake.csv"
	r.Stderr = &stderr

	_, err := r.Run(context.Background(), &fakeBenchmark{})
	require.NoError(t, err)
	require.Len(t, up.calls, 1)
	require.Contains(t, stderr.String(), "Could not upload")
}

func TestRecorderCancelled(t *testing.T) {
	quiet(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRecorder(runConfig(t, 2)).Run(ctx, &fakeBenchmark{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestTableCSVRoundTrip(t *testing.T) {
	table := NewTable(PhaseColumns...)
	table.Append(Record{ColKeyGen: 12, ColEncryption: 3, ColComputation: 1500})
	table.Append(Record{ColKeyGen: 11, ColEncryption: 4, ColComputation: 1490, ColDecryption: 2})

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))
	require.Equal(t, "t_keygen,t_input_encryption,t_computation,t_decryption\n12,3,1500,0\n11,4,1490,2\n", buf.String())

	read, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Equal(t, table.Columns, read.Columns)
	dec, _ := read.Column(ColDecryption)
	require.Equal(t, []float64{0, 2}, dec)
}

func TestReadCSVIndexColumnAndBlanks(t *testing.T) {
	in := ",t_keygen,t_computation\n0,10,\n1,12,30\n"
	table, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []string{ColKeyGen, ColComputation}, table.Columns)
	comp, ok := table.Column(ColComputation)
	require.True(t, ok)
	require.True(t, math.IsNaN(comp[0]))
	require.Equal(t, 30.0, comp[1])

	_, ok = table.Column(ColDecryption)
	require.False(t, ok)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)
	_, err = ReadCSV(strings.NewReader("a,b\n1\n"))
	require.Error(t, err)
	_, err = ReadCSV(strings.NewReader("a\nxyz\n"))
	require.Error(t, err)
}

func TestMSE(t *testing.T) {
	got, err := MSE([]float64{529.001, 242, 275, 1250}, []float64{529, 242, 275, 1250})
	require.NoError(t, err)
	require.InDelta(t, 0.25e-6, got, 1e-9)

	zero, err := MSE(nil, nil)
	require.NoError(t, err)
	require.Zero(t, zero)

	_, err = MSE([]float64{1}, []float64{1, 2})
	require.Error(t, err)
}

func TestAccuracyAndArgmax(t *testing.T) {
	acc, err := Accuracy([]int{1, 2, 3, 0}, []int{1, 2, 0, 0})
	require.NoError(t, err)
	require.Equal(t, 0.75, acc)

	_, err = Accuracy([]int{1}, nil)
	require.Error(t, err)

	require.Equal(t, 2, Argmax([]float64{0.1, -3, 7, 7}))
	require.Equal(t, -1, Argmax(nil))
}
