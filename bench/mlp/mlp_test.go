package mlp

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"hebench/bench"
	"hebench/core/artifacts"
	"hebench/core/ckkswrapper"
	"hebench/utils"
)

func smallConfig() Config {
	return Config{
		InputNum:     16,
		HiddenNum:    8,
		OutputNum:    3,
		Epochs:       30,
		BatchSize:    16,
		LearningRate: 0.05,
		Momentum:     0.9,
		ClipNorm:     5,
	}
}

func quiet(t *testing.T) {
	prev := utils.Verbose
	utils.Verbose = false
	t.Cleanup(func() { utils.Verbose = prev })
}

func TestReadLinesMNIST(t *testing.T) {
	in := "label,p1,p2\n1,0,255\n0,51,102\n"
	lines, err := ReadLinesMNIST(strings.NewReader(in), 2, 2)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, []float64{0, 1}, lines[0].Inputs)
	require.Equal(t, []float64{0, 1}, lines[0].Targets)
	require.Equal(t, []float64{0.2, 0.4}, lines[1].Inputs)
	require.Equal(t, []int{1, 0}, lines.Labels())

	_, err = ReadLinesMNIST(strings.NewReader("1,0\n"), 2, 2)
	var invalid errInvalidLine
	require.True(t, errors.As(err, &invalid), "got %v", err)
	require.Equal(t, 1, invalid.lineNum)

	_, err = ReadLinesMNIST(strings.NewReader("5,0,0\n"), 2, 2)
	require.ErrorContains(t, err, "out of range")

	_, err = ReadLinesMNIST(strings.NewReader("1,0,0\nx,0,0\n"), 2, 2)
	require.ErrorContains(t, err, "line 2")
}

func TestGetLinesMNIST(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mnist.csv")
	require.NoError(t, os.WriteFile(path, []byte("2,255,0,0\n"), 0o644))
	lines, err := GetLinesMNIST(path, 3, 3)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, 2, lines[0].Label)

	_, err = GetLinesMNIST(filepath.Join(t.TempDir(), "missing.csv"), 3, 3)
	require.Error(t, err)
}

func TestSyntheticLines(t *testing.T) {
	lines := SyntheticLines(30, 5, 3, 0.2)
	require.Len(t, lines, 30)
	for k, l := range lines {
		require.Equal(t, k%3, l.Label)
		require.Len(t, l.Inputs, 5)
		for _, v := range l.Inputs {
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 1.0)
		}
	}
	train, test := lines.Split(20)
	require.Len(t, train, 20)
	require.Len(t, test, 10)
}

func TestCreateBatches(t *testing.T) {
	order := []int{0, 1, 2, 3, 4}
	batches := createBatches(order, 2)
	require.Equal(t, [][]int{{0, 1}, {2, 3}, {4}}, batches)
	require.Len(t, createBatches(order, 0), 1)
}

func TestPolyActDerivative(t *testing.T) {
	act := PolyAct{A: 0.3, B: -1.2}
	z := mat.NewDense(1, 3, []float64{-1, 0.5, 2})
	d := act.Deactivate(z)
	const h = 1e-6
	for j := 0; j < 3; j++ {
		x := z.At(0, j)
		num := (act.Activate(0, j, x+h) - act.Activate(0, j, x-h)) / (2 * h)
		require.InDelta(t, num, d.At(0, j), 1e-6)
	}
	require.Equal(t, "poly(0.3x^2-1.2x)", act.String())
}

func trainedNetwork(t *testing.T) (*Network, Lines) {
	t.Helper()
	c := smallConfig()
	lines := SyntheticLines(360, c.InputNum, c.OutputNum, 0.1)
	train, test := lines.Split(300)
	net := NewNetwork(c)
	require.NoError(t, net.Train(train))
	return net, test
}

func TestTrainLearnsSyntheticData(t *testing.T) {
	quiet(t)
	net, test := trainedNetwork(t)
	acc, err := net.Accuracy(test)
	require.NoError(t, err)
	require.Greater(t, acc, 0.8)
}

func TestTrainRejectsEmptySet(t *testing.T) {
	require.Error(t, NewNetwork(smallConfig()).Train(nil))
}

func TestWeightsRoundTrip(t *testing.T) {
	quiet(t)
	net, test := trainedNetwork(t)
	path := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, utils.SaveWeights(path, net.Weights()))

	w, err := utils.LoadWeights(path)
	require.NoError(t, err)
	loaded, err := LoadNetwork(smallConfig(), w)
	require.NoError(t, err)
	require.Equal(t, net.Act, loaded.Act)

	want := net.Logits(test)
	got := loaded.Logits(test)
	for k := range want {
		require.InDeltaSlice(t, want[k], got[k], 1e-12)
	}

	bad := net.Weights()
	delete(bad.Layers, "output")
	_, err = LoadNetwork(smallConfig(), bad)
	require.Error(t, err)
}

func TestEncryptedInferenceMatchesPlaintext(t *testing.T) {
	quiet(t)
	net, test := trainedNetwork(t)

	params, err := ckkswrapper.NewParameters(12, Depth)
	require.NoError(t, err)
	client := ckkswrapper.NewHeContextWithParams(params)
	kit := client.GenServerKit(nil)
	eval := ckkswrapper.NewCountingEvaluator(kit.Evaluator)

	in, err := EncryptBatch(client, test, net.Config().InputNum)
	require.NoError(t, err)
	out, err := net.InferEncrypted(params, eval, in)
	require.NoError(t, err)
	require.Len(t, out, net.Config().OutputNum)
	require.Equal(t, net.Config().HiddenNum, eval.Counts.Relin)

	got, err := DecryptLogits(client, out, len(test))
	require.NoError(t, err)
	want := net.Logits(test)
	for k := range want {
		require.InDeltaSlice(t, want[k], got[k], 1e-3, "sample %d", k)
	}

	_, err = net.InferEncrypted(params, eval, in[:3])
	require.Error(t, err)
}

func TestEncryptBatchTooLarge(t *testing.T) {
	params, err := ckkswrapper.NewParameters(12, 1)
	require.NoError(t, err)
	client := ckkswrapper.NewHeContextWithParams(params)
	lines := SyntheticLines(params.MaxSlots()+1, 2, 2, 0)
	_, err = EncryptBatch(client, lines, 2)
	require.Error(t, err)
}

func TestProgramRecordsAccuracy(t *testing.T) {
	quiet(t)
	work := t.TempDir()
	dir, err := artifacts.NewDir(filepath.Join(work, "artifacts"), "nn")
	require.NoError(t, err)

	p := NewProgram(dir, 12, "")
	p.Config = smallConfig()
	p.TrainSamples = 300
	p.TestSamples = 60

	cfg := &utils.RunConfig{Benchmark: "nn", NumRuns: 1, OutputFilename: filepath.Join(work, "nn.csv")}
	table, err := bench.NewRecorder(cfg).Run(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	acc := table.Rows[0][bench.ColTestAccuracy]
	require.False(t, math.IsNaN(acc))
	require.Greater(t, acc, 0.8)
	require.Greater(t, table.Rows[0][bench.ColComputation], 0.0)

	_, err = os.Stat(dir.WeightsFile())
	require.NoError(t, err)
	require.NotNil(t, p.Network())
}

func TestProgramServerLoadsSavedWeights(t *testing.T) {
	quiet(t)
	dir, err := artifacts.NewDir(filepath.Join(t.TempDir(), "artifacts"), "nn")
	require.NoError(t, err)

	p := NewProgram(dir, 12, "")
	p.Config = smallConfig()
	p.TrainSamples = 300
	p.TestSamples = 60
	for _, phase := range p.Phases() {
		require.NoError(t, phase.Run(), phase.Name)
	}

	// A model that always answers class 2, known only to the weights file.
	constant, err := LoadNetwork(p.Config, p.Network().Weights())
	require.NoError(t, err)
	constant.W2.Zero()
	constant.B2.Zero()
	constant.B2.Set(2, 0, 5)
	require.NoError(t, utils.SaveWeights(dir.WeightsFile(), constant.Weights()))

	require.NoError(t, p.Encrypt())
	require.NoError(t, p.Evaluate())
	require.NoError(t, p.Decrypt())
	require.Len(t, p.predicted, len(p.testBatch()))
	for i, c := range p.predicted {
		require.Equal(t, 2, c, "sample %d", i)
	}

	require.NoError(t, os.Remove(dir.WeightsFile()))
	require.Error(t, p.Evaluate())
}
