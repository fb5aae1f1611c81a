// Package mlp benchmarks a 784-30-10 perceptron with a learned polynomial
// activation: plaintext training with gonum, then batched CKKS inference.
package mlp

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"hebench/bench"
	"hebench/utils"
)

type Config struct {
	InputNum     int
	HiddenNum    int
	OutputNum    int
	Epochs       int
	BatchSize    int
	LearningRate float64
	Momentum     float64
	ClipNorm     float64 // 0 disables gradient clipping
}

// DefaultConfig is the MNIST network: one hidden layer of 30 units.
func DefaultConfig() Config {
	return Config{
		InputNum:     784,
		HiddenNum:    30,
		OutputNum:    10,
		Epochs:       3,
		BatchSize:    128,
		LearningRate: 0.008,
		Momentum:     0.9,
		ClipNorm:     5,
	}
}

// Network is dense(InputNum->HiddenNum), PolyAct, dense(HiddenNum->OutputNum).
// The output layer returns logits.
type Network struct {
	config Config

	W1, B1 *mat.Dense // HiddenNum x InputNum, HiddenNum x 1
	W2, B2 *mat.Dense // OutputNum x HiddenNum, OutputNum x 1
	Act    PolyAct

	velocity []*mat.Dense
	velAct   [2]float64
}

func NewNetwork(c Config) *Network {
	norm := distuv.Normal{Mu: 0, Sigma: 0.05}
	net := &Network{
		config: c,
		W1:     mat.NewDense(c.HiddenNum, c.InputNum, randomArray(c.HiddenNum*c.InputNum, float64(c.InputNum))),
		B1:     mat.NewDense(c.HiddenNum, 1, nil),
		W2:     mat.NewDense(c.OutputNum, c.HiddenNum, randomArray(c.OutputNum*c.HiddenNum, float64(c.HiddenNum))),
		B2:     mat.NewDense(c.OutputNum, 1, nil),
		Act:    PolyAct{A: norm.Rand(), B: 1 + norm.Rand()},
	}
	net.velocity = []*mat.Dense{
		mat.NewDense(c.HiddenNum, c.InputNum, nil),
		mat.NewDense(c.HiddenNum, 1, nil),
		mat.NewDense(c.OutputNum, c.HiddenNum, nil),
		mat.NewDense(c.OutputNum, 1, nil),
	}
	return net
}

func (net *Network) Config() Config { return net.config }

func randomArray(size int, v float64) []float64 {
	dist := distuv.Uniform{
		Min: -1 / math.Sqrt(v),
		Max: 1 / math.Sqrt(v),
	}

	data := make([]float64, size)
	for i := 0; i < size; i++ {
		data[i] = dist.Rand()
	}
	return data
}

// Train runs mini-batch SGD with momentum on the softmax cross-entropy loss.
func (net *Network) Train(lines Lines) error {
	if len(lines) == 0 {
		return fmt.Errorf("no training data")
	}
	utils.Logf("Started training...")

	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	for epoch := 1; epoch <= net.config.Epochs; epoch++ {
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		var loss float64
		for _, batch := range createBatches(order, net.config.BatchSize) {
			x, y := batchMatrices(lines, batch, net.config.InputNum, net.config.OutputNum)
			l, err := net.trainBatch(x, y)
			if err != nil {
				return fmt.Errorf("epoch %d: %w", epoch, err)
			}
			loss += l * float64(len(batch))
		}
		utils.Logf("Epoch %d of %d complete, loss %.4f", epoch, net.config.Epochs, loss/float64(len(lines)))
	}
	return nil
}

func createBatches(order []int, batchSize int) [][]int {
	if batchSize <= 0 {
		batchSize = len(order)
	}
	numBatches := (len(order) + batchSize - 1) / batchSize
	batches := make([][]int, numBatches)
	for i := 0; i < numBatches; i++ {
		startIdx := i * batchSize
		endIdx := startIdx + batchSize
		if endIdx > len(order) {
			endIdx = len(order)
		}
		batches[i] = order[startIdx:endIdx]
	}
	return batches
}

// batchMatrices stacks the selected samples as columns.
func batchMatrices(lines Lines, idx []int, inputNum, outputNum int) (*mat.Dense, *mat.Dense) {
	x := mat.NewDense(inputNum, len(idx), nil)
	y := mat.NewDense(outputNum, len(idx), nil)
	for col, k := range idx {
		x.SetCol(col, lines[k].Inputs)
		y.SetCol(col, lines[k].Targets)
	}
	return x, y
}

// forward returns the pre-activations, the activations and the logits.
func (net *Network) forward(x mat.Matrix) (z1, h, z2 *mat.Dense) {
	_, n := x.Dims()
	z1 = mat.NewDense(net.config.HiddenNum, n, nil)
	z1.Mul(net.W1, x)
	addBias(z1, net.B1)

	h = mat.NewDense(net.config.HiddenNum, n, nil)
	h.Apply(net.Act.Activate, z1)

	z2 = mat.NewDense(net.config.OutputNum, n, nil)
	z2.Mul(net.W2, h)
	addBias(z2, net.B2)
	return z1, h, z2
}

func addBias(m, b *mat.Dense) {
	m.Apply(func(i, j int, v float64) float64 { return v + b.At(i, 0) }, m)
}

func (net *Network) trainBatch(x, y *mat.Dense) (float64, error) {
	_, n := x.Dims()
	z1, h, z2 := net.forward(x)

	probs := softmaxColumns(z2)
	loss := crossEntropy(probs, y)
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, fmt.Errorf("training diverged")
	}

	dz2 := mat.NewDense(net.config.OutputNum, n, nil)
	dz2.Sub(probs, y)
	dz2.Scale(1/float64(n), dz2)

	dW2 := mat.NewDense(net.config.OutputNum, net.config.HiddenNum, nil)
	dW2.Mul(dz2, h.T())
	dB2 := rowSums(dz2)

	dh := mat.NewDense(net.config.HiddenNum, n, nil)
	dh.Mul(net.W2.T(), dz2)

	// gradients of the activation coefficients
	sq := mat.NewDense(net.config.HiddenNum, n, nil)
	sq.MulElem(z1, z1)
	var tmp mat.Dense
	tmp.MulElem(dh, sq)
	dA := mat.Sum(&tmp)
	tmp.MulElem(dh, z1)
	dB := mat.Sum(&tmp)

	dz1 := mat.NewDense(net.config.HiddenNum, n, nil)
	dz1.MulElem(dh, net.Act.Deactivate(z1))
	dW1 := mat.NewDense(net.config.HiddenNum, net.config.InputNum, nil)
	dW1.Mul(dz1, x.T())
	dB1 := rowSums(dz1)

	grads := []*mat.Dense{dW1, dB1, dW2, dB2}
	actGrads := [2]float64{dA, dB}
	net.clip(grads, actGrads[:])

	params := []*mat.Dense{net.W1, net.B1, net.W2, net.B2}
	for i, p := range params {
		v := net.velocity[i]
		v.Scale(net.config.Momentum, v)
		v.Add(v, scale(net.config.LearningRate, grads[i]))
		p.Sub(p, v)
	}
	for i := range actGrads {
		net.velAct[i] = net.config.Momentum*net.velAct[i] + net.config.LearningRate*actGrads[i]
	}
	net.Act.A -= net.velAct[0]
	net.Act.B -= net.velAct[1]
	return loss, nil
}

// clip rescales all gradients together when their global norm exceeds ClipNorm.
func (net *Network) clip(grads []*mat.Dense, extra []float64) {
	if net.config.ClipNorm <= 0 {
		return
	}
	sum := floats.Dot(extra, extra)
	for _, g := range grads {
		n := mat.Norm(g, 2)
		sum += n * n
	}
	norm := math.Sqrt(sum)
	if norm <= net.config.ClipNorm {
		return
	}
	f := net.config.ClipNorm / norm
	for _, g := range grads {
		g.Scale(f, g)
	}
	floats.Scale(f, extra)
}

func scale(s float64, m mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Scale(s, m)
	return o
}

func rowSums(m *mat.Dense) *mat.Dense {
	r, _ := m.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, floats.Sum(m.RawRowView(i)))
	}
	return out
}

func softmaxColumns(z *mat.Dense) *mat.Dense {
	r, c := z.Dims()
	out := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, z)
		max := floats.Max(col)
		for i := range col {
			col[i] = math.Exp(col[i] - max)
		}
		floats.Scale(1/floats.Sum(col), col)
		out.SetCol(j, col)
	}
	return out
}

func crossEntropy(probs, targets *mat.Dense) float64 {
	r, c := probs.Dims()
	var loss float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if t := targets.At(i, j); t > 0 {
				loss -= t * math.Log(math.Max(probs.At(i, j), 1e-12))
			}
		}
	}
	return loss / float64(c)
}

// Logits returns the output of the network for every line, one row per line.
func (net *Network) Logits(lines Lines) [][]float64 {
	if len(lines) == 0 {
		return nil
	}
	idx := make([]int, len(lines))
	for i := range idx {
		idx[i] = i
	}
	x, _ := batchMatrices(lines, idx, net.config.InputNum, net.config.OutputNum)
	_, _, z2 := net.forward(x)
	out := make([][]float64, len(lines))
	for j := range out {
		out[j] = mat.Col(nil, j, z2)
	}
	return out
}

// Predict returns the argmax class of every line.
func (net *Network) Predict(lines Lines) []int {
	return predictions(net.Logits(lines))
}

func predictions(logits [][]float64) []int {
	out := make([]int, len(logits))
	for i, l := range logits {
		out[i] = bench.Argmax(l)
	}
	return out
}

// Accuracy returns the fraction of lines classified correctly in the clear.
func (net *Network) Accuracy(lines Lines) (float64, error) {
	return bench.Accuracy(net.Predict(lines), lines.Labels())
}

// Weights exports the trained parameters for serialization.
func (net *Network) Weights() *utils.ModelWeights {
	return &utils.ModelWeights{
		Version:    "1.0",
		Activation: []float64{net.Act.B, net.Act.A},
		Layers: map[string]utils.LayerWeight{
			"dense1": {
				Weight: utils.MatrixToWeightData("dense1_weight", net.W1),
				Bias:   utils.MatrixToWeightData("dense1_bias", net.B1),
			},
			"output": {
				Weight: utils.MatrixToWeightData("output_weight", net.W2),
				Bias:   utils.MatrixToWeightData("output_bias", net.B2),
			},
		},
	}
}

// LoadNetwork rebuilds a network from serialized weights.
func LoadNetwork(c Config, w *utils.ModelWeights) (*Network, error) {
	if len(w.Activation) != 2 {
		return nil, fmt.Errorf("expected 2 activation coefficients, got %d", len(w.Activation))
	}
	net := NewNetwork(c)
	targets := map[string][2]**mat.Dense{
		"dense1": {&net.W1, &net.B1},
		"output": {&net.W2, &net.B2},
	}
	for name, dst := range targets {
		lw, ok := w.Layers[name]
		if !ok || lw.Weight == nil || lw.Bias == nil {
			return nil, fmt.Errorf("layer %q missing", name)
		}
		wm, err := utils.WeightDataToMatrix(lw.Weight)
		if err != nil {
			return nil, err
		}
		bm, err := utils.WeightDataToMatrix(lw.Bias)
		if err != nil {
			return nil, err
		}
		wr, wc := wm.Dims()
		er, ec := (*dst[0]).Dims()
		if wr != er || wc != ec {
			return nil, fmt.Errorf("layer %q: weight shape %dx%d, want %dx%d", name, wr, wc, er, ec)
		}
		br, _ := bm.Dims()
		if br != er {
			return nil, fmt.Errorf("layer %q: bias has %d rows, want %d", name, br, er)
		}
		*dst[0], *dst[1] = wm, bm
	}
	net.Act = PolyAct{A: w.Activation[1], B: w.Activation[0]}
	return net, nil
}
