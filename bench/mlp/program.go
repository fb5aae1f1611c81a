package mlp

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"hebench/bench"
	"hebench/core/artifacts"
	"hebench/core/ckkswrapper"
	"hebench/utils"
)

// LogN is the default ring degree: 4096 test samples per ciphertext.
const LogN = 13

const (
	defaultTrainSamples = 4000
	defaultTestSamples  = 1000
	syntheticNoise      = 0.15
)

// Program trains the network in the clear and classifies the test set
// under CKKS. The encrypted batch stays in memory between phases; the
// parameters, keys and trained weights go to the artifact directory.
type Program struct {
	Dir      *artifacts.Dir
	LogN     int
	Config   Config
	DataPath string // MNIST CSV; synthetic data when empty

	TrainSamples int
	TestSamples  int

	train, test Lines
	net         *Network
	client      *ckkswrapper.HeContext
	in, out     []*rlwe.Ciphertext
	predicted   []int
}

// NewProgram returns a program for the default network.
func NewProgram(dir *artifacts.Dir, logN int, dataPath string) *Program {
	if logN == 0 {
		logN = LogN
	}
	return &Program{
		Dir:          dir,
		LogN:         logN,
		Config:       DefaultConfig(),
		DataPath:     dataPath,
		TrainSamples: defaultTrainSamples,
		TestSamples:  defaultTestSamples,
	}
}

func (p *Program) Name() string      { return "nn" }
func (p *Program) Columns() []string { return bench.MLColumns }

func (p *Program) Phases() []bench.Phase {
	return []bench.Phase{
		{Name: "load data", Run: p.LoadData},
		{Name: "training", Column: bench.ColTraining, Run: p.Train},
		{Name: "save weights", Run: p.SaveWeights},
		{Name: "key generation", Column: bench.ColKeyGen, Run: p.KeyGen},
		{Name: "client encryption", Column: bench.ColEncryption, Run: p.Encrypt},
		{Name: "server evaluation", Column: bench.ColComputation, Run: p.Evaluate},
		{Name: "client decryption", Column: bench.ColDecryption, Run: p.Decrypt},
	}
}

// LoadData reads the data set once and keeps it for later repetitions.
func (p *Program) LoadData() error {
	if p.train != nil {
		return nil
	}
	var lines Lines
	if p.DataPath == "" {
		lines = SyntheticLines(p.TrainSamples+p.TestSamples, p.Config.InputNum, p.Config.OutputNum, syntheticNoise)
	} else {
		var err error
		if lines, err = GetLinesMNIST(p.DataPath, p.Config.InputNum, p.Config.OutputNum); err != nil {
			return err
		}
	}
	if len(lines) < 2 {
		return fmt.Errorf("need at least 2 samples, got %d", len(lines))
	}

	testN := p.TestSamples
	if testN <= 0 || testN >= len(lines) {
		testN = len(lines) / 7
		if testN == 0 {
			testN = 1
		}
	}
	p.train, p.test = lines.Split(len(lines) - testN)
	utils.Logf("Loaded %d training and %d test samples", len(p.train), len(p.test))
	return nil
}

func (p *Program) Train() error {
	p.net = NewNetwork(p.Config)
	if err := p.net.Train(p.train); err != nil {
		return err
	}
	utils.Logf("Trained activation %v", p.net.Act)
	return nil
}

func (p *Program) SaveWeights() error {
	return utils.SaveWeights(p.Dir.WeightsFile(), p.net.Weights())
}

// KeyGen instantiates the parameters and generates the keys. Only the
// relinearization key is needed: inference never rotates.
func (p *Program) KeyGen() error {
	params, err := ckkswrapper.NewParameters(p.LogN, Depth)
	if err != nil {
		return err
	}
	if err := artifacts.Save(p.Dir.ParamsFile(), params); err != nil {
		return err
	}
	p.client = ckkswrapper.NewHeContextWithParams(params)
	if err := artifacts.Save(p.Dir.SecretKeyFile(), p.client.Sk); err != nil {
		return err
	}
	if err := artifacts.Save(p.Dir.PublicKeyFile(), p.client.Pk); err != nil {
		return err
	}
	return artifacts.Save(p.Dir.EvalKeysFile(), p.client.GenEvaluationKeys(nil))
}

// testBatch is the part of the test set that fits one ciphertext.
func (p *Program) testBatch() Lines {
	batch, _ := p.test.Split(p.client.Params.MaxSlots())
	return batch
}

func (p *Program) Encrypt() error {
	if p.client == nil {
		return fmt.Errorf("no keys generated")
	}
	var err error
	p.in, err = EncryptBatch(p.client, p.testBatch(), p.Config.InputNum)
	return err
}

// Evaluate runs inference on the server side: the model, the parameters
// and the evaluation keys are all read back from disk.
func (p *Program) Evaluate() error {
	var params ckks.Parameters
	if err := artifacts.Load(p.Dir.ParamsFile(), &params); err != nil {
		return err
	}
	evk := new(rlwe.MemEvaluationKeySet)
	if err := artifacts.Load(p.Dir.EvalKeysFile(), evk); err != nil {
		return err
	}
	weights, err := utils.LoadWeights(p.Dir.WeightsFile())
	if err != nil {
		return err
	}
	model, err := LoadNetwork(p.Config, weights)
	if err != nil {
		return err
	}
	eval := ckkswrapper.NewCountingEvaluator(ckkswrapper.NewServerKit(params, evk).Evaluator)

	if p.out, err = model.InferEncrypted(params, eval, p.in); err != nil {
		return err
	}
	eval.Log("inference")
	return nil
}

func (p *Program) Decrypt() error {
	logits, err := DecryptLogits(p.client, p.out, len(p.testBatch()))
	if err != nil {
		return err
	}
	p.predicted = predictions(logits)
	return nil
}

// Results reports the accuracy of the decrypted predictions.
func (p *Program) Results() (bench.Record, error) {
	acc, err := bench.Accuracy(p.predicted, p.testBatch().Labels())
	if err != nil {
		return nil, err
	}
	plain, err := p.net.Accuracy(p.testBatch())
	if err != nil {
		return nil, err
	}
	utils.Logf("Test accuracy: %.4f (plaintext %.4f)", acc, plain)
	return bench.Record{bench.ColTestAccuracy: acc}, nil
}

// Network returns the network trained in the last repetition.
func (p *Program) Network() *Network { return p.net }
