package chisquared

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hebench/bench"
	"hebench/core/artifacts"
	"hebench/utils"
)

func TestReference(t *testing.T) {
	require.Equal(t, []float64{529, 242, 275, 1250}, Reference(DefaultInputs))
	require.Equal(t, []float64{1, 2, 1, 2}, Reference(Inputs{N0: 0, N1: 1, N2: 0}))
}

func runPhases(t *testing.T, b bench.Benchmark) {
	t.Helper()
	for _, p := range b.Phases() {
		require.NoError(t, p.Run(), p.Name)
	}
	_, err := b.Results()
	require.NoError(t, err)
}

func TestCKKSProgram(t *testing.T) {
	utils.Verbose = false
	dir, err := artifacts.NewDir(t.TempDir(), "chi_squared")
	require.NoError(t, err)

	p := NewCKKSProgram(dir, 12)
	runPhases(t, p)

	want := Reference(DefaultInputs)
	got := p.Outputs()
	require.Len(t, got, len(want))
	for i := range want {
		require.InDelta(t, want[i], got[i], 0.05, OutputNames[i])
	}
	require.Less(t, p.MSE(), 1e-2)

	for _, f := range []string{dir.ParamsFile(), dir.SecretKeyFile(), dir.PublicKeyFile(), dir.EvalKeysFile(), dir.InputsFile(), dir.OutputsFile()} {
		_, err := os.Stat(f)
		require.NoError(t, err, filepath.Base(f))
	}
}

func TestBGVProgramIsExact(t *testing.T) {
	utils.Verbose = false
	dir, err := artifacts.NewDir(t.TempDir(), "chi_squared_bfv")
	require.NoError(t, err)

	p := NewBGVProgram(dir, 12)
	runPhases(t, p)

	require.Equal(t, Reference(DefaultInputs), p.Outputs())
	require.Zero(t, p.MSE())
}

func TestEvaluateNeedsKeys(t *testing.T) {
	dir, err := artifacts.NewDir(t.TempDir(), "chi_squared")
	require.NoError(t, err)
	p := NewCKKSProgram(dir, 12)
	require.NoError(t, p.Compile())
	require.Error(t, p.Evaluate())
}

func TestRecorderRunsCKKSProgram(t *testing.T) {
	utils.Verbose = false
	work := t.TempDir()
	dir, err := artifacts.NewDir(filepath.Join(work, "artifacts"), "chi_squared")
	require.NoError(t, err)
	cfg := &utils.RunConfig{Benchmark: "chi_squared", NumRuns: 2, OutputFilename: filepath.Join(work, "chi-squared.csv")}

	table, err := bench.NewRecorder(cfg).Run(context.Background(), NewCKKSProgram(dir, 12))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	require.Equal(t, bench.PhaseColumns, table.Columns)
	for _, row := range table.Rows {
		require.Len(t, row, len(bench.PhaseColumns))
	}
}
