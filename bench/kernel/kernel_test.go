package kernel

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hebench/bench"
	"hebench/core/artifacts"
	"hebench/core/bgvwrapper"
	"hebench/utils"
)

func quiet(t *testing.T) {
	prev := utils.Verbose
	utils.Verbose = false
	t.Cleanup(func() { utils.Verbose = prev })
}

func TestReference(t *testing.T) {
	img := Image(3)
	require.Equal(t, []uint64{0, 1, 2, 0, 1, 2, 0, 1, 2}, img)
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, Rotations(3))

	// slot 0 sees the whole 3x3 image: 0+1+2 + 0-8+2 + 0+1+2
	require.Equal(t, []int64{0, -9, 8, -3, -12, 5, 3, 3, 2}, Reference(img, 3))
}

func TestEvaluateMatchesReference(t *testing.T) {
	params, err := bgvwrapper.NewParameters(12)
	require.NoError(t, err)
	c := bgvwrapper.NewContext(params)
	eval := bgvwrapper.NewEvaluator(params, c.GenEvaluationKeys(Rotations(4)))

	img := []uint64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9, 7, 9, 3}
	ct, err := c.EncryptInts(img)
	require.NoError(t, err)
	out, err := Evaluate(eval, ct, 4, len(img))
	require.NoError(t, err)

	got, err := c.DecryptSigned(out, len(img))
	require.NoError(t, err)
	require.Equal(t, Reference(img, 4), got)
}

func TestProgramIsExact(t *testing.T) {
	quiet(t)
	dir, err := artifacts.NewDir(t.TempDir(), "kernel")
	require.NoError(t, err)

	p := NewProgram(dir, 12)
	for _, phase := range p.Phases() {
		require.NoError(t, phase.Run(), phase.Name)
	}
	_, err = p.Results()
	require.NoError(t, err)

	require.Equal(t, Reference(Image(ImageSize), ImageSize), p.Outputs())
	require.Zero(t, p.MSE())
}

func TestCompileRejectsOversizedImage(t *testing.T) {
	dir, err := artifacts.NewDir(t.TempDir(), "kernel")
	require.NoError(t, err)
	p := NewProgram(dir, 12)
	p.Size = 64
	require.Error(t, p.Compile())
}

func TestRecorderRunsProgram(t *testing.T) {
	quiet(t)
	work := t.TempDir()
	dir, err := artifacts.NewDir(filepath.Join(work, "artifacts"), "kernel")
	require.NoError(t, err)
	cfg := &utils.RunConfig{Benchmark: "kernel", NumRuns: 2, OutputFilename: filepath.Join(work, "lattigo_kernel.csv")}

	table, err := bench.NewRecorder(cfg).Run(context.Background(), NewProgram(dir, 12))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	for _, row := range table.Rows {
		require.Greater(t, row[bench.ColComputation], 0.0)
	}
}
