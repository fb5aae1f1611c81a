package micro

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hebench/bench"
	"hebench/utils"
)

func TestMeasureBeforeSetup(t *testing.T) {
	p := NewProgram(12)
	require.Error(t, p.Measure())
	_, err := p.Results()
	require.Error(t, err)
}

func TestProgramRecordsEveryOperation(t *testing.T) {
	utils.Verbose = false
	p := NewProgram(12)
	p.Iterations = 2

	cfg := &utils.RunConfig{
		Benchmark:      "microbenchmark",
		NumRuns:        2,
		OutputFilename: filepath.Join(t.TempDir(), "microbenchmark.csv"),
	}
	table, err := bench.NewRecorder(cfg).Run(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	require.Equal(t, Columns, table.Columns)
	for _, row := range table.Rows {
		for _, c := range Columns {
			require.Greater(t, row[c], 0.0, c)
		}
	}
}
