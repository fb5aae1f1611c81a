// Package bench drives HE benchmarks phase by phase, times every phase and
// records one CSV row per repetition.
package bench

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"hebench/utils"
)

// Phase is one stage of a benchmark repetition. Its elapsed time is stored
// under Column; a phase with an empty Column runs untimed.
type Phase struct {
	Name   string
	Column string
	Run    func() error
}

// Benchmark is a workload driven by a Recorder.
type Benchmark interface {
	Name() string
	Columns() []string
	Phases() []Phase
	// Results runs after the phases of a repetition and returns the values
	// that are not phase durations (accuracy, per-operation timings).
	Results() (Record, error)
}

// Uploader copies a local file to a remote key.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) error
}

// Recorder runs a Benchmark Config.NumRuns times and keeps the output CSV
// current after every repetition.
type Recorder struct {
	Config *utils.RunConfig

	// Uploader and UploadKey are optional; when set the final CSV is
	// uploaded once all repetitions completed.
	Uploader  Uploader
	UploadKey string

	Stderr io.Writer
}

// NewRecorder returns a recorder for cfg.
func NewRecorder(cfg *utils.RunConfig) *Recorder {
	return &Recorder{Config: cfg, Stderr: os.Stderr}
}

// Run executes all repetitions. A failing phase aborts the run; the table
// holds the repetitions completed so far.
func (r *Recorder) Run(ctx context.Context, b Benchmark) (*Table, error) {
	table := NewTable(b.Columns()...)
	for run := 0; run < r.Config.NumRuns; run++ {
		if err := ctx.Err(); err != nil {
			return table, err
		}
		utils.Logf("%s: run %d of %d", b.Name(), run+1, r.Config.NumRuns)

		rec, times, err := runOnce(b)
		if err != nil {
			return table, fmt.Errorf("%s run %d: %w", b.Name(), run, err)
		}
		table.Append(rec)
		utils.PrintPhaseTimes(times, run)

		if err := table.WriteFile(r.Config.OutputFilename); err != nil {
			return table, fmt.Errorf("writing %s: %w", r.Config.OutputFilename, err)
		}
	}

	if r.Uploader != nil && r.UploadKey != "" {
		if err := r.Uploader.Upload(ctx, r.Config.OutputFilename, r.UploadKey); err != nil {
			fmt.Fprintf(r.stderr(), "Could not upload %s to %s: %v\n", r.Config.OutputFilename, r.UploadKey, err)
		}
	}
	return table, nil
}

func (r *Recorder) stderr() io.Writer {
	if r.Stderr == nil {
		return os.Stderr
	}
	return r.Stderr
}

func runOnce(b Benchmark) (Record, utils.PhaseTimes, error) {
	rec := Record{}
	var times utils.PhaseTimes
	for _, p := range b.Phases() {
		d, err := utils.Time(p.Run)
		if err != nil {
			return nil, times, fmt.Errorf("%s: %w", p.Name, err)
		}
		if p.Column == "" {
			continue
		}
		rec[p.Column] = utils.DeltaMS(d)
		addPhaseTime(&times, p.Column, d)
	}

	extra, err := b.Results()
	if err != nil {
		return nil, times, fmt.Errorf("results: %w", err)
	}
	for k, v := range extra {
		rec[k] = v
	}
	return rec, times, nil
}

func addPhaseTime(times *utils.PhaseTimes, column string, d time.Duration) {
	switch column {
	case ColTraining:
		times.Training += d
	case ColKeyGen:
		times.KeyGen += d
	case ColEncryption:
		times.Encryption += d
	case ColComputation:
		times.Computation += d
	case ColDecryption:
		times.Decryption += d
	}
}
