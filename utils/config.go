package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Environment variables read by LoadRunConfig.
const (
	EnvNumRuns        = "NUM_RUNS"
	EnvOutputFilename = "OUTPUT_FILENAME"
	EnvWorkDir        = "HEBENCH_WORKDIR"
	EnvLogN           = "HEBENCH_LOGN"
	EnvBucket         = "HEBENCH_BUCKET"
)

// DefaultBucket is the object store bucket holding benchmark batches.
const DefaultBucket = "sok-repository-eval-benchmarks"

// RunConfig holds the benchmark run configuration, resolved once at start.
type RunConfig struct {
	Benchmark      string
	NumRuns        int
	OutputFilename string
	WorkDir        string
	RunID          string
	LogN           int // 0 keeps the benchmark's own ring degree
}

// LoadRunConfig resolves the configuration of benchmark name from the
// environment. defaultRuns applies when NUM_RUNS is unset.
func LoadRunConfig(name string, defaultRuns int) (*RunConfig, error) {
	return loadRunConfig(name, defaultRuns, os.LookupEnv)
}

func loadRunConfig(name string, defaultRuns int, lookup func(string) (string, bool)) (*RunConfig, error) {
	cfg := &RunConfig{
		Benchmark:      name,
		NumRuns:        defaultRuns,
		OutputFilename: DefaultOutputFilename(name),
		RunID:          uuid.NewString(),
	}

	if v, ok := lookup(EnvNumRuns); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvNumRuns, v, err)
		}
		cfg.NumRuns = n
	}
	if v, ok := lookup(EnvOutputFilename); ok && v != "" {
		cfg.OutputFilename = v
	}
	if v, ok := lookup(EnvWorkDir); ok && v != "" {
		cfg.WorkDir = v
	} else {
		cfg.WorkDir = filepath.Join(os.TempDir(), "hebench-"+cfg.RunID)
	}
	if v, ok := lookup(EnvLogN); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvLogN, v, err)
		}
		cfg.LogN = n
	}

	if err := ValidateRunConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultOutputFilename derives the CSV name from the benchmark name. The
// name is kept verbatim so report filters can match it.
func DefaultOutputFilename(name string) string {
	return "lattigo_" + name + ".csv"
}

// ValidateRunConfig validates a run configuration
func ValidateRunConfig(cfg *RunConfig) error {
	if cfg.Benchmark == "" {
		return fmt.Errorf("benchmark name must not be empty")
	}
	if cfg.NumRuns <= 0 {
		return fmt.Errorf("number of runs must be positive")
	}
	if cfg.OutputFilename == "" {
		return fmt.Errorf("output filename must not be empty")
	}
	if cfg.LogN != 0 && (cfg.LogN < 10 || cfg.LogN > 16) {
		return fmt.Errorf("logN must be between 10 and 16, got %d", cfg.LogN)
	}
	return nil
}

// Bucket returns the object store bucket from the environment or the default.
func Bucket() string {
	if v := os.Getenv(EnvBucket); v != "" {
		return v
	}
	return DefaultBucket
}

// ParseList splits a comma-separated list, dropping empty entries.
func ParseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
