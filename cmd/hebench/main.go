package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"hebench/bench"
	"hebench/bench/chisquared"
	"hebench/bench/kernel"
	"hebench/bench/micro"
	"hebench/bench/mlp"
	"hebench/core/artifacts"
	"hebench/report"
	"hebench/utils"
)

// benchmarkDef describes how to build one benchmark from the command line.
type benchmarkDef struct {
	defaultRuns int
	defaultTool string
	build       func(dir *artifacts.Dir, logN int, dataPath string) bench.Benchmark
}

var benchmarks = map[string]benchmarkDef{
	"chi_squared": {10, "Lattigo-CKKS", func(dir *artifacts.Dir, logN int, _ string) bench.Benchmark {
		return chisquared.NewCKKSProgram(dir, logN)
	}},
	"chi_squared_bfv": {10, "Lattigo-BGV", func(dir *artifacts.Dir, logN int, _ string) bench.Benchmark {
		return chisquared.NewBGVProgram(dir, logN)
	}},
	"kernel": {10, "Lattigo-BGV", func(dir *artifacts.Dir, logN int, _ string) bench.Benchmark {
		return kernel.NewProgram(dir, logN)
	}},
	"nn": {1, "Lattigo-CKKS-MLP", func(dir *artifacts.Dir, logN int, dataPath string) bench.Benchmark {
		return mlp.NewProgram(dir, logN, dataPath)
	}},
	"microbenchmark": {10, "Lattigo-CKKS-Microbenchmark", func(_ *artifacts.Dir, logN int, _ string) bench.Benchmark {
		return micro.NewProgram(logN)
	}},
}

func benchmarkNames() []string {
	names := make([]string, 0, len(benchmarks))
	for n := range benchmarks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func main() {
	var name string
	var tool string
	var upload bool
	var root string
	var dataPath string
	var keep bool
	var quiet bool

	flag.StringVar(&name, "benchmark", "chi_squared", "Benchmark to run ("+strings.Join(benchmarkNames(), ", ")+")")
	flag.StringVar(&tool, "tool", "", "Tool label used as upload folder (default depends on the benchmark)")
	flag.BoolVar(&upload, "upload", false, "Upload the CSV to <root>/<tool>/ in the bucket")
	flag.StringVar(&root, "root", "", "Batch folder for uploads (default: current time as YYYYMMDD_HHMMSS)")
	flag.StringVar(&dataPath, "data", "", "MNIST CSV for the nn benchmark (default: synthetic data)")
	flag.BoolVar(&keep, "keep", false, "Keep the artifact directory after the run")
	flag.BoolVar(&quiet, "quiet", false, "Suppress progress output")
	flag.Parse()

	def, ok := benchmarks[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown benchmark %q (available: %s)\n", name, strings.Join(benchmarkNames(), ", "))
		os.Exit(2)
	}
	utils.Verbose = !quiet

	cfg, err := utils.LoadRunConfig(name, def.defaultRuns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dir, err := artifacts.NewDir(filepath.Join(cfg.WorkDir, name), name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if !keep {
		defer dir.Remove()
	}

	rec := bench.NewRecorder(cfg)
	if upload {
		if tool == "" {
			tool = def.defaultTool
		}
		if root == "" {
			root = time.Now().Format("20060102_150405")
		}
		store, err := report.NewS3Store(ctx, utils.Bucket())
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		rec.Uploader = store
		rec.UploadKey = path.Join(root, tool, filepath.Base(cfg.OutputFilename))
	}

	utils.Logf("Running %s %d times (run %s, artifacts in %s)", name, cfg.NumRuns, cfg.RunID, dir.Path)
	table, err := rec.Run(ctx, def.build(dir, cfg.LogN, dataPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		if !keep {
			dir.Remove()
		}
		os.Exit(1)
	}
	utils.Logf("Wrote %d rows to %s", table.Len(), cfg.OutputFilename)
}
