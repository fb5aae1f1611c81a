package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"

	"hebench/report"
	"hebench/utils"
)

func main() {
	var storeKind string
	var dirPath string
	var root string
	var only string
	var outDir string
	var parallel bool

	flag.StringVar(&storeKind, "store", "s3", "Where the batches live: s3 or dir")
	flag.StringVar(&dirPath, "dir", ".", "Local batch directory when -store=dir")
	flag.StringVar(&root, "root", "", "Batch folder to plot (default: most recent)")
	flag.StringVar(&only, "only", "", "Comma-separated categories to plot (default: all)")
	flag.StringVar(&outDir, "out", ".", "Directory for the rendered charts")
	flag.BoolVar(&parallel, "parallel", false, "Plot the categories concurrently")
	flag.Parse()

	ctx := context.Background()
	var store report.Store
	switch storeKind {
	case "s3":
		s, err := report.NewS3Store(ctx, utils.Bucket())
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		store = s
	case "dir":
		store = report.NewDirStore(dirPath)
	default:
		fmt.Fprintf(os.Stderr, "unknown store %q (s3 or dir)\n", storeKind)
		os.Exit(2)
	}

	categories := report.Categories()
	if names := utils.ParseList(only); len(names) > 0 {
		categories = categories[:0]
		for _, n := range names {
			c, ok := report.LookupCategory(n)
			if !ok {
				fmt.Fprintf(os.Stderr, "unknown category %q\n", n)
				os.Exit(2)
			}
			categories = append(categories, c)
		}
	}

	pl := &report.Plotter{Store: store, Root: root, OutDir: outDir}
	errs := make([]error, len(categories))
	plotOne := func(i int) {
		files, err := pl.PlotCategory(ctx, categories[i])
		if err != nil {
			errs[i] = err
			return
		}
		utils.Logf("Saved %v", files)
	}

	if parallel {
		var wg sync.WaitGroup
		for i := range categories {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				plotOne(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range categories {
			plotOne(i)
		}
	}

	failed := false
	for i, err := range errs {
		switch {
		case err == nil, errors.Is(err, report.ErrNoData):
			// no data was already reported
		default:
			fmt.Fprintf(os.Stderr, "%s: %v\n", categories[i].Filter, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}
