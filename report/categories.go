package report

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"hebench/bench"
	"hebench/utils"
)

// OutputFileTypes are the formats every chart is saved in.
var OutputFileTypes = []string{"pdf", "png"}

// Category is one chart of a batch: the tools whose CSV name contains
// Filter, drawn by Render.
type Category struct {
	Filter string
	File   string

	// DisplayOrder, when set, selects and orders the tools before rendering.
	DisplayOrder []string
	// Placeholders are tables added for tools missing from the batch.
	Placeholders map[string]*bench.Table

	Render        func(*LabelsData) (*plot.Plot, error)
	Width, Height vg.Length
}

var (
	// sized like a one-column figure
	smallWidth  = vg.Points(252 * 2 * 0.67)
	smallHeight = vg.Inch * 2.5 / 1.22
	microWidth  = vg.Points(384 * 2 * 0.67)
	microHeight = vg.Inch * 4.5 / 1.22
)

var gridColors = []color.Color{hexColor("#15607a"), hexColor("#ffbd70"), hexColor("#e7e7e7"), hexColor("#ff483a")}

var cardioChart = &StackedChart{
	Positions: Positions{
		{"Lobster-Baseline", 0, 0},
		{"Lobster-Baseline-OPT", 0, 1},
		{"MultiStart-OPT-PARAMS", 0, 2},
		{"Lobster-OPT-PARAMS", 0, 3},

		{"Cingulata-OPT", 1, 0},

		{"SEAL-BFV-Manualparams", 2, 0},
		{"SEAL-BFV-Naive-Sealparams", 2, 1},
		{"E3-SEAL", 2, 2},

		{"TFHE", 3, 0},
		{"E3-TFHE", 3, 1},

		{"SEAL-BFV-Batched-Manualparams", 4, 0},
		{"E3-SEAL-Batched", 4, 1},
	},
	GroupLabels: []string{
		"Depth Optimized\n(A/B/C/D)",
		"Cingu.",
		"SEAL\n(Opt./Naive/E3)",
		"TFHE\n(Opt./E3)",
		"SEAL Bat.\n(Opt./E3)",
	},
	BarWidth: 0.03,
	Spacer:   0.02,
	Colors:   []color.Color{hexColor("#a6cee3"), hexColor("#1f78b4"), hexColor("#D9DC8E"), hexColor("#33a02c")},
}

var cardioOrder = []string{
	"Lobster-Baseline",
	"Lobster-Baseline-OPT",
	"MultiStart-OPT-PARAMS",
	"Lobster-OPT-PARAMS",

	"Cingulata-OPT",

	"SEAL-BFV-Manualparams",
	"SEAL-BFV-Naive-Sealparams",
	"E3-SEAL",

	"TFHE",
	"E3-TFHE",
	"Cingulata-TFHE",

	"SEAL-BFV-Batched-Manualparams",
	"E3-SEAL-Batched",
}

var nnChart = &StackedChart{
	Positions: Positions{
		{"SEAL-CKKS-Batched", 0, 0},

		{"SEALion", 1, 0},

		{"nGraph-HE-MLP", 2, 0},
		{"nGraph-HE-Cryptonets", 2, 1},
		{"nGraph-HE-LeNet5", 2, 2},

		{"EVA-MLP", 3, 0},
		{"EVA-CHET", 3, 1},

		{"Lattigo-CKKS-MLP", 4, 0},
	},
	GroupLabels: []string{
		"Manual\n(MLP)",
		"SEALion\n(MLP)",
		"nGraph-HE\n(MLP, CryptoNets, LeNet-5)",
		"EVA\n(MLP, LeNet-5)",
		"Lattigo\n(MLP)",
	},
	BarWidth:    0.002,
	Spacer:      0.004,
	InnerSpacer: 0.0005,
	Colors:      gridColors,
}

// sealPositions are the native tool groups shared by kernel and chi_squared.
var sealPositions = Positions{
	{"Cingulata", 0, 0},
	{"SEAL-BFV", 1, 0},
	{"E3-SEAL", 1, 1},
	{"SEAL-BFV-Batched", 2, 0},
	{"E3-SEAL-Batched", 2, 1},
}

var sealGroupLabels = []string{
	"Cingulata",
	"SEAL\n(Native/E3)",
	"SEAL-Batched\n(Native/E3)",
}

var kernelChart = &StackedChart{
	Positions: append(append(Positions{}, sealPositions...),
		Placement{"Lattigo-BGV", 3, 0},
	),
	GroupLabels: append(append([]string{}, sealGroupLabels...), "Lattigo\n(BGV)"),
	BarWidth:    0.002,
	Spacer:      0.004,
	InnerSpacer: 0.0005,
	Colors:      gridColors,
	LogY:        true,
}

var chiSquaredChart = &StackedChart{
	Positions: append(append(Positions{}, sealPositions...),
		Placement{"Lattigo-BGV", 3, 0},
		Placement{"Lattigo-CKKS", 3, 1},
	),
	GroupLabels: append(append([]string{}, sealGroupLabels...), "Lattigo\n(BGV/CKKS)"),
	BarWidth:    0.002,
	Spacer:      0.004,
	InnerSpacer: 0.0005,
	Colors:      gridColors,
	LogY:        true,
}

var microChart = &MicroChart{
	Tools: map[string]string{
		"PALISADE-Microbenchmark":     "PALISADE",
		"SEAL-BFV-Microbenchmark":     "SEAL-BFV",
		"Lattigo-CKKS-Microbenchmark": "Lattigo-CKKS",
	},
	Columns: []string{
		"t_mul_ct_ct", "t_mul_ct_ct_inplace", "t_mul_ct_pt", "t_mul_ct_pt_inplace",
		"t_add_ct_ct", "t_add_ct_ct_inplace", "t_add_ct_pt", "t_add_ct_pt_inplace",
		"t_enc_sk", "t_enc_pk", "t_dec", "t_rot",
	},
	XLabels: map[string]string{
		"t_mul_ct_ct":         "mul\n(ct,ct)",
		"t_mul_ct_ct_inplace": "mul ip\n(ct,ct)",
		"t_mul_ct_pt":         "mul\n(ct,pt)",
		"t_mul_ct_pt_inplace": "mul ip\n(ct,pt)",
		"t_add_ct_ct":         "add\n(ct,ct)",
		"t_add_ct_ct_inplace": "add ip\n(ct,ct)",
		"t_add_ct_pt":         "add\n(ct,pt)",
		"t_add_ct_pt_inplace": "add ip\n(ct,pt)",
		"t_enc_sk":            "enc\n(sk)",
		"t_enc_pk":            "enc\n(pk)",
		"t_dec":               "dec",
		"t_rot":               "rot",
	},
	Colors:   []color.Color{gray(0.1), gray(0.35), gray(0.5), gray(0.85)},
	BarWidth: 0.4,
}

// placeholderTable stands in for a tool that has not been benchmarked yet.
func placeholderTable(computationMS float64) *bench.Table {
	t := bench.NewTable(bench.PhaseColumns...)
	t.Append(bench.Record{
		bench.ColKeyGen:      0,
		bench.ColEncryption:  0,
		bench.ColComputation: computationMS,
		bench.ColDecryption:  0,
	})
	return t
}

func sortedKeys(m map[string]*bench.Table) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Categories lists every chart, in plotting order.
func Categories() []Category {
	return []Category{
		{Filter: "microbenchmark", File: "plot_microbenchmark", Render: microChart.Plot, Width: microWidth, Height: microHeight},
		{Filter: "cardio", File: "plot_cardio", DisplayOrder: cardioOrder, Render: cardioChart.Plot, Width: smallWidth, Height: smallHeight},
		{
			Filter: "nn", File: "plot_nn", Render: nnChart.Plot, Width: smallWidth, Height: smallHeight,
			Placeholders: map[string]*bench.Table{
				"EVA-MLP":  placeholderTable(10000),
				"EVA-CHET": placeholderTable(10000),
			},
		},
		{Filter: "chi_squared", File: "plot_chi_squared", Render: chiSquaredChart.Plot, Width: smallWidth, Height: smallHeight},
		{Filter: "kernel", File: "plot_kernel", Render: kernelChart.Plot, Width: smallWidth, Height: smallHeight},
	}
}

// LookupCategory returns the category with the given filter.
func LookupCategory(filter string) (Category, bool) {
	for _, c := range Categories() {
		if c.Filter == filter {
			return c, true
		}
	}
	return Category{}, false
}

// Prepare applies the display order and the placeholders of c to d.
func (c Category) Prepare(d *LabelsData) *LabelsData {
	if c.DisplayOrder != nil {
		d = Order(d, c.DisplayOrder)
	}
	if len(c.Placeholders) == 0 {
		return d
	}
	out := &LabelsData{Root: d.Root}
	for i, l := range d.Labels {
		out.Add(l, d.Tables[i])
	}
	for _, label := range sortedKeys(c.Placeholders) {
		if _, ok := out.Table(label); !ok {
			out.Add(label, c.Placeholders[label])
		}
	}
	return out
}

// Plotter renders the categories of one batch and publishes the charts.
type Plotter struct {
	Store  Store
	Root   string // empty selects the most recent batch
	OutDir string
	Stderr io.Writer
}

func (pl *Plotter) stderr() io.Writer {
	if pl.Stderr == nil {
		return os.Stderr
	}
	return pl.Stderr
}

// PlotCategory loads the tables of c, renders them and saves the chart.
// It returns the local files written.
func (pl *Plotter) PlotCategory(ctx context.Context, c Category) ([]string, error) {
	utils.Logf("Plotting %s", c.Filter)
	d, err := GetLabelsData(ctx, pl.Store, c.Filter, pl.Root, pl.stderr())
	if err != nil {
		return nil, err
	}
	p, err := c.Render(c.Prepare(d))
	if err != nil {
		return nil, fmt.Errorf("plotting %s: %w", c.Filter, err)
	}
	return pl.SavePlot(ctx, p, c.File, d.Root, c.Width, c.Height)
}

// SavePlot writes p as <name>.pdf and <name>.png and uploads both to
// <root>/plot/. Upload failures are reported and otherwise ignored.
func (pl *Plotter) SavePlot(ctx context.Context, p *plot.Plot, name, root string, w, h vg.Length) ([]string, error) {
	if err := os.MkdirAll(pl.OutDir, 0o755); err != nil {
		return nil, err
	}
	var files []string
	for _, ext := range OutputFileTypes {
		file := filepath.Join(pl.OutDir, name+"."+ext)
		if err := p.Save(w, h, file); err != nil {
			return files, fmt.Errorf("saving %s: %w", file, err)
		}
		files = append(files, file)

		key := path.Join(root, "plot", name+"."+ext)
		if err := pl.Store.Upload(ctx, file, key); err != nil {
			fmt.Fprintf(pl.stderr(), "Could not upload %s to %s: %v\n", file, key, err)
		}
	}
	return files, nil
}
