package report

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"hebench/bench"
	"hebench/utils"
)

// LegendLabels name the stacked segments, bottom to top.
var LegendLabels = []string{"Key Gen.", "Enc.", "Comp.", "Dec."}

// StackedChart draws one bar per tool with the key generation, encryption,
// computation and decryption means stacked, and the summed deviations as
// an error bar on top.
type StackedChart struct {
	Positions   Positions
	GroupLabels []string
	BarWidth    float64
	InnerSpacer float64
	Spacer      float64
	Colors      []color.Color // one per phase, bottom to top
	LogY        bool
}

// Bar is a positioned tool bar.
type Bar struct {
	Label string
	X     float64
	Stats []PhaseStat
}

func (b Bar) Total() float64    { return Total(b.Stats) }
func (b Bar) ErrorBar() float64 { return ErrorBar(b.Stats) }

// Bars places the tools of d. Tools without a position and empty tables are
// skipped; they never shift the bars of other tools.
func (c *StackedChart) Bars(d *LabelsData) ([]Bar, error) {
	_, starts := GetXTicksPositions(c.Positions, c.BarWidth, c.InnerSpacer, c.Spacer)
	var bars []Bar
	for i, label := range d.Labels {
		pl, ok := c.Positions.Lookup(label)
		if !ok {
			continue
		}
		t := d.Tables[i]
		if t.Len() == 0 {
			continue
		}
		x, err := GetXPosition(pl, starts, c.BarWidth, c.InnerSpacer)
		if err != nil {
			return nil, err
		}
		stats, err := PhaseStats(t, bench.PhaseColumns)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", label, err)
		}
		bars = append(bars, Bar{Label: label, X: x, Stats: stats})
	}
	return bars, nil
}

// Plot renders the chart.
func (c *StackedChart) Plot(d *LabelsData) (*plot.Plot, error) {
	if len(c.Colors) < len(bench.PhaseColumns) {
		return nil, fmt.Errorf("need %d colors, got %d", len(bench.PhaseColumns), len(c.Colors))
	}
	centers, starts := GetXTicksPositions(c.Positions, c.BarWidth, c.InnerSpacer, c.Spacer)
	if len(centers) != len(c.GroupLabels) {
		return nil, fmt.Errorf("%d group labels for %d groups", len(c.GroupLabels), len(centers))
	}
	bars, err := c.Bars(d)
	if err != nil {
		return nil, err
	}

	p := newPlot("Time [s]", c.LogY)
	floor := logFloor(bars, c.LogY)
	width := c.BarWidth * 0.9

	for _, b := range bars {
		bottom := 0.0
		for i, s := range b.Stats {
			y0, y1 := bottom, bottom+s.Mean
			bottom = y1
			if c.LogY {
				if y1 <= floor {
					continue
				}
				y0 = math.Max(y0, floor)
			}
			if y1 <= y0 {
				continue
			}
			r, err := rect(b.X-width/2, b.X+width/2, y0, y1, c.Colors[i])
			if err != nil {
				return nil, err
			}
			p.Add(r)
		}
		if err := addErrorBar(p, b.X, b.Total(), b.ErrorBar(), floor, c.LogY); err != nil {
			return nil, err
		}
		utils.Logf("%s: \n %g\t%g\t%g\t%g\t( total: %g )", b.Label,
			b.Stats[0].Mean, b.Stats[1].Mean, b.Stats[2].Mean, b.Stats[3].Mean, b.Total())
	}

	ticks := make([]plot.Tick, len(centers))
	for i := range centers {
		ticks[i] = plot.Tick{Value: centers[i], Label: c.GroupLabels[i]}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Min = 0
	if n := len(centers); n > 0 {
		p.X.Max = 2*centers[n-1] - starts[n-1] + c.Spacer
	}
	if c.LogY {
		p.Y.Min = floor
	} else {
		p.Y.Min = 0
	}

	for i, name := range LegendLabels {
		thumb, err := rect(0, 1, 0, 1, c.Colors[i])
		if err != nil {
			return nil, err
		}
		p.Legend.Add(name, thumb)
	}
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

// logFloor is the lowest value drawn on a log axis: a decade below the
// smallest positive segment.
func logFloor(bars []Bar, logY bool) float64 {
	if !logY {
		return 0
	}
	min := math.Inf(1)
	for _, b := range bars {
		for _, s := range b.Stats {
			if s.Mean > 0 && s.Mean < min {
				min = s.Mean
			}
		}
	}
	if math.IsInf(min, 1) {
		return 1e-3
	}
	return math.Pow(10, math.Floor(math.Log10(min))-1)
}

func addErrorBar(p *plot.Plot, x, top, e, floor float64, logY bool) error {
	if e <= 0 || (logY && top <= floor) {
		return nil
	}
	low := e
	if logY && top-low < floor {
		low = top - floor
	}
	bars, err := plotter.NewYErrorBars(struct {
		plotter.XYs
		plotter.YErrors
	}{
		XYs:     plotter.XYs{{X: x, Y: top}},
		YErrors: plotter.YErrors{{Low: low, High: e}},
	})
	if err != nil {
		return err
	}
	bars.CapWidth = vg.Points(6)
	p.Add(bars)
	return nil
}

func rect(x0, x1, y0, y1 float64, c color.Color) (*plotter.Polygon, error) {
	poly, err := plotter.NewPolygon(plotter.XYs{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}})
	if err != nil {
		return nil, err
	}
	poly.Color = c
	poly.LineStyle.Width = 0
	return poly, nil
}

func newPlot(yLabel string, logY bool) *plot.Plot {
	p := plot.New()
	p.Y.Label.Text = yLabel
	grid := plotter.NewGrid()
	grid.Vertical.Color = nil
	grid.Horizontal.Dashes = []vg.Length{vg.Points(1), vg.Points(2)}
	p.Add(grid)
	if logY {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = humanTicks{plot.LogTicks{Prec: -1}}
	} else {
		p.Y.Tick.Marker = humanTicks{plot.DefaultTicks{}}
	}
	return p
}

// humanTicks relabels the major ticks of base with HumanFormat.
type humanTicks struct {
	base plot.Ticker
}

func (h humanTicks) Ticks(min, max float64) []plot.Tick {
	ticks := h.base.Ticks(min, max)
	for i, t := range ticks {
		if t.Label != "" {
			ticks[i].Label = HumanFormat(t.Value)
		}
	}
	return ticks
}

// MicroChart draws grouped bars: one group per operation, one bar per tool.
type MicroChart struct {
	Tools    map[string]string // folder label -> legend name
	Columns  []string
	XLabels  map[string]string
	Colors   []color.Color
	BarWidth float64 // width of a whole group
}

// ToolName returns the legend name of label.
func (c *MicroChart) ToolName(label string) string {
	if name, ok := c.Tools[label]; ok {
		return name
	}
	return label
}

func (c *MicroChart) Plot(d *LabelsData) (*plot.Plot, error) {
	if len(c.Colors) == 0 {
		return nil, fmt.Errorf("no colors")
	}
	p := newPlot("Time [us]", true)

	means := make([]map[string]float64, d.Len())
	min := math.Inf(1)
	for i, t := range d.Tables {
		means[i] = ColumnMeans(t)
		for _, col := range c.Columns {
			if v := means[i][col]; v > 0 && v < min {
				min = v
			}
		}
	}
	if math.IsInf(min, 1) {
		return nil, fmt.Errorf("no positive measurement")
	}
	floor := math.Pow(10, math.Floor(math.Log10(min)))

	n := float64(d.Len())
	w := c.BarWidth / n
	for k, label := range d.Labels {
		clr := c.Colors[k%len(c.Colors)]
		for i, col := range c.Columns {
			v := means[k][col]
			if v <= floor {
				continue
			}
			x0 := float64(i) - c.BarWidth/2 + float64(k)*w
			r, err := rect(x0, x0+w, floor, v, clr)
			if err != nil {
				return nil, err
			}
			p.Add(r)
		}
		thumb, err := rect(0, 1, 0, 1, clr)
		if err != nil {
			return nil, err
		}
		p.Legend.Add(c.ToolName(label), thumb)
	}

	ticks := make([]plot.Tick, len(c.Columns))
	for i, col := range c.Columns {
		label, ok := c.XLabels[col]
		if !ok {
			label = col
		}
		ticks[i] = plot.Tick{Value: float64(i), Label: label}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Min = -0.5
	p.X.Max = float64(len(c.Columns)) - 0.5
	p.Y.Min = floor
	p.Legend.Top = true
	return p, nil
}

// hexColor parses "#rrggbb".
func hexColor(s string) color.Color {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 16, 32)
	if err != nil {
		panic(fmt.Sprintf("invalid color %q", s))
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// gray returns the gray level l in [0, 1], 0 being black.
func gray(l float64) color.Color {
	return color.Gray{Y: uint8(math.Round(l * 255))}
}
