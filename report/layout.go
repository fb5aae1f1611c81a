package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Placement puts a tool's bar into slot Slot of group Group.
type Placement struct {
	Label string
	Group int
	Slot  int
}

// Positions is an ordered label to (group, slot) map. Consecutive entries
// with the same group form one bar group.
type Positions []Placement

// Lookup returns the placement of label.
func (p Positions) Lookup(label string) (Placement, bool) {
	for _, pl := range p {
		if pl.Label == label {
			return pl, true
		}
	}
	return Placement{}, false
}

// GetXTicksPositions returns the center and the start of every bar group.
// Group i starts spacer after the end of group i-1; the first starts at
// spacer.
func GetXTicksPositions(positions Positions, barWidth, innerSpacer, spacer float64) (centers, starts []float64) {
	var widths []float64
	for i := 0; i < len(positions); {
		j := i
		for j < len(positions) && positions[j].Group == positions[i].Group {
			j++
		}
		n := float64(j - i)
		widths = append(widths, n*(barWidth+innerSpacer)-innerSpacer)
		i = j
	}

	end := 0.0
	for _, w := range widths {
		start := end + spacer
		starts = append(starts, start)
		centers = append(centers, start+w/2)
		end = start + w
	}
	return centers, starts
}

// GetXPosition returns the center of the bar at pl.
func GetXPosition(pl Placement, starts []float64, barWidth, innerSpacer float64) (float64, error) {
	if pl.Group < 0 || pl.Group >= len(starts) {
		return 0, fmt.Errorf("group %d of %q out of range", pl.Group, pl.Label)
	}
	return starts[pl.Group] + float64(pl.Slot)*(barWidth+innerSpacer) + barWidth/2, nil
}

// HumanFormat renders n with three significant digits and a K/M/B/T suffix.
func HumanFormat(n float64) string {
	n, _ = strconv.ParseFloat(strconv.FormatFloat(n, 'g', 3, 64), 64)
	magnitude := 0
	suffixes := []string{"", "K", "M", "B", "T"}
	for math.Abs(n) >= 1000 && magnitude < len(suffixes)-1 {
		magnitude++
		n /= 1000
	}
	s := strconv.FormatFloat(n, 'f', 6, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	return s + suffixes[magnitude]
}
