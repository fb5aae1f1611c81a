package mlp

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"gonum.org/v1/gonum/stat/distuv"
)

// Line is one labelled sample.
type Line struct {
	Inputs  []float64
	Targets []float64 // one-hot
	Label   int
}

type Lines []Line

// Labels returns the label of every line.
func (lines Lines) Labels() []int {
	out := make([]int, len(lines))
	for i, l := range lines {
		out[i] = l.Label
	}
	return out
}

// Split returns the first n lines and the rest.
func (lines Lines) Split(n int) (Lines, Lines) {
	if n > len(lines) {
		n = len(lines)
	}
	return lines[:n], lines[n:]
}

// GetLinesMNIST reads an MNIST CSV where the first value of a line is the
// label and the rest are the pixel densities (0-255).
func GetLinesMNIST(filename string, inputNum, outputNum int) (Lines, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filename, err)
	}
	defer file.Close()
	return ReadLinesMNIST(bufio.NewReader(file), inputNum, outputNum)
}

// ReadLinesMNIST parses MNIST CSV lines from r. A non-numeric first line is
// treated as a header and skipped.
func ReadLinesMNIST(r io.Reader, inputNum, outputNum int) (Lines, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	var lines Lines
	lineNum := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			return lines, fmt.Errorf("reading line %d: %w", lineNum, err)
		}
		if len(record) != inputNum+1 {
			return lines, errInvalidLine{lineNum: lineNum, splits: len(record), expected: inputNum + 1}
		}

		label, err := strconv.Atoi(record[0])
		if err != nil {
			if lineNum == 1 {
				continue
			}
			return lines, fmt.Errorf("parsing label at line %d: %w", lineNum, err)
		}
		if label < 0 || label >= outputNum {
			return lines, fmt.Errorf("label %d at line %d out of range [0, %d)", label, lineNum, outputNum)
		}

		inputs := make([]float64, inputNum)
		for i := range inputs {
			x, err := strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return lines, fmt.Errorf("parsing input at line %d: %w", lineNum, err)
			}
			inputs[i] = x / 255.0
		}
		lines = append(lines, newLine(inputs, label, outputNum))
	}
	return lines, nil
}

type errInvalidLine struct {
	lineNum  int
	splits   int
	expected int
}

func (e errInvalidLine) Error() string {
	return fmt.Sprintf("at line %d, expected %d values, got %d",
		e.lineNum, e.expected, e.splits)
}

func newLine(inputs []float64, label, outputNum int) Line {
	targets := make([]float64, outputNum)
	targets[label] = 1
	return Line{Inputs: inputs, Targets: targets, Label: label}
}

// SyntheticLines draws n samples around one random prototype per class,
// with densities in [0, 1] like normalized MNIST pixels.
func SyntheticLines(n, inputNum, outputNum int, noise float64) Lines {
	proto := distuv.Uniform{Min: 0, Max: 1}
	prototypes := make([][]float64, outputNum)
	for c := range prototypes {
		prototypes[c] = make([]float64, inputNum)
		for i := range prototypes[c] {
			prototypes[c][i] = proto.Rand()
		}
	}

	jitter := distuv.Normal{Mu: 0, Sigma: noise}
	lines := make(Lines, n)
	for k := range lines {
		label := k % outputNum
		inputs := make([]float64, inputNum)
		for i := range inputs {
			inputs[i] = math.Min(1, math.Max(0, prototypes[label][i]+jitter.Rand()))
		}
		lines[k] = newLine(inputs, label, outputNum)
	}
	return lines
}
