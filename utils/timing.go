package utils

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// Verbose controls whether progress and timing output is printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where progress and timing output is printed.
// Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// Logf prints a formatted line to Output when Verbose is set.
func Logf(format string, args ...interface{}) {
	if !Verbose {
		return
	}
	fmt.Fprintf(Output, format+"\n", args...)
}

// DeltaMS rounds an elapsed duration to whole milliseconds.
func DeltaMS(d time.Duration) float64 {
	if d < 0 {
		d = -d
	}
	return math.Round(float64(d) / float64(time.Millisecond))
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}

// Time runs fn and returns its wall-clock duration.
// The duration is returned even when fn fails.
func Time(fn func() error) (time.Duration, error) {
	start := time.Now()
	err := fn()
	return time.Since(start), err
}

// PhaseTimes holds the elapsed time of each phase of one benchmark repetition.
type PhaseTimes struct {
	Training    time.Duration
	KeyGen      time.Duration
	Encryption  time.Duration
	Computation time.Duration
	Decryption  time.Duration
}

// Total sums all phases.
func (p PhaseTimes) Total() time.Duration {
	return p.Training + p.KeyGen + p.Encryption + p.Computation + p.Decryption
}

// PrintPhaseTimes prints a breakdown of one repetition.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintPhaseTimes(p PhaseTimes, run int) {
	if !Verbose {
		return
	}
	total := p.Total()
	pct := func(d time.Duration) float64 {
		if total == 0 {
			return 0
		}
		return float64(d) / float64(total) * 100
	}
	fmt.Fprintf(Output, "\n=== RUN %d TIMING ===\n", run)
	fmt.Fprintf(Output, "Total: %v\n", total)
	if p.Training > 0 {
		fmt.Fprintf(Output, "  Training: %v (%.1f%%)\n", p.Training, pct(p.Training))
	}
	fmt.Fprintf(Output, "  Key generation: %v (%.1f%%)\n", p.KeyGen, pct(p.KeyGen))
	fmt.Fprintf(Output, "  Encryption: %v (%.1f%%)\n", p.Encryption, pct(p.Encryption))
	fmt.Fprintf(Output, "  Computation: %v (%.1f%%)\n", p.Computation, pct(p.Computation))
	fmt.Fprintf(Output, "  Decryption: %v (%.1f%%)\n", p.Decryption, pct(p.Decryption))
}
