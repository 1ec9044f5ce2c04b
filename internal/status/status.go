// Package status prints build progress and diagnostics to stderr, the
// way eutils.PrintStats/PrintDuration do, but through fatih/color
// instead of hand-rolled ANSI escape constants.
package status

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
)

var (
	warn = color.New(color.FgYellow, color.Bold)
	fail = color.New(color.FgRed, color.Bold)
	note = color.New(color.FgBlue)
)

// Warnf prints a yellow, bolded warning line to stderr.
func Warnf(format string, args ...interface{}) {
	warn.Fprintf(os.Stderr, "WARN: "+format+"\n", args...)
}

// Errf prints a red, bolded error line to stderr.
func Errf(format string, args ...interface{}) {
	fail.Fprintf(os.Stderr, "ERROR: "+format+"\n", args...)
}

// Notef prints an informational line to stderr.
func Notef(format string, args ...interface{}) {
	note.Fprintf(os.Stderr, format+"\n", args...)
}

// Timer tracks elapsed wall-clock time for one build, mirroring
// eutils' startTime/PrintDuration pair.
type Timer struct {
	start time.Time
}

// NewTimer starts a Timer.
func NewTimer() Timer {
	return Timer{start: time.Now()}
}

// ReportDuration prints how long name took to process count items,
// in the same shape as eutils.PrintDuration.
func (t Timer) ReportDuration(name string, count int) {
	elapsed := time.Since(t.start)
	seconds := elapsed.Seconds()

	prec := 3
	switch {
	case seconds >= 100:
		prec = 1
	case seconds >= 10:
		prec = 2
	}

	if count > 0 {
		fmt.Fprintf(os.Stderr, "processed %d %s in %.*f seconds", count, name, prec, seconds)
	} else {
		fmt.Fprintf(os.Stderr, "%s completed in %.*f seconds", name, prec, seconds)
	}

	if seconds >= 0.001 && count > 0 {
		rate := int(float64(count) / seconds)
		fmt.Fprintf(os.Stderr, " (%d %s/second)", rate, name)
	}
	fmt.Fprintln(os.Stderr)
}

// Dot prints a single progress dot with no trailing newline, the way
// eutils.InvertIndexedFile-style loops signal liveness on long builds.
func Dot() {
	fmt.Fprint(os.Stderr, ".")
}
