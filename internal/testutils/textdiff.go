// Package testutils provides small test-only helpers shared across the
// module's test suites.
package testutils

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
)

// TestingT is the subset of *testing.T this package needs.
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
}

// AssertEqual compares actual against expected and, on mismatch, reports a
// colorized unified diff instead of the two raw strings side by side —
// useful for the delimiter-framed parser's joined-record output, where a
// single dropped comma is otherwise easy to miss in a wall of
// colon-separated hex.
func AssertEqual(t TestingT, actual, expected string) {
	t.Helper()
	if actual == expected {
		return
	}
	edits := myers.ComputeEdits("", expected, actual)
	unified := gotextdiff.ToUnified("expected", "actual", expected, edits)
	t.Errorf("text assertion failed - unified diff:\n%s", colorizeUnified(fmt.Sprint(unified)))
}

func colorizeUnified(diff string) string {
	red := color.New(color.FgRed)
	red.EnableColor()
	green := color.New(color.FgGreen)
	green.EnableColor()
	cyan := color.New(color.FgCyan)
	cyan.EnableColor()

	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "@@"):
			lines[i] = cyan.Sprint(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = red.Sprint(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = green.Sprint(line)
		}
	}
	return strings.Join(lines, "\n")
}
