// Package classify maps the captured output of an analyzer run to a model.ExitKind.
//
// Rules are evaluated in a fixed order and the first match wins:
//
//  1. stderr contains a panic signature: thread '<name>' panicked at <detail>
//  2. stdout contains an ANSI highlighted error block: <SGR>Error:<SGR> <detail>
//  3. stdout ends with: DONE ANALYZING IN: <n>ms. Writing to cli...
//  4. anything else is NonInterpreted
//
// A panic wins over everything, since it proves a crash even after successful looking
// output. An error block wins over the completion marker because some failures print
// the marker before erroring out.
package classify

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/fiesta-bench/fiesta-runner/internal/model"
)

var (
	panicRx   = `thread '([^'\n]*)' panicked at ([^\n]*)(?:\r?\n([^\n]*))?`
	errorRx   = "\x1b\\[[0-9;]*m(?:\\[[^\\]\n]*\\] )?Error:(?:\x1b\\[[0-9;]*m)?[ \t]*([^\n]*)"
	successRx = `DONE ANALYZING IN: \d+ms\. Writing to cli\.\.\.\s*$`
)

// Classifier holds the compiled rules. It is safe for concurrent use and meant to be
// created once per process and shared.
type Classifier struct {
	panic   *regexp.Regexp
	errored *regexp.Regexp
	success *regexp.Regexp
}

func New() *Classifier {
	return &Classifier{
		panic:   regexp.MustCompile(panicRx),
		errored: regexp.MustCompile(errorRx),
		success: regexp.MustCompile(successRx),
	}
}

// Classify is a pure function of the two captured streams.
func (c *Classifier) Classify(stdout, stderr string) model.ExitKind {
	if m := c.panic.FindStringSubmatch(stderr); m != nil {
		return model.ThreadPanic{Detail: panicDetail(m[2], m[3])}
	}
	if m := c.errored.FindStringSubmatch(stdout); m != nil {
		return model.AnalysisError{Detail: strings.TrimSpace(ansi.Strip(m[1]))}
	}
	if c.success.MatchString(ansi.Strip(stdout)) {
		return model.Success{}
	}
	return model.NonInterpreted{Stdout: stdout, Stderr: stderr}
}

// Outcome classifies a raw outcome. Timed out runs are PerformanceTimeout
// and their output is never inspected.
func (c *Classifier) Outcome(o model.Outcome) model.ExitKind {
	switch o := o.(type) {
	case model.TimedOut:
		return model.PerformanceTimeout{}
	case model.Completed:
		return c.Classify(o.Stdout, o.Stderr)
	default:
		panic("classify: unknown outcome")
	}
}

// panicDetail returns the location of a panic. Recent toolchains print the message on
// the line after "location:", in which case it is appended.
func panicDetail(location, next string) string {
	location = strings.TrimSpace(location)
	next = strings.TrimSpace(next)
	if strings.HasSuffix(location, ":") {
		location = strings.TrimSuffix(location, ":")
		if next != "" && !strings.HasPrefix(next, "note:") {
			return location + ": " + next
		}
	}
	return location
}
