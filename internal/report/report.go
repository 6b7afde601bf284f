// Package report renders the running statistics of a batch run and its summary.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/fiesta-bench/fiesta-runner/internal/model"
)

// Tally counts recorded outcomes. It is owned by a single goroutine.
type Tally struct {
	Successes int
	Total     int
	kinds     map[string]int
}

func (t *Tally) Add(e model.ExitKind) {
	if t.kinds == nil {
		t.kinds = make(map[string]int)
	}
	t.Total++
	if _, ok := e.(model.Success); ok {
		t.Successes++
	}
	t.kinds[model.ExitName(e)]++
}

// Percent is the share of successes, 0 for an empty tally.
func (t Tally) Percent() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Successes) * 100 / float64(t.Total)
}

// Kinds returns a copy of counts per exit kind name.
func (t Tally) Kinds() map[string]int {
	ret := make(map[string]int, len(t.kinds))
	for k, v := range t.kinds {
		ret[k] = v
	}
	return ret
}

// Printer writes human facing lines. Styling is dropped when w is not a terminal.
type Printer struct {
	w      io.Writer
	count  lipgloss.Style
	pct    lipgloss.Style
	header lipgloss.Style
}

func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:      w,
		count:  r.NewStyle().Bold(true),
		pct:    r.NewStyle().Foreground(lipgloss.Color("69")),
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("220")),
	}
}

func (p *Printer) Beginning(tasks int) {
	fmt.Fprintln(p.w, p.header.Render(fmt.Sprintf("Beginning analysis of %d contracts", tasks)))
}

// Progress prints the running <successes>/<total> (<pct>%) line.
func (p *Printer) Progress(t Tally) {
	fmt.Fprintf(p.w, "%s %s\n",
		p.count.Render(fmt.Sprintf("%d/%d", t.Successes, t.Total)),
		p.pct.Render(fmt.Sprintf("(%.2f%%)", t.Percent())),
	)
}

// Final prints the closing line followed by counts per exit kind.
func (p *Printer) Final(t Tally) {
	fmt.Fprintln(p.w, p.header.Render(fmt.Sprintf("Parsed %d out of %d contracts", t.Successes, t.Total)))
	kinds := t.Kinds()
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(p.w, "  %-20s %d\n", name, kinds[name])
	}
}
