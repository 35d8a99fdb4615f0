package session

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Display mirrors sampling rows for the operator.
type Display interface {
	Header(channels []string)
	Row(s Sample)
}

// colWidth fits typical channel names and formatted values.
const colWidth = 15

// ConsoleDisplay prints an aligned table of samples.
type ConsoleDisplay struct {
	w io.Writer
}

var _ Display = &ConsoleDisplay{}

func NewConsoleDisplay(w io.Writer) *ConsoleDisplay {
	return &ConsoleDisplay{w: w}
}

func (d *ConsoleDisplay) Header(channels []string) {
	cells := make([]string, 0, len(channels)+1)
	cells = append(cells, fmt.Sprintf("%10s", "elapsed"))
	for _, ch := range channels {
		if r := []rune(ch); len(r) > colWidth {
			ch = string(r[:colWidth])
		}
		cells = append(cells, fmt.Sprintf("%*s", colWidth, ch))
	}
	header := strings.Join(cells, " ")

	fmt.Fprintln(d.w, color.New(color.Bold).Sprint(header))
	fmt.Fprintln(d.w, strings.Repeat("-", len(header)))
}

func (d *ConsoleDisplay) Row(s Sample) {
	cells := make([]string, 0, len(s.Values)+1)
	cells = append(cells, fmt.Sprintf("%9.1fs", s.Elapsed))
	for _, r := range s.Values {
		cell := fmt.Sprintf("%*s", colWidth, r.String())
		if !r.OK {
			cell = color.New(color.FgYellow).Sprint(cell)
		}
		cells = append(cells, cell)
	}
	fmt.Fprintln(d.w, strings.Join(cells, " "))
}

// NopDisplay discards everything.
type NopDisplay struct{}

var _ Display = NopDisplay{}

func (NopDisplay) Header([]string) {}
func (NopDisplay) Row(Sample)      {}
