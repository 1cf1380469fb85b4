package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

const barWidth = 30

// ProgressLine renders download progress on a single terminal line.
// On a terminal the line is redrawn in place; otherwise a line is printed
// every 10 percent.
type ProgressLine struct {
	mu      sync.Mutex
	out     io.Writer
	label   string
	isTTY   bool
	lastPct int
	drawn   bool
}

// NewProgressLine creates a progress line writing to out.
func NewProgressLine(out io.Writer, label string) *ProgressLine {
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	return &ProgressLine{out: out, label: label, isTTY: isTTY, lastPct: -1}
}

// Progress draws the bar for pct, which must be in [0,100].
func (p *ProgressLine) Progress(pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pct < 0 || pct > 100 {
		return
	}

	if p.isTTY {
		filled := pct * barWidth / 100
		bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
		fmt.Fprintf(p.out, "\r  %s [%s] %3d%%", p.label, bar, pct)
		p.drawn = true
		return
	}

	step := pct / 10 * 10
	if step > p.lastPct {
		p.lastPct = step
		fmt.Fprintf(p.out, "  %s... %d%%\n", p.label, step)
	}
}

// Clear erases the progress line.
func (p *ProgressLine) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isTTY && p.drawn {
		fmt.Fprint(p.out, "\r\033[K")
	}
	p.drawn = false
	p.lastPct = -1
}
