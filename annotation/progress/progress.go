// Package progress reports how far a labeling run has got. On a terminal it redraws a single
// progress bar line; otherwise it logs periodic checkpoints.
package progress

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	bprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const barWidth = 40

// Bar implements annotation.Progress.
type Bar struct {
	mu sync.Mutex

	w     io.Writer
	log   logrus.FieldLogger
	isTTY bool
	bar   bprogress.Model

	total  int
	done   int
	counts map[string]int
	drawn  bool
}

// New returns a Bar writing to w. The bar is drawn only when w is a terminal; in every other
// case progress goes to log.
func New(w io.Writer, log logrus.FieldLogger) *Bar {
	return &Bar{
		w:      w,
		log:    log,
		isTTY:  isTerminal(w),
		bar:    bprogress.New(bprogress.WithDefaultGradient(), bprogress.WithWidth(barWidth)),
		counts: make(map[string]int),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (b *Bar) Start(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total = total
	b.done = 0
	clear(b.counts)
	if b.isTTY {
		b.render()
		return
	}
	if b.log != nil {
		b.log.WithField("dialogues", total).Info("labeling started")
	}
}

func (b *Bar) Advance(outcome string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.done++
	b.counts[outcome]++
	if b.isTTY {
		b.render()
		return
	}
	if b.log != nil && b.checkpoint() {
		b.log.WithFields(logrus.Fields{
			"done":  b.done,
			"total": b.total,
		}).Info("labeling progress")
	}
}

// Finish ends the bar line and prints the per-outcome tally.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isTTY {
		if b.drawn {
			fmt.Fprintln(b.w)
		}
		fmt.Fprintf(b.w, "Done: %d/%d dialogues (%s)\n", b.done, b.total, b.tally())
		return
	}
	if b.log != nil {
		fields := logrus.Fields{"done": b.done, "total": b.total}
		for k, v := range b.counts {
			fields[k] = v
		}
		b.log.WithFields(fields).Info("labeling finished")
	}
}

// checkpoint reports whether the current count crosses a tenth of the total.
func (b *Bar) checkpoint() bool {
	step := max(b.total/10, 1)
	return b.done%step == 0 || b.done == b.total
}

func (b *Bar) percent() float64 {
	if b.total <= 0 {
		return 1
	}
	return min(float64(b.done)/float64(b.total), 1)
}

func (b *Bar) render() {
	fmt.Fprintf(b.w, "\r\033[2K%s %d/%d", b.bar.ViewAs(b.percent()), b.done, b.total)
	b.drawn = true
}

func (b *Bar) tally() string {
	if len(b.counts) == 0 {
		return "nothing to do"
	}
	keys := make([]string, 0, len(b.counts))
	for k := range b.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%d %s", b.counts[k], k)
	}
	return strings.Join(parts, ", ")
}
