package ui

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Reporter shows the progress of one job: a bar on a terminal, periodic
// status lines otherwise.
type Reporter struct {
	bar      *progressbar.ProgressBar
	prompter *NonInteractivePrompter
	percent  atomic.Int64
}

// NewReporter returns a Reporter writing to w. Call Start before the job
// and Finish when it ends.
func NewReporter(w io.Writer, description string, interactive bool) *Reporter {
	r := &Reporter{}
	if interactive {
		r.bar = NewProgressBar(w, description)
		return r
	}
	r.prompter = NewNonInteractivePrompter(func() (string, error) {
		return fmt.Sprintf("%s: %d%%", description, r.percent.Load()), nil
	})
	r.prompter.Out = w
	return r
}

// Start begins reporting.
func (r *Reporter) Start() {
	if r.prompter != nil {
		r.prompter.Start()
	}
}

// WithInterval changes how often status lines are printed in
// non-interactive mode. It must be called before Start.
func (r *Reporter) WithInterval(d time.Duration) *Reporter {
	if r.prompter != nil {
		r.prompter.Interval = d
	}
	return r
}

// Progress records a completion percentage.
func (r *Reporter) Progress(percent int) {
	r.percent.Store(int64(percent))
	Percent(r.bar)(percent)
}

// Percent returns the last recorded percentage.
func (r *Reporter) Percent() int {
	return int(r.percent.Load())
}

// Writer returns where tool output should go: the bar's description on a
// terminal, nowhere otherwise.
func (r *Reporter) Writer() io.Writer {
	if r.bar != nil {
		return NewProgressWriter(r.bar)
	}
	return io.Discard
}

// Finish stops the reporter.
func (r *Reporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
	if r.prompter != nil {
		r.prompter.Stop()
	}
}
