// Package ui provides components for command-line user interfaces: progress
// bars for terminals and a plain status printer for non-interactive
// sessions.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// NonInteractivePrompter periodically prints a status line during
// long-running operations in non-interactive sessions (e.g. in a CI
// pipeline), where a redrawn progress bar would only add noise.
type NonInteractivePrompter struct {
	// Out receives the status lines. Defaults to os.Stdout.
	Out io.Writer
	// Interval between status lines. Defaults to three seconds.
	Interval time.Duration

	stopChan   chan struct{}
	done       chan struct{}
	statusFunc func() (string, error)
	started    bool
	mu         sync.Mutex
	stopOnce   sync.Once
}

// NewNonInteractivePrompter creates a new NonInteractivePrompter with the
// given status function.
//
// Example:
//
//	prompter := ui.NewNonInteractivePrompter(func() (string, error) {
//		return fmt.Sprintf("segmenting: %d%%", pct.Load()), nil
//	})
//	prompter.Start()
//	// ... long-running operation ...
//	prompter.Stop()
func NewNonInteractivePrompter(statusFunc func() (string, error)) *NonInteractivePrompter {
	return &NonInteractivePrompter{
		Out:        os.Stdout,
		Interval:   3 * time.Second,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
		statusFunc: statusFunc,
	}
}

// Start begins printing. It is safe to call Start multiple times.
func (p *NonInteractivePrompter) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
				p.print()
			}
		}
	}()
}

func (p *NonInteractivePrompter) print() {
	status, err := p.statusFunc()
	if err != nil {
		fmt.Fprintln(p.Out, "Error getting status:", err)
		return
	}
	c := color.New(color.FgGreen)
	c.Fprintln(p.Out, status)
}

// Stop halts the prompter and waits for the printing goroutine to exit. It
// is safe to call Stop multiple times, and before Start.
func (p *NonInteractivePrompter) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if started {
		<-p.done
	}
}

// IsInteractive checks if the current session is interactive (i.e., running in
// a terminal).
func (p *NonInteractivePrompter) IsInteractive() bool {
	return IsInteractive()
}

// IsInteractive reports whether stdout is a terminal.
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}
