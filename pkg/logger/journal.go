package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Kind classifies a journal event for display.
type Kind string

const (
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
	KindSuccess Kind = "success"
)

// Event is one immutable entry of a Journal.
type Event struct {
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Journal is an append-only, ordered list of events built from slog records
// at Info level and above. Attributes are folded into the message as
// key=value pairs so the event reads on its own.
type Journal struct {
	mu     sync.Mutex
	events []Event
	notify func(Event)
}

// NewJournal returns an empty Journal. notify, when non-nil, is called with
// every appended event after it is stored.
func NewJournal(notify func(Event)) *Journal {
	return &Journal{notify: notify}
}

// Events returns a copy of the events recorded so far.
func (j *Journal) Events() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Event(nil), j.events...)
}

// Handler returns a slog.Handler that appends to the journal.
func (j *Journal) Handler() slog.Handler {
	return &journalHandler{journal: j}
}

func (j *Journal) append(ev Event) {
	j.mu.Lock()
	j.events = append(j.events, ev)
	notify := j.notify
	j.mu.Unlock()
	if notify != nil {
		notify(ev)
	}
}

// KindOf maps a slog level onto a journal kind.
func KindOf(level slog.Level) Kind {
	switch {
	case level >= slog.LevelError:
		return KindError
	case level >= slog.LevelWarn:
		return KindWarning
	case level == LevelSuccess:
		return KindSuccess
	default:
		return KindInfo
	}
}

type journalHandler struct {
	journal *Journal
	attrs   []slog.Attr
	group   string
}

func (h *journalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (h *journalHandler) Handle(_ context.Context, record slog.Record) error {
	var b strings.Builder
	b.WriteString(record.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Resolve())
	}
	record.Attrs(func(a slog.Attr) bool {
		a = h.qualify(a)
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Resolve())
		return true
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	h.journal.append(Event{
		Kind:      KindOf(record.Level),
		Message:   b.String(),
		Timestamp: ts.UnixMilli(),
	})
	return nil
}

func (h *journalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, h.qualify(a))
	}
	return &next
}

func (h *journalHandler) WithGroup(name string) slog.Handler {
	next := *h
	if next.group != "" {
		name = next.group + "." + name
	}
	next.group = name
	return &next
}

func (h *journalHandler) qualify(a slog.Attr) slog.Attr {
	if h.group != "" {
		a.Key = h.group + "." + a.Key
	}
	return a
}
