package ui

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe to share with the prompter goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestReporter_Good(t *testing.T) {
	var out syncBuffer
	r := NewReporter(&out, "Segmenting clip.mp4", false).WithInterval(5 * time.Millisecond)
	r.Start()
	r.Progress(10)
	r.Progress(80)

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "Segmenting clip.mp4: 80%") {
		if time.Now().After(deadline) {
			t.Fatalf("expected a status line, got %q", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.Finish()
	if r.Percent() != 80 {
		t.Errorf("expected 80, got %d", r.Percent())
	}
	if _, err := r.Writer().Write([]byte("ignored")); err != nil {
		t.Errorf("discard writer failed: %v", err)
	}
}

func TestReporter_Interactive(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, "Segmenting", true)
	r.Start()
	r.Progress(10)
	if _, err := r.Writer().Write([]byte("frame=  10 fps=0.0\nsize=N/A time=00:00:01\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	r.Progress(100)
	r.Finish()
	if r.Percent() != 100 {
		t.Errorf("expected 100, got %d", r.Percent())
	}
	if out.Len() == 0 {
		t.Error("expected the bar to render")
	}
}

func TestNonInteractivePrompter_Ugly(t *testing.T) {
	p := NewNonInteractivePrompter(func() (string, error) { return "x", nil })
	p.Stop()
	p.Stop()

	var out syncBuffer
	q := NewNonInteractivePrompter(func() (string, error) { return "", bytes.ErrTooLarge })
	q.Out = &out
	q.Interval = time.Millisecond
	q.Start()
	q.Start()
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "Error getting status") {
		if time.Now().After(deadline) {
			t.Fatalf("expected an error line, got %q", out.String())
		}
		time.Sleep(time.Millisecond)
	}
	q.Stop()
}

func TestLastLine(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"one\ntwo\n", "two"},
		{"frame=1\rframe=2\r", "frame=2"},
		{strings.Repeat("x", 60) + "\n", strings.Repeat("x", 45) + "..."},
	}
	for _, c := range cases {
		if got := lastLine(c.in); got != c.want {
			t.Errorf("lastLine(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
