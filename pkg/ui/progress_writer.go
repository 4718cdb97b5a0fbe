package ui

import (
	"strings"

	"github.com/schollz/progressbar/v3"
)

// maxDescription bounds how much of a status line ends up in the bar.
const maxDescription = 48

// progressWriter is an io.Writer that shows the last line of streaming tool
// output, such as ffmpeg's stderr, as the progress bar's description.
type progressWriter struct {
	bar *progressbar.ProgressBar
}

// NewProgressWriter creates a new progressWriter that wraps the given
// progress bar.
func NewProgressWriter(bar *progressbar.ProgressBar) *progressWriter {
	return &progressWriter{bar: bar}
}

// Write implements io.Writer. It never fails.
func (pw *progressWriter) Write(p []byte) (n int, err error) {
	if pw == nil || pw.bar == nil {
		return len(p), nil
	}
	if line := lastLine(string(p)); line != "" {
		pw.bar.Describe(line)
	}
	return len(p), nil
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\r\n ")
	if i := strings.LastIndexAny(s, "\r\n"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	if len(s) > maxDescription {
		s = s[:maxDescription-3] + "..."
	}
	return s
}
