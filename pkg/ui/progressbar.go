package ui

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// NewProgressBar creates a percentage bar writing to w with the
// application's standard options.
//
// Example:
//
//	bar := ui.NewProgressBar(os.Stderr, "Segmenting clip.mp4")
//	bar.Set(10)
func NewProgressBar(w io.Writer, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(15),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// Percent returns a progress callback that moves bar to each reported
// percentage.
func Percent(bar *progressbar.ProgressBar) func(int) {
	return func(percent int) {
		if bar == nil {
			return
		}
		_ = bar.Set(percent)
	}
}
