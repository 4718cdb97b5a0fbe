// Package server serves an engine bundle over HTTP with the cross-origin
// isolation headers a threaded wasm engine needs.
package server

import (
	"fmt"
	"os/exec"
	"runtime"
)

// OpenBrowser opens the default browser at url. Supports macOS, Linux and
// Windows.
func OpenBrowser(url string) error {
	name, args, err := browserCommand(runtime.GOOS, url)
	if err != nil {
		return err
	}
	return exec.Command(name, args...).Start()
}

func browserCommand(goos, url string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{url}, nil
	case "linux", "freebsd", "openbsd":
		return "xdg-open", []string{url}, nil
	case "windows":
		return "cmd", []string{"/c", "start", url}, nil
	}
	return "", nil, fmt.Errorf("unsupported platform: %s", goos)
}
