package cmd

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestExecute_Good(t *testing.T) {
	buf := new(bytes.Buffer)
	RootCmd.SetOut(buf)
	RootCmd.SetArgs([]string{"--help"})
	t.Cleanup(func() { RootCmd.SetArgs(nil) })

	if err := Execute(slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, sub := range []string{"split", "engine", "serve"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("expected %q in help output", sub)
		}
	}
}

func TestRootCmd_Good(t *testing.T) {
	t.Run("No args", func(t *testing.T) {
		_, err := executeCommand(newTestRoot())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("Help flag", func(t *testing.T) {
		output, err := executeCommand(newTestRoot(), "--help")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output, "Usage:") {
			t.Errorf("expected help output to contain 'Usage:', but it did not")
		}
	})
}

func TestRootCmd_Bad(t *testing.T) {
	t.Run("Unknown command", func(t *testing.T) {
		_, err := executeCommand(newTestRoot(), "unknown-command")
		if err == nil {
			t.Fatal("expected an error for an unknown command, but got none")
		}
	})

	t.Run("Bad config", func(t *testing.T) {
		_, err := executeCommand(newTestRoot(), "split", "x.mp4", "--config", t.TempDir())
		if err == nil || !strings.Contains(err.Error(), "directory") {
			t.Fatalf("expected a config error, got %v", err)
		}
	})
}
