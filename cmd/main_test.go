package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/cobra"
)

// executeCommand is a helper function to execute a cobra command and return the output.
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	_, output, err := executeCommandC(root, args...)
	return output, err
}

// executeCommandC is a helper function to execute a cobra command and return the output.
func executeCommandC(root *cobra.Command, args ...string) (*cobra.Command, string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	c, err := root.ExecuteC()

	return c, buf.String(), err
}

// newTestRoot returns a fresh command tree, so flag state never leaks
// between tests.
func newTestRoot() *cobra.Command {
	root := NewRootCmd()
	root.AddCommand(NewSplitCmd())
	root.AddCommand(NewEngineCmd())
	root.AddCommand(NewServeCmd())
	return root
}

// testConfig writes an empty config file and points the cache at a temp
// dir, isolating tests from the user's environment.
func testConfig(t *testing.T) string {
	t.Helper()
	t.Setenv("SLICER_CACHE_DIR", t.TempDir())
	p := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatalf("could not write config: %v", err)
	}
	return p
}

const fakeFFmpegScript = `#!/bin/sh
in=""
while [ $# -gt 1 ]; do
  if [ "$1" = "-i" ]; then in="$2"; fi
  shift
done
[ -r "$in" ] || { echo "$in: No such file or directory" >&2; exit 1; }
i=0
while [ $i -lt 3 ]; do
  printf 'clip %d\n' "$i" > "$(printf "$1" "$i")"
  i=$((i+1))
done
`

func fakeFFmpeg(t *testing.T) string {
	t.Helper()
	return writeScript(t, fakeFFmpegScript)
}

// writeScript writes an executable shell script standing in for ffmpeg.
func writeScript(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("could not write fake ffmpeg: %v", err)
	}
	return bin
}
