package native

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/Snider/Slicer/pkg/assets"
	"github.com/Snider/Slicer/pkg/engine"
)

const segmentScript = `#!/bin/sh
printf '%s\n' "$*" > "$FAKE_FFMPEG_ARGS"
in=""
while [ $# -gt 1 ]; do
  if [ "$1" = "-i" ]; then in="$2"; fi
  shift
done
pattern="$1"
[ -r "$in" ] || { echo "$in: No such file or directory" >&2; exit 1; }
i=0
while [ $i -lt 3 ]; do
  printf 'clip %d\n' "$i" > "$(printf "$pattern" "$i")"
  i=$((i+1))
done
echo "segments written" >&2
`

const noisyFailScript = `#!/bin/sh
i=0
while [ $i -lt 50 ]; do
  echo "frame=$i"
  echo "progress $i" >&2
  i=$((i+1))
done
echo "input/input.mp4: Invalid data found when processing input" >&2
exit 1
`

const failScript = `#!/bin/sh
for n in 1 2 3 4 5 6 7; do echo "line $n" >&2; done
exit 1
`

var localConfig = engine.LoadConfig{
	CoreURL:        "blob:1/ffmpeg-core.js",
	WASMURL:        "blob:2/ffmpeg-core.wasm",
	WorkerURL:      "blob:3/worker.js",
	ClassWorkerURL: "blob:3/worker.js",
}

// fakeFFmpeg writes an executable shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("could not write fake ffmpeg: %v", err)
	}
	t.Setenv("FAKE_FFMPEG_ARGS", filepath.Join(t.TempDir(), "args.txt"))
	return bin
}

func writeMedia(t *testing.T, name string) *engine.LocalFile {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("not really a movie"), 0o644); err != nil {
		t.Fatalf("could not write media: %v", err)
	}
	in, err := engine.OpenLocalFile(p)
	if err != nil {
		t.Fatalf("OpenLocalFile failed: %v", err)
	}
	return in
}

func newLoaded(t *testing.T, script string, opts Options) *Engine {
	t.Helper()
	opts.Binary = fakeFFmpeg(t, script)
	opts.WorkDir = t.TempDir()
	e := New(opts)
	if err := e.Load(context.Background(), localConfig); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngine_Good(t *testing.T) {
	ctx := context.Background()
	e := newLoaded(t, segmentScript, Options{})
	root := e.Root()
	if err := e.Load(ctx, localConfig); err != nil || e.Root() != root {
		t.Fatalf("expected repeated Load to be a no-op, got %v", err)
	}

	in := writeMedia(t, "holiday.mp4")
	if err := e.CreateDir(ctx, "/input"); err != nil {
		t.Fatalf("CreateDir failed: %v", err)
	}
	if err := e.Mount(ctx, "/input", engine.Rename(in, "input.mp4")); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	target, err := os.Readlink(filepath.Join(root, "input", "input.mp4"))
	if err != nil || target != in.Path {
		t.Fatalf("expected input.mp4 to link to %s, got %q (%v)", in.Path, target, err)
	}

	args := engine.SegmentArgs("input/input.mp4", 30, ".mp4")
	if err := e.Exec(ctx, args); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	recorded, _ := os.ReadFile(os.Getenv("FAKE_FFMPEG_ARGS"))
	want := "-hide_banner -nostdin -y " + strings.Join(args, " ")
	if strings.TrimSpace(string(recorded)) != want {
		t.Errorf("expected args %q, got %q", want, recorded)
	}

	if err := e.Unmount(ctx, "/input"); err != nil {
		t.Fatalf("Unmount failed: %v", err)
	}
	if err := e.RemoveDir(ctx, "/input"); err != nil {
		t.Fatalf("RemoveDir failed: %v", err)
	}
	if _, err := os.Stat(in.Path); err != nil {
		t.Errorf("unmount must leave the host file alone: %v", err)
	}

	entries, err := e.ListDir(ctx, "/")
	if err != nil {
		t.Fatalf("ListDir failed: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	if !reflect.DeepEqual(names, []string{"output_000.mp4", "output_001.mp4", "output_002.mp4"}) {
		t.Errorf("unexpected working directory %v", names)
	}
	data, err := e.ReadFile(ctx, "/output_001.mp4")
	if err != nil || string(data) != "clip 1\n" {
		t.Errorf("unexpected segment %q (%v)", data, err)
	}
	if err := e.DeleteFile(ctx, "/output_001.mp4"); err != nil {
		t.Errorf("DeleteFile failed: %v", err)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(root); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected working directory to be removed, got %v", err)
	}
}

func TestEngine_Session(t *testing.T) {
	var out bytes.Buffer
	e := newLoaded(t, segmentScript, Options{Output: &out})
	worker := assets.FetcherFunc(func(_ context.Context, url string) ([]byte, error) {
		return []byte(`import{a}from"./const.js";`), nil
	})
	session := engine.NewSession(e, engine.WithFetcher(worker))

	var progress []int
	segments, err := session.Segment(context.Background(), writeMedia(t, "My Clip.MP4"), 10, func(p int) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	for i, seg := range segments {
		if seg.MIMEType != "video/mp4" || string(seg.Data) != "clip "+string(rune('0'+i))+"\n" {
			t.Errorf("unexpected segment %d: %+v", i, seg)
		}
	}
	if !reflect.DeepEqual(progress, []int{10, 80, 100}) {
		t.Errorf("unexpected progress %v", progress)
	}
	if !strings.Contains(out.String(), "segments written") {
		t.Errorf("expected ffmpeg output to be teed, got %q", out.String())
	}

	entries, err := e.ListDir(context.Background(), "/")
	if err != nil {
		t.Fatalf("ListDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected an empty working directory, got %+v", entries)
	}
}

func TestEngine_Bad(t *testing.T) {
	ctx := context.Background()

	unloaded := New(Options{})
	if err := unloaded.CreateDir(ctx, "/input"); !errors.Is(err, errNotLoaded) {
		t.Errorf("expected errNotLoaded, got %v", err)
	}

	missing := New(Options{Binary: filepath.Join(t.TempDir(), "no-ffmpeg")})
	if err := missing.Load(ctx, localConfig); err == nil {
		t.Error("expected Load to fail without a binary")
	}
	remote := localConfig
	remote.WASMURL = "https://cdn.example.com/ffmpeg-core.wasm"
	if err := missing.Load(ctx, remote); err == nil {
		t.Error("expected Load to reject remote handles")
	}

	e := newLoaded(t, failScript, Options{})
	err := e.Exec(ctx, []string{"-i", "input/input.mp4"})
	if err == nil {
		t.Fatal("expected Exec to fail")
	}
	if !strings.Contains(err.Error(), "line 7") || strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected only the tail of the output, got %v", err)
	}

	if err := e.Unmount(ctx, "/input"); err == nil {
		t.Error("expected Unmount of an unmounted dir to fail")
	}
	if _, err := e.ReadFile(ctx, "/nothing.mp4"); err == nil {
		t.Error("expected ReadFile of a missing file to fail")
	}
}

func TestEngine_ExecOutput_Bad(t *testing.T) {
	var out bytes.Buffer
	e := newLoaded(t, noisyFailScript, Options{Output: &out})
	for i := 0; i < 10; i++ {
		err := e.Exec(context.Background(), []string{"-i", "input/input.mp4"})
		if err == nil {
			t.Fatal("expected Exec to fail")
		}
		if !strings.Contains(err.Error(), "Invalid data found") {
			t.Fatalf("run %d: expected the ffmpeg message in the error, got %v", i, err)
		}
	}
	if !strings.Contains(out.String(), "Invalid data found") {
		t.Errorf("expected output to be teed, got %q", out.String())
	}
}

type bufferInput struct{}

func (bufferInput) Name() string { return "input.mp4" }
func (bufferInput) Size() int64  { return 0 }

func TestEngine_Ugly(t *testing.T) {
	ctx := context.Background()
	e := newLoaded(t, segmentScript, Options{})

	if err := e.CreateDir(ctx, "/input"); err != nil {
		t.Fatalf("CreateDir failed: %v", err)
	}
	if err := e.Mount(ctx, "/input", bufferInput{}); err == nil {
		t.Error("expected in-memory inputs to be rejected")
	}
	in := writeMedia(t, "a.mp4")
	if err := e.Mount(ctx, "/input", in); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	if err := e.Mount(ctx, "/input", in); err == nil {
		t.Error("expected a second mount on the same dir to fail")
	}

	p, err := e.hostPath("../../etc/passwd")
	if err != nil {
		t.Fatalf("hostPath failed: %v", err)
	}
	if !strings.HasPrefix(p, e.Root()) {
		t.Errorf("expected %s to stay under %s", p, e.Root())
	}
}
