package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Snider/Slicer/pkg/assets"
)

// writeTestBundle writes a bundle whose artifacts are served by a stub
// fetcher, so split can bootstrap without the network.
func writeTestBundle(t *testing.T) string {
	t.Helper()
	stub := assets.FetcherFunc(func(_ context.Context, url string) ([]byte, error) {
		return []byte(`import{a}from"./const.js"; // ` + url), nil
	})
	p := filepath.Join(t.TempDir(), "engine.tar.gz")
	if _, err := FetchBundle(context.Background(), stub, assets.DefaultSources(), assets.BundleOptions{}, p, "gz"); err != nil {
		t.Fatalf("FetchBundle failed: %v", err)
	}
	return p
}

func writeMedia(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("not really a movie"), 0o644); err != nil {
		t.Fatalf("could not write media: %v", err)
	}
	return p
}

func TestSplitCmd_Good(t *testing.T) {
	cfg := testConfig(t)
	out := filepath.Join(t.TempDir(), "clips")
	media := writeMedia(t, "holiday.mp4")

	output, err := executeCommand(newTestRoot(), "split", media,
		"--config", cfg,
		"--bundle", writeTestBundle(t),
		"--ffmpeg", fakeFFmpeg(t),
		"--duration", "10",
		"--output", out,
	)
	if err != nil {
		t.Fatalf("split failed: %v\n%s", err, output)
	}
	for i, name := range []string{"holiday_000.mp4", "holiday_001.mp4", "holiday_002.mp4"} {
		data, err := os.ReadFile(filepath.Join(out, name))
		if err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
		if want := "clip " + string(rune('0'+i)) + "\n"; string(data) != want {
			t.Errorf("%s: got %q, want %q", name, data, want)
		}
		if !strings.Contains(output, name) {
			t.Errorf("expected %s in the summary table", name)
		}
	}
	if !strings.Contains(output, "3 segments written") {
		t.Errorf("expected a summary line, got:\n%s", output)
	}
}

func TestSplit_Bad(t *testing.T) {
	cfg := testConfig(t)

	_, err := executeCommand(newTestRoot(), "split", filepath.Join(t.TempDir(), "missing.mp4"),
		"--config", cfg, "--bundle", writeTestBundle(t), "--ffmpeg", fakeFFmpeg(t))
	if err == nil || !strings.Contains(err.Error(), "opening input") {
		t.Errorf("expected an input error, got %v", err)
	}

	_, err = executeCommand(newTestRoot(), "split", writeMedia(t, "a.mp4"),
		"--config", cfg, "--bundle", filepath.Join(t.TempDir(), "nope.tar"))
	if err == nil || !strings.Contains(err.Error(), "reading bundle") {
		t.Errorf("expected a bundle error, got %v", err)
	}

	_, err = Split(context.Background(), SplitOptions{
		Input:     writeMedia(t, "a.mp4"),
		Duration:  0,
		OutputDir: t.TempDir(),
		FFmpeg:    "ffmpeg",
	})
	if err == nil || !strings.Contains(err.Error(), "segmentation failed (validate)") {
		t.Errorf("expected a validation error, got %v", err)
	}
}

func TestSplit_Ugly(t *testing.T) {
	// A failing ffmpeg must not leave partial output behind.
	bin := writeScript(t, "#!/bin/sh\nprintf x > output_000.mp4\necho 'Invalid data found when processing input' >&2\nexit 1\n")

	b, err := os.ReadFile(writeTestBundle(t))
	if err != nil {
		t.Fatal(err)
	}
	bundle, err := assets.LoadBundle(b)
	if err != nil {
		t.Fatal(err)
	}
	out := t.TempDir()
	_, err = Split(context.Background(), SplitOptions{
		Input:     writeMedia(t, "broken.mp4"),
		Duration:  5,
		OutputDir: out,
		FFmpeg:    bin,
		Fetcher:   bundle.Fetcher(),
		Sources:   bundle.Manifest.Sources,
	})
	if err == nil || !strings.Contains(err.Error(), "Invalid data") {
		t.Fatalf("expected the ffmpeg message in the error, got %v", err)
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 0 {
		t.Errorf("expected no output files, got %d", len(entries))
	}
}
