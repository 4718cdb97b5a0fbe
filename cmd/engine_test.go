package cmd

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Snider/Slicer/pkg/assets"
	"github.com/Snider/Slicer/pkg/mocks"
	"github.com/gofrs/flock"
)

// mockEngineCDN swaps httpClient for one answering the default sources.
func mockEngineCDN(t *testing.T) *mocks.MockRoundTripper {
	t.Helper()
	src := assets.DefaultSources()
	responses := make(map[string]*http.Response)
	responses[src.WorkerURL] = mocks.OK(`import{a}from"./const.js";import {b} from './errors.js';`)
	responses[src.Base()+"/const.js"] = mocks.OK(`export const a = 1;`)
	responses[src.Base()+"/errors.js"] = mocks.OK(`export const b = 2;`)
	responses[src.CoreURL] = mocks.OK(`var createFFmpegCore;`)
	responses[src.WASMURL] = mocks.OK("\x00asm")
	client := mocks.NewMockClient(responses)
	old := httpClient
	httpClient = client
	t.Cleanup(func() { httpClient = old })
	return mocks.Transport(client)
}

func TestEngineFetch_Good(t *testing.T) {
	mockEngineCDN(t)
	cfg := testConfig(t)
	p := filepath.Join(t.TempDir(), "engine.tar.zst")

	output, err := executeCommand(newTestRoot(), "engine", "fetch", "--config", cfg, "--output", p, "--compression", "zst", "--vendor")
	if err != nil {
		t.Fatalf("engine fetch failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Engine bundle saved to "+p) {
		t.Errorf("unexpected output:\n%s", output)
	}

	output, err = executeCommand(newTestRoot(), "engine", "inspect", p)
	if err != nil {
		t.Fatalf("engine inspect failed: %v", err)
	}
	for _, want := range []string{"engine/worker.js", "engine/ffmpeg-core.wasm", "engine/const.js", "engine/errors.js", `"vendored"`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in inspect output:\n%s", want, output)
		}
	}
}

func TestEngineFetch_Cache(t *testing.T) {
	rt := mockEngineCDN(t)
	cfg := testConfig(t)

	if _, err := executeCommand(newTestRoot(), "engine", "fetch", "--config", cfg, "--compression", "gz"); err != nil {
		t.Fatalf("engine fetch failed: %v", err)
	}
	if n := len(rt.Requests()); n != 3 {
		t.Errorf("expected 3 requests without vendoring, got %d", n)
	}
	cached := filepath.Join(os.Getenv("SLICER_CACHE_DIR"), "engine.tar.gz")
	if _, err := os.Stat(cached); err != nil {
		t.Fatalf("expected bundle in the cache dir: %v", err)
	}
	if _, err := os.Stat(cached + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("expected no temp file to remain, got %v", err)
	}
}

func TestEngineFetch_Bad(t *testing.T) {
	mockEngineCDN(t)
	cfg := testConfig(t)

	_, err := executeCommand(newTestRoot(), "engine", "fetch", "--config", cfg, "--output", filepath.Join(t.TempDir(), "e.tar"), "--compression", "rar")
	if err == nil || !strings.Contains(err.Error(), "compression") {
		t.Errorf("expected a compression error, got %v", err)
	}

	_, err = executeCommand(newTestRoot(), "engine", "fetch", "--config", cfg, "--output", filepath.Join(t.TempDir(), "e.tar"), "--module-base", "engine/")
	if err == nil || !strings.Contains(err.Error(), "module_base") {
		t.Errorf("expected a sources error, got %v", err)
	}

	if _, err := executeCommand(newTestRoot(), "engine", "inspect", filepath.Join(t.TempDir(), "nope.tar")); err == nil {
		t.Error("expected inspect of a missing bundle to fail")
	}
}

func TestFetchBundle_Ugly(t *testing.T) {
	p := filepath.Join(t.TempDir(), "engine.tar")
	held := flock.New(p + ".lock")
	if ok, err := held.TryLock(); !ok || err != nil {
		t.Fatalf("could not take lock: %v", err)
	}
	defer held.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	stub := assets.FetcherFunc(func(context.Context, string) ([]byte, error) {
		t.Error("nothing must be fetched while the lock is held")
		return nil, nil
	})
	if _, err := FetchBundle(ctx, stub, assets.DefaultSources(), assets.BundleOptions{}, p, "none"); err == nil {
		t.Fatal("expected a held lock to block the fetch")
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Errorf("expected no bundle to be written, got %v", err)
	}
}

type unreadableFS struct{}

func (unreadableFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: errors.New("corrupt entry")}
}

func TestDescribeBundle_Bad(t *testing.T) {
	desc, err := describeBundle(unreadableFS{}, assets.Manifest{})
	if err == nil {
		t.Fatalf("expected an unreadable bundle to fail, got:\n%s", desc)
	}
	if !strings.Contains(err.Error(), "corrupt entry") {
		t.Errorf("expected the walk error to be returned, got %v", err)
	}
}
