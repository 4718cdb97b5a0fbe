// Package engine adapts an external media-processing engine for fixed
// duration segmentation. The engine is reached only through the Engine
// capability interface; a Session bootstraps it from locally published
// resources and then runs stream-copy segmentation jobs against it, one at a
// time.
package engine

import (
	"context"
	"fmt"

	"github.com/Snider/Slicer/pkg/assets"
)

// Engine is the narrow set of operations the adapter needs from a media
// engine. Paths name entries in the engine's working-memory filesystem;
// Exec arguments name files relative to the engine's working directory,
// which is also the root listed by ListDir("/").
type Engine interface {
	Load(ctx context.Context, cfg LoadConfig) error
	CreateDir(ctx context.Context, dir string) error
	Mount(ctx context.Context, dir string, in Input) error
	Unmount(ctx context.Context, dir string) error
	RemoveDir(ctx context.Context, dir string) error
	Exec(ctx context.Context, args []string) error
	ListDir(ctx context.Context, dir string) ([]DirEntry, error)
	ReadFile(ctx context.Context, name string) ([]byte, error)
	DeleteFile(ctx context.Context, name string) error
}

// DirEntry is one entry returned by Engine.ListDir.
type DirEntry struct {
	Name  string
	IsDir bool
}

// LoadConfig carries the locally addressable resources an engine is
// initialized from. ClassWorkerURL is the legacy alias of WorkerURL.
type LoadConfig struct {
	CoreURL        assets.Handle
	WASMURL        assets.Handle
	WorkerURL      assets.Handle
	ClassWorkerURL assets.Handle
}

// Validate rejects configs that would make the engine reach for a remote
// resource.
func (c LoadConfig) Validate() error {
	fields := []struct {
		name string
		h    assets.Handle
	}{
		{"core", c.CoreURL},
		{"wasm", c.WASMURL},
		{"worker", c.WorkerURL},
		{"class worker", c.ClassWorkerURL},
	}
	for _, f := range fields {
		if f.h == "" {
			return fmt.Errorf("%s handle is empty", f.name)
		}
		if !assets.IsLocal(f.h) {
			return fmt.Errorf("%s handle %q is not a local resource", f.name, f.h)
		}
	}
	return nil
}
