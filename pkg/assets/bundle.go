package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/Snider/Slicer/pkg/compress"
	"github.com/Snider/Slicer/pkg/datanode"
)

// Paths of the engine artifacts inside a bundle.
const (
	EngineDir    = "engine"
	WorkerPath   = EngineDir + "/worker.js"
	CorePath     = EngineDir + "/ffmpeg-core.js"
	WASMPath     = EngineDir + "/ffmpeg-core.wasm"
	ManifestPath = "manifest.json"
)

// maxVendored bounds how many worker modules a bundle pulls in.
const maxVendored = 64

// Manifest describes how a bundle was built.
type Manifest struct {
	Sources   Sources   `json:"sources"`
	Imports   []string  `json:"imports,omitempty"`
	Vendored  []string  `json:"vendored,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Bundle is a packaged copy of the engine artifacts. The worker is stored
// as fetched; with vendoring its relative imports sit next to it, so the
// bundle can be served from a single origin without any runtime patch.
type Bundle struct {
	Manifest Manifest
	Files    *datanode.DataNode
}

// BundleOptions tunes BuildBundle.
type BundleOptions struct {
	// Vendor fetches the worker's relative imports, transitively, into the
	// bundle.
	Vendor bool
	// OnFile is called after each artifact is stored.
	OnFile func(name string)
}

// BuildBundle fetches the engine artifacts described by src into a Bundle.
func BuildBundle(ctx context.Context, f Fetcher, src Sources, opts BundleOptions) (*Bundle, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	b := &Bundle{
		Manifest: Manifest{Sources: src, CreatedAt: time.Now().UTC()},
		Files:    datanode.New(),
	}
	add := func(name string, data []byte) {
		b.Files.AddData(name, data)
		if opts.OnFile != nil {
			opts.OnFile(name)
		}
	}

	worker, err := f.Fetch(ctx, src.WorkerURL)
	if err != nil {
		return nil, fmt.Errorf("could not fetch worker: %w", err)
	}
	add(WorkerPath, worker)
	b.Manifest.Imports = RelativeImports(string(worker))

	core, err := f.Fetch(ctx, src.CoreURL)
	if err != nil {
		return nil, fmt.Errorf("could not fetch core: %w", err)
	}
	add(CorePath, core)

	wasm, err := f.Fetch(ctx, src.WASMURL)
	if err != nil {
		return nil, fmt.Errorf("could not fetch wasm: %w", err)
	}
	add(WASMPath, wasm)

	if opts.Vendor {
		vendored, err := vendorImports(ctx, f, BaseURL(src.WorkerURL), b.Manifest.Imports, add)
		if err != nil {
			return nil, err
		}
		b.Manifest.Vendored = vendored
	}

	manifest, err := json.MarshalIndent(b.Manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("could not encode manifest: %w", err)
	}
	b.Files.AddData(ManifestPath, manifest)
	return b, nil
}

// vendorImports fetches names relative to base, following their own
// relative imports breadth first.
func vendorImports(ctx context.Context, f Fetcher, base string, names []string, add func(string, []byte)) ([]string, error) {
	queue := append([]string(nil), names...)
	seen := make(map[string]bool)
	var vendored []string
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		if !safeModuleName(name) {
			return nil, fmt.Errorf("refusing to vendor module %q", name)
		}
		if len(vendored) == maxVendored {
			return nil, fmt.Errorf("worker imports more than %d modules", maxVendored)
		}

		u, err := resolveURL(base, "./"+name)
		if err != nil {
			return nil, fmt.Errorf("could not resolve module %s: %w", name, err)
		}
		data, err := f.Fetch(ctx, u.String())
		if err != nil {
			return nil, fmt.Errorf("could not fetch module %s: %w", name, err)
		}
		add(path.Join(EngineDir, name), data)
		vendored = append(vendored, name)

		dir := path.Dir(name)
		for _, next := range RelativeImports(string(data)) {
			queue = append(queue, path.Join(dir, next))
		}
	}
	return vendored, nil
}

func safeModuleName(name string) bool {
	clean := path.Clean(name)
	return clean == name && !strings.HasPrefix(clean, "../") && clean != ".." && !path.IsAbs(clean)
}

// LoadBundle restores a bundle from the bytes written by Bytes.
func LoadBundle(data []byte) (*Bundle, error) {
	tarball, err := compress.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("could not decompress bundle: %w", err)
	}
	files, err := datanode.FromTar(tarball)
	if err != nil {
		return nil, fmt.Errorf("could not read bundle: %w", err)
	}
	raw, err := files.ReadFile(ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("bundle has no manifest: %w", err)
	}
	b := &Bundle{Files: files}
	if err := json.Unmarshal(raw, &b.Manifest); err != nil {
		return nil, fmt.Errorf("could not parse manifest: %w", err)
	}
	for _, p := range []string{WorkerPath, CorePath, WASMPath} {
		if ok, _ := files.Exists(p); !ok {
			return nil, fmt.Errorf("bundle is missing %s", p)
		}
	}
	return b, nil
}

// Bytes serializes the bundle as a tar archive compressed with format.
func (b *Bundle) Bytes(format string) ([]byte, error) {
	tarball, err := b.Files.ToTar()
	if err != nil {
		return nil, err
	}
	return compress.Compress(tarball, format)
}

// Fetcher returns a Fetcher that answers the manifest's source URLs (and
// vendored module URLs) from the bundle, so a session can bootstrap offline.
func (b *Bundle) Fetcher() Fetcher {
	routes := map[string]string{
		b.Manifest.Sources.WorkerURL: WorkerPath,
		b.Manifest.Sources.CoreURL:   CorePath,
		b.Manifest.Sources.WASMURL:   WASMPath,
	}
	base := b.Manifest.Sources.Base()
	for _, name := range b.Manifest.Vendored {
		routes[base+"/"+name] = path.Join(EngineDir, name)
	}
	return FetcherFunc(func(_ context.Context, url string) ([]byte, error) {
		p, ok := routes[url]
		if !ok {
			return nil, fmt.Errorf("%s is not part of the bundle", url)
		}
		return b.Files.ReadFile(p)
	})
}
