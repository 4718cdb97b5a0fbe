// Package native runs the engine adapter against an ffmpeg binary on the
// host. A private temporary directory stands in for the engine's
// working-memory filesystem and inputs are bound into it with symlinks, so
// no media bytes are copied on the way in.
package native

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Snider/Slicer/pkg/engine"
)

// DefaultBinary is the command run when Options.Binary is empty.
const DefaultBinary = "ffmpeg"

// stderrTail is how many trailing lines of ffmpeg output an exec error
// carries.
const stderrTail = 5

var errNotLoaded = errors.New("engine is not loaded")

// Options configures an Engine.
type Options struct {
	// Binary is the ffmpeg command or path.
	Binary string
	// WorkDir is the parent of the private working directory. Empty means
	// os.TempDir().
	WorkDir string
	// Output, when set, also receives everything ffmpeg writes to stderr.
	Output io.Writer
}

// Engine is an engine.Engine backed by a host ffmpeg process per Exec.
type Engine struct {
	opts Options

	mu     sync.Mutex
	root   string
	mounts map[string]string
}

var _ engine.Engine = (*Engine)(nil)

// New returns an unloaded Engine.
func New(opts Options) *Engine {
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	return &Engine{opts: opts, mounts: make(map[string]string)}
}

// Root returns the host directory backing the working memory, or "" before
// Load.
func (e *Engine) Root() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.root
}

// Load checks the configuration and the ffmpeg binary and creates the
// working directory. Loading a loaded engine does nothing.
func (e *Engine) Load(_ context.Context, cfg engine.LoadConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.root != "" {
		return nil
	}
	if _, err := exec.LookPath(e.opts.Binary); err != nil {
		return fmt.Errorf("binary %q not found: %w", e.opts.Binary, err)
	}
	root, err := os.MkdirTemp(e.opts.WorkDir, "slicer-")
	if err != nil {
		return fmt.Errorf("could not create working directory: %w", err)
	}
	e.root = root
	return nil
}

// Close removes the working directory and everything left in it.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.root == "" {
		return nil
	}
	err := os.RemoveAll(e.root)
	e.root = ""
	e.mounts = make(map[string]string)
	return err
}

// hostPath maps an engine path onto the working directory. Paths cannot
// climb out of it.
func (e *Engine) hostPath(name string) (string, error) {
	e.mu.Lock()
	root := e.root
	e.mu.Unlock()
	if root == "" {
		return "", errNotLoaded
	}
	clean := path.Clean("/" + name)
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}

// CreateDir creates dir in working memory.
func (e *Engine) CreateDir(_ context.Context, dir string) error {
	p, err := e.hostPath(dir)
	if err != nil {
		return err
	}
	return os.Mkdir(p, 0o755)
}

// Mount binds in into dir under its logical name. Only inputs backed by a
// host file can be bound.
func (e *Engine) Mount(_ context.Context, dir string, in engine.Input) error {
	file, ok := engine.Unwrap(in).(*engine.LocalFile)
	if !ok {
		return fmt.Errorf("cannot mount %T: only local files are supported", engine.Unwrap(in))
	}
	p, err := e.hostPath(dir)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.mounts[p]; busy {
		return fmt.Errorf("%s is already mounted", dir)
	}
	link := filepath.Join(p, filepath.Base(in.Name()))
	if err := os.Symlink(file.Path, link); err != nil {
		return err
	}
	e.mounts[p] = link
	return nil
}

// Unmount releases the binding at dir.
func (e *Engine) Unmount(_ context.Context, dir string) error {
	p, err := e.hostPath(dir)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	link, ok := e.mounts[p]
	if !ok {
		return fmt.Errorf("%s is not mounted", dir)
	}
	if err := os.Remove(link); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	delete(e.mounts, p)
	return nil
}

// RemoveDir removes an empty directory.
func (e *Engine) RemoveDir(_ context.Context, dir string) error {
	p, err := e.hostPath(dir)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

// Exec runs ffmpeg with args in the working directory. A failed run returns
// an error carrying the last lines ffmpeg printed.
func (e *Engine) Exec(ctx context.Context, args []string) error {
	root, err := e.hostPath("/")
	if err != nil {
		return err
	}
	full := append([]string{"-hide_banner", "-nostdin", "-y"}, args...)
	cmd := exec.CommandContext(ctx, e.opts.Binary, full...)
	cmd.Dir = root

	// One writer for both streams so os/exec copies them in a single
	// goroutine.
	var output bytes.Buffer
	var w io.Writer = &output
	if e.opts.Output != nil {
		w = io.MultiWriter(&output, e.opts.Output)
	}
	cmd.Stdout = w
	cmd.Stderr = w
	if err := cmd.Run(); err != nil {
		if tail := lastLines(output.String(), stderrTail); tail != "" {
			return fmt.Errorf("%s: %w: %s", e.opts.Binary, err, tail)
		}
		return fmt.Errorf("%s: %w", e.opts.Binary, err)
	}
	return nil
}

// ListDir lists dir sorted by name.
func (e *Engine) ListDir(_ context.Context, dir string) ([]engine.DirEntry, error) {
	p, err := e.hostPath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, err
	}
	out := make([]engine.DirEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, engine.DirEntry{Name: entry.Name(), IsDir: entry.IsDir()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ReadFile returns the content of name.
func (e *Engine) ReadFile(_ context.Context, name string) ([]byte, error) {
	p, err := e.hostPath(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// DeleteFile removes name.
func (e *Engine) DeleteFile(_ context.Context, name string) error {
	p, err := e.hostPath(name)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
