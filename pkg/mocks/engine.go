package mocks

import (
	"context"
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/Snider/Slicer/pkg/datanode"
	"github.com/Snider/Slicer/pkg/engine"
)

// MediaFile is an engine.Input with a known play length, for driving
// MockEngine's simulated segment muxer.
type MediaFile struct {
	FileName string
	Bytes    int64
	Seconds  float64
}

func (m *MediaFile) Name() string      { return m.FileName }
func (m *MediaFile) Size() int64       { return m.Bytes }
func (m *MediaFile) Duration() float64 { return m.Seconds }

// MockEngine is an in-memory engine.Engine. Its working memory is a
// DataNode, and Exec simulates ffmpeg's segment muxer: each output file
// holds the "[start,end)" range it covers. Errors keyed by operation name
// (load, mkdir, mount, unmount, rmdir, exec, list, read, delete) are
// returned from that operation; an exec error is returned after outputs are
// written, like a muxer failing part way through.
type MockEngine struct {
	Memory *datanode.DataNode
	Errors map[string]error

	mu     sync.Mutex
	config *engine.LoadConfig
	loads  int
	dirs   map[string]bool
	mounts map[string]engine.Input
	execs  [][]string
	ops    []string
}

// NewMockEngine returns an empty, unloaded MockEngine.
func NewMockEngine() *MockEngine {
	return &MockEngine{
		Memory: datanode.New(),
		Errors: make(map[string]error),
		dirs:   make(map[string]bool),
		mounts: make(map[string]engine.Input),
	}
}

func (m *MockEngine) record(op, arg string) error {
	m.ops = append(m.ops, op+" "+arg)
	return m.Errors[op]
}

// Load implements engine.Engine.
func (m *MockEngine) Load(_ context.Context, cfg engine.LoadConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("load", string(cfg.WorkerURL)); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.loads++
	m.config = &cfg
	return nil
}

// CreateDir implements engine.Engine.
func (m *MockEngine) CreateDir(_ context.Context, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("mkdir", dir); err != nil {
		return err
	}
	if m.dirs[dir] {
		return fmt.Errorf("mkdir %s: file exists", dir)
	}
	m.dirs[dir] = true
	return nil
}

// Mount implements engine.Engine.
func (m *MockEngine) Mount(_ context.Context, dir string, in engine.Input) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("mount", dir); err != nil {
		return err
	}
	if !m.dirs[dir] {
		return fmt.Errorf("mount %s: no such directory", dir)
	}
	m.mounts[dir] = in
	return nil
}

// Unmount implements engine.Engine.
func (m *MockEngine) Unmount(_ context.Context, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("unmount", dir); err != nil {
		return err
	}
	if _, ok := m.mounts[dir]; !ok {
		return fmt.Errorf("unmount %s: not mounted", dir)
	}
	delete(m.mounts, dir)
	return nil
}

// RemoveDir implements engine.Engine.
func (m *MockEngine) RemoveDir(_ context.Context, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("rmdir", dir); err != nil {
		return err
	}
	if _, ok := m.mounts[dir]; ok {
		return fmt.Errorf("rmdir %s: busy", dir)
	}
	delete(m.dirs, dir)
	return nil
}

// Exec implements engine.Engine.
func (m *MockEngine) Exec(_ context.Context, args []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs = append(m.execs, append([]string(nil), args...))
	m.ops = append(m.ops, "exec "+strings.Join(args, " "))

	if err := m.segment(args); err != nil {
		return err
	}
	return m.Errors["exec"]
}

func (m *MockEngine) segment(args []string) error {
	var input, pattern string
	seconds := 0
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-i":
			i++
			input = args[i]
		case "-segment_time":
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return fmt.Errorf("bad segment_time %q", args[i])
			}
			seconds = n
		}
	}
	if len(args) > 0 {
		pattern = args[len(args)-1]
	}
	if input == "" || seconds < 1 || !strings.Contains(pattern, "%03d") {
		return fmt.Errorf("unsupported command: %s", strings.Join(args, " "))
	}

	abs := "/" + strings.TrimPrefix(input, "/")
	in, ok := m.mounts[path.Dir(abs)]
	if !ok || in.Name() != path.Base(abs) {
		return fmt.Errorf("%s: No such file or directory", input)
	}
	media, ok := engine.Unwrap(in).(interface{ Duration() float64 })
	if !ok {
		return fmt.Errorf("%s: invalid data found when processing input", input)
	}

	total := media.Duration()
	count := int(math.Ceil(total / float64(seconds)))
	for i := 0; i < count; i++ {
		start := float64(i * seconds)
		end := math.Min(float64((i+1)*seconds), total)
		m.Memory.AddData(fmt.Sprintf(pattern, i), []byte(fmt.Sprintf("[%g,%g)", start, end)))
	}
	return nil
}

// ListDir implements engine.Engine.
func (m *MockEngine) ListDir(_ context.Context, dir string) ([]engine.DirEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("list", dir); err != nil {
		return nil, err
	}
	files, err := m.Memory.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var entries []engine.DirEntry
	for d := range m.dirs {
		if path.Dir(d) == path.Clean("/"+dir) {
			entries = append(entries, engine.DirEntry{Name: path.Base(d), IsDir: true})
		}
	}
	for _, f := range files {
		entries = append(entries, engine.DirEntry{Name: f.Name(), IsDir: f.IsDir()})
	}
	return entries, nil
}

// ReadFile implements engine.Engine.
func (m *MockEngine) ReadFile(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("read", name); err != nil {
		return nil, err
	}
	return m.Memory.ReadFile(name)
}

// DeleteFile implements engine.Engine.
func (m *MockEngine) DeleteFile(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("delete", name); err != nil {
		return err
	}
	return m.Memory.Remove(name)
}

// Loads reports how many times Load succeeded.
func (m *MockEngine) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// Config returns the config of the last successful Load, or nil.
func (m *MockEngine) Config() *engine.LoadConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Execs returns the argument lists passed to Exec.
func (m *MockEngine) Execs() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.execs...)
}

// Ops returns every operation in call order as "op arg".
func (m *MockEngine) Ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ops...)
}

// Mounted reports whether anything is mounted at dir.
func (m *MockEngine) Mounted(dir string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.mounts[dir]
	return ok
}

// HasDir reports whether dir exists.
func (m *MockEngine) HasDir(dir string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirs[dir]
}
