package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Snider/Slicer/pkg/assets"
	"github.com/Snider/Slicer/pkg/logger"
)

// Session is a lazily bootstrapped handle on one Engine. It is loaded at
// most once and never unloaded.
type Session struct {
	engine  Engine
	fetcher assets.Fetcher
	store   assets.Store
	sources assets.Sources
	log     *slog.Logger

	loadMu sync.Mutex
	loaded atomic.Bool
	busy   atomic.Bool
}

// Option configures a Session.
type Option func(*Session)

// WithFetcher sets how engine artifacts are retrieved. Defaults to an
// HTTPFetcher over http.DefaultClient.
func WithFetcher(f assets.Fetcher) Option {
	return func(s *Session) { s.fetcher = f }
}

// WithStore sets where fetched artifacts are published. Defaults to a
// MemoryStore.
func WithStore(st assets.Store) Option {
	return func(s *Session) { s.store = st }
}

// WithSources overrides the artifact locations.
func WithSources(src assets.Sources) Option {
	return func(s *Session) { s.sources = src }
}

// WithLogger sets the logger that receives the session's log events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// NewSession returns an unloaded session over eng.
func NewSession(eng Engine, opts ...Option) *Session {
	s := &Session{
		engine:  eng,
		fetcher: assets.NewHTTPFetcher(nil),
		store:   assets.NewMemoryStore(),
		sources: assets.DefaultSources(),
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Loaded reports whether Bootstrap has completed.
func (s *Session) Loaded() bool { return s.loaded.Load() }

// Bootstrap fetches the engine artifacts, rewrites the worker's relative
// imports to absolute ones, publishes all three as local resources and
// loads the engine from them. It returns immediately once the session is
// loaded. Failures are returned as *LoadError and leave the session
// unloaded.
func (s *Session) Bootstrap(ctx context.Context) error {
	if s.loaded.Load() {
		return nil
	}
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if s.loaded.Load() {
		return nil
	}

	s.log.Info("loading media engine", "worker", s.sources.WorkerURL)
	cfg, err := s.publish(ctx)
	if err == nil {
		if loadErr := s.engine.Load(ctx, cfg); loadErr != nil {
			err = &LoadError{Op: "load", Err: loadErr}
		}
	}
	if err != nil {
		s.log.Error("media engine failed to load", "err", err)
		return err
	}

	s.loaded.Store(true)
	s.log.Log(ctx, logger.LevelSuccess, "media engine loaded")
	return nil
}

func (s *Session) publish(ctx context.Context) (LoadConfig, error) {
	var cfg LoadConfig

	worker, err := s.fetcher.Fetch(ctx, s.sources.WorkerURL)
	if err != nil {
		return cfg, &LoadError{Op: "fetch-worker", Err: err}
	}
	patched, n := assets.RewriteImports(string(worker), s.sources.Base())
	if n == 0 {
		s.log.Warn("no relative imports rewritten in worker script", "worker", s.sources.WorkerURL)
	} else {
		s.log.Debug("rewrote worker imports", "count", n, "base", s.sources.Base())
	}
	if cfg.WorkerURL, err = s.store.Publish("worker.js", "text/javascript", []byte(patched)); err != nil {
		return cfg, &LoadError{Op: "publish", Err: err}
	}
	cfg.ClassWorkerURL = cfg.WorkerURL

	core, err := s.fetcher.Fetch(ctx, s.sources.CoreURL)
	if err != nil {
		return cfg, &LoadError{Op: "fetch-core", Err: err}
	}
	if cfg.CoreURL, err = s.store.Publish("ffmpeg-core.js", "text/javascript", core); err != nil {
		return cfg, &LoadError{Op: "publish", Err: err}
	}

	wasm, err := s.fetcher.Fetch(ctx, s.sources.WASMURL)
	if err != nil {
		return cfg, &LoadError{Op: "fetch-wasm", Err: err}
	}
	if cfg.WASMURL, err = s.store.Publish("ffmpeg-core.wasm", "application/wasm", wasm); err != nil {
		return cfg, &LoadError{Op: "publish", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, &LoadError{Op: "publish", Err: err}
	}
	return cfg, nil
}
