package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables that override file values.
const (
	EnvFFmpeg    = "SLICER_FFMPEG"
	EnvCacheDir  = "SLICER_CACHE_DIR"
	EnvWorkerURL = "SLICER_WORKER_URL"
	EnvCoreURL   = "SLICER_CORE_URL"
	EnvWASMURL   = "SLICER_WASM_URL"
)

func (c *Config) applyEnv() {
	overrides := []struct {
		name   string
		target *string
	}{
		{EnvFFmpeg, &c.Engine.FFmpeg},
		{EnvCacheDir, &c.Bundle.CacheDir},
		{EnvWorkerURL, &c.Sources.WorkerURL},
		{EnvCoreURL, &c.Sources.CoreURL},
		{EnvWASMURL, &c.Sources.WASMURL},
	}
	for _, o := range overrides {
		if value, ok := os.LookupEnv(o.name); ok && strings.TrimSpace(value) != "" {
			*o.target = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalize() error {
	var err error
	c.Engine.FFmpeg = strings.TrimSpace(c.Engine.FFmpeg)
	if c.Engine.FFmpeg == "" {
		c.Engine.FFmpeg = defaultFFmpeg
	}
	if c.Engine.WorkDir, err = expandPath(c.Engine.WorkDir); err != nil {
		return fmt.Errorf("engine.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Split.OutputDir) == "" {
		c.Split.OutputDir = defaultOutputDir
	}
	if c.Split.OutputDir, err = expandPath(c.Split.OutputDir); err != nil {
		return fmt.Errorf("split.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Bundle.CacheDir) == "" {
		c.Bundle.CacheDir = defaultCacheDir
	}
	if c.Bundle.CacheDir, err = expandPath(c.Bundle.CacheDir); err != nil {
		return fmt.Errorf("bundle.cache_dir: %w", err)
	}
	c.Bundle.Compression = strings.ToLower(strings.TrimSpace(c.Bundle.Compression))
	if c.Bundle.Compression == "" {
		c.Bundle.Compression = defaultCompression
	}
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	if c.Server.Addr == "" {
		c.Server.Addr = defaultServerAddr
	}
	return nil
}
