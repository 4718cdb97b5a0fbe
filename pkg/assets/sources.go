// Package assets fetches the media engine's worker script, core script and
// wasm payload, rewrites the worker's relative module imports, and publishes
// the results as locally addressable resources.
package assets

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	ffmpegVersion = "0.12.10"
	coreVersion   = "0.12.6"

	defaultFFmpegBase = "https://unpkg.com/@ffmpeg/ffmpeg@" + ffmpegVersion + "/dist/esm"
	defaultCoreBase   = "https://unpkg.com/@ffmpeg/core@" + coreVersion + "/dist/esm"
)

// Sources are the fixed, versioned locations of the engine's artifacts.
type Sources struct {
	WorkerURL string `json:"worker_url" toml:"worker_url"`
	CoreURL   string `json:"core_url" toml:"core_url"`
	WASMURL   string `json:"wasm_url" toml:"wasm_url"`
	// ModuleBase roots the worker's relative imports. Empty means the
	// directory of WorkerURL.
	ModuleBase string `json:"module_base,omitempty" toml:"module_base"`
}

// DefaultSources returns the pinned ESM builds of @ffmpeg/ffmpeg and
// @ffmpeg/core on unpkg.
func DefaultSources() Sources {
	return Sources{
		WorkerURL: defaultFFmpegBase + "/worker.js",
		CoreURL:   defaultCoreBase + "/ffmpeg-core.js",
		WASMURL:   defaultCoreBase + "/ffmpeg-core.wasm",
	}
}

// Base returns the absolute location relative worker imports resolve to,
// without a trailing slash.
func (s Sources) Base() string {
	if s.ModuleBase != "" {
		return strings.TrimSuffix(s.ModuleBase, "/")
	}
	return BaseURL(s.WorkerURL)
}

// Validate checks every location is an absolute http(s) URL.
func (s Sources) Validate() error {
	fields := []struct {
		name, value string
		optional    bool
	}{
		{"worker_url", s.WorkerURL, false},
		{"core_url", s.CoreURL, false},
		{"wasm_url", s.WASMURL, false},
		{"module_base", s.ModuleBase, true},
	}
	var errs []error
	for _, f := range fields {
		if f.value == "" {
			if !f.optional {
				errs = append(errs, fmt.Errorf("%s is required", f.name))
			}
			continue
		}
		u, err := url.Parse(f.value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
			continue
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute http(s) URL, got %q", f.name, f.value))
		}
	}
	return errors.Join(errs...)
}

// BaseURL returns the directory part of a resource URL without a trailing
// slash, or the input unchanged when it cannot be parsed.
func BaseURL(resource string) string {
	u, err := url.Parse(resource)
	if err != nil {
		return resource
	}
	dir := u.ResolveReference(&url.URL{Path: "./"})
	dir.RawQuery = ""
	dir.Fragment = ""
	return strings.TrimSuffix(dir.String(), "/")
}

// resolveURL resolves ref against base and returns the absolute URL.
func resolveURL(base, ref string) (*url.URL, error) {
	baseURL, err := url.Parse(base + "/")
	if err != nil {
		return nil, err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return baseURL.ResolveReference(refURL), nil
}
