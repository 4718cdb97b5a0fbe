package config

import "github.com/Snider/Slicer/pkg/assets"

const (
	defaultConfigPath  = "~/.config/slicer/config.toml"
	defaultFFmpeg      = "ffmpeg"
	defaultDuration    = 60
	defaultOutputDir   = "."
	defaultCacheDir    = "~/.cache/slicer"
	defaultCompression = "xz"
	defaultServerAddr  = "127.0.0.1:8080"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Engine:  Engine{FFmpeg: defaultFFmpeg},
		Sources: assets.DefaultSources(),
		Split: Split{
			Duration:  defaultDuration,
			OutputDir: defaultOutputDir,
		},
		Bundle: Bundle{
			CacheDir:    defaultCacheDir,
			Compression: defaultCompression,
		},
		Server: Server{Addr: defaultServerAddr},
	}
}
