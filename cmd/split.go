package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Snider/Slicer/pkg/assets"
	"github.com/Snider/Slicer/pkg/config"
	"github.com/Snider/Slicer/pkg/engine"
	"github.com/Snider/Slicer/pkg/engine/native"
	"github.com/Snider/Slicer/pkg/ui"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// SplitOptions describes one local split.
type SplitOptions struct {
	Input     string
	Duration  int
	OutputDir string
	FFmpeg    string
	WorkDir   string
	// Fetcher and Sources locate the engine artifacts the session
	// bootstraps from.
	Fetcher assets.Fetcher
	Sources assets.Sources
	// Progress receives the progress display.
	Progress    io.Writer
	Interactive bool
	Log         *slog.Logger
}

// SplitResult is one segment written to disk.
type SplitResult struct {
	Name     string
	Path     string
	Size     int64
	MIMEType string
}

// NewSplitCmd returns the split command.
func NewSplitCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "split <file>",
		Short: "Split a video into fixed-length segments",
		Long: `Split a video into fixed-length segments with a stream copy. No frames are
re-encoded, so cuts land on the nearest keyframe.

Example:
  slicer split holiday.mp4 --duration 30 --output clips/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			opts := SplitOptions{
				Input:       args[0],
				Duration:    cfg.Split.Duration,
				OutputDir:   cfg.Split.OutputDir,
				FFmpeg:      cfg.Engine.FFmpeg,
				WorkDir:     cfg.Engine.WorkDir,
				Progress:    cmd.ErrOrStderr(),
				Interactive: ui.IsInteractive(),
				Log:         loggerFrom(cmd),
			}
			if cmd.Flags().Changed("duration") {
				opts.Duration, _ = cmd.Flags().GetInt("duration")
			}
			if cmd.Flags().Changed("output") {
				opts.OutputDir, _ = cmd.Flags().GetString("output")
			}
			if cmd.Flags().Changed("ffmpeg") {
				opts.FFmpeg, _ = cmd.Flags().GetString("ffmpeg")
			}
			bundlePath, _ := cmd.Flags().GetString("bundle")
			if opts.Fetcher, opts.Sources, err = engineSource(cfg, bundlePath); err != nil {
				return err
			}

			results, err := Split(cmd.Context(), opts)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(results))
			for i, r := range results {
				rows = append(rows, []string{strconv.Itoa(i + 1), r.Path, humanBytes(r.Size), r.MIMEType})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"#", "File", "Size", "Type"}, rows, 0, 2))
			color.New(color.FgGreen).Fprintf(out, "%d segments written to %s\n", len(results), opts.OutputDir)
			return nil
		},
	}
	c.Flags().IntP("duration", "d", 60, "Segment length in seconds")
	c.Flags().StringP("output", "o", ".", "Directory the segments are written to")
	c.Flags().String("bundle", "", "Engine bundle to bootstrap from instead of the network")
	c.Flags().String("ffmpeg", "ffmpeg", "ffmpeg binary")
	return c
}

// engineSource picks where the session's engine artifacts come from: the
// named bundle, else the cached bundle written by "engine fetch", else the
// network.
func engineSource(cfg *config.Config, bundlePath string) (assets.Fetcher, assets.Sources, error) {
	explicit := bundlePath != ""
	if !explicit {
		bundlePath = cachedBundlePath(cfg, cfg.Bundle.Compression)
	}
	data, err := os.ReadFile(bundlePath)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return assets.NewHTTPFetcher(httpClient), cfg.Sources, nil
		}
		return nil, assets.Sources{}, fmt.Errorf("reading bundle: %w", err)
	}
	b, err := assets.LoadBundle(data)
	if err != nil {
		return nil, assets.Sources{}, err
	}
	return b.Fetcher(), b.Manifest.Sources, nil
}

// Split runs one segmentation job over the host ffmpeg and writes each
// segment next to the others in opts.OutputDir as <stem>_NNN<ext>.
func Split(ctx context.Context, opts SplitOptions) ([]SplitResult, error) {
	in, err := engine.OpenLocalFile(opts.Input)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	progressOut := opts.Progress
	if progressOut == nil {
		progressOut = io.Discard
	}

	reporter := ui.NewReporter(progressOut, "Segmenting "+in.Name(), opts.Interactive)
	eng := native.New(native.Options{
		Binary:  opts.FFmpeg,
		WorkDir: opts.WorkDir,
		Output:  reporter.Writer(),
	})
	defer eng.Close()

	if opts.Sources == (assets.Sources{}) {
		opts.Sources = assets.DefaultSources()
	}
	sessionOpts := []engine.Option{engine.WithSources(opts.Sources)}
	if opts.Fetcher != nil {
		sessionOpts = append(sessionOpts, engine.WithFetcher(opts.Fetcher))
	}
	if opts.Log != nil {
		sessionOpts = append(sessionOpts, engine.WithLogger(opts.Log))
	}
	session := engine.NewSession(eng, sessionOpts...)

	reporter.Start()
	segments, err := session.Segment(ctx, in, opts.Duration, reporter.Progress)
	reporter.Finish()
	if err != nil {
		return nil, err
	}

	stem := strings.TrimSuffix(in.Name(), filepath.Ext(in.Name()))
	results := make([]SplitResult, 0, len(segments))
	for _, seg := range segments {
		name := stem + "_" + strings.TrimPrefix(seg.Name, "output_")
		p := filepath.Join(opts.OutputDir, name)
		if err := os.WriteFile(p, seg.Data, 0o644); err != nil {
			return results, fmt.Errorf("writing %s: %w", name, err)
		}
		results = append(results, SplitResult{
			Name:     name,
			Path:     p,
			Size:     int64(len(seg.Data)),
			MIMEType: seg.MIMEType,
		})
	}
	return results, nil
}
