package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Snider/Slicer/pkg/assets"
	"github.com/Snider/Slicer/pkg/compress"
	"github.com/Snider/Slicer/pkg/config"
	"github.com/Snider/Slicer/pkg/ui"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
)

// httpClient is used for every engine download. Tests replace it.
var httpClient = http.DefaultClient

// lockRetry is how often a held bundle lock is retried.
const lockRetry = 200 * time.Millisecond

// NewEngineCmd returns the engine command group.
func NewEngineCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "engine",
		Short: "Package and inspect ffmpeg.wasm engine bundles",
	}
	c.AddCommand(NewEngineFetchCmd())
	c.AddCommand(NewEngineInspectCmd())
	return c
}

// NewEngineFetchCmd returns the engine fetch command.
func NewEngineFetchCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "fetch",
		Short: "Download the engine artifacts into a bundle",
		Long: `Download the engine worker, core script and wasm payload into a single
bundle file. With --vendor the worker's relative module imports are bundled
too, so the bundle can be served from one origin.

Example:
  slicer engine fetch --compression zst --vendor --output engine.tar.zst`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			compression := cfg.Bundle.Compression
			if cmd.Flags().Changed("compression") {
				compression, _ = cmd.Flags().GetString("compression")
			}
			if !compress.Valid(compression) {
				return fmt.Errorf("compression must be one of %v, got %q", compress.Formats, compression)
			}
			vendor := cfg.Bundle.Vendor
			if cmd.Flags().Changed("vendor") {
				vendor, _ = cmd.Flags().GetBool("vendor")
			}
			sources := cfg.Sources
			if base, _ := cmd.Flags().GetString("module-base"); base != "" {
				sources.ModuleBase = base
			}
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = cachedBundlePath(cfg, compression)
			}

			bar := ui.NewProgressBar(cmd.ErrOrStderr(), "Fetching engine")
			b, err := FetchBundle(cmd.Context(), assets.NewHTTPFetcher(httpClient), sources, assets.BundleOptions{
				Vendor: vendor,
				OnFile: func(name string) { bar.Describe("Fetched " + name) },
			}, output, compression)
			_ = bar.Finish()
			if err != nil {
				return err
			}
			loggerFrom(cmd).Info("engine bundle written", "path", output, "files", b.Files.Len(), "vendored", len(b.Manifest.Vendored))
			fmt.Fprintf(cmd.OutOrStdout(), "Engine bundle saved to %s\n", output)
			return nil
		},
	}
	c.Flags().StringP("output", "o", "", "Bundle file (default: the cache directory)")
	c.Flags().String("compression", "xz", "Compression format (none, gz, xz or zst)")
	c.Flags().Bool("vendor", false, "Bundle the worker's relative imports")
	c.Flags().String("module-base", "", "Absolute URL the worker's imports are served from")
	return c
}

// FetchBundle builds a bundle and writes it to output while holding a lock
// on output + ".lock", so concurrent fetches into the same cache do not
// interleave.
func FetchBundle(ctx context.Context, f assets.Fetcher, src assets.Sources, opts assets.BundleOptions, output, compression string) (*assets.Bundle, error) {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, fmt.Errorf("creating bundle directory: %w", err)
	}
	lock := flock.New(output + ".lock")
	ok, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("bundle %s is locked by another process", output)
	}
	defer lock.Unlock()

	b, err := assets.BuildBundle(ctx, f, src, opts)
	if err != nil {
		return nil, err
	}
	data, err := b.Bytes(compression)
	if err != nil {
		return nil, err
	}
	tmp := output + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing bundle: %w", err)
	}
	if err := os.Rename(tmp, output); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("writing bundle: %w", err)
	}
	return b, nil
}

// NewEngineInspectCmd returns the engine inspect command.
func NewEngineInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <bundle>",
		Short: "List the contents of an engine bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading bundle: %w", err)
			}
			b, err := assets.LoadBundle(data)
			if err != nil {
				return err
			}
			desc, err := describeBundle(b.Files, b.Manifest)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), desc)
			return nil
		},
	}
}

func describeBundle(files fs.FS, manifest assets.Manifest) (string, error) {
	var rows [][]string
	err := fs.WalkDir(files, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rows = append(rows, []string{p, humanBytes(info.Size())})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reading bundle contents: %w", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })

	meta, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding manifest: %w", err)
	}
	return renderTable([]string{"Path", "Size"}, rows, 1) + "\n" + string(meta) + "\n", nil
}

// cachedBundlePath is where "engine fetch" writes by default.
func cachedBundlePath(cfg *config.Config, compression string) string {
	return filepath.Join(cfg.Bundle.CacheDir, "engine.tar"+compress.Extension(compression))
}
