package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Snider/Slicer/pkg/assets"
	"github.com/Snider/Slicer/pkg/server"
	"github.com/spf13/cobra"
)

// NewServeCmd returns the serve command.
func NewServeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve <bundle>",
		Short: "Serve an engine bundle with cross-origin isolation headers",
		Long: `Serve an engine bundle, and optionally a compiled browser app, from one
origin with the COOP/COEP headers the threaded engine requires.

Example:
  slicer serve engine.tar.xz --app web/ --open`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			addr := cfg.Server.Addr
			if cmd.Flags().Changed("addr") {
				addr, _ = cmd.Flags().GetString("addr")
			}
			appDir, _ := cmd.Flags().GetString("app")
			open, _ := cmd.Flags().GetBool("open")

			srv, err := NewBundleServer(args[0], appDir, addr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log := loggerFrom(cmd)
			return srv.Serve(ctx, func(bound string) {
				url := server.URL(bound)
				fmt.Fprintf(cmd.OutOrStdout(), "Serving engine bundle on %s\n", url)
				if open {
					if err := server.OpenBrowser(url); err != nil {
						log.Warn("could not open browser", "err", err)
					}
				}
			})
		},
	}
	c.Flags().String("addr", "127.0.0.1:8080", "Address to listen on")
	c.Flags().String("app", "", "Directory of extra files to serve (e.g. slicer.wasm and wasm_exec.js)")
	c.Flags().Bool("open", false, "Open the page in the default browser")
	return c
}

// NewBundleServer loads the bundle at bundlePath and adds every regular file
// under appDir to the served tree.
func NewBundleServer(bundlePath, appDir, addr string) (*server.Server, error) {
	data, err := os.ReadFile(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}
	b, err := assets.LoadBundle(data)
	if err != nil {
		return nil, err
	}
	srv := server.New(b, addr)
	if appDir == "" {
		return srv, nil
	}
	err = filepath.WalkDir(appDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		rel, err := filepath.Rel(appDir, p)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		srv.Add(filepath.ToSlash(rel), content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("adding app files: %w", err)
	}
	return srv, nil
}
