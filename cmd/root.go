package cmd

import (
	"context"
	"log/slog"

	"github.com/Snider/Slicer/pkg/config"
	"github.com/Snider/Slicer/pkg/logger"
	"github.com/spf13/cobra"
)

type loggerKey struct{}

// RootCmd represents the base command when called without any subcommands
var RootCmd = NewRootCmd()

// NewRootCmd returns a root command without subcommands.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "slicer",
		Short: "Split videos into fixed-length segments without re-encoding.",
		Long: `Slicer splits a video into fixed-duration segments with a stream copy.

It drives a local ffmpeg for the split command, and packages and serves the
ffmpeg.wasm engine so the same split can run entirely inside a browser tab.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, logger.NewWriter(cmd.ErrOrStderr(), true)))
			}
			return nil
		},
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().String("config", "", "Path to the config file (default ~/.config/slicer/config.toml)")
	return root
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(log *slog.Logger) error {
	return RootCmd.ExecuteContext(context.WithValue(context.Background(), loggerKey{}, log))
}

// loggerFrom returns the logger Execute stored in the command context.
func loggerFrom(cmd *cobra.Command) *slog.Logger {
	if ctx := cmd.Context(); ctx != nil {
		if log, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return log
		}
	}
	return logger.NewWriter(cmd.ErrOrStderr(), false)
}

// loadConfig reads .env from the working directory, then the file named by
// --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, _, _, err := config.Load(path)
	return cfg, err
}

func init() {
	RootCmd.AddCommand(NewSplitCmd())
	RootCmd.AddCommand(NewEngineCmd())
	RootCmd.AddCommand(NewServeCmd())
}
