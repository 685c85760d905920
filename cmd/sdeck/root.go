package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/grahamwalsh/syncdeck/internal/config"
	"github.com/grahamwalsh/syncdeck/internal/ui"
)

var (
	cfgFile string
	noColor bool

	cfg *config.Config

	// logOutput is stderr, optionally teed into a rotated log file.
	logOutput io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:   "sdeck",
	Short: "Terminal dashboard for a file-sync daemon",
	Long: `sdeck mirrors a file-sync daemon's per-folder state into a local
SQLite cache and presents it as filtered views: which files are still
downloading, queued, only on a remote device, modified locally, or not
yet announced to any peer.

The daemon remains the source of truth; sdeck only caches and renders.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		ui.Init(noColor)

		if cfg.Logging.File != "" {
			logOutput = io.MultiWriter(os.Stderr, &lumberjack.Logger{
				Filename:   cfg.Logging.File,
				MaxSize:    cfg.Logging.MaxSizeMB,
				MaxBackups: cfg.Logging.MaxBackups,
			})
		}
		return nil
	},
}

// newLogger returns a prefixed logger on the shared log output.
func newLogger(prefix string) *log.Logger {
	return log.New(logOutput, prefix, log.LstdFlags)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./, $HOME/.syncdeck, /etc/syncdeck)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}
