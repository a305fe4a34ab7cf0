package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/livefir/livesync"
	"github.com/livefir/livesync/internal/config"
	"github.com/livefir/livesync/internal/editor"
)

var (
	configPath string
	verbose    bool

	// cfg is loaded before any subcommand runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "livesync",
	Short: "Live structural sync for HTML documents",
	Long: `livesync tags every element of an HTML document with a stable identifier
and keeps a rendered copy of the document in step with edits to its source
by sending structural edit lists instead of reloading the page.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Debug = true
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.ConfigFileName, "configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every update decision")
}

// newEngine builds an engine from the loaded configuration, logging to w
func newEngine(w io.Writer) *livesync.Engine {
	return livesync.NewFromConfig(cfg, livesync.WithLogger(log.New(w, "livesync: ", log.LstdFlags)))
}

func openDocument(path string) (*editor.Buffer, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return editor.NewBuffer(path, string(text)), nil
}
