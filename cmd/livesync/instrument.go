package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	instrumentInject string
	instrumentOutput string
)

var instrumentCmd = &cobra.Command{
	Use:   "instrument <file>",
	Short: "Print a document with identifier attributes added",
	Long: `Print the document with an identifier attribute added to every element's
open tag. Everything else is copied through unchanged. With --inject the given
markup is placed right after the head's open tag, or at the end when the
document has no head.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstrument,
}

func init() {
	instrumentCmd.Flags().StringVar(&instrumentInject, "inject", "", "markup to inject into the head")
	instrumentCmd.Flags().StringVarP(&instrumentOutput, "output", "o", "", "write to a file instead of stdout")
	rootCmd.AddCommand(instrumentCmd)
}

func runInstrument(cmd *cobra.Command, args []string) error {
	buf, err := openDocument(args[0])
	if err != nil {
		return err
	}

	engine := newEngine(cmd.ErrOrStderr())
	out, err := engine.GenerateInstrumentedMarkup(buf, instrumentInject)
	if err != nil {
		return err
	}

	if instrumentOutput == "" {
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	}

	if err := os.WriteFile(instrumentOutput, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", instrumentOutput, err)
	}
	cmd.PrintErrf("wrote %s (%s)\n", instrumentOutput, humanize.Bytes(uint64(len(out))))
	return nil
}
