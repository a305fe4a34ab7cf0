package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/spf13/cobra"

	"github.com/livefir/livesync/internal/diff"
	"github.com/livefir/livesync/internal/remote"
)

var (
	reconcileChrome  string
	reconcileTimeout time.Duration
	reconcileStrict  bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <file> <rendered>",
	Short: "Compare a document with a rendered copy of it",
	Long: `Diff the document's tree against a rendered copy and print the edits that
would turn the document into what was rendered. The rendered copy is one of:

  a URL         loaded in Chrome and serialized from the live DOM
  a .json file  a tree in the wire format sent by the client script
  an HTML file  parsed the way a browser would

Rendered elements are matched to the document's by their identifier
attribute, so the copy must come from instrumented markup.`,
	Args: cobra.ExactArgs(2),
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileChrome, "chrome", "", "DevTools websocket URL of a running Chrome (default: launch headless)")
	reconcileCmd.Flags().DurationVar(&reconcileTimeout, "timeout", 30*time.Second, "how long to wait for the page")
	reconcileCmd.Flags().BoolVar(&reconcileStrict, "strict", false, "fail when the copies differ")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	buf, err := openDocument(args[0])
	if err != nil {
		return err
	}

	engine := newEngine(cmd.ErrOrStderr())
	if _, err := engine.Scan(buf); err != nil {
		return err
	}

	reported, err := loadRendered(cmd.Context(), args[1])
	if err != nil {
		return err
	}

	rec, err := engine.ReconcileRemoteTree(buf, reported)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(rec.Edits) == 0 {
		fmt.Fprintln(w, "in sync")
		return nil
	}
	for _, edit := range rec.Edits {
		fmt.Fprintln(w, edit)
	}
	fmt.Fprintf(w, "%d edits (%s)\n", len(rec.Edits), diff.Classify(rec.Edits))

	if reconcileStrict {
		return fmt.Errorf("%s differs from %s", args[1], args[0])
	}
	return nil
}

func loadRendered(ctx context.Context, source string) (*remote.Node, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return snapshotURL(ctx, source)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}

	switch {
	case strings.EqualFold(filepath.Ext(source), ".json"):
		return remote.Decode(data)
	case strings.Contains(strings.ToLower(string(data)), "<html"):
		return remote.FromHTML(string(data))
	default:
		return remote.FromFragment(string(data))
	}
}

func snapshotURL(ctx context.Context, url string) (*remote.Node, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if reconcileChrome != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, reconcileChrome)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	}
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	timeoutCtx, cancel := context.WithTimeout(browserCtx, reconcileTimeout)
	defer cancel()

	return remote.Snapshot(timeoutCtx, url)
}
