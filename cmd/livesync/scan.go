package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/livefir/livesync/internal/dom"
)

var scanCmd = &cobra.Command{
	Use:   "scan <file>",
	Short: "Print the element tree of a document",
	Long: `Parse the document and print one line per element with its identifier,
byte range and line:column position. Fails when the markup is not well-formed.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	buf, err := openDocument(args[0])
	if err != nil {
		return err
	}

	tree, err := newEngine(cmd.ErrOrStderr()).Scan(buf)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	printNode(w, tree.Root, 0)
	fmt.Fprintf(w, "%s elements, %s\n",
		humanize.Comma(int64(len(tree.NodeMap))), humanize.Bytes(uint64(len(buf.Text()))))
	return nil
}

func printNode(w io.Writer, n *dom.Node, depth int) {
	if !n.IsElement() {
		return
	}
	fmt.Fprintf(w, "%s<%s> #%d [%d,%d) %s\n", strings.Repeat("  ", depth), n.Tag, n.TagID, n.Start, n.End, position(n.StartPos))
	for _, child := range n.Children {
		printNode(w, child, depth+1)
	}
}

func position(p dom.Position) string {
	return fmt.Sprintf("%d:%d", p.Line+1, p.Ch+1)
}
