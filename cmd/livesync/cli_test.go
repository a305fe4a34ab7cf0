package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = "<html><head></head><body><p>hi</p></body></html>"

// run executes the root command with args, isolated from flag values left
// behind by earlier runs
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	instrumentInject, instrumentOutput = "", ""
	serveAddr = ""
	configForce, verbose = false, false
	reconcileChrome, reconcileStrict = "", false

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "livesync.yaml")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func writePage(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "livesync version dev")
}

func TestInstrumentCommand(t *testing.T) {
	out, err := run(t, "instrument", writePage(t, page))
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	id, ok := doc.Find("p").Attr("data-tracking-id")
	require.True(t, ok)
	assert.Equal(t, "4", id)
}

func TestInstrumentCommand_InjectAndOutput(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.html")

	out, err := run(t, "instrument", writePage(t, page), "--inject", `<meta name="x">`, "-o", target)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<head data-tracking-id="2"><meta name=`)
}

func TestInstrumentCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing argument", []string{"instrument"}},
		{"missing file", []string{"instrument", filepath.Join(t.TempDir(), "nope.html")}},
		{"not well-formed", []string{"instrument", writePage(t, "<html><body><div></body></html>")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestScanCommand(t *testing.T) {
	out, err := run(t, "scan", writePage(t, page))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "<html> #1 [0,48) 1:1", lines[0])
	assert.Equal(t, "  <head> #2 [6,19) 1:7", lines[1])
	assert.Equal(t, "    <p> #4 [25,34) 1:26", lines[3])
	assert.Equal(t, "4 elements, 48 B", lines[4])
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "livesync.yaml")

	rootCmd.SetArgs([]string{"--config", path, "config", "init"})
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	require.NoError(t, rootCmd.Execute())
	assert.FileExists(t, path)

	// refuses to overwrite
	rootCmd.SetArgs([]string{"--config", path, "config", "init"})
	assert.Error(t, rootCmd.Execute())

	require.NoError(t, os.WriteFile(path, []byte("attribute_name: data-node\n"), 0644))
	out.Reset()
	rootCmd.SetArgs([]string{"--config", path, "config"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "attribute_name: data-node")
	assert.Contains(t, out.String(), "incremental: true")

	require.NoError(t, os.WriteFile(path, []byte("attribute_name: id\n"), 0644))
	rootCmd.SetArgs([]string{"--config", path, "config"})
	assert.Error(t, rootCmd.Execute())
}

func TestServeCommand_InvalidAddr(t *testing.T) {
	_, err := run(t, "serve", writePage(t, page), "--addr", "not an address")
	assert.Error(t, err)
}

func TestReconcileCommand(t *testing.T) {
	doc := writePage(t, page)
	dir := t.TempDir()

	rendered := filepath.Join(dir, "rendered.html")
	_, err := run(t, "instrument", doc, "-o", rendered)
	require.NoError(t, err)

	out, err := run(t, "reconcile", doc, rendered)
	require.NoError(t, err)
	assert.Equal(t, "in sync\n", out)

	drifted := filepath.Join(dir, "drifted.html")
	require.NoError(t, os.WriteFile(drifted, []byte(`<html data-tracking-id="1"><head data-tracking-id="2"></head>`+
		`<body data-tracking-id="3"><p data-tracking-id="4">bye</p></body></html>`), 0644))

	out, err = run(t, "reconcile", doc, drifted)
	require.NoError(t, err)
	assert.Equal(t, "textReplace in #4 \"bye\"\n1 edits (text-only)\n", out)

	_, err = run(t, "reconcile", doc, drifted, "--strict")
	assert.Error(t, err)
}

func TestReconcileCommand_JSON(t *testing.T) {
	doc := writePage(t, "<div><p>hi</p></div>")
	tree := filepath.Join(t.TempDir(), "tree.json")
	require.NoError(t, os.WriteFile(tree, []byte(`{"type":"element","tag":"div","attributes":{"data-tracking-id":"1"},
		"children":[{"type":"element","tag":"p","attributes":{"data-tracking-id":"2","class":"x"},
		"children":[{"type":"text","content":"hi"}]}]}`), 0644))

	out, err := run(t, "reconcile", doc, tree)
	require.NoError(t, err)
	assert.Contains(t, out, `attrAdd #2 class="x"`)
	assert.Contains(t, out, "(attribute)")
}
