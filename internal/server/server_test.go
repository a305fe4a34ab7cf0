package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livefir/livesync"
	"github.com/livefir/livesync/internal/config"
	"github.com/livefir/livesync/internal/diff"
	"github.com/livefir/livesync/internal/dom"
	"github.com/livefir/livesync/internal/remote"
)

const document = "<html><head></head><body><p>hi</p></body></html>"

var quiet = log.New(io.Discard, "", 0)

func newTestServer(t *testing.T, text string) (*Server, *httptest.Server, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))

	engine := livesync.New(livesync.WithLogger(quiet))
	s, err := New(engine, path, config.DefaultConfig(), WithLogger(quiet))
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts, path
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + WebSocketPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	hello := readMessage(t, conn)
	require.Equal(t, MessageHello, hello.Type)
	require.NotEmpty(t, hello.ID)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func get(t *testing.T, url string) string {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestServer_ServesInstrumentedDocument(t *testing.T) {
	_, ts, _ := newTestServer(t, document)

	for _, path := range []string{"/", "/index.html"} {
		body := get(t, ts.URL+path)
		assert.Contains(t, body, `<p data-tracking-id="4">hi</p>`)

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		require.NoError(t, err)
		script := doc.Find("head script[data-livesync]")
		require.Equal(t, 1, script.Length())
		src, _ := script.Attr("src")
		assert.Equal(t, ClientPath, src)
	}

	script := get(t, ts.URL+ClientPath)
	assert.Contains(t, script, "WebSocket")
}

func TestServer_ServesInvalidDocumentRaw(t *testing.T) {
	const broken = "<html><body><div>hi</body></html>"
	_, ts, _ := newTestServer(t, broken)

	assert.Equal(t, broken, get(t, ts.URL+"/"))
}

func TestServer_ReloadBroadcastsEdits(t *testing.T) {
	s, ts, path := newTestServer(t, document)
	conn := dial(t, ts)
	require.Eventually(t, func() bool { return s.Hub().Len() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(document, "hi", "hello", 1)), 0644))
	n, err := s.Reload()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	msg := readMessage(t, conn)
	require.Equal(t, MessageEdits, msg.Type)
	require.Len(t, msg.Edits, 1)
	assert.Equal(t, diff.TextReplace, msg.Edits[0].Type)
	assert.Equal(t, dom.TagID(4), msg.Edits[0].ParentID)
	assert.Equal(t, "hello", msg.Edits[0].Content)

	// nothing changed on disk
	n, err = s.Reload()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestServer_ReloadBroadcastsErrors(t *testing.T) {
	s, ts, path := newTestServer(t, document)
	conn := dial(t, ts)
	require.Eventually(t, func() bool { return s.Hub().Len() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("<html><head></head><body><div>hi</body></html>"), 0644))
	_, err := s.Reload()
	require.Error(t, err)

	msg := readMessage(t, conn)
	require.Equal(t, MessageErrors, msg.Type)
	require.Len(t, msg.Errors, 1)
	assert.Contains(t, msg.Errors[0], "div")
}

func TestServer_ReconcilesReportedDOM(t *testing.T) {
	_, ts, _ := newTestServer(t, document)
	conn := dial(t, ts)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(get(t, ts.URL+"/")))
	require.NoError(t, err)
	doc.Find("script[data-livesync]").Remove()
	rendered, err := doc.Html()
	require.NoError(t, err)

	tree, err := remote.FromHTML(rendered)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageDOM, Tree: tree}))
	msg := readMessage(t, conn)
	require.Equal(t, MessageReconciled, msg.Type)
	assert.Empty(t, msg.Edits)

	// a page that lost its paragraph text
	tree.Children[1].Children[0].Children = nil
	require.NoError(t, conn.WriteJSON(Message{Type: MessageDOM, Tree: tree}))
	msg = readMessage(t, conn)
	require.Equal(t, MessageReconciled, msg.Type)
	require.Len(t, msg.Edits, 1)
	assert.Equal(t, diff.TextDelete, msg.Edits[0].Type)
}

func TestServer_Metrics(t *testing.T) {
	s, ts, path := newTestServer(t, document)

	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(document, "hi", "hey", 1)), 0644))
	_, err := s.Reload()
	require.NoError(t, err)

	var stats Stats
	require.NoError(t, json.Unmarshal([]byte(get(t, ts.URL+MetricsPath)), &stats))
	assert.Equal(t, int64(1), stats.Sync.FullRebuilds)
	assert.Equal(t, int64(1), stats.Sync.IncrementalUpdates)
	assert.Equal(t, 50.0, stats.IncrementalRate)
	assert.Equal(t, int64(1), stats.Counters["reloads"])
	assert.Equal(t, []string{path}, stats.Documents)
	assert.Zero(t, stats.Clients)
}

func TestHub_Broadcast(t *testing.T) {
	s, ts, _ := newTestServer(t, document)
	assert.Zero(t, s.Hub().Broadcast(Message{Type: MessageEdits}))

	first := dial(t, ts)
	second := dial(t, ts)
	require.Eventually(t, func() bool { return s.Hub().Len() == 2 }, time.Second, 10*time.Millisecond)

	edits := []diff.Edit{{Type: diff.AttrAdd, TagID: 4, Attribute: "class", Value: "x"}}
	assert.Equal(t, 2, s.Hub().Broadcast(Message{Type: MessageEdits, Edits: edits}))

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		assert.Equal(t, edits, msg.Edits)
	}

	second.Close()
	require.Eventually(t, func() bool { return s.Hub().Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestMessage_JSON(t *testing.T) {
	data, err := json.Marshal(Message{Type: MessageEdits, Edits: []diff.Edit{{Type: diff.ElementDelete, TagID: 3}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"edits","edits":[{"type":"elementDelete","tagID":3}]}`, string(data))
}
