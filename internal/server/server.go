// Package server is a live development server for a single HTML document.
// It serves the document instrumented with tag identifiers, watches the file
// and pushes the structural edits of every save to connected pages.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/livefir/livesync"
	"github.com/livefir/livesync/internal/config"
	"github.com/livefir/livesync/internal/editor"
	"github.com/livefir/livesync/internal/metrics"
)

// Routes served next to the document
const (
	ClientPath    = "/livesync/client.js"
	WebSocketPath = "/livesync/ws"
	MetricsPath   = "/livesync/metrics"
)

// Custom counters kept in the engine's collector
const (
	counterReloads  = "reloads"
	counterMessages = "websocket_messages"
)

const shutdownTimeout = 5 * time.Second

//go:embed client.js
var clientScript []byte

// Server serves one document and keeps connected pages in sync with it
type Server struct {
	engine   *livesync.Engine
	buffer   *editor.Buffer
	watcher  *Watcher
	hub      *Hub
	upgrader *websocket.Upgrader
	addr     string
	logger   *log.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server's logger
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New loads the document at path and prepares to serve it
func New(engine *livesync.Engine, path string, cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		engine: engine,
		addr:   cfg.Addr,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	watcher, err := NewWatcher(path, cfg.Debounce, s.logger)
	if err != nil {
		return nil, err
	}
	s.watcher = watcher
	s.hub = NewHub(s.logger)

	text, err := os.ReadFile(watcher.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	s.buffer = editor.NewBuffer(watcher.Path(), string(text))

	if _, err := engine.Scan(s.buffer); err != nil {
		// served as-is until the author fixes it
		s.logger.Printf("SERVER: %v", err)
	} else if err := engine.MarkText(s.buffer); err != nil {
		return nil, err
	}

	s.logger.Printf("SERVER: loaded %s (%s)", watcher.Path(), humanize.Bytes(uint64(len(text))))
	return s, nil
}

// Hub returns the set of connected pages
func (s *Server) Hub() *Hub {
	return s.hub
}

// Buffer returns the in-memory copy of the document
func (s *Server) Buffer() *editor.Buffer {
	return s.buffer
}

// Handler routes the document, the client script and the websocket
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ClientPath, s.handleClient)
	mux.HandleFunc(WebSocketPath, s.handleWebSocket)
	mux.HandleFunc(MetricsPath, s.handleMetrics)

	static := http.FileServer(http.Dir(filepath.Dir(s.buffer.FullPath())))
	doc := "/" + filepath.Base(s.buffer.FullPath())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" || r.URL.Path == doc {
			s.handleDocument(w, r)
			return
		}
		static.ServeHTTP(w, r)
	})
	return mux
}

func (s *Server) injection() string {
	return fmt.Sprintf(`<script src="%s" data-livesync data-attribute="%s" defer></script>`,
		ClientPath, s.engine.AttributeName())
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	markup, err := s.engine.GenerateInstrumentedMarkup(s.buffer, s.injection())
	if err != nil {
		// fall back to the raw text so the page still loads
		s.logger.Printf("SERVER: serving %s uninstrumented: %v", s.buffer.FullPath(), err)
		markup = s.buffer.Text()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write([]byte(markup)); err != nil {
		s.logger.Printf("SERVER: failed to write document: %v", err)
	}
}

func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Write(clientScript)
}

// Stats is the body served at MetricsPath
type Stats struct {
	Sync            metrics.SyncMetrics `json:"sync"`
	IncrementalRate float64             `json:"incremental_rate"`
	CacheHitRate    float64             `json:"cache_hit_rate"`
	Counters        map[string]int64    `json:"counters"`
	Documents       []string            `json:"documents"`
	Clients         int                 `json:"clients"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	collector := s.engine.Metrics()
	stats := Stats{
		Sync:            collector.GetMetrics(),
		IncrementalRate: collector.GetIncrementalRate(),
		CacheHitRate:    collector.GetCacheHitRate(),
		Counters:        collector.GetCustomCounters(),
		Documents:       s.engine.Documents(),
		Clients:         s.hub.Len(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		s.logger.Printf("SERVER: failed to write metrics: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("SERVER: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := s.hub.add(conn)
	defer s.hub.remove(c.id)
	s.logger.Printf("SERVER: client %s connected from %s", c.id, conn.RemoteAddr())

	if err := c.sendMessage(Message{Type: MessageHello, ID: c.id}); err != nil {
		s.logger.Printf("SERVER: failed to greet client %s: %v", c.id, err)
		return
	}

	// message loop
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Printf("SERVER: websocket error: %v", err)
			}
			break
		}
		s.engine.Metrics().IncrementCustomCounter(counterMessages)

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Printf("SERVER: failed to parse message: %v", err)
			continue
		}

		if msg.Type != MessageDOM || msg.Tree == nil {
			s.logger.Printf("SERVER: ignoring %q message from %s", msg.Type, c.id)
			continue
		}

		rec, err := s.engine.ReconcileRemoteTree(s.buffer, msg.Tree)
		if err != nil {
			s.logger.Printf("SERVER: reconciliation failed: %v", err)
			continue
		}
		if err := c.sendMessage(Message{Type: MessageReconciled, ID: c.id, Edits: rec.Edits}); err != nil {
			s.logger.Printf("SERVER: websocket write failed: %v", err)
			break
		}
	}

	s.logger.Printf("SERVER: client %s disconnected", c.id)
}

// Reload reads the document from disk, brings the engine up to date and
// broadcasts the resulting edits. It returns the number of edits sent.
func (s *Server) Reload() (int, error) {
	text, err := os.ReadFile(s.buffer.FullPath())
	if err != nil {
		return 0, fmt.Errorf("failed to read document: %w", err)
	}

	change, changed := s.buffer.SetText(string(text))
	if !changed {
		return 0, nil
	}
	s.engine.Metrics().IncrementCustomCounter(counterReloads)

	result := s.engine.ComputeUnappliedEdits(s.buffer, []livesync.Change{change})
	if len(result.Errors) > 0 {
		msgs := make([]string, len(result.Errors))
		for i, err := range result.Errors {
			msgs[i] = err.Error()
		}
		s.hub.Broadcast(Message{Type: MessageErrors, Errors: msgs})
		return 0, result.Errors[0]
	}

	mode := "full"
	if result.Incremental {
		mode = "incremental"
	}
	s.logger.Printf("SERVER: %s changed (%s, %s update): %d edits to %d clients",
		filepath.Base(s.buffer.FullPath()), humanize.Bytes(uint64(len(text))), mode,
		len(result.Edits), s.hub.Len())

	if len(result.Edits) == 0 {
		return 0, nil
	}
	s.hub.Broadcast(Message{Type: MessageEdits, Edits: result.Edits})
	return len(result.Edits), nil
}

func (s *Server) reload() {
	if _, err := s.Reload(); err != nil {
		s.logger.Printf("SERVER: %v", err)
	}
}

// Run serves until ctx is done or the listener fails
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Printf("SERVER: listening on http://%s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return s.watcher.Run(gctx, s.reload)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
