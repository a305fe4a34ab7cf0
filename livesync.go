// Package livesync keeps a structural model of an HTML document in step with
// edits made to its text, so that a rendered copy of the document can be
// patched with a short list of structural edits instead of being reloaded.
package livesync

import (
	"errors"
	"log"
	"os"
	"sync"

	"github.com/livefir/livesync/internal/cache"
	"github.com/livefir/livesync/internal/config"
	"github.com/livefir/livesync/internal/diff"
	"github.com/livefir/livesync/internal/dom"
	"github.com/livefir/livesync/internal/editor"
	"github.com/livefir/livesync/internal/marker"
	"github.com/livefir/livesync/internal/metrics"
)

var (
	// ErrGraftInconsistent means a cached subtree could not be found under
	// its own parent
	ErrGraftInconsistent = errors.New("subtree is not a child of its parent")

	// ErrNoSnapshot means the document has no cached tree yet
	ErrNoSnapshot = errors.New("no snapshot for document")

	// ErrStaleSnapshot means the cached tree's offsets no longer match the text
	ErrStaleSnapshot = errors.New("snapshot offsets are stale")

	// ErrInvalidDocument means the document text is not well-formed markup
	ErrInvalidDocument = errors.New("document is not well-formed")
)

// Document is a text document identified by its full path
type Document interface {
	FullPath() string
	Text() string
	// Timestamp changes whenever the text does
	Timestamp() int64
}

// Editor is a document open in an editor that tracks range markers for it
type Editor interface {
	Document
	Markers() marker.Store
}

// Change describes a single text replacement already applied to a document
type Change = editor.Change

// Parser turns markup into a tree. Failures that mean the markup is not
// well-formed must match dom.ErrNotWellFormed.
type Parser interface {
	Parse(text string, opts dom.ParseOptions) (*dom.Tree, error)
}

// Differ computes the edits turning one tree into another
type Differ interface {
	Diff(oldRoot, newRoot *dom.Node) []diff.Edit
}

// EditResult is the outcome of ComputeUnappliedEdits: either Edits or Errors
type EditResult struct {
	Edits  []diff.Edit
	Errors []error
	// Incremental reports whether only part of the document was re-parsed
	Incremental bool
}

// Engine synchronizes document text with cached tree snapshots
type Engine struct {
	ids             *dom.IDAllocator
	parser          Parser
	differ          Differ
	cache           *cache.Store
	metrics         *metrics.Collector
	logger          *log.Logger
	attributeName   string
	incremental     bool
	minifyInjection bool
	debug           bool

	// serializes update cycles
	mu sync.Mutex
}

// Option configures an Engine
type Option func(*Engine)

// WithIncremental enables or disables partial re-parses
func WithIncremental(enabled bool) Option {
	return func(e *Engine) {
		e.incremental = enabled
	}
}

// WithAttributeName sets the attribute that carries tag identifiers
func WithAttributeName(name string) Option {
	return func(e *Engine) {
		e.attributeName = name
	}
}

// WithParser replaces the markup parser
func WithParser(p Parser) Option {
	return func(e *Engine) {
		e.parser = p
	}
}

// WithDiffer replaces the tree differ
func WithDiffer(d Differ) Option {
	return func(e *Engine) {
		e.differ = d
	}
}

// WithCache shares a snapshot cache between engines
func WithCache(c *cache.Store) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithMetrics sets the collector receiving sync counters
func WithMetrics(m *metrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithIDAllocator sets the source of tag identifiers. The default parser
// draws from the same allocator.
func WithIDAllocator(ids *dom.IDAllocator) Option {
	return func(e *Engine) {
		e.ids = ids
	}
}

// WithInjectionMinify enables minification of injected fragments
func WithInjectionMinify(enabled bool) Option {
	return func(e *Engine) {
		e.minifyInjection = enabled
	}
}

// WithDebug logs every update decision
func WithDebug(enabled bool) Option {
	return func(e *Engine) {
		e.debug = enabled
	}
}

// New creates an engine with its own cache and identifier allocator
func New(opts ...Option) *Engine {
	e := &Engine{
		attributeName:   config.DefaultAttributeName,
		incremental:     true,
		minifyInjection: true,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.ids == nil {
		e.ids = dom.NewIDAllocator()
	}
	if e.parser == nil {
		e.parser = dom.NewBuilder(e.ids)
	}
	if e.differ == nil {
		e.differ = diff.NewDiffer()
	}
	if e.cache == nil {
		e.cache = cache.NewStore()
	}
	if e.metrics == nil {
		e.metrics = metrics.NewCollector()
	}
	if e.logger == nil {
		e.logger = log.New(os.Stderr, "livesync: ", log.LstdFlags)
	}
	return e
}

// NewFromConfig creates an engine from loaded configuration. Options are
// applied after the configuration.
func NewFromConfig(cfg *config.Config, opts ...Option) *Engine {
	base := []Option{
		WithIncremental(cfg.Incremental),
		WithAttributeName(cfg.AttributeName),
		WithInjectionMinify(cfg.MinifyInjection),
		WithDebug(cfg.Debug),
	}
	return New(append(base, opts...)...)
}

// AttributeName returns the attribute carrying tag identifiers
func (e *Engine) AttributeName() string {
	return e.attributeName
}

// Metrics returns the engine's collector
func (e *Engine) Metrics() *metrics.Collector {
	return e.metrics
}

// Snapshot returns the cached tree for path, if any
func (e *Engine) Snapshot(path string) (*dom.Tree, bool) {
	entry, ok := e.cache.Get(path)
	if !ok || entry.Tree == nil {
		return nil, false
	}
	return entry.Tree, true
}

// Documents lists the paths with a cached tree
func (e *Engine) Documents() []string {
	return e.cache.Paths()
}

// RemoveDocument forgets a document that is being closed or deleted
func (e *Engine) RemoveDocument(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache.Remove(path)
}

// ResetCache forgets every document
func (e *Engine) ResetCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache.Reset()
}

func (e *Engine) registry(ed Editor) *marker.Registry {
	return marker.NewRegistry(ed.Markers(), e.logger)
}

func (e *Engine) debugf(format string, args ...any) {
	if e.debug {
		e.logger.Printf(format, args...)
	}
}
