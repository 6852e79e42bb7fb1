// Package rendertest renders components into an inspectable node tree for
// tests. A TestContext owns one tree and one render loop; components are
// rendered into it, queried with CSS selectors or XPath, driven with
// simulated events and compared against expected markup semantically.
package rendertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/livefir/rendertest/frame"
	"github.com/livefir/rendertest/internal/diff"
	"github.com/livefir/rendertest/internal/dispatch"
	"github.com/livefir/rendertest/internal/dom"
	"github.com/livefir/rendertest/internal/events"
	"github.com/livefir/rendertest/internal/metrics"
)

// TestContext is the per-test harness. Nothing it owns is shared with
// other contexts except an explicitly injected metrics collector.
type TestContext struct {
	cfg         Config
	logger      *zap.Logger
	bus         *events.Bus
	coordinator *dispatch.Coordinator
	tree        *dom.Tree
	engine      *engine
	differ      *diff.HTMLDiffer
	metrics     *metrics.Collector

	mu      sync.Mutex
	roots   []frame.ComponentID
	once    sync.Once
	closing bool
}

// NewTestContext creates a context from the defaults and opts.
func NewTestContext(opts ...Option) (*TestContext, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := cfg.buildLogger()
	if err != nil {
		return nil, err
	}
	collector := cfg.Metrics
	if collector == nil {
		collector = metrics.NewCollector()
	}

	bus := events.NewBus()
	coordinator := dispatch.New(bus,
		dispatch.WithLogger(logger.Named("coordinator")),
		dispatch.WithDefaultTimeout(cfg.DefaultWaitTimeout),
		dispatch.WithMetrics(collector))
	tree := dom.NewTree()

	tc := &TestContext{
		cfg:         cfg,
		logger:      logger,
		bus:         bus,
		coordinator: coordinator,
		tree:        tree,
		engine:      newEngine(cfg, logger, tree, coordinator, collector),
		differ:      diff.NewHTMLDiffer(cfg.differOptions()...),
		metrics:     collector,
	}
	collector.IncrementSubjectCreated()
	logger.Debug("test context created",
		zap.Duration("wait_timeout", cfg.DefaultWaitTimeout),
		zap.Int("factories", len(cfg.Factories)))
	return tc, nil
}

// Render mounts c as a root component, renders it and everything it
// contains, and returns a view of its output.
func (tc *TestContext) Render(ctx context.Context, c Component, params Parameters) (*RenderedComponent, error) {
	tc.mu.Lock()
	if tc.closing {
		tc.mu.Unlock()
		return nil, ErrDisposed
	}
	tc.mu.Unlock()

	typeName := componentTypeName(c)
	id, err := tc.engine.mountRoot(ctx, c, typeName, params)
	if id != 0 {
		tc.mu.Lock()
		tc.roots = append(tc.roots, id)
		tc.mu.Unlock()
	}
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", typeName, err)
	}
	return newRenderedComponent(tc, id, typeName), nil
}

// Dispose stops the render loop, cancels pending waits and disposes every
// component. It is safe to call more than once.
func (tc *TestContext) Dispose() {
	tc.once.Do(func() {
		tc.mu.Lock()
		tc.closing = true
		roots := append([]frame.ComponentID(nil), tc.roots...)
		tc.mu.Unlock()

		tc.coordinator.Dispose()
		<-tc.coordinator.Done()
		tc.engine.disposeAll(roots)
		tc.metrics.IncrementSubjectDisposed()
		tc.logger.Debug("test context disposed", zap.Int("roots", len(roots)))
		_ = tc.logger.Sync()
	})
}

// Config returns the effective configuration.
func (tc *TestContext) Config() Config {
	return tc.cfg
}

// Metrics returns the collector counting this context's activity.
func (tc *TestContext) Metrics() *metrics.Collector {
	return tc.metrics
}

// Differ returns the markup differ configured for this context.
func (tc *TestContext) Differ() *diff.HTMLDiffer {
	return tc.differ
}

// CompareMarkup compares two markup strings with this context's settings.
func (tc *TestContext) CompareMarkup(expected, actual string) (*ComparisonResult, error) {
	result, err := tc.differ.Compare(expected, actual)
	if err != nil {
		return nil, err
	}
	tc.metrics.RecordComparison(result.IsMatch)
	return result, nil
}

// Markup returns everything rendered into the context.
func (tc *TestContext) Markup() string {
	var out string
	tc.tree.Read(func() { out = dom.Markup(tc.tree.Root()) })
	return out
}

func componentTypeName(c Component) string {
	if named, ok := c.(interface{ TypeName() string }); ok {
		return named.TypeName()
	}
	name := fmt.Sprintf("%T", c)
	name = strings.TrimPrefix(name, "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
