package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector counts render-harness activity. All methods are safe for
// concurrent use and a nil *Collector ignores every call.
type Collector struct {
	harnessMetrics *HarnessMetrics
	customCounters map[string]*int64
	mu             sync.RWMutex
	startTime      time.Time
}

// HarnessMetrics is a snapshot of the collected counters.
type HarnessMetrics struct {
	// Test subjects
	SubjectsCreated       int64 `json:"subjects_created"`
	SubjectsDisposed      int64 `json:"subjects_disposed"`
	ActiveSubjects        int64 `json:"active_subjects"`
	MaxConcurrentSubjects int64 `json:"max_concurrent_subjects"`

	// Rendering
	RenderBatches    int64 `json:"render_batches"`
	ComponentRenders int64 `json:"component_renders"`
	NodeMutations    int64 `json:"node_mutations"`
	RenderFailures   int64 `json:"render_failures"`

	// Interaction
	EventsDispatched int64 `json:"events_dispatched"`

	// Waiting
	WaitsStarted   int64 `json:"waits_started"`
	WaitsSucceeded int64 `json:"waits_succeeded"`
	WaitTimeouts   int64 `json:"wait_timeouts"`
	WaitFailures   int64 `json:"wait_failures"`

	// Markup comparison
	Comparisons int64 `json:"comparisons"`
	Mismatches  int64 `json:"mismatches"`

	StartTime time.Time     `json:"start_time"`
	Uptime    time.Duration `json:"uptime"`
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	now := time.Now()
	return &Collector{
		harnessMetrics: &HarnessMetrics{StartTime: now},
		customCounters: make(map[string]*int64),
		startTime:      now,
	}
}

func (c *Collector) add(field *int64, delta int64) int64 {
	return atomic.AddInt64(field, delta)
}

// IncrementSubjectCreated records a new test subject.
func (c *Collector) IncrementSubjectCreated() {
	if c == nil {
		return
	}
	m := c.harnessMetrics
	c.add(&m.SubjectsCreated, 1)
	active := c.add(&m.ActiveSubjects, 1)

	for {
		max := atomic.LoadInt64(&m.MaxConcurrentSubjects)
		if active <= max {
			break
		}
		if atomic.CompareAndSwapInt64(&m.MaxConcurrentSubjects, max, active) {
			break
		}
	}
}

// IncrementSubjectDisposed records a disposed test subject.
func (c *Collector) IncrementSubjectDisposed() {
	if c == nil {
		return
	}
	c.add(&c.harnessMetrics.SubjectsDisposed, 1)
	c.add(&c.harnessMetrics.ActiveSubjects, -1)
}

// RecordRenderBatch records one applied batch and its node mutations.
func (c *Collector) RecordRenderBatch(mutations int) {
	if c == nil {
		return
	}
	c.add(&c.harnessMetrics.RenderBatches, 1)
	c.add(&c.harnessMetrics.NodeMutations, int64(mutations))
}

// IncrementComponentRender records one component render.
func (c *Collector) IncrementComponentRender() {
	if c == nil {
		return
	}
	c.add(&c.harnessMetrics.ComponentRenders, 1)
}

// IncrementRenderFailure records a failed render pass.
func (c *Collector) IncrementRenderFailure() {
	if c == nil {
		return
	}
	c.add(&c.harnessMetrics.RenderFailures, 1)
}

// IncrementEventDispatched records a simulated DOM event.
func (c *Collector) IncrementEventDispatched() {
	if c == nil {
		return
	}
	c.add(&c.harnessMetrics.EventsDispatched, 1)
}

// IncrementWaitStarted records the start of a wait.
func (c *Collector) IncrementWaitStarted() {
	if c == nil {
		return
	}
	c.add(&c.harnessMetrics.WaitsStarted, 1)
}

// IncrementWaitSucceeded records a wait whose condition was met.
func (c *Collector) IncrementWaitSucceeded() {
	if c == nil {
		return
	}
	c.add(&c.harnessMetrics.WaitsSucceeded, 1)
}

// IncrementWaitTimeout records a wait that ran out of time.
func (c *Collector) IncrementWaitTimeout() {
	if c == nil {
		return
	}
	c.add(&c.harnessMetrics.WaitTimeouts, 1)
}

// IncrementWaitFailure records a wait ended by a predicate error,
// cancellation or render failure.
func (c *Collector) IncrementWaitFailure() {
	if c == nil {
		return
	}
	c.add(&c.harnessMetrics.WaitFailures, 1)
}

// RecordComparison records a markup comparison.
func (c *Collector) RecordComparison(match bool) {
	if c == nil {
		return
	}
	c.add(&c.harnessMetrics.Comparisons, 1)
	if !match {
		c.add(&c.harnessMetrics.Mismatches, 1)
	}
}

// IncrementCustomCounter increments a custom named counter
func (c *Collector) IncrementCustomCounter(name string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, exists := c.customCounters[name]; exists {
		atomic.AddInt64(counter, 1)
	} else {
		var newCounter int64 = 1
		c.customCounters[name] = &newCounter
	}
}

// GetMetrics returns current harness metrics
func (c *Collector) GetMetrics() HarnessMetrics {
	if c == nil {
		return HarnessMetrics{}
	}
	m := c.harnessMetrics
	c.mu.RLock()
	start := c.startTime
	c.mu.RUnlock()

	return HarnessMetrics{
		SubjectsCreated:       atomic.LoadInt64(&m.SubjectsCreated),
		SubjectsDisposed:      atomic.LoadInt64(&m.SubjectsDisposed),
		ActiveSubjects:        atomic.LoadInt64(&m.ActiveSubjects),
		MaxConcurrentSubjects: atomic.LoadInt64(&m.MaxConcurrentSubjects),
		RenderBatches:         atomic.LoadInt64(&m.RenderBatches),
		ComponentRenders:      atomic.LoadInt64(&m.ComponentRenders),
		NodeMutations:         atomic.LoadInt64(&m.NodeMutations),
		RenderFailures:        atomic.LoadInt64(&m.RenderFailures),
		EventsDispatched:      atomic.LoadInt64(&m.EventsDispatched),
		WaitsStarted:          atomic.LoadInt64(&m.WaitsStarted),
		WaitsSucceeded:        atomic.LoadInt64(&m.WaitsSucceeded),
		WaitTimeouts:          atomic.LoadInt64(&m.WaitTimeouts),
		WaitFailures:          atomic.LoadInt64(&m.WaitFailures),
		Comparisons:           atomic.LoadInt64(&m.Comparisons),
		Mismatches:            atomic.LoadInt64(&m.Mismatches),
		StartTime:             start,
		Uptime:                time.Since(start),
	}
}

// GetCustomCounters returns all custom counters
func (c *Collector) GetCustomCounters() map[string]int64 {
	result := make(map[string]int64)
	if c == nil {
		return result
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, counter := range c.customCounters {
		result[name] = atomic.LoadInt64(counter)
	}
	return result
}

// Reset resets all metrics to zero
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.harnessMetrics
	for _, field := range []*int64{
		&m.SubjectsCreated, &m.SubjectsDisposed, &m.ActiveSubjects, &m.MaxConcurrentSubjects,
		&m.RenderBatches, &m.ComponentRenders, &m.NodeMutations, &m.RenderFailures,
		&m.EventsDispatched,
		&m.WaitsStarted, &m.WaitsSucceeded, &m.WaitTimeouts, &m.WaitFailures,
		&m.Comparisons, &m.Mismatches,
	} {
		atomic.StoreInt64(field, 0)
	}

	c.customCounters = make(map[string]*int64)
	c.startTime = time.Now()
}

// GetRenderFailureRate returns the percentage of render passes that failed.
func (c *Collector) GetRenderFailureRate() float64 {
	if c == nil {
		return 0.0
	}
	batches := atomic.LoadInt64(&c.harnessMetrics.RenderBatches)
	failures := atomic.LoadInt64(&c.harnessMetrics.RenderFailures)

	if batches+failures == 0 {
		return 0.0
	}
	return float64(failures) / float64(batches+failures) * 100.0
}

// GetWaitSuccessRate returns the percentage of finished waits that succeeded.
func (c *Collector) GetWaitSuccessRate() float64 {
	if c == nil {
		return 100.0
	}
	succeeded := atomic.LoadInt64(&c.harnessMetrics.WaitsSucceeded)
	total := succeeded +
		atomic.LoadInt64(&c.harnessMetrics.WaitTimeouts) +
		atomic.LoadInt64(&c.harnessMetrics.WaitFailures)

	if total == 0 {
		return 100.0 // no finished waits
	}
	return float64(succeeded) / float64(total) * 100.0
}

// GetMutationsPerBatch returns the mean number of node mutations per batch.
func (c *Collector) GetMutationsPerBatch() float64 {
	if c == nil {
		return 0.0
	}
	batches := atomic.LoadInt64(&c.harnessMetrics.RenderBatches)
	if batches == 0 {
		return 0.0
	}
	return float64(atomic.LoadInt64(&c.harnessMetrics.NodeMutations)) / float64(batches)
}
