// Package dispatch serialises rendering, event dispatch and parameter
// updates for one test subject and lets callers wait for render outcomes.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/livefir/rendertest/frame"
	"github.com/livefir/rendertest/internal/events"
	"github.com/livefir/rendertest/internal/metrics"
)

// State is the coordinator lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRendering
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRendering:
		return "rendering"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// DefaultTimeout is used by WaitUntil when neither the call nor the
// coordinator sets one.
const DefaultTimeout = time.Second

// Action is work run on the coordinator's loop.
type Action func(ctx context.Context) error

// Predicate is evaluated by WaitUntil after every render.
type Predicate func() (bool, error)

// WaitOptions tune a single WaitUntil call.
type WaitOptions struct {
	// Timeout overrides the coordinator default when positive.
	Timeout time.Duration
	// Persistent keeps waiting after a predicate error; the last error is
	// reported as the cause if the wait times out.
	Persistent bool
	// Description names the awaited condition in errors and logs.
	Description string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDefaultTimeout sets the timeout applied to waits that do not set one.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

type task struct {
	action Action
	result chan error
}

type loopKey struct{}

// Coordinator runs actions one at a time on its own goroutine and publishes
// render events on the bus it was created with.
type Coordinator struct {
	bus     *events.Bus
	logger  *zap.Logger
	timeout time.Duration
	metrics *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	queue  []task
	closed bool
	wake   chan struct{}

	state    atomic.Int32
	seq      atomic.Uint64
	pubMu    sync.Mutex
	disposed chan struct{}
	done     chan struct{}
}

// New starts a coordinator publishing on bus.
func New(bus *events.Bus, opts ...Option) *Coordinator {
	c := &Coordinator{
		bus:      bus,
		logger:   zap.NewNop(),
		timeout:  DefaultTimeout,
		wake:     make(chan struct{}, 1),
		disposed: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.WithValue(context.Background(), loopKey{}, c))
	go c.run()
	return c
}

// Bus returns the bus render events are published on.
func (c *Coordinator) Bus() *events.Bus {
	return c.bus
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// OnLoop reports whether ctx belongs to an action running on this
// coordinator's loop.
func (c *Coordinator) OnLoop(ctx context.Context) bool {
	owner, _ := ctx.Value(loopKey{}).(*Coordinator)
	return owner == c
}

// Dispatch queues action and returns a channel that receives its result
// once it and any renders it triggered have finished.
func (c *Coordinator) Dispatch(action Action) <-chan error {
	result := make(chan error, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		result <- ErrDisposed
		return result
	}
	c.queue = append(c.queue, task{action: action, result: result})
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return result
}

// Invoke runs action on the loop and waits for it. Called from inside an
// action it runs inline, so actions may invoke further work without
// deadlocking.
func (c *Coordinator) Invoke(ctx context.Context, action Action) error {
	if c.OnLoop(ctx) {
		return c.execute(ctx, action)
	}
	select {
	case err := <-c.Dispatch(action):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish announces a completed render pass. It must be called from an
// action so events follow batch order.
func (c *Coordinator) Publish(components []frame.ComponentID, err error) events.RenderEvent {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	e := events.NewRenderEvent(c.seq.Add(1), components, err)
	c.logger.Debug("render published",
		zap.Uint64("sequence", e.Sequence),
		zap.Int("components", len(e.Components)),
		zap.Error(err))
	c.bus.Publish(e)
	return e
}

// Sequence returns the sequence number of the last published event.
func (c *Coordinator) Sequence() uint64 {
	return c.seq.Load()
}

// WaitUntil blocks until pred holds after a render, the timeout elapses,
// pred fails, ctx ends or the coordinator is disposed. pred is checked once
// immediately, then after every published render. It must not be called
// from inside an action.
func (c *Coordinator) WaitUntil(ctx context.Context, pred Predicate, opts WaitOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	c.metrics.IncrementWaitStarted()

	if c.OnLoop(ctx) {
		return c.finishWait(opts, &WaitError{Kind: ErrWaitCanceled, Description: opts.Description,
			Cause: errors.New("cannot wait from inside a render action")})
	}

	select {
	case <-c.disposed:
		return c.finishWait(opts, &WaitError{Kind: ErrWaitCanceled, Description: opts.Description, Cause: ErrDisposed})
	default:
	}

	var (
		mu       sync.Mutex
		finished bool
		lastErr  error
		result   = make(chan error, 1)
	)
	finish := func(err error) {
		finished = true
		result <- err
	}
	check := func() {
		mu.Lock()
		defer mu.Unlock()
		if finished {
			return
		}
		ok, err := evaluate(pred)
		switch {
		case err != nil && opts.Persistent:
			lastErr = err
		case err != nil:
			finish(&WaitError{Kind: ErrPredicateFailed, Description: opts.Description, Cause: err})
		case ok:
			finish(nil)
		}
	}

	sub := c.bus.Subscribe(func(e events.RenderEvent) {
		if e.Err != nil {
			mu.Lock()
			if !finished {
				finish(&WaitError{Kind: ErrRenderFailed, Description: opts.Description, Cause: e.Err})
			}
			mu.Unlock()
			return
		}
		check()
	})
	defer sub.Close()

	check()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-result:
	case <-timer.C:
		err = c.abandon(&mu, &finished, result, func() error {
			return &WaitError{Kind: ErrWaitTimeout, Timeout: timeout, Description: opts.Description, Cause: lastErr}
		})
	case <-ctx.Done():
		err = c.abandon(&mu, &finished, result, func() error {
			return &WaitError{Kind: ErrWaitCanceled, Description: opts.Description, Cause: ctx.Err()}
		})
	case <-c.disposed:
		err = c.abandon(&mu, &finished, result, func() error {
			return &WaitError{Kind: ErrWaitCanceled, Description: opts.Description, Cause: ErrDisposed}
		})
	}
	return c.finishWait(opts, err)
}

// abandon ends a wait from the caller side unless a result was produced
// concurrently, in which case that result wins.
func (c *Coordinator) abandon(mu *sync.Mutex, finished *bool, result chan error, build func() error) error {
	mu.Lock()
	defer mu.Unlock()
	if *finished {
		return <-result
	}
	*finished = true
	return build()
}

func (c *Coordinator) finishWait(opts WaitOptions, err error) error {
	switch {
	case err == nil:
		c.metrics.IncrementWaitSucceeded()
	case errors.Is(err, ErrWaitTimeout):
		c.metrics.IncrementWaitTimeout()
		c.logger.Debug("wait timed out", zap.String("condition", opts.Description), zap.Error(err))
	default:
		c.metrics.IncrementWaitFailure()
		c.logger.Debug("wait failed", zap.String("condition", opts.Description), zap.Error(err))
	}
	return err
}

// Dispose stops the loop. Queued actions fail with ErrDisposed, pending
// waits are canceled and the running action, if any, sees its context
// canceled. Dispose does not wait for the running action; use Done.
func (c *Coordinator) Dispose() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.queue
	c.queue = nil
	c.mu.Unlock()

	c.state.Store(int32(StateDisposed))
	for _, t := range pending {
		t.result <- ErrDisposed
	}
	close(c.disposed)
	c.cancel()
	c.logger.Debug("coordinator disposed", zap.Int("dropped", len(pending)))
}

// Done is closed once the loop has exited after Dispose.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Disposed is closed as soon as Dispose is called.
func (c *Coordinator) Disposed() <-chan struct{} {
	return c.disposed
}

func (c *Coordinator) run() {
	defer close(c.done)
	for {
		select {
		case <-c.wake:
		case <-c.disposed:
			return
		}
		for {
			t, ok := c.next()
			if !ok {
				break
			}
			c.state.CompareAndSwap(int32(StateIdle), int32(StateRendering))
			t.result <- c.execute(c.ctx, t.action)
			c.state.CompareAndSwap(int32(StateRendering), int32(StateIdle))
		}
	}
}

func (c *Coordinator) next() (task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return task{}, false
	}
	t := c.queue[0]
	c.queue = c.queue[1:]
	return t, true
}

func (c *Coordinator) execute(ctx context.Context, action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("action panicked", zap.Any("panic", r))
			err = &PanicError{Value: r}
		}
	}()
	return action(ctx)
}

func evaluate(pred Predicate) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return pred()
}
