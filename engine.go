package rendertest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/livefir/rendertest/frame"
	"github.com/livefir/rendertest/internal/dispatch"
	"github.com/livefir/rendertest/internal/dom"
	"github.com/livefir/rendertest/internal/liveness"
	"github.com/livefir/rendertest/internal/mapper"
	"github.com/livefir/rendertest/internal/metrics"
)

// instance is one live component.
type instance struct {
	id        frame.ComponentID
	parent    frame.ComponentID
	typeName  string
	component Component
	params    Parameters
	renders   int
	handle    *Handle
}

// engine drives components: it renders them into frames, feeds the frames
// to the mapper and publishes one render event per pass. Every method that
// renders runs on the coordinator loop.
type engine struct {
	logger      *zap.Logger
	tree        *dom.Tree
	mapper      *mapper.Mapper
	coordinator *dispatch.Coordinator
	factories   factoryChain
	metrics     *metrics.Collector
	maxPasses   int

	mu        sync.Mutex
	instances map[frame.ComponentID]*instance
	pending   map[frame.ComponentID]struct{}
	nextID    frame.ComponentID
}

func newEngine(cfg Config, logger *zap.Logger, tree *dom.Tree, coordinator *dispatch.Coordinator, collector *metrics.Collector) *engine {
	e := &engine{
		logger:      logger.Named("engine"),
		tree:        tree,
		coordinator: coordinator,
		factories:   factoryChain(cfg.Factories),
		metrics:     collector,
		maxPasses:   cfg.MaxRenderPasses,
		instances:   make(map[frame.ComponentID]*instance),
		pending:     make(map[frame.ComponentID]struct{}),
	}
	e.mapper = mapper.New(tree, e, mapper.WithLogger(logger.Named("mapper")))
	return e
}

// Activate implements mapper.Activator. It runs under the tree write lock.
func (e *engine) Activate(parent frame.ComponentID, typeName string, create func() any, params []frame.Frame) (frame.ComponentID, error) {
	c, err := e.factories.create(typeName, create)
	if err != nil {
		return 0, err
	}
	inst := e.register(parent, typeName, c)
	if err := e.setParameters(inst, paramsFromFrames(params)); err != nil {
		e.forget(inst.id)
		return 0, err
	}
	e.markPending(inst.id)
	e.logger.Debug("component activated",
		zap.Int("component", int(inst.id)),
		zap.Int("parent", int(parent)),
		zap.String("type", typeName))
	return inst.id, nil
}

// Update implements mapper.Activator. Children whose parameters are all
// unchanged primitives are not re-rendered.
func (e *engine) Update(id frame.ComponentID, frames []frame.Frame) error {
	inst := e.lookup(id)
	if inst == nil {
		return fmt.Errorf("%w: %d", ErrComponentNotFound, id)
	}
	params := paramsFromFrames(frames)
	e.mu.Lock()
	unchanged := inst.params.equalTo(params)
	e.mu.Unlock()
	if unchanged {
		return nil
	}
	if err := e.setParameters(inst, params); err != nil {
		return err
	}
	e.markPending(id)
	return nil
}

// Dispose implements mapper.Activator.
func (e *engine) Dispose(id frame.ComponentID) {
	inst := e.forget(id)
	if inst == nil {
		return
	}
	if d, ok := inst.component.(Disposer); ok {
		if err := guard(d.Dispose); err != nil {
			e.logger.Warn("component dispose failed", zap.Int("component", int(id)), zap.Error(err))
		}
	}
	e.logger.Debug("component disposed", zap.Int("component", int(id)), zap.String("type", inst.typeName))
}

func (e *engine) register(parent frame.ComponentID, typeName string, c Component) *instance {
	e.mu.Lock()
	e.nextID++
	inst := &instance{id: e.nextID, parent: parent, typeName: typeName, component: c}
	inst.handle = &Handle{engine: e, id: inst.id}
	e.instances[inst.id] = inst
	e.mu.Unlock()

	if a, ok := c.(Attacher); ok {
		a.Attach(inst.handle)
	}
	return inst
}

func (e *engine) forget(id frame.ComponentID) *instance {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[id]
	if !ok {
		return nil
	}
	delete(e.instances, id)
	delete(e.pending, id)
	return inst
}

func (e *engine) lookup(id frame.ComponentID) *instance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instances[id]
}

func (e *engine) renderCount(id frame.ComponentID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if inst, ok := e.instances[id]; ok {
		return inst.renders
	}
	return 0
}

func (e *engine) setParameters(inst *instance, params Parameters) error {
	if params == nil {
		params = Parameters{}
	}
	if r, ok := inst.component.(ParameterReceiver); ok {
		var err error
		if perr := guard(func() { err = r.SetParameters(params) }); perr != nil {
			err = perr
		}
		if err != nil {
			return fmt.Errorf("set parameters of %s: %w", inst.typeName, err)
		}
	}
	e.mu.Lock()
	inst.params = params
	e.mu.Unlock()
	return nil
}

func (e *engine) markPending(id frame.ComponentID) {
	e.mu.Lock()
	e.pending[id] = struct{}{}
	e.mu.Unlock()
}

func (e *engine) takePending() []frame.ComponentID {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]frame.ComponentID, 0, len(e.pending))
	for id := range e.pending {
		ids = append(ids, id)
	}
	e.pending = make(map[frame.ComponentID]struct{})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// requestRender marks id and schedules a flush from any goroutine.
func (e *engine) requestRender(id frame.ComponentID) {
	e.markPending(id)
	e.coordinator.Dispatch(e.flush)
}

func (e *engine) invokeAsync(fn func(ctx context.Context) error) <-chan error {
	return e.coordinator.Dispatch(func(ctx context.Context) error {
		err := fn(ctx)
		return errors.Join(err, e.flush(ctx))
	})
}

// flush renders pending components until none are left, then publishes the
// pass. Children activated during a pass render in the next round.
func (e *engine) flush(ctx context.Context) error {
	var (
		rendered []frame.ComponentID
		err      error
	)
	for round := 0; ; round++ {
		ids := e.takePending()
		if len(ids) == 0 {
			break
		}
		if round >= e.maxPasses {
			err = fmt.Errorf("%w: still pending after %d passes: %v", ErrRenderLoop, e.maxPasses, ids)
			break
		}
		if err = ctx.Err(); err != nil {
			break
		}
		for _, id := range ids {
			if err = e.renderOne(id); err != nil {
				break
			}
			rendered = append(rendered, id)
		}
		if err != nil {
			break
		}
	}

	if err != nil {
		e.takePending()
		e.metrics.IncrementRenderFailure()
		e.logger.Warn("render pass failed", zap.Error(err))
	}
	if len(rendered) == 0 && err == nil {
		return nil
	}
	e.coordinator.Publish(rendered, err)
	return err
}

func (e *engine) renderOne(id frame.ComponentID) error {
	inst := e.lookup(id)
	if inst == nil {
		return nil
	}
	b := frame.NewBuilder()
	if err := guard(func() { inst.component.Render(b) }); err != nil {
		return fmt.Errorf("render %s (component %d): %w", inst.typeName, id, err)
	}
	result, err := e.mapper.ApplyRenderBatch(id, b.Frames())
	if err != nil {
		return fmt.Errorf("apply frames of %s (component %d): %w", inst.typeName, id, err)
	}

	e.mu.Lock()
	inst.renders++
	e.mu.Unlock()
	e.metrics.IncrementComponentRender()
	e.metrics.RecordRenderBatch(len(result.Mutations))
	return nil
}

// mountRoot registers c as a root component and renders it.
func (e *engine) mountRoot(ctx context.Context, c Component, typeName string, params Parameters) (frame.ComponentID, error) {
	var id frame.ComponentID
	err := e.coordinator.Invoke(ctx, func(ctx context.Context) error {
		inst := e.register(0, typeName, c)
		id = inst.id
		if err := e.mapper.AddRoot(id, typeName); err != nil {
			return err
		}
		if err := e.setParameters(inst, params); err != nil {
			return err
		}
		e.markPending(id)
		return e.flush(ctx)
	})
	return id, err
}

// rerender renders id again, first passing params when not nil.
func (e *engine) rerender(ctx context.Context, id frame.ComponentID, params Parameters) error {
	return e.coordinator.Invoke(ctx, func(ctx context.Context) error {
		inst := e.lookup(id)
		if inst == nil {
			return fmt.Errorf("%w: %d", ErrComponentNotFound, id)
		}
		if params != nil {
			if err := e.setParameters(inst, params); err != nil {
				return err
			}
		}
		e.markPending(id)
		return e.flush(ctx)
	})
}

// triggerEvent runs every handler bound to the event on target and its
// ancestors, innermost first, then re-renders their components.
func (e *engine) triggerEvent(ctx context.Context, target *liveness.Element, args frame.EventArgs) error {
	event := strings.TrimPrefix(strings.ToLower(args.Type), "on")
	args.Type = event
	return e.coordinator.Invoke(ctx, func(ctx context.Context) error {
		var path []dom.Binding
		err := target.With(func(n *html.Node) error {
			path = e.tree.HandlerPath(n, event)
			return nil
		})
		if err != nil {
			return err
		}
		if len(path) == 0 {
			return &NoEventHandlerError{Event: event, Target: target.String()}
		}

		e.metrics.IncrementEventDispatched()
		e.logger.Debug("dispatching event",
			zap.String("event", event),
			zap.String("target", target.String()),
			zap.Int("handlers", len(path)))

		var errs []error
		for _, b := range path {
			var herr error
			if perr := guard(func() { herr = b.Handler(ctx, args) }); perr != nil {
				herr = perr
			}
			if herr != nil {
				errs = append(errs, fmt.Errorf("%s handler of component %d: %w", event, b.Component, herr))
			}
			e.markPending(b.Component)
		}
		errs = append(errs, e.flush(ctx))
		return errors.Join(errs...)
	})
}

// disposeAll tears down every component after the loop has stopped.
func (e *engine) disposeAll(roots []frame.ComponentID) {
	for _, id := range roots {
		if _, err := e.mapper.RemoveRoot(id); err != nil {
			e.logger.Debug("root already removed", zap.Int("component", int(id)), zap.Error(err))
		}
		e.Dispose(id)
	}
}

func paramsFromFrames(frames []frame.Frame) Parameters {
	params := make(Parameters, len(frames))
	for _, f := range frames {
		switch {
		case f.Handler != nil:
			params[f.Name] = f.Handler
		case f.Param != nil:
			params[f.Name] = f.Param
		default:
			params[f.Name] = f.Value
		}
	}
	return params
}

// guard runs fn and converts a panic into an error.
func guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &dispatch.PanicError{Value: r}
		}
	}()
	fn()
	return nil
}
