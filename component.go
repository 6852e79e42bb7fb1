package rendertest

import (
	"context"

	"github.com/livefir/rendertest/frame"
)

// Component is anything that can describe its output as render frames.
// Render is called on the context's render loop; it must not block.
type Component interface {
	Render(b *frame.Builder)
}

// ParameterReceiver is implemented by components that accept parameters.
// SetParameters runs before every render triggered by a parameter change.
type ParameterReceiver interface {
	SetParameters(params Parameters) error
}

// Attacher is implemented by components that want a Handle to request
// their own re-renders.
type Attacher interface {
	Attach(h *Handle)
}

// Disposer is implemented by components that release resources when they
// stop being rendered.
type Disposer interface {
	Dispose()
}

// Parameters are the named values passed to a component.
type Parameters map[string]any

// Get returns a parameter value.
func (p Parameters) Get(name string) (any, bool) {
	v, ok := p[name]
	return v, ok
}

// String returns a string parameter, or "" when absent or not a string.
func (p Parameters) String(name string) string {
	s, _ := p[name].(string)
	return s
}

// Int returns an int parameter, or 0 when absent or not an int.
func (p Parameters) Int(name string) int {
	n, _ := p[name].(int)
	return n
}

// Handler returns an event handler parameter.
func (p Parameters) Handler(name string) frame.EventHandler {
	switch h := p[name].(type) {
	case frame.EventHandler:
		return h
	case func(context.Context, frame.EventArgs) error:
		return h
	}
	return nil
}

// equalTo reports whether p and other hold the same primitive values.
// Values of any other type count as changed.
func (p Parameters) equalTo(other Parameters) bool {
	if len(p) != len(other) {
		return false
	}
	for name, v := range p {
		w, ok := other[name]
		if !ok || !samePrimitive(v, w) {
			return false
		}
	}
	return true
}

func samePrimitive(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case int:
		y, ok := b.(int)
		return ok && x == y
	case int64:
		y, ok := b.(int64)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	default:
		return false
	}
}

// Handle lets a component talk to the render loop that owns it.
type Handle struct {
	engine *engine
	id     frame.ComponentID
}

// ID returns the component id.
func (h *Handle) ID() frame.ComponentID {
	return h.id
}

// StateHasChanged schedules a re-render of the component. It is safe to
// call from any goroutine, including event handlers.
func (h *Handle) StateHasChanged() {
	h.engine.requestRender(h.id)
}

// InvokeAsync runs fn on the render loop, then renders whatever it marked
// as changed. The channel receives the combined result. Waiting on it from
// inside an event handler deadlocks.
func (h *Handle) InvokeAsync(fn func(ctx context.Context) error) <-chan error {
	return h.engine.invokeAsync(fn)
}

// ComponentBase can be embedded to get a Handle.
type ComponentBase struct {
	handle *Handle
}

// Attach implements Attacher.
func (c *ComponentBase) Attach(h *Handle) {
	c.handle = h
}

// StateHasChanged schedules a re-render once the component is attached.
func (c *ComponentBase) StateHasChanged() {
	if c.handle != nil {
		c.handle.StateHasChanged()
	}
}

// InvokeAsync is Handle.InvokeAsync, failing with ErrNotAttached before
// the component is attached.
func (c *ComponentBase) InvokeAsync(fn func(ctx context.Context) error) <-chan error {
	if c.handle == nil {
		ch := make(chan error, 1)
		ch <- ErrNotAttached
		return ch
	}
	return c.handle.InvokeAsync(fn)
}
