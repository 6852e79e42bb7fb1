package rendertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livefir/rendertest/frame"
)

// newContext creates a TestContext disposed at the end of the test.
func newContext(t *testing.T, opts ...Option) *TestContext {
	t.Helper()
	tc, err := NewTestContext(opts...)
	require.NoError(t, err)
	t.Cleanup(tc.Dispose)
	return tc
}

func render(t *testing.T, tc *TestContext, c Component, params Parameters) *RenderedComponent {
	t.Helper()
	rc, err := tc.Render(context.Background(), c, params)
	require.NoError(t, err)
	return rc
}

type heading struct{}

func (heading) Render(b *frame.Builder) {
	b.OpenElement(0, "h1")
	b.AddAttribute(1, "id", "header")
	b.AddAttribute(2, "attr", "")
	b.AddText(3, "Hello world")
	b.CloseElement()
}

type counter struct {
	ComponentBase
	count int
}

func (c *counter) Render(b *frame.Builder) {
	b.OpenElement(0, "div")
	b.AddAttribute(1, "class", "counter")
	b.OpenElement(2, "p")
	b.AddText(3, fmt.Sprintf("Count: %d", c.count))
	b.CloseElement()
	b.OpenElement(4, "button")
	b.AddAttribute(5, "id", "inc")
	b.AddEventHandler(6, "click", func(context.Context, frame.EventArgs) error {
		c.count++
		return nil
	})
	b.AddText(7, "+")
	b.CloseElement()
	b.OpenElement(8, "button")
	b.AddAttribute(9, "id", "noop")
	b.AddText(10, "?")
	b.CloseElement()
	b.CloseElement()
}

// bubbling records the order in which nested click handlers run.
type bubbling struct {
	calls []string
	fail  error
}

func (c *bubbling) Render(b *frame.Builder) {
	b.OpenElement(0, "section")
	b.AddEventHandler(1, "click", func(context.Context, frame.EventArgs) error {
		c.calls = append(c.calls, "section")
		return nil
	})
	b.OpenElement(2, "button")
	b.AddEventHandler(3, "click", func(context.Context, frame.EventArgs) error {
		c.calls = append(c.calls, "button")
		return c.fail
	})
	b.AddText(4, fmt.Sprintf("%d", len(c.calls)))
	b.CloseElement()
	b.CloseElement()
}

type greeting struct {
	name string
}

func (g *greeting) SetParameters(p Parameters) error {
	g.name = p.String("Name")
	return nil
}

func (g *greeting) Render(b *frame.Builder) {
	b.OpenElement(0, "p")
	b.AddText(1, "Hello, "+g.name+"!")
	b.CloseElement()
}

type echo struct {
	value string
}

func (e *echo) Render(b *frame.Builder) {
	b.OpenElement(0, "input")
	b.AddAttribute(1, "name", "q")
	b.AddEventHandler(2, "input", func(_ context.Context, args frame.EventArgs) error {
		e.value, _ = args.Value.(string)
		return nil
	})
	b.CloseElement()
	b.OpenElement(3, "p")
	b.AddText(4, e.value)
	b.CloseElement()
}

type todoList struct {
	items []string
}

func (l *todoList) SetParameters(p Parameters) error {
	if items, ok := p["Items"].([]string); ok {
		l.items = items
	}
	return nil
}

func (l *todoList) Render(b *frame.Builder) {
	b.OpenElement(0, "ul")
	for _, it := range l.items {
		b.OpenComponent(1, "TodoItem", func() any { return &todoItem{} })
		b.SetKey(it)
		b.AddParameter(2, "Text", it)
		b.CloseComponent()
	}
	b.CloseElement()
}

type todoItem struct {
	text     string
	disposed bool
}

func (i *todoItem) SetParameters(p Parameters) error {
	i.text = p.String("Text")
	return nil
}

func (i *todoItem) Render(b *frame.Builder) {
	b.OpenElement(0, "li")
	b.AddText(1, i.text)
	b.CloseElement()
}

func (i *todoItem) Dispose() {
	i.disposed = true
}

type fixedItem struct{}

func (fixedItem) Render(b *frame.Builder) {
	b.OpenElement(0, "li")
	b.AddText(1, "fixed")
	b.CloseElement()
}

// loader flips to its loaded state from a background goroutine.
type loader struct {
	ComponentBase
	mu     sync.Mutex
	loaded bool
}

func (l *loader) Render(b *frame.Builder) {
	l.mu.Lock()
	loaded := l.loaded
	l.mu.Unlock()

	b.OpenElement(0, "p")
	if loaded {
		b.AddAttribute(1, "id", "done")
		b.AddText(2, "Loaded")
	} else {
		b.AddText(3, "Loading...")
	}
	b.CloseElement()
}

func (l *loader) finishAfter(d time.Duration) {
	go func() {
		time.Sleep(d)
		l.mu.Lock()
		l.loaded = true
		l.mu.Unlock()
		l.StateHasChanged()
	}()
}

type missingChild struct{}

func (missingChild) Render(b *frame.Builder) {
	b.OpenComponent(0, "Missing", nil)
	b.CloseComponent()
}

type panicking struct{}

func (panicking) Render(*frame.Builder) {
	panic(errors.New("render exploded"))
}

// restless asks for another render every time it renders.
type restless struct {
	ComponentBase
}

func (r *restless) Render(b *frame.Builder) {
	b.AddText(0, "again")
	r.StateHasChanged()
}
