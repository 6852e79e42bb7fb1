package rendertest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/net/html"

	"github.com/livefir/rendertest/frame"
	"github.com/livefir/rendertest/internal/dispatch"
	"github.com/livefir/rendertest/internal/dom"
	"github.com/livefir/rendertest/internal/events"
	"github.com/livefir/rendertest/internal/liveness"
)

// RenderedComponent is a view of one component's output inside a
// TestContext, including the output of its descendants.
type RenderedComponent struct {
	tc       *TestContext
	id       frame.ComponentID
	typeName string
	source   *events.Filtered
}

func newRenderedComponent(tc *TestContext, id frame.ComponentID, typeName string) *RenderedComponent {
	rc := &RenderedComponent{tc: tc, id: id, typeName: typeName}
	rc.source = events.Filter(tc.bus, func(e events.RenderEvent) bool {
		return e.Affects(rc.covers)
	})
	return rc
}

// covers reports whether component c renders inside this view.
func (rc *RenderedComponent) covers(c frame.ComponentID) bool {
	var within bool
	rc.tc.tree.Read(func() { within = rc.tc.engine.mapper.IsWithin(c, rc.id) })
	return within
}

// ID returns the component id.
func (rc *RenderedComponent) ID() frame.ComponentID {
	return rc.id
}

// TypeName returns the component type name.
func (rc *RenderedComponent) TypeName() string {
	return rc.typeName
}

// Instance returns the component, or nil once it has been disposed.
func (rc *RenderedComponent) Instance() Component {
	if inst := rc.tc.engine.lookup(rc.id); inst != nil {
		return inst.component
	}
	return nil
}

// RenderCount returns how many times the component has rendered.
func (rc *RenderedComponent) RenderCount() int {
	return rc.tc.engine.renderCount(rc.id)
}

// Events returns the render events that touch this component's output.
func (rc *RenderedComponent) Events() EventSource {
	return rc.source
}

// Nodes returns the top-level nodes of the component. They must not be
// inspected while a render may be running; use Markup or Find instead.
func (rc *RenderedComponent) Nodes() []*html.Node {
	var nodes []*html.Node
	rc.tc.tree.Read(func() { nodes = rc.tc.engine.mapper.Nodes(rc.id) })
	return nodes
}

// Markup returns the current HTML of the component.
func (rc *RenderedComponent) Markup() string {
	var out string
	rc.tc.tree.Read(func() { out = dom.Markup(rc.tc.engine.mapper.Nodes(rc.id)...) })
	return out
}

// NormalizedMarkup returns the markup in the canonical form used for
// comparisons.
func (rc *RenderedComponent) NormalizedMarkup() string {
	var out string
	rc.tc.tree.Read(func() { out = rc.tc.differ.NormalizeNodes(rc.tc.engine.mapper.Nodes(rc.id)...) })
	return out
}

func (rc *RenderedComponent) scope() []*html.Node {
	return rc.tc.engine.mapper.Nodes(rc.id)
}

// Find returns a live handle to the first element matching selector.
func (rc *RenderedComponent) Find(selector string) (*Element, error) {
	query := func() (*html.Node, error) {
		return dom.Query(rc.scope(), selector)
	}
	return rc.resolve(selector, query)
}

// FindAll returns live handles to every element matching selector. Each
// handle stays bound to its match position.
func (rc *RenderedComponent) FindAll(selector string) ([]*Element, error) {
	var (
		found []*html.Node
		err   error
	)
	rc.tc.tree.Read(func() { found, err = dom.QueryAll(rc.scope(), selector) })
	if err != nil {
		return nil, err
	}
	out := make([]*Element, len(found))
	for i, n := range found {
		i := i
		out[i] = liveness.NewResolved(rc.tc.tree, rc.source, func() (*html.Node, error) {
			matches, err := dom.QueryAll(rc.scope(), selector)
			if err != nil || i >= len(matches) {
				return nil, err
			}
			return matches[i], nil
		}, fmt.Sprintf("%s[%d]", selector, i), n)
	}
	return out, nil
}

// FindByXPath returns a live handle to the first element matching expr.
func (rc *RenderedComponent) FindByXPath(expr string) (*Element, error) {
	query := func() (*html.Node, error) {
		matches, err := dom.QueryXPath(rc.tc.tree.Root(), rc.scope(), expr)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, &dom.NotFoundError{Selector: expr}
		}
		return matches[0], nil
	}
	return rc.resolve(expr, query)
}

// FindAllByXPath returns live handles to every element matching expr.
func (rc *RenderedComponent) FindAllByXPath(expr string) ([]*Element, error) {
	var (
		found []*html.Node
		err   error
	)
	rc.tc.tree.Read(func() { found, err = dom.QueryXPath(rc.tc.tree.Root(), rc.scope(), expr) })
	if err != nil {
		return nil, err
	}
	out := make([]*Element, len(found))
	for i, n := range found {
		i := i
		out[i] = liveness.NewResolved(rc.tc.tree, rc.source, func() (*html.Node, error) {
			matches, err := dom.QueryXPath(rc.tc.tree.Root(), rc.scope(), expr)
			if err != nil || i >= len(matches) {
				return nil, err
			}
			return matches[i], nil
		}, fmt.Sprintf("%s[%d]", expr, i), n)
	}
	return out, nil
}

// resolve runs query once and wraps its result. A miss on the first run is
// a NotFoundError rather than an unavailable node.
func (rc *RenderedComponent) resolve(description string, query liveness.QueryFunc) (*Element, error) {
	var (
		node *html.Node
		err  error
	)
	rc.tc.tree.Read(func() { node, err = query() })
	if err != nil {
		return nil, err
	}
	return liveness.NewResolved(rc.tc.tree, rc.source, query, description, node), nil
}

// FindComponent returns the first descendant component of typeName.
func (rc *RenderedComponent) FindComponent(typeName string) (*RenderedComponent, error) {
	found := rc.FindComponents(typeName)
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: no %s inside %s", ErrComponentNotFound, typeName, rc.typeName)
	}
	return found[0], nil
}

// FindComponents returns every descendant component of typeName in
// activation order.
func (rc *RenderedComponent) FindComponents(typeName string) []*RenderedComponent {
	var ids []frame.ComponentID
	rc.tc.tree.Read(func() {
		m := rc.tc.engine.mapper
		for _, id := range m.Components() {
			if id == rc.id || !m.IsWithin(id, rc.id) {
				continue
			}
			if meta, ok := m.Metadata(id); ok && meta.Type == typeName {
				ids = append(ids, id)
			}
		}
	})
	out := make([]*RenderedComponent, len(ids))
	for i, id := range ids {
		out[i] = newRenderedComponent(rc.tc, id, typeName)
	}
	return out
}

// Render re-renders the component with its current parameters.
func (rc *RenderedComponent) Render(ctx context.Context) error {
	return rc.tc.engine.rerender(ctx, rc.id, nil)
}

// SetParametersAndRender passes new parameters and re-renders.
func (rc *RenderedComponent) SetParametersAndRender(ctx context.Context, params Parameters) error {
	if params == nil {
		params = Parameters{}
	}
	return rc.tc.engine.rerender(ctx, rc.id, params)
}

// TriggerEvent dispatches an event to el and returns once every handler
// has run and the resulting renders are applied.
func (rc *RenderedComponent) TriggerEvent(ctx context.Context, el *Element, args frame.EventArgs) error {
	return rc.tc.engine.triggerEvent(ctx, el, args)
}

// Click dispatches a click event.
func (rc *RenderedComponent) Click(ctx context.Context, el *Element) error {
	return rc.TriggerEvent(ctx, el, frame.EventArgs{Type: "click"})
}

// Change dispatches a change event carrying value.
func (rc *RenderedComponent) Change(ctx context.Context, el *Element, value any) error {
	return rc.TriggerEvent(ctx, el, frame.EventArgs{Type: "change", Value: value})
}

// Input dispatches an input event carrying value.
func (rc *RenderedComponent) Input(ctx context.Context, el *Element, value any) error {
	return rc.TriggerEvent(ctx, el, frame.EventArgs{Type: "input", Value: value})
}

// WaitForElement waits until selector matches and returns a handle to the
// match. A zero timeout uses the configured default.
func (rc *RenderedComponent) WaitForElement(ctx context.Context, selector string, timeout time.Duration) (*Element, error) {
	if _, err := dom.Compile(selector); err != nil {
		return nil, err
	}
	err := rc.tc.coordinator.WaitUntil(ctx, func() (bool, error) {
		var found bool
		rc.tc.tree.Read(func() {
			_, err := dom.Query(rc.scope(), selector)
			found = err == nil
		})
		return found, nil
	}, dispatch.WaitOptions{Timeout: timeout, Description: fmt.Sprintf("element %q", selector)})
	if err != nil {
		return nil, err
	}
	return rc.Find(selector)
}

// WaitForState waits until pred returns true.
func (rc *RenderedComponent) WaitForState(ctx context.Context, pred func() bool, timeout time.Duration) error {
	return rc.tc.coordinator.WaitUntil(ctx, func() (bool, error) {
		return pred(), nil
	}, dispatch.WaitOptions{Timeout: timeout, Description: "state predicate"})
}

// WaitForAssertion waits until assertion returns nil. Its errors do not end
// the wait; the last one is attached to the timeout error.
func (rc *RenderedComponent) WaitForAssertion(ctx context.Context, assertion func() error, timeout time.Duration) error {
	return rc.tc.coordinator.WaitUntil(ctx, func() (bool, error) {
		err := assertion()
		return err == nil, err
	}, dispatch.WaitOptions{Timeout: timeout, Persistent: true, Description: "assertion"})
}

// MarkupMatches compares the component's output against expected.
func (rc *RenderedComponent) MarkupMatches(expected string) (*ComparisonResult, error) {
	var (
		result *ComparisonResult
		err    error
	)
	rc.tc.tree.Read(func() {
		result, err = rc.tc.differ.CompareNodes(expected, rc.scope()...)
	})
	if err != nil {
		return nil, err
	}
	rc.tc.metrics.RecordComparison(result.IsMatch)
	return result, nil
}

// VerifyMarkup is MarkupMatches reporting a mismatch as a
// MarkupMismatchError.
func (rc *RenderedComponent) VerifyMarkup(expected string) error {
	result, err := rc.MarkupMatches(expected)
	if err != nil {
		return err
	}
	if !result.IsMatch {
		return &MarkupMismatchError{Result: result}
	}
	return nil
}

// ElementMatches compares the outer markup of el against expected.
func (rc *RenderedComponent) ElementMatches(el *Element, expected string) (*ComparisonResult, error) {
	var result *ComparisonResult
	err := el.With(func(n *html.Node) error {
		var err error
		result, err = rc.tc.differ.CompareNodes(expected, n)
		return err
	})
	if err != nil {
		return nil, err
	}
	rc.tc.metrics.RecordComparison(result.IsMatch)
	return result, nil
}
