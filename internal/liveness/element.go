// Package liveness provides node handles that re-resolve themselves after
// the fragment they came from re-renders.
package liveness

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/net/html"

	"github.com/livefir/rendertest/internal/dom"
	"github.com/livefir/rendertest/internal/events"
)

// ErrNodeNoLongerAvailable marks access to a node that existed when the
// handle was created but can no longer be found.
var ErrNodeNoLongerAvailable = errors.New("node no longer available")

// UnavailableError names the handle whose node vanished.
type UnavailableError struct {
	Description string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s was removed from the rendered markup", ErrNodeNoLongerAvailable, e.Description)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrNodeNoLongerAvailable
}

// Reader gives locked read access to the node tree.
type Reader interface {
	Read(fn func())
	Attached(n *html.Node) bool
}

// QueryFunc locates the wrapped node. It runs with the tree read lock held
// and reports a vanished node as (nil, nil) or a dom.ErrNotFound error.
type QueryFunc func() (*html.Node, error)

// Element is a live handle to a node. Every accessor resolves the node
// lazily; after MarkStale the next access runs the query again.
type Element struct {
	reader      Reader
	query       QueryFunc
	description string
	sub         *events.Subscription

	mu          sync.Mutex
	node        *html.Node
	resolved    bool
	resolutions int
	children    []*Element
}

// New creates a handle whose query has not run yet. When source is not nil
// the handle goes stale on every event it delivers.
func New(reader Reader, source events.Source, query QueryFunc, description string) *Element {
	e := &Element{reader: reader, query: query, description: description}
	if source != nil {
		e.sub = source.Subscribe(func(events.RenderEvent) { e.MarkStale() })
	}
	return e
}

// NewResolved is New for a node the caller has already found.
func NewResolved(reader Reader, source events.Source, query QueryFunc, description string, node *html.Node) *Element {
	e := New(reader, source, query, description)
	e.node = node
	e.resolved = node != nil
	return e
}

// MarkStale drops the cached node of e and every handle derived from it.
func (e *Element) MarkStale() {
	e.mu.Lock()
	e.resolved = false
	e.node = nil
	children := e.children
	e.mu.Unlock()

	for _, c := range children {
		c.MarkStale()
	}
}

// Close stops listening for renders. The handle stays usable but only
// re-resolves after an explicit MarkStale.
func (e *Element) Close() {
	if e.sub != nil {
		e.sub.Close()
	}
}

// Resolutions returns how many times the query has run.
func (e *Element) Resolutions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolutions
}

func (e *Element) String() string {
	return e.description
}

// resolve returns the current node. Requires the tree read lock.
func (e *Element) resolve() (*html.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.resolved && (e.node == nil || e.reader.Attached(e.node)) {
		if e.node == nil {
			return nil, &UnavailableError{Description: e.description}
		}
		return e.node, nil
	}

	e.resolutions++
	n, err := e.query()
	if err != nil && !errors.Is(err, dom.ErrNotFound) && !errors.Is(err, ErrNodeNoLongerAvailable) {
		return nil, err
	}
	e.resolved = true
	e.node = n
	if n == nil {
		return nil, &UnavailableError{Description: e.description}
	}
	return n, nil
}

// With runs fn with the resolved node while holding the tree read lock.
func (e *Element) With(fn func(n *html.Node) error) error {
	var err error
	e.reader.Read(func() {
		var n *html.Node
		if n, err = e.resolve(); err == nil {
			err = fn(n)
		}
	})
	return err
}

// Node returns the underlying node. The node must only be inspected while
// no render can run; prefer the accessors.
func (e *Element) Node() (*html.Node, error) {
	var node *html.Node
	err := e.With(func(n *html.Node) error {
		node = n
		return nil
	})
	return node, err
}

// TagName returns the lower-case tag name.
func (e *Element) TagName() (string, error) {
	var tag string
	err := e.With(func(n *html.Node) error {
		tag = n.Data
		return nil
	})
	return tag, err
}

// Attr returns an attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := e.With(func(n *html.Node) error {
		value, ok = dom.Attr(n, name)
		return nil
	})
	return value, ok, err
}

// TextContent returns the concatenated descendant text.
func (e *Element) TextContent() (string, error) {
	var text string
	err := e.With(func(n *html.Node) error {
		text = dom.TextContent(n)
		return nil
	})
	return text, err
}

// Markup returns the outer HTML.
func (e *Element) Markup() (string, error) {
	var markup string
	err := e.With(func(n *html.Node) error {
		markup = dom.Markup(n)
		return nil
	})
	return markup, err
}

// InnerMarkup returns the HTML of the children.
func (e *Element) InnerMarkup() (string, error) {
	var markup string
	err := e.With(func(n *html.Node) error {
		markup = dom.InnerMarkup(n)
		return nil
	})
	return markup, err
}

// Children returns handles to the element children, each bound to its
// position.
func (e *Element) Children() ([]*Element, error) {
	var out []*Element
	err := e.With(func(n *html.Node) error {
		for i, c := range dom.Children(n) {
			i := i
			out = append(out, e.derive(c, fmt.Sprintf("%s > child %d", e.description, i), func(parent *html.Node) (*html.Node, error) {
				children := dom.Children(parent)
				if i >= len(children) {
					return nil, nil
				}
				return children[i], nil
			}))
		}
		return nil
	})
	return out, err
}

// Find returns a handle to the first descendant matching selector.
func (e *Element) Find(selector string) (*Element, error) {
	var child *Element
	err := e.With(func(n *html.Node) error {
		found, err := dom.Query(dom.Children(n), selector)
		if err != nil {
			return err
		}
		child = e.derive(found, fmt.Sprintf("%s %s", e.description, selector), func(parent *html.Node) (*html.Node, error) {
			return dom.Query(dom.Children(parent), selector)
		})
		return nil
	})
	return child, err
}

// FindAll returns handles to every descendant matching selector, each
// bound to its match index.
func (e *Element) FindAll(selector string) ([]*Element, error) {
	var out []*Element
	err := e.With(func(n *html.Node) error {
		found, err := dom.QueryAll(dom.Children(n), selector)
		if err != nil {
			return err
		}
		for i, f := range found {
			i := i
			out = append(out, e.derive(f, fmt.Sprintf("%s %s[%d]", e.description, selector, i), func(parent *html.Node) (*html.Node, error) {
				matches, err := dom.QueryAll(dom.Children(parent), selector)
				if err != nil || i >= len(matches) {
					return nil, err
				}
				return matches[i], nil
			}))
		}
		return nil
	})
	return out, err
}

// derive creates a handle that resolves relative to e and goes stale with
// it.
func (e *Element) derive(node *html.Node, description string, query func(parent *html.Node) (*html.Node, error)) *Element {
	child := NewResolved(e.reader, nil, func() (*html.Node, error) {
		parent, err := e.resolve()
		if err != nil {
			return nil, err
		}
		return query(parent)
	}, description, node)

	e.mu.Lock()
	e.children = append(e.children, child)
	e.mu.Unlock()
	return child
}
