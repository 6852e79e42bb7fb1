package dom

import (
	"sync"

	"golang.org/x/net/html"

	"github.com/livefir/rendertest/frame"
)

// Binding is an event handler bound to a node together with the component
// that rendered it.
type Binding struct {
	Event     string
	Handler   frame.EventHandler
	Component frame.ComponentID
}

// Tree is the node store for one rendered test subject. All nodes hang off a
// single document root; owning-component attribution and event bindings are
// side tables keyed by node, so dropping the Tree drops every back-reference.
//
// Mutations happen inside Write, reads inside Read. The helpers documented as
// requiring the lock must only be called from within one of those.
type Tree struct {
	mu       sync.RWMutex
	root     *html.Node
	owners   map[*html.Node]frame.ComponentID
	handlers map[*html.Node]map[string]Binding
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{
		root:     &html.Node{Type: html.DocumentNode},
		owners:   make(map[*html.Node]frame.ComponentID),
		handlers: make(map[*html.Node]map[string]Binding),
	}
}

// Read runs fn while holding the read lock.
func (t *Tree) Read(fn func()) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn()
}

// Write runs fn while holding the write lock.
func (t *Tree) Write(fn func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn()
}

// Root returns the document root. Requires the lock.
func (t *Tree) Root() *html.Node {
	return t.root
}

// SetOwner attributes n to a component, replacing any earlier attribution.
// Requires the write lock.
func (t *Tree) SetOwner(n *html.Node, id frame.ComponentID) {
	t.owners[n] = id
}

// Owner returns the component that rendered n. Requires the lock.
func (t *Tree) Owner(n *html.Node) (frame.ComponentID, bool) {
	id, ok := t.owners[n]
	return id, ok
}

// Bind replaces every handler bound to n. Requires the write lock.
func (t *Tree) Bind(n *html.Node, bindings []Binding) {
	if len(bindings) == 0 {
		delete(t.handlers, n)
		return
	}
	m := make(map[string]Binding, len(bindings))
	for _, b := range bindings {
		m[b.Event] = b
	}
	t.handlers[n] = m
}

// Handler returns the binding for event on n. Requires the lock.
func (t *Tree) Handler(n *html.Node, event string) (Binding, bool) {
	b, ok := t.handlers[n][event]
	return b, ok
}

// HandlerPath returns the bindings for event on n and each of its ancestors,
// innermost first. Requires the lock.
func (t *Tree) HandlerPath(n *html.Node, event string) []Binding {
	var path []Binding
	for cur := n; cur != nil; cur = cur.Parent {
		if b, ok := t.handlers[cur][event]; ok {
			path = append(path, b)
		}
	}
	return path
}

// Forget drops attribution and bindings for n and its descendants.
// Requires the write lock.
func (t *Tree) Forget(n *html.Node) {
	Walk(n, func(c *html.Node) {
		delete(t.owners, c)
		delete(t.handlers, c)
	})
}

// Attached reports whether n is still reachable from the root.
// Requires the lock.
func (t *Tree) Attached(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == t.root {
			return true
		}
	}
	return false
}

// Size returns the number of attributed nodes. Requires the lock.
func (t *Tree) Size() int {
	return len(t.owners)
}

// Walk visits n and its descendants in document order.
func Walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, fn)
	}
}
