package mapper

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/livefir/rendertest/frame"
	"github.com/livefir/rendertest/internal/dom"
)

// item is one parsed construct from a frame sequence.
type item struct {
	id       string
	kind     frame.Kind
	frame    frame.Frame
	index    int
	attrs    []frame.Frame
	children []*item
}

// parse validates frames and folds them into an item tree. Siblings are
// identified by explicit key, or by (sequence, occurrence) when unkeyed.
func parse(frames []frame.Frame) ([]*item, error) {
	if err := frame.Validate(frames); err != nil {
		return nil, err
	}

	root := &item{}
	stack := []*item{root}
	for i, f := range frames {
		top := stack[len(stack)-1]
		switch f.Kind {
		case frame.KindOpenElement, frame.KindOpenComponent, frame.KindOpenRegion:
			it := &item{kind: f.Kind, frame: f, index: i}
			top.children = append(top.children, it)
			stack = append(stack, it)
		case frame.KindCloseElement, frame.KindCloseComponent, frame.KindCloseRegion:
			stack = stack[:len(stack)-1]
		case frame.KindAttribute:
			top.attrs = append(top.attrs, f)
		default:
			top.children = append(top.children, &item{kind: f.Kind, frame: f, index: i})
		}
	}

	if err := assignIDs(root); err != nil {
		return nil, err
	}
	return root.children, nil
}

func assignIDs(parent *item) error {
	occurrences := make(map[int]int)
	keys := make(map[string]bool)
	for _, c := range parent.children {
		if key := c.frame.Key; key != "" {
			if keys[key] {
				return &frame.MalformedError{Index: c.index, Frame: c.frame, Reason: fmt.Sprintf("duplicate key %q among siblings", key)}
			}
			keys[key] = true
			c.id = "k:" + key
		} else {
			seq := c.frame.Sequence
			c.id = fmt.Sprintf("s:%d:%d", seq, occurrences[seq])
			occurrences[seq]++
		}
		if err := assignIDs(c); err != nil {
			return err
		}
	}
	return nil
}

// block is the retained counterpart of an item.
type block struct {
	id        string
	kind      frame.Kind
	name      string
	value     string
	node      *html.Node
	nodes     []*html.Node
	list      *blockList
	children  *blockList
	component frame.ComponentID
}

// blockList is an ordered run of sibling blocks. owner is the element or
// region holding it, or nil for a component's top-level list.
type blockList struct {
	blocks []*block
	owner  *block
	meta   *componentMeta
}

type componentMeta struct {
	id          frame.ComponentID
	parent      frame.ComponentID
	typeName    string
	top         *blockList
	placeholder *block
}

func compatible(b *block, it *item) bool {
	if b.kind != it.kind {
		return false
	}
	switch b.kind {
	case frame.KindOpenElement:
		return b.name == dom.NormalizeName(it.frame.Name)
	case frame.KindOpenComponent:
		return b.name == it.frame.Name
	}
	return true
}

func (m *Mapper) reconcile(l *blockList, items []*item) error {
	old := make(map[string]*block, len(l.blocks))
	for _, b := range l.blocks {
		old[b.id] = b
	}

	matches := make([]*block, len(items))
	kept := make(map[*block]bool, len(items))
	for i, it := range items {
		if b, ok := old[it.id]; ok && compatible(b, it) {
			matches[i] = b
			kept[b] = true
		}
	}

	for _, b := range l.blocks {
		if !kept[b] {
			m.removeBlock(b, true)
		}
	}

	next := make([]*block, 0, len(items))
	for i, it := range items {
		if b := matches[i]; b != nil {
			if err := m.patch(b, it); err != nil {
				l.blocks = append(next, matches[i:]...)
				return err
			}
			next = append(next, b)
			continue
		}
		b, err := m.create(it, l)
		if err != nil {
			l.blocks = next
			return err
		}
		next = append(next, b)
	}
	l.blocks = next
	return nil
}

func (m *Mapper) create(it *item, l *blockList) (*block, error) {
	b := &block{id: it.id, kind: it.kind, list: l}
	owner := l.meta.id

	switch it.kind {
	case frame.KindOpenElement:
		b.node = dom.NewElement(it.frame.Name)
		b.name = b.node.Data
		m.tree.SetOwner(b.node, owner)
		m.applyAttributes(b, it.attrs)
		b.children = &blockList{owner: b, meta: l.meta}
		if err := m.reconcile(b.children, it.children); err != nil {
			return nil, err
		}
		m.place(b.children)
	case frame.KindText:
		b.value = it.frame.Value
		b.node = dom.NewText(b.value)
		m.tree.SetOwner(b.node, owner)
	case frame.KindComment:
		b.value = it.frame.Value
		b.node = dom.NewComment(b.value)
		m.tree.SetOwner(b.node, owner)
	case frame.KindMarkup:
		b.value = it.frame.Value
		nodes, err := parseMarkup(b.value, m.containerOf(l))
		if err != nil {
			return nil, err
		}
		b.nodes = nodes
		for _, n := range nodes {
			dom.Walk(n, func(c *html.Node) { m.tree.SetOwner(c, owner) })
		}
	case frame.KindOpenRegion:
		b.children = &blockList{owner: b, meta: l.meta}
		if err := m.reconcile(b.children, it.children); err != nil {
			return nil, err
		}
	case frame.KindOpenComponent:
		b.name = it.frame.Name
		id, err := m.activator.Activate(owner, it.frame.Name, it.frame.Create, it.attrs)
		if err != nil {
			return nil, fmt.Errorf("activate %s: %w", it.frame.Name, err)
		}
		child := &componentMeta{id: id, parent: owner, typeName: it.frame.Name, placeholder: b}
		child.top = &blockList{meta: child}
		m.components[id] = child
		b.component = id
		m.batch.Activated = append(m.batch.Activated, id)
	}
	return b, nil
}

func (m *Mapper) patch(b *block, it *item) error {
	switch b.kind {
	case frame.KindOpenElement:
		m.applyAttributes(b, it.attrs)
		if err := m.reconcile(b.children, it.children); err != nil {
			return err
		}
		m.place(b.children)
	case frame.KindText, frame.KindComment:
		if v := it.frame.Value; b.value != v {
			b.value = v
			b.node.Data = v
			if m.tree.Attached(b.node) {
				m.record(MutationSetText, b.node, "", v)
			}
		}
	case frame.KindMarkup:
		if b.value == it.frame.Value {
			return nil
		}
		for _, n := range b.nodes {
			m.detach(n, true)
		}
		nodes, err := parseMarkup(it.frame.Value, m.containerOf(b.list))
		if err != nil {
			b.nodes = nil
			return err
		}
		b.value = it.frame.Value
		b.nodes = nodes
		owner := b.list.meta.id
		for _, n := range nodes {
			dom.Walk(n, func(c *html.Node) { m.tree.SetOwner(c, owner) })
		}
	case frame.KindOpenRegion:
		return m.reconcile(b.children, it.children)
	case frame.KindOpenComponent:
		if err := m.activator.Update(b.component, it.attrs); err != nil {
			return fmt.Errorf("update %s: %w", b.name, err)
		}
	}
	return nil
}

func (m *Mapper) applyAttributes(b *block, attrs []frame.Frame) {
	type attr struct{ name, value string }
	var desired []attr
	index := make(map[string]int)
	var bindings []dom.Binding

	for _, f := range attrs {
		if f.IsEventHandler() {
			bindings = append(bindings, dom.Binding{Event: f.EventName(), Handler: f.Handler, Component: b.list.meta.id})
			continue
		}
		name := dom.NormalizeName(f.Name)
		if i, ok := index[name]; ok {
			desired[i].value = f.Value
			continue
		}
		index[name] = len(desired)
		desired = append(desired, attr{name, f.Value})
	}

	attached := m.tree.Attached(b.node)
	existing := make([]string, 0, len(b.node.Attr))
	for _, a := range b.node.Attr {
		existing = append(existing, a.Key)
	}
	for _, key := range existing {
		if _, ok := index[dom.NormalizeName(key)]; ok {
			continue
		}
		if dom.RemoveAttr(b.node, key) && attached {
			m.record(MutationRemoveAttribute, b.node, key, "")
		}
	}
	for _, a := range desired {
		if dom.SetAttr(b.node, a.name, a.value) && attached {
			m.record(MutationSetAttribute, b.node, a.name, a.value)
		}
	}
	m.tree.Bind(b.node, bindings)
}

func (m *Mapper) removeBlock(b *block, detach bool) {
	switch b.kind {
	case frame.KindOpenElement:
		m.disposeNested(b.children)
		m.detach(b.node, detach)
	case frame.KindText, frame.KindComment:
		m.detach(b.node, detach)
	case frame.KindMarkup:
		for _, n := range b.nodes {
			m.detach(n, detach)
		}
	case frame.KindOpenRegion:
		for _, c := range b.children.blocks {
			m.removeBlock(c, detach)
		}
	case frame.KindOpenComponent:
		m.disposeComponent(b.component, detach)
	}
}

// disposeNested disposes components inside a subtree that is going away
// with its root element.
func (m *Mapper) disposeNested(l *blockList) {
	for _, b := range l.blocks {
		switch b.kind {
		case frame.KindOpenComponent:
			m.disposeComponent(b.component, false)
		case frame.KindOpenElement, frame.KindOpenRegion:
			m.disposeNested(b.children)
		}
	}
}

func (m *Mapper) disposeComponent(id frame.ComponentID, detach bool) {
	meta, ok := m.components[id]
	if !ok {
		return
	}
	for _, b := range meta.top.blocks {
		m.removeBlock(b, detach)
	}
	meta.top.blocks = nil
	delete(m.components, id)
	if meta.placeholder != nil && m.activator != nil {
		m.activator.Dispose(id)
	}
	if m.batch != nil {
		m.batch.Disposed = append(m.batch.Disposed, id)
	}
}

func (m *Mapper) detach(n *html.Node, detach bool) {
	if detach && n.Parent != nil {
		attached := m.tree.Attached(n)
		n.Parent.RemoveChild(n)
		if attached {
			m.record(MutationRemove, n, "", "")
		}
	}
	m.tree.Forget(n)
}

// place puts the nodes of a placement root (an element's content or a
// component's top-level list) into their container in block order, moving
// only nodes that are out of position.
func (m *Mapper) place(l *blockList) {
	container := m.containerOf(l)
	anchor := m.listEnd(l)
	nodes := m.flattenList(l, nil)
	attached := m.tree.Attached(container)

	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		if n.Parent != container || n.NextSibling != anchor {
			kind := MutationInsert
			if n.Parent != nil {
				kind = MutationMove
				n.Parent.RemoveChild(n)
			}
			container.InsertBefore(n, anchor)
			if attached {
				m.record(kind, n, "", "")
			}
		}
		anchor = n
	}
}

// containerOf returns the node whose children hold the nodes of l.
func (m *Mapper) containerOf(l *blockList) *html.Node {
	for {
		if l.owner != nil {
			if l.owner.kind == frame.KindOpenElement {
				return l.owner.node
			}
			l = l.owner.list
			continue
		}
		if l.meta.placeholder == nil {
			return m.tree.Root()
		}
		l = l.meta.placeholder.list
	}
}

// listEnd returns the node that must follow the last node of l, or nil when
// l ends its container.
func (m *Mapper) listEnd(l *blockList) *html.Node {
	if l.owner != nil {
		if l.owner.kind == frame.KindOpenElement {
			return nil
		}
		return m.anchorAfter(l.owner)
	}
	if l.meta.placeholder == nil {
		return nil
	}
	return m.anchorAfter(l.meta.placeholder)
}

// anchorAfter finds the first node following b. Blocks that render nothing
// still keep their slot in the list, so the search simply skips them.
func (m *Mapper) anchorAfter(b *block) *html.Node {
	blocks := b.list.blocks
	for i, sib := range blocks {
		if sib != b {
			continue
		}
		for _, next := range blocks[i+1:] {
			if n := m.firstNode(next); n != nil {
				return n
			}
		}
		break
	}
	return m.listEnd(b.list)
}

func (m *Mapper) firstNode(b *block) *html.Node {
	switch b.kind {
	case frame.KindOpenElement, frame.KindText, frame.KindComment:
		return b.node
	case frame.KindMarkup:
		if len(b.nodes) > 0 {
			return b.nodes[0]
		}
	case frame.KindOpenRegion:
		for _, c := range b.children.blocks {
			if n := m.firstNode(c); n != nil {
				return n
			}
		}
	case frame.KindOpenComponent:
		if meta, ok := m.components[b.component]; ok {
			for _, c := range meta.top.blocks {
				if n := m.firstNode(c); n != nil {
					return n
				}
			}
		}
	}
	return nil
}

func (m *Mapper) flattenList(l *blockList, out []*html.Node) []*html.Node {
	for _, b := range l.blocks {
		out = m.flattenBlock(b, out)
	}
	return out
}

func (m *Mapper) flattenBlock(b *block, out []*html.Node) []*html.Node {
	switch b.kind {
	case frame.KindOpenElement, frame.KindText, frame.KindComment:
		return append(out, b.node)
	case frame.KindMarkup:
		return append(out, b.nodes...)
	case frame.KindOpenRegion:
		return m.flattenList(b.children, out)
	case frame.KindOpenComponent:
		if meta, ok := m.components[b.component]; ok {
			return m.flattenList(meta.top, out)
		}
	}
	return out
}

func parseMarkup(markup string, container *html.Node) ([]*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body"}
	if container != nil && container.Type == html.ElementNode {
		context = &html.Node{Type: html.ElementNode, Data: container.Data, DataAtom: container.DataAtom, Namespace: container.Namespace}
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("parse markup frame: %w", err)
	}
	return nodes, nil
}
