// Package mapper mirrors render-frame batches into a dom.Tree.
//
// A component's output is organised into blocks: one per top-level construct
// it emitted (element, text, markup, comment, child component, region).
// Re-rendering a component walks its previous blocks and the new frames
// pairwise, patching what matched, creating what is new and removing what
// disappeared, so the subtree is reconciled in place instead of rebuilt.
package mapper

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/livefir/rendertest/frame"
	"github.com/livefir/rendertest/internal/dom"
)

// ErrUnknownComponent is returned for batches addressed to a component the
// mapper has never seen or has already disposed.
var ErrUnknownComponent = errors.New("unknown component")

// Activator is the engine callback that instantiates, updates and disposes
// child components discovered in frames.
type Activator interface {
	// Activate creates a component and returns its id. params holds the
	// parameter frames from inside the OpenComponent/CloseComponent pair.
	Activate(parent frame.ComponentID, typeName string, create func() any, params []frame.Frame) (frame.ComponentID, error)
	// Update passes fresh parameters to an existing child.
	Update(id frame.ComponentID, params []frame.Frame) error
	// Dispose tears down a child that is no longer rendered.
	Dispose(id frame.ComponentID)
}

// MutationKind classifies a node mutation.
type MutationKind uint8

const (
	MutationInsert MutationKind = iota + 1
	MutationMove
	MutationRemove
	MutationSetAttribute
	MutationRemoveAttribute
	MutationSetText
)

func (k MutationKind) String() string {
	switch k {
	case MutationInsert:
		return "insert"
	case MutationMove:
		return "move"
	case MutationRemove:
		return "remove"
	case MutationSetAttribute:
		return "set-attribute"
	case MutationRemoveAttribute:
		return "remove-attribute"
	case MutationSetText:
		return "set-text"
	default:
		return fmt.Sprintf("MutationKind(%d)", uint8(k))
	}
}

// Mutation is one change applied to a node that was attached to the tree.
// Changes made to freshly created, still detached subtrees are folded into
// the insert of their root.
type Mutation struct {
	Kind  MutationKind
	Node  *html.Node
	Name  string
	Value string
}

// BatchResult summarises one ApplyRenderBatch call.
type BatchResult struct {
	Component frame.ComponentID
	Mutations []Mutation
	Activated []frame.ComponentID
	Disposed  []frame.ComponentID
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the mapper's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Mapper) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Mapper applies render batches to a tree. All methods take the tree lock
// they need except the read accessors, which must be called inside
// Tree.Read or Tree.Write.
type Mapper struct {
	tree       *dom.Tree
	activator  Activator
	components map[frame.ComponentID]*componentMeta
	logger     *zap.Logger
	batch      *BatchResult
}

// New creates a mapper over tree.
func New(tree *dom.Tree, activator Activator, opts ...Option) *Mapper {
	m := &Mapper{
		tree:       tree,
		activator:  activator,
		components: make(map[frame.ComponentID]*componentMeta),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddRoot registers a root component whose output is appended to the
// document root.
func (m *Mapper) AddRoot(id frame.ComponentID, typeName string) error {
	return m.tree.Write(func() error {
		if _, exists := m.components[id]; exists {
			return fmt.Errorf("component %d already registered", id)
		}
		meta := &componentMeta{id: id, typeName: typeName}
		meta.top = &blockList{meta: meta}
		m.components[id] = meta
		return nil
	})
}

// ApplyRenderBatch reconciles the output of component id with frames.
// A malformed sequence is rejected before anything is mutated.
func (m *Mapper) ApplyRenderBatch(id frame.ComponentID, frames []frame.Frame) (*BatchResult, error) {
	items, err := parse(frames)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Component: id}
	err = m.tree.Write(func() error {
		meta, ok := m.components[id]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownComponent, id)
		}
		m.batch = result
		defer func() { m.batch = nil }()

		if err := m.reconcile(meta.top, items); err != nil {
			return err
		}
		m.place(meta.top)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("render batch applied",
		zap.Int("component", int(id)),
		zap.Int("frames", len(frames)),
		zap.Int("mutations", len(result.Mutations)),
		zap.Int("activated", len(result.Activated)),
		zap.Int("disposed", len(result.Disposed)))
	return result, nil
}

// RemoveRoot disposes a root component and everything it rendered.
func (m *Mapper) RemoveRoot(id frame.ComponentID) ([]frame.ComponentID, error) {
	result := &BatchResult{Component: id}
	err := m.tree.Write(func() error {
		if _, ok := m.components[id]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownComponent, id)
		}
		m.batch = result
		defer func() { m.batch = nil }()
		m.disposeComponent(id, true)
		return nil
	})
	return result.Disposed, err
}

// Nodes returns the top-level nodes component id currently contributes,
// including those of its descendants. Requires the tree lock.
func (m *Mapper) Nodes(id frame.ComponentID) []*html.Node {
	meta, ok := m.components[id]
	if !ok {
		return nil
	}
	return m.flattenList(meta.top, nil)
}

// Known reports whether id is a live component. Requires the tree lock.
func (m *Mapper) Known(id frame.ComponentID) bool {
	_, ok := m.components[id]
	return ok
}

// Parent returns the parent of a child component. Requires the tree lock.
func (m *Mapper) Parent(id frame.ComponentID) (frame.ComponentID, bool) {
	meta, ok := m.components[id]
	if !ok || meta.placeholder == nil {
		return 0, false
	}
	return meta.parent, true
}

// IsWithin reports whether id is ancestor or one of its descendants.
// Requires the tree lock.
func (m *Mapper) IsWithin(id, ancestor frame.ComponentID) bool {
	for {
		if id == ancestor {
			return true
		}
		parent, ok := m.Parent(id)
		if !ok {
			return false
		}
		id = parent
	}
}

// Components returns every live component id in ascending order.
// Requires the tree lock.
func (m *Mapper) Components() []frame.ComponentID {
	ids := make([]frame.ComponentID, 0, len(m.components))
	for id := range m.components {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BlockInfo describes one block of a component's output.
type BlockInfo struct {
	Key       string
	Kind      frame.Kind
	Name      string
	NodeCount int
	Component frame.ComponentID
	Children  []BlockInfo
}

// ComponentRenderMetadata records which component produced a subtree and
// the blocks it contributed.
type ComponentRenderMetadata struct {
	Component frame.ComponentID
	Parent    frame.ComponentID
	Type      string
	Blocks    []BlockInfo
}

// Metadata returns the render metadata of a component. Requires the tree
// lock.
func (m *Mapper) Metadata(id frame.ComponentID) (ComponentRenderMetadata, bool) {
	meta, ok := m.components[id]
	if !ok {
		return ComponentRenderMetadata{}, false
	}
	return ComponentRenderMetadata{
		Component: meta.id,
		Parent:    meta.parent,
		Type:      meta.typeName,
		Blocks:    m.describe(meta.top),
	}, true
}

func (m *Mapper) describe(l *blockList) []BlockInfo {
	infos := make([]BlockInfo, 0, len(l.blocks))
	for _, b := range l.blocks {
		info := BlockInfo{
			Key:       b.id,
			Kind:      b.kind,
			Name:      b.name,
			NodeCount: len(m.flattenBlock(b, nil)),
			Component: b.component,
		}
		if b.children != nil {
			info.Children = m.describe(b.children)
		}
		infos = append(infos, info)
	}
	return infos
}

func (m *Mapper) record(kind MutationKind, n *html.Node, name, value string) {
	if m.batch == nil {
		return
	}
	m.batch.Mutations = append(m.batch.Mutations, Mutation{Kind: kind, Node: n, Name: name, Value: value})
}
