package frame

// Builder accumulates frames for one component render. Components receive a
// fresh Builder on every render; it performs no validation itself, so a
// component that forgets a Close call produces a sequence that Validate
// rejects.
type Builder struct {
	frames []Frame
	open   []int
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// OpenElement starts an element with the given tag.
func (b *Builder) OpenElement(seq int, tag string) {
	b.push(Frame{Kind: KindOpenElement, Sequence: seq, Name: tag})
}

// CloseElement ends the innermost open element.
func (b *Builder) CloseElement() {
	b.pop(KindCloseElement)
}

// AddAttribute sets a string attribute on the current element.
func (b *Builder) AddAttribute(seq int, name, value string) {
	b.frames = append(b.frames, Frame{Kind: KindAttribute, Sequence: seq, Name: name, Value: value})
}

// AddEventHandler binds handler to the named event ("click", "change", ...)
// on the current element.
func (b *Builder) AddEventHandler(seq int, event string, handler EventHandler) {
	b.frames = append(b.frames, Frame{Kind: KindAttribute, Sequence: seq, Name: "on" + event, Handler: handler})
}

// AddText appends a text node.
func (b *Builder) AddText(seq int, text string) {
	b.frames = append(b.frames, Frame{Kind: KindText, Sequence: seq, Value: text})
}

// AddMarkup appends raw markup, which may expand to several nodes.
func (b *Builder) AddMarkup(seq int, markup string) {
	b.frames = append(b.frames, Frame{Kind: KindMarkup, Sequence: seq, Value: markup})
}

// AddComment appends a comment node.
func (b *Builder) AddComment(seq int, text string) {
	b.frames = append(b.frames, Frame{Kind: KindComment, Sequence: seq, Value: text})
}

// OpenComponent starts a child component of the given type. create builds
// the default instance when no configured factory claims the type.
func (b *Builder) OpenComponent(seq int, typeName string, create func() any) {
	b.push(Frame{Kind: KindOpenComponent, Sequence: seq, Name: typeName, Create: create})
}

// AddParameter passes a parameter to the current component.
func (b *Builder) AddParameter(seq int, name string, value any) {
	b.frames = append(b.frames, Frame{Kind: KindAttribute, Sequence: seq, Name: name, Param: value})
}

// CloseComponent ends the innermost open component.
func (b *Builder) CloseComponent() {
	b.pop(KindCloseComponent)
}

// OpenRegion starts a block that groups sibling output, such as one branch
// of a conditional or one loop iteration.
func (b *Builder) OpenRegion(seq int) {
	b.push(Frame{Kind: KindOpenRegion, Sequence: seq})
}

// CloseRegion ends the innermost open region.
func (b *Builder) CloseRegion() {
	b.pop(KindCloseRegion)
}

// SetKey assigns a reconciliation key to the innermost open element,
// component or region.
func (b *Builder) SetKey(key string) {
	if len(b.open) == 0 {
		return
	}
	b.frames[b.open[len(b.open)-1]].Key = key
}

// Frames returns the frames emitted so far.
func (b *Builder) Frames() []Frame {
	out := make([]Frame, len(b.frames))
	copy(out, b.frames)
	return out
}

// Reset clears the builder for reuse.
func (b *Builder) Reset() {
	b.frames = b.frames[:0]
	b.open = b.open[:0]
}

func (b *Builder) push(f Frame) {
	b.open = append(b.open, len(b.frames))
	b.frames = append(b.frames, f)
}

func (b *Builder) pop(kind Kind) {
	if len(b.open) > 0 {
		b.open = b.open[:len(b.open)-1]
	}
	b.frames = append(b.frames, Frame{Kind: kind})
}
