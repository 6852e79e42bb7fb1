// Package frame defines the render-frame instruction stream that a component
// engine emits and the harness mirrors into an inspectable node tree.
package frame

import (
	"context"
	"fmt"
	"strings"
)

// ComponentID is an opaque handle for one component instance within a
// rendered test subject. The zero value means "not assigned".
type ComponentID int

// Kind discriminates the instruction carried by a Frame.
type Kind uint8

const (
	KindOpenElement Kind = iota + 1
	KindCloseElement
	KindAttribute
	KindText
	KindMarkup
	KindComment
	KindOpenComponent
	KindCloseComponent
	KindOpenRegion
	KindCloseRegion
)

var kindNames = map[Kind]string{
	KindOpenElement:    "OpenElement",
	KindCloseElement:   "CloseElement",
	KindAttribute:      "Attribute",
	KindText:           "Text",
	KindMarkup:         "Markup",
	KindComment:        "Comment",
	KindOpenComponent:  "OpenComponent",
	KindCloseComponent: "CloseComponent",
	KindOpenRegion:     "OpenRegion",
	KindCloseRegion:    "CloseRegion",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// EventArgs carries the payload of a simulated DOM event.
type EventArgs struct {
	// Type is the event name without the "on" prefix, e.g. "click".
	Type string
	// Value is the new value for change/input events.
	Value any
	// Fields holds any additional event properties (button, key, ...).
	Fields map[string]any
}

// EventHandler is the delegate value of an event attribute such as "onclick".
type EventHandler func(ctx context.Context, args EventArgs) error

// Frame is a single render instruction.
//
// Which fields are meaningful depends on Kind:
//
//	OpenElement    Name (tag), Key
//	Attribute      Name, Value or Handler (elements); Name, Param (components)
//	Text, Comment  Value
//	Markup         Value (raw HTML)
//	OpenComponent  Name (component type), Key, Create
//	OpenRegion     Key
type Frame struct {
	Kind     Kind
	Sequence int
	Name     string
	Value    string
	Key      string
	Handler  EventHandler
	Param    any
	Create   func() any
}

// IsEventHandler reports whether an attribute frame carries a delegate.
func (f Frame) IsEventHandler() bool {
	return f.Kind == KindAttribute && f.Handler != nil
}

// EventName returns the event an "on<event>" handler attribute binds to.
func (f Frame) EventName() string {
	return strings.TrimPrefix(strings.ToLower(f.Name), "on")
}

func (f Frame) String() string {
	switch f.Kind {
	case KindOpenElement, KindOpenComponent:
		if f.Key != "" {
			return fmt.Sprintf("%s(%s key=%q)#%d", f.Kind, f.Name, f.Key, f.Sequence)
		}
		return fmt.Sprintf("%s(%s)#%d", f.Kind, f.Name, f.Sequence)
	case KindAttribute:
		if f.Handler != nil {
			return fmt.Sprintf("Attribute(%s=<handler>)#%d", f.Name, f.Sequence)
		}
		return fmt.Sprintf("Attribute(%s=%q)#%d", f.Name, f.Value, f.Sequence)
	case KindText, KindMarkup, KindComment:
		return fmt.Sprintf("%s(%q)#%d", f.Kind, f.Value, f.Sequence)
	default:
		return fmt.Sprintf("%s#%d", f.Kind, f.Sequence)
	}
}
