package frame

import (
	"errors"
	"fmt"
)

// ErrMalformedFrames marks a frame sequence that violates the engine
// contract. It is never retried.
var ErrMalformedFrames = errors.New("malformed render frames")

// MalformedError describes where a frame sequence went wrong.
type MalformedError struct {
	Index  int
	Frame  Frame
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed render frames: %s", e.Reason)
	}
	return fmt.Sprintf("malformed render frames at index %d (%s): %s", e.Index, e.Frame, e.Reason)
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedFrames
}

var closerFor = map[Kind]Kind{
	KindOpenElement:   KindCloseElement,
	KindOpenComponent: KindCloseComponent,
	KindOpenRegion:    KindCloseRegion,
}

// Validate checks open/close pairing and attribute placement.
// Attributes must directly follow their owning OpenElement or OpenComponent
// (or another attribute); component bodies may contain only parameters.
func Validate(frames []Frame) error {
	var stack []openFrame
	attributesAllowed := false

	for i, f := range frames {
		switch f.Kind {
		case KindOpenElement:
			if f.Name == "" {
				return &MalformedError{Index: i, Frame: f, Reason: "element without a tag name"}
			}
			if err := checkComponentBody(stack, i, f); err != nil {
				return err
			}
			stack = append(stack, openFrame{i, f.Kind})
			attributesAllowed = true
		case KindOpenComponent:
			if f.Name == "" {
				return &MalformedError{Index: i, Frame: f, Reason: "component without a type name"}
			}
			if err := checkComponentBody(stack, i, f); err != nil {
				return err
			}
			stack = append(stack, openFrame{i, f.Kind})
			attributesAllowed = true
		case KindOpenRegion:
			if err := checkComponentBody(stack, i, f); err != nil {
				return err
			}
			stack = append(stack, openFrame{i, f.Kind})
			attributesAllowed = false
		case KindCloseElement, KindCloseComponent, KindCloseRegion:
			if len(stack) == 0 {
				return &MalformedError{Index: i, Frame: f, Reason: "close without a matching open"}
			}
			top := stack[len(stack)-1]
			if closerFor[top.kind] != f.Kind {
				return &MalformedError{Index: i, Frame: f,
					Reason: fmt.Sprintf("%s does not close %s opened at index %d", f.Kind, top.kind, top.index)}
			}
			stack = stack[:len(stack)-1]
			attributesAllowed = false
		case KindAttribute:
			if !attributesAllowed {
				return &MalformedError{Index: i, Frame: f, Reason: "attribute does not follow an element or component open"}
			}
			if f.Name == "" {
				return &MalformedError{Index: i, Frame: f, Reason: "attribute without a name"}
			}
		case KindText, KindMarkup, KindComment:
			if err := checkComponentBody(stack, i, f); err != nil {
				return err
			}
			attributesAllowed = false
		default:
			return &MalformedError{Index: i, Frame: f, Reason: "unknown frame kind"}
		}
	}

	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return &MalformedError{Index: top.index, Frame: frames[top.index], Reason: "never closed"}
	}
	return nil
}

type openFrame struct {
	index int
	kind  Kind
}

func checkComponentBody(stack []openFrame, i int, f Frame) error {
	if len(stack) > 0 && stack[len(stack)-1].kind == KindOpenComponent {
		return &MalformedError{Index: i, Frame: f, Reason: "component bodies may only carry parameters"}
	}
	return nil
}
