package rendertest

import (
	"errors"
	"fmt"

	"github.com/livefir/rendertest/frame"
	"github.com/livefir/rendertest/internal/diff"
	"github.com/livefir/rendertest/internal/dispatch"
	"github.com/livefir/rendertest/internal/dom"
	"github.com/livefir/rendertest/internal/events"
	"github.com/livefir/rendertest/internal/liveness"
)

// Errors surfaced by the harness. Match them with errors.Is.
var (
	ErrNotFound              = dom.ErrNotFound
	ErrNodeNoLongerAvailable = liveness.ErrNodeNoLongerAvailable
	ErrMalformedFrames       = frame.ErrMalformedFrames
	ErrMarkupParse           = diff.ErrMarkupParse

	ErrWaitTimeout     = dispatch.ErrWaitTimeout
	ErrPredicateFailed = dispatch.ErrPredicateFailed
	ErrWaitCanceled    = dispatch.ErrWaitCanceled
	ErrRenderFailed    = dispatch.ErrRenderFailed
	ErrDisposed        = dispatch.ErrDisposed

	ErrMarkupMismatch      = errors.New("markup does not match")
	ErrNoEventHandler      = errors.New("no event handler invoked")
	ErrComponentNotFound   = errors.New("component not found")
	ErrUnresolvedComponent = errors.New("component type cannot be created")
	ErrRenderLoop          = errors.New("components kept requesting renders")
	ErrNotAttached         = errors.New("component is not attached to a render loop")
)

// Aliases for the types returned by the query, wait and compare surfaces.
type (
	Element          = liveness.Element
	ComparisonResult = diff.ComparisonResult
	Difference       = diff.Difference
	RenderEvent      = events.RenderEvent
	EventSource      = events.Source
	Subscription     = events.Subscription

	NotFoundError    = dom.NotFoundError
	SelectorError    = dom.SelectorError
	UnavailableError = liveness.UnavailableError
	WaitError        = dispatch.WaitError
	PanicError       = dispatch.PanicError
	ParseError       = diff.ParseError
	MalformedError   = frame.MalformedError
)

// MarkupMismatchError carries the full comparison of a failed markup check.
type MarkupMismatchError struct {
	Result *diff.ComparisonResult
}

func (e *MarkupMismatchError) Error() string {
	return e.Result.String()
}

func (e *MarkupMismatchError) Is(target error) bool {
	return target == ErrMarkupMismatch
}

// NoEventHandlerError reports an event that reached no handler on its
// target or any ancestor.
type NoEventHandlerError struct {
	Event  string
	Target string
}

func (e *NoEventHandlerError) Error() string {
	return fmt.Sprintf("%s: no %q handler on %s or its ancestors", ErrNoEventHandler, e.Event, e.Target)
}

func (e *NoEventHandlerError) Is(target error) bool {
	return target == ErrNoEventHandler
}
