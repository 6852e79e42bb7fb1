package rendertest

import (
	"fmt"
	"sync"

	"github.com/livefir/rendertest/frame"
)

// ComponentFactory creates child components by type name. Factories are
// consulted in configuration order and the first that can create a type
// wins; when none does, the component's own constructor is used.
type ComponentFactory interface {
	CanCreate(typeName string) bool
	// Create builds the component. fallback is the constructor the parent
	// rendered with and may be nil.
	Create(typeName string, fallback func() any) (Component, error)
}

// factoryChain resolves a type name through the configured factories.
type factoryChain []ComponentFactory

func (fc factoryChain) create(typeName string, fallback func() any) (Component, error) {
	for _, f := range fc {
		if f.CanCreate(typeName) {
			return f.Create(typeName, fallback)
		}
	}
	if fallback == nil {
		return nil, fmt.Errorf("%w: %s has no constructor and no factory claims it", ErrUnresolvedComponent, typeName)
	}
	return asComponent(typeName, fallback())
}

func asComponent(typeName string, v any) (Component, error) {
	c, ok := v.(Component)
	if !ok {
		return nil, fmt.Errorf("%w: %s constructor returned %T", ErrUnresolvedComponent, typeName, v)
	}
	return c, nil
}

// StubComponent stands in for a real component. It records every parameter
// set it receives and renders whatever its template produces, or nothing.
type StubComponent struct {
	typeName string
	template func(Parameters) string

	mu      sync.Mutex
	history []Parameters
}

// TypeName returns the type the stub replaces.
func (s *StubComponent) TypeName() string {
	return s.typeName
}

// SetParameters implements ParameterReceiver.
func (s *StubComponent) SetParameters(params Parameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, params)
	return nil
}

// Parameters returns the most recent parameters.
func (s *StubComponent) Parameters() Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return nil
	}
	return s.history[len(s.history)-1]
}

// ParameterHistory returns every parameter set in the order received.
func (s *StubComponent) ParameterHistory() []Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Parameters, len(s.history))
	copy(out, s.history)
	return out
}

// Render implements Component.
func (s *StubComponent) Render(b *frame.Builder) {
	if s.template == nil {
		return
	}
	b.AddMarkup(0, s.template(s.Parameters()))
}

// StubFactory replaces one component type with stubs.
type StubFactory struct {
	typeName string
	template func(Parameters) string

	mu    sync.Mutex
	stubs []*StubComponent
}

// Stub replaces typeName with a stub that renders nothing.
func Stub(typeName string) *StubFactory {
	return &StubFactory{typeName: typeName}
}

// StubMarkup replaces typeName with a stub rendering template's markup for
// the parameters it was given.
func StubMarkup(typeName string, template func(Parameters) string) *StubFactory {
	return &StubFactory{typeName: typeName, template: template}
}

// CanCreate implements ComponentFactory.
func (f *StubFactory) CanCreate(typeName string) bool {
	return typeName == f.typeName
}

// Create implements ComponentFactory.
func (f *StubFactory) Create(typeName string, _ func() any) (Component, error) {
	s := &StubComponent{typeName: typeName, template: f.template}
	f.mu.Lock()
	f.stubs = append(f.stubs, s)
	f.mu.Unlock()
	return s, nil
}

// Stubs returns every stub created so far.
func (f *StubFactory) Stubs() []*StubComponent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*StubComponent, len(f.stubs))
	copy(out, f.stubs)
	return out
}

// substituteFactory hands out a fixed instance.
type substituteFactory struct {
	typeName string
	instance Component
}

// Substitute makes every child of typeName use instance. Sharing one
// instance between several rendered children is the caller's choice.
func Substitute(typeName string, instance Component) ComponentFactory {
	return &substituteFactory{typeName: typeName, instance: instance}
}

func (f *substituteFactory) CanCreate(typeName string) bool {
	return typeName == f.typeName
}

func (f *substituteFactory) Create(string, func() any) (Component, error) {
	return f.instance, nil
}

// FactoryFunc adapts a function to ComponentFactory for a single type.
func FactoryFunc(typeName string, create func() Component) ComponentFactory {
	return &funcFactory{typeName: typeName, create: create}
}

type funcFactory struct {
	typeName string
	create   func() Component
}

func (f *funcFactory) CanCreate(typeName string) bool {
	return typeName == f.typeName
}

func (f *funcFactory) Create(string, func() any) (Component, error) {
	return f.create(), nil
}
