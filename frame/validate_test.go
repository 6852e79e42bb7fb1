package frame

import (
	"context"
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		build   func(b *Builder)
		frames  []Frame
		wantErr bool
	}{
		{
			name: "element with attributes and text",
			build: func(b *Builder) {
				b.OpenElement(0, "h1")
				b.AddAttribute(1, "id", "header")
				b.AddText(2, "Hello world")
				b.CloseElement()
			},
		},
		{
			name: "component with parameters",
			build: func(b *Builder) {
				b.OpenComponent(0, "Counter", nil)
				b.AddParameter(1, "Start", 3)
				b.CloseComponent()
			},
		},
		{
			name: "nested regions",
			build: func(b *Builder) {
				b.OpenRegion(0)
				b.OpenRegion(1)
				b.AddText(2, "x")
				b.CloseRegion()
				b.CloseRegion()
			},
		},
		{
			name:    "close without open",
			frames:  []Frame{{Kind: KindCloseElement}},
			wantErr: true,
		},
		{
			name: "mismatched close",
			frames: []Frame{
				{Kind: KindOpenElement, Name: "div"},
				{Kind: KindCloseRegion},
			},
			wantErr: true,
		},
		{
			name:    "never closed",
			frames:  []Frame{{Kind: KindOpenElement, Name: "div"}},
			wantErr: true,
		},
		{
			name: "attribute after content",
			frames: []Frame{
				{Kind: KindOpenElement, Name: "div"},
				{Kind: KindText, Value: "x"},
				{Kind: KindAttribute, Name: "id", Value: "a"},
				{Kind: KindCloseElement},
			},
			wantErr: true,
		},
		{
			name: "content inside component body",
			frames: []Frame{
				{Kind: KindOpenComponent, Name: "Child"},
				{Kind: KindText, Value: "x"},
				{Kind: KindCloseComponent},
			},
			wantErr: true,
		},
		{
			name:    "top level attribute",
			frames:  []Frame{{Kind: KindAttribute, Name: "id"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := tt.frames
			if tt.build != nil {
				b := NewBuilder()
				tt.build(b)
				frames = b.Frames()
			}

			err := Validate(frames)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Validate() expected an error")
				}
				if !errors.Is(err, ErrMalformedFrames) {
					t.Errorf("Validate() error %v is not ErrMalformedFrames", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestBuilder_SetKey(t *testing.T) {
	b := NewBuilder()
	b.OpenElement(0, "li")
	b.SetKey("item-1")
	b.AddText(1, "one")
	b.CloseElement()

	frames := b.Frames()
	if frames[0].Key != "item-1" {
		t.Errorf("expected key on open frame, got %q", frames[0].Key)
	}
	if frames[1].Key != "" {
		t.Errorf("key leaked onto text frame: %q", frames[1].Key)
	}
}

func TestFrame_EventName(t *testing.T) {
	b := NewBuilder()
	b.OpenElement(0, "button")
	b.AddEventHandler(1, "click", func(context.Context, EventArgs) error { return nil })
	b.CloseElement()

	attr := b.Frames()[1]
	if !attr.IsEventHandler() {
		t.Fatal("expected handler attribute")
	}
	if got := attr.EventName(); got != "click" {
		t.Errorf("EventName() = %q, want click", got)
	}
}
