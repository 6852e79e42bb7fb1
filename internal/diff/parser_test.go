package diff

import (
	"errors"
	"testing"

	"golang.org/x/net/html"
)

func TestDOMParser_ParseFragment(t *testing.T) {
	parser := NewDOMParser(true)

	tests := []struct {
		name     string
		html     string
		wantErr  bool
		validate func(t *testing.T, node *DOMNode)
	}{
		{
			name: "multiple top-level elements",
			html: "<p>Hello</p><p>World</p>",
			validate: func(t *testing.T, node *DOMNode) {
				if node.Type != html.DocumentNode {
					t.Errorf("expected DocumentNode root, got %v", node.Type)
				}
				if len(node.Children) != 2 {
					t.Errorf("expected 2 children, got %d", len(node.Children))
				}
			},
		},
		{
			name: "whitespace collapsed and blank text dropped",
			html: "<div>\n  <p> Hello   world </p>\n</div>",
			validate: func(t *testing.T, node *DOMNode) {
				div := node.Children[0]
				if len(div.Children) != 1 {
					t.Fatalf("expected 1 child, got %d", len(div.Children))
				}
				if got := div.Children[0].GetTextContent(); got != "Hello world" {
					t.Errorf("expected 'Hello world', got %q", got)
				}
			},
		},
		{
			name: "pre keeps whitespace",
			html: "<pre>  a  b</pre>",
			validate: func(t *testing.T, node *DOMNode) {
				if got := node.Children[0].GetTextContent(); got != "  a  b" {
					t.Errorf("expected preserved whitespace, got %q", got)
				}
			},
		},
		{
			name: "comments dropped and text merged",
			html: "<p>a<!-- c -->b</p>",
			validate: func(t *testing.T, node *DOMNode) {
				p := node.Children[0]
				if len(p.Children) != 1 || p.Children[0].Data != "ab" {
					t.Errorf("expected single text 'ab', got %+v", p.Children)
				}
			},
		},
		{
			name: "names folded to lower case",
			html: `<DIV CLASS="a"></DIV>`,
			validate: func(t *testing.T, node *DOMNode) {
				div := node.Children[0]
				if div.Data != "div" || div.Attributes["class"] != "a" {
					t.Errorf("unexpected node %s %v", div.Data, div.Attributes)
				}
			},
		},
		{
			name: "table rows keep their tags",
			html: "<tr><td>1</td></tr>",
			validate: func(t *testing.T, node *DOMNode) {
				if len(node.Children) != 1 || node.Children[0].Data != "tr" {
					t.Fatalf("expected tr root, got %+v", node.Children)
				}
				if node.Children[0].Children[0].Data != "td" {
					t.Errorf("expected td child")
				}
			},
		},
		{
			name: "optional end tags",
			html: "<ul><li>a<li>b</ul>",
			validate: func(t *testing.T, node *DOMNode) {
				if got := len(node.Children[0].Children); got != 2 {
					t.Errorf("expected 2 items, got %d", got)
				}
			},
		},
		{
			name: "empty fragment",
			html: "",
			validate: func(t *testing.T, node *DOMNode) {
				if len(node.Children) != 0 {
					t.Errorf("expected no children, got %d", len(node.Children))
				}
			},
		},
		{name: "stray end tag", html: "<div></span></div>", wantErr: true},
		{name: "mismatched end tag", html: "<div><span></div>", wantErr: true},
		{name: "end tag without start", html: "</p>", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := parser.ParseFragment(tt.html)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFragment() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrMarkupParse) {
					t.Errorf("expected ErrMarkupParse, got %v", err)
				}
				return
			}
			if tt.validate != nil {
				tt.validate(t, node)
			}
		})
	}
}

func TestDOMParser_KeepsComments(t *testing.T) {
	parser := NewDOMParser(false)

	node, err := parser.ParseFragment("<p>a<!--c-->b</p>")
	if err != nil {
		t.Fatalf("ParseFragment() error = %v", err)
	}
	if got := len(node.Children[0].Children); got != 3 {
		t.Errorf("expected text, comment, text; got %d children", got)
	}
}

func TestDOMNode_Path(t *testing.T) {
	parser := NewDOMParser(true)

	node, err := parser.ParseFragment("<div><span>a</span><span>b</span></div><p></p>")
	if err != nil {
		t.Fatalf("ParseFragment() error = %v", err)
	}
	second := node.Children[0].Children[1]
	if got := formatPath(second.Path()); got != "[0,1]" {
		t.Errorf("Path() = %s, want [0,1]", got)
	}
	if got := formatPath(node.Children[1].Path()); got != "[1]" {
		t.Errorf("Path() = %s, want [1]", got)
	}
}

func TestDOMNode_Markup(t *testing.T) {
	parser := NewDOMParser(true)

	node, err := parser.ParseFragment(`<div b="2"   a="1">  x &amp; y  <br></div>`)
	if err != nil {
		t.Fatalf("ParseFragment() error = %v", err)
	}
	want := `<div a="1" b="2">x &amp; y<br></div>`
	if got := node.Markup(); got != want {
		t.Errorf("Markup() = %s, want %s", got, want)
	}
}
