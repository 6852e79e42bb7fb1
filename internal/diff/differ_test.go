package diff

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/net/html"
)

func TestHTMLDiffer_Compare(t *testing.T) {
	differ := NewHTMLDiffer()

	tests := []struct {
		name     string
		expected string
		actual   string
		want     []Difference
	}{
		{
			name:     "attribute order",
			expected: `<div a="1" b="2"></div>`,
			actual:   `<div b="2" a="1"></div>`,
		},
		{
			name:     "class token order",
			expected: `<p class="foo  bar">x</p>`,
			actual:   `<p class="bar foo">x</p>`,
		},
		{
			name:     "whitespace runs",
			expected: "<p>Hello   World</p>",
			actual:   "<p>Hello World</p>",
		},
		{
			name:     "whitespace between elements",
			expected: "<div>\n  <p>a</p>\n</div>",
			actual:   "<div><p>a</p></div>",
		},
		{
			name:     "regex attribute",
			expected: `<span id="REGEX:^id-[0-9]+$"></span>`,
			actual:   `<span id="id-482"></span>`,
		},
		{
			name:     "regex attribute mismatch",
			expected: `<span id="REGEX:^id-[0-9]+$"></span>`,
			actual:   `<span id="id-x"></span>`,
			want: []Difference{
				{Kind: AttributeMismatch, Path: []int{0}, Attribute: "id", Expected: "REGEX:^id-[0-9]+$", Actual: "id-x", Offset: -1},
			},
		},
		{
			name:     "unchecked attributes in actual",
			expected: `<h1>Hello world</h1>`,
			actual:   `<h1 id="header" attr="">Hello world</h1>`,
		},
		{
			name:     "text mismatch",
			expected: `<h1>Goodbye</h1>`,
			actual:   `<h1 id="header" attr="">Hello world</h1>`,
			want: []Difference{
				{Kind: TextMismatch, Path: []int{0}, Expected: "Goodbye", Actual: "Hello world", Offset: 0},
			},
		},
		{
			name:     "text mismatch offset",
			expected: `<p>Hello world</p>`,
			actual:   `<p>Hello there</p>`,
			want: []Difference{
				{Kind: TextMismatch, Path: []int{0}, Expected: "Hello world", Actual: "Hello there", Offset: 6},
			},
		},
		{
			name:     "missing attribute",
			expected: `<input type="text">`,
			actual:   `<input>`,
			want: []Difference{
				{Kind: AttributeMismatch, Path: []int{0}, Attribute: "type", Expected: "text", Actual: "<missing>", Offset: -1},
			},
		},
		{
			name:     "missing node",
			expected: `<ul><li>a</li><li>b</li></ul>`,
			actual:   `<ul><li>a</li></ul>`,
			want: []Difference{
				{Kind: MissingNode, Path: []int{0, 1}, Expected: "<li>", Offset: -1},
			},
		},
		{
			name:     "unexpected node",
			expected: `<ul><li>a</li></ul>`,
			actual:   `<ul><li>a</li><li class="x">b</li></ul>`,
			want: []Difference{
				{Kind: UnexpectedNode, Path: []int{0, 1}, Actual: `<li class="x">`, Offset: -1},
			},
		},
		{
			name:     "tag mismatch",
			expected: `<span>x</span>`,
			actual:   `<div>x</div>`,
			want: []Difference{
				{Kind: TagMismatch, Path: []int{0}, Expected: "<span>", Actual: "<div>", Offset: -1},
			},
		},
		{
			name:     "element where text expected",
			expected: `<p>x</p>`,
			actual:   `<p><b>x</b></p>`,
			want: []Difference{
				{Kind: TagMismatch, Path: []int{0, 0}, Expected: `text "x"`, Actual: "<b>", Offset: -1},
			},
		},
		{
			name:     "depth-first order with attributes by name",
			expected: `<div b="1" a="1"><span>x</span></div>`,
			actual:   `<div a="2" b="2"><span>y</span></div>`,
			want: []Difference{
				{Kind: AttributeMismatch, Path: []int{0}, Attribute: "a", Expected: "1", Actual: "2", Offset: -1},
				{Kind: AttributeMismatch, Path: []int{0}, Attribute: "b", Expected: "1", Actual: "2", Offset: -1},
				{Kind: TextMismatch, Path: []int{0, 0}, Expected: "x", Actual: "y", Offset: 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := differ.Compare(tt.expected, tt.actual)
			if err != nil {
				t.Fatalf("Compare() error = %v", err)
			}
			if result.IsMatch != (len(tt.want) == 0) {
				t.Errorf("IsMatch = %v, differences: %v", result.IsMatch, result.Differences)
			}
			if diff := cmp.Diff(tt.want, result.Differences, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Differences mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHTMLDiffer_StrictAttributes(t *testing.T) {
	differ := NewHTMLDiffer(WithStrictAttributes(true))

	result, err := differ.Compare(`<h1>Hi</h1>`, `<h1 id="header">Hi</h1>`)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	want := []Difference{
		{Kind: AttributeMismatch, Path: []int{0}, Attribute: "id", Expected: "<missing>", Actual: "header", Offset: -1},
	}
	if diff := cmp.Diff(want, result.Differences); diff != "" {
		t.Errorf("Differences mismatch (-want +got):\n%s", diff)
	}
}

func TestHTMLDiffer_Comments(t *testing.T) {
	ignoring := NewHTMLDiffer()
	result, err := ignoring.Compare(`<p><!--a-->x</p>`, `<p>x<!--b--></p>`)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !result.IsMatch {
		t.Errorf("expected comments to be ignored: %s", result)
	}

	strict := NewHTMLDiffer(WithIgnoreComments(false))
	result, err = strict.Compare(`<p><!--a--></p>`, `<p><!--b--></p>`)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(result.Differences) != 1 || result.Differences[0].Kind != TextMismatch {
		t.Errorf("expected one TextMismatch, got %v", result.Differences)
	}
}

func TestHTMLDiffer_CustomComparer(t *testing.T) {
	differ := NewHTMLDiffer(WithComparer(ComparerFunc(func(name, expected, actual string) Verdict {
		if name == "style" {
			return Equal
		}
		return Undecided
	})))

	result, err := differ.Compare(`<p style="color:red" title="a"></p>`, `<p style="color: blue" title="b"></p>`)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(result.Differences) != 1 || result.Differences[0].Attribute != "title" {
		t.Errorf("expected only title to differ, got %v", result.Differences)
	}
}

func TestHTMLDiffer_ParseErrorIsNotADifference(t *testing.T) {
	differ := NewHTMLDiffer()

	for _, pair := range [][2]string{
		{"<div></span>", "<div></div>"},
		{"<div></div>", "<div></span>"},
	} {
		result, err := differ.Compare(pair[0], pair[1])
		if !errors.Is(err, ErrMarkupParse) {
			t.Errorf("Compare(%q, %q) error = %v, want ErrMarkupParse", pair[0], pair[1], err)
		}
		if result != nil {
			t.Errorf("expected nil result on parse error")
		}
		var pe *ParseError
		if !errors.As(err, &pe) || !strings.Contains(pe.Reason, "</span>") {
			t.Errorf("expected ParseError naming </span>, got %v", err)
		}
	}
}

func TestHTMLDiffer_CompareNodes(t *testing.T) {
	differ := NewHTMLDiffer()

	nodes, err := html.ParseFragment(strings.NewReader(`<button class="btn primary" type="submit">Save</button>`),
		&html.Node{Type: html.ElementNode, Data: "body"})
	if err != nil {
		t.Fatal(err)
	}

	result, err := differ.CompareNodes(`<button type="submit" class="primary btn">Save</button>`, nodes...)
	if err != nil {
		t.Fatalf("CompareNodes() error = %v", err)
	}
	if !result.IsMatch {
		t.Errorf("expected match, got %s", result)
	}
}

func TestComparisonResult_String(t *testing.T) {
	differ := NewHTMLDiffer()

	result, err := differ.Compare(`<h1>Goodbye</h1>`, `<h1 id="header">Hello world</h1>`)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	msg := result.String()
	for _, want := range []string{
		"1 difference\n",
		`1. TextMismatch at [0]: expected "Goodbye", actual "Hello world"`,
		"expected: <h1>Goodbye</h1>",
		`actual:   <h1 id="header">Hello world</h1>`,
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("String() missing %q:\n%s", want, msg)
		}
	}
}

func TestHTMLDiffer_Normalize(t *testing.T) {
	differ := NewHTMLDiffer()

	got, err := differ.Normalize(`<div b="2"   a="1">  x  <!-- note --></div>`)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if want := `<div a="1" b="2">x</div>`; got != want {
		t.Errorf("Normalize() = %s, want %s", got, want)
	}
}
