package diff

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// DifferenceKind classifies a difference.
type DifferenceKind int

const (
	MissingNode DifferenceKind = iota + 1
	UnexpectedNode
	TagMismatch
	AttributeMismatch
	TextMismatch
)

func (k DifferenceKind) String() string {
	switch k {
	case MissingNode:
		return "MissingNode"
	case UnexpectedNode:
		return "UnexpectedNode"
	case TagMismatch:
		return "TagMismatch"
	case AttributeMismatch:
		return "AttributeMismatch"
	case TextMismatch:
		return "TextMismatch"
	default:
		return fmt.Sprintf("DifferenceKind(%d)", int(k))
	}
}

// Difference is one mismatch between expected and actual markup.
//
// Path holds child indices from the fragment root. Node differences point
// at the node itself; attribute and text differences point at the element
// that holds them.
type Difference struct {
	Kind      DifferenceKind
	Path      []int
	Attribute string
	Expected  string
	Actual    string
	// Offset is the byte offset of the first differing character of a
	// TextMismatch in the normalised text, or -1.
	Offset int
}

func (d Difference) String() string {
	at := formatPath(d.Path)
	switch d.Kind {
	case MissingNode:
		return fmt.Sprintf("%s at %s: expected %s, found nothing", d.Kind, at, d.Expected)
	case UnexpectedNode:
		return fmt.Sprintf("%s at %s: found unexpected %s", d.Kind, at, d.Actual)
	case AttributeMismatch:
		return fmt.Sprintf("%s at %s: attribute %q expected %q, actual %q", d.Kind, at, d.Attribute, d.Expected, d.Actual)
	case TextMismatch:
		return fmt.Sprintf("%s at %s: expected %q, actual %q (first difference at offset %d)", d.Kind, at, d.Expected, d.Actual, d.Offset)
	default:
		return fmt.Sprintf("%s at %s: expected %s, actual %s", d.Kind, at, d.Expected, d.Actual)
	}
}

func formatPath(path []int) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = fmt.Sprint(p)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// DOMComparator walks two normalised trees in lockstep.
type DOMComparator struct {
	attributes       AttributeComparer
	strictAttributes bool
}

// NewDOMComparator creates a comparator using the given attribute chain.
// With strictAttributes set, attributes present only in the actual tree
// are reported too.
func NewDOMComparator(attributes AttributeComparer, strictAttributes bool) *DOMComparator {
	return &DOMComparator{attributes: attributes, strictAttributes: strictAttributes}
}

// Compare returns every difference in depth-first order: a node's own
// differences, then its attributes by name, then its children in order.
func (c *DOMComparator) Compare(expected, actual *DOMNode) []Difference {
	var diffs []Difference
	c.compareChildren(expected, actual, &diffs)
	return diffs
}

func (c *DOMComparator) compareNodes(expected, actual *DOMNode, diffs *[]Difference) {
	if expected.Type != actual.Type || (expected.IsElementNode() && expected.Data != actual.Data) {
		*diffs = append(*diffs, Difference{
			Kind:     TagMismatch,
			Path:     actual.Path(),
			Expected: describe(expected),
			Actual:   describe(actual),
			Offset:   -1,
		})
		return
	}

	switch expected.Type {
	case html.TextNode, html.CommentNode:
		if expected.Data != actual.Data {
			*diffs = append(*diffs, Difference{
				Kind:     TextMismatch,
				Path:     actual.Parent.Path(),
				Expected: expected.Data,
				Actual:   actual.Data,
				Offset:   firstDifference(expected.Data, actual.Data),
			})
		}
	case html.ElementNode:
		c.compareAttributes(expected, actual, diffs)
		c.compareChildren(expected, actual, diffs)
	}
}

func (c *DOMComparator) compareAttributes(expected, actual *DOMNode, diffs *[]Difference) {
	path := actual.Path()
	for _, name := range sortedKeys(expected.Attributes) {
		want := expected.Attributes[name]
		got, ok := actual.Attributes[name]
		if !ok {
			*diffs = append(*diffs, Difference{Kind: AttributeMismatch, Path: path, Attribute: name, Expected: want, Actual: "<missing>", Offset: -1})
			continue
		}
		if c.attributes.CompareAttribute(name, want, got) != Equal {
			*diffs = append(*diffs, Difference{Kind: AttributeMismatch, Path: path, Attribute: name, Expected: want, Actual: got, Offset: -1})
		}
	}

	if !c.strictAttributes {
		return
	}
	for _, name := range sortedKeys(actual.Attributes) {
		if _, ok := expected.Attributes[name]; !ok {
			*diffs = append(*diffs, Difference{Kind: AttributeMismatch, Path: path, Attribute: name, Expected: "<missing>", Actual: actual.Attributes[name], Offset: -1})
		}
	}
}

func (c *DOMComparator) compareChildren(expected, actual *DOMNode, diffs *[]Difference) {
	n := len(expected.Children)
	if len(actual.Children) > n {
		n = len(actual.Children)
	}
	for i := 0; i < n; i++ {
		switch {
		case i >= len(actual.Children):
			missing := expected.Children[i]
			*diffs = append(*diffs, Difference{
				Kind:     MissingNode,
				Path:     append(actual.Path(), i),
				Expected: describe(missing),
				Offset:   -1,
			})
		case i >= len(expected.Children):
			extra := actual.Children[i]
			*diffs = append(*diffs, Difference{
				Kind:   UnexpectedNode,
				Path:   extra.Path(),
				Actual: describe(extra),
				Offset: -1,
			})
		default:
			c.compareNodes(expected.Children[i], actual.Children[i], diffs)
		}
	}
}

// describe renders a short, single-line description of a node.
func describe(node *DOMNode) string {
	switch node.Type {
	case html.TextNode:
		return fmt.Sprintf("text %q", truncate(node.Data, 40))
	case html.CommentNode:
		return fmt.Sprintf("comment %q", truncate(node.Data, 40))
	case html.ElementNode:
		var sb strings.Builder
		sb.WriteString("<" + node.Data)
		for _, key := range sortedKeys(node.Attributes) {
			fmt.Fprintf(&sb, ` %s="%s"`, key, html.EscapeString(node.Attributes[key]))
		}
		sb.WriteString(">")
		return sb.String()
	default:
		return "node"
	}
}

// firstDifference returns the byte offset of the first rune where a and b
// differ.
func firstDifference(a, b string) int {
	i := 0
	for i < len(a) && i < len(b) {
		ra, size := utf8.DecodeRuneInString(a[i:])
		rb, _ := utf8.DecodeRuneInString(b[i:])
		if ra != rb {
			return i
		}
		i += size
	}
	return i
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
