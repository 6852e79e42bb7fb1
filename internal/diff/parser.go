package diff

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/livefir/rendertest/internal/dom"
)

// ErrMarkupParse marks markup that could not be parsed. It is never a
// comparison result.
var ErrMarkupParse = errors.New("markup parse error")

// ParseError describes why markup was rejected.
type ParseError struct {
	Markup string
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s (in %q)", ErrMarkupParse, e.Offset, e.Reason, truncate(e.Markup, 80))
}

func (e *ParseError) Is(target error) bool {
	return target == ErrMarkupParse
}

// DOMNode is a normalised node used for comparison. The fragment root is a
// DocumentNode whose children are the top-level nodes.
type DOMNode struct {
	Type       html.NodeType
	Data       string
	Attributes map[string]string
	Children   []*DOMNode
	Parent     *DOMNode
	// Preformatted is set on text inside pre, textarea, script and style,
	// whose whitespace is significant.
	Preformatted bool
}

// DOMParser turns markup or rendered nodes into DOMNode trees.
type DOMParser struct {
	ignoreComments bool
}

// NewDOMParser creates a new DOM parser
func NewDOMParser(ignoreComments bool) *DOMParser {
	return &DOMParser{ignoreComments: ignoreComments}
}

// ParseFragment parses markup without an html/body wrapper. Stray or
// mismatched end tags are rejected instead of being silently repaired.
func (p *DOMParser) ParseFragment(markup string) (*DOMNode, error) {
	if err := checkEndTags(markup); err != nil {
		return nil, err
	}

	nodes, err := html.ParseFragment(strings.NewReader(markup), fragmentContext(markup))
	if err != nil {
		return nil, &ParseError{Markup: markup, Reason: err.Error()}
	}
	return p.FromNodes(nodes...), nil
}

// FromNodes converts already parsed nodes into a normalised fragment.
func (p *DOMParser) FromNodes(nodes ...*html.Node) *DOMNode {
	root := &DOMNode{Type: html.DocumentNode, Attributes: map[string]string{}}
	for _, n := range nodes {
		if n.Type == html.DocumentNode {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				p.appendNode(root, c, false)
			}
			continue
		}
		p.appendNode(root, n, false)
	}
	return p.normalize(root)
}

func (p *DOMParser) appendNode(parent *DOMNode, n *html.Node, pre bool) {
	switch n.Type {
	case html.DoctypeNode:
		return
	case html.CommentNode:
		if p.ignoreComments {
			return
		}
	}

	node := &DOMNode{
		Type:         n.Type,
		Data:         n.Data,
		Attributes:   make(map[string]string, len(n.Attr)),
		Parent:       parent,
		Preformatted: pre && n.Type == html.TextNode,
	}
	if n.Type == html.ElementNode {
		node.Data = dom.NormalizeName(n.Data)
		for _, a := range n.Attr {
			key := dom.NormalizeName(a.Key)
			if a.Namespace != "" {
				key = a.Namespace + ":" + key
			}
			node.Attributes[key] = a.Val
		}
	}
	parent.Children = append(parent.Children, node)

	childPre := pre || preservesWhitespace(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.appendNode(node, c, childPre)
	}
}

// normalize merges adjacent text, collapses insignificant whitespace and
// drops text that is only whitespace.
func (p *DOMParser) normalize(node *DOMNode) *DOMNode {
	var children []*DOMNode
	for _, c := range node.Children {
		if c.Type == html.TextNode {
			if n := len(children); n > 0 && children[n-1].Type == html.TextNode && children[n-1].Preformatted == c.Preformatted {
				children[n-1].Data += c.Data
				continue
			}
		}
		children = append(children, c)
	}

	node.Children = node.Children[:0]
	for _, c := range children {
		if c.Type == html.TextNode && !c.Preformatted {
			c.Data = dom.CollapseWhitespace(c.Data)
			if c.Data == "" {
				continue
			}
		}
		node.Children = append(node.Children, p.normalize(c))
	}
	return node
}

func preservesWhitespace(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Pre, atom.Textarea, atom.Script, atom.Style, atom.Listing:
		return true
	}
	return false
}

// fragmentContext picks the parent element the HTML5 algorithm needs for
// table and select content to survive parsing.
func fragmentContext(markup string) *html.Node {
	data := "body"
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, _ := z.TagName()
		switch atom.Lookup(name) {
		case atom.Tr:
			data = "tbody"
		case atom.Td, atom.Th:
			data = "tr"
		case atom.Tbody, atom.Thead, atom.Tfoot, atom.Caption, atom.Colgroup:
			data = "table"
		case atom.Col:
			data = "colgroup"
		case atom.Option, atom.Optgroup:
			data = "select"
		}
		break
	}
	return &html.Node{Type: html.ElementNode, Data: data, DataAtom: atom.Lookup([]byte(data))}
}

var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true, atom.Embed: true,
	atom.Hr: true, atom.Img: true, atom.Input: true, atom.Link: true, atom.Meta: true,
	atom.Source: true, atom.Track: true, atom.Wbr: true,
}

// Elements whose end tag may be omitted.
var optionalEnd = map[atom.Atom]bool{
	atom.P: true, atom.Li: true, atom.Dt: true, atom.Dd: true, atom.Option: true,
	atom.Optgroup: true, atom.Tr: true, atom.Td: true, atom.Th: true, atom.Thead: true,
	atom.Tbody: true, atom.Tfoot: true, atom.Colgroup: true, atom.Rb: true, atom.Rt: true,
	atom.Rp: true,
}

// checkEndTags tokenizes markup and reports end tags that close nothing or
// close an element other than the innermost one.
func checkEndTags(markup string) error {
	z := html.NewTokenizer(strings.NewReader(markup))
	var open []string
	offset := 0

	for {
		tt := z.Next()
		raw := len(z.Raw())
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != nil && err != io.EOF {
				return &ParseError{Markup: markup, Offset: offset, Reason: err.Error()}
			}
			return nil
		case html.StartTagToken:
			name, _ := z.TagName()
			if !voidElements[atom.Lookup(name)] {
				open = append(open, string(name))
			}
		case html.EndTagToken:
			bytes, _ := z.TagName()
			name := string(bytes)
			i := len(open) - 1
			for i >= 0 && open[i] != name {
				if !optionalEnd[atom.Lookup([]byte(open[i]))] {
					break
				}
				i--
			}
			switch {
			case i < 0:
				return &ParseError{Markup: markup, Offset: offset, Reason: fmt.Sprintf("unexpected end tag </%s>", name)}
			case open[i] != name:
				return &ParseError{Markup: markup, Offset: offset, Reason: fmt.Sprintf("end tag </%s> does not match open <%s>", name, open[i])}
			}
			open = open[:i]
		}
		offset += raw
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Path returns the child-index path from the fragment root to node.
func (node *DOMNode) Path() []int {
	var path []int
	for cur := node; cur.Parent != nil; cur = cur.Parent {
		for i, sibling := range cur.Parent.Children {
			if sibling == cur {
				path = append(path, i)
				break
			}
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// IsElementNode returns true if this is an element node
func (node *DOMNode) IsElementNode() bool {
	return node.Type == html.ElementNode
}

// IsTextNode returns true if this is a text node
func (node *DOMNode) IsTextNode() bool {
	return node.Type == html.TextNode
}

// GetTextContent returns the concatenated text content of the node and its children
func (node *DOMNode) GetTextContent() string {
	if node.IsTextNode() {
		return node.Data
	}

	var text strings.Builder
	for _, child := range node.Children {
		text.WriteString(child.GetTextContent())
	}
	return text.String()
}

// Markup renders node back to HTML, attributes sorted by name.
func (node *DOMNode) Markup() string {
	var sb strings.Builder
	node.render(&sb)
	return sb.String()
}

func (node *DOMNode) render(sb *strings.Builder) {
	switch node.Type {
	case html.TextNode:
		if node.Preformatted {
			sb.WriteString(node.Data)
		} else {
			sb.WriteString(html.EscapeString(node.Data))
		}
	case html.CommentNode:
		sb.WriteString("<!--" + node.Data + "-->")
	case html.ElementNode:
		sb.WriteString("<" + node.Data)
		for _, key := range sortedKeys(node.Attributes) {
			fmt.Fprintf(sb, ` %s="%s"`, key, html.EscapeString(node.Attributes[key]))
		}
		sb.WriteString(">")
		if voidElements[atom.Lookup([]byte(node.Data))] {
			return
		}
		for _, c := range node.Children {
			c.render(sb)
		}
		sb.WriteString("</" + node.Data + ">")
	default:
		for _, c := range node.Children {
			c.render(sb)
		}
	}
}
