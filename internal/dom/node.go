package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// NormalizeName folds an attribute or tag name for case-insensitive
// comparison.
func NormalizeName(name string) string {
	return folder.String(name)
}

// NewElement creates a detached element node.
func NewElement(tag string) *html.Node {
	tag = NormalizeName(tag)
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// NewText creates a detached text node.
func NewText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// NewComment creates a detached comment node.
func NewComment(text string) *html.Node {
	return &html.Node{Type: html.CommentNode, Data: text}
}

// Attr returns the value of the named attribute.
func Attr(n *html.Node, name string) (string, bool) {
	name = NormalizeName(name)
	for _, a := range n.Attr {
		if a.Namespace == "" && NormalizeName(a.Key) == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets an attribute, keeping its position if it already exists.
// It reports whether anything changed.
func SetAttr(n *html.Node, name, value string) bool {
	name = NormalizeName(name)
	for i, a := range n.Attr {
		if a.Namespace == "" && NormalizeName(a.Key) == name {
			if a.Val == value {
				return false
			}
			n.Attr[i].Val = value
			return true
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
	return true
}

// RemoveAttr deletes an attribute and reports whether it was present.
func RemoveAttr(n *html.Node, name string) bool {
	name = NormalizeName(name)
	for i, a := range n.Attr {
		if a.Namespace == "" && NormalizeName(a.Key) == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return true
		}
	}
	return false
}

// TextContent concatenates the text of n and its descendants.
func TextContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	Walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return sb.String()
}

// Markup renders nodes to HTML.
func Markup(nodes ...*html.Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		if n.Type == html.DocumentNode {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				_ = html.Render(&sb, c)
			}
			continue
		}
		_ = html.Render(&sb, n)
	}
	return sb.String()
}

// InnerMarkup renders the children of n.
func InnerMarkup(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&sb, c)
	}
	return sb.String()
}

// Children returns the element children of n.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}
