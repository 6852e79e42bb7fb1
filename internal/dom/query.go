package dom

import (
	"errors"
	"fmt"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// ErrNotFound is matched by NotFoundError.
var ErrNotFound = errors.New("no matching node")

// NotFoundError reports a query that matched nothing.
type NotFoundError struct {
	Selector string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no elements match the selector %q", e.Selector)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// SelectorError reports a selector or XPath expression that failed to compile.
type SelectorError struct {
	Selector string
	Err      error
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("invalid selector %q: %v", e.Selector, e.Err)
}

func (e *SelectorError) Unwrap() error {
	return e.Err
}

// Compile parses a CSS selector group.
func Compile(selector string) (cascadia.SelectorGroup, error) {
	group, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, &SelectorError{Selector: selector, Err: err}
	}
	return group, nil
}

// QueryAll returns every element among scope (and their descendants) that
// matches selector, in document order.
func QueryAll(scope []*html.Node, selector string) ([]*html.Node, error) {
	group, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	return MatchAll(scope, group), nil
}

// MatchAll is QueryAll with a precompiled matcher.
func MatchAll(scope []*html.Node, m cascadia.Matcher) []*html.Node {
	var out []*html.Node
	for _, n := range scope {
		if n.Type == html.ElementNode && m.Match(n) {
			out = append(out, n)
		}
		out = append(out, cascadia.QueryAll(n, m)...)
	}
	return out
}

// Query returns the first match or a NotFoundError.
func Query(scope []*html.Node, selector string) (*html.Node, error) {
	matches, err := QueryAll(scope, selector)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, &NotFoundError{Selector: selector}
	}
	return matches[0], nil
}

// QueryXPath evaluates expr against root and keeps the element results that
// fall inside scope.
func QueryXPath(root *html.Node, scope []*html.Node, expr string) ([]*html.Node, error) {
	nodes, err := htmlquery.QueryAll(root, expr)
	if err != nil {
		return nil, &SelectorError{Selector: expr, Err: err}
	}
	out := nodes[:0]
	for _, n := range nodes {
		if n.Type == html.ElementNode && Within(n, scope) {
			out = append(out, n)
		}
	}
	return out, nil
}

// Within reports whether n is one of scope or a descendant of one of them.
func Within(n *html.Node, scope []*html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		for _, s := range scope {
			if cur == s {
				return true
			}
		}
	}
	return false
}
