package dom

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func parseScope(t *testing.T, markup string) []*html.Node {
	t.Helper()
	nodes, err := html.ParseFragment(strings.NewReader(markup), &html.Node{Type: html.ElementNode, Data: "body"})
	require.NoError(t, err)
	root := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return nodes
}

func TestQueryAll(t *testing.T) {
	scope := parseScope(t, `<ul class="list"><li id="a">one</li><li id="b" class="x">two</li></ul><p class="x">three</p>`)

	tests := []struct {
		name     string
		selector string
		want     []string
	}{
		{"matches scope root", "ul.list", []string{"ul"}},
		{"descendants in document order", "li", []string{"a", "b"}},
		{"group selector", "li.x, p.x", []string{"b", "p"}},
		{"no match", "table", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := QueryAll(scope, tt.selector)
			require.NoError(t, err)
			var ids []string
			for _, n := range got {
				if id, ok := Attr(n, "id"); ok {
					ids = append(ids, id)
				} else {
					ids = append(ids, n.Data)
				}
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestQuery_NotFound(t *testing.T) {
	scope := parseScope(t, `<div></div>`)

	_, err := Query(scope, "span.missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "span.missing", nf.Selector)
}

func TestQuery_InvalidSelector(t *testing.T) {
	scope := parseScope(t, `<div></div>`)

	_, err := Query(scope, "div[")
	var se *SelectorError
	require.True(t, errors.As(err, &se))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestQueryXPath_ScopeFilter(t *testing.T) {
	scope := parseScope(t, `<div id="in"><span>a</span></div><div id="out"><span>b</span></div>`)
	root := scope[0].Parent

	got, err := QueryXPath(root, scope[:1], "//span")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", TextContent(got[0]))
}

func TestAttr_CaseInsensitive(t *testing.T) {
	n := NewElement("DIV")
	assert.Equal(t, "div", n.Data)

	assert.True(t, SetAttr(n, "Data-Value", "1"))
	assert.False(t, SetAttr(n, "data-value", "1"))

	v, ok := Attr(n, "DATA-VALUE")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	assert.True(t, RemoveAttr(n, "data-VALUE"))
	assert.Empty(t, n.Attr)
}

func TestCompact(t *testing.T) {
	assert.Equal(t, "a b", Compact("  a \n\t b "))
	assert.Equal(t, "<p>Hello</p>", Compact("<p>Hello</p>"))
}
