package dom

import (
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

var (
	minifier *minify.M
	once     sync.Once
)

// getMinifier returns a configured HTML minifier (singleton)
func getMinifier() *minify.M {
	once.Do(func() {
		minifier = minify.New()
		minifier.Add("text/html", &html.Minifier{
			KeepDefaultAttrVals: true,
			KeepDocumentTags:    true,
			KeepEndTags:         true,
			KeepQuotes:          true,
		})
	})
	return minifier
}

// Compact removes insignificant whitespace from markup so that diagnostics
// stay on one line. Text-only input just has its whitespace collapsed.
func Compact(markup string) string {
	if strings.Contains(markup, "<") {
		minified, err := getMinifier().String("text/html", markup)
		if err != nil {
			return CollapseWhitespace(markup)
		}
		return minified
	}
	return CollapseWhitespace(markup)
}

// CollapseWhitespace trims text and replaces every whitespace run with a
// single space.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
