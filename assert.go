package rendertest

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/livefir/rendertest/internal/diff"
)

// TestingT is the part of *testing.T the assertions need.
type TestingT interface {
	Helper()
	Errorf(format string, args ...any)
}

// AssertMarkupMatches reports a test failure listing every difference when
// actual does not match expected. actual may be a *RenderedComponent, an
// *Element or a markup string. Components are compared with their
// context's settings, everything else with the defaults.
func AssertMarkupMatches(t TestingT, actual any, expected string) bool {
	t.Helper()

	result, err := compareAny(actual, expected)
	if err != nil {
		t.Errorf("markup could not be compared: %v", err)
		return false
	}
	if !result.IsMatch {
		t.Errorf("%s", result)
		return false
	}
	return true
}

func compareAny(actual any, expected string) (*ComparisonResult, error) {
	switch v := actual.(type) {
	case *RenderedComponent:
		return v.MarkupMatches(expected)
	case *Element:
		var result *ComparisonResult
		err := v.With(func(n *html.Node) error {
			var err error
			result, err = diff.NewHTMLDiffer().CompareNodes(expected, n)
			return err
		})
		return result, err
	case string:
		return diff.NewHTMLDiffer().Compare(expected, v)
	default:
		return nil, fmt.Errorf("cannot compare markup of %T", actual)
	}
}
