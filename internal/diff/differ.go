// Package diff compares markup semantically: attribute order, class token
// order and insignificant whitespace never cause a mismatch.
package diff

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/livefir/rendertest/internal/dom"
)

// DefaultRegexPrefix marks an expected attribute value as a pattern.
const DefaultRegexPrefix = "REGEX:"

// ComparisonResult is the outcome of one comparison.
type ComparisonResult struct {
	IsMatch     bool
	Differences []Difference
	Expected    string
	Actual      string
}

// String renders a numbered difference list followed by both fragments in
// compact form.
func (r *ComparisonResult) String() string {
	if r.IsMatch {
		return "markup matches"
	}
	var sb strings.Builder
	noun := "differences"
	if len(r.Differences) == 1 {
		noun = "difference"
	}
	fmt.Fprintf(&sb, "markup does not match: %d %s\n", len(r.Differences), noun)
	for i, d := range r.Differences {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, d)
	}
	fmt.Fprintf(&sb, "expected: %s\n", dom.Compact(r.Expected))
	fmt.Fprintf(&sb, "actual:   %s", dom.Compact(r.Actual))
	return sb.String()
}

// Option configures an HTMLDiffer.
type Option func(*HTMLDiffer)

// WithIgnoreComments drops comments from both sides before comparing.
func WithIgnoreComments(ignore bool) Option {
	return func(d *HTMLDiffer) { d.ignoreComments = ignore }
}

// WithStrictAttributes reports attributes that appear only in the actual
// markup.
func WithStrictAttributes(strict bool) Option {
	return func(d *HTMLDiffer) { d.strictAttributes = strict }
}

// WithRegexPrefix changes the marker for regex attribute values. An empty
// prefix disables regex matching.
func WithRegexPrefix(prefix string) Option {
	return func(d *HTMLDiffer) { d.regexPrefix = prefix }
}

// WithComparer adds a custom attribute comparer. Custom comparers run
// after the class-set and regex comparers and before exact equality.
func WithComparer(c AttributeComparer) Option {
	return func(d *HTMLDiffer) { d.custom = append(d.custom, c) }
}

// HTMLDiffer is the main entry point for markup comparison.
type HTMLDiffer struct {
	ignoreComments   bool
	strictAttributes bool
	regexPrefix      string
	custom           []AttributeComparer

	parser     *DOMParser
	comparator *DOMComparator
}

// NewHTMLDiffer creates a differ. Comments are ignored by default.
func NewHTMLDiffer(opts ...Option) *HTMLDiffer {
	d := &HTMLDiffer{
		ignoreComments: true,
		regexPrefix:    DefaultRegexPrefix,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.parser = NewDOMParser(d.ignoreComments)
	d.comparator = NewDOMComparator(NewChain(d.regexPrefix, d.custom...), d.strictAttributes)
	return d
}

// Compare parses both fragments and compares them. A parse failure is
// returned as an error, never as a difference.
func (hd *HTMLDiffer) Compare(expectedMarkup, actualMarkup string) (*ComparisonResult, error) {
	expected, err := hd.parser.ParseFragment(expectedMarkup)
	if err != nil {
		return nil, fmt.Errorf("parse expected markup: %w", err)
	}
	actual, err := hd.parser.ParseFragment(actualMarkup)
	if err != nil {
		return nil, fmt.Errorf("parse actual markup: %w", err)
	}
	return hd.result(expected, actual, expectedMarkup, actualMarkup), nil
}

// CompareNodes compares expected markup with already rendered nodes.
func (hd *HTMLDiffer) CompareNodes(expectedMarkup string, actual ...*html.Node) (*ComparisonResult, error) {
	expected, err := hd.parser.ParseFragment(expectedMarkup)
	if err != nil {
		return nil, fmt.Errorf("parse expected markup: %w", err)
	}
	return hd.result(expected, hd.parser.FromNodes(actual...), expectedMarkup, dom.Markup(actual...)), nil
}

func (hd *HTMLDiffer) result(expected, actual *DOMNode, expectedMarkup, actualMarkup string) *ComparisonResult {
	diffs := hd.comparator.Compare(expected, actual)
	return &ComparisonResult{
		IsMatch:     len(diffs) == 0,
		Differences: diffs,
		Expected:    expectedMarkup,
		Actual:      actualMarkup,
	}
}

// Normalize returns markup in the canonical form the differ compares:
// whitespace collapsed, attributes sorted and, when configured, comments
// removed.
func (hd *HTMLDiffer) Normalize(markup string) (string, error) {
	node, err := hd.parser.ParseFragment(markup)
	if err != nil {
		return "", err
	}
	return node.Markup(), nil
}

// NormalizeNodes is Normalize for rendered nodes.
func (hd *HTMLDiffer) NormalizeNodes(nodes ...*html.Node) string {
	return hd.parser.FromNodes(nodes...).Markup()
}
