package diff

import (
	"regexp"
	"strings"
	"sync"
)

// Verdict is the outcome of one attribute comparer.
type Verdict int

const (
	// Undecided passes the attribute to the next comparer.
	Undecided Verdict = iota
	Equal
	Different
)

func (v Verdict) String() string {
	switch v {
	case Equal:
		return "equal"
	case Different:
		return "different"
	default:
		return "undecided"
	}
}

// AttributeComparer judges one attribute present on both sides. name is
// already lower-cased.
type AttributeComparer interface {
	CompareAttribute(name, expected, actual string) Verdict
}

// ComparerFunc adapts a function to AttributeComparer.
type ComparerFunc func(name, expected, actual string) Verdict

func (f ComparerFunc) CompareAttribute(name, expected, actual string) Verdict {
	return f(name, expected, actual)
}

// ClassSetComparer treats class values as unordered token sets. It always
// decides for the class attribute.
type ClassSetComparer struct{}

func (ClassSetComparer) CompareAttribute(name, expected, actual string) Verdict {
	if name != "class" {
		return Undecided
	}
	want := tokenSet(expected)
	got := tokenSet(actual)
	if len(want) != len(got) {
		return Different
	}
	for token := range want {
		if !got[token] {
			return Different
		}
	}
	return Equal
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(s) {
		set[token] = true
	}
	return set
}

// RegexComparer matches actual values against expected values that start
// with Prefix. The remainder is an unanchored regular expression; a pattern
// that does not compile never matches.
type RegexComparer struct {
	Prefix string

	cache sync.Map // pattern -> *regexp.Regexp or error
}

// NewRegexComparer creates a regex comparer for prefix.
func NewRegexComparer(prefix string) *RegexComparer {
	return &RegexComparer{Prefix: prefix}
}

func (c *RegexComparer) CompareAttribute(name, expected, actual string) Verdict {
	if c.Prefix == "" || !strings.HasPrefix(expected, c.Prefix) {
		return Undecided
	}
	re, err := c.compile(strings.TrimPrefix(expected, c.Prefix))
	if err != nil || !re.MatchString(actual) {
		return Different
	}
	return Equal
}

func (c *RegexComparer) compile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := c.cache.Load(pattern); ok {
		if err, isErr := cached.(error); isErr {
			return nil, err
		}
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		c.cache.Store(pattern, err)
		return nil, err
	}
	c.cache.Store(pattern, re)
	return re, nil
}

// DefaultComparer requires exact equality.
type DefaultComparer struct{}

func (DefaultComparer) CompareAttribute(name, expected, actual string) Verdict {
	if expected == actual {
		return Equal
	}
	return Different
}

// Chain consults comparers in order; the first definitive verdict wins.
type Chain []AttributeComparer

// NewChain returns the standard order: class set, regex, custom comparers,
// exact equality.
func NewChain(regexPrefix string, custom ...AttributeComparer) Chain {
	chain := Chain{ClassSetComparer{}, NewRegexComparer(regexPrefix)}
	chain = append(chain, custom...)
	return append(chain, DefaultComparer{})
}

func (c Chain) CompareAttribute(name, expected, actual string) Verdict {
	for _, comparer := range c {
		if v := comparer.CompareAttribute(name, expected, actual); v != Undecided {
			return v
		}
	}
	return Undecided
}
