package rendertest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingT struct {
	failures []string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Errorf(format string, args ...any) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func TestAssertMarkupMatches(t *testing.T) {
	tc := newContext(t)
	rc := render(t, tc, heading{}, nil)
	h1, err := rc.Find("h1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		actual   any
		expected string
		want     bool
		message  string
	}{
		{"component", rc, `<h1>Hello world</h1>`, true, ""},
		{"component mismatch", rc, `<h1>Goodbye</h1>`, false, "TextMismatch at [0]"},
		{"element", h1, `<h1 id="header">Hello world</h1>`, true, ""},
		{"element mismatch", h1, `<h1 id="title">Hello world</h1>`, false, `attribute "id"`},
		{"string", `<p class="b  a">x</p>`, `<p class="a b">x</p>`, true, ""},
		{"parse error", rc, `<h1></span>`, false, "could not be compared"},
		{"unsupported", 42, `<p></p>`, false, "cannot compare markup of int"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &recordingT{}
			got := AssertMarkupMatches(rt, tt.actual, tt.expected)
			assert.Equal(t, tt.want, got)
			if tt.want {
				assert.Empty(t, rt.failures)
				return
			}
			require.Len(t, rt.failures, 1)
			assert.True(t, strings.Contains(rt.failures[0], tt.message), rt.failures[0])
		})
	}
}
