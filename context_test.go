package rendertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/livefir/rendertest/internal/metrics"
)

func TestRender_HeadingMatchesWithoutCheckingExtraAttributes(t *testing.T) {
	tc := newContext(t)
	rc := render(t, tc, heading{}, nil)

	assert.Equal(t, `<h1 id="header" attr="">Hello world</h1>`, rc.Markup())
	assert.Equal(t, "heading", rc.TypeName())

	result, err := rc.MarkupMatches(`<h1>Hello world</h1>`)
	require.NoError(t, err)
	assert.True(t, result.IsMatch, result.String())
	require.NoError(t, rc.VerifyMarkup(`<h1>Hello world</h1>`))
}

func TestRender_HeadingMismatchIsTextMismatchAtRoot(t *testing.T) {
	tc := newContext(t)
	rc := render(t, tc, heading{}, nil)

	result, err := rc.MarkupMatches(`<h1>Goodbye</h1>`)
	require.NoError(t, err)
	require.False(t, result.IsMatch)
	require.Len(t, result.Differences, 1)
	assert.Equal(t, "TextMismatch", result.Differences[0].Kind.String())
	assert.Equal(t, []int{0}, result.Differences[0].Path)

	err = rc.VerifyMarkup(`<h1>Goodbye</h1>`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMarkupMismatch))
	var mismatch *MarkupMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Contains(t, mismatch.Error(), `expected "Goodbye", actual "Hello world"`)
}

func TestRender_ParseErrorIsNotAMismatch(t *testing.T) {
	tc := newContext(t)
	rc := render(t, tc, heading{}, nil)

	err := rc.VerifyMarkup(`<h1>Hello world</span>`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMarkupParse))
	assert.False(t, errors.Is(err, ErrMarkupMismatch))
}

func TestClick_RunsHandlerAndRerenders(t *testing.T) {
	tc := newContext(t)
	ctx := context.Background()
	rc := render(t, tc, &counter{}, nil)

	label, err := rc.Find("p")
	require.NoError(t, err)
	button, err := rc.Find("#inc")
	require.NoError(t, err)

	require.NoError(t, rc.Click(ctx, button))
	require.NoError(t, rc.Click(ctx, button))

	text, err := label.TextContent()
	require.NoError(t, err)
	assert.Equal(t, "Count: 2", text)
	assert.Equal(t, 3, rc.RenderCount())
	assert.Equal(t, 2, rc.Instance().(*counter).count)
	assert.Equal(t, int64(2), tc.Metrics().GetMetrics().EventsDispatched)
}

func TestClick_WithoutHandlerFailsImmediately(t *testing.T) {
	tc := newContext(t)
	rc := render(t, tc, &counter{}, nil)

	button, err := rc.Find("#noop")
	require.NoError(t, err)

	start := time.Now()
	err = rc.Click(context.Background(), button)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, errors.Is(err, ErrNoEventHandler))

	var nh *NoEventHandlerError
	require.True(t, errors.As(err, &nh))
	assert.Equal(t, "click", nh.Event)
	assert.Equal(t, "#noop", nh.Target)
	assert.Equal(t, 1, rc.RenderCount())
}

func TestTriggerEvent_BubblesInnermostFirst(t *testing.T) {
	tc := newContext(t)
	c := &bubbling{}
	rc := render(t, tc, c, nil)

	button, err := rc.Find("button")
	require.NoError(t, err)
	require.NoError(t, rc.Click(context.Background(), button))
	assert.Equal(t, []string{"button", "section"}, c.calls)

	text, err := button.TextContent()
	require.NoError(t, err)
	assert.Equal(t, "2", text)
}

func TestTriggerEvent_HandlerErrorStillRenders(t *testing.T) {
	tc := newContext(t)
	boom := errors.New("boom")
	c := &bubbling{fail: boom}
	rc := render(t, tc, c, nil)

	button, err := rc.Find("button")
	require.NoError(t, err)
	err = rc.Click(context.Background(), button)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, []string{"button", "section"}, c.calls)
	assert.Equal(t, 2, rc.RenderCount())
}

func TestInput_PassesValue(t *testing.T) {
	tc := newContext(t)
	rc := render(t, tc, &echo{}, nil)

	input, err := rc.Find(`input[name="q"]`)
	require.NoError(t, err)
	require.NoError(t, rc.Input(context.Background(), input, "hello"))

	p, err := rc.Find("p")
	require.NoError(t, err)
	text, err := p.TextContent()
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestRender_Parameters(t *testing.T) {
	tc := newContext(t)
	name := gofakeit.FirstName()
	rc := render(t, tc, &greeting{}, Parameters{"Name": name})

	p, err := rc.Find("p")
	require.NoError(t, err)
	text, err := p.TextContent()
	require.NoError(t, err)
	assert.Equal(t, "Hello, "+name+"!", text)

	require.NoError(t, rc.SetParametersAndRender(context.Background(), Parameters{"Name": "Grace"}))
	text, err = p.TextContent()
	require.NoError(t, err)
	assert.Equal(t, "Hello, Grace!", text)
	assert.Equal(t, 2, rc.RenderCount())
}

func TestRender_PanicIsReported(t *testing.T) {
	tc := newContext(t)

	_, err := tc.Render(context.Background(), panicking{}, nil)
	require.Error(t, err)
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, err.Error(), "render exploded")
	assert.Equal(t, int64(1), tc.Metrics().GetMetrics().RenderFailures)
}

func TestRender_LoopIsBounded(t *testing.T) {
	tc := newContext(t, WithMaxRenderPasses(5))

	_, err := tc.Render(context.Background(), &restless{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRenderLoop))
}

func TestRender_UnresolvedChild(t *testing.T) {
	tc := newContext(t)

	_, err := tc.Render(context.Background(), missingChild{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvedComponent))
	assert.Contains(t, err.Error(), "Missing")
}

func TestDispose_Idempotent(t *testing.T) {
	shared := metrics.NewCollector()
	tc, err := NewTestContext(WithMetrics(shared))
	require.NoError(t, err)
	render(t, tc, &todoList{items: []string{"a"}}, nil)

	tc.Dispose()
	tc.Dispose()

	m := shared.GetMetrics()
	assert.Equal(t, int64(1), m.SubjectsCreated)
	assert.Equal(t, int64(1), m.SubjectsDisposed)
	assert.Equal(t, int64(0), m.ActiveSubjects)

	_, err = tc.Render(context.Background(), heading{}, nil)
	assert.True(t, errors.Is(err, ErrDisposed))
}

func TestDispose_DisposesChildren(t *testing.T) {
	tc, err := NewTestContext()
	require.NoError(t, err)
	rc := render(t, tc, &todoList{items: []string{"a", "b"}}, nil)

	items := rc.FindComponents("TodoItem")
	require.Len(t, items, 2)
	first := items[0].Instance().(*todoItem)

	tc.Dispose()
	assert.True(t, first.disposed)
	assert.Nil(t, rc.Instance())
}

func TestNewTestContext_LogsThroughInjectedLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tc := newContext(t, WithLogger(zap.New(core)))
	render(t, tc, &counter{}, nil)

	assert.Equal(t, 1, logs.FilterMessage("test context created").Len())
	assert.NotZero(t, logs.FilterMessage("render batch applied").Len())
	assert.NotZero(t, logs.FilterMessage("render published").Len())
}

func TestCompareMarkup_UsesContextSettings(t *testing.T) {
	tc := newContext(t, WithRegexPrefix("re:"), WithStrictAttributes(true))

	result, err := tc.CompareMarkup(`<a href="re:^/users/\d+$">x</a>`, `<a href="/users/42">x</a>`)
	require.NoError(t, err)
	assert.True(t, result.IsMatch, result.String())

	result, err = tc.CompareMarkup(`<a>x</a>`, `<a href="/">x</a>`)
	require.NoError(t, err)
	assert.False(t, result.IsMatch)
	assert.Equal(t, int64(2), tc.Metrics().GetMetrics().Comparisons)
}
