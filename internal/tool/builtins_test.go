package tool

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"zenai/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, h domain.Handler, args string) domain.ToolResult {
	t.Helper()
	out, err := h.Execute(context.Background(), args)
	if err != nil {
		return domain.Fail("%v", err)
	}
	return domain.NormalizeResult(out)
}

func TestSpeak(t *testing.T) {
	res := run(t, domain.HandlerFunc(speak), `text="Hello there"`)
	assert.True(t, res.Success)
	assert.Equal(t, "Hello there", res.Result)
	assert.Equal(t, domain.ActionSpeak, res.Action)

	res = run(t, domain.HandlerFunc(speak), "text=\"\"\"two\nlines\"\"\"")
	assert.Equal(t, "two\nlines", res.Result)

	res = run(t, domain.HandlerFunc(speak), "")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "text")
}

func TestSpeak_KeepsWholeUtterance(t *testing.T) {
	tests := []struct {
		args string
		want string
	}{
		{`text="He said "hi" to me"`, `He said "hi" to me`},
		{`text=Hello world`, "Hello world"},
		{`text='it works'`, "it works"},
		{`text = "spaced key"`, "spaced key"},
	}
	for _, tt := range tests {
		res := run(t, domain.HandlerFunc(speak), tt.args)
		assert.True(t, res.Success, tt.args)
		assert.Equal(t, tt.want, res.Result, tt.args)
	}

	res := run(t, domain.HandlerFunc(speak), `context="not speech"`)
	assert.False(t, res.Success)
}

func TestStop(t *testing.T) {
	res := run(t, domain.HandlerFunc(stop), "")
	assert.True(t, res.Success)
	assert.Equal(t, domain.ActionStop, res.Action)
	assert.Equal(t, "Stopping system: User requested stop", res.Result)

	res = run(t, domain.HandlerFunc(stop), `reason="all done"`)
	assert.Equal(t, "Stopping system: all done", res.Result)
}

func TestMemory_NotImplemented(t *testing.T) {
	res := run(t, domain.HandlerFunc(memory), `list=""`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not implemented")
}

func TestExample(t *testing.T) {
	res := run(t, domain.HandlerFunc(example), `first_arg="Hello World" second_arg=False`)
	assert.True(t, res.Success)
	assert.Equal(t, "Executed Example tool: first_arg = Hello World, second_arg = false", res.Result)
}

type fakePages struct {
	text string
	err  error
	url  string
}

func (f *fakePages) ReadText(_ context.Context, url, _ string) (string, error) {
	f.url = url
	return f.text, f.err
}

func TestBrowserTool(t *testing.T) {
	res := run(t, NewBrowserTool(nil), `url="https://example.com"`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "disabled")

	pages := &fakePages{text: "Example Domain"}
	res = run(t, NewBrowserTool(pages), `url="https://example.com"`)
	assert.True(t, res.Success)
	assert.Equal(t, "Example Domain", res.Result)
	assert.Equal(t, "https://example.com", pages.url)

	res = run(t, NewBrowserTool(pages), `url="file:///etc/passwd"`)
	assert.False(t, res.Success)

	res = run(t, NewBrowserTool(&fakePages{err: errors.New("net down")}), `url="https://x.org"`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "net down")
}

func TestBrowserTool_TruncatesOnRuneBoundary(t *testing.T) {
	// one ASCII byte shifts every 3-byte rune across the cap
	page := "x" + strings.Repeat("界", maxPageText)
	res := run(t, NewBrowserTool(&fakePages{text: page}), `url="https://example.com"`)
	require.True(t, res.Success, res.Error)

	text, ok := res.Result.(string)
	require.True(t, ok)
	assert.True(t, utf8.ValidString(text))
	assert.True(t, strings.HasSuffix(text, "\n... (truncated)"))
	assert.LessOrEqual(t, len(text), maxPageText+len("\n... (truncated)"))
}
