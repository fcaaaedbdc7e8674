package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassificationIsDeterministic(t *testing.T) {
	a := Classification("https://example.com/post", "hello world")
	b := Classification("https://example.com/post", "hello world")
	require.Equal(t, a, b)
	require.Contains(t, a, "URL: https://example.com/post")
	require.Contains(t, a, "\"\"\"\nhello world\n\"\"\"")
	require.True(t, strings.Contains(a, "contentTypeHierarchy"))
}

func TestClassificationEmbedsInputs(t *testing.T) {
	require.NotEqual(t, Classification("https://a.example", "x"), Classification("https://b.example", "x"))
	require.NotEqual(t, Classification("https://a.example", "x"), Classification("https://a.example", "y"))
}

func TestFieldsRoundTrip(t *testing.T) {
	text := "line one\nURL: not this one\n\"\"\"quoted\"\"\""
	url, got, ok := Fields(Classification("https://example.com/a", text))
	require.True(t, ok)
	require.Equal(t, "https://example.com/a", url)
	require.Equal(t, text, got)

	_, _, ok = Fields("free-form prompt")
	require.False(t, ok)
}
