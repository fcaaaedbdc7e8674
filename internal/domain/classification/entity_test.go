package classification_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/webtaxon/internal/domain/classification"
)

func TestDecodeToleratesOddShapes(t *testing.T) {
	require.Equal(t, classification.Classification{}, classification.Decode([]any{"x"}))
	require.Equal(t, classification.Classification{}, classification.Decode("text"))
	require.Equal(t, classification.Classification{}, classification.Decode(nil))

	c := classification.Decode(map[string]any{
		"urlType":              42.0,
		"contentFormat":        []any{"PDF"},
		"contentTypeHierarchy": "Docs, Manuals",
		"keywords":             []any{"a", 3.0, "b"},
	})
	require.Equal(t, "42", c.URLType)
	require.Empty(t, c.ContentFormat)
	require.Equal(t, []string{"Docs", "Manuals"}, c.ContentTypeHierarchy)
	require.Equal(t, []string{"a", "b"}, c.Keywords)

	c = classification.Decode(map[string]any{"urlType": json.Number("9007199254740993")})
	require.Equal(t, "9007199254740993", c.URLType)
}

func TestWithDefaultsFillsSentinels(t *testing.T) {
	got := classification.Classification{
		ContentTypeHierarchy: []string{"News", "  "},
	}.WithDefaults()

	require.Equal(t, classification.UnknownType, got.URLType)
	require.Equal(t, classification.UnknownFormat, got.ContentFormat)
	require.Equal(t, classification.UnknownLanguage, got.PrimaryLanguage)
	require.Equal(t, classification.ConfidenceLow, got.Confidence)
	require.Equal(t, []string{"News", classification.UnknownCategory}, got.ContentTypeHierarchy)
	require.Empty(t, got.Keywords)

	empty := classification.Classification{}.WithDefaults()
	require.Equal(t, []string{classification.UnknownCategory}, empty.ContentTypeHierarchy)
}

func TestWithDefaultsKeywordSet(t *testing.T) {
	kws := []string{"Go", "go", " rust ", ""}
	for i := 0; i < 20; i++ {
		kws = append(kws, string(rune('a'+i)))
	}
	got := classification.Classification{Keywords: kws}.WithDefaults()
	require.Len(t, got.Keywords, classification.MaxKeywords)
	require.Equal(t, []string{"Go", "rust", "a"}, got.Keywords[:3])
}

func TestWithDefaultsDoesNotMutate(t *testing.T) {
	orig := classification.Classification{ContentTypeHierarchy: []string{" "}, Keywords: []string{" x "}}
	_ = orig.WithDefaults()
	require.Equal(t, []string{" "}, orig.ContentTypeHierarchy)
	require.Equal(t, []string{" x "}, orig.Keywords)
}

func TestParseConfidence(t *testing.T) {
	cases := map[string]classification.Confidence{
		"High":     classification.ConfidenceHigh,
		" high ":   classification.ConfidenceHigh,
		"MEDIUM":   classification.ConfidenceMedium,
		"low":      classification.ConfidenceLow,
		"":         classification.ConfidenceLow,
		"certain!": classification.ConfidenceLow,
	}
	for in, want := range cases {
		require.Equal(t, want, classification.ParseConfidence(in), in)
	}
}

func TestExcerpt(t *testing.T) {
	require.Equal(t, "abc", classification.Excerpt("abcdef", 3))
	require.Equal(t, "ab", classification.Excerpt("ab", 3))
	require.Equal(t, "", classification.Excerpt("ab", 0))
	require.Equal(t, "日本", classification.Excerpt("日本語", 2))
}
