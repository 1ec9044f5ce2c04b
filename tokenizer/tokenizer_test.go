package tokenizer

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func collectTokens(t *testing.T, xml string, zones []string) ([]Token, error) {
	t.Helper()
	tz := New(strings.NewReader(xml), zones)
	var out []Token
	for {
		tok, err := tz.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, tok)
	}
}

// S1 — single doc, two zones.
func TestS1TwoZones(t *testing.T) {
	toks, err := collectTokens(t, `<title>Hello</title><text>hello world</text>`, []string{"title", "text"})
	require.NoError(t, err)

	require.Equal(t, []Token{
		{Kind: Word, Text: "hello"},
		{Kind: ZoneEnd},
		{Kind: Word, Text: "hello"},
		{Kind: Word, Text: "world"},
		{Kind: ZoneEnd},
	}, toks)
}

// S2 — entity decoding.
func TestS2EntityDecoding(t *testing.T) {
	toks, err := collectTokens(t, `<text>Rock &amp; roll, don&apos;t stop</text>`, []string{"text"})
	require.NoError(t, err)

	require.Equal(t, []Token{
		{Kind: Word, Text: "rock"},
		{Kind: Word, Text: "roll"},
		{Kind: Word, Text: "don't"},
		{Kind: Word, Text: "stop"},
		{Kind: ZoneEnd},
	}, toks)
}

// S3 — case folding.
func TestS3CaseFolding(t *testing.T) {
	toks, err := collectTokens(t, `<text>Ågård ågård ÅGÅRD</text>`, []string{"text"})
	require.NoError(t, err)

	require.Equal(t, []Token{
		{Kind: Word, Text: "ågård"},
		{Kind: Word, Text: "ågård"},
		{Kind: Word, Text: "ågård"},
		{Kind: ZoneEnd},
	}, toks)
}

// Testable property 7 — full entity coverage, the non-apostrophe
// entities act purely as separators and carry no letters themselves.
func TestProperty7AllEntities(t *testing.T) {
	toks, err := collectTokens(t, `<text>a&amp;b a&lt;b a&gt;b a&quot;b a&apos;b</text>`, []string{"text"})
	require.NoError(t, err)

	require.Equal(t, []Token{
		{Kind: Word, Text: "a"}, {Kind: Word, Text: "b"},
		{Kind: Word, Text: "a"}, {Kind: Word, Text: "b"},
		{Kind: Word, Text: "a"}, {Kind: Word, Text: "b"},
		{Kind: Word, Text: "a"}, {Kind: Word, Text: "b"},
		{Kind: Word, Text: "a'b"},
		{Kind: ZoneEnd},
	}, toks)
}

// Testable property 8 — after k ZoneEnd events the tokenizer's
// expected zone index equals the initial one (mod k).
func TestProperty8ZoneRotation(t *testing.T) {
	zones := []string{"title", "text"}
	tz := New(strings.NewReader(`<title>a</title><text>b</text>`), zones)

	require.Equal(t, 0, tz.ZoneIndex())

	zoneEnds := 0
	for zoneEnds < len(zones) {
		tok, err := tz.Next()
		require.NoError(t, err)
		if tok.Kind == ZoneEnd {
			zoneEnds++
		}
	}
	require.Equal(t, 0, tz.ZoneIndex())
}

func TestPureDigitsAndPunctuationDiscarded(t *testing.T) {
	toks, err := collectTokens(t, `<text>123 !!! hello</text>`, []string{"text"})
	require.NoError(t, err)

	require.Equal(t, []Token{
		{Kind: Word, Text: "hello"},
		{Kind: ZoneEnd},
	}, toks)
}

func TestUnrelatedTagsOutsideAreSkipped(t *testing.T) {
	toks, err := collectTokens(t, `<page><ignored attr="x">junk</ignored><text>hi</text></page>`, []string{"text"})
	require.NoError(t, err)

	require.Equal(t, []Token{
		{Kind: Word, Text: "hi"},
		{Kind: ZoneEnd},
	}, toks)
}

func TestMismatchedClosingTagIsFatal(t *testing.T) {
	_, err := collectTokens(t, `<text>hi</wrong>`, []string{"text"})
	require.Error(t, err)
}

func TestTruncatedInsideZoneIsFatal(t *testing.T) {
	_, err := collectTokens(t, `<text>hi there`, []string{"text"})
	require.Error(t, err)
}
