// Package charclass maps a single decoded codepoint to the four
// categories the tokenizer cares about: Letter, Ordinary, Delimiter, EOF.
package charclass

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind identifies which of the four tokenizer-relevant categories a
// codepoint falls into.
type Kind int

const (
	// Ordinary covers combining marks, symbols, and anything not
	// otherwise classified.
	Ordinary Kind = iota
	// Letter codepoints contribute to a word; Classify's lowered result
	// holds the case-folded expansion (which may be more than one rune).
	Letter
	// Delimiter codepoints terminate a word without themselves being
	// indexed.
	Delimiter
	// EOF is reported for the NUL sentinel byte.
	EOF
)

// delimiters lists the ASCII and CJK punctuation that separates words,
// beyond whitespace and digits.
var delimiters = map[rune]bool{
	',': true, '.': true, ';': true, '(': true, ')': true,
	'"': true, '|': true, '\\': true, '/': true, '=': true,
	'-': true, '+': true, '*': true, '<': true, '>': true,
	'{': true, '}': true, '[': true, ']': true, ':': true,
	'!': true, '?': true,
	'，': true, '；': true, '。': true, '、': true,
}

var lowerCaser = cases.Lower(language.Und)

// Classify reports the Kind of r, and for Letter also returns the
// lowercased, possibly multi-codepoint, expansion to emit in its place.
func Classify(r rune) (kind Kind, lowered []rune) {
	if r == 0 {
		return EOF, nil
	}
	if unicode.IsLetter(r) {
		return Letter, foldCase(r)
	}
	if unicode.IsSpace(r) || unicode.IsDigit(r) || delimiters[r] {
		return Delimiter, nil
	}
	return Ordinary, nil
}

// foldCase lowercases r using the same Unicode-aware transform the rest
// of the ecosystem reaches for (golang.org/x/text/cases), rather than a
// hand-rolled unicode.ToLower, so multi-codepoint lowercasings such as
// İ (U+0130) → "i" + U+0307 are handled correctly.
func foldCase(r rune) []rune {
	lowered := lowerCaser.String(string(r))
	return []rune(lowered)
}
