// Package tokenizer implements the zoned XML tokenizer: a small
// explicit state machine (Outside/Inside a configured zone) that
// streams Word and ZoneEnd events from an XML file, decoding the five
// standard entity references and folding case along the way.
//
// This is not a general XML parser: it only ever looks for the next
// opening tag matching the currently expected zone name while Outside,
// and the matching closing tag while Inside. Anything else is skipped.
package tokenizer

import (
	"fmt"
	"io"

	"zonedex/charclass"
	"zonedex/coderead"
)

// Kind distinguishes the two token shapes the tokenizer emits.
type Kind int

const (
	// Word carries a case-folded, entity-decoded token with at least
	// one letter codepoint.
	Word Kind = iota
	// ZoneEnd marks the close of the currently active zone instance.
	ZoneEnd
)

// Token is one event from the tokenizer.
type Token struct {
	Kind Kind
	Text string // populated only for Word
}

type position int

const (
	posOutside position = iota
	posInside
)

// Tokenizer streams tokens from r according to the ordered zone list
// passed to New. Zones rotate: after the last zone's ZoneEnd, the next
// expected zone wraps back to the first.
type Tokenizer struct {
	r       *coderead.Reader
	zones   []string
	zoneIdx int
	pos     position

	buf         []rune
	bufHasLetter bool

	pendingZoneEnd bool
}

// New constructs a Tokenizer over r. zones must be non-empty; the
// pipeline controller is responsible for validating that invariant
// before tokenizers are built (see pipeline.Config).
func New(r io.Reader, zones []string) *Tokenizer {
	return &Tokenizer{
		r:     coderead.New(r),
		zones: zones,
	}
}

// ZoneIndex reports which zone the tokenizer currently expects (or is
// currently inside). Used by the accumulator to tag postings.
func (t *Tokenizer) ZoneIndex() int {
	return t.zoneIdx
}

// Next returns the next token. It returns io.EOF once the stream ends
// while Outside a zone (a clean FileEnd per spec.md §4.F). Any other
// error is fatal: malformed UTF-8, an unclosed tag, a mismatched
// closing tag, or EOF encountered while still Inside a zone (a
// truncated document, not a clean end).
func (t *Tokenizer) Next() (Token, error) {
	if t.pendingZoneEnd {
		t.pendingZoneEnd = false
		return Token{Kind: ZoneEnd}, nil
	}

	for {
		switch t.pos {
		case posOutside:
			transitioned, fileEnd, err := t.outsideStep()
			if err != nil {
				return Token{}, err
			}
			if fileEnd {
				return Token{}, io.EOF
			}
			if transitioned {
				continue
			}
		case posInside:
			return t.insideStep()
		}
	}
}

// outsideStep scans forward from the current position (which must be
// Outside) until either the expected zone's opening tag is found
// (transitioned=true) or the stream ends cleanly (fileEnd=true).
func (t *Tokenizer) outsideStep() (transitioned, fileEnd bool, err error) {
	for {
		r, present, err := t.readRune()
		if err != nil {
			return false, false, err
		}
		if !present {
			return false, true, nil
		}
		if r != '<' {
			continue
		}
		name, closing, err := t.readTag()
		if err != nil {
			return false, false, err
		}
		if closing {
			continue
		}
		if name == t.zones[t.zoneIdx] {
			t.pos = posInside
			return true, false, nil
		}
		// some other element's opening tag; already consumed through '>'
	}
}

// insideStep accumulates codepoints into the pending word buffer until
// it has a complete Word or ZoneEnd token to return, or hits a fatal
// condition.
func (t *Tokenizer) insideStep() (Token, error) {
	for {
		r, present, err := t.readRune()
		if err != nil {
			return Token{}, err
		}
		if !present {
			return Token{}, fmt.Errorf("tokenizer: unexpected end of file while inside zone %q", t.zones[t.zoneIdx])
		}

		switch r {
		case '&':
			decoded, separator, err := t.readEntity()
			if err != nil {
				return Token{}, err
			}
			if !separator {
				// &apos; inlines into the token and accumulation continues.
				t.buf = append(t.buf, decoded)
				t.bufHasLetter = t.bufHasLetter || charclass.Letter == classifyKind(decoded)
				continue
			}
			if tok, flushed := t.flushIfPassable(); flushed {
				return tok, nil
			}
			continue

		case '<':
			name, closing, err := t.readTag()
			if err != nil {
				return Token{}, err
			}
			if !closing {
				return Token{}, fmt.Errorf("tokenizer: unexpected opening tag <%s> while inside zone %q", name, t.zones[t.zoneIdx])
			}
			if name != t.zones[t.zoneIdx] {
				return Token{}, fmt.Errorf("tokenizer: mismatched closing tag </%s>, expected </%s>", name, t.zones[t.zoneIdx])
			}

			wordTok, flushed := t.flushIfPassable()
			t.zoneIdx = (t.zoneIdx + 1) % len(t.zones)
			t.pos = posOutside
			if flushed {
				t.pendingZoneEnd = true
				return wordTok, nil
			}
			return Token{Kind: ZoneEnd}, nil

		default:
			kind, lowered := charclass.Classify(r)
			switch kind {
			case charclass.Letter:
				t.buf = append(t.buf, lowered...)
				t.bufHasLetter = true
			case charclass.Ordinary:
				t.buf = append(t.buf, r)
			case charclass.Delimiter:
				if tok, flushed := t.flushIfPassable(); flushed {
					return tok, nil
				}
			}
		}
	}
}

func classifyKind(r rune) charclass.Kind {
	kind, _ := charclass.Classify(r)
	return kind
}

// flushIfPassable emits the accumulated buffer as a Word token if it
// contains at least one letter codepoint, discarding it otherwise
// (pure-punctuation / pure-digit runs carry no Letter and are dropped).
func (t *Tokenizer) flushIfPassable() (Token, bool) {
	if len(t.buf) == 0 || !t.bufHasLetter {
		t.buf = t.buf[:0]
		t.bufHasLetter = false
		return Token{}, false
	}
	word := string(t.buf)
	t.buf = t.buf[:0]
	t.bufHasLetter = false
	return Token{Kind: Word, Text: word}, true
}

// readRune wraps the codepoint reader; present is false at true EOF
// (the buffered reader's Next already folds the trailing-NUL sentinel
// into that same case).
func (t *Tokenizer) readRune() (rune, bool, error) {
	return t.r.Next()
}

// readTag reads a tag name starting right after '<' and consumes
// through the matching '>', reporting whether it was a closing tag.
func (t *Tokenizer) readTag() (name string, closing bool, err error) {
	// Closing tags start with '/', always a single ASCII byte, so a
	// cheap peek decides the branch without decoding a full codepoint
	// that would need to be un-read on a miss.
	peeked, present, err := t.r.Peek()
	if err != nil {
		return "", false, err
	}
	if present && peeked == '/' {
		closing = true
		if _, _, err := t.readRune(); err != nil {
			return "", false, err
		}
	}

	r, present, err := t.readRune()
	if err != nil {
		return "", false, err
	}
	if !present {
		return "", false, fmt.Errorf("tokenizer: unclosed tag at end of file")
	}

	var nameBuf []rune
	for isTagNameChar(r) {
		nameBuf = append(nameBuf, r)
		r, present, err = t.readRune()
		if err != nil {
			return "", false, err
		}
		if !present {
			return "", false, fmt.Errorf("tokenizer: unclosed tag at end of file")
		}
	}

	for r != '>' {
		r, present, err = t.readRune()
		if err != nil {
			return "", false, err
		}
		if !present {
			return "", false, fmt.Errorf("tokenizer: unclosed tag at end of file")
		}
	}

	return string(nameBuf), closing, nil
}

// readEntity reads the name of an entity reference following '&' up to
// its terminating ';', and decodes it. separator reports whether the
// decoded character should break the current token (true for
// &amp; &gt; &lt; &quot;) or be inlined into it (false, for &apos;
// only).
func (t *Tokenizer) readEntity() (decoded rune, separator bool, err error) {
	var nameBuf []rune
	for {
		r, present, err := t.readRune()
		if err != nil {
			return 0, false, err
		}
		if !present {
			return 0, false, fmt.Errorf("tokenizer: unterminated entity reference at end of file")
		}
		if r == ';' {
			break
		}
		nameBuf = append(nameBuf, r)
		if len(nameBuf) > 4 {
			return 0, false, fmt.Errorf("tokenizer: unterminated entity reference %q", string(nameBuf))
		}
	}

	switch string(nameBuf) {
	case "amp":
		return '&', true, nil
	case "apos":
		return '\'', false, nil
	case "gt":
		return '>', true, nil
	case "lt":
		return '<', true, nil
	case "quot":
		return '"', true, nil
	}
	return 0, false, fmt.Errorf("tokenizer: unknown entity reference &%s;", string(nameBuf))
}

// isTagNameChar reports whether r may appear in an XML element name,
// mirroring eutils' inElement lookup table (letters, digits, and the
// namespace/id punctuation XML allows).
func isTagNameChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-' || r == '.' || r == ':':
		return true
	}
	return false
}
