// Package sortedrun implements the on-disk SortedRun / FinalDictionary
// format: the front-coded writer (component G) and the streaming
// reader / TermProvider (component H) that shares the same three-file
// layout.
package sortedrun

import (
	"encoding/binary"
	"fmt"
	"io"

	"zonedex/posting"
	"zonedex/varint"
)

const (
	// DictionaryFile, LexicalFile, IndexFile are the three files that
	// make up a run or dictionary directory.
	DictionaryFile = "dictionary"
	LexicalFile    = "lexical_part"
	IndexFile      = "index_part"

	// cursorSize is the fixed record size written per term into
	// the dictionary file: lexPtr(8) + lexIndex(1) + idxPtr(8) + useCount(8).
	cursorSize = 25
)

// cursor is one fixed-width dictionary record.
type cursor struct {
	lexPtr   uint64
	lexIndex uint8
	idxPtr   uint64
	useCount uint64
}

// encode writes the cursor in the big-endian fixed layout spec.md §6
// pins for the dictionary file.
func (c cursor) encode() [cursorSize]byte {
	var buf [cursorSize]byte
	binary.BigEndian.PutUint64(buf[0:8], c.lexPtr)
	buf[8] = c.lexIndex
	binary.BigEndian.PutUint64(buf[9:17], c.idxPtr)
	binary.BigEndian.PutUint64(buf[17:25], c.useCount)
	return buf
}

func decodeCursor(buf []byte) cursor {
	return cursor{
		lexPtr:   binary.BigEndian.Uint64(buf[0:8]),
		lexIndex: buf[8],
		idxPtr:   binary.BigEndian.Uint64(buf[9:17]),
		useCount: binary.BigEndian.Uint64(buf[17:25]),
	}
}

// writePosting serializes a Posting as { varint occurrences; zoneMask bytes }.
func writePosting(w io.Writer, p posting.Posting) (int64, error) {
	var n int64
	buf := varint.Encode(p.Occurrences)
	wn, err := w.Write(buf)
	if err != nil {
		return n, err
	}
	n += int64(wn)
	wn, err = w.Write(p.ZoneMask)
	if err != nil {
		return n, err
	}
	n += int64(wn)
	return n, nil
}

// readPosting reads a Posting back given the expected zone mask width.
func readPosting(r io.ByteReader, maskBytes int) (posting.Posting, error) {
	occ, err := varint.Read(r)
	if err != nil {
		return posting.Posting{}, fmt.Errorf("sortedrun: reading posting occurrences: %w", err)
	}
	mask := make(posting.ZoneMask, maskBytes)
	for i := 0; i < maskBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return posting.Posting{}, fmt.Errorf("sortedrun: reading posting zone mask: %w", err)
		}
		mask[i] = b
	}
	return posting.Posting{Occurrences: occ, ZoneMask: mask}, nil
}
