// Package accumulator implements the bounded in-memory parser
// (component F): it drives a zoned tokenizer, builds a capped sorted
// map of terms to postings, and reports back to the pipeline
// controller when it needs to spill, when a zone ends, or when the
// underlying file ends.
package accumulator

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"zonedex/posting"
	"zonedex/sortedrun"
	"zonedex/tokenizer"
)

// Outcome reports why Parse returned control to the caller.
type Outcome int

const (
	// Full means the accumulator reached capacity; the caller should
	// spill it to a run and call Parse again with the same reader and
	// docId.
	Full Outcome = iota
	// ZoneEnd means the tokenizer finished one zone traversal; the
	// caller should obtain a fresh docId and call Parse again with the
	// same reader.
	ZoneEnd
	// FileEnd means the underlying file is exhausted; the caller
	// should move on to its next input file (or spill and exit).
	FileEnd
)

// Accumulator is a capped sorted term→IndexedTerm map plus the spill
// logic that turns it into a SortedRun.
type Accumulator struct {
	capacity int
	numZones int

	terms []*posting.IndexedTerm // kept sorted ascending by Term
}

// New returns an empty Accumulator capped at capacity distinct terms,
// sized for a zone list of numZones zones (used to size ZoneMasks).
func New(capacity, numZones int) *Accumulator {
	return &Accumulator{capacity: capacity, numZones: numZones}
}

// Len reports how many distinct terms are currently held.
func (a *Accumulator) Len() int {
	return len(a.terms)
}

// Parse pulls tokens from tz and folds them into the accumulator's
// term map, tagging every posting with docId and the tokenizer's
// current zone, until the tree reaches capacity, a zone ends, or the
// file ends.
func (a *Accumulator) Parse(tz *tokenizer.Tokenizer, docID uint64) (Outcome, error) {
	for {
		zoneIdx := tz.ZoneIndex()
		tok, err := tz.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return FileEnd, nil
			}
			return 0, fmt.Errorf("accumulator: %w", err)
		}

		switch tok.Kind {
		case tokenizer.Word:
			a.push(tok.Text, docID, zoneIdx)
			if len(a.terms) >= a.capacity {
				return Full, nil
			}
		case tokenizer.ZoneEnd:
			return ZoneEnd, nil
		}
	}
}

// push looks up or inserts an IndexedTerm for word, bumps its total
// use count, and upserts the posting for (docID, zoneIdx).
func (a *Accumulator) push(word string, docID uint64, zoneIdx int) {
	i := sort.Search(len(a.terms), func(i int) bool { return a.terms[i].Term >= word })

	var it *posting.IndexedTerm
	if i < len(a.terms) && a.terms[i].Term == word {
		it = a.terms[i]
	} else {
		it = posting.NewIndexedTerm(word)
		a.terms = append(a.terms, nil)
		copy(a.terms[i+1:], a.terms[i:])
		a.terms[i] = it
	}

	it.TotalUseCount++
	mask := posting.NewZoneMask(a.numZones)
	mask.Set(zoneIdx)
	it.Postings.Push(posting.Posting{DocID: docID, Occurrences: 1, ZoneMask: mask})
}

// FlushTo writes the accumulator's current contents as a SortedRun to
// dir and clears it. Per spec.md §9's resolved open question, this is
// unconditional: an empty accumulator still produces a well-formed,
// zero-term run rather than being skipped, so the merger never needs a
// special case for "this worker spilled nothing."
func (a *Accumulator) FlushTo(dir string, blockSize int, compress bool) error {
	w, err := sortedrun.NewWriter(dir, blockSize, compress)
	if err != nil {
		return fmt.Errorf("accumulator: flushing to %s: %w", dir, err)
	}
	for _, it := range a.terms {
		if err := w.Push(it); err != nil {
			return fmt.Errorf("accumulator: writing term %q: %w", it.Term, err)
		}
	}
	if err := w.Finish(); err != nil {
		return fmt.Errorf("accumulator: finishing run %s: %w", dir, err)
	}
	a.terms = nil
	return nil
}
