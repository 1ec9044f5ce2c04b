package sortedrun

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"

	"zonedex/posting"
	"zonedex/varint"
)

// countingReader wraps a bufio.Reader so the reader can cross-check
// running byte offsets against the cursor pointers recorded in the
// dictionary file (an invariant-violation class error per spec.md §7
// if they ever diverge).
type countingReader struct {
	br *bufio.Reader
	n  int64
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.br.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.br.Read(p)
	c.n += int64(n)
	return n, err
}

// Reader streams IndexedTerms out of a SortedRun/FinalDictionary
// directory in ascending key order (component H, the TermProvider).
type Reader struct {
	dir string

	dictF *os.File
	dictR *bufio.Reader

	lexF  *os.File
	lexGz *pgzip.Reader
	lexR  *countingReader

	idxF  *os.File
	idxGz *pgzip.Reader
	idxR  *countingReader

	remaining uint64
	maskBytes int

	currentLexPtr int64
	currentPrefix []byte

	closed bool
}

// Open opens the three files inside dir. numZones must match the zone
// list the run was built with, since the fixed-width ZoneMask field in
// each Posting is sized from it. Open auto-detects pgzip compression
// from a ".gz" suffix on lexical_part/index_part, the same convention
// the writer uses and eutils' xmlPresenter relies on.
func Open(dir string, numZones int) (*Reader, error) {
	r := &Reader{dir: dir, currentLexPtr: -1, maskBytes: posting.ZoneMaskBytes(numZones)}

	var err error
	r.dictF, err = os.Open(filepath.Join(dir, DictionaryFile))
	if err != nil {
		return nil, fmt.Errorf("sortedrun: opening dictionary: %w", err)
	}
	r.dictR = bufio.NewReader(r.dictF)

	var header [8]byte
	if _, err := io.ReadFull(r.dictR, header[:]); err != nil {
		r.Close()
		return nil, fmt.Errorf("sortedrun: reading dictionary header: %w", err)
	}
	r.remaining = binary.BigEndian.Uint64(header[:])

	lexName, err := findRunFile(dir, LexicalFile)
	if err != nil {
		r.Close()
		return nil, err
	}
	idxName, err := findRunFile(dir, IndexFile)
	if err != nil {
		r.Close()
		return nil, err
	}

	r.lexF, err = os.Open(filepath.Join(dir, lexName))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("sortedrun: opening %s: %w", lexName, err)
	}
	r.idxF, err = os.Open(filepath.Join(dir, idxName))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("sortedrun: opening %s: %w", idxName, err)
	}

	if strings.HasSuffix(lexName, ".gz") {
		r.lexGz, err = pgzip.NewReader(r.lexF)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("sortedrun: opening %s decompressor: %w", lexName, err)
		}
		r.lexR = &countingReader{br: bufio.NewReader(r.lexGz)}
	} else {
		r.lexR = &countingReader{br: bufio.NewReader(r.lexF)}
	}

	if strings.HasSuffix(idxName, ".gz") {
		r.idxGz, err = pgzip.NewReader(r.idxF)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("sortedrun: opening %s decompressor: %w", idxName, err)
		}
		r.idxR = &countingReader{br: bufio.NewReader(r.idxGz)}
	} else {
		r.idxR = &countingReader{br: bufio.NewReader(r.idxF)}
	}

	return r, nil
}

func findRunFile(dir, base string) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, base)); err == nil {
		return base, nil
	}
	if _, err := os.Stat(filepath.Join(dir, base+".gz")); err == nil {
		return base + ".gz", nil
	}
	return "", fmt.Errorf("sortedrun: neither %s nor %s.gz found in %s", base, base, dir)
}

// Remaining reports how many terms are left to read.
func (r *Reader) Remaining() uint64 {
	return r.remaining
}

// NextTerm reads and returns the next IndexedTerm in key order, or
// io.EOF once Remaining reaches zero.
func (r *Reader) NextTerm() (*posting.IndexedTerm, error) {
	if r.remaining == 0 {
		return nil, io.EOF
	}

	var rec [cursorSize]byte
	if _, err := io.ReadFull(r.dictR, rec[:]); err != nil {
		return nil, fmt.Errorf("sortedrun: reading cursor record: %w", err)
	}
	c := decodeCursor(rec[:])

	if int64(c.lexPtr) != r.currentLexPtr {
		if int64(c.lexPtr) != r.lexR.n {
			return nil, fmt.Errorf("sortedrun: invariant violation: cursor lexPtr %d does not match lexical_part offset %d", c.lexPtr, r.lexR.n)
		}
		prefixLen, err := varint.Read(r.lexR)
		if err != nil {
			return nil, fmt.Errorf("sortedrun: reading block prefix length: %w", err)
		}
		prefix := make([]byte, prefixLen)
		if _, err := io.ReadFull(r.lexR, prefix); err != nil {
			return nil, fmt.Errorf("sortedrun: reading block prefix: %w", err)
		}
		r.currentPrefix = prefix
		r.currentLexPtr = int64(c.lexPtr)
	}

	suffixLen, err := varint.Read(r.lexR)
	if err != nil {
		return nil, fmt.Errorf("sortedrun: reading term suffix length: %w", err)
	}
	suffix := make([]byte, suffixLen)
	if _, err := io.ReadFull(r.lexR, suffix); err != nil {
		return nil, fmt.Errorf("sortedrun: reading term suffix: %w", err)
	}

	term := string(r.currentPrefix) + string(suffix)

	if int64(c.idxPtr) != r.idxR.n {
		return nil, fmt.Errorf("sortedrun: invariant violation: cursor idxPtr %d does not match index_part offset %d", c.idxPtr, r.idxR.n)
	}

	postings, err := r.readPostings()
	if err != nil {
		return nil, fmt.Errorf("sortedrun: reading postings for %q: %w", term, err)
	}

	it := posting.NewIndexedTerm(term)
	it.TotalUseCount = c.useCount
	it.Postings.SetSortedUnchecked(postings)

	r.remaining--
	return it, nil
}

func (r *Reader) readPostings() ([]posting.Posting, error) {
	count, err := varint.Read(r.idxR)
	if err != nil {
		return nil, fmt.Errorf("reading posting count: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	firstDoc, err := varint.Read(r.idxR)
	if err != nil {
		return nil, fmt.Errorf("reading first docId: %w", err)
	}

	out := make([]posting.Posting, 0, count)
	docID := firstDoc

	for i := uint64(0); i < count-1; i++ {
		p, err := readPosting(r.idxR, r.maskBytes)
		if err != nil {
			return nil, fmt.Errorf("reading posting %d: %w", i, err)
		}
		p.DocID = docID
		out = append(out, p)

		delta, err := varint.Read(r.idxR)
		if err != nil {
			return nil, fmt.Errorf("reading docId delta after posting %d: %w", i, err)
		}
		docID += delta
	}

	last, err := readPosting(r.idxR, r.maskBytes)
	if err != nil {
		return nil, fmt.Errorf("reading final posting: %w", err)
	}
	last.DocID = docID
	out = append(out, last)

	return out, nil
}

// Close releases every open file handle.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.lexGz != nil {
		record(r.lexGz.Close())
	}
	if r.idxGz != nil {
		record(r.idxGz.Close())
	}
	if r.lexF != nil {
		record(r.lexF.Close())
	}
	if r.idxF != nil {
		record(r.idxF.Close())
	}
	if r.dictF != nil {
		record(r.dictF.Close())
	}
	return firstErr
}
