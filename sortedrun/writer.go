package sortedrun

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/pgzip"

	"zonedex/posting"
	"zonedex/varint"
)

// Writer is the front-coded sorted-run writer (component G). Terms
// must be pushed in strictly ascending lexicographic order; Writer
// does not sort them itself.
type Writer struct {
	dir       string
	blockSize int
	compress  bool

	lexFile *os.File
	idxFile *os.File
	lexW    *bufio.Writer
	idxW    *bufio.Writer
	lexGz   *pgzip.Writer
	idxGz   *pgzip.Writer

	lexOffset int64
	idxOffset int64

	buffer        []*posting.IndexedTerm
	currentPrefix int

	cursors      []cursor
	totalLexemes uint64
	termCount    uint64
	digest       *xxhash.Digest

	finished bool
}

// NewWriter creates dir (recreating it fresh, per spec.md §4.J's
// "destination directory is recreated" failure semantics) and opens
// the lexical_part and index_part files for streaming writes. When
// compress is set, both are pgzip-compressed with a ".gz" suffix, the
// same convention eutils' CreateSplitter/xmlPresenter use to detect
// compressed run files transparently on read.
func NewWriter(dir string, blockSize int, compress bool) (*Writer, error) {
	if blockSize < 1 {
		return nil, fmt.Errorf("sortedrun: blockSize must be >= 1, got %d", blockSize)
	}
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("sortedrun: clearing stale run directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sortedrun: creating run directory %s: %w", dir, err)
	}

	w := &Writer{dir: dir, blockSize: blockSize, compress: compress, digest: xxhash.New()}

	lexName, idxName := LexicalFile, IndexFile
	if compress {
		lexName, idxName = lexName+".gz", idxName+".gz"
	}

	var err error
	w.lexFile, err = os.Create(filepath.Join(dir, lexName))
	if err != nil {
		return nil, fmt.Errorf("sortedrun: creating %s: %w", lexName, err)
	}
	w.idxFile, err = os.Create(filepath.Join(dir, idxName))
	if err != nil {
		return nil, fmt.Errorf("sortedrun: creating %s: %w", idxName, err)
	}

	if compress {
		w.lexGz = pgzip.NewWriter(w.lexFile)
		w.idxGz = pgzip.NewWriter(w.idxFile)
		w.lexW = bufio.NewWriter(w.lexGz)
		w.idxW = bufio.NewWriter(w.idxGz)
	} else {
		w.lexW = bufio.NewWriter(w.lexFile)
		w.idxW = bufio.NewWriter(w.idxFile)
	}

	return w, nil
}

// Push inserts the next term, which must sort after every term already
// pushed. It implements the adaptive re-blocking rule from spec.md §4.G:
// extend the buffered block while doing so doesn't hurt the prefix
// density metric, otherwise flush and start fresh.
func (w *Writer) Push(term *posting.IndexedTerm) error {
	if len(w.buffer) == 0 {
		w.buffer = append(w.buffer, term)
		w.currentPrefix = len(term.Term)
		return w.maybeFlushFull()
	}

	last := w.buffer[len(w.buffer)-1]
	s := commonPrefixLen(last.Term, term.Term)

	switch {
	case s > w.currentPrefix:
		carried := last
		toFlush := w.buffer[:len(w.buffer)-1]
		if len(toFlush) > 0 {
			if err := w.flushBlock(toFlush, w.currentPrefix); err != nil {
				return err
			}
		}
		w.buffer = []*posting.IndexedTerm{carried, term}
		w.currentPrefix = s

	default:
		densityBefore := len(w.buffer) * w.currentPrefix
		densityAfter := (len(w.buffer) + 1) * s
		if densityBefore < densityAfter {
			w.buffer = append(w.buffer, term)
			w.currentPrefix = s
		} else {
			if err := w.flushBlock(w.buffer, w.currentPrefix); err != nil {
				return err
			}
			w.buffer = []*posting.IndexedTerm{term}
			w.currentPrefix = len(term.Term)
		}
	}

	return w.maybeFlushFull()
}

func (w *Writer) maybeFlushFull() error {
	if len(w.buffer) < w.blockSize {
		return nil
	}
	if err := w.flushBlock(w.buffer, w.currentPrefix); err != nil {
		return err
	}
	w.buffer = nil
	w.currentPrefix = 0
	return nil
}

// flushBlock writes one front-coded block: the shared prefix once, then
// each term's cursor record, postings, and suffix.
func (w *Writer) flushBlock(terms []*posting.IndexedTerm, prefix int) error {
	if len(terms) == 0 {
		return nil
	}

	blockStart := w.lexOffset
	prefixBytes := []byte(terms[0].Term[:prefix])

	n, err := w.writeVarintLex(uint64(prefix))
	if err != nil {
		return err
	}
	w.lexOffset += int64(n)
	wn, err := w.lexW.Write(prefixBytes)
	if err != nil {
		return fmt.Errorf("sortedrun: writing block prefix: %w", err)
	}
	w.lexOffset += int64(wn)

	for i, term := range terms {
		idxPtr := w.idxOffset
		if err := w.writePostings(term); err != nil {
			return err
		}

		c := cursor{
			lexPtr:   uint64(blockStart),
			lexIndex: uint8(i),
			idxPtr:   uint64(idxPtr),
			useCount: term.TotalUseCount,
		}
		w.cursors = append(w.cursors, c)
		rec := c.encode()
		w.digest.Write(rec[:])

		suffix := term.Term[prefix:]
		n, err := w.writeVarintLex(uint64(len(suffix)))
		if err != nil {
			return err
		}
		w.lexOffset += int64(n)
		wn, err := w.lexW.Write([]byte(suffix))
		if err != nil {
			return fmt.Errorf("sortedrun: writing term suffix: %w", err)
		}
		w.lexOffset += int64(wn)

		w.totalLexemes += term.TotalUseCount
		w.termCount++
	}

	return nil
}

func (w *Writer) writeVarintLex(n uint64) (int, error) {
	buf := varint.Encode(n)
	if _, err := w.lexW.Write(buf); err != nil {
		return 0, fmt.Errorf("sortedrun: writing varint to lexical_part: %w", err)
	}
	return len(buf), nil
}

// writePostings serializes term's posting list into index_part:
// { varint count; varint firstDocId; (Posting; varint docDelta){count-1}; Posting }.
func (w *Writer) writePostings(term *posting.IndexedTerm) error {
	entries := term.Postings.Entries()

	buf := varint.Encode(uint64(len(entries)))
	wn, err := w.idxW.Write(buf)
	if err != nil {
		return fmt.Errorf("sortedrun: writing posting count: %w", err)
	}
	w.idxOffset += int64(wn)

	if len(entries) == 0 {
		return nil
	}

	buf = varint.Encode(entries[0].DocID)
	wn, err = w.idxW.Write(buf)
	if err != nil {
		return fmt.Errorf("sortedrun: writing first docId: %w", err)
	}
	w.idxOffset += int64(wn)

	for i := 0; i < len(entries)-1; i++ {
		n, err := writePosting(w.idxW, entries[i])
		if err != nil {
			return fmt.Errorf("sortedrun: writing posting: %w", err)
		}
		w.idxOffset += n

		delta := entries[i+1].DocID - entries[i].DocID
		buf = varint.Encode(delta)
		wn, err = w.idxW.Write(buf)
		if err != nil {
			return fmt.Errorf("sortedrun: writing docId delta: %w", err)
		}
		w.idxOffset += int64(wn)
	}

	n, err := writePosting(w.idxW, entries[len(entries)-1])
	if err != nil {
		return fmt.Errorf("sortedrun: writing final posting: %w", err)
	}
	w.idxOffset += n

	return nil
}

// Finish flushes any buffered terms, writes the dictionary file (header
// plus every cursor record in one shot, obviating the need to seek back
// and overwrite the header in place), and releases file handles.
func (w *Writer) Finish() error {
	if w.finished {
		return nil
	}
	w.finished = true

	if len(w.buffer) > 0 {
		if err := w.flushBlock(w.buffer, w.currentPrefix); err != nil {
			return err
		}
		w.buffer = nil
	}

	if err := w.lexW.Flush(); err != nil {
		return fmt.Errorf("sortedrun: flushing lexical_part: %w", err)
	}
	if err := w.idxW.Flush(); err != nil {
		return fmt.Errorf("sortedrun: flushing index_part: %w", err)
	}
	if w.lexGz != nil {
		if err := w.lexGz.Close(); err != nil {
			return fmt.Errorf("sortedrun: closing lexical_part compressor: %w", err)
		}
	}
	if w.idxGz != nil {
		if err := w.idxGz.Close(); err != nil {
			return fmt.Errorf("sortedrun: closing index_part compressor: %w", err)
		}
	}
	if err := w.lexFile.Close(); err != nil {
		return fmt.Errorf("sortedrun: closing lexical_part: %w", err)
	}
	if err := w.idxFile.Close(); err != nil {
		return fmt.Errorf("sortedrun: closing index_part: %w", err)
	}

	return w.writeDictionary()
}

func (w *Writer) writeDictionary() error {
	f, err := os.Create(filepath.Join(w.dir, DictionaryFile))
	if err != nil {
		return fmt.Errorf("sortedrun: creating dictionary: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)

	var header [8]byte
	be := uint64(len(w.cursors))
	for i := 7; i >= 0; i-- {
		header[i] = byte(be)
		be >>= 8
	}
	if _, err := bw.Write(header[:]); err != nil {
		return fmt.Errorf("sortedrun: writing dictionary header: %w", err)
	}

	for _, c := range w.cursors {
		rec := c.encode()
		if _, err := bw.Write(rec[:]); err != nil {
			return fmt.Errorf("sortedrun: writing cursor record: %w", err)
		}
	}

	return bw.Flush()
}

// TermCount and TotalLexemes report the totals accumulated across every
// Push call, for the merger's info.txt sidecar.
func (w *Writer) TermCount() uint64    { return w.termCount }
func (w *Writer) TotalLexemes() uint64 { return w.totalLexemes }

// DigestSum returns the xxhash checksum of the serialized cursor
// stream written so far, for the merger's info.txt third line.
func (w *Writer) DigestSum() uint64 { return w.digest.Sum64() }

// commonPrefixLen returns the length, in bytes, of the longest common
// prefix of a and b.
func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
