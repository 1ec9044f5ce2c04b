// Package merge implements the parallel k-way merger (component I):
// it heap-merges every sorted run into the FinalDictionary, combining
// postings for terms that appear in more than one run.
//
// The heap itself mirrors eutils' PlexHeap/CreateManifold
// (container/heap.Interface over a small ordered struct, draining every
// heap entry tied on the same key before moving on); advancing the
// providers that contributed to the just-written term is done
// concurrently via golang.org/x/sync/errgroup, matching
// IndexMerger::merge's join_all-per-iteration discipline.
package merge

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"zonedex/posting"
	"zonedex/sortedrun"
)

// provider pairs a run reader with the mutex that guards it; only one
// goroutine may call NextTerm on a given provider at a time, though the
// merge loop's ordering guarantee already ensures no two goroutines
// ever try.
type provider struct {
	mu     sync.Mutex
	reader *sortedrun.Reader
}

func (p *provider) next() (*posting.IndexedTerm, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	it, err := p.reader.NextTerm()
	if err != nil {
		if isEOF(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return it, true, nil
}

// heapItem is one entry in the merge heap: a fetched term plus which
// provider it came from.
type heapItem struct {
	term *posting.IndexedTerm
	idx  int
}

type termHeap []heapItem

func (h termHeap) Len() int            { return len(h) }
func (h termHeap) Less(i, j int) bool  { return h[i].term.Term < h[j].term.Term }
func (h termHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *termHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *termHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Merger drives the heap merge over a fixed set of sorted runs and
// writes the combined FinalDictionary.
type Merger struct {
	runDirs   []string
	numZones  int
	destDir   string
	blockSize int
	compress  bool
}

// New constructs a Merger. runDirs must each be a directory written by
// sortedrun.Writer with the given numZones.
func New(runDirs []string, numZones int, destDir string, blockSize int, compress bool) *Merger {
	return &Merger{
		runDirs:   runDirs,
		numZones:  numZones,
		destDir:   destDir,
		blockSize: blockSize,
		compress:  compress,
	}
}

// Result summarizes a completed merge for the sidecar info.txt.
type Result struct {
	TotalLexemes uint64
	TermCount    uint64
	CursorDigest uint64
}

// Run performs the full merge: prime the heap with one term from every
// run, then repeatedly pop and combine ties, concurrently advance the
// contributing providers, and write the combined term. On success it
// finalizes the dictionary, deletes every input run directory, and
// writes the files.txt and info.txt sidecars — in that order, so a
// dictionary directory is only ever considered valid once info.txt is
// present.
func (m *Merger) Run(inputFiles []string) (Result, error) {
	providers := make([]*provider, len(m.runDirs))
	for i, dir := range m.runDirs {
		r, err := sortedrun.Open(dir, m.numZones)
		if err != nil {
			return Result{}, fmt.Errorf("merge: opening run %s: %w", dir, err)
		}
		providers[i] = &provider{reader: r}
	}
	defer func() {
		for _, p := range providers {
			p.reader.Close()
		}
	}()

	writer, err := sortedrun.NewWriter(m.destDir, m.blockSize, m.compress)
	if err != nil {
		return Result{}, fmt.Errorf("merge: creating dictionary writer: %w", err)
	}

	h := &termHeap{}
	heap.Init(h)
	for i, p := range providers {
		it, ok, err := p.next()
		if err != nil {
			return Result{}, fmt.Errorf("merge: priming from run %d: %w", i, err)
		}
		if ok {
			heap.Push(h, heapItem{term: it, idx: i})
		}
	}

	for h.Len() > 0 {
		top := heap.Pop(h).(heapItem)
		combined := top.term
		values := []int{top.idx}

		for h.Len() > 0 && (*h)[0].term.Term == combined.Term {
			next := heap.Pop(h).(heapItem)
			combined = posting.CombineTerms(combined, next.term)
			values = append(values, next.idx)
		}

		advanced := make([]*posting.IndexedTerm, len(values))
		present := make([]bool, len(values))

		g, _ := errgroup.WithContext(context.Background())
		for vi, pidx := range values {
			vi, pidx := vi, pidx
			g.Go(func() error {
				it, ok, err := providers[pidx].next()
				if err != nil {
					return fmt.Errorf("advancing run %d: %w", pidx, err)
				}
				advanced[vi] = it
				present[vi] = ok
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Result{}, fmt.Errorf("merge: %w", err)
		}
		for vi, pidx := range values {
			if present[vi] {
				heap.Push(h, heapItem{term: advanced[vi], idx: pidx})
			}
		}

		if err := writer.Push(combined); err != nil {
			return Result{}, fmt.Errorf("merge: writing combined term %q: %w", combined.Term, err)
		}
	}

	if err := writer.Finish(); err != nil {
		return Result{}, fmt.Errorf("merge: finalizing dictionary: %w", err)
	}

	result := Result{TotalLexemes: writer.TotalLexemes(), TermCount: writer.TermCount(), CursorDigest: writer.DigestSum()}

	for _, dir := range m.runDirs {
		if err := os.RemoveAll(dir); err != nil {
			return Result{}, fmt.Errorf("merge: removing spent run %s: %w", dir, err)
		}
	}

	if err := writeFilesManifest(m.destDir, inputFiles); err != nil {
		return Result{}, err
	}
	if err := writeInfo(m.destDir, result); err != nil {
		return Result{}, err
	}

	return result, nil
}

func writeFilesManifest(destDir string, inputFiles []string) error {
	f, err := os.Create(filepath.Join(destDir, "files.txt"))
	if err != nil {
		return fmt.Errorf("merge: creating files.txt: %w", err)
	}
	defer f.Close()
	for _, path := range inputFiles {
		if _, err := fmt.Fprintln(f, path); err != nil {
			return fmt.Errorf("merge: writing files.txt: %w", err)
		}
	}
	return nil
}

func writeInfo(destDir string, result Result) error {
	f, err := os.Create(filepath.Join(destDir, "info.txt"))
	if err != nil {
		return fmt.Errorf("merge: creating info.txt: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%d\n%d\n%d\n", result.TotalLexemes, result.TermCount, result.CursorDigest); err != nil {
		return fmt.Errorf("merge: writing info.txt: %w", err)
	}
	return nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
