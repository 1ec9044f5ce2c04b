package merge

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"zonedex/posting"
	"zonedex/sortedrun"
)

func writeRun(t *testing.T, dir string, numZones int, terms map[string][]uint64) {
	t.Helper()
	w, err := sortedrun.NewWriter(dir, 2, false)
	require.NoError(t, err)

	names := make([]string, 0, len(terms))
	for name := range terms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		it := posting.NewIndexedTerm(name)
		docs := terms[name]
		it.TotalUseCount = uint64(len(docs))
		for _, d := range docs {
			it.Postings.Push(posting.Posting{DocID: d, Occurrences: 1, ZoneMask: posting.NewZoneMask(numZones)})
		}
		require.NoError(t, w.Push(it))
	}
	require.NoError(t, w.Finish())
}

func readDictionary(t *testing.T, dir string, numZones int) map[string]*posting.IndexedTerm {
	t.Helper()
	r, err := sortedrun.Open(dir, numZones)
	require.NoError(t, err)
	defer r.Close()

	out := make(map[string]*posting.IndexedTerm)
	for {
		it, err := r.NextTerm()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		out[it.Term] = it
	}
	return out
}

// S4 — spill + merge.
func TestS4SpillAndMerge(t *testing.T) {
	base := t.TempDir()
	run0 := filepath.Join(base, "run0")
	run1 := filepath.Join(base, "run1")

	writeRun(t, run0, 1, map[string][]uint64{"a": {0}, "b": {1}})
	writeRun(t, run1, 1, map[string][]uint64{"a": {2}, "b": {3}, "c": {3}, "d": {3}})

	dest := filepath.Join(base, "final")
	m := New([]string{run0, run1}, 1, dest, 6, false)
	result, err := m.Run([]string{"doc.xml"})
	require.NoError(t, err)
	require.Equal(t, uint64(4), result.TermCount)

	got := readDictionary(t, dest, 1)
	require.Len(t, got, 4)
	require.Equal(t, uint64(2), got["a"].TotalUseCount)
	require.Equal(t, uint64(2), got["b"].TotalUseCount)
	require.Equal(t, uint64(1), got["c"].TotalUseCount)
	require.Equal(t, uint64(1), got["d"].TotalUseCount)

	// runs are deleted after a successful merge
	_, err = os.Stat(run0)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(run1)
	require.True(t, os.IsNotExist(err))

	// sidecars are written
	_, err = os.Stat(filepath.Join(dest, "info.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dest, "files.txt"))
	require.NoError(t, err)
}

// S6 — merger equality tie-break across three runs.
func TestS6TieBreak(t *testing.T) {
	base := t.TempDir()
	run0 := filepath.Join(base, "run0")
	run1 := filepath.Join(base, "run1")
	run2 := filepath.Join(base, "run2")

	writeRun(t, run0, 1, map[string][]uint64{"foo": {0}})
	writeRun(t, run1, 1, map[string][]uint64{"foo": {3}})
	writeRun(t, run2, 1, map[string][]uint64{"foo": {0}})

	dest := filepath.Join(base, "final")
	m := New([]string{run0, run1, run2}, 1, dest, 6, false)
	_, err := m.Run(nil)
	require.NoError(t, err)

	got := readDictionary(t, dest, 1)
	require.Len(t, got, 1)
	foo := got["foo"]
	require.Equal(t, uint64(3), foo.TotalUseCount)

	entries := foo.Postings.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, uint64(0), entries[0].DocID)
	require.Equal(t, uint64(2), entries[0].Occurrences)
	require.Equal(t, uint64(3), entries[1].DocID)
	require.Equal(t, uint64(1), entries[1].Occurrences)
}

// Testable property 4 — merge preserves the multiset: partitioning a
// corpus into k runs and merging must equal a single unsplit run.
func TestProperty4MergePreservesMultiset(t *testing.T) {
	base := t.TempDir()

	single := filepath.Join(base, "single")
	writeRun(t, single, 1, map[string][]uint64{"a": {0, 2}, "b": {1}, "c": {2}})

	run0 := filepath.Join(base, "split0")
	run1 := filepath.Join(base, "split1")
	writeRun(t, run0, 1, map[string][]uint64{"a": {0}, "b": {1}})
	writeRun(t, run1, 1, map[string][]uint64{"a": {2}, "c": {2}})

	destSingle := filepath.Join(base, "dest_single")
	m1 := New([]string{single}, 1, destSingle, 6, false)
	_, err := m1.Run(nil)
	require.NoError(t, err)

	destSplit := filepath.Join(base, "dest_split")
	m2 := New([]string{run0, run1}, 1, destSplit, 6, false)
	_, err = m2.Run(nil)
	require.NoError(t, err)

	wantDict := readDictionary(t, destSingle, 1)
	gotDict := readDictionary(t, destSplit, 1)

	require.Equal(t, len(wantDict), len(gotDict))
	for term, want := range wantDict {
		got, ok := gotDict[term]
		require.True(t, ok, "missing term %q", term)
		require.Equal(t, want.TotalUseCount, got.TotalUseCount)
		require.Equal(t, want.Postings.Entries(), got.Postings.Entries())
	}
}
