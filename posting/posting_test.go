package posting

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mkMask(numZones, bit int) ZoneMask {
	m := NewZoneMask(numZones)
	m.Set(bit)
	return m
}

func TestPushInsertsAscending(t *testing.T) {
	m := NewMap()
	m.Push(Posting{DocID: 3, Occurrences: 1, ZoneMask: mkMask(2, 0)})
	m.Push(Posting{DocID: 1, Occurrences: 1, ZoneMask: mkMask(2, 0)})
	m.Push(Posting{DocID: 2, Occurrences: 1, ZoneMask: mkMask(2, 0)})

	got := m.Entries()
	require.Len(t, got, 3)
	require.Equal(t, []uint64{1, 2, 3}, []uint64{got[0].DocID, got[1].DocID, got[2].DocID})
}

func TestPushCombinesSameDoc(t *testing.T) {
	m := NewMap()
	m.Push(Posting{DocID: 5, Occurrences: 1, ZoneMask: mkMask(2, 0)})
	m.Push(Posting{DocID: 5, Occurrences: 2, ZoneMask: mkMask(2, 1)})

	got := m.Entries()
	require.Len(t, got, 1)
	require.Equal(t, uint64(3), got[0].Occurrences)
	require.Equal(t, ZoneMask{0x03}, got[0].ZoneMask)
}

func TestMergeDisjointAndOverlapping(t *testing.T) {
	a := NewMap()
	a.Push(Posting{DocID: 0, Occurrences: 1, ZoneMask: mkMask(1, 0)})
	a.Push(Posting{DocID: 3, Occurrences: 1, ZoneMask: mkMask(1, 0)})

	b := NewMap()
	b.Push(Posting{DocID: 0, Occurrences: 1, ZoneMask: mkMask(1, 0)})

	a.Merge(b)
	got := a.Entries()
	require.Len(t, got, 2)
	require.Equal(t, uint64(2), got[0].Occurrences)
	require.Equal(t, uint64(3), got[1].DocID)
}

// S6 — merger equality tie-break.
func TestCombineTermsSumsAndMerges(t *testing.T) {
	a := NewIndexedTerm("foo")
	a.TotalUseCount = 1
	a.Postings.Push(Posting{DocID: 0, Occurrences: 1, ZoneMask: mkMask(1, 0)})

	b := NewIndexedTerm("foo")
	b.TotalUseCount = 1
	b.Postings.Push(Posting{DocID: 3, Occurrences: 1, ZoneMask: mkMask(1, 0)})

	c := NewIndexedTerm("foo")
	c.TotalUseCount = 1
	c.Postings.Push(Posting{DocID: 0, Occurrences: 1, ZoneMask: mkMask(1, 0)})

	ab := CombineTerms(a, b)
	abc := CombineTerms(ab, c)

	require.Equal(t, uint64(3), abc.TotalUseCount)
	got := abc.Postings.Entries()
	require.Len(t, got, 2)
	require.Equal(t, uint64(0), got[0].DocID)
	require.Equal(t, uint64(2), got[0].Occurrences)
	require.Equal(t, uint64(3), got[1].DocID)
	require.Equal(t, uint64(1), got[1].Occurrences)
}

// Idempotent combine: combine(a, empty) == a.
func TestCombineWithEmptyIsIdentity(t *testing.T) {
	a := NewIndexedTerm("x")
	a.TotalUseCount = 5
	a.Postings.Push(Posting{DocID: 1, Occurrences: 2, ZoneMask: mkMask(1, 0)})

	empty := NewIndexedTerm("x")

	got := CombineTerms(a, empty)
	require.Equal(t, a.TotalUseCount, got.TotalUseCount)
	require.Equal(t, a.Postings.Entries(), got.Postings.Entries())
}

// combine(combine(a,b), c) == combine(a, combine(b,c)) — associativity.
func TestCombineIsAssociative(t *testing.T) {
	mk := func(doc, occ uint64) *IndexedTerm {
		it := NewIndexedTerm("t")
		it.TotalUseCount = occ
		it.Postings.Push(Posting{DocID: doc, Occurrences: occ, ZoneMask: mkMask(1, 0)})
		return it
	}
	a, b, c := mk(0, 1), mk(1, 2), mk(2, 3)

	left := CombineTerms(CombineTerms(a, b), c)
	right := CombineTerms(a, CombineTerms(b, c))

	require.Equal(t, left.TotalUseCount, right.TotalUseCount)
	require.Equal(t, left.Postings.Entries(), right.Postings.Entries())
}
