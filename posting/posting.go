// Package posting implements the data model shared by the accumulator,
// sorted-run writer/reader, and merger: Posting, IndexedTerm, and the
// sorted docId → Posting map between them.
//
// The map is a flat sorted slice rather than the linked chain the
// original indexer used (every node singly-linked and exclusively
// owned): merges here are append-dominated sequential walks, and a
// slice avoids both the rebalancing cost of a tree and the ownership
// bookkeeping of a pointer chain.
package posting

import "sort"

// ZoneMaskBytes returns the number of bytes needed to hold a bitmask
// over numZones zones.
func ZoneMaskBytes(numZones int) int {
	return (numZones + 7) / 8
}

// ZoneMask is a bitset over the configured zone list, one bit per zone.
type ZoneMask []byte

// NewZoneMask allocates a zero mask sized for numZones zones.
func NewZoneMask(numZones int) ZoneMask {
	return make(ZoneMask, ZoneMaskBytes(numZones))
}

// Set turns on the bit for zoneIdx.
func (m ZoneMask) Set(zoneIdx int) {
	m[zoneIdx/8] |= 1 << (uint(zoneIdx) % 8)
}

// Or ORs other into m in place; both must be the same length.
func (m ZoneMask) Or(other ZoneMask) {
	for i := range m {
		m[i] |= other[i]
	}
}

// Clone returns an independent copy of m.
func (m ZoneMask) Clone() ZoneMask {
	out := make(ZoneMask, len(m))
	copy(out, m)
	return out
}

// Posting is the per-(term,document) evidence: how many times the term
// occurred in the document, and which zones it occurred in.
type Posting struct {
	DocID       uint64
	Occurrences uint64
	ZoneMask    ZoneMask
}

// Combine returns a new Posting that sums the occurrences and ORs the
// zone masks of a and b, leaving both unchanged. a and b must refer to the same docId; the caller is responsible for
// that invariant.
func Combine(a, b Posting) Posting {
	out := Posting{DocID: a.DocID, Occurrences: a.Occurrences + b.Occurrences, ZoneMask: a.ZoneMask.Clone()}
	out.ZoneMask.Or(b.ZoneMask)
	return out
}

// Map is an ordered map from docId to Posting, held as a slice sorted
// ascending by DocID.
type Map struct {
	entries []Posting
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{}
}

// Len returns the number of distinct docIds held.
func (m *Map) Len() int {
	return len(m.entries)
}

// Entries returns the underlying postings in ascending docId order.
// Callers must not mutate the returned slice's Posting.ZoneMask in
// place without cloning it first.
func (m *Map) Entries() []Posting {
	return m.entries
}

// Push inserts p, combining with any existing entry for the same docId.
func (m *Map) Push(p Posting) {
	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].DocID >= p.DocID })
	if i < len(m.entries) && m.entries[i].DocID == p.DocID {
		m.entries[i] = Combine(m.entries[i], p)
		return
	}
	m.entries = append(m.entries, Posting{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = p
}

// SetSortedUnchecked replaces the map's contents with entries, which
// the caller guarantees are already strictly ascending by DocID (used
// when loading a posting list straight off disk, where the on-disk
// invariant already holds).
func (m *Map) SetSortedUnchecked(entries []Posting) {
	m.entries = entries
}

// Merge folds other into m in O(len(m)+len(other)) by a single sorted
// walk, combining colliding docIds.
func (m *Map) Merge(other *Map) {
	if other.Len() == 0 {
		return
	}
	if m.Len() == 0 {
		m.entries = append(m.entries[:0], other.entries...)
		return
	}

	out := make([]Posting, 0, len(m.entries)+len(other.entries))
	i, j := 0, 0
	for i < len(m.entries) && j < len(other.entries) {
		a, b := m.entries[i], other.entries[j]
		switch {
		case a.DocID < b.DocID:
			out = append(out, a)
			i++
		case a.DocID > b.DocID:
			out = append(out, b)
			j++
		default:
			out = append(out, Combine(a, b))
			i++
			j++
		}
	}
	out = append(out, m.entries[i:]...)
	out = append(out, other.entries[j:]...)
	m.entries = out
}

// IndexedTerm is one dictionary entry: a term string, its total use
// count across every document, and the postings for each document it
// appears in.
type IndexedTerm struct {
	Term          string
	TotalUseCount uint64
	Postings      *Map
}

// NewIndexedTerm returns an empty IndexedTerm for term.
func NewIndexedTerm(term string) *IndexedTerm {
	return &IndexedTerm{Term: term, Postings: NewMap()}
}

// CombineTerms returns a new IndexedTerm that sums the totals and merges
// the posting maps of a and b, leaving both unchanged.
// a and b must have the same Term; the caller is responsible for that
// invariant (ordering between IndexedTerms is lexicographic on Term and
// is enforced by the callers in sortedrun/merge, not here).
func CombineTerms(a, b *IndexedTerm) *IndexedTerm {
	out := &IndexedTerm{Term: a.Term, TotalUseCount: a.TotalUseCount + b.TotalUseCount, Postings: NewMap()}
	out.Postings.entries = append(out.Postings.entries, a.Postings.entries...)
	out.Postings.Merge(b.Postings)
	return out
}
