package native

import (
	"cmp"
	"container/heap"

	"github.com/mbrock/sdreader/pkg/journalfile"
)

// pos is one entry of the merged order.
type pos struct {
	f   *jfile
	idx int
}

func (p pos) meta() *journalfile.EntryMeta {
	return &p.f.metas[p.idx]
}

// anchor remembers an entry by value so a position survives the entry's
// file going away.
type anchor struct {
	seqnumID journalfile.ID128
	meta     journalfile.EntryMeta
}

func anchorOf(p pos) anchor {
	return anchor{seqnumID: p.f.seqnumID(), meta: *p.meta()}
}

// compareOrder orders entries the way libsystemd interleaves files: by
// sequence number within one seqnum id, by monotonic time within one boot,
// and by wallclock otherwise.
func compareOrder(aSeq journalfile.ID128, a *journalfile.EntryMeta, bSeq journalfile.ID128, b *journalfile.EntryMeta) int {
	if aSeq == bSeq {
		if c := cmp.Compare(a.Seqnum, b.Seqnum); c != 0 {
			return c
		}
	}
	if a.BootID == b.BootID {
		if c := cmp.Compare(a.Monotonic, b.Monotonic); c != 0 {
			return c
		}
	}
	if c := cmp.Compare(a.Realtime, b.Realtime); c != 0 {
		return c
	}
	return cmp.Compare(a.XorHash, b.XorHash)
}

func comparePos(a, b pos) int {
	return compareOrder(a.f.seqnumID(), a.meta(), b.f.seqnumID(), b.meta())
}

func (p pos) compareAnchor(a anchor) int {
	return compareOrder(p.f.seqnumID(), p.meta(), a.seqnumID, &a.meta)
}

// mergeHeap holds the next unmerged entry of each file.
type mergeHeap []pos

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if c := comparePos(h[i], h[j]); c != 0 {
		return c < 0
	}
	return h[i].f.path < h[j].f.path
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)   { *h = append(*h, x.(pos)) }
func (h *mergeHeap) Pop() any {
	old := *h
	p := old[len(old)-1]
	*h = old[:len(old)-1]
	return p
}

// merge interleaves the entries of files. An entry found in more than one
// file, as happens around rotation, appears once.
func merge(files []*jfile) []pos {
	total := 0
	h := make(mergeHeap, 0, len(files))
	for _, jf := range files {
		total += len(jf.metas)
		if len(jf.metas) > 0 {
			h = append(h, pos{f: jf})
		}
	}
	heap.Init(&h)

	order := make([]pos, 0, total)
	for h.Len() > 0 {
		p := h[0]
		if n := len(order); n == 0 || order[n-1].f == p.f || comparePos(order[n-1], p) != 0 {
			order = append(order, p)
		}
		if p.idx+1 < len(p.f.metas) {
			h[0] = pos{f: p.f, idx: p.idx + 1}
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
		}
	}
	return order
}

// rebuild recomputes the merged order and keeps the position on the same
// entry, or next to where it was if the entry is gone.
func (s *store) rebuild() error {
	s.order = merge(s.files)
	if !s.nav.landed {
		return nil
	}
	for i, p := range s.order {
		if p.f == s.nav.file && *p.meta() == s.nav.anchor.meta {
			s.nav.idx = i
			return nil
		}
	}
	s.nav.landed = false
	s.nav.self = false
	s.nav.kind = locNear
	return nil
}
