package segtab

import "sync/atomic"

// Process implements component C6: it walks [sva, eva) one populated leaf at
// a time, invoking cb once per leaf with the sub-range that leaf actually
// covers. Unpopulated segments (absent intermediate segtab or absent leaf
// page) are skipped without allocating — Process never creates structure,
// only visits what Reserve has already published.
//
// The per-segment boundary computation — round the cursor down to a
// segment boundary, add one segment's span, and clamp to eva (or to eva
// outright if the addition would wrap uintptr's range) — is grounded
// directly on pmap_pte_process's lastseg_va/trunc_seg/NBSEG handling
// (original_source/sys/uvm/pmap/pmap_segtab.c).
func (mgr *Manager) Process(pmap *Pmap, sva, eva uintptr, cb Callback, flags Flags) {
	segSize := uintptr(1) << mgr.md.SegShift()
	segMask := segSize - 1

	for va := sva; va < eva; {
		segEnd := (va &^ segMask) + segSize
		if segEnd > eva || segEnd == 0 {
			// segEnd == 0 means the addition wrapped past the top of
			// the address space; either way, this segment's visible
			// span ends at eva.
			segEnd = eva
		}

		mgr.processSegment(pmap, va, segEnd, cb, flags)

		if segEnd <= va {
			break
		}
		va = segEnd
	}
}

// processSegment visits the single leaf page (if any) covering [va, end).
// va and end are guaranteed by Process to lie within one segment-sized,
// segment-aligned span, so at most one leaf page is ever involved.
func (mgr *Manager) processSegment(pmap *Pmap, va, end uintptr, cb Callback, flags Flags) {
	stb := pmap.rootSegtab()

	if mgr.md.ThreeLevel() {
		next := atomic.LoadUintptr(&stb.slot[xsegIndex(mgr.md, va)])
		if next == 0 {
			return
		}
		stb = segtabFromAddr(next, mgr.md.SegtabSize())
	}

	slotIdx := segIndex(mgr.md, va)
	leafAddr := atomic.LoadUintptr(&stb.slot[slotIdx])
	if leafAddr == 0 {
		return
	}
	leaf := leafFromAddr(leafAddr, mgr.md.NPTEPg())

	if cb != nil {
		cb(pmap, va, end, leaf, flags)
	}

	if mgr.opts.ReclaimEmpty && leafAllZero(leaf) {
		if _, won := casSlot(&stb.slot[slotIdx], leafAddr, 0); won {
			mgr.releaseLeafPage(leafAddr)
		}
	}
}
