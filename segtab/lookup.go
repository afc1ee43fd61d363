package segtab

import (
	"sync/atomic"

	"github.com/ptdir/ptdir/md"
)

// xsegIndex, segIndex and pteIndex decompose a virtual address into the
// indices spec.md §3 names XSEG_INDEX, SEG_INDEX and PTE_INDEX, grounded on
// the teacher's src/gopheros/kernel/mem/vmm/walk.go per-level shift/mask
// decomposition (there driven by pageLevelShifts/pageLevelBits).
func xsegIndex(m md.MD, va uintptr) int {
	return int((va >> m.XSegShift()) % uintptr(m.NSegPg()))
}

func segIndex(m md.MD, va uintptr) int {
	return int((va >> m.SegShift()) % uintptr(m.SegtabSize()))
}

func pteIndex(m md.MD, va uintptr) int {
	return int((va >> m.PageShift()) % uintptr(m.NPTEPg()))
}

// Lookup implements component C4: a pure, allocation-free, read-only radix
// walk from pmap's root segtab down to the PTE slot that would hold va's
// translation. It returns nil the moment it finds a null intermediate slot
// or a null leaf-page slot, without ever allocating — the direct analogue
// of pmap_pte_lookup.
func (mgr *Manager) Lookup(pmap *Pmap, va uintptr) *PTE {
	root := pmap.rootSegtab()
	if root == nil {
		return nil
	}

	stb := root
	if mgr.md.ThreeLevel() {
		next := atomic.LoadUintptr(&stb.slot[xsegIndex(mgr.md, va)])
		if next == 0 {
			return nil
		}
		stb = segtabFromAddr(next, mgr.md.SegtabSize())
	}

	leafAddr := atomic.LoadUintptr(&stb.slot[segIndex(mgr.md, va)])
	if leafAddr == 0 {
		return nil
	}
	leaf := leafFromAddr(leafAddr, mgr.md.NPTEPg())
	return &leaf[pteIndex(mgr.md, va)]
}
