package segtab

import (
	"context"

	"github.com/ptdir/ptdir/internal/size"
)

// Destroy implements component C7: it recursively tears down every
// intermediate segtab and leaf page reachable from pmap's root at or above
// pmap.MinAddr(), invoking cb on each populated leaf before releasing it,
// then returns the root itself to the pool. After Destroy returns, pmap
// must not be used again.
//
// The starting-slot computation for a partially aligned minaddr —
// (minaddr / span) mod fan-out, rather than always starting the scan at
// index 0 — is grounded on pmap_segtab_release's vinc-based index arithmetic
// (original_source/sys/uvm/pmap/pmap_segtab.c): a pmap whose minaddr begins
// mid-segtab must skip the slots below it rather than pretending they start
// at address 0.
func (mgr *Manager) Destroy(ctx context.Context, pmap *Pmap, cb Callback, flags Flags) {
	root := pmap.rootSegtab()
	if root == nil {
		return
	}
	segSize := uintptr(1) << mgr.md.SegShift()

	if mgr.md.ThreeLevel() {
		xsegSize := segSize * uintptr(mgr.md.SegtabSize())
		startIdx := int((pmap.MinAddr() / xsegSize) % uintptr(mgr.md.NSegPg()))

		for i := startIdx; i < mgr.md.NSegPg(); i++ {
			sub := root.slot[i]
			if sub == 0 {
				continue
			}
			subStb := segtabFromAddr(sub, mgr.md.SegtabSize())
			subBase := uintptr(i) * xsegSize

			innerStart := 0
			if i == startIdx {
				innerStart = int((pmap.MinAddr() / segSize) % uintptr(mgr.md.SegtabSize()))
			}
			mgr.destroySegtab(pmap, subStb, subBase, innerStart, cb, flags)
			root.slot[i] = 0
		}
		mgr.pool.Put(root)
	} else {
		// On a two-level layout the root is the leaf segtab, and
		// destroySegtab returns it to the pool itself.
		startIdx := int((pmap.MinAddr() / segSize) % uintptr(mgr.md.SegtabSize()))
		mgr.destroySegtab(pmap, root, 0, startIdx, cb, flags)
	}

	pmap.root = nil
}

// destroySegtab releases every populated leaf in stb from startIdx onward,
// then returns stb to the pool. base is the absolute virtual address that
// stb.slot[0] corresponds to.
func (mgr *Manager) destroySegtab(pmap *Pmap, stb *segtab, base uintptr, startIdx int, cb Callback, flags Flags) {
	segSize := uintptr(1) << mgr.md.SegShift()

	for i := startIdx; i < mgr.md.SegtabSize(); i++ {
		leafAddr := stb.slot[i]
		if leafAddr == 0 {
			continue
		}
		fatalIf(mgr.opts.StrictChecks && !size.Aligned(leafAddr), "segtab/teardown",
			"leaf page address is not page-aligned")
		leaf := leafFromAddr(leafAddr, mgr.md.NPTEPg())
		vaStart := base + uintptr(i)*segSize
		vaEnd := vaStart + segSize

		if cb != nil {
			cb(pmap, vaStart, vaEnd, leaf, flags)
		}
		mgr.enforceZeroPolicy(leaf)
		mgr.releaseLeafPage(leafAddr)
		stb.slot[i] = 0
	}

	mgr.pool.Put(stb)
}

// enforceZeroPolicy applies Options.ZeroPolicy to a leaf the destroy
// callback has just finished with.
func (mgr *Manager) enforceZeroPolicy(leaf []PTE) {
	switch mgr.opts.ZeroPolicy {
	case ZeroStrict:
		leafZero(leaf)
	default: // ZeroTrust
		fatalIf(mgr.opts.StrictChecks && !leafAllZero(leaf), "segtab/teardown",
			"destroy callback left a non-zero PTE in a leaf it was responsible for zeroing")
	}
}
