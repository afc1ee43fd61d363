package segtab

import (
	"context"
	"sync/atomic"
)

// Reserve implements component C5: it returns the PTE slot for va, allocating
// and publishing whatever intermediate segtabs and leaf page are missing
// along the way. This is the direct analogue of pmap_pte_reserve.
//
// Reserve always re-checks a slot before allocating for it (the fast path:
// if another goroutine already published, Reserve just follows the existing
// pointer) and publishes a freshly allocated node with a single
// compare-and-swap. A goroutine that loses the race discards its own
// candidate back to the pool/cache and follows the winner's pointer instead
// — the "two goroutines fault the same missing slot concurrently" case is a
// conflict to resolve, never an invariant violation (spec.md §4.5, §9).
//
// Without CanFail, Reserve blocks until allocation succeeds. With CanFail,
// an exhausted page source makes Reserve return (nil, nil) rather than
// blocking or erroring.
func (mgr *Manager) Reserve(ctx context.Context, pmap *Pmap, va uintptr, flags Flags) (*PTE, error) {
	stb := pmap.rootSegtab()

	if mgr.md.ThreeLevel() {
		childAddr, err := mgr.reserveChild(ctx, &stb.slot[xsegIndex(mgr.md, va)], flags)
		if err != nil {
			return nil, err
		}
		if childAddr == 0 {
			return nil, nil
		}
		stb = segtabFromAddr(childAddr, mgr.md.SegtabSize())
	}

	leafAddr, err := mgr.reserveLeaf(ctx, &stb.slot[segIndex(mgr.md, va)], flags)
	if err != nil {
		return nil, err
	}
	if leafAddr == 0 {
		return nil, nil
	}

	leaf := leafFromAddr(leafAddr, mgr.md.NPTEPg())
	return &leaf[pteIndex(mgr.md, va)], nil
}

// reserveChild publishes an intermediate segtab into *slot if one is not
// already there, returning the (possibly pre-existing) address.
func (mgr *Manager) reserveChild(ctx context.Context, slot *uintptr, flags Flags) (uintptr, error) {
	if existing := atomic.LoadUintptr(slot); existing != 0 {
		return existing, nil
	}

	var candidate *segtab
	if flags&CanFail != 0 {
		c, ok := mgr.pool.TryGet()
		if !ok {
			return 0, nil
		}
		candidate = c
	} else {
		c, err := mgr.pool.Get(ctx)
		if err != nil {
			return 0, err
		}
		candidate = c
	}

	winner, won := casSlot(slot, 0, candidate.addr())
	if !won {
		mgr.pool.Put(candidate)
	}
	return winner, nil
}

// reserveLeaf publishes a leaf PTE page into *slot if one is not already
// there, returning the (possibly pre-existing) address.
func (mgr *Manager) reserveLeaf(ctx context.Context, slot *uintptr, flags Flags) (uintptr, error) {
	if existing := atomic.LoadUintptr(slot); existing != 0 {
		return existing, nil
	}

	addr, err := mgr.acquireLeafPage(ctx, flags)
	if err != nil {
		return 0, err
	}
	if addr == 0 {
		return 0, nil
	}

	winner, won := casSlot(slot, 0, addr)
	if !won {
		mgr.releaseLeafPage(addr)
	}
	return winner, nil
}

// acquireLeafPage obtains a zeroed leaf page, preferring the PTP cache (C3)
// over a fresh page-source allocation.
func (mgr *Manager) acquireLeafPage(ctx context.Context, flags Flags) (uintptr, error) {
	if addr, ok := mgr.cache.Get(); ok {
		return addr, nil
	}

	if flags&CanFail != 0 {
		pg, ok := mgr.src.TryAlloc()
		if !ok {
			return 0, nil
		}
		return mgr.src.MapPoolPage(pg), nil
	}

	pg, err := mgr.src.Alloc(ctx)
	if err != nil {
		return 0, err
	}
	return mgr.src.MapPoolPage(pg), nil
}

// releaseLeafPage returns a leaf page this goroutine lost the publication
// race for, preferring the PTP cache over the page source.
func (mgr *Manager) releaseLeafPage(addr uintptr) {
	if mgr.cache.Put(addr) {
		return
	}
	_ = mgr.src.Free(mgr.src.UnmapPoolPage(addr))
}
