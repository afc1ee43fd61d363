package segtab

import "context"

// Pmap is the per-address-space directory root this module manages on
// behalf of a larger VM system (spec.md §3's "one pmap per address space").
// Callers treat it as an opaque handle: obtain one from Manager.NewPmap,
// pass it to Lookup/Reserve/Process/Activate, and release it with
// Manager.Destroy.
type Pmap struct {
	root    *segtab
	minAddr uintptr
	id      uintptr
	kernel  bool
}

// ID is an opaque, process-unique identifier suitable for passing to an
// MD.ActivateHook/DeactivateHook implementation. segtab never interprets it
// itself.
func (p *Pmap) ID() uintptr { return p.id }

// IsKernel reports whether p is the kernel pmap, as created by
// Manager.NewKernelPmap. Activate treats the kernel pmap specially
// (spec.md §4.8(ii)): its mappings are reached through a mechanism outside
// this module, so activating it publishes the invalid-segtab sentinel to
// the per-CPU user-segtab field rather than a real root.
func (p *Pmap) IsKernel() bool { return p.kernel }

// MinAddr is the lowest virtual address this pmap is responsible for,
// fixed at creation (spec.md §3's per-pmap minaddr). Destroy uses it to
// pick the first slot it tears down; Process does not consult it and walks
// whatever [sva, eva) it is given.
func (p *Pmap) MinAddr() uintptr { return p.minAddr }

func (p *Pmap) rootSegtab() *segtab { return p.root }

// NewPmap allocates a fresh root segtab and returns the pmap that owns it,
// the direct analogue of segtab_init (spec.md §3 Invariant 4: the root is
// allocated once at init and stays valid until Destroy). minAddr sets where
// Destroy starts its teardown for this pmap.
func (mgr *Manager) NewPmap(ctx context.Context, minAddr uintptr) (*Pmap, error) {
	root, err := mgr.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &Pmap{
		root:    root,
		minAddr: minAddr,
		id:      mgr.allocatePmapID(),
	}, nil
}

// NewKernelPmap is NewPmap but marks the returned pmap as the kernel pmap
// (see Pmap.IsKernel). A process has at most one meaningful kernel pmap,
// but this module does not enforce that — it is the caller's VM system
// that owns that policy.
func (mgr *Manager) NewKernelPmap(ctx context.Context, minAddr uintptr) (*Pmap, error) {
	pmap, err := mgr.NewPmap(ctx, minAddr)
	if err != nil {
		return nil, err
	}
	pmap.kernel = true
	return pmap, nil
}

func (mgr *Manager) allocatePmapID() uintptr {
	mgr.cpuMu.Lock()
	defer mgr.cpuMu.Unlock()
	mgr.nextPID++
	return uintptr(mgr.nextPID)
}
