package segtab

import "sync/atomic"

// Activate implements component C8: it publishes pmap's root segtab (and,
// on a three-level layout, the same root as the top-level table) into cpu's
// per-CPU context, then invokes the MD activation hook so the
// machine-dependent layer can reload whatever hardware root pointer or TLB
// state it needs to. Only the owning CPU ever reads the PerCPU slot Activate
// writes.
//
// Per spec.md §4.8(ii): when pmap is the kernel pmap, its mappings are not
// reached through the per-CPU user-segtab field at all, so Activate
// publishes the invalid-segtab sentinel there instead of a real root —
// exactly what Deactivate would publish. Only a non-kernel pmap gets its
// root published (§4.8(iii)).
func (mgr *Manager) Activate(pmap *Pmap, cpu int) {
	pc := mgr.perCPU(cpu)

	addr := mgr.md.InvalidSegtab()
	if !pmap.IsKernel() {
		addr = pmap.rootSegtab().addr()
	}

	atomic.StoreUintptr(&pc.UserSegtab, addr)
	if mgr.md.ThreeLevel() {
		atomic.StoreUintptr(&pc.UserSeg0Tab, addr)
	}
	atomic.StoreUintptr(&pc.ActivePmapID, pmap.ID())

	mgr.md.ActivateHook(pmap.ID(), cpu)
}

// Deactivate clears cpu's per-CPU context back to the MD's invalid-segtab
// sentinel and invokes the MD deactivation hook for whatever pmap was
// active there.
func (mgr *Manager) Deactivate(cpu int) {
	pc := mgr.perCPU(cpu)
	prevID := atomic.LoadUintptr(&pc.ActivePmapID)

	invalid := mgr.md.InvalidSegtab()
	atomic.StoreUintptr(&pc.UserSegtab, invalid)
	atomic.StoreUintptr(&pc.UserSeg0Tab, invalid)
	atomic.StoreUintptr(&pc.ActivePmapID, 0)

	mgr.md.DeactivateHook(prevID, cpu)
}

// PerCPUState returns a snapshot of cpu's per-CPU context, mainly useful for
// tests asserting what Activate/Deactivate published.
func (mgr *Manager) PerCPUState(cpu int) PerCPU {
	pc := mgr.perCPU(cpu)
	return PerCPU{
		UserSegtab:   atomic.LoadUintptr(&pc.UserSegtab),
		UserSeg0Tab:  atomic.LoadUintptr(&pc.UserSeg0Tab),
		ActivePmapID: atomic.LoadUintptr(&pc.ActivePmapID),
	}
}

func (mgr *Manager) perCPU(cpu int) *PerCPU {
	mgr.cpuMu.Lock()
	defer mgr.cpuMu.Unlock()

	pc, ok := mgr.percpu[cpu]
	if !ok {
		pc = &PerCPU{UserSegtab: mgr.md.InvalidSegtab(), UserSeg0Tab: mgr.md.InvalidSegtab()}
		mgr.percpu[cpu] = pc
	}
	return pc
}
