package md

import "math"

// Amd64 is a ready-to-use two-level MD implementation: PMAP_SEGTABSIZE=512,
// NPTEPG=512, PAGE_SIZE=4096 — the constants used throughout spec.md §8's
// worked scenarios (NBSEG = 2 MiB). ActivateHook/DeactivateHook are no-ops;
// a real kernel MD layer would flush the TLB or reload a hardware root
// pointer here.
//
// Grounded on the teacher's habit of shipping a small, arch-suffixed
// constants file (kernel/mem/vmm/vmm_constants_amd64.go) next to the
// arch-agnostic walk code.
type Amd64 struct{}

var _ MD = Amd64{}

func (Amd64) PageShift() uint    { return 12 }
func (Amd64) SegShift() uint     { return 21 }
func (Amd64) XSegShift() uint    { return 0 }
func (Amd64) SegtabSize() int    { return 512 }
func (Amd64) NSegPg() int        { return 0 }
func (Amd64) NPTEPg() int        { return 512 }
func (Amd64) ThreeLevel() bool   { return false }
func (Amd64) InvalidSegtab() uintptr {
	return uintptr(math.MaxUint64)
}
func (Amd64) ActivateHook(uintptr, int)   {}
func (Amd64) DeactivateHook(uintptr, int) {}

// Amd64LA57 is a three-level MD implementation modeling a large-address-space
// layout (XSEG_INDEX : SEG_INDEX : PTE_INDEX : PAGE_OFFSET), analogous to
// spec.md §3's "3-level layout (large address space)". The extra top level
// fans out by 4 (NSegPg), giving a 4 GiB top-level span on top of the
// Amd64 leaf geometry.
type Amd64LA57 struct{}

var _ MD = Amd64LA57{}

func (Amd64LA57) PageShift() uint    { return 12 }
func (Amd64LA57) SegShift() uint     { return 21 }
func (Amd64LA57) XSegShift() uint    { return 30 }
func (Amd64LA57) SegtabSize() int    { return 512 }
func (Amd64LA57) NSegPg() int        { return 4 }
func (Amd64LA57) NPTEPg() int        { return 512 }
func (Amd64LA57) ThreeLevel() bool   { return true }
func (Amd64LA57) InvalidSegtab() uintptr {
	return uintptr(math.MaxUint64)
}
func (Amd64LA57) ActivateHook(uintptr, int)   {}
func (Amd64LA57) DeactivateHook(uintptr, int) {}
