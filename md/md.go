// Package md defines the narrow machine-dependent interface the segtab
// package consumes (spec.md §6) and ships a usable default implementation
// so the module works out of the box without a caller-supplied MD layer.
package md

// MD is the narrow interface the segtab package requires from the
// machine-dependent / physical layer. It carries only the platform
// constants and the two activation hooks spec.md §6 names; everything else
// (hardware PTE format, TLB shootdown) stays outside this module entirely.
type MD interface {
	// PageShift is log2(page size in bytes).
	PageShift() uint

	// SegShift is log2(the VA span of one leaf PTE page) = PageShift + log2(NPTEPg).
	SegShift() uint

	// XSegShift is log2(the VA span of one top-level segtab); only
	// meaningful when ThreeLevel reports true.
	XSegShift() uint

	// SegtabSize is PMAP_SEGTABSIZE, the fan-out of one segtab node.
	SegtabSize() int

	// NSegPg is the fan-out of the extra top-level directory on a
	// three-level layout.
	NSegPg() int

	// NPTEPg is the number of PTEs per leaf page.
	NPTEPg() int

	// ThreeLevel reports whether this layout uses the extra top-level
	// directory (XSEG_INDEX : SEG_INDEX : PTE_INDEX : PAGE_OFFSET) or
	// just the two-level layout (SEG_INDEX : PTE_INDEX : PAGE_OFFSET).
	ThreeLevel() bool

	// InvalidSegtab is the sentinel published to a per-CPU context when
	// no user pmap is active there.
	InvalidSegtab() uintptr

	// ActivateHook notifies the MD layer that pmapID is becoming active
	// on cpu. pmapID is an opaque identifier supplied by the caller (the
	// surrounding pmap object); this module never dereferences it.
	ActivateHook(pmapID uintptr, cpu int)

	// DeactivateHook notifies the MD layer that the pmap active on cpu is
	// being deactivated.
	DeactivateHook(pmapID uintptr, cpu int)
}
