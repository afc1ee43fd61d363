// Package segtab implements the software page-table directory manager
// described by spec.md: a hierarchical radix structure (the "segtab") that
// maps a virtual address to the leaf PTE slot holding its hardware
// translation, together with the allocation pools, concurrency discipline
// and range-walking/teardown protocols around it.
//
// The radix-walk shape is grounded on the teacher's
// src/gopheros/kernel/mem/vmm package (walk.go/pte.go/pdt.go): decompose a
// virtual address into per-level indices and dereference through directory
// slots, stopping at the first null. The allocation/free-list/CAS-publish
// algorithm is grounded directly on NetBSD's pmap_segtab.c (see DESIGN.md).
package segtab

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ptdir/ptdir/internal/kerr"
	"github.com/ptdir/ptdir/md"
	"github.com/ptdir/ptdir/pagesrc"
)

// PTE is an opaque machine-dependent translation word. segtab never
// interprets a PTE's contents; it only ever checks a *segtab slot* or *leaf
// page pointer* for nullness. PTE is exported so callers can cast leaf
// slices to their own hardware-specific type if they need to.
type PTE = uint64

// Flags is the flags word passed to Reserve and Process.
type Flags uint

// CanFail authorizes Reserve to return a nil slot instead of blocking when
// the page source's budget is exhausted. Without it, Reserve waits for a
// page; it never terminates the process on exhaustion.
const CanFail Flags = 1 << 0

// Callback is invoked once per populated leaf that a range walk or a
// teardown visits. leaf is the full PTE array backing the segtab slot; the
// callback may read/modify PTEs in [vaStart, vaEnd) and — when invoked from
// Destroy — MUST zero every entry in leaf before returning.
type Callback func(pmap *Pmap, vaStart, vaEnd uintptr, leaf []PTE, flags Flags)

// ZeroPolicy selects how strictly Destroy enforces the "callback zeroes the
// leaf before returning" contract (spec.md §9).
type ZeroPolicy uint8

const (
	// ZeroTrust only verifies leaf zeroing in builds that opt into
	// Options.StrictChecks; otherwise it trusts the callback, matching
	// the original's DEBUG-gated pmap_check_ptes.
	ZeroTrust ZeroPolicy = iota

	// ZeroStrict re-zeroes the leaf itself after the callback returns,
	// regardless of what the callback did.
	ZeroStrict
)

// Options configures a Manager. The zero value is not valid; use
// DefaultOptions or NewManager's functional options.
type Options struct {
	// CacheLimit bounds the leaf-page cache (component C3). 0 means
	// unbounded (the original's default). A negative value disables the
	// cache entirely: freed leaves go straight back to the page source
	// and Reserve never consults it, matching spec.md §4.3's "Disabled
	// configuration".
	CacheLimit int

	// ZeroPolicy controls Destroy's leaf-zero enforcement.
	ZeroPolicy ZeroPolicy

	// ReclaimEmpty opts into the Open Question from spec.md §9: after a
	// range-walk callback runs, re-check the leaf for all-zero content
	// and, if empty, release the slot back to the PTP cache. Default
	// off, matching the original's behavior of never reclaiming.
	ReclaimEmpty bool

	// StrictChecks enables the invariant assertions mirrored from the
	// original's DEBUG build (pmap_check_stb/pmap_check_ptes): freed
	// segtabs must have every slot but 0 null, and leaves must be
	// page-aligned and (under ZeroTrust) actually zero. Violations call
	// kerr.Fatal. Default on.
	StrictChecks bool
}

// DefaultOptions returns the Options a Manager uses when none are supplied.
func DefaultOptions() Options {
	return Options{
		CacheLimit:   0,
		ZeroPolicy:   ZeroTrust,
		ReclaimEmpty: false,
		StrictChecks: true,
	}
}

// Option mutates an Options value.
type Option func(*Options)

// WithCacheLimit bounds the leaf-page cache; see Options.CacheLimit.
func WithCacheLimit(n int) Option { return func(o *Options) { o.CacheLimit = n } }

// WithZeroPolicy selects Destroy's leaf-zero enforcement.
func WithZeroPolicy(p ZeroPolicy) Option { return func(o *Options) { o.ZeroPolicy = p } }

// WithReclaimEmpty opts into opportunistic leaf reclamation in Process.
func WithReclaimEmpty(b bool) Option { return func(o *Options) { o.ReclaimEmpty = b } }

// WithStrictChecks toggles the invariant assertions described by Options.StrictChecks.
func WithStrictChecks(b bool) Option { return func(o *Options) { o.StrictChecks = b } }

// Manager owns the process-wide state for one layout: the directory-node
// pool, the leaf-page cache, and the per-CPU activation table. spec.md §9
// treats free_segtab/the PTP cache/the lock as process-wide singletons with
// init-at-boot lifecycle, exposed "behind a module-level handle"; Manager
// is that handle, and tests construct a fresh one per case.
type Manager struct {
	md   md.MD
	src  *pagesrc.Source
	opts Options

	pool  *pool
	cache *ptpCache

	cpuMu   sync.Mutex
	percpu  map[int]*PerCPU
	nextPID uint64
}

// PerCPU mirrors the per-CPU context described by spec.md §3: the segtab
// pointer(s) published by activation, consumed only by the owning CPU.
type PerCPU struct {
	UserSegtab   uintptr
	UserSeg0Tab  uintptr
	ActivePmapID uintptr
}

// NewManager creates a Manager for the given MD layout and page source.
func NewManager(m md.MD, src *pagesrc.Source, opts ...Option) *Manager {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	mgr := &Manager{
		md:     m,
		src:    src,
		opts:   o,
		pool:   newPool(src, m.SegtabSize(), o.StrictChecks),
		percpu: make(map[int]*PerCPU),
	}
	mgr.cache = newPTPCache(src, o.CacheLimit)
	return mgr
}

// segtab is a directory node: a fixed-fan-out array of slots. A slot holds
// either the address of a child segtab (upper levels) or the address of a
// leaf PTE page (bottom level); 0 means unallocated. A segtab on the free
// list reuses slot[0] as the link to the next free segtab (spec.md §3,
// Invariant 1); this backing memory is not Go-GC-visible (it lives in an
// mmap'd page from pagesrc), so storing a raw address in slot[0] is safe.
type segtab struct {
	slot []uintptr
}

func segtabFromAddr(addr uintptr, n int) *segtab {
	return &segtab{slot: unsafe.Slice((*uintptr)(unsafe.Pointer(addr)), n)}
}

func (s *segtab) addr() uintptr {
	return uintptr(unsafe.Pointer(&s.slot[0]))
}

// allNull reports whether every slot of s is 0; used by StrictChecks.
func (s *segtab) allNull() bool {
	for _, v := range s.slot {
		if v != 0 {
			return false
		}
	}
	return true
}

// allNullExceptZero is allNull but exempts slot 0, for checking a segtab
// that is about to be linked into (or has just come off) the free list.
func (s *segtab) allNullExceptZero() bool {
	for i := 1; i < len(s.slot); i++ {
		if s.slot[i] != 0 {
			return false
		}
	}
	return true
}

func leafFromAddr(addr uintptr, n int) []PTE {
	return unsafe.Slice((*PTE)(unsafe.Pointer(addr)), n)
}

func leafAllZero(leaf []PTE) bool {
	for _, pte := range leaf {
		if pte != 0 {
			return false
		}
	}
	return true
}

func leafZero(leaf []PTE) {
	for i := range leaf {
		leaf[i] = 0
	}
}

func casSlot(slot *uintptr, old, new uintptr) (uintptr, bool) {
	if atomic.CompareAndSwapUintptr(slot, old, new) {
		return new, true
	}
	return atomic.LoadUintptr(slot), false
}

func fatalIf(cond bool, module, msg string) {
	if cond {
		kerr.Fatal(module, msg)
	}
}
