// Package pagesrc implements the "page source" collaborator described in
// spec.md §4.1 (component C1): it obtains and releases page-sized,
// zero-filled, page-aligned memory and exposes a reversible map/unmap pair
// into the caller's directly addressable window.
//
// In a freestanding kernel this would be the physical page allocator plus
// the kernel's direct-map window. Hosted under a normal Go runtime, a
// process's own virtual address space already plays that role, so pages are
// obtained directly from the OS via anonymous mmap — already zero-filled,
// already page-aligned, and already mapped. MapPoolPage/UnmapPoolPage are
// therefore identity operations over the address, documented as such rather
// than hidden behind extra indirection.
package pagesrc

import (
	"context"
	"unsafe"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sys/unix"

	"github.com/ptdir/ptdir/internal/size"
)

// Page is a page-sized, page-aligned region of zero-filled memory owned by
// a Source until it is released via Free.
type Page uintptr

// Address returns the page's base address.
func (p Page) Address() uintptr {
	return uintptr(p)
}

// Valid reports whether p refers to an actual page rather than the zero
// value.
func (p Page) Valid() bool {
	return p != 0
}

// PageFromAddress reinterprets a previously obtained address as a Page. It
// is the inverse of Page.Address and backs Source.UnmapPoolPage.
func PageFromAddress(addr uintptr) Page {
	return Page(addr)
}

// Source hands out zero-filled pages backed by real anonymous memory. A
// Source with a positive budget blocks allocations once the budget is
// exhausted, giving WaitForMemory real blocking semantics; a zero or
// negative budget means "unbounded" (bounded only by what the OS itself
// will hand out).
type Source struct {
	budget *semaphore.Weighted
}

// New creates a Source. maxPages <= 0 means unbounded.
func New(maxPages int64) *Source {
	s := &Source{}
	if maxPages > 0 {
		s.budget = semaphore.NewWeighted(maxPages)
	}
	return s
}

// TryAlloc obtains one zero-filled page without blocking. It returns
// (Page(0), false) if the Source's budget is currently exhausted.
func (s *Source) TryAlloc() (Page, bool) {
	if s.budget != nil && !s.budget.TryAcquire(1) {
		return 0, false
	}

	b, err := unix.Mmap(-1, 0, int(size.PageSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		if s.budget != nil {
			s.budget.Release(1)
		}
		return 0, false
	}

	// MAP_ANON guarantees a zero-filled page; nothing further to clear.
	return Page(uintptr(unsafe.Pointer(&b[0]))), true
}

// WaitForMemory blocks until the Source's budget has room for at least one
// more page, then immediately releases the slot it acquired to wait for.
// Per spec.md §4.1, wakeup is best-effort: a concurrent allocator may win
// the freed slot before the caller retries its own TryAlloc.
func (s *Source) WaitForMemory(ctx context.Context, tag string) error {
	if s.budget == nil {
		return nil
	}
	if err := s.budget.Acquire(ctx, 1); err != nil {
		return err
	}
	s.budget.Release(1)
	return nil
}

// Alloc obtains one zero-filled page, blocking on WaitForMemory and
// retrying if the Source's budget is momentarily exhausted. This is the
// must-succeed path used by callers that cannot tolerate a nil page (the
// non-CANFAIL reserve path in segtab).
func (s *Source) Alloc(ctx context.Context) (Page, error) {
	for {
		if pg, ok := s.TryAlloc(); ok {
			return pg, nil
		}
		if err := s.WaitForMemory(ctx, "pagesrc"); err != nil {
			return 0, err
		}
	}
}

// Free returns a page to the underlying allocator. The caller must have
// zeroed the page's contents first; Free does not re-check this (spec.md
// §1 makes zeroing the caller's responsibility).
func (s *Source) Free(p Page) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(p.Address())), size.PageSize)
	if err := unix.Munmap(b); err != nil {
		return err
	}
	if s.budget != nil {
		s.budget.Release(1)
	}
	return nil
}

// MapPoolPage exposes p in the caller's directly addressable window,
// returning the address at which it can be accessed. Hosted processes have
// no separate physical/virtual split, so this is the identity function.
func (s *Source) MapPoolPage(p Page) uintptr {
	return p.Address()
}

// UnmapPoolPage withdraws the mapping installed by MapPoolPage. It is the
// identity function for the same reason MapPoolPage is.
func (s *Source) UnmapPoolPage(addr uintptr) Page {
	return PageFromAddress(addr)
}
