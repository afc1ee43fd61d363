package segtab

import (
	"context"
	"sync"
	"unsafe"

	"github.com/ptdir/ptdir/internal/size"
	"github.com/ptdir/ptdir/pagesrc"
)

// pool implements component C2, the directory-node allocator: a process-wide
// free list of segtabs, refilled one page at a time by dicing a freshly
// allocated page into however many segtabs fit in it and chaining the
// leftovers onto the free list via their slot 0 (spec.md §3 Invariant 1,
// §4.2).
//
// Get/Put's indexing is grounded directly on NetBSD's pmap_segtab_alloc and
// pmap_segtab_free (original_source/sys/uvm/pmap/pmap_segtab.c): the dicing
// loop links node[1..n-2] to each other and node[n-1] to the prior free-list
// head, handing node[0] straight back to the caller without ever touching
// the lock for it. When a segtab is exactly one page in size (n==1, the
// Amd64 default: 512 slots * 8 bytes == 4096), the dicing loop is skipped
// entirely, matching the original's "if (n > 1)" guard.
type pool struct {
	mu   sync.Mutex
	free uintptr // address of free-list head segtab, 0 if empty

	src      *pagesrc.Source
	segtabSz int // PMAP_SEGTABSIZE: slots per segtab
	perPage  int // n: segtabs diced from one freshly allocated page
	strict   bool
}

func bytesPerSegtab(segtabSz int) uintptr {
	return uintptr(segtabSz) * unsafe.Sizeof(uintptr(0))
}

func newPool(src *pagesrc.Source, segtabSz int, strict bool) *pool {
	n := int(size.PageSize / size.Size(bytesPerSegtab(segtabSz)))
	if n < 1 {
		// A segtab larger than one page (unusual but not forbidden):
		// every allocation costs exactly one page and nothing is ever
		// diced onto the free list.
		n = 1
	}
	return &pool{src: src, segtabSz: segtabSz, perPage: n, strict: strict}
}

// Get removes a segtab from the free list, allocating and dicing a fresh
// page first if the list is empty. It blocks until a page is available. The
// returned segtab has every slot null.
func (p *pool) Get(ctx context.Context) (*segtab, error) {
	if stb, ok := p.popFree(); ok {
		return stb, nil
	}
	pg, err := p.src.Alloc(ctx)
	if err != nil {
		return nil, err
	}
	return p.diceFromPage(p.src.MapPoolPage(pg)), nil
}

// TryGet is Get without blocking: it reports false if the free list is
// empty and the page source's budget is currently exhausted. Used by the
// CANFAIL path of Reserve.
func (p *pool) TryGet() (*segtab, bool) {
	if stb, ok := p.popFree(); ok {
		return stb, true
	}
	pg, ok := p.src.TryAlloc()
	if !ok {
		return nil, false
	}
	return p.diceFromPage(p.src.MapPoolPage(pg)), true
}

// diceFromPage carves a freshly obtained page into p.perPage segtabs,
// chaining node[1..perPage-2] to each other and node[perPage-1] to the prior
// free-list head, and returns node[0] directly without ever touching the
// lock for it.
func (p *pool) diceFromPage(base uintptr) *segtab {
	first := segtabFromAddr(base, p.segtabSz)

	if p.perPage > 1 {
		stride := bytesPerSegtab(p.segtabSz)
		p.mu.Lock()
		for i := 1; i < p.perPage-1; i++ {
			cur := base + uintptr(i)*stride
			next := base + uintptr(i+1)*stride
			*(*uintptr)(unsafe.Pointer(cur)) = next
		}
		last := base + uintptr(p.perPage-1)*stride
		*(*uintptr)(unsafe.Pointer(last)) = p.free
		p.free = base + stride // node[1]
		p.mu.Unlock()
	}

	return first
}

func (p *pool) popFree() (*segtab, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.free == 0 {
		return nil, false
	}
	stb := segtabFromAddr(p.free, p.segtabSz)
	p.free = stb.slot[0]
	stb.slot[0] = 0

	fatalIf(p.strict && !stb.allNull(), "segtab/pool",
		"segtab popped from free list has a stray non-null slot")
	return stb, true
}

// Put returns stb to the free list. Every slot other than 0 must already be
// null; under StrictChecks this is verified and a violation is fatal,
// mirroring the original's DEBUG-only pmap_check_stb.
func (p *pool) Put(stb *segtab) {
	fatalIf(p.strict && !stb.allNullExceptZero(), "segtab/pool",
		"segtab returned to pool has a stray non-null slot")

	p.mu.Lock()
	stb.slot[0] = p.free
	p.free = stb.addr()
	p.mu.Unlock()
}
