package segtab

import (
	"sync"

	"github.com/ptdir/ptdir/pagesrc"
)

// ptpCache implements component C3, the optional bounded pool of idle leaf
// PTE pages: a LIFO stack of zeroed, page-aligned addresses that Reserve
// consults before falling through to the pool/page-source and that Destroy
// offers freed leaves to before releasing them to the OS.
//
// A negative limit disables the cache entirely (Get always misses, Put
// always declines), matching spec.md §4.3's compile-time-vs-runtime
// optionality note for the original's PMAP_PTP_CACHE build knob. A zero
// limit means unbounded.
type ptpCache struct {
	mu    sync.Mutex
	items []uintptr

	limit int
	src   *pagesrc.Source
}

func newPTPCache(src *pagesrc.Source, limit int) *ptpCache {
	return &ptpCache{src: src, limit: limit}
}

func (c *ptpCache) enabled() bool {
	return c.limit >= 0
}

// Get pops the most recently freed leaf page, or reports false if the cache
// is disabled or empty.
func (c *ptpCache) Get() (uintptr, bool) {
	if !c.enabled() {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	if n == 0 {
		return 0, false
	}
	addr := c.items[n-1]
	c.items = c.items[:n-1]
	return addr, true
}

// Put offers a zeroed leaf page to the cache. It returns false when the
// cache is disabled or already at its limit; the caller must then return
// addr to the page source itself.
func (c *ptpCache) Put(addr uintptr) bool {
	if !c.enabled() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limit > 0 && len(c.items) >= c.limit {
		return false
	}
	c.items = append(c.items, addr)
	return true
}

// Len reports the number of pages currently parked in the cache.
func (c *ptpCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
