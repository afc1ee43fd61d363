package segtab

import (
	"context"
	"testing"

	"github.com/ptdir/ptdir/internal/kerr"
	"github.com/ptdir/ptdir/pagesrc"
)

func TestPoolDicesOnePageIntoSeveralSegtabs(t *testing.T) {
	p := newPool(pagesrc.New(0), 64, true)
	if p.perPage != 8 {
		t.Fatalf("expected 64-slot segtabs to dice 8 per page, got %d", p.perPage)
	}

	seen := map[uintptr]bool{}
	for i := 0; i < p.perPage; i++ {
		stb, err := p.Get(context.Background())
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !stb.allNull() {
			t.Fatalf("segtab %d: expected every slot null, got %v", i, stb.slot)
		}
		addr := stb.addr()
		if seen[addr] {
			t.Fatalf("segtab %d: address %x handed out twice", i, addr)
		}
		seen[addr] = true
	}
}

func TestPoolPutThenGetReusesFreeList(t *testing.T) {
	p := newPool(pagesrc.New(0), 64, true)

	first, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	addr := first.addr()
	p.Put(first)

	second, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if second.addr() != addr {
		t.Fatalf("expected Get to return the just-freed segtab at %x, got %x", addr, second.addr())
	}
}

func TestPoolOneSegtabPerPageSkipsDicing(t *testing.T) {
	// 512 slots * 8 bytes == 4096 == one page, the Amd64 default.
	p := newPool(pagesrc.New(0), 512, true)
	if p.perPage != 1 {
		t.Fatalf("expected exactly one segtab per page, got %d", p.perPage)
	}

	stb, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !stb.allNull() {
		t.Fatal("expected freshly allocated segtab to have every slot null")
	}
	if p.free != 0 {
		t.Fatalf("expected nothing left on the free list, got head %x", p.free)
	}
}

func TestPoolStrictChecksCatchDirtyPut(t *testing.T) {
	orig := kerr.FatalFn
	defer func() { kerr.FatalFn = orig }()

	var triggered bool
	kerr.FatalFn = func(module, msg string) { triggered = true }

	p := newPool(pagesrc.New(0), 64, true)
	stb, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	stb.slot[5] = 0x1234 // violates "every slot but 0 is null"

	p.Put(stb)

	if !triggered {
		t.Fatal("expected StrictChecks to catch a dirty segtab returned to the pool")
	}
}

func TestPoolTryGetFailsWhenBudgetExhausted(t *testing.T) {
	src := pagesrc.New(1)
	p := newPool(src, 512, true)

	if _, ok := p.TryGet(); !ok {
		t.Fatal("expected first TryGet to succeed")
	}
	if _, ok := p.TryGet(); ok {
		t.Fatal("expected second TryGet to fail once the page budget is exhausted")
	}
}
