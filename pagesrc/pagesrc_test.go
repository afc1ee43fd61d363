package pagesrc

import (
	"context"
	"testing"
	"time"
	"unsafe"

	"golang.org/x/sync/errgroup"

	"github.com/ptdir/ptdir/internal/size"
)

func TestAllocIsZeroedAndAligned(t *testing.T) {
	src := New(0)

	pg, err := src.Alloc(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer src.Free(pg)

	if !size.Aligned(pg.Address()) {
		t.Fatalf("expected page address %x to be page-aligned", pg.Address())
	}

	b := unsafe.Slice((*byte)(unsafe.Pointer(pg.Address())), size.PageSize)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("expected byte %d to be zero; got %x", i, v)
		}
	}
}

func TestMapUnmapPoolPageIsIdentity(t *testing.T) {
	src := New(0)
	pg, err := src.Alloc(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer src.Free(pg)

	addr := src.MapPoolPage(pg)
	if addr != pg.Address() {
		t.Fatalf("expected MapPoolPage to return %x; got %x", pg.Address(), addr)
	}

	back := src.UnmapPoolPage(addr)
	if back != pg {
		t.Fatalf("expected UnmapPoolPage to return %v; got %v", pg, back)
	}
}

func TestTryAllocExhaustsBudget(t *testing.T) {
	src := New(2)

	pg1, ok := src.TryAlloc()
	if !ok {
		t.Fatal("expected first TryAlloc to succeed")
	}
	pg2, ok := src.TryAlloc()
	if !ok {
		t.Fatal("expected second TryAlloc to succeed")
	}

	if _, ok := src.TryAlloc(); ok {
		t.Fatal("expected third TryAlloc to fail once budget is exhausted")
	}

	src.Free(pg1)
	src.Free(pg2)
}

func TestWaitForMemoryUnblocksOnFree(t *testing.T) {
	src := New(1)

	pg, ok := src.TryAlloc()
	if !ok {
		t.Fatal("expected TryAlloc to succeed with budget 1")
	}

	var g errgroup.Group
	unblocked := make(chan struct{})
	g.Go(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := src.WaitForMemory(ctx, "test"); err != nil {
			return err
		}
		close(unblocked)
		return nil
	})

	select {
	case <-unblocked:
		t.Fatal("expected WaitForMemory to block while budget is exhausted")
	case <-time.After(50 * time.Millisecond):
	}

	if err := src.Free(pg); err != nil {
		t.Fatalf("unexpected error freeing page: %v", err)
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error from WaitForMemory: %v", err)
	}
}
