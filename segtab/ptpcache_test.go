package segtab

import "testing"

func TestPTPCacheDisabledAlwaysMisses(t *testing.T) {
	c := newPTPCache(nil, -1)
	if ok := c.Put(0x1000); ok {
		t.Fatal("expected Put to decline on a disabled cache")
	}
	if _, ok := c.Get(); ok {
		t.Fatal("expected Get to miss on a disabled cache")
	}
}

func TestPTPCacheIsLIFO(t *testing.T) {
	c := newPTPCache(nil, 0)
	c.Put(0x1000)
	c.Put(0x2000)
	c.Put(0x3000)

	want := []uintptr{0x3000, 0x2000, 0x1000}
	for _, w := range want {
		got, ok := c.Get()
		if !ok || got != w {
			t.Fatalf("expected %x, got %x (ok=%v)", w, got, ok)
		}
	}
	if _, ok := c.Get(); ok {
		t.Fatal("expected cache to be empty")
	}
}

func TestPTPCacheRespectsLimit(t *testing.T) {
	c := newPTPCache(nil, 2)
	if !c.Put(0x1000) || !c.Put(0x2000) {
		t.Fatal("expected first two Puts to succeed under a limit of 2")
	}
	if c.Put(0x3000) {
		t.Fatal("expected a third Put to be declined once the limit is reached")
	}
	if c.Len() != 2 {
		t.Fatalf("expected length 2, got %d", c.Len())
	}
}
