package md

import "testing"

func TestAmd64Geometry(t *testing.T) {
	var m MD = Amd64{}

	nbseg := uint64(m.NPTEPg()) << m.PageShift()
	if got, exp := uint64(1)<<m.SegShift(), nbseg; got != exp {
		t.Fatalf("expected NBSEG (%d) to equal 1<<SegShift (%d)", nbseg, got)
	}
	if m.ThreeLevel() {
		t.Fatal("expected Amd64 to be a two-level layout")
	}
	if m.SegtabSize() != 512 || m.NPTEPg() != 512 {
		t.Fatalf("unexpected geometry: segtabsize=%d nptepg=%d", m.SegtabSize(), m.NPTEPg())
	}
}

func TestAmd64LA57Geometry(t *testing.T) {
	var m MD = Amd64LA57{}

	if !m.ThreeLevel() {
		t.Fatal("expected Amd64LA57 to be a three-level layout")
	}

	nbseg := uint64(1) << m.SegShift()
	nbxseg := nbseg * uint64(m.SegtabSize())
	if got, exp := uint64(1)<<m.XSegShift(), nbxseg; got != exp {
		t.Fatalf("expected NBXSEG (%d) to equal 1<<XSegShift (%d)", nbxseg, got)
	}
}

func TestInvalidSegtabSentinelIsDistinct(t *testing.T) {
	if (Amd64{}).InvalidSegtab() == 0 {
		t.Fatal("expected InvalidSegtab sentinel to be non-zero")
	}
}
