package pecore

import "testing"

func TestXrefGraphAddAndLookup(t *testing.T) {
	g := NewXrefGraph()
	x := Xref{Src: 0x10, Dst: 0x20, Kind: XrefCall}
	g.Add(x)

	from := g.From(0x10)
	if len(from) != 1 || from[0] != x {
		t.Fatalf("unexpected from-list: %+v", from)
	}
	to := g.To(0x20)
	if len(to) != 1 || to[0] != x {
		t.Fatalf("unexpected to-list: %+v", to)
	}
}

func TestXrefGraphAddIsIdempotent(t *testing.T) {
	g := NewXrefGraph()
	x := Xref{Src: 0x10, Dst: 0x20, Kind: XrefFallthrough}
	g.Add(x)
	g.Add(x)
	if len(g.From(0x10)) != 1 {
		t.Fatalf("expected a single entry after duplicate add, got %d", len(g.From(0x10)))
	}
}

func TestXrefGraphSymmetry(t *testing.T) {
	g := NewXrefGraph()
	edges := []Xref{
		{Src: 1, Dst: 2, Kind: XrefFallthrough},
		{Src: 2, Dst: 3, Kind: XrefUnconditionalJump},
		{Src: 1, Dst: 5, Kind: XrefCall},
	}
	for _, e := range edges {
		g.Add(e)
	}
	for _, e := range edges {
		found := false
		for _, x := range g.To(e.Dst) {
			if x == e {
				found = true
			}
		}
		if !found {
			t.Fatalf("xref %+v present in From but missing from To", e)
		}
	}
}
