package flirt

import "testing"

func sig(prefix string, fnLen uint32, name string) *Signature {
	syms, err := parsePatternHex(prefix)
	if err != nil {
		panic(err)
	}
	return &Signature{
		Prefix:         syms,
		FunctionLength: fnLen,
		Names:          []Symbol{{Kind: SymbolPublic, Offset: 0, Name: name}},
	}
}

func TestNFAMatchesExactBytes(t *testing.T) {
	s := sig("AABBCC", 3, "exact")
	n := NewNFA([]*Signature{s})

	matches := n.Match([]byte{0xAA, 0xBB, 0xCC})
	if len(matches) != 1 || matches[0] != s {
		t.Fatalf("expected exact match, got %+v", matches)
	}
}

func TestNFARejectsMismatch(t *testing.T) {
	s := sig("AABBCC", 3, "exact")
	n := NewNFA([]*Signature{s})

	matches := n.Match([]byte{0xAA, 0xBB, 0xCD})
	if len(matches) != 0 {
		t.Fatalf("expected no match, got %+v", matches)
	}
}

func TestNFAWildcardMatchesAnyByte(t *testing.T) {
	s := sig("AA..CC", 3, "wild")
	n := NewNFA([]*Signature{s})

	for _, b := range []byte{0x00, 0x42, 0xFF} {
		matches := n.Match([]byte{0xAA, b, 0xCC})
		if len(matches) != 1 {
			t.Fatalf("expected wildcard to match byte 0x%02x, got %+v", b, matches)
		}
	}
}

func TestNFASharedPrefixDistinguishesSignatures(t *testing.T) {
	a := sig("AABB11", 3, "a")
	b := sig("AABB22", 3, "b")
	n := NewNFA([]*Signature{a, b})

	matches := n.Match([]byte{0xAA, 0xBB, 0x11})
	if len(matches) != 1 || matches[0] != a {
		t.Fatalf("expected only signature a to match, got %+v", matches)
	}
}
