// Package flirt implements an IDA-compatible FLIRT signature parser and
// matcher: parsing produces a unified Signature record regardless of
// source format (.pat text or .sig binary), and matching runs a
// prefix-NFA filter followed by a CRC16 confirmation pass.
package flirt

import "fmt"

// SymbolKind classifies a named offset inside a signature.
type SymbolKind int

const (
	// SymbolPublic is a public (exported-style) name.
	SymbolPublic SymbolKind = iota
	// SymbolLocal is a local, non-exported name.
	SymbolLocal
	// SymbolReference is a reference to another signature's symbol,
	// used to resolve relocations inside the matched body.
	SymbolReference
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolPublic:
		return "public"
	case SymbolLocal:
		return "local"
	case SymbolReference:
		return "reference"
	default:
		return "unknown"
	}
}

// Symbol is one named offset within a signature's function body.
type Symbol struct {
	Kind   SymbolKind
	Offset uint16
	Name   string
}

// PrefixSymbol is one position in a signature's prefix pattern: either a
// concrete byte or a wildcard that matches any byte.
type PrefixSymbol struct {
	Wildcard bool
	Byte     byte
}

const maxPrefixLength = 32

// Signature is the unified record produced by both the .pat and .sig
// parsers (§3).
type Signature struct {
	Prefix         []PrefixSymbol
	CRCLength      uint8
	CRC16          uint16
	FunctionLength uint32
	Names          []Symbol
	Tail           []PrefixSymbol
}

// DisplayName returns the public name at offset 0, if any.
func (s *Signature) DisplayName() (string, bool) {
	for _, n := range s.Names {
		if n.Kind == SymbolPublic && n.Offset == 0 {
			return n.Name, true
		}
	}
	return "", false
}

// WildcardCount reports how many prefix positions are wildcards.
func (s *Signature) WildcardCount() int {
	n := 0
	for _, p := range s.Prefix {
		if p.Wildcard {
			n++
		}
	}
	return n
}

// matchLength is how many prefix bytes the NFA stage must consume for this
// signature: min(32, function_length), but never more than the parsed
// prefix actually holds.
func (s *Signature) matchLength() int {
	n := int(s.FunctionLength)
	if n > maxPrefixLength {
		n = maxPrefixLength
	}
	if n > len(s.Prefix) {
		n = len(s.Prefix)
	}
	return n
}

// eligible applies the post-parse filter from §4.7: signatures without a
// public offset-0 name, or too short relative to their wildcard count, are
// dropped before being handed to a matcher.
func (s *Signature) eligible() bool {
	if _, ok := s.DisplayName(); !ok {
		return false
	}
	fl := s.FunctionLength
	switch {
	case fl < 8:
		return false
	case fl < 16 && s.WildcardCount() > 0:
		return false
	case fl < 24 && s.WildcardCount() > 4:
		return false
	case fl < 32 && s.WildcardCount() > 16:
		return false
	}
	return true
}

func (s *Signature) String() string {
	name, _ := s.DisplayName()
	return fmt.Sprintf("flirt.Signature{%s, prefix=%d, fn_len=%d}", name, len(s.Prefix), s.FunctionLength)
}
