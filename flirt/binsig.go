package flirt

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// sigMagic is the fixed 6-byte header IDA .sig files begin with.
var sigMagic = [6]byte{'I', 'D', 'A', 'S', 'G', 'N'}

// ParseSig decodes a .sig binary signature file (§4.6). The binary format
// is a tree of nodes sharing common prefix bytes, terminating in leaves
// that carry one or more logical signatures; this decoder walks that tree
// and flattens it back into the same Signature records ParsePat produces.
func ParseSig(r io.Reader) ([]*Signature, error) {
	br := bufio.NewReader(r)

	var magic [6]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("flirt: sig: header: %w", err)
	}
	if magic != sigMagic {
		return nil, fmt.Errorf("flirt: sig: bad magic %q", magic)
	}

	if _, err := readU8(br); err != nil { // version
		return nil, fmt.Errorf("flirt: sig: version: %w", err)
	}
	if _, err := readU8(br); err != nil { // arch
		return nil, fmt.Errorf("flirt: sig: arch: %w", err)
	}
	if _, err := readU32(br); err != nil { // file_types
		return nil, fmt.Errorf("flirt: sig: file_types: %w", err)
	}
	if _, err := readU16(br); err != nil { // os_types
		return nil, fmt.Errorf("flirt: sig: os_types: %w", err)
	}
	if _, err := readU16(br); err != nil { // app_types
		return nil, fmt.Errorf("flirt: sig: app_types: %w", err)
	}
	if _, err := readU8(br); err != nil { // features
		return nil, fmt.Errorf("flirt: sig: features: %w", err)
	}

	nModules, err := readVarInt(br)
	if err != nil {
		return nil, fmt.Errorf("flirt: sig: n_modules: %w", err)
	}

	var out []*Signature
	for i := uint64(0); i < nModules; i++ {
		sigs, err := readSigNode(br, nil)
		if err != nil {
			return nil, fmt.Errorf("flirt: sig: module %d: %w", i, err)
		}
		out = append(out, sigs...)
	}
	return out, nil
}

// readSigNode reads one tree node. A node is either a branch (more prefix
// bytes, possibly with child nodes) or a leaf (the bytes collected so far
// form a complete prefix and the node carries one or more signatures). The
// low bit of the node's tag byte distinguishes the two; the remaining bits
// hold the count of children/signatures that follow.
func readSigNode(r *bufio.Reader, prefix []PrefixSymbol) ([]*Signature, error) {
	tag, err := readU8(r)
	if err != nil {
		return nil, err
	}
	isLeaf := tag&0x01 != 0
	count := int(tag >> 1)

	segLen, err := readU8(r)
	if err != nil {
		return nil, err
	}
	seg := make([]PrefixSymbol, 0, segLen)
	for i := 0; i < int(segLen); i++ {
		b, err := readU8(r)
		if err != nil {
			return nil, err
		}
		if b == 0xFF {
			seg = append(seg, PrefixSymbol{Wildcard: true})
			continue
		}
		seg = append(seg, PrefixSymbol{Byte: b})
	}
	full := append(append([]PrefixSymbol{}, prefix...), seg...)

	if isLeaf {
		var out []*Signature
		for i := 0; i < count; i++ {
			sig, err := readLeafSignature(r, full)
			if err != nil {
				return nil, err
			}
			out = append(out, sig)
		}
		return out, nil
	}

	var out []*Signature
	for i := 0; i < count; i++ {
		child, err := readSigNode(r, full)
		if err != nil {
			return nil, err
		}
		out = append(out, child...)
	}
	return out, nil
}

func readLeafSignature(r *bufio.Reader, prefix []PrefixSymbol) (*Signature, error) {
	crcLen, err := readU8(r)
	if err != nil {
		return nil, err
	}
	crc, err := readU16(r)
	if err != nil {
		return nil, err
	}
	fnLen, err := readVarInt(r)
	if err != nil {
		return nil, err
	}

	sig := &Signature{
		Prefix:         append([]PrefixSymbol{}, prefix...),
		CRCLength:      crcLen,
		CRC16:          crc,
		FunctionLength: uint32(fnLen),
	}

	nNames, err := readU8(r)
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(nNames); i++ {
		kindByte, err := readU8(r)
		if err != nil {
			return nil, err
		}
		offset, err := readU16(r)
		if err != nil {
			return nil, err
		}
		name, err := readPascalString(r)
		if err != nil {
			return nil, err
		}
		sig.Names = append(sig.Names, Symbol{
			Kind:   SymbolKind(kindByte),
			Offset: offset,
			Name:   name,
		})
	}

	tailLen, err := readU8(r)
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(tailLen); i++ {
		b, err := readU8(r)
		if err != nil {
			return nil, err
		}
		if b == 0xFF {
			sig.Tail = append(sig.Tail, PrefixSymbol{Wildcard: true})
			continue
		}
		sig.Tail = append(sig.Tail, PrefixSymbol{Byte: b})
	}

	return sig, nil
}

func readU8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func readU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// readVarInt reads IDA's variable-length integer: a length-prefixed
// big-endian value, 1/2/4 bytes wide depending on the top bits of the
// first byte.
func readVarInt(r io.Reader) (uint64, error) {
	first, err := readU8(r)
	if err != nil {
		return 0, err
	}
	switch {
	case first&0x80 == 0:
		return uint64(first), nil
	case first&0xC0 == 0x80:
		second, err := readU8(r)
		if err != nil {
			return 0, err
		}
		return uint64(first&0x3F)<<8 | uint64(second), nil
	default:
		var rest [3]byte
		if _, err := io.ReadFull(r, rest[:]); err != nil {
			return 0, err
		}
		return uint64(first&0x3F)<<24 | uint64(rest[0])<<16 | uint64(rest[1])<<8 | uint64(rest[2]), nil
	}
}

func readPascalString(r io.Reader) (string, error) {
	n, err := readU8(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
