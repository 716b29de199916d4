package flirt

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParsePat reads the .pat text grammar (§4.6, §6) from r, producing one
// Signature per line up to the "---" sentinel.
func ParsePat(r io.Reader) ([]*Signature, error) {
	var out []*Signature

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "---" {
			break
		}

		sig, err := parsePatLine(line)
		if err != nil {
			return nil, fmt.Errorf("flirt: pat: line %d: %w", lineNo, err)
		}
		out = append(out, sig)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("flirt: pat: %w", err)
	}
	return out, nil
}

func parsePatLine(line string) (*Signature, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return nil, fmt.Errorf("too few fields")
	}

	prefix, err := parsePatternHex(fields[0])
	if err != nil {
		return nil, fmt.Errorf("prefix: %w", err)
	}
	if len(prefix) > maxPrefixLength {
		return nil, fmt.Errorf("prefix longer than %d bytes", maxPrefixLength)
	}

	crcLen, err := strconv.ParseUint(fields[1], 16, 8)
	if err != nil {
		return nil, fmt.Errorf("crc_length: %w", err)
	}
	crc16Val, err := strconv.ParseUint(fields[2], 16, 16)
	if err != nil {
		return nil, fmt.Errorf("crc16: %w", err)
	}
	fnLen, err := strconv.ParseUint(fields[3], 16, 32)
	if err != nil {
		return nil, fmt.Errorf("function_length: %w", err)
	}

	sig := &Signature{
		Prefix:         prefix,
		CRCLength:      uint8(crcLen),
		CRC16:          uint16(crc16Val),
		FunctionLength: uint32(fnLen),
	}

	rest := fields[4:]
	i := 0
	for i < len(rest) {
		tok := rest[i]
		if !strings.HasPrefix(tok, ":") && !strings.HasPrefix(tok, "^") {
			// remaining token(s) form the optional tail pattern
			break
		}
		sym, consumed, err := parsePatSymbol(rest[i:])
		if err != nil {
			return nil, fmt.Errorf("symbol: %w", err)
		}
		sig.Names = append(sig.Names, sym)
		i += consumed
	}

	if i < len(rest) {
		tail, err := parsePatternHex(rest[i])
		if err != nil {
			return nil, fmt.Errorf("tail: %w", err)
		}
		sig.Tail = tail
	}

	return sig, nil
}

// parsePatSymbol consumes one symbol token (and its following NAME token)
// from fields, returning how many fields it consumed.
func parsePatSymbol(fields []string) (Symbol, int, error) {
	tok := fields[0]
	if len(fields) < 2 {
		return Symbol{}, 0, fmt.Errorf("missing name for symbol %q", tok)
	}
	name := fields[1]

	var kind SymbolKind
	var offsetStr string
	switch {
	case strings.HasPrefix(tok, "^"):
		kind = SymbolReference
		offsetStr = tok[1:]
	case strings.HasSuffix(tok, "@"):
		kind = SymbolLocal
		offsetStr = strings.TrimSuffix(tok[1:], "@")
	case strings.HasPrefix(tok, ":"):
		kind = SymbolPublic
		offsetStr = tok[1:]
	default:
		return Symbol{}, 0, fmt.Errorf("malformed symbol token %q", tok)
	}

	offset, err := strconv.ParseUint(offsetStr, 16, 16)
	if err != nil {
		return Symbol{}, 0, fmt.Errorf("offset: %w", err)
	}

	return Symbol{Kind: kind, Offset: uint16(offset), Name: name}, 2, nil
}

// parsePatternHex decodes a prefix/tail field: pairs of hex digits, or ".."
// for a one-byte wildcard.
func parsePatternHex(field string) ([]PrefixSymbol, error) {
	if len(field)%2 != 0 {
		return nil, fmt.Errorf("odd length %q", field)
	}
	out := make([]PrefixSymbol, 0, len(field)/2)
	for i := 0; i < len(field); i += 2 {
		pair := field[i : i+2]
		if pair == ".." {
			out = append(out, PrefixSymbol{Wildcard: true})
			continue
		}
		v, err := strconv.ParseUint(pair, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("byte %q: %w", pair, err)
		}
		out = append(out, PrefixSymbol{Byte: byte(v)})
	}
	return out, nil
}
