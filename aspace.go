package pecore

import "fmt"

const pageSize = 0x1000
const pageShift = 12
const pageMask = pageSize - 1

func pageOf(rva RVA) uint64 {
	return uint64(rva) >> pageShift
}

func pageOffset(rva RVA) uint64 {
	return uint64(rva) & pageMask
}

// AddressSpace is a sparse, paged map from RVA to byte: a vector of page
// slots indexed by rva>>12, each slot either absent or a full 4 KiB page.
// Capacity is fixed at construction; mapping a page index beyond capacity
// fails rather than growing the space.
type AddressSpace struct {
	pages [][]byte // nil entry means unmapped
}

// NewAddressSpace allocates an address space with room for cap bytes,
// rounded up to a whole number of pages.
func NewAddressSpace(cap uint64) *AddressSpace {
	numPages := (cap + pageSize - 1) / pageSize
	return &AddressSpace{pages: make([][]byte, numPages)}
}

// Map installs bytes at rva. rva must be page-aligned and len(bytes) a
// multiple of the page size.
func (a *AddressSpace) Map(rva RVA, bytes []byte) error {
	if pageOffset(rva) != 0 {
		return fmt.Errorf("aspace: map: rva %s is not page-aligned: %w", rva, ErrInvalidAddress)
	}
	if len(bytes)%pageSize != 0 {
		return fmt.Errorf("aspace: map: length %d is not a page multiple: %w", len(bytes), ErrInvalidAddress)
	}
	numPages := len(bytes) / pageSize
	startPage := pageOf(rva)
	if startPage+uint64(numPages) > uint64(len(a.pages)) {
		return fmt.Errorf("aspace: map: rva %s exceeds capacity: %w", rva, ErrInvalidAddress)
	}
	for i := 0; i < numPages; i++ {
		page := make([]byte, pageSize)
		copy(page, bytes[i*pageSize:(i+1)*pageSize])
		a.pages[startPage+uint64(i)] = page
	}
	return nil
}

// MapEmpty installs size bytes of zeroed pages at rva, subject to the same
// alignment rules as Map.
func (a *AddressSpace) MapEmpty(rva RVA, size uint64) error {
	if pageOffset(rva) != 0 {
		return fmt.Errorf("aspace: map_empty: rva %s is not page-aligned: %w", rva, ErrInvalidAddress)
	}
	if size%pageSize != 0 {
		return fmt.Errorf("aspace: map_empty: size %d is not a page multiple: %w", size, ErrInvalidAddress)
	}
	numPages := size / pageSize
	startPage := pageOf(rva)
	if startPage+numPages > uint64(len(a.pages)) {
		return fmt.Errorf("aspace: map_empty: rva %s exceeds capacity: %w", rva, ErrInvalidAddress)
	}
	for i := uint64(0); i < numPages; i++ {
		a.pages[startPage+i] = make([]byte, pageSize)
	}
	return nil
}

// Probe reports whether rva falls on a mapped page. The corrected capacity
// check is >=, not the off-by-one > the source used.
func (a *AddressSpace) Probe(rva RVA) bool {
	p := pageOf(rva)
	if p >= uint64(len(a.pages)) {
		return false
	}
	return a.pages[p] != nil
}

// ReadInto fills out with the bytes at [rva, rva+len(out)). It succeeds iff
// every page touched by that range is mapped; on failure out may be
// partially written.
func (a *AddressSpace) ReadInto(rva RVA, out []byte) error {
	if len(out) == 0 {
		return nil
	}
	remaining := out
	cur := rva
	for len(remaining) > 0 {
		p := pageOf(cur)
		if p >= uint64(len(a.pages)) || a.pages[p] == nil {
			return fmt.Errorf("aspace: read_into: %s not mapped: %w", cur, ErrInvalidAddress)
		}
		off := pageOffset(cur)
		n := pageSize - off
		if uint64(len(remaining)) < n {
			n = uint64(len(remaining))
		}
		copy(remaining[:n], a.pages[p][off:off+n])
		remaining = remaining[n:]
		cur = cur.Add(n)
	}
	return nil
}

// Slice returns a freshly allocated copy of the bytes in [start, end),
// concatenated in order across page boundaries. The page after end need
// not be mapped when end falls exactly on a page boundary.
func (a *AddressSpace) Slice(start, end RVA) ([]byte, error) {
	if end < start {
		return nil, fmt.Errorf("aspace: slice: end %s precedes start %s: %w", end, start, ErrInvalidAddress)
	}
	length := uint64(end) - uint64(start)
	out := make([]byte, length)
	if err := a.ReadInto(start, out); err != nil {
		return nil, fmt.Errorf("aspace: slice: %w", err)
	}
	return out, nil
}
