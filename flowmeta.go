package pecore

import "fmt"

// InsnMeta is the flow metadata recorded for an address that is the start
// of a decoded instruction.
type InsnMeta struct {
	IsInsn         bool
	InsnLength     int
	HasFallthrough bool
}

// FlowMetaStore is a sparse mapping from executable-region RVAs to their
// instruction metadata, populated exclusively by the disassembler.
type FlowMetaStore struct {
	meta map[RVA]InsnMeta
}

// NewFlowMetaStore returns an empty store.
func NewFlowMetaStore() *FlowMetaStore {
	return &FlowMetaStore{meta: make(map[RVA]InsnMeta)}
}

// Get returns the metadata recorded at rva, if any.
func (f *FlowMetaStore) Get(rva RVA) (InsnMeta, bool) {
	m, ok := f.meta[rva]
	return m, ok
}

// IsInsn reports whether rva is the start of a previously decoded
// instruction.
func (f *FlowMetaStore) IsInsn(rva RVA) bool {
	m, ok := f.meta[rva]
	return ok && m.IsInsn
}

// MarkInsn records that rva starts an instruction of the given length.
// Calling it again with the same length is a no-op; a different length at
// the same address is a programmer error (invariant violation) and panics,
// per §7's "conflicting sets are errors" / "terminate the process" policy.
func (f *FlowMetaStore) MarkInsn(rva RVA, length int, hasFallthrough bool) {
	existing, ok := f.meta[rva]
	if ok {
		if existing.InsnLength != length {
			panic(fmt.Sprintf("pecore: conflicting instruction length at %s: had %d, got %d", rva, existing.InsnLength, length))
		}
		return
	}
	f.meta[rva] = InsnMeta{IsInsn: true, InsnLength: length, HasFallthrough: hasFallthrough}
}
