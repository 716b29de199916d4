package pecore

import (
	"github.com/xyproto/pecore/internal/decoder"
)

const maxInsnLength = 15

// Disassembler drives recursive-descent disassembly over an address space:
// callers seed it via MakeInsn/MakeFunction, and Drain walks the worklist
// to a fixed point, populating the flow metadata store and xref graph.
type Disassembler struct {
	as       *AddressSpace
	flow     *FlowMetaStore
	xrefs    *XrefGraph
	sections []Section
	arch     Arch

	worklist  []RVA
	queued    map[RVA]bool
	functions map[RVA]bool
}

// NewDisassembler builds a disassembler over the given module state.
func NewDisassembler(as *AddressSpace, flow *FlowMetaStore, xrefs *XrefGraph, sections []Section, arch Arch) *Disassembler {
	return &Disassembler{
		as:        as,
		flow:      flow,
		xrefs:     xrefs,
		sections:  sections,
		arch:      arch,
		queued:    make(map[RVA]bool),
		functions: make(map[RVA]bool),
	}
}

// Functions returns the set of RVAs marked as function entries, sorted is
// not guaranteed.
func (d *Disassembler) Functions() []RVA {
	out := make([]RVA, 0, len(d.functions))
	for rva := range d.functions {
		out = append(out, rva)
	}
	return out
}

// IsFunction reports whether rva was marked via MakeFunction.
func (d *Disassembler) IsFunction(rva RVA) bool {
	return d.functions[rva]
}

// MakeInsn enqueues rva for decoding.
func (d *Disassembler) MakeInsn(rva RVA) {
	d.enqueue(rva)
}

// MakeFunction marks rva as a function entry and enqueues it.
func (d *Disassembler) MakeFunction(rva RVA) {
	d.functions[rva] = true
	d.enqueue(rva)
}

func (d *Disassembler) enqueue(rva RVA) {
	if d.flow.IsInsn(rva) || d.queued[rva] {
		return
	}
	d.queued[rva] = true
	d.worklist = append(d.worklist, rva)
}

func (d *Disassembler) sectionFor(rva RVA) (Section, bool) {
	for _, s := range d.sections {
		if s.Contains(rva) {
			return s, true
		}
	}
	return Section{}, false
}

func (d *Disassembler) isExecutable(rva RVA) bool {
	s, ok := d.sectionFor(rva)
	return ok && s.IsExecutable() && d.as.Probe(rva)
}

func (d *Disassembler) mode() decoder.Mode {
	if d.arch == ArchX64 {
		return decoder.Mode64
	}
	return decoder.Mode32
}

// Drain processes the worklist to a fixed point.
func (d *Disassembler) Drain() {
	for len(d.worklist) > 0 {
		rva := d.worklist[0]
		d.worklist = d.worklist[1:]
		delete(d.queued, rva)
		d.step(rva)
	}
}

func (d *Disassembler) step(rva RVA) {
	if d.flow.IsInsn(rva) {
		return
	}

	buf := d.readInsnBytes(rva)
	if buf == nil {
		return
	}

	inst, err := decoder.Decode(buf, d.mode())
	if err != nil {
		// per §7: decode failure is not fatal, the address is left
		// unclassified and no metadata/xrefs are recorded.
		return
	}

	successors := d.classify(rva, inst)

	hasFallthrough := false
	for _, s := range successors {
		if s.Kind == XrefFallthrough {
			hasFallthrough = true
		}
	}
	d.flow.MarkInsn(rva, inst.Length, hasFallthrough)

	for _, x := range successors {
		d.xrefs.Add(x)
		if d.isExecutable(x.Dst) && !d.flow.IsInsn(x.Dst) {
			d.enqueue(x.Dst)
		}
	}
}

// readInsnBytes reads up to maxInsnLength bytes at rva, shrinking the
// request until something is mapped, per §4.4 step 2.
func (d *Disassembler) readInsnBytes(rva RVA) []byte {
	for n := maxInsnLength; n >= 1; n-- {
		buf := make([]byte, n)
		if err := d.as.ReadInto(rva, buf); err == nil {
			return buf
		}
	}
	return nil
}

// classify decodes the successor xrefs implied by inst at rva, per §4.4
// step 5. Every returned xref is recorded by step, but only targets inside
// a mapped executable section are enqueued; indirect branches with
// unresolved targets yield no xrefs.
func (d *Disassembler) classify(rva RVA, inst decoder.Instruction) []Xref {
	end := uint64(rva) + uint64(inst.Length)
	fallthroughRVA := RVA(end)

	switch {
	case decoder.IsUnconditionalJump(inst.Op):
		if target, ok := d.resolveTarget(inst, end); ok {
			return []Xref{{Src: rva, Dst: target, Kind: XrefUnconditionalJump}}
		}
		return nil

	case decoder.IsConditionalJump(inst.Op):
		var out []Xref
		if target, ok := d.resolveTarget(inst, end); ok {
			out = append(out, Xref{Src: rva, Dst: target, Kind: XrefConditionalJump})
		}
		out = append(out, Xref{Src: rva, Dst: fallthroughRVA, Kind: XrefFallthrough})
		return out

	case decoder.IsConditionalMove(inst.Op):
		var out []Xref
		if target, ok := d.resolveTarget(inst, end); ok {
			out = append(out, Xref{Src: rva, Dst: target, Kind: XrefConditionalMove})
		}
		out = append(out, Xref{Src: rva, Dst: fallthroughRVA, Kind: XrefFallthrough})
		return out

	case decoder.IsCall(inst.Op):
		var out []Xref
		if target, ok := d.resolveTarget(inst, end); ok {
			out = append(out, Xref{Src: rva, Dst: target, Kind: XrefCall})
		}
		out = append(out, Xref{Src: rva, Dst: fallthroughRVA, Kind: XrefFallthrough})
		return out

	case decoder.IsReturn(inst.Op):
		return nil

	default:
		return []Xref{{Src: rva, Dst: fallthroughRVA, Kind: XrefFallthrough}}
	}
}

func (d *Disassembler) resolveTarget(inst decoder.Instruction, insnEnd uint64) (RVA, bool) {
	target, ok := inst.RelTarget(insnEnd)
	if !ok {
		return 0, false
	}
	return RVA(target), true
}
