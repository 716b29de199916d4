package pecore

// BasicBlock is a maximal single-entry run of instructions recovered from
// already-decoded flow metadata and xrefs.
type BasicBlock struct {
	Addr         RVA
	Length       uint64
	Insns        []RVA
	Successors   []RVA
	Predecessors []RVA
}

// GetBasicBlocks recovers the basic-block partition reachable from entry,
// per §4.4: a block extends linearly while its current instruction has
// exactly one successor (fallthrough) and that fallthrough target has no
// non-fallthrough xrefs-to; it terminates on a non-fallthrough instruction,
// a branching instruction, or a branch-join point.
func (d *Disassembler) GetBasicBlocks(entry RVA) []BasicBlock {
	bbs := make(map[RVA]*BasicBlock)

	queue := []RVA{entry}
	for len(queue) > 0 {
		start := queue[0]
		queue = queue[1:]
		if _, ok := bbs[start]; ok {
			continue
		}

		bb := &BasicBlock{Addr: start}
		current := start

		for {
			meta, ok := d.flow.Get(current)
			if !ok || !meta.IsInsn {
				break
			}
			bb.Length += uint64(meta.InsnLength)
			bb.Insns = append(bb.Insns, current)

			hasFallthrough := false
			hasFlowFrom := false
			for _, x := range d.xrefs.From(current) {
				switch x.Kind {
				case XrefFallthrough:
					hasFallthrough = true
				case XrefUnconditionalJump, XrefConditionalJump, XrefConditionalMove:
					hasFlowFrom = true
					bb.Successors = append(bb.Successors, x.Dst)
				case XrefCall:
				}
			}

			next := current.Add(uint64(meta.InsnLength))

			if !hasFallthrough {
				break
			}
			if hasFlowFrom {
				bb.Successors = append(bb.Successors, next)
				break
			}

			hasFlowTo := false
			for _, x := range d.xrefs.To(next) {
				switch x.Kind {
				case XrefUnconditionalJump, XrefConditionalJump, XrefConditionalMove:
					hasFlowTo = true
				case XrefFallthrough, XrefCall:
				}
			}
			if hasFlowTo {
				bb.Successors = append(bb.Successors, next)
				break
			}

			current = next
		}

		for _, succ := range bb.Successors {
			queue = append(queue, succ)
		}
		bbs[bb.Addr] = bb
	}

	predecessors := make(map[RVA][]RVA)
	for _, bb := range bbs {
		for _, succ := range bb.Successors {
			predecessors[succ] = append(predecessors[succ], bb.Addr)
		}
	}
	for addr, preds := range predecessors {
		if bb, ok := bbs[addr]; ok {
			bb.Predecessors = append(bb.Predecessors, preds...)
		}
	}

	out := make([]BasicBlock, 0, len(bbs))
	for _, bb := range bbs {
		out = append(out, *bb)
	}
	return out
}
