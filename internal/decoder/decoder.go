// Package decoder adapts golang.org/x/arch/x86/x86asm, the ecosystem x86
// instruction decoder, into the small instruction model the disassembler
// needs: a mnemonic, an encoded length, and an operand list with explicit
// and synthesized-implicit entries.
package decoder

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// OperandKind distinguishes the operand shapes the disassembler cares
// about; memory/immediate operands are opaque beyond their presence.
type OperandKind int

const (
	// OperandReg is a register operand.
	OperandReg OperandKind = iota
	// OperandMem is a memory operand.
	OperandMem
	// OperandImm is an immediate operand.
	OperandImm
	// OperandRel is a PC-relative branch displacement.
	OperandRel
)

// Operand is one argument to an instruction, explicit or synthesized.
type Operand struct {
	Kind     OperandKind
	Implicit bool
	Reg      x86asm.Reg
	Imm      int64
	Rel      int32
}

// Instruction is the decoded form of bytes at some address: enough to
// classify control flow and drive the disassembler, without exposing the
// full x86asm.Inst surface to callers.
type Instruction struct {
	Op       x86asm.Op
	Length   int
	Operands []Operand
	raw      x86asm.Inst
}

// Mode is the processor mode to decode under, matching x86asm.Decode's
// convention (16, 32, or 64).
type Mode int

const (
	Mode32 Mode = 32
	Mode64 Mode = 64
)

// Decode decodes the leading instruction in src under the given mode.
func Decode(src []byte, mode Mode) (Instruction, error) {
	inst, err := x86asm.Decode(src, int(mode))
	if err != nil {
		return Instruction{}, fmt.Errorf("decoder: %w", err)
	}

	out := Instruction{
		Op:     inst.Op,
		Length: inst.Len,
		raw:    inst,
	}

	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		out.Operands = append(out.Operands, convertArg(arg))
	}

	out.Operands = append(out.Operands, implicitOperands(inst)...)

	return out, nil
}

func convertArg(arg x86asm.Arg) Operand {
	switch v := arg.(type) {
	case x86asm.Reg:
		return Operand{Kind: OperandReg, Reg: v}
	case x86asm.Mem:
		return Operand{Kind: OperandMem}
	case x86asm.Imm:
		return Operand{Kind: OperandImm, Imm: int64(v)}
	case x86asm.Rel:
		return Operand{Kind: OperandRel, Rel: int32(v)}
	default:
		return Operand{Kind: OperandImm}
	}
}

// implicitOperands synthesizes the operands the ISA defines for an
// instruction class but x86asm does not surface explicitly: the
// shift-by-CL source, the stack pointer touched by PUSH/POP, and the
// fixed accumulator pair used by the wide MUL/DIV family.
func implicitOperands(inst x86asm.Inst) []Operand {
	var out []Operand
	switch inst.Op {
	case x86asm.SHL, x86asm.SHR, x86asm.SAR, x86asm.ROL, x86asm.ROR, x86asm.RCL, x86asm.RCR:
		if len(inst.Args) > 1 {
			if reg, ok := inst.Args[1].(x86asm.Reg); ok && reg == x86asm.CL {
				out = append(out, Operand{Kind: OperandReg, Reg: x86asm.CL, Implicit: true})
			}
		}
	case x86asm.PUSH, x86asm.POP, x86asm.CALL, x86asm.RET:
		sp := x86asm.ESP
		if inst.Mode == 64 {
			sp = x86asm.RSP
		}
		out = append(out, Operand{Kind: OperandReg, Reg: sp, Implicit: true})
	case x86asm.MUL, x86asm.IMUL, x86asm.DIV, x86asm.IDIV:
		ax, dx := x86asm.EAX, x86asm.EDX
		if inst.Mode == 64 {
			ax, dx = x86asm.RAX, x86asm.RDX
		}
		out = append(out,
			Operand{Kind: OperandReg, Reg: ax, Implicit: true},
			Operand{Kind: OperandReg, Reg: dx, Implicit: true},
		)
	}
	return out
}

// IsUnconditionalJump reports whether op is a non-far unconditional jump.
func IsUnconditionalJump(op x86asm.Op) bool {
	return op == x86asm.JMP
}

// IsConditionalJump reports whether op is a Jcc.
func IsConditionalJump(op x86asm.Op) bool {
	switch op {
	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE, x86asm.JECXZ,
		x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE, x86asm.JNO, x86asm.JNP,
		x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ, x86asm.JS:
		return true
	default:
		return false
	}
}

// IsConditionalMove reports whether op is a CMOVcc.
func IsConditionalMove(op x86asm.Op) bool {
	switch op {
	case x86asm.CMOVA, x86asm.CMOVAE, x86asm.CMOVB, x86asm.CMOVBE, x86asm.CMOVE, x86asm.CMOVG,
		x86asm.CMOVGE, x86asm.CMOVL, x86asm.CMOVLE, x86asm.CMOVNE, x86asm.CMOVNO, x86asm.CMOVNP,
		x86asm.CMOVNS, x86asm.CMOVO, x86asm.CMOVP, x86asm.CMOVS:
		return true
	default:
		return false
	}
}

// IsCall reports whether op is a near CALL.
func IsCall(op x86asm.Op) bool {
	return op == x86asm.CALL
}

// IsReturn reports whether op is a return (RET or an IRET variant). Indirect
// jumps are not classified here; they end up with no successors at the
// call site because their operand is not an OperandRel.
func IsReturn(op x86asm.Op) bool {
	switch op {
	case x86asm.RET, x86asm.IRET, x86asm.IRETD, x86asm.IRETQ:
		return true
	default:
		return false
	}
}

// RelTarget returns the resolved absolute target of a relative-branch
// instruction, computed against the instruction's end address per the
// decoder convention, and reports whether one was found.
func (inst Instruction) RelTarget(insnEnd uint64) (uint64, bool) {
	for _, op := range inst.Operands {
		if op.Kind == OperandRel {
			return uint64(int64(insnEnd) + int64(op.Rel)), true
		}
	}
	return 0, false
}

// HasUnresolvedTarget reports whether the instruction has no relative
// displacement operand. For a jump or call this means an indirect branch;
// it also holds for any non-branch instruction.
func (inst Instruction) HasUnresolvedTarget() bool {
	for _, op := range inst.Operands {
		if op.Kind == OperandRel {
			return false
		}
	}
	return true
}
