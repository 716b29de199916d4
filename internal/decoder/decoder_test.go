package decoder

import (
	"testing"

	"golang.org/x/arch/x86/x86asm"
)

func TestDecodeRET(t *testing.T) {
	inst, err := Decode([]byte{0xC3}, Mode32)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if inst.Op != x86asm.RET || inst.Length != 1 {
		t.Fatalf("unexpected instruction: %+v", inst)
	}
	if !IsReturn(inst.Op) {
		t.Fatal("expected RET to be classified as a return")
	}

	var sawSP bool
	for _, op := range inst.Operands {
		if op.Implicit && op.Kind == OperandReg && op.Reg == x86asm.ESP {
			sawSP = true
		}
	}
	if !sawSP {
		t.Fatal("expected an implicit ESP operand on RET")
	}
}

func TestDecodeShortJump(t *testing.T) {
	// EB FE: JMP $ (relative short jump by -2, infinite loop)
	inst, err := Decode([]byte{0xEB, 0xFE}, Mode32)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if inst.Length != 2 || !IsUnconditionalJump(inst.Op) {
		t.Fatalf("unexpected instruction: %+v", inst)
	}
	target, ok := inst.RelTarget(2)
	if !ok || target != 0 {
		t.Fatalf("expected resolved target 0, got %d ok=%v", target, ok)
	}
	if inst.HasUnresolvedTarget() {
		t.Fatal("expected a relative jump to have a resolved target")
	}
}

func TestDecodeConditionalJump(t *testing.T) {
	// 75 02: JNZ +2
	inst, err := Decode([]byte{0x75, 0x02}, Mode32)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !IsConditionalJump(inst.Op) {
		t.Fatalf("expected a conditional jump, got %v", inst.Op)
	}
	target, ok := inst.RelTarget(2)
	if !ok || target != 4 {
		t.Fatalf("expected resolved target 4, got %d ok=%v", target, ok)
	}
}

func TestDecodeCall(t *testing.T) {
	// E8 00 00 00 00: CALL +0
	inst, err := Decode([]byte{0xE8, 0x00, 0x00, 0x00, 0x00}, Mode32)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !IsCall(inst.Op) || inst.Length != 5 {
		t.Fatalf("unexpected instruction: %+v", inst)
	}
	target, ok := inst.RelTarget(5)
	if !ok || target != 5 {
		t.Fatalf("expected resolved target 5, got %d ok=%v", target, ok)
	}
}

func TestDecodeConditionalMove(t *testing.T) {
	// 0F 44 C1: CMOVE EAX, ECX
	inst, err := Decode([]byte{0x0F, 0x44, 0xC1}, Mode32)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !IsConditionalMove(inst.Op) {
		t.Fatalf("expected a conditional move, got %v", inst.Op)
	}
}

func TestDecodeIndirectCallHasUnresolvedTarget(t *testing.T) {
	// FF D0: CALL EAX
	inst, err := Decode([]byte{0xFF, 0xD0}, Mode32)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !IsCall(inst.Op) {
		t.Fatalf("expected a call, got %v", inst.Op)
	}
	if !inst.HasUnresolvedTarget() {
		t.Fatal("expected an indirect call to have no resolved relative target")
	}
	if _, ok := inst.RelTarget(2); ok {
		t.Fatal("did not expect a relative target on an indirect call")
	}
}

func TestDecodeShiftByCLSynthesizesImplicitOperand(t *testing.T) {
	// D3 E0: SHL EAX, CL
	inst, err := Decode([]byte{0xD3, 0xE0}, Mode32)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	var sawCL bool
	for _, op := range inst.Operands {
		if op.Implicit && op.Kind == OperandReg && op.Reg == x86asm.CL {
			sawCL = true
		}
	}
	if !sawCL {
		t.Fatal("expected an implicit CL operand on SHL reg, CL")
	}
}

func TestDecodeMulSynthesizesAccumulatorPair(t *testing.T) {
	// F7 E1: MUL ECX
	inst, err := Decode([]byte{0xF7, 0xE1}, Mode32)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	var sawEAX, sawEDX bool
	for _, op := range inst.Operands {
		if op.Implicit && op.Kind == OperandReg {
			switch op.Reg {
			case x86asm.EAX:
				sawEAX = true
			case x86asm.EDX:
				sawEDX = true
			}
		}
	}
	if !sawEAX || !sawEDX {
		t.Fatalf("expected implicit EAX/EDX operands on MUL, got %+v", inst.Operands)
	}
}

func TestDecodeInvalidBytes(t *testing.T) {
	if _, err := Decode([]byte{0x0F, 0xFF}, Mode32); err == nil {
		t.Fatal("expected an error decoding an invalid opcode")
	}
}

func TestDecodeMode64WidensImplicitStackPointer(t *testing.T) {
	inst, err := Decode([]byte{0xC3}, Mode64)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	var sawRSP bool
	for _, op := range inst.Operands {
		if op.Implicit && op.Kind == OperandReg && op.Reg == x86asm.RSP {
			sawRSP = true
		}
	}
	if !sawRSP {
		t.Fatal("expected RSP (not ESP) as the implicit stack operand in 64-bit mode")
	}
}
