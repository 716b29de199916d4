package pecore

import "testing"

func TestFlowMetaStoreMarkAndGet(t *testing.T) {
	f := NewFlowMetaStore()
	if f.IsInsn(0x10) {
		t.Fatal("unmarked rva should not be an insn")
	}

	f.MarkInsn(0x10, 5, true)
	if !f.IsInsn(0x10) {
		t.Fatal("expected 0x10 to be marked as an insn")
	}

	meta, ok := f.Get(0x10)
	if !ok || meta.InsnLength != 5 || !meta.HasFallthrough {
		t.Fatalf("unexpected meta: %+v ok=%v", meta, ok)
	}
}

func TestFlowMetaStoreIdempotentMark(t *testing.T) {
	f := NewFlowMetaStore()
	f.MarkInsn(0x10, 5, true)
	f.MarkInsn(0x10, 5, true) // same length again: no-op, must not panic
}

func TestFlowMetaStoreConflictingLengthPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on conflicting instruction length")
		}
	}()
	f := NewFlowMetaStore()
	f.MarkInsn(0x10, 5, true)
	f.MarkInsn(0x10, 6, true)
}
