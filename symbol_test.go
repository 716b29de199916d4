package pecore

import "testing"

func TestSymbolTableSetAndGet(t *testing.T) {
	s := NewSymbolTable()
	if err := s.Set(0x10, "entry"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	name, ok := s.Get(0x10)
	if !ok || name != "entry" {
		t.Fatalf("unexpected get result: %q, %v", name, ok)
	}
}

func TestSymbolTableIdempotentSameName(t *testing.T) {
	s := NewSymbolTable()
	if err := s.Set(0x10, "entry"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := s.Set(0x10, "entry"); err != nil {
		t.Fatalf("re-assigning the same name should not error: %v", err)
	}
}

func TestSymbolTableRejectsRename(t *testing.T) {
	s := NewSymbolTable()
	if err := s.Set(0x10, "entry"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := s.Set(0x10, "other"); err == nil {
		t.Fatal("expected error renaming an already-named rva")
	}
}
