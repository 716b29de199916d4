package pecore

import (
	"errors"
	"testing"
)

func TestShellcodeLoaderTastesAnyNonEmptyBuffer(t *testing.T) {
	l := NewShellcodeLoader(ArchX32)
	if l.Taste(nil, []byte{0x90}) == false {
		t.Fatal("expected shellcode loader to taste a non-empty buffer")
	}
	if l.Taste(nil, nil) {
		t.Fatal("expected shellcode loader to reject an empty buffer")
	}
}

func TestShellcodeLoaderLoad(t *testing.T) {
	l := NewShellcodeLoader(ArchX32)
	module, analyzers, err := l.Load(nil, []byte{0xEB, 0xFE})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(module.Sections) != 1 || module.Sections[0].Name != "raw" {
		t.Fatalf("unexpected sections: %+v", module.Sections)
	}
	if module.Sections[0].Perms != PermRWX {
		t.Fatalf("expected RWX section, got %s", module.Sections[0].Perms)
	}
	if len(analyzers) != 1 {
		t.Fatalf("expected a single seed analyzer, got %d", len(analyzers))
	}
}

func TestLoadReturnsNotSupportedForEmptyBuffer(t *testing.T) {
	_, _, _, err := Load(DefaultConfig(), nil)
	if !errors.Is(err, ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported for an unloadable buffer, got %v", err)
	}
}

func TestDefaultLoadersOrder(t *testing.T) {
	loaders := DefaultLoaders()
	if len(loaders) != 4 {
		t.Fatalf("expected 4 default loaders, got %d", len(loaders))
	}
	if loaders[0].Name() != "windows/x32/pe" {
		t.Fatalf("expected PE x32 loader first, got %s", loaders[0].Name())
	}
}

func TestSectionContainsAndEnd(t *testing.T) {
	s := Section{Addr: 0x1000, Size: 0x100}
	if !s.Contains(0x1000) || !s.Contains(0x10FF) {
		t.Fatal("expected section to contain its first and last byte")
	}
	if s.Contains(0x1100) {
		t.Fatal("did not expect section to contain byte one past its end")
	}
	if s.End() != 0x1100 {
		t.Fatalf("unexpected end: %s", s.End())
	}
}
