package peformat

import (
	"bytes"
	"encoding/binary"
	"testing"
)

type optionalHeader32Fixture struct {
	Magic                   uint16
	MajorLinkerVersion      uint8
	MinorLinkerVersion      uint8
	SizeOfCode              uint32
	SizeOfInitializedData   uint32
	SizeOfUninitializedData uint32
	AddressOfEntryPoint     uint32
	BaseOfCode              uint32
	BaseOfData              uint32
	ImageBase               uint32
	SectionAlignment        uint32
	FileAlignment           uint32
	MajorOSVersion          uint16
	MinorOSVersion          uint16
	MajorImageVersion       uint16
	MinorImageVersion       uint16
	MajorSubsystemVersion   uint16
	MinorSubsystemVersion   uint16
	Win32VersionValue       uint32
	SizeOfImage             uint32
	SizeOfHeaders           uint32
	CheckSum                uint32
	Subsystem               uint16
	DllCharacteristics      uint16
	SizeOfStackReserve      uint32
	SizeOfStackCommit       uint32
	SizeOfHeapReserve       uint32
	SizeOfHeapCommit        uint32
	LoaderFlags             uint32
	NumberOfRvaAndSizes     uint32
	DataDirectory           [16]DataDirectory
}

// buildPE32 assembles a single-section PE32 image: DOS stub, COFF header,
// PE32 optional header with an export directory, and one .text section.
func buildPE32(t *testing.T, exportRVA, exportSize uint32, textRaw []byte) []byte {
	t.Helper()
	const peOffset = 0x80

	var buf bytes.Buffer
	buf.Write([]byte{'M', 'Z'})
	buf.Write(make([]byte, 0x3C-buf.Len()))
	binary.Write(&buf, binary.LittleEndian, uint32(peOffset))
	buf.Write(make([]byte, peOffset-buf.Len()))

	buf.Write([]byte{'P', 'E', 0, 0})
	binary.Write(&buf, binary.LittleEndian, COFFHeader{
		Machine:              0x14c,
		NumberOfSections:     1,
		SizeOfOptionalHeader: 224,
	})

	opt := optionalHeader32Fixture{
		Magic:               optHdrMagicPE32,
		AddressOfEntryPoint: 0x1000,
		ImageBase:           0x400000,
		NumberOfRvaAndSizes: 16,
	}
	opt.DataDirectory[DirExport] = DataDirectory{VirtualAddress: exportRVA, Size: exportSize}
	binary.Write(&buf, binary.LittleEndian, opt)

	headerEnd := buf.Len() + 40
	textOff := uint32(headerEnd)

	var sh SectionHeader
	copy(sh.Name[:], ".text")
	sh.VirtualAddress = 0x1000
	sh.VirtualSize = uint32(len(textRaw))
	sh.SizeOfRawData = uint32(len(textRaw))
	sh.PointerToRawData = textOff
	sh.Characteristics = SectionMemExecute | SectionMemRead
	binary.Write(&buf, binary.LittleEndian, sh)

	buf.Write(textRaw)
	return buf.Bytes()
}

func TestParsePE32Headers(t *testing.T) {
	image := buildPE32(t, 0, 0, []byte{0xC3})

	f, err := Parse(image)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if f.Optional.Is64() {
		t.Fatal("expected a PE32 (32-bit) image")
	}
	if f.Optional.AddressOfEntryPoint != 0x1000 {
		t.Fatalf("unexpected entry point: 0x%x", f.Optional.AddressOfEntryPoint)
	}
	if f.Optional.ImageBase != 0x400000 {
		t.Fatalf("unexpected image base: 0x%x", f.Optional.ImageBase)
	}
	if len(f.Sections) != 1 || f.Sections[0].GetName() != ".text" {
		t.Fatalf("unexpected sections: %+v", f.Sections)
	}
}

func TestParseRejectsBadDOSMagic(t *testing.T) {
	if _, err := Parse([]byte{0, 0, 0, 0}); err == nil {
		t.Fatal("expected an error for a bad DOS magic")
	}
}

func TestRVAToFileOffset(t *testing.T) {
	image := buildPE32(t, 0, 0, []byte{0xC3, 0x90, 0x90})
	f, err := Parse(image)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	off, ok := f.RVAToFileOffset(0x1001)
	if !ok {
		t.Fatal("expected RVA 0x1001 to resolve")
	}
	if image[off] != 0x90 {
		t.Fatalf("unexpected byte at resolved offset: 0x%02x", image[off])
	}
	if _, ok := f.RVAToFileOffset(0x9000); ok {
		t.Fatal("did not expect an RVA outside any section to resolve")
	}
}

func TestExportsNoDirectory(t *testing.T) {
	image := buildPE32(t, 0, 0, []byte{0xC3})
	f, err := Parse(image)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, err := f.Exports(); err == nil {
		t.Fatal("expected an error when there is no export directory")
	}
}

func TestBaseRelocationsEmptyWhenNoDirectory(t *testing.T) {
	image := buildPE32(t, 0, 0, []byte{0xC3})
	f, err := Parse(image)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	blocks, err := f.BaseRelocations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blocks) != 0 {
		t.Fatalf("expected no relocation blocks, got %+v", blocks)
	}
}

func TestSectionHeaderGetNameTrimsPadding(t *testing.T) {
	var sh SectionHeader
	copy(sh.Name[:], ".text")
	if got := sh.GetName(); got != ".text" {
		t.Fatalf("expected .text, got %q", got)
	}
}
