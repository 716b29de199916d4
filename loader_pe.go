package pecore

import (
	"fmt"

	"github.com/xyproto/pecore/internal/peformat"
)

// PELoader loads a standard MS-PE image for a fixed pointer width,
// delegating header/section/directory parsing to internal/peformat.
type PELoader struct {
	arch Arch
}

// NewPELoader returns a PE loader for the given pointer width.
func NewPELoader(arch Arch) *PELoader {
	return &PELoader{arch: arch}
}

func (l *PELoader) Name() string {
	return "windows/" + l.arch.String() + "/pe"
}

func (l *PELoader) Arch() Arch {
	return l.arch
}

// Taste reports whether buf parses as a PE image whose optional-header
// bitness matches this loader's arch.
func (l *PELoader) Taste(cfg *Config, buf []byte) bool {
	f, err := peformat.Parse(buf)
	if err != nil {
		return false
	}
	is64 := f.Optional.Is64()
	return is64 == (l.arch == ArchX64)
}

func (l *PELoader) Load(cfg *Config, buf []byte) (*LoadedModule, []Analyzer, error) {
	f, err := peformat.Parse(buf)
	if err != nil {
		return nil, nil, fmt.Errorf("pe loader: %w", ErrParseError)
	}

	var maxEnd uint64
	for _, sh := range f.Sections {
		end := uint64(sh.VirtualAddress) + uint64(sh.VirtualSize)
		if end > maxEnd {
			maxEnd = end
		}
	}
	as := NewAddressSpace(alignUp(maxEnd, pageSize))

	sections := make([]Section, 0, len(f.Sections))
	for _, sh := range f.Sections {
		perms := sectionPerms(sh.Characteristics)
		sections = append(sections, Section{
			Addr:  RVA(sh.VirtualAddress),
			Size:  uint64(sh.VirtualSize),
			Perms: perms,
			Name:  sh.GetName(),
		})

		mappedSize := alignUp(uint64(sh.VirtualSize), pageSize)
		page := make([]byte, mappedSize)
		rawLen := uint64(sh.SizeOfRawData)
		if rawLen > uint64(sh.VirtualSize) {
			rawLen = uint64(sh.VirtualSize)
		}
		if uint64(sh.PointerToRawData)+rawLen <= uint64(len(buf)) {
			copy(page, buf[sh.PointerToRawData:uint64(sh.PointerToRawData)+rawLen])
		}

		startPageAligned := (uint64(sh.VirtualAddress) / pageSize) * pageSize
		if startPageAligned != uint64(sh.VirtualAddress) {
			return nil, nil, fmt.Errorf("pe loader: section %q not page-aligned: %w", sh.GetName(), ErrParseError)
		}
		if err := as.Map(RVA(sh.VirtualAddress), page); err != nil {
			return nil, nil, fmt.Errorf("pe loader: mapping section %q: %w", sh.GetName(), err)
		}
	}

	module := &LoadedModule{
		Base:     VA(f.Optional.ImageBase),
		Sections: sections,
		AS:       as,
	}

	analyzers := []Analyzer{
		NewEntryPointAnalyzer(RVA(f.Optional.AddressOfEntryPoint)),
		NewExportsAnalyzer(),
		NewRelocsAnalyzer(),
		NewPointerScanAnalyzer(),
	}

	return module, analyzers, nil
}

func sectionPerms(characteristics uint32) Permissions {
	var p Permissions
	if characteristics&peformat.SectionMemRead != 0 {
		p |= PermR
	}
	if characteristics&peformat.SectionMemWrite != 0 {
		p |= PermW
	}
	if characteristics&peformat.SectionMemExecute != 0 {
		p |= PermX
	}
	return p
}
