package pecore

import (
	"fmt"

	"github.com/xyproto/pecore/internal/peformat"
)

// RelocationType enumerates the IMAGE_REL_BASED_* relocation type codes
// found in a PE base-relocation block. Only HighLow and Dir64 are
// interpreted as pointer fixups (§4.5); the rest are recognized, named,
// and reported as a diagnostic rather than erroring.
type RelocationType int

const (
	RelocAbsolute RelocationType = iota
	RelocHigh
	RelocLow
	RelocHighLow
	RelocHighAdj
	RelocArch1
	RelocReserved
	RelocArch2
	RelocRiscVLow12S
	RelocMIPSJmpAddr16
	RelocDir64
	RelocUnknown
)

func (t RelocationType) String() string {
	switch t {
	case RelocAbsolute:
		return "IMAGE_REL_BASED_ABSOLUTE"
	case RelocHigh:
		return "IMAGE_REL_BASED_HIGH"
	case RelocLow:
		return "IMAGE_REL_BASED_LOW"
	case RelocHighLow:
		return "IMAGE_REL_BASED_HIGHLOW"
	case RelocHighAdj:
		return "IMAGE_REL_BASED_HIGHADJ"
	case RelocArch1:
		return "IMAGE_REL_ARCH1"
	case RelocReserved:
		return "IMAGE_REL_RESERVED"
	case RelocArch2:
		return "IMAGE_REL_ARCH2"
	case RelocRiscVLow12S:
		return "IMAGE_REL_BASED_RISCV_LOW12S"
	case RelocMIPSJmpAddr16:
		return "IMAGE_REL_BASED_MIPS_JMPADDR16"
	case RelocDir64:
		return "IMAGE_REL_BASED_DIR64"
	default:
		return "IMAGE_REL_UNKNOWN"
	}
}

func parseRelocType(code uint16) RelocationType {
	switch code {
	case 0:
		return RelocAbsolute
	case 1:
		return RelocHigh
	case 2:
		return RelocLow
	case 3:
		return RelocHighLow
	case 4:
		return RelocHighAdj
	case 5:
		return RelocArch1
	case 6:
		return RelocReserved
	case 7:
		return RelocArch2
	case 8:
		return RelocRiscVLow12S
	case 9:
		return RelocMIPSJmpAddr16
	case 10:
		return RelocDir64
	default:
		return RelocUnknown
	}
}

// Reloc is one resolved relocation: the fixed-up site and its type.
type Reloc struct {
	Type   RelocationType
	Offset RVA
}

// RelocsAnalyzer scans the .reloc directory for pointers that fix up
// addresses landing in executable sections, and treats those as code.
type RelocsAnalyzer struct{}

// NewRelocsAnalyzer returns the base-relocation seed analyzer.
func NewRelocsAnalyzer() *RelocsAnalyzer {
	return &RelocsAnalyzer{}
}

func (a *RelocsAnalyzer) Name() string {
	return "PE relocation analyzer"
}

func getRelocs(ws *Workspace) ([]Reloc, error) {
	f, err := peformat.Parse(ws.RawBytes())
	if err != nil {
		return nil, nil
	}

	blocks, err := f.BaseRelocations()
	if err != nil || len(blocks) == 0 {
		return nil, nil
	}

	var out []Reloc
	for _, block := range blocks {
		for _, entry := range block.Entries {
			code := entry >> 12
			offset := entry & 0x0FFF
			r := Reloc{
				Type:   parseRelocType(code),
				Offset: RVA(block.PageRVA).Add(uint64(offset)),
			}
			if !ws.Probe(r.Offset, 4, PermR) {
				break
			}
			out = append(out, r)
		}
	}
	return out, nil
}

// isInInsn walks backward from rva looking for an instruction whose
// [start, start+length) covers rva. The original search computed
// start-0x10 as an unsigned subtraction with no underflow check; this
// implementation clamps the window to the owning section's start instead.
func isInInsn(ws *Workspace, rva RVA) bool {
	sectionStart := RVA(0)
	if sec, ok := ws.sectionContaining(rva); ok {
		sectionStart = sec.Addr
	}

	windowStart := rva.Sub(0x10)
	if windowStart < sectionStart {
		windowStart = sectionStart
	}

	for i := uint64(rva); i > uint64(windowStart); i-- {
		cur := RVA(i - 1)
		meta, ok := ws.flow.Get(cur)
		if !ok || !meta.IsInsn {
			continue
		}
		if cur.Add(uint64(meta.InsnLength)) > rva {
			return true
		}
	}
	return false
}

func isPtr(ws *Workspace, rva RVA) bool {
	ptr, err := ws.ReadVA(rva)
	if err != nil {
		return false
	}
	target, ok := ws.RVA(ptr)
	if !ok {
		return false
	}
	return ws.Probe(target, 1, PermR)
}

func isZero(ws *Workspace, rva RVA) bool {
	v, err := ws.ReadU32(rva)
	if err != nil {
		return false
	}
	return v == 0
}

func (a *RelocsAnalyzer) Analyze(ws *Workspace) error {
	relocs, err := getRelocs(ws)
	if err != nil {
		return err
	}

	var supported []Reloc
	for _, r := range relocs {
		switch r.Type {
		case RelocHighLow, RelocDir64:
			supported = append(supported, r)
		default:
			ws.addDiagnostic(LevelWarning, a.Name(), r.Offset,
				fmt.Sprintf("ignoring relocation with unsupported type: %s", r.Type))
		}
	}

	targets := make(map[RVA]bool)
	for _, r := range supported {
		ptr, err := ws.ReadVA(r.Offset)
		if err != nil {
			ws.addDiagnostic(LevelWarning, a.Name(), r.Offset, "reloc fixes up an invalid pointer")
			continue
		}
		target, ok := ws.RVA(ptr)
		if !ok {
			ws.addDiagnostic(LevelWarning, a.Name(), r.Offset, "reloc fixes up a pointer to unmapped data")
			continue
		}
		targets[target] = true
	}

	for rva := range targets {
		if !ws.isExecutableRVA(rva) {
			continue
		}
		if isInInsn(ws, rva) {
			continue
		}
		if isPtr(ws, rva) {
			continue
		}
		if isZero(ws, rva) {
			continue
		}
		ws.MakeInsn(rva)
		ws.runDisassembler()
	}

	return nil
}
