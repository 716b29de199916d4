package pecore

// PointerScanAnalyzer scans read-only data sections for aligned
// machine-word values that resolve into executable sections and pass the
// same "not inside an instruction / not zero / not a pointer-to-pointer"
// filter as the relocation analyzer (§4.5).
type PointerScanAnalyzer struct{}

// NewPointerScanAnalyzer returns the data-section pointer-scan analyzer.
func NewPointerScanAnalyzer() *PointerScanAnalyzer {
	return &PointerScanAnalyzer{}
}

func (a *PointerScanAnalyzer) Name() string {
	return "pointer scan analyzer"
}

func (a *PointerScanAnalyzer) Analyze(ws *Workspace) error {
	wordSize := uint64(ws.arch.PointerSize())

	for _, sec := range ws.module.Sections {
		if sec.Perms.Intersects(PermX|PermW) || !sec.Perms.Intersects(PermR) {
			continue
		}

		for off := uint64(0); off+wordSize <= sec.Size; off += wordSize {
			rva := sec.Addr.Add(off)

			ptr, err := ws.ReadVA(rva)
			if err != nil {
				continue
			}
			target, ok := ws.RVA(ptr)
			if !ok {
				continue
			}
			if !ws.isExecutableRVA(target) {
				continue
			}
			if isInInsn(ws, target) {
				continue
			}
			if isPtr(ws, target) {
				continue
			}
			if isZero(ws, target) {
				continue
			}

			ws.MakeInsn(target)
			ws.runDisassembler()
		}
	}

	return nil
}
