package pecore

// EntryPointAnalyzer seeds the disassembler from the module's entry point.
type EntryPointAnalyzer struct {
	entry RVA
}

// NewEntryPointAnalyzer returns an analyzer that seeds rva as the entry
// point. Loaders call this with whatever RVA they consider the start of
// execution (the PE optional header's AddressOfEntryPoint, or 0 for flat
// shellcode).
func NewEntryPointAnalyzer(rva RVA) *EntryPointAnalyzer {
	return &EntryPointAnalyzer{entry: rva}
}

func (a *EntryPointAnalyzer) Name() string {
	return "entry point analyzer"
}

func (a *EntryPointAnalyzer) Analyze(ws *Workspace) error {
	if err := ws.MakeSymbol(a.entry, "entry"); err != nil {
		return err
	}
	ws.MakeFunction(a.entry)
	ws.runDisassembler()
	return nil
}
