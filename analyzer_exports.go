package pecore

import "github.com/xyproto/pecore/internal/peformat"

// ExportsAnalyzer seeds the disassembler from the PE export directory:
// every named export whose RVA lands in an executable section becomes a
// symbol and a function entry.
type ExportsAnalyzer struct{}

// NewExportsAnalyzer returns the PE export-table seed analyzer.
func NewExportsAnalyzer() *ExportsAnalyzer {
	return &ExportsAnalyzer{}
}

func (a *ExportsAnalyzer) Name() string {
	return "PE exports analyzer"
}

func (a *ExportsAnalyzer) Analyze(ws *Workspace) error {
	f, err := peformat.Parse(ws.RawBytes())
	if err != nil {
		return nil
	}

	exports, err := f.Exports()
	if err != nil {
		// no export directory is common and not an error worth
		// surfacing; other parse failures are reported as diagnostics.
		if f.Optional.DataDirectory[peformat.DirExport].Size != 0 {
			ws.addDiagnostic(LevelWarning, a.Name(), 0, err.Error())
		}
		return nil
	}

	for _, fn := range exports.Functions {
		rva := RVA(fn.RVA)
		if !ws.isExecutableRVA(rva) {
			continue
		}
		if err := ws.MakeSymbol(rva, fn.Name); err != nil {
			ws.addDiagnostic(LevelWarning, a.Name(), rva, err.Error())
			continue
		}
		ws.MakeFunction(rva)
	}

	ws.runDisassembler()
	return nil
}
