package pecore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/xyproto/pecore/flirt"
)

// FlirtAnalyzer assigns names to recovered functions by matching their
// bodies against FLIRT signatures loaded from the configured .pat/.sig
// directories.
type FlirtAnalyzer struct {
	matcher *flirt.Matcher
}

// NewFlirtAnalyzer loads every .pat and .sig file under cfg's FLIRT
// directories and builds a matcher over the combined, filtered signature
// set. Missing directories are not an error; they simply contribute no
// signatures.
func NewFlirtAnalyzer(cfg *Config) *FlirtAnalyzer {
	var sigs []*flirt.Signature
	sigs = append(sigs, loadFlirtDirectory(cfg.FlirtPatDir)...)
	sigs = append(sigs, loadFlirtDirectory(cfg.FlirtSigDir)...)
	return &FlirtAnalyzer{matcher: flirt.NewMatcher(sigs)}
}

func loadFlirtDirectory(dir string) []*flirt.Signature {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var out []*flirt.Signature
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pat":
			f, err := os.Open(path)
			if err != nil {
				continue
			}
			sigs, err := flirt.ParsePat(f)
			f.Close()
			if err != nil {
				continue
			}
			out = append(out, sigs...)
		case ".sig":
			f, err := os.Open(path)
			if err != nil {
				continue
			}
			sigs, err := flirt.ParseSig(f)
			f.Close()
			if err != nil {
				continue
			}
			out = append(out, sigs...)
		}
	}
	return out
}

func (a *FlirtAnalyzer) Name() string {
	return "FLIRT function signature analyzer"
}

func (a *FlirtAnalyzer) Analyze(ws *Workspace) error {
	const readLength = 0xFF

	for _, fva := range ws.Functions() {
		length := uint64(readLength)
		if sec, ok := ws.sectionContaining(fva); ok {
			if avail := uint64(sec.End()) - uint64(fva); avail < length {
				length = avail
			}
		}
		buf, err := ws.ReadBytes(fva, length)
		if err != nil {
			continue
		}

		result := a.matcher.Match(buf)
		if result.Ambiguous {
			ws.addDiagnostic(LevelWarning, a.Name(), fva, "ambiguous FLIRT signature match")
			continue
		}
		if result.Name == "" {
			continue
		}
		if err := ws.MakeSymbol(fva, result.Name); err != nil {
			ws.addDiagnostic(LevelWarning, a.Name(), fva, err.Error())
		}
	}

	ws.runDisassembler()
	return nil
}
