package pecore

// Analyzer is a seed analyzer: it inspects an already-loaded workspace and
// contributes instruction/function/symbol seeds to the disassembler's
// worklist. Variants are few (entry point, exports, relocations,
// pointers, FLIRT), so a small capability interface plus a slice from the
// loader takes the place of a plugin registry.
type Analyzer interface {
	Name() string
	Analyze(ws *Workspace) error
}
