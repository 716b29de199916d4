package pecore

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/xyproto/pecore/internal/decoder"
)

// Builder configures and constructs a Workspace. Knobs mirror §4.8: an
// explicit loader override, disabling analysis entirely, strict mode
// (analyzer failures become fatal), and a Config for FLIRT directories.
type Builder struct {
	buf    []byte
	config *Config
	loader Loader

	shouldAnalyze bool
	strict        bool
}

// NewBuilder starts building a workspace over buf with the default config
// and analysis enabled.
func NewBuilder(buf []byte) *Builder {
	return &Builder{
		buf:           buf,
		config:        DefaultConfig(),
		shouldAnalyze: true,
	}
}

// WithLoader overrides the auto-detected loader.
func (b *Builder) WithLoader(l Loader) *Builder {
	b.loader = l
	return b
}

// DisableAnalysis skips running seed analyzers after load.
func (b *Builder) DisableAnalysis() *Builder {
	b.shouldAnalyze = false
	return b
}

// EnableStrictMode makes the first analyzer-level diagnostic a fatal
// error from Build.
func (b *Builder) EnableStrictMode() *Builder {
	b.strict = true
	return b
}

// WithConfig overrides the default configuration.
func (b *Builder) WithConfig(cfg *Config) *Builder {
	b.config = cfg
	return b
}

// Build loads the buffer, runs the seed analyzers to fixed point (unless
// disabled), and returns the resulting Workspace.
func (b *Builder) Build() (*Workspace, error) {
	var (
		ldr       Loader
		module    *LoadedModule
		analyzers []Analyzer
		err       error
	)

	if b.loader != nil {
		module, analyzers, err = b.loader.Load(b.config, b.buf)
		ldr = b.loader
	} else {
		ldr, module, analyzers, err = Load(b.config, b.buf)
	}
	if err != nil {
		return nil, err
	}

	ws := &Workspace{
		buf:     b.buf,
		config:  b.config,
		loader:  ldr,
		module:  module,
		arch:    ldr.Arch(),
		flow:    NewFlowMetaStore(),
		xrefs:   NewXrefGraph(),
		symbols: NewSymbolTable(),
		strict:  b.strict,
	}
	ws.disasm = NewDisassembler(module.AS, ws.flow, ws.xrefs, module.Sections, ws.arch)

	if b.shouldAnalyze {
		analyzers = append(analyzers, NewFlirtAnalyzer(b.config))
		for _, analyzer := range analyzers {
			if err := analyzer.Analyze(ws); err != nil {
				ws.addDiagnostic(LevelError, analyzer.Name(), 0, err.Error())
				if b.strict {
					return nil, fmt.Errorf("analyzer %s: %w", analyzer.Name(), err)
				}
			}
		}
	}

	return ws, nil
}

// Workspace owns the loaded module, flow metadata, xref graph, and symbol
// table exclusively: it is the single aggregate C10 presents to callers,
// per the ownership reshaping in §9 (no separately-owned cyclic
// references between the address space and its overlay metadata).
type Workspace struct {
	buf    []byte
	config *Config

	loader Loader
	module *LoadedModule
	arch   Arch

	flow    *FlowMetaStore
	xrefs   *XrefGraph
	symbols *SymbolTable
	disasm  *Disassembler

	strict      bool
	diagnostics []Diagnostic
}

// NewWorkspace is a convenience entry point equivalent to
// NewBuilder(buf).Build().
func NewWorkspace(buf []byte) (*Workspace, error) {
	return NewBuilder(buf).Build()
}

// RawBytes returns the original input buffer, for collaborators (PE
// directory re-parsing) that need to revisit the raw file.
func (ws *Workspace) RawBytes() []byte {
	return ws.buf
}

// Module returns the loaded module.
func (ws *Workspace) Module() *LoadedModule {
	return ws.module
}

// Diagnostics returns the accumulated non-fatal events recorded during
// analysis, in the order they were raised.
func (ws *Workspace) Diagnostics() []Diagnostic {
	return ws.diagnostics
}

func (ws *Workspace) addDiagnostic(level DiagnosticLevel, source string, rva RVA, message string) {
	ws.diagnostics = append(ws.diagnostics, Diagnostic{
		Level: level, Source: source, RVA: rva, HasRVA: true, Message: message,
	})
}

func (ws *Workspace) runDisassembler() {
	ws.disasm.Drain()
}

// MakeInsn enqueues rva for decoding.
func (ws *Workspace) MakeInsn(rva RVA) {
	ws.disasm.MakeInsn(rva)
}

// MakeFunction marks rva as a function entry and enqueues it for decoding.
func (ws *Workspace) MakeFunction(rva RVA) {
	ws.disasm.MakeFunction(rva)
}

// MakeSymbol assigns name to rva.
func (ws *Workspace) MakeSymbol(rva RVA, name string) error {
	return ws.symbols.Set(rva, name)
}

// Functions returns the RVAs marked as function entries.
func (ws *Workspace) Functions() []RVA {
	return ws.disasm.Functions()
}

// GetBasicBlocks recovers the basic-block partition reachable from entry.
func (ws *Workspace) GetBasicBlocks(entry RVA) []BasicBlock {
	return ws.disasm.GetBasicBlocks(entry)
}

// GetMeta returns the flow metadata recorded at rva, if any.
func (ws *Workspace) GetMeta(rva RVA) (InsnMeta, bool) {
	return ws.flow.Get(rva)
}

// XrefsFrom returns the xrefs leaving rva.
func (ws *Workspace) XrefsFrom(rva RVA) []Xref {
	return ws.xrefs.From(rva)
}

// XrefsTo returns the xrefs entering rva.
func (ws *Workspace) XrefsTo(rva RVA) []Xref {
	return ws.xrefs.To(rva)
}

func (ws *Workspace) sectionContaining(rva RVA) (Section, bool) {
	for _, s := range ws.module.Sections {
		if s.Contains(rva) {
			return s, true
		}
	}
	return Section{}, false
}

func (ws *Workspace) isExecutableRVA(rva RVA) bool {
	s, ok := ws.sectionContaining(rva)
	return ok && s.IsExecutable() && ws.module.AS.Probe(rva)
}

// RVA converts an absolute address to a module-relative offset. ok is
// false if va is below the module base.
func (ws *Workspace) RVA(va VA) (RVA, bool) {
	if va < ws.module.Base {
		return 0, false
	}
	return va.RVA(ws.module.Base)
}

// VA converts a module-relative offset to an absolute address.
func (ws *Workspace) VA(rva RVA) VA {
	return rva.VA(ws.module.Base)
}

// Probe reports whether [rva, rva+length) satisfies perm, generalizing the
// address-space-level probe with the richer semantics the analyzers need:
// an executable-region probe must also find flow metadata mapped at the
// first and last byte of the range, since flow metadata is only populated
// for executable regions.
func (ws *Workspace) Probe(rva RVA, length uint64, perm Permissions) bool {
	last := rva
	if length > 0 {
		last = rva.Add(length - 1)
	}

	if perm.Intersects(PermX) {
		_, startOK := ws.flow.Get(rva)
		_, endOK := ws.flow.Get(last)
		if !startOK || !endOK {
			return false
		}
	}

	if perm.Intersects(PermR) {
		if !ws.module.AS.Probe(rva) || !ws.module.AS.Probe(last) {
			return false
		}
	}

	return true
}

// ReadBytes returns length bytes starting at rva.
func (ws *Workspace) ReadBytes(rva RVA, length uint64) ([]byte, error) {
	out, err := ws.module.AS.Slice(rva, rva.Add(length))
	if err != nil {
		return nil, fmt.Errorf("workspace: read_bytes: %w", ErrInvalidAddress)
	}
	return out, nil
}

// ReadU8 reads a byte at rva.
func (ws *Workspace) ReadU8(rva RVA) (uint8, error) {
	buf, err := ws.ReadBytes(rva, 1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadU16 reads a little-endian word at rva.
func (ws *Workspace) ReadU16(rva RVA) (uint16, error) {
	buf, err := ws.ReadBytes(rva, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// ReadU32 reads a little-endian dword at rva.
func (ws *Workspace) ReadU32(rva RVA) (uint32, error) {
	buf, err := ws.ReadBytes(rva, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadU64 reads a little-endian qword at rva.
func (ws *Workspace) ReadU64(rva RVA) (uint64, error) {
	buf, err := ws.ReadBytes(rva, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// ReadI32 reads a little-endian signed dword at rva.
func (ws *Workspace) ReadI32(rva RVA) (int32, error) {
	v, err := ws.ReadU32(rva)
	return int32(v), err
}

// ReadI64 reads a little-endian signed qword at rva.
func (ws *Workspace) ReadI64(rva RVA) (int64, error) {
	v, err := ws.ReadU64(rva)
	return int64(v), err
}

// ReadRVA reads an arch-sized RVA value at rva.
func (ws *Workspace) ReadRVA(rva RVA) (RVA, error) {
	if ws.arch == ArchX64 {
		v, err := ws.ReadU64(rva)
		return RVA(v), err
	}
	v, err := ws.ReadU32(rva)
	return RVA(v), err
}

// ReadVA reads an arch-sized VA value at rva.
func (ws *Workspace) ReadVA(rva RVA) (VA, error) {
	if ws.arch == ArchX64 {
		v, err := ws.ReadU64(rva)
		return VA(v), err
	}
	v, err := ws.ReadU32(rva)
	return VA(v), err
}

const maxUTF8Read = 0x1000

// ReadUTF8 reads a NUL-terminated string at rva, up to maxUTF8Read bytes,
// clamped to the end of rva's section when a full-length read is not
// mapped. The result must be valid UTF-8.
func (ws *Workspace) ReadUTF8(rva RVA) (string, error) {
	size := uint64(maxUTF8Read)
	if buf, err := ws.ReadBytes(rva, size); err == nil {
		return decodeUTF8CString(buf)
	}

	sec, ok := ws.sectionContaining(rva)
	if !ok {
		return "", fmt.Errorf("workspace: read_utf8: %w", ErrInvalidAddress)
	}
	remaining := uint64(sec.End()) - uint64(rva)
	if remaining > maxUTF8Read {
		remaining = maxUTF8Read
	}
	buf, err := ws.ReadBytes(rva, remaining)
	if err != nil {
		return "", fmt.Errorf("workspace: read_utf8: %w", ErrInvalidAddress)
	}
	return decodeUTF8CString(buf)
}

func decodeUTF8CString(buf []byte) (string, error) {
	if idx := indexByte(buf, 0); idx >= 0 {
		buf = buf[:idx]
	}
	if !isValidUTF8(buf) {
		return "", fmt.Errorf("workspace: read_utf8: %w", ErrParseError)
	}
	return string(buf), nil
}

func indexByte(buf []byte, b byte) int {
	for i, c := range buf {
		if c == b {
			return i
		}
	}
	return -1
}

func isValidUTF8(buf []byte) bool {
	return strings.ToValidUTF8(string(buf), "�") == string(buf)
}

// ReadInsn decodes an instruction at rva, per §4.4 step 2: it tries
// progressively shorter reads down to one byte before giving up.
func (ws *Workspace) ReadInsn(rva RVA) (decoder.Instruction, error) {
	mode := decoder.Mode32
	if ws.arch == ArchX64 {
		mode = decoder.Mode64
	}

	for n := maxInsnLength; n >= 1; n-- {
		buf, err := ws.ReadBytes(rva, uint64(n))
		if err != nil {
			if n == maxInsnLength {
				if !ws.module.AS.Probe(rva) {
					return decoder.Instruction{}, fmt.Errorf("workspace: read_insn: %w", ErrInvalidAddress)
				}
			}
			continue
		}
		inst, err := decoder.Decode(buf, mode)
		if err != nil {
			return decoder.Instruction{}, fmt.Errorf("workspace: read_insn: %w", ErrInvalidInstruction)
		}
		return inst, nil
	}
	return decoder.Instruction{}, fmt.Errorf("workspace: read_insn: %w", ErrInvalidAddress)
}
