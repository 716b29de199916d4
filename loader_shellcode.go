package pecore

// ShellcodeLoader is the trivial "flat shellcode" loader: it maps the
// input buffer verbatim at base 0 as a single RWX section, with no PE
// structure to drive further analysis beyond an entry point at 0.
type ShellcodeLoader struct {
	arch Arch
}

// NewShellcodeLoader returns a shellcode loader for the given pointer
// width. Shellcode carries no header to distinguish bitness from, so both
// arches taste every non-empty buffer; the x32 loader is tried first by
// DefaultLoaders and always wins ties.
func NewShellcodeLoader(arch Arch) *ShellcodeLoader {
	return &ShellcodeLoader{arch: arch}
}

func (l *ShellcodeLoader) Name() string {
	return "windows/" + l.arch.String() + "/raw"
}

func (l *ShellcodeLoader) Arch() Arch {
	return l.arch
}

// Taste accepts any non-empty buffer: shellcode has no signature of its
// own, it is the format of last resort.
func (l *ShellcodeLoader) Taste(cfg *Config, buf []byte) bool {
	return len(buf) > 0
}

func (l *ShellcodeLoader) Load(cfg *Config, buf []byte) (*LoadedModule, []Analyzer, error) {
	aligned := alignUp(uint64(len(buf)), pageSize)
	as := NewAddressSpace(aligned)

	padded := make([]byte, aligned)
	copy(padded, buf)
	if err := as.Map(0, padded); err != nil {
		return nil, nil, err
	}

	module := &LoadedModule{
		Base: 0,
		Sections: []Section{
			{Addr: 0, Size: uint64(len(buf)), Perms: PermRWX, Name: "raw"},
		},
		AS: as,
	}

	analyzers := []Analyzer{NewEntryPointAnalyzer(0)}
	return module, analyzers, nil
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) / align * align
}
