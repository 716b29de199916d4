package pecore

import "fmt"

// Section describes one mapped region of a loaded module.
type Section struct {
	Addr  RVA
	Size  uint64
	Perms Permissions
	Name  string
}

// Contains reports whether rva falls within this section's range.
func (s Section) Contains(rva RVA) bool {
	if rva < s.Addr {
		return false
	}
	return rva < s.End()
}

// IsExecutable reports whether the section grants execute permission.
func (s Section) IsExecutable() bool {
	return s.Perms.Intersects(PermX)
}

// End returns the RVA one past the last byte of the section.
func (s Section) End() RVA {
	return s.Addr.Add(s.Size)
}

// LoadedModule is the result of running a Loader over an input buffer.
type LoadedModule struct {
	Base     VA
	Sections []Section
	AS       *AddressSpace
}

// MaxAddress returns the RVA one past the end of the highest-addressed
// section.
func (m *LoadedModule) MaxAddress() RVA {
	var max RVA
	for _, s := range m.Sections {
		if end := s.End(); end > max {
			max = end
		}
	}
	return max
}

// Loader knows how to recognize and load one file format/arch/platform
// combination. Variants are few (PE x32/x64, shellcode x32/x64), so a
// small registry of concrete implementations is used rather than a plugin
// system.
type Loader interface {
	Name() string
	Arch() Arch
	Taste(cfg *Config, buf []byte) bool
	Load(cfg *Config, buf []byte) (*LoadedModule, []Analyzer, error)
}

// DefaultLoaders returns the loaders tried by Load, in precedence order:
// earlier entries are preferred when more than one tastes the buffer.
func DefaultLoaders() []Loader {
	return []Loader{
		NewPELoader(ArchX32),
		NewPELoader(ArchX64),
		NewShellcodeLoader(ArchX32),
		NewShellcodeLoader(ArchX64),
	}
}

// Taste returns the loaders from DefaultLoaders that recognize buf.
func Taste(cfg *Config, buf []byte) []Loader {
	var out []Loader
	for _, ldr := range DefaultLoaders() {
		if ldr.Taste(cfg, buf) {
			out = append(out, ldr)
		}
	}
	return out
}

// Load tries each default loader in order and loads buf with the first one
// that recognizes it.
func Load(cfg *Config, buf []byte) (Loader, *LoadedModule, []Analyzer, error) {
	candidates := Taste(cfg, buf)
	if len(candidates) == 0 {
		return nil, nil, nil, ErrNotSupported
	}
	ldr := candidates[0]
	module, analyzers, err := ldr.Load(cfg, buf)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loader %s: %w", ldr.Name(), err)
	}
	return ldr, module, analyzers, nil
}
