package pecore

import "fmt"

// SymbolTable assigns at most one name to each RVA.
type SymbolTable struct {
	names map[RVA]string
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{names: make(map[RVA]string)}
}

// Set assigns name to rva. Re-assigning a different name to an
// already-named RVA is rejected.
func (s *SymbolTable) Set(rva RVA, name string) error {
	if existing, ok := s.names[rva]; ok {
		if existing == name {
			return nil
		}
		return fmt.Errorf("pecore: %s already named %q, cannot rename to %q", rva, existing, name)
	}
	s.names[rva] = name
	return nil
}

// Get returns the name assigned to rva, if any.
func (s *SymbolTable) Get(rva RVA) (string, bool) {
	name, ok := s.names[rva]
	return name, ok
}
