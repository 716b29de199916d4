package pecore

import "github.com/xyproto/env/v2"

// Config carries the file-system paths analyzers consult for FLIRT
// signatures. Input bytes themselves are always supplied in memory; these
// two directories are the only on-disk dependency the core has.
type Config struct {
	FlirtPatDir string
	FlirtSigDir string
}

// DefaultConfig returns the conventional signature directories, letting
// PECORE_FLIRT_PAT_DIR / PECORE_FLIRT_SIG_DIR override them.
func DefaultConfig() *Config {
	return &Config{
		FlirtPatDir: env.Str("PECORE_FLIRT_PAT_DIR", "~/.pecore/sig/flirt/pat/"),
		FlirtSigDir: env.Str("PECORE_FLIRT_SIG_DIR", "~/.pecore/sig/flirt/sig/"),
	}
}
