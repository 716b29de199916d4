package flirt

import "fmt"

// Matcher runs the two-stage FLIRT match (§4.7) over a fixed, filtered
// signature set.
type Matcher struct {
	nfa *NFA
}

// NewMatcher filters sigs per §4.7 and builds the prefix NFA over the
// survivors.
func NewMatcher(sigs []*Signature) *Matcher {
	var eligible []*Signature
	for _, s := range sigs {
		if s.eligible() {
			eligible = append(eligible, s)
		}
	}
	return &Matcher{nfa: NewNFA(eligible)}
}

// Result is the outcome of matching one function body.
type Result struct {
	// Name is the symbol to apply, set only when the match is
	// unambiguous.
	Name string
	// Ambiguous is true when two or more distinct names matched.
	Ambiguous bool
	// Candidates holds every signature that passed both match stages.
	Candidates []*Signature
}

// Match runs the NFA prefix filter then the CRC16 confirmation stage
// against body (the bytes at a candidate function's RVA), per §4.7's
// "Application" rule: exactly one match, or several sharing a name,
// yields that name; more than one distinct name is ambiguous.
func (m *Matcher) Match(body []byte) Result {
	candidates := m.nfa.Match(body)

	var confirmed []*Signature
	for _, sig := range candidates {
		if sig.CRCLength == 0 {
			confirmed = append(confirmed, sig)
			continue
		}
		start := sig.matchLength()
		end := start + int(sig.CRCLength)
		if end > len(body) {
			continue
		}
		if crc16(body[start:end]) != sig.CRC16 {
			continue
		}
		confirmed = append(confirmed, sig)
	}

	if len(confirmed) == 0 {
		return Result{}
	}

	names := make(map[string]bool)
	for _, sig := range confirmed {
		name, _ := sig.DisplayName()
		names[name] = true
	}

	if len(names) == 1 {
		for name := range names {
			return Result{Name: name, Candidates: confirmed}
		}
	}

	return Result{Ambiguous: true, Candidates: confirmed}
}

func (r Result) String() string {
	if r.Ambiguous {
		return fmt.Sprintf("flirt.Result{ambiguous, %d candidates}", len(r.Candidates))
	}
	if r.Name == "" {
		return "flirt.Result{no match}"
	}
	return fmt.Sprintf("flirt.Result{%s}", r.Name)
}
