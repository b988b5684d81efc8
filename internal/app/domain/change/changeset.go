// Package change defines the ChangeSet value produced by comparing a fresh
// load against the metadata ledger.
package change

// Set is the four-way partition of loaded ∪ ledger sources.
type Set struct {
	New           []string
	Modified      []string
	Unchanged     []string
	DeletedSource []string
}

// Ratio returns (|New|+|Modified|+|DeletedSource|) / max(1, ledgerSize), the
// change fraction used to decide between incremental and full-rebuild modes.
func (s Set) Ratio(ledgerSize int) float64 {
	denom := ledgerSize
	if denom < 1 {
		denom = 1
	}
	changed := len(s.New) + len(s.Modified) + len(s.DeletedSource)
	return float64(changed) / float64(denom)
}

// Total returns the number of sources touched by this change set.
func (s Set) Total() int {
	return len(s.New) + len(s.Modified) + len(s.Unchanged) + len(s.DeletedSource)
}
