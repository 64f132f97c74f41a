package detection

import "strings"

// Outcome names a counter row.
type Outcome string

const (
	// Detected is incremented once when a fan-out begins.
	Detected Outcome = "Detected"
	// Correct, Incorrect and None are terminal: exactly one of them is
	// incremented per fan-out, after it resolves.
	Correct   Outcome = "Correct"
	Incorrect Outcome = "Incorrect"
	None      Outcome = "None"
)

var allOutcomes = [...]Outcome{Detected, Correct, Incorrect, None}

// Outcomes returns every counter row name.
func Outcomes() []Outcome {
	out := make([]Outcome, len(allOutcomes))
	copy(out, allOutcomes[:])
	return out
}

// ParseOutcome matches name case-insensitively.
func ParseOutcome(name string) (Outcome, bool) {
	for _, o := range allOutcomes {
		if strings.EqualFold(string(o), name) {
			return o, true
		}
	}
	return "", false
}

// Terminal reports whether o resolves a fan-out.
func (o Outcome) Terminal() bool {
	return o == Correct || o == Incorrect || o == None
}

func (o Outcome) String() string { return string(o) }

// Snapshot maps each outcome row to its per-category counts.
type Snapshot map[Outcome]map[Category]int64

// Get returns the count for (o, c), zero when absent.
func (s Snapshot) Get(o Outcome, c Category) int64 {
	return s[o][c]
}
