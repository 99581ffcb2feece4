package opt

import (
	"errors"
	"fmt"
	"slices"

	"nurseroute/internal/model"
)

var (
	// ErrConstructionExhausted means the feasible initializer could not
	// place a patient within its retry ceiling.
	ErrConstructionExhausted = errors.New("construction retries exhausted")
	// ErrInvariant marks a broken patient partition. It is a defect, never
	// a recoverable condition.
	ErrInvariant = errors.New("patient partition invariant violated")
	// ErrNoSeedSolutions is returned by the file initializer when the store
	// holds nothing usable for the instance.
	ErrNoSeedSolutions = errors.New("no stored solutions to seed from")
)

type ConstructionError struct {
	Patient  int
	Attempts int
	Partial  *model.Individual
}

func (e *ConstructionError) Error() string {
	placed := 0
	if e.Partial != nil {
		placed = e.Partial.PatientCount()
	}
	return fmt.Sprintf("cannot place patient %d after %d attempts (%d patients placed)", e.Patient+1, e.Attempts, placed)
}

func (e *ConstructionError) Unwrap() error { return ErrConstructionExhausted }

// InvariantError carries the offending individual for post-mortem dumps.
type InvariantError struct {
	Stage     string
	Missing   []int
	Duplicate []int
	Routes    [][]int
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: missing %v duplicate %v routes %v", e.Stage, e.Missing, e.Duplicate, e.Routes)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// CheckPartition verifies that ind visits each of the n patients exactly once.
// Ids are reported 1-based.
func CheckPartition(ind *model.Individual, n int, stage string) error {
	seen := make([]int, n)
	var dup []int
	for _, r := range ind.Routes {
		for _, p := range r.Patients {
			if p < 0 || p >= n {
				dup = append(dup, p+1)
				continue
			}
			seen[p]++
			if seen[p] == 2 {
				dup = append(dup, p+1)
			}
		}
	}
	var missing []int
	for p, c := range seen {
		if c == 0 {
			missing = append(missing, p+1)
		}
	}
	if len(missing) == 0 && len(dup) == 0 {
		return nil
	}
	slices.Sort(dup)
	return &InvariantError{Stage: stage, Missing: missing, Duplicate: dup, Routes: ind.OneIndexed()}
}
