package tasklib

import (
	"fmt"
	"strings"
)

// BoundaryPolicy controls whether two intervals touching exactly at an
// endpoint count as overlapping.
type BoundaryPolicy int

const (
	// BoundaryExclusive treats intervals as half-open [start, end): a
	// task ending exactly when another begins does not conflict.
	BoundaryExclusive BoundaryPolicy = iota
	// BoundaryInclusive treats a shared endpoint as a conflict.
	BoundaryInclusive
)

// ConflictError is returned by blocking-mode admission when the
// candidate overlaps existing tasks. It carries the full conflict list
// so surfaces can report exactly what blocked the write.
type ConflictError struct {
	Candidate *Task
	Conflicts []*Task
}

func (e *ConflictError) Error() string {
	names := make([]string, 0, len(e.Conflicts))
	for _, t := range e.Conflicts {
		names = append(names, t.Name)
	}
	return fmt.Sprintf("task %q conflicts with %d existing task(s): %s",
		e.Candidate.Name, len(e.Conflicts), strings.Join(names, ", "))
}

// FindConflicts returns every task in existing whose interval overlaps
// the candidate under the given boundary policy. The check is advisory
// and total: tasks with missing or unparseable times are silently
// skipped, a candidate whose end does not lie after its start yields no
// conflicts, and the candidate itself (matched by id) is excluded.
func FindConflicts(existing []*Task, candidate *Task, policy BoundaryPolicy) []*Task {
	if candidate == nil {
		return nil
	}
	cStart, cEnd, ok := candidate.Interval()
	if !ok || !cEnd.After(cStart) {
		return nil
	}
	var conflicts []*Task
	for _, t := range existing {
		if t == nil || t.ID == candidate.ID {
			continue
		}
		tStart, tEnd, ok := t.Interval()
		if !ok || !tEnd.After(tStart) {
			continue
		}
		var overlap bool
		if policy == BoundaryInclusive {
			overlap = !cStart.After(tEnd) && !cEnd.Before(tStart)
		} else {
			overlap = cStart.Before(tEnd) && cEnd.After(tStart)
		}
		if overlap {
			conflicts = append(conflicts, t)
		}
	}
	return conflicts
}

// AssertNoConflict is the blocking admission gate: it returns a
// *ConflictError carrying the overlapping tasks when FindConflicts is
// non-empty, and nil otherwise.
func AssertNoConflict(existing []*Task, candidate *Task, policy BoundaryPolicy) error {
	conflicts := FindConflicts(existing, candidate, policy)
	if len(conflicts) == 0 {
		return nil
	}
	return &ConflictError{Candidate: candidate, Conflicts: conflicts}
}
