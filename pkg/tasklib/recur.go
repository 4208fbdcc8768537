package tasklib

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// maxGenerated is the safety ceiling on generated occurrences when a
// rule carries neither a count nor an until cutoff.
const maxGenerated = 30

// Expand generates the concrete child occurrences for a root task and
// its rule. The root itself is never part of the output but counts as
// the first instance for the rule's count. Malformed root times yield an
// empty list; so do the declared-but-unimplemented frequencies
// weeklyByWeekNumber and dailyOnDays.
func Expand(root *Task, rule *RecurrenceRule) []*Task {
	if root == nil || rule == nil {
		return nil
	}
	start, end, ok := root.Interval()
	if !ok {
		return nil
	}

	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}

	var until time.Time
	hasUntil := false
	if rule.Until != "" {
		if u, uok := ParseTime(rule.Until); uok {
			until, hasUntil = u, true
		}
	}

	// limit is the number of occurrences to generate: count minus the
	// root, or the safety ceiling when the rule is fully open-ended.
	// A rule bounded only by until has no instance limit.
	limit := -1
	if rule.Count > 0 {
		limit = rule.Count - 1
	} else if !hasUntil {
		limit = maxGenerated
	}

	switch rule.Freq {
	case FreqDaily:
		return expandByStep(root, start, end, interval, limit, until, hasUntil)
	case FreqWeekly:
		if len(rule.ByDay) > 0 {
			return expandWeeklyByDay(root, rule, start, end, interval, limit, until, hasUntil)
		}
		return expandByStep(root, start, end, 7*interval, limit, until, hasUntil)
	default:
		return nil
	}
}

// expandByStep shifts start and end forward by step days cumulatively
// from the previous occurrence until a bound is hit.
func expandByStep(root *Task, start, end time.Time, step, limit int, until time.Time, hasUntil bool) []*Task {
	var out []*Task
	for {
		if limit >= 0 && len(out) >= limit {
			return out
		}
		start = start.AddDate(0, 0, step)
		end = end.AddDate(0, 0, step)
		if hasUntil && start.After(until) {
			return out
		}
		out = append(out, newOccurrence(root, start, end))
	}
}

// expandWeeklyByDay walks week offsets from the root and, within each
// week, emits a candidate for every requested weekday, offset from the
// root's own weekday. The candidate coinciding exactly with the root's
// start is skipped; bounds are checked after each candidate before
// moving on.
func expandWeeklyByDay(root *Task, rule *RecurrenceRule, start, end time.Time, interval, limit int, until time.Time, hasUntil bool) []*Task {
	days := rule.weekdays()
	if len(days) == 0 {
		return nil
	}
	duration := end.Sub(start)
	rootDay := start.Weekday()

	// Candidates must come out in chronological order within each week,
	// not byDay token order, or an until cutoff hit on a later-listed
	// early day would drop in-range candidates behind it.
	sort.Slice(days, func(i, j int) bool {
		return (int(days[i])-int(rootDay)+7)%7 < (int(days[j])-int(rootDay)+7)%7
	})

	var out []*Task
	for week := 0; ; week++ {
		weekBase := start.AddDate(0, 0, week*7*interval)
		for _, wd := range days {
			if limit >= 0 && len(out) >= limit {
				return out
			}
			offset := (int(wd) - int(rootDay) + 7) % 7
			if week == 0 && offset == 0 {
				// Already covered by the root itself.
				continue
			}
			s := weekBase.AddDate(0, 0, offset)
			if hasUntil && s.After(until) {
				return out
			}
			out = append(out, newOccurrence(root, s, s.Add(duration)))
		}
	}
}

// newOccurrence copies the root's descriptive fields into a fresh child
// task with shifted times. The due date mirrors the occurrence end.
func newOccurrence(root *Task, start, end time.Time) *Task {
	occ := root.Clone()
	occ.ID = uuid.NewString()
	occ.ParentTaskID = root.ID
	occ.RecurrenceRule = ""
	occ.Completed = false
	occ.PushedToMSTodo = false
	occ.StartTime = start.UTC().Format(time.RFC3339)
	occ.EndTime = end.UTC().Format(time.RFC3339)
	occ.DueDate = occ.EndTime
	occ.CreatedAt = ""
	occ.UpdatedAt = ""
	return occ
}

// Summary reports the outcome of persisting a batch of expanded
// occurrences. The counts come from the caller, which persists and
// conflict-checks each occurrence one at a time.
type Summary struct {
	CreatedCount  int             `json:"createdCount"`
	ConflictCount int             `json:"conflictCount"`
	ErrorCount    int             `json:"errorCount"`
	RequestedRule *RecurrenceRule `json:"requestedRule,omitempty"`
}

// BuildSummary assembles a Summary for reporting back to the producer.
func BuildSummary(created, conflicted, errored int, rule *RecurrenceRule) *Summary {
	return &Summary{
		CreatedCount:  created,
		ConflictCount: conflicted,
		ErrorCount:    errored,
		RequestedRule: rule,
	}
}
