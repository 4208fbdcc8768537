package tasklib

import (
	"encoding/json"
	"fmt"
	"time"
)

// Frequency is the recurrence family of a rule.
type Frequency string

const (
	FreqDaily  Frequency = "daily"
	FreqWeekly Frequency = "weekly"

	// FreqWeeklyByWeekNumber and FreqDailyOnDays are accepted as input
	// but the expander does not implement them yet; expanding such a
	// rule yields no occurrences. See DESIGN.md.
	FreqWeeklyByWeekNumber Frequency = "weeklyByWeekNumber"
	FreqDailyOnDays        Frequency = "dailyOnDays"
)

// Valid reports whether f is a declared frequency value.
func (f Frequency) Valid() bool {
	switch f {
	case FreqDaily, FreqWeekly, FreqWeeklyByWeekNumber, FreqDailyOnDays:
		return true
	}
	return false
}

// weekdayTokens maps byDay tokens to time.Weekday.
var weekdayTokens = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

// RecurrenceRule is the declarative expansion instruction owned by
// exactly one root task. It is persisted on the task as serialized JSON.
type RecurrenceRule struct {
	Freq     Frequency `json:"freq"`
	Interval int       `json:"interval,omitempty"`
	Count    int       `json:"count,omitempty"`
	Until    string    `json:"until,omitempty"`
	ByDay    []string  `json:"byDay,omitempty"`
}

// ParseRule deserializes a rule. Empty input yields a nil rule.
func ParseRule(serialized string) (*RecurrenceRule, error) {
	if serialized == "" {
		return nil, nil
	}
	var r RecurrenceRule
	if err := json.Unmarshal([]byte(serialized), &r); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRule, err.Error())
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Serialize returns the canonical JSON form of the rule.
func (r *RecurrenceRule) Serialize() string {
	b, _ := json.Marshal(r)
	return string(b)
}

// Validate checks the rule fields without expanding anything.
func (r *RecurrenceRule) Validate() error {
	if !r.Freq.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, r.Freq)
	}
	if r.Interval < 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidRule)
	}
	if r.Count < 0 {
		return fmt.Errorf("%w: count must be positive", ErrInvalidRule)
	}
	if r.Until != "" {
		if _, ok := ParseTime(r.Until); !ok {
			return fmt.Errorf("%w: unparseable until %q", ErrInvalidRule, r.Until)
		}
	}
	for _, d := range r.ByDay {
		if _, ok := weekdayTokens[d]; !ok {
			return fmt.Errorf("%w: unknown weekday token %q", ErrInvalidRule, d)
		}
	}
	return nil
}

// weekdays returns the deduplicated byDay set as time.Weekday values,
// preserving the order tokens first appear in.
func (r *RecurrenceRule) weekdays() []time.Weekday {
	seen := make(map[time.Weekday]bool, len(r.ByDay))
	out := make([]time.Weekday, 0, len(r.ByDay))
	for _, tok := range r.ByDay {
		wd, ok := weekdayTokens[tok]
		if !ok || seen[wd] {
			continue
		}
		seen[wd] = true
		out = append(out, wd)
	}
	return out
}

// ScheduleTypeFor maps a frequency to its schedule type classification.
func ScheduleTypeFor(f Frequency) ScheduleType {
	switch f {
	case FreqDaily:
		return ScheduleDaily
	case FreqWeekly:
		return ScheduleWeekly
	case FreqWeeklyByWeekNumber:
		return ScheduleWeeklyByWeekNumber
	case FreqDailyOnDays:
		return ScheduleDailyOnDays
	}
	return ScheduleSingle
}

// ResolveScheduleType reconciles a task's scheduleType with its
// serialized recurrence rule. When only one of the two is supplied the
// other is derived; when both are supplied and disagree the input is
// rejected unless override is set, in which case the explicit
// scheduleType wins.
func ResolveScheduleType(st ScheduleType, serializedRule string, override bool) (ScheduleType, error) {
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown scheduleType %q", ErrScheduleTypeMismatch, st)
	}
	rule, err := ParseRule(serializedRule)
	if err != nil {
		return "", err
	}
	if rule == nil {
		if st == "" {
			return ScheduleSingle, nil
		}
		return st, nil
	}
	derived := ScheduleTypeFor(rule.Freq)
	if st == "" {
		return derived, nil
	}
	if st != derived && !override {
		return "", fmt.Errorf("%w: scheduleType %q vs rule freq %q", ErrScheduleTypeMismatch, st, rule.Freq)
	}
	return st, nil
}
