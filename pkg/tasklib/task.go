// Package tasklib contains the task domain core shared by the daemon,
// the store, and the client tooling: the task and recurrence-rule types,
// the conflict detector, and the recurrence expander.
package tasklib

import (
	"time"
)

// Importance levels accepted on a task.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceNormal Importance = "normal"
	ImportanceLow    Importance = "low"
)

// Valid reports whether i is one of the accepted importance levels.
// The empty value is allowed and treated as normal.
func (i Importance) Valid() bool {
	switch i {
	case "", ImportanceHigh, ImportanceNormal, ImportanceLow:
		return true
	}
	return false
}

// ScheduleType classifies the recurrence family of a task without
// requiring the serialized rule to be parsed.
type ScheduleType string

const (
	ScheduleSingle             ScheduleType = "single"
	ScheduleDaily              ScheduleType = "recurring_daily"
	ScheduleWeekly             ScheduleType = "recurring_weekly"
	ScheduleWeeklyByWeekNumber ScheduleType = "recurring_weekly_by_week_number"
	ScheduleDailyOnDays        ScheduleType = "recurring_daily_on_days"
)

// Valid reports whether st is a known schedule type. Empty is allowed;
// it is derived from the recurrence rule at admission time.
func (st ScheduleType) Valid() bool {
	switch st {
	case "", ScheduleSingle, ScheduleDaily, ScheduleWeekly,
		ScheduleWeeklyByWeekNumber, ScheduleDailyOnDays:
		return true
	}
	return false
}

// Task is a time-boxed unit of work or event owned by a single user.
//
// Temporal fields are carried as strings so that malformed values coming
// from external sources degrade silently in the conflict detector and
// expander instead of failing whole batches. Values are normalized to
// RFC 3339 UTC at the store boundary.
type Task struct {
	ID     string `json:"id"`
	UserID string `json:"userId,omitempty"`

	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Attendees   []string   `json:"attendees,omitempty"`
	Importance  Importance `json:"importance,omitempty"`
	Reminder    bool       `json:"reminder,omitempty"`

	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
	DueDate   string `json:"dueDate,omitempty"`

	// RecurrenceRule is the serialized rule, present only on root tasks.
	// ParentTaskID is set only on generated occurrences and points at the
	// root. A task carries at most one of the two.
	ScheduleType   ScheduleType `json:"scheduleType,omitempty"`
	RecurrenceRule string       `json:"recurrenceRule,omitempty"`
	ParentTaskID   string       `json:"parentTaskId,omitempty"`

	Completed      bool `json:"completed"`
	PushedToMSTodo bool `json:"pushedToMSTodo"`

	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// IsRoot reports whether the task is a root (not a generated occurrence).
func (t *Task) IsRoot() bool { return t.ParentTaskID == "" }

// Interval returns the parsed start and end instants. ok is false when
// either bound is missing or unparseable.
func (t *Task) Interval() (start, end time.Time, ok bool) {
	start, sok := ParseTime(t.StartTime)
	end, eok := ParseTime(t.EndTime)
	return start, end, sok && eok
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.Attendees != nil {
		c.Attendees = append([]string(nil), t.Attendees...)
	}
	return &c
}

// timeLayouts are the input layouts accepted from producers, tried in
// order. The first is also the canonical persisted form.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses a temporal field value. ok is false for empty or
// unparseable input; callers are expected to degrade rather than fail.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// NormalizeTime converts any accepted input representation to the
// canonical RFC 3339 UTC form. Unparseable input is returned unchanged
// with ok=false so the caller can decide whether to reject it.
func NormalizeTime(s string) (string, bool) {
	ts, ok := ParseTime(s)
	if !ok {
		return s, false
	}
	return ts.UTC().Format(time.RFC3339), true
}

// NormalizeTimes rewrites the task's temporal fields to RFC 3339 UTC,
// independent of the timezone representation the producer supplied.
// Fields that do not parse are left untouched.
func (t *Task) NormalizeTimes() {
	if v, ok := NormalizeTime(t.StartTime); ok {
		t.StartTime = v
	}
	if v, ok := NormalizeTime(t.EndTime); ok {
		t.EndTime = v
	}
	if v, ok := NormalizeTime(t.DueDate); ok {
		t.DueDate = v
	}
}
