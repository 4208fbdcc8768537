package tasklib

import (
	"testing"
	"time"
)

func TestParseTimeLayouts(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want string
	}{
		{"2026-03-02T09:00:00Z", true, "2026-03-02T09:00:00Z"},
		{"2026-03-02T09:00:00+02:00", true, "2026-03-02T07:00:00Z"},
		{"2026-03-02T09:00:00", true, "2026-03-02T09:00:00Z"},
		{"2026-03-02 09:00:00", true, "2026-03-02T09:00:00Z"},
		{"2026-03-02", true, "2026-03-02T00:00:00Z"},
		{"", false, ""},
		{"yesterday", false, ""},
		{"2026-13-40", false, ""},
	}
	for _, tc := range tests {
		got, ok := ParseTime(tc.in)
		if ok != tc.ok {
			t.Errorf("ParseTime(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && got.UTC().Format(time.RFC3339) != tc.want {
			t.Errorf("ParseTime(%q) = %s, want %s", tc.in, got.UTC().Format(time.RFC3339), tc.want)
		}
	}
}

func TestNormalizeTimes(t *testing.T) {
	task := &Task{
		StartTime: "2026-03-02 09:00:00",
		EndTime:   "2026-03-02T10:00:00+02:00",
		DueDate:   "not-a-date",
	}
	task.NormalizeTimes()
	if task.StartTime != "2026-03-02T09:00:00Z" {
		t.Errorf("start = %s", task.StartTime)
	}
	if task.EndTime != "2026-03-02T08:00:00Z" {
		t.Errorf("end = %s", task.EndTime)
	}
	// Unparseable values pass through untouched.
	if task.DueDate != "not-a-date" {
		t.Errorf("due = %s", task.DueDate)
	}
}

func TestInterval(t *testing.T) {
	task := &Task{StartTime: "2026-03-02T09:00:00Z", EndTime: "2026-03-02T10:30:00Z"}
	s, e, ok := task.Interval()
	if !ok || e.Sub(s) != 90*time.Minute {
		t.Fatalf("interval = %v..%v ok=%v", s, e, ok)
	}

	if _, _, ok := (&Task{StartTime: "bad", EndTime: "2026-03-02T10:00:00Z"}).Interval(); ok {
		t.Error("malformed start should not parse")
	}
	if _, _, ok := (&Task{}).Interval(); ok {
		t.Error("empty times should not parse")
	}
}

func TestIsRoot(t *testing.T) {
	if !(&Task{ID: "a"}).IsRoot() {
		t.Error("task without parent should be a root")
	}
	if (&Task{ID: "b", ParentTaskID: "a"}).IsRoot() {
		t.Error("occurrence should not be a root")
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := &Task{ID: "a", Name: "x", Attendees: []string{"alice", "bob"}}
	c := orig.Clone()
	c.Attendees[0] = "mallory"
	c.Name = "y"
	if orig.Attendees[0] != "alice" || orig.Name != "x" {
		t.Error("clone should not share state with the original")
	}
}

func TestImportanceValid(t *testing.T) {
	for _, imp := range []Importance{"", ImportanceHigh, ImportanceNormal, ImportanceLow} {
		if !imp.Valid() {
			t.Errorf("%q should be valid", imp)
		}
	}
	if Importance("urgent").Valid() {
		t.Error("unknown importance should be invalid")
	}
}
