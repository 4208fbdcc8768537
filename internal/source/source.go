// Package source ingests external schedule data: Exchange calendar
// events, the university timetable, and the Microsoft To-Do push-back
// of completed tasks. Adapters talk to thin HTTP bridge services and
// normalize everything into the core task shape before it enters the
// admission path.
package source

import (
	"context"

	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

// Task id prefixes identify a task's origin and make source-scoped
// bulk replacement possible.
const (
	ExchangeIDPrefix  = "exchange-"
	TimetableIDPrefix = "timetable-"
)

// CalendarEvent is the normalized shape every source adapter produces.
// Times are strings in the source's format; normalization happens at
// admission.
type CalendarEvent struct {
	UID         string `json:"uid"`
	Subject     string `json:"subject"`
	Body        string `json:"body,omitempty"`
	Location    string `json:"location,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Importance  string `json:"importance,omitempty"`
	IsRecurring bool   `json:"isRecurring,omitempty"`
}

// MailCalendar fetches the user's Exchange calendar view.
type MailCalendar interface {
	FetchEvents(ctx context.Context, userID string) ([]CalendarEvent, error)
}

// Timetable fetches the user's university timetable entries.
type Timetable interface {
	FetchEntries(ctx context.Context, userID string) ([]CalendarEvent, error)
}

// TodoPusher mirrors a completed task into the user's Microsoft To-Do
// list.
type TodoPusher interface {
	Push(ctx context.Context, userID string, t *tasklib.Task) error
}

// eventTask converts a normalized event into a candidate task with the
// source-prefixed id.
func eventTask(prefix string, ev CalendarEvent) *tasklib.Task {
	imp := tasklib.Importance(ev.Importance)
	if !imp.Valid() {
		imp = tasklib.ImportanceNormal
	}
	return &tasklib.Task{
		ID:          prefix + ev.UID,
		Name:        ev.Subject,
		Description: ev.Body,
		Location:    ev.Location,
		Importance:  imp,
		StartTime:   ev.Start,
		EndTime:     ev.End,
		DueDate:     ev.End,
	}
}
