package tasklib

import "errors"

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrQueueEntryNotFound = errors.New("queue entry not found")
	ErrNotQueueOwner      = errors.New("queue entry belongs to another user")

	ErrNameRequired         = errors.New("task name is required")
	ErrInvalidImportance    = errors.New("invalid importance level")
	ErrInvalidRule          = errors.New("invalid recurrence rule")
	ErrInvalidFrequency     = errors.New("invalid recurrence frequency")
	ErrScheduleTypeMismatch = errors.New("scheduleType disagrees with recurrenceRule")
	ErrRuleOnOccurrence     = errors.New("generated occurrences cannot carry a recurrence rule")
)
