package scheduler

import "time"

// Job is a pending unit of deferred work in the scheduler heap: a
// periodic source sync (CronExpr set) or a bounded retry of a failed
// external push (Attempts counts the failures so far). The heap is
// in-memory only; the daemon rebuilds it at startup.
type Job struct {
	// Key identifies the job to the trigger callback, e.g.
	// "sync:timetable:<user>" or "todo:<user>:<taskID>".
	Key string
	// RunAt is the wall-clock time the job should fire.
	RunAt time.Time
	// CronExpr is the cron expression for recurring jobs.
	// Empty string means one-shot — no re-scheduling after firing.
	CronExpr string
	// Attempts is the number of failed attempts that preceded this
	// scheduling, for bounded-retry jobs. Zero for fresh work.
	Attempts int
}
