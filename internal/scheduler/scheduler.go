// Package scheduler runs deferred work for the daemon: periodic source
// syncs on cron schedules and bounded retries of failed external
// pushes. Retry state lives in the Job itself, so pending retries are
// inspectable and cancellable instead of hiding in self-rescheduled
// closures.
package scheduler

import (
	"container/heap"
	"context"
	"time"

	"github.com/adhocore/gronx"
)

const maxSleepCap = 60 * time.Second

// Scheduler manages scheduled jobs using a min-heap. A single
// background goroutine sleeps until the next job's trigger time, then
// calls the onTrigger callback with the job.
type Scheduler struct {
	addChan    chan Job
	removeChan chan string
	ctx        context.Context
}

// New creates and starts a new Scheduler.
// The onTrigger callback is invoked when a job fires; it must not
// block for long (dispatch real work onto its own goroutine).
// The scheduler goroutine exits when ctx is cancelled.
func New(ctx context.Context, onTrigger func(Job)) *Scheduler {
	s := &Scheduler{
		addChan:    make(chan Job, 64),
		removeChan: make(chan string, 64),
		ctx:        ctx,
	}
	go s.run(onTrigger)
	return s
}

// Add enqueues a job.
func (s *Scheduler) Add(job Job) {
	select {
	case s.addChan <- job:
	case <-s.ctx.Done():
	}
}

// Remove cancels a scheduled job by key.
func (s *Scheduler) Remove(key string) {
	select {
	case s.removeChan <- key:
	case <-s.ctx.Done():
	}
}

// run is the core scheduler goroutine implementing the active-object
// pattern. It maintains a min-heap of jobs and sleeps with a 60s
// max-sleep-cap. For recurring jobs (CronExpr != ""), after firing it
// computes the next occurrence and re-adds it automatically.
func (s *Scheduler) run(onTrigger func(Job)) {
	h := &jobHeap{}
	heap.Init(h)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		if h.Len() == 0 {
			// No jobs — block indefinitely on channels
			return nil
		}
		next := (*h)[0].RunAt
		dur := time.Until(next)
		if dur > maxSleepCap {
			dur = maxSleepCap
		}
		if dur < 0 {
			dur = 0
		}
		timer = time.NewTimer(dur)
		return timer.C
	}

	timerCh := resetTimer()

	for {
		select {
		case <-s.ctx.Done():
			return

		case job := <-s.addChan:
			heapPush(h, job)
			timerCh = resetTimer()

		case key := <-s.removeChan:
			heapRemoveByKey(h, key)
			timerCh = resetTimer()

		case <-timerCh:
			// Fire every job whose time has arrived
			now := time.Now()
			for h.Len() > 0 && !(*h)[0].RunAt.After(now) {
				job := heapPop(h)
				onTrigger(job)
				if job.CronExpr != "" {
					next, err := NextCronOccurrence(job.CronExpr, time.Now())
					if err == nil {
						heapPush(h, Job{
							Key:      job.Key,
							RunAt:    next,
							CronExpr: job.CronExpr,
						})
					}
				}
			}
			timerCh = resetTimer()
		}
	}
}

// NextCronOccurrence returns the next time the cron expression fires
// strictly after start.
func NextCronOccurrence(expr string, start time.Time) (time.Time, error) {
	return gronx.NextTickAfter(expr, start, false)
}

// ValidCron reports whether expr is a parseable cron expression.
func ValidCron(expr string) bool {
	return gronx.New().IsValid(expr)
}
