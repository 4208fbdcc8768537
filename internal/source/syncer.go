package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskfuse/taskfuse/internal/api"
	"github.com/taskfuse/taskfuse/internal/scheduler"
	"github.com/taskfuse/taskfuse/pkg/logger"
	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

// Scheduler job key prefixes the syncer owns.
const (
	JobSyncExchange  = "sync:exchange:"
	JobSyncTimetable = "sync:timetable:"
	JobTodoPush      = "todo:"
)

// SyncReport summarizes one sync run.
type SyncReport struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
	Removed int `json:"removed,omitempty"`
}

// Syncer drives the periodic ingestion of external sources and the
// push-back of completed tasks. All ingestion runs in advisory mode:
// externally-sourced events are facts, not proposals, so a conflict
// must never drop them.
type Syncer struct {
	api    *api.Api
	mail   MailCalendar
	tt     Timetable
	pusher TodoPusher
	sched  *scheduler.Scheduler
	retry  tasklib.RetryConfig
	log    logger.Logger
}

// NewSyncer wires the adapters into the admission path. Any adapter
// may be nil, which disables its sync. retry may be nil for defaults.
func NewSyncer(a *api.Api, mail MailCalendar, tt Timetable, pusher TodoPusher,
	sched *scheduler.Scheduler, retry *tasklib.RetryConfig, l logger.Logger) *Syncer {
	cfg := tasklib.DefaultRetryConfig()
	if retry != nil {
		cfg = *retry
	}
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Syncer{api: a, mail: mail, tt: tt, pusher: pusher, sched: sched, retry: cfg, log: l}
}

// SyncExchange upserts the user's Exchange calendar view. Events keep
// their bridge-assigned UID under the exchange- prefix, so a re-sync
// updates in place instead of duplicating.
func (s *Syncer) SyncExchange(ctx context.Context, userID string) (*SyncReport, error) {
	if s.mail == nil {
		return &SyncReport{}, nil
	}
	events, err := s.mail.FetchEvents(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("exchange fetch for %s failed: %w", userID, err)
	}

	report := &SyncReport{Fetched: len(events)}
	for _, ev := range events {
		if ev.UID == "" || ev.Subject == "" {
			report.Failed++
			continue
		}
		t := eventTask(ExchangeIDPrefix, ev)
		existing, err := s.api.Store().GetTask(ctx, t.ID)
		switch {
		case err == nil && existing.UserID == userID:
			t.Completed = existing.Completed
			t.PushedToMSTodo = existing.PushedToMSTodo
			if _, err := s.api.UpdateTask(ctx, userID, t, api.Advisory); err != nil {
				s.log.Warning("exchange update of %s failed: %s", t.ID, err.Error())
				report.Failed++
				continue
			}
			report.Updated++
		case errors.Is(err, tasklib.ErrTaskNotFound):
			if _, err := s.api.AddTask(ctx, userID, t, api.Advisory); err != nil {
				s.log.Warning("exchange add of %s failed: %s", t.ID, err.Error())
				report.Failed++
				continue
			}
			report.Created++
		default:
			report.Failed++
		}
	}
	s.log.Info("exchange sync for %s: %d fetched, %d created, %d updated, %d failed",
		userID, report.Fetched, report.Created, report.Updated, report.Failed)
	return report, nil
}

// SyncTimetable replaces the user's timetable tasks wholesale: the
// portal is the source of truth for its own entries, so stale rows are
// dropped before the fresh set is admitted. A fetch failure leaves the
// previous set untouched.
func (s *Syncer) SyncTimetable(ctx context.Context, userID string) (*SyncReport, error) {
	if s.tt == nil {
		return &SyncReport{}, nil
	}
	entries, err := s.tt.FetchEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("timetable fetch for %s failed: %w", userID, err)
	}

	removed, err := s.api.DeleteTasksMatching(ctx, userID, TimetableIDPrefix+"%")
	if err != nil {
		return nil, err
	}
	report := &SyncReport{Fetched: len(entries), Removed: removed}
	for _, ev := range entries {
		if ev.UID == "" || ev.Subject == "" {
			report.Failed++
			continue
		}
		t := eventTask(TimetableIDPrefix, ev)
		if _, err := s.api.AddTask(ctx, userID, t, api.Advisory); err != nil {
			s.log.Warning("timetable add of %s failed: %s", t.ID, err.Error())
			report.Failed++
			continue
		}
		report.Created++
	}
	s.log.Info("timetable sync for %s: %d fetched, %d created, %d removed, %d failed",
		userID, report.Fetched, report.Created, report.Removed, report.Failed)
	return report, nil
}

// PushCompleted mirrors every completed-but-unpushed task into the
// user's To-Do list. A push failure schedules a bounded retry; the
// pushed flag only latches after a confirmed delivery.
func (s *Syncer) PushCompleted(ctx context.Context, userID string) error {
	if s.pusher == nil {
		return nil
	}
	tasks, err := s.api.Store().ListAllTasks(ctx, userID)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if !t.Completed || t.PushedToMSTodo {
			continue
		}
		s.pushOne(ctx, userID, t, 0)
	}
	return nil
}

// pushOne attempts a single delivery; attempts counts prior failures.
func (s *Syncer) pushOne(ctx context.Context, userID string, t *tasklib.Task, attempts int) {
	if err := s.pusher.Push(ctx, userID, t); err != nil {
		attempts++
		if s.sched == nil || !s.retry.ShouldRetry(attempts) {
			s.log.Error("todo push of %s gave up after %d attempt(s): %v", t.ID, attempts, err)
			return
		}
		delay := s.retry.Backoff(attempts)
		s.log.Warning("todo push of %s failed (attempt %d), retrying in %s: %s",
			t.ID, attempts, delay, err.Error())
		s.sched.Add(scheduler.Job{
			Key:      JobTodoPush + userID + ":" + t.ID,
			RunAt:    time.Now().Add(delay),
			Attempts: attempts,
		})
		return
	}
	if err := s.api.MarkPushed(ctx, userID, t.ID); err != nil {
		s.log.Error("todo push of %s delivered but latch failed: %v", t.ID, err)
	}
}

// HandleJob dispatches a fired scheduler job to the matching sync.
// Unknown keys are logged and dropped.
func (s *Syncer) HandleJob(ctx context.Context, job scheduler.Job) {
	switch {
	case strings.HasPrefix(job.Key, JobSyncExchange):
		userID := strings.TrimPrefix(job.Key, JobSyncExchange)
		if _, err := s.SyncExchange(ctx, userID); err != nil {
			s.log.Error("scheduled exchange sync: %v", err)
		}
		if err := s.PushCompleted(ctx, userID); err != nil {
			s.log.Error("scheduled todo push: %v", err)
		}

	case strings.HasPrefix(job.Key, JobSyncTimetable):
		userID := strings.TrimPrefix(job.Key, JobSyncTimetable)
		if _, err := s.SyncTimetable(ctx, userID); err != nil {
			s.log.Error("scheduled timetable sync: %v", err)
		}

	case strings.HasPrefix(job.Key, JobTodoPush):
		rest := strings.TrimPrefix(job.Key, JobTodoPush)
		userID, taskID, ok := strings.Cut(rest, ":")
		if !ok {
			s.log.Warning("malformed retry job key %q", job.Key)
			return
		}
		t, err := s.api.Store().GetTask(ctx, taskID)
		if err != nil || t.UserID != userID || !t.Completed || t.PushedToMSTodo {
			return
		}
		s.pushOne(ctx, userID, t, job.Attempts)

	default:
		s.log.Warning("unknown scheduler job key %q", job.Key)
	}
}
