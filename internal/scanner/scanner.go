// Package scanner watches the per-user cache for occurrences whose
// start time has just elapsed and pushes "starting" or "canceled"
// signals to the owning user's connections.
package scanner

import (
	"context"
	"time"

	"github.com/taskfuse/taskfuse/internal/cache"
	"github.com/taskfuse/taskfuse/pkg/logger"
	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

// OccurrenceNotifier receives the scanner's signals. Delivery is
// fire-and-forget.
type OccurrenceNotifier interface {
	TaskStarting(userID string, t *tasklib.Task)
	TaskCanceled(userID string, t *tasklib.Task)
}

// Scanner polls the cache on a fixed interval. A process-lifetime set
// of announced task ids prevents duplicate announcements.
type Scanner struct {
	cache     *cache.Registry
	notifier  OccurrenceNotifier
	log       logger.Logger
	interval  time.Duration
	announced *tasklib.VMap[string, struct{}]
}

// New creates a Scanner over the cache with the given polling interval.
func New(c *cache.Registry, n OccurrenceNotifier, l logger.Logger, interval time.Duration) *Scanner {
	if l == nil {
		l = logger.NewNopLogger()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scanner{
		cache:     c,
		notifier:  n,
		log:       l,
		interval:  interval,
		announced: tasklib.NewVMap[string, struct{}](),
	}
}

// Run polls until the context is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(time.Now())
		}
	}
}

// Sweep announces every cached task whose start time has elapsed and
// that has not been announced yet. A task completed before its start
// is announced as canceled instead of starting. Tasks already stale by
// more than two intervals at first sight (e.g. at daemon start) are
// marked announced silently.
func (s *Scanner) Sweep(now time.Time) {
	lookback := 2 * s.interval
	for _, userID := range s.cache.Users() {
		for _, t := range s.cache.Get(userID) {
			start, ok := tasklib.ParseTime(t.StartTime)
			if !ok || start.After(now) {
				continue
			}
			if s.announced.Has(t.ID) {
				continue
			}
			s.announced.Set(t.ID, struct{}{})
			if now.Sub(start) > lookback {
				continue
			}
			if t.Completed {
				s.notifier.TaskCanceled(userID, t)
			} else {
				s.notifier.TaskStarting(userID, t)
			}
		}
	}
}
