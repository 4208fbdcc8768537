package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/taskfuse/taskfuse/internal/cache"
	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

// fakeNotifier records which signals fired for which tasks.
type fakeNotifier struct {
	starting []string
	canceled []string
}

func (f *fakeNotifier) TaskStarting(_ string, t *tasklib.Task) {
	f.starting = append(f.starting, t.ID)
}

func (f *fakeNotifier) TaskCanceled(_ string, t *tasklib.Task) {
	f.canceled = append(f.canceled, t.ID)
}

// memLoader backs the cache registry without a database.
type memLoader struct {
	byUser map[string][]*tasklib.Task
}

func (m *memLoader) GetTask(_ context.Context, id string) (*tasklib.Task, error) {
	for _, tasks := range m.byUser {
		for _, t := range tasks {
			if t.ID == id {
				return t, nil
			}
		}
	}
	return nil, tasklib.ErrTaskNotFound
}

func (m *memLoader) ListAllTasks(_ context.Context, userID string) ([]*tasklib.Task, error) {
	return m.byUser[userID], nil
}

func loadedCache(t *testing.T, byUser map[string][]*tasklib.Task) *cache.Registry {
	t.Helper()
	r := cache.NewRegistry(&memLoader{byUser: byUser}, nil)
	for userID := range byUser {
		if err := r.Load(context.Background(), userID); err != nil {
			t.Fatalf("Load(%s): %v", userID, err)
		}
	}
	return r
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func TestSweepAnnouncesElapsedStarts(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 30, 0, time.UTC)
	r := loadedCache(t, map[string][]*tasklib.Task{
		"u1": {
			{ID: "due", Name: "due", StartTime: stamp(now.Add(-20 * time.Second))},
			{ID: "future", Name: "future", StartTime: stamp(now.Add(time.Hour))},
			{ID: "garbled", Name: "garbled", StartTime: "not-a-time"},
		},
	})
	n := &fakeNotifier{}
	s := New(r, n, nil, 30*time.Second)

	s.Sweep(now)
	if len(n.starting) != 1 || n.starting[0] != "due" {
		t.Fatalf("starting = %v", n.starting)
	}
	if len(n.canceled) != 0 {
		t.Fatalf("canceled = %v", n.canceled)
	}

	// A second sweep announces nothing new.
	s.Sweep(now.Add(time.Minute))
	if len(n.starting) != 1 {
		t.Fatalf("duplicate announcement: %v", n.starting)
	}

	// The future task fires once its start elapses.
	s.Sweep(now.Add(2 * time.Hour))
	if len(n.starting) != 1 {
		// Stale by more than two intervals at that point; silent.
		t.Fatalf("stale future task should be silent, got %v", n.starting)
	}
}

func TestSweepCanceledForPreCompleted(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 30, 0, time.UTC)
	r := loadedCache(t, map[string][]*tasklib.Task{
		"u1": {
			{ID: "done", Name: "done", StartTime: stamp(now.Add(-10 * time.Second)), Completed: true},
		},
	})
	n := &fakeNotifier{}
	New(r, n, nil, 30*time.Second).Sweep(now)

	if len(n.canceled) != 1 || n.canceled[0] != "done" {
		t.Fatalf("canceled = %v", n.canceled)
	}
	if len(n.starting) != 0 {
		t.Fatalf("completed task must not announce starting: %v", n.starting)
	}
}

func TestSweepSilencesStaleBacklog(t *testing.T) {
	// Simulates daemon start: tasks whose starts elapsed long ago are
	// marked announced without a signal.
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	r := loadedCache(t, map[string][]*tasklib.Task{
		"u1": {
			{ID: "ancient", Name: "ancient", StartTime: stamp(now.Add(-3 * time.Hour))},
			{ID: "fresh", Name: "fresh", StartTime: stamp(now.Add(-15 * time.Second))},
		},
	})
	n := &fakeNotifier{}
	s := New(r, n, nil, 30*time.Second)

	s.Sweep(now)
	if len(n.starting) != 1 || n.starting[0] != "fresh" {
		t.Fatalf("starting = %v, want only the fresh task", n.starting)
	}

	// The silently-absorbed task stays silent forever.
	s.Sweep(now.Add(time.Minute))
	if len(n.starting) != 1 {
		t.Fatalf("stale task announced late: %v", n.starting)
	}
}

func TestSweepCoversAllLoadedUsers(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 30, 0, time.UTC)
	r := loadedCache(t, map[string][]*tasklib.Task{
		"u1": {{ID: "a", Name: "a", StartTime: stamp(now.Add(-5 * time.Second))}},
		"u2": {{ID: "b", Name: "b", StartTime: stamp(now.Add(-5 * time.Second))}},
	})
	n := &fakeNotifier{}
	New(r, n, nil, 30*time.Second).Sweep(now)

	if len(n.starting) != 2 {
		t.Fatalf("starting = %v, want both users' tasks", n.starting)
	}
}
