package api

import (
	"context"
	"errors"
	"testing"

	"github.com/taskfuse/taskfuse/internal/store"
	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

func TestApproveReplaysThroughAdmission(t *testing.T) {
	a, n := newTestApi(t)
	ctx := context.Background()

	// Pre-existing task the queued request will collide with.
	if _, err := a.AddTask(ctx, "u1", timed("busy", "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"), Advisory); err != nil {
		t.Fatal(err)
	}

	entry, err := a.Enqueue(ctx, "u1", &QueuedRequest{
		Task:   *timed("dentist", "2026-03-02T09:30:00Z", "2026-03-02T10:30:00Z"),
		Origin: "llm",
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Enqueueing admits nothing.
	if got := a.Cache().Get("u1"); len(got) != 1 {
		t.Fatalf("enqueue wrote a task: %d cached", len(got))
	}

	res, err := a.Approve(ctx, "u1", entry.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if res.Task.Name != "dentist" {
		t.Errorf("approved task = %q", res.Task.Name)
	}
	// Approval is advisory: the overlap comes back as a warning.
	if len(res.Conflicts) != 1 || res.Conflicts[0].Name != "busy" {
		t.Errorf("conflicts = %+v", res.Conflicts)
	}

	// The entry is gone after approval.
	if _, err := a.Store().GetQueueEntry(ctx, entry.ID); !errors.Is(err, tasklib.ErrQueueEntryNotFound) {
		t.Errorf("entry should be removed, got %v", err)
	}

	if got := n.actions(); got[len(got)-1] != ActionCreated {
		t.Errorf("approval should notify created, got %v", got)
	}
}

func TestApproveOwnerOnly(t *testing.T) {
	a, _ := newTestApi(t)
	ctx := context.Background()

	entry, err := a.Enqueue(ctx, "u1", &QueuedRequest{Task: *timed("x", "", "")})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := a.Approve(ctx, "u2", entry.ID); !errors.Is(err, tasklib.ErrNotQueueOwner) {
		t.Errorf("foreign approve: got %v", err)
	}
	if err := a.Reject(ctx, "u2", entry.ID); !errors.Is(err, tasklib.ErrNotQueueOwner) {
		t.Errorf("foreign reject: got %v", err)
	}
	if _, err := a.Approve(ctx, "u1", "ghost"); !errors.Is(err, tasklib.ErrQueueEntryNotFound) {
		t.Errorf("ghost approve: got %v", err)
	}

	// The entry survived all the failed dispositions.
	entries, _ := a.ListQueue(ctx, "u1")
	if len(entries) != 1 {
		t.Fatalf("entry lost: %d remaining", len(entries))
	}
}

func TestReject(t *testing.T) {
	a, n := newTestApi(t)
	ctx := context.Background()

	entry, err := a.Enqueue(ctx, "u1", &QueuedRequest{Task: *timed("unwanted", "", "")})
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Reject(ctx, "u1", entry.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	entries, _ := a.ListQueue(ctx, "u1")
	if len(entries) != 0 {
		t.Fatalf("rejected entry retained: %d", len(entries))
	}
	// Rejection creates no task and pushes no task event.
	if got := a.Cache().Get("u1"); len(got) != 0 {
		t.Errorf("reject created a task")
	}
	if got := n.actions(); len(got) != 0 {
		t.Errorf("reject notified: %v", got)
	}
}

func TestDispatchIntent(t *testing.T) {
	a, _ := newTestApi(t)
	ctx := context.Background()

	t.Run("create is queued", func(t *testing.T) {
		out, err := a.DispatchIntent(ctx, "u1", &IntentEnvelope{
			Type:    IntentCreateTask,
			Payload: []byte(`{"task":{"name":"from llm","startTime":"2026-03-02T09:00:00Z","endTime":"2026-03-02T10:00:00Z"},"sourceEmail":"boss@example.com"}`),
		})
		if err != nil {
			t.Fatalf("DispatchIntent: %v", err)
		}
		if out.Queued == nil || out.Result != nil {
			t.Fatalf("create intent should queue, got %+v", out)
		}
		if got := a.Cache().Get("u1"); len(got) != 0 {
			t.Fatal("create intent admitted a task directly")
		}
	})

	t.Run("query", func(t *testing.T) {
		if _, err := a.AddTask(ctx, "u1", timed("visible", "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"), Advisory); err != nil {
			t.Fatal(err)
		}
		out, err := a.DispatchIntent(ctx, "u1", &IntentEnvelope{
			Type:    IntentQuerySchedule,
			Payload: []byte(`{"search":"visible"}`),
		})
		if err != nil {
			t.Fatalf("query intent: %v", err)
		}
		if len(out.Tasks) != 1 || out.Tasks[0].Name != "visible" {
			t.Fatalf("tasks = %+v", out.Tasks)
		}
	})

	t.Run("update", func(t *testing.T) {
		res, err := a.AddTask(ctx, "u1", timed("patchable", "2026-03-03T09:00:00Z", "2026-03-03T10:00:00Z"), Advisory)
		if err != nil {
			t.Fatal(err)
		}
		out, err := a.DispatchIntent(ctx, "u1", &IntentEnvelope{
			Type:    IntentUpdateTask,
			Payload: []byte(`{"id":"` + res.Task.ID + `","patch":{"name":"patched"}}`),
		})
		if err != nil {
			t.Fatalf("update intent: %v", err)
		}
		if out.Result == nil || out.Result.Task.Name != "patched" {
			t.Fatalf("result = %+v", out.Result)
		}
	})

	t.Run("delete", func(t *testing.T) {
		res, err := a.AddTask(ctx, "u1", timed("deletable", "2026-03-04T09:00:00Z", "2026-03-04T10:00:00Z"), Advisory)
		if err != nil {
			t.Fatal(err)
		}
		out, err := a.DispatchIntent(ctx, "u1", &IntentEnvelope{
			Type:    IntentDeleteTask,
			Payload: []byte(`{"id":"` + res.Task.ID + `"}`),
		})
		if err != nil {
			t.Fatalf("delete intent: %v", err)
		}
		if out.Text != "removed=true" {
			t.Errorf("text = %q", out.Text)
		}
	})

	t.Run("current time", func(t *testing.T) {
		out, err := a.DispatchIntent(ctx, "u1", &IntentEnvelope{Type: IntentCurrentTime})
		if err != nil || out.Text == "" {
			t.Fatalf("current_time: %q, %v", out.Text, err)
		}
	})

	t.Run("log note", func(t *testing.T) {
		out, err := a.DispatchIntent(ctx, "u1", &IntentEnvelope{
			Type:    IntentLogNote,
			Payload: []byte(`{"message":"remember the milk"}`),
		})
		if err != nil || out.Text != "noted" {
			t.Fatalf("log_note: %+v, %v", out, err)
		}
		logs, _ := a.Store().ListLogs(ctx, "u1", 0)
		found := false
		for _, e := range logs {
			if e.Message == "remember the milk" {
				found = true
			}
		}
		if !found {
			t.Error("note not persisted")
		}
	})

	t.Run("errors", func(t *testing.T) {
		if _, err := a.DispatchIntent(ctx, "u1", &IntentEnvelope{Type: "mystery"}); err == nil {
			t.Error("unknown type should error")
		}
		if _, err := a.DispatchIntent(ctx, "u1", &IntentEnvelope{Type: IntentUpdateTask}); err == nil {
			t.Error("missing payload should error")
		}
		if _, err := a.DispatchIntent(ctx, "u1", &IntentEnvelope{
			Type:    IntentUpdateTask,
			Payload: []byte(`{"patch":{}}`),
		}); err == nil {
			t.Error("missing id should error")
		}
		if _, err := a.DispatchIntent(ctx, "u1", &IntentEnvelope{
			Type:    IntentCreateTask,
			Payload: []byte(`{broken`),
		}); err == nil {
			t.Error("malformed payload should error")
		}
	})
}

func TestBulkHelpers(t *testing.T) {
	a, _ := newTestApi(t)
	ctx := context.Background()

	for _, id := range []string{"timetable-1", "timetable-2", "exchange-1"} {
		task := timed(id, "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z")
		task.ID = id
		if _, err := a.AddTask(ctx, "u1", task, Advisory); err != nil {
			t.Fatal(err)
		}
	}

	n, err := a.DeleteTasksMatching(ctx, "u1", "timetable-%")
	if err != nil || n != 2 {
		t.Fatalf("DeleteTasksMatching: n=%d err=%v", n, err)
	}
	if got := a.Cache().Get("u1"); len(got) != 1 || got[0].ID != "exchange-1" {
		t.Fatalf("cache after bulk delete: %+v", got)
	}

	if err := a.MarkPushed(ctx, "u1", "exchange-1"); err != nil {
		t.Fatalf("MarkPushed: %v", err)
	}
	if got := a.Cache().Get("u1"); !got[0].PushedToMSTodo {
		t.Error("cache missed the pushed latch")
	}

	var filter store.ListFilter
	tasks, err := a.ListTasks(ctx, "u1", filter)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("ListTasks after bulk delete: %d, %v", len(tasks), err)
	}
}
