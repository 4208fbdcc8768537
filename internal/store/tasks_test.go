package store

import (
	"context"
	"errors"
	"testing"

	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

func TestAddTaskValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		task    *tasklib.Task
		wantErr error
	}{
		{
			name:    "empty name",
			task:    &tasklib.Task{Name: "   "},
			wantErr: tasklib.ErrNameRequired,
		},
		{
			name:    "bad importance",
			task:    &tasklib.Task{Name: "x", Importance: "urgent"},
			wantErr: tasklib.ErrInvalidImportance,
		},
		{
			name:    "rule on occurrence",
			task:    &tasklib.Task{Name: "x", ParentTaskID: "p", RecurrenceRule: `{"freq":"daily"}`},
			wantErr: tasklib.ErrRuleOnOccurrence,
		},
		{
			name:    "type vs rule mismatch",
			task:    &tasklib.Task{Name: "x", ScheduleType: tasklib.ScheduleDaily, RecurrenceRule: `{"freq":"weekly"}`},
			wantErr: tasklib.ErrScheduleTypeMismatch,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := s.AddTask(ctx, "u1", tc.task, tasklib.BoundaryExclusive, true)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestAddTaskNormalizesAndDerives(t *testing.T) {
	s := newTestStore(t)

	created := mustAdd(t, s, "u1", &tasklib.Task{
		Name:           "lecture",
		StartTime:      "2026-03-02 09:00:00",
		EndTime:        "2026-03-02T10:00:00+02:00",
		RecurrenceRule: `{"freq":"weekly"}`,
	})
	if created.ID == "" {
		t.Fatal("id should be generated")
	}
	if created.StartTime != "2026-03-02T09:00:00Z" || created.EndTime != "2026-03-02T08:00:00Z" {
		t.Errorf("times not normalized: %s / %s", created.StartTime, created.EndTime)
	}
	if created.ScheduleType != tasklib.ScheduleWeekly {
		t.Errorf("schedule type not derived: %q", created.ScheduleType)
	}

	// Round trip through the database.
	got, err := s.GetTask(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Name != "lecture" || got.ScheduleType != tasklib.ScheduleWeekly || got.StartTime != created.StartTime {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestAddTaskBlockingVsAdvisory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustAdd(t, s, "u1", timedTask("existing", "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"))

	clash := timedTask("clash", "2026-03-02T09:30:00Z", "2026-03-02T10:30:00Z")

	// Blocking refuses the overlap with a ConflictError.
	_, _, err := s.AddTask(ctx, "u1", clash, tasklib.BoundaryExclusive, false)
	var ce *tasklib.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConflictError, got %v", err)
	}
	if len(ce.Conflicts) != 1 || ce.Conflicts[0].Name != "existing" {
		t.Fatalf("unexpected conflicts: %+v", ce.Conflicts)
	}

	// Advisory admits the same task.
	created, cs, err := s.AddTask(ctx, "u1", clash, tasklib.BoundaryExclusive, true)
	if err != nil {
		t.Fatalf("advisory add failed: %v", err)
	}
	if len(cs.Added) != 1 || cs.Added[0] != created.ID {
		t.Fatalf("change set should report the added id: %+v", cs)
	}

	// Another user's tasks never enter the comparison set.
	_, _, err = s.AddTask(ctx, "u2",
		timedTask("other user", "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"),
		tasklib.BoundaryExclusive, false)
	if err != nil {
		t.Fatalf("cross-user add should not conflict: %v", err)
	}
}

func TestUpdateTaskExcludesSelf(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustAdd(t, s, "u1", timedTask("solo", "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"))

	// Shifting the only task within its own old window must not
	// conflict with itself, even in blocking mode.
	created.StartTime = "2026-03-02T09:15:00Z"
	created.EndTime = "2026-03-02T10:15:00Z"
	updated, cs, err := s.UpdateTask(ctx, "u1", created, tasklib.BoundaryExclusive, false)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.StartTime != "2026-03-02T09:15:00Z" {
		t.Errorf("start not updated: %s", updated.StartTime)
	}
	if len(cs.Updated) != 1 || cs.Updated[0] != created.ID {
		t.Errorf("change set should report the updated id: %+v", cs)
	}

	// Unknown id.
	_, _, err = s.UpdateTask(ctx, "u1", &tasklib.Task{ID: "ghost", Name: "x"}, tasklib.BoundaryExclusive, true)
	if !errors.Is(err, tasklib.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}

	// Wrong owner.
	_, _, err = s.UpdateTask(ctx, "u2", created, tasklib.BoundaryExclusive, true)
	if !errors.Is(err, tasklib.ErrTaskNotFound) {
		t.Errorf("cross-user update should look like not-found, got %v", err)
	}
}

func TestPatchTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustAdd(t, s, "u1", timedTask("patchme", "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"))
	mustAdd(t, s, "u1", timedTask("wall", "2026-03-02T11:00:00Z", "2026-03-02T12:00:00Z"))

	// Non-time patch never re-runs conflict detection.
	name := "renamed"
	done := true
	patched, _, err := s.PatchTask(ctx, "u1", created.ID, &TaskPatch{Name: &name, Completed: &done}, tasklib.BoundaryExclusive, false)
	if err != nil {
		t.Fatalf("PatchTask: %v", err)
	}
	if patched.Name != "renamed" || !patched.Completed {
		t.Errorf("patch not applied: %+v", patched)
	}
	if patched.StartTime != "2026-03-02T09:00:00Z" {
		t.Errorf("untouched field changed: %s", patched.StartTime)
	}

	// Moving into the wall in blocking mode is refused.
	newStart := "2026-03-02T11:30:00Z"
	newEnd := "2026-03-02T12:30:00Z"
	_, _, err = s.PatchTask(ctx, "u1", created.ID, &TaskPatch{StartTime: &newStart, EndTime: &newEnd}, tasklib.BoundaryExclusive, false)
	var ce *tasklib.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// Same move passes in advisory mode.
	if _, _, err = s.PatchTask(ctx, "u1", created.ID, &TaskPatch{StartTime: &newStart, EndTime: &newEnd}, tasklib.BoundaryExclusive, true); err != nil {
		t.Fatalf("advisory patch: %v", err)
	}

	// Patching a missing task is an error, unlike deleting one.
	_, _, err = s.PatchTask(ctx, "u1", "ghost", &TaskPatch{Name: &name}, tasklib.BoundaryExclusive, true)
	if !errors.Is(err, tasklib.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestTouchesTimes(t *testing.T) {
	v := "2026-03-02T09:00:00Z"
	name := "x"
	if (&TaskPatch{Name: &name}).TouchesTimes() {
		t.Error("name-only patch should not touch times")
	}
	if !(&TaskPatch{StartTime: &v}).TouchesTimes() || !(&TaskPatch{EndTime: &v}).TouchesTimes() {
		t.Error("time patches should touch times")
	}
}

func TestDeleteTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustAdd(t, s, "u1", timedTask("gone", "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"))

	removed, cs, err := s.DeleteTask(ctx, "u1", created.ID)
	if err != nil || !removed {
		t.Fatalf("DeleteTask: removed=%v err=%v", removed, err)
	}
	if len(cs.Deleted) != 1 || cs.Deleted[0] != created.ID {
		t.Fatalf("change set: %+v", cs)
	}

	// Deleting an absent id reports false without error.
	removed, cs, err = s.DeleteTask(ctx, "u1", created.ID)
	if err != nil || removed || !cs.Empty() {
		t.Fatalf("second delete: removed=%v cs=%+v err=%v", removed, cs, err)
	}
}

func TestDeleteTaskCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	root := mustAdd(t, s, "u1", &tasklib.Task{
		Name:           "series",
		StartTime:      "2026-03-02T09:00:00Z",
		EndTime:        "2026-03-02T10:00:00Z",
		RecurrenceRule: `{"freq":"daily","count":3}`,
	})
	rule, _ := tasklib.ParseRule(root.RecurrenceRule)
	for _, occ := range tasklib.Expand(root, rule) {
		mustAdd(t, s, "u1", occ)
	}
	bystander := mustAdd(t, s, "u1", timedTask("bystander", "2026-04-01T09:00:00Z", "2026-04-01T10:00:00Z"))

	occs, err := s.ListOccurrences(ctx, "u1", root.ID)
	if err != nil || len(occs) != 2 {
		t.Fatalf("ListOccurrences: %d, %v", len(occs), err)
	}

	cs, err := s.DeleteTaskCascade(ctx, "u1", root.ID)
	if err != nil {
		t.Fatalf("DeleteTaskCascade: %v", err)
	}
	if len(cs.Deleted) != 3 {
		t.Fatalf("cascade should delete root plus 2 occurrences, got %v", cs.Deleted)
	}

	remaining, _ := s.ListAllTasks(ctx, "u1")
	if len(remaining) != 1 || remaining[0].ID != bystander.ID {
		t.Fatalf("bystander should survive, got %d tasks", len(remaining))
	}
}

func TestDeleteTasksByPattern(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"timetable-a", "timetable-b", "exchange-c"} {
		task := timedTask(id, "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z")
		task.ID = id
		mustAdd(t, s, "u1", task)
	}

	n, cs, err := s.DeleteTasksByPattern(ctx, "u1", "timetable-%")
	if err != nil {
		t.Fatalf("DeleteTasksByPattern: %v", err)
	}
	if n != 2 || len(cs.Deleted) != 2 {
		t.Fatalf("deleted %d (%v), want 2", n, cs.Deleted)
	}

	// No matches: zero count, empty change set, no error.
	n, cs, err = s.DeleteTasksByPattern(ctx, "u1", "timetable-%")
	if err != nil || n != 0 || !cs.Empty() {
		t.Fatalf("empty pattern delete: n=%d cs=%+v err=%v", n, cs, err)
	}

	remaining, _ := s.ListAllTasks(ctx, "u1")
	if len(remaining) != 1 || remaining[0].ID != "exchange-c" {
		t.Fatalf("exchange task should survive")
	}
}

func TestMarkPushedLatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustAdd(t, s, "u1", timedTask("pushme", "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"))

	if _, err := s.MarkPushed(ctx, "u1", created.ID); err != nil {
		t.Fatalf("MarkPushed: %v", err)
	}
	got, _ := s.GetTask(ctx, created.ID)
	if !got.PushedToMSTodo {
		t.Fatal("latch not set")
	}

	if _, err := s.MarkPushed(ctx, "u1", created.ID); err != nil {
		t.Fatalf("second MarkPushed should be a no-op success: %v", err)
	}
	got, _ = s.GetTask(ctx, created.ID)
	if !got.PushedToMSTodo {
		t.Fatal("latch must never reset")
	}

	if _, err := s.MarkPushed(ctx, "u1", "ghost"); !errors.Is(err, tasklib.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestListTasksFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustAdd(t, s, "u1", timedTask("alpha standup", "2026-03-02T09:00:00Z", "2026-03-02T09:30:00Z"))
	mustAdd(t, s, "u1", timedTask("beta lecture", "2026-03-03T10:00:00Z", "2026-03-03T12:00:00Z"))
	done := timedTask("gamma review", "2026-03-04T14:00:00Z", "2026-03-04T15:00:00Z")
	done.Completed = true
	mustAdd(t, s, "u1", done)

	t.Run("window overlap", func(t *testing.T) {
		tasks, err := s.ListTasks(ctx, "u1", ListFilter{
			WindowStart: "2026-03-03T00:00:00Z",
			WindowEnd:   "2026-03-03T23:59:59Z",
		})
		if err != nil || len(tasks) != 1 || tasks[0].Name != "beta lecture" {
			t.Fatalf("got %d tasks, err %v", len(tasks), err)
		}
	})

	t.Run("search", func(t *testing.T) {
		tasks, err := s.ListTasks(ctx, "u1", ListFilter{Search: "lecture"})
		if err != nil || len(tasks) != 1 || tasks[0].Name != "beta lecture" {
			t.Fatalf("got %d tasks, err %v", len(tasks), err)
		}
	})

	t.Run("completed filter", func(t *testing.T) {
		v := true
		tasks, err := s.ListTasks(ctx, "u1", ListFilter{Completed: &v})
		if err != nil || len(tasks) != 1 || tasks[0].Name != "gamma review" {
			t.Fatalf("got %d tasks, err %v", len(tasks), err)
		}
	})

	t.Run("sort descending", func(t *testing.T) {
		tasks, err := s.ListTasks(ctx, "u1", ListFilter{SortBy: "startTime", SortDesc: true})
		if err != nil || len(tasks) != 3 {
			t.Fatalf("got %d tasks, err %v", len(tasks), err)
		}
		if tasks[0].Name != "gamma review" {
			t.Errorf("first = %s", tasks[0].Name)
		}
	})

	t.Run("unknown sort column falls back", func(t *testing.T) {
		tasks, err := s.ListTasks(ctx, "u1", ListFilter{SortBy: "evil; DROP TABLE tasks"})
		if err != nil || len(tasks) != 3 {
			t.Fatalf("got %d tasks, err %v", len(tasks), err)
		}
		if tasks[0].Name != "alpha standup" {
			t.Errorf("fallback sort wrong, first = %s", tasks[0].Name)
		}
	})

	t.Run("limit and offset", func(t *testing.T) {
		tasks, err := s.ListTasks(ctx, "u1", ListFilter{Limit: 1, Offset: 1})
		if err != nil || len(tasks) != 1 || tasks[0].Name != "beta lecture" {
			t.Fatalf("got %d tasks, err %v", len(tasks), err)
		}
	})
}
