package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

const taskColumns = `id, user_id, name, description, location, attendees, importance,
	reminder, start_time, end_time, due_date, schedule_type, recurrence_rule,
	parent_task_id, completed, pushed_to_mstodo, created_at, updated_at`

// scanTask reads one task row.
func scanTask(row interface{ Scan(...any) error }) (*tasklib.Task, error) {
	var t tasklib.Task
	var attendees string
	var reminder, completed, pushed int
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Description, &t.Location,
		&attendees, &t.Importance, &reminder, &t.StartTime, &t.EndTime,
		&t.DueDate, &t.ScheduleType, &t.RecurrenceRule, &t.ParentTaskID,
		&completed, &pushed, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if attendees != "" && attendees != "[]" {
		_ = json.Unmarshal([]byte(attendees), &t.Attendees)
	}
	t.Reminder = reminder != 0
	t.Completed = completed != 0
	t.PushedToMSTodo = pushed != 0
	return &t, nil
}

// prepareTask normalizes and validates a task before it hits a write
// statement: UTC times, importance, schedule type vs rule consistency.
func prepareTask(t *tasklib.Task) error {
	if strings.TrimSpace(t.Name) == "" {
		return tasklib.ErrNameRequired
	}
	if !t.Importance.Valid() {
		return fmt.Errorf("%w: %q", tasklib.ErrInvalidImportance, t.Importance)
	}
	if t.ParentTaskID != "" && t.RecurrenceRule != "" {
		return tasklib.ErrRuleOnOccurrence
	}
	st, err := tasklib.ResolveScheduleType(t.ScheduleType, t.RecurrenceRule, false)
	if err != nil {
		return err
	}
	t.ScheduleType = st
	t.NormalizeTimes()
	return nil
}

// AddTask persists a new task for the user. When allowConflict is
// false the write is re-validated against every persisted task of the
// user and aborted with a *tasklib.ConflictError on overlap; when true
// it persists unconditionally (the caller has already computed and
// reported conflicts for warning purposes).
func (s *Store) AddTask(ctx context.Context, userID string, t *tasklib.Task, policy tasklib.BoundaryPolicy, allowConflict bool) (*tasklib.Task, ChangeSet, error) {
	if err := prepareTask(t); err != nil {
		return nil, ChangeSet{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.UserID = userID

	if !allowConflict {
		existing, err := s.ListAllTasks(ctx, userID)
		if err != nil {
			return nil, ChangeSet{}, err
		}
		if err := tasklib.AssertNoConflict(existing, t, policy); err != nil {
			return nil, ChangeSet{}, err
		}
	}

	ts := now()
	t.CreatedAt, t.UpdatedAt = ts, ts
	_, err := s.db.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, userID, t.Name, t.Description, t.Location, marshalJSON(t.Attendees),
		string(t.Importance), boolInt(t.Reminder), t.StartTime, t.EndTime, t.DueDate,
		string(t.ScheduleType), t.RecurrenceRule, t.ParentTaskID,
		boolInt(t.Completed), boolInt(t.PushedToMSTodo), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, ChangeSet{}, err
	}
	s.appendLog(ctx, userID, "task_created", "Task created: "+t.Name, t)
	return t, ChangeSet{Added: []string{t.ID}}, nil
}

// UpdateTask replaces an existing task wholesale under the same
// admission-mode split as AddTask, excluding the task's own prior self
// from the conflict comparison set.
func (s *Store) UpdateTask(ctx context.Context, userID string, t *tasklib.Task, policy tasklib.BoundaryPolicy, allowConflict bool) (*tasklib.Task, ChangeSet, error) {
	if err := prepareTask(t); err != nil {
		return nil, ChangeSet{}, err
	}
	prev, err := s.GetTask(ctx, t.ID)
	if err != nil {
		return nil, ChangeSet{}, err
	}
	if prev.UserID != userID {
		return nil, ChangeSet{}, tasklib.ErrTaskNotFound
	}

	if !allowConflict {
		existing, err := s.ListAllTasks(ctx, userID)
		if err != nil {
			return nil, ChangeSet{}, err
		}
		// FindConflicts already excludes the candidate by id.
		if err := tasklib.AssertNoConflict(existing, t, policy); err != nil {
			return nil, ChangeSet{}, err
		}
	}

	t.UserID = userID
	t.CreatedAt = prev.CreatedAt
	t.UpdatedAt = now()
	_, err = s.db.ExecContext(ctx, `UPDATE tasks SET name=?, description=?,
		location=?, attendees=?, importance=?, reminder=?, start_time=?,
		end_time=?, due_date=?, schedule_type=?, recurrence_rule=?,
		parent_task_id=?, completed=?, pushed_to_mstodo=?, updated_at=?
		WHERE id=? AND user_id=?`,
		t.Name, t.Description, t.Location, marshalJSON(t.Attendees),
		string(t.Importance), boolInt(t.Reminder), t.StartTime, t.EndTime,
		t.DueDate, string(t.ScheduleType), t.RecurrenceRule, t.ParentTaskID,
		boolInt(t.Completed), boolInt(t.PushedToMSTodo), t.UpdatedAt,
		t.ID, userID)
	if err != nil {
		return nil, ChangeSet{}, err
	}
	s.appendLog(ctx, userID, "task_updated", "Task updated: "+t.Name, t)
	return t, ChangeSet{Updated: []string{t.ID}}, nil
}

// TaskPatch is a partial task mutation: nil fields are left untouched.
type TaskPatch struct {
	Name        *string             `json:"name,omitempty"`
	Description *string             `json:"description,omitempty"`
	Location    *string             `json:"location,omitempty"`
	Attendees   *[]string           `json:"attendees,omitempty"`
	Importance  *tasklib.Importance `json:"importance,omitempty"`
	Reminder    *bool               `json:"reminder,omitempty"`
	StartTime   *string             `json:"startTime,omitempty"`
	EndTime     *string             `json:"endTime,omitempty"`
	DueDate     *string             `json:"dueDate,omitempty"`
	Completed   *bool               `json:"completed,omitempty"`
}

// TouchesTimes reports whether the patch modifies the task interval,
// which is the only case that re-runs conflict detection.
func (p *TaskPatch) TouchesTimes() bool {
	return p.StartTime != nil || p.EndTime != nil
}

func (p *TaskPatch) apply(t *tasklib.Task) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Location != nil {
		t.Location = *p.Location
	}
	if p.Attendees != nil {
		t.Attendees = append([]string(nil), (*p.Attendees)...)
	}
	if p.Importance != nil {
		t.Importance = *p.Importance
	}
	if p.Reminder != nil {
		t.Reminder = *p.Reminder
	}
	if p.StartTime != nil {
		t.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		t.EndTime = *p.EndTime
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
}

// PatchTask applies a partial mutation to an existing task. The task
// must exist; conflict detection is re-run only when the patch touches
// the interval, under the same admission-mode split as AddTask.
func (s *Store) PatchTask(ctx context.Context, userID, id string, patch *TaskPatch, policy tasklib.BoundaryPolicy, allowConflict bool) (*tasklib.Task, ChangeSet, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, ChangeSet{}, err
	}
	if t.UserID != userID {
		return nil, ChangeSet{}, tasklib.ErrTaskNotFound
	}
	patch.apply(t)
	if err := prepareTask(t); err != nil {
		return nil, ChangeSet{}, err
	}

	if patch.TouchesTimes() && !allowConflict {
		existing, err := s.ListAllTasks(ctx, userID)
		if err != nil {
			return nil, ChangeSet{}, err
		}
		if err := tasklib.AssertNoConflict(existing, t, policy); err != nil {
			return nil, ChangeSet{}, err
		}
	}

	t.UpdatedAt = now()
	_, err = s.db.ExecContext(ctx, `UPDATE tasks SET name=?, description=?,
		location=?, attendees=?, importance=?, reminder=?, start_time=?,
		end_time=?, due_date=?, completed=?, updated_at=?
		WHERE id=? AND user_id=?`,
		t.Name, t.Description, t.Location, marshalJSON(t.Attendees),
		string(t.Importance), boolInt(t.Reminder), t.StartTime, t.EndTime,
		t.DueDate, boolInt(t.Completed), t.UpdatedAt, t.ID, userID)
	if err != nil {
		return nil, ChangeSet{}, err
	}
	s.appendLog(ctx, userID, "task_updated", "Task updated: "+t.Name, t)
	return t, ChangeSet{Updated: []string{t.ID}}, nil
}

// GetTask fetches one task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*tasklib.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tasklib.ErrTaskNotFound
	}
	return t, err
}

// ListAllTasks returns every task belonging to the user, the comparison
// set for conflict re-validation and the cache's full load.
func (s *Store) ListAllTasks(ctx context.Context, userID string) ([]*tasklib.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? ORDER BY start_time, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// DeleteTask removes a single task. Returns whether a row was removed;
// deleting an absent id is not an error.
func (s *Store) DeleteTask(ctx context.Context, userID, id string) (bool, ChangeSet, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, ChangeSet{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, ChangeSet{}, nil
	}
	s.appendLog(ctx, userID, "task_deleted", "Task deleted", map[string]string{"id": id})
	return true, ChangeSet{Deleted: []string{id}}, nil
}

// DeleteTaskCascade removes a root task together with all of its
// generated occurrences as a unit.
func (s *Store) DeleteTaskCascade(ctx context.Context, userID, rootID string) (ChangeSet, error) {
	occurrences, err := s.ListOccurrences(ctx, userID, rootID)
	if err != nil {
		return ChangeSet{}, err
	}
	ids := []string{rootID}
	for _, occ := range occurrences {
		ids = append(ids, occ.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, userID)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id IN (`+placeholders+`) AND user_id = ?`, args...)
	if err != nil {
		return ChangeSet{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ChangeSet{}, nil
	}
	s.appendLog(ctx, userID, "task_deleted",
		fmt.Sprintf("Task deleted with %d occurrence(s)", len(occurrences)),
		map[string]any{"id": rootID, "occurrences": len(occurrences)})
	return ChangeSet{Deleted: ids}, nil
}

// DeleteTasksByPattern bulk-deletes every task whose id matches the SQL
// LIKE pattern, used to retract an externally-sourced batch (e.g. all
// timetable-derived tasks) in one operation.
func (s *Store) DeleteTasksByPattern(ctx context.Context, userID, idPattern string) (int, ChangeSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM tasks WHERE user_id = ? AND id LIKE ?`, userID, idPattern)
	if err != nil {
		return 0, ChangeSet{}, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, ChangeSet{}, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, ChangeSet{}, err
	}
	if len(ids) == 0 {
		return 0, ChangeSet{}, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE user_id = ? AND id LIKE ?`, userID, idPattern)
	if err != nil {
		return 0, ChangeSet{}, err
	}
	n, _ := res.RowsAffected()
	s.appendLog(ctx, userID, "task_batch_deleted",
		fmt.Sprintf("Deleted %d task(s) matching %s", n, idPattern),
		map[string]any{"pattern": idPattern, "count": n})
	return int(n), ChangeSet{Deleted: ids}, nil
}

// MarkPushed sets the one-way pushedToMSTodo latch. It never resets.
func (s *Store) MarkPushed(ctx context.Context, userID, id string) (ChangeSet, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET pushed_to_mstodo = 1, updated_at = ? WHERE id = ? AND user_id = ?`,
		now(), id, userID)
	if err != nil {
		return ChangeSet{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ChangeSet{}, tasklib.ErrTaskNotFound
	}
	return ChangeSet{Updated: []string{id}}, nil
}

// sortColumns is the allow-list for ListTasks sort fields, keyed by the
// external field name.
var sortColumns = map[string]string{
	"startTime": "start_time",
	"endTime":   "end_time",
	"dueDate":   "due_date",
	"name":      "name",
	"createdAt": "created_at",
}

// MaxListLimit caps a single listing page.
const MaxListLimit = 500

// ListFilter parameterizes the task listing query.
type ListFilter struct {
	// WindowStart/WindowEnd select tasks whose interval overlaps the
	// window: end_time >= WindowStart AND start_time <= WindowEnd.
	WindowStart string `json:"windowStart,omitempty"`
	WindowEnd   string `json:"windowEnd,omitempty"`
	// Search is a free-text substring match over name, description and
	// location.
	Search    string `json:"search,omitempty"`
	Completed *bool  `json:"completed,omitempty"`
	SortBy    string `json:"sortBy,omitempty"`
	SortDesc  bool   `json:"sortDesc,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// ListTasks is the single paginated, filterable listing operation.
func (s *Store) ListTasks(ctx context.Context, userID string, f ListFilter) ([]*tasklib.Task, error) {
	var where []string
	var args []any
	where = append(where, "user_id = ?")
	args = append(args, userID)

	if f.WindowStart != "" {
		if v, ok := tasklib.NormalizeTime(f.WindowStart); ok {
			where = append(where, "end_time >= ?")
			args = append(args, v)
		}
	}
	if f.WindowEnd != "" {
		if v, ok := tasklib.NormalizeTime(f.WindowEnd); ok {
			where = append(where, "start_time <= ?")
			args = append(args, v)
		}
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		where = append(where, "(name LIKE ? OR description LIKE ? OR location LIKE ?)")
		args = append(args, like, like, like)
	}
	if f.Completed != nil {
		where = append(where, "completed = ?")
		args = append(args, boolInt(*f.Completed))
	}

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "start_time"
	}
	order := "ASC"
	if f.SortDesc {
		order = "DESC"
	}

	limit := f.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	q := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY ` + col + ` ` + order + `, id LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListOccurrences returns the generated occurrences of a root task.
func (s *Store) ListOccurrences(ctx context.Context, userID, rootID string) ([]*tasklib.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? AND parent_task_id = ?
		 ORDER BY start_time, id`, userID, rootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]*tasklib.Task, error) {
	tasks := make([]*tasklib.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
