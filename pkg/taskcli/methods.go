package taskcli

import (
	"context"

	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

// Version fetches the daemon version and the connection's user id.
func (c *Client) Version(ctx context.Context) (*VersionResult, error) {
	var out VersionResult
	if err := c.call(ctx, "system.getVersion", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddTask admits a new task. With blocking set, a conflicting task is
// refused instead of admitted with warnings.
func (c *Client) AddTask(ctx context.Context, t *tasklib.Task, blocking bool) (*TaskResult, error) {
	var out TaskResult
	if err := c.call(ctx, "task.add", &AddParams{Task: *t, Blocking: blocking}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddBatch admits several tasks in advisory mode.
func (c *Client) AddBatch(ctx context.Context, tasks []tasklib.Task) (*AddBatchResult, error) {
	var out AddBatchResult
	if err := c.call(ctx, "task.addBatch", map[string]any{"tasks": tasks}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTask replaces an existing task.
func (c *Client) UpdateTask(ctx context.Context, t *tasklib.Task, blocking bool) (*TaskResult, error) {
	var out TaskResult
	if err := c.call(ctx, "task.update", &AddParams{Task: *t, Blocking: blocking}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PatchTask applies a partial mutation.
func (c *Client) PatchTask(ctx context.Context, id string, patch *TaskPatch, blocking bool) (*TaskResult, error) {
	var out TaskResult
	if err := c.call(ctx, "task.patch", &PatchParams{ID: id, Patch: *patch, Blocking: blocking}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteTask marks a task completed.
func (c *Client) CompleteTask(ctx context.Context, id string) (*TaskResult, error) {
	done := true
	return c.PatchTask(ctx, id, &TaskPatch{Completed: &done}, false)
}

// RemoveTask deletes a task; with cascade set, a recurring root takes
// its occurrences with it.
func (c *Client) RemoveTask(ctx context.Context, id string, cascade bool) (bool, error) {
	var out RemoveResult
	if err := c.call(ctx, "task.remove", map[string]any{"id": id, "cascade": cascade}, &out); err != nil {
		return false, err
	}
	return out.Removed, nil
}

// GetTask fetches one task by id.
func (c *Client) GetTask(ctx context.Context, id string) (*tasklib.Task, error) {
	var out tasklib.Task
	if err := c.call(ctx, "task.get", map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasks fetches tasks matching the filter. opts may be nil.
func (c *Client) ListTasks(ctx context.Context, opts *ListOptions) ([]*tasklib.Task, error) {
	if opts == nil {
		opts = &ListOptions{}
	}
	var out ListResult
	if err := c.call(ctx, "task.list", opts, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// Occurrences fetches the generated occurrences of a recurring root.
func (c *Client) Occurrences(ctx context.Context, rootID string) ([]*tasklib.Task, error) {
	var out ListResult
	if err := c.call(ctx, "task.occurrences", map[string]any{"rootId": rootID}, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// CheckConflicts evaluates a candidate without writing anything.
func (c *Client) CheckConflicts(ctx context.Context, t *tasklib.Task) ([]*tasklib.Task, error) {
	var out CheckResult
	if err := c.call(ctx, "task.check", map[string]any{"task": t}, &out); err != nil {
		return nil, err
	}
	return out.Conflicts, nil
}

// QueueList fetches the pending schedule-change requests.
func (c *Client) QueueList(ctx context.Context) ([]*QueueEntry, error) {
	var out QueueListResult
	if err := c.call(ctx, "queue.list", nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// Approve admits a queued request and removes it from the queue.
func (c *Client) Approve(ctx context.Context, entryID string) (*TaskResult, error) {
	var out TaskResult
	if err := c.call(ctx, "queue.approve", map[string]any{"id": entryID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reject discards a queued request.
func (c *Client) Reject(ctx context.Context, entryID string) error {
	return c.call(ctx, "queue.reject", map[string]any{"id": entryID}, nil)
}

// GetSettings fetches the user's settings.
func (c *Client) GetSettings(ctx context.Context) (*Settings, error) {
	var out Settings
	if err := c.call(ctx, "user.getSettings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetBoundaryPolicy switches between half-open and boundary-inclusive
// conflict detection.
func (c *Client) SetBoundaryPolicy(ctx context.Context, inclusive bool) error {
	return c.call(ctx, "user.setBoundaryPolicy", map[string]any{"inclusive": inclusive}, nil)
}

// SetWeekOffset stores the user's week-numbering offset.
func (c *Client) SetWeekOffset(ctx context.Context, offset int) error {
	return c.call(ctx, "user.setWeekOffset", map[string]any{"offset": offset}, nil)
}

// Logs fetches the activity trail, newest first.
func (c *Client) Logs(ctx context.Context, limit int) ([]*LogEntry, error) {
	var out LogListResult
	if err := c.call(ctx, "log.list", map[string]any{"limit": limit}, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}
