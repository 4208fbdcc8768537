package api

import "context"

// DeleteTasksMatching removes every task of the user whose id matches
// the SQL LIKE pattern and refreshes the cache in one step. Used for
// source-scoped bulk replacement ("timetable-%"), which deliberately
// skips per-task change notifications: a full source refresh would
// otherwise flood connected clients.
func (a *Api) DeleteTasksMatching(ctx context.Context, userID, pattern string) (int, error) {
	n, cs, err := a.store.DeleteTasksByPattern(ctx, userID, pattern)
	if err != nil {
		return 0, err
	}
	a.refresh(ctx, userID, cs)
	return n, nil
}

// MarkPushed latches the task's pushed-to-To-Do flag. The flag is
// one-way; marking an already-pushed task is a no-op.
func (a *Api) MarkPushed(ctx context.Context, userID, id string) error {
	cs, err := a.store.MarkPushed(ctx, userID, id)
	if err != nil {
		return err
	}
	a.refresh(ctx, userID, cs)
	return nil
}
