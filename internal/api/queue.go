package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskfuse/taskfuse/internal/store"
	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

// QueuedRequest is the serialized schedule-change request held in a
// queue entry: the candidate task plus the context it came from (the
// source email for LLM-derived requests).
type QueuedRequest struct {
	Task        tasklib.Task `json:"task"`
	SourceEmail string       `json:"sourceEmail,omitempty"`
	Origin      string       `json:"origin,omitempty"`
}

// Enqueue stores a schedule-change request from an untrusted or
// automated producer for human disposition instead of admitting it
// directly.
func (a *Api) Enqueue(ctx context.Context, userID string, req *QueuedRequest) (*store.QueueEntry, error) {
	if err := a.store.EnsureUser(ctx, userID, ""); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize queued request: %w", err)
	}
	return a.store.EnqueueRequest(ctx, userID, raw)
}

// ListQueue returns the user's pending entries, newest first.
func (a *Api) ListQueue(ctx context.Context, userID string) ([]*store.QueueEntry, error) {
	return a.store.ListQueue(ctx, userID)
}

// Approve replays a queued request through the full admission path.
// Approval never hard-blocks on conflict: the write runs in advisory
// mode and conflicts come back as warnings on the result. Only the
// owning user may approve; on success the entry is removed.
func (a *Api) Approve(ctx context.Context, userID, entryID string) (*TaskResult, error) {
	entry, err := a.authorizedEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	var req QueuedRequest
	if err := json.Unmarshal(entry.RawRequest, &req); err != nil {
		return nil, fmt.Errorf("queued request %s is unreadable: %w", entryID, err)
	}

	result, err := a.AddTask(ctx, userID, &req.Task, Advisory)
	if err != nil {
		return nil, err
	}
	if _, err := a.store.DeleteQueueEntry(ctx, entryID); err != nil {
		a.log.Error("approved entry %s could not be removed from queue: %v", entryID, err)
	}
	a.store.AppendNote(ctx, userID, "Queued request approved: "+req.Task.Name,
		map[string]string{"entryId": entryID, "taskId": result.Task.ID})
	return result, nil
}

// Reject removes a queued request without creating anything. Only the
// owning user may reject.
func (a *Api) Reject(ctx context.Context, userID, entryID string) error {
	entry, err := a.authorizedEntry(ctx, userID, entryID)
	if err != nil {
		return err
	}
	if _, err := a.store.DeleteQueueEntry(ctx, entryID); err != nil {
		return err
	}
	a.store.AppendNote(ctx, userID, "Queued request rejected",
		map[string]string{"entryId": entry.ID})
	return nil
}

// authorizedEntry fetches an entry and enforces the owner-only rule.
func (a *Api) authorizedEntry(ctx context.Context, userID, entryID string) (*store.QueueEntry, error) {
	entry, err := a.store.GetQueueEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, tasklib.ErrNotQueueOwner
	}
	return entry, nil
}
