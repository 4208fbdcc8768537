package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

// Queue entry statuses. Entries are normally deleted on a terminal
// transition rather than retained with a status history.
const (
	QueueStatusPending  = "pending"
	QueueStatusApproved = "approved"
	QueueStatusRejected = "rejected"
)

// QueueEntry is an opaque serialized mutation request awaiting human
// disposition.
type QueueEntry struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	RawRequest json.RawMessage `json:"rawRequest"`
	Status     string          `json:"status"`
	CreatedAt  string          `json:"createdAt"`
	UpdatedAt  string          `json:"updatedAt"`
}

// EnqueueRequest stores a raw serialized schedule-change request from
// an untrusted or automated producer, pending human approval.
func (s *Store) EnqueueRequest(ctx context.Context, userID string, raw json.RawMessage) (*QueueEntry, error) {
	e := &QueueEntry{
		ID:         uuid.NewString(),
		UserID:     userID,
		RawRequest: raw,
		Status:     QueueStatusPending,
	}
	ts := now()
	e.CreatedAt, e.UpdatedAt = ts, ts
	_, err := s.db.ExecContext(ctx, `INSERT INTO schedule_queue
		(id, user_id, raw_request, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, userID, string(raw), e.Status, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.appendLog(ctx, userID, "queue_enqueued",
		"Schedule change request queued for approval", e)
	return e, nil
}

// ListQueue returns the user's pending entries, newest first.
func (s *Store) ListQueue(ctx context.Context, userID string) ([]*QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, raw_request, status,
		created_at, updated_at FROM schedule_queue WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]*QueueEntry, 0)
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetQueueEntry fetches one entry by id.
func (s *Store) GetQueueEntry(ctx context.Context, id string) (*QueueEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, user_id, raw_request, status,
		created_at, updated_at FROM schedule_queue WHERE id = ?`, id)
	e, err := scanQueueEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tasklib.ErrQueueEntryNotFound
	}
	return e, err
}

// UpdateQueueStatus records a status change on a retained entry.
func (s *Store) UpdateQueueStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedule_queue SET status = ?, updated_at = ? WHERE id = ?`,
		status, now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tasklib.ErrQueueEntryNotFound
	}
	return nil
}

// DeleteQueueEntry removes an entry, returning whether a row existed.
func (s *Store) DeleteQueueEntry(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedule_queue WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func scanQueueEntry(row interface{ Scan(...any) error }) (*QueueEntry, error) {
	var e QueueEntry
	var raw string
	err := row.Scan(&e.ID, &e.UserID, &raw, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.RawRequest = json.RawMessage(raw)
	return &e, nil
}
