package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// LogEntry is one immutable row of the per-user activity trail.
type LogEntry struct {
	ID      string          `json:"id"`
	UserID  string          `json:"userId"`
	Time    string          `json:"time"`
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// appendLog records an audit entry and notifies the registered
// listener. Audit failures are logged but never fail the primary
// operation that produced them.
func (s *Store) appendLog(ctx context.Context, userID, typ, message string, payload any) {
	e := &LogEntry{
		ID:      uuid.NewString(),
		UserID:  userID,
		Time:    now(),
		Type:    typ,
		Message: message,
		Payload: json.RawMessage(marshalJSON(payload)),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO user_logs
		(id, user_id, time, type, message, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, userID, e.Time, e.Type, e.Message, string(e.Payload))
	if err != nil {
		s.log.Error("failed to append audit log for user %s: %v", userID, err)
		return
	}
	s.notifyLog(userID, e)
}

// AppendNote records a caller-supplied informational entry (e.g. the
// LLM's log_note intent) in the audit trail.
func (s *Store) AppendNote(ctx context.Context, userID, message string, payload any) {
	s.appendLog(ctx, userID, "note", message, payload)
}

// ListLogs returns the user's audit trail, newest first, capped at
// limit (default 100, max MaxListLimit).
func (s *Store) ListLogs(ctx context.Context, userID string, limit int) ([]*LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, time, type, message, payload
		FROM user_logs WHERE user_id = ? ORDER BY time DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]*LogEntry, 0)
	for rows.Next() {
		var e LogEntry
		var payload string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Time, &e.Type, &e.Message, &payload); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
