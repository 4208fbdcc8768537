package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

// UserSettings is the per-user configuration the admission path reads.
type UserSettings struct {
	UserID            string `json:"userId"`
	Name              string `json:"name,omitempty"`
	BoundaryInclusive bool   `json:"boundaryInclusive"`
	WeekOffset        int    `json:"weekOffset"`
}

// BoundaryPolicy maps the stored flag to the detector's policy value.
func (u *UserSettings) BoundaryPolicy() tasklib.BoundaryPolicy {
	if u.BoundaryInclusive {
		return tasklib.BoundaryInclusive
	}
	return tasklib.BoundaryExclusive
}

// EnsureUser creates the user row if it does not exist yet. Called when
// a user is first materialized (first RPC connection, first sync).
func (s *Store) EnsureUser(ctx context.Context, userID, name string) error {
	ts := now()
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`, userID, name, ts, ts)
	return err
}

// GetUserSettings fetches the per-user settings.
func (s *Store) GetUserSettings(ctx context.Context, userID string) (*UserSettings, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, boundary_inclusive, week_offset FROM users WHERE id = ?`, userID)
	var u UserSettings
	var inclusive int
	err := row.Scan(&u.UserID, &u.Name, &inclusive, &u.WeekOffset)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tasklib.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.BoundaryInclusive = inclusive != 0
	return &u, nil
}

// SetBoundaryPolicy stores the user's conflict boundary policy.
func (s *Store) SetBoundaryPolicy(ctx context.Context, userID string, inclusive bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET boundary_inclusive = ?, updated_at = ? WHERE id = ?`,
		boolInt(inclusive), now(), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tasklib.ErrUserNotFound
	}
	return nil
}

// SetWeekOffset stores the user's week-numbering offset (academic vs
// ISO week numbers differ by the term start).
func (s *Store) SetWeekOffset(ctx context.Context, userID string, offset int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET week_offset = ?, updated_at = ? WHERE id = ?`,
		offset, now(), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tasklib.ErrUserNotFound
	}
	return nil
}

// ListUserIDs returns the ids of all known users, for the background
// scanners that iterate every user's cache.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
