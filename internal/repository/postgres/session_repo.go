package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/quotereality/internal/errs"
	"github.com/and161185/quotereality/internal/model"
)

// SessionRepo implements SessionRepository using PostgreSQL.
type SessionRepo struct{ db *DB }

// NewSessionRepo constructs a session repository.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

// Create inserts a session and adds its duration to the project total in one transaction.
func (r *SessionRepo) Create(ctx context.Context, userID string, s *model.TimeSession) error {
	const own = `SELECT id FROM projects WHERE id=$1 AND user_id=$2 FOR UPDATE`
	const ins = `
INSERT INTO time_sessions (id, project_id, start_time, end_time, duration, is_manual, note)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at`
	const inc = `UPDATE projects SET total_tracked_time = total_tracked_time + $2, updated_at=now() WHERE id=$1`

	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		var pid uuid.UUID
		if err := tx.QueryRow(ctx, own, s.ProjectID, userID).Scan(&pid); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if err := tx.QueryRow(ctx, ins,
			s.ID, s.ProjectID, s.StartTime, s.EndTime, s.Duration, s.IsManual, s.Note,
		).Scan(&s.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return errs.ErrAlreadyExists
			}
			return err
		}
		_, err := tx.Exec(ctx, inc, s.ProjectID, s.Duration)
		return err
	})
}

// Delete removes a session and subtracts its duration from the project total, never below zero.
// A session under another user's project yields ErrForbidden.
func (r *SessionRepo) Delete(ctx context.Context, userID string, id uuid.UUID) (*model.TimeSession, error) {
	const sel = `
SELECT s.id, s.project_id, s.start_time, s.end_time, s.duration, s.is_manual, s.note, s.created_at, p.user_id
FROM time_sessions s JOIN projects p ON p.id = s.project_id
WHERE s.id=$1
FOR UPDATE`
	const del = `DELETE FROM time_sessions WHERE id=$1`
	const dec = `UPDATE projects SET total_tracked_time = GREATEST(0, total_tracked_time - $2), updated_at=now() WHERE id=$1`

	var out model.TimeSession
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		var (
			row   sessionRow
			owner string
		)
		if err := tx.QueryRow(ctx, sel, id).Scan(append(row.dest(), &owner)...); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if owner != userID {
			return errs.ErrForbidden
		}
		if _, err := tx.Exec(ctx, del, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, dec, row.projectID, row.duration); err != nil {
			return err
		}
		out = row.toModel()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListByProjects returns sessions of the given projects ordered by start time, newest first.
func (r *SessionRepo) ListByProjects(ctx context.Context, projectIDs []uuid.UUID) ([]model.TimeSession, error) {
	if len(projectIDs) == 0 {
		return []model.TimeSession{}, nil
	}
	ids := make([]string, 0, len(projectIDs))
	for _, id := range projectIDs {
		ids = append(ids, id.String())
	}

	const q = `SELECT ` + sessionCols + ` FROM time_sessions WHERE project_id = ANY($1::uuid[]) ORDER BY start_time DESC`
	rows, err := r.db.Pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.TimeSession{}
	for rows.Next() {
		var row sessionRow
		if err = rows.Scan(row.dest()...); err != nil {
			return nil, err
		}
		out = append(out, row.toModel())
	}
	return out, rows.Err()
}
