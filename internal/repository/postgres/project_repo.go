package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/quotereality/internal/errs"
	"github.com/and161185/quotereality/internal/model"
)

// ProjectRepo implements ProjectRepository using PostgreSQL.
type ProjectRepo struct{ db *DB }

// NewProjectRepo constructs a project repository.
func NewProjectRepo(db *DB) *ProjectRepo { return &ProjectRepo{db: db} }

// Create inserts a new project row and replaces p with the stored row, so
// column rounding shows up in the result.
func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
	const q = `
INSERT INTO projects (id, user_id, name, client, description, quote_amount, desired_hourly_rate,
  desired_day_rate, hours_per_day, target_hours, total_tracked_time, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + projectCols
	var row projectRow
	err := r.db.Pool.QueryRow(ctx, q,
		p.ID, p.UserID, p.Name, p.Client, p.Description, p.QuoteAmount, p.DesiredHourlyRate,
		p.DesiredDayRate, p.HoursPerDay, p.TargetHours, p.TotalTrackedTime, string(p.Status),
	).Scan(row.dest()...)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	sessions := p.Sessions
	*p = row.toModel()
	p.Sessions = sessions
	return nil
}

// Get selects a project by id within the user's scope.
func (r *ProjectRepo) Get(ctx context.Context, userID string, id uuid.UUID) (*model.Project, error) {
	const q = `SELECT ` + projectCols + ` FROM projects WHERE id=$1 AND user_id=$2`
	var row projectRow
	if err := r.db.Pool.QueryRow(ctx, q, id, userID).Scan(row.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	p := row.toModel()
	return &p, nil
}

// List returns all projects of a user, newest first.
func (r *ProjectRepo) List(ctx context.Context, userID string) ([]model.Project, error) {
	const q = `SELECT ` + projectCols + ` FROM projects WHERE user_id=$1 ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Project{}
	for rows.Next() {
		var row projectRow
		if err = rows.Scan(row.dest()...); err != nil {
			return nil, err
		}
		out = append(out, row.toModel())
	}
	return out, rows.Err()
}

// Update locks the row, applies the mutation and stores the result.
func (r *ProjectRepo) Update(
	ctx context.Context, userID string, id uuid.UUID, apply func(p *model.Project) error,
) (out *model.Project, err error) {
	const sel = `SELECT ` + projectCols + ` FROM projects WHERE id=$1 AND user_id=$2 FOR UPDATE`
	const upd = `
UPDATE projects SET name=$3, client=$4, description=$5, quote_amount=$6, desired_hourly_rate=$7,
  desired_day_rate=$8, hours_per_day=$9, target_hours=$10, status=$11, updated_at=now()
WHERE id=$1 AND user_id=$2
RETURNING ` + projectCols

	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		var row projectRow
		if err := tx.QueryRow(ctx, sel, id, userID).Scan(row.dest()...); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		p := row.toModel()
		if err := apply(&p); err != nil {
			return err
		}
		var stored projectRow
		if err := tx.QueryRow(ctx, upd,
			p.ID, p.UserID, p.Name, p.Client, p.Description, p.QuoteAmount, p.DesiredHourlyRate,
			p.DesiredDayRate, p.HoursPerDay, p.TargetHours, string(p.Status),
		).Scan(stored.dest()...); err != nil {
			return err
		}
		res := stored.toModel()
		res.Sessions = p.Sessions
		out = &res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a project; sessions go with it via ON DELETE CASCADE.
func (r *ProjectRepo) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	const q = `DELETE FROM projects WHERE id=$1 AND user_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
