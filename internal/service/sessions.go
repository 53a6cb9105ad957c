package service

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/quotereality/internal/errs"
	"github.com/and161185/quotereality/internal/model"
	"github.com/and161185/quotereality/internal/repository"
)

// SessionService defines time session operations.
type SessionService interface {
	// Create records a session and adds its duration to the project's total.
	Create(ctx context.Context, userID string, in model.NewSession) (*model.TimeSession, error)
	// Delete removes a session and subtracts its duration from the project's total.
	Delete(ctx context.Context, userID string, id uuid.UUID) error
}

type SessionServiceImpl struct {
	repo repository.SessionRepository
}

// NewSessionService constructs SessionService.
func NewSessionService(repo repository.SessionRepository) *SessionServiceImpl {
	return &SessionServiceImpl{repo: repo}
}

// Create validates input and delegates the transactional insert to the repository.
// Validation rules:
// - projectId and startTime are set
// - duration > 0
// - endTime, when present, is not before startTime
// - note is at most 200 characters after trimming
func (s *SessionServiceImpl) Create(ctx context.Context, userID string, in model.NewSession) (*model.TimeSession, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if in.ProjectID == uuid.Nil {
		return nil, validation("projectId is required")
	}
	if in.StartTime.IsZero() {
		return nil, validation("startTime is required")
	}
	if in.Duration <= 0 {
		return nil, validation("duration must be positive")
	}
	if in.EndTime != nil && in.EndTime.Before(in.StartTime) {
		return nil, validation("endTime is before startTime")
	}
	note := trimOptional(in.Note)
	if note != nil && utf8.RuneCountInString(*note) > model.MaxNoteLength {
		return nil, validation("note exceeds %d characters", model.MaxNoteLength)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	ts := &model.TimeSession{
		ID:        id,
		ProjectID: in.ProjectID,
		StartTime: in.StartTime.UTC(),
		EndTime:   utcOptional(in),
		Duration:  in.Duration,
		IsManual:  in.IsManual,
		Note:      note,
	}
	if err := s.repo.Create(ctx, userID, ts); err != nil {
		return nil, err
	}
	return ts, nil
}

// Delete removes a session owned (through its project) by userID.
func (s *SessionServiceImpl) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if id == uuid.Nil {
		return errs.ErrNotFound
	}
	_, err := s.repo.Delete(ctx, userID, id)
	return err
}

func utcOptional(in model.NewSession) *time.Time {
	if in.EndTime == nil {
		return nil
	}
	v := in.EndTime.UTC()
	return &v
}

