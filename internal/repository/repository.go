// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/quotereality/internal/model"
)

// ProjectRepository provides owner-scoped access to projects.
type ProjectRepository interface {
	// Create inserts a project and fills its timestamps.
	Create(ctx context.Context, p *model.Project) error
	// Get loads a project owned by userID (without sessions).
	Get(ctx context.Context, userID string, id uuid.UUID) (*model.Project, error)
	// List returns the user's projects, newest first (without sessions).
	List(ctx context.Context, userID string) ([]model.Project, error)
	// Update locks the project row, lets apply mutate it and writes it back atomically.
	Update(ctx context.Context, userID string, id uuid.UUID, apply func(p *model.Project) error) (*model.Project, error)
	// Delete removes a project and, by cascade, its sessions.
	Delete(ctx context.Context, userID string, id uuid.UUID) error
}

// SessionRepository provides access to time sessions and keeps project totals in step.
type SessionRepository interface {
	// Create inserts a session under a project owned by userID and adds its duration to the project total.
	Create(ctx context.Context, userID string, s *model.TimeSession) error
	// Delete removes a session and subtracts its duration from the project total, floored at zero.
	Delete(ctx context.Context, userID string, id uuid.UUID) (*model.TimeSession, error)
	// ListByProjects returns sessions of the given projects, newest start first.
	ListByProjects(ctx context.Context, projectIDs []uuid.UUID) ([]model.TimeSession, error)
}

// SettingsRepository provides per-user settings rows.
type SettingsRepository interface {
	// Get loads the settings row for userID.
	Get(ctx context.Context, userID string) (*model.UserSettings, error)
	// EnsureDefaults creates a row with defaults when none exists and returns the current row.
	EnsureDefaults(ctx context.Context, userID string) (*model.UserSettings, error)
	// Upsert writes all fields of s.
	Upsert(ctx context.Context, s *model.UserSettings) (*model.UserSettings, error)
}
