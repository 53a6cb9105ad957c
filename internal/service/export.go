package service

import (
	"context"
	"time"

	"github.com/and161185/quotereality/internal/model"
)

// ExportService assembles everything a user owns for bulk export.
type ExportService interface {
	Snapshot(ctx context.Context, userID string) (*model.Snapshot, error)
}

type ExportServiceImpl struct {
	projects ProjectService
	settings SettingsService
	now      func() time.Time
}

// NewExportService constructs ExportService on top of the project and settings services.
func NewExportService(projects ProjectService, settings SettingsService) *ExportServiceImpl {
	return &ExportServiceImpl{projects: projects, settings: settings, now: time.Now}
}

// Snapshot returns settings and projects (with sessions) stamped with the export time.
func (s *ExportServiceImpl) Snapshot(ctx context.Context, userID string) (*model.Snapshot, error) {
	st, err := s.settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	ps, err := s.projects.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.Snapshot{Settings: *st, Projects: ps, ExportedAt: s.now().UTC()}, nil
}
