package service

import (
	"context"

	"github.com/and161185/quotereality/internal/model"
	"github.com/and161185/quotereality/internal/money"
	"github.com/and161185/quotereality/internal/repository"
)

// SettingsService defines per-user settings operations.
type SettingsService interface {
	// Get returns the user's settings, creating the defaults row on first access.
	Get(ctx context.Context, userID string) (*model.UserSettings, error)
	// Update applies a partial change and upserts the row.
	Update(ctx context.Context, userID string, patch model.SettingsPatch) (*model.UserSettings, error)
}

type SettingsServiceImpl struct {
	repo repository.SettingsRepository
}

// NewSettingsService constructs SettingsService.
func NewSettingsService(repo repository.SettingsRepository) *SettingsServiceImpl {
	return &SettingsServiceImpl{repo: repo}
}

// Get lazily creates defaults (rate 100.00, gbp, 8 hours per day).
func (s *SettingsServiceImpl) Get(ctx context.Context, userID string) (*model.UserSettings, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.repo.EnsureDefaults(ctx, userID)
}

// Update validates the patch and upserts the merged settings.
func (s *SettingsServiceImpl) Update(ctx context.Context, userID string, patch model.SettingsPatch) (*model.UserSettings, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, validation("no updates provided")
	}
	var code money.Code
	if patch.CurrencyCode != nil {
		c, err := money.Parse(*patch.CurrencyCode)
		if err != nil {
			return nil, validation("invalid currency code")
		}
		code = c
	}
	if patch.DesiredHourlyRate != nil && *patch.DesiredHourlyRate <= 0 {
		return nil, validation("desiredHourlyRate must be positive")
	}
	if patch.HoursPerDay != nil && (*patch.HoursPerDay <= 0 || *patch.HoursPerDay > model.MaxHoursPerDay) {
		return nil, validation("hoursPerDay must be positive and at most %g", model.MaxHoursPerDay)
	}

	cur, err := s.repo.EnsureDefaults(ctx, userID)
	if err != nil {
		return nil, err
	}
	next := *cur
	if patch.DesiredHourlyRate != nil {
		next.DesiredHourlyRate = *patch.DesiredHourlyRate
	}
	if code != "" {
		next.CurrencyCode = string(code)
	}
	if patch.HoursPerDay != nil {
		next.HoursPerDay = *patch.HoursPerDay
	}
	return s.repo.Upsert(ctx, &next)
}
