package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/quotereality/internal/errs"
	"github.com/and161185/quotereality/internal/model"
	"github.com/and161185/quotereality/internal/money"
)

// SettingsRepo implements SettingsRepository using PostgreSQL.
type SettingsRepo struct{ db *DB }

// NewSettingsRepo constructs a settings repository.
func NewSettingsRepo(db *DB) *SettingsRepo { return &SettingsRepo{db: db} }

// Get selects the settings row of a user.
func (r *SettingsRepo) Get(ctx context.Context, userID string) (*model.UserSettings, error) {
	const q = `SELECT ` + settingsCols + ` FROM user_settings WHERE user_id=$1`
	var row settingsRow
	if err := r.db.Pool.QueryRow(ctx, q, userID).Scan(row.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	s := row.toModel()
	return &s, nil
}

// EnsureDefaults inserts a defaults row if the user has none, then returns the stored row.
func (r *SettingsRepo) EnsureDefaults(ctx context.Context, userID string) (*model.UserSettings, error) {
	const q = `
INSERT INTO user_settings (user_id, desired_hourly_rate, currency_code, hours_per_day)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.Pool.Exec(ctx, q, userID, model.DefaultHourlyRate, string(money.Default), model.DefaultHoursPerDay); err != nil {
		return nil, err
	}
	return r.Get(ctx, userID)
}

// Upsert writes every settings field of s and returns the stored row.
func (r *SettingsRepo) Upsert(ctx context.Context, s *model.UserSettings) (*model.UserSettings, error) {
	const q = `
INSERT INTO user_settings (user_id, desired_hourly_rate, currency_code, hours_per_day)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE SET
  desired_hourly_rate = EXCLUDED.desired_hourly_rate,
  currency_code = EXCLUDED.currency_code,
  hours_per_day = EXCLUDED.hours_per_day,
  updated_at = now()
RETURNING ` + settingsCols
	var row settingsRow
	if err := r.db.Pool.QueryRow(ctx, q, s.UserID, s.DesiredHourlyRate, s.CurrencyCode, s.HoursPerDay).
		Scan(row.dest()...); err != nil {
		return nil, err
	}
	out := row.toModel()
	return &out, nil
}
