package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/quotereality/internal/errs"
	"github.com/and161185/quotereality/internal/model"
)

var settingsColNames = []string{"user_id", "desired_hourly_rate", "currency_code", "hours_per_day", "created_at", "updated_at"}

func TestSettingsRepo_Get_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSettingsRepo(db)

	mock.ExpectQuery(`FROM user_settings WHERE user_id=\$1`).
		WithArgs("u1").
		WillReturnError(pgx.ErrNoRows)

	_, err := r.Get(context.Background(), "u1")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSettingsRepo_EnsureDefaults(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSettingsRepo(db)

	ts := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO user_settings .* ON CONFLICT \(user_id\) DO NOTHING`).
		WithArgs("u1", 100.0, "gbp", 8.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`FROM user_settings WHERE user_id=\$1`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows(settingsColNames).AddRow("u1", 100.0, "gbp", (*float64)(nil), ts, ts))

	s, err := r.EnsureDefaults(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 100.0, s.DesiredHourlyRate)
	require.Equal(t, "gbp", s.CurrencyCode)
	// NULL hours_per_day from rows created before the column existed.
	require.Equal(t, model.DefaultHoursPerDay, s.HoursPerDay)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepo_Upsert(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSettingsRepo(db)

	ts := time.Now().UTC()
	hpd := 7.5
	mock.ExpectQuery(`ON CONFLICT \(user_id\) DO UPDATE SET`).
		WithArgs("u1", 85.0, "eur", 7.5).
		WillReturnRows(pgxmock.NewRows(settingsColNames).AddRow("u1", 85.0, "eur", &hpd, ts, ts))

	s, err := r.Upsert(context.Background(), &model.UserSettings{
		UserID: "u1", DesiredHourlyRate: 85, CurrencyCode: "eur", HoursPerDay: 7.5,
	})
	require.NoError(t, err)
	require.Equal(t, "eur", s.CurrencyCode)
	require.Equal(t, 7.5, s.HoursPerDay)
}
