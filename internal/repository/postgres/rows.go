package postgres

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/quotereality/internal/model"
)

const projectCols = `id, user_id, name, client, description, quote_amount, desired_hourly_rate,
desired_day_rate, hours_per_day, target_hours, total_tracked_time, status, created_at, updated_at`

const sessionCols = `id, project_id, start_time, end_time, duration, is_manual, note, created_at`

const settingsCols = `user_id, desired_hourly_rate, currency_code, hours_per_day, created_at, updated_at`

type projectRow struct {
	id          uuid.UUID
	userID      string
	name        string
	client      string
	description *string
	quote       float64
	hourly      float64
	dayRate     *float64
	hoursPerDay *float64
	target      float64
	tracked     int64
	status      string
	createdAt   time.Time
	updatedAt   time.Time
}

func (r *projectRow) dest() []any {
	return []any{
		&r.id, &r.userID, &r.name, &r.client, &r.description, &r.quote, &r.hourly,
		&r.dayRate, &r.hoursPerDay, &r.target, &r.tracked, &r.status, &r.createdAt, &r.updatedAt,
	}
}

func (r *projectRow) toModel() model.Project {
	return model.Project{
		ID:                r.id,
		UserID:            r.userID,
		Name:              r.name,
		Client:            r.client,
		Description:       nonEmpty(r.description),
		QuoteAmount:       r.quote,
		DesiredHourlyRate: r.hourly,
		DesiredDayRate:    r.dayRate,
		HoursPerDay:       r.hoursPerDay,
		TargetHours:       r.target,
		TotalTrackedTime:  r.tracked,
		Status:            model.Status(r.status),
		CreatedAt:         r.createdAt,
		UpdatedAt:         r.updatedAt,
	}
}

type sessionRow struct {
	id        uuid.UUID
	projectID uuid.UUID
	start     time.Time
	end       *time.Time
	duration  int64
	manual    bool
	note      *string
	createdAt time.Time
}

func (r *sessionRow) dest() []any {
	return []any{&r.id, &r.projectID, &r.start, &r.end, &r.duration, &r.manual, &r.note, &r.createdAt}
}

func (r *sessionRow) toModel() model.TimeSession {
	return model.TimeSession{
		ID:        r.id,
		ProjectID: r.projectID,
		StartTime: r.start,
		EndTime:   r.end,
		Duration:  r.duration,
		IsManual:  r.manual,
		Note:      nonEmpty(r.note),
		CreatedAt: r.createdAt,
	}
}

type settingsRow struct {
	userID      string
	hourly      float64
	currency    string
	hoursPerDay *float64
	createdAt   time.Time
	updatedAt   time.Time
}

func (r *settingsRow) dest() []any {
	return []any{&r.userID, &r.hourly, &r.currency, &r.hoursPerDay, &r.createdAt, &r.updatedAt}
}

func (r *settingsRow) toModel() model.UserSettings {
	hpd := model.DefaultHoursPerDay
	if r.hoursPerDay != nil && *r.hoursPerDay > 0 {
		hpd = *r.hoursPerDay
	}
	return model.UserSettings{
		UserID:            r.userID,
		DesiredHourlyRate: r.hourly,
		CurrencyCode:      r.currency,
		HoursPerDay:       hpd,
		CreatedAt:         r.createdAt,
		UpdatedAt:         r.updatedAt,
	}
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
