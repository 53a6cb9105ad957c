// Package api defines the JSON wire types of the REST API shared by the server,
// the client and the export format.
package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/quotereality/internal/calc"
	"github.com/and161185/quotereality/internal/model"
)

// Nullable distinguishes an absent field from an explicit null in PATCH bodies.
type Nullable[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Of returns a Nullable holding v.
func Of[T any](v T) Nullable[T] { return Nullable[T]{Set: true, Value: v} }

// Null returns an explicit null.
func Null[T any]() Nullable[T] { return Nullable[T]{Set: true, Null: true} }

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Null = true
		return nil
	}
	return json.Unmarshal(b, &n.Value)
}

func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if !n.Set || n.Null {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// IsZero lets `omitzero` drop unset fields.
func (n Nullable[T]) IsZero() bool { return !n.Set }

type Session struct {
	ID        uuid.UUID  `json:"id"`
	ProjectID uuid.UUID  `json:"projectId"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	Duration  int64      `json:"duration"`
	IsManual  bool       `json:"isManual"`
	Note      *string    `json:"note"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Project struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Client            string    `json:"client"`
	Description       *string   `json:"description"`
	QuoteAmount       float64   `json:"quoteAmount"`
	DesiredHourlyRate float64   `json:"desiredHourlyRate"`
	DesiredDayRate    *float64  `json:"desiredDayRate"`
	HoursPerDay       *float64  `json:"hoursPerDay"`
	TargetHours       float64   `json:"targetHours"`
	TotalTrackedTime  int64     `json:"totalTrackedTime"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	Sessions          []Session `json:"sessions"`

	// Read-only, derived from the fields above.
	EffectiveHourlyRate float64 `json:"effectiveHourlyRate"`
	RateStatus          string  `json:"rateStatus"`
}

type Settings struct {
	DesiredHourlyRate float64   `json:"desiredHourlyRate"`
	CurrencyCode      string    `json:"currencyCode"`
	HoursPerDay       float64   `json:"hoursPerDay"`
	CreatedAt         time.Time `json:"createdAt,omitzero"`
	UpdatedAt         time.Time `json:"updatedAt,omitzero"`
}

// Export is the bulk JSON export document.
type Export struct {
	Settings   Settings  `json:"settings"`
	Projects   []Project `json:"projects"`
	ExportedAt time.Time `json:"exportedAt"`
}

type CreateProjectRequest struct {
	Name              string   `json:"name"`
	Client            string   `json:"client,omitempty"`
	Description       *string  `json:"description,omitempty"`
	QuoteAmount       *float64 `json:"quoteAmount"`
	DesiredHourlyRate *float64 `json:"desiredHourlyRate,omitempty"`
	DesiredDayRate    *float64 `json:"desiredDayRate,omitempty"`
	HoursPerDay       *float64 `json:"hoursPerDay,omitempty"`
	Status            string   `json:"status,omitempty"`
}

// UpdateProjectRequest is a PATCH body. A null desiredDayRate or hoursPerDay clears the value.
type UpdateProjectRequest struct {
	Name              *string           `json:"name,omitempty"`
	Client            *string           `json:"client,omitempty"`
	Description       *string           `json:"description,omitempty"`
	QuoteAmount       *float64          `json:"quoteAmount,omitempty"`
	DesiredHourlyRate *float64          `json:"desiredHourlyRate,omitempty"`
	DesiredDayRate    Nullable[float64] `json:"desiredDayRate,omitzero"`
	HoursPerDay       Nullable[float64] `json:"hoursPerDay,omitzero"`
	Status            *string           `json:"status,omitempty"`
}

type CreateSessionRequest struct {
	ProjectID string     `json:"projectId"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Duration  int64      `json:"duration"`
	IsManual  bool       `json:"isManual"`
	Note      *string    `json:"note,omitempty"`
}

type UpdateSettingsRequest struct {
	DesiredHourlyRate *float64 `json:"desiredHourlyRate,omitempty"`
	CurrencyCode      *string  `json:"currencyCode,omitempty"`
	HoursPerDay       *float64 `json:"hoursPerDay,omitempty"`
}

// SuccessResponse is returned by deletes.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func FromSession(s model.TimeSession) Session {
	return Session{
		ID:        s.ID,
		ProjectID: s.ProjectID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Duration:  s.Duration,
		IsManual:  s.IsManual,
		Note:      s.Note,
		CreatedAt: s.CreatedAt,
	}
}

func (s Session) ToModel() model.TimeSession {
	return model.TimeSession{
		ID:        s.ID,
		ProjectID: s.ProjectID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Duration:  s.Duration,
		IsManual:  s.IsManual,
		Note:      s.Note,
		CreatedAt: s.CreatedAt,
	}
}

func FromProject(p model.Project) Project {
	out := Project{
		ID:                  p.ID,
		Name:                p.Name,
		Client:              p.Client,
		Description:         p.Description,
		QuoteAmount:         p.QuoteAmount,
		DesiredHourlyRate:   p.DesiredHourlyRate,
		DesiredDayRate:      p.DesiredDayRate,
		HoursPerDay:         p.HoursPerDay,
		TargetHours:         p.TargetHours,
		TotalTrackedTime:    p.TotalTrackedTime,
		Status:              string(p.Status),
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
		Sessions:            make([]Session, 0, len(p.Sessions)),
		EffectiveHourlyRate: calc.EffectiveHourlyRate(&p),
		RateStatus:          string(calc.RateStatus(&p)),
	}
	for _, s := range p.Sessions {
		out.Sessions = append(out.Sessions, FromSession(s))
	}
	return out
}

func FromProjects(ps []model.Project) []Project {
	out := make([]Project, 0, len(ps))
	for _, p := range ps {
		out = append(out, FromProject(p))
	}
	return out
}

func (p Project) ToModel() model.Project {
	out := model.Project{
		ID:                p.ID,
		Name:              p.Name,
		Client:            p.Client,
		Description:       p.Description,
		QuoteAmount:       p.QuoteAmount,
		DesiredHourlyRate: p.DesiredHourlyRate,
		DesiredDayRate:    p.DesiredDayRate,
		HoursPerDay:       p.HoursPerDay,
		TargetHours:       p.TargetHours,
		TotalTrackedTime:  p.TotalTrackedTime,
		Status:            model.Status(p.Status),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		Sessions:          make([]model.TimeSession, 0, len(p.Sessions)),
	}
	for _, s := range p.Sessions {
		out.Sessions = append(out.Sessions, s.ToModel())
	}
	return out
}

func FromSettings(s model.UserSettings) Settings {
	return Settings{
		DesiredHourlyRate: s.DesiredHourlyRate,
		CurrencyCode:      s.CurrencyCode,
		HoursPerDay:       s.HoursPerDay,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func (s Settings) ToModel() model.UserSettings {
	return model.UserSettings{
		DesiredHourlyRate: s.DesiredHourlyRate,
		CurrencyCode:      s.CurrencyCode,
		HoursPerDay:       s.HoursPerDay,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func FromSnapshot(s model.Snapshot) Export {
	return Export{
		Settings:   FromSettings(s.Settings),
		Projects:   FromProjects(s.Projects),
		ExportedAt: s.ExportedAt,
	}
}

func (r CreateProjectRequest) ToModel() model.NewProject {
	return model.NewProject{
		Name:              r.Name,
		Client:            r.Client,
		Description:       r.Description,
		QuoteAmount:       r.QuoteAmount,
		DesiredHourlyRate: r.DesiredHourlyRate,
		DesiredDayRate:    r.DesiredDayRate,
		HoursPerDay:       r.HoursPerDay,
		Status:            model.Status(r.Status),
	}
}

func (r UpdateProjectRequest) ToModel() model.ProjectPatch {
	p := model.ProjectPatch{
		Name:              r.Name,
		Client:            r.Client,
		Description:       r.Description,
		QuoteAmount:       r.QuoteAmount,
		DesiredHourlyRate: r.DesiredHourlyRate,
	}
	if r.DesiredDayRate.Set {
		if r.DesiredDayRate.Null {
			p.ClearDayRate = true
		} else {
			v := r.DesiredDayRate.Value
			p.DesiredDayRate = &v
		}
	}
	if r.HoursPerDay.Set {
		if r.HoursPerDay.Null {
			p.ClearHoursPerDay = true
		} else {
			v := r.HoursPerDay.Value
			p.HoursPerDay = &v
		}
	}
	if r.Status != nil {
		st := model.Status(*r.Status)
		p.Status = &st
	}
	return p
}

func (r UpdateSettingsRequest) ToModel() model.SettingsPatch {
	return model.SettingsPatch{
		DesiredHourlyRate: r.DesiredHourlyRate,
		CurrencyCode:      r.CurrencyCode,
		HoursPerDay:       r.HoursPerDay,
	}
}
