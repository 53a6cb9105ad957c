// Package service contains application services for projects, sessions, settings and exports.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/quotereality/internal/calc"
	"github.com/and161185/quotereality/internal/errs"
	"github.com/and161185/quotereality/internal/model"
	"github.com/and161185/quotereality/internal/repository"
)

// ProjectService defines project operations scoped to one user.
type ProjectService interface {
	// List returns the user's projects with their sessions, newest first.
	List(ctx context.Context, userID string) ([]model.Project, error)
	// Get returns one project with its sessions.
	Get(ctx context.Context, userID string, id uuid.UUID) (*model.Project, error)
	// Create validates input, derives target hours and stores the project.
	Create(ctx context.Context, userID string, in model.NewProject) (*model.Project, error)
	// Update applies a partial change and recomputes derived fields.
	Update(ctx context.Context, userID string, id uuid.UUID, patch model.ProjectPatch) (*model.Project, error)
	// Delete removes the project together with its sessions.
	Delete(ctx context.Context, userID string, id uuid.UUID) error
}

type ProjectServiceImpl struct {
	projects repository.ProjectRepository
	sessions repository.SessionRepository
	settings repository.SettingsRepository
}

// NewProjectService constructs ProjectService.
func NewProjectService(
	projects repository.ProjectRepository,
	sessions repository.SessionRepository,
	settings repository.SettingsRepository,
) *ProjectServiceImpl {
	return &ProjectServiceImpl{projects: projects, sessions: sessions, settings: settings}
}

func validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errs.ErrValidation, fmt.Sprintf(format, args...))
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errs.ErrUnauthorized
	}
	return nil
}

// List loads projects and attaches sessions in one extra query.
func (s *ProjectServiceImpl) List(ctx context.Context, userID string) ([]model.Project, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ps, err := s.projects.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.attachSessions(ctx, ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// Get loads a single project with sessions.
func (s *ProjectServiceImpl) Get(ctx context.Context, userID string, id uuid.UUID) (*model.Project, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		return nil, errs.ErrNotFound
	}
	p, err := s.projects.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	one := []model.Project{*p}
	if err := s.attachSessions(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

func (s *ProjectServiceImpl) attachSessions(ctx context.Context, ps []model.Project) error {
	if len(ps) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(ps))
	for i := range ps {
		ids = append(ids, ps[i].ID)
	}
	all, err := s.sessions.ListByProjects(ctx, ids)
	if err != nil {
		return err
	}
	byProject := make(map[uuid.UUID][]model.TimeSession, len(ps))
	for _, ts := range all {
		byProject[ts.ProjectID] = append(byProject[ts.ProjectID], ts)
	}
	for i := range ps {
		ps[i].Sessions = byProject[ps[i].ID]
		if ps[i].Sessions == nil {
			ps[i].Sessions = []model.TimeSession{}
		}
	}
	return nil
}

// Create validates the input and persists a new project.
// Validation rules:
// - name is non-blank
// - quoteAmount is present and >= 0
// - exactly one of a positive day rate or a positive hourly rate
// - hoursPerDay, when given, at most MaxHoursPerDay
func (s *ProjectServiceImpl) Create(ctx context.Context, userID string, in model.NewProject) (*model.Project, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validation("name is required")
	}
	if in.QuoteAmount == nil {
		return nil, validation("quoteAmount is required")
	}
	if *in.QuoteAmount < 0 {
		return nil, validation("quoteAmount must not be negative")
	}
	status := in.Status
	if status == "" {
		status = model.StatusActive
	}
	if !status.Valid() {
		return nil, validation("unknown status %q", status)
	}

	p := &model.Project{
		UserID:      userID,
		Name:        name,
		Client:      clientOrDefault(in.Client),
		Description: trimOptional(in.Description),
		QuoteAmount: *in.QuoteAmount,
		Status:      status,
		Sessions:    []model.TimeSession{},
	}
	if in.HoursPerDay != nil && *in.HoursPerDay > model.MaxHoursPerDay {
		return nil, validation("hoursPerDay must not exceed %g", model.MaxHoursPerDay)
	}
	if in.HoursPerDay != nil && *in.HoursPerDay > 0 {
		p.HoursPerDay = in.HoursPerDay
	}

	if in.DesiredHourlyRate != nil && in.DesiredDayRate != nil {
		return nil, validation("provide desiredHourlyRate or desiredDayRate, not both")
	}
	useDay := in.DesiredDayRate != nil && *in.DesiredDayRate > 0
	if !useDay && (in.DesiredHourlyRate == nil || *in.DesiredHourlyRate <= 0) {
		return nil, validation("desiredHourlyRate or desiredDayRate must be positive")
	}

	// The settings row must exist before the first project of a user.
	st, err := s.settings.EnsureDefaults(ctx, userID)
	if err != nil {
		return nil, err
	}
	if useDay {
		p.DesiredDayRate = in.DesiredDayRate
	} else {
		p.DesiredHourlyRate = *in.DesiredHourlyRate
	}
	recompute(p, st.HoursPerDay)

	if p.ID, err = uuid.NewV4(); err != nil {
		return nil, err
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Update validates the patch, then applies it under the repository's row lock.
func (s *ProjectServiceImpl) Update(
	ctx context.Context, userID string, id uuid.UUID, patch model.ProjectPatch,
) (*model.Project, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		return nil, errs.ErrNotFound
	}
	if patch.Empty() {
		return nil, validation("no updates provided")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, validation("name must not be empty")
	}
	if patch.QuoteAmount != nil && *patch.QuoteAmount < 0 {
		return nil, validation("quoteAmount must not be negative")
	}
	if patch.DesiredHourlyRate != nil && *patch.DesiredHourlyRate <= 0 {
		return nil, validation("desiredHourlyRate must be positive")
	}
	if patch.HoursPerDay != nil && *patch.HoursPerDay > model.MaxHoursPerDay {
		return nil, validation("hoursPerDay must not exceed %g", model.MaxHoursPerDay)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, validation("unknown status %q", *patch.Status)
	}

	globalHPD := model.DefaultHoursPerDay
	if patch.TouchesRate() {
		st, err := s.settings.EnsureDefaults(ctx, userID)
		if err != nil {
			return nil, err
		}
		globalHPD = st.HoursPerDay
	}

	updated, err := s.projects.Update(ctx, userID, id, func(p *model.Project) error {
		applyPatch(p, patch)
		if patch.TouchesRate() {
			recompute(p, globalHPD)
		}
		if p.DesiredDayRate == nil && p.DesiredHourlyRate <= 0 {
			return validation("desiredHourlyRate must be positive")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	one := []model.Project{*updated}
	if err := s.attachSessions(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// Delete removes the project; the repository cascades to sessions.
func (s *ProjectServiceImpl) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if id == uuid.Nil {
		return errs.ErrNotFound
	}
	return s.projects.Delete(ctx, userID, id)
}

func applyPatch(p *model.Project, patch model.ProjectPatch) {
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Client != nil {
		p.Client = clientOrDefault(*patch.Client)
	}
	if patch.Description != nil {
		p.Description = trimOptional(patch.Description)
	}
	if patch.QuoteAmount != nil {
		p.QuoteAmount = *patch.QuoteAmount
	}
	if patch.DesiredHourlyRate != nil {
		p.DesiredHourlyRate = *patch.DesiredHourlyRate
	}
	switch {
	case patch.ClearDayRate:
		p.DesiredDayRate = nil
	case patch.DesiredDayRate != nil && *patch.DesiredDayRate <= 0:
		p.DesiredDayRate = nil
	case patch.DesiredDayRate != nil:
		v := *patch.DesiredDayRate
		p.DesiredDayRate = &v
	}
	switch {
	case patch.ClearHoursPerDay:
		p.HoursPerDay = nil
	case patch.HoursPerDay != nil && *patch.HoursPerDay <= 0:
		p.HoursPerDay = nil
	case patch.HoursPerDay != nil:
		v := *patch.HoursPerDay
		p.HoursPerDay = &v
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
}

// recompute refreshes the synchronized hourly rate (day-rate workflow) and target hours.
func recompute(p *model.Project, globalHPD float64) {
	if p.DesiredDayRate != nil {
		p.DesiredHourlyRate = calc.HourlyRateFromDayRate(*p.DesiredDayRate, calc.EffectiveHoursPerDay(p, globalHPD))
	}
	p.TargetHours = calc.ProjectTargetHours(p, globalHPD)
}

func clientOrDefault(c string) string {
	if c = strings.TrimSpace(c); c == "" {
		return model.DefaultClient
	}
	return c
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
