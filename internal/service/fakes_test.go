package service

import (
	"context"
	"sort"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/quotereality/internal/errs"
	"github.com/and161185/quotereality/internal/model"
	"github.com/and161185/quotereality/internal/repository"
)

type fakeProjects struct {
	byID map[uuid.UUID]*model.Project

	createErr error
	listErr   error
	updates   int
}

var _ repository.ProjectRepository = (*fakeProjects)(nil)

func newFakeProjects() *fakeProjects { return &fakeProjects{byID: map[uuid.UUID]*model.Project{}} }

func (f *fakeProjects) Create(_ context.Context, p *model.Project) error {
	if f.createErr != nil {
		return f.createErr
	}
	cpy := *p
	f.byID[p.ID] = &cpy
	return nil
}
func (f *fakeProjects) Get(_ context.Context, userID string, id uuid.UUID) (*model.Project, error) {
	p, ok := f.byID[id]
	if !ok || p.UserID != userID {
		return nil, errs.ErrNotFound
	}
	c := *p
	return &c, nil
}
func (f *fakeProjects) List(_ context.Context, userID string) ([]model.Project, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.Project{}
	for _, p := range f.byID {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
func (f *fakeProjects) Update(ctx context.Context, userID string, id uuid.UUID, apply func(p *model.Project) error) (*model.Project, error) {
	p, err := f.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := apply(p); err != nil {
		return nil, err
	}
	f.updates++
	cpy := *p
	f.byID[id] = &cpy
	return p, nil
}
func (f *fakeProjects) Delete(_ context.Context, userID string, id uuid.UUID) error {
	p, ok := f.byID[id]
	if !ok || p.UserID != userID {
		return errs.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

// fakeSessions keeps project totals in step like the SQL implementation does.
type fakeSessions struct {
	projects *fakeProjects
	byID     map[uuid.UUID]model.TimeSession
}

var _ repository.SessionRepository = (*fakeSessions)(nil)

func newFakeSessions(p *fakeProjects) *fakeSessions {
	return &fakeSessions{projects: p, byID: map[uuid.UUID]model.TimeSession{}}
}

func (f *fakeSessions) Create(_ context.Context, userID string, s *model.TimeSession) error {
	p, ok := f.projects.byID[s.ProjectID]
	if !ok || p.UserID != userID {
		return errs.ErrNotFound
	}
	f.byID[s.ID] = *s
	p.TotalTrackedTime += s.Duration
	return nil
}
func (f *fakeSessions) Delete(_ context.Context, userID string, id uuid.UUID) (*model.TimeSession, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	p := f.projects.byID[s.ProjectID]
	if p.UserID != userID {
		return nil, errs.ErrForbidden
	}
	delete(f.byID, id)
	p.TotalTrackedTime -= s.Duration
	if p.TotalTrackedTime < 0 {
		p.TotalTrackedTime = 0
	}
	return &s, nil
}
func (f *fakeSessions) ListByProjects(_ context.Context, ids []uuid.UUID) ([]model.TimeSession, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := []model.TimeSession{}
	for _, s := range f.byID {
		if want[s.ProjectID] {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

type fakeSettings struct {
	byUser map[string]model.UserSettings

	ensureCalls int
	upsertCalls int
	ensureErr   error
}

var _ repository.SettingsRepository = (*fakeSettings)(nil)

func newFakeSettings() *fakeSettings { return &fakeSettings{byUser: map[string]model.UserSettings{}} }

func (f *fakeSettings) Get(_ context.Context, userID string) (*model.UserSettings, error) {
	s, ok := f.byUser[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &s, nil
}
func (f *fakeSettings) EnsureDefaults(ctx context.Context, userID string) (*model.UserSettings, error) {
	f.ensureCalls++
	if f.ensureErr != nil {
		return nil, f.ensureErr
	}
	if _, ok := f.byUser[userID]; !ok {
		f.byUser[userID] = model.UserSettings{
			UserID: userID, DesiredHourlyRate: model.DefaultHourlyRate, CurrencyCode: "gbp", HoursPerDay: model.DefaultHoursPerDay,
		}
	}
	return f.Get(ctx, userID)
}
func (f *fakeSettings) Upsert(_ context.Context, s *model.UserSettings) (*model.UserSettings, error) {
	f.upsertCalls++
	f.byUser[s.UserID] = *s
	c := *s
	return &c, nil
}

func f64(v float64) *float64 { return &v }
func str(v string) *string    { return &v }
