// Package state holds the client-side view of a user's data: fetched projects
// and settings, the running timer, and list filters.
//
// Mutations go to the server first. Local state changes only after the server
// confirms; a failed session mutation drops the local project list and reloads
// it from the server.
package state

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/quotereality/internal/api"
	"github.com/and161185/quotereality/internal/calc"
	"github.com/and161185/quotereality/internal/client"
)

var (
	// ErrTimerRunning is returned by StartTimer while another timer is active.
	ErrTimerRunning = errors.New("a timer is already running")
	// ErrTimerIdle is returned by StopTimer when no timer is active.
	ErrTimerIdle = errors.New("no timer is running")
)

// Backend is the subset of the REST client the store calls.
type Backend interface {
	ListProjects(ctx context.Context) ([]api.Project, error)
	CreateProject(ctx context.Context, req api.CreateProjectRequest) (*api.Project, error)
	UpdateProject(ctx context.Context, id uuid.UUID, req api.UpdateProjectRequest) (*api.Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID) error
	CreateSession(ctx context.Context, req api.CreateSessionRequest) (*api.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	GetSettings(ctx context.Context) (*api.Settings, error)
	UpdateSettings(ctx context.Context, req api.UpdateSettingsRequest) (*api.Settings, error)
}

var _ Backend = (*client.Client)(nil)

// TimerState is idle or running.
type TimerState int

const (
	TimerIdle TimerState = iota
	TimerRunning
)

func (s TimerState) String() string {
	if s == TimerRunning {
		return "running"
	}
	return "idle"
}

type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterActive    StatusFilter = "active"
	FilterCompleted StatusFilter = "completed"
)

type SortField string

const (
	SortName          SortField = "name"
	SortClient        SortField = "client"
	SortCreatedAt     SortField = "createdAt"
	SortQuoteAmount   SortField = "quoteAmount"
	SortEffectiveRate SortField = "effectiveRate"
)

type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// Filters are list preferences. They never leave the client.
type Filters struct {
	Search    string
	Status    StatusFilter
	SortField SortField
	SortDir   SortDirection
}

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Projects        []api.Project
	Settings        *api.Settings
	Loading         bool
	Initialized     bool
	Error           string
	ActiveProjectID *uuid.UUID
	TimerStartTime  *time.Time
	Filters         Filters
}

// Store is the client state container. It is safe for concurrent use; network
// calls run without the lock held and the last response to arrive wins.
type Store struct {
	backend Backend
	now     func() time.Time

	mu              sync.Mutex
	projects        []api.Project
	settings        *api.Settings
	loading         bool
	initialized     bool
	errMsg          string
	activeProjectID *uuid.UUID
	timerStart      time.Time
	filters         Filters
}

func New(backend Backend) *Store {
	return &Store{
		backend:  backend,
		now:      time.Now,
		projects: []api.Project{},
		filters: Filters{
			Status:    FilterAll,
			SortField: SortCreatedAt,
			SortDir:   Desc,
		},
	}
}

// begin marks a request in flight and clears the previous error.
func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()
}

// fail records err (or fallback when err carries no server message) and returns err.
func (s *Store) fail(err error, fallback string) error {
	msg := fallback
	var ae *client.APIError
	if errors.As(err, &ae) && ae.Message != "" {
		msg = ae.Message
	}
	s.mu.Lock()
	s.loading = false
	s.errMsg = msg
	s.mu.Unlock()
	return err
}

// --- Settings ---

func (s *Store) FetchSettings(ctx context.Context) error {
	s.begin()
	st, err := s.backend.GetSettings(ctx)
	if err != nil {
		return s.fail(err, "Failed to fetch settings")
	}
	s.mu.Lock()
	s.settings = st
	s.loading = false
	s.mu.Unlock()
	return nil
}

func (s *Store) UpdateSettings(ctx context.Context, req api.UpdateSettingsRequest) error {
	s.begin()
	st, err := s.backend.UpdateSettings(ctx, req)
	if err != nil {
		return s.fail(err, "Failed to update settings")
	}
	s.mu.Lock()
	s.settings = st
	s.loading = false
	s.mu.Unlock()
	return nil
}

// --- Projects ---

func (s *Store) FetchProjects(ctx context.Context) error {
	s.begin()
	ps, err := s.backend.ListProjects(ctx)
	if err != nil {
		s.mu.Lock()
		s.initialized = true
		s.mu.Unlock()
		return s.fail(err, "Failed to fetch projects")
	}
	s.mu.Lock()
	s.projects = cloneProjects(ps)
	s.loading = false
	s.initialized = true
	s.mu.Unlock()
	return nil
}

// AddProject creates a project and puts it at the head of the list.
func (s *Store) AddProject(ctx context.Context, req api.CreateProjectRequest) (*api.Project, error) {
	s.begin()
	p, err := s.backend.CreateProject(ctx, req)
	if err != nil {
		return nil, s.fail(err, "Failed to create project")
	}
	s.mu.Lock()
	s.projects = append(cloneProjects([]api.Project{*p}), s.projects...)
	s.loading = false
	s.mu.Unlock()
	return p, nil
}

func (s *Store) UpdateProject(ctx context.Context, id uuid.UUID, req api.UpdateProjectRequest) (*api.Project, error) {
	s.begin()
	p, err := s.backend.UpdateProject(ctx, id, req)
	if err != nil {
		return nil, s.fail(err, "Failed to update project")
	}
	s.mu.Lock()
	for i := range s.projects {
		if s.projects[i].ID == id {
			s.projects[i] = cloneProjects([]api.Project{*p})[0]
		}
	}
	s.loading = false
	s.mu.Unlock()
	return p, nil
}

// DeleteProject removes a project. A timer running on it is discarded.
func (s *Store) DeleteProject(ctx context.Context, id uuid.UUID) error {
	s.begin()
	if err := s.backend.DeleteProject(ctx, id); err != nil {
		return s.fail(err, "Failed to delete project")
	}
	s.mu.Lock()
	s.projects = slices.DeleteFunc(s.projects, func(p api.Project) bool { return p.ID == id })
	if s.activeProjectID != nil && *s.activeProjectID == id {
		s.clearTimerLocked()
	}
	s.loading = false
	s.mu.Unlock()
	return nil
}

// --- Sessions ---

// AddSession records a session and folds it into the cached project.
// On failure the project list is reloaded.
func (s *Store) AddSession(ctx context.Context, req api.CreateSessionRequest) (*api.Session, error) {
	s.begin()
	sess, err := s.backend.CreateSession(ctx, req)
	if err != nil {
		err = s.fail(err, "Failed to create session")
		s.resync(ctx)
		return nil, err
	}
	s.mu.Lock()
	if p := s.findLocked(sess.ProjectID); p != nil {
		p.Sessions = append([]api.Session{*sess}, p.Sessions...)
		p.TotalTrackedTime += sess.Duration
		refreshDerived(p)
	}
	s.loading = false
	s.mu.Unlock()
	return sess, nil
}

// DeleteSession removes a session from projectID. On failure the project list
// is reloaded.
func (s *Store) DeleteSession(ctx context.Context, projectID, sessionID uuid.UUID) error {
	s.begin()
	if err := s.backend.DeleteSession(ctx, sessionID); err != nil {
		err = s.fail(err, "Failed to delete session")
		s.resync(ctx)
		return err
	}
	s.mu.Lock()
	if p := s.findLocked(projectID); p != nil {
		var dur int64
		p.Sessions = slices.DeleteFunc(slices.Clone(p.Sessions), func(x api.Session) bool {
			if x.ID == sessionID {
				dur = x.Duration
				return true
			}
			return false
		})
		p.TotalTrackedTime = max(0, p.TotalTrackedTime-dur)
		refreshDerived(p)
	}
	s.loading = false
	s.mu.Unlock()
	return nil
}

// resync discards the cached projects and reloads them. If the reload fails
// too, the cache is dropped and the store reports itself uninitialized. The
// mutation error stays the visible one.
func (s *Store) resync(ctx context.Context) {
	s.mu.Lock()
	msg := s.errMsg
	s.mu.Unlock()

	ps, err := s.backend.ListProjects(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.projects = []api.Project{}
		s.initialized = false
	} else {
		s.projects = cloneProjects(ps)
	}
	s.errMsg = msg
	s.loading = false
}

// cloneProjects copies ps and each project's sessions so callers never share
// backing arrays with the store.
func cloneProjects(ps []api.Project) []api.Project {
	out := make([]api.Project, len(ps))
	for i, p := range ps {
		p.Sessions = slices.Clone(p.Sessions)
		if p.Sessions == nil {
			p.Sessions = []api.Session{}
		}
		out[i] = p
	}
	return out
}

func (s *Store) findLocked(id uuid.UUID) *api.Project {
	for i := range s.projects {
		if s.projects[i].ID == id {
			return &s.projects[i]
		}
	}
	return nil
}

func refreshDerived(p *api.Project) {
	m := p.ToModel()
	p.EffectiveHourlyRate = calc.EffectiveHourlyRate(&m)
	p.RateStatus = string(calc.RateStatus(&m))
}

// --- Timer ---

// StartTimer pins projectID and records the start time.
func (s *Store) StartTimer(projectID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeProjectID != nil {
		return ErrTimerRunning
	}
	s.activeProjectID = &projectID
	s.timerStart = s.now()
	return nil
}

// RestoreTimer resumes a timer started elsewhere, e.g. by an earlier process.
func (s *Store) RestoreTimer(projectID uuid.UUID, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeProjectID != nil {
		return ErrTimerRunning
	}
	s.activeProjectID = &projectID
	s.timerStart = startedAt
	return nil
}

// StopTimer ends the running timer. A positive elapsed time is saved as a
// non-manual session first; if saving fails the timer keeps running.
// The returned session is nil when nothing was saved.
func (s *Store) StopTimer(ctx context.Context) (*api.Session, error) {
	s.mu.Lock()
	if s.activeProjectID == nil {
		s.mu.Unlock()
		return nil, ErrTimerIdle
	}
	pid, start := *s.activeProjectID, s.timerStart
	end := s.now()
	s.mu.Unlock()

	elapsed := int64(end.Sub(start) / time.Second)

	var sess *api.Session
	if elapsed > 0 {
		endUTC := end.UTC()
		var err error
		sess, err = s.AddSession(ctx, api.CreateSessionRequest{
			ProjectID: pid.String(),
			StartTime: start.UTC(),
			EndTime:   &endUTC,
			Duration:  elapsed,
			IsManual:  false,
		})
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	if s.activeProjectID != nil && *s.activeProjectID == pid && s.timerStart.Equal(start) {
		s.clearTimerLocked()
	}
	s.mu.Unlock()
	return sess, nil
}

func (s *Store) clearTimerLocked() {
	s.activeProjectID = nil
	s.timerStart = time.Time{}
}

// Timer reports the timer state and, when running, the pinned project.
func (s *Store) Timer() (TimerState, uuid.UUID, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeProjectID == nil {
		return TimerIdle, uuid.Nil, time.Time{}
	}
	return TimerRunning, *s.activeProjectID, s.timerStart
}

// Elapsed is the running timer's whole seconds, or 0 when idle.
func (s *Store) Elapsed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeProjectID == nil {
		return 0
	}
	return max(0, int64(s.now().Sub(s.timerStart)/time.Second))
}

// --- Filters ---

func (s *Store) SetSearch(q string) {
	s.mu.Lock()
	s.filters.Search = q
	s.mu.Unlock()
}

func (s *Store) SetStatusFilter(f StatusFilter) {
	s.mu.Lock()
	s.filters.Status = f
	s.mu.Unlock()
}

func (s *Store) SetSort(field SortField, dir SortDirection) {
	s.mu.Lock()
	s.filters.SortField = field
	s.filters.SortDir = dir
	s.mu.Unlock()
}

// VisibleProjects applies search, status filter and sort to a copy of the list.
func (s *Store) VisibleProjects() []api.Project {
	s.mu.Lock()
	out := cloneProjects(s.projects)
	f := s.filters
	s.mu.Unlock()
	return ApplyFilters(out, f)
}

// ApplyFilters filters and sorts ps in place and returns the result.
func ApplyFilters(ps []api.Project, f Filters) []api.Project {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		ps = slices.DeleteFunc(ps, func(p api.Project) bool {
			return !strings.Contains(strings.ToLower(p.Name), q) &&
				!strings.Contains(strings.ToLower(p.Client), q)
		})
	}
	if f.Status != "" && f.Status != FilterAll {
		ps = slices.DeleteFunc(ps, func(p api.Project) bool { return p.Status != string(f.Status) })
	}

	cmp := compareBy(f.SortField)
	slices.SortStableFunc(ps, func(a, b api.Project) int {
		c := cmp(a, b)
		if f.SortDir == Desc {
			return -c
		}
		return c
	})
	return ps
}

func compareBy(field SortField) func(a, b api.Project) int {
	switch field {
	case SortName:
		return func(a, b api.Project) int { return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)) }
	case SortClient:
		return func(a, b api.Project) int { return strings.Compare(strings.ToLower(a.Client), strings.ToLower(b.Client)) }
	case SortQuoteAmount:
		return func(a, b api.Project) int { return cmpFloat(a.QuoteAmount, b.QuoteAmount) }
	case SortEffectiveRate:
		return func(a, b api.Project) int {
			am, bm := a.ToModel(), b.ToModel()
			return cmpFloat(calc.EffectiveHourlyRate(&am), calc.EffectiveHourlyRate(&bm))
		}
	default:
		return func(a, b api.Project) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// --- Misc ---

func (s *Store) ClearError() {
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()
}

// Err is the last surfaced error message.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Projects:    cloneProjects(s.projects),
		Loading:     s.loading,
		Initialized: s.initialized,
		Error:       s.errMsg,
		Filters:     s.filters,
	}
	if s.settings != nil {
		st := *s.settings
		snap.Settings = &st
	}
	if s.activeProjectID != nil {
		id, start := *s.activeProjectID, s.timerStart
		snap.ActiveProjectID = &id
		snap.TimerStartTime = &start
	}
	return snap
}
