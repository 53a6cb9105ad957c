package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/quotereality/internal/api"
	"github.com/and161185/quotereality/internal/state"
	"github.com/and161185/quotereality/internal/timerstore"
)

// fakeAPI is an in-memory stand-in for qr-server.
type fakeAPI struct {
	mu           sync.Mutex
	projects     []api.Project
	sessions     []api.CreateSessionRequest
	deleted      []string
	failSessions bool
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/projects", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, f.projects)
	})
	mux.HandleFunc("GET /api/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, p := range f.projects {
			if p.ID.String() == r.PathValue("id") {
				writeJSON(w, http.StatusOK, p)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "Project not found"})
	})
	mux.HandleFunc("DELETE /api/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.deleted = append(f.deleted, r.PathValue("id"))
		writeJSON(w, http.StatusOK, api.SuccessResponse{Success: true})
	})
	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failSessions {
			writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create session"})
			return
		}
		var req api.CreateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request"})
			return
		}
		f.sessions = append(f.sessions, req)
		writeJSON(w, http.StatusCreated, api.Session{
			ID:        uuid.Must(uuid.NewV4()),
			ProjectID: uuid.FromStringOrNil(req.ProjectID),
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			Duration:  req.Duration,
			IsManual:  req.IsManual,
			Note:      req.Note,
		})
	})
	mux.HandleFunc("GET /api/settings", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, api.Settings{DesiredHourlyRate: 100, CurrencyCode: "gbp", HoursPerDay: 8})
	})
	mux.HandleFunc("GET /api/export.csv", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "Project Name,Client\nSite,Acme\n")
	})
	return authOnly(mux)
}

func authOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *fakeAPI) posted() []api.CreateSessionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.CreateSessionRequest(nil), f.sessions...)
}

func newFakeAPI(t *testing.T, names ...string) *fakeAPI {
	t.Helper()
	_ = withTmpConfig(t)
	f := &fakeAPI{}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, n := range names {
		f.projects = append(f.projects, api.Project{
			ID: uuid.Must(uuid.NewV4()), Name: n, Client: "Acme", QuoteAmount: 1000, DesiredHourlyRate: 100,
			TargetHours: 10, Status: "active", RateStatus: "above", EffectiveHourlyRate: 100,
			CreatedAt: base.Add(time.Duration(i) * time.Hour), Sessions: []api.Session{},
		})
	}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	t.Setenv("QR_API_URL", srv.URL)
	return f
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{now: time.Now}
	root := newRootCmd(a)
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"--token", "tok"}, args...))
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func openTimers(t *testing.T) *timerstore.Store {
	t.Helper()
	ts, err := timerstore.Open(timerDBPath())
	if err != nil {
		t.Fatalf("open timerstore: %v", err)
	}
	return ts
}

func backdateTimer(t *testing.T, by time.Duration) {
	t.Helper()
	ts := openTimers(t)
	defer ts.Close()
	cur, err := ts.Active(context.Background())
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	cur.StartedAt = cur.StartedAt.Add(-by)
	if err := ts.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := ts.Start(context.Background(), *cur); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func TestTimerStartStop_RecordsSession(t *testing.T) {
	f := newFakeAPI(t, "Site", "Shop")
	site := f.projects[0]

	out, err := run(t, "timer", "start", site.ID.String()[:8])
	if err != nil || !strings.Contains(out, "started Site") {
		t.Fatalf("start: %q %v", out, err)
	}

	_, err = run(t, "timer", "start", f.projects[1].ID.String())
	if err == nil || !strings.Contains(err.Error(), "already running on Site") {
		t.Fatalf("second start should be rejected, got %v", err)
	}

	backdateTimer(t, time.Hour)

	out, err = run(t, "timer", "status")
	if err != nil || !strings.Contains(out, "01:00:0") || !strings.Contains(out, "Site") {
		t.Fatalf("status: %q %v", out, err)
	}

	out, err = run(t, "timer", "stop")
	if err != nil || !strings.Contains(out, "1h 0m recorded") {
		t.Fatalf("stop: %q %v", out, err)
	}
	posted := f.posted()
	if len(posted) != 1 {
		t.Fatalf("want 1 session posted, got %d", len(posted))
	}
	s := posted[0]
	if s.ProjectID != site.ID.String() || s.IsManual || s.Duration < 3600 || s.Duration > 3660 || s.EndTime == nil {
		t.Fatalf("unexpected session: %+v", s)
	}

	out, err = run(t, "timer", "status")
	if err != nil || !strings.Contains(out, "idle") {
		t.Fatalf("status after stop: %q %v", out, err)
	}
	if _, err := run(t, "timer", "stop"); !errors.Is(err, state.ErrTimerIdle) {
		t.Fatalf("stop when idle: %v", err)
	}
}

func TestTimerStop_FailureKeepsTimer(t *testing.T) {
	f := newFakeAPI(t, "Site")

	if _, err := run(t, "timer", "start", f.projects[0].ID.String()); err != nil {
		t.Fatalf("start: %v", err)
	}
	backdateTimer(t, time.Minute)
	f.mu.Lock()
	f.failSessions = true
	f.mu.Unlock()

	_, err := run(t, "timer", "stop")
	if err == nil || !strings.Contains(err.Error(), "timer still running") {
		t.Fatalf("stop should fail: %v", err)
	}

	ts := openTimers(t)
	defer ts.Close()
	if _, err := ts.Active(context.Background()); err != nil {
		t.Fatalf("timer should survive a failed stop: %v", err)
	}
}

func TestProjectRm_ClearsTimerOnThatProject(t *testing.T) {
	f := newFakeAPI(t, "Site")
	id := f.projects[0].ID.String()

	if _, err := run(t, "timer", "start", id); err != nil {
		t.Fatalf("start: %v", err)
	}
	out, err := run(t, "project", "rm", id)
	if err != nil || !strings.Contains(out, "deleted Site") {
		t.Fatalf("rm: %q %v", out, err)
	}
	f.mu.Lock()
	deleted := append([]string(nil), f.deleted...)
	f.mu.Unlock()
	if len(deleted) != 1 || deleted[0] != id {
		t.Fatalf("delete not sent: %v", deleted)
	}
	ts := openTimers(t)
	defer ts.Close()
	if _, err := ts.Active(context.Background()); !errors.Is(err, timerstore.ErrNoTimer) {
		t.Fatalf("timer should be cleared: %v", err)
	}
}

func TestProjects_ListSorted(t *testing.T) {
	_ = newFakeAPI(t, "Beta", "Alpha", "Gamma")

	out, err := run(t, "projects", "--sort", "name", "--asc")
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	a, b, g := strings.Index(out, "Alpha"), strings.Index(out, "Beta"), strings.Index(out, "Gamma")
	if a < 0 || !(a < b && b < g) {
		t.Fatalf("not sorted by name:\n%s", out)
	}
	if !strings.Contains(out, "Above target") {
		t.Fatalf("rate badge missing:\n%s", out)
	}

	out, err = run(t, "projects", "--search", "gam")
	if err != nil || strings.Contains(out, "Alpha") || !strings.Contains(out, "Gamma") {
		t.Fatalf("search: %q %v", out, err)
	}

	if _, err := run(t, "projects", "--status", "archived"); err == nil {
		t.Fatalf("want error for unknown status")
	}
}

func TestSessionAdd_Manual(t *testing.T) {
	f := newFakeAPI(t, "Site")

	out, err := run(t, "session", "add", f.projects[0].ID.String(), "-d", "45m", "--note", "review")
	if err != nil || !strings.Contains(out, "recorded 45m 0s on Site") {
		t.Fatalf("session add: %q %v", out, err)
	}
	s := f.posted()[0]
	if !s.IsManual || s.Duration != 2700 || s.Note == nil || *s.Note != "review" {
		t.Fatalf("unexpected session: %+v", s)
	}
}

func TestExportCSV_ToFileAndStdout(t *testing.T) {
	_ = newFakeAPI(t)

	out, err := run(t, "export", "csv", "-o", "-")
	if err != nil || out != "Project Name,Client\nSite,Acme\n" {
		t.Fatalf("export to stdout: %q %v", out, err)
	}

	path := filepath.Join(t.TempDir(), "p.csv")
	if _, err := run(t, "export", "csv", "-o", path); err != nil {
		t.Fatalf("export to file: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || !strings.HasPrefix(string(b), "Project Name") {
		t.Fatalf("file content: %q %v", b, err)
	}

	if _, err := run(t, "export", "xml"); err == nil {
		t.Fatalf("want error for unknown format")
	}
}

func TestLogin_SavesToken(t *testing.T) {
	_ = withTmpConfig(t)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signed(t, exp)

	a := &app{now: time.Now}
	root := newRootCmd(a)
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"login", "--token", tok, "--api", "http://example.test"})
	if err := root.Execute(); err != nil {
		t.Fatalf("login: %v", err)
	}
	tf, err := loadToken()
	if err != nil || tf.AccessToken != tok || !tf.ExpiresAt.Equal(exp) || tf.APIURL != "http://example.test" {
		t.Fatalf("saved token: %+v %v", tf, err)
	}

	root = newRootCmd(&app{now: time.Now})
	root.SetOut(io.Discard)
	root.SetArgs([]string{"login", "--token", signed(t, time.Now().Add(-time.Hour))})
	if err := root.Execute(); err == nil {
		t.Fatalf("expired token should be rejected")
	}
}

func TestUnauthorizedSurfacesAPIError(t *testing.T) {
	_ = newFakeAPI(t, "Site")

	a := &app{now: time.Now}
	root := newRootCmd(a)
	root.SetOut(io.Discard)
	root.SetArgs([]string{"--token", "wrong", "projects"})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "Unauthorized") {
		t.Fatalf("want unauthorized, got %v", err)
	}
}
