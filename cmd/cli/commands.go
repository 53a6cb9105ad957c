package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"

	"github.com/and161185/quotereality/internal/api"
	"github.com/and161185/quotereality/internal/calc"
	"github.com/and161185/quotereality/internal/export"
	"github.com/and161185/quotereality/internal/money"
	"github.com/and161185/quotereality/internal/state"
	"github.com/and161185/quotereality/internal/timerstore"
)

// ---- auth ----

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Save a bearer token (pass it with --token)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.token == "" {
				return errors.New("need --token")
			}
			exp, err := tokenExpiry(a.token)
			if err != nil {
				return fmt.Errorf("parse token: %w", err)
			}
			if !exp.IsZero() && a.now().After(exp) {
				return errors.New("token has expired")
			}
			if err := saveToken(tokenFile{AccessToken: a.token, ExpiresAt: exp, APIURL: a.apiURL}); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "ok")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return removeToken()
		},
	}
}

// ---- projects ----

func newProjectsCmd(a *app) *cobra.Command {
	var (
		search, status, sort string
		asc                  bool
	)
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"ls"},
		Short:   "List projects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, _, err := a.store()
			if err != nil {
				return err
			}
			if err := st.FetchProjects(ctx); err != nil {
				return err
			}
			f, err := parseFilters(search, status, sort, asc)
			if err != nil {
				return err
			}
			st.SetSearch(f.Search)
			st.SetStatusFilter(f.Status)
			st.SetSort(f.SortField, f.SortDir)
			renderProjects(a.out, st.VisibleProjects(), a.currency(ctx, st))
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "match name or client")
	cmd.Flags().StringVar(&status, "status", "all", "all|active|completed")
	cmd.Flags().StringVar(&sort, "sort", "createdAt", "name|client|createdAt|quoteAmount|effectiveRate")
	cmd.Flags().BoolVar(&asc, "asc", false, "ascending order (default descending)")
	return cmd
}

func parseFilters(search, status, sort string, asc bool) (state.Filters, error) {
	f := state.Filters{Search: search, Status: state.StatusFilter(status), SortField: state.SortField(sort), SortDir: state.Desc}
	if asc {
		f.SortDir = state.Asc
	}
	switch f.Status {
	case state.FilterAll, state.FilterActive, state.FilterCompleted:
	default:
		return f, fmt.Errorf("unknown status filter %q", status)
	}
	switch f.SortField {
	case state.SortName, state.SortClient, state.SortCreatedAt, state.SortQuoteAmount, state.SortEffectiveRate:
	default:
		return f, fmt.Errorf("unknown sort field %q", sort)
	}
	return f, nil
}

// resolveProject accepts a full id or a unique prefix as printed by `qr projects`.
func resolveProject(ctx context.Context, st *state.Store, arg string) (api.Project, error) {
	if err := st.FetchProjects(ctx); err != nil {
		return api.Project{}, err
	}
	arg = strings.ToLower(strings.TrimSpace(arg))
	var match []api.Project
	for _, p := range st.Snapshot().Projects {
		id := p.ID.String()
		if id == arg {
			return p, nil
		}
		if arg != "" && strings.HasPrefix(id, arg) {
			match = append(match, p)
		}
	}
	switch len(match) {
	case 0:
		return api.Project{}, fmt.Errorf("no project matches %q", arg)
	case 1:
		return match[0], nil
	}
	return api.Project{}, fmt.Errorf("%q matches %d projects; use more characters", arg, len(match))
}

type projectFlags struct {
	name, client, description, status string
	quote, rate, dayRate, hoursPerDay float64
	clearDayRate, clearHoursPerDay    bool
}

func (pf *projectFlags) register(cmd *cobra.Command, edit bool) {
	fs := cmd.Flags()
	if edit {
		fs.StringVar(&pf.name, "name", "", "project name")
		fs.BoolVar(&pf.clearDayRate, "clear-day-rate", false, "switch back to the hourly workflow")
		fs.BoolVar(&pf.clearHoursPerDay, "clear-hours-per-day", false, "use the global hours-per-day setting")
	}
	fs.StringVar(&pf.client, "client", "", "client name")
	fs.StringVar(&pf.description, "description", "", "free-form description")
	fs.StringVar(&pf.status, "status", "", "active|completed")
	fs.Float64Var(&pf.quote, "quote", 0, "fixed quote amount")
	fs.Float64Var(&pf.rate, "rate", 0, "desired hourly rate")
	fs.Float64Var(&pf.dayRate, "day-rate", 0, "desired day rate (0 clears it on edit)")
	fs.Float64Var(&pf.hoursPerDay, "hours-per-day", 0, "working hours per day for this project")
}

func changedFloat(cmd *cobra.Command, name string, v float64) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func changedString(cmd *cobra.Command, name, v string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func newProjectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Create, inspect, edit or delete a project"}

	var add projectFlags
	addCmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, _, err := a.store()
			if err != nil {
				return err
			}
			req := api.CreateProjectRequest{
				Name:              args[0],
				Client:            add.client,
				Description:       changedString(cmd, "description", add.description),
				QuoteAmount:       changedFloat(cmd, "quote", add.quote),
				DesiredHourlyRate: changedFloat(cmd, "rate", add.rate),
				DesiredDayRate:    changedFloat(cmd, "day-rate", add.dayRate),
				HoursPerDay:       changedFloat(cmd, "hours-per-day", add.hoursPerDay),
				Status:            add.status,
			}
			p, err := st.AddProject(ctx, req)
			if err != nil {
				return err
			}
			renderProject(a.out, *p, a.currency(ctx, st))
			return nil
		},
	}
	add.register(addCmd, false)
	_ = addCmd.MarkFlagRequired("quote")

	showCmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a project with its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, c, err := a.store()
			if err != nil {
				return err
			}
			p, err := resolveProject(ctx, st, args[0])
			if err != nil {
				return err
			}
			full, err := c.GetProject(ctx, p.ID)
			if err != nil {
				return err
			}
			renderProject(a.out, *full, a.currency(ctx, st))
			return nil
		},
	}

	var edit projectFlags
	editCmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change project fields; rate changes recompute target hours",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, _, err := a.store()
			if err != nil {
				return err
			}
			req := editRequest(cmd, edit)
			if req == (api.UpdateProjectRequest{}) {
				return errors.New("nothing to update")
			}
			p, err := resolveProject(ctx, st, args[0])
			if err != nil {
				return err
			}
			updated, err := st.UpdateProject(ctx, p.ID, req)
			if err != nil {
				return err
			}
			renderProject(a.out, *updated, a.currency(ctx, st))
			return nil
		},
	}
	edit.register(editCmd, true)

	rmCmd := &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a project and its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, _, err := a.store()
			if err != nil {
				return err
			}
			p, err := resolveProject(ctx, st, args[0])
			if err != nil {
				return err
			}
			ts, err := a.timers()
			if err != nil {
				return err
			}
			defer ts.Close()
			if cur, err := ts.Active(ctx); err == nil {
				_ = st.RestoreTimer(cur.ProjectID, cur.StartedAt)
			}
			if err := st.DeleteProject(ctx, p.ID); err != nil {
				return err
			}
			if tstate, _, _ := st.Timer(); tstate == state.TimerIdle {
				if err := ts.Clear(ctx); err != nil {
					return err
				}
			}
			fmt.Fprintf(a.out, "deleted %s\n", p.Name)
			return nil
		},
	}

	cmd.AddCommand(addCmd, showCmd, editCmd, rmCmd)
	return cmd
}

func editRequest(cmd *cobra.Command, f projectFlags) api.UpdateProjectRequest {
	req := api.UpdateProjectRequest{
		Name:              changedString(cmd, "name", f.name),
		Client:            changedString(cmd, "client", f.client),
		Description:       changedString(cmd, "description", f.description),
		QuoteAmount:       changedFloat(cmd, "quote", f.quote),
		DesiredHourlyRate: changedFloat(cmd, "rate", f.rate),
		Status:            changedString(cmd, "status", f.status),
	}
	switch {
	case f.clearDayRate:
		req.DesiredDayRate = api.Null[float64]()
	case cmd.Flags().Changed("day-rate"):
		req.DesiredDayRate = api.Of(f.dayRate)
	}
	switch {
	case f.clearHoursPerDay:
		req.HoursPerDay = api.Null[float64]()
	case cmd.Flags().Changed("hours-per-day"):
		req.HoursPerDay = api.Of(f.hoursPerDay)
	}
	return req
}

// ---- timer ----

func newTimerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "timer", Short: "Stopwatch that survives between invocations"}

	startCmd := &cobra.Command{
		Use:   "start PROJECT",
		Short: "Start the timer on a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, _, err := a.store()
			if err != nil {
				return err
			}
			ts, err := a.timers()
			if err != nil {
				return err
			}
			defer ts.Close()

			if err := restoreTimer(ctx, ts, st); err != nil {
				return err
			}
			p, err := resolveProject(ctx, st, args[0])
			if err != nil {
				return err
			}
			if err := st.StartTimer(p.ID); errors.Is(err, state.ErrTimerRunning) {
				name := "another project"
				if cur, err := ts.Active(ctx); err == nil && cur.ProjectName != "" {
					name = cur.ProjectName
				}
				return fmt.Errorf("timer already running on %s; stop it first", name)
			} else if err != nil {
				return err
			}
			_, _, started := st.Timer()
			if err := ts.Start(ctx, timerstore.Timer{ProjectID: p.ID, ProjectName: p.Name, StartedAt: started}); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s\n", timerStyle.Render("started"), p.Name)
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the timer and record the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, _, err := a.store()
			if err != nil {
				return err
			}
			ts, err := a.timers()
			if err != nil {
				return err
			}
			defer ts.Close()

			cur, err := ts.Active(ctx)
			if errors.Is(err, timerstore.ErrNoTimer) {
				return state.ErrTimerIdle
			} else if err != nil {
				return err
			}
			if err := st.RestoreTimer(cur.ProjectID, cur.StartedAt); err != nil {
				return err
			}
			sess, err := st.StopTimer(ctx)
			if err != nil {
				return fmt.Errorf("saving session (timer still running): %w", err)
			}
			if err := ts.Clear(ctx); err != nil {
				return err
			}
			if sess == nil {
				fmt.Fprintf(a.out, "stopped %s; nothing recorded\n", cur.ProjectName)
				return nil
			}
			fmt.Fprintf(a.out, "stopped %s: %s recorded\n", cur.ProjectName, calc.FormatDuration(sess.Duration))
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running timer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ts, err := a.timers()
			if err != nil {
				return err
			}
			defer ts.Close()
			cur, err := ts.Active(cmd.Context())
			if errors.Is(err, timerstore.ErrNoTimer) {
				fmt.Fprintln(a.out, mutedStyle.Render("idle"))
				return nil
			} else if err != nil {
				return err
			}
			elapsed := max(0, int64(a.now().Sub(cur.StartedAt)/time.Second))
			fmt.Fprintf(a.out, "%s %s since %s\n",
				timerStyle.Render(calc.FormatClock(elapsed)),
				cur.ProjectName,
				cur.StartedAt.Local().Format("15:04"))
			return nil
		},
	}

	cmd.AddCommand(startCmd, stopCmd, statusCmd)
	return cmd
}

func restoreTimer(ctx context.Context, ts *timerstore.Store, st *state.Store) error {
	cur, err := ts.Active(ctx)
	if errors.Is(err, timerstore.ErrNoTimer) {
		return nil
	}
	if err != nil {
		return err
	}
	return st.RestoreTimer(cur.ProjectID, cur.StartedAt)
}

// ---- sessions ----

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "session", Short: "Add or remove time entries"}

	var (
		dur        time.Duration
		start, end string
		note       string
	)
	addCmd := &cobra.Command{
		Use:   "add PROJECT",
		Short: "Record a manual session",
		Long: `Record a manual session. Give --duration, or --start and --end.
Dates accept 2006-01-02[ 15:04], RFC 3339 or phrases like "yesterday 14:00".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req, err := manualSession(a.now(), dur, start, end, note)
			if err != nil {
				return err
			}
			st, _, err := a.store()
			if err != nil {
				return err
			}
			p, err := resolveProject(ctx, st, args[0])
			if err != nil {
				return err
			}
			req.ProjectID = p.ID.String()
			sess, err := st.AddSession(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "recorded %s on %s (%s)\n", calc.FormatDuration(sess.Duration), p.Name, sess.ID.String()[:8])
			return nil
		},
	}
	addCmd.Flags().DurationVarP(&dur, "duration", "d", 0, "length, e.g. 1h30m")
	addCmd.Flags().StringVar(&start, "start", "", "start time")
	addCmd.Flags().StringVar(&end, "end", "", "end time (default start+duration or now)")
	addCmd.Flags().StringVarP(&note, "note", "n", "", "short note")

	rmCmd := &cobra.Command{
		Use:   "rm PROJECT SESSION",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, c, err := a.store()
			if err != nil {
				return err
			}
			p, err := resolveProject(ctx, st, args[0])
			if err != nil {
				return err
			}
			full, err := c.GetProject(ctx, p.ID)
			if err != nil {
				return err
			}
			sid, err := resolveSession(full.Sessions, args[1])
			if err != nil {
				return err
			}
			if err := st.DeleteSession(ctx, p.ID, sid); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "deleted")
			return nil
		},
	}

	cmd.AddCommand(addCmd, rmCmd)
	return cmd
}

// manualSession builds a manual session from CLI input. With only a duration the
// session ends now.
func manualSession(now time.Time, dur time.Duration, start, end, note string) (api.CreateSessionRequest, error) {
	var req api.CreateSessionRequest
	var s, e time.Time
	var err error

	switch {
	case start != "" && end != "":
		if s, err = parseWhen(start, now); err != nil {
			return req, err
		}
		if e, err = parseWhen(end, now); err != nil {
			return req, err
		}
	case start != "":
		if s, err = parseWhen(start, now); err != nil {
			return req, err
		}
		e = s.Add(dur)
	case end != "":
		if e, err = parseWhen(end, now); err != nil {
			return req, err
		}
		s = e.Add(-dur)
	default:
		e = now
		s = now.Add(-dur)
	}
	if dur > 0 && start != "" && end != "" && e.Sub(s) != dur {
		return req, errors.New("--duration conflicts with --start/--end")
	}

	secs := int64(e.Sub(s) / time.Second)
	if secs <= 0 {
		return req, errors.New("session must be at least one second long")
	}
	eu := e.UTC()
	req = api.CreateSessionRequest{
		StartTime: s.UTC(),
		EndTime:   &eu,
		Duration:  secs,
		IsManual:  true,
	}
	if n := strings.TrimSpace(note); n != "" {
		req.Note = &n
	}
	return req, nil
}

func resolveSession(ss []api.Session, arg string) (uuid.UUID, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	var match []uuid.UUID
	for _, s := range ss {
		id := s.ID.String()
		if id == arg {
			return s.ID, nil
		}
		if arg != "" && strings.HasPrefix(id, arg) {
			match = append(match, s.ID)
		}
	}
	if len(match) != 1 {
		return uuid.Nil, fmt.Errorf("no unique session matches %q", arg)
	}
	return match[0], nil
}

// ---- settings ----

func newSettingsCmd(a *app) *cobra.Command {
	var (
		rate, hpd float64
		currency  string
		list      bool
	)
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change your defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list {
				for _, o := range money.Options() {
					fmt.Fprintf(a.out, "%s  %s\n", o.Value, o.Label)
				}
				return nil
			}
			ctx := cmd.Context()
			st, _, err := a.store()
			if err != nil {
				return err
			}
			req := api.UpdateSettingsRequest{
				DesiredHourlyRate: changedFloat(cmd, "rate", rate),
				HoursPerDay:       changedFloat(cmd, "hours-per-day", hpd),
			}
			if cmd.Flags().Changed("currency") {
				code, err := money.Parse(currency)
				if err != nil {
					return err
				}
				c := string(code)
				req.CurrencyCode = &c
			}
			if req == (api.UpdateSettingsRequest{}) {
				err = st.FetchSettings(ctx)
			} else {
				err = st.UpdateSettings(ctx, req)
			}
			if err != nil {
				return err
			}
			renderSettings(a.out, *st.Snapshot().Settings)
			return nil
		},
	}
	cmd.Flags().Float64Var(&rate, "rate", 0, "default desired hourly rate")
	cmd.Flags().StringVar(&currency, "currency", "", "gbp|usd|eur")
	cmd.Flags().Float64Var(&hpd, "hours-per-day", 0, "working hours in a day")
	cmd.Flags().BoolVar(&list, "list-currencies", false, "print supported currencies")
	return cmd
}

// ---- export ----

func newExportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:       "export json|csv",
		Short:     "Download your data",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"json", "csv"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.client()
			if err != nil {
				return err
			}

			var write func(io.Writer) error
			name := out
			switch args[0] {
			case "json":
				doc, err := c.ExportJSON(ctx)
				if err != nil {
					return err
				}
				write = func(w io.Writer) error { return export.WriteJSONDocument(w, *doc) }
				if name == "" {
					name = export.JSONFilename(a.now())
				}
			case "csv":
				write = func(w io.Writer) error { return c.ExportCSV(ctx, w) }
				if name == "" {
					name = export.CSVFilename(a.now())
				}
			}

			if name == "-" {
				return write(a.out)
			}
			if err := export.ToFile(name, write); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "wrote %s\n", name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file, - for stdout")
	return cmd
}
