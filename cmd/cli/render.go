package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/and161185/quotereality/internal/api"
	"github.com/and161185/quotereality/internal/calc"
	"github.com/and161185/quotereality/internal/model"
	"github.com/and161185/quotereality/internal/money"
)

var (
	colorPrimary = lipgloss.Color("#6C63FF")
	colorMuted   = lipgloss.Color("#666666")
	colorSuccess = lipgloss.Color("#2ECC71")
	colorInfo    = lipgloss.Color("#7AA2F7")
	colorWarning = lipgloss.Color("#F39C12")
	colorError   = lipgloss.Color("#E74C3C")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	timerStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
)

var rateStyles = map[model.RateStatus]lipgloss.Style{
	model.RateAbove:    lipgloss.NewStyle().Foreground(colorSuccess),
	model.RateAt:       lipgloss.NewStyle().Foreground(colorInfo),
	model.RateBelow:    lipgloss.NewStyle().Foreground(colorWarning),
	model.RateCritical: lipgloss.NewStyle().Bold(true).Foreground(colorError),
}

var rateLabels = map[model.RateStatus]string{
	model.RateAbove:    "Above target",
	model.RateAt:       "On target",
	model.RateBelow:    "Below target",
	model.RateCritical: "Critical",
}

func rateBadge(status string) string {
	st := model.RateStatus(status)
	label, ok := rateLabels[st]
	if !ok {
		return status
	}
	return rateStyles[st].Render(label)
}

type column struct {
	title string
	width int
}

var projectColumns = []column{
	{"ID", 8}, {"NAME", 24}, {"CLIENT", 16}, {"QUOTE", 12}, {"TRACKED", 9},
	{"TARGET", 8}, {"RATE", 12}, {"STATUS", 10}, {"HEALTH", 12},
}

func cell(s string, width int) string {
	if lipgloss.Width(s) > width {
		r := []rune(s)
		for len(r) > 0 && lipgloss.Width(string(r)) > width-1 {
			r = r[:len(r)-1]
		}
		s = string(r) + "…"
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}

func renderProjects(w io.Writer, ps []api.Project, code money.Code) {
	if len(ps) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No projects yet. Create one with `qr project add`."))
		return
	}
	head := make([]string, 0, len(projectColumns))
	for _, c := range projectColumns {
		head = append(head, cell(headerStyle.Render(c.title), c.width))
	}
	fmt.Fprintln(w, strings.Join(head, " "))

	for _, p := range ps {
		row := []string{
			p.ID.String()[:8],
			p.Name,
			p.Client,
			money.Format(p.QuoteAmount, code),
			calc.FormatHours(p.TotalTrackedTime),
			fmt.Sprintf("%.1fh", p.TargetHours),
			money.Format(p.EffectiveHourlyRate, code),
			p.Status,
		}
		cells := make([]string, 0, len(projectColumns))
		for i, v := range row {
			cells = append(cells, cell(v, projectColumns[i].width))
		}
		cells = append(cells, rateBadge(p.RateStatus))
		fmt.Fprintln(w, strings.Join(cells, " "))
	}
}

func renderProject(w io.Writer, p api.Project, code money.Code) {
	fmt.Fprintln(w, titleStyle.Render(p.Name), mutedStyle.Render(p.ID.String()))
	if p.Description != nil {
		fmt.Fprintln(w, *p.Description)
	}
	line := func(k, v string) {
		fmt.Fprintf(w, "  %s %s\n", cell(mutedStyle.Render(k), 18), v)
	}
	line("Client", p.Client)
	line("Status", p.Status)
	line("Quote", money.Format(p.QuoteAmount, code))
	if p.DesiredDayRate != nil {
		line("Day rate", money.Format(*p.DesiredDayRate, code))
		if p.HoursPerDay != nil {
			line("Hours per day", fmt.Sprintf("%g", *p.HoursPerDay))
		}
	}
	line("Target rate", money.Format(p.DesiredHourlyRate, code)+"/h")
	line("Effective rate", money.Format(p.EffectiveHourlyRate, code)+"/h "+rateBadge(p.RateStatus))
	line("Tracked", fmt.Sprintf("%s of %.1fh", calc.FormatDuration(p.TotalTrackedTime), p.TargetHours))

	if len(p.Sessions) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  No sessions."))
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("Sessions"))
	for _, s := range p.Sessions {
		kind := "timer"
		if s.IsManual {
			kind = "manual"
		}
		note := ""
		if s.Note != nil {
			note = *s.Note
		}
		fmt.Fprintf(w, "  %s  %s  %s  %s  %s\n",
			s.ID.String()[:8],
			s.StartTime.Local().Format("2006-01-02 15:04"),
			cell(calc.FormatDuration(s.Duration), 8),
			cell(kind, 6),
			note,
		)
	}
}

func renderSettings(w io.Writer, st api.Settings) {
	code := money.Code(st.CurrencyCode)
	fmt.Fprintln(w, titleStyle.Render("Settings"))
	fmt.Fprintf(w, "  %s %s/h\n", cell(mutedStyle.Render("Target rate"), 16), money.Format(st.DesiredHourlyRate, code))
	fmt.Fprintf(w, "  %s %s\n", cell(mutedStyle.Render("Currency"), 16), code.Label())
	fmt.Fprintf(w, "  %s %g\n", cell(mutedStyle.Render("Hours per day"), 16), st.HoursPerDay)
}
