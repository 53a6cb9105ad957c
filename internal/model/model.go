// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Defaults applied when a user has no settings row yet.
const (
	DefaultHourlyRate  = 100.00
	DefaultHoursPerDay = 8.0
	DefaultClient      = "No Client"
	MaxNoteLength      = 200
	MaxHoursPerDay     = 24.0
)

// Status is the lifecycle state of a project.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known project status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusCompleted
}

// RateStatus classifies the effective hourly rate against the desired one.
type RateStatus string

const (
	RateAbove    RateStatus = "above"
	RateAt       RateStatus = "at"
	RateBelow    RateStatus = "below"
	RateCritical RateStatus = "critical"
)

// Project is a fixed-price engagement owned by one user.
type Project struct {
	ID          uuid.UUID
	UserID      string
	Name        string
	Client      string
	Description *string // nil when absent

	QuoteAmount       float64
	DesiredHourlyRate float64
	DesiredDayRate    *float64 // nil: hourly workflow
	HoursPerDay       *float64 // nil: falls back to UserSettings.HoursPerDay

	TargetHours      float64 // derived, recomputed on every commercial change
	TotalTrackedTime int64   // seconds, sum of session durations

	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time

	Sessions []TimeSession // newest first
}

// UsesDayRate reports whether the project is on the day-rate workflow.
func (p *Project) UsesDayRate() bool {
	return p.DesiredDayRate != nil
}

// TimeSession is a block of tracked time on a project.
type TimeSession struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	StartTime time.Time
	EndTime   *time.Time
	Duration  int64 // seconds, authoritative
	IsManual  bool
	Note      *string
	CreatedAt time.Time
}

// UserSettings holds per-user defaults.
type UserSettings struct {
	UserID            string
	DesiredHourlyRate float64
	CurrencyCode      string
	HoursPerDay       float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewProject is the input for project creation.
type NewProject struct {
	Name              string
	Client            string
	Description       *string
	QuoteAmount       *float64
	DesiredHourlyRate *float64
	DesiredDayRate    *float64
	HoursPerDay       *float64
	Status            Status
}

// ProjectPatch is a partial project update; nil fields are left untouched.
// ClearDayRate and ClearHoursPerDay request an explicit reset to NULL.
type ProjectPatch struct {
	Name              *string
	Client            *string
	Description       *string
	QuoteAmount       *float64
	DesiredHourlyRate *float64
	DesiredDayRate    *float64
	HoursPerDay       *float64
	Status            *Status

	ClearDayRate     bool
	ClearHoursPerDay bool
}

// Empty reports whether the patch carries no changes.
func (p ProjectPatch) Empty() bool {
	return p.Name == nil && p.Client == nil && p.Description == nil &&
		p.QuoteAmount == nil && p.DesiredHourlyRate == nil && p.DesiredDayRate == nil &&
		p.HoursPerDay == nil && p.Status == nil && !p.ClearDayRate && !p.ClearHoursPerDay
}

// TouchesRate reports whether the patch changes any input of TargetHours.
func (p ProjectPatch) TouchesRate() bool {
	return p.QuoteAmount != nil || p.DesiredHourlyRate != nil || p.DesiredDayRate != nil ||
		p.HoursPerDay != nil || p.ClearDayRate || p.ClearHoursPerDay
}

// NewSession is the input for session creation.
type NewSession struct {
	ProjectID uuid.UUID
	StartTime time.Time
	EndTime   *time.Time
	Duration  int64
	IsManual  bool
	Note      *string
}

// SettingsPatch is a partial settings update.
type SettingsPatch struct {
	DesiredHourlyRate *float64
	CurrencyCode      *string
	HoursPerDay       *float64
}

// Empty reports whether the patch carries no changes.
func (p SettingsPatch) Empty() bool {
	return p.DesiredHourlyRate == nil && p.CurrencyCode == nil && p.HoursPerDay == nil
}

// Snapshot is everything a user owns, used for exports.
type Snapshot struct {
	Settings   UserSettings
	Projects   []Project
	ExportedAt time.Time
}
