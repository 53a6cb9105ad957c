// Package calc implements the rate and time arithmetic shared by the server and clients.
//
// Every function is pure. Division by a non-positive or non-finite denominator
// yields 0 instead of NaN or Inf.
package calc

import (
	"fmt"
	"math"

	"github.com/and161185/quotereality/internal/model"
)

const secondsPerHour = 3600

// Rate status band floors; each band includes its lower bound.
const (
	aboveFloor = 1.1
	atFloor    = 0.9
	belowFloor = 0.7
)

func div(num, den float64) float64 {
	if den <= 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return 0
	}
	q := num / den
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return 0
	}
	return q
}

// TrackedHours converts seconds into fractional hours.
func TrackedHours(seconds int64) float64 {
	return float64(seconds) / secondsPerHour
}

// EffectiveHourlyRate is the realized rate for a fixed quote. With no tracked
// time it returns the desired hourly rate.
func EffectiveHourlyRate(p *model.Project) float64 {
	if p.TotalTrackedTime == 0 {
		return p.DesiredHourlyRate
	}
	return div(p.QuoteAmount, TrackedHours(p.TotalTrackedTime))
}

// TargetHours is the break-even time budget on the hourly workflow.
func TargetHours(quoteAmount, desiredHourlyRate float64) float64 {
	return div(quoteAmount, desiredHourlyRate)
}

// TargetHoursFromDayRate is the break-even time budget on the day-rate workflow.
func TargetHoursFromDayRate(quoteAmount, desiredDayRate, hoursPerDay float64) float64 {
	if hoursPerDay <= 0 {
		return 0
	}
	return div(quoteAmount, desiredDayRate) * hoursPerDay
}

// HourlyRateFromDayRate converts a day rate into the hourly rate it implies.
func HourlyRateFromDayRate(desiredDayRate, hoursPerDay float64) float64 {
	return div(desiredDayRate, hoursPerDay)
}

// EffectiveHoursPerDay returns the project's override or the global setting.
func EffectiveHoursPerDay(p *model.Project, global float64) float64 {
	if p.HoursPerDay != nil && *p.HoursPerDay > 0 {
		return *p.HoursPerDay
	}
	return global
}

// ProjectTargetHours resolves the active rate basis of p and returns its target hours.
func ProjectTargetHours(p *model.Project, globalHoursPerDay float64) float64 {
	if p.DesiredDayRate != nil {
		return TargetHoursFromDayRate(p.QuoteAmount, *p.DesiredDayRate, EffectiveHoursPerDay(p, globalHoursPerDay))
	}
	return TargetHours(p.QuoteAmount, p.DesiredHourlyRate)
}

// StatusForRatio classifies effective/desired.
func StatusForRatio(ratio float64) model.RateStatus {
	switch {
	case ratio >= aboveFloor:
		return model.RateAbove
	case ratio >= atFloor:
		return model.RateAt
	case ratio >= belowFloor:
		return model.RateBelow
	default:
		return model.RateCritical
	}
}

// RateStatus classifies how the project's effective rate compares with the desired one.
func RateStatus(p *model.Project) model.RateStatus {
	return StatusForRatio(div(EffectiveHourlyRate(p), p.DesiredHourlyRate))
}

// FormatDuration renders "1h 5m" from one hour up and "4m 30s" below it.
// Components are truncated.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / secondsPerHour
	m := (seconds % secondsPerHour) / 60
	if seconds >= secondsPerHour {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm %ds", m, seconds%60)
}

// FormatClock renders a stopwatch reading as HH:MM:SS.
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/secondsPerHour, (seconds%secondsPerHour)/60, seconds%60)
}

// FormatHours renders seconds as hours with one decimal.
func FormatHours(seconds int64) string {
	return fmt.Sprintf("%.1f", TrackedHours(seconds))
}
