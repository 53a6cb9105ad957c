package calc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/quotereality/internal/model"
)

func f64(v float64) *float64 { return &v }

func TestEffectiveHourlyRate_NoTrackedTimeReturnsDesired(t *testing.T) {
	t.Parallel()
	for _, rate := range []float64{0, 1, 55.5, 100, 250} {
		p := &model.Project{QuoteAmount: 1000, DesiredHourlyRate: rate}
		require.Equal(t, rate, EffectiveHourlyRate(p))
	}
}

func TestEffectiveHourlyRate_Tracked(t *testing.T) {
	t.Parallel()
	p := &model.Project{QuoteAmount: 1000, DesiredHourlyRate: 100, TotalTrackedTime: 5 * 3600}
	require.InDelta(t, 200.0, EffectiveHourlyRate(p), 1e-9)

	p.TotalTrackedTime = 5400
	require.InDelta(t, 1000/1.5, EffectiveHourlyRate(p), 1e-9)
}

func TestTargetHours(t *testing.T) {
	t.Parallel()
	require.Equal(t, 10.0, TargetHours(1000, 100))
	require.InDelta(t, 1234.5/67.8, TargetHours(1234.5, 67.8), 1e-12)
	require.Equal(t, 0.0, TargetHours(1000, 0))
	require.Equal(t, 0.0, TargetHours(1000, -5))
	require.Equal(t, 0.0, TargetHours(1000, math.Inf(1)))
	require.Equal(t, 0.0, TargetHours(1000, math.NaN()))
}

func TestDayRateConversions(t *testing.T) {
	t.Parallel()
	require.Equal(t, 8.0, TargetHoursFromDayRate(800, 800, 8))
	require.Equal(t, 100.0, HourlyRateFromDayRate(800, 8))
	require.InDelta(t, (3000.0/450.0)*7.5, TargetHoursFromDayRate(3000, 450, 7.5), 1e-12)
	require.InDelta(t, 450.0/7.5, HourlyRateFromDayRate(450, 7.5), 1e-12)

	require.Equal(t, 0.0, TargetHoursFromDayRate(800, 0, 8))
	require.Equal(t, 0.0, TargetHoursFromDayRate(800, 800, 0))
	require.Equal(t, 0.0, HourlyRateFromDayRate(800, 0))
	require.Equal(t, 0.0, HourlyRateFromDayRate(800, -1))
}

func TestProjectTargetHours_ResolvesBasis(t *testing.T) {
	t.Parallel()
	hourly := &model.Project{QuoteAmount: 1000, DesiredHourlyRate: 100}
	require.Equal(t, 10.0, ProjectTargetHours(hourly, 8))

	day := &model.Project{QuoteAmount: 800, DesiredHourlyRate: 100, DesiredDayRate: f64(800)}
	require.Equal(t, 8.0, ProjectTargetHours(day, 8))

	day.HoursPerDay = f64(6)
	require.Equal(t, 6.0, ProjectTargetHours(day, 8))
	require.Equal(t, 6.0, EffectiveHoursPerDay(day, 8))

	day.HoursPerDay = f64(0)
	require.Equal(t, 8.0, EffectiveHoursPerDay(day, 8))
}

func TestStatusForRatio_Bands(t *testing.T) {
	t.Parallel()
	cases := []struct {
		ratio float64
		want  model.RateStatus
	}{
		{1.2, model.RateAbove},
		{1.1, model.RateAbove},
		{1.0999, model.RateAt},
		{0.95, model.RateAt},
		{0.9, model.RateAt},
		{0.75, model.RateBelow},
		{0.7, model.RateBelow},
		{0.6999, model.RateCritical},
		{0.5, model.RateCritical},
		{0, model.RateCritical},
	}
	for _, c := range cases {
		require.Equal(t, c.want, StatusForRatio(c.ratio), "ratio %v", c.ratio)
	}
}

func TestRateStatus_Project(t *testing.T) {
	t.Parallel()
	// 1000 quote, desired 100/h: 10h -> at, 8h -> above (125), 13h -> below (~76.9), 20h -> critical.
	p := &model.Project{QuoteAmount: 1000, DesiredHourlyRate: 100}
	require.Equal(t, model.RateAt, RateStatus(p))

	p.TotalTrackedTime = 8 * 3600
	require.Equal(t, model.RateAbove, RateStatus(p))

	p.TotalTrackedTime = 13 * 3600
	require.Equal(t, model.RateBelow, RateStatus(p))

	p.TotalTrackedTime = 20 * 3600
	require.Equal(t, model.RateCritical, RateStatus(p))

	p.DesiredHourlyRate = 0
	require.Equal(t, model.RateCritical, RateStatus(p))
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()
	require.Equal(t, "0m 0s", FormatDuration(0))
	require.Equal(t, "0m 59s", FormatDuration(59))
	require.Equal(t, "4m 30s", FormatDuration(270))
	require.Equal(t, "59m 59s", FormatDuration(3599))
	require.Equal(t, "1h 0m", FormatDuration(3600))
	require.Equal(t, "1h 59m", FormatDuration(3600+59*60+59))
	require.Equal(t, "25h 1m", FormatDuration(25*3600+61))
	require.Equal(t, "0m 0s", FormatDuration(-5))
}

func TestFormatClockAndHours(t *testing.T) {
	t.Parallel()
	require.Equal(t, "00:00:00", FormatClock(0))
	require.Equal(t, "01:01:01", FormatClock(3661))
	require.Equal(t, "1.5", FormatHours(5400))
	require.Equal(t, "0.0", FormatHours(0))
}
