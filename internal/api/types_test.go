package api

import (
	"encoding/json"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/quotereality/internal/model"
)

func TestUpdateProjectRequest_TriState(t *testing.T) {
	t.Parallel()

	var absent UpdateProjectRequest
	require.NoError(t, json.Unmarshal([]byte(`{"name":"x"}`), &absent))
	p := absent.ToModel()
	require.Nil(t, p.DesiredDayRate)
	require.False(t, p.ClearDayRate)
	require.False(t, p.ClearHoursPerDay)

	var null UpdateProjectRequest
	require.NoError(t, json.Unmarshal([]byte(`{"desiredDayRate":null,"hoursPerDay":null}`), &null))
	p = null.ToModel()
	require.True(t, p.ClearDayRate)
	require.True(t, p.ClearHoursPerDay)
	require.False(t, p.Empty())

	var set UpdateProjectRequest
	require.NoError(t, json.Unmarshal([]byte(`{"desiredDayRate":650.5,"hoursPerDay":7,"status":"completed"}`), &set))
	p = set.ToModel()
	require.NotNil(t, p.DesiredDayRate)
	require.Equal(t, 650.5, *p.DesiredDayRate)
	require.Equal(t, 7.0, *p.HoursPerDay)
	require.Equal(t, model.StatusCompleted, *p.Status)

	var bad UpdateProjectRequest
	require.Error(t, json.Unmarshal([]byte(`{"desiredDayRate":"lots"}`), &bad))
}

func TestUpdateProjectRequest_MarshalOmitsUnset(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(UpdateProjectRequest{DesiredDayRate: Null[float64]()})
	require.NoError(t, err)
	require.JSONEq(t, `{"desiredDayRate":null}`, string(b))

	b, err = json.Marshal(UpdateProjectRequest{HoursPerDay: Of(6.0)})
	require.NoError(t, err)
	require.JSONEq(t, `{"hoursPerDay":6}`, string(b))
}

func TestFromProject_DerivedFields(t *testing.T) {
	t.Parallel()

	p := model.Project{
		ID: uuid.Must(uuid.NewV4()), Name: "Site", Client: "Acme", QuoteAmount: 1000, DesiredHourlyRate: 100,
		TotalTrackedTime: 8 * 3600, Status: model.StatusActive,
	}
	out := FromProject(p)
	require.Equal(t, 125.0, out.EffectiveHourlyRate)
	require.Equal(t, "above", out.RateStatus)
	require.NotNil(t, out.Sessions)

	b, err := json.Marshal(out)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	for _, k := range []string{"quoteAmount", "desiredHourlyRate", "desiredDayRate", "hoursPerDay", "targetHours", "totalTrackedTime", "createdAt", "sessions"} {
		require.Contains(t, m, k)
	}
	require.Nil(t, m["desiredDayRate"])

	back := out.ToModel()
	require.Equal(t, p.ID, back.ID)
	require.Equal(t, p.TotalTrackedTime, back.TotalTrackedTime)
	require.Equal(t, model.StatusActive, back.Status)
}
