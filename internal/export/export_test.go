package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/quotereality/internal/model"
)

func sampleProjects() []model.Project {
	created := time.Date(2025, 4, 5, 6, 7, 8, 0, time.FixedZone("BST", 3600))
	note := "kickoff"
	return []model.Project{
		{
			ID: uuid.Must(uuid.NewV4()), Name: "Site, v2", Client: "Acme \"Ltd\"", QuoteAmount: 1000, DesiredHourlyRate: 100,
			TargetHours: 10, TotalTrackedTime: 5400, Status: model.StatusActive, CreatedAt: created,
			Sessions: []model.TimeSession{{ID: uuid.Must(uuid.NewV4()), StartTime: created, Duration: 5400, Note: &note}},
		},
		{
			ID: uuid.Must(uuid.NewV4()), Name: "Audit", Client: model.DefaultClient, QuoteAmount: 1234.5, DesiredHourlyRate: 62.5,
			TargetHours: 1234.5 / 62.5, Status: model.StatusCompleted, CreatedAt: created,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleProjects()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, CSVHeader, records[0])

	require.Equal(t, []string{"Site, v2", "Acme \"Ltd\"", "1000", "100", "10.00", "1.50", "active", "2025-04-05T05:07:08.000Z"}, records[1])
	require.Equal(t, []string{"Audit", "No Client", "1234.5", "62.5", "19.75", "0.00", "completed", "2025-04-05T05:07:08.000Z"}, records[2])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	require.Equal(t, strings.Join(CSVHeader, ",")+"\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	exported := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	snap := model.Snapshot{
		Settings:   model.UserSettings{DesiredHourlyRate: 100, CurrencyCode: "gbp", HoursPerDay: 8},
		Projects:   sampleProjects(),
		ExportedAt: exported,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, snap))
	require.Contains(t, buf.String(), "\n  \"settings\"")

	var doc struct {
		Settings struct {
			CurrencyCode string `json:"currencyCode"`
		} `json:"settings"`
		Projects []struct {
			Name     string `json:"name"`
			Sessions []struct {
				Note *string `json:"note"`
			} `json:"sessions"`
		} `json:"projects"`
		ExportedAt time.Time `json:"exportedAt"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, "gbp", doc.Settings.CurrencyCode)
	require.Len(t, doc.Projects, 2)
	require.Len(t, doc.Projects[0].Sessions, 1)
	require.Equal(t, "kickoff", *doc.Projects[0].Sessions[0].Note)
	require.NotNil(t, doc.Projects[1].Sessions)
	require.True(t, doc.ExportedAt.Equal(exported))
}

func TestFilenames(t *testing.T) {
	day := time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)
	require.Equal(t, "quotereality-export-2025-12-31.json", JSONFilename(day))
	require.Equal(t, "quotereality-projects-2025-12-31.csv", CSVFilename(day))
}

func TestToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), CSVFilename(time.Now()))
	require.NoError(t, ToFile(path, func(w io.Writer) error { return WriteCSV(w, sampleProjects()) }))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(b), "Project Name,"))

	require.Error(t, ToFile(filepath.Join(t.TempDir(), "missing", "x.csv"), func(io.Writer) error { return nil }))
}
