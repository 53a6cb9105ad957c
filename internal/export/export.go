// Package export renders user data as a JSON backup or a CSV project sheet.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/and161185/quotereality/internal/api"
	"github.com/and161185/quotereality/internal/calc"
	"github.com/and161185/quotereality/internal/model"
)

// CSVHeader is the first row of every project sheet.
var CSVHeader = []string{
	"Project Name", "Client", "Quote Amount", "Target Rate",
	"Target Hours", "Time Tracked (hours)", "Status", "Created At",
}

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// JSONFilename is the suggested name of a JSON export made on day t.
func JSONFilename(t time.Time) string {
	return "quotereality-export-" + t.Format(time.DateOnly) + ".json"
}

// CSVFilename is the suggested name of a CSV export made on day t.
func CSVFilename(t time.Time) string {
	return "quotereality-projects-" + t.Format(time.DateOnly) + ".csv"
}

// WriteJSON writes settings, projects with sessions and the export time as indented JSON.
func WriteJSON(w io.Writer, s model.Snapshot) error {
	return WriteJSONDocument(w, api.FromSnapshot(s))
}

// WriteJSONDocument writes an already converted export document.
func WriteJSONDocument(w io.Writer, doc api.Export) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteCSV writes one row per project.
func WriteCSV(w io.Writer, projects []model.Project) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for i := range projects {
		p := &projects[i]
		row := []string{
			p.Name,
			p.Client,
			strconv.FormatFloat(p.QuoteAmount, 'f', -1, 64),
			strconv.FormatFloat(p.DesiredHourlyRate, 'f', -1, 64),
			strconv.FormatFloat(p.TargetHours, 'f', 2, 64),
			strconv.FormatFloat(calc.TrackedHours(p.TotalTrackedTime), 'f', 2, 64),
			string(p.Status),
			p.CreatedAt.UTC().Format(isoMillis),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ToFile creates path and runs write against it.
func ToFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
