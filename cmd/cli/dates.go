package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	time.DateOnly,
}

// parseWhen reads an absolute timestamp or a phrase such as "yesterday 14:00"
// or "last friday", relative to ref and resolved into the past.
func parseWhen(s string, ref time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "now") {
		return ref, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, ref.Location()); err == nil {
			return t, nil
		}
	}
	t, err := naturaldate.Parse(s, ref, naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q: %w", s, err)
	}
	return t, nil
}
