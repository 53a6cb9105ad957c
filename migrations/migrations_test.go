package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFS_HasOrderedGooseFiles(t *testing.T) {
	names, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.Equal(t, []string{
		"00001_init.sql",
		"00002_currency_code.sql",
		"00003_day_rate.sql",
		"00004_description.sql",
	}, names)

	for _, n := range names {
		b, err := fs.ReadFile(FS, n)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(string(b), "-- +goose Up"), n)
		require.Contains(t, string(b), "-- +goose Down", n)
	}
}

func TestFS_LaterColumnsAreIdempotent(t *testing.T) {
	for _, n := range []string{"00002_currency_code.sql", "00003_day_rate.sql", "00004_description.sql"} {
		b, err := fs.ReadFile(FS, n)
		require.NoError(t, err)
		require.Contains(t, string(b), "ADD COLUMN IF NOT EXISTS", n)
	}
}
