package db

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrator_LoadOrdersAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"010_later.sql":  {Data: []byte("SELECT 10;")},
		"002_second.sql": {Data: []byte("SELECT 2;")},
		"001_first.sql":  {Data: []byte("SELECT 1;")},
		"README.md":      {Data: []byte("notes")},
		"draft.sql":      {Data: []byte("SELECT 0;")},
		"abc_bad.sql":    {Data: []byte("SELECT 0;")},
	}

	migrations, err := NewMigrator(nil, fsys).Load()
	require.NoError(t, err)
	require.Len(t, migrations, 3)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "001_first.sql", migrations[0].Name)
	assert.Equal(t, "SELECT 1;", migrations[0].SQL)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, 10, migrations[2].Version)
}

func TestMigrations_Embedded(t *testing.T) {
	migrations, err := NewMigrator(nil, Migrations()).Load()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, 1, migrations[0].Version)

	sql := migrations[0].SQL
	for _, table := range []string{"doctors", "patients", "slot_tokens", "appointments", "consultations", "event_logs"} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
	assert.Contains(t, sql, "UNIQUE (doctor_id, slot_start, token_number)")
}

func TestPage(t *testing.T) {
	tests := []struct {
		limit, offset      int
		wantLimit, wantOff uint
	}{
		{0, 0, 20, 0},
		{-5, -1, 20, 0},
		{50, 10, 50, 10},
		{500, 0, 100, 0},
	}
	for _, tt := range tests {
		lim, off := Page(tt.limit, tt.offset)
		assert.Equal(t, tt.wantLimit, lim)
		assert.Equal(t, tt.wantOff, off)
	}
}
