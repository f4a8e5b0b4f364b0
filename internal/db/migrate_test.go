package db

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadSortsAndSkips(t *testing.T) {
	src := fstest.MapFS{
		"010_late.sql":   {Data: []byte("SELECT 10;")},
		"002_second.sql": {Data: []byte("SELECT 2;")},
		"001_first.sql":  {Data: []byte("SELECT 1;")},
		"README.md":      {Data: []byte("docs")},
		"notes.sql":      {Data: []byte("no prefix")},
		"abc_bad.sql":    {Data: []byte("non numeric")},
	}

	migrations, err := NewMigrator(nil, src).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	for i, want := range []int{1, 2, 10} {
		if migrations[i].Version != want {
			t.Errorf("position %d: expected version %d, got %d", i, want, migrations[i].Version)
		}
	}
	if migrations[0].SQL != "SELECT 1;" {
		t.Errorf("unexpected SQL %q", migrations[0].SQL)
	}
}

func TestLoadRejectsDuplicateVersions(t *testing.T) {
	src := fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := NewMigrator(nil, src).Load(); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := NewMigrator(nil, Migrations()).Load()
	if err != nil {
		t.Fatalf("load embedded: %v", err)
	}
	if len(migrations) == 0 || migrations[0].Version != 1 {
		t.Fatalf("expected embedded migrations starting at 1, got %+v", migrations)
	}

	var all strings.Builder
	for _, m := range migrations {
		all.WriteString(m.SQL)
	}
	for _, want := range []string{"bookings_live_slot_key", "bookings_patient_id_fkey", "booking_events", "reminder_sent_at", "cabinet_settings"} {
		if !strings.Contains(all.String(), want) {
			t.Errorf("schema missing %s", want)
		}
	}
}
