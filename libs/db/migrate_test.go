package db

import (
	"testing"
	"testing/fstest"
)

func TestLoadMigrationsSortsAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/010_later.sql":  {Data: []byte("SELECT 10;")},
		"sql/002_second.sql": {Data: []byte("SELECT 2;")},
		"sql/001_first.sql":  {Data: []byte("SELECT 1;")},
		"sql/README.md":      {Data: []byte("docs")},
		"sql/seed.sql":       {Data: []byte("SELECT 0;")},
		"sql/abc_bad.sql":    {Data: []byte("SELECT 0;")},
	}

	got, err := LoadMigrations(fsys, "sql")
	if err != nil {
		t.Fatalf("LoadMigrations failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(got))
	}
	if got[0].Version != 1 || got[1].Version != 2 || got[2].Version != 10 {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].SQL != "SELECT 1;" {
		t.Fatalf("unexpected sql: %q", got[0].SQL)
	}
}

func TestLoadMigrationsRejectsDuplicateVersions(t *testing.T) {
	fsys := fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := LoadMigrations(fsys, "."); err == nil {
		t.Fatal("expected duplicate version error")
	}
}
