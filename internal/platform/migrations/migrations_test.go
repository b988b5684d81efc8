package migrations

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := files.ReadDir("sql")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one embedded migration file")
	}

	ups := make(map[string]bool)
	downs := make(map[string]bool)
	for _, e := range entries {
		name := e.Name()
		switch {
		case len(name) > 7 && name[len(name)-7:] == ".up.sql":
			ups[name[:len(name)-7]] = true
		case len(name) > 9 && name[len(name)-9:] == ".down.sql":
			downs[name[:len(name)-9]] = true
		default:
			t.Fatalf("unexpected migration file name: %s", name)
		}
	}
	for version := range ups {
		if !downs[version] {
			t.Fatalf("migration %s has an up file but no matching down file", version)
		}
	}
}

// TestApplyAgainstLivePostgres runs the real migrator against a throwaway
// database. It is skipped unless TEST_POSTGRES_DSN is set, since golang-migrate
// drives Postgres-specific advisory locks that sqlmock cannot model.
func TestApplyAgainstLivePostgres(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := Apply(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if err := Apply(db); err != nil {
		t.Fatalf("re-apply migrations should be a no-op: %v", err)
	}
}
