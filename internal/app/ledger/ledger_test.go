package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mafzaal/letstalk-index/internal/app/core/service"
	"github.com/mafzaal/letstalk-index/internal/app/domain/ledgerrow"
)

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "ledger.csv"), nil)
	rows, err := l.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty ledger, got %d rows", len(rows))
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	l := New(path, nil)

	rows := map[string]ledgerrow.Row{
		"posts/a.md": {Source: "posts/a.md", ContentChecksum: "abc", LastModified: 100, IndexedAt: 200, Indexed: true},
	}
	if err := l.Save(rows); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := l.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got["posts/a.md"] != rows["posts/a.md"] {
		t.Fatalf("round trip mismatch: %+v", got["posts/a.md"])
	}
}

func TestLoadCorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	if err := os.WriteFile(path, []byte("source,content_checksum\nmissing,columns\n"), 0o644); err != nil {
		t.Fatalf("write corrupt ledger: %v", err)
	}

	l := New(path, nil)
	if _, err := l.Load(); err == nil {
		t.Fatal("expected corrupt ledger file to be reported as an error")
	}
}

func TestBackupAndRestoreLatest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	clock := service.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l := New(path, clock)

	original := map[string]ledgerrow.Row{"a": {Source: "a", ContentChecksum: "v1"}}
	if err := l.Save(original); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := l.Backup(); err != nil {
		t.Fatalf("backup: %v", err)
	}

	corrupted := map[string]ledgerrow.Row{"a": {Source: "a", ContentChecksum: "corrupted"}}
	if err := l.Save(corrupted); err != nil {
		t.Fatalf("save corrupted: %v", err)
	}

	if err := l.RestoreLatest(); err != nil {
		t.Fatalf("restore: %v", err)
	}

	rows, err := l.Load()
	if err != nil {
		t.Fatalf("load after restore: %v", err)
	}
	if rows["a"].ContentChecksum != "v1" {
		t.Fatalf("expected restored checksum v1, got %q", rows["a"].ContentChecksum)
	}
}

func TestCleanupBackupsKeepsNewestN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	clock := service.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l := New(path, clock)

	if err := l.Save(map[string]ledgerrow.Row{"a": {Source: "a"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := l.Backup(); err != nil {
			t.Fatalf("backup %d: %v", i, err)
		}
		clock.Advance(time.Second)
	}

	if err := l.CleanupBackups(2); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	backups, err := l.listBackups()
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("expected 2 retained backups, got %d", len(backups))
	}
}

func TestBackupMissingLedgerIsNoop(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "ledger.csv"), nil)
	path, err := l.Backup()
	if err != nil {
		t.Fatalf("backup of missing ledger should not error: %v", err)
	}
	if path != "" {
		t.Fatalf("expected no backup path, got %q", path)
	}
}
