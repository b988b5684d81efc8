// Package ledger implements the metadata ledger: the CSV-backed record of
// what the vector store currently contains, with atomic saves and rotating
// backups.
package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mafzaal/letstalk-index/internal/app/core/service"
	"github.com/mafzaal/letstalk-index/internal/app/domain/ledgerrow"
	"github.com/mafzaal/letstalk-index/pkg/errors"
)

// Ledger reads and writes the CSV ledger file at Path.
type Ledger struct {
	Path  string
	Clock service.Clock
}

// New returns a Ledger rooted at path, using clock for backup timestamps.
func New(path string, clock service.Clock) *Ledger {
	if clock == nil {
		clock = service.SystemClock{}
	}
	return &Ledger{Path: path, Clock: clock}
}

// Load returns the current rows keyed by source. A missing file is an empty
// ledger, not an error; a file that fails to parse is a LedgerError.
func (l *Ledger) Load() (map[string]ledgerrow.Row, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ledgerrow.Row{}, nil
		}
		return nil, errors.Ledger("open ledger file", err)
	}
	defer f.Close()

	rows, err := parseCSV(f)
	if err != nil {
		return nil, errors.Ledger(fmt.Sprintf("ledger file %q is corrupt", l.Path), err)
	}
	return rows, nil
}

func parseCSV(r io.Reader) (map[string]ledgerrow.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	out := map[string]ledgerrow.Row{}
	if len(records) == 0 {
		return out, nil
	}

	header := records[0]
	idx := map[string]int{}
	for i, col := range header {
		idx[col] = i
	}
	for _, want := range ledgerrow.CSVHeader {
		if _, ok := idx[want]; !ok {
			return nil, fmt.Errorf("missing column %q", want)
		}
	}

	for _, rec := range records[1:] {
		if len(rec) == 0 {
			continue
		}
		lastModified, err := strconv.ParseInt(rec[idx["last_modified"]], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse last_modified: %w", err)
		}
		indexedAt, err := strconv.ParseInt(rec[idx["indexed_timestamp"]], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse indexed_timestamp: %w", err)
		}
		indexed, err := strconv.ParseBool(rec[idx["indexed"]])
		if err != nil {
			return nil, fmt.Errorf("parse indexed: %w", err)
		}
		row := ledgerrow.Row{
			Source:          rec[idx["source"]],
			ContentChecksum: rec[idx["content_checksum"]],
			LastModified:    lastModified,
			IndexedAt:       indexedAt,
			Indexed:         indexed,
		}
		out[row.Source] = row
	}
	return out, nil
}

// Save writes rows atomically: a sibling temp file is written and fsynced,
// then renamed over Path. Row order is sorted by source for stable diffs.
func (l *Ledger) Save(rows map[string]ledgerrow.Row) error {
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return errors.Ledger("create ledger directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.Path), ".ledger-*.tmp")
	if err != nil {
		return errors.Ledger("create temp ledger file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := writeCSV(tmp, rows); err != nil {
		tmp.Close()
		return errors.Ledger("write temp ledger file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Ledger("fsync temp ledger file", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Ledger("close temp ledger file", err)
	}
	if err := os.Rename(tmpPath, l.Path); err != nil {
		return errors.Ledger("replace ledger file", err)
	}
	return nil
}

func writeCSV(w io.Writer, rows map[string]ledgerrow.Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ledgerrow.CSVHeader); err != nil {
		return err
	}

	sources := make([]string, 0, len(rows))
	for src := range rows {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	for _, src := range sources {
		row := rows[src]
		rec := []string{
			row.Source,
			row.ContentChecksum,
			strconv.FormatInt(row.LastModified, 10),
			strconv.FormatInt(row.IndexedAt, 10),
			strconv.FormatBool(row.Indexed),
		}
		if err := writer.Write(rec); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Backup copies the current ledger file to a timestamped sibling. A missing
// ledger file is a no-op: there is nothing to back up yet.
func (l *Ledger) Backup() (string, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Ledger("read ledger file for backup", err)
	}

	stamp := l.Clock.Now().UTC().Format("20060102T150405.000000000")
	backupPath := l.Path + ".bak." + stamp
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", errors.Ledger("write backup file", err)
	}
	return backupPath, nil
}

// RestoreLatest copies the newest backup (by filename sort order) over Path.
func (l *Ledger) RestoreLatest() error {
	backups, err := l.listBackups()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return errors.Ledger("no backups available to restore", nil)
	}

	latest := backups[len(backups)-1]
	data, err := os.ReadFile(latest)
	if err != nil {
		return errors.Ledger("read backup file", err)
	}
	if err := os.WriteFile(l.Path, data, 0o644); err != nil {
		return errors.Ledger("restore ledger from backup", err)
	}
	return nil
}

// CleanupBackups retains the newest keepN backups by filename sort order
// (the timestamp suffix sorts lexicographically) and removes the rest.
func (l *Ledger) CleanupBackups(keepN int) error {
	backups, err := l.listBackups()
	if err != nil {
		return err
	}
	if len(backups) <= keepN {
		return nil
	}
	for _, stale := range backups[:len(backups)-keepN] {
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return errors.Ledger(fmt.Sprintf("remove stale backup %q", stale), err)
		}
	}
	return nil
}

// Backups returns every backup file path for this ledger, oldest first.
func (l *Ledger) Backups() ([]string, error) {
	return l.listBackups()
}

func (l *Ledger) listBackups() ([]string, error) {
	dir := filepath.Dir(l.Path)
	base := filepath.Base(l.Path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Ledger("list ledger directory", err)
	}

	var backups []string
	prefix := base + ".bak."
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) {
			backups = append(backups, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(backups)
	return backups, nil
}
