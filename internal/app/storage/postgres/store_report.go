package postgres

import (
	"context"
	"encoding/json"

	"github.com/mafzaal/letstalk-index/internal/app/domain/report"
	pkgerrors "github.com/mafzaal/letstalk-index/pkg/errors"
)

// AppendReport inserts run into the append-only report log.
func (s *Store) AppendReport(ctx context.Context, run report.Run) error {
	counts, err := json.Marshal(run.Counts)
	if err != nil {
		return pkgerrors.Schedule("marshal run counts", err)
	}
	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return pkgerrors.Schedule("marshal run errors", err)
	}
	warningsJSON, err := json.Marshal(run.Warnings)
	if err != nil {
		return pkgerrors.Schedule("marshal run warnings", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipeline_reports (job_id, start_time, end_time, status, counts_json, errors_json, warnings_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, run.JobID, run.StartTime, run.EndTime, string(run.Status), counts, errorsJSON, warningsJSON)
	if err != nil {
		return pkgerrors.Schedule("append report for job "+run.JobID, err)
	}
	return nil
}

// ListReports returns the most recent limit reports, newest first. limit <= 0
// returns every report.
func (s *Store) ListReports(ctx context.Context, limit int) ([]report.Run, error) {
	query := `
		SELECT job_id, start_time, end_time, status, counts_json, errors_json, warnings_json
		FROM pipeline_reports
		ORDER BY start_time DESC
	`
	var (
		rows interface {
			Close() error
			Next() bool
			Err() error
			Scan(dest ...interface{}) error
		}
		err error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+` LIMIT $1`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, pkgerrors.Schedule("list reports", err)
	}
	defer rows.Close()

	var out []report.Run
	for rows.Next() {
		var (
			run          report.Run
			status       string
			countsJSON   []byte
			errorsJSON   []byte
			warningsJSON []byte
		)
		if err := rows.Scan(&run.JobID, &run.StartTime, &run.EndTime, &status, &countsJSON, &errorsJSON, &warningsJSON); err != nil {
			return nil, pkgerrors.Schedule("scan report row", err)
		}
		run.Status = report.Status(status)
		if err := json.Unmarshal(countsJSON, &run.Counts); err != nil {
			return nil, pkgerrors.Schedule("unmarshal run counts", err)
		}
		if err := json.Unmarshal(errorsJSON, &run.Errors); err != nil {
			return nil, pkgerrors.Schedule("unmarshal run errors", err)
		}
		if err := json.Unmarshal(warningsJSON, &run.Warnings); err != nil {
			return nil, pkgerrors.Schedule("unmarshal run warnings", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
