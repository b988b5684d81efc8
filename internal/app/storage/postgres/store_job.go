package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mafzaal/letstalk-index/internal/app/domain/job"
	pkgerrors "github.com/mafzaal/letstalk-index/pkg/errors"
)

// CreateJob inserts a job definition. The id is caller-supplied and must be
// unique: a conflict is surfaced as a ScheduleError.
func (s *Store) CreateJob(ctx context.Context, def job.Definition) (job.Definition, error) {
	now := time.Now().UTC()
	def.CreatedAt = now
	def.UpdatedAt = now

	trigger, err := json.Marshal(def.Trigger)
	if err != nil {
		return job.Definition{}, pkgerrors.Schedule("marshal trigger", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scheduler_jobs (id, trigger_json, config_json, next_fire_time, last_fire_time, last_error, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, def.ID, trigger, def.ConfigJSON, nullableTime(def.NextFireTime), nullableTime(def.LastFireTime), def.LastError, def.Completed, def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return job.Definition{}, pkgerrors.Schedule("insert job "+def.ID, err)
	}
	return def, nil
}

// UpdateJob overwrites an existing job definition.
func (s *Store) UpdateJob(ctx context.Context, def job.Definition) (job.Definition, error) {
	existing, err := s.GetJob(ctx, def.ID)
	if err != nil {
		return job.Definition{}, err
	}
	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = time.Now().UTC()

	trigger, err := json.Marshal(def.Trigger)
	if err != nil {
		return job.Definition{}, pkgerrors.Schedule("marshal trigger", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE scheduler_jobs
		SET trigger_json = $2, config_json = $3, next_fire_time = $4, last_fire_time = $5, last_error = $6, completed = $7, updated_at = $8
		WHERE id = $1
	`, def.ID, trigger, def.ConfigJSON, nullableTime(def.NextFireTime), nullableTime(def.LastFireTime), def.LastError, def.Completed, def.UpdatedAt)
	if err != nil {
		return job.Definition{}, pkgerrors.Schedule("update job "+def.ID, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return job.Definition{}, pkgerrors.Schedule("job not found: "+def.ID, sql.ErrNoRows)
	}
	return def, nil
}

// GetJob returns the job with id.
func (s *Store) GetJob(ctx context.Context, id string) (job.Definition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, trigger_json, config_json, next_fire_time, last_fire_time, last_error, completed, created_at, updated_at
		FROM scheduler_jobs
		WHERE id = $1
	`, id)
	def, err := scanJob(row)
	if err != nil {
		return job.Definition{}, pkgerrors.Schedule("get job "+id, err)
	}
	return def, nil
}

// ListJobs returns every job ordered by id.
func (s *Store) ListJobs(ctx context.Context) ([]job.Definition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trigger_json, config_json, next_fire_time, last_fire_time, last_error, completed, created_at, updated_at
		FROM scheduler_jobs
		ORDER BY id
	`)
	if err != nil {
		return nil, pkgerrors.Schedule("list jobs", err)
	}
	defer rows.Close()

	var out []job.Definition
	for rows.Next() {
		def, err := scanJob(rows)
		if err != nil {
			return nil, pkgerrors.Schedule("scan job row", err)
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

// DeleteJob removes the job with id.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scheduler_jobs WHERE id = $1`, id); err != nil {
		return pkgerrors.Schedule("delete job "+id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (job.Definition, error) {
	var (
		def          job.Definition
		triggerJSON  []byte
		nextFireTime sql.NullTime
		lastFireTime sql.NullTime
	)
	if err := row.Scan(&def.ID, &triggerJSON, &def.ConfigJSON, &nextFireTime, &lastFireTime, &def.LastError, &def.Completed, &def.CreatedAt, &def.UpdatedAt); err != nil {
		return job.Definition{}, err
	}
	if err := json.Unmarshal(triggerJSON, &def.Trigger); err != nil {
		return job.Definition{}, err
	}
	if nextFireTime.Valid {
		def.NextFireTime = nextFireTime.Time.UTC()
	}
	if lastFireTime.Valid {
		def.LastFireTime = lastFireTime.Time.UTC()
	}
	return def, nil
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
