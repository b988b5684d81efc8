// Package postgres implements JobStore and ReportStore backed by PostgreSQL.
package postgres

import (
	"database/sql"

	"github.com/mafzaal/letstalk-index/internal/app/storage"
)

// Store implements storage.JobStore and storage.ReportStore over a *sql.DB.
type Store struct {
	db *sql.DB
}

var _ storage.JobStore = (*Store)(nil)
var _ storage.ReportStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}
