// Package errors provides the unified error taxonomy used across the
// ingestion pipeline and scheduler.
package errors

import (
	"fmt"
	"net/http"
)

// Kind names one of the abstract error categories of the design.
type Kind string

const (
	KindConfig    Kind = "config_error"
	KindLoad      Kind = "load_error"
	KindLedger    Kind = "ledger_error"
	KindEmbedding Kind = "embedding_error"
	KindStore     Kind = "store_error"
	KindSchedule  Kind = "schedule_error"
	KindHealth    Kind = "health_error"
)

// ServiceError is a structured error carrying an HTTP status and a kind.
type ServiceError struct {
	KindOf     Kind                   `json:"error_kind"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.KindOf, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.KindOf, e.Message)
}

// Unwrap exposes the wrapped error for errors.Is/As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a key/value pair to the error for diagnostics.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a ServiceError of the given kind.
func New(kind Kind, message string, httpStatus int) *ServiceError {
	return &ServiceError{KindOf: kind, Message: message, HTTPStatus: httpStatus}
}

// Wrap creates a ServiceError of the given kind around an underlying error.
func Wrap(kind Kind, message string, httpStatus int, err error) *ServiceError {
	return &ServiceError{KindOf: kind, Message: message, HTTPStatus: httpStatus, Err: err}
}

// Config constructs a ConfigError. Fatal to the operation; never touches the ledger.
func Config(message string) *ServiceError {
	return New(KindConfig, message, http.StatusBadRequest)
}

// ConfigWrap wraps an underlying error as a ConfigError.
func ConfigWrap(message string, err error) *ServiceError {
	return Wrap(KindConfig, message, http.StatusBadRequest, err)
}

// Load constructs a LoadError (directory-level, aborts the run).
func Load(message string, err error) *ServiceError {
	return Wrap(KindLoad, message, http.StatusInternalServerError, err)
}

// Ledger constructs a LedgerError (aborts the run, triggers backup restoration).
func Ledger(message string, err error) *ServiceError {
	return Wrap(KindLedger, message, http.StatusInternalServerError, err)
}

// Embedding constructs an EmbeddingError (propagates as a per-batch failure).
func Embedding(message string, err error) *ServiceError {
	return Wrap(KindEmbedding, message, http.StatusBadGateway, err)
}

// Store constructs a StoreError (same propagation as EmbeddingError).
func Store(message string, err error) *ServiceError {
	return Wrap(KindStore, message, http.StatusBadGateway, err)
}

// Schedule constructs a ScheduleError. No job state is mutated when raised.
func Schedule(message string, err error) *ServiceError {
	return Wrap(KindSchedule, message, http.StatusConflict, err)
}

// Health constructs a HealthError. Reported but never fatal to a run.
func Health(message string, err error) *ServiceError {
	return Wrap(KindHealth, message, http.StatusServiceUnavailable, err)
}

// NotFound constructs a ScheduleError for a missing job, matching the HTTP
// control surface's 404 behaviour for unknown job ids.
func NotFound(resource, id string) *ServiceError {
	return New(KindSchedule, fmt.Sprintf("%s %q not found", resource, id), http.StatusNotFound)
}

// AlreadyExists constructs a ScheduleError for a duplicate job id.
func AlreadyExists(resource, id string) *ServiceError {
	return New(KindSchedule, fmt.Sprintf("%s %q already exists", resource, id), http.StatusConflict)
}
