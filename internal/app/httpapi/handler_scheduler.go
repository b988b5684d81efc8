package httpapi

import (
	"net/http"
	"time"

	"github.com/mafzaal/letstalk-index/internal/app/domain/job"
)

func (h *handler) schedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Scheduler.Stats(r.Context()))
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.deps.Scheduler.ListJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// cronJobRequest, intervalJobRequest and oneTimeJobRequest share one shape
// across the job-creation routes: an id, a trigger-specific payload, and an
// optional config override. Omitting config
// falls back to the server's default configuration snapshot.
type cronJobRequest struct {
	ID             string         `json:"id"`
	CronExpression string         `json:"cron_expression"`
	Minute         string         `json:"minute"`
	Hour           string         `json:"hour"`
	DayOfWeek      string         `json:"day_of_week"`
	Config         *configPayload `json:"config"`
}

type intervalJobRequest struct {
	ID      string         `json:"id"`
	Minutes int            `json:"minutes"`
	Hours   int            `json:"hours"`
	Days    int            `json:"days"`
	Config  *configPayload `json:"config"`
}

type oneTimeJobRequest struct {
	ID                       string         `json:"id"`
	At                       time.Time      `json:"at"`
	LatenessToleranceSeconds int            `json:"lateness_tolerance_seconds"`
	Config                   *configPayload `json:"config"`
}

func (h *handler) createCronJob(w http.ResponseWriter, r *http.Request) {
	var req cronJobRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, ErrMissingJobID)
		return
	}
	trigger := job.Trigger{
		Kind:           job.TriggerCron,
		CronExpression: req.CronExpression,
		Minute:         req.Minute,
		Hour:           req.Hour,
		DayOfWeek:      req.DayOfWeek,
	}
	h.createJob(w, r, req.ID, trigger, req.Config)
}

func (h *handler) createIntervalJob(w http.ResponseWriter, r *http.Request) {
	var req intervalJobRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, ErrMissingJobID)
		return
	}
	trigger := job.Trigger{
		Kind:            job.TriggerInterval,
		IntervalMinutes: req.Minutes,
		IntervalHours:   req.Hours,
		IntervalDays:    req.Days,
	}
	h.createJob(w, r, req.ID, trigger, req.Config)
}

func (h *handler) createOneTimeJob(w http.ResponseWriter, r *http.Request) {
	var req oneTimeJobRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, ErrMissingJobID)
		return
	}
	if req.At.IsZero() {
		writeError(w, http.StatusBadRequest, ErrInvalidTrigger)
		return
	}
	trigger := job.Trigger{
		Kind:              job.TriggerOneShot,
		At:                req.At,
		LatenessTolerance: time.Duration(req.LatenessToleranceSeconds) * time.Second,
	}
	h.createJob(w, r, req.ID, trigger, req.Config)
}

func (h *handler) createJob(w http.ResponseWriter, r *http.Request, id string, trigger job.Trigger, override *configPayload) {
	cfg := h.deps.DefaultConfig
	if override != nil {
		merged, err := override.apply(cfg)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		cfg = merged
	}
	def, err := h.deps.Scheduler.CreateJob(r.Context(), id, trigger, cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (h *handler) deleteJob(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, ErrMissingJobID)
		return
	}
	if err := h.deps.Scheduler.DeleteJob(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) triggerJob(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, ErrMissingJobID)
		return
	}
	if err := h.deps.Scheduler.TriggerNow(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
