package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mafzaal/letstalk-index/internal/app/domain/job"
)

type runPipelineRequest struct {
	Config *configPayload `json:"config"`
}

// runPipeline executes a single pipeline run out-of-band from the scheduler,
// by registering it as an already-due one-shot job and triggering it
// immediately. The job id is returned so the caller can poll
// /pipeline/reports for the outcome.
func (h *handler) runPipeline(w http.ResponseWriter, r *http.Request) {
	var req runPipelineRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r.Body, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	cfg := h.deps.DefaultConfig
	if req.Config != nil {
		merged, err := req.Config.apply(cfg)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		cfg = merged
	}

	id := "manual-" + uuid.NewString()
	trigger := oneShotNowTrigger()
	if _, err := h.deps.Scheduler.CreateJob(r.Context(), id, trigger, cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.deps.Scheduler.TriggerNow(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

func (h *handler) listReports(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimitParam(r.URL.Query().Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	reports, err := h.deps.Reports.ListReports(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func oneShotNowTrigger() job.Trigger {
	return job.Trigger{Kind: job.TriggerOneShot, At: time.Now()}
}
