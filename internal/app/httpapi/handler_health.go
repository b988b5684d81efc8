package httpapi

import "net/http"

type healthResponse struct {
	Status           string `json:"status"`
	SchedulerRunning bool   `json:"scheduler_running"`
}

// health is a liveness probe: it reports process up and whether the
// scheduler's dispatch loop is running, without touching any job's vector
// store (that belongs to the heavier per-run health checks).
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	stats := h.deps.Scheduler.Stats(r.Context())
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", SchedulerRunning: stats.SchedulerRunning})
}
