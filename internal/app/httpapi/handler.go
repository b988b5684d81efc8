package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mafzaal/letstalk-index/internal/app/config"
	"github.com/mafzaal/letstalk-index/internal/app/scheduler"
	"github.com/mafzaal/letstalk-index/internal/app/storage"
	"github.com/mafzaal/letstalk-index/pkg/logger"
	"github.com/mafzaal/letstalk-index/pkg/metrics"
)

// Dependencies wires the collaborators the HTTP control surface delegates to.
// It deliberately does not import the app package: Application owns a
// *Service, so the reverse dependency would cycle.
type Dependencies struct {
	Scheduler     *scheduler.Scheduler
	Reports       storage.ReportStore
	DefaultConfig config.Config
	APITokens     []string
	Metrics       *metrics.Metrics
}

type handler struct {
	deps Dependencies
	log  *logger.Logger
}

// NewHandler builds the routed mux for the control surface described in the
// design's minimal HTTP facade: health, scheduler job management, and manual
// pipeline triggering/reporting.
func NewHandler(deps Dependencies, log *logger.Logger) http.Handler {
	h := &handler{deps: deps, log: log}
	router := mux.NewRouter()

	router.HandleFunc("/health", h.health).Methods(http.MethodGet)
	router.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/scheduler/status", h.schedulerStatus).Methods(http.MethodGet)
	router.HandleFunc("/scheduler/jobs", h.listJobs).Methods(http.MethodGet)
	router.HandleFunc("/scheduler/jobs/cron", h.createCronJob).Methods(http.MethodPost)
	router.HandleFunc("/scheduler/jobs/interval", h.createIntervalJob).Methods(http.MethodPost)
	router.HandleFunc("/scheduler/jobs/onetime", h.createOneTimeJob).Methods(http.MethodPost)
	router.HandleFunc("/scheduler/jobs/{id}", h.deleteJob).Methods(http.MethodDelete)
	router.HandleFunc("/scheduler/jobs/{id}/trigger", h.triggerJob).Methods(http.MethodPost)

	router.HandleFunc("/pipeline/run", h.runPipeline).Methods(http.MethodPost)
	router.HandleFunc("/pipeline/reports", h.listReports).Methods(http.MethodGet)

	return router
}

func pathParam(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(body io.Reader, dst interface{}) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
