package httpapi

import (
	"context"
	"net/http"
	"time"

	core "github.com/mafzaal/letstalk-index/internal/app/core/service"
	"github.com/mafzaal/letstalk-index/internal/app/system"
	"github.com/mafzaal/letstalk-index/pkg/logger"
)

var (
	_ system.Service            = (*Service)(nil)
	_ system.DescriptorProvider = (*Service)(nil)
)

// Service exposes the HTTP control surface and fits into the system
// manager's Start/Stop lifecycle.
type Service struct {
	addr    string
	server  *http.Server
	handler http.Handler
	log     *logger.Logger
}

// NewService builds the routed handler chain: logging and recovery wrap
// everything, CORS sits just inside them, Prometheus instrumentation inside
// CORS, and auth wraps the router itself. InstrumentHandler counts every
// request that reaches it, /metrics scrapes included.
func NewService(deps Dependencies, addr string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("http")
	}
	var h http.Handler = NewHandler(deps, log)
	h = wrapWithAuth(h, deps.APITokens)
	h = deps.Metrics.InstrumentHandler(h)
	h = wrapWithCORS(h)
	h = wrapWithRecovery(h, log)
	h = wrapWithLogging(h, log)

	return &Service{addr: addr, handler: h, log: log}
}

func (s *Service) Name() string { return "http" }

func (s *Service) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:         "http",
		Domain:       "control",
		Layer:        core.LayerControl,
		Capabilities: []string{"health", "scheduler_jobs", "pipeline_run", "pipeline_reports"},
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("http server error: %v", err)
		}
	}()
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
