package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	core "github.com/mafzaal/letstalk-index/internal/app/core/service"
	"github.com/mafzaal/letstalk-index/internal/app/config"
	"github.com/mafzaal/letstalk-index/internal/app/httpapi"
	"github.com/mafzaal/letstalk-index/internal/app/pipeline"
	"github.com/mafzaal/letstalk-index/internal/app/scheduler"
	"github.com/mafzaal/letstalk-index/internal/app/storage"
	"github.com/mafzaal/letstalk-index/internal/app/storage/memory"
	"github.com/mafzaal/letstalk-index/internal/app/system"
	"github.com/mafzaal/letstalk-index/pkg/logger"
	"github.com/mafzaal/letstalk-index/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation, which is sufficient for a single-process
// deployment without a configured database.
type Stores struct {
	Jobs    storage.JobStore
	Reports storage.ReportStore
}

func (s *Stores) applyDefaults(mem *memory.Store) {
	if s == nil || mem == nil {
		return
	}
	if s.Jobs == nil {
		s.Jobs = mem
	}
	if s.Reports == nil {
		s.Reports = mem
	}
}

// RuntimeConfig captures environment-dependent wiring that would otherwise
// be sourced directly from OS variables, so callers can supply it explicitly
// in tests or alternate embeddings.
type RuntimeConfig struct {
	ListenHost        string
	ListenPort         int
	APITokens         []string
	MaxConcurrentJobs int
	SchedulerPoll     time.Duration
}

// Option customises the application runtime.
type Option func(*builderConfig)

// Environment exposes a simple lookup mechanism which callers can implement
// to inject custom environment sources (for example when testing).
type Environment interface {
	Lookup(key string) string
}

type builderConfig struct {
	httpClient        *http.Client
	environment       Environment
	runtime           RuntimeConfig
	runtimeDefined    bool
	defaultConfig     config.Config
	metricsRegisterer prometheus.Registerer
}

type resolvedBuilder struct {
	httpClient        *http.Client
	runtime           runtimeSettings
	defaultConfig     config.Config
	metricsRegisterer prometheus.Registerer
}

type runtimeSettings struct {
	listenAddr        string
	apiTokens         []string
	maxConcurrentJobs int
	schedulerPoll     time.Duration
}

// WithRuntimeConfig overrides the runtime configuration used when wiring the
// HTTP listener and scheduler. When omitted, environment variables are
// consulted.
func WithRuntimeConfig(cfg RuntimeConfig) Option {
	return func(b *builderConfig) {
		b.runtime = cfg
		b.runtimeDefined = true
	}
}

// WithHTTPClient sets the builder's shared HTTP client; a nil client falls
// back to the default 10-second timeout client. The client is not passed to
// the pipeline runner: embedding providers build their own HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(b *builderConfig) {
		b.httpClient = client
	}
}

// WithEnvironment provides a custom environment lookup used when no explicit
// runtime configuration was supplied. Passing nil retains the default.
func WithEnvironment(env Environment) Option {
	return func(b *builderConfig) {
		if env != nil {
			b.environment = env
		}
	}
}

// WithMetricsRegisterer supplies the Prometheus registerer collectors are
// registered against. Tests that create multiple Applications should pass a
// fresh prometheus.NewRegistry() per instance to avoid duplicate-collector
// panics against the global default registerer.
func WithMetricsRegisterer(registerer prometheus.Registerer) Option {
	return func(b *builderConfig) {
		b.metricsRegisterer = registerer
	}
}

// WithDefaultConfig sets the configuration snapshot used by the job-creation
// endpoints and the manual "POST /pipeline/run" endpoint when no overriding
// config body is supplied.
func WithDefaultConfig(cfg config.Config) Option {
	return func(b *builderConfig) {
		b.defaultConfig = cfg
	}
}

// Application ties the Scheduler, Pipeline Engine, and HTTP control surface
// together and manages their lifecycle via a single system.Manager.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Scheduler     *scheduler.Scheduler
	HTTP          *httpapi.Service
	DefaultConfig config.Config
	Jobs          storage.JobStore
	Reports       storage.ReportStore

	descriptors []core.Descriptor
}

// New builds a fully wired Application: job/report persistence (defaulting
// to in-memory), the Pipeline Runner, the Scheduler, and the HTTP control
// surface, all registered with a single system.Manager for deterministic
// start/stop ordering.
func New(stores Stores, log *logger.Logger, opts ...Option) (*Application, error) {
	options := resolveBuilderOptions(opts...)
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	stores.applyDefaults(mem)

	manager := system.NewManager()
	clock := core.SystemClock{}
	runner := pipeline.NewRunner(clock, nil, log)
	metricsCollector := metrics.NewWithRegistry(options.metricsRegisterer)

	sched := scheduler.New(
		stores.Jobs,
		stores.Reports,
		runner,
		clock,
		log,
		scheduler.WithMaxConcurrentJobs(options.runtime.maxConcurrentJobs),
		scheduler.WithPollInterval(options.runtime.schedulerPoll),
		scheduler.WithMetrics(metricsCollector),
	)
	if err := manager.Register(sched); err != nil {
		return nil, fmt.Errorf("register scheduler: %w", err)
	}

	httpSvc := httpapi.NewService(httpapi.Dependencies{
		Scheduler:     sched,
		Reports:       stores.Reports,
		DefaultConfig: options.defaultConfig,
		APITokens:     options.runtime.apiTokens,
		Metrics:       metricsCollector,
	}, options.runtime.listenAddr, log)
	if err := manager.Register(httpSvc); err != nil {
		return nil, fmt.Errorf("register http service: %w", err)
	}

	return &Application{
		manager:       manager,
		log:           log,
		Scheduler:     sched,
		HTTP:          httpSvc,
		DefaultConfig: options.defaultConfig,
		Jobs:          stores.Jobs,
		Reports:       stores.Reports,
		descriptors:   manager.Descriptors(),
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(svc system.Service) error {
	return a.manager.Register(svc)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Descriptors returns advertised service descriptors for introspection.
func (a *Application) Descriptors() []core.Descriptor {
	out := make([]core.Descriptor, len(a.descriptors))
	copy(out, a.descriptors)
	return out
}

func resolveBuilderOptions(opts ...Option) resolvedBuilder {
	cfg := builderConfig{environment: osEnvironment{}, defaultConfig: config.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.environment == nil {
		cfg.environment = osEnvironment{}
	}
	if cfg.httpClient == nil {
		cfg.httpClient = defaultHTTPClient()
	}
	runtimeCfg := cfg.runtime
	if !cfg.runtimeDefined {
		runtimeCfg = runtimeConfigFromEnv(cfg.environment)
	}
	registerer := cfg.metricsRegisterer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	return resolvedBuilder{
		httpClient:        cfg.httpClient,
		runtime:           normalizeRuntimeConfig(runtimeCfg),
		defaultConfig:     cfg.defaultConfig,
		metricsRegisterer: registerer,
	}
}

func runtimeConfigFromEnv(env Environment) RuntimeConfig {
	if env == nil {
		env = osEnvironment{}
	}
	port := 8080
	if parsed, ok := parseInt(env.Lookup("LISTEN_PORT")); ok {
		port = parsed
	}
	maxJobs := 0
	if parsed, ok := parseInt(env.Lookup("MAX_CONCURRENT_JOBS")); ok {
		maxJobs = parsed
	}
	host := env.Lookup("LISTEN_HOST")
	if host == "" {
		host = "0.0.0.0"
	}
	return RuntimeConfig{
		ListenHost:        host,
		ListenPort:        port,
		APITokens:         parseTokens(env.Lookup("API_TOKENS")),
		MaxConcurrentJobs: maxJobs,
	}
}

func normalizeRuntimeConfig(cfg RuntimeConfig) runtimeSettings {
	host := strings.TrimSpace(cfg.ListenHost)
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.ListenPort
	if port <= 0 {
		port = 8080
	}
	maxJobs := cfg.MaxConcurrentJobs
	if maxJobs <= 0 {
		maxJobs = 4
	}
	poll := cfg.SchedulerPoll
	if poll <= 0 {
		poll = time.Second
	}
	return runtimeSettings{
		listenAddr:        fmt.Sprintf("%s:%d", host, port),
		apiTokens:         cfg.APITokens,
		maxConcurrentJobs: maxJobs,
		schedulerPoll:     poll,
	}
}

func parseInt(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func parseTokens(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';' || r == ' '
	})
	seen := make(map[string]struct{}, len(parts))
	var result []string
	for _, p := range parts {
		token := strings.TrimSpace(p)
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		result = append(result, token)
	}
	return result
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

type osEnvironment struct{}

func (osEnvironment) Lookup(key string) string {
	return os.Getenv(key)
}
