// Package config loads the flat configuration record described in spec §6.
// Config is a value type: handing a copy to the pipeline engine per run is
// what makes a job's configuration snapshot immutable once created.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	pkgerrors "github.com/mafzaal/letstalk-index/pkg/errors"
)

// ChunkingStrategy selects the chunker implementation.
type ChunkingStrategy string

const (
	ChunkingSemantic  ChunkingStrategy = "semantic"
	ChunkingRecursive ChunkingStrategy = "recursive"
)

// IncrementalMode controls whether the pipeline engine is allowed to choose
// incrementally between a full rebuild and an incremental update.
type IncrementalMode string

const (
	IncrementalAuto        IncrementalMode = "auto"
	IncrementalForceIncr   IncrementalMode = "incremental"
	IncrementalForceRebuild IncrementalMode = "full"
)

// SemanticBreakpointType selects how the semantic splitter derives its break
// threshold.
type SemanticBreakpointType string

const (
	BreakpointPercentile SemanticBreakpointType = "percentile"
	BreakpointStdDev     SemanticBreakpointType = "stddev"
	BreakpointIQR        SemanticBreakpointType = "iqr"
	BreakpointGradient   SemanticBreakpointType = "gradient"
)

// ChecksumAlgorithm names the supported ledger hash functions.
type ChecksumAlgorithm string

const (
	ChecksumSHA256 ChecksumAlgorithm = "sha-256"
	ChecksumMD5    ChecksumAlgorithm = "md5"
)

// Config is the single recognised configuration record (spec §6). Unknown
// keys in a supplied file are rejected at parse time.
type Config struct {
	DataDir              string `json:"data_dir"`
	DataDirPattern       string `json:"data_dir_pattern"`
	WebURLs              []string `json:"web_urls"`
	BlogBaseURL          string `json:"blog_base_url"`
	IndexOnlyPublished   bool   `json:"index_only_published"`

	UseChunking                        bool                    `json:"use_chunking"`
	ChunkingStrategy                   ChunkingStrategy        `json:"chunking_strategy"`
	AdaptiveChunking                   bool                    `json:"adaptive_chunking"`
	ChunkSize                          int                     `json:"chunk_size"`
	ChunkOverlap                       int                     `json:"chunk_overlap"`
	SemanticBreakpointType             SemanticBreakpointType  `json:"semantic_breakpoint_type"`
	SemanticBreakpointThresholdAmount  float64                 `json:"semantic_breakpoint_threshold_amount"`
	SemanticMinChunkSize               int                     `json:"semantic_min_chunk_size"`

	CollectionName  string `json:"collection_name"`
	EmbeddingModel  string `json:"embedding_model"`
	ForceRecreate   bool   `json:"force_recreate"`

	IncrementalMode               IncrementalMode `json:"incremental_mode"`
	ChecksumAlgorithm              ChecksumAlgorithm `json:"checksum_algorithm"`
	AutoDetectChanges              bool            `json:"auto_detect_changes"`
	IncrementalFallbackThreshold   float64         `json:"incremental_fallback_threshold"`

	EnableBatchProcessing bool    `json:"enable_batch_processing"`
	BatchSize             int     `json:"batch_size"`
	BatchPauseSeconds     float64 `json:"batch_pause_seconds"`
	MaxConcurrentOperations int   `json:"max_concurrent_operations"`

	MaxBackupFiles int `json:"max_backup_files"`

	MetadataCSVPath string `json:"metadata_csv_path"`
	StatsPath       string `json:"stats_path"`
	DocsPath        string `json:"docs_path"`
	HealthReportPath string `json:"health_report_path"`
	CISummaryPath    string `json:"ci_summary_path"`
	BuildInfoPath    string `json:"build_info_path"`
}

// Default returns a Config populated with the defaults listed in spec §6.
func Default() Config {
	return Config{
		DataDir:            "data/",
		DataDirPattern:     "*.md",
		IndexOnlyPublished: true,

		UseChunking:                       true,
		ChunkingStrategy:                  ChunkingSemantic,
		AdaptiveChunking:                  true,
		ChunkSize:                         1000,
		ChunkOverlap:                      200,
		SemanticBreakpointType:            BreakpointPercentile,
		SemanticBreakpointThresholdAmount: 95,
		SemanticMinChunkSize:              100,

		ForceRecreate: false,

		IncrementalMode:              IncrementalAuto,
		ChecksumAlgorithm:            ChecksumSHA256,
		AutoDetectChanges:            true,
		IncrementalFallbackThreshold: 0.8,

		EnableBatchProcessing:   true,
		BatchSize:               50,
		BatchPauseSeconds:       0.1,
		MaxConcurrentOperations: 5,

		MaxBackupFiles: 3,

		MetadataCSVPath:  "data/ledger.csv",
		StatsPath:        "data/stats.json",
		DocsPath:         "data/docs.json",
		HealthReportPath: "data/health.json",
		CISummaryPath:    "data/ci-summary.json",
		BuildInfoPath:    "data/build-info.json",
	}
}

// knownKeys lists every JSON field name Config recognises, used to reject
// unknown keys in a supplied config file.
var knownKeys = func() map[string]struct{} {
	var zero Config
	raw, _ := json.Marshal(zero)
	var m map[string]json.RawMessage
	_ = json.Unmarshal(raw, &m)
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}()

// LoadFile reads a JSON configuration file layered over Default(). Unknown
// keys are a ConfigError.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, pkgerrors.ConfigWrap(fmt.Sprintf("read config file %s", path), err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{}, pkgerrors.ConfigWrap("parse config file", err)
	}
	for key := range raw {
		if _, ok := knownKeys[key]; !ok {
			return Config{}, pkgerrors.Config(fmt.Sprintf("unrecognised configuration key %q", key))
		}
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, pkgerrors.ConfigWrap("decode config file", err)
	}
	return cfg, cfg.Validate()
}

// LoadEnv overlays environment variables (optionally sourced from a .env
// file via godotenv, following the teacher's internal/config.Load) onto the
// supplied base Config.
func LoadEnv(base Config, envFile string) (Config, error) {
	if strings.TrimSpace(envFile) != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, pkgerrors.ConfigWrap("load env file", err)
		}
	}

	cfg := base
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("BLOG_BASE_URL"); v != "" {
		cfg.BlogBaseURL = v
	}
	if v := os.Getenv("COLLECTION_NAME"); v != "" {
		cfg.CollectionName = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.EmbeddingModel = v
	}
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BatchSize = n
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks configuration sanity per spec §4.8 ("Configuration
// sanity" health check) and returns a ConfigError describing the first
// violation found.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return pkgerrors.Config("batch_size must be positive")
	}
	if c.ChunkSize <= 0 || c.ChunkSize > 50000 {
		return pkgerrors.Config("chunk_size out of range")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return pkgerrors.Config("chunk_overlap must be non-negative and smaller than chunk_size")
	}
	switch c.ChecksumAlgorithm {
	case ChecksumSHA256, ChecksumMD5:
	default:
		return pkgerrors.Config("checksum_algorithm must be sha-256 or md5")
	}
	switch c.ChunkingStrategy {
	case ChunkingSemantic, ChunkingRecursive:
	default:
		return pkgerrors.Config("chunking_strategy must be semantic or recursive")
	}
	if c.IncrementalFallbackThreshold < 0 || c.IncrementalFallbackThreshold > 1 {
		return pkgerrors.Config("incremental_fallback_threshold must be between 0 and 1")
	}
	if c.MaxConcurrentOperations <= 0 {
		return pkgerrors.Config("max_concurrent_operations must be positive")
	}
	if c.MaxBackupFiles <= 0 {
		return pkgerrors.Config("max_backup_files must be positive")
	}
	return nil
}

// Snapshot returns a deep-enough copy for embedding inside a Job Definition;
// slices are copied so later mutation of the caller's Config cannot leak
// into a persisted job.
func (c Config) Snapshot() Config {
	out := c
	if c.WebURLs != nil {
		out.WebURLs = append([]string(nil), c.WebURLs...)
	}
	return out
}
