// Package config loads pipeline configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Lllllllleong/routeingest/internal/routes"
)

// Config holds the full application configuration.
type Config struct {
	ProjectID   string            `yaml:"project_id" mapstructure:"project_id"`
	Sources     SourcesConfig     `yaml:"sources" mapstructure:"sources"`
	Destination DestinationConfig `yaml:"destination" mapstructure:"destination"`
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	State       StateConfig       `yaml:"state" mapstructure:"state"`
	Lock        LockConfig        `yaml:"lock" mapstructure:"lock"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Generative  GenerativeConfig  `yaml:"generative" mapstructure:"generative"`
	Vertex      VertexConfig      `yaml:"vertex" mapstructure:"vertex"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Geocode     GeocodeConfig     `yaml:"geocode" mapstructure:"geocode"`
	OCR         OCRConfig         `yaml:"ocr" mapstructure:"ocr"`
	Extraction  ExtractionConfig  `yaml:"extraction" mapstructure:"extraction"`
	Retry       RetryConfig       `yaml:"retry" mapstructure:"retry"`
	Workflow    WorkflowConfig    `yaml:"workflow" mapstructure:"workflow"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Worker      WorkerConfig      `yaml:"worker" mapstructure:"worker"`
}

// SourcesConfig names the two source collections.
type SourcesConfig struct {
	RegEdFolderID  string `yaml:"reg_ed_folder_id" mapstructure:"reg_ed_folder_id"`
	SpecEdFolderID string `yaml:"spec_ed_folder_id" mapstructure:"spec_ed_folder_id"`
}

// DestinationConfig names where artifacts are published.
type DestinationConfig struct {
	FolderID     string `yaml:"folder_id" mapstructure:"folder_id"`
	MirrorBucket string `yaml:"mirror_bucket" mapstructure:"mirror_bucket"`
}

// PipelineConfig bounds a single run.
type PipelineConfig struct {
	BatchSize         int           `yaml:"batch_size" mapstructure:"batch_size"`
	RecencyDays       int           `yaml:"recency_days" mapstructure:"recency_days"`
	LockName          string        `yaml:"lock_name" mapstructure:"lock_name"`
	LockWait          time.Duration `yaml:"lock_wait" mapstructure:"lock_wait"`
	LockLease         time.Duration `yaml:"lock_lease" mapstructure:"lock_lease"`
	ContinuationDelay time.Duration `yaml:"continuation_delay" mapstructure:"continuation_delay"`
}

// StateConfig locates the persisted pipeline state.
type StateConfig struct {
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Object    string `yaml:"object" mapstructure:"object"`
	LocalPath string `yaml:"local_path" mapstructure:"local_path"`
}

// LockConfig configures the Firestore lease lock.
type LockConfig struct {
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// LogConfig configures logging and the operational log sink.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// GenerativeConfig selects the generative extraction backend.
type GenerativeConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// VertexConfig configures the Vertex AI backend.
type VertexConfig struct {
	Region string `yaml:"region" mapstructure:"region"`
	Model  string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GeocodeConfig configures the geocoding service and its courtesy limits.
type GeocodeConfig struct {
	APIKey        string        `yaml:"api_key" mapstructure:"api_key"`
	RegionSuffix  string        `yaml:"region_suffix" mapstructure:"region_suffix"`
	Region        string        `yaml:"region" mapstructure:"region"`
	CourtesyDelay time.Duration `yaml:"courtesy_delay" mapstructure:"courtesy_delay"`
	RPS           float64       `yaml:"rps" mapstructure:"rps"`
}

// OCRConfig configures scanned document conversion.
type OCRConfig struct {
	Language string `yaml:"language" mapstructure:"language"`
	MaxPages int    `yaml:"max_pages" mapstructure:"max_pages"`
}

// ExtractionConfig holds the tunable red-text and stop heuristics.
type ExtractionConfig struct {
	RedMin        float64  `yaml:"red_min" mapstructure:"red_min"`
	OtherMax      float64  `yaml:"other_max" mapstructure:"other_max"`
	RoadSuffixes  []string `yaml:"road_suffixes" mapstructure:"road_suffixes"`
	ManeuverWords []string `yaml:"maneuver_words" mapstructure:"maneuver_words"`
}

// RetryConfig configures the retry executor.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" mapstructure:"multiplier"`
	Jitter         float64       `yaml:"jitter" mapstructure:"jitter"`
}

// WorkflowConfig locates the continuation workflow.
type WorkflowConfig struct {
	Location string `yaml:"location" mapstructure:"location"`
	ID       string `yaml:"id" mapstructure:"id"`
	RunURL   string `yaml:"run_url" mapstructure:"run_url"`
}

// ServerConfig configures the worker's metrics server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// WorkerConfig configures the long-lived worker loop.
type WorkerConfig struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// Load reads configuration from an optional config.yaml and ROUTEINGEST_* environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ROUTEINGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// AutomaticEnv only resolves keys viper already knows about.
	v.SetDefault("project_id", "")
	v.SetDefault("sources.reg_ed_folder_id", "")
	v.SetDefault("sources.spec_ed_folder_id", "")
	v.SetDefault("destination.folder_id", "")
	v.SetDefault("destination.mirror_bucket", "")
	v.SetDefault("pipeline.batch_size", 6)
	v.SetDefault("pipeline.recency_days", 30)
	v.SetDefault("pipeline.lock_name", "route-ingest")
	v.SetDefault("pipeline.lock_wait", 5*time.Second)
	v.SetDefault("pipeline.lock_lease", 9*time.Minute)
	v.SetDefault("pipeline.continuation_delay", time.Minute)
	v.SetDefault("state.bucket", "")
	v.SetDefault("state.object", "pipeline-state.json")
	v.SetDefault("state.local_path", "./pipeline-state.json")
	v.SetDefault("lock.collection", "locks")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.collection", "pipelineLog")
	v.SetDefault("generative.provider", "vertex")
	v.SetDefault("vertex.region", "us-central1")
	v.SetDefault("vertex.model", "gemini-1.5-pro")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("geocode.api_key", "")
	v.SetDefault("geocode.region_suffix", ", MD")
	v.SetDefault("geocode.region", "us")
	v.SetDefault("geocode.courtesy_delay", 200*time.Millisecond)
	v.SetDefault("geocode.rps", 10.0)
	v.SetDefault("ocr.language", "en")
	v.SetDefault("ocr.max_pages", 20)
	v.SetDefault("extraction.red_min", 0.7)
	v.SetDefault("extraction.other_max", 0.25)
	v.SetDefault("extraction.road_suffixes", routes.DefaultRoadSuffixes)
	v.SetDefault("extraction.maneuver_words", routes.DefaultManeuverWords)
	v.SetDefault("retry.max_attempts", 4)
	v.SetDefault("retry.initial_backoff", time.Second)
	v.SetDefault("retry.max_backoff", 30*time.Second)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter", 0.25)
	v.SetDefault("workflow.location", "us-central1")
	v.SetDefault("workflow.id", "route-ingest-continuation")
	v.SetDefault("workflow.run_url", "")
	v.SetDefault("server.port", 9090)
	v.SetDefault("worker.interval", 5*time.Minute)
}

// Validate reports missing required settings. cloud selects the checks that
// only apply when running against GCP-hosted state and scheduling.
func (c *Config) Validate(cloud bool) error {
	var missing []string
	if c.Sources.RegEdFolderID == "" {
		missing = append(missing, "sources.reg_ed_folder_id")
	}
	if c.Sources.SpecEdFolderID == "" {
		missing = append(missing, "sources.spec_ed_folder_id")
	}
	if c.Destination.FolderID == "" {
		missing = append(missing, "destination.folder_id")
	}
	if c.Geocode.APIKey == "" {
		missing = append(missing, "geocode.api_key")
	}
	switch c.Generative.Provider {
	case "vertex":
		if c.ProjectID == "" {
			missing = append(missing, "project_id")
		}
	case "anthropic":
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key")
		}
	default:
		return eris.Errorf("config: unknown generative.provider %q", c.Generative.Provider)
	}
	if cloud {
		if c.ProjectID == "" && c.Generative.Provider != "vertex" {
			missing = append(missing, "project_id")
		}
		if c.State.Bucket == "" {
			missing = append(missing, "state.bucket")
		}
		if c.Workflow.RunURL == "" {
			missing = append(missing, "workflow.run_url")
		}
	}
	if c.Pipeline.BatchSize <= 0 {
		return eris.Errorf("config: pipeline.batch_size must be positive, got %d", c.Pipeline.BatchSize)
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
