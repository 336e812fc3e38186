// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// GlobalConfig is the daemon's top-level static configuration. Maps to the
// `phasebridge:` root key in YAML.
type GlobalConfig struct {
	ServiceName string          `mapstructure:"service_name"`
	Loop        LoopConfig      `mapstructure:"loop"`
	EdgeEvent   EdgeEventConfig `mapstructure:"edge_event"`
	Phase       PhaseConfig     `mapstructure:"phase"`
	Plugins     PluginsConfig   `mapstructure:"plugins"`
	Pipeline    PipelineConfig  `mapstructure:"pipeline"`
	Rules       RulesConfig     `mapstructure:"rules"`
	MQTT        MQTTConfig      `mapstructure:"mqtt"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	Log         LogConfig       `mapstructure:"log"`
	Control     ControlConfig   `mapstructure:"control"`
}

// LoopConfig controls the workflow runner's main tick loop.
type LoopConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// EdgeEventConfig controls ingestion and store behavior.
type EdgeEventConfig struct {
	MaxAgeSeconds int    `mapstructure:"max_age_seconds"`
	StaleSeconds  int    `mapstructure:"stale_seconds"`
	StaleMode     string `mapstructure:"stale_mode"` // freeze | unknown
	UnknownPhase  string `mapstructure:"unknown_phase"`
	Backend       string `mapstructure:"backend"` // http | mqtt
	HTTPAddr      string `mapstructure:"http_addr"`
}

// PhaseConfig controls phase commitment and publish behavior.
type PhaseConfig struct {
	StableSeconds  int            `mapstructure:"stable_seconds"`
	PublishBackend string         `mapstructure:"publish_backend"` // defaults to EdgeEvent.Backend
	Timezone       string         `mapstructure:"timezone"`        // IANA name, consulted by TimeBasedSchedulerEngine
	Windows        []WindowConfig `mapstructure:"windows"`
}

// WindowConfig is one working-hours window in HH:MM, consumed by
// TimeBasedSchedulerEngine.
type WindowConfig struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// PluginsConfig names the engine implementation to resolve for each
// pluggable concern (spec.md §6 *_ENGINE_CLASS / *_STRATEGY_CLASS). Values
// are registry names, not module:Class paths — see internal/engine.
type PluginsConfig struct {
	PhaseEngine         string `mapstructure:"phase_engine"`
	SchedulerEngine     string `mapstructure:"scheduler_engine"`
	IngestionEngine     string `mapstructure:"ingestion_engine"`
	TrackingEngine      string `mapstructure:"tracking_engine"`
	FormatStrategy      string `mapstructure:"format_strategy"`
	RulesEngine         string `mapstructure:"rules_engine"`
	EventDispatchEngine string `mapstructure:"event_dispatch_engine"`
	PipelineSelector    string `mapstructure:"pipeline_selector"`
}

// PipelineConfig points at the pipeline schedule JSON file.
type PipelineConfig struct {
	SchedulePath      string `mapstructure:"schedule_path"`
	FormatTaskEnabled bool   `mapstructure:"format_task_enabled"`
}

// RulesConfig configures the default "threshold" RuleEngine.
type RulesConfig struct {
	Thresholds []ThresholdConfig `mapstructure:"thresholds"`
}

// ThresholdConfig is one zone/class object-count limit fed to
// rule.ThresholdRuleEngine.
type ThresholdConfig struct {
	Zone     string   `mapstructure:"zone"`
	Class    string   `mapstructure:"class"`
	MaxCount int      `mapstructure:"max_count"`
	Handlers []string `mapstructure:"handlers"`
}

// MQTTConfig configures the MQTT transport when EdgeEvent.Backend or
// Phase.PublishBackend is "mqtt".
type MQTTConfig struct {
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	QoS              int    `mapstructure:"qos"`
	Retain           bool   `mapstructure:"retain"`
	HeartbeatSeconds int    `mapstructure:"heartbeat_seconds"`
	ClientID         string `mapstructure:"client_id"`
	PhaseTopic       string `mapstructure:"phase_topic"`
	EventsTopic      string `mapstructure:"events_topic"`
}

// MetricsConfig controls the /metrics and /healthz HTTP server.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string        `mapstructure:"level"`
	Format  string        `mapstructure:"format"` // text | json | pattern
	Pattern string        `mapstructure:"pattern"`
	File    FileLogConfig `mapstructure:"file"`
}

// FileLogConfig configures rotated file log output.
type FileLogConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ControlConfig contains local control-plane settings.
type ControlConfig struct {
	PIDFile string `mapstructure:"pid_file"`
}

// configRoot is the top-level wrapper matching the YAML structure
// `phasebridge: ...`.
type configRoot struct {
	PhaseBridge GlobalConfig `mapstructure:"phasebridge"`
}

// Load loads configuration from a YAML file, applying env var overrides
// and defaults, and validates the result.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// "phasebridge.log.level" -> "PHASEBRIDGE_LOG_LEVEL", matching the
	// bare env vars named in the external-interfaces spec.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindSpecEnvVars(v)

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.PhaseBridge

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// bindSpecEnvVars binds the bare env var names spec.md §6 documents
// directly, alongside the PHASEBRIDGE_-prefixed key replacer mapping, so
// either convention works.
func bindSpecEnvVars(v *viper.Viper) {
	bindings := map[string]string{
		"loop.interval_seconds":         "LOOP_INTERVAL_SECONDS",
		"phase.stable_seconds":          "PHASE_STABLE_SECONDS",
		"edge_event.max_age_seconds":    "EDGE_EVENT_MAX_AGE",
		"edge_event.stale_seconds":      "EDGE_EVENT_STALE_SECONDS",
		"edge_event.stale_mode":         "EDGE_EVENT_STALE_MODE",
		"edge_event.unknown_phase":      "EDGE_EVENT_UNKNOWN_PHASE",
		"edge_event.backend":            "EDGE_EVENT_BACKEND",
		"phase.publish_backend":         "PHASE_PUBLISH_BACKEND",
		"plugins.phase_engine":          "PHASE_ENGINE_CLASS",
		"plugins.scheduler_engine":      "SCHEDULER_ENGINE_CLASS",
		"plugins.ingestion_engine":      "INGESTION_ENGINE_CLASS",
		"plugins.tracking_engine":       "TRACKING_ENGINE_CLASS",
		"plugins.format_strategy":       "FORMAT_STRATEGY_CLASS",
		"plugins.rules_engine":          "RULES_ENGINE_CLASS",
		"plugins.event_dispatch_engine": "EVENT_DISPATCH_ENGINE_CLASS",
		"plugins.pipeline_selector":     "PIPELINE_SELECTOR_CLASS",
		"pipeline.schedule_path":        "PIPELINE_SCHEDULE_PATH",
		"pipeline.format_task_enabled":  "FORMAT_TASK_ENABLED",
		"phase.timezone":                "PHASE_TIMEZONE",
		"service_name":                  "PHASEBRIDGE_SERVICE_NAME",
		"mqtt.host":                     "MQTT_HOST",
		"mqtt.port":                     "MQTT_PORT",
		"mqtt.qos":                      "MQTT_QOS",
		"mqtt.retain":                   "MQTT_RETAIN",
		"mqtt.heartbeat_seconds":        "MQTT_HEARTBEAT_SECONDS",
		"mqtt.client_id":                "MQTT_CLIENT_ID",
		"mqtt.phase_topic":              "PHASE_MQTT_TOPIC",
		"mqtt.events_topic":             "EDGE_EVENTS_MQTT_TOPIC",
		"control.pid_file":              "CONTROL_PID_FILE",
		"log.level":                     "PHASEBRIDGE_LOG_LEVEL",
		"log.format":                    "PHASEBRIDGE_LOG_FORMAT",
	}
	for key, env := range bindings {
		_ = v.BindEnv("phasebridge."+key, env)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("phasebridge.loop.interval_seconds", 5)
	v.SetDefault("phasebridge.phase.stable_seconds", 180)
	v.SetDefault("phasebridge.edge_event.max_age_seconds", 0)
	v.SetDefault("phasebridge.edge_event.stale_seconds", 0)
	v.SetDefault("phasebridge.edge_event.stale_mode", "freeze")
	v.SetDefault("phasebridge.edge_event.unknown_phase", "unknown")
	v.SetDefault("phasebridge.edge_event.backend", "http")
	v.SetDefault("phasebridge.edge_event.http_addr", ":8080")

	v.SetDefault("phasebridge.mqtt.port", 1883)
	v.SetDefault("phasebridge.mqtt.qos", 1)
	v.SetDefault("phasebridge.mqtt.retain", true)
	v.SetDefault("phasebridge.mqtt.heartbeat_seconds", 30)
	v.SetDefault("phasebridge.mqtt.client_id", "phasebridge")
	v.SetDefault("phasebridge.mqtt.phase_topic", "integration/phase")
	v.SetDefault("phasebridge.mqtt.events_topic", "edge/events")

	v.SetDefault("phasebridge.metrics.enabled", true)
	v.SetDefault("phasebridge.metrics.listen", ":9090")

	v.SetDefault("phasebridge.log.level", "info")
	v.SetDefault("phasebridge.log.format", "text")
	v.SetDefault("phasebridge.log.file.enabled", false)
	v.SetDefault("phasebridge.log.file.max_size_mb", 100)
	v.SetDefault("phasebridge.log.file.max_age_days", 30)
	v.SetDefault("phasebridge.log.file.max_backups", 5)
	v.SetDefault("phasebridge.log.file.compress", true)

	v.SetDefault("phasebridge.plugins.phase_engine", "debounced")
	v.SetDefault("phasebridge.plugins.scheduler_engine", "single_phase")
	v.SetDefault("phasebridge.plugins.event_dispatch_engine", "isolating")
	v.SetDefault("phasebridge.plugins.rules_engine", "threshold")
	v.SetDefault("phasebridge.plugins.pipeline_selector", "working_hours")

	v.SetDefault("phasebridge.pipeline.format_task_enabled", true)
	v.SetDefault("phasebridge.phase.timezone", "UTC")
	v.SetDefault("phasebridge.service_name", "phasebridge")
	v.SetDefault("phasebridge.control.pid_file", "")
}

// ValidateAndApplyDefaults validates configuration (including the stale
// mode) and applies the cross-field publish backend inheritance default.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	validFormats := map[string]bool{"text": true, "json": true, "pattern": true}
	if !validFormats[cfg.Log.Format] {
		return fmt.Errorf("invalid log format: %s (must be text/json/pattern)", cfg.Log.Format)
	}

	if cfg.EdgeEvent.Backend != "http" && cfg.EdgeEvent.Backend != "mqtt" {
		return fmt.Errorf("invalid edge_event.backend: %s (must be http/mqtt)", cfg.EdgeEvent.Backend)
	}

	if cfg.EdgeEvent.StaleSeconds > 0 {
		if cfg.EdgeEvent.StaleMode != "freeze" && cfg.EdgeEvent.StaleMode != "unknown" {
			return fmt.Errorf("invalid edge_event.stale_mode: %s (must be freeze/unknown)", cfg.EdgeEvent.StaleMode)
		}
	}

	if cfg.Phase.PublishBackend == "" {
		cfg.Phase.PublishBackend = cfg.EdgeEvent.Backend
	}

	if cfg.Pipeline.SchedulePath == "" {
		return fmt.Errorf("pipeline.schedule_path is required")
	}

	return nil
}

// MaxAge returns EdgeEvent.MaxAgeSeconds as a time.Duration, 0 meaning
// disabled.
func (cfg *GlobalConfig) MaxAge() time.Duration {
	return time.Duration(cfg.EdgeEvent.MaxAgeSeconds) * time.Second
}

// StaleAfter returns EdgeEvent.StaleSeconds as a time.Duration, 0 meaning
// disabled.
func (cfg *GlobalConfig) StaleAfter() time.Duration {
	return time.Duration(cfg.EdgeEvent.StaleSeconds) * time.Second
}

// StableWindow returns Phase.StableSeconds as a time.Duration.
func (cfg *GlobalConfig) StableWindow() time.Duration {
	return time.Duration(cfg.Phase.StableSeconds) * time.Second
}

// LoopInterval returns Loop.IntervalSeconds as a time.Duration.
func (cfg *GlobalConfig) LoopInterval() time.Duration {
	return time.Duration(cfg.Loop.IntervalSeconds) * time.Second
}

// Heartbeat returns MQTT.HeartbeatSeconds as a time.Duration.
func (cfg *GlobalConfig) Heartbeat() time.Duration {
	return time.Duration(cfg.MQTT.HeartbeatSeconds) * time.Second
}

// Location resolves Phase.Timezone to a *time.Location, falling back to
// UTC for an empty or unresolvable name rather than failing startup over
// a cosmetic misconfiguration.
func (cfg *GlobalConfig) Location() *time.Location {
	if cfg.Phase.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(cfg.Phase.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
