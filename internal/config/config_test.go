package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTmpConfig writes content to a temp YAML file and returns its path.
func writeTmpConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write tmp config: %v", err)
	}
	return p
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
phasebridge:
  service_name: "site-01"
  loop:
    interval_seconds: 10
  edge_event:
    max_age_seconds: 30
    backend: "http"
    http_addr: ":8090"
  phase:
    stable_seconds: 60
    timezone: "UTC"
  pipeline:
    schedule_path: "/etc/phasebridge/schedule.json"
  log:
    level: "debug"
    format: "json"
  metrics:
    enabled: true
    listen: "0.0.0.0:9090"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServiceName != "site-01" {
		t.Errorf("ServiceName = %q, want site-01", cfg.ServiceName)
	}
	if cfg.Loop.IntervalSeconds != 10 {
		t.Errorf("Loop.IntervalSeconds = %d, want 10", cfg.Loop.IntervalSeconds)
	}
	if cfg.EdgeEvent.HTTPAddr != ":8090" {
		t.Errorf("EdgeEvent.HTTPAddr = %q, want :8090", cfg.EdgeEvent.HTTPAddr)
	}
	if cfg.Phase.StableSeconds != 60 {
		t.Errorf("Phase.StableSeconds = %d, want 60", cfg.Phase.StableSeconds)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	// phase.publish_backend defaults to edge_event.backend
	if cfg.Phase.PublishBackend != "http" {
		t.Errorf("Phase.PublishBackend = %q, want http", cfg.Phase.PublishBackend)
	}
}

func TestLoadInvalidLogLevel(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
phasebridge:
  pipeline:
    schedule_path: "/tmp/schedule.json"
  log:
    level: "invalid"
    format: "json"
`))
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("error = %v, want 'invalid log level'", err)
	}
}

func TestLoadInvalidLogFormat(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
phasebridge:
  pipeline:
    schedule_path: "/tmp/schedule.json"
  log:
    level: "info"
    format: "invalid"
`))
	if err == nil {
		t.Fatal("expected error for invalid log format")
	}
}

func TestLoadInvalidBackend(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
phasebridge:
  pipeline:
    schedule_path: "/tmp/schedule.json"
  edge_event:
    backend: "carrier-pigeon"
  log:
    level: "info"
    format: "json"
`))
	if err == nil {
		t.Fatal("expected error for invalid edge_event.backend")
	}
	if !strings.Contains(err.Error(), "backend") {
		t.Errorf("error = %v, want mention of backend", err)
	}
}

func TestLoadInvalidStaleMode(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
phasebridge:
  pipeline:
    schedule_path: "/tmp/schedule.json"
  edge_event:
    stale_seconds: 30
    stale_mode: "nap"
  log:
    level: "info"
    format: "json"
`))
	if err == nil {
		t.Fatal("expected error for invalid edge_event.stale_mode")
	}
}

func TestLoadMissingSchedulePath(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
phasebridge:
  log:
    level: "info"
    format: "json"
`))
	if err == nil {
		t.Fatal("expected error: pipeline.schedule_path is required")
	}
	if !strings.Contains(err.Error(), "schedule_path") {
		t.Errorf("error = %v, want mention of schedule_path", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
phasebridge:
  pipeline:
    schedule_path: "/tmp/schedule.json"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Loop.IntervalSeconds != 5 {
		t.Errorf("Loop.IntervalSeconds = %d, want 5", cfg.Loop.IntervalSeconds)
	}
	if cfg.Phase.StableSeconds != 180 {
		t.Errorf("Phase.StableSeconds = %d, want 180", cfg.Phase.StableSeconds)
	}
	if cfg.EdgeEvent.Backend != "http" {
		t.Errorf("EdgeEvent.Backend = %q, want http", cfg.EdgeEvent.Backend)
	}
	if cfg.EdgeEvent.StaleMode != "freeze" {
		t.Errorf("EdgeEvent.StaleMode = %q, want freeze", cfg.EdgeEvent.StaleMode)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want text", cfg.Log.Format)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT.QoS = %d, want 1", cfg.MQTT.QoS)
	}
	if !cfg.Pipeline.FormatTaskEnabled {
		t.Error("Pipeline.FormatTaskEnabled = false, want true")
	}
	if cfg.ServiceName != "phasebridge" {
		t.Errorf("ServiceName = %q, want phasebridge", cfg.ServiceName)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PHASEBRIDGE_LOG_LEVEL", "debug")

	cfg, err := Load(writeTmpConfig(t, `
phasebridge:
  pipeline:
    schedule_path: "/tmp/schedule.json"
  log:
    level: "info"
    format: "json"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug (from env)", cfg.Log.Level)
	}
}

func TestLoadBareEnvVarOverride(t *testing.T) {
	t.Setenv("LOOP_INTERVAL_SECONDS", "30")

	cfg, err := Load(writeTmpConfig(t, `
phasebridge:
  pipeline:
    schedule_path: "/tmp/schedule.json"
  log:
    level: "info"
    format: "json"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Loop.IntervalSeconds != 30 {
		t.Errorf("Loop.IntervalSeconds = %d, want 30 (from LOOP_INTERVAL_SECONDS)", cfg.Loop.IntervalSeconds)
	}
}

func TestPublishBackendDefaultsToEdgeEventBackend(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
phasebridge:
  pipeline:
    schedule_path: "/tmp/schedule.json"
  edge_event:
    backend: "mqtt"
  log:
    level: "info"
    format: "json"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Phase.PublishBackend != "mqtt" {
		t.Errorf("Phase.PublishBackend = %q, want mqtt", cfg.Phase.PublishBackend)
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &GlobalConfig{Phase: PhaseConfig{Timezone: "Not/AZone"}}
	if cfg.Location() != nil && cfg.Location().String() != "UTC" {
		t.Errorf("Location() = %v, want UTC fallback", cfg.Location())
	}
}
