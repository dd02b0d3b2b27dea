// Monitoring configuration - logging, telemetry and the ops server.
//
// DESIGN: Separates logging (zerolog) from telemetry (JSONL files).
// Logging is for operators, telemetry is for analytics/debugging.
package config

import "github.com/crazylearner/chatrelay/internal/monitoring"

// MonitoringConfig contains all monitoring settings.
type MonitoringConfig struct {
	Log       monitoring.LoggerConfig    `yaml:"log"`
	Telemetry monitoring.TelemetryConfig `yaml:"telemetry"`
	Alerts    monitoring.AlertConfig     `yaml:"alerts"`
}

// OpsConfig contains the operations HTTP server settings.
type OpsConfig struct {
	Enabled bool   `yaml:"enabled"` // Serve /healthz, /metrics and memory admin
	Addr    string `yaml:"addr"`    // Listen address, e.g. 127.0.0.1:9090
}
