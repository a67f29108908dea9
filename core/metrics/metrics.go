// Package metrics defines the sink interface simulation runs report into.
// Implementations (Prometheus, InfluxDB, multi, nop) live in infra/metrics.
package metrics

import "time"

// StepRecord summarizes one simulation timestep.
type StepRecord struct {
	RunID            string
	Strategy         string
	Step             int
	Time             time.Time
	ConnectorPowerKW map[string]float64 // vehicle charging power per connector
	ExternalLoadKW   map[string]float64
	CostToDate       float64
}

// WarningRecord is one non-fatal anomaly surfaced during a run.
type WarningRecord struct {
	RunID       string
	Step        int
	Kind        string
	ConnectorID string
	VehicleID   string
}

// RunRecord summarizes a completed run.
type RunRecord struct {
	RunID          string
	Strategy       string
	Steps          int
	Duration       time.Duration
	TotalCost      float64
	TotalEnergyKWh float64
	PeakPowerKW    float64
	UnmetVehicles  int
}

// Sink receives simulation telemetry. Implementations must be safe for use
// from a single run goroutine; runs do not share sinks concurrently.
type Sink interface {
	RecordStep(StepRecord) error
	RecordWarning(WarningRecord) error
	RecordRun(RunRecord) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordStep(StepRecord) error       { return nil }
func (NopSink) RecordWarning(WarningRecord) error { return nil }
func (NopSink) RecordRun(RunRecord) error         { return nil }

// Config selects and configures the metric sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}
