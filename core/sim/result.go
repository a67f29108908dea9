package sim

import (
	"time"
)

// WarningKind classifies the non-fatal anomalies a run can surface.
type WarningKind string

const (
	// WarnOverCommitted: external load alone exceeded a connector limit;
	// all attached points were forced to zero for the step.
	WarnOverCommitted WarningKind = "over_committed"
	// WarnUnmetDemand: a vehicle departed below its target SoC.
	WarnUnmetDemand WarningKind = "unmet_demand"
	// WarnMissingValue: a timeseries lacked a value for the step and the
	// previous value (or zero) was used instead.
	WarnMissingValue WarningKind = "missing_timeseries_value"
	// WarnEvent: an event applied with a non-fatal oddity.
	WarnEvent WarningKind = "event"
)

// Warning is one recorded anomaly, embedded in the row of the step it
// occurred at.
type Warning struct {
	Step        int         `json:"step"`
	Kind        WarningKind `json:"kind"`
	ConnectorID string      `json:"connector_id,omitempty"`
	VehicleID   string      `json:"vehicle_id,omitempty"`
	Message     string      `json:"message,omitempty"`
}

// Row is the immutable record of one timestep.
type Row struct {
	Step             int                `json:"step"`
	Time             time.Time          `json:"time"`
	ConnectorPowerKW map[string]float64 `json:"connector_power_kw"`
	ExternalLoadKW   map[string]float64 `json:"external_load_kw"`
	PricePerKWh      map[string]float64 `json:"price_per_kwh"`
	VehicleSoC       map[string]float64 `json:"vehicle_soc"`
	CostToDate       float64            `json:"cost_to_date"`
	Warnings         []Warning          `json:"warnings,omitempty"`
}

// Shortfall describes a vehicle that departed below its target.
type Shortfall struct {
	VehicleID  string  `json:"vehicle_id"`
	Step       int     `json:"step"`
	FinalSoC   float64 `json:"final_soc"`
	TargetSoC  float64 `json:"target_soc"`
	MissingKWh float64 `json:"missing_kwh"`
}

// Summary aggregates a completed run.
type Summary struct {
	Steps          int                `json:"steps"`
	PeakPowerKW    map[string]float64 `json:"peak_power_kw"`
	TotalEnergyKWh map[string]float64 `json:"total_energy_kwh"`
	TotalCost      float64            `json:"total_cost"`
	UnmetDemand    []Shortfall        `json:"unmet_demand,omitempty"`
	WarningCount   int                `json:"warning_count"`
}

// Result is the full output artifact of one run: one row per timestep in
// order, plus the summary.
type Result struct {
	RunID    string    `json:"run_id"`
	Strategy string    `json:"strategy"`
	Start    time.Time `json:"start"`
	Interval string    `json:"interval"`
	Rows     []Row     `json:"rows"`
	Summary  Summary   `json:"summary"`
}

// Horizon describes the simulated time axis.
type Horizon struct {
	Start    time.Time
	Interval time.Duration
	Steps    int
}

// TimeAt returns the wall-clock time of the given step.
func (h Horizon) TimeAt(step int) time.Time {
	return h.Start.Add(time.Duration(step) * h.Interval)
}
