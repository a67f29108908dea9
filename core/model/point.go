package model

import "fmt"

// ChargingPoint is a single plug drawing power from a grid connector. At
// most one vehicle is connected at a time.
type ChargingPoint struct {
	ID          string
	MaxPowerKW  float64
	ConnectorID string
	VehicleID   string // connected vehicle, empty when free
}

// Validate checks the charging point invariants at construction time.
func (p ChargingPoint) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("charging point without id: %w", ErrInvalidScenario)
	}
	if p.MaxPowerKW < 0 {
		return fmt.Errorf("charging point %s: max power %.3f negative: %w", p.ID, p.MaxPowerKW, ErrInvalidScenario)
	}
	if p.ConnectorID == "" {
		return fmt.Errorf("charging point %s: missing grid connector reference: %w", p.ID, ErrInvalidScenario)
	}
	return nil
}

// Occupied reports whether a vehicle is connected.
func (p ChargingPoint) Occupied() bool { return p.VehicleID != "" }
