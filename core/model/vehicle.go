package model

import "fmt"

// DefaultEfficiency is applied when a vehicle definition does not specify a
// charging efficiency.
const DefaultEfficiency = 0.95

// Vehicle represents an electric vehicle drawing power from a charging point.
type Vehicle struct {
	ID            string
	BatteryKWh    float64       // total battery capacity in kWh
	SoC           float64       // state of charge between 0 and 1
	DesiredSoC    float64       // minimum SoC required at departure
	Efficiency    float64       // charge efficiency in (0,1]
	Curve         ChargingCurve // SoC -> max accepted power
	ArrivalStep   int           // first timestep the vehicle is connected
	DepartureStep int           // first timestep the vehicle is gone
	PointID       string        // assigned charging point, empty while unplugged
}

// Validate checks the vehicle invariants at construction time.
func (v Vehicle) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("vehicle without id: %w", ErrInvalidScenario)
	}
	if v.BatteryKWh <= 0 {
		return fmt.Errorf("vehicle %s: battery capacity must be positive: %w", v.ID, ErrInvalidScenario)
	}
	if v.SoC < 0 || v.SoC > 1 {
		return fmt.Errorf("vehicle %s: soc %.3f outside [0,1]: %w", v.ID, v.SoC, ErrInvalidScenario)
	}
	if v.DesiredSoC < 0 || v.DesiredSoC > 1 {
		return fmt.Errorf("vehicle %s: desired soc %.3f outside [0,1]: %w", v.ID, v.DesiredSoC, ErrInvalidScenario)
	}
	if v.Efficiency <= 0 || v.Efficiency > 1 {
		return fmt.Errorf("vehicle %s: efficiency %.3f outside (0,1]: %w", v.ID, v.Efficiency, ErrInvalidScenario)
	}
	if v.ArrivalStep >= v.DepartureStep {
		return fmt.Errorf("vehicle %s: arrival step %d not before departure step %d: %w",
			v.ID, v.ArrivalStep, v.DepartureStep, ErrInvalidScenario)
	}
	return nil
}

// Connected reports whether the vehicle is plugged into a charging point.
func (v Vehicle) Connected() bool { return v.PointID != "" }

// DeltaSoC returns the SoC still missing to reach the departure target,
// never negative.
func (v Vehicle) DeltaSoC() float64 {
	d := v.DesiredSoC - v.SoC
	if d < 0 {
		return 0
	}
	return d
}

// EnergyNeeded returns the energy in kWh missing to reach the departure
// target, before efficiency losses.
func (v Vehicle) EnergyNeeded() float64 {
	return v.DeltaSoC() * v.BatteryKWh
}

// MaxChargePower returns the power the vehicle can accept right now, capped
// at the charging point limit.
func (v Vehicle) MaxChargePower(pointMaxKW float64) float64 {
	p := v.Curve.PowerAt(v.SoC)
	if p > pointMaxKW {
		return pointMaxKW
	}
	return p
}
