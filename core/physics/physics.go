// Package physics converts requested charging powers into achieved powers
// and SoC deltas, respecting the charging curve, efficiency losses and
// battery headroom. All functions are pure; committing results back into
// the world is the simulation loop's job.
package physics

import (
	"fmt"
	"time"

	"github.com/evgrid/fleetsim/core/model"
)

// ArgumentError marks a contract violation by the caller (negative power,
// non-positive duration). It indicates a bug in a strategy or in the loop,
// not a data problem, and is therefore fatal.
type ArgumentError struct {
	msg string
}

func (e *ArgumentError) Error() string { return "physics: " + e.msg }

// ChargeResult describes the outcome of charging one vehicle for one step.
type ChargeResult struct {
	AchievedKW float64 // power actually drawn from the grid
	NewSoC     float64 // SoC after committing the step
	EnergyKWh  float64 // grid energy drawn over the step
}

// ApplyCharge computes the power a vehicle actually draws when asked for
// requestedKW over dt. The achieved power is the minimum of the request,
// the charging-curve limit at the current SoC, and the power implied by the
// remaining headroom to SoC 1 over dt. A full battery is a no-op.
func ApplyCharge(v model.Vehicle, requestedKW float64, dt time.Duration) (ChargeResult, error) {
	if requestedKW < 0 {
		return ChargeResult{}, &ArgumentError{msg: fmt.Sprintf("requested power %.3f kW negative", requestedKW)}
	}
	if dt <= 0 {
		return ChargeResult{}, &ArgumentError{msg: fmt.Sprintf("duration %v not positive", dt)}
	}

	if v.SoC >= 1 {
		return ChargeResult{AchievedKW: 0, NewSoC: 1}, nil
	}

	hours := dt.Hours()
	power := requestedKW
	if curveMax := v.Curve.PowerAt(v.SoC); power > curveMax {
		power = curveMax
	}
	// headroom to a full battery, expressed as grid power over dt
	eff := v.Efficiency
	if eff <= 0 || eff > 1 {
		eff = model.DefaultEfficiency
	}
	headroomKW := (1 - v.SoC) * v.BatteryKWh / (hours * eff)
	if power > headroomKW {
		power = headroomKW
	}
	if power < 0 {
		power = 0
	}

	energy := power * hours
	soc := v.SoC + energy*eff/v.BatteryKWh
	if soc > 1 {
		soc = 1
	}
	if soc < 0 {
		soc = 0
	}
	return ChargeResult{AchievedKW: power, NewSoC: soc, EnergyKWh: energy}, nil
}
