// Package events defines the timestamped instructions that mutate the world
// between timesteps: vehicle arrivals and departures, external load and
// local generation updates, price, schedule and grid-limit signals. Events
// are applied exactly once, in non-decreasing step order, before the
// strategy runs for a timestep.
package events

import (
	"fmt"
	"sort"

	"github.com/evgrid/fleetsim/core/model"
)

// Event mutates the world at a specific timestep.
type Event interface {
	// Step is the timestep the event takes effect at.
	Step() int
	// Apply mutates the world. Non-fatal oddities are returned as notes;
	// an error means the scenario references something that does not exist.
	Apply(w *model.World) ([]string, error)
}

// Arrival plugs a vehicle into a charging point. SoCDelta is the (negative)
// SoC consumed while driving since the last departure; DesiredSoC, when
// set, replaces the vehicle's departure target. DepartureStep, when
// positive, announces the next departure.
type Arrival struct {
	AtStep        int
	VehicleID     string
	PointID       string
	SoCDelta      float64
	DesiredSoC    *float64
	DepartureStep int
}

func (e Arrival) Step() int { return e.AtStep }

func (e Arrival) Apply(w *model.World) ([]string, error) {
	v, ok := w.Vehicles[e.VehicleID]
	if !ok {
		return nil, fmt.Errorf("arrival: unknown vehicle %s: %w", e.VehicleID, model.ErrInvalidScenario)
	}
	var notes []string
	v.SoC += e.SoCDelta
	if v.SoC < 0 {
		notes = append(notes, fmt.Sprintf("vehicle %s arrived with depleted battery, soc clamped to 0", e.VehicleID))
		v.SoC = 0
	}
	if v.SoC > 1 {
		v.SoC = 1
	}
	if e.DesiredSoC != nil {
		v.DesiredSoC = *e.DesiredSoC
	}
	if e.DepartureStep > 0 {
		v.DepartureStep = e.DepartureStep
	}
	v.ArrivalStep = e.AtStep
	if err := w.Attach(e.VehicleID, e.PointID); err != nil {
		return notes, err
	}
	return notes, nil
}

// Departure unplugs a vehicle. The loop inspects the vehicle's SoC against
// its target before applying the event to record unmet demand.
type Departure struct {
	AtStep    int
	VehicleID string
}

func (e Departure) Step() int { return e.AtStep }

func (e Departure) Apply(w *model.World) ([]string, error) {
	if _, ok := w.Vehicles[e.VehicleID]; !ok {
		return nil, fmt.Errorf("departure: unknown vehicle %s: %w", e.VehicleID, model.ErrInvalidScenario)
	}
	w.Detach(e.VehicleID)
	return nil, nil
}

// ExternalLoad sets a named fixed load on a connector. The value persists
// until updated again.
type ExternalLoad struct {
	AtStep      int
	ConnectorID string
	Name        string
	ValueKW     float64
}

func (e ExternalLoad) Step() int { return e.AtStep }

func (e ExternalLoad) Apply(w *model.World) ([]string, error) {
	gc, ok := w.Connectors[e.ConnectorID]
	if !ok {
		return nil, fmt.Errorf("external load: unknown connector %s: %w", e.ConnectorID, model.ErrInvalidScenario)
	}
	gc.SetLoad(e.Name, e.ValueKW)
	return nil, nil
}

// LocalGeneration sets named local generation on a connector, entering the
// load sum negatively and freeing headroom.
type LocalGeneration struct {
	AtStep      int
	ConnectorID string
	Name        string
	ValueKW     float64
}

func (e LocalGeneration) Step() int { return e.AtStep }

func (e LocalGeneration) Apply(w *model.World) ([]string, error) {
	gc, ok := w.Connectors[e.ConnectorID]
	if !ok {
		return nil, fmt.Errorf("local generation: unknown connector %s: %w", e.ConnectorID, model.ErrInvalidScenario)
	}
	gc.SetLoad(e.Name, -e.ValueKW)
	return nil, nil
}

// PriceUpdate sets the connector's current energy price.
type PriceUpdate struct {
	AtStep      int
	ConnectorID string
	PricePerKWh float64
}

func (e PriceUpdate) Step() int { return e.AtStep }

func (e PriceUpdate) Apply(w *model.World) ([]string, error) {
	gc, ok := w.Connectors[e.ConnectorID]
	if !ok {
		return nil, fmt.Errorf("price update: unknown connector %s: %w", e.ConnectorID, model.ErrInvalidScenario)
	}
	gc.PricePerKWh = e.PricePerKWh
	gc.PriceKnown = true
	return nil, nil
}

// MaxPowerUpdate lowers a connector's current limit per grid signal, or
// restores the nominal limit when Reset is set.
type MaxPowerUpdate struct {
	AtStep      int
	ConnectorID string
	MaxPowerKW  float64
	Reset       bool
}

func (e MaxPowerUpdate) Step() int { return e.AtStep }

func (e MaxPowerUpdate) Apply(w *model.World) ([]string, error) {
	gc, ok := w.Connectors[e.ConnectorID]
	if !ok {
		return nil, fmt.Errorf("max power update: unknown connector %s: %w", e.ConnectorID, model.ErrInvalidScenario)
	}
	if e.Reset {
		gc.ResetMaxPower()
	} else {
		gc.SetMaxPowerOverride(e.MaxPowerKW)
	}
	return nil, nil
}

// ScheduleUpdate sets the connector's current schedule target.
type ScheduleUpdate struct {
	AtStep      int
	ConnectorID string
	TargetKW    float64
}

func (e ScheduleUpdate) Step() int { return e.AtStep }

func (e ScheduleUpdate) Apply(w *model.World) ([]string, error) {
	gc, ok := w.Connectors[e.ConnectorID]
	if !ok {
		return nil, fmt.Errorf("schedule update: unknown connector %s: %w", e.ConnectorID, model.ErrInvalidScenario)
	}
	gc.TargetKW = e.TargetKW
	gc.TargetKnown = true
	return nil, nil
}

// Ordered reports whether the events are in non-decreasing step order.
func Ordered(evs []Event) bool {
	for i := 1; i < len(evs); i++ {
		if evs[i].Step() < evs[i-1].Step() {
			return false
		}
	}
	return true
}

// SortStable orders events by step, preserving the relative order of events
// sharing a step.
func SortStable(evs []Event) {
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].Step() < evs[j].Step() })
}
