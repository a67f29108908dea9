// Package strategy contains the pluggable charging policies. A strategy
// observes the world after events have been applied for the timestep and
// returns the power it wants each vehicle to draw; the simulation loop
// realizes those intentions through the constraint resolver and the
// charging physics. Strategies never mutate entities.
package strategy

import (
	"time"

	"github.com/evgrid/fleetsim/core/constraint"
	"github.com/evgrid/fleetsim/core/model"
	"github.com/evgrid/fleetsim/core/timeseries"
)

// Context is the read-only view a strategy decides on.
type Context struct {
	Step     int
	Horizon  int // total number of timesteps
	Now      time.Time
	Interval time.Duration
	World    *model.World

	// Perfect-foresight inputs, keyed by connector ID. Fully materialized
	// at load time; strategies may consult any step.
	Prices    map[string]*timeseries.Series
	Schedules map[string]*timeseries.Series
}

// PriceAt returns the price effective for the connector at the step,
// falling back to the most recent known value. Without a materialized
// series the last price event applied to the connector wins.
func (c *Context) PriceAt(connectorID string, step int) float64 {
	if s, ok := c.Prices[connectorID]; ok && s.Len() > 0 {
		v, _ := s.ValueAt(step)
		return v
	}
	if gc, ok := c.World.Connectors[connectorID]; ok && gc.PriceKnown {
		return gc.PricePerKWh
	}
	return 0
}

// Decision is a strategy's proposal for one timestep.
type Decision struct {
	// Requests maps vehicle ID to the power the strategy wants it to draw.
	Requests map[string]float64
	// Weights carries per-vehicle priority weights, consulted only with
	// PolicyPriority.
	Weights map[string]float64
	// Policy selects how the resolver splits scarce connector headroom.
	Policy constraint.Policy
}

// Strategy decides target powers once per timestep.
type Strategy interface {
	Name() string
	Decide(ctx *Context) Decision
}

// chargeable reports whether the vehicle should be considered for charging:
// connected and still below its departure target.
func chargeable(v *model.Vehicle) bool {
	return v.Connected() && v.DeltaSoC() > socEps
}

// vehicleCap returns the most the vehicle can draw this step given its
// curve and its charging point's limit.
func vehicleCap(w *model.World, v *model.Vehicle) float64 {
	p, ok := w.Points[v.PointID]
	if !ok {
		return 0
	}
	return v.MaxChargePower(p.MaxPowerKW)
}

// gridEnergyNeeded returns the grid-side energy in kWh required to lift the
// vehicle to its departure target, accounting for efficiency losses.
func gridEnergyNeeded(v *model.Vehicle) float64 {
	eff := v.Efficiency
	if eff <= 0 || eff > 1 {
		eff = model.DefaultEfficiency
	}
	return v.EnergyNeeded() / eff
}

const socEps = 1e-9
