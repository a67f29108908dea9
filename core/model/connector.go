package model

import "fmt"

// GridConnector is a shared power-limited feed that one or more charging
// points draw from. External loads (building load, local generation) share
// the same limit; generation enters as a negative load.
type GridConnector struct {
	ID            string
	MaxPowerKW    float64
	CurMaxPowerKW float64 // may be lowered by grid signals, reset to MaxPowerKW otherwise

	loads map[string]float64 // named external loads, persists until updated

	PricePerKWh float64 // current energy price
	PriceKnown  bool

	TargetKW    float64 // current schedule target for schedule-following runs
	TargetKnown bool
}

// NewGridConnector creates a connector with its nominal power limit.
func NewGridConnector(id string, maxPowerKW float64) *GridConnector {
	return &GridConnector{
		ID:            id,
		MaxPowerKW:    maxPowerKW,
		CurMaxPowerKW: maxPowerKW,
		loads:         make(map[string]float64),
	}
}

// Validate checks the connector invariants at construction time.
func (g *GridConnector) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("grid connector without id: %w", ErrInvalidScenario)
	}
	if g.MaxPowerKW < 0 {
		return fmt.Errorf("grid connector %s: max power %.3f negative: %w", g.ID, g.MaxPowerKW, ErrInvalidScenario)
	}
	return nil
}

// SetLoad records the named external load in kW. The value persists across
// timesteps until the next update for the same name.
func (g *GridConnector) SetLoad(name string, kw float64) {
	if g.loads == nil {
		g.loads = make(map[string]float64)
	}
	g.loads[name] = kw
}

// ExternalLoad returns the sum of all named external loads. Local
// generation stored as negative loads reduces the total.
func (g *GridConnector) ExternalLoad() float64 {
	sum := 0.0
	for _, v := range g.loads {
		sum += v
	}
	return sum
}

// Headroom returns the power remaining for vehicle charging after external
// load. The result may be negative when external load alone exceeds the
// current limit.
func (g *GridConnector) Headroom() float64 {
	return g.CurMaxPowerKW - g.ExternalLoad()
}

// SetMaxPowerOverride lowers the current limit per grid signal. Overrides
// above the nominal limit clamp to it.
func (g *GridConnector) SetMaxPowerOverride(kw float64) {
	if kw > g.MaxPowerKW {
		kw = g.MaxPowerKW
	}
	g.CurMaxPowerKW = kw
}

// ResetMaxPower restores the nominal limit.
func (g *GridConnector) ResetMaxPower() {
	g.CurMaxPowerKW = g.MaxPowerKW
}
