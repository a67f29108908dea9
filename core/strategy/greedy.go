package strategy

import "github.com/evgrid/fleetsim/core/constraint"

// Greedy charges every connected vehicle at its maximum feasible power
// until it reaches its departure target. When connector headroom is scarce,
// earlier arrivals are served first, ties broken by ascending vehicle ID.
// No lookahead.
type Greedy struct{}

// NewGreedy returns the immediate-charging strategy.
func NewGreedy() *Greedy { return &Greedy{} }

func (*Greedy) Name() string { return "greedy" }

func (*Greedy) Decide(ctx *Context) Decision {
	d := Decision{
		Requests: make(map[string]float64),
		Weights:  make(map[string]float64),
		Policy:   constraint.PolicyPriority,
	}
	for _, id := range ctx.World.VehicleIDs() {
		v := ctx.World.Vehicles[id]
		if !chargeable(v) {
			continue
		}
		d.Requests[id] = vehicleCap(ctx.World, v)
		// earlier arrival wins; same-step arrivals tie on vehicle ID
		d.Weights[id] = float64(ctx.Horizon - v.ArrivalStep)
	}
	return d
}
