package strategy

import (
	"github.com/evgrid/fleetsim/core/constraint"
	"github.com/evgrid/fleetsim/core/model"
)

// Balanced spreads each connector's available headroom evenly across all
// connected vehicles that still need charge, recomputed every step as
// vehicles arrive, depart and fill up. With CapacityWeighted set, shares
// are proportional to battery capacity instead of even.
type Balanced struct {
	CapacityWeighted bool
}

// NewBalanced returns the equal-share strategy.
func NewBalanced() *Balanced { return &Balanced{} }

func (*Balanced) Name() string { return "balanced" }

func (b *Balanced) Decide(ctx *Context) Decision {
	d := Decision{
		Requests: make(map[string]float64),
		Policy:   constraint.PolicyEqualShare,
	}
	for _, gcID := range ctx.World.ConnectorIDs() {
		if b.CapacityWeighted {
			headroom := ctx.World.Connectors[gcID].Headroom()
			capacityShares(ctx, headroom, ctx.World.ConnectedVehicles(gcID), d.Requests)
			continue
		}
		equalShareRequests(ctx, gcID, d.Requests)
	}
	return d
}

// equalShareRequests fills out with the per-vehicle maxima for one
// connector; the resolver's equal-share split turns those into even
// portions of the headroom.
func equalShareRequests(ctx *Context, gcID string, out map[string]float64) {
	for _, v := range ctx.World.ConnectedVehicles(gcID) {
		if !chargeable(v) {
			continue
		}
		out[v.ID] = vehicleCap(ctx.World, v)
	}
}

// capacityShares assigns the connector headroom proportionally to battery
// capacity, re-spreading what capped vehicles cannot absorb.
func capacityShares(ctx *Context, headroom float64, vehicles []*model.Vehicle, out map[string]float64) {
	if headroom <= 0 {
		return
	}
	type slot struct {
		v    *model.Vehicle
		cap  float64
		need float64
	}
	var open []slot
	var weightSum float64
	for _, v := range vehicles {
		if !chargeable(v) {
			continue
		}
		c := vehicleCap(ctx.World, v)
		if c <= 0 {
			continue
		}
		open = append(open, slot{v: v, cap: c})
		weightSum += v.BatteryKWh
	}
	remaining := headroom
	for remaining > socEps && len(open) > 0 && weightSum > 0 {
		consumed := 0.0
		next := open[:0]
		for _, s := range open {
			share := remaining * (s.v.BatteryKWh / weightSum)
			if share >= s.cap {
				out[s.v.ID] += s.cap
				consumed += s.cap
				remaining -= s.cap
				weightSum -= s.v.BatteryKWh
			} else {
				out[s.v.ID] += share
				s.cap -= share
				consumed += share
				remaining -= share
				next = append(next, s)
			}
		}
		open = next
		if consumed <= socEps {
			break
		}
	}
}
