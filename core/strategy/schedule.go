package strategy

import (
	"github.com/evgrid/fleetsim/core/constraint"
	"github.com/evgrid/fleetsim/core/model"
)

// ScheduleFollowing draws the power a pre-computed external schedule
// prescribes per connector and timestep, spreading the target across the
// connected vehicles. Requests exceeding the feasible envelope are clipped
// by the resolver; the shortfall is redistributed with the balanced policy.
type ScheduleFollowing struct{}

// NewScheduleFollowing returns the schedule-following strategy.
func NewScheduleFollowing() *ScheduleFollowing { return &ScheduleFollowing{} }

func (*ScheduleFollowing) Name() string { return "schedule" }

func (*ScheduleFollowing) Decide(ctx *Context) Decision {
	d := Decision{
		Requests: make(map[string]float64),
		Policy:   constraint.PolicyEqualShare,
	}
	for _, gcID := range ctx.World.ConnectorIDs() {
		gc := ctx.World.Connectors[gcID]
		target := scheduleTarget(ctx, gc)
		if target <= 0 {
			continue
		}
		// spread the connector target across needy vehicles, even shares
		// with capped vehicles re-spread onto the rest
		var open []*model.Vehicle
		for _, v := range ctx.World.ConnectedVehicles(gcID) {
			if chargeable(v) && vehicleCap(ctx.World, v) > 0 {
				open = append(open, v)
			}
		}
		caps := make(map[string]float64, len(open))
		for _, v := range open {
			caps[v.ID] = vehicleCap(ctx.World, v)
		}
		remaining := target
		for remaining > socEps && len(open) > 0 {
			share := remaining / float64(len(open))
			next := open[:0]
			for _, v := range open {
				give := share
				if give >= caps[v.ID] {
					give = caps[v.ID]
				} else {
					next = append(next, v)
				}
				caps[v.ID] -= give
				d.Requests[v.ID] += give
				remaining -= give
			}
			if len(next) == len(open) {
				break
			}
			open = next
		}
	}
	return d
}

// scheduleTarget reads the connector's current schedule value, preferring
// the materialized series over the last grid-signal value.
func scheduleTarget(ctx *Context, gc *model.GridConnector) float64 {
	if s, ok := ctx.Schedules[gc.ID]; ok && s.Len() > 0 {
		v, _ := s.ValueAt(ctx.Step)
		return v
	}
	if gc.TargetKnown {
		return gc.TargetKW
	}
	return 0
}
