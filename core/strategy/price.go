package strategy

import (
	"sort"

	"github.com/evgrid/fleetsim/core/constraint"
)

// PriceDriven charges each vehicle during the cheapest timesteps of its
// connected window, using the fully materialized price series as perfect
// foresight. The per-vehicle plan is recomputed every step from current
// state, so earlier shortfalls shift demand into the remaining window.
// Equal prices favor earlier timesteps.
type PriceDriven struct{}

// NewPriceDriven returns the cost-minimizing strategy.
func NewPriceDriven() *PriceDriven { return &PriceDriven{} }

func (*PriceDriven) Name() string { return "price" }

func (*PriceDriven) Decide(ctx *Context) Decision {
	d := Decision{
		Requests: make(map[string]float64),
		Policy:   constraint.PolicyEqualShare,
	}
	hours := ctx.Interval.Hours()
	for _, id := range ctx.World.VehicleIDs() {
		v := ctx.World.Vehicles[id]
		if !chargeable(v) {
			continue
		}
		point := ctx.World.Points[v.PointID]
		maxKW := v.Curve.MaxPower()
		if point.MaxPowerKW < maxKW {
			maxKW = point.MaxPowerKW
		}
		if maxKW <= 0 {
			continue
		}

		// candidate steps: the remainder of the vehicle's connected window
		first := ctx.Step
		last := v.DepartureStep
		if last > ctx.Horizon {
			last = ctx.Horizon
		}
		if first >= last {
			continue
		}
		steps := make([]int, 0, last-first)
		for s := first; s < last; s++ {
			steps = append(steps, s)
		}
		sort.SliceStable(steps, func(i, j int) bool {
			pi := ctx.PriceAt(point.ConnectorID, steps[i])
			pj := ctx.PriceAt(point.ConnectorID, steps[j])
			if pi != pj {
				return pi < pj
			}
			return steps[i] < steps[j]
		})

		// fill cheapest steps until the departure target is covered
		need := gridEnergyNeeded(v) // kWh on the grid side
		var nowKW float64
		for _, s := range steps {
			if need <= socEps {
				break
			}
			e := maxKW * hours
			if e > need {
				e = need
			}
			need -= e
			if s == ctx.Step {
				nowKW = e / hours
			}
		}
		if nowKW > 0 {
			d.Requests[id] = nowKW
		}
	}
	return d
}
