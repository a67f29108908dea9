package strategy

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/evgrid/fleetsim/core/constraint"
	"github.com/evgrid/fleetsim/core/model"
)

// PeakShaving plans each connector's charging as a linear program that
// minimizes the peak aggregate draw over the remaining horizon while still
// meeting every vehicle's departure target. The plan is re-solved each step
// from current state; when a connector's LP is infeasible or the solver
// fails, that connector alone falls back to the balanced split.
type PeakShaving struct{}

// NewPeakShaving returns the LP-based peak-minimizing strategy.
func NewPeakShaving() *PeakShaving { return &PeakShaving{} }

func (*PeakShaving) Name() string { return "peakshaving" }

// ErrInfeasible indicates the LP had no solution meeting all targets.
var ErrInfeasible = errors.New("peak shaving lp infeasible")

// lpSolve points at the simplex call so tests can simulate solver failures.
var lpSolve = solveLP

func (p *PeakShaving) Decide(ctx *Context) Decision {
	d := Decision{
		Requests: make(map[string]float64),
		Policy:   constraint.PolicyEqualShare,
	}
	for _, gcID := range ctx.World.ConnectorIDs() {
		req, err := p.planConnector(ctx, gcID)
		if err != nil {
			// degrade only this connector to the balanced split
			req = make(map[string]float64)
			equalShareRequests(ctx, gcID, req)
		}
		for id, kw := range req {
			d.Requests[id] = kw
		}
	}
	return d
}

type peakVar struct {
	vehicleID string
	step      int
}

// planConnector solves min M s.t. per-step aggregate <= M, M <= the
// connector's current headroom, 0 <= per-vehicle per-step power <= cap,
// and per-vehicle energy over its window equals the energy still needed
// for its target (reduced to the feasible maximum when the window is too
// short). Headroom is taken at the current step and assumed to persist;
// the resolver guards each realized step against the actual envelope.
func (p *PeakShaving) planConnector(ctx *Context, gcID string) (map[string]float64, error) {
	hours := ctx.Interval.Hours()
	headroom := ctx.World.Connectors[gcID].Headroom()

	type cand struct {
		v     *model.Vehicle
		capKW float64
		steps []int
		need  float64 // grid kWh
	}
	var cands []cand
	stepSet := map[int]struct{}{}
	for _, v := range ctx.World.ConnectedVehicles(gcID) {
		if !chargeable(v) {
			continue
		}
		capKW := vehicleCap(ctx.World, v)
		if capKW <= 0 {
			continue
		}
		last := v.DepartureStep
		if last > ctx.Horizon {
			last = ctx.Horizon
		}
		if ctx.Step >= last {
			continue
		}
		var steps []int
		for s := ctx.Step; s < last; s++ {
			steps = append(steps, s)
			stepSet[s] = struct{}{}
		}
		need := gridEnergyNeeded(v)
		if max := capKW * hours * float64(len(steps)); need > max {
			// window too short for the target: charge maximally feasible
			need = max
		}
		cands = append(cands, cand{v: v, capKW: capKW, steps: steps, need: need})
	}
	if len(cands) == 0 {
		return nil, nil
	}

	// variable layout: one power per (vehicle, step), peak M last
	var vars []peakVar
	varIdx := map[peakVar]int{}
	for _, c := range cands {
		for _, s := range c.steps {
			v := peakVar{vehicleID: c.v.ID, step: s}
			varIdx[v] = len(vars)
			vars = append(vars, v)
		}
	}
	n := len(vars) + 1
	mIdx := n - 1

	c := make([]float64, n)
	c[mIdx] = 1

	// inequalities: caps and nonnegativity per variable, peak coupling
	// per step, and the headroom cap on the peak itself
	nIneq := 2*len(vars) + len(stepSet) + 1
	g := mat.NewDense(nIneq, n, nil)
	h := make([]float64, nIneq)
	row := 0
	for _, cd := range cands {
		for _, s := range cd.steps {
			g.Set(row, varIdx[peakVar{cd.v.ID, s}], 1)
			h[row] = cd.capKW
			row++
		}
	}
	for i := range vars {
		g.Set(row, i, -1)
		h[row] = 0
		row++
	}
	for _, s := range orderedSteps(stepSet) {
		for _, cd := range cands {
			if idx, ok := varIdx[peakVar{cd.v.ID, s}]; ok {
				g.Set(row, idx, 1)
			}
		}
		g.Set(row, mIdx, -1)
		h[row] = 0
		row++
	}
	g.Set(row, mIdx, 1)
	h[row] = headroom

	// equalities: energy target per vehicle
	a := mat.NewDense(len(cands), n, nil)
	b := make([]float64, len(cands))
	for i, cd := range cands {
		for _, s := range cd.steps {
			a.Set(i, varIdx[peakVar{cd.v.ID, s}], hours)
		}
		b[i] = cd.need
	}

	sol, err := lpSolve(c, g, h, a, b)
	if err != nil {
		return nil, err
	}
	for i, cd := range cands {
		var got float64
		for _, s := range cd.steps {
			got += sol[varIdx[peakVar{cd.v.ID, s}]] * hours
		}
		if got < b[i]-1e-3 {
			return nil, ErrInfeasible
		}
	}

	out := make(map[string]float64, len(cands))
	for _, cd := range cands {
		if idx, ok := varIdx[peakVar{cd.v.ID, ctx.Step}]; ok {
			kw := sol[idx]
			if kw < 0 {
				kw = 0
			}
			if kw > cd.capKW {
				kw = cd.capKW
			}
			if kw > 0 {
				out[cd.v.ID] = kw
			}
		}
	}
	return out, nil
}

func solveLP(c []float64, g *mat.Dense, h []float64, a *mat.Dense, b []float64) ([]float64, error) {
	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	_, sol, err := lp.Simplex(cStd, aStd, bStd, 1e-7, nil)
	if err != nil {
		return nil, err
	}
	// Convert appends slack variables; the originals come first
	return sol[:len(c)], nil
}

func orderedSteps(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}
