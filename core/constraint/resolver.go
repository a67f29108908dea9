// Package constraint computes the per-charging-point power envelope allowed
// under a grid connector's limit. Strategies choose between an equal-share
// and a priority-weighted distribution of scarce headroom.
package constraint

import (
	"math"
	"sort"
)

// Policy selects how scarce headroom is split across charging points.
type Policy int

const (
	// PolicyEqualShare divides headroom evenly, capped by each request.
	PolicyEqualShare Policy = iota
	// PolicyPriority serves requests in strict descending-weight order,
	// ties broken by ascending vehicle ID; a higher-weight request is
	// fully served before a lower one sees any power.
	PolicyPriority
)

// Request is one charging point's unconstrained demand for the timestep.
type Request struct {
	PointID   string
	VehicleID string
	MaxKW     float64 // most the point/vehicle pair could draw this step
	Weight    float64 // priority weight, only used with PolicyPriority
}

// Envelope is the resolver's verdict for one connector and timestep.
type Envelope struct {
	// PerPoint maps charging point ID to its maximum permitted power.
	PerPoint map[string]float64
	// OverCommitted is set when external load alone already exceeds the
	// connector limit; all per-point values are zero in that case.
	OverCommitted bool
}

// Resolve computes the feasible per-point envelope for the given headroom.
// Headroom below zero forces all points to zero and flags over-commitment.
// When the sum of requests fits, every point receives its own maximum.
func Resolve(headroomKW float64, reqs []Request, policy Policy) Envelope {
	env := Envelope{PerPoint: make(map[string]float64, len(reqs))}
	for _, r := range reqs {
		env.PerPoint[r.PointID] = 0
	}
	if headroomKW < 0 {
		env.OverCommitted = true
		return env
	}

	total := 0.0
	for _, r := range reqs {
		total += math.Max(r.MaxKW, 0)
	}
	if total <= headroomKW {
		for _, r := range reqs {
			env.PerPoint[r.PointID] = math.Max(r.MaxKW, 0)
		}
		return env
	}

	switch policy {
	case PolicyPriority:
		distributeWeighted(headroomKW, reqs, env.PerPoint)
	default:
		distributeEqual(headroomKW, reqs, env.PerPoint)
	}
	return env
}

// distributeEqual splits headroom evenly among unsatisfied requests,
// rerunning the split until nothing is left or everyone is capped.
func distributeEqual(headroom float64, reqs []Request, out map[string]float64) {
	type slot struct {
		id  string
		cap float64
	}
	open := make([]slot, 0, len(reqs))
	for _, r := range reqs {
		if r.MaxKW > 0 {
			open = append(open, slot{id: r.PointID, cap: r.MaxKW})
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].id < open[j].id })

	remaining := headroom
	for remaining > eps && len(open) > 0 {
		share := remaining / float64(len(open))
		next := open[:0]
		for _, s := range open {
			give := share
			if give >= s.cap {
				give = s.cap
			} else {
				s.cap -= give
				next = append(next, s)
			}
			out[s.id] += give
			remaining -= give
		}
		if len(next) == len(open) && share <= eps {
			break
		}
		open = next
	}
}

// distributeWeighted serves requests in strict priority order: descending
// weight, ties broken by ascending vehicle ID. Each request takes as much
// of the remaining headroom as it can, so a high-priority request is fully
// served before a lower one sees any power.
func distributeWeighted(headroom float64, reqs []Request, out map[string]float64) {
	type slot struct {
		id     string
		veh    string
		cap    float64
		weight float64
	}
	open := make([]slot, 0, len(reqs))
	var weightSum float64
	for _, r := range reqs {
		if r.MaxKW <= 0 {
			continue
		}
		w := r.Weight
		if w < 0 {
			w = 0
		}
		open = append(open, slot{id: r.PointID, veh: r.VehicleID, cap: r.MaxKW, weight: w})
		weightSum += w
	}
	if weightSum <= 0 {
		// degenerate weights: fall back to the even split
		distributeEqual(headroom, reqs, out)
		return
	}
	sort.Slice(open, func(i, j int) bool {
		if open[i].weight != open[j].weight {
			return open[i].weight > open[j].weight
		}
		return open[i].veh < open[j].veh
	})

	remaining := headroom
	for _, s := range open {
		if remaining <= eps {
			break
		}
		give := s.cap
		if give > remaining {
			give = remaining
		}
		out[s.id] += give
		remaining -= give
	}
}

const eps = 1e-9
