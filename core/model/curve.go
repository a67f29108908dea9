package model

import (
	"fmt"
	"sort"
)

// CurvePoint is one support point of a charging curve.
type CurvePoint struct {
	SoC     float64 `json:"soc" yaml:"soc"`
	PowerKW float64 `json:"power_kw" yaml:"power_kw"`
}

// ChargingCurve maps state of charge to the maximum power the battery can
// accept. Values between support points are linearly interpolated; values
// outside the covered SoC range clamp to the nearest point.
type ChargingCurve struct {
	points []CurvePoint
}

// NewChargingCurve builds a curve from the given support points. Points are
// sorted by SoC. At least one point is required, SoC values must lie in
// [0,1] and be distinct, powers must not be negative.
func NewChargingCurve(points []CurvePoint) (ChargingCurve, error) {
	if len(points) == 0 {
		return ChargingCurve{}, fmt.Errorf("charging curve needs at least one point: %w", ErrInvalidScenario)
	}
	pts := make([]CurvePoint, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool { return pts[i].SoC < pts[j].SoC })
	for i, p := range pts {
		if p.SoC < 0 || p.SoC > 1 {
			return ChargingCurve{}, fmt.Errorf("curve point soc %.3f outside [0,1]: %w", p.SoC, ErrInvalidScenario)
		}
		if p.PowerKW < 0 {
			return ChargingCurve{}, fmt.Errorf("curve point power %.3f negative: %w", p.PowerKW, ErrInvalidScenario)
		}
		if i > 0 && p.SoC == pts[i-1].SoC {
			return ChargingCurve{}, fmt.Errorf("duplicate curve point at soc %.3f: %w", p.SoC, ErrInvalidScenario)
		}
	}
	return ChargingCurve{points: pts}, nil
}

// FlatCurve returns a curve delivering the same power at every SoC.
func FlatCurve(powerKW float64) ChargingCurve {
	c, _ := NewChargingCurve([]CurvePoint{{SoC: 0, PowerKW: powerKW}, {SoC: 1, PowerKW: powerKW}})
	return c
}

// PowerAt returns the maximum charge power at the given SoC.
func (c ChargingCurve) PowerAt(soc float64) float64 {
	if len(c.points) == 0 {
		return 0
	}
	if soc <= c.points[0].SoC {
		return c.points[0].PowerKW
	}
	last := c.points[len(c.points)-1]
	if soc >= last.SoC {
		return last.PowerKW
	}
	for i := 1; i < len(c.points); i++ {
		hi := c.points[i]
		if soc > hi.SoC {
			continue
		}
		lo := c.points[i-1]
		frac := (soc - lo.SoC) / (hi.SoC - lo.SoC)
		return lo.PowerKW + frac*(hi.PowerKW-lo.PowerKW)
	}
	return last.PowerKW
}

// MaxPower returns the highest power on the curve.
func (c ChargingCurve) MaxPower() float64 {
	max := 0.0
	for _, p := range c.points {
		if p.PowerKW > max {
			max = p.PowerKW
		}
	}
	return max
}

// Clamped returns a copy of the curve with all powers capped at maxKW.
func (c ChargingCurve) Clamped(maxKW float64) ChargingCurve {
	pts := make([]CurvePoint, len(c.points))
	for i, p := range c.points {
		if p.PowerKW > maxKW {
			p.PowerKW = maxKW
		}
		pts[i] = p
	}
	return ChargingCurve{points: pts}
}

// Points returns a copy of the support points in ascending SoC order.
func (c ChargingCurve) Points() []CurvePoint {
	pts := make([]CurvePoint, len(c.points))
	copy(pts, c.points)
	return pts
}
