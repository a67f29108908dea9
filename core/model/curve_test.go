package model

import (
	"math"
	"testing"
)

func TestChargingCurveInterpolation(t *testing.T) {
	c, err := NewChargingCurve([]CurvePoint{
		{SoC: 0, PowerKW: 50},
		{SoC: 0.8, PowerKW: 50},
		{SoC: 1, PowerKW: 10},
	})
	if err != nil {
		t.Fatalf("curve: %v", err)
	}
	cases := []struct {
		soc  float64
		want float64
	}{
		{-0.1, 50}, // clamps below
		{0, 50},
		{0.4, 50},
		{0.8, 50},
		{0.9, 30}, // halfway down the last segment
		{1, 10},
		{1.2, 10}, // clamps above
	}
	for _, tc := range cases {
		if got := c.PowerAt(tc.soc); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("PowerAt(%.2f) = %.3f, want %.3f", tc.soc, got, tc.want)
		}
	}
	if c.MaxPower() != 50 {
		t.Errorf("MaxPower = %.2f, want 50", c.MaxPower())
	}
}

func TestChargingCurveClamped(t *testing.T) {
	c := FlatCurve(22)
	capped := c.Clamped(11)
	if got := capped.PowerAt(0.5); got != 11 {
		t.Fatalf("clamped power = %.2f, want 11", got)
	}
	// original curve untouched
	if got := c.PowerAt(0.5); got != 22 {
		t.Fatalf("original power = %.2f, want 22", got)
	}
}

func TestChargingCurveValidation(t *testing.T) {
	if _, err := NewChargingCurve(nil); err == nil {
		t.Error("expected error for empty curve")
	}
	if _, err := NewChargingCurve([]CurvePoint{{SoC: -0.1, PowerKW: 5}}); err == nil {
		t.Error("expected error for soc below 0")
	}
	if _, err := NewChargingCurve([]CurvePoint{{SoC: 0.5, PowerKW: -5}}); err == nil {
		t.Error("expected error for negative power")
	}
	if _, err := NewChargingCurve([]CurvePoint{{SoC: 0.5, PowerKW: 5}, {SoC: 0.5, PowerKW: 6}}); err == nil {
		t.Error("expected error for duplicate soc")
	}
}
