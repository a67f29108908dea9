package physics

import (
	"math"
	"testing"
	"time"

	"github.com/evgrid/fleetsim/core/model"
)

func vehicle(soc, capacity, curveKW, eff float64) model.Vehicle {
	return model.Vehicle{
		ID:            "v1",
		BatteryKWh:    capacity,
		SoC:           soc,
		DesiredSoC:    1,
		Efficiency:    eff,
		Curve:         model.FlatCurve(curveKW),
		ArrivalStep:   0,
		DepartureStep: 1,
	}
}

func TestApplyChargeBasic(t *testing.T) {
	// 10 kW for one hour at efficiency 1 into a 50 kWh battery: +0.2 SoC
	v := vehicle(0.2, 50, 10, 1)
	res, err := ApplyCharge(v, 10, time.Hour)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if math.Abs(res.AchievedKW-10) > 1e-9 {
		t.Errorf("achieved = %.3f, want 10", res.AchievedKW)
	}
	if math.Abs(res.NewSoC-0.4) > 1e-9 {
		t.Errorf("soc = %.4f, want 0.4", res.NewSoC)
	}
}

func TestApplyChargeCurveLimits(t *testing.T) {
	v := vehicle(0.5, 50, 7, 1)
	res, err := ApplyCharge(v, 22, time.Hour)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if math.Abs(res.AchievedKW-7) > 1e-9 {
		t.Errorf("achieved = %.3f, want curve limit 7", res.AchievedKW)
	}
}

func TestApplyChargeEfficiency(t *testing.T) {
	// 10 kW grid power at 0.9 efficiency stores 9 kWh
	v := vehicle(0, 90, 10, 0.9)
	res, err := ApplyCharge(v, 10, time.Hour)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if math.Abs(res.NewSoC-0.1) > 1e-9 {
		t.Errorf("soc = %.4f, want 0.1", res.NewSoC)
	}
	if math.Abs(res.EnergyKWh-10) > 1e-9 {
		t.Errorf("grid energy = %.3f, want 10", res.EnergyKWh)
	}
}

func TestApplyChargeHeadroomClamp(t *testing.T) {
	// only 1 kWh of storable headroom left: power throttles to fit
	v := vehicle(0.98, 50, 50, 1)
	res, err := ApplyCharge(v, 50, time.Hour)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if math.Abs(res.AchievedKW-1.0) > 1e-9 {
		t.Errorf("achieved = %.4f, want 1.0", res.AchievedKW)
	}
	if math.Abs(res.NewSoC-1) > 1e-9 {
		t.Errorf("soc = %.6f, want 1", res.NewSoC)
	}
}

func TestApplyChargeFullBatteryIdempotent(t *testing.T) {
	v := vehicle(1, 50, 11, 1)
	res, err := ApplyCharge(v, 11, time.Hour)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.AchievedKW != 0 || res.NewSoC != 1 {
		t.Errorf("full battery should be a no-op, got %+v", res)
	}
}

func TestApplyChargeZeroRequestKeepsSoC(t *testing.T) {
	v := vehicle(0.37, 50, 11, 0.95)
	res, err := ApplyCharge(v, 0, 15*time.Minute)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.AchievedKW != 0 || res.NewSoC != v.SoC {
		t.Errorf("zero request changed state: %+v", res)
	}
}

func TestApplyChargeArgumentErrors(t *testing.T) {
	v := vehicle(0.5, 50, 11, 1)
	if _, err := ApplyCharge(v, -1, time.Hour); err == nil {
		t.Error("expected error for negative power")
	}
	if _, err := ApplyCharge(v, 5, 0); err == nil {
		t.Error("expected error for zero duration")
	}
	if _, err := ApplyCharge(v, 5, -time.Minute); err == nil {
		t.Error("expected error for negative duration")
	}
}
