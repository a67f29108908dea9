package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/evgrid/fleetsim/core/events"
	"github.com/evgrid/fleetsim/core/model"
)

const yamlDoc = `
name: depot-day
horizon:
  start: 2024-01-01T00:00:00Z
  interval: 1h
  steps: 4
connectors:
  - id: gc1
    max_power_kw: 50
points:
  - id: cp1
    connector_id: gc1
    max_power_kw: 22
  - id: cp2
    connector_id: gc1
    max_power_kw: 11
vehicles:
  - id: v1
    battery_kwh: 50
    soc: 0.2
    desired_soc: 0.8
    max_power_kw: 11
    arrival_step: 0
    departure_step: 4
    point_id: cp1
  - id: v2
    battery_kwh: 60
    soc: 0.5
    desired_soc: 1.0
    efficiency: 0.9
    curve:
      - {soc: 0.0, power_kw: 22}
      - {soc: 1.0, power_kw: 4}
    arrival_step: 1
    departure_step: 4
events:
  - step: 1
    type: arrival
    vehicle_id: v2
    point_id: cp2
    soc_delta: -0.05
  - step: 3
    type: departure
    vehicle_id: v2
prices:
  gc1:
    start: 0
    values: [0.4, 0.3, 0.2, 0.5]
external_loads:
  gc1:
    start: 1
    values: [10, 10]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	rt, err := Load(writeFile(t, "depot.yaml", yamlDoc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if rt.Name != "depot-day" {
		t.Errorf("name = %q", rt.Name)
	}
	if rt.Horizon.Steps != 4 || rt.Horizon.Interval != time.Hour {
		t.Errorf("horizon = %+v", rt.Horizon)
	}
	if !rt.Horizon.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", rt.Horizon.Start)
	}

	v1 := rt.World.Vehicles["v1"]
	if v1 == nil || v1.PointID != "cp1" {
		t.Fatalf("v1 should start attached to cp1, got %+v", v1)
	}
	if v1.Efficiency != model.DefaultEfficiency {
		t.Errorf("v1 efficiency = %v, want fleet default", v1.Efficiency)
	}
	v2 := rt.World.Vehicles["v2"]
	if v2 == nil || v2.Connected() {
		t.Fatal("v2 must start unplugged")
	}
	if got := v2.Curve.PowerAt(0.5); got != 13 {
		t.Errorf("v2 curve at 0.5 = %v, want interpolated 13", got)
	}

	if !events.Ordered(rt.Events) {
		t.Fatal("events must come out ordered")
	}
	// 2 explicit + 4 price + 2 load series events
	if len(rt.Events) != 8 {
		t.Fatalf("event count = %d, want 8", len(rt.Events))
	}

	prices, ok := rt.Prices["gc1"]
	if !ok {
		t.Fatal("missing price foresight series")
	}
	if v, exact := prices.At(2); !exact || v != 0.2 {
		t.Errorf("price at step 2 = %v exact=%v", v, exact)
	}
}

func TestLoadJSON(t *testing.T) {
	doc := `{
  "name": "tiny",
  "horizon": {"interval": "15m", "steps": 2},
  "connectors": [{"id": "gc1", "max_power_kw": 10}],
  "points": [{"id": "cp1", "connector_id": "gc1", "max_power_kw": 10}],
  "vehicles": [{
    "id": "v1", "battery_kwh": 40, "soc": 0.3, "desired_soc": 0.6,
    "max_power_kw": 10, "arrival_step": 0, "departure_step": 2, "point_id": "cp1"
  }]
}`
	rt, err := Load(writeFile(t, "tiny.json", doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rt.Horizon.Interval != 15*time.Minute {
		t.Errorf("interval = %v", rt.Horizon.Interval)
	}
	if rt.Horizon.Start.IsZero() {
		t.Error("omitted start must default to a concrete time")
	}
	if len(rt.World.Vehicles) != 1 || !rt.World.Vehicles["v1"].Connected() {
		t.Error("vehicle not built or not attached")
	}
}

func TestLoadRejectsBrokenDocuments(t *testing.T) {
	base := func() *Document {
		return &Document{
			Name:       "x",
			Horizon:    HorizonDef{Interval: "1h", Steps: 2},
			Connectors: []ConnectorDef{{ID: "gc1", MaxPowerKW: 10}},
			Points:     []PointDef{{ID: "cp1", ConnectorID: "gc1", MaxPowerKW: 10}},
			Vehicles: []VehicleDef{{
				ID: "v1", BatteryKWh: 40, SoC: 0.3, DesiredSoC: 0.6,
				MaxPowerKW: 10, ArrivalStep: 0, DepartureStep: 2, PointID: "cp1",
			}},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Document)
	}{
		{"no steps", func(d *Document) { d.Horizon.Steps = 0 }},
		{"bad interval", func(d *Document) { d.Horizon.Interval = "soon" }},
		{"duplicate connector", func(d *Document) {
			d.Connectors = append(d.Connectors, ConnectorDef{ID: "gc1", MaxPowerKW: 5})
		}},
		{"point without connector", func(d *Document) { d.Points[0].ConnectorID = "nope" }},
		{"duplicate vehicle", func(d *Document) { d.Vehicles = append(d.Vehicles, d.Vehicles[0]) }},
		{"soc out of range", func(d *Document) { d.Vehicles[0].SoC = 1.2 }},
		{"no curve no max power", func(d *Document) { d.Vehicles[0].MaxPowerKW = 0 }},
		{"attach to unknown point", func(d *Document) { d.Vehicles[0].PointID = "cp9" }},
		{"unknown event type", func(d *Document) {
			d.Events = []EventDef{{Step: 0, Type: "teleport"}}
		}},
		{"event unknown vehicle", func(d *Document) {
			d.Events = []EventDef{{Step: 0, Type: "departure", VehicleID: "ghost"}}
		}},
		{"event negative step", func(d *Document) {
			d.Events = []EventDef{{Step: -1, Type: "departure", VehicleID: "v1"}}
		}},
		{"prices unknown connector", func(d *Document) {
			d.Prices = map[string]SeriesDef{"nope": {Values: []float64{1}}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := base()
			tc.mutate(doc)
			if _, err := Build(doc); !errors.Is(err, model.ErrInvalidScenario) {
				t.Fatalf("err = %v, want ErrInvalidScenario", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeFile(t, "broken.yaml", "name: [unclosed")
	if _, err := Load(path); !errors.Is(err, model.ErrInvalidScenario) {
		t.Fatalf("err = %v, want ErrInvalidScenario", err)
	}
}

func TestSeriesEventsInterleaveDeterministically(t *testing.T) {
	doc := &Document{
		Name:    "two-feeds",
		Horizon: HorizonDef{Interval: "1h", Steps: 2},
		Connectors: []ConnectorDef{
			{ID: "gcA", MaxPowerKW: 10},
			{ID: "gcB", MaxPowerKW: 10},
		},
		Prices: map[string]SeriesDef{
			"gcB": {Start: 0, Values: []float64{2, 2}},
			"gcA": {Start: 0, Values: []float64{1, 1}},
		},
	}
	for i := 0; i < 20; i++ {
		rt, err := Build(doc)
		if err != nil {
			t.Fatal(err)
		}
		first, ok := rt.Events[0].(events.PriceUpdate)
		if !ok || first.ConnectorID != "gcA" {
			t.Fatalf("iteration %d: first event = %#v, want gcA price", i, rt.Events[0])
		}
	}
}
