// Package scenario loads simulation scenarios from YAML or JSON documents
// and builds the runtime inputs of a run: the initial world, the ordered
// event list and the perfect-foresight price and schedule series.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/evgrid/fleetsim/core/events"
	"github.com/evgrid/fleetsim/core/model"
	"github.com/evgrid/fleetsim/core/sim"
	"github.com/evgrid/fleetsim/core/timeseries"
)

// HorizonDef describes the simulated time axis of the document.
type HorizonDef struct {
	Start    time.Time `yaml:"start" json:"start"`
	Interval string    `yaml:"interval" json:"interval"`
	Steps    int       `yaml:"steps" json:"steps"`
}

// ConnectorDef is one shared grid feed.
type ConnectorDef struct {
	ID         string  `yaml:"id" json:"id"`
	MaxPowerKW float64 `yaml:"max_power_kw" json:"max_power_kw"`
}

// PointDef is one charging point attached to a connector.
type PointDef struct {
	ID          string  `yaml:"id" json:"id"`
	ConnectorID string  `yaml:"connector_id" json:"connector_id"`
	MaxPowerKW  float64 `yaml:"max_power_kw" json:"max_power_kw"`
}

// CurvePointDef is one support point of a vehicle's charging curve.
type CurvePointDef struct {
	SoC     float64 `yaml:"soc" json:"soc"`
	PowerKW float64 `yaml:"power_kw" json:"power_kw"`
}

// VehicleDef describes one vehicle. A vehicle with a point_id starts the
// run plugged in; otherwise an arrival event must plug it in later. When
// the curve is omitted the vehicle accepts max_power_kw flat across SoC,
// and a zero efficiency falls back to the fleet default.
type VehicleDef struct {
	ID            string          `yaml:"id" json:"id"`
	BatteryKWh    float64         `yaml:"battery_kwh" json:"battery_kwh"`
	SoC           float64         `yaml:"soc" json:"soc"`
	DesiredSoC    float64         `yaml:"desired_soc" json:"desired_soc"`
	Efficiency    float64         `yaml:"efficiency,omitempty" json:"efficiency,omitempty"`
	MaxPowerKW    float64         `yaml:"max_power_kw,omitempty" json:"max_power_kw,omitempty"`
	Curve         []CurvePointDef `yaml:"curve,omitempty" json:"curve,omitempty"`
	ArrivalStep   int             `yaml:"arrival_step" json:"arrival_step"`
	DepartureStep int             `yaml:"departure_step" json:"departure_step"`
	PointID       string          `yaml:"point_id,omitempty" json:"point_id,omitempty"`
}

// EventDef is one timed instruction. Type selects which fields are read.
type EventDef struct {
	Step int    `yaml:"step" json:"step"`
	Type string `yaml:"type" json:"type"`

	VehicleID     string   `yaml:"vehicle_id,omitempty" json:"vehicle_id,omitempty"`
	PointID       string   `yaml:"point_id,omitempty" json:"point_id,omitempty"`
	SoCDelta      float64  `yaml:"soc_delta,omitempty" json:"soc_delta,omitempty"`
	DesiredSoC    *float64 `yaml:"desired_soc,omitempty" json:"desired_soc,omitempty"`
	DepartureStep int      `yaml:"departure_step,omitempty" json:"departure_step,omitempty"`

	ConnectorID string  `yaml:"connector_id,omitempty" json:"connector_id,omitempty"`
	Name        string  `yaml:"name,omitempty" json:"name,omitempty"`
	ValueKW     float64 `yaml:"value_kw,omitempty" json:"value_kw,omitempty"`
	PricePerKWh float64 `yaml:"price_per_kwh,omitempty" json:"price_per_kwh,omitempty"`
	MaxPowerKW  float64 `yaml:"max_power_kw,omitempty" json:"max_power_kw,omitempty"`
	Reset       bool    `yaml:"reset,omitempty" json:"reset,omitempty"`
	TargetKW    float64 `yaml:"target_kw,omitempty" json:"target_kw,omitempty"`
}

// SeriesDef is a stepwise timeseries starting at the given step, one value
// per step. Gaps past the last value hold the last value.
type SeriesDef struct {
	Start  int       `yaml:"start" json:"start"`
	Values []float64 `yaml:"values" json:"values"`
}

// Document is the on-disk scenario format.
type Document struct {
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Horizon     HorizonDef     `yaml:"horizon" json:"horizon"`
	Connectors  []ConnectorDef `yaml:"connectors" json:"connectors"`
	Points      []PointDef     `yaml:"points" json:"points"`
	Vehicles    []VehicleDef   `yaml:"vehicles" json:"vehicles"`
	Events      []EventDef     `yaml:"events,omitempty" json:"events,omitempty"`

	// Per-connector series, expanded into events and, for prices and
	// schedules, materialized for strategy foresight.
	Prices    map[string]SeriesDef `yaml:"prices,omitempty" json:"prices,omitempty"`
	Schedules map[string]SeriesDef `yaml:"schedules,omitempty" json:"schedules,omitempty"`
	Loads     map[string]SeriesDef `yaml:"external_loads,omitempty" json:"external_loads,omitempty"`
}

// Runtime is a fully validated, ready-to-run scenario.
type Runtime struct {
	Name      string
	Horizon   sim.Horizon
	World     *model.World
	Events    []events.Event
	Prices    map[string]*timeseries.Series
	Schedules map[string]*timeseries.Series
}

// Load reads and builds a scenario file. The format follows the file
// extension; .json is JSON, everything else is parsed as YAML.
func Load(path string) (*Runtime, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	var doc Document
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w: %v", path, model.ErrInvalidScenario, err)
	}
	rt, err := Build(&doc)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return rt, nil
}

// Build validates the document and assembles the runtime inputs.
func Build(doc *Document) (*Runtime, error) {
	horizon, err := buildHorizon(doc.Horizon)
	if err != nil {
		return nil, err
	}
	world, err := buildWorld(doc)
	if err != nil {
		return nil, err
	}

	evs, err := buildEvents(doc, world)
	if err != nil {
		return nil, err
	}
	evs = append(evs, seriesEvents(doc)...)
	events.SortStable(evs)

	rt := &Runtime{
		Name:      doc.Name,
		Horizon:   horizon,
		World:     world,
		Events:    evs,
		Prices:    buildSeries(doc.Prices),
		Schedules: buildSeries(doc.Schedules),
	}
	for id := range doc.Prices {
		if _, ok := world.Connectors[id]; !ok {
			return nil, fmt.Errorf("prices reference unknown connector %s: %w", id, model.ErrInvalidScenario)
		}
	}
	for id := range doc.Schedules {
		if _, ok := world.Connectors[id]; !ok {
			return nil, fmt.Errorf("schedules reference unknown connector %s: %w", id, model.ErrInvalidScenario)
		}
	}
	for id := range doc.Loads {
		if _, ok := world.Connectors[id]; !ok {
			return nil, fmt.Errorf("external loads reference unknown connector %s: %w", id, model.ErrInvalidScenario)
		}
	}
	return rt, nil
}

func buildHorizon(def HorizonDef) (sim.Horizon, error) {
	if def.Steps <= 0 {
		return sim.Horizon{}, fmt.Errorf("horizon needs at least one step: %w", model.ErrInvalidScenario)
	}
	if def.Interval == "" {
		return sim.Horizon{}, fmt.Errorf("horizon interval missing: %w", model.ErrInvalidScenario)
	}
	interval, err := time.ParseDuration(def.Interval)
	if err != nil {
		return sim.Horizon{}, fmt.Errorf("horizon interval %q: %w: %v", def.Interval, model.ErrInvalidScenario, err)
	}
	if interval <= 0 {
		return sim.Horizon{}, fmt.Errorf("horizon interval %q not positive: %w", def.Interval, model.ErrInvalidScenario)
	}
	start := def.Start
	if start.IsZero() {
		start = time.Now().UTC().Truncate(interval)
	}
	return sim.Horizon{Start: start, Interval: interval, Steps: def.Steps}, nil
}

func buildWorld(doc *Document) (*model.World, error) {
	w := model.NewWorld()

	for _, def := range doc.Connectors {
		if _, dup := w.Connectors[def.ID]; dup {
			return nil, fmt.Errorf("duplicate connector %s: %w", def.ID, model.ErrInvalidScenario)
		}
		gc := model.NewGridConnector(def.ID, def.MaxPowerKW)
		if err := gc.Validate(); err != nil {
			return nil, err
		}
		w.Connectors[def.ID] = gc
	}

	for _, def := range doc.Points {
		if _, dup := w.Points[def.ID]; dup {
			return nil, fmt.Errorf("duplicate charging point %s: %w", def.ID, model.ErrInvalidScenario)
		}
		p := &model.ChargingPoint{ID: def.ID, ConnectorID: def.ConnectorID, MaxPowerKW: def.MaxPowerKW}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, ok := w.Connectors[def.ConnectorID]; !ok {
			return nil, fmt.Errorf("charging point %s references unknown connector %s: %w",
				def.ID, def.ConnectorID, model.ErrInvalidScenario)
		}
		w.Points[def.ID] = p
	}

	for _, def := range doc.Vehicles {
		if _, dup := w.Vehicles[def.ID]; dup {
			return nil, fmt.Errorf("duplicate vehicle %s: %w", def.ID, model.ErrInvalidScenario)
		}
		v, err := buildVehicle(def)
		if err != nil {
			return nil, err
		}
		w.Vehicles[def.ID] = v
	}

	// initial attachments after all entities exist
	for _, def := range doc.Vehicles {
		if def.PointID == "" {
			continue
		}
		if err := w.Attach(def.ID, def.PointID); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func buildVehicle(def VehicleDef) (*model.Vehicle, error) {
	eff := def.Efficiency
	if eff == 0 {
		eff = model.DefaultEfficiency
	}
	var curve model.ChargingCurve
	if len(def.Curve) > 0 {
		pts := make([]model.CurvePoint, len(def.Curve))
		for i, cp := range def.Curve {
			pts[i] = model.CurvePoint{SoC: cp.SoC, PowerKW: cp.PowerKW}
		}
		c, err := model.NewChargingCurve(pts)
		if err != nil {
			return nil, fmt.Errorf("vehicle %s: %w", def.ID, err)
		}
		curve = c
	} else {
		if def.MaxPowerKW <= 0 {
			return nil, fmt.Errorf("vehicle %s needs a curve or max_power_kw: %w", def.ID, model.ErrInvalidScenario)
		}
		curve = model.FlatCurve(def.MaxPowerKW)
	}

	v := &model.Vehicle{
		ID:            def.ID,
		BatteryKWh:    def.BatteryKWh,
		SoC:           def.SoC,
		DesiredSoC:    def.DesiredSoC,
		Efficiency:    eff,
		Curve:         curve,
		ArrivalStep:   def.ArrivalStep,
		DepartureStep: def.DepartureStep,
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

func buildEvents(doc *Document, w *model.World) ([]events.Event, error) {
	evs := make([]events.Event, 0, len(doc.Events))
	for i, def := range doc.Events {
		ev, err := buildEvent(def, w)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		evs = append(evs, ev)
	}
	return evs, nil
}

func buildEvent(def EventDef, w *model.World) (events.Event, error) {
	if def.Step < 0 {
		return nil, fmt.Errorf("negative step %d: %w", def.Step, model.ErrInvalidScenario)
	}
	needVehicle := func() error {
		if _, ok := w.Vehicles[def.VehicleID]; !ok {
			return fmt.Errorf("unknown vehicle %q: %w", def.VehicleID, model.ErrInvalidScenario)
		}
		return nil
	}
	needConnector := func() error {
		if _, ok := w.Connectors[def.ConnectorID]; !ok {
			return fmt.Errorf("unknown connector %q: %w", def.ConnectorID, model.ErrInvalidScenario)
		}
		return nil
	}

	switch def.Type {
	case "arrival":
		if err := needVehicle(); err != nil {
			return nil, err
		}
		if _, ok := w.Points[def.PointID]; !ok {
			return nil, fmt.Errorf("unknown charging point %q: %w", def.PointID, model.ErrInvalidScenario)
		}
		return events.Arrival{
			AtStep: def.Step, VehicleID: def.VehicleID, PointID: def.PointID,
			SoCDelta: def.SoCDelta, DesiredSoC: def.DesiredSoC, DepartureStep: def.DepartureStep,
		}, nil
	case "departure":
		if err := needVehicle(); err != nil {
			return nil, err
		}
		return events.Departure{AtStep: def.Step, VehicleID: def.VehicleID}, nil
	case "external_load":
		if err := needConnector(); err != nil {
			return nil, err
		}
		return events.ExternalLoad{AtStep: def.Step, ConnectorID: def.ConnectorID, Name: def.Name, ValueKW: def.ValueKW}, nil
	case "local_generation":
		if err := needConnector(); err != nil {
			return nil, err
		}
		return events.LocalGeneration{AtStep: def.Step, ConnectorID: def.ConnectorID, Name: def.Name, ValueKW: def.ValueKW}, nil
	case "price":
		if err := needConnector(); err != nil {
			return nil, err
		}
		return events.PriceUpdate{AtStep: def.Step, ConnectorID: def.ConnectorID, PricePerKWh: def.PricePerKWh}, nil
	case "max_power":
		if err := needConnector(); err != nil {
			return nil, err
		}
		return events.MaxPowerUpdate{AtStep: def.Step, ConnectorID: def.ConnectorID, MaxPowerKW: def.MaxPowerKW, Reset: def.Reset}, nil
	case "schedule":
		if err := needConnector(); err != nil {
			return nil, err
		}
		return events.ScheduleUpdate{AtStep: def.Step, ConnectorID: def.ConnectorID, TargetKW: def.TargetKW}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q: %w", def.Type, model.ErrInvalidScenario)
	}
}

// seriesEvents expands the document's series blocks into per-step events so
// connector state tracks the series the strategies see. Connector IDs are
// walked in sorted order to keep same-step event order reproducible.
func seriesEvents(doc *Document) []events.Event {
	var evs []events.Event
	for _, id := range sortedKeys(doc.Prices) {
		def := doc.Prices[id]
		for i, v := range def.Values {
			evs = append(evs, events.PriceUpdate{AtStep: def.Start + i, ConnectorID: id, PricePerKWh: v})
		}
	}
	for _, id := range sortedKeys(doc.Schedules) {
		def := doc.Schedules[id]
		for i, v := range def.Values {
			evs = append(evs, events.ScheduleUpdate{AtStep: def.Start + i, ConnectorID: id, TargetKW: v})
		}
	}
	for _, id := range sortedKeys(doc.Loads) {
		def := doc.Loads[id]
		for i, v := range def.Values {
			evs = append(evs, events.ExternalLoad{AtStep: def.Start + i, ConnectorID: id, Name: "series:" + id, ValueKW: v})
		}
	}
	return evs
}

func sortedKeys(m map[string]SeriesDef) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func buildSeries(defs map[string]SeriesDef) map[string]*timeseries.Series {
	out := make(map[string]*timeseries.Series, len(defs))
	for id, def := range defs {
		out[id] = timeseries.FromValues(def.Start, def.Values)
	}
	return out
}
