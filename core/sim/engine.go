// Package sim drives the time-stepped simulation: it applies pending
// events, asks the active strategy for target powers, realizes them under
// the constraint resolver and the charging physics, advances vehicle state
// and records one result row per timestep.
package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/evgrid/fleetsim/core/constraint"
	"github.com/evgrid/fleetsim/core/events"
	"github.com/evgrid/fleetsim/core/logger"
	"github.com/evgrid/fleetsim/core/metrics"
	"github.com/evgrid/fleetsim/core/model"
	"github.com/evgrid/fleetsim/core/physics"
	"github.com/evgrid/fleetsim/core/strategy"
	"github.com/evgrid/fleetsim/core/timeseries"
)

// socTolerance avoids spurious unmet-demand flags when a vehicle lands
// exactly on its target up to floating rounding.
const socTolerance = 1e-6

// Config assembles one simulation run. The world is exclusively owned by
// the engine for the duration of the run.
type Config struct {
	Horizon  Horizon
	World    *model.World
	Events   []events.Event
	Strategy strategy.Strategy

	// Perfect-foresight series keyed by connector ID, fully materialized
	// at load time.
	Prices    map[string]*timeseries.Series
	Schedules map[string]*timeseries.Series

	Logger logger.Logger
	Sink   metrics.Sink
	// Observer, when set, receives every row as it is recorded.
	Observer func(Row)
}

// Engine executes one scenario with one strategy. A single engine instance
// must not be shared across concurrent runs; run independent scenarios on
// independent engines instead.
type Engine struct {
	cfg   Config
	runID string

	nextEvent int
	cost      float64
	energy    map[string]float64
	peak      map[string]float64
	unmet     []Shortfall
	warnCount int
}

// New validates the run configuration and returns an engine ready to run.
func New(cfg Config) (*Engine, error) {
	if cfg.World == nil {
		return nil, fmt.Errorf("nil world: %w", model.ErrInvalidScenario)
	}
	if cfg.Strategy == nil {
		return nil, fmt.Errorf("nil strategy: %w", model.ErrInvalidScenario)
	}
	if cfg.Horizon.Steps <= 0 {
		return nil, fmt.Errorf("horizon needs at least one step: %w", model.ErrInvalidScenario)
	}
	if cfg.Horizon.Interval <= 0 {
		return nil, fmt.Errorf("horizon interval must be positive: %w", model.ErrInvalidScenario)
	}
	if !events.Ordered(cfg.Events) {
		return nil, fmt.Errorf("events not in step order: %w", model.ErrInvalidScenario)
	}
	for _, gc := range cfg.World.Connectors {
		if err := gc.Validate(); err != nil {
			return nil, err
		}
	}
	for _, p := range cfg.World.Points {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, ok := cfg.World.Connectors[p.ConnectorID]; !ok {
			return nil, fmt.Errorf("charging point %s references unknown connector %s: %w",
				p.ID, p.ConnectorID, model.ErrInvalidScenario)
		}
	}
	for _, v := range cfg.World.Vehicles {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop{}
	}
	if cfg.Sink == nil {
		cfg.Sink = metrics.NopSink{}
	}
	if cfg.Prices == nil {
		cfg.Prices = map[string]*timeseries.Series{}
	}
	if cfg.Schedules == nil {
		cfg.Schedules = map[string]*timeseries.Series{}
	}
	return &Engine{
		cfg:    cfg,
		runID:  uuid.NewString(),
		energy: make(map[string]float64),
		peak:   make(map[string]float64),
	}, nil
}

// RunID identifies this run in sinks and exports.
func (e *Engine) RunID() string { return e.runID }

// Run executes all timesteps in order and returns the completed result.
// The only fatal failures are a cancelled context and physics contract
// violations; per-step anomalies are recorded on the rows.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	log := e.cfg.Logger
	log.Infof("run %s: strategy=%s steps=%d vehicles=%d connectors=%d",
		e.runID, e.cfg.Strategy.Name(), e.cfg.Horizon.Steps,
		len(e.cfg.World.Vehicles), len(e.cfg.World.Connectors))

	rows := make([]Row, 0, e.cfg.Horizon.Steps)
	for step := 0; step < e.cfg.Horizon.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := e.step(step)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		e.record(row)
	}

	res := &Result{
		RunID:    e.runID,
		Strategy: e.cfg.Strategy.Name(),
		Start:    e.cfg.Horizon.Start,
		Interval: e.cfg.Horizon.Interval.String(),
		Rows:     rows,
		Summary:  e.summary(),
	}
	if err := e.cfg.Sink.RecordRun(e.runRecord(res)); err != nil {
		log.Warnf("run %s: run record: %v", e.runID, err)
	}
	log.Infof("run %s: done, cost=%.2f warnings=%d unmet=%d",
		e.runID, e.cost, e.warnCount, len(e.unmet))
	return res, nil
}

// step executes one APPLY_EVENTS → DECIDE → RESOLVE_AND_APPLY → RECORD
// cycle and returns the recorded row.
func (e *Engine) step(step int) (Row, error) {
	w := e.cfg.World
	row := Row{
		Step:             step,
		Time:             e.cfg.Horizon.TimeAt(step),
		ConnectorPowerKW: make(map[string]float64, len(w.Connectors)),
		ExternalLoadKW:   make(map[string]float64, len(w.Connectors)),
		PricePerKWh:      make(map[string]float64, len(w.Connectors)),
		VehicleSoC:       make(map[string]float64),
	}

	if err := e.applyEvents(step, &row); err != nil {
		return Row{}, err
	}

	sctx := &strategy.Context{
		Step:      step,
		Horizon:   e.cfg.Horizon.Steps,
		Now:       row.Time,
		Interval:  e.cfg.Horizon.Interval,
		World:     w,
		Prices:    e.cfg.Prices,
		Schedules: e.cfg.Schedules,
	}
	decision := e.cfg.Strategy.Decide(sctx)

	if err := e.realize(step, decision, &row); err != nil {
		return Row{}, err
	}

	for _, id := range w.VehicleIDs() {
		row.VehicleSoC[id] = w.Vehicles[id].SoC
	}
	row.CostToDate = e.cost
	return row, nil
}

// applyEvents applies all events due at or before the step, exactly once,
// in order. Departures below target are recorded as unmet demand before
// the vehicle detaches.
func (e *Engine) applyEvents(step int, row *Row) error {
	w := e.cfg.World
	for e.nextEvent < len(e.cfg.Events) && e.cfg.Events[e.nextEvent].Step() <= step {
		ev := e.cfg.Events[e.nextEvent]
		e.nextEvent++

		if dep, ok := ev.(events.Departure); ok {
			e.checkDeparture(step, dep, row)
		}
		notes, err := ev.Apply(w)
		if err != nil {
			return err
		}
		for _, n := range notes {
			e.warn(row, Warning{Step: step, Kind: WarnEvent, Message: n})
		}
	}
	return nil
}

func (e *Engine) checkDeparture(step int, dep events.Departure, row *Row) {
	v, ok := e.cfg.World.Vehicles[dep.VehicleID]
	if !ok || !v.Connected() {
		return
	}
	if v.SoC+socTolerance >= v.DesiredSoC {
		return
	}
	missing := (v.DesiredSoC - v.SoC) * v.BatteryKWh
	sf := Shortfall{
		VehicleID:  v.ID,
		Step:       step,
		FinalSoC:   v.SoC,
		TargetSoC:  v.DesiredSoC,
		MissingKWh: missing,
	}
	e.unmet = append(e.unmet, sf)
	e.warn(row, Warning{
		Step:      step,
		Kind:      WarnUnmetDemand,
		VehicleID: v.ID,
		Message:   fmt.Sprintf("departed at soc %.3f below target %.3f (%.2f kWh missing)", v.SoC, v.DesiredSoC, missing),
	})
	e.cfg.Logger.Warnf("run %s step %d: vehicle %s departs %.2f kWh short", e.runID, step, v.ID, missing)
}

// realize clips the strategy's requests to each connector's feasible
// envelope and commits the physics result per vehicle.
func (e *Engine) realize(step int, decision strategy.Decision, row *Row) error {
	w := e.cfg.World

	for _, gcID := range w.ConnectorIDs() {
		gc := w.Connectors[gcID]
		extLoad := gc.ExternalLoad()
		row.ExternalLoadKW[gcID] = extLoad
		row.PricePerKWh[gcID] = e.priceAt(step, gc, row)

		var reqs []constraint.Request
		pointVehicle := map[string]*model.Vehicle{}
		for _, v := range w.ConnectedVehicles(gcID) {
			kw := decision.Requests[v.ID]
			if kw <= 0 {
				continue
			}
			point := w.Points[v.PointID]
			if cap := v.MaxChargePower(point.MaxPowerKW); kw > cap {
				kw = cap
			}
			reqs = append(reqs, constraint.Request{
				PointID:   v.PointID,
				VehicleID: v.ID,
				MaxKW:     kw,
				Weight:    decision.Weights[v.ID],
			})
			pointVehicle[v.PointID] = v
		}

		env := constraint.Resolve(gc.Headroom(), reqs, decision.Policy)
		if env.OverCommitted {
			e.warn(row, Warning{
				Step:        step,
				Kind:        WarnOverCommitted,
				ConnectorID: gcID,
				Message:     fmt.Sprintf("external load %.2f kW exceeds limit %.2f kW", extLoad, gc.CurMaxPowerKW),
			})
			e.cfg.Logger.Warnf("run %s step %d: connector %s over-committed", e.runID, step, gcID)
		}

		var aggregate float64
		for _, req := range reqs {
			v := pointVehicle[req.PointID]
			res, err := physics.ApplyCharge(*v, env.PerPoint[req.PointID], e.cfg.Horizon.Interval)
			if err != nil {
				return fmt.Errorf("run %s step %d vehicle %s: %w", e.runID, step, v.ID, err)
			}
			v.SoC = res.NewSoC
			aggregate += res.AchievedKW
			e.energy[gcID] += res.EnergyKWh
			e.cost += res.EnergyKWh * row.PricePerKWh[gcID]
		}
		row.ConnectorPowerKW[gcID] = aggregate
		if aggregate > e.peak[gcID] {
			e.peak[gcID] = aggregate
		}
	}
	return nil
}

// priceAt reads the connector price effective at the step. A series that
// exists but lacks the step's value falls back to the previous value and
// records a warning. Without a series the last price event applied to the
// connector wins; connectors with no price input at all are free.
func (e *Engine) priceAt(step int, gc *model.GridConnector, row *Row) float64 {
	s, ok := e.cfg.Prices[gc.ID]
	if !ok || s.Len() == 0 {
		if gc.PriceKnown {
			return gc.PricePerKWh
		}
		return 0
	}
	v, exact := s.ValueAt(step)
	if !exact {
		e.warn(row, Warning{
			Step:        step,
			Kind:        WarnMissingValue,
			ConnectorID: gc.ID,
			Message:     fmt.Sprintf("no price for step %d, using %.4f", step, v),
		})
	}
	return v
}

func (e *Engine) warn(row *Row, w Warning) {
	row.Warnings = append(row.Warnings, w)
	e.warnCount++
	if err := e.cfg.Sink.RecordWarning(metrics.WarningRecord{
		RunID:       e.runID,
		Step:        w.Step,
		Kind:        string(w.Kind),
		ConnectorID: w.ConnectorID,
		VehicleID:   w.VehicleID,
	}); err != nil {
		e.cfg.Logger.Warnf("run %s: warning record: %v", e.runID, err)
	}
}

func (e *Engine) record(row Row) {
	if err := e.cfg.Sink.RecordStep(metrics.StepRecord{
		RunID:            e.runID,
		Strategy:         e.cfg.Strategy.Name(),
		Step:             row.Step,
		Time:             row.Time,
		ConnectorPowerKW: row.ConnectorPowerKW,
		ExternalLoadKW:   row.ExternalLoadKW,
		CostToDate:       row.CostToDate,
	}); err != nil {
		e.cfg.Logger.Warnf("run %s: step record: %v", e.runID, err)
	}
	if e.cfg.Observer != nil {
		e.cfg.Observer(row)
	}
}

func (e *Engine) summary() Summary {
	var total float64
	energy := make(map[string]float64, len(e.energy))
	for id, kwh := range e.energy {
		energy[id] = kwh
		total += kwh
	}
	peak := make(map[string]float64, len(e.peak))
	for id, kw := range e.peak {
		peak[id] = kw
	}
	return Summary{
		Steps:          e.cfg.Horizon.Steps,
		PeakPowerKW:    peak,
		TotalEnergyKWh: energy,
		TotalCost:      e.cost,
		UnmetDemand:    e.unmet,
		WarningCount:   e.warnCount,
	}
}

func (e *Engine) runRecord(res *Result) metrics.RunRecord {
	var peak, energy float64
	for _, kw := range res.Summary.PeakPowerKW {
		if kw > peak {
			peak = kw
		}
	}
	for _, kwh := range res.Summary.TotalEnergyKWh {
		energy += kwh
	}
	return metrics.RunRecord{
		RunID:          res.RunID,
		Strategy:       res.Strategy,
		Steps:          res.Summary.Steps,
		Duration:       e.cfg.Horizon.Interval * time.Duration(res.Summary.Steps),
		TotalCost:      res.Summary.TotalCost,
		TotalEnergyKWh: energy,
		PeakPowerKW:    peak,
		UnmetVehicles:  len(res.Summary.UnmetDemand),
	}
}
