package model

import (
	"fmt"
	"sort"
)

// World is the mutable aggregate state of one simulation run: all vehicles,
// charging points and grid connectors. It is exclusively owned by a single
// simulation loop; strategies receive it read-only and must express their
// intentions through the returned power requests.
type World struct {
	Vehicles   map[string]*Vehicle
	Points     map[string]*ChargingPoint
	Connectors map[string]*GridConnector
}

// NewWorld returns an empty world.
func NewWorld() *World {
	return &World{
		Vehicles:   make(map[string]*Vehicle),
		Points:     make(map[string]*ChargingPoint),
		Connectors: make(map[string]*GridConnector),
	}
}

// ConnectorIDs returns all connector IDs in ascending order.
func (w *World) ConnectorIDs() []string {
	ids := make([]string, 0, len(w.Connectors))
	for id := range w.Connectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// VehicleIDs returns all vehicle IDs in ascending order.
func (w *World) VehicleIDs() []string {
	ids := make([]string, 0, len(w.Vehicles))
	for id := range w.Vehicles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PointsByConnector returns the charging points attached to the connector,
// sorted by ID for deterministic iteration.
func (w *World) PointsByConnector(connectorID string) []*ChargingPoint {
	var pts []*ChargingPoint
	for _, p := range w.Points {
		if p.ConnectorID == connectorID {
			pts = append(pts, p)
		}
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].ID < pts[j].ID })
	return pts
}

// ConnectedVehicles returns the vehicles currently plugged into points of
// the connector, ordered by arrival step, ties broken by ascending ID.
func (w *World) ConnectedVehicles(connectorID string) []*Vehicle {
	var vs []*Vehicle
	for _, p := range w.Points {
		if p.ConnectorID != connectorID || p.VehicleID == "" {
			continue
		}
		if v, ok := w.Vehicles[p.VehicleID]; ok {
			vs = append(vs, v)
		}
	}
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].ArrivalStep != vs[j].ArrivalStep {
			return vs[i].ArrivalStep < vs[j].ArrivalStep
		}
		return vs[i].ID < vs[j].ID
	})
	return vs
}

// Attach plugs the vehicle into the charging point. The point must exist
// and be free.
func (w *World) Attach(vehicleID, pointID string) error {
	v, ok := w.Vehicles[vehicleID]
	if !ok {
		return fmt.Errorf("attach: unknown vehicle %s: %w", vehicleID, ErrInvalidScenario)
	}
	p, ok := w.Points[pointID]
	if !ok {
		return fmt.Errorf("attach: unknown charging point %s: %w", pointID, ErrInvalidScenario)
	}
	if p.VehicleID != "" && p.VehicleID != vehicleID {
		return fmt.Errorf("attach: charging point %s already occupied by %s: %w", pointID, p.VehicleID, ErrInvalidScenario)
	}
	p.VehicleID = vehicleID
	v.PointID = pointID
	return nil
}

// Detach unplugs the vehicle from its charging point, if any.
func (w *World) Detach(vehicleID string) {
	v, ok := w.Vehicles[vehicleID]
	if !ok || v.PointID == "" {
		return
	}
	if p, ok := w.Points[v.PointID]; ok && p.VehicleID == vehicleID {
		p.VehicleID = ""
	}
	v.PointID = ""
}
