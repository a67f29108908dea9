package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/evgrid/fleetsim/core/sim"
)

func sampleResult() *sim.Result {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &sim.Result{
		RunID:    "run-1",
		Strategy: "greedy",
		Start:    start,
		Interval: "1h0m0s",
		Rows: []sim.Row{
			{
				Step:             0,
				Time:             start,
				ConnectorPowerKW: map[string]float64{"gc1": 10},
				ExternalLoadKW:   map[string]float64{"gc1": 2},
				PricePerKWh:      map[string]float64{"gc1": 0.25},
				VehicleSoC:       map[string]float64{"v1": 0.4, "v2": 0.6},
				CostToDate:       2.5,
				Warnings:         []sim.Warning{{Step: 0, Kind: sim.WarnOverCommitted}},
			},
			{
				Step:             1,
				Time:             start.Add(time.Hour),
				ConnectorPowerKW: map[string]float64{"gc1": 5},
				ExternalLoadKW:   map[string]float64{"gc1": 0},
				PricePerKWh:      map[string]float64{"gc1": 0.25},
				VehicleSoC:       map[string]float64{"v1": 0.5, "v2": 0.7},
				CostToDate:       3.75,
			},
		},
		Summary: sim.Summary{Steps: 2, TotalCost: 3.75, WarningCount: 1},
	}
}

func TestWriteJSONRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResult()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var got sim.Result
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RunID != "run-1" || len(got.Rows) != 2 || got.Summary.TotalCost != 3.75 {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleResult()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// header plus one line per step and connector
	if len(recs) != 3 {
		t.Fatalf("record count = %d, want 3", len(recs))
	}
	if recs[0][0] != "step" || recs[0][2] != "connector_id" {
		t.Errorf("header = %v", recs[0])
	}
	if recs[1][2] != "gc1" || recs[1][3] != "10" || recs[1][7] != "1" {
		t.Errorf("first data record = %v", recs[1])
	}
	if recs[2][6] != "3.75" {
		t.Errorf("cost column = %q", recs[2][6])
	}
}

func TestWriteSoCCSVSortsVehicles(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSoCCSV(&buf, sampleResult()); err != nil {
		t.Fatalf("WriteSoCCSV: %v", err)
	}
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// header plus two vehicles per step
	if len(lines) != 5 {
		t.Fatalf("line count = %d, want 5:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "0,") || !strings.Contains(lines[1], ",v1,") {
		t.Errorf("v1 must come first: %q", lines[1])
	}
}
