package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	core "github.com/evgrid/fleetsim/core/metrics"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSink(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}

	step := core.StepRecord{
		RunID:            "r1",
		Strategy:         "greedy",
		Step:             3,
		Time:             time.Now(),
		ConnectorPowerKW: map[string]float64{"gc1": 12.5},
		ExternalLoadKW:   map[string]float64{"gc1": 4},
		CostToDate:       1.25,
	}
	if err := sink.RecordStep(step); err != nil {
		t.Fatalf("record step: %v", err)
	}
	if err := sink.RecordWarning(core.WarningRecord{RunID: "r1", Kind: "over_committed"}); err != nil {
		t.Fatalf("record warning: %v", err)
	}
	if err := sink.RecordRun(core.RunRecord{RunID: "r1", Strategy: "greedy", TotalEnergyKWh: 42}); err != nil {
		t.Fatalf("record run: %v", err)
	}

	expected := `
# HELP fleetsim_connector_power_kw Aggregated vehicle charging power per grid connector
# TYPE fleetsim_connector_power_kw gauge
fleetsim_connector_power_kw{connector_id="gc1",strategy="greedy"} 12.5
`
	if err := testutil.CollectAndCompare(sink.connectorPower, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected power gauge: %v", err)
	}

	expected = `
# HELP fleetsim_warnings_total Total number of non-fatal run warnings
# TYPE fleetsim_warnings_total counter
fleetsim_warnings_total{kind="over_committed"} 1
`
	if err := testutil.CollectAndCompare(sink.warnings, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected warning counter: %v", err)
	}

	if c := testutil.CollectAndCount(sink.runEnergy); c == 0 {
		t.Error("run energy not recorded")
	}
}

func TestPromSinkReusesExistingCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSink(reg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewPromSink(reg)
	if err != nil {
		t.Fatalf("second registration must reuse collectors: %v", err)
	}
	if first.warnings != second.warnings {
		t.Error("expected the existing warning counter to be reused")
	}
}
