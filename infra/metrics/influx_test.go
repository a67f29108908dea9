package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	core "github.com/evgrid/fleetsim/core/metrics"
)

func TestInfluxSinkRecordStep(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	rec := core.StepRecord{
		RunID:            "r1",
		Strategy:         "balanced",
		Step:             2,
		Time:             time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC),
		ConnectorPowerKW: map[string]float64{"gc1": 7.5},
		ExternalLoadKW:   map[string]float64{"gc1": 1.2499},
		CostToDate:       0.6,
	}
	if err := sink.RecordStep(rec); err != nil {
		t.Fatalf("record step: %v", err)
	}

	for _, want := range []string{
		"sim_step", `run_id=r1`, `strategy=balanced`, `connector_id=gc1`,
		"power_kw=7.5", "external_load_kw=1.25", "step=2i",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("line protocol missing %q:\n%s", want, body)
		}
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(core.Config{
		InfluxURL:    srv.URL + "/api/v2/write",
		InfluxToken:  "tok",
		InfluxOrg:    "org",
		InfluxBucket: "bucket",
	})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatal("expected NopSink on failing health check")
	}
	if !called {
		t.Fatal("health endpoint not called")
	}
}
