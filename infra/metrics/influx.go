package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/evgrid/fleetsim/core/logger"
	core "github.com/evgrid/fleetsim/core/metrics"
	infralog "github.com/evgrid/fleetsim/infra/logger"
)

// InfluxSink writes run telemetry to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      infralog.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg core.Config) core.Sink {
	sink := NewInfluxSink(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return core.NopSink{}
	}
	return sink
}

// RecordStep writes one point per connector for the step.
func (s *InfluxSink) RecordStep(rec core.StepRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for id, kw := range rec.ConnectorPowerKW {
		p := write.NewPointWithMeasurement("sim_step").
			AddTag("run_id", rec.RunID).
			AddTag("strategy", rec.Strategy).
			AddTag("connector_id", id).
			AddField("power_kw", round3(kw)).
			AddField("external_load_kw", round3(rec.ExternalLoadKW[id])).
			AddField("cost_to_date", round3(rec.CostToDate)).
			AddField("step", int64(rec.Step)).
			SetTime(rec.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordWarning writes the warning as a tagged point.
func (s *InfluxSink) RecordWarning(rec core.WarningRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("sim_warning").
		AddTag("run_id", rec.RunID).
		AddTag("kind", rec.Kind).
		AddTag("connector_id", rec.ConnectorID).
		AddTag("vehicle_id", rec.VehicleID).
		AddField("step", int64(rec.Step)).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRun writes the run summary point.
func (s *InfluxSink) RecordRun(rec core.RunRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("sim_run").
		AddTag("run_id", rec.RunID).
		AddTag("strategy", rec.Strategy).
		AddTag("steps", strconv.Itoa(rec.Steps)).
		AddField("duration_seconds", rec.Duration.Seconds()).
		AddField("total_cost", round3(rec.TotalCost)).
		AddField("total_energy_kwh", round3(rec.TotalEnergyKWh)).
		AddField("peak_power_kw", round3(rec.PeakPowerKW)).
		AddField("unmet_vehicles", int64(rec.UnmetVehicles)).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
