// Package metrics provides the concrete telemetry sinks a run reports
// into: Prometheus, InfluxDB, a fan-out over several sinks and the
// config-driven factory that assembles them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	core "github.com/evgrid/fleetsim/core/metrics"
)

// PromSink publishes run telemetry as Prometheus metrics.
type PromSink struct {
	connectorPower *prometheus.GaugeVec
	externalLoad   *prometheus.GaugeVec
	costToDate     *prometheus.GaugeVec
	warnings       *prometheus.CounterVec
	runs           *prometheus.CounterVec
	runEnergy      *prometheus.HistogramVec
}

// NewPromSink registers the simulation metrics on the provided Prometheus
// registerer. If reg is nil, the default registerer is used. If the
// collectors are already registered, the existing ones are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		connectorPower: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetsim_connector_power_kw",
			Help: "Aggregated vehicle charging power per grid connector",
		}, []string{"strategy", "connector_id"}),
		externalLoad: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetsim_external_load_kw",
			Help: "Net external load per grid connector",
		}, []string{"strategy", "connector_id"}),
		costToDate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetsim_cost_to_date",
			Help: "Cumulative charging cost of the running simulation",
		}, []string{"strategy"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetsim_warnings_total",
			Help: "Total number of non-fatal run warnings",
		}, []string{"kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetsim_runs_total",
			Help: "Total number of completed simulation runs",
		}, []string{"strategy"}),
		runEnergy: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleetsim_run_energy_kwh",
			Help:    "Total energy delivered per completed run",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"strategy"}),
	}

	if err := registerGaugeVec(reg, &s.connectorPower); err != nil {
		return nil, err
	}
	if err := registerGaugeVec(reg, &s.externalLoad); err != nil {
		return nil, err
	}
	if err := registerGaugeVec(reg, &s.costToDate); err != nil {
		return nil, err
	}
	if err := reg.Register(s.warnings); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			s.warnings = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(s.runs); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			s.runs = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(s.runEnergy); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			s.runEnergy = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	return s, nil
}

func registerGaugeVec(reg prometheus.Registerer, gv **prometheus.GaugeVec) error {
	if err := reg.Register(*gv); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return err
		}
		*gv = are.ExistingCollector.(*prometheus.GaugeVec)
	}
	return nil
}

// RecordStep updates the per-connector gauges for the step.
func (s *PromSink) RecordStep(rec core.StepRecord) error {
	for id, kw := range rec.ConnectorPowerKW {
		s.connectorPower.WithLabelValues(rec.Strategy, id).Set(kw)
	}
	for id, kw := range rec.ExternalLoadKW {
		s.externalLoad.WithLabelValues(rec.Strategy, id).Set(kw)
	}
	s.costToDate.WithLabelValues(rec.Strategy).Set(rec.CostToDate)
	return nil
}

// RecordWarning increments the warning counter for the kind.
func (s *PromSink) RecordWarning(rec core.WarningRecord) error {
	s.warnings.WithLabelValues(rec.Kind).Inc()
	return nil
}

// RecordRun counts the completed run and observes its delivered energy.
func (s *PromSink) RecordRun(rec core.RunRecord) error {
	s.runs.WithLabelValues(rec.Strategy).Inc()
	s.runEnergy.WithLabelValues(rec.Strategy).Observe(rec.TotalEnergyKWh)
	return nil
}

// StartPromServer starts an HTTP server exposing Prometheus metrics on the
// given address. The server runs until the provided context is canceled.
// A dedicated ServeMux is used to avoid interfering with other handlers.
func StartPromServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
