package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	core "github.com/evgrid/fleetsim/core/metrics"
	infralog "github.com/evgrid/fleetsim/infra/logger"
)

// Build assembles the sink stack selected by the config. The Prometheus
// HTTP endpoint, when enabled, is served until ctx is canceled. With no
// sink enabled a NopSink is returned.
func Build(ctx context.Context, cfg core.Config) (core.Sink, error) {
	log := infralog.New("metrics")
	var sinks []core.Sink

	if cfg.PrometheusEnabled {
		prom, err := NewPromSink(prometheus.DefaultRegisterer)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, prom)
		addr := cfg.PrometheusPort
		if addr == "" {
			addr = ":2112"
		}
		go func() {
			if err := StartPromServer(ctx, addr); err != nil {
				log.Errorf("prometheus server: %v", err)
			}
		}()
	}

	if cfg.InfluxEnabled {
		sinks = append(sinks, NewInfluxSinkWithFallback(cfg))
	}

	switch len(sinks) {
	case 0:
		return core.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMultiSink(sinks...), nil
	}
}
