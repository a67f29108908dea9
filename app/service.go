// Package app assembles a full simulation run from configuration: scenario,
// strategy, telemetry sinks, live publishing and result output.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/evgrid/fleetsim/app/plugins"
	"github.com/evgrid/fleetsim/config"
	"github.com/evgrid/fleetsim/core/logger"
	"github.com/evgrid/fleetsim/core/scenario"
	"github.com/evgrid/fleetsim/core/sim"
	"github.com/evgrid/fleetsim/core/strategy"
	infralog "github.com/evgrid/fleetsim/infra/logger"
	inframetrics "github.com/evgrid/fleetsim/infra/metrics"
	"github.com/evgrid/fleetsim/infra/publish"
	"github.com/evgrid/fleetsim/internal/rowstream"
	"github.com/evgrid/fleetsim/pkg/export"
)

// Service executes one scenario with one strategy and writes the result.
type Service struct {
	cfg   *config.Config
	rt    *scenario.Runtime
	strat strategy.Strategy
	log   logger.Logger
}

// New loads the scenario and builds the configured strategy.
func New(cfg *config.Config, scenarioPath string) (*Service, error) {
	if err := cfg.Logging.Apply(); err != nil {
		return nil, err
	}
	infralog.SetConsole(cfg.Logging.Console)
	log := infralog.New("service")

	rt, err := scenario.Load(scenarioPath)
	if err != nil {
		return nil, err
	}
	strat, err := plugins.NewStrategy(cfg.Strategy.Type, cfg.Strategy.Conf)
	if err != nil {
		return nil, fmt.Errorf("strategy: %w", err)
	}
	log.Infof("scenario %s: %d vehicles, %d connectors, %d steps, strategy %s",
		rt.Name, len(rt.World.Vehicles), len(rt.World.Connectors), rt.Horizon.Steps, strat.Name())
	return &Service{cfg: cfg, rt: rt, strat: strat, log: log}, nil
}

// Run executes the simulation and writes the result to the configured
// output. It blocks until the run completes or ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	sink, err := inframetrics.Build(ctx, s.cfg.Metrics)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	stream := rowstream.New()
	defer stream.Close()

	eng, err := sim.New(sim.Config{
		Horizon:   s.rt.Horizon,
		World:     s.rt.World,
		Events:    s.rt.Events,
		Strategy:  s.strat,
		Prices:    s.rt.Prices,
		Schedules: s.rt.Schedules,
		Logger:    infralog.New("sim"),
		Sink:      sink,
		Observer:  stream.Publish,
	})
	if err != nil {
		return err
	}

	var pub *publish.Publisher
	var pumpDone sync.WaitGroup
	if s.cfg.Publish.Enabled {
		pub, err = publish.NewPublisher(s.cfg.Publish)
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		defer pub.Disconnect()
		rows := stream.Subscribe(0)
		pumpDone.Add(1)
		go func() {
			defer pumpDone.Done()
			pub.Pump(ctx, eng.RunID(), rows)
		}()
	}

	res, err := eng.Run(ctx)
	stream.Close()
	pumpDone.Wait()
	if err != nil {
		return err
	}
	if dropped := stream.Dropped(); dropped > 0 {
		s.log.Warnf("live stream dropped %d rows", dropped)
	}
	if pub != nil {
		if err := pub.PublishSummary(res); err != nil {
			s.log.Errorf("publish summary: %v", err)
		}
	}
	return s.writeResult(res)
}

func (s *Service) writeResult(res *sim.Result) error {
	var w io.Writer = os.Stdout
	if path := s.cfg.Output.Path; path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
		s.log.Infof("run %s: writing %s result to %s", res.RunID, s.cfg.Output.Format, path)
	}
	switch s.cfg.Output.Format {
	case "csv":
		return export.WriteCSV(w, res)
	case "soc-csv":
		return export.WriteSoCCSV(w, res)
	default:
		return export.WriteJSON(w, res)
	}
}
