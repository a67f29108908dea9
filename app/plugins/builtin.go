package plugins

import (
	"github.com/evgrid/fleetsim/core/factory"
	"github.com/evgrid/fleetsim/core/strategy"
)

func init() {
	_ = RegisterStrategy("greedy", func(_ map[string]any) (strategy.Strategy, error) {
		return strategy.NewGreedy(), nil
	})
	_ = RegisterStrategy("balanced", func(conf map[string]any) (strategy.Strategy, error) {
		var c struct {
			CapacityWeighted bool `json:"capacity_weighted"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return &strategy.Balanced{CapacityWeighted: c.CapacityWeighted}, nil
	})
	_ = RegisterStrategy("price", func(_ map[string]any) (strategy.Strategy, error) {
		return strategy.NewPriceDriven(), nil
	})
	_ = RegisterStrategy("schedule", func(_ map[string]any) (strategy.Strategy, error) {
		return strategy.NewScheduleFollowing(), nil
	})
	_ = RegisterStrategy("peakshaving", func(_ map[string]any) (strategy.Strategy, error) {
		return strategy.NewPeakShaving(), nil
	})
}
