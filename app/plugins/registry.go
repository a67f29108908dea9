// Package plugins wires the built-in charging strategies into a
// configuration-driven registry so runs can select them by name.
package plugins

import (
	"sort"

	"github.com/evgrid/fleetsim/core/factory"
	"github.com/evgrid/fleetsim/core/strategy"
)

// Strategies holds the registered strategy factories.
var Strategies = factory.NewRegistry[strategy.Strategy]()

// RegisterStrategy adds a strategy factory under the given name.
func RegisterStrategy(name string, f factory.Factory[strategy.Strategy]) error {
	return Strategies.Register(name, f)
}

// NewStrategy builds the strategy registered under the name with its raw
// configuration map.
func NewStrategy(name string, conf map[string]any) (strategy.Strategy, error) {
	return Strategies.Create(name, conf)
}

// StrategyNames lists the registered strategies in sorted order.
func StrategyNames() []string {
	names := Strategies.Names()
	sort.Strings(names)
	return names
}
