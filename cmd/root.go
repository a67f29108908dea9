// Package cmd implements the fleetsim command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evgrid/fleetsim/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "fleetsim",
	Short: "EV fleet charging simulator",
	Long: "fleetsim runs time-stepped charging simulations of EV fleets on " +
		"shared grid connections with pluggable charging strategies.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
