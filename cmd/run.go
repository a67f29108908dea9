package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evgrid/fleetsim/app"
)

var (
	scenarioPath string
	strategyName string
	outputPath   string
	outputFormat string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario",
	RunE:  runScenario,
}

func init() {
	runCmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "scenario file (yaml or json)")
	runCmd.Flags().StringVar(&strategyName, "strategy", "", "strategy override")
	runCmd.Flags().StringVarP(&outputPath, "out", "o", "", "result file, '-' for stdout")
	runCmd.Flags().StringVar(&outputFormat, "format", "", "result format: json, csv or soc-csv")
	_ = runCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(runCmd)
}

func runScenario(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if strategyName != "" {
		cfg.Strategy.Type = strategyName
		cfg.Strategy.Conf = nil
	}
	if outputPath != "" {
		cfg.Output.Path = outputPath
	}
	if outputFormat != "" {
		cfg.Output.Format = outputFormat
		if err := cfg.Output.Validate(); err != nil {
			return err
		}
	}

	svc, err := app.New(cfg, scenarioPath)
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}
