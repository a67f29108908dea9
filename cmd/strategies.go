package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evgrid/fleetsim/app/plugins"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List available charging strategies",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range plugins.StrategyNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
