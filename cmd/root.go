package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/censusdis/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "censusdis",
	Short: "Download U.S. Census data and boundaries",
	Long: "Queries the Census data API by dataset, year, variables and geography, " +
		"optionally joins cartographic boundaries, and writes CSV, JSON, GeoJSON, XLSX or Postgres.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
