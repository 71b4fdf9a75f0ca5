package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/censusdis/internal/db"
	"github.com/sells-group/censusdis/internal/export"
)

var (
	loadQuery  queryFlags
	loadTable  string
	loadSchema string
	loadMode   string
	loadKeys   []string
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Download variables and load them into Postgres",
	Example: `  censusdis load -d acs/acs5 -y 2021 -v NAME,B19013_001E -g state=* --table median_income
  censusdis load -d acs/acs5 -y 2021 -v B19013_001E -g state=34 -g tract=* --geometry --table nj_income --mode upsert --keys state,county,tract`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		req, err := loadQuery.request()
		if err != nil {
			return err
		}
		if err := requireFlag("table", loadTable); err != nil {
			return err
		}
		mode := export.LoadMode(loadMode)
		switch mode {
		case export.Replace, export.Append, export.Upsert:
		default:
			return eris.Errorf("unknown --mode %q, want replace, append or upsert", loadMode)
		}
		if loadSchema != "" {
			cfg.Store.Schema = loadSchema
		}
		if err := cfg.Validate("load"); err != nil {
			return err
		}

		env, err := initCensus(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := env.Downloader.Download(ctx, req)
		if err != nil {
			return err
		}

		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return err
		}
		defer pool.Close()

		n, err := export.ToPostgres(ctx, pool, cfg.Store.Schema, loadTable, f, export.LoadOptions{
			Mode: mode,
			Keys: loadKeys,
		})
		if err != nil {
			return err
		}

		zap.L().Info("load complete",
			zap.String("table", cfg.Store.Schema+"."+loadTable),
			zap.String("mode", string(mode)),
			zap.String("rows", count(int(n))),
		)
		return nil
	},
}

func init() {
	loadQuery.register(loadCmd)
	loadCmd.Flags().StringVar(&loadTable, "table", "", "destination table")
	loadCmd.Flags().StringVar(&loadSchema, "schema", "", "destination schema (default from config)")
	loadCmd.Flags().StringVar(&loadMode, "mode", string(export.Append), "replace, append or upsert")
	loadCmd.Flags().StringSliceVar(&loadKeys, "keys", nil, "key columns, required for upsert")
	rootCmd.AddCommand(loadCmd)
}
