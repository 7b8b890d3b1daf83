package worker

import (
	"fmt"

	"github.com/jmehdipour/isp-billing/internal/config"
	"github.com/jmehdipour/isp-billing/internal/db"
	"github.com/jmehdipour/isp-billing/internal/logger"
	"github.com/jmehdipour/isp-billing/internal/metrics"
	"github.com/jmehdipour/isp-billing/internal/service/isp"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// NewWorkerCmd returns the parent "worker" command.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run background workers",
	}
	// attach subcommands
	cmd.AddCommand(overdueCmd)
	cmd.AddCommand(radiusCmd)

	return cmd
}

// setup loads config, initializes logging and metrics and opens MySQL.
func setup(cmd *cobra.Command) (config.Config, *sqlx.DB, error) {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.PoolOptsFrom(cfg.MySQL))
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("mysql connect: %w", err)
	}
	return cfg, dbx, nil
}

func newService(cfg config.Config, dbx *sqlx.DB) *isp.Service {
	return isp.NewFromDB(cfg, dbx, nil)
}
