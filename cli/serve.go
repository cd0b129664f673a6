package cli

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/georgepadayatti/contractpdf/config"
	"github.com/georgepadayatti/contractpdf/contract"
	"github.com/georgepadayatti/contractpdf/records"
	"github.com/georgepadayatti/contractpdf/server"
	"github.com/georgepadayatti/contractpdf/service"
	"github.com/georgepadayatti/contractpdf/storage"
	"github.com/georgepadayatti/contractpdf/telemetry"
)

func (a *App) newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until SIGINT or SIGTERM, then shut down gracefully.

Storage, the record database and authentication come from the configuration
file and CONTRACTPDF_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func serve(ctx context.Context, cfg *config.AppConfig) error {
	engineCfg, err := cfg.Engine()
	if err != nil {
		return err
	}
	engine := contract.New(engineCfg)

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	db, err := records.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer records.Close(db)

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	svcCfg := service.ConfigFrom(cfg)
	svcCfg.Metrics = metrics
	generator := service.New(engine, store, store, records.NewRepository(db), svcCfg)

	gin.SetMode(cfg.Server.Mode)
	klog.InfoS("Starting contractpdf", "version", Version, "storage", cfg.Storage.Type, "database", cfg.Database.Driver)
	return server.New(generator, engine, cfg.Server).Run(ctx)
}
