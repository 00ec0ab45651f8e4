package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"telemetry-analyzer/internal/config"
	"telemetry-analyzer/internal/logger"
	"telemetry-analyzer/internal/server"
)

const version = "1.0.0"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "telemetry-analyzer",
		Short:         "HTTP service for anomaly detection and summary statistics over telemetry",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	return root
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting telemetry analyzer",
		zap.String("version", version),
		zap.Float64("contamination", cfg.Detector.Contamination),
		zap.Int("n_estimators", cfg.Detector.NumEstimators),
		zap.Int64("seed", cfg.Detector.Seed),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
	)
	if cfg.Detector.Seed == 0 {
		log.Info("detector is unseeded; anomaly membership of borderline points may vary between calls")
	}
	if cfg.Errors.ExposeDetails {
		log.Warn("internal error messages are returned to clients verbatim")
	}

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer srv.Close()

	return srv.Run()
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
