package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jobs-etl/internal/api"
	"jobs-etl/internal/config"
	"jobs-etl/internal/pipeline"
	"jobs-etl/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	port       string
)

var rootCmd = &cobra.Command{
	Use:           "api",
	Short:         "Serves the job pipeline over HTTP.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		lvl, _ := logrus.ParseLevel(cfg.Log.Level)
		logrus.SetLevel(lvl)
		if port != "" {
			cfg.API.Port = port
		}

		// One store for the lifetime of the server; runs never overlap.
		st, closeStore, err := store.Open(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to open %s store: %w", cfg.Storage.Type, err)
		}
		defer closeStore()

		srv := api.NewServer(cfg, func(c *config.Config) (api.Runner, error) {
			p, err := pipeline.FromConfig(c, st)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
		logrus.Infof("API server listening on :%s", cfg.API.Port)
		if err := srv.Run(cmd.Context(), cfg.API.Port); err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		logrus.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	rootCmd.Flags().StringVar(&port, "port", "", "Port to listen on (overrides api.port)")
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
