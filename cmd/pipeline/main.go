package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jobs-etl/internal/config"
	"jobs-etl/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "pipeline",
	Short:         "Scrapes job listings, formats them and uploads the new ones.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
}

func main() {
	// Configure global logger (timestamped, info level by default).
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Prepare cancellable context that listens to OS signals (Ctrl+C).
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logrus.Info("interrupt received, shutting down gracefully…")
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies its log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lvl, _ := logrus.ParseLevel(cfg.Log.Level)
	logrus.SetLevel(lvl)
	return cfg, nil
}

// openStore opens the configured store and logs the choice.
func openStore(cfg *config.Config) (store.Store, func() error, error) {
	st, closeFn, err := store.Open(cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Type, err)
	}
	logrus.Infof("using %s store | table=%s", cfg.Storage.Type, cfg.Storage.Table)
	return st, closeFn, nil
}
