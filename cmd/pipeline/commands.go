package main

import (
	"os"

	"jobs-etl/internal/collector"
	"jobs-etl/internal/normalizer"
	"jobs-etl/internal/pipeline"
	"jobs-etl/internal/report"
	"jobs-etl/internal/uploader"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd, collectCmd, formatCmd, uploadCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the full pipeline: collect, format, upload.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		p, err := pipeline.FromConfig(cfg, st)
		if err != nil {
			return err
		}
		res, err := p.Run(cmd.Context())
		if err != nil {
			return err
		}
		report.RenderSummary(os.Stdout, res.Outcomes)
		logrus.Info("🚀 pipeline completed successfully")
		return nil
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Runs the scraper only and writes the raw items file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		col, err := collector.NewApify(cfg.Collector)
		if err != nil {
			return err
		}
		n, err := pipeline.New(cfg, col, nil, nil).Collect(cmd.Context())
		if err != nil {
			return err
		}
		logrus.Infof("scraped %d jobs into %s", n, cfg.Paths.Scraped)
		return nil
	},
}

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Formats the raw items file into the upload file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		norm, err := normalizer.New(cfg.Normalizer)
		if err != nil {
			return err
		}
		return norm.Normalize(cmd.Context(), cfg.Paths.Scraped, cfg.Paths.Formatted)
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Uploads a formatted jobs file, skipping jobs already stored.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path := cfg.Paths.Formatted
		if len(args) == 1 {
			path = args[0]
		}

		st, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		outcomes, err := uploader.New(st).UploadFile(cmd.Context(), path)
		if err != nil {
			return err
		}
		report.RenderSummary(os.Stdout, outcomes)
		return nil
	},
}
