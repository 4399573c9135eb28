package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hirelens/hirelens/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "hirelens",
	Short: "Structured extraction from job postings and web forms",
	Long:  "Fetches job postings and Google Forms via a scraping service, quality-gates the content, extracts structured fields with a two-pass Claude protocol, and stores confidence-scored records.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
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
