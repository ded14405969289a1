package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gisfun/geoharvest/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "geoharvest",
	Short: "Singapore geodata harvester",
	Long:  "Harvests geocoded address records for postal-code ranges from OneMap and the LTA bus-stop registry, writes tabular geospatial files, and publishes them to a Hugging Face dataset repository.",
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
