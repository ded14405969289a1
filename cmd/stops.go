package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gisfun/geoharvest/internal/export"
	"github.com/gisfun/geoharvest/internal/fetcher"
	"github.com/gisfun/geoharvest/internal/stops"
	"github.com/gisfun/geoharvest/pkg/hub"
)

var stopsCmd = &cobra.Command{
	Use:   "stops",
	Short: "Harvest the LTA bus-stop registry",
	Long: `Download the LTA bus-stop XML feed, normalize every stop into a
tabular geospatial file, and publish it to the configured dataset
repository. Any failure is fatal: the feed is a single document.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := zap.L().With(zap.String("command", "stops"))

		format, err := export.ParseFormat(cfg.Export.Format)
		if err != nil {
			return err
		}

		var uploader export.Uploader
		if cfg.Hub.Token != "" {
			uploader = hub.NewClient(cfg.Hub.Repo, cfg.Hub.Token, hub.WithRevision(cfg.Hub.Revision))
		} else {
			log.Warn("hub token not set, files stay local")
		}
		publisher := export.NewPublisher(cfg.Export.Dir, format, uploader)

		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Timeout: 2 * time.Minute,
		})

		pipeline := stops.NewPipeline(f, publisher, cfg.Stops.FeedURL)

		count, err := pipeline.Run(ctx)
		if err != nil {
			return err
		}

		log.Info("bus stop harvest succeeded", zap.Int("stops", count))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopsCmd)
}
