package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gisfun/geoharvest/internal/export"
	"github.com/gisfun/geoharvest/internal/harvest"
	"github.com/gisfun/geoharvest/internal/resilience"
	"github.com/gisfun/geoharvest/pkg/hub"
	"github.com/gisfun/geoharvest/pkg/onemap"
)

var addressesCmd = &cobra.Command{
	Use:   "addresses <start> <end>",
	Short: "Harvest geocoded addresses for a postal-code range",
	Long: `Harvest geocoded address records for every postal code in the
inclusive range [start, end], write them as a tabular geospatial file, and
publish the file to the configured dataset repository.

Per-key fetch failures degrade to partial data and never fail the run.
The exit status is non-zero when nothing was exported: either the whole
range came back empty or the export/upload step failed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		start, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid start %q: %w", args[0], err)
		}
		end, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid end %q: %w", args[1], err)
		}

		runID := uuid.NewString()
		log := zap.L().With(
			zap.String("command", "addresses"),
			zap.String("run_id", runID),
		)

		// One token bucket shared by every fetcher, independent of the
		// concurrency cap.
		limiter := rate.NewLimiter(rate.Limit(cfg.Harvest.RequestsPerSec), cfg.Harvest.Concurrency)

		// Pin the transport's connection count to the fetcher cap so queued
		// keys cannot open connections before they are admitted.
		httpClient := &http.Client{
			Timeout: time.Duration(cfg.OneMap.TimeoutSecs) * time.Second,
			Transport: &http.Transport{
				MaxConnsPerHost:     cfg.Harvest.Concurrency,
				MaxIdleConnsPerHost: cfg.Harvest.Concurrency,
				IdleConnTimeout:     90 * time.Second,
			},
		}

		opts := []onemap.Option{
			onemap.WithBaseURL(cfg.OneMap.BaseURL),
			onemap.WithHTTPClient(httpClient),
			onemap.WithLimiter(limiter),
		}
		if cfg.OneMap.Token != "" {
			opts = append(opts, onemap.WithToken(cfg.OneMap.Token))
		}
		client := onemap.NewClient(opts...)

		retry := resilience.DefaultPolicy()
		retry.MaxAttempts = cfg.Harvest.MaxAttempts

		engine := harvest.NewEngine(
			harvest.NewFetcher(client, retry),
			cfg.Harvest.Concurrency,
			cfg.Harvest.ProgressEvery,
		)

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

		driver := harvest.NewRangeDriver(engine, publisher)

		log.Info("starting address harvest",
			zap.String("range", fmt.Sprintf("%06d-%06d", start, end)),
			zap.Int("concurrency", cfg.Harvest.Concurrency),
			zap.Float64("requests_per_sec", cfg.Harvest.RequestsPerSec),
		)

		stats, err := driver.Run(ctx, start, end)
		if err != nil {
			return err
		}

		log.Info("address harvest succeeded",
			zap.Int("keys", stats.Total),
			zap.Int("records", stats.Records),
			zap.Int("partial", stats.Partial),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addressesCmd)
}
