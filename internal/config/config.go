// Package config loads application configuration from file and environment
// and bootstraps the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	OneMap  OneMapConfig  `yaml:"onemap" mapstructure:"onemap"`
	Harvest HarvestConfig `yaml:"harvest" mapstructure:"harvest"`
	Stops   StopsConfig   `yaml:"stops" mapstructure:"stops"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	Hub     HubConfig     `yaml:"hub" mapstructure:"hub"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// OneMapConfig configures the OneMap search API client.
type OneMapConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Token       string `yaml:"token" mapstructure:"token"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// HarvestConfig configures the postal-code fetch pipeline. Concurrency and
// request rate are independent knobs: the first bounds in-flight fetchers,
// the second bounds the aggregate request rate across all of them.
type HarvestConfig struct {
	Concurrency    int     `yaml:"concurrency" mapstructure:"concurrency"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	MaxAttempts    int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	ProgressEvery  int     `yaml:"progress_every" mapstructure:"progress_every"`
}

// StopsConfig configures the bus-stop registry pipeline.
type StopsConfig struct {
	FeedURL string `yaml:"feed_url" mapstructure:"feed_url"`
}

// ExportConfig configures local dataset file output.
type ExportConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"`
}

// HubConfig configures the dataset repository upload. An empty token
// disables the upload step rather than failing the run.
type HubConfig struct {
	Repo     string `yaml:"repo" mapstructure:"repo"`
	Token    string `yaml:"token" mapstructure:"token"`
	Revision string `yaml:"revision" mapstructure:"revision"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Credentials also honor their conventional unprefixed names. Both are
	// optional: the search endpoint is public and an absent hub token just
	// skips the upload step.
	_ = v.BindEnv("onemap.token", "GEOHARVEST_ONEMAP_TOKEN", "ONEMAP_TOKEN")
	_ = v.BindEnv("hub.token", "GEOHARVEST_HUB_TOKEN", "HF_TOKEN")

	// Defaults
	v.SetDefault("onemap.base_url", "https://www.onemap.gov.sg")
	v.SetDefault("onemap.timeout_secs", 20)
	v.SetDefault("harvest.concurrency", 10)
	v.SetDefault("harvest.requests_per_sec", 6.5)
	v.SetDefault("harvest.max_attempts", 4)
	v.SetDefault("harvest.progress_every", 50)
	v.SetDefault("stops.feed_url", "https://www.lta.gov.sg/map/busService/bus_stops.xml")
	v.SetDefault("export.dir", "out")
	v.SetDefault("export.format", "shapefile")
	v.SetDefault("hub.repo", "gisfun/spatial-datasets")
	v.SetDefault("hub.revision", "main")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
