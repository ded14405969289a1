// Package stops ingests the LTA bus-stop registry: a one-shot XML feed of
// every stop with name, wheelchair accessibility and coordinates.
package stops

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gisfun/geoharvest/internal/export"
	"github.com/gisfun/geoharvest/internal/fetcher"
)

// DefaultFeedURL is the public LTA bus-stop registry.
const DefaultFeedURL = "https://www.lta.gov.sg/map/busService/bus_stops.xml"

// ErrEmptyFeed is returned when the feed parses but contains no stops.
var ErrEmptyFeed = eris.New("stops: feed contains no bus stops")

// BusStop is one <busstop> entry from the feed.
type BusStop struct {
	Name        string `xml:"name,attr"`
	WAB         string `xml:"wab,attr"`
	Details     string `xml:"details"`
	Coordinates struct {
		Lat  string `xml:"lat"`
		Long string `xml:"long"`
	} `xml:"coordinates"`
}

// Exporter persists the parsed registry.
type Exporter interface {
	ExportStops(ctx context.Context, records []export.Record) error
}

// Pipeline downloads, parses and publishes the registry.
type Pipeline struct {
	fetcher  fetcher.Fetcher
	exporter Exporter
	feedURL  string
}

// NewPipeline creates a bus-stop pipeline.
func NewPipeline(f fetcher.Fetcher, exporter Exporter, feedURL string) *Pipeline {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	return &Pipeline{fetcher: f, exporter: exporter, feedURL: feedURL}
}

// Run fetches the feed, normalizes each stop into a record and hands the
// set to the exporter. Unlike the postal-code harvest, any failure here is
// fatal: the feed is a single document, so there is no partial result worth
// keeping.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	log := zap.L().With(zap.String("component", "stops.pipeline"))
	log.Info("fetching bus stop registry", zap.String("url", p.feedURL))

	body, err := p.fetcher.Download(ctx, p.feedURL)
	if err != nil {
		return 0, eris.Wrap(err, "stops: download feed")
	}
	defer body.Close() //nolint:errcheck

	var records []export.Record
	err = fetcher.EachElement(ctx, body, "busstop", func(stop BusStop) error {
		records = append(records, export.Record{
			"name":    stop.Name,
			"wab":     stop.WAB == "true",
			"details": strings.TrimSpace(stop.Details),
			"lat":     strings.TrimSpace(stop.Coordinates.Lat),
			"long":    strings.TrimSpace(stop.Coordinates.Long),
		})
		return nil
	})
	if err != nil {
		return 0, eris.Wrap(err, "stops: parse feed")
	}

	if len(records) == 0 {
		return 0, ErrEmptyFeed
	}

	log.Info("parsed bus stops", zap.Int("count", len(records)))

	if err := p.exporter.ExportStops(ctx, records); err != nil {
		return len(records), eris.Wrap(err, "stops: export")
	}
	return len(records), nil
}
