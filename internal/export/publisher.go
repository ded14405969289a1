package export

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gisfun/geoharvest/pkg/onemap"
)

// Format selects the output file format.
type Format string

const (
	FormatShapefile Format = "shapefile"
	FormatGeoJSON   Format = "geojson"
)

// ParseFormat converts a config string into a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatShapefile, FormatGeoJSON:
		return Format(s), nil
	default:
		return "", eris.Errorf("export: unknown format %q (valid: shapefile, geojson)", s)
	}
}

// Uploader pushes one local file into the remote dataset repository.
type Uploader interface {
	Upload(ctx context.Context, localPath, repoPath string) error
}

// Publisher writes harvested record sets to local geospatial files and
// hands each file to the uploader. It is the export collaborator of both
// the address range driver and the bus-stop pipeline.
type Publisher struct {
	dir      string
	format   Format
	uploader Uploader // nil disables the remote publish step
}

// NewPublisher creates a publisher writing into dir.
func NewPublisher(dir string, format Format, uploader Uploader) *Publisher {
	return &Publisher{dir: dir, format: format, uploader: uploader}
}

// ExportAddresses publishes an address record set for the given postal-code
// range. The remote path mirrors the chunked dataset layout:
// chunks/addresses_{start}_{end}.*.
func (p *Publisher) ExportAddresses(ctx context.Context, records []onemap.Record, start, end int) error {
	rows := make([]Record, len(records))
	for i, r := range records {
		rows[i] = Record(r)
	}

	table := NewTable(rows, "LATITUDE", "LONGITUDE")
	base := fmt.Sprintf("addresses_%06d_%06d", start, end)
	return p.publish(ctx, table, base, "chunks")
}

// ExportStops publishes the bus-stop registry at the repository root.
func (p *Publisher) ExportStops(ctx context.Context, records []Record) error {
	table := NewTable(records, "lat", "long")
	return p.publish(ctx, table, "bus_stops", "")
}

func (p *Publisher) publish(ctx context.Context, t *Table, base, repoDir string) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return eris.Wrapf(err, "export: create output dir %s", p.dir)
	}

	var files []string
	var err error
	switch p.format {
	case FormatGeoJSON:
		files, err = WriteGeoJSON(filepath.Join(p.dir, base+".geojson"), t)
	default:
		files, err = WriteShapefile(filepath.Join(p.dir, base+".shp"), t)
	}
	if err != nil {
		return err
	}

	zap.L().Info("wrote dataset files",
		zap.String("component", "export.publisher"),
		zap.String("base", base),
		zap.Int("rows", t.Len()),
		zap.Strings("files", files),
	)

	if p.uploader == nil {
		return nil
	}

	for _, f := range files {
		repoPath := path.Join(repoDir, filepath.Base(f))
		if err := p.uploader.Upload(ctx, f, repoPath); err != nil {
			return eris.Wrapf(err, "export: upload %s", repoPath)
		}
	}
	return nil
}
