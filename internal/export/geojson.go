package export

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

type feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

// WriteGeoJSON writes the table as a GeoJSON FeatureCollection of WGS84
// points (lon/lat axis order per RFC 7946). Rows without usable coordinates
// become features with null geometry so no record is dropped.
func WriteGeoJSON(path string, t *Table) ([]string, error) {
	fc := featureCollection{
		Type:     "FeatureCollection",
		Features: make([]feature, 0, t.Len()),
	}

	missing := 0
	for _, row := range t.Rows {
		props := make(map[string]any, len(t.Columns))
		for i, col := range t.Columns {
			props[col] = row.Attrs[i]
		}

		f := feature{Type: "Feature", Geometry: json.RawMessage("null"), Properties: props}
		if row.HasPoint() {
			pt := geom.NewPointFlat(geom.XY, []float64{row.Lon, row.Lat}).SetSRID(4326)
			g, err := geojson.Marshal(pt)
			if err != nil {
				return nil, eris.Wrap(err, "export: marshal point")
			}
			f.Geometry = g
		} else {
			missing++
		}
		fc.Features = append(fc.Features, f)
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, eris.Wrap(err, "export: marshal geojson")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, eris.Wrapf(err, "export: write geojson %s", path)
	}

	if missing > 0 {
		zap.L().Warn("rows without coordinates written with null geometry",
			zap.String("component", "export.geojson"),
			zap.String("path", path),
			zap.Int("rows", missing),
		)
	}

	return []string{path}, nil
}
