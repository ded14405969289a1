package export

import (
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// wgs84WKT is the EPSG:4326 definition written to the .prj sidecar so GIS
// tools pick up the coordinate reference system.
const wgs84WKT = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// dbfNameLimit is the DBF attribute name limit (dBase III).
const dbfNameLimit = 10

// dbfValueWidth is the fixed attribute column width.
const dbfValueWidth = 254

// WriteShapefile writes the table as a WGS84 point shapefile rooted at
// shpPath (which must end in .shp) and returns the paths of every file
// written, including the .shx/.dbf/.prj sidecars. Rows without usable
// coordinates carry no point and are skipped with a logged count.
func WriteShapefile(shpPath string, t *Table) ([]string, error) {
	if !strings.HasSuffix(shpPath, ".shp") {
		return nil, eris.Errorf("export: shapefile path %q must end in .shp", shpPath)
	}

	w, err := shp.Create(shpPath, shp.POINT)
	if err != nil {
		return nil, eris.Wrapf(err, "export: create shapefile %s", shpPath)
	}

	names := dbfFieldNames(t.Columns)
	fields := make([]shp.Field, len(t.Columns))
	for i := range t.Columns {
		fields[i] = shp.StringField(names[i], dbfValueWidth)
	}
	if err := w.SetFields(fields); err != nil {
		w.Close()
		return nil, eris.Wrapf(err, "export: create attribute table for %s", shpPath)
	}

	written := 0
	skipped := 0
	for _, row := range t.Rows {
		if !row.HasPoint() {
			skipped++
			continue
		}
		w.Write(&shp.Point{X: row.Lon, Y: row.Lat})
		for col, val := range row.Attrs {
			if err := w.WriteAttribute(written, col, dbfValue(val)); err != nil {
				w.Close()
				return nil, eris.Wrapf(err, "export: write attribute %s row %d", names[col], written)
			}
		}
		written++
	}
	w.Close()

	if skipped > 0 {
		zap.L().Warn("skipped rows without coordinates",
			zap.String("component", "export.shapefile"),
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	base := strings.TrimSuffix(shpPath, ".shp")

	// go-shp names the attribute file without the dot separator; move it
	// next to the other sidecars.
	dbfPath := base + ".dbf"
	if _, err := os.Stat(base + "dbf"); err == nil {
		if err := os.Rename(base+"dbf", dbfPath); err != nil {
			return nil, eris.Wrapf(err, "export: rename attribute table %s", dbfPath)
		}
	}

	prjPath := base + ".prj"
	if err := os.WriteFile(prjPath, []byte(wgs84WKT), 0o644); err != nil {
		return nil, eris.Wrapf(err, "export: write prj %s", prjPath)
	}

	files := []string{shpPath, base + ".shx", dbfPath, prjPath}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return nil, eris.Wrapf(err, "export: shapefile component %s", f)
		}
	}
	return files, nil
}

// dbfValue fits an attribute value into the fixed column width without
// splitting a multi-byte rune.
func dbfValue(val string) string {
	if len(val) <= dbfValueWidth {
		return val
	}
	cut := dbfValueWidth
	for cut > 0 && !utf8.RuneStart(val[cut]) {
		cut--
	}
	return val[:cut]
}

// dbfFieldNames fits the column names into the DBF name limit, keeping them
// unique after uppercasing and truncation.
func dbfFieldNames(cols []string) []string {
	seen := make(map[string]bool, len(cols))
	names := make([]string, len(cols))
	for i, col := range cols {
		upper := strings.ToUpper(col)
		name := upper
		if len(name) > dbfNameLimit {
			name = name[:dbfNameLimit]
		}
		// Suffixes derived from the column index stay distinct per column
		// and per iteration, so this terminates.
		for n := i; seen[name]; n += len(cols) {
			suffix := strconv.Itoa(n)
			keep := dbfNameLimit - len(suffix)
			if keep < 0 {
				keep = 0
			}
			if keep > len(upper) {
				keep = len(upper)
			}
			name = upper[:keep] + suffix
		}
		seen[name] = true
		names[i] = name
	}
	return names
}
