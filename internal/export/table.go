// Package export converts harvested records into tabular geospatial files
// and publishes them to the remote dataset repository.
package export

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Record is one raw row as produced by a harvester.
type Record = map[string]any

// Row is one table row: attribute values aligned with Table.Columns plus
// the derived point coordinates. Lat/Lon are NaN when the source value was
// missing or non-numeric.
type Row struct {
	Attrs []string
	Lat   float64
	Lon   float64
}

// HasPoint reports whether the row carries usable coordinates.
func (r Row) HasPoint() bool {
	return !math.IsNaN(r.Lat) && !math.IsNaN(r.Lon)
}

// Table is an in-memory tabular view over a record set. Columns are the
// sorted union of all record fields, so ragged records line up.
type Table struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// NewTable builds a table from raw records, deriving coordinates from the
// named latitude/longitude fields. Field content is carried over unchanged;
// only the coordinate columns are coerced to numbers, with NaN as the
// missing marker.
func NewTable(records []Record, latField, lonField string) *Table {
	colSet := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			colSet[k] = struct{}{}
		}
	}

	cols := make([]string, 0, len(colSet))
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	t := &Table{Columns: cols}
	for _, rec := range records {
		row := Row{
			Attrs: make([]string, len(cols)),
			Lat:   coerceFloat(rec[latField]),
			Lon:   coerceFloat(rec[lonField]),
		}
		for i, c := range cols {
			row.Attrs[i] = stringify(rec[c])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// coerceFloat converts a raw field value to float64, returning NaN for
// anything that does not parse as a number.
func coerceFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// stringify renders a raw field value for an attribute column.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
