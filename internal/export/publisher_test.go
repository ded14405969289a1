package export

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gisfun/geoharvest/pkg/onemap"
)

type fakeUploader struct {
	uploads map[string]string // repoPath -> localPath
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, localPath, repoPath string) error {
	if f.err != nil {
		return f.err
	}
	if f.uploads == nil {
		f.uploads = make(map[string]string)
	}
	f.uploads[repoPath] = localPath
	return nil
}

func addressRecords() []onemap.Record {
	return []onemap.Record{
		{"POSTAL": "018989", "LATITUDE": "1.2764", "LONGITUDE": "103.8540"},
		{"POSTAL": "048616", "LATITUDE": "1.2830", "LONGITUDE": "103.8513"},
	}
}

func TestPublisher_ExportAddresses_ShapefileChunk(t *testing.T) {
	t.Parallel()

	up := &fakeUploader{}
	p := NewPublisher(filepath.Join(t.TempDir(), "out"), FormatShapefile, up)

	err := p.ExportAddresses(context.Background(), addressRecords(), 1, 500)
	require.NoError(t, err)

	// All four shapefile components land under chunks/.
	require.Len(t, up.uploads, 4)
	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj"} {
		assert.Contains(t, up.uploads, "chunks/addresses_000001_000500"+ext)
	}
}

func TestPublisher_ExportStops_GeoJSONAtRoot(t *testing.T) {
	t.Parallel()

	up := &fakeUploader{}
	p := NewPublisher(t.TempDir(), FormatGeoJSON, up)

	err := p.ExportStops(context.Background(), []Record{
		{"name": "Opp Blk 1", "wab": true, "details": "", "lat": "1.30", "long": "103.85"},
	})
	require.NoError(t, err)

	require.Len(t, up.uploads, 1)
	assert.Contains(t, up.uploads, "bus_stops.geojson")
}

func TestPublisher_NilUploaderStaysLocal(t *testing.T) {
	t.Parallel()

	p := NewPublisher(t.TempDir(), FormatGeoJSON, nil)
	err := p.ExportAddresses(context.Background(), addressRecords(), 1, 2)
	require.NoError(t, err)
}

func TestPublisher_UploadFailurePropagates(t *testing.T) {
	t.Parallel()

	up := &fakeUploader{err: assert.AnError}
	p := NewPublisher(t.TempDir(), FormatGeoJSON, up)

	err := p.ExportAddresses(context.Background(), addressRecords(), 1, 2)
	require.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, err := ParseFormat("geojson")
	require.NoError(t, err)
	assert.Equal(t, FormatGeoJSON, f)

	_, err = ParseFormat("parquet")
	assert.Error(t, err)
}
