package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stopEntry struct {
	Name    string `xml:"name,attr"`
	Details string `xml:"details"`
}

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<busstops>
  <busstop name="Opp Blk 1"><details>Aft Jln Bukit Merah</details></busstop>
  <busstop name="Marina Ctr Ter"><details></details></busstop>
  <other>ignored</other>
</busstops>`

func TestEachElement_DecodesMatchingElements(t *testing.T) {
	t.Parallel()

	var items []stopEntry
	err := EachElement(context.Background(), strings.NewReader(sampleFeed), "busstop", func(e stopEntry) error {
		items = append(items, e)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "Opp Blk 1", items[0].Name)
	assert.Equal(t, "Aft Jln Bukit Merah", items[0].Details)
	assert.Equal(t, "Marina Ctr Ter", items[1].Name)
}

func TestEachElement_MalformedDocument(t *testing.T) {
	t.Parallel()

	err := EachElement(context.Background(), strings.NewReader("<busstops><busstop"), "busstop", func(stopEntry) error {
		return nil
	})
	require.Error(t, err)
}

func TestEachElement_CallbackErrorStopsDecode(t *testing.T) {
	t.Parallel()

	calls := 0
	err := EachElement(context.Background(), strings.NewReader(sampleFeed), "busstop", func(stopEntry) error {
		calls++
		return assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestEachElement_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := EachElement(ctx, strings.NewReader(sampleFeed), "busstop", func(stopEntry) error {
		return nil
	})
	require.Error(t, err)
}
