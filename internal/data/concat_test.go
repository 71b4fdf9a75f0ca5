package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/censusdis/internal/census"
)

func TestChunkVariables(t *testing.T) {
	vars := make([]string, 101)
	for i := range vars {
		vars[i] = "V"
	}
	chunks := chunkVariables(vars, MaxVariablesPerQuery)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 50)
	assert.Len(t, chunks[1], 50)
	assert.Len(t, chunks[2], 1)

	assert.Len(t, chunkVariables(vars[:50], MaxVariablesPerQuery), 1)
	assert.Empty(t, chunkVariables(nil, MaxVariablesPerQuery))
}

func TestDownload_WideAligned(t *testing.T) {
	c := newFakeCensus(t)
	names := c.addIntVars(60)
	d, _ := newTestDownloader(t, c)

	f, err := d.Download(context.Background(), Request{
		Dataset:   testDataset,
		Year:      testYear,
		Variables: names,
		Geography: map[string][]string{"state": {"*"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, c.dataQueries())
	assert.Equal(t, append([]string{"STATE"}, names...), f.Names())
	assert.Equal(t, 3, f.NumRows())
	assert.Equal(t, []any{int64(100), int64(200), int64(300)}, f.Column("V060").Values)
	assert.Equal(t, map[string]int{"merge": 0, "concat": 1}, d.StrategyMetrics())
}

func TestDownload_WideMerged(t *testing.T) {
	c := newFakeCensus(t)
	names := c.addIntVars(60)
	c.reverseWhen = "V051"
	d, _ := newTestDownloader(t, c)

	f, err := d.Download(context.Background(), Request{
		Dataset:   testDataset,
		Year:      testYear,
		Variables: names,
		Geography: map[string][]string{"state": {"*"}},
	})
	require.NoError(t, err)

	assert.Equal(t, append([]string{"STATE"}, names...), f.Names())
	assert.Equal(t, []any{"01", "34", "72"}, f.Column("STATE").Values, "rows keep the order of the first chunk")
	assert.Equal(t, []any{int64(100), int64(200), int64(300)}, f.Column("V001").Values)
	assert.Equal(t, []any{int64(100), int64(200), int64(300)}, f.Column("V051").Values, "second chunk joined by state")
	assert.Equal(t, map[string]int{"merge": 1, "concat": 0}, d.StrategyMetrics())
}

func TestDownload_WideMisalignedDuplicates(t *testing.T) {
	c := newFakeCensus(t)
	names := c.addIntVars(60)
	c.reverseWhen = "V051"
	c.geo["state"] = geoRows{cols: []string{"state"}, rows: [][]string{{"01"}, {"01"}, {"34"}}}
	d, _ := newTestDownloader(t, c)

	_, err := d.Download(context.Background(), Request{
		Dataset:   testDataset,
		Year:      testYear,
		Variables: names,
		Geography: map[string][]string{"state": {"*"}},
	})
	require.Error(t, err)
	assert.True(t, census.IsAPIError(err))
	assert.Contains(t, err.Error(), "[STATE]")
	assert.Equal(t, map[string]int{"merge": 0, "concat": 0}, d.StrategyMetrics())
}

func TestDownload_WideGeometryFromFirstChunk(t *testing.T) {
	c := newFakeCensus(t)
	c.addStateShapes()
	names := c.addIntVars(55)
	d, f := newTestDownloader(t, c)

	out, err := d.Download(context.Background(), Request{
		Dataset:      testDataset,
		Year:         testYear,
		Variables:    names,
		Geography:    map[string][]string{"state": {"*"}},
		WithGeometry: true,
	})
	require.NoError(t, err)
	require.True(t, out.HasGeometry())
	assert.NotNil(t, out.Geometry()[0])
	assert.Len(t, out.Names(), 56)

	zips := 0
	for _, u := range f.URLs() {
		if u == testShapeBase+"/GENZ2020/shp/cb_2020_us_state_500k.zip" {
			zips++
		}
	}
	assert.Equal(t, 1, zips)
}

func TestDownload_WideChunkError(t *testing.T) {
	c := newFakeCensus(t)
	names := c.addIntVars(60)
	delete(c.vars, "V055")
	d, _ := newTestDownloader(t, c)

	_, err := d.Download(context.Background(), Request{
		Dataset:   testDataset,
		Year:      testYear,
		Variables: names,
		Geography: map[string][]string{"state": {"*"}},
	})
	require.Error(t, err)
	assert.True(t, census.IsAPIError(err))
	assert.Contains(t, err.Error(), "V055")
}

func TestStrategyMetrics_ReturnsCopy(t *testing.T) {
	d, _ := newTestDownloader(t, newFakeCensus(t))
	m := d.StrategyMetrics()
	m["merge"] = 10
	assert.Equal(t, 0, d.StrategyMetrics()["merge"])
}
