// Package data downloads Census data into frames: it resolves geography
// filters, checks variables, splits wide requests into chunks and joins
// cartographic boundaries onto the result.
package data

import (
	"sync"

	"github.com/sells-group/censusdis/internal/census"
	"github.com/sells-group/censusdis/internal/fetcher"
	"github.com/sells-group/censusdis/internal/geography"
	"github.com/sells-group/censusdis/internal/maps"
	"github.com/sells-group/censusdis/internal/varcache"
	"github.com/sells-group/censusdis/internal/varsource"
)

// MaxVariablesPerQuery is the most variables the Census API returns in one
// query. Wider requests are split.
const MaxVariablesPerQuery = 50

const defaultConcurrency = 4

// Downloader fetches Census data. It is safe for concurrent use.
type Downloader struct {
	fetcher fetcher.Fetcher
	urls    census.URLs

	vars   varsource.Source
	geo    *geography.Registry
	shapes *maps.Readers

	apiKey        string
	concurrency   int
	shapefilePath string
	shapefileBase string
	resolution    string
	customVars    bool
	customReaders *maps.Readers

	metricsMu sync.Mutex
	merge     int
	concat    int

	deprecated sync.Once
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithAPIKey sets the Census API key sent with every data query.
func WithAPIKey(key string) Option {
	return func(d *Downloader) { d.apiKey = key }
}

// WithShapefilePath sets where cartographic boundary files are cached.
func WithShapefilePath(path string) Option {
	return func(d *Downloader) { d.shapefilePath = path }
}

// WithShapefileBaseURL overrides the root of the boundary file tree.
func WithShapefileBaseURL(base string) Option {
	return func(d *Downloader) { d.shapefileBase = base }
}

// WithResolution selects the boundary resolution: 500k, 5m or 20m.
func WithResolution(res string) Option {
	return func(d *Downloader) { d.resolution = res }
}

// WithConcurrency caps how many chunk queries run at once.
func WithConcurrency(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithBaseURL overrides the root of the Census data API.
func WithBaseURL(base string) Option {
	return func(d *Downloader) { d.urls = census.URLs{Base: base} }
}

// WithVariableSource replaces the default in-memory variable cache, for
// example with one backed by a persistent store.
func WithVariableSource(src varsource.Source) Option {
	return func(d *Downloader) {
		d.vars = src
		d.customVars = true
	}
}

// WithShapeReaders replaces the boundary file readers.
func WithShapeReaders(rs *maps.Readers) Option {
	return func(d *Downloader) { d.customReaders = rs }
}

// New returns a Downloader that issues its requests through f.
func New(f fetcher.Fetcher, opts ...Option) *Downloader {
	d := &Downloader{
		fetcher:     f,
		concurrency: defaultConcurrency,
		resolution:  census.DefaultResolution,
	}
	for _, o := range opts {
		o(d)
	}
	if !d.customVars {
		d.vars = varcache.New(varsource.NewAPISource(f, d.urls.Base))
	}
	d.geo = geography.NewRegistry(f, d.urls.Base)
	if d.customReaders != nil {
		d.shapes = d.customReaders
	} else {
		d.shapes = maps.NewReaders(f, d.shapefilePath, d.resolution, d.shapefileBase)
	}
	return d
}

// Variables returns the variable metadata source.
func (d *Downloader) Variables() varsource.Source {
	return d.vars
}

// Geography returns the geography registry.
func (d *Downloader) Geography() *geography.Registry {
	return d.geo
}

// URLs returns the Census API URL builder in use.
func (d *Downloader) URLs() census.URLs {
	return d.urls
}

// ShapefilePath returns where boundary files are cached.
func (d *Downloader) ShapefilePath() string {
	return d.shapes.Root()
}

// StrategyMetrics reports how often wide downloads were reassembled by
// concatenation and by merging.
func (d *Downloader) StrategyMetrics() map[string]int {
	d.metricsMu.Lock()
	defer d.metricsMu.Unlock()
	return map[string]int{"merge": d.merge, "concat": d.concat}
}

func (d *Downloader) countStrategy(merge bool) {
	d.metricsMu.Lock()
	defer d.metricsMu.Unlock()
	if merge {
		d.merge++
	} else {
		d.concat++
	}
}
