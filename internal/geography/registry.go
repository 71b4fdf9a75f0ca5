package geography

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/censusdis/internal/census"
	"github.com/sells-group/censusdis/internal/fetcher"
)

type geoLevel struct {
	Name            string   `json:"name"`
	GeoLevelDisplay string   `json:"geoLevelDisplay"`
	GeoLevelID      string   `json:"geoLevelId"`
	Requires        []string `json:"requires"`
	Wildcard        []string `json:"wildcard"`
}

type geographyDoc struct {
	FIPS []geoLevel `json:"fips"`
}

type specKey struct {
	dataset string
	year    int
}

// Registry fetches and remembers the geography hierarchies of datasets.
type Registry struct {
	fetcher fetcher.Fetcher
	urls    census.URLs

	mu    sync.RWMutex
	specs map[specKey][]PathSpec
	sf    singleflight.Group
}

// NewRegistry returns a Registry reading geography.json from the Census API
// at baseURL.
func NewRegistry(f fetcher.Fetcher, baseURL string) *Registry {
	return &Registry{
		fetcher: f,
		urls:    census.URLs{Base: baseURL},
		specs:   make(map[specKey][]PathSpec),
	}
}

// PathSpecs returns every hierarchy the dataset supports, in the order the
// API lists them.
func (r *Registry) PathSpecs(ctx context.Context, dataset string, year int) ([]PathSpec, error) {
	k := specKey{dataset, year}

	r.mu.RLock()
	specs, ok := r.specs[k]
	r.mu.RUnlock()
	if ok {
		return specs, nil
	}

	res, err, _ := r.sf.Do(fmt.Sprintf("%s|%d", dataset, year), func() (any, error) {
		specs, err := r.fetch(ctx, dataset, year)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.specs[k] = specs
		r.mu.Unlock()
		return specs, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "geography: load %s %d", dataset, year)
	}
	return res.([]PathSpec), nil
}

func (r *Registry) fetch(ctx context.Context, dataset string, year int) ([]PathSpec, error) {
	body, err := r.fetcher.Download(ctx, r.urls.GeographyURL(dataset, year))
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	doc, err := fetcher.DecodeJSONObject[geographyDoc](body)
	if err != nil {
		return nil, err
	}

	specs := make([]PathSpec, 0, len(doc.FIPS))
	for _, lvl := range doc.FIPS {
		path := make([]string, 0, len(lvl.Requires)+1)
		path = append(path, lvl.Requires...)
		path = append(path, lvl.Name)

		wc := make(map[string]bool, len(lvl.Wildcard))
		for _, w := range lvl.Wildcard {
			wc[w] = true
		}

		id := lvl.GeoLevelDisplay
		if id == "" {
			id = lvl.GeoLevelID
		}
		specs = append(specs, PathSpec{Path: path, Wildcard: wc, GeoLevel: id})
	}

	zap.L().Debug("geography: loaded path specs",
		zap.String("dataset", dataset),
		zap.Int("year", year),
		zap.Int("specs", len(specs)),
	)
	return specs, nil
}

// SnakeSpecs maps the snake form of each innermost component to the specs
// ending in it. Some components, county subdivision for example, are
// reachable by more than one path.
func (r *Registry) SnakeSpecs(ctx context.Context, dataset string, year int) (map[string][]PathSpec, error) {
	specs, err := r.PathSpecs(ctx, dataset, year)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]PathSpec, len(specs))
	for _, s := range specs {
		k := Snake(s.Innermost())
		out[k] = append(out[k], s)
	}
	return out, nil
}

// ComponentFromSnake maps a snake key back to the component it came from.
// Keys that match no component are returned unchanged.
func (r *Registry) ComponentFromSnake(ctx context.Context, dataset string, year int, key string) (string, error) {
	specs, err := r.PathSpecs(ctx, dataset, year)
	if err != nil {
		return "", err
	}
	for _, s := range specs {
		for _, c := range s.Path {
			if Snake(c) == key {
				return c, nil
			}
		}
	}
	return key, nil
}

// PartialPrefixMatch matches bindings, keyed by component name, against the
// dataset's hierarchies.
func (r *Registry) PartialPrefixMatch(ctx context.Context, dataset string, year int, bindings map[string]string) (BoundPath, error) {
	specs, err := r.PathSpecs(ctx, dataset, year)
	if err != nil {
		return BoundPath{}, err
	}
	bp, ok := PartialPrefixMatch(specs, bindings)
	if !ok {
		return BoundPath{}, census.NewAPIError("geography: no hierarchy of %s %d matches %v", dataset, year, bindings)
	}
	return bp, nil
}

// Entry is one hierarchy of a dataset in listing form.
type Entry struct {
	Key      string   `json:"key" yaml:"key"`
	Path     []string `json:"path" yaml:"path"`
	Wildcard []string `json:"wildcard,omitempty" yaml:"wildcard,omitempty"`
	GeoLevel string   `json:"geo_level,omitempty" yaml:"geo_level,omitempty"`
}

// Entries lists the hierarchies of a dataset in the order the API gives
// them, each under the snake key of its innermost component.
func (r *Registry) Entries(ctx context.Context, dataset string, year int) ([]Entry, error) {
	specs, err := r.PathSpecs(ctx, dataset, year)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(specs))
	for i, s := range specs {
		var wc []string
		for _, c := range s.Path {
			if s.Wildcard[c] {
				wc = append(wc, c)
			}
		}
		out[i] = Entry{
			Key:      Snake(s.Innermost()),
			Path:     s.Path,
			Wildcard: wc,
			GeoLevel: s.GeoLevel,
		}
	}
	return out, nil
}
