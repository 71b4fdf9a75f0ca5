package varsource

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/censusdis/internal/census"
	"github.com/sells-group/censusdis/internal/fetcher"
)

// pseudoVariables show up in group listings but are query predicates, not
// variables.
var pseudoVariables = map[string]bool{
	"for":   true,
	"in":    true,
	"ucgid": true,
}

// APISource reads variable metadata from the Census API.
type APISource struct {
	fetcher fetcher.Fetcher
	urls    census.URLs
}

// NewAPISource returns a Source backed by the Census API at baseURL. An empty
// baseURL uses census.DefaultBaseURL.
func NewAPISource(f fetcher.Fetcher, baseURL string) *APISource {
	return &APISource{fetcher: f, urls: census.URLs{Base: baseURL}}
}

// URLs returns the URL builder the source queries.
func (s *APISource) URLs() census.URLs {
	return s.urls
}

// Get implements Source.
func (s *APISource) Get(ctx context.Context, dataset string, year int, name string) (*Variable, error) {
	v, err := fetchJSON[Variable](ctx, s.fetcher, s.urls.VariableURL(dataset, year, name, "json"))
	if err != nil {
		return nil, eris.Wrapf(err, "varsource: get %s %d %s", dataset, year, name)
	}
	if v.Name == "" {
		v.Name = name
	}
	return v, nil
}

// GetGroup implements Source. The pseudo-variables for, in and ucgid are
// dropped and every variable carries its own name.
func (s *APISource) GetGroup(ctx context.Context, dataset string, year int, group string) (*Group, error) {
	g, err := fetchJSON[Group](ctx, s.fetcher, s.urls.GroupURL(dataset, year, group))
	if err != nil {
		return nil, eris.Wrapf(err, "varsource: get group %s %d %q", dataset, year, group)
	}

	vars := make(map[string]Variable, len(g.Variables))
	for name, v := range g.Variables {
		if pseudoVariables[name] {
			continue
		}
		v.Name = name
		vars[name] = v
	}
	g.Variables = vars

	zap.L().Debug("varsource: loaded group",
		zap.String("dataset", dataset),
		zap.Int("year", year),
		zap.String("group", group),
		zap.Int("variables", len(vars)),
	)
	return g, nil
}

// GetAllGroups implements Source.
func (s *APISource) GetAllGroups(ctx context.Context, dataset string, year int) (*GroupList, error) {
	gl, err := fetchJSON[GroupList](ctx, s.fetcher, s.urls.AllGroupsURL(dataset, year))
	if err != nil {
		return nil, eris.Wrapf(err, "varsource: list groups %s %d", dataset, year)
	}
	return gl, nil
}

// GetDatasets implements Source.
func (s *APISource) GetDatasets(ctx context.Context, year int) (*Catalog, error) {
	c, err := fetchJSON[Catalog](ctx, s.fetcher, s.urls.DatasetsURL(year))
	if err != nil {
		return nil, eris.Wrapf(err, "varsource: list datasets %d", year)
	}
	return c, nil
}

func fetchJSON[T any](ctx context.Context, f fetcher.Fetcher, url string) (*T, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck
	return fetcher.DecodeJSONObject[T](body)
}
