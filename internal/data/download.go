package data

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/censusdis/internal/census"
	"github.com/sells-group/censusdis/internal/fetcher"
	"github.com/sells-group/censusdis/internal/frame"
	"github.com/sells-group/censusdis/internal/geography"
)

// Request describes one data download.
type Request struct {
	Dataset   string
	Year      int
	Variables []string
	// Geography filters, keyed by component name or its snake form
	// ("state", "block_group"). Multiple values are OR-ed by the API.
	Geography    map[string][]string
	WithGeometry bool
	// APIKey overrides the Downloader's key for this request.
	APIKey string
}

// Download runs req and returns the result: geography columns first, then
// the variables in the order requested, plus a geometry column when asked.
func (d *Downloader) Download(ctx context.Context, req Request) (*frame.Frame, error) {
	if len(req.Variables) == 0 {
		return nil, census.NewAPIError("data: no variables requested from %s %d", req.Dataset, req.Year)
	}
	req.Variables = dedupe(req.Variables)

	bindings, err := d.resolveBindings(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(req.Variables) > MaxVariablesPerQuery {
		return d.downloadConcat(ctx, req, bindings)
	}
	return d.downloadOne(ctx, req, bindings)
}

// DownloadDetail is the old name of Download.
//
// Deprecated: use Download.
func (d *Downloader) DownloadDetail(ctx context.Context, req Request) (*frame.Frame, error) {
	d.deprecated.Do(func() {
		zap.L().Warn("data: DownloadDetail is deprecated, use Download instead")
	})
	return d.Download(ctx, req)
}

// resolveBindings maps snake keys to component names and joins multiple
// values into the comma separated form the API takes.
func (d *Downloader) resolveBindings(ctx context.Context, req Request) (map[string]string, error) {
	if _, err := d.geo.PathSpecs(ctx, req.Dataset, req.Year); err != nil {
		return nil, eris.Wrap(err, "data: load geography")
	}
	bindings := make(map[string]string, len(req.Geography))
	for k, vals := range req.Geography {
		c, err := d.geo.ComponentFromSnake(ctx, req.Dataset, req.Year, k)
		if err != nil {
			return nil, eris.Wrap(err, "data: resolve geography")
		}
		bindings[c] = strings.Join(vals, ",")
	}
	return bindings, nil
}

func (d *Downloader) downloadOne(ctx context.Context, req Request, bindings map[string]string) (*frame.Frame, error) {
	log := zap.L().With(
		zap.String("dataset", req.Dataset),
		zap.Int("year", req.Year),
	)

	// Look up every variable first so an unknown one fails before the
	// data query is made.
	for _, v := range req.Variables {
		if _, err := d.vars.Get(ctx, req.Dataset, req.Year, v); err != nil {
			log.Debug("variable lookup failed", zap.String("variable", v), zap.Error(err))
			return nil, census.NewAPIError(
				"data: unable to get metadata for variable %s in %s %d from the Census API; check %s to see that it exists, or %s for every variable in the dataset",
				v, req.Dataset, req.Year,
				d.urls.VariableURL(req.Dataset, req.Year, v, "html"),
				d.urls.VariablesURL(req.Dataset, req.Year, "html"),
			)
		}
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = d.apiKey
	}
	u, params, bp, err := d.TableURL(ctx, req.Dataset, req.Year, req.Variables, apiKey, bindings)
	if err != nil {
		return nil, err
	}

	f, err := d.fetchTable(ctx, u, params, req.Variables, bp)
	if err != nil {
		return nil, err
	}

	for _, v := range req.Variables {
		meta, err := d.vars.Get(ctx, req.Dataset, req.Year, v)
		if err != nil {
			return nil, eris.Wrapf(err, "data: metadata for %s", v)
		}
		col := strings.ToUpper(v)
		s := f.Column(col)
		if s == nil {
			return nil, eris.Errorf("data: response from %s lacks column %s", req.Dataset, col)
		}
		conv, err := convertSeries(s, meta.PredicateType)
		if err != nil {
			return nil, eris.Wrapf(err, "data: convert %s", col)
		}
		if err := f.Replace(conv); err != nil {
			return nil, err
		}
	}

	// Geography columns first, then variables in request order.
	varCols := make([]string, len(req.Variables))
	isVar := make(map[string]bool, len(req.Variables))
	for i, v := range req.Variables {
		varCols[i] = strings.ToUpper(v)
		isVar[varCols[i]] = true
	}
	var order []string
	for _, n := range f.Names() {
		if !isVar[n] {
			order = append(order, n)
		}
	}
	order = append(order, varCols...)
	f, err = f.Select(order...)
	if err != nil {
		return nil, eris.Wrap(err, "data: reorder columns")
	}

	log.Debug("downloaded table", zap.Int("rows", f.NumRows()), zap.Int("columns", len(order)))

	if !req.WithGeometry {
		return f, nil
	}

	level, _ := bp.Innermost()
	_, scope := bp.Outermost()
	return d.addGeographyForQuery(ctx, f, req.Year, scope, level)
}

// fetchTable runs the query and turns the response into string columns.
func (d *Downloader) fetchTable(ctx context.Context, u string, params url.Values, vars []string, bp geography.BoundPath) (*frame.Frame, error) {
	requested := make(map[string]bool, len(vars))
	for _, v := range vars {
		requested[strings.ToUpper(v)] = true
	}

	body, err := d.fetcher.Download(ctx, u+"?"+params.Encode())
	if errors.Is(err, fetcher.ErrNoContent) {
		// No rows matched. Build the columns the query would have had.
		names := make([]string, 0, len(bp.Spec.Path)+len(vars))
		for _, c := range bp.Spec.Path {
			names = append(names, geography.ColumnName(c))
		}
		for _, v := range vars {
			names = append(names, strings.ToUpper(v))
		}
		return frame.Empty(names...), nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "data: query")
	}
	defer body.Close() //nolint:errcheck

	header, rows, err := fetcher.DecodeTable(body)
	if err != nil {
		return nil, eris.Wrap(err, "data: decode response")
	}

	cols := make([]*frame.Series, len(header))
	for j, h := range header {
		name := strings.ToUpper(h)
		if !requested[name] {
			name = geography.ColumnName(h)
		}
		values := make([]*string, len(rows))
		for i, r := range rows {
			values[i] = r[j]
		}
		cols[j] = frame.NewStrings(name, values)
	}
	f, err := frame.New(cols...)
	if err != nil {
		return nil, eris.Wrap(err, "data: build frame")
	}
	return f, nil
}

// TableURL returns the query URL, its parameters and the geography path the
// bindings matched.
func (d *Downloader) TableURL(ctx context.Context, dataset string, year int, vars []string, apiKey string, bindings map[string]string) (string, url.Values, geography.BoundPath, error) {
	specs, err := d.geo.PathSpecs(ctx, dataset, year)
	if err != nil {
		return "", nil, geography.BoundPath{}, eris.Wrap(err, "data: load geography")
	}

	bp, ok := geography.PartialPrefixMatch(specs, bindings)
	if !ok {
		lines := make([]string, len(specs))
		for i, s := range specs {
			lines[i] = s.String()
		}
		return "", nil, geography.BoundPath{}, census.NewAPIError(
			"data: unable to match the geography specification %s.\nSupported geographies for dataset=%q in year=%d are:\n%s",
			formatBindings(bindings), dataset, year, strings.Join(lines, "\n"),
		)
	}

	q := geography.QuerySpec{
		URLs:      d.urls,
		Dataset:   dataset,
		Year:      year,
		Variables: vars,
		Bound:     bp,
		APIKey:    apiKey,
	}
	u, params := q.TableURL()
	return u, params, bp, nil
}

// convertSeries applies the variable's predicateType. Ints with nulls
// become floats, since ints have no null. Ints that do not parse fall back
// to floats, and stay text when that fails too.
func convertSeries(s *frame.Series, predicateType string) (*frame.Series, error) {
	switch predicateType {
	case "int":
		if s.HasNulls() {
			if f, err := s.ToFloat(); err == nil {
				return f, nil
			}
			return s, nil
		}
		if i, err := s.ToInt(); err == nil {
			return i, nil
		}
		if f, err := s.ToFloat(); err == nil {
			return f, nil
		}
		return s, nil
	case "float":
		return s.ToFloat()
	default:
		return s, nil
	}
}

func dedupe(vars []string) []string {
	seen := make(map[string]bool, len(vars))
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		k := strings.ToUpper(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

func formatBindings(b map[string]string) string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", geography.Snake(k), b[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
