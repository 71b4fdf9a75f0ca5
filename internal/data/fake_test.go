package data

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/jonas-p/go-shp"

	"github.com/sells-group/censusdis/internal/fetcher/fetchertest"
	"github.com/sells-group/censusdis/internal/maps/mapstest"
	"github.com/sells-group/censusdis/internal/varsource"
)

const (
	testBase      = "http://census.test/data"
	testShapeBase = "http://census.test/geo/tiger"
	testDataset   = "dec/pl"
	testYear      = 2020
)

const testGeographyJSON = `{
  "fips": [
    {"name": "us", "geoLevelDisplay": "010"},
    {"name": "region", "geoLevelDisplay": "020"},
    {"name": "state", "geoLevelDisplay": "040"},
    {"name": "county", "geoLevelDisplay": "050", "requires": ["state"], "wildcard": ["state"]},
    {"name": "tract", "geoLevelDisplay": "140", "requires": ["state", "county"], "wildcard": ["county"]},
    {"name": "block group", "geoLevelDisplay": "150", "requires": ["state", "county", "tract"], "wildcard": ["county", "tract"]}
  ]
}`

// geoRows are the rows the fake returns for one innermost component.
type geoRows struct {
	cols []string
	rows [][]string
}

// fakeCensus answers metadata, data and boundary requests for one dataset.
type fakeCensus struct {
	t *testing.T

	vars map[string]varsource.Variable
	geo  map[string]geoRows
	// values overrides the generated value of a variable, per row.
	values map[string][]*string
	// reverseWhen reverses the rows of any query asking for that variable.
	reverseWhen string
	noContent   bool
	zips        map[string][]byte

	mu      sync.Mutex
	queries []map[string]string
}

func newFakeCensus(t *testing.T) *fakeCensus {
	return &fakeCensus{
		t: t,
		vars: map[string]varsource.Variable{
			"NAME":    {Name: "NAME", Label: "Geographic Area Name", PredicateType: "string"},
			"P1_001N": {Name: "P1_001N", Label: "Total", PredicateType: "int", Group: "P1"},
		},
		geo: map[string]geoRows{
			"state": {cols: []string{"state"}, rows: [][]string{{"01"}, {"34"}, {"72"}}},
			"tract": {
				cols: []string{"state", "county", "tract"},
				rows: [][]string{
					{"01", "001", "020100"},
					{"34", "013", "000100"},
					{"34", "013", "000200"},
				},
			},
			"block group": {
				cols: []string{"state", "county", "tract", "block group"},
				rows: [][]string{{"34", "013", "000100", "1"}},
			},
		},
		values: map[string][]*string{},
		zips:   map[string][]byte{},
	}
}

// addIntVars registers n int variables V001 through Vn.
func (c *fakeCensus) addIntVars(n int) []string {
	names := make([]string, n)
	for i := range names {
		name := fmt.Sprintf("V%03d", i+1)
		c.vars[name] = varsource.Variable{Name: name, PredicateType: "int"}
		names[i] = name
	}
	return names
}

func (c *fakeCensus) addStateShapes() {
	c.zips["cb_2020_us_state_500k"] = mapstest.BuildZIP(c.t, "cb_2020_us_state_500k",
		[]string{"STATEFP", "NAME"},
		[]mapstest.Record{
			{Attrs: []string{"01", "Alabama"}, Rings: [][]shp.Point{mapstest.Square(0, 0, 10)}},
			{Attrs: []string{"34", "New Jersey"}, Rings: [][]shp.Point{mapstest.Square(20, 0, 10)}},
		})
}

func (c *fakeCensus) addTractShapes() {
	c.zips["cb_2020_01_tract_500k"] = mapstest.BuildZIP(c.t, "cb_2020_01_tract_500k",
		[]string{"STATEFP", "COUNTYFP", "TRACTCE"},
		[]mapstest.Record{
			{Attrs: []string{"01", "001", "020100"}, Rings: [][]shp.Point{mapstest.Square(0, 0, 1)}},
		})
	c.zips["cb_2020_34_tract_500k"] = mapstest.BuildZIP(c.t, "cb_2020_34_tract_500k",
		[]string{"STATEFP", "COUNTYFP", "TRACTCE"},
		[]mapstest.Record{
			{Attrs: []string{"34", "013", "000100"}, Rings: [][]shp.Point{mapstest.Square(20, 0, 1)}},
			{Attrs: []string{"34", "013", "000200"}, Rings: [][]shp.Point{mapstest.Square(21, 0, 1)}},
		})
}

func (c *fakeCensus) lastQuery() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queries) == 0 {
		return nil
	}
	return c.queries[len(c.queries)-1]
}

func (c *fakeCensus) dataQueries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queries)
}

func (c *fakeCensus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path
	switch {
	case strings.HasPrefix(p, "/geo/tiger/"):
		name := strings.TrimSuffix(path.Base(p), ".zip")
		z, ok := c.zips[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(z) //nolint:errcheck
	case p == "/data/2020/dec/pl/geography.json":
		w.Write([]byte(testGeographyJSON)) //nolint:errcheck
	case strings.HasPrefix(p, "/data/2020/dec/pl/variables/"):
		name := strings.TrimSuffix(path.Base(p), ".json")
		v, ok := c.vars[name]
		if !ok {
			http.Error(w, "unknown variable", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(v) //nolint:errcheck
	case p == "/data/2020/dec/pl":
		c.serveData(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (c *fakeCensus) serveData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c.mu.Lock()
	c.queries = append(c.queries, map[string]string{
		"get": q.Get("get"),
		"for": q.Get("for"),
		"in":  q.Get("in"),
		"key": q.Get("key"),
	})
	c.mu.Unlock()

	if c.noContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	vars := strings.Split(q.Get("get"), ",")
	level, _, _ := strings.Cut(q.Get("for"), ":")
	g, ok := c.geo[level]
	if !ok {
		http.Error(w, "unsupported geography", http.StatusBadRequest)
		return
	}

	header := make([]any, 0, len(vars)+len(g.cols))
	for _, v := range vars {
		header = append(header, v)
	}
	for _, col := range g.cols {
		header = append(header, col)
	}

	states := stateFilter(q.Get("for") + " " + q.Get("in"))
	stateCol := -1
	for j, col := range g.cols {
		if col == "state" {
			stateCol = j
		}
	}

	rows := make([][]any, 0, len(g.rows))
	for i, geo := range g.rows {
		if states != nil && stateCol >= 0 && !states[geo[stateCol]] {
			continue
		}
		row := make([]any, 0, len(header))
		for _, v := range vars {
			if vals, ok := c.values[v]; ok {
				if vals[i] == nil {
					row = append(row, nil)
				} else {
					row = append(row, *vals[i])
				}
				continue
			}
			if v == "NAME" {
				row = append(row, "Area "+geo[len(geo)-1])
				continue
			}
			row = append(row, strconv.Itoa((i+1)*100))
		}
		for _, gv := range geo {
			row = append(row, gv)
		}
		rows = append(rows, row)
	}

	reverse := false
	for _, v := range vars {
		if v == c.reverseWhen {
			reverse = true
		}
	}
	if reverse {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}

	json.NewEncoder(w).Encode(append([][]any{header}, rows...)) //nolint:errcheck
}

// stateFilter returns the states a query is restricted to, or nil for all.
func stateFilter(clauses string) map[string]bool {
	for _, clause := range strings.Fields(clauses) {
		comp, val, _ := strings.Cut(clause, ":")
		if comp != "state" || val == "*" {
			continue
		}
		out := map[string]bool{}
		for _, s := range strings.Split(val, ",") {
			out[s] = true
		}
		return out
	}
	return nil
}

func newTestDownloader(t *testing.T, c *fakeCensus, opts ...Option) (*Downloader, *fetchertest.Handler) {
	t.Helper()
	f := fetchertest.New(c)
	opts = append([]Option{
		WithBaseURL(testBase),
		WithShapefileBaseURL(testShapeBase),
		WithShapefilePath(t.TempDir()),
	}, opts...)
	return New(f, opts...), f
}

func strp(s string) *string { return &s }

func varsourceVar(name, predicateType string) varsource.Variable {
	return varsource.Variable{Name: name, PredicateType: predicateType}
}

func fetchertestHandler(h http.Handler) *fetchertest.Handler {
	return fetchertest.New(h)
}
