package data

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/censusdis/internal/census"
	"github.com/sells-group/censusdis/internal/frame"
)

// usScope is the shapefile scope of national boundary files.
const usScope = "us"

// geoLevel ties an innermost geography component to the boundary file that
// draws it and the columns the data and the shapefile are joined on.
type geoLevel struct {
	name string
	// scope is usScope, or empty when files are published per state.
	scope      string
	shapeLevel string
	dataCols   []string
	shapeCols  []string
}

// geoLevels is ordered from coarsest to finest.
var geoLevels = []geoLevel{
	{"region", usScope, "region", []string{"REGION"}, []string{"REGIONCE"}},
	{"division", usScope, "division", []string{"DIVISION"}, []string{"DIVISIONCE"}},
	{"combined statistical area", usScope, "csa", []string{"COMBINED_STATISTICAL_AREA"}, []string{"CSAFP"}},
	{
		"metropolitan statistical area/micropolitan statistical area", usScope, "cbsa",
		[]string{"METROPOLITAN_STATISTICAL_AREA_MICROPOLITAN_STATISTICAL_AREA"}, []string{"CBSAFP"},
	},
	{"state", usScope, "state", []string{"STATE"}, []string{"STATEFP"}},
	{"county", usScope, "county", []string{"STATE", "COUNTY"}, []string{"STATEFP", "COUNTYFP"}},
	{"tract", "", "tract", []string{"STATE", "COUNTY", "TRACT"}, []string{"STATEFP", "COUNTYFP", "TRACTCE"}},
	{
		"block group", "", "bg",
		[]string{"STATE", "COUNTY", "TRACT", "BLOCK_GROUP"},
		[]string{"STATEFP", "COUNTYFP", "TRACTCE", "BLKGRPCE"},
	},
}

func lookupGeoLevel(name string) (geoLevel, bool) {
	for _, l := range geoLevels {
		if l.name == name {
			return l, true
		}
	}
	return geoLevel{}, false
}

// GeoLevels returns the geography levels that geometry can be added for.
func GeoLevels() []string {
	out := make([]string, len(geoLevels))
	for i, l := range geoLevels {
		out[i] = l.name
	}
	return out
}

// AddGeography joins the boundary of each row onto f. Every row of f is
// kept. Rows with no boundary get a nil geometry. scope is the state FIPS
// code for levels published per state, and is ignored for national ones.
// For a per-state level, an empty or "*" scope reads one file per state
// found in the first key column.
func (d *Downloader) AddGeography(ctx context.Context, f *frame.Frame, year int, scope, level string) (*frame.Frame, error) {
	gl, ok := lookupGeoLevel(level)
	if !ok {
		return nil, census.NewAPIError(
			"data: geometry is only available when the innermost geography ('%s') is one of %s",
			level, strings.Join(quoted(GeoLevels()), ", "),
		)
	}
	if gl.scope != "" {
		scope = gl.scope
	} else if !singleState(scope) {
		return d.addGeographyByState(ctx, f, year, gl)
	}

	shapes, err := d.shapes.For(year).ReadCB(ctx, scope, gl.shapeLevel)
	if err != nil {
		return nil, eris.Wrapf(err, "data: boundaries for %s in %s", level, scope)
	}

	dataKeys, err := f.Keys(gl.dataCols...)
	if err != nil {
		return nil, eris.Wrap(err, "data: add geography")
	}
	shapeKeys, err := shapes.Keys(gl.shapeCols...)
	if err != nil {
		return nil, eris.Wrap(err, "data: add geography")
	}

	byKey := make(map[string]geom.T, len(shapeKeys))
	src := shapes.Geometry()
	for i, k := range shapeKeys {
		if _, dup := byKey[k]; !dup {
			byKey[k] = src[i]
		}
	}

	geoms := make([]geom.T, len(dataKeys))
	missing := 0
	for i, k := range dataKeys {
		g, ok := byKey[k]
		if !ok {
			missing++
		}
		geoms[i] = g
	}
	if missing > 0 {
		zap.L().Debug("data: rows without a boundary",
			zap.String("level", level),
			zap.String("scope", scope),
			zap.Int("missing", missing),
		)
	}
	return f.WithGeometry(geoms)
}

// InferGeoLevel names the geography level of f from its columns. The level
// with the most columns all present wins. It is an error when a level's
// innermost column is present without the rest of its columns, since that
// usually means a column was lost along the way.
func InferGeoLevel(f *frame.Frame) (string, error) {
	var (
		match   *geoLevel
		partial []geoLevel
	)
	for i := range geoLevels {
		l := &geoLevels[i]
		switch {
		case f.Has(l.dataCols...):
			if match == nil || len(l.dataCols) > len(match.dataCols) {
				match = l
			}
		case f.Has(l.dataCols[len(l.dataCols)-1]):
			partial = append(partial, *l)
		}
	}

	if match == nil {
		sets := make([]string, len(geoLevels))
		for i, l := range geoLevels {
			sets[i] = fmt.Sprint(l.dataCols)
		}
		return "", census.NewAPIError(
			"data: unable to infer geometry; none of the known column sets %s is in the columns %v",
			strings.Join(sets, " "), f.Names(),
		)
	}
	if len(partial) > 0 {
		sets := make([]string, len(partial))
		for i, l := range partial {
			sets[i] = fmt.Sprint(l.dataCols)
		}
		return "", census.NewAPIError(
			"data: unable to infer geometry; matched %s on columns %v but also partially matched %s. "+
				"Partial matches are usually unintended. Add columns to allow a full match or rename "+
				"columns to prevent the partial one",
			match.name, match.dataCols, strings.Join(sets, " "),
		)
	}
	return match.name, nil
}

// AddInferredGeography infers the geography level of f and adds the matching
// boundary to every row. Levels published per state are read one state at a
// time, grouped on the first key column.
func (d *Downloader) AddInferredGeography(ctx context.Context, f *frame.Frame, year int) (*frame.Frame, error) {
	level, err := InferGeoLevel(f)
	if err != nil {
		return nil, err
	}
	return d.AddGeography(ctx, f, year, "", level)
}

// addGeographyForQuery adds geometry to a query result. scope is the value
// bound to the outermost component of the query.
func (d *Downloader) addGeographyForQuery(ctx context.Context, f *frame.Frame, year int, scope, level string) (*frame.Frame, error) {
	return d.AddGeography(ctx, f, year, scope, level)
}

func (d *Downloader) addGeographyByState(ctx context.Context, f *frame.Frame, year int, gl geoLevel) (*frame.Frame, error) {
	if f.NumRows() == 0 {
		return f.WithGeometry([]geom.T{})
	}
	groups, err := f.GroupBy(gl.dataCols[0])
	if err != nil {
		return nil, eris.Wrap(err, "data: group by state")
	}
	parts := make([]*frame.Frame, len(groups))
	for i, g := range groups {
		if !singleState(g.Key) {
			return nil, census.NewAPIError(
				"data: %s boundaries are published per state; every row needs a single %s value, got %q",
				gl.name, gl.dataCols[0], g.Key,
			)
		}
		parts[i], err = d.AddGeography(ctx, g.Frame, year, g.Key, gl.name)
		if err != nil {
			return nil, err
		}
	}
	out, err := frame.VConcat(parts...)
	if err != nil {
		return nil, eris.Wrap(err, "data: reassemble states")
	}
	return out, nil
}

// singleState reports whether a binding names exactly one state.
func singleState(v string) bool {
	return v != "" && v != "*" && !strings.Contains(v, ",")
}

func quoted(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = "'" + s + "'"
	}
	return out
}
