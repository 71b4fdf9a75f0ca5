package maps

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/censusdis/internal/frame"
)

// SRID of cartographic boundary files, which are published in NAD83.
const SRID = 4269

// readShapefile loads every record of a shapefile into a frame: one string
// column per DBF attribute plus the geometry.
func readShapefile(shpPath string) (*frame.Frame, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "maps: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	values := make([][]*string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	var geoms []geom.T
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		for i := range fields {
			v := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if v == "" {
				values[i] = append(values[i], nil)
			} else {
				values[i] = append(values[i], &v)
			}
		}
		g := toGeometry(shape)
		if g == nil {
			skipped++
		}
		geoms = append(geoms, g)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "maps: read shapefile %s", shpPath)
	}

	if skipped > 0 {
		zap.L().Debug("maps: records without usable geometry",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	cols := make([]*frame.Series, len(fields))
	for i := range fields {
		if values[i] == nil {
			values[i] = []*string{}
		}
		cols[i] = frame.NewStrings(names[i], values[i])
	}
	f, err := frame.New(cols...)
	if err != nil {
		return nil, eris.Wrapf(err, "maps: build frame from %s", shpPath)
	}
	if geoms == nil {
		geoms = []geom.T{}
	}
	return f.WithGeometry(geoms)
}

// toGeometry converts a shapefile shape to a geometry with SRID 4269, or nil
// for shapes that carry none.
func toGeometry(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Polygon:
		mp := ringsToMultiPolygon(splitParts(s.Parts, s.Points))
		if mp == nil {
			return nil
		}
		return mp
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(SRID)
	default:
		return nil
	}
}

func splitParts(parts []int32, points []shp.Point) [][]float64 {
	rings := make([][]float64, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || start >= end {
			continue
		}
		flat := make([]float64, 0, 2*(end-start))
		for _, p := range points[start:end] {
			flat = append(flat, p.X, p.Y)
		}
		rings = append(rings, flat)
	}
	return rings
}

// ringsToMultiPolygon groups rings into polygons. Shapefiles store outer
// rings clockwise and holes counter-clockwise; each hole goes to the outer
// ring that contains it.
func ringsToMultiPolygon(rings [][]float64) *geom.MultiPolygon {
	var outers []*geom.Polygon
	var outerRings [][]float64
	var holes [][]float64

	for _, r := range rings {
		// A closed ring needs at least four points.
		if len(r) < 8 {
			continue
		}
		if xy.IsRingCounterClockwise(geom.XY, r) {
			holes = append(holes, r)
			continue
		}
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, r)); err != nil {
			continue
		}
		outers = append(outers, poly)
		outerRings = append(outerRings, r)
	}

	// Hole-only records come from files written with the opposite winding.
	if len(outers) == 0 {
		for _, r := range holes {
			poly := geom.NewPolygon(geom.XY)
			if err := poly.Push(geom.NewLinearRingFlat(geom.XY, r)); err == nil {
				outers = append(outers, poly)
			}
		}
		holes = nil
	}
	if len(outers) == 0 {
		return nil
	}

	for _, h := range holes {
		owner := len(outers) - 1
		pt := geom.Coord{h[0], h[1]}
		for i, o := range outerRings {
			if xy.IsPointInRing(geom.XY, pt, o) {
				owner = i
				break
			}
		}
		_ = outers[owner].Push(geom.NewLinearRingFlat(geom.XY, h))
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(SRID)
	for _, p := range outers {
		if err := mp.Push(p); err != nil {
			zap.L().Debug("maps: skipping malformed polygon", zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
