// Package export writes frames out as CSV, JSON, GeoJSON and XLSX, and
// loads them into Postgres.
package export

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/sells-group/censusdis/internal/frame"
)

// Format names an output format.
type Format string

// Supported formats.
const (
	CSV     Format = "csv"
	JSON    Format = "json"
	GeoJSON Format = "geojson"
	XLSX    Format = "xlsx"
)

// ParseFormat validates a format name, ignoring case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case CSV, JSON, GeoJSON, XLSX:
		return f, nil
	default:
		return "", eris.Errorf("export: unknown format %q (want csv, json, geojson or xlsx)", s)
	}
}

// Write writes f to w in the given format.
func Write(w io.Writer, format Format, f *frame.Frame) error {
	switch format {
	case CSV:
		return WriteCSV(w, f)
	case JSON:
		return WriteJSON(w, f)
	case GeoJSON:
		return WriteGeoJSON(w, f)
	case XLSX:
		return WriteXLSX(w, f)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

// header returns the column names, plus the geometry column when f has one.
func header(f *frame.Frame) []string {
	names := f.Names()
	if f.HasGeometry() {
		names = append(names, frame.GeometryColumn)
	}
	return names
}

// geometryText renders g as WKT. A nil geometry is empty.
func geometryText(g geom.T) (string, error) {
	if g == nil {
		return "", nil
	}
	s, err := wkt.Marshal(g)
	if err != nil {
		return "", eris.Wrap(err, "export: encode WKT")
	}
	return s, nil
}
