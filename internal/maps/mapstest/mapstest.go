// Package mapstest builds small cartographic boundary archives for tests.
package mapstest

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
)

// Record is one shape: its DBF attribute values and its rings. Outer rings
// run clockwise, holes counter-clockwise.
type Record struct {
	Attrs []string
	Rings [][]shp.Point
}

// Square returns a closed clockwise ring of side size with its lower left
// corner at (x, y).
func Square(x, y, size float64) []shp.Point {
	return []shp.Point{
		{X: x, Y: y},
		{X: x, Y: y + size},
		{X: x + size, Y: y + size},
		{X: x + size, Y: y},
		{X: x, Y: y},
	}
}

// Reverse returns ring with its winding flipped.
func Reverse(ring []shp.Point) []shp.Point {
	out := make([]shp.Point, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}

// BuildZIP writes a polygon shapefile called name with string fields and
// returns it zipped the way the Census Bureau distributes them.
func BuildZIP(t testing.TB, name string, fields []string, records []Record) []byte {
	t.Helper()

	dir := t.TempDir()
	base := filepath.Join(dir, name)

	w, err := shp.Create(base+".shp", shp.POLYGON)
	if err != nil {
		t.Fatalf("create shapefile: %v", err)
	}
	dbf := make([]shp.Field, len(fields))
	for i, f := range fields {
		dbf[i] = shp.StringField(f, 64)
	}
	if err := w.SetFields(dbf); err != nil {
		t.Fatalf("set fields: %v", err)
	}
	for _, rec := range records {
		row := w.Write((*shp.Polygon)(shp.NewPolyLine(rec.Rings)))
		for i, v := range rec.Attrs {
			if err := w.WriteAttribute(int(row), i, v); err != nil {
				t.Fatalf("write attribute: %v", err)
			}
		}
	}
	w.Close()

	// go-shp names the attribute file "<base>dbf", without the dot.
	if _, err := os.Stat(base + ".dbf"); err != nil {
		if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
			t.Fatalf("rename dbf: %v", err)
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		data, err := os.ReadFile(base + ext)
		if err != nil {
			t.Fatalf("read %s: %v", ext, err)
		}
		fw, err := zw.Create(name + ext)
		if err != nil {
			t.Fatalf("zip %s: %v", ext, err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("zip %s: %v", ext, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}
