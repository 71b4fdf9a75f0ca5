package export

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/censusdis/internal/frame"
)

// WriteGeoJSON writes f as a FeatureCollection. Columns become typed
// properties. Rows without geometry get a null geometry.
func WriteGeoJSON(w io.Writer, f *frame.Frame) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, f.NumRows())}
	geoms := f.Geometry()
	for i := range fc.Features {
		feat := &geojson.Feature{
			ID:         strconv.Itoa(i),
			Properties: f.Row(i),
		}
		if geoms != nil {
			feat.Geometry = geoms[i]
		}
		fc.Features[i] = feat
	}

	if err := json.NewEncoder(w).Encode(&fc); err != nil {
		return eris.Wrap(err, "export: encode geojson")
	}
	return nil
}
