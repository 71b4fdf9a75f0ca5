package export

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/censusdis/internal/frame"
)

// WriteJSON writes f as an array of objects, one per row, with keys in
// column order. Geometry is written as WKT.
func WriteJSON(w io.Writer, f *frame.Frame) error {
	bw := bufio.NewWriter(w)
	names := header(f)

	keys := make([][]byte, len(names))
	for j, n := range names {
		k, err := json.Marshal(n)
		if err != nil {
			return eris.Wrap(err, "export: encode json key")
		}
		keys[j] = k
	}

	cols := f.Columns()
	geoms := f.Geometry()
	bw.WriteByte('[')
	for i := 0; i < f.NumRows(); i++ {
		if i > 0 {
			bw.WriteByte(',')
		}
		bw.WriteByte('{')
		for j := range names {
			if j > 0 {
				bw.WriteByte(',')
			}
			var v any
			if j < len(cols) {
				v = cols[j].Values[i]
			} else {
				s, err := geometryText(geoms[i])
				if err != nil {
					return err
				}
				if s != "" {
					v = s
				}
			}
			b, err := json.Marshal(v)
			if err != nil {
				return eris.Wrapf(err, "export: encode %s row %d", names[j], i)
			}
			bw.Write(keys[j])
			bw.WriteByte(':')
			bw.Write(b)
		}
		bw.WriteByte('}')
	}
	bw.WriteString("]\n")

	if err := bw.Flush(); err != nil {
		return eris.Wrap(err, "export: write json")
	}
	return nil
}
