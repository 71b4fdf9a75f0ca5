package export

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/censusdis/internal/frame"
)

// WriteCSV writes f with a header row. Nulls are empty and geometry goes in
// a trailing column as WKT.
func WriteCSV(w io.Writer, f *frame.Frame) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header(f)); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}

	cols := f.Columns()
	geoms := f.Geometry()
	record := make([]string, len(header(f)))
	for i := 0; i < f.NumRows(); i++ {
		for j, c := range cols {
			record[j] = c.Text(i)
		}
		if geoms != nil {
			s, err := geometryText(geoms[i])
			if err != nil {
				return err
			}
			record[len(cols)] = s
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrapf(err, "export: write csv row %d", i)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}
