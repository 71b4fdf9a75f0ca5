package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/censusdis/internal/frame"
)

// SheetName is the sheet WriteXLSX writes to.
const SheetName = "data"

// WriteXLSX writes f as a workbook with one sheet. Numbers are stored as
// numbers, nulls as empty cells and geometry as WKT.
func WriteXLSX(w io.Writer, f *frame.Frame) error {
	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	hr := sheet.AddRow()
	for _, n := range header(f) {
		hr.AddCell().SetString(n)
	}

	cols := f.Columns()
	geoms := f.Geometry()
	for i := 0; i < f.NumRows(); i++ {
		row := sheet.AddRow()
		for _, c := range cols {
			cell := row.AddCell()
			switch v := c.Values[i].(type) {
			case int64:
				cell.SetInt64(v)
			case float64:
				cell.SetFloat(v)
			case string:
				cell.SetString(v)
			}
		}
		if geoms != nil {
			s, err := geometryText(geoms[i])
			if err != nil {
				return err
			}
			row.AddCell().SetString(s)
		}
	}

	if err := wb.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}
