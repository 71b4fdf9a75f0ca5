package fetcher

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
)

// DecodeJSONObject decodes a single JSON object from a reader.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	var obj T
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}

// DecodeTable decodes the array-of-arrays shape the Census data API answers
// with: the first row is the header, every following row a record. Cells
// may be strings, numbers or null; nulls come back as nil pointers.
func DecodeTable(r io.Reader) ([]string, [][]*string, error) {
	var raw [][]any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, eris.Wrap(err, "json: decode table")
	}
	if len(raw) == 0 {
		return nil, nil, eris.New("json: table has no header row")
	}

	header := make([]string, len(raw[0]))
	for i, h := range raw[0] {
		s, ok := h.(string)
		if !ok {
			return nil, nil, eris.Errorf("json: header cell %d is %T, not a string", i, h)
		}
		header[i] = s
	}

	rows := make([][]*string, 0, len(raw)-1)
	for n, rec := range raw[1:] {
		if len(rec) != len(header) {
			return nil, nil, eris.Errorf("json: row %d has %d cells, header has %d", n+1, len(rec), len(header))
		}
		row := make([]*string, len(rec))
		for i, cell := range rec {
			row[i] = cellString(cell)
		}
		rows = append(rows, row)
	}

	return header, rows, nil
}

func cellString(cell any) *string {
	var s string
	switch v := cell.(type) {
	case nil:
		return nil
	case string:
		s = v
	case json.Number:
		s = v.String()
	case bool:
		s = strconv.FormatBool(v)
	default:
		b, _ := json.Marshal(v)
		s = string(b)
	}
	return &s
}
