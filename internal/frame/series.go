package frame

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Kind is the element type of a Series.
type Kind int

// Series kinds.
const (
	String Kind = iota
	Int
	Float
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	default:
		return "string"
	}
}

// Series is a named column. Values hold string, int64 or float64 according
// to Kind, and nil for nulls.
type Series struct {
	Name   string
	Kind   Kind
	Values []any
}

// NewStrings builds a string series. Nil pointers become nulls.
func NewStrings(name string, values []*string) *Series {
	out := make([]any, len(values))
	for i, v := range values {
		if v != nil {
			out[i] = *v
		}
	}
	return &Series{Name: name, Kind: String, Values: out}
}

// FromStrings builds a string series with no nulls.
func FromStrings(name string, values ...string) *Series {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return &Series{Name: name, Kind: String, Values: out}
}

// FromInts builds an int series with no nulls.
func FromInts(name string, values ...int64) *Series {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return &Series{Name: name, Kind: Int, Values: out}
}

// FromFloats builds a float series with no nulls.
func FromFloats(name string, values ...float64) *Series {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return &Series{Name: name, Kind: Float, Values: out}
}

// Len returns the number of elements.
func (s *Series) Len() int {
	return len(s.Values)
}

// IsNull reports whether element i is null.
func (s *Series) IsNull(i int) bool {
	return s.Values[i] == nil
}

// HasNulls reports whether any element is null.
func (s *Series) HasNulls() bool {
	for _, v := range s.Values {
		if v == nil {
			return true
		}
	}
	return false
}

// Text renders element i as text. Nulls render as the empty string.
func (s *Series) Text(i int) string {
	return formatValue(s.Values[i])
}

// Renamed returns a copy of s under a new name. Values are shared.
func (s *Series) Renamed(name string) *Series {
	return &Series{Name: name, Kind: s.Kind, Values: s.Values}
}

// ToInt converts the series to ints. Nulls and unparseable values fail.
func (s *Series) ToInt() (*Series, error) {
	out := make([]any, len(s.Values))
	for i, v := range s.Values {
		switch x := v.(type) {
		case nil:
			return nil, eris.Errorf("frame: %s row %d: null cannot be an int", s.Name, i)
		case int64:
			out[i] = x
		case float64:
			if x != float64(int64(x)) {
				return nil, eris.Errorf("frame: %s row %d: %v is not integral", s.Name, i, x)
			}
			out[i] = int64(x)
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "frame: %s row %d", s.Name, i)
			}
			out[i] = n
		}
	}
	return &Series{Name: s.Name, Kind: Int, Values: out}, nil
}

// ToFloat converts the series to floats. Nulls stay null and unparseable
// values fail.
func (s *Series) ToFloat() (*Series, error) {
	out := make([]any, len(s.Values))
	for i, v := range s.Values {
		switch x := v.(type) {
		case nil:
		case int64:
			out[i] = float64(x)
		case float64:
			out[i] = x
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, eris.Wrapf(err, "frame: %s row %d", s.Name, i)
			}
			out[i] = f
		}
	}
	return &Series{Name: s.Name, Kind: Float, Values: out}, nil
}

func (s *Series) take(idx []int) *Series {
	out := make([]any, len(idx))
	for i, j := range idx {
		if j >= 0 {
			out[i] = s.Values[j]
		}
	}
	return &Series{Name: s.Name, Kind: s.Kind, Values: out}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

// nullKey stands in for a null cell inside a composite key.
const nullKey = "\x00"

func keyPart(v any) string {
	if v == nil {
		return nullKey
	}
	return formatValue(v)
}
