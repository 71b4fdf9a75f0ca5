package geography

import (
	"net/url"
	"strings"

	"github.com/sells-group/censusdis/internal/census"
)

// QuerySpec is a fully specified data query.
type QuerySpec struct {
	URLs      census.URLs
	Dataset   string
	Year      int
	Variables []string
	Bound     BoundPath
	APIKey    string
}

// TableURL returns the data endpoint and the query parameters for q.
func (q QuerySpec) TableURL() (string, url.Values) {
	params := url.Values{}
	params.Set("get", strings.Join(q.Variables, ","))

	inner, value := q.Bound.Innermost()
	params.Set("for", inner+":"+value)

	path := q.Bound.Spec.Path
	if len(path) > 1 {
		in := make([]string, 0, len(path)-1)
		for _, c := range path[:len(path)-1] {
			in = append(in, c+":"+q.Bound.Bindings[c])
		}
		params.Set("in", strings.Join(in, " "))
	}

	if q.APIKey != "" {
		params.Set("key", q.APIKey)
	}

	return q.URLs.DataURL(q.Dataset, q.Year), params
}
