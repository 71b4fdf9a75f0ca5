package server

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/sells-group/censusdis/internal/data"
	"github.com/sells-group/censusdis/internal/export"
	"github.com/sells-group/censusdis/internal/version"
)

// reservedParams are the /v1/data parameters that are not geography filters.
var reservedParams = map[string]bool{
	"dataset":  true,
	"year":     true,
	"get":      true,
	"geometry": true,
	"format":   true,
}

var contentTypes = map[export.Format]string{
	export.CSV:     "text/csv; charset=utf-8",
	export.JSON:    "application/json",
	export.GeoJSON: "application/geo+json",
	export.XLSX:    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) datasets(w http.ResponseWriter, r *http.Request) {
	year := 0
	if r.URL.Query().Get("year") != "" {
		var err error
		if year, err = intParam(r, "year"); err != nil {
			writeError(w, r, err)
			return
		}
	}
	cat, err := s.d.Variables().GetDatasets(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) variables(w http.ResponseWriter, r *http.Request) {
	dataset, year, err := datasetYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	name, hasGroup := q.Get("name"), q.Has("group")
	switch {
	case name != "":
		v, err := s.d.Variables().Get(r.Context(), dataset, year, name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	case hasGroup:
		g, err := s.d.Variables().GetGroup(r.Context(), dataset, year, q.Get("group"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	default:
		writeError(w, r, &badRequest{"one of name or group is required"})
	}
}

func (s *Server) groups(w http.ResponseWriter, r *http.Request) {
	dataset, year, err := datasetYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	gl, err := s.d.Variables().GetAllGroups(r.Context(), dataset, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gl)
}

func (s *Server) geographies(w http.ResponseWriter, r *http.Request) {
	dataset, year, err := datasetYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.d.Geography().Entries(r.Context(), dataset, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) data(w http.ResponseWriter, r *http.Request) {
	req, format, err := parseDataRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	f, err := s.d.Download(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Render fully before writing so a failure can still become an error
	// response.
	var buf bytes.Buffer
	if err := export.Write(&buf, format, f); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypes[format])
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

func parseDataRequest(r *http.Request) (data.Request, export.Format, error) {
	dataset, year, err := datasetYear(r)
	if err != nil {
		return data.Request{}, "", err
	}
	q := r.URL.Query()

	get := q.Get("get")
	if get == "" {
		return data.Request{}, "", &badRequest{"get is required"}
	}

	format := export.JSON
	if v := q.Get("format"); v != "" {
		if format, err = export.ParseFormat(v); err != nil {
			return data.Request{}, "", &badRequest{err.Error()}
		}
	}

	withGeometry := false
	if v := q.Get("geometry"); v != "" {
		if withGeometry, err = strconv.ParseBool(v); err != nil {
			return data.Request{}, "", &badRequest{"geometry must be true or false"}
		}
	}
	if !withGeometry && format == export.GeoJSON {
		withGeometry = true
	}

	geo := map[string][]string{}
	for k, vals := range q {
		if reservedParams[k] {
			continue
		}
		for _, v := range vals {
			geo[k] = append(geo[k], strings.Split(v, ",")...)
		}
	}

	return data.Request{
		Dataset:      dataset,
		Year:         year,
		Variables:    strings.Split(get, ","),
		Geography:    geo,
		WithGeometry: withGeometry,
	}, format, nil
}

func datasetYear(r *http.Request) (string, int, error) {
	dataset := r.URL.Query().Get("dataset")
	if dataset == "" {
		return "", 0, &badRequest{"dataset is required"}
	}
	year, err := intParam(r, "year")
	if err != nil {
		return "", 0, err
	}
	return dataset, year, nil
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, &badRequest{name + " is required"}
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &badRequest{name + " must be an integer"}
	}
	return n, nil
}
