package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/censusdis/internal/config"
	"github.com/sells-group/censusdis/internal/export"
	"github.com/sells-group/censusdis/internal/frame"
)

// fakeCensus serves a tiny dec/pl 2020 with two states.
func fakeCensus() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/data/2020.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"dataset":[{"title":"Decennial Census: Redistricting Data","c_vintage":2020,"c_dataset":["dec","pl"]}]}`))
	})
	mux.HandleFunc("/data/2020/dec/pl/geography.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fips":[
			{"name":"us","geoLevelDisplay":"010"},
			{"name":"state","geoLevelDisplay":"040"},
			{"name":"county","geoLevelDisplay":"050","requires":["state"],"wildcard":["state"]}
		]}`))
	})
	mux.HandleFunc("/data/2020/dec/pl/groups.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"groups":[{"name":"P1","description":"RACE","variables":"x"}]}`))
	})
	mux.HandleFunc("/data/2020/dec/pl/groups/P1.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"variables":{"P1_001N":{"label":"Total","predicateType":"int"}}}`))
	})
	mux.HandleFunc("/data/2020/dec/pl/variables/P1_001N.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"P1_001N","label":"Total","predicateType":"int","group":"P1"}`))
	})
	mux.HandleFunc("/data/2020/dec/pl/variables/NAME.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"NAME","label":"Geographic Area Name","predicateType":"string"}`))
	})
	mux.HandleFunc("/data/2020/dec/pl", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("for") != "state:*" {
			http.Error(w, "error: unknown/unsupported geography hierarchy", http.StatusBadRequest)
			return
		}
		w.Write(stateTable(r.URL.Query().Get("get")))
	})
	return mux
}

// stateTable answers a state:* query with the requested columns only.
func stateTable(get string) []byte {
	values := map[string][2]string{
		"NAME":    {"Alabama", "New Jersey"},
		"P1_001N": {"5024279", "9288994"},
	}
	states := [2]string{"01", "34"}

	header := append(strings.Split(get, ","), "state")
	rows := [][]string{header}
	for i, st := range states {
		row := make([]string, 0, len(header))
		for _, v := range header[:len(header)-1] {
			row = append(row, values[v][i])
		}
		rows = append(rows, append(row, st))
	}
	body, _ := json.Marshal(rows)
	return body
}

// setup points cfg at a fake Census API and returns its URL.
func setup(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(fakeCensus())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg = &config.Config{
		Census: config.CensusConfig{
			BaseURL:          srv.URL + "/data",
			ShapefileBaseURL: srv.URL + "/geo/tiger",
			RateLimit:        100,
			MaxRetries:       1,
			TimeoutSecs:      5,
			Concurrency:      2,
		},
		Shapefile: config.ShapefileConfig{Dir: filepath.Join(dir, "shapefiles"), Resolution: "500k"},
		Cache:     config.CacheConfig{Enabled: true, Path: filepath.Join(dir, "variables.db"), TTLHours: 1},
		Store:     config.StoreConfig{Schema: "census"},
		Server:    config.ServerConfig{Port: 8080},
		Log:       config.LogConfig{Level: "info", Format: "json"},
	}
	t.Cleanup(func() { cfg = nil })
	return srv.URL
}

func run(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c.SetContext(context.Background())
	c.SetOut(&out)
	c.SetErr(&bytes.Buffer{})
	err := c.RunE(c, args)
	return out.String(), err
}

func resetDownload(t *testing.T) {
	t.Helper()
	downloadQuery = queryFlags{dataset: "dec/pl", year: 2020, variables: []string{"NAME", "P1_001N"}, geo: []string{"state=*"}}
	downloadFormat = "csv"
	downloadOut = ""
	t.Cleanup(func() { downloadQuery = queryFlags{} })
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"download", "url", "variables", "groups", "datasets", "geographies", "geometry", "load", "serve", "cache", "version"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "censusdis", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestDownloadCommand_Flags(t *testing.T) {
	for _, name := range []string{"dataset", "year", "vars", "geo", "geometry", "format", "out"} {
		assert.NotNil(t, downloadCmd.Flags().Lookup(name), "download should have --%s", name)
	}
	assert.Equal(t, "csv", downloadCmd.Flags().Lookup("format").DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestParseGeo(t *testing.T) {
	got, err := parseGeo([]string{"state=34", "county=013,017", "county = 019"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"state":  {"34"},
		"county": {"013", "017", "019"},
	}, got)

	for _, bad := range []string{"state", "=34", "state="} {
		_, err := parseGeo([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestCount(t *testing.T) {
	assert.Equal(t, "1,234,567", count(1234567))
	assert.Equal(t, "12", count(12))
}

func TestDownload_CSV(t *testing.T) {
	setup(t)
	resetDownload(t)

	out, err := run(t, downloadCmd)
	require.NoError(t, err)
	assert.Equal(t, "STATE,NAME,P1_001N\n01,Alabama,5024279\n34,New Jersey,9288994\n", out)
}

func TestDownload_JSONToFile(t *testing.T) {
	setup(t)
	resetDownload(t)
	downloadFormat = "json"
	downloadOut = filepath.Join(t.TempDir(), "out.json")

	out, err := run(t, downloadCmd)
	require.NoError(t, err)
	assert.Empty(t, out)

	body, err := os.ReadFile(downloadOut)
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(body, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "New Jersey", rows[1]["NAME"])
	assert.EqualValues(t, 9288994, rows[1]["P1_001N"])
}

func TestDownload_MissingFlags(t *testing.T) {
	setup(t)
	tests := []struct {
		name  string
		query queryFlags
		want  string
	}{
		{"dataset", queryFlags{year: 2020, variables: []string{"NAME"}}, "--dataset"},
		{"year", queryFlags{dataset: "dec/pl", variables: []string{"NAME"}}, "--year"},
		{"vars", queryFlags{dataset: "dec/pl", year: 2020}, "--vars"},
		{"geo", queryFlags{dataset: "dec/pl", year: 2020, variables: []string{"NAME"}, geo: []string{"state"}}, "--geo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetDownload(t)
			downloadQuery = tt.query
			_, err := run(t, downloadCmd)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDownload_UnknownFormat(t *testing.T) {
	setup(t)
	resetDownload(t)
	downloadFormat = "parquet"

	_, err := run(t, downloadCmd)
	assert.Error(t, err)
}

func TestURLCommand(t *testing.T) {
	base := setup(t)
	urlQuery = queryFlags{dataset: "dec/pl", year: 2020, variables: []string{"NAME", "P1_001N"}, geo: []string{"state=34"}}
	t.Cleanup(func() { urlQuery = queryFlags{} })

	out, err := run(t, urlCmd)
	require.NoError(t, err)
	assert.Equal(t, base+"/data/2020/dec/pl?for=state%3A34&get=NAME%2CP1_001N\n", out)
}

func TestVariablesCommand(t *testing.T) {
	setup(t)
	metaDataset, metaYear, metaGroup, metaOutput = "dec/pl", 2020, "", "table"
	t.Cleanup(func() { metaDataset, metaYear, metaGroup, metaOutput = "", 0, "", "table" })

	out, err := run(t, variablesCmd, "P1_001N", "NAME")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, lines[1], "P1_001N")
	assert.Contains(t, lines[2], "Geographic Area Name")
}

func TestVariablesCommand_GroupYAML(t *testing.T) {
	setup(t)
	metaDataset, metaYear, metaGroup, metaOutput = "dec/pl", 2020, "P1", "yaml"
	t.Cleanup(func() { metaDataset, metaYear, metaGroup, metaOutput = "", 0, "", "table" })

	out, err := run(t, variablesCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "label: Total")
	assert.Contains(t, out, "predicateType: int")
}

func TestVariablesCommand_NeedsNamesOrGroup(t *testing.T) {
	setup(t)
	metaDataset, metaYear, metaGroup = "dec/pl", 2020, ""
	t.Cleanup(func() { metaDataset, metaYear = "", 0 })

	_, err := run(t, variablesCmd)
	assert.Error(t, err)
}

func TestGroupsCommand_JSON(t *testing.T) {
	setup(t)
	metaDataset, metaYear, metaOutput = "dec/pl", 2020, "json"
	t.Cleanup(func() { metaDataset, metaYear, metaOutput = "", 0, "table" })

	out, err := run(t, groupsCmd)
	require.NoError(t, err)
	var groups []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, "P1", groups[0]["name"])
}

func TestDatasetsCommand(t *testing.T) {
	setup(t)
	metaYear, metaOutput = 2020, "table"
	t.Cleanup(func() { metaYear = 0 })

	out, err := run(t, datasetsCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "dec/pl")
	assert.Contains(t, out, "Redistricting")
	assert.Contains(t, out, "1 datasets")
}

func TestGeographiesCommand(t *testing.T) {
	setup(t)
	metaDataset, metaYear, metaOutput = "dec/pl", 2020, "table"
	t.Cleanup(func() { metaDataset, metaYear = "", 0 })

	out, err := run(t, geographiesCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "state > county")
}

func TestMetadata_UnknownOutput(t *testing.T) {
	setup(t)
	metaDataset, metaYear, metaOutput = "dec/pl", 2020, "toml"
	t.Cleanup(func() { metaDataset, metaYear, metaOutput = "", 0, "table" })

	_, err := run(t, groupsCmd)
	assert.Error(t, err)
}

func TestCacheCommands(t *testing.T) {
	setup(t)
	metaDataset, metaYear, metaOutput = "dec/pl", 2020, "table"
	t.Cleanup(func() { metaDataset, metaYear = "", 0 })

	_, err := run(t, variablesCmd, "P1_001N")
	require.NoError(t, err)

	out, err := run(t, cacheStatsCmd)
	require.NoError(t, err)
	assert.Contains(t, out, ": 1 variables")

	out, err = run(t, cachePruneCmd)
	require.NoError(t, err)
	assert.Equal(t, "pruned 0 expired variables\n", out)

	out, err = run(t, cacheClearCmd)
	require.NoError(t, err)
	assert.Equal(t, "removed 1 variables\n", out)
}

func TestReadTable_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("STATE, VALUE\n01, 10\n34,\n"), 0o644))

	f, err := readTable(context.Background(), tableInput{path: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"STATE", "VALUE"}, f.Names())
	assert.Equal(t, 2, f.NumRows())
	assert.Equal(t, "34", f.Column("STATE").Values[1])
	assert.Nil(t, f.Column("VALUE").Values[1])
}

func TestReadTable_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := readTable(context.Background(), tableInput{path: path})
	assert.Error(t, err)
}

func TestReadTable_CSVOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.tsv")
	body := "Population by state\n\n# generated\nSTATE\tVALUE\n01\t10\n# dropped\n34\t20\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	f, err := readTable(context.Background(), tableInput{path: path, skipRows: 1, delimiter: "tab", comment: "#"})
	require.NoError(t, err)
	assert.Equal(t, []string{"STATE", "VALUE"}, f.Names())
	require.Equal(t, 2, f.NumRows())
	assert.Equal(t, "34", f.Column("STATE").Values[1])
}

func TestReadTable_BadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("STATE\n01\n"), 0o644))

	_, err := readTable(context.Background(), tableInput{path: path, delimiter: ";;"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--delimiter")

	_, err = readTable(context.Background(), tableInput{path: path, skipRows: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--skip-rows")
}

func TestReadTable_XLSXSheet(t *testing.T) {
	wb := xlsx.NewFile()
	for _, sheet := range []struct {
		name string
		rows [][]string
	}{
		{"Notes", [][]string{{"ignore me"}}},
		{"Counties", [][]string{{"Report"}, {"STATE", "COUNTY"}, {"34", "001"}}},
	} {
		sh, err := wb.AddSheet(sheet.name)
		require.NoError(t, err)
		for _, r := range sheet.rows {
			row := sh.AddRow()
			for _, v := range r {
				row.AddCell().SetString(v)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "in.xlsx")
	require.NoError(t, wb.Save(path))

	for _, sheet := range []string{"Counties", "1"} {
		f, err := readTable(context.Background(), tableInput{path: path, sheet: sheet, skipRows: 1})
		require.NoError(t, err, sheet)
		assert.Equal(t, []string{"STATE", "COUNTY"}, f.Names(), sheet)
		assert.Equal(t, "001", f.Column("COUNTY").Values[0], sheet)
	}

	_, err := readTable(context.Background(), tableInput{path: path, sheet: "-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestWriteOutput(t *testing.T) {
	f, err := frame.FromRecords([]string{"STATE"}, [][]string{{"34"}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, writeOutput(geometryCmd, path, export.CSV, f))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "STATE\n34\n", string(b))

	err = writeOutput(geometryCmd, filepath.Join(t.TempDir(), "missing", "out.csv"), export.CSV, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create")
}

func TestGeometryScopeDefaultsToPerState(t *testing.T) {
	flag := geometryCmd.Flags().Lookup("scope")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestLoadCommand_Validation(t *testing.T) {
	setup(t)
	loadQuery = queryFlags{dataset: "dec/pl", year: 2020, variables: []string{"NAME"}}
	t.Cleanup(func() { loadQuery, loadTable, loadMode = queryFlags{}, "", "append" })

	loadTable, loadMode = "", "append"
	_, err := run(t, loadCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--table")

	loadTable, loadMode = "pop", "merge"
	_, err = run(t, loadCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--mode")

	loadMode = "append"
	_, err = run(t, loadCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, versionCmd)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "censusdis "))
}
