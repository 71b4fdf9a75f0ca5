// Package census holds the URL layout of the U.S. Census APIs and the error
// type reported for user-facing Census failures.
package census

import (
	"fmt"
	"strings"
)

const (
	// DefaultBaseURL is the root of the Census data API.
	DefaultBaseURL = "https://api.census.gov/data"

	// DefaultShapefileBaseURL is the root of the TIGER/cartographic boundary file tree.
	DefaultShapefileBaseURL = "https://www2.census.gov/geo/tiger"

	// DefaultResolution is the cartographic boundary resolution used when none is configured.
	DefaultResolution = "500k"
)

// URLs builds Census API URLs against a base. The zero value uses DefaultBaseURL.
type URLs struct {
	Base string
}

func (u URLs) base() string {
	if u.Base == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(u.Base, "/")
}

// VariablesURL is the metadata listing for every variable in a dataset.
// format is "json" or "html".
func (u URLs) VariablesURL(dataset string, year int, format string) string {
	return fmt.Sprintf("%s/%d/%s/variables.%s", u.base(), year, dataset, format)
}

// VariableURL is the metadata for a single variable.
func (u URLs) VariableURL(dataset string, year int, name, format string) string {
	return fmt.Sprintf("%s/%d/%s/variables/%s.%s", u.base(), year, dataset, name, format)
}

// GroupURL is the metadata for a group of variables. Datasets without groups
// (dec/pl for example) are queried with an empty group, which returns every
// variable in the dataset.
func (u URLs) GroupURL(dataset string, year int, group string) string {
	if group == "" {
		return fmt.Sprintf("%s/%d/%s/variables.json", u.base(), year, dataset)
	}
	return fmt.Sprintf("%s/%d/%s/groups/%s.json", u.base(), year, dataset, group)
}

// AllGroupsURL lists the groups of a dataset.
func (u URLs) AllGroupsURL(dataset string, year int) string {
	return fmt.Sprintf("%s/%d/%s/groups.json", u.base(), year, dataset)
}

// DatasetsURL lists datasets for a year, or for all years when year is 0.
func (u URLs) DatasetsURL(year int) string {
	if year == 0 {
		return u.base() + ".json"
	}
	return fmt.Sprintf("%s/%d.json", u.base(), year)
}

// GeographyURL lists the geography hierarchies a dataset supports.
func (u URLs) GeographyURL(dataset string, year int) string {
	return fmt.Sprintf("%s/%d/%s/geography.json", u.base(), year, dataset)
}

// DataURL is the query endpoint of a dataset.
func (u URLs) DataURL(dataset string, year int) string {
	return fmt.Sprintf("%s/%d/%s", u.base(), year, dataset)
}

// CartographicBoundaryURL is the zip of a cartographic boundary shapefile, e.g.
// https://www2.census.gov/geo/tiger/GENZ2020/shp/cb_2020_us_state_500k.zip.
func CartographicBoundaryURL(shapefileBase string, year int, scope, level, resolution string) string {
	if shapefileBase == "" {
		shapefileBase = DefaultShapefileBaseURL
	}
	if resolution == "" {
		resolution = DefaultResolution
	}
	return fmt.Sprintf("%s/GENZ%d/shp/%s.zip",
		strings.TrimRight(shapefileBase, "/"), year, CartographicBoundaryName(year, scope, level, resolution))
}

// CartographicBoundaryName is the base name shared by the zip and the files inside it.
func CartographicBoundaryName(year int, scope, level, resolution string) string {
	if resolution == "" {
		resolution = DefaultResolution
	}
	return fmt.Sprintf("cb_%d_%s_%s_%s", year, strings.ToLower(scope), level, resolution)
}
