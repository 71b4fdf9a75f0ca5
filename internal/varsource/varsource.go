// Package varsource loads metadata about Census variables, groups and
// datasets.
package varsource

import (
	"context"
)

// Variable is the metadata of a single Census variable.
type Variable struct {
	Name          string `json:"name" yaml:"name"`
	Label         string `json:"label" yaml:"label"`
	Concept       string `json:"concept,omitempty" yaml:"concept,omitempty"`
	PredicateType string `json:"predicateType,omitempty" yaml:"predicateType,omitempty"`
	Group         string `json:"group,omitempty" yaml:"group,omitempty"`
	Limit         int    `json:"limit" yaml:"limit"`
	PredicateOnly bool   `json:"predicateOnly,omitempty" yaml:"predicateOnly,omitempty"`
	Attributes    string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Group is the set of variables in a group, keyed by variable name.
type Group struct {
	Variables map[string]Variable `json:"variables" yaml:"variables"`
}

// GroupInfo describes one entry of a dataset's group listing.
type GroupInfo struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Variables   string `json:"variables" yaml:"variables"`
}

// GroupList is the group listing of a dataset.
type GroupList struct {
	Groups []GroupInfo `json:"groups" yaml:"groups"`
}

// Dataset is one entry of the Census dataset catalog.
type Dataset struct {
	Title         string   `json:"title" yaml:"title"`
	Description   string   `json:"description" yaml:"description"`
	Vintage       int      `json:"c_vintage,omitempty" yaml:"vintage,omitempty"`
	Path          []string `json:"c_dataset" yaml:"path"`
	GeographyLink string   `json:"c_geographyLink,omitempty" yaml:"geographyLink,omitempty"`
	VariablesLink string   `json:"c_variablesLink,omitempty" yaml:"variablesLink,omitempty"`
}

// Catalog is the Census dataset catalog for one year or for all years.
type Catalog struct {
	Datasets []Dataset `json:"dataset" yaml:"datasets"`
}

// Source is anything that can answer variable metadata queries.
type Source interface {
	// Get returns the metadata of a single variable.
	Get(ctx context.Context, dataset string, year int, name string) (*Variable, error)

	// GetGroup returns the variables of a group. An empty group returns every
	// variable of the dataset.
	GetGroup(ctx context.Context, dataset string, year int, group string) (*Group, error)

	// GetAllGroups lists the groups of a dataset.
	GetAllGroups(ctx context.Context, dataset string, year int) (*GroupList, error)

	// GetDatasets lists the datasets of a year, or of every year when year is 0.
	GetDatasets(ctx context.Context, year int) (*Catalog, error)
}
