package geography

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpecs() []PathSpec {
	wc := func(cs ...string) map[string]bool {
		m := map[string]bool{}
		for _, c := range cs {
			m[c] = true
		}
		return m
	}
	return []PathSpec{
		{Path: []string{"us"}},
		{Path: []string{"state"}},
		{Path: []string{"state", "county"}, Wildcard: wc("state")},
		{Path: []string{"state", "county", "tract"}, Wildcard: wc("county")},
		{Path: []string{"state", "county", "tract", "block group"}, Wildcard: wc("county", "tract")},
		{Path: []string{"state", "place"}, Wildcard: wc("state")},
	}
}

func TestSnake(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"state", "state"},
		{"block group", "block_group"},
		{"county subdivision", "county_subdivision"},
		{"metropolitan statistical area/micropolitan statistical area", "metropolitan_statistical_area_micropolitan_statistical_area"},
		{"principal city (or part)", "principal_city_or_part"},
		{"Alaska Native Regional Corporation", "alaska_native_regional_corporation"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Snake(tt.in), tt.in)
	}
}

func TestColumnName(t *testing.T) {
	assert.Equal(t, "STATE", ColumnName("state"))
	assert.Equal(t, "BLOCK_GROUP", ColumnName("block group"))
	assert.Equal(t,
		"METROPOLITAN_STATISTICAL_AREA_MICROPOLITAN_STATISTICAL_AREA",
		ColumnName("metropolitan statistical area/micropolitan statistical area"))
}

func TestPartialPrefixMatch(t *testing.T) {
	specs := testSpecs()

	tests := []struct {
		name     string
		bindings map[string]string
		path     []string
		bound    map[string]string
	}{
		{
			name:     "single level",
			bindings: map[string]string{"state": "34"},
			path:     []string{"state"},
			bound:    map[string]string{"state": "34"},
		},
		{
			name:     "full path",
			bindings: map[string]string{"state": "34", "county": "013"},
			path:     []string{"state", "county"},
			bound:    map[string]string{"state": "34", "county": "013"},
		},
		{
			name:     "wildcards missing outer component",
			bindings: map[string]string{"county": "*"},
			path:     []string{"state", "county"},
			bound:    map[string]string{"state": "*", "county": "*"},
		},
		{
			name:     "wildcards missing middle component",
			bindings: map[string]string{"state": "34", "tract": "*"},
			path:     []string{"state", "county", "tract"},
			bound:    map[string]string{"state": "34", "county": "*", "tract": "*"},
		},
		{
			name:     "two missing components",
			bindings: map[string]string{"state": "34", "block group": "*"},
			path:     []string{"state", "county", "tract", "block group"},
			bound:    map[string]string{"state": "34", "county": "*", "tract": "*", "block group": "*"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bp, ok := PartialPrefixMatch(specs, tt.bindings)
			require.True(t, ok)
			assert.Equal(t, tt.path, bp.Spec.Path)
			assert.Equal(t, tt.bound, bp.Bindings)
		})
	}
}

func TestPartialPrefixMatch_Rejects(t *testing.T) {
	specs := testSpecs()

	_, ok := PartialPrefixMatch(specs, map[string]string{})
	assert.False(t, ok, "nothing bound")

	_, ok = PartialPrefixMatch(specs, map[string]string{"tract": "*"})
	assert.False(t, ok, "state cannot be wildcarded for tracts")

	_, ok = PartialPrefixMatch(specs, map[string]string{"county": "*", "place": "*"})
	assert.False(t, ok, "no path holds both county and place")

	_, ok = PartialPrefixMatch(specs, map[string]string{"zip code tabulation area": "*"})
	assert.False(t, ok, "unknown component")
}

func TestPartialPrefixMatch_PrefersFewerWildcards(t *testing.T) {
	specs := []PathSpec{
		{Path: []string{"state", "county", "county subdivision"}, Wildcard: map[string]bool{"county": true}},
		{Path: []string{"state", "county subdivision"}},
	}
	bp, ok := PartialPrefixMatch(specs, map[string]string{"state": "09", "county subdivision": "*"})
	require.True(t, ok)
	assert.Equal(t, []string{"state", "county subdivision"}, bp.Spec.Path)
}

func TestBoundPath_Ends(t *testing.T) {
	bp, ok := PartialPrefixMatch(testSpecs(), map[string]string{"state": "34", "tract": "*"})
	require.True(t, ok)

	c, v := bp.Innermost()
	assert.Equal(t, "tract", c)
	assert.Equal(t, "*", v)

	c, v = bp.Outermost()
	assert.Equal(t, "state", c)
	assert.Equal(t, "34", v)
}

func TestPathSpec_String(t *testing.T) {
	assert.Equal(t, "state > county > block_group",
		PathSpec{Path: []string{"state", "county", "block group"}}.String())
}
