// Package geography models the geography hierarchies the Census API
// supports, matches user supplied geography filters against them and builds
// data query URLs.
package geography

import (
	"regexp"
	"sort"
	"strings"
)

// PathSpec is one geography hierarchy of a dataset, outermost component
// first, e.g. [state county tract].
type PathSpec struct {
	Path     []string
	Wildcard map[string]bool
	GeoLevel string
}

// Innermost returns the last component of the path.
func (p PathSpec) Innermost() string {
	if len(p.Path) == 0 {
		return ""
	}
	return p.Path[len(p.Path)-1]
}

// Contains reports whether component is part of the path.
func (p PathSpec) Contains(component string) bool {
	for _, c := range p.Path {
		if c == component {
			return true
		}
	}
	return false
}

func (p PathSpec) String() string {
	snakes := make([]string, len(p.Path))
	for i, c := range p.Path {
		snakes[i] = Snake(c)
	}
	return strings.Join(snakes, " > ")
}

// BoundPath is a PathSpec with a value bound to every component.
type BoundPath struct {
	Spec     PathSpec
	Bindings map[string]string
}

// Innermost returns the innermost component and its bound value.
func (b BoundPath) Innermost() (string, string) {
	c := b.Spec.Innermost()
	return c, b.Bindings[c]
}

// Outermost returns the outermost component and its bound value.
func (b BoundPath) Outermost() (string, string) {
	if len(b.Spec.Path) == 0 {
		return "", ""
	}
	c := b.Spec.Path[0]
	return c, b.Bindings[c]
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Snake converts a component name into the identifier form used for
// filters, e.g. "block group" becomes "block_group".
func Snake(component string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(component), "_"), "_")
}

var columnReplacer = strings.NewReplacer(" ", "_", "/", "_", "(", "_", ")", "_")

// ColumnName is the name a geography component takes as a frame column,
// e.g. "block group" becomes "BLOCK_GROUP".
func ColumnName(component string) string {
	return columnReplacer.Replace(strings.ToUpper(component))
}

// match binds bindings against spec. ok is false when some bound component
// is not in the path, the innermost component is unbound, or an unbound
// component cannot be wildcarded. unbound counts the wildcarded components.
func match(spec PathSpec, bindings map[string]string) (bp BoundPath, unbound int, ok bool) {
	if len(spec.Path) == 0 {
		return BoundPath{}, 0, false
	}
	for k := range bindings {
		if !spec.Contains(k) {
			return BoundPath{}, 0, false
		}
	}
	if _, bound := bindings[spec.Innermost()]; !bound {
		return BoundPath{}, 0, false
	}

	out := make(map[string]string, len(spec.Path))
	for _, c := range spec.Path {
		if v, bound := bindings[c]; bound {
			out[c] = v
			continue
		}
		if !spec.Wildcard[c] {
			return BoundPath{}, 0, false
		}
		out[c] = "*"
		unbound++
	}
	return BoundPath{Spec: spec, Bindings: out}, unbound, true
}

// PartialPrefixMatch picks the spec that best fits bindings. Every bound
// component must appear in the path and the innermost component must be
// bound. Missing components are bound to "*" when the API allows it. Ties
// go to the spec with fewer wildcarded components, then the shorter path,
// then the earlier spec.
func PartialPrefixMatch(specs []PathSpec, bindings map[string]string) (BoundPath, bool) {
	type candidate struct {
		bp      BoundPath
		unbound int
		index   int
	}
	var cands []candidate
	for i, spec := range specs {
		if bp, unbound, ok := match(spec, bindings); ok {
			cands = append(cands, candidate{bp, unbound, i})
		}
	}
	if len(cands) == 0 {
		return BoundPath{}, false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].unbound != cands[j].unbound {
			return cands[i].unbound < cands[j].unbound
		}
		if len(cands[i].bp.Spec.Path) != len(cands[j].bp.Spec.Path) {
			return len(cands[i].bp.Spec.Path) < len(cands[j].bp.Spec.Path)
		}
		return cands[i].index < cands[j].index
	})
	return cands[0].bp, true
}
