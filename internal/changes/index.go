package changes

import (
	"reflect"
	"sort"
)

// PropertyIndex maps a parameter value back to the property names holding it.
// It is built once per execution from the unit's incremental inputs.
type PropertyIndex struct {
	byValue map[any][]string
	names   map[string]bool
}

// NewPropertyIndex returns an empty index.
func NewPropertyIndex() *PropertyIndex {
	return &PropertyIndex{
		byValue: make(map[any][]string),
		names:   make(map[string]bool),
	}
}

// Add registers value under property. Values must be comparable so that they
// can key a map; pointers and strings are the usual choice.
func (idx *PropertyIndex) Add(property string, value any) error {
	if value == nil || !reflect.ValueOf(value).Comparable() {
		return newUncomparableError(value, property)
	}
	idx.names[property] = true
	for _, n := range idx.byValue[value] {
		if n == property {
			return nil
		}
	}
	idx.byValue[value] = append(idx.byValue[value], property)
	return nil
}

// Names returns every indexed property name, sorted.
func (idx *PropertyIndex) Names() []string {
	out := make([]string, 0, len(idx.names))
	for n := range idx.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the single property holding value.
func (idx *PropertyIndex) Resolve(value any) (string, error) {
	if value == nil || !reflect.ValueOf(value).Comparable() {
		return "", newUncomparableError(value, "")
	}
	names := idx.byValue[value]
	switch len(names) {
	case 0:
		return "", newNotFoundError(value)
	case 1:
		return names[0], nil
	default:
		sorted := append([]string(nil), names...)
		sort.Strings(sorted)
		return "", newAmbiguousError(value, sorted)
	}
}
