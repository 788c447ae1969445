package source

import (
	"sort"
	"strings"
)

var registry = map[string]Source{}

// Register adds a source under its lowercased name. Source packages call
// this from init() and are pulled in via blank imports in main.
func Register(s Source) {
	registry[strings.ToLower(s.Name())] = s
}

// Get looks up a registered source by name.
func Get(name string) (Source, bool) {
	s, ok := registry[strings.ToLower(name)]
	return s, ok
}

// Names returns all registered source names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
