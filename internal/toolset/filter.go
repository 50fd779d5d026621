// Package toolset provides the tool catalog, whitelist filtering, and the
// local tool executor that sub-agent runs invoke tools through.
package toolset

import (
	"fmt"
	"sort"
	"strings"
)

// Categories expand to groups of tool names in a whitelist. A definition can
// say `tools: [read]` instead of spelling out every read-only tool.
var categories = map[string][]string{
	"read": {ToolReadFile, ToolListDir, ToolGlob, ToolGrep},
	"edit": {ToolWriteFile, ToolEditFile},
	"exec": {ToolBash},
}

// Filter decides which tools a run may invoke. The zero value is unusable;
// construct with NewFilter.
type Filter struct {
	allowAll bool
	allowed  map[string]struct{}
}

// NewFilter builds a filter from a definition's tool whitelist. Entries may
// be tool names or category shorthands (read, edit, exec). A nil whitelist
// allows every tool; an explicit empty whitelist allows none. Unknown names
// and categories are rejected here, not at invocation time.
func NewFilter(whitelist []string) (*Filter, error) {
	if whitelist == nil {
		return &Filter{allowAll: true}, nil
	}

	allowed := make(map[string]struct{})
	for _, entry := range whitelist {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if expansion, ok := categories[entry]; ok {
			for _, name := range expansion {
				allowed[name] = struct{}{}
			}
			continue
		}
		if !KnownTool(entry) {
			return nil, fmt.Errorf("unknown tool or category %q in whitelist", entry)
		}
		allowed[entry] = struct{}{}
	}

	return &Filter{allowed: allowed}, nil
}

// ValidateWhitelist checks that every entry of a whitelist is a known tool
// or category without building a filter the caller would throw away.
func ValidateWhitelist(whitelist []string) error {
	_, err := NewFilter(whitelist)
	return err
}

// Allows reports whether the named tool may be invoked.
func (f *Filter) Allows(name string) bool {
	if f.allowAll {
		return true
	}
	_, ok := f.allowed[name]
	return ok
}

// AllowedNames returns the allowed tool names sorted, or every known tool
// for an unrestricted filter.
func (f *Filter) AllowedNames() []string {
	if f.allowAll {
		return AllToolNames()
	}
	names := make([]string, 0, len(f.allowed))
	for name := range f.allowed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unrestricted reports whether the filter allows every tool.
func (f *Filter) Unrestricted() bool {
	return f.allowAll
}
