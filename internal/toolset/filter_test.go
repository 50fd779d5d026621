package toolset

import (
	"testing"
)

func TestNewFilter_NilAllowsEverything(t *testing.T) {
	f, err := NewFilter(nil)
	if err != nil {
		t.Fatalf("NewFilter(nil) error = %v", err)
	}
	if !f.Unrestricted() {
		t.Error("Unrestricted() = false for nil whitelist")
	}
	for _, name := range AllToolNames() {
		if !f.Allows(name) {
			t.Errorf("Allows(%q) = false, want true for nil whitelist", name)
		}
	}
}

func TestNewFilter_EmptyAllowsNothing(t *testing.T) {
	f, err := NewFilter([]string{})
	if err != nil {
		t.Fatalf("NewFilter([]) error = %v", err)
	}
	if f.Unrestricted() {
		t.Error("Unrestricted() = true for explicit empty whitelist")
	}
	for _, name := range AllToolNames() {
		if f.Allows(name) {
			t.Errorf("Allows(%q) = true, want false for explicit empty whitelist", name)
		}
	}
}

func TestNewFilter_ExplicitNames(t *testing.T) {
	f, err := NewFilter([]string{ToolReadFile, ToolGrep})
	if err != nil {
		t.Fatalf("NewFilter() error = %v", err)
	}

	tests := []struct {
		tool string
		want bool
	}{
		{ToolReadFile, true},
		{ToolGrep, true},
		{ToolWriteFile, false},
		{ToolBash, false},
		{ToolGlob, false},
	}
	for _, tc := range tests {
		if got := f.Allows(tc.tool); got != tc.want {
			t.Errorf("Allows(%q) = %v, want %v", tc.tool, got, tc.want)
		}
	}
}

func TestNewFilter_CategoryExpansion(t *testing.T) {
	tests := []struct {
		name      string
		whitelist []string
		allowed   []string
		denied    []string
	}{
		{
			name:      "read category",
			whitelist: []string{"read"},
			allowed:   []string{ToolReadFile, ToolListDir, ToolGlob, ToolGrep},
			denied:    []string{ToolWriteFile, ToolEditFile, ToolBash},
		},
		{
			name:      "edit category",
			whitelist: []string{"edit"},
			allowed:   []string{ToolWriteFile, ToolEditFile},
			denied:    []string{ToolReadFile, ToolBash},
		},
		{
			name:      "exec category",
			whitelist: []string{"exec"},
			allowed:   []string{ToolBash},
			denied:    []string{ToolReadFile, ToolWriteFile},
		},
		{
			name:      "category mixed with explicit name",
			whitelist: []string{"read", ToolBash},
			allowed:   []string{ToolReadFile, ToolGrep, ToolBash},
			denied:    []string{ToolWriteFile, ToolEditFile},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := NewFilter(tc.whitelist)
			if err != nil {
				t.Fatalf("NewFilter(%v) error = %v", tc.whitelist, err)
			}
			for _, name := range tc.allowed {
				if !f.Allows(name) {
					t.Errorf("Allows(%q) = false, want true", name)
				}
			}
			for _, name := range tc.denied {
				if f.Allows(name) {
					t.Errorf("Allows(%q) = true, want false", name)
				}
			}
		})
	}
}

func TestNewFilter_UnknownEntriesRejected(t *testing.T) {
	tests := []struct {
		name      string
		whitelist []string
	}{
		{"unknown tool", []string{"teleport"}},
		{"unknown category", []string{"network"}},
		{"valid plus unknown", []string{ToolReadFile, "teleport"}},
		{"case sensitive", []string{"Read_File"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewFilter(tc.whitelist); err == nil {
				t.Errorf("NewFilter(%v) = nil error, want rejection at construction", tc.whitelist)
			}
		})
	}
}

func TestFilter_AllowedNames(t *testing.T) {
	f, err := NewFilter([]string{"edit"})
	if err != nil {
		t.Fatalf("NewFilter() error = %v", err)
	}

	names := f.AllowedNames()
	if len(names) != 2 {
		t.Fatalf("AllowedNames() = %v, want 2 entries", names)
	}
	// Sorted: edit_file before write_file.
	if names[0] != ToolEditFile || names[1] != ToolWriteFile {
		t.Errorf("AllowedNames() = %v, want sorted [edit_file write_file]", names)
	}
}

func TestFilteredCatalog(t *testing.T) {
	f, err := NewFilter([]string{ToolReadFile})
	if err != nil {
		t.Fatalf("NewFilter() error = %v", err)
	}

	defs := FilteredCatalog(f)
	if len(defs) != 1 || defs[0].Name != ToolReadFile {
		t.Errorf("FilteredCatalog() = %d defs, want only read_file", len(defs))
	}

	all := FilteredCatalog(nil)
	if len(all) != len(Catalog()) {
		t.Errorf("FilteredCatalog(nil) = %d defs, want full catalog", len(all))
	}
}

func TestCatalog_SchemasComplete(t *testing.T) {
	for _, def := range Catalog() {
		if def.Name == "" {
			t.Error("catalog entry with empty name")
		}
		if def.Description == "" {
			t.Errorf("tool %s has no description", def.Name)
		}
		if len(def.Properties) == 0 {
			t.Errorf("tool %s has no properties", def.Name)
		}
		if len(def.Required) == 0 {
			t.Errorf("tool %s has no required arguments", def.Name)
		}
		for _, req := range def.Required {
			if _, ok := def.Properties[req]; !ok {
				t.Errorf("tool %s requires %q but does not declare it", def.Name, req)
			}
		}
	}
}
