package toolset

import (
	"sort"

	"github.com/ShayCichocki/posse/pkg/models"
)

// Canonical tool names. Definitions whitelist these (or the category
// shorthands that expand to them).
const (
	ToolReadFile  = "read_file"
	ToolWriteFile = "write_file"
	ToolEditFile  = "edit_file"
	ToolListDir   = "list_dir"
	ToolGlob      = "glob"
	ToolGrep      = "grep"
	ToolBash      = "bash"
)

// Catalog returns the schema for every tool the local executor implements.
func Catalog() []models.ToolDef {
	return []models.ToolDef{
		{
			Name:        ToolReadFile,
			Description: "Read a file and return its contents with line numbers.",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file, relative to the working directory",
				},
				"offset": map[string]any{
					"type":        "integer",
					"description": "Line number to start reading from (1-indexed, optional)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of lines to read (optional)",
				},
			},
			Required: []string{"path"},
		},
		{
			Name:        ToolWriteFile,
			Description: "Write content to a file. Creates parent directories if needed.",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file, relative to the working directory",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Content to write to the file",
				},
			},
			Required: []string{"path", "content"},
		},
		{
			Name:        ToolEditFile,
			Description: "Edit a file by replacing text. The old_string must be unique unless replace_all is true.",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file, relative to the working directory",
				},
				"old_string": map[string]any{
					"type":        "string",
					"description": "The exact text to find and replace",
				},
				"new_string": map[string]any{
					"type":        "string",
					"description": "The text to replace it with",
				},
				"replace_all": map[string]any{
					"type":        "boolean",
					"description": "If true, replace all occurrences (default: false)",
				},
			},
			Required: []string{"path", "old_string", "new_string"},
		},
		{
			Name:        ToolListDir,
			Description: "List contents of a directory.",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Directory path to list, relative to the working directory",
				},
			},
			Required: []string{"path"},
		},
		{
			Name:        ToolGlob,
			Description: "Find files matching a glob pattern.",
			Properties: map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "Glob pattern to match (e.g. '**/*.go', 'src/*.ts')",
				},
			},
			Required: []string{"pattern"},
		},
		{
			Name:        ToolGrep,
			Description: "Search file contents for a regex pattern.",
			Properties: map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "Regex pattern to search for",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "File or directory to search in (optional, defaults to the working directory)",
				},
			},
			Required: []string{"pattern"},
		},
		{
			Name:        ToolBash,
			Description: "Execute a shell command in the working directory and return combined output.",
			Properties: map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The shell command to execute",
				},
			},
			Required: []string{"command"},
		},
	}
}

// knownTools is the name set of the catalog, built once.
var knownTools = func() map[string]struct{} {
	names := make(map[string]struct{})
	for _, def := range Catalog() {
		names[def.Name] = struct{}{}
	}
	return names
}()

// KnownTool reports whether name is in the catalog.
func KnownTool(name string) bool {
	_, ok := knownTools[name]
	return ok
}

// AllToolNames returns every catalog tool name sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(knownTools))
	for name := range knownTools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FilteredCatalog returns the catalog reduced to what the filter allows.
func FilteredCatalog(filter *Filter) []models.ToolDef {
	all := Catalog()
	if filter == nil || filter.Unrestricted() {
		return all
	}
	out := make([]models.ToolDef, 0, len(all))
	for _, def := range all {
		if filter.Allows(def.Name) {
			out = append(out, def)
		}
	}
	return out
}
