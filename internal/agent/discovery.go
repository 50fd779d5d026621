package agent

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ShayCichocki/posse/pkg/models"
)

// UserAgentsDir returns the user-scope definition directory,
// $XDG_CONFIG_HOME/posse/agents with the usual ~/.config fallback.
func UserAgentsDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, "posse", "agents"), nil
}

// ProjectAgentsDir returns the project-scope definition directory under root.
func ProjectAgentsDir(root string) string {
	return filepath.Join(root, ".posse", "agents")
}

// Discoverer scans definition directories and merges them into one catalog.
// User scope is read first, then project scope; a project definition wins
// any name collision with a user one.
type Discoverer struct {
	userDir    string
	projectDir string
	guard      *Guard
}

// NewDiscoverer creates a discoverer over the two scope directories.
// Either directory may be empty or missing; a missing scope is not an error.
func NewDiscoverer(userDir, projectDir string, guard *Guard) *Discoverer {
	return &Discoverer{
		userDir:    userDir,
		projectDir: projectDir,
		guard:      guard,
	}
}

// Discover loads every definition file from both scopes. It returns the
// merged catalog keyed by agent name plus the per-file load errors. A file
// that fails to parse or validate is skipped and reported; it never aborts
// the scan.
func (d *Discoverer) Discover() (map[string]*models.AgentDefinition, []*DefinitionLoadError) {
	catalog := make(map[string]*models.AgentDefinition)
	var loadErrs []*DefinitionLoadError

	userDefs, errs := d.scanDir(d.userDir, models.ScopeUser)
	loadErrs = append(loadErrs, errs...)
	for name, def := range userDefs {
		catalog[name] = def
	}

	projectDefs, errs := d.scanDir(d.projectDir, models.ScopeProject)
	loadErrs = append(loadErrs, errs...)
	for name, def := range projectDefs {
		if prev, ok := catalog[name]; ok {
			log.Printf("[agent] project definition %s shadows user definition %s", def.SourcePath, prev.SourcePath)
		}
		catalog[name] = def
	}

	return catalog, loadErrs
}

// scanDir loads all .md definitions from one directory. Files are visited in
// lexical order; within a scope the first definition claims a name and any
// later duplicate is reported as a load error.
func (d *Discoverer) scanDir(dir string, scope models.DefinitionScope) (map[string]*models.AgentDefinition, []*DefinitionLoadError) {
	defs := make(map[string]*models.AgentDefinition)
	if dir == "" {
		return defs, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return defs, nil
		}
		return defs, []*DefinitionLoadError{{
			Path:  dir,
			Scope: string(scope),
			Err:   err,
		}}
	}

	var loadErrs []*DefinitionLoadError
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".md") {
			continue
		}
		path := filepath.Join(dir, name)

		def, err := ParseDefinitionFile(path, scope)
		if err != nil {
			log.Printf("[agent] skipping %s: %v", path, err)
			loadErrs = append(loadErrs, &DefinitionLoadError{Path: path, Scope: string(scope), Err: err})
			continue
		}
		if d.guard != nil {
			if err := d.guard.Check(def); err != nil {
				log.Printf("[agent] skipping %s: %v", path, err)
				loadErrs = append(loadErrs, &DefinitionLoadError{Path: path, Scope: string(scope), Err: err})
				continue
			}
		}
		if prev, ok := defs[def.Name]; ok {
			loadErrs = append(loadErrs, &DefinitionLoadError{
				Path:  path,
				Scope: string(scope),
				Err:   fmt.Errorf("duplicate agent name %q, already defined in %s", def.Name, prev.SourcePath),
			})
			continue
		}
		defs[def.Name] = def
	}

	return defs, loadErrs
}
