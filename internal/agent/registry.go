package agent

import (
	"log"
	"sort"
	"sync"

	"github.com/ShayCichocki/posse/pkg/models"
)

// DefaultMaxIterations bounds the tool loop for definitions that do not set
// their own limit.
const DefaultMaxIterations = 10

// generalPrompt is the system prompt of the built-in general agent.
const generalPrompt = `You are a capable general-purpose sub-agent. Complete the delegated task
using the tools available to you, then summarize what you did and what you
found. Be concise and concrete. If you cannot finish, report how far you got
and what is missing.`

// builtinDefinitions returns the definitions every registry starts with.
func builtinDefinitions() map[string]*models.AgentDefinition {
	return map[string]*models.AgentDefinition{
		"general": {
			Name:          "general",
			Description:   "General-purpose agent for tasks that fit no specialist",
			MaxIterations: DefaultMaxIterations,
			SystemPrompt:  generalPrompt,
			Enabled:       true,
			Scope:         models.ScopeBuiltin,
		},
	}
}

// Registry is the live agent catalog. Reads see a consistent snapshot at all
// times; Reload swaps the whole catalog in one step so a reader never
// observes a half-updated set. Definitions handed out are shared and must be
// treated as immutable; runs that started before a reload keep the definition
// they resolved.
type Registry struct {
	mu         sync.RWMutex
	catalog    map[string]*models.AgentDefinition
	loadErrs   []*DefinitionLoadError
	discoverer *Discoverer
}

// NewRegistry builds a registry seeded with the built-in definitions and
// performs the initial discovery scan. Per-file load errors are recorded,
// not returned; a registry is usable even when every file on disk is broken.
func NewRegistry(discoverer *Discoverer) *Registry {
	r := &Registry{
		catalog:    builtinDefinitions(),
		discoverer: discoverer,
	}
	r.Reload()
	return r
}

// Reload rescans both scope directories and atomically replaces the catalog.
// Built-in definitions are re-seeded first so deleting a file on disk also
// removes its agent on the next reload.
func (r *Registry) Reload() {
	catalog := builtinDefinitions()
	var loadErrs []*DefinitionLoadError

	if r.discoverer != nil {
		discovered, errs := r.discoverer.Discover()
		loadErrs = errs
		for name, def := range discovered {
			catalog[name] = def
		}
	}

	r.mu.Lock()
	r.catalog = catalog
	r.loadErrs = loadErrs
	r.mu.Unlock()

	log.Printf("[agent] registry loaded: %d agents, %d load errors", len(catalog), len(loadErrs))
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (*models.AgentDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.catalog[name]
	return def, ok
}

// IsEnabled reports whether name exists and is enabled.
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.catalog[name]
	return ok && def.Enabled
}

// ListAll returns every definition sorted by name.
func (r *Registry) ListAll() []*models.AgentDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*models.AgentDefinition, 0, len(r.catalog))
	for _, def := range r.catalog {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// LoadErrors returns the load errors recorded by the most recent scan.
func (r *Registry) LoadErrors() []*DefinitionLoadError {
	r.mu.RLock()
	defer r.mu.RUnlock()
	errs := make([]*DefinitionLoadError, len(r.loadErrs))
	copy(errs, r.loadErrs)
	return errs
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.catalog)
}
