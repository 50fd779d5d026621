package agent

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/posse/pkg/models"
)

// DefaultProtectedNames lists agent names reserved for built-in definitions.
// A user or project definition may only claim one of these by setting the
// override flag in its frontmatter.
var DefaultProtectedNames = []string{
	"general",
	"posse",
}

// Guard decides whether a definition may claim its name.
type Guard struct {
	names map[string]struct{}
	mu    sync.RWMutex
}

// posseConfig is the slice of .posse.yaml the guard cares about.
type posseConfig struct {
	ProtectedAgents []string `yaml:"protected_agents"`
}

// NewGuard creates a guard with the default protected names.
func NewGuard() *Guard {
	g := &Guard{names: make(map[string]struct{})}
	for _, name := range DefaultProtectedNames {
		g.names[name] = struct{}{}
	}
	return g
}

// IsProtected reports whether name is reserved.
func (g *Guard) IsProtected(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.names[strings.ToLower(name)]
	return ok
}

// Check returns an error when def claims a protected name without the
// override flag set.
func (g *Guard) Check(def *models.AgentDefinition) error {
	if !g.IsProtected(def.Name) {
		return nil
	}
	if def.Override {
		return nil
	}
	return fmt.Errorf("%w: %q requires override: true", ErrProtectedName, def.Name)
}

// Add reserves an additional name.
func (g *Guard) Add(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.names[strings.ToLower(name)] = struct{}{}
}

// LoadConfig merges protected names from a .posse.yaml file.
func (g *Guard) LoadConfig(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	var config posseConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, name := range config.ProtectedAgents {
		name = strings.TrimSpace(strings.ToLower(name))
		if name != "" {
			g.names[name] = struct{}{}
		}
	}

	return nil
}
