package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ShayCichocki/posse/internal/agent"
	"github.com/ShayCichocki/posse/internal/config"
	"github.com/ShayCichocki/posse/internal/events"
	"github.com/ShayCichocki/posse/internal/orchestrator"
	"github.com/ShayCichocki/posse/internal/state"
	"github.com/ShayCichocki/posse/internal/toolset"
)

// streamRelay hands model output chunks to whichever sink is active.
// The orchestrator is constructed before the TUI program exists, so the
// stream handler is wired through this indirection and the sink attached
// once the program is running.
type streamRelay struct {
	mu   sync.RWMutex
	sink func(runID, chunk string)
}

// Set installs the active sink. A nil sink silences the relay.
func (r *streamRelay) Set(fn func(runID, chunk string)) {
	r.mu.Lock()
	r.sink = fn
	r.mu.Unlock()
}

// Send forwards one chunk to the active sink, if any.
func (r *streamRelay) Send(runID, chunk string) {
	r.mu.RLock()
	fn := r.sink
	r.mu.RUnlock()
	if fn != nil {
		fn(runID, chunk)
	}
}

// engine bundles the wired-up pieces a delegation command needs.
type engine struct {
	registry *agent.Registry
	orch     *orchestrator.Orchestrator
	bus      *events.Bus
	history  *state.DB // nil when history is disabled or unavailable
	relay    *streamRelay
	logger   *orchestrator.DebugLogger
}

// Close drains the orchestrator, then releases the history store and the
// debug log.
func (e *engine) Close() {
	if e.orch != nil {
		e.orch.Close()
	}
	if e.history != nil {
		e.history.Close()
	}
	if e.logger != nil {
		e.logger.Close()
	}
}

// buildEngine wires registry, model client, tool executor, bus, history
// store, and orchestrator from config. maxConcurrent overrides the
// configured ceiling when positive.
func buildEngine(cfg *config.Config, cwd string, maxConcurrent int) (*engine, error) {
	registry := buildRegistry(cfg, cwd)
	reportLoadErrors(registry)

	client, err := buildModelClient(cfg)
	if err != nil {
		return nil, err
	}

	invoker, err := toolset.NewLocalExecutor(cwd, toolset.NewShellRunner())
	if err != nil {
		return nil, fmt.Errorf("create tool executor: %w", err)
	}

	bus := events.NewBus()
	logger := orchestrator.NewDebugLoggerForProject(cwd)
	relay := &streamRelay{}

	if maxConcurrent <= 0 {
		maxConcurrent = cfg.MaxConcurrent
	}

	opts := []orchestrator.Option{
		orchestrator.WithMaxConcurrent(maxConcurrent),
		orchestrator.WithBus(bus),
		orchestrator.WithDefaultTimeout(cfg.DefaultTimeout),
		orchestrator.WithMaxRetries(cfg.ModelRetries),
		orchestrator.WithLogger(logger),
		orchestrator.WithStreamHandler(relay.Send),
	}

	var db *state.DB
	if cfg.History.Enabled {
		db, err = openHistory(cfg, cwd)
		if err != nil {
			// History is optional - warn and continue
			fmt.Fprintf(os.Stderr, "Warning: run history unavailable: %v\n", err)
			db = nil
		} else {
			opts = append(opts, orchestrator.WithHistory(db))
		}
	}

	orch := orchestrator.New(orchestrator.RequiredConfig{
		Resolver: registry,
		Client:   client,
		Invoker:  invoker,
	}, opts...)

	return &engine{
		registry: registry,
		orch:     orch,
		bus:      bus,
		history:  db,
		relay:    relay,
		logger:   logger,
	}, nil
}

// buildRegistry discovers agent definitions from both scopes with the
// protected-name guard applied. Config may override either directory.
func buildRegistry(cfg *config.Config, cwd string) *agent.Registry {
	guard := agent.NewGuard()
	for _, name := range cfg.ProtectedAgents {
		guard.Add(name)
	}

	userDir := cfg.Agents.UserDir
	if userDir == "" {
		if dir, err := agent.UserAgentsDir(); err == nil {
			userDir = dir
		}
		// No resolvable home dir leaves the user scope empty; the
		// project scope still works.
	}
	projectDir := cfg.Agents.ProjectDir
	if projectDir == "" {
		projectDir = agent.ProjectAgentsDir(cwd)
	}

	return agent.NewRegistry(agent.NewDiscoverer(userDir, projectDir, guard))
}

// reportLoadErrors prints definition files that failed to load.
func reportLoadErrors(registry *agent.Registry) {
	for _, loadErr := range registry.LoadErrors() {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", loadErr)
	}
}

// openHistory opens the run-history database and applies migrations.
func openHistory(cfg *config.Config, cwd string) (*state.DB, error) {
	var db *state.DB
	var err error
	if cfg.History.Path != "" {
		db, err = state.Open(cfg.History.Path)
	} else {
		db, err = state.OpenProject(cwd)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// parseMetaFlags parses repeated key=value pairs into a metadata map.
func parseMetaFlags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --meta value %q, expected key=value", pair)
		}
		meta[key] = value
	}
	return meta, nil
}
