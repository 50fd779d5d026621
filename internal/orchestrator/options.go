package orchestrator

import (
	"time"

	"github.com/ShayCichocki/posse/internal/events"
	"github.com/ShayCichocki/posse/internal/runner"
	"github.com/ShayCichocki/posse/internal/state"
	"github.com/ShayCichocki/posse/internal/toolset"
)

// RequiredConfig contains the minimal required configuration for an
// Orchestrator. All fields are required and have no defaults.
type RequiredConfig struct {
	// Resolver provides agent definitions. *agent.Registry satisfies it.
	Resolver runner.Resolver
	// Client talks to the Model Invocation Service.
	Client runner.ModelClient
	// Invoker executes tool calls.
	Invoker toolset.Invoker
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	maxConcurrent  int
	bus            *events.Bus
	history        state.HistoryStore
	logger         *DebugLogger
	defaultTimeout time.Duration
	maxRetries     int
	retryBaseDelay time.Duration
	onStream       func(runID, chunk string)
}

// WithMaxConcurrent sets the concurrency ceiling for simultaneous runs.
func WithMaxConcurrent(n int) Option {
	return func(o *orchestratorOptions) { o.maxConcurrent = n }
}

// WithBus sets the event bus lifecycle events are published to.
// If unset, the orchestrator creates its own.
func WithBus(b *events.Bus) Option {
	return func(o *orchestratorOptions) { o.bus = b }
}

// WithHistory sets the store that terminal reports and metric snapshots are
// persisted to. If unset, nothing is persisted.
func WithHistory(h state.HistoryStore) Option {
	return func(o *orchestratorOptions) { o.history = h }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithDefaultTimeout sets the wall-clock cap applied to runs whose request
// carries no timeout of its own.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.defaultTimeout = d }
}

// WithMaxRetries sets the model call retry bound per iteration.
func WithMaxRetries(n int) Option {
	return func(o *orchestratorOptions) { o.maxRetries = n }
}

// WithRetryBaseDelay sets the base delay for model call retry backoff.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.retryBaseDelay = d }
}

// WithStreamHandler registers a callback for streamed output chunks.
func WithStreamHandler(fn func(runID, chunk string)) Option {
	return func(o *orchestratorOptions) { o.onStream = fn }
}
