package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/posse/pkg/models"
)

// timelineCapacity bounds the merged timeline and the raw tool event log.
// When full, the oldest entries are evicted first.
const timelineCapacity = 400

// TimelineEntry is one line of the merged run timeline. Task and log events
// land here directly; tool events are projected into synthetic log lines.
type TimelineEntry struct {
	Topic     Topic
	Type      string
	RunID     string
	AgentName string
	Message   string
	Timestamp time.Time
}

// Recorder subscribes to every bus topic at construction and keeps a bounded
// in-memory history: the merged timeline, the raw tool events, and the most
// recent plan snapshot.
type Recorder struct {
	mu         sync.Mutex
	timeline   []TimelineEntry
	toolEvents []Event
	plan       *models.Plan

	disposers []func()
	disposed  bool
}

// NewRecorder creates a recorder wired to all four topics of bus.
func NewRecorder(bus *Bus) *Recorder {
	r := &Recorder{
		timeline:   make([]TimelineEntry, 0, timelineCapacity),
		toolEvents: make([]Event, 0, timelineCapacity),
	}
	r.disposers = []func(){
		bus.Subscribe(TopicTask, r.onTask),
		bus.Subscribe(TopicLog, r.onLog),
		bus.Subscribe(TopicTool, r.onTool),
		bus.Subscribe(TopicPlan, r.onPlan),
	}
	return r
}

func (r *Recorder) onTask(event Event) {
	message := event.Message
	if message == "" {
		message = fmt.Sprintf("%s %s", event.AgentName, event.Type)
	}
	r.append(TimelineEntry{
		Topic:     TopicTask,
		Type:      event.Type,
		RunID:     event.RunID,
		AgentName: event.AgentName,
		Message:   message,
		Timestamp: event.Timestamp,
	})
}

func (r *Recorder) onLog(event Event) {
	r.append(TimelineEntry{
		Topic:     TopicLog,
		Type:      event.Type,
		RunID:     event.RunID,
		AgentName: event.AgentName,
		Message:   event.Message,
		Timestamp: event.Timestamp,
	})
}

// onTool keeps the raw event and projects a synthetic log line into the
// timeline: completions get a summary, failures carry their reason, anything
// else becomes a generic status line.
func (r *Recorder) onTool(event Event) {
	r.mu.Lock()
	r.toolEvents = append(r.toolEvents, event)
	if len(r.toolEvents) > timelineCapacity {
		overflow := len(r.toolEvents) - timelineCapacity
		copy(r.toolEvents, r.toolEvents[overflow:])
		r.toolEvents = r.toolEvents[:timelineCapacity]
	}
	r.mu.Unlock()

	var message string
	switch event.Type {
	case ToolCompleted:
		message = fmt.Sprintf("tool %s completed", event.Tool)
	case ToolFailed:
		message = fmt.Sprintf("tool %s failed: %s", event.Tool, event.Err)
	case ToolDenied:
		message = fmt.Sprintf("tool %s denied: %s", event.Tool, event.Err)
	default:
		message = fmt.Sprintf("tool %s %s", event.Tool, event.Type)
	}
	r.append(TimelineEntry{
		Topic:     TopicLog,
		Type:      LogLine,
		RunID:     event.RunID,
		AgentName: event.AgentName,
		Message:   message,
		Timestamp: event.Timestamp,
	})
}

// onPlan captures a deep copy of the snapshot so later mutations by the
// publisher never show up in the recorded plan.
func (r *Recorder) onPlan(event Event) {
	if event.Plan == nil {
		return
	}
	r.mu.Lock()
	r.plan = event.Plan.Clone()
	r.mu.Unlock()
}

func (r *Recorder) append(entry TimelineEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeline = append(r.timeline, entry)
	if len(r.timeline) > timelineCapacity {
		overflow := len(r.timeline) - timelineCapacity
		copy(r.timeline, r.timeline[overflow:])
		r.timeline = r.timeline[:timelineCapacity]
	}
}

// TimelineEvents returns the merged timeline oldest-first. A positive limit
// returns only the most recent limit entries; limit <= 0 returns everything
// retained.
func (r *Recorder) TimelineEvents(limit int) []TimelineEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.timeline
	if limit > 0 && limit < len(entries) {
		entries = entries[len(entries)-limit:]
	}
	out := make([]TimelineEntry, len(entries))
	copy(out, entries)
	return out
}

// ToolEvents returns the retained raw tool events oldest-first.
func (r *Recorder) ToolEvents() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.toolEvents))
	copy(out, r.toolEvents)
	return out
}

// PlanSnapshot returns a copy of the most recent plan, or nil if none was
// captured yet.
func (r *Recorder) PlanSnapshot() *models.Plan {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.plan.Clone()
}

// Dispose unregisters the recorder from every topic. Safe to call
// repeatedly; only the first call does the work.
func (r *Recorder) Dispose() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	disposers := r.disposers
	r.disposers = nil
	r.mu.Unlock()

	for _, dispose := range disposers {
		dispose()
	}
}
