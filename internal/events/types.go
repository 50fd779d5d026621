// Package events provides the in-process event bus that orchestration
// components publish run progress on, and the recorder that keeps a bounded
// history of what happened.
package events

import (
	"time"

	"github.com/ShayCichocki/posse/pkg/models"
)

// Topic partitions the bus. Subscribers register per topic.
type Topic string

const (
	// TopicTask carries run lifecycle events (queued, started, terminal).
	TopicTask Topic = "task"
	// TopicLog carries free-form progress lines from runs.
	TopicLog Topic = "log"
	// TopicTool carries per-tool-call events.
	TopicTool Topic = "tool"
	// TopicPlan carries batch plan snapshots.
	TopicPlan Topic = "plan"
)

// Event types published on TopicTask.
const (
	TaskQueued    = "task_queued"
	TaskStarted   = "task_started"
	TaskCompleted = "task_completed"
	TaskFailed    = "task_failed"
)

// Event types published on TopicTool.
const (
	ToolStarted   = "tool_started"
	ToolCompleted = "tool_completed"
	ToolFailed    = "tool_failed"
	ToolDenied    = "tool_denied"
)

// Event types published on TopicLog and TopicPlan.
const (
	LogLine      = "log_line"
	PlanCaptured = "plan_captured"
)

// Event is a single occurrence published on the bus. Fields beyond Topic,
// Type, and Timestamp are populated per topic: task events carry RunID,
// AgentName, and a Report once terminal; tool events add Tool and Err;
// log events carry Message; plan events carry Plan.
type Event struct {
	Topic     Topic
	Type      string
	RunID     string
	AgentName string
	// Task is a one-line summary of the delegated task, set on queued events.
	Task      string
	Tool      string
	Message   string
	Err       string
	Report    *models.SubAgentReport
	Plan      *models.Plan
	Timestamp time.Time
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must return quickly.
type Handler func(Event)
