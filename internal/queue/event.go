// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// WorkflowQueueName is the durable queue carrying workflow events.
const WorkflowQueueName = "festival.workflow"

// Event kinds.
const (
	KindProgramCreated        = "program.created"
	KindProgramStateChanged   = "program.state_changed"
	KindScreeningCreated      = "screening.created"
	KindScreeningStateChanged = "screening.state_changed"
	KindScreeningWithdrawn    = "screening.withdrawn"
	KindScreeningAutoRejected = "screening.auto_rejected"
)

// WorkflowEvent is published after a workflow mutation commits.  It carries
// enough context for the audit consumer to write a line without querying
// the primary database.
type WorkflowEvent struct {
	Kind        string    `json:"kind"`
	ProgramID   int64     `json:"program_id"`
	ScreeningID int64     `json:"screening_id,omitempty"`
	ActorID     int64     `json:"actor_id,omitempty"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to,omitempty"`
	Count       int       `json:"count,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
