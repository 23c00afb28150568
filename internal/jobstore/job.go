// Package jobstore holds the in-memory records for pipeline runs. It is the
// single source of truth for live job state: the stage executor writes through
// it, and the poll and stream endpoints read consistent snapshots from it.
package jobstore

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prospecthq/prospector/pkg/models"
)

// Status is the lifecycle state of a job. Terminal statuses are final: once a
// job is complete, failed, or cancelled it never transitions again.
type Status string

const (
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed || s == StatusCancelled
}

// Phase is the coarse pipeline phase a job is in.
type Phase string

const (
	PhaseResearch Phase = "research"
	PhaseAnalysis Phase = "analysis"
	PhaseWriting  Phase = "writing"
)

// phaseOrder fixes the forward-only ordering of phases. The zero Phase sorts
// before all real phases.
var phaseOrder = map[Phase]int{
	"":            0,
	PhaseResearch: 1,
	PhaseAnalysis: 2,
	PhaseWriting:  3,
}

// MilestoneMarker prefixes durable, user-facing progress messages. Milestones
// stay visible for the life of the job even as the latest status line moves on.
const MilestoneMarker = "✓"

// DefaultMessage is what readers report before the first progress message lands.
const DefaultMessage = "Starting..."

// Message is one entry in a job's append-only progress log.
type Message struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is an immutable copy of a job's state at a point in time. Mutating
// a snapshot never affects the store.
type Snapshot struct {
	ID          uuid.UUID
	SubjectName string
	Status      Status
	Phase       Phase
	CurrentStep int
	TotalSteps  int
	Messages    []Message
	Activity    *models.ResearchActivity
	Result      any
	Error       string
	CreatedAt   time.Time
	FinishedAt  time.Time
}

// LatestMessage returns the most recent progress message, or DefaultMessage
// when none has been recorded yet.
func (s Snapshot) LatestMessage() string {
	if len(s.Messages) == 0 {
		return DefaultMessage
	}
	return s.Messages[len(s.Messages)-1].Message
}

// Milestones returns every milestone message in insertion order.
func (s Snapshot) Milestones() []string {
	milestones := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		if strings.HasPrefix(m.Message, MilestoneMarker) {
			milestones = append(milestones, m.Message)
		}
	}
	return milestones
}
