package jobstore

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/prospecthq/prospector/pkg/models"
)

// Publisher is the single write path from stage execution into one job record.
// Stages never touch the store directly; they emit through a Publisher, which
// forwards into the store's guarded mutations and mirrors each message to the
// process log.
type Publisher struct {
	store *Store
	id    uuid.UUID
}

// NewPublisher creates a Publisher bound to one job.
func NewPublisher(store *Store, id uuid.UUID) *Publisher {
	return &Publisher{store: store, id: id}
}

// Progress records a status line with optional phase and step advancement.
// A zero step means "no step information".
func (p *Publisher) Progress(msg string, phase Phase, step int) {
	if err := p.store.AddProgress(p.id, msg, phase, step); err != nil {
		slog.Warn("progress dropped", "job_id", p.id, "error", err)
		return
	}
	slog.Info("progress", "job_id", p.id, "phase", phase, "step", step, "message", msg)
}

// Milestone records a durable accomplishment. Milestones remain visible for
// the life of the job even after later messages supersede the status line.
func (p *Publisher) Milestone(msg string, phase Phase, step int) {
	p.Progress(MilestoneMarker+" "+msg, phase, step)
}

// Activity replaces the job's fine-grained activity snapshot.
func (p *Publisher) Activity(handle string, activity models.ResearchActivity) {
	if err := p.store.SetActivity(p.id, handle, activity); err != nil {
		slog.Warn("activity dropped", "job_id", p.id, "error", err)
	}
}
