package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/prospecthq/prospector/internal/cache"
	"github.com/prospecthq/prospector/internal/jobstore"
	"github.com/prospecthq/prospector/pkg/models"
)

// statusMirrorTTL bounds how long the Redis status mirror outlives a job.
const statusMirrorTTL = 30 * time.Minute

// remoteCancelTimeout bounds the best-effort provider-side cancel call.
const remoteCancelTimeout = 10 * time.Second

// Archiver receives completed profiles for persistence.
type Archiver interface {
	SaveProfile(ctx context.Context, p *models.ArchivedProfile) error
}

// Service owns job lifecycle: it creates the record, dispatches the pipeline
// in a background goroutine, and fans user cancellation out to the store and
// to any outstanding provider-side operation.
type Service struct {
	store      *jobstore.Store
	runner     *Runner
	gen        models.Generator
	cache      cache.Cache
	archiver   Archiver
	totalSteps int
}

func NewService(store *jobstore.Store, runner *Runner, gen models.Generator, ca cache.Cache, archiver Archiver, totalSteps int) *Service {
	return &Service{
		store:      store,
		runner:     runner,
		gen:        gen,
		cache:      ca,
		archiver:   archiver,
		totalSteps: totalSteps,
	}
}

// StartProfile creates a running job and dispatches the pipeline in a
// background goroutine. Returns the job snapshot immediately.
func (s *Service) StartProfile(ctx context.Context, subjectName string, seedURLs []string) (jobstore.Snapshot, error) {
	if subjectName == "" {
		return jobstore.Snapshot{}, fmt.Errorf("subject name is required")
	}

	snap := s.store.Create(subjectName, s.totalSteps)
	_ = s.cache.SetJobStatus(ctx, snap.ID, string(jobstore.StatusRunning), statusMirrorTTL)

	go s.run(snap.ID, Request{SubjectName: subjectName, SeedURLs: seedURLs})

	return snap, nil
}

// Status returns the current snapshot for a job.
func (s *Service) Status(id uuid.UUID) (jobstore.Snapshot, bool) {
	return s.store.Get(id)
}

// run executes the pipeline for one job. It recovers from panics and always
// leaves the job in exactly one terminal state, unless a cancel already did,
// in which case the store's terminal guard discards whatever arrives late.
func (s *Service) run(id uuid.UUID, req Request) {
	ctx, ok := s.store.Context(id)
	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in pipeline run", "job_id", id, "error", r)
			_ = s.store.Fail(id, fmt.Sprintf("internal error: %v", r))
			s.mirrorStatus(id)
		}
	}()

	sink := jobstore.NewPublisher(s.store, id)
	sink.Progress(fmt.Sprintf("Starting profile generation for %s...", req.SubjectName), "", 0)

	result, err := s.runner.Run(ctx, req, sink)
	if err != nil {
		// A no-op when the job was cancelled mid-flight: cancelled is
		// authoritative and never overwritten.
		_ = s.store.Fail(id, err.Error())
	} else {
		// Likewise a no-op after cancellation: a late result is discarded.
		_ = s.store.Complete(id, result)
	}
	s.mirrorStatus(id)

	if snap, ok := s.store.Get(id); ok && snap.Status == jobstore.StatusComplete {
		s.archiveResult(result)
	}
}

// Cancel flips the job to cancelled locally and requests cancellation of any
// outstanding provider-side operation. The remote cancel is best-effort and
// asynchronous: the local transition already happened when this returns.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (jobstore.CancelOutcome, error) {
	outcome, err := s.store.Cancel(id)
	if err != nil {
		return outcome, err
	}
	if !outcome.WasRunning {
		return outcome, nil
	}

	_ = s.cache.SetJobStatus(ctx, id, string(jobstore.StatusCancelled), statusMirrorTTL)

	if outcome.Handle != "" {
		go func(handle string) {
			cancelCtx, cancel := context.WithTimeout(context.Background(), remoteCancelTimeout)
			defer cancel()
			if err := s.gen.CancelGeneration(cancelCtx, handle); err != nil {
				slog.Warn("remote cancellation failed", "job_id", id, "handle", handle, "error", err)
			}
		}(outcome.Handle)
	}

	slog.Info("job cancelled", "job_id", id)
	return outcome, nil
}

func (s *Service) mirrorStatus(id uuid.UUID) {
	snap, ok := s.store.Get(id)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.cache.SetJobStatus(ctx, id, string(snap.Status), statusMirrorTTL)
}

func (s *Service) archiveResult(result *models.PipelineResult) {
	if s.archiver == nil || result == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p := &models.ArchivedProfile{
		ID:          uuid.New(),
		SubjectName: result.Profile.SubjectName,
		Profile:     result.Profile.Profile,
		Validated:   result.Validated,
		SourceCount: len(result.Research.Sources),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.archiver.SaveProfile(ctx, p); err != nil {
		slog.Warn("archiving profile failed", "subject", p.SubjectName, "error", err)
	}
}
