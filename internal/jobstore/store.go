package jobstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prospecthq/prospector/pkg/models"
)

// ErrNotFound is returned for lookups and updates against an unknown job ID.
var ErrNotFound = errors.New("job not found")

// job is the internal mutable record. Only the store touches it, under the lock.
type job struct {
	id          uuid.UUID
	subjectName string
	status      Status
	phase       Phase
	currentStep int
	totalSteps  int
	messages    []Message
	activity    *models.ResearchActivity
	result      any
	errMsg      string
	createdAt   time.Time
	finishedAt  time.Time

	ctx    context.Context
	cancel context.CancelFunc
	handle string // provider-side background operation ID, if any
}

// Store is an in-memory registry of jobs, safe for concurrent readers with one
// writer per job. Terminal records are retained for a bounded window and then
// evicted by the sweeper; running jobs are never evicted.
type Store struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*job

	ttl           time.Duration
	sweepInterval time.Duration
	stop          chan struct{}
	done          chan struct{}
	now           func() time.Time
}

// New creates a Store. ttl bounds how long terminal jobs stay queryable;
// sweepInterval is how often eviction runs once StartSweeper is called.
func New(ttl, sweepInterval time.Duration) *Store {
	return &Store{
		jobs:          make(map[uuid.UUID]*job),
		ttl:           ttl,
		sweepInterval: sweepInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		now:           time.Now,
	}
}

// StartSweeper launches the background eviction loop. Call Close to stop it.
func (s *Store) StartSweeper() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// Close stops the sweeper and waits for it to exit.
func (s *Store) Close() {
	close(s.stop)
	<-s.done
}

func (s *Store) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, j := range s.jobs {
		if j.status.Terminal() && now.Sub(j.finishedAt) > s.ttl {
			j.cancel()
			delete(s.jobs, id)
		}
	}
}

// Create allocates a new running job and returns its initial snapshot.
func (s *Store) Create(subjectName string, totalSteps int) Snapshot {
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:          uuid.New(),
		subjectName: subjectName,
		status:      StatusRunning,
		totalSteps:  totalSteps,
		createdAt:   s.now(),
		ctx:         ctx,
		cancel:      cancel,
	}

	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()

	return snapshotOf(j)
}

// Get returns an immutable snapshot of the job's current state.
func (s *Store) Get(id uuid.UUID) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Snapshot{}, false
	}
	return snapshotOf(j), true
}

// Context returns the job's cancellation context. The stage executor derives
// all external calls from it so a cancel reaches in-flight work.
func (s *Store) Context(id uuid.UUID) (context.Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return j.ctx, true
}

// AddProgress appends a progress message and advances phase/step. Backward
// phase transitions and step regressions are clamped, never applied; steps
// never exceed totalSteps. A no-op once the job is terminal.
func (s *Store) AddProgress(id uuid.UUID, msg string, phase Phase, step int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.status.Terminal() {
		return nil
	}

	if msg != "" {
		j.messages = append(j.messages, Message{Message: msg, Timestamp: s.now()})
	}
	if phaseOrder[phase] > phaseOrder[j.phase] {
		j.phase = phase
	}
	if step > j.currentStep {
		if step > j.totalSteps {
			step = j.totalSteps
		}
		j.currentStep = step
	}
	return nil
}

// SetActivity replaces the job's activity snapshot and records the
// provider-side operation handle for best-effort remote cancellation.
func (s *Store) SetActivity(id uuid.UUID, handle string, activity models.ResearchActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.status.Terminal() {
		return nil
	}
	if handle != "" {
		j.handle = handle
	}
	act := activity
	j.activity = &act
	return nil
}

// Complete records the final result. A no-op if the job already reached a
// terminal state, so a late result from a cancelled run is discarded.
func (s *Store) Complete(id uuid.UUID, result any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.status.Terminal() {
		return nil
	}
	j.status = StatusComplete
	j.result = result
	j.finishedAt = s.now()
	return nil
}

// Fail records a terminal failure. A no-op if the job is already terminal.
func (s *Store) Fail(id uuid.UUID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.status.Terminal() {
		return nil
	}
	j.status = StatusFailed
	j.errMsg = errMsg
	j.finishedAt = s.now()
	return nil
}

// CancelOutcome reports the result of a cancel request.
type CancelOutcome struct {
	// WasRunning is true when this call performed the cancellation.
	WasRunning bool
	// Status is the job's status after the call.
	Status Status
	// Handle identifies an outstanding provider-side operation the caller
	// should cancel best-effort. Empty when there is none.
	Handle string
}

// Cancel flips a running job to cancelled and fires its abort context. The
// local transition is authoritative and immediate; cancelling an already
// terminal job is a no-op that reports the current status. Idempotent.
func (s *Store) Cancel(id uuid.UUID) (CancelOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return CancelOutcome{}, ErrNotFound
	}
	if j.status.Terminal() {
		return CancelOutcome{WasRunning: false, Status: j.status}, nil
	}

	j.status = StatusCancelled
	j.finishedAt = s.now()
	j.cancel()

	return CancelOutcome{WasRunning: true, Status: StatusCancelled, Handle: j.handle}, nil
}

// Len reports the number of live records. Used by the health endpoint.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// snapshotOf deep-copies the mutable slices so callers can never corrupt the
// record. Caller must hold at least a read lock.
func snapshotOf(j *job) Snapshot {
	snap := Snapshot{
		ID:          j.id,
		SubjectName: j.subjectName,
		Status:      j.status,
		Phase:       j.phase,
		CurrentStep: j.currentStep,
		TotalSteps:  j.totalSteps,
		Result:      j.result,
		Error:       j.errMsg,
		CreatedAt:   j.createdAt,
		FinishedAt:  j.finishedAt,
	}
	if len(j.messages) > 0 {
		snap.Messages = make([]Message, len(j.messages))
		copy(snap.Messages, j.messages)
	}
	if j.activity != nil {
		act := *j.activity
		snap.Activity = &act
	}
	return snap
}
