package jobstore_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospecthq/prospector/internal/jobstore"
	"github.com/prospecthq/prospector/pkg/models"
)

func newStore() *jobstore.Store {
	return jobstore.New(30*time.Minute, 5*time.Minute)
}

func TestCreate_InitialSnapshot(t *testing.T) {
	s := newStore()
	snap := s.Create("Ada Lovelace", 38)

	assert.Equal(t, jobstore.StatusRunning, snap.Status)
	assert.Equal(t, "Ada Lovelace", snap.SubjectName)
	assert.Equal(t, 0, snap.CurrentStep)
	assert.Equal(t, 38, snap.TotalSteps)
	assert.Equal(t, "Starting...", snap.LatestMessage())
	assert.Empty(t, snap.Milestones())
}

func TestGet_UnknownJob(t *testing.T) {
	s := newStore()
	_, ok := s.Get(uuid.New())
	assert.False(t, ok)
}

func TestAddProgress_UnknownJob(t *testing.T) {
	s := newStore()
	err := s.AddProgress(uuid.New(), "hello", jobstore.PhaseResearch, 1)
	assert.ErrorIs(t, err, jobstore.ErrNotFound)
}

func TestAddProgress_AppendsMessages(t *testing.T) {
	s := newStore()
	snap := s.Create("Ada", 38)

	require.NoError(t, s.AddProgress(snap.ID, "Resolving identity...", jobstore.PhaseResearch, 1))
	require.NoError(t, s.AddProgress(snap.ID, "Generating queries...", jobstore.PhaseResearch, 2))

	got, ok := s.Get(snap.ID)
	require.True(t, ok)
	assert.Len(t, got.Messages, 2)
	assert.Equal(t, "Generating queries...", got.LatestMessage())
	assert.Equal(t, 2, got.CurrentStep)
	assert.Equal(t, jobstore.PhaseResearch, got.Phase)
}

func TestAddProgress_StepNeverRegresses(t *testing.T) {
	s := newStore()
	snap := s.Create("Ada", 38)

	require.NoError(t, s.AddProgress(snap.ID, "", jobstore.PhaseResearch, 10))
	require.NoError(t, s.AddProgress(snap.ID, "late update", jobstore.PhaseResearch, 4))

	got, _ := s.Get(snap.ID)
	assert.Equal(t, 10, got.CurrentStep)
	// The message still lands even though the step is clamped.
	assert.Equal(t, "late update", got.LatestMessage())
}

func TestAddProgress_StepClampedToTotal(t *testing.T) {
	s := newStore()
	snap := s.Create("Ada", 38)

	require.NoError(t, s.AddProgress(snap.ID, "", jobstore.PhaseWriting, 99))

	got, _ := s.Get(snap.ID)
	assert.Equal(t, 38, got.CurrentStep)
}

func TestAddProgress_PhaseForwardOnly(t *testing.T) {
	s := newStore()
	snap := s.Create("Ada", 38)

	require.NoError(t, s.AddProgress(snap.ID, "", jobstore.PhaseAnalysis, 15))
	require.NoError(t, s.AddProgress(snap.ID, "", jobstore.PhaseResearch, 16))

	got, _ := s.Get(snap.ID)
	assert.Equal(t, jobstore.PhaseAnalysis, got.Phase)
	assert.Equal(t, 16, got.CurrentStep)
}

func TestMilestones_SurviveLaterProgress(t *testing.T) {
	s := newStore()
	snap := s.Create("Ada", 38)

	require.NoError(t, s.AddProgress(snap.ID, "✓ Research complete: 12 sources", jobstore.PhaseResearch, 12))
	require.NoError(t, s.AddProgress(snap.ID, "Extracting source 1/12...", jobstore.PhaseAnalysis, 13))
	require.NoError(t, s.AddProgress(snap.ID, "✓ Behavioral dossier complete", jobstore.PhaseAnalysis, 28))

	got, _ := s.Get(snap.ID)
	assert.Equal(t, []string{
		"✓ Research complete: 12 sources",
		"✓ Behavioral dossier complete",
	}, got.Milestones())
	assert.Equal(t, "✓ Behavioral dossier complete", got.LatestMessage())
}

func TestComplete_SetsTerminalState(t *testing.T) {
	s := newStore()
	snap := s.Create("Ada", 38)

	require.NoError(t, s.Complete(snap.ID, map[string]string{"profile": "text"}))

	got, _ := s.Get(snap.ID)
	assert.Equal(t, jobstore.StatusComplete, got.Status)
	assert.NotNil(t, got.Result)
	assert.False(t, got.FinishedAt.IsZero())
}

func TestComplete_AfterCancel_IsDiscarded(t *testing.T) {
	s := newStore()
	snap := s.Create("Ada", 38)

	_, err := s.Cancel(snap.ID)
	require.NoError(t, err)

	// A late result from the still-draining pipeline must not resurrect the job.
	require.NoError(t, s.Complete(snap.ID, "late result"))

	got, _ := s.Get(snap.ID)
	assert.Equal(t, jobstore.StatusCancelled, got.Status)
	assert.Nil(t, got.Result)
}

func TestFail_AfterComplete_IsDiscarded(t *testing.T) {
	s := newStore()
	snap := s.Create("Ada", 38)

	require.NoError(t, s.Complete(snap.ID, "done"))
	require.NoError(t, s.Fail(snap.ID, "boom"))

	got, _ := s.Get(snap.ID)
	assert.Equal(t, jobstore.StatusComplete, got.Status)
	assert.Empty(t, got.Error)
}

func TestAddProgress_AfterTerminal_IsNoop(t *testing.T) {
	s := newStore()
	snap := s.Create("Ada", 38)

	require.NoError(t, s.Fail(snap.ID, "boom"))
	require.NoError(t, s.AddProgress(snap.ID, "still going", jobstore.PhaseWriting, 30))

	got, _ := s.Get(snap.ID)
	assert.Equal(t, jobstore.StatusFailed, got.Status)
	assert.Empty(t, got.Messages)
	assert.Equal(t, 0, got.CurrentStep)
}

func TestCancel_FiresJobContext(t *testing.T) {
	s := newStore()
	snap := s.Create("Ada", 38)

	ctx, ok := s.Context(snap.ID)
	require.True(t, ok)
	require.NoError(t, ctx.Err())

	outcome, err := s.Cancel(snap.ID)
	require.NoError(t, err)
	assert.True(t, outcome.WasRunning)
	assert.Equal(t, jobstore.StatusCancelled, outcome.Status)
	assert.Error(t, ctx.Err())
}

func TestCancel_Idempotent(t *testing.T) {
	s := newStore()
	snap := s.Create("Ada", 38)

	first, err := s.Cancel(snap.ID)
	require.NoError(t, err)
	assert.True(t, first.WasRunning)

	second, err := s.Cancel(snap.ID)
	require.NoError(t, err)
	assert.False(t, second.WasRunning)
	assert.Equal(t, jobstore.StatusCancelled, second.Status)
}

func TestCancel_CompletedJob_ReportsFinalStatus(t *testing.T) {
	s := newStore()
	snap := s.Create("Ada", 38)
	require.NoError(t, s.Complete(snap.ID, "done"))

	outcome, err := s.Cancel(snap.ID)
	require.NoError(t, err)
	assert.False(t, outcome.WasRunning)
	assert.Equal(t, jobstore.StatusComplete, outcome.Status)
}

func TestCancel_UnknownJob(t *testing.T) {
	s := newStore()
	_, err := s.Cancel(uuid.New())
	assert.ErrorIs(t, err, jobstore.ErrNotFound)
}

func TestCancel_ReportsProviderHandle(t *testing.T) {
	s := newStore()
	snap := s.Create("Ada", 38)

	require.NoError(t, s.SetActivity(snap.ID, "resp_abc123", models.ResearchActivity{Searches: 2}))

	outcome, err := s.Cancel(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "resp_abc123", outcome.Handle)
}

func TestSnapshot_IsolatedFromStore(t *testing.T) {
	s := newStore()
	snap := s.Create("Ada", 38)
	require.NoError(t, s.AddProgress(snap.ID, "one", jobstore.PhaseResearch, 1))

	got, _ := s.Get(snap.ID)
	got.Messages[0].Message = "mutated"

	again, _ := s.Get(snap.ID)
	assert.Equal(t, "one", again.Messages[0].Message)
}

func TestPublisher_MilestonePrefix(t *testing.T) {
	s := newStore()
	snap := s.Create("Ada", 38)
	pub := jobstore.NewPublisher(s, snap.ID)

	pub.Progress("Drafting profile...", jobstore.PhaseWriting, 30)
	pub.Milestone("Profile complete", jobstore.PhaseWriting, 37)

	got, _ := s.Get(snap.ID)
	assert.Equal(t, "✓ Profile complete", got.LatestMessage())
	assert.Equal(t, []string{"✓ Profile complete"}, got.Milestones())
}

func TestPublisher_ActivityRecorded(t *testing.T) {
	s := newStore()
	snap := s.Create("Ada", 38)
	pub := jobstore.NewPublisher(s, snap.ID)

	pub.Activity("resp_1", models.ResearchActivity{Searches: 5, PageVisits: 9})

	got, _ := s.Get(snap.ID)
	require.NotNil(t, got.Activity)
	assert.Equal(t, 5, got.Activity.Searches)
	assert.Equal(t, 9, got.Activity.PageVisits)
}
