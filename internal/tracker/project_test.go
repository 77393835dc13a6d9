package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagetrack/stagetrack/pkg/cerr"
)

func newPipeline(t *testing.T, stageNames ...string) *Project {
	t.Helper()
	p := NewProject("Website relaunch", "", "", "")
	for _, name := range stageNames {
		p.AddStage(NewStage(name, "", nil))
	}
	if len(p.Stages) > 0 {
		p.Stages[0].Start()
	}
	return p
}

func completeAllTasks(s *Stage) {
	for _, task := range s.Tasks {
		task.Complete()
	}
}

func TestCurrentStagePrefersInProgress(t *testing.T) {
	p := newPipeline(t, "A", "B", "C")
	assert.Equal(t, "A", p.CurrentStage().Name)

	// Without an in-progress stage the first not-started one is current.
	p.Stages[0].Status = StageCompleted
	assert.Equal(t, "B", p.CurrentStage().Name)

	p.Stages[1].Status = StageCompleted
	p.Stages[2].Status = StageCompleted
	assert.Nil(t, p.CurrentStage())
}

func TestAdvanceThroughPipeline(t *testing.T) {
	p := newPipeline(t, "A", "B", "C")
	p.Stages[0].AddTask(NewTask("only task", "", ""))

	// Incomplete tasks block the advance and the message names the count.
	_, err := p.AdvanceToNextStage()
	require.Error(t, err)
	assert.Equal(t, "Cannot complete stage: 1 tasks incomplete", cerr.Message(err))
	assert.Equal(t, "A", p.CurrentStage().Name)

	p.Stages[0].Tasks[0].Complete()
	msg, err := p.AdvanceToNextStage()
	require.NoError(t, err)
	assert.Equal(t, "Advanced to stage: B", msg)
	assert.Equal(t, "B", p.CurrentStage().Name)
	assert.Equal(t, StageInProgress, p.Stages[1].Status)

	msg, err = p.AdvanceToNextStage()
	require.NoError(t, err)
	assert.Equal(t, "Advanced to stage: C", msg)

	msg, err = p.AdvanceToNextStage()
	require.NoError(t, err)
	assert.Equal(t, "Project completed!", msg)
	assert.Nil(t, p.CurrentStage())
	assert.True(t, p.IsCompleted())
	assert.NotNil(t, p.CompletedAt)

	_, err = p.AdvanceToNextStage()
	require.Error(t, err)
	assert.Equal(t, "No active stage to advance from.", cerr.Message(err))
}

func TestGoBackFromMiddleStage(t *testing.T) {
	p := newPipeline(t, "A", "B")
	_, err := p.AdvanceToNextStage()
	require.NoError(t, err)
	require.Equal(t, "B", p.CurrentStage().Name)

	msg, err := p.GoBackToPreviousStage()
	require.NoError(t, err)
	assert.Equal(t, "Moved back to stage: A", msg)
	assert.Equal(t, "A", p.CurrentStage().Name)
	assert.Equal(t, StageInProgress, p.Stages[0].Status)
	assert.Nil(t, p.Stages[0].CompletedAt)
	assert.Equal(t, StageNotStarted, p.Stages[1].Status)
	assert.Nil(t, p.Stages[1].StartedAt)
}

func TestGoBackFromFirstStageFailsWithoutMutation(t *testing.T) {
	p := newPipeline(t, "A", "B")
	started := p.Stages[0].StartedAt

	_, err := p.GoBackToPreviousStage()
	require.Error(t, err)
	assert.Equal(t, "Already at the first stage.", cerr.Message(err))
	assert.Equal(t, StageInProgress, p.Stages[0].Status)
	assert.Same(t, started, p.Stages[0].StartedAt)
	assert.Equal(t, StageNotStarted, p.Stages[1].Status)
}

func TestGoBackFromExhaustedPipelineReopensLastStage(t *testing.T) {
	p := newPipeline(t, "A", "B")
	_, err := p.AdvanceToNextStage()
	require.NoError(t, err)
	_, err = p.AdvanceToNextStage()
	require.NoError(t, err)
	require.Nil(t, p.CurrentStage())
	require.NotNil(t, p.CompletedAt)

	msg, err := p.GoBackToPreviousStage()
	require.NoError(t, err)
	assert.Equal(t, "Moved back to stage: B", msg)
	assert.Equal(t, "B", p.CurrentStage().Name)
	assert.Equal(t, StageInProgress, p.Stages[1].Status)
	assert.Nil(t, p.Stages[1].CompletedAt)
	assert.Nil(t, p.CompletedAt)
}

func TestGoBackWithZeroStagesFails(t *testing.T) {
	p := NewProject("empty", "", "", "")
	_, err := p.GoBackToPreviousStage()
	require.Error(t, err)
	assert.Equal(t, "No active stage to go back from.", cerr.Message(err))
}

func TestRecomputeCompletionTogglesTimestamp(t *testing.T) {
	p := newPipeline(t, "A")
	p.Stages[0].AddTask(NewTask("t", "", ""))
	p.Stages[0].Tasks[0].Complete()
	_, err := p.Stages[0].Complete()
	require.NoError(t, err)

	p.RecomputeCompletion()
	assert.True(t, p.IsCompleted())
	require.NotNil(t, p.CompletedAt)

	// Toggling a task away from completed flips the predicate and clears
	// the timestamp on the next recompute.
	p.Stages[0].Status = StageInProgress
	p.Stages[0].Tasks[0].SetStatus(TaskInProgress)
	p.RecomputeCompletion()
	assert.False(t, p.IsCompleted())
	assert.Nil(t, p.CompletedAt)
}

func TestZeroStageProjectIsCompleted(t *testing.T) {
	p := NewProject("empty", "", "", "")
	assert.True(t, p.IsCompleted())
	assert.Equal(t, 1.0, p.OverallProgress())
}

func TestOverallProgressIsMeanOfStageProgress(t *testing.T) {
	p := newPipeline(t, "A", "B")
	p.Stages[0].AddTask(NewTask("t1", "", ""))
	p.Stages[0].AddTask(NewTask("t2", "", ""))
	p.Stages[0].Tasks[0].Complete()
	// Stage A is at 0.5, stage B (no tasks, not started) at 0.0.
	assert.InDelta(t, 0.25, p.OverallProgress(), 1e-9)
}

func TestDeadlineHandling(t *testing.T) {
	p := NewProject("p", "", "", "")
	p.AddStage(NewStage("A", "", nil))

	assert.False(t, p.IsOverdue())
	assert.Nil(t, p.DaysUntilDeadline())

	p.Deadline = "not a date"
	assert.False(t, p.IsOverdue())
	assert.Nil(t, p.DaysUntilDeadline())

	p.Deadline = time.Now().Add(72 * time.Hour).Format(time.RFC3339)
	assert.False(t, p.IsOverdue())
	require.NotNil(t, p.DaysUntilDeadline())
	assert.Equal(t, 2, *p.DaysUntilDeadline())

	p.Deadline = time.Now().Add(-time.Hour).Format(time.RFC3339)
	assert.True(t, p.IsOverdue())
	require.NotNil(t, p.DaysUntilDeadline())
	assert.Equal(t, -1, *p.DaysUntilDeadline())

	// A completed project is never overdue.
	completeAllTasks(p.Stages[0])
	_, err := p.Stages[0].Complete()
	require.NoError(t, err)
	assert.False(t, p.IsOverdue())
}

func TestProjectSummary(t *testing.T) {
	p := newPipeline(t, "A", "B")
	p.CategoryID = "cat-1"
	p.Stages[0].AddTask(NewTask("t1", "", ""))
	p.Stages[0].Tasks[0].Complete()

	s := p.Summary()
	assert.Equal(t, 2, s.TotalStages)
	assert.Equal(t, 0, s.CompletedStages)
	assert.Equal(t, 1, s.TotalTasks)
	assert.Equal(t, 1, s.CompletedTasks)
	assert.Equal(t, "A", s.CurrentStage)
	assert.False(t, s.IsCompleted)
	assert.Equal(t, "cat-1", s.CategoryID)

	_, err := p.AdvanceToNextStage()
	require.NoError(t, err)
	_, err = p.AdvanceToNextStage()
	require.NoError(t, err)

	s = p.Summary()
	assert.Equal(t, "Completed", s.CurrentStage)
	assert.True(t, s.IsCompleted)
	assert.Equal(t, 1.0, s.OverallProgress)
}

func TestSummaryCurrentStageSentinelForZeroStages(t *testing.T) {
	// Zero stages means vacuously completed, so the sentinel is "Completed".
	p := NewProject("empty", "", "", "")
	assert.Equal(t, "Completed", p.Summary().CurrentStage)
}

func TestTemplateInstantiate(t *testing.T) {
	tpl := NewTemplate("Agile Sprint", "Single sprint", []StageBlueprint{
		{Name: "Sprint Planning", Tasks: []string{"Define sprint goals"}},
		{Name: "Development", Tasks: []string{"Develop features", "Update task board"}},
	})
	p := tpl.Instantiate("Sprint 14", "", "", "cat")

	require.Len(t, p.Stages, 2)
	assert.Equal(t, StageNotStarted, p.Stages[0].Status)
	assert.Len(t, p.Stages[0].Tasks, 1)
	assert.Len(t, p.Stages[1].Tasks, 2)
	assert.Equal(t, "cat", p.CategoryID)
}
