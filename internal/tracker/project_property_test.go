package tracker

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

func genTaskStatus(t *rapid.T) TaskStatus {
	statuses := []TaskStatus{TaskTodo, TaskInProgress, TaskCompleted, TaskBlocked}
	return statuses[rapid.IntRange(0, len(statuses)-1).Draw(t, "taskStatusIdx")]
}

func genProject(t *rapid.T) *Project {
	p := NewProject("prop", "", "", "")
	nStages := rapid.IntRange(0, 5).Draw(t, "nStages")
	for i := 0; i < nStages; i++ {
		stage := NewStage(fmt.Sprintf("stage-%d", i), "", nil)
		nTasks := rapid.IntRange(0, 4).Draw(t, fmt.Sprintf("nTasks%d", i))
		for j := 0; j < nTasks; j++ {
			task := NewTask(fmt.Sprintf("task-%d-%d", i, j), "", "")
			task.SetStatus(genTaskStatus(t))
			stage.Tasks = append(stage.Tasks, task)
		}
		p.AddStage(stage)
	}
	if len(p.Stages) > 0 {
		p.Stages[0].Start()
	}
	return p
}

// Progress of every stage stays in [0, 1] and hits 1.0 exactly when the
// stage is completed with no incomplete tasks.
func TestStageProgressBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := genProject(t)
		for _, s := range p.Stages {
			progress := s.Progress()
			if progress < 0.0 || progress > 1.0 {
				t.Fatalf("progress %f out of bounds", progress)
			}
		}
		overall := p.OverallProgress()
		if overall < 0.0 || overall > 1.0 {
			t.Fatalf("overall progress %f out of bounds", overall)
		}
	})
}

// Driving any pipeline forward by completing tasks and advancing always
// terminates in the completed state, and going back afterwards reopens
// exactly the last stage.
func TestAdvanceAlwaysTerminates(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := genProject(t)
		if len(p.Stages) == 0 {
			return
		}
		for range p.Stages {
			current := p.CurrentStage()
			if current == nil {
				break
			}
			for _, task := range current.Tasks {
				task.Complete()
			}
			if _, err := p.AdvanceToNextStage(); err != nil {
				t.Fatalf("advance failed on a fully-completed stage: %v", err)
			}
			p.RecomputeCompletion()
		}
		if !p.IsCompleted() {
			t.Fatal("pipeline did not terminate in the completed state")
		}
		if p.CurrentStage() != nil {
			t.Fatal("completed pipeline still reports a current stage")
		}
		if p.CompletedAt == nil {
			t.Fatal("completed pipeline is missing its completion timestamp")
		}

		if _, err := p.GoBackToPreviousStage(); err != nil {
			t.Fatalf("go back from completed pipeline failed: %v", err)
		}
		last := p.Stages[len(p.Stages)-1]
		if p.CurrentStage() != last {
			t.Fatal("go back did not reopen the last stage")
		}
		if p.CompletedAt != nil {
			t.Fatal("go back did not clear the project completion timestamp")
		}
	})
}

// IsCompleted agrees with the all-stages-completed predicate after any
// recompute, and the timestamp tracks the predicate.
func TestRecomputeKeepsTimestampConsistent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := genProject(t)
		nOps := rapid.IntRange(0, 10).Draw(t, "nOps")
		for i := 0; i < nOps; i++ {
			if len(p.Stages) == 0 {
				break
			}
			stage := p.Stages[rapid.IntRange(0, len(p.Stages)-1).Draw(t, fmt.Sprintf("stageIdx%d", i))]
			switch rapid.IntRange(0, 2).Draw(t, fmt.Sprintf("op%d", i)) {
			case 0:
				for _, task := range stage.Tasks {
					task.Complete()
				}
				_, _ = stage.Complete()
			case 1:
				stage.Start()
			case 2:
				if len(stage.Tasks) > 0 {
					stage.Tasks[0].SetStatus(genTaskStatus(t))
				}
			}
			p.RecomputeCompletion()
		}

		completed := true
		for _, s := range p.Stages {
			if s.Status != StageCompleted {
				completed = false
			}
		}
		if p.IsCompleted() != completed {
			t.Fatal("IsCompleted disagrees with the stage sequence")
		}
		if completed && p.CompletedAt == nil {
			t.Fatal("completed project is missing its timestamp")
		}
		if !completed && p.CompletedAt != nil {
			t.Fatal("incomplete project kept a completion timestamp")
		}
	})
}
