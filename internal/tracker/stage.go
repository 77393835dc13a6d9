package tracker

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/stagetrack/stagetrack/pkg/cerr"
)

// Stage is one phase of a project's linear pipeline. Task order is insertion
// order and determines display position.
type Stage struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Status      StageStatus `json:"status"`
	Tasks       []*Task     `json:"tasks"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at"`
}

// NewStage creates a fresh stage, optionally pre-populated with default tasks.
func NewStage(name, description string, defaultTasks []string) *Stage {
	s := &Stage{
		ID:          ulid.Make().String(),
		Name:        name,
		Description: description,
		Status:      StageNotStarted,
		CreatedAt:   time.Now(),
	}
	for _, taskName := range defaultTasks {
		s.Tasks = append(s.Tasks, NewTask(taskName, fmt.Sprintf("Default task for %s stage", name), ""))
	}
	return s
}

// AddTask appends a task. Adding work to a fresh stage starts it.
func (s *Stage) AddTask(t *Task) {
	s.Tasks = append(s.Tasks, t)
	if s.Status == StageNotStarted {
		s.Start()
	}
}

// Start transitions a not-started stage to in-progress. No-op otherwise.
func (s *Stage) Start() {
	if s.Status == StageNotStarted {
		s.Status = StageInProgress
		now := time.Now()
		s.StartedAt = &now
	}
}

// Complete marks the stage completed. It fails, naming the count of
// incomplete tasks, unless every task is completed (zero tasks pass
// vacuously). The returned message is surfaced to callers verbatim.
func (s *Stage) Complete() (string, error) {
	incomplete := 0
	for _, t := range s.Tasks {
		if t.Status != TaskCompleted {
			incomplete++
		}
	}
	if incomplete > 0 {
		return "", cerr.NewError(cerr.FailedPrecondition, fmt.Sprintf("Cannot complete stage: %d tasks incomplete", incomplete), nil)
	}

	s.Status = StageCompleted
	now := time.Now()
	s.CompletedAt = &now
	return "Stage completed successfully", nil
}

// Progress reports the completed-task ratio in [0, 1]. A stage without tasks
// counts as fully done only once it has been completed.
func (s *Stage) Progress() float64 {
	if len(s.Tasks) == 0 {
		if s.Status == StageCompleted {
			return 1.0
		}
		return 0.0
	}
	completed := 0
	for _, t := range s.Tasks {
		if t.Status == TaskCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(s.Tasks))
}

// TaskByID returns the contained task with the given id, or nil.
func (s *Stage) TaskByID(id string) *Task {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}
