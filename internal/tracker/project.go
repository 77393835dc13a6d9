package tracker

import (
	"fmt"
	"math"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/stagetrack/stagetrack/pkg/cerr"
)

// Project is a fixed linear pipeline of stages. Stage order is insertion
// order and is the sole determinant of "next" and "previous"; there is no
// priority or dependency graph.
//
// A project has no stored state of its own beyond the completion timestamp:
// pending/active/completed are all derived from the stage sequence.
type Project struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Deadline    string     `json:"deadline"`
	CategoryID  string     `json:"category_id"`
	Stages      []*Stage   `json:"stages"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func NewProject(name, description, deadline, categoryID string) *Project {
	return &Project{
		ID:          ulid.Make().String(),
		Name:        name,
		Description: description,
		Deadline:    deadline,
		CategoryID:  categoryID,
		CreatedAt:   time.Now(),
	}
}

func (p *Project) AddStage(s *Stage) {
	p.Stages = append(p.Stages, s)
}

// CurrentStage returns the first in-progress stage, else the first
// not-started one, else nil (pipeline exhausted).
func (p *Project) CurrentStage() *Stage {
	for _, s := range p.Stages {
		if s.Status == StageInProgress {
			return s
		}
	}
	for _, s := range p.Stages {
		if s.Status == StageNotStarted {
			return s
		}
	}
	return nil
}

// AdvanceToNextStage completes the current stage and starts the next one.
// When the current stage is the last, the project's completion time is
// stamped instead. Failure messages from the stage propagate unchanged.
func (p *Project) AdvanceToNextStage() (string, error) {
	current := p.CurrentStage()
	if current == nil {
		return "", cerr.NewError(cerr.FailedPrecondition, "No active stage to advance from.", nil)
	}

	if _, err := current.Complete(); err != nil {
		return "", err
	}

	idx := p.stageIndex(current)
	if idx+1 < len(p.Stages) {
		next := p.Stages[idx+1]
		next.Start()
		return fmt.Sprintf("Advanced to stage: %s", next.Name), nil
	}

	now := time.Now()
	p.CompletedAt = &now
	return "Project completed!", nil
}

// GoBackToPreviousStage reverts the pipeline one step. From the exhausted
// (all-completed) state it reopens the last stage; from the first stage it
// fails without mutating anything.
func (p *Project) GoBackToPreviousStage() (string, error) {
	current := p.CurrentStage()
	if current == nil {
		if len(p.Stages) > 0 && p.IsCompleted() {
			last := p.Stages[len(p.Stages)-1]
			last.Status = StageInProgress
			last.CompletedAt = nil
			p.CompletedAt = nil
			return fmt.Sprintf("Moved back to stage: %s", last.Name), nil
		}
		return "", cerr.NewError(cerr.FailedPrecondition, "No active stage to go back from.", nil)
	}

	idx := p.stageIndex(current)
	if idx == 0 {
		return "", cerr.NewError(cerr.FailedPrecondition, "Already at the first stage.", nil)
	}

	current.Status = StageNotStarted
	current.StartedAt = nil

	previous := p.Stages[idx-1]
	previous.Status = StageInProgress
	previous.CompletedAt = nil

	p.CompletedAt = nil
	return fmt.Sprintf("Moved back to stage: %s", previous.Name), nil
}

func (p *Project) stageIndex(target *Stage) int {
	for i, s := range p.Stages {
		if s == target {
			return i
		}
	}
	return -1
}

// IsCompleted reports whether every stage is completed. A project with zero
// stages is completed vacuously. Pure; see RecomputeCompletion for the
// timestamp bookkeeping.
func (p *Project) IsCompleted() bool {
	for _, s := range p.Stages {
		if s.Status != StageCompleted {
			return false
		}
	}
	return true
}

// RecomputeCompletion reconciles the completion timestamp with the stage
// sequence: stamped when completion becomes newly true, cleared when it
// becomes newly false. Callers invoke it after every mutation that can
// change stage state.
func (p *Project) RecomputeCompletion() {
	completed := p.IsCompleted()
	switch {
	case completed && p.CompletedAt == nil:
		now := time.Now()
		p.CompletedAt = &now
	case !completed && p.CompletedAt != nil:
		p.CompletedAt = nil
	}
}

// OverallProgress is the mean of each stage's progress.
func (p *Project) OverallProgress() float64 {
	if len(p.Stages) == 0 {
		if p.IsCompleted() {
			return 1.0
		}
		return 0.0
	}
	total := 0.0
	for _, s := range p.Stages {
		total += s.Progress()
	}
	return total / float64(len(p.Stages))
}

// IsOverdue reports whether the deadline has passed on an uncompleted
// project. Missing or malformed deadlines never make a project overdue.
func (p *Project) IsOverdue() bool {
	deadline, ok := p.parseDeadline()
	if !ok {
		return false
	}
	return time.Now().After(deadline) && !p.IsCompleted()
}

// DaysUntilDeadline returns the signed whole-day count to the deadline,
// or nil when there is no parseable deadline. Partial days round down,
// so one hour before the deadline reports -1 once it has passed.
func (p *Project) DaysUntilDeadline() *int {
	deadline, ok := p.parseDeadline()
	if !ok {
		return nil
	}
	days := int(math.Floor(time.Until(deadline).Hours() / 24))
	return &days
}

var deadlineLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (p *Project) parseDeadline() (time.Time, bool) {
	if p.Deadline == "" {
		return time.Time{}, false
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, p.Deadline); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// StageByID returns the stage with the given id, or nil.
func (p *Project) StageByID(id string) *Stage {
	for _, s := range p.Stages {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// FindTask locates a task anywhere in the pipeline, returning the task and
// its owning stage.
func (p *Project) FindTask(taskID string) (*Task, *Stage) {
	for _, s := range p.Stages {
		if t := s.TaskByID(taskID); t != nil {
			return t, s
		}
	}
	return nil, nil
}

// ProjectSummary is a pure projection of a project's aggregate state for
// display surfaces.
type ProjectSummary struct {
	TotalStages       int     `json:"total_stages"`
	CompletedStages   int     `json:"completed_stages"`
	TotalTasks        int     `json:"total_tasks"`
	CompletedTasks    int     `json:"completed_tasks"`
	OverallProgress   float64 `json:"overall_progress"`
	IsCompleted       bool    `json:"is_completed"`
	CurrentStage      string  `json:"current_stage"`
	Deadline          string  `json:"deadline"`
	IsOverdue         bool    `json:"is_overdue"`
	DaysUntilDeadline *int    `json:"days_until_deadline"`
	CategoryID        string  `json:"category_id"`
}

func (p *Project) Summary() ProjectSummary {
	totalTasks, completedTasks, completedStages := 0, 0, 0
	for _, s := range p.Stages {
		totalTasks += len(s.Tasks)
		for _, t := range s.Tasks {
			if t.Status == TaskCompleted {
				completedTasks++
			}
		}
		if s.Status == StageCompleted {
			completedStages++
		}
	}

	currentName := "Not Started"
	if current := p.CurrentStage(); current != nil {
		currentName = current.Name
	} else if p.IsCompleted() {
		currentName = "Completed"
	}

	return ProjectSummary{
		TotalStages:       len(p.Stages),
		CompletedStages:   completedStages,
		TotalTasks:        totalTasks,
		CompletedTasks:    completedTasks,
		OverallProgress:   p.OverallProgress(),
		IsCompleted:       p.IsCompleted(),
		CurrentStage:      currentName,
		Deadline:          p.Deadline,
		IsOverdue:         p.IsOverdue(),
		DaysUntilDeadline: p.DaysUntilDeadline(),
		CategoryID:        p.CategoryID,
	}
}
