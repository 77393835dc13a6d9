package tracker

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Task is the atomic unit of tracked work inside a stage.
type Task struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Assignee    string     `json:"assignee"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func NewTask(name, description, assignee string) *Task {
	return &Task{
		ID:          ulid.Make().String(),
		Name:        name,
		Description: description,
		Assignee:    assignee,
		Status:      TaskTodo,
		CreatedAt:   time.Now(),
	}
}

// Complete marks the task completed and stamps the completion time.
// Repeated calls re-stamp the time.
func (t *Task) Complete() {
	t.Status = TaskCompleted
	now := time.Now()
	t.CompletedAt = &now
}

// SetStatus assigns an arbitrary status. The completion timestamp is stamped
// when the target is completed but is NOT cleared when moving away from it;
// only stage-level revert logic touches timestamps on the way down.
func (t *Task) SetStatus(status TaskStatus) {
	t.Status = status
	if status == TaskCompleted {
		now := time.Now()
		t.CompletedAt = &now
	}
}
