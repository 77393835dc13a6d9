package tracker

import (
	"fmt"

	"github.com/stagetrack/stagetrack/pkg/cerr"
)

// TaskStatus is the closed set of states a task can be in. Values are parsed
// at the external boundary only; internal code never re-validates.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskBlocked    TaskStatus = "blocked"
)

func ParseTaskStatus(s string) (TaskStatus, error) {
	switch TaskStatus(s) {
	case TaskTodo, TaskInProgress, TaskCompleted, TaskBlocked:
		return TaskStatus(s), nil
	}
	return "", cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid task status: %q", s), nil)
}

// StageStatus is the closed set of states a stage can be in.
type StageStatus string

const (
	StageNotStarted StageStatus = "not_started"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
)

func ParseStageStatus(s string) (StageStatus, error) {
	switch StageStatus(s) {
	case StageNotStarted, StageInProgress, StageCompleted:
		return StageStatus(s), nil
	}
	return "", cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid stage status: %q", s), nil)
}
