package tracker

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// StageBlueprint describes one stage of a template pipeline.
type StageBlueprint struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tasks       []string `json:"tasks"`
}

// Template is a reusable pipeline definition. Built-in templates are marked
// IsDefault and cannot be updated or deleted.
type Template struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Stages      []StageBlueprint `json:"stages"`
	CreatedAt   time.Time        `json:"created_at"`
	IsDefault   bool             `json:"is_default"`
}

func NewTemplate(name, description string, stages []StageBlueprint) *Template {
	return &Template{
		ID:          ulid.Make().String(),
		Name:        name,
		Description: description,
		Stages:      stages,
		CreatedAt:   time.Now(),
	}
}

// Instantiate builds a project from the template's stage blueprints. The
// first stage is not started; callers decide when the pipeline begins.
func (tpl *Template) Instantiate(name, description, deadline, categoryID string) *Project {
	p := NewProject(name, description, deadline, categoryID)
	for _, bp := range tpl.Stages {
		stage := NewStage(bp.Name, bp.Description, nil)
		for _, taskName := range bp.Tasks {
			stage.Tasks = append(stage.Tasks, NewTask(taskName, "Default task for "+bp.Name+" stage", ""))
		}
		p.AddStage(stage)
	}
	return p
}
