package registry

import (
	"time"

	"github.com/stagetrack/stagetrack/internal/tracker"
)

// defaultStageNames is the standard pipeline attached to projects created
// without an explicit stage list. Order is the pipeline order.
var defaultStageNames = []string{
	"Planning",
	"Design",
	"Development",
	"Testing",
	"Deployment",
	"Launch",
}

// defaultStageTasks pre-populates each standard stage.
var defaultStageTasks = map[string][]string{
	"Planning":    {"Define requirements", "Create timeline", "Assign resources"},
	"Design":      {"Create wireframes", "Design mockups", "Review design"},
	"Development": {"Set up environment", "Implement features", "Code review"},
	"Testing":     {"Write test cases", "Execute tests", "Fix bugs"},
	"Deployment":  {"Deploy to staging", "User acceptance testing", "Deploy to production"},
	"Launch":      {"Monitor launch", "Gather feedback", "Create documentation"},
}

// Built-in templates are seeded with well-known ids so projects can be
// created from them without a lookup step.
const (
	TemplateStandard = "standard"
	TemplateAgile    = "agile"
	TemplateSimple   = "simple"
)

func defaultTemplates() map[string]*tracker.Template {
	now := time.Now()
	templates := map[string]*tracker.Template{
		TemplateStandard: {
			ID:          TemplateStandard,
			Name:        "Standard Software Development",
			Description: "Traditional software development lifecycle",
			Stages: []tracker.StageBlueprint{
				{Name: "Planning", Description: "Project planning and requirement gathering", Tasks: defaultStageTasks["Planning"]},
				{Name: "Design", Description: "System and UI design", Tasks: defaultStageTasks["Design"]},
				{Name: "Development", Description: "Code implementation", Tasks: defaultStageTasks["Development"]},
				{Name: "Testing", Description: "Quality assurance and testing", Tasks: defaultStageTasks["Testing"]},
				{Name: "Deployment", Description: "Production deployment", Tasks: defaultStageTasks["Deployment"]},
				{Name: "Launch", Description: "Project launch and monitoring", Tasks: defaultStageTasks["Launch"]},
			},
		},
		TemplateAgile: {
			ID:          TemplateAgile,
			Name:        "Agile Sprint",
			Description: "Single sprint in agile development",
			Stages: []tracker.StageBlueprint{
				{Name: "Sprint Planning", Description: "Plan sprint goals and tasks", Tasks: []string{"Define sprint goals", "Estimate story points", "Create sprint backlog"}},
				{Name: "Development", Description: "Sprint development work", Tasks: []string{"Daily standups", "Develop features", "Update task board"}},
				{Name: "Review & Retrospective", Description: "Sprint review and retrospective", Tasks: []string{"Sprint demo", "Gather feedback", "Retrospective meeting"}},
			},
		},
		TemplateSimple: {
			ID:          TemplateSimple,
			Name:        "Simple Task",
			Description: "Basic task template with minimal stages",
			Stages: []tracker.StageBlueprint{
				{Name: "To Do", Description: "Tasks to be completed", Tasks: []string{"Complete main task"}},
				{Name: "In Progress", Description: "Tasks currently being worked on", Tasks: []string{"Work on task"}},
				{Name: "Done", Description: "Completed tasks", Tasks: []string{"Review completion"}},
			},
		},
	}
	for _, tpl := range templates {
		tpl.CreatedAt = now
		tpl.IsDefault = true
	}
	return templates
}

func defaultMetadata() map[string]string {
	now := time.Now().Format(time.RFC3339)
	return map[string]string{
		"subtitle":      "Comprehensive Project Management System with Real-time Updates",
		"description":   "",
		"created_at":    now,
		"last_modified": now,
	}
}
