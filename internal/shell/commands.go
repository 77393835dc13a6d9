package shell

import (
	"context"
	"fmt"
	"strings"

	"github.com/stagetrack/stagetrack/internal/tracker"
	"github.com/stagetrack/stagetrack/pkg/cerr"
)

const noProjectSelected = "No project selected. Use 'select project <id>'."

func stageIcon(status tracker.StageStatus) string {
	switch status {
	case tracker.StageInProgress:
		return "🔄"
	case tracker.StageCompleted:
		return "✅"
	default:
		return "⏸️"
	}
}

func taskIcon(status tracker.TaskStatus) string {
	switch status {
	case tracker.TaskInProgress:
		return "🔄"
	case tracker.TaskCompleted:
		return "✅"
	case tracker.TaskBlocked:
		return "🚫"
	default:
		return "📋"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (s *Shell) createProject(ctx context.Context, args []string) {
	if len(args) == 0 {
		fail.Fprintln(s.out, "Usage: create project <name> [description]")
		return
	}
	name := args[0]
	description := strings.Join(args[1:], " ")

	p, err := s.reg.CreateProject(ctx, name, description, nil, "", "")
	if err != nil {
		fail.Fprintln(s.out, cerr.Message(err))
		return
	}
	s.currentID = p.ID

	success.Fprintf(s.out, "✅ Created project '%s' with ID: %s\n", p.Name, shortID(p.ID))
	names := make([]string, 0, len(p.Stages))
	for _, st := range p.Stages {
		names = append(names, st.Name)
	}
	fmt.Fprintf(s.out, "📝 Default stages created: %s\n", strings.Join(names, ", "))
}

func (s *Shell) listProjects() {
	projects := s.reg.ListProjects()
	if len(projects) == 0 {
		warn.Fprintln(s.out, "No projects found.")
		return
	}
	bold.Fprintln(s.out, "📁 Projects:")
	for _, p := range projects {
		icon := "🔄"
		if p.IsCompleted() {
			icon = "✅"
		}
		marker := " "
		if p.ID == s.currentID {
			marker = "*"
		}
		fmt.Fprintf(s.out, " %s %s [%s] %s (%.0f%%)\n", marker, icon, shortID(p.ID), p.Name, p.OverallProgress()*100)
	}
}

func (s *Shell) selectProject(prefix string) {
	p, ok := s.matchProject(prefix)
	if !ok {
		return
	}
	s.currentID = p.ID
	success.Fprintf(s.out, "Selected project: %s\n", p.Name)
}

func (s *Shell) showProject() {
	p := s.currentProject()
	if p == nil {
		fail.Fprintln(s.out, noProjectSelected)
		return
	}
	summary := p.Summary()

	bold.Fprintf(s.out, "📁 %s\n", p.Name)
	fmt.Fprintf(s.out, "   ID: %s\n", p.ID)
	if p.Description != "" {
		fmt.Fprintf(s.out, "   Description: %s\n", p.Description)
	}
	if p.Deadline != "" {
		fmt.Fprintf(s.out, "   Deadline: %s\n", p.Deadline)
	}
	fmt.Fprintf(s.out, "   Progress: %.0f%% (%d/%d stages, %d/%d tasks)\n",
		summary.OverallProgress*100, summary.CompletedStages, summary.TotalStages,
		summary.CompletedTasks, summary.TotalTasks)
	fmt.Fprintf(s.out, "   Current stage: %s\n", summary.CurrentStage)
	s.listStages()
}

func (s *Shell) listStages() {
	p := s.currentProject()
	if p == nil {
		fail.Fprintln(s.out, noProjectSelected)
		return
	}
	if len(p.Stages) == 0 {
		warn.Fprintln(s.out, "No stages in this project.")
		return
	}
	bold.Fprintf(s.out, "Stages in '%s':\n", p.Name)
	for i, st := range p.Stages {
		fmt.Fprintf(s.out, "  %d. %s [%s] %s (%.0f%%, %d tasks)\n",
			i+1, stageIcon(st.Status), shortID(st.ID), st.Name, st.Progress()*100, len(st.Tasks))
	}
}

func (s *Shell) listTasks() {
	p := s.currentProject()
	if p == nil {
		fail.Fprintln(s.out, noProjectSelected)
		return
	}
	current := p.CurrentStage()
	if current == nil {
		warn.Fprintln(s.out, "No active stage.")
		return
	}
	if len(current.Tasks) == 0 {
		warn.Fprintf(s.out, "No tasks in stage '%s'.\n", current.Name)
		return
	}
	bold.Fprintf(s.out, "Tasks in '%s':\n", current.Name)
	for _, t := range current.Tasks {
		line := fmt.Sprintf("  %s [%s] %s", taskIcon(t.Status), shortID(t.ID), t.Name)
		if t.Assignee != "" {
			line += fmt.Sprintf(" (@%s)", t.Assignee)
		}
		fmt.Fprintln(s.out, line)
	}
}

func (s *Shell) showStage(prefix string) {
	p := s.currentProject()
	if p == nil {
		fail.Fprintln(s.out, noProjectSelected)
		return
	}
	st, ok := s.matchStage(p, prefix)
	if !ok {
		return
	}
	bold.Fprintf(s.out, "%s %s\n", stageIcon(st.Status), st.Name)
	fmt.Fprintf(s.out, "   ID: %s\n", st.ID)
	if st.Description != "" {
		fmt.Fprintf(s.out, "   Description: %s\n", st.Description)
	}
	fmt.Fprintf(s.out, "   Status: %s\n", st.Status)
	fmt.Fprintf(s.out, "   Progress: %.0f%%\n", st.Progress()*100)
	for _, t := range st.Tasks {
		fmt.Fprintf(s.out, "   %s [%s] %s\n", taskIcon(t.Status), shortID(t.ID), t.Name)
	}
}

func (s *Shell) showTask(prefix string) {
	p := s.currentProject()
	if p == nil {
		fail.Fprintln(s.out, noProjectSelected)
		return
	}
	t, _, ok := s.matchTask(p, prefix)
	if !ok {
		return
	}
	bold.Fprintf(s.out, "%s %s\n", taskIcon(t.Status), t.Name)
	fmt.Fprintf(s.out, "   ID: %s\n", t.ID)
	if t.Description != "" {
		fmt.Fprintf(s.out, "   Description: %s\n", t.Description)
	}
	fmt.Fprintf(s.out, "   Status: %s\n", t.Status)
	if t.Assignee != "" {
		fmt.Fprintf(s.out, "   Assignee: %s\n", t.Assignee)
	}
}

func (s *Shell) addStage(ctx context.Context, args []string) {
	p := s.currentProject()
	if p == nil {
		fail.Fprintln(s.out, noProjectSelected)
		return
	}
	if len(args) == 0 {
		fail.Fprintln(s.out, "Usage: add stage <name> [description]")
		return
	}
	st, err := s.reg.AddStage(ctx, p.ID, args[0], strings.Join(args[1:], " "))
	if err != nil {
		fail.Fprintln(s.out, cerr.Message(err))
		return
	}
	success.Fprintf(s.out, "✅ Added stage '%s' with ID: %s\n", st.Name, shortID(st.ID))
}

func (s *Shell) addTask(ctx context.Context, args []string) {
	p := s.currentProject()
	if p == nil {
		fail.Fprintln(s.out, noProjectSelected)
		return
	}
	if len(args) == 0 {
		fail.Fprintln(s.out, "Usage: add task <name> [description] [assignee]")
		return
	}
	name := args[0]
	description, assignee := "", ""
	if len(args) > 1 {
		description = args[1]
	}
	if len(args) > 2 {
		assignee = args[2]
	}
	t, err := s.reg.AddTask(ctx, p.ID, name, description, assignee)
	if err != nil {
		fail.Fprintln(s.out, cerr.Message(err))
		return
	}
	success.Fprintf(s.out, "✅ Added task '%s' with ID: %s\n", t.Name, shortID(t.ID))
}

func (s *Shell) completeStage(ctx context.Context) {
	p := s.currentProject()
	if p == nil {
		fail.Fprintln(s.out, noProjectSelected)
		return
	}
	msg, err := s.reg.CompleteCurrentStage(ctx, p.ID)
	if err != nil {
		fail.Fprintln(s.out, cerr.Message(err))
		return
	}
	success.Fprintf(s.out, "✅ %s\n", msg)
}

func (s *Shell) completeTask(ctx context.Context, prefix string) {
	p := s.currentProject()
	if p == nil {
		fail.Fprintln(s.out, noProjectSelected)
		return
	}
	t, _, ok := s.matchTask(p, prefix)
	if !ok {
		return
	}
	updated, _, err := s.reg.CompleteTask(ctx, t.ID)
	if err != nil {
		fail.Fprintln(s.out, cerr.Message(err))
		return
	}
	success.Fprintf(s.out, "✅ Completed task: %s\n", t.Name)
	if updated.IsCompleted() {
		success.Fprintln(s.out, "🎉 Project completed!")
	}
}

func (s *Shell) nextStage(ctx context.Context) {
	p := s.currentProject()
	if p == nil {
		fail.Fprintln(s.out, noProjectSelected)
		return
	}
	msg, err := s.reg.AdvanceProject(ctx, p.ID)
	if err != nil {
		fail.Fprintln(s.out, cerr.Message(err))
		return
	}
	success.Fprintf(s.out, "➡️  %s\n", msg)
}

func (s *Shell) previousStage(ctx context.Context) {
	p := s.currentProject()
	if p == nil {
		fail.Fprintln(s.out, noProjectSelected)
		return
	}
	msg, err := s.reg.RevertProject(ctx, p.ID)
	if err != nil {
		fail.Fprintln(s.out, cerr.Message(err))
		return
	}
	warn.Fprintf(s.out, "⬅️  %s\n", msg)
}

func (s *Shell) updateTask(ctx context.Context, prefix, rawStatus string) {
	p := s.currentProject()
	if p == nil {
		fail.Fprintln(s.out, noProjectSelected)
		return
	}
	status, err := tracker.ParseTaskStatus(strings.ToLower(rawStatus))
	if err != nil {
		fail.Fprintln(s.out, "Invalid status. Use: todo, in_progress, completed, blocked.")
		return
	}
	t, _, ok := s.matchTask(p, prefix)
	if !ok {
		return
	}
	if _, _, err := s.reg.SetTaskStatus(ctx, t.ID, status); err != nil {
		fail.Fprintln(s.out, cerr.Message(err))
		return
	}
	success.Fprintf(s.out, "✅ Updated task '%s' to %s\n", t.Name, status)
}

func (s *Shell) deleteProject(ctx context.Context, prefix string) {
	p, ok := s.matchProject(prefix)
	if !ok {
		return
	}
	warn.Fprintf(s.out, "Are you sure you want to delete project '%s'? This is irreversible. (y/N): ", p.Name)
	answer := ""
	if s.scanner.Scan() {
		answer = strings.TrimSpace(strings.ToLower(s.scanner.Text()))
	}
	if answer != "y" && answer != "yes" {
		warn.Fprintln(s.out, "Deletion cancelled.")
		return
	}
	if err := s.reg.DeleteProject(ctx, p.ID); err != nil {
		fail.Fprintln(s.out, cerr.Message(err))
		return
	}
	if s.currentID == p.ID {
		s.currentID = ""
	}
	success.Fprintf(s.out, "🗑️  Deleted project: %s\n", p.Name)
}

func (s *Shell) showProgress() {
	p := s.currentProject()
	if p == nil {
		fail.Fprintln(s.out, noProjectSelected)
		return
	}
	summary := p.Summary()
	bold.Fprintf(s.out, "📊 Progress for '%s'\n", p.Name)
	fmt.Fprintf(s.out, "   Overall: %s %.0f%%\n", progressBar(summary.OverallProgress), summary.OverallProgress*100)
	for _, st := range p.Stages {
		fmt.Fprintf(s.out, "   %s %-20s %s %.0f%%\n", stageIcon(st.Status), st.Name, progressBar(st.Progress()), st.Progress()*100)
	}
	if summary.DaysUntilDeadline != nil {
		days := *summary.DaysUntilDeadline
		switch {
		case summary.IsOverdue:
			fail.Fprintf(s.out, "   ⚠️  Overdue by %d days\n", -days)
		case !summary.IsCompleted:
			fmt.Fprintf(s.out, "   ⏰ %d days until deadline\n", days)
		}
	}
}

func (s *Shell) showCurrent() {
	p := s.currentProject()
	if p == nil {
		fail.Fprintln(s.out, noProjectSelected)
		return
	}
	fmt.Fprintf(s.out, "Current project: %s [%s]\n", p.Name, shortID(p.ID))
	if current := p.CurrentStage(); current != nil {
		fmt.Fprintf(s.out, "Current stage: %s\n", current.Name)
	} else if p.IsCompleted() {
		success.Fprintln(s.out, "Project is completed.")
	} else {
		warn.Fprintln(s.out, "No active stage.")
	}
}

// progressBar renders a ten-cell bar like ██████░░░░.
func progressBar(ratio float64) string {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * 10)
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

// matchProject resolves an id prefix against all projects, reporting
// not-found and ambiguity to the user.
func (s *Shell) matchProject(prefix string) (*tracker.Project, bool) {
	var matches []*tracker.Project
	for _, p := range s.reg.ListProjects() {
		if strings.HasPrefix(strings.ToUpper(p.ID), strings.ToUpper(prefix)) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		fail.Fprintf(s.out, "No project found matching '%s'.\n", prefix)
		return nil, false
	case 1:
		return matches[0], true
	default:
		fail.Fprintf(s.out, "Multiple projects match '%s'. Please be more specific.\n", prefix)
		return nil, false
	}
}

func (s *Shell) matchStage(p *tracker.Project, prefix string) (*tracker.Stage, bool) {
	var matches []*tracker.Stage
	for _, st := range p.Stages {
		if strings.HasPrefix(strings.ToUpper(st.ID), strings.ToUpper(prefix)) {
			matches = append(matches, st)
		}
	}
	switch len(matches) {
	case 0:
		fail.Fprintf(s.out, "No stage found matching '%s'.\n", prefix)
		return nil, false
	case 1:
		return matches[0], true
	default:
		fail.Fprintf(s.out, "Multiple stages match '%s'. Please be more specific.\n", prefix)
		return nil, false
	}
}

func (s *Shell) matchTask(p *tracker.Project, prefix string) (*tracker.Task, *tracker.Stage, bool) {
	var (
		matchedTask  *tracker.Task
		matchedStage *tracker.Stage
		count        int
	)
	for _, st := range p.Stages {
		for _, t := range st.Tasks {
			if strings.HasPrefix(strings.ToUpper(t.ID), strings.ToUpper(prefix)) {
				matchedTask, matchedStage = t, st
				count++
			}
		}
	}
	switch count {
	case 0:
		fail.Fprintf(s.out, "No task found matching '%s'.\n", prefix)
		return nil, nil, false
	case 1:
		return matchedTask, matchedStage, true
	default:
		fail.Fprintf(s.out, "Multiple tasks match '%s'. Please be more specific.\n", prefix)
		return nil, nil, false
	}
}
