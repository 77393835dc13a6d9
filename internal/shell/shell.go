package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"mvdan.cc/sh/v3/shell"

	"github.com/stagetrack/stagetrack/internal/registry"
	"github.com/stagetrack/stagetrack/internal/tracker"
)

var (
	header  = color.New(color.FgMagenta, color.Bold)
	success = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	fail    = color.New(color.FgRed)
	accent  = color.New(color.FgCyan)
	bold    = color.New(color.Bold)
)

// Shell is the interactive command loop. Commands operate on a selected
// working project, mirroring the web dashboard's operations.
type Shell struct {
	reg       *registry.Registry
	scanner   *bufio.Scanner
	out       io.Writer
	currentID string
}

func New(reg *registry.Registry, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		reg:     reg,
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

// currentProject resolves the selected project fresh from the registry, so
// external reloads and deletions are always reflected.
func (s *Shell) currentProject() *tracker.Project {
	if s.currentID == "" {
		return nil
	}
	p, err := s.reg.GetProject(s.currentID)
	if err != nil {
		s.currentID = ""
		return nil
	}
	return p
}

// Run reads commands until EOF, quit or context cancellation.
func (s *Shell) Run(ctx context.Context) error {
	header.Fprintln(s.out, "🚀 Welcome to StageTrack")
	fmt.Fprintf(s.out, "Type '%s' for commands or '%s' to exit.\n\n", bold.Sprint("help"), bold.Sprint("quit"))

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bold.Fprint(s.out, "pm> ")
		if !s.scanner.Scan() {
			fmt.Fprintln(s.out)
			return s.scanner.Err()
		}
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "quit", "exit":
			warn.Fprintln(s.out, "Goodbye!")
			return nil
		case "help":
			s.printHelp()
		default:
			s.Execute(ctx, line)
		}
	}
}

// Execute parses and dispatches one command line.
func (s *Shell) Execute(ctx context.Context, line string) {
	// shell.Fields honors quoting, so multi-word names work:
	//   create project "Website relaunch" "the big one"
	fields, err := shell.Fields(line, nil)
	if err != nil {
		fail.Fprintf(s.out, "Could not parse command: %v\n", err)
		return
	}
	if len(fields) == 0 {
		return
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	sub := ""
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}

	switch {
	case cmd == "create" && sub == "project":
		s.createProject(ctx, args[1:])
	case cmd == "list" && sub == "projects":
		s.listProjects()
	case cmd == "list" && sub == "stages":
		s.listStages()
	case cmd == "list" && sub == "tasks":
		s.listTasks()
	case cmd == "select" && sub == "project" && len(args) > 1:
		s.selectProject(args[1])
	case cmd == "show" && sub == "project":
		s.showProject()
	case cmd == "show" && sub == "stage" && len(args) > 1:
		s.showStage(args[1])
	case cmd == "show" && sub == "task" && len(args) > 1:
		s.showTask(args[1])
	case cmd == "add" && sub == "stage":
		s.addStage(ctx, args[1:])
	case cmd == "add" && sub == "task":
		s.addTask(ctx, args[1:])
	case cmd == "complete" && sub == "stage":
		s.completeStage(ctx)
	case cmd == "complete" && sub == "task" && len(args) > 1:
		s.completeTask(ctx, args[1])
	case cmd == "next" && sub == "stage":
		s.nextStage(ctx)
	case cmd == "back" && sub == "stage":
		s.previousStage(ctx)
	case cmd == "update" && sub == "task" && len(args) > 2:
		s.updateTask(ctx, args[1], args[2])
	case cmd == "delete" && sub == "project" && len(args) > 1:
		s.deleteProject(ctx, args[1])
	case cmd == "project" && sub == "progress":
		s.showProgress()
	case cmd == "current":
		s.showCurrent()
	default:
		fail.Fprintln(s.out, "Unknown command. Type 'help' for assistance.")
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out)
	bold.Fprintln(s.out, "Available Commands:")
	fmt.Fprintln(s.out)
	accent.Fprintln(s.out, "Project Management:")
	fmt.Fprintln(s.out, "  create project <name> [desc]      - Create a new project")
	fmt.Fprintln(s.out, "  list projects                     - List all projects")
	fmt.Fprintln(s.out, "  select project <id>               - Select a project")
	fmt.Fprintln(s.out, "  show project                      - Show current project details")
	fmt.Fprintln(s.out, "  delete project <id>               - Delete a project")
	fmt.Fprintln(s.out, "  project progress                  - Show project progress")
	fmt.Fprintln(s.out)
	accent.Fprintln(s.out, "Stage Management:")
	fmt.Fprintln(s.out, "  add stage <name> [desc]           - Add a stage to current project")
	fmt.Fprintln(s.out, "  list stages                       - List stages in current project")
	fmt.Fprintln(s.out, "  show stage <id>                   - Show stage details")
	fmt.Fprintln(s.out, "  next stage                        - Advance to the next stage")
	fmt.Fprintln(s.out, "  back stage                        - Go back to the previous stage")
	fmt.Fprintln(s.out, "  complete stage                    - Complete current stage")
	fmt.Fprintln(s.out)
	accent.Fprintln(s.out, "Task Management:")
	fmt.Fprintln(s.out, "  add task <name> [desc] [assignee] - Add a task to current stage")
	fmt.Fprintln(s.out, "  list tasks                        - List tasks in current stage")
	fmt.Fprintln(s.out, "  complete task <id>                - Mark a task as completed")
	fmt.Fprintln(s.out, "  update task <id> <status>         - Update task status (todo/in_progress/completed/blocked)")
	fmt.Fprintln(s.out, "  show task <id>                    - Show task details")
	fmt.Fprintln(s.out)
	accent.Fprintln(s.out, "Other:")
	fmt.Fprintln(s.out, "  current                           - Show current project and stage")
	fmt.Fprintln(s.out, "  help                              - Show this help message")
	fmt.Fprintln(s.out, "  quit/exit                         - Exit the program")
	fmt.Fprintln(s.out)
}
