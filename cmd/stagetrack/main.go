package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/stagetrack/stagetrack/internal/config"
	"github.com/stagetrack/stagetrack/internal/eventbus"
	"github.com/stagetrack/stagetrack/internal/registry"
	"github.com/stagetrack/stagetrack/internal/shell"
	"github.com/stagetrack/stagetrack/internal/tracker"
	"github.com/stagetrack/stagetrack/pkg/clog"
	"github.com/stagetrack/stagetrack/pkg/storage"
)

var (
	app = kingpin.New("stagetrack", "Stage-based project tracking from the terminal")

	shellCmd = app.Command("shell", "Start the interactive shell").Default()

	createCmd         = app.Command("create", "Create a new project")
	createName        = createCmd.Arg("name", "Project name").Required().String()
	createDescription = createCmd.Flag("description", "Project description").String()
	createDeadline    = createCmd.Flag("deadline", "Deadline (YYYY-MM-DD)").String()
	createTemplate    = createCmd.Flag("template", "Template ID to instantiate").String()

	listCmd = app.Command("list", "List all projects")

	showCmd = app.Command("show", "Show project details")
	showID  = showCmd.Arg("id", "Project ID or prefix").Required().String()

	deleteCmd = app.Command("delete", "Delete a project")
	deleteID  = deleteCmd.Arg("id", "Project ID or prefix").Required().String()

	advanceCmd = app.Command("advance", "Advance a project to its next stage")
	advanceID  = advanceCmd.Arg("id", "Project ID or prefix").Required().String()

	backCmd = app.Command("back", "Move a project back one stage")
	backID  = backCmd.Arg("id", "Project ID or prefix").Required().String()

	completeTaskCmd     = app.Command("complete-task", "Mark a task as completed")
	completeTaskProject = completeTaskCmd.Arg("project", "Project ID or prefix").Required().String()
	completeTaskID      = completeTaskCmd.Arg("task", "Task ID or prefix").Required().String()

	updateTaskCmd     = app.Command("update-task", "Update a task's status")
	updateTaskProject = updateTaskCmd.Arg("project", "Project ID or prefix").Required().String()
	updateTaskID      = updateTaskCmd.Arg("task", "Task ID or prefix").Required().String()
	updateTaskStatus  = updateTaskCmd.Arg("status", "New status (todo/in_progress/completed/blocked)").Required().String()

	categoriesCmd = app.Command("categories", "List categories")

	summaryCmd = app.Command("summary", "Show an aggregate summary of all projects")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// The CLI shares the server's snapshot; keep its own logging out of the
	// way unless something actually goes wrong.
	slog.SetDefault(slog.New(clog.NewAttributesHandler(
		clog.NewTextHandler(os.Stderr, clog.WithLevel(slog.LevelWarn)))))

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := openRegistry(ctx, env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening project data: %v\n", err)
		os.Exit(1)
	}

	sh := shell.New(reg, os.Stdin, os.Stdout)

	switch command {
	case shellCmd.FullCommand():
		if err := sh.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if ctx.Err() != nil {
			fmt.Println("\nGoodbye!")
		}
	case createCmd.FullCommand():
		handleCreate(ctx, reg)
	case listCmd.FullCommand():
		sh.Execute(ctx, "list projects")
	case showCmd.FullCommand():
		sh.Execute(ctx, "select project "+*showID)
		sh.Execute(ctx, "show project")
	case deleteCmd.FullCommand():
		sh.Execute(ctx, "delete project "+*deleteID)
	case advanceCmd.FullCommand():
		sh.Execute(ctx, "select project "+*advanceID)
		sh.Execute(ctx, "next stage")
	case backCmd.FullCommand():
		sh.Execute(ctx, "select project "+*backID)
		sh.Execute(ctx, "back stage")
	case completeTaskCmd.FullCommand():
		sh.Execute(ctx, "select project "+*completeTaskProject)
		sh.Execute(ctx, "complete task "+*completeTaskID)
	case updateTaskCmd.FullCommand():
		sh.Execute(ctx, "select project "+*updateTaskProject)
		sh.Execute(ctx, fmt.Sprintf("update task %s %s", *updateTaskID, *updateTaskStatus))
	case categoriesCmd.FullCommand():
		handleCategories(reg)
	case summaryCmd.FullCommand():
		handleSummary(reg)
	}
}

func handleCategories(reg *registry.Registry) {
	defaultCat := reg.DefaultCategory()
	for _, c := range reg.ListCategories() {
		marker := " "
		if defaultCat != nil && c.ID == defaultCat.ID {
			marker = "*"
		}
		fmt.Printf("%s [%s] %s (%d projects)\n", marker, c.ID, c.Name, len(reg.ProjectsByCategory(c.ID)))
	}
}

func handleSummary(reg *registry.Registry) {
	s := reg.GlobalSummary()
	fmt.Printf("Projects: %d total, %d active, %d completed\n", s.TotalProjects, s.ActiveProjects, s.CompletedProjects)
	fmt.Printf("Stages:   %d/%d completed\n", s.CompletedStages, s.TotalStages)
	fmt.Printf("Tasks:    %d/%d completed\n", s.CompletedTasks, s.TotalTasks)
	fmt.Printf("Overall progress: %.0f%%\n", s.OverallProgress*100)
}

func openRegistry(ctx context.Context, env *config.Env) (*registry.Registry, error) {
	var (
		store storage.Storage
		err   error
	)
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(ctx, env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
	}
	if err != nil {
		return nil, err
	}

	reg := registry.New(store, eventbus.New(), env.StorageEnv.SnapshotFile)
	if err := reg.Load(ctx); err != nil {
		return nil, err
	}
	return reg, nil
}

func handleCreate(ctx context.Context, reg *registry.Registry) {
	var (
		project *tracker.Project
		err     error
	)
	if *createTemplate != "" {
		project, err = reg.CreateProjectFromTemplate(ctx, *createName, *createDescription, *createDeadline, "", *createTemplate)
	} else {
		project, err = reg.CreateProject(ctx, *createName, *createDescription, nil, *createDeadline, "")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created project '%s' with ID: %s\n", project.Name, project.ID)
}
