package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskflow/internal/logging"
	"github.com/ShayCichocki/taskflow/pkg/models"
)

var (
	tasksStatus string
	tasksJSON   bool
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List stored tasks",
	Long: `List tasks straight from the task database, bypassing instruction
handling. Use 'taskflow ask' to change them.`,
	Args: cobra.NoArgs,
	RunE: runTasks,
}

func init() {
	tasksCmd.Flags().StringVar(&tasksStatus, "status", "", "Only show tasks with this status (open or complete)")
	tasksCmd.Flags().BoolVar(&tasksJSON, "json", false, "Print tasks as JSON")
}

func runTasks(cmd *cobra.Command, _ []string) error {
	filter := models.TaskFilter{Status: models.TaskStatus(tasksStatus)}
	if tasksStatus != "" && !filter.Status.Valid() {
		return fmt.Errorf("invalid status %q: want open or complete", tasksStatus)
	}

	ctx := cmd.Context()
	a, _, err := openApp(ctx, logging.FormatConsole)
	if err != nil {
		return err
	}
	defer a.Close()

	tasks, err := a.Tasks.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	out := cmd.OutOrStdout()
	if tasksJSON {
		return writeJSON(out, tasks)
	}
	printTasks(out, tasks)
	return nil
}

func printTasks(w io.Writer, tasks []models.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("ID", "STATUS", "DUE", "DESCRIPTION")
	for _, t := range tasks {
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.String()
		}
		status := color.YellowString(string(t.Status))
		if t.Status == models.TaskStatusComplete {
			status = color.GreenString(string(t.Status))
		}
		tbl.Row(strconv.FormatInt(t.ID, 10), status, due, t.Description)
	}
	fmt.Fprintln(w, tbl.Render())
}
