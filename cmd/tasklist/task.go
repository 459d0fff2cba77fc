package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/tasklist/internal/logging"
	"github.com/fentz26/tasklist/internal/models"
	"github.com/fentz26/tasklist/internal/taskerr"
	"github.com/fentz26/tasklist/internal/tui"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Add a new task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskToggleCmd = &cobra.Command{
	Use:   "toggle [task-id]",
	Short: "Mark a task done or not done",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskToggle,
}

var taskEditCmd = &cobra.Command{
	Use:   "edit [task-id] [text]",
	Short: "Replace a task's text",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTaskEdit,
}

var taskDeleteCmd = &cobra.Command{
	Use:     "delete [task-id]",
	Aliases: []string{"rm"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runTaskDelete,
}

var taskClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all completed tasks",
	RunE:  runTaskClear,
}

var taskSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write tasks to storage now",
	RunE:  runTaskSave,
}

var taskStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show task counts",
	RunE:  runTaskStats,
}

var (
	taskFilter string
	localMode  bool
)

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskShowCmd, taskToggleCmd, taskEditCmd,
		taskDeleteCmd, taskClearCmd, taskSaveCmd, taskStatsCmd)

	taskCmd.PersistentFlags().BoolVar(&localMode, "local", false, "Operate on the configured storage directly instead of the daemon")
	taskListCmd.Flags().StringVar(&taskFilter, "filter", "all", "Filter by state (all, active, completed)")
}

// withAPI runs fn against the daemon, or in-process with --local. Local runs
// save before returning so the change outlives the process.
func withAPI(cmd *cobra.Command, fn func(taskAPI) error) error {
	if !localMode {
		return fn(tui.NewClient(apiAddr))
	}

	log, err := logging.New("warn", logging.FormatConsole)
	if err != nil {
		return err
	}
	defer logging.Sync(log)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := openLocal(ctx, cfg, log)
	if err != nil {
		return err
	}

	runErr := fn(&localAPI{ctx: ctx, app: app})
	if err := app.saveAndClose(ctx); err != nil && runErr == nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	return runErr
}

// resolveID expands a unique id prefix to a full id.
func resolveID(api taskAPI, prefix string) (string, error) {
	tasks, err := api.ListTasks(models.FilterAll)
	if err != nil {
		return "", err
	}

	var match string
	for _, t := range tasks {
		if t.ID == prefix {
			return t.ID, nil
		}
		if strings.HasPrefix(t.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("task id prefix %q is ambiguous", prefix)
			}
			match = t.ID
		}
	}
	if match == "" {
		// let the server produce its not-found error
		return prefix, nil
	}
	return match, nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	return withAPI(cmd, func(api taskAPI) error {
		task, err := api.AddTask(strings.Join(args, " "))
		if task.ID != "" {
			fmt.Printf("Created task: %s\n", task.ID)
		}
		return unsaved(err)
	})
}

func runTaskList(cmd *cobra.Command, args []string) error {
	filter, err := models.ParseFilter(taskFilter)
	if err != nil {
		return err
	}

	return withAPI(cmd, func(api taskAPI) error {
		tasks, err := api.ListTasks(filter)
		if err != nil {
			return err
		}

		if len(tasks) == 0 {
			fmt.Println("No tasks found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDONE\tTEXT\tCREATED")
		for _, t := range tasks {
			done := " "
			if t.Completed {
				done = "x"
			}
			fmt.Fprintf(w, "%s\t[%s]\t%s\t%s\n",
				t.ID, done, truncate(t.Text, 50), time.UnixMilli(t.CreatedAt).Format(time.DateTime))
		}
		return w.Flush()
	})
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	return withAPI(cmd, func(api taskAPI) error {
		id, err := resolveID(api, args[0])
		if err != nil {
			return err
		}
		task, err := api.GetTask(id)
		if err != nil {
			return err
		}

		fmt.Printf("ID:        %s\n", task.ID)
		fmt.Printf("Text:      %s\n", task.Text)
		fmt.Printf("Completed: %t\n", task.Completed)
		fmt.Printf("Created:   %s\n", time.UnixMilli(task.CreatedAt).Format(time.RFC3339))
		return nil
	})
}

func runTaskToggle(cmd *cobra.Command, args []string) error {
	return withAPI(cmd, func(api taskAPI) error {
		id, err := resolveID(api, args[0])
		if err != nil {
			return err
		}
		task, err := api.ToggleTask(id)
		if task.ID == "" {
			return err
		}
		state := "not done"
		if task.Completed {
			state = "done"
		}
		fmt.Printf("Marked %s %s\n", task.ID, state)
		return unsaved(err)
	})
}

func runTaskEdit(cmd *cobra.Command, args []string) error {
	return withAPI(cmd, func(api taskAPI) error {
		id, err := resolveID(api, args[0])
		if err != nil {
			return err
		}
		task, err := api.EditTask(id, strings.Join(args[1:], " "))
		if task.ID != "" {
			fmt.Printf("Updated task %s\n", task.ID)
		}
		return unsaved(err)
	})
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	return withAPI(cmd, func(api taskAPI) error {
		id, err := resolveID(api, args[0])
		if err != nil {
			return err
		}
		err = api.DeleteTask(id)
		if err != nil && !isUnsaved(err) {
			return err
		}
		fmt.Printf("Deleted task %s\n", id)
		return unsaved(err)
	})
}

func runTaskClear(cmd *cobra.Command, args []string) error {
	return withAPI(cmd, func(api taskAPI) error {
		n, err := api.ClearCompleted()
		if err != nil && !isUnsaved(err) {
			return err
		}
		fmt.Printf("Removed %d completed task(s)\n", n)
		return unsaved(err)
	})
}

func runTaskSave(cmd *cobra.Command, args []string) error {
	return withAPI(cmd, func(api taskAPI) error {
		st, err := api.Save()
		if err != nil {
			return err
		}
		fmt.Printf("Saved to %s (%d writes)\n", st.Backend, st.Writes)
		return nil
	})
}

func runTaskStats(cmd *cobra.Command, args []string) error {
	return withAPI(cmd, func(api taskAPI) error {
		st, err := api.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("Total:     %d\n", st.Total)
		fmt.Printf("Active:    %d\n", st.Active)
		fmt.Printf("Completed: %d\n", st.Completed)
		return nil
	})
}

// isUnsaved reports whether err means the change was applied but the write
// after it failed, either over HTTP or in-process.
func isUnsaved(err error) bool {
	return tui.IsUnsaved(err) || (localMode && taskerr.KindOf(err) == taskerr.KindIOFailure)
}

// unsaved annotates an applied-but-unsaved error so nobody reruns the command.
func unsaved(err error) error {
	if err != nil && isUnsaved(err) {
		return fmt.Errorf("change applied but not saved, do not repeat it: %w", err)
	}
	return err
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
