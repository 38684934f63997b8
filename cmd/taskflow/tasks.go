package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/baiirun/taskflow/internal/httpapi"
	"github.com/baiirun/taskflow/internal/lifecycle"
	"github.com/baiirun/taskflow/internal/model"
)

const dateTimeLayout = "2006-01-02 15:04"

// parseDue accepts RFC 3339 or a plain date (midnight UTC).
func parseDue(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

func newTaskCmd(opts *rootOptions) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	taskCmd.AddCommand(
		newTaskAddCmd(opts),
		newTaskEditCmd(opts),
		newTaskStatusCmd(opts),
		newTaskAssignCmd(opts),
		newTaskRmCmd(opts),
		newTaskShowCmd(opts),
		newTaskLsCmd(opts),
	)
	return taskCmd
}

func newTaskAddCmd(opts *rootOptions) *cobra.Command {
	var (
		projectID   string
		description string
		due         string
		assignee    string
		status      string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dueDate, err := parseDue(due)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				ctx := cmd.Context()
				actor, err := a.actor(ctx)
				if err != nil {
					return err
				}

				in := lifecycle.CreateTaskInput{
					ProjectID: projectID,
					Title:     strings.Join(args, " "),
					DueDate:   dueDate,
				}
				if description != "" {
					in.Description = &description
				}
				if assignee != "" {
					id, err := a.resolveUser(ctx, assignee)
					if err != nil {
						return err
					}
					in.AssigneeID = &id
				}
				if status != "" {
					in.Status = model.ParseStatus(status)
				}

				task, err := a.svc.CreateTask(ctx, in, actor)
				if err != nil {
					return err
				}
				if opts.json {
					return a.printJSON(httpapi.NewTaskJSON(task))
				}
				fmt.Fprintf(a.out, "Created task %s: %s\n", task.ID, task.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id")
	cmd.Flags().StringVarP(&description, "desc", "d", "", "description")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "assignee id or email")
	cmd.Flags().StringVarP(&status, "status", "s", "", "initial status (todo, in_progress, done)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func newTaskEditCmd(opts *rootOptions) *cobra.Command {
	var (
		title       string
		description string
		due         string
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a task's title, description or due date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var fields model.TaskFields
			if cmd.Flags().Changed("title") {
				fields.Title = &title
			}
			if cmd.Flags().Changed("desc") {
				fields.Description = &description
			}
			if cmd.Flags().Changed("due") {
				d, err := parseDue(due)
				if err != nil {
					return err
				}
				fields.DueDate = &d
			}

			return withApp(cmd, opts, func(a *app) error {
				ctx := cmd.Context()
				actor, err := a.actor(ctx)
				if err != nil {
					return err
				}
				task, err := a.svc.UpdateTaskFields(ctx, args[0], fields, actor)
				if err != nil {
					return err
				}
				if opts.json {
					return a.printJSON(httpapi.NewTaskJSON(task))
				}
				fmt.Fprintf(a.out, "Updated task %s\n", task.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVarP(&description, "desc", "d", "", "new description (empty clears it)")
	cmd.Flags().StringVar(&due, "due", "", "new due date")
	return cmd
}

func newTaskStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a task to todo, in_progress or done",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				ctx := cmd.Context()
				actor, err := a.actor(ctx)
				if err != nil {
					return err
				}
				task, err := a.svc.TransitionStatus(ctx, args[0], model.ParseStatus(args[1]), actor)
				if err != nil {
					return err
				}
				if opts.json {
					return a.printJSON(httpapi.NewTaskJSON(task))
				}
				fmt.Fprintf(a.out, "Task %s is now %s\n", task.ID, task.Status)
				return nil
			})
		},
	}
}

func newTaskAssignCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <id> [user]",
		Short: "Assign a task to a project member, or unassign it when no user is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				ctx := cmd.Context()
				actor, err := a.actor(ctx)
				if err != nil {
					return err
				}
				var assignee *string
				if len(args) == 2 {
					id, err := a.resolveUser(ctx, args[1])
					if err != nil {
						return err
					}
					assignee = &id
				}
				task, err := a.svc.Reassign(ctx, args[0], assignee, actor)
				if err != nil {
					return err
				}
				if opts.json {
					return a.printJSON(httpapi.NewTaskJSON(task))
				}
				if task.AssigneeID == nil {
					fmt.Fprintf(a.out, "Task %s is unassigned\n", task.ID)
				} else {
					fmt.Fprintf(a.out, "Task %s assigned to %s\n", task.ID, *task.AssigneeID)
				}
				return nil
			})
		},
	}
}

func newTaskRmCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				ctx := cmd.Context()
				actor, err := a.actor(ctx)
				if err != nil {
					return err
				}
				if err := a.svc.DeleteTask(ctx, args[0], actor); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Deleted task %s\n", args[0])
				return nil
			})
		},
	}
}

func newTaskShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				task, err := a.svc.GetTask(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if opts.json {
					return a.printJSON(httpapi.NewTaskJSON(task))
				}

				fmt.Fprintf(a.out, "%s\n", task.Title)
				fmt.Fprintf(a.out, "  ID:       %s\n", task.ID)
				fmt.Fprintf(a.out, "  Project:  %s\n", task.ProjectID)
				fmt.Fprintf(a.out, "  Status:   %s\n", task.Status)
				if task.AssigneeID != nil {
					fmt.Fprintf(a.out, "  Assignee: %s\n", *task.AssigneeID)
				}
				fmt.Fprintf(a.out, "  Due:      %s\n", task.DueDate.Format(dateTimeLayout))
				if task.CompletedAt != nil {
					fmt.Fprintf(a.out, "  Done:     %s\n", task.CompletedAt.Format(dateTimeLayout))
				}
				if task.Description != nil {
					fmt.Fprintf(a.out, "\n%s\n", *task.Description)
				}
				return nil
			})
		},
	}
}

func newTaskLsCmd(opts *rootOptions) *cobra.Command {
	var (
		projectID string
		assignee  string
		status    string
		search    string
		page      int
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				ctx := cmd.Context()
				filter := model.TaskFilter{ProjectID: projectID, Search: search}
				if assignee != "" {
					id, err := a.resolveUser(ctx, assignee)
					if err != nil {
						return err
					}
					filter.AssigneeID = id
				}
				if status != "" {
					st := model.ParseStatus(status)
					if !st.IsValid() {
						return fmt.Errorf("invalid status: %s", status)
					}
					filter.Status = &st
				}

				result, err := a.svc.ListTasks(ctx, filter, model.Page{Page: page, Limit: limit})
				if err != nil {
					return err
				}
				if opts.json {
					return a.printJSON(httpapi.NewTaskPageJSON(result))
				}
				if len(result.Tasks) == 0 {
					fmt.Fprintln(a.out, "No tasks found")
					return nil
				}

				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSTATUS\tDUE\tASSIGNEE\tPROJECT\tTITLE")
				for _, t := range result.Tasks {
					who := "-"
					if t.Assignee != nil {
						who = t.Assignee.Email
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						t.ID, t.Status, t.DueDate.Format("2006-01-02"), who, t.Project.Name, t.Title)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "page %d/%d (%d total)\n", result.Page, result.TotalPages, result.Total)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "filter by project id")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "filter by assignee id or email")
	cmd.Flags().StringVarP(&status, "status", "s", "", "filter by status")
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive match on title or description")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 10, "page size")
	return cmd
}
