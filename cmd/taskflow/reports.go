package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/baiirun/taskflow/internal/httpapi"
	"github.com/baiirun/taskflow/internal/model"
)

func newAnalyticsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics <project-id>",
		Short: "Show completion and overdue figures for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				result, err := a.svc.ProjectAnalytics(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if opts.json {
					return a.printJSON(httpapi.NewAnalyticsJSON(result))
				}

				avg := time.Duration(result.AverageCompletionTime) * time.Millisecond
				fmt.Fprintf(a.out, "Overdue tasks:           %d\n", result.OverdueTaskCount)
				fmt.Fprintf(a.out, "Average completion time: %s\n", avg.Round(time.Second))
				if len(result.CompletedTasksPerUser) == 0 {
					fmt.Fprintln(a.out, "No completed tasks")
					return nil
				}
				fmt.Fprintln(a.out)
				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "USER\tCOMPLETED")
				for _, r := range result.CompletedTasksPerUser {
					fmt.Fprintf(w, "%s\t%d\n", r.User.Email, r.Count)
				}
				return w.Flush()
			})
		},
	}
}

func newAuditCmd(opts *rootOptions) *cobra.Command {
	var (
		taskID    string
		projectID string
		userID    string
		page      int
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List audit entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				ctx := cmd.Context()
				filter := model.AuditFilter{TaskID: taskID, ProjectID: projectID}
				if userID != "" {
					id, err := a.resolveUser(ctx, userID)
					if err != nil {
						return err
					}
					filter.UserID = id
				}

				result, err := a.svc.ListAudit(ctx, filter, model.Page{Page: page, Limit: limit})
				if err != nil {
					return err
				}
				if opts.json {
					return a.printJSON(httpapi.NewActivityPageJSON(result))
				}
				if len(result.Entries) == 0 {
					fmt.Fprintln(a.out, "No audit entries")
					return nil
				}

				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tACTION\tENTITY\tACTOR\tDETAILS")
				for _, e := range result.Entries {
					details, err := json.Marshal(e.Details)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\n",
						e.CreatedAt.Format(dateTimeLayout), e.Action, e.EntityType, e.EntityID, e.ActorID, details)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "page %d/%d (%d total)\n", result.Page, result.TotalPages, result.Total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "entries for a task")
	cmd.Flags().StringVar(&projectID, "project", "", "entries for a project")
	cmd.Flags().StringVar(&userID, "user", "", "entries by an acting user (id or email)")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	return cmd
}
