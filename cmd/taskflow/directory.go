package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/baiirun/taskflow/internal/db"
	"github.com/baiirun/taskflow/internal/httpapi"
	"github.com/baiirun/taskflow/internal/lifecycle"
	"github.com/baiirun/taskflow/internal/model"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the taskflow database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				target := a.cfg.Database.Path
				if a.db.Dialect() != db.DriverSQLite {
					target = string(a.db.Dialect())
				}
				fmt.Fprintf(a.out, "Initialized taskflow database (%s)\n", target)
				return nil
			})
		},
	}
}

func newOrgCmd(opts *rootOptions) *cobra.Command {
	orgCmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}
	orgCmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Create an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				org, err := a.svc.CreateOrganization(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if opts.json {
					return a.printJSON(map[string]any{"id": org.ID, "name": org.Name, "createdAt": org.CreatedAt})
				}
				fmt.Fprintf(a.out, "Created organization %s (%s)\n", org.ID, org.Name)
				return nil
			})
		},
	})
	return orgCmd
}

func newUserCmd(opts *rootOptions) *cobra.Command {
	var (
		orgID    string
		password string
		role     string
	)
	addCmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				u, err := a.svc.CreateUser(cmd.Context(), lifecycle.CreateUserInput{
					OrganizationID: orgID,
					Email:          args[0],
					Password:       password,
					Role:           model.Role(role),
				})
				if err != nil {
					return err
				}
				if opts.json {
					return a.printJSON(httpapi.NewUserJSON(u))
				}
				fmt.Fprintf(a.out, "Created user %s (%s, %s)\n", u.ID, u.Email, u.Role)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&orgID, "org", "", "organization id")
	addCmd.Flags().StringVar(&password, "password", "", "initial password")
	addCmd.Flags().StringVar(&role, "role", "", "Admin or Member (default Member)")
	_ = addCmd.MarkFlagRequired("org")

	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	userCmd.AddCommand(addCmd)
	return userCmd
}

func newProjectCmd(opts *rootOptions) *cobra.Command {
	var orgID string

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a project; the acting user becomes its first member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				// The creator is optional for project creation.
				creator := ""
				if opts.as != "" || a.cfg.Actor != "" {
					id, err := a.actor(cmd.Context())
					if err != nil {
						return err
					}
					creator = id
				}
				p, err := a.svc.CreateProject(cmd.Context(), orgID, args[0], creator)
				if err != nil {
					return err
				}
				if opts.json {
					return a.printJSON(model.ProjectRef{ID: p.ID, Name: p.Name})
				}
				fmt.Fprintf(a.out, "Created project %s (%s)\n", p.ID, p.Name)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&orgID, "org", "", "organization id")
	_ = addCmd.MarkFlagRequired("org")

	var lsOrgID string
	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List an organization's projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				projects, err := a.svc.ListProjects(cmd.Context(), lsOrgID)
				if err != nil {
					return err
				}
				refs := make([]model.ProjectRef, 0, len(projects))
				for _, p := range projects {
					refs = append(refs, model.ProjectRef{ID: p.ID, Name: p.Name})
				}
				if opts.json {
					return a.printJSON(refs)
				}
				if len(refs) == 0 {
					fmt.Fprintln(a.out, "No projects")
					return nil
				}
				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME")
				for _, r := range refs {
					fmt.Fprintf(w, "%s\t%s\n", r.ID, r.Name)
				}
				return w.Flush()
			})
		},
	}
	lsCmd.Flags().StringVar(&lsOrgID, "org", "", "organization id")
	_ = lsCmd.MarkFlagRequired("org")

	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}
	projectCmd.AddCommand(addCmd, lsCmd)
	return projectCmd
}

func newMemberCmd(opts *rootOptions) *cobra.Command {
	memberCmd := &cobra.Command{
		Use:   "member",
		Short: "Manage project membership",
	}

	addCmd := &cobra.Command{
		Use:   "add <project-id> <user>",
		Short: "Add a user (id or email) to a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				ctx := cmd.Context()
				actor, err := a.actor(ctx)
				if err != nil {
					return err
				}
				userID, err := a.resolveUser(ctx, args[1])
				if err != nil {
					return err
				}
				if err := a.svc.AddMember(ctx, args[0], userID, actor); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Added %s to project %s\n", args[1], args[0])
				return nil
			})
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm <project-id> <user>",
		Short: "Remove a user (id or email) from a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				ctx := cmd.Context()
				actor, err := a.actor(ctx)
				if err != nil {
					return err
				}
				userID, err := a.resolveUser(ctx, args[1])
				if err != nil {
					return err
				}
				if err := a.svc.RemoveMember(ctx, args[0], userID, actor); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Removed %s from project %s\n", args[1], args[0])
				return nil
			})
		},
	}

	lsCmd := &cobra.Command{
		Use:   "ls <project-id>",
		Short: "List project members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				members, err := a.svc.ListMembers(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if opts.json {
					return a.printJSON(httpapi.NewMembersJSON(members))
				}
				if len(members) == 0 {
					fmt.Fprintln(a.out, "No members")
					return nil
				}
				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tEMAIL\tROLE\tADDED")
				for _, m := range members {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.User.ID, m.User.Email, m.Role, m.AddedAt.Format(dateTimeLayout))
				}
				return w.Flush()
			})
		},
	}

	memberCmd.AddCommand(addCmd, rmCmd, lsCmd)
	return memberCmd
}
