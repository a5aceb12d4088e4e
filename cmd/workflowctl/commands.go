package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"commissionflow/internal/domain/auth"
	"commissionflow/internal/domain/workflow"
	"commissionflow/internal/platform/db"
)

func newPolicyCommand() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Print the transition table, or what one role may do per state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if role == "" {
				return printRules(out)
			}
			r, err := workflow.NormalizeRole(role, false)
			if err != nil {
				return err
			}
			return printRoleView(out, r)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "show permitted actions for this role")
	return cmd
}

func printRules(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tACTION\tTO\tROLES")
	for _, rule := range workflow.Rules() {
		roles := make([]string, 0, len(rule.Roles))
		for _, r := range rule.Roles {
			roles = append(roles, string(r))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rule.From, rule.Action, rule.To, strings.Join(roles, ","))
	}
	return tw.Flush()
}

func printRoleView(out io.Writer, role workflow.Role) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tACTIONS\tNOTE")
	for _, s := range workflow.States() {
		labels := workflow.AvailableActionLabels(role, s)
		names := make([]string, 0, len(labels))
		for _, l := range labels {
			names = append(names, fmt.Sprintf("%s (%s)", l.Label, l.Action))
		}
		note := ""
		if len(names) == 0 {
			note = workflow.StatusNote(role, s)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s, strings.Join(names, ", "), note)
	}
	fmt.Fprintf(tw, "\ndashboard: %s\n", workflow.DashboardPath(role))
	return tw.Flush()
}

func newCheckCommand() *cobra.Command {
	var role, state, action, reason, id string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate a transition without contacting the backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := workflow.NormalizeRole(role, false)
			if err != nil {
				return err
			}
			s, err := workflow.ParseState(state)
			if err != nil {
				return err
			}
			a, err := workflow.ParseAction(action)
			if err != nil {
				return err
			}
			desc, err := workflow.RequestTransition(workflow.CommissionRef{ID: id, State: s}, r, a, reason)
			if err != nil {
				var rejection *workflow.Rejection
				if errors.As(err, &rejection) {
					fmt.Fprintf(cmd.OutOrStdout(), "rejected (%s): %s\n", rejection.Kind, rejection.Message)
				}
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(desc)
		},
	}
	cmd.Flags().StringVar(&id, "id", "local", "commission id to put on the descriptor")
	cmd.Flags().StringVar(&role, "role", "", "acting role")
	cmd.Flags().StringVar(&state, "state", "", "current commission state")
	cmd.Flags().StringVar(&action, "action", "", "requested action")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("state")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func newStepsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "steps STATUS",
		Short: "Render the progress indicator for a status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := workflow.StepsForStatus(args[0])
			if err != nil {
				return err
			}
			for _, step := range steps {
				marker := " "
				switch {
				case step.Rejected:
					marker = "x"
				case step.Current:
					marker = ">"
				case step.Completed:
					marker = "v"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", marker, step.Label)
			}
			return nil
		},
	}
}

func newTokenCommand() *cobra.Command {
	var userID, username, role, secret string
	var isManager bool
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return errors.New("a signing secret is required: pass --secret or set JWT_SECRET")
			}
			if _, err := workflow.NormalizeRole(role, isManager); err != nil {
				return err
			}
			token, err := auth.GenerateToken(secret, auth.Claims{UserID: userID, Username: username, Role: role, IsManager: isManager}, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "dev-user", "user id claim")
	cmd.Flags().StringVar(&username, "username", "", "username claim")
	cmd.Flags().StringVar(&role, "role", "", "role claim")
	cmd.Flags().BoolVar(&isManager, "manager", false, "set the legacy is_manager flag")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 secret (defaults to JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	var databaseURL string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the decision audit schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dryRun {
				versions, err := db.Pending(db.Migrations())
				if err != nil {
					return err
				}
				for _, v := range versions {
					fmt.Fprintln(cmd.OutOrStdout(), v)
				}
				return nil
			}
			if databaseURL == "" {
				databaseURL = os.Getenv("DATABASE_URL")
			}
			if databaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			pool, err := db.Connect(cmd.Context(), databaseURL)
			if err != nil {
				return fmt.Errorf("db connect failed: %w", err)
			}
			defer pool.Close()
			if err := db.Migrate(cmd.Context(), pool, db.Migrations()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres URL (defaults to DATABASE_URL)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list bundled migrations without connecting")
	return cmd
}
