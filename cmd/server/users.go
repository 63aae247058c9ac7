package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jarvis/MissionControl/api/internal/auth"
	"github.com/jarvis/MissionControl/api/internal/db"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// userOutput is what `users create` prints; the token is shown only here
type userOutput struct {
	UserID        string     `json:"userId" yaml:"userId"`
	Email         string     `json:"email" yaml:"email"`
	WorkspaceID   string     `json:"workspaceId" yaml:"workspaceId"`
	MonthlyBudget float64    `json:"monthlyBudget" yaml:"monthlyBudget"`
	UserToken     string     `json:"userToken" yaml:"userToken"`
	IssuedAt      *time.Time `json:"issuedAt,omitempty" yaml:"issuedAt,omitempty"`
}

func newUserOutput(user *db.User, token string) userOutput {
	return userOutput{
		UserID:        user.ID.String(),
		Email:         user.Email,
		WorkspaceID:   user.WorkspaceID.String(),
		MonthlyBudget: user.MonthlyBudget,
		UserToken:     token,
		IssuedAt:      user.APITokenIssuedAt,
	}
}

func newUsersCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage operators",
	}
	cmd.AddCommand(newUsersCreateCmd(opts))
	return cmd
}

func newUsersCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		email  string
		budget float64
		output string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an operator in a new workspace and print a fresh token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "json" && output != "yaml" {
				return fmt.Errorf("unsupported output format %q (json|yaml)", output)
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("budget") {
				budget = cfg.Spend.DefaultMonthlyBudget
			}

			logger := cliLogger(cfg)
			conn, store, err := connect(cmd.Context(), cfg, logger, false)
			if err != nil {
				return err
			}
			defer conn.Close()

			user, token, err := auth.NewRegistry(store, logger).CreateUser(cmd.Context(), email, budget)
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), output, newUserOutput(user, token))
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Operator email")
	cmd.Flags().Float64Var(&budget, "budget", 0, "Monthly budget (defaults to DEFAULT_MONTHLY_BUDGET)")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format (json|yaml)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func printOutput(w io.Writer, format string, v interface{}) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}
