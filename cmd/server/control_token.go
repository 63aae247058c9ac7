package main

import (
	"fmt"
	"time"

	"github.com/jarvis/MissionControl/api/internal/auth"
	"github.com/spf13/cobra"
)

func newControlTokenCmd(opts *rootOptions) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "control-token",
		Short: "Mint a control-plane token for provisioning calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			cp, err := auth.NewControlPlane(cfg.Auth.ControlPlaneSecret, cfg.Auth.ControlPlaneTokenTTL)
			if err != nil {
				return fmt.Errorf("CONTROL_PLANE_SECRET must be set: %w", err)
			}
			token, err := cp.GenerateToken(ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to CONTROL_PLANE_TOKEN_TTL)")
	return cmd
}
