package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "wikictl",
		Short:         "Operator tasks for LoreWiki",
		SilenceUsage:  true,
	}

	root.AddCommand(
		newPromoteAdminCmd(open),
		newSyncUsersCmd(open),
		newResetViewCountsCmd(open),
	)
	return root
}

func newPromoteAdminCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "promote-admin <email>",
		Short: "Grant the Admin role to the account with the given email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			user, err := op.PromoteAdmin(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to promote %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully promoted %s (%s) to %s\n", user.Email, user.ID, user.Role)
			return nil
		},
	}
}

func newSyncUsersCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-users",
		Short: "Remove profiles whose account no longer exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			op, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			removed, err := op.Reconcile(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d orphaned profiles\n", removed)
			if err != nil {
				return fmt.Errorf("sync stopped early: %w", err)
			}
			return nil
		},
	}
}

func newResetViewCountsCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-view-counts",
		Short: "Set every page's view count to zero",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			op, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := op.ResetAllViewCounts(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to reset view counts: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset view counts on %d pages\n", n)
			return nil
		},
	}
}
