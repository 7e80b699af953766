package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/balkanpress/rassegna/internal/output"
	"github.com/balkanpress/rassegna/internal/store"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <article-id> <status>",
		Short: "Update an article's workflow status",
		Long: `Update an article's editorial workflow status. Valid statuses:
pending, approved, discarded, sent.

Example:
  rassegna status danas-20250310-17 approved`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			id, status := args[0], strings.ToLower(args[1])

			if !store.ValidStatus(status) {
				return fmt.Errorf("unknown status %q (valid: pending, approved, discarded, sent)", status)
			}

			stack, err := buildStack(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = stack.Close() }()

			if err := stack.Articles.SetStatus(cmd.Context(), id, status); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("article %q not found", id)
				}
				return fmt.Errorf("update status: %w", err)
			}

			out.Successf("%s → %s", id, status)
			return nil
		},
	}
	return cmd
}
