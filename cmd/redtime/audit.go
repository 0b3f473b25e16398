package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nhle/redtime/internal/model"
	"github.com/nhle/redtime/internal/store"
	"github.com/nhle/redtime/internal/theme"
)

func newAuditCmd(opts *globalOptions) *cobra.Command {
	var (
		limit      int
		failedOnly bool
		resource   string
	)

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent create, update and delete calls sent to Redmine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := openJournalFromFlags(opts)
			if err != nil {
				return err
			}
			defer journal.Close()

			filter := store.MutationFilter{Limit: limit, FailedOnly: failedOnly}
			if resource != "" {
				filter.Resource = &resource
			}
			mutations, err := journal.RecentMutations(cmd.Context(), filter)
			if err != nil {
				return err
			}
			printMutations(cmd.OutOrStdout(), mutations)
			return nil
		},
	}
	auditCmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of calls to show")
	auditCmd.Flags().BoolVar(&failedOnly, "failed", false, "only show failed calls")
	auditCmd.Flags().StringVar(&resource, "resource", "", "only show time_entries or issues")

	var keep int
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest journal rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := openJournalFromFlags(opts)
			if err != nil {
				return err
			}
			defer journal.Close()

			removed, err := journal.PruneMutations(cmd.Context(), keep)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successLine(fmt.Sprintf("Removed %d journal rows", removed)))
			return nil
		},
	}
	pruneCmd.Flags().IntVar(&keep, "keep", 500, "number of rows to keep")
	auditCmd.AddCommand(pruneCmd)

	return auditCmd
}

func openJournalFromFlags(opts *globalOptions) (*store.SQLiteStore, error) {
	cfg, err := loadSettings(opts)
	if err != nil {
		return nil, err
	}
	journal, err := openJournal(cfg)
	if err != nil {
		return nil, err
	}
	if journal == nil {
		return nil, fmt.Errorf("the audit journal is disabled (audit.path is empty)")
	}
	return journal, nil
}

func printMutations(w io.Writer, mutations []model.Mutation) {
	if len(mutations) == 0 {
		fmt.Fprintln(w, helpLine("No calls recorded."))
		return
	}

	t := newTable("When", "Call", "Status", "Outcome", "Payload")
	for _, m := range mutations {
		call := fmt.Sprintf("%s %s", m.Operation, m.Resource)
		if m.RemoteID != nil {
			call += fmt.Sprintf(" #%d", *m.RemoteID)
		}
		status := "-"
		if m.Status != 0 {
			status = fmt.Sprint(m.Status)
		}
		outcome := m.Outcome()
		detail := m.Payload
		if m.Error != "" {
			detail = m.Error
		}
		t.Row(
			m.CreatedAt.Local().Format("2006-01-02 15:04"),
			call,
			status,
			theme.OutcomeStyle(outcome).Render(outcome),
			truncate(detail, 60),
		)
	}
	fmt.Fprintln(w, t.Render())
}
