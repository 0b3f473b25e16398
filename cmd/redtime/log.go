package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/redtime/internal/model"
	"github.com/nhle/redtime/internal/redmine"
)

func newLogCmd(opts *globalOptions) *cobra.Command {
	var (
		dateArg string
		comment string
	)

	cmd := &cobra.Command{
		Use:   "log <issue> <hours>",
		Short: "Log time on an issue",
		Long: `Log time on an issue and upload it right away. Hours are decimal (1.5)
or hour-minute notation (1h30). An empty draft already on the same
issue and day is reused.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			issueID, err := parseID(args[0])
			if err != nil {
				return err
			}
			hours, err := parseHours(args[1])
			if err != nil {
				return err
			}
			if hours <= 0 {
				return fmt.Errorf("hours must be positive, got %s", args[1])
			}
			day, err := parseDayArg(dateArg, time.Now())
			if err != nil {
				return err
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			var entry *redmine.TimeEntry
			label := fmt.Sprintf("Logging %s on #%d", redmine.FormatHours(hours), issueID)
			err = a.run(cmd.Context(), label, func(ctx context.Context) error {
				if _, err := a.rm.DownloadEntriesFromMonth(ctx, model.MonthOf(day)); err != nil {
					return err
				}
				issue, err := findIssue(ctx, a.rm, issueID)
				if err != nil {
					return err
				}
				entry = a.rm.CreateTimeEntry(issue, day, hours, comment)
				return a.upload(ctx)
			})
			if err != nil {
				return err
			}

			a.summary("Logged " + entry.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&dateArg, "date", "", "day to log on (YYYY-MM-DD, today, yesterday)")
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "time entry comment")
	return cmd
}

// findIssue returns the cached issue or downloads it.
func findIssue(ctx context.Context, rm *redmine.Redmine, id int) (*redmine.Issue, error) {
	if issue, ok := rm.Issue(id); ok {
		return issue, nil
	}
	if _, err := rm.DownloadIssues(ctx, []int{id}); err != nil {
		return nil, err
	}
	issue, ok := rm.Issue(id)
	if !ok {
		return nil, fmt.Errorf("issue #%d not found or not visible", id)
	}
	return issue, nil
}
