package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/redtime/internal/model"
	"github.com/nhle/redtime/internal/redmine"
)

type editOptions struct {
	hours   string
	comment string
	issue   string
	moveTo  string
}

func newEditCmd(opts *globalOptions) *cobra.Command {
	var eo editOptions

	cmd := &cobra.Command{
		Use:   "edit <YYYY-MM-DD> <entry>",
		Short: "Change or delete a logged time entry",
		Long: `Change the hours, comment, issue or day of a time entry logged on the
given day. Setting the hours to 0 deletes the entry.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDayArg(args[0], time.Now())
			if err != nil {
				return err
			}
			entryID, err := parseID(args[1])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("hours") && !cmd.Flags().Changed("comment") &&
				eo.issue == "" && eo.moveTo == "" {
				return fmt.Errorf("nothing to change: pass --hours, --comment, --issue or --move-to")
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			var action redmine.Action
			err = a.run(cmd.Context(), fmt.Sprintf("Updating #%d", entryID), func(ctx context.Context) error {
				if _, err := a.rm.DownloadEntriesFromMonth(ctx, model.MonthOf(day)); err != nil {
					return err
				}
				entry, err := findEntry(a.rm, day, entryID)
				if err != nil {
					return err
				}
				if err := applyEdit(ctx, a.rm, entry, cmd.Flags().Changed("comment"), eo); err != nil {
					return err
				}
				action = entry.Action()
				return a.upload(ctx)
			})
			if err != nil {
				return err
			}

			switch action {
			case redmine.ActionNone:
				fmt.Fprintln(a.out, helpLine("No changes"))
			case redmine.ActionDelete:
				a.summary(fmt.Sprintf("Deleted #%d", entryID))
			default:
				a.summary(fmt.Sprintf("Updated #%d", entryID))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&eo.hours, "hours", "", "new hours (0 deletes the entry)")
	cmd.Flags().StringVarP(&eo.comment, "comment", "m", "", "new comment")
	cmd.Flags().StringVar(&eo.issue, "issue", "", "move the entry to another issue")
	cmd.Flags().StringVar(&eo.moveTo, "move-to", "", "move the entry to another day (YYYY-MM-DD)")
	return cmd
}

func findEntry(rm *redmine.Redmine, day time.Time, id int) (*redmine.TimeEntry, error) {
	entries, ok := rm.EntriesForDate(day)
	if !ok {
		return nil, fmt.Errorf("%s is not loaded", day.Format(model.DateLayout))
	}
	for _, e := range entries {
		if eid, ok := e.ID(); ok && eid == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no time entry #%d on %s", id, day.Format(model.DateLayout))
}

func applyEdit(ctx context.Context, rm *redmine.Redmine, e *redmine.TimeEntry, commentSet bool, eo editOptions) error {
	if eo.issue != "" {
		id, err := parseID(eo.issue)
		if err != nil {
			return err
		}
		issue, err := findIssue(ctx, rm, id)
		if err != nil {
			return err
		}
		e.SetIssue(issue)
	}
	if eo.moveTo != "" {
		day, err := model.ParseDay(eo.moveTo)
		if err != nil {
			return err
		}
		e.SetSpentOn(day)
	}
	if commentSet {
		e.SetComment(eo.comment)
	}
	if eo.hours != "" {
		hours, err := parseHours(eo.hours)
		if err != nil {
			return err
		}
		if hours < 0 {
			return fmt.Errorf("hours cannot be negative")
		}
		e.ChangeSpent(hours)
	}
	return nil
}
