package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/redtime/internal/crossref"
	"github.com/nhle/redtime/internal/redmine"
	"github.com/nhle/redtime/internal/theme"
)

func newAssignedCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "assigned",
		Short: "List open issues assigned to you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			var issues []*redmine.Issue
			err = a.run(cmd.Context(), "Loading assigned issues", func(ctx context.Context) (err error) {
				issues, err = a.rm.AssignedIssues(ctx)
				return err
			})
			if err != nil {
				return err
			}

			printIssues(a.out, issues)
			return nil
		},
	}
}

func printIssues(w io.Writer, issues []*redmine.Issue) {
	if len(issues) == 0 {
		fmt.Fprintln(w, helpLine("No open issues assigned to you."))
		return
	}

	t := newTable("Issue", "Project", "Subject", "Estimated", "Done")
	for _, issue := range issues {
		t.Row(
			fmt.Sprintf("#%d", issue.ID),
			issue.Project,
			truncate(issue.Subject, 56),
			formatEstimated(issue),
			formatRealization(issue.Realization()),
		)
	}
	fmt.Fprintln(w, t.Render())
}

func newIssueCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "issue <id>",
		Short: "Show an issue with its spent time and notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			var issue *redmine.Issue
			err = a.run(cmd.Context(), fmt.Sprintf("Loading #%d", id), func(ctx context.Context) (err error) {
				issue, err = loadIssueWithExtra(ctx, a.rm, id)
				return err
			})
			if err != nil {
				return err
			}

			printIssue(a.out, issue)
			return nil
		},
	}
}

func loadIssueWithExtra(ctx context.Context, rm *redmine.Redmine, id int) (*redmine.Issue, error) {
	issue, err := findIssue(ctx, rm, id)
	if err != nil {
		return nil, err
	}
	if _, err := rm.DownloadExtra(ctx, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

func printIssue(w io.Writer, issue *redmine.Issue) {
	fmt.Fprintln(w, theme.HeaderStyle.Render(issue.String()))

	var b strings.Builder
	fmt.Fprintf(&b, "Project    %s\n", issue.Project)
	fmt.Fprintf(&b, "Estimated  %s\n", formatEstimated(issue))
	spent := "-"
	if h, ok := issue.Spent(); ok {
		spent = redmine.FormatHours(h)
	}
	if p, ok := issue.SpentRealization(); ok {
		spent += fmt.Sprintf(" (%d%% of estimate)", p)
	}
	fmt.Fprintf(&b, "Spent      %s\n", spent)
	fmt.Fprintf(&b, "Done       %s", formatRealization(issue.Realization()))
	fmt.Fprintln(w, theme.BorderStyle.Padding(0, 1).Render(b.String()))

	if desc := strings.TrimSpace(issue.Description); desc != "" {
		fmt.Fprintln(w, desc)
	}
	for _, note := range issue.Journals {
		fmt.Fprintln(w, helpLine("> "+truncate(note, 120)))
	}

	texts := append([]string{issue.Description}, issue.Journals...)
	if refs := crossref.MatchCrossRefs(issue.ID, texts, nil); len(refs) > 0 {
		names := make([]string, len(refs))
		for i, id := range refs {
			names[i] = fmt.Sprintf("#%d", id)
		}
		fmt.Fprintf(w, "Related    %s\n", strings.Join(names, ", "))
	}
}

func newEstimateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "estimate <issue> <delta>",
		Short: "Raise or lower an issue's estimated hours",
		Long: `Add delta hours to the estimate (e.g. +2, -1h30). Lowering the estimate
to zero clears it. An issue without an estimate starts from zero.
Put -- before a negative delta: redtime estimate 42 -- -1h30`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			delta, err := parseHours(args[1])
			if err != nil {
				return err
			}

			return updateIssue(cmd, opts, id, func(ctx context.Context, rm *redmine.Redmine, issue *redmine.Issue) error {
				if _, tracked := issue.Estimated(); !tracked && delta > 0 {
					issue.AddEstimated(delta)
				}
				issue.AddEstimated(delta)
				return nil
			})
		},
	}
}

func newDoneCmd(opts *globalOptions) *cobra.Command {
	var syncRatio bool

	cmd := &cobra.Command{
		Use:   "done <issue> [delta]",
		Short: "Adjust an issue's done ratio",
		Long: `Add delta percent to the done ratio (e.g. +10, -20), clamped to 0-100.
With --sync the ratio is set from spent over estimated hours instead.
Put -- before a negative delta: redtime done 42 -- -10`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var delta int
			switch {
			case syncRatio && len(args) == 2:
				return fmt.Errorf("pass either a delta or --sync")
			case !syncRatio && len(args) != 2:
				return fmt.Errorf("a delta is required without --sync")
			case !syncRatio:
				delta, err = strconv.Atoi(strings.TrimSuffix(args[1], "%"))
				if err != nil {
					return fmt.Errorf("invalid percent %q", args[1])
				}
			}

			return updateIssue(cmd, opts, id, func(ctx context.Context, rm *redmine.Redmine, issue *redmine.Issue) error {
				if !syncRatio {
					issue.AddRealization(delta)
					return nil
				}
				if _, err := rm.DownloadExtra(ctx, issue); err != nil {
					return err
				}
				if _, ok := issue.SpentRealization(); !ok {
					return fmt.Errorf("issue #%d has no estimate to sync against", issue.ID)
				}
				issue.SyncRealization()
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&syncRatio, "sync", false, "set the ratio from spent/estimated hours")
	return cmd
}

// updateIssue loads one issue, applies edit and uploads the change in a
// single worker operation.
func updateIssue(cmd *cobra.Command, opts *globalOptions, id int,
	edit func(ctx context.Context, rm *redmine.Redmine, issue *redmine.Issue) error) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.close()

	var issue *redmine.Issue
	err = a.run(cmd.Context(), fmt.Sprintf("Updating #%d", id), func(ctx context.Context) (err error) {
		issue, err = findIssue(ctx, a.rm, id)
		if err != nil {
			return err
		}
		if err := edit(ctx, a.rm, issue); err != nil {
			return err
		}
		if !issue.RequiresUpload() {
			return nil
		}
		return a.upload(ctx)
	})
	if err != nil {
		return err
	}

	a.summary(fmt.Sprintf("#%d: estimated %s, done %d%%", issue.ID, formatEstimated(issue), issue.Realization()))
	return nil
}
