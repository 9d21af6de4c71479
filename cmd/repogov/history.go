package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rigdev/repogov/internal/metrics"
	"github.com/rigdev/repogov/internal/storage"
)

const followInterval = 2 * time.Second

func (c *cli) newHistoryCommand() *cobra.Command {
	var repo, status string
	var limit int
	var follow bool
	//nolint:exhaustruct
	cmd := &cobra.Command{
		Use:   "history [proposal-id]",
		Short: "List recorded proposals, or show one with its log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.invoke(func(db *storage.DB) error {
				defer db.Close()
				w := cmd.OutOrStdout()
				if len(args) == 0 {
					records, err := db.ListProposals(storage.ListFilter{
						Repo:   repo,
						Status: storage.Status(status),
						Limit:  limit,
					})
					if err != nil {
						return err
					}
					printHistory(w, records)
					return nil
				}

				rec, err := db.GetProposal(args[0])
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("proposal %q not found", args[0])
				}
				printRecord(w, rec)

				logs, err := db.GetLogs(rec.ID)
				if err != nil {
					return err
				}
				fmt.Fprintln(w)
				printLogs(w, logs)
				if !follow {
					return nil
				}

				var lastID int64
				if len(logs) > 0 {
					lastID = logs[len(logs)-1].ID
				}
				ticker := time.NewTicker(followInterval)
				defer ticker.Stop()
				for rec.Status == storage.StatusRunning {
					select {
					case <-cmd.Context().Done():
						return nil
					case <-ticker.C:
					}
					more, err := db.GetLogsSince(rec.ID, lastID)
					if err != nil {
						return err
					}
					printLogs(w, more)
					if len(more) > 0 {
						lastID = more[len(more)-1].ID
					}
					if rec, err = db.GetProposal(rec.ID); err != nil || rec == nil {
						return err
					}
				}
				fmt.Fprintf(w, "Status: %s\n", rec.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "Only proposals for owner/name")
	cmd.Flags().StringVar(&status, "status", "", "Only proposals with this status (running|open|failed|merged|closed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of proposals")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow the log of a running proposal (polls every 2s)")
	return cmd
}

func printHistory(w io.Writer, records []storage.ProposalRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No proposals recorded.")
		return
	}
	fmt.Fprintf(w, "%-36s %-24s %-8s %-18s %s\n", "ID", "REPOSITORY", "STATUS", "PURPOSE", "CREATED")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, r := range records {
		fmt.Fprintf(w, "%-36s %-24s %-8s %-18s %s\n",
			r.ID,
			truncate(r.Repo, 24),
			r.Status,
			truncate(r.Purpose, 18),
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
}

func printRecord(w io.Writer, r *storage.ProposalRecord) {
	fmt.Fprintf(w, "Proposal: %s\n", r.ID)
	fmt.Fprintf(w, "Repository: %s\n", r.Repo)
	fmt.Fprintf(w, "Status: %s\n", r.Status)
	fmt.Fprintf(w, "Purpose: %s\n", r.Purpose)
	fmt.Fprintf(w, "Path: %s\n", r.Path)
	if r.Summary != "" {
		fmt.Fprintf(w, "Summary: %q\n", r.Summary)
	}
	if r.Branch != "" {
		fmt.Fprintf(w, "Branch: %s\n", r.Branch)
	}
	if r.PRURL != "" {
		fmt.Fprintf(w, "PR: #%d %s\n", r.PRNumber, r.PRURL)
	}
	if r.FailedStep != "" {
		fmt.Fprintf(w, "Failed at: %s\n", r.FailedStep)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", truncateWithSuffix(r.Error, 200, "..."))
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
	fmt.Fprintf(w, "Created: %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"))
	if r.ClosedAt != nil {
		fmt.Fprintf(w, "Closed: %s\n", r.ClosedAt.Format("2006-01-02 15:04:05"))
	}
}

func printLogs(w io.Writer, logs []storage.LogEntry) {
	for _, l := range logs {
		fmt.Fprintf(w, "%s [%s] %s\n", l.Timestamp.Format("15:04:05"), strings.ToUpper(l.Level), l.Message)
	}
}

func (c *cli) newStatsCommand() *cobra.Command {
	var repo string
	//nolint:exhaustruct
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize proposals of the last 30 days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.invoke(func(db *storage.DB) error {
				defer db.Close()
				now := utcNow()
				records, err := db.ListProposals(storage.ListFilter{
					Repo:  repo,
					Since: now.Add(-metrics.Window),
				})
				if err != nil {
					return err
				}
				printStats(cmd.OutOrStdout(), metrics.Calculate(records, now))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "Only proposals for owner/name")
	return cmd
}

func printStats(w io.Writer, s metrics.ProposalStats) {
	fmt.Fprintf(w, "Proposals: %d (running %d, open %d, merged %d, closed %d, failed %d)\n",
		s.Total, s.Running, s.Open, s.Merged, s.Closed, s.Failed)
	fmt.Fprintf(w, "Success rate: %.1f%%\n", s.SuccessRate)
	fmt.Fprintf(w, "Mean time to PR: %s\n", s.MeanTimeToPR.Round(time.Second))
	fmt.Fprintf(w, "Mean time to merge: %s\n", s.MeanTimeToMerge.Round(time.Second))
	if len(s.FailuresByStep) == 0 {
		return
	}
	steps := make([]string, 0, len(s.FailuresByStep))
	for step := range s.FailuresByStep {
		steps = append(steps, step)
	}
	sort.Strings(steps)
	fmt.Fprintln(w, "Failures by step:")
	for _, step := range steps {
		fmt.Fprintf(w, "  %-16s %d\n", step, s.FailuresByStep[step])
	}
}
