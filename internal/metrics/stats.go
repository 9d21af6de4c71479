// Package metrics summarizes the proposal history.
package metrics

import (
	"time"

	"github.com/rigdev/repogov/internal/storage"
)

// Window is the period Calculate looks back over.
const Window = 30 * 24 * time.Hour

// ProposalStats summarizes proposal runs created within Window.
type ProposalStats struct {
	Total           int            `json:"total"`
	Running         int            `json:"running"`
	Open            int            `json:"open"`
	Merged          int            `json:"merged"`
	Closed          int            `json:"closed"`
	Failed          int            `json:"failed"`
	SuccessRate     float64        `json:"success_rate"` // percent of finished runs that opened a pull request
	FailuresByStep  map[string]int `json:"failures_by_step"`
	MeanTimeToPR    time.Duration  `json:"mean_time_to_pr"`
	MeanTimeToMerge time.Duration  `json:"mean_time_to_merge"`
}

// Calculate computes ProposalStats for the records created in the Window
// before now.
func Calculate(records []storage.ProposalRecord, now time.Time) ProposalStats {
	since := now.Add(-Window)
	stats := ProposalStats{FailuresByStep: map[string]int{}}

	var (
		toPR, toMerge     time.Duration
		withPR, withMerge int
	)
	for _, rec := range records {
		if rec.CreatedAt.Before(since) {
			continue
		}
		stats.Total++

		switch rec.Status {
		case storage.StatusRunning:
			stats.Running++
			continue
		case storage.StatusFailed:
			stats.Failed++
			step := rec.FailedStep
			if step == "" {
				step = "unknown"
			}
			stats.FailuresByStep[step]++
			continue
		case storage.StatusOpen:
			stats.Open++
		case storage.StatusMerged:
			stats.Merged++
			if rec.ClosedAt != nil {
				toMerge += rec.ClosedAt.Sub(rec.CreatedAt)
				withMerge++
			}
		case storage.StatusClosed:
			stats.Closed++
		}

		if rec.CompletedAt != nil {
			toPR += rec.CompletedAt.Sub(rec.CreatedAt)
			withPR++
		}
	}

	opened := stats.Open + stats.Merged + stats.Closed
	if finished := opened + stats.Failed; finished > 0 {
		stats.SuccessRate = float64(opened) / float64(finished) * 100.0
	}
	if withPR > 0 {
		stats.MeanTimeToPR = toPR / time.Duration(withPR)
	}
	if withMerge > 0 {
		stats.MeanTimeToMerge = toMerge / time.Duration(withMerge)
	}
	return stats
}
