// Package notify announces proposal outcomes to chat webhooks.
package notify

import (
	"context"
	"fmt"

	"github.com/rigdev/repogov/internal/storage"
)

// Notifier defines the interface for sending notifications.
type Notifier interface {
	// Notify sends a notification message.
	Notify(ctx context.Context, message string) error
}

// Message formats the announcement for a finished proposal record.
func Message(rec *storage.ProposalRecord) string {
	switch rec.Status {
	case storage.StatusOpen:
		return fmt.Sprintf("[repogov] %s: opened pull request #%d %s (%s)", rec.Repo, rec.PRNumber, rec.PRURL, rec.Summary)
	case storage.StatusFailed:
		msg := fmt.Sprintf("[repogov] %s: %s of %s failed", rec.Repo, rec.Purpose, rec.Path)
		if rec.FailedStep != "" {
			msg += " at " + rec.FailedStep
		}
		if rec.Branch != "" {
			msg += fmt.Sprintf(", branch %s left on host", rec.Branch)
		}
		return msg
	default:
		return fmt.Sprintf("[repogov] %s: proposal %s is %s", rec.Repo, rec.ID, rec.Status)
	}
}
