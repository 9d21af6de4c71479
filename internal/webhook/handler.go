// Package webhook receives GitHub pull request events and moves recorded
// proposals to merged or closed.
package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v60/github"
	logger "github.com/sirupsen/logrus"

	"github.com/rigdev/repogov/internal/storage"
)

// Store is the part of the history store the webhook updates.
type Store interface {
	FindByBranch(repo, branch string) (*storage.ProposalRecord, error)
	SaveProposal(p *storage.ProposalRecord) error
	AppendLog(proposalID string, at time.Time, level, message string) error
}

// Handler processes incoming GitHub webhook events.
type Handler struct {
	secret string
	store  Store
	clock  func() time.Time
	log    logger.FieldLogger
}

// NewHandler creates a new webhook Handler.
func NewHandler(secret string, store Store, log logger.FieldLogger) *Handler {
	if log == nil {
		log = logger.StandardLogger()
	}
	return &Handler{secret: secret, store: store, clock: time.Now, log: log}
}

// HandleWebhook is the HTTP handler for POST /webhook.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		h.log.Warn("[webhook] no webhook secret configured, rejecting request")
		http.Error(w, "webhook secret not configured", http.StatusUnauthorized)
		return
	}

	payload, err := github.ValidatePayload(r, []byte(h.secret))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.log.Debugf("[webhook] rejected payload: %v", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	eventType := github.WebHookType(r)
	switch eventType {
	case "":
		http.Error(w, "missing event type", http.StatusBadRequest)
		return
	case "ping", "pull_request":
	default:
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "event %s ignored", eventType)
		return
	}

	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		h.log.Warnf("[webhook] failed to parse %s event: %v", eventType, err)
		http.Error(w, "failed to parse event", http.StatusBadRequest)
		return
	}

	switch e := event.(type) {
	case *github.PingEvent:
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "pong")
	case *github.PullRequestEvent:
		h.handlePullRequest(w, e)
	default:
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "event %s ignored", eventType)
	}
}

func (h *Handler) handlePullRequest(w http.ResponseWriter, e *github.PullRequestEvent) {
	action := e.GetAction()
	if action != "closed" {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "pull_request.%s ignored", action)
		return
	}

	pr := e.GetPullRequest()
	repo := e.GetRepo().GetFullName()
	branch := pr.GetHead().GetRef()

	rec, err := h.store.FindByBranch(repo, branch)
	if err != nil {
		h.log.Errorf("[webhook] find proposal %s@%s: %v", repo, branch, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "no proposal for %s@%s", repo, branch)
		return
	}

	status := storage.StatusClosed
	closedAt := pr.GetClosedAt().Time
	if pr.GetMerged() {
		status = storage.StatusMerged
		if merged := pr.GetMergedAt().Time; !merged.IsZero() {
			closedAt = merged
		}
	}
	if closedAt.IsZero() {
		closedAt = h.clock()
	}
	closedAt = closedAt.UTC()

	rec.Status = status
	rec.ClosedAt = &closedAt
	if err := h.store.SaveProposal(rec); err != nil {
		h.log.Errorf("[webhook] save proposal %s: %v", rec.ID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	msg := fmt.Sprintf("pull request #%d %s", pr.GetNumber(), status)
	if err := h.store.AppendLog(rec.ID, closedAt, "info", msg); err != nil {
		h.log.Warnf("[webhook] append log %s: %v", rec.ID, err)
	}

	h.log.Infof("[webhook] %s: proposal %s %s", repo, rec.ID, status)
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, "proposal %s %s", rec.ID, status)
}
