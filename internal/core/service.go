// Package core is the caller side of the proposal workflow. It applies the
// change policies, records every run in the history store and builds the
// governance artifacts that become proposals.
package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/rigdev/repogov/internal/artifact"
	"github.com/rigdev/repogov/internal/codec"
	"github.com/rigdev/repogov/internal/codehost"
	"github.com/rigdev/repogov/internal/config"
	"github.com/rigdev/repogov/internal/notify"
	"github.com/rigdev/repogov/internal/policy"
	"github.com/rigdev/repogov/internal/proposal"
	"github.com/rigdev/repogov/internal/storage"
)

// Store keeps the history of proposal runs.
type Store interface {
	SaveProposal(p *storage.ProposalRecord) error
	AppendLog(proposalID string, at time.Time, level, message string) error
}

// Options configure a Service.
type Options struct {
	Workflow      *proposal.Workflow
	Factory       codehost.Factory
	Store         Store // optional; runs are not recorded when nil
	Policies      []config.PolicyConfig
	Collaborator  config.CollaboratorConfig
	GitignorePath string
	Notifier      notify.Notifier // optional
	Clock         func() time.Time
	Log           logger.FieldLogger
}

// Service proposes changes on behalf of the CLI, the API and the TUI.
type Service struct {
	workflow      *proposal.Workflow
	factory       codehost.Factory
	store         Store
	policies      []config.PolicyConfig
	collab        config.CollaboratorConfig
	gitignorePath string
	notifier      notify.Notifier
	clock         func() time.Time
	log           logger.FieldLogger
}

// NewService creates a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Workflow == nil {
		return nil, errors.New("core service requires a proposal workflow")
	}
	if opts.Factory == nil {
		return nil, errors.New("core service requires a host client factory")
	}
	s := &Service{
		workflow:      opts.Workflow,
		factory:       opts.Factory,
		store:         opts.Store,
		policies:      opts.Policies,
		collab:        opts.Collaborator,
		gitignorePath: opts.GitignorePath,
		notifier:      opts.Notifier,
		clock:         opts.Clock,
		log:           opts.Log,
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.log == nil {
		s.log = logger.StandardLogger()
	}
	if s.gitignorePath == "" {
		s.gitignorePath = config.DefaultGitignorePath
	}
	if s.collab.Directory == "" {
		s.collab.Directory = config.DefaultCollaboratorDir
	}
	if s.collab.Repository == "" {
		s.collab.Repository = config.DefaultCollaboratorRepo
	}
	if s.collab.DefaultPermission == "" {
		s.collab.DefaultPermission = config.DefaultCollaboratorPerm
	}
	return s, nil
}

// Outcome is a successful proposal together with its history record.
type Outcome struct {
	Record   *storage.ProposalRecord  `json:"record"`
	Result   *proposal.Result         `json:"result"`
	Warnings []policy.PolicyViolation `json:"warnings,omitempty"`
}

// Propose checks change against the configured policies, then runs the
// workflow and records the run. Blocking violations return a *PolicyError
// before anything is recorded or sent to the host. Workflow failures are
// returned unchanged as *proposal.Error.
func (s *Service) Propose(ctx context.Context, cred codehost.Credential, repo proposal.RepositoryRef, change proposal.ProposedChange) (*Outcome, error) {
	violations := policy.Evaluate(s.policies, policy.Change{
		Repo:    repo.String(),
		Purpose: change.Purpose,
		Path:    change.Path,
		Size:    len(change.Content),
	})
	if blocking := policy.Blocking(violations); len(blocking) > 0 {
		s.log.Warnf("[core] %s: %s blocked by %d policies", repo, change.Path, len(blocking))
		return nil, &PolicyError{Violations: blocking}
	}

	rec := storage.NewProposalRecord(repo.String(), change.Purpose, change.Path, change.Summary, s.clock())
	for _, v := range violations {
		s.log.Warnf("[core] %s: policy %s: %s", repo, v.Name, v.Message)
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("%s: %s", v.Name, v.Message))
	}
	if s.store != nil {
		if err := s.store.SaveProposal(rec); err != nil {
			return nil, fmt.Errorf("record proposal: %w", err)
		}
	}

	res, err := s.workflow.Propose(ctx, cred, repo, change)
	s.finish(rec, res, err)
	s.announce(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &Outcome{Record: rec, Result: res, Warnings: violations}, nil
}

// finish copies the run's outcome into rec and persists it with the phase
// trace. Store failures are logged; the pull request exists regardless.
func (s *Service) finish(rec *storage.ProposalRecord, res *proposal.Result, runErr error) {
	now := s.clock().UTC()
	rec.CompletedAt = &now

	var events []proposal.Event
	if runErr != nil {
		rec.Status = storage.StatusFailed
		rec.Phase = string(proposal.PhaseFailed)
		rec.Error = runErr.Error()
		var perr *proposal.Error
		if errors.As(runErr, &perr) {
			rec.FailedStep = string(perr.Step)
			rec.Branch = perr.Branch
			events = perr.Events
		}
	} else {
		rec.Status = storage.StatusOpen
		rec.Phase = string(res.Phase)
		rec.Branch = res.Branch.Name
		rec.BaseSHA = res.Branch.BaseSHA
		rec.Mode = string(res.Revision.Mode)
		rec.CommitSHA = res.Commit.SHA
		rec.PRNumber = res.PullRequest.Number
		rec.PRURL = res.PullRequest.URL
		events = res.Events
	}

	if s.store == nil {
		return
	}
	if err := s.store.SaveProposal(rec); err != nil {
		s.log.Errorf("[core] save proposal %s: %v", rec.ID, err)
		return
	}
	for _, ev := range events {
		level := "info"
		if ev.Phase == proposal.PhaseFailed {
			level = "error"
		}
		if err := s.store.AppendLog(rec.ID, ev.At, level, fmt.Sprintf("%s: %s", ev.Step, ev.Message)); err != nil {
			s.log.Errorf("[core] append log %s: %v", rec.ID, err)
			return
		}
	}
}

// announce sends the outcome of rec to the notifier. Delivery failures
// are logged only.
func (s *Service) announce(ctx context.Context, rec *storage.ProposalRecord) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), notify.Message(rec)); err != nil {
		s.log.Warnf("[core] notify %s: %v", rec.ID, err)
	}
}

// File is a decoded file read from a repository.
type File struct {
	Repo    string `json:"repo"`
	Path    string `json:"path"`
	Ref     string `json:"ref"`
	SHA     string `json:"sha"`
	Content string `json:"content"`
}

// ReadFile returns the decoded content of path at ref. An empty ref reads
// the default branch. A missing file is codehost.ErrNotFound.
func (s *Service) ReadFile(ctx context.Context, cred codehost.Credential, repo proposal.RepositoryRef, path, ref string) (*File, error) {
	client, err := s.factory(cred)
	if err != nil {
		return nil, fmt.Errorf("create host client: %w", err)
	}
	content, sha, ref, err := s.read(ctx, client, repo, path, ref)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, codehost.NewHostError("get content", http.StatusNotFound, nil,
			fmt.Errorf("%s not found at %s", path, ref))
	}
	return &File{Repo: repo.String(), Path: path, Ref: ref, SHA: sha, Content: string(content)}, nil
}

// read fetches and decodes path. A missing file yields nil content and no
// error. The resolved ref is returned.
func (s *Service) read(ctx context.Context, client codehost.Client, repo proposal.RepositoryRef, path, ref string) ([]byte, string, string, error) {
	if ref == "" {
		meta, err := client.GetRepository(ctx, repo.Owner, repo.Name)
		if err != nil {
			return nil, "", "", fmt.Errorf("get repository %s: %w", repo, err)
		}
		ref = meta.DefaultBranch
	}
	fc, err := client.GetFileContent(ctx, repo.Owner, repo.Name, path, ref)
	if err != nil {
		return nil, "", ref, fmt.Errorf("get %s: %w", path, err)
	}
	if !fc.Found {
		return nil, "", ref, nil
	}
	content, err := codec.Decode(fc.Encoded)
	if err != nil {
		return nil, "", ref, fmt.Errorf("decode %s: %w", path, err)
	}
	return content, fc.SHA, ref, nil
}

// ProposeCollaborator proposes a Terraform declaration granting c access.
// Empty Permission and Repository take the configured defaults. If the
// same declaration already exists on the default branch ErrNoChange is
// returned.
func (s *Service) ProposeCollaborator(ctx context.Context, cred codehost.Credential, repo proposal.RepositoryRef, c artifact.Collaborator) (*Outcome, error) {
	if c.Permission == "" {
		c.Permission = s.collab.DefaultPermission
	}
	if c.Repository == "" {
		c.Repository = s.collab.Repository
	}
	content, err := artifact.RenderCollaborator(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", proposal.ErrInvalidChange, err)
	}

	target := artifact.CollaboratorPath(s.collab.Directory, c.Username)
	client, err := s.factory(cred)
	if err != nil {
		return nil, fmt.Errorf("create host client: %w", err)
	}
	existing, _, _, err := s.read(ctx, client, repo, target, "")
	if err != nil {
		return nil, err
	}
	if existing != nil {
		declared, err := artifact.ParseCollaborators(existing, target)
		if err != nil {
			s.log.Warnf("[core] %s: replacing unreadable %s: %v", repo, target, err)
		}
		for _, d := range declared {
			if d == c {
				return nil, fmt.Errorf("%w: %s already has %s on %s", ErrNoChange, c.Username, c.Permission, c.Repository)
			}
		}
	}

	return s.Propose(ctx, cred, repo, proposal.ProposedChange{
		Purpose: artifact.CollaboratorPurpose,
		Path:    target,
		Content: content,
		Summary: fmt.Sprintf("Add %s as %s collaborator on %s", c.Username, c.Permission, c.Repository),
	})
}

// UpdateGitignore proposes adding the missing entries to the ignore file.
// ErrNoChange is returned when every entry is already listed.
func (s *Service) UpdateGitignore(ctx context.Context, cred codehost.Credential, repo proposal.RepositoryRef, entries []string) (*Outcome, error) {
	client, err := s.factory(cred)
	if err != nil {
		return nil, fmt.Errorf("create host client: %w", err)
	}
	existing, _, _, err := s.read(ctx, client, repo, s.gitignorePath, "")
	if err != nil {
		return nil, err
	}

	merged, added := artifact.MergeLines(existing, entries)
	if len(added) == 0 {
		return nil, fmt.Errorf("%w: %s already lists every entry", ErrNoChange, s.gitignorePath)
	}

	return s.Propose(ctx, cred, repo, proposal.ProposedChange{
		Purpose: artifact.GitignorePurpose,
		Path:    s.gitignorePath,
		Content: merged,
		Summary: fmt.Sprintf("Add %d entries to %s", len(added), s.gitignorePath),
	})
}
