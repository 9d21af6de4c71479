package proposal

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/rigdev/repogov/internal/codec"
	"github.com/rigdev/repogov/internal/codehost"
)

const maxPurposeLen = 64

var purposePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

var errBranchIsDefault = errors.New("rendered branch name equals the default branch")

// Options configure a Workflow.
type Options struct {
	// Factory builds a host client for the credential of each call. Required.
	Factory codehost.Factory
	// Templates for branch, title, commit message and body. Empty
	// fields take DefaultTemplates.
	Templates Templates
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
	// Log defaults to the logrus standard logger.
	Log logger.FieldLogger
}

// Workflow proposes changes as pull requests. It holds no per-run state
// and is safe for concurrent use.
type Workflow struct {
	factory   codehost.Factory
	templates Templates
	clock     func() time.Time
	log       logger.FieldLogger
}

// New creates a Workflow.
func New(opts Options) (*Workflow, error) {
	if opts.Factory == nil {
		return nil, errors.New("proposal workflow requires a host client factory")
	}
	tpl := opts.Templates.WithDefaults()
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	log := opts.Log
	if log == nil {
		log = logger.StandardLogger()
	}
	return &Workflow{factory: opts.Factory, templates: tpl, clock: clock, log: log}, nil
}

// Propose commits change to a new branch of repo and opens a pull request
// into the default branch. Steps run strictly in order and stop at the
// first failure; nothing is retried or rolled back. A non-nil error is
// always a *Error.
//
// ctx is checked between steps only. Host calls run detached from its
// cancellation so an in-flight request always completes.
func (w *Workflow) Propose(ctx context.Context, cred codehost.Credential, repo RepositoryRef, change ProposedChange) (*Result, error) {
	st := newRun(w.clock)
	started := w.clock().UTC()
	res := &Result{
		Repo:      RepositoryRef{Owner: repo.Owner, Name: repo.Name},
		StartedAt: started,
	}
	var branch string

	fail := func(step Step, kind, cause error) (*Result, error) {
		if err := st.Transition(PhaseFailed, step, fmt.Sprintf("%v: %v", kind, cause)); err != nil {
			w.log.Errorf("[proposal] %s: %v", res.Repo, err)
		}
		w.log.Warnf("[proposal] %s: %s failed: %v", res.Repo, step, cause)
		return nil, &Error{Step: step, Kind: kind, Branch: branch, Cause: cause, Events: st.events}
	}
	advance := func(to Phase, step Step, msg string) {
		if err := st.Transition(to, step, msg); err != nil {
			w.log.Errorf("[proposal] %s: %v", res.Repo, err)
			return
		}
		w.log.Debugf("[proposal] %s: %s", res.Repo, msg)
	}
	canceled := func() bool {
		return ctx.Err() != nil
	}

	if err := validateChange(repo, change); err != nil {
		return fail(StepValidate, ErrInvalidChange, err)
	}

	hostCtx := context.WithoutCancel(ctx)
	vars := map[string]any{
		"purpose":   change.Purpose,
		"timestamp": started.Format(TimestampLayout),
		"summary":   summaryOf(change),
		"path":      change.Path,
		"owner":     repo.Owner,
		"name":      repo.Name,
	}

	// Step 1: resolve the default branch and its tip.
	if canceled() {
		return fail(StepResolveBase, ErrCanceled, ctx.Err())
	}
	client, err := w.factory(cred)
	if err != nil {
		return fail(StepResolveBase, ErrRepositoryUnavailable, fmt.Errorf("create host client: %w", err))
	}
	meta, err := client.GetRepository(hostCtx, repo.Owner, repo.Name)
	if err != nil {
		return fail(StepResolveBase, ErrRepositoryUnavailable, err)
	}
	if meta.DefaultBranch == "" {
		return fail(StepResolveBase, ErrRepositoryUnavailable, errors.New("repository has no default branch"))
	}
	res.Repo.DefaultBranch = meta.DefaultBranch

	tip, err := client.GetBranchHead(hostCtx, repo.Owner, repo.Name, meta.DefaultBranch)
	if err != nil {
		return fail(StepResolveBase, ErrRepositoryUnavailable, err)
	}
	advance(PhaseBaseResolved, StepResolveBase, fmt.Sprintf("default branch %s at %s", meta.DefaultBranch, tip))

	// Step 2: fork a fresh branch from the tip.
	if canceled() {
		return fail(StepCreateBranch, ErrCanceled, ctx.Err())
	}
	name := strings.TrimSpace(render(w.templates.Branch, vars))
	switch {
	case name == "":
		return fail(StepCreateBranch, ErrBranchCreationFailed, errors.New("branch template rendered an empty name"))
	case name == meta.DefaultBranch:
		return fail(StepCreateBranch, ErrBranchCreationFailed, errBranchIsDefault)
	}
	if err := client.CreateBranch(hostCtx, repo.Owner, repo.Name, name, tip); err != nil {
		return fail(StepCreateBranch, ErrBranchCreationFailed, err)
	}
	branch = name
	res.Branch = BranchHandle{Name: name, BaseSHA: tip}
	advance(PhaseBranchCreated, StepCreateBranch, fmt.Sprintf("created branch %s from %s", name, tip))

	// Step 3: look the file up on the new branch to pick create or update.
	if canceled() {
		return fail(StepDetermineWriteMode, ErrCanceled, ctx.Err())
	}
	current, err := client.GetFileContent(hostCtx, repo.Owner, repo.Name, change.Path, name)
	if err != nil {
		return fail(StepDetermineWriteMode, ErrContentLookupFailed, err)
	}
	if current == nil {
		return fail(StepDetermineWriteMode, ErrContentLookupFailed, errors.New("host returned no content result"))
	}
	if current.Found {
		res.Revision = FileRevision{Mode: ModeUpdate, SHA: current.SHA}
	} else {
		res.Revision = FileRevision{Mode: ModeCreate}
	}
	vars["mode"] = string(res.Revision.Mode)
	advance(PhaseModeDetermined, StepDetermineWriteMode, fmt.Sprintf("%s %s", res.Revision.Mode, change.Path))

	// Step 4: commit the content to the new branch.
	if canceled() {
		return fail(StepWriteContent, ErrCanceled, ctx.Err())
	}
	commit, err := client.WriteFileContent(hostCtx, repo.Owner, repo.Name, codehost.WriteRequest{
		Path:     change.Path,
		Encoded:  codec.Encode(change.Content),
		Message:  render(w.templates.Commit, vars),
		Branch:   name,
		PriorSHA: res.Revision.SHA,
	})
	if err != nil {
		return fail(StepWriteContent, ErrCommitFailed, err)
	}
	if commit != nil {
		res.Commit = *commit
	}
	advance(PhaseContentWritten, StepWriteContent, fmt.Sprintf("committed %s to %s", change.Path, name))

	// Step 5: open the pull request back into the default branch.
	if canceled() {
		return fail(StepOpenPullRequest, ErrCanceled, ctx.Err())
	}
	pr, err := client.CreatePullRequest(hostCtx, repo.Owner, repo.Name, codehost.PullRequestRequest{
		Title: render(w.templates.Title, vars),
		Head:  name,
		Base:  meta.DefaultBranch,
		Body:  render(w.templates.Body, vars),
	})
	if err != nil {
		return fail(StepOpenPullRequest, ErrPullRequestCreationFailed, err)
	}
	if pr != nil {
		res.PullRequest = *pr
	}
	advance(PhasePRCreated, StepOpenPullRequest, fmt.Sprintf("opened pull request #%d", res.PullRequest.Number))

	res.Phase = st.phase
	res.Events = st.events
	res.CompletedAt = w.clock().UTC()
	w.log.Infof("[proposal] %s: %s opened %s", res.Repo, change.Purpose, res.PullRequest.URL)
	return res, nil
}

func validateChange(repo RepositoryRef, change ProposedChange) error {
	var errs []error
	if repo.Owner == "" || repo.Name == "" {
		errs = append(errs, errors.New("repository owner and name are required"))
	}
	if len(change.Purpose) > maxPurposeLen || !purposePattern.MatchString(change.Purpose) {
		errs = append(errs, fmt.Errorf("purpose %q must match %s and be at most %d characters",
			change.Purpose, purposePattern, maxPurposeLen))
	}
	if err := validatePath(change.Path); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validatePath(p string) error {
	if p == "" {
		return errors.New("path is required")
	}
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("path %q must be repository-relative", p)
	}
	if path.Clean(p) != p {
		return fmt.Errorf("path %q is not clean", p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return fmt.Errorf("path %q escapes the repository", p)
		}
	}
	return nil
}
