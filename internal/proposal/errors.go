package proposal

import (
	"errors"
	"fmt"
)

// Step names a stage of the workflow. A failed run reports the step that
// failed or, when canceled, the step that would have run next.
type Step string

const (
	StepValidate           Step = "validate"
	StepResolveBase        Step = "resolve-base"
	StepCreateBranch       Step = "create-branch"
	StepDetermineWriteMode Step = "determine-write-mode"
	StepWriteContent       Step = "write-content"
	StepOpenPullRequest    Step = "open-pull-request"
)

var (
	ErrRepositoryUnavailable     = errors.New("repository unavailable")
	ErrBranchCreationFailed      = errors.New("branch creation failed")
	ErrContentLookupFailed       = errors.New("content lookup failed")
	ErrCommitFailed              = errors.New("commit failed")
	ErrPullRequestCreationFailed = errors.New("pull request creation failed")
	ErrInvalidChange             = errors.New("invalid change")
	ErrCanceled                  = errors.New("proposal canceled")
)

// Error is the failure of one Propose call. Kind is one of the Err*
// sentinels above; Cause is the underlying host or validation error.
// Branch is set once the branch exists on the host, since nothing
// deletes it after a later failure.
type Error struct {
	Step   Step
	Kind   error
	Branch string
	Cause  error

	// Events is the phase trace up to and including the failure.
	Events []Event
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Step, e.Kind)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Branch != "" {
		msg += fmt.Sprintf(" (branch %s left on host)", e.Branch)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// StepOf returns the failing step carried by err, or "".
func StepOf(err error) Step {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Step
	}
	return ""
}

// BranchOf returns the orphaned branch carried by err, or "".
func BranchOf(err error) string {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Branch
	}
	return ""
}
