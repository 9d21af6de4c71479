// Package proposal turns one file change into one pull request: resolve
// the default branch tip, fork a fresh branch from it, commit the change
// there in create or update mode, and open a pull request back into the
// default branch. The default branch itself is never written.
package proposal

import (
	"time"

	"github.com/rigdev/repogov/internal/codehost"
)

// RepositoryRef identifies the target repository. DefaultBranch is
// resolved from the host during a run and any caller value is ignored.
type RepositoryRef struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	DefaultBranch string `json:"default_branch,omitempty"`
}

func (r RepositoryRef) String() string {
	return codehost.FullName(r.Owner, r.Name)
}

// ProposedChange is the file content a caller wants reviewed.
type ProposedChange struct {
	Purpose string // purpose tag, e.g. "collaborator-add"
	Path    string // repository-relative
	Content []byte
	Summary string
}

// BranchHandle is the branch a run created and the tip it was forked from.
type BranchHandle struct {
	Name    string `json:"name"`
	BaseSHA string `json:"base_sha"`
}

// WriteMode selects between creating a file and updating it in place.
type WriteMode string

const (
	ModeCreate WriteMode = "create"
	ModeUpdate WriteMode = "update"
)

// FileRevision is the outcome of the existence check on the new branch.
// SHA is only set in update mode and is passed back to the host unchanged.
type FileRevision struct {
	Mode WriteMode `json:"mode"`
	SHA  string    `json:"sha,omitempty"`
}

// Result describes a successful run.
type Result struct {
	Repo        RepositoryRef        `json:"repo"`
	Branch      BranchHandle         `json:"branch"`
	Revision    FileRevision         `json:"revision"`
	Commit      codehost.Commit      `json:"commit"`
	PullRequest codehost.PullRequest `json:"pull_request"`
	Phase       Phase                `json:"phase"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt time.Time            `json:"completed_at"`
	Events      []Event              `json:"events"`
}
