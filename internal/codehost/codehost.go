// Package codehost defines the code-hosting REST surface the rest of
// repogov consumes. Platform adapters live in sub-packages.
package codehost

import (
	"context"
	"fmt"
)

// Credential is the bearer token used for one call chain. It is always
// passed explicitly; nothing in repogov keeps a process-wide token.
type Credential struct {
	Token string
}

// Repository is the metadata shown in the repository directory.
type Repository struct {
	Owner          string `json:"owner"`
	Name           string `json:"name"`
	FullName       string `json:"full_name"`
	Description    string `json:"description"`
	HTMLURL        string `json:"html_url"`
	DefaultBranch  string `json:"default_branch"`
	OwnerAvatarURL string `json:"owner_avatar_url"`
	OwnerHTMLURL   string `json:"owner_html_url"`
	Private        bool   `json:"private"`
}

// FileContent is the result of a content lookup. A missing file is
// Found == false with a nil error; any other failure is an error.
type FileContent struct {
	Found   bool
	Encoded string // base64 transport form
	SHA     string // revision token required to update the file
}

// WriteRequest describes one file commit. An empty PriorSHA means the
// file is created; otherwise it is updated in place.
type WriteRequest struct {
	Path     string
	Encoded  string
	Message  string
	Branch   string
	PriorSHA string
}

// Commit identifies the commit produced by a write.
type Commit struct {
	SHA string `json:"sha"`
	URL string `json:"url"`
}

// PullRequestRequest describes a pull request to open.
type PullRequestRequest struct {
	Title string
	Head  string
	Base  string
	Body  string
}

// PullRequest identifies a created pull request.
type PullRequest struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// Webhook is a repository webhook as shown in the settings view.
type Webhook struct {
	ID     int64    `json:"id"`
	URL    string   `json:"url"`
	Active bool     `json:"active"`
	Events []string `json:"events,omitempty"`
}

// Client is the code-hosting API consumed by the proposal workflow,
// the repository directory and the settings inspector.
type Client interface {
	GetRepository(ctx context.Context, owner, name string) (*Repository, error)
	GetBranchHead(ctx context.Context, owner, name, branch string) (string, error)
	CreateBranch(ctx context.Context, owner, name, branch, fromSHA string) error
	GetFileContent(ctx context.Context, owner, name, path, ref string) (*FileContent, error)
	WriteFileContent(ctx context.Context, owner, name string, req WriteRequest) (*Commit, error)
	CreatePullRequest(ctx context.Context, owner, name string, req PullRequestRequest) (*PullRequest, error)

	ListProtectedBranches(ctx context.Context, owner, name string) ([]string, error)
	ListWebhooks(ctx context.Context, owner, name string) ([]Webhook, error)
	ListOwnRepositories(ctx context.Context) ([]Repository, error)
}

// Factory builds a Client bound to one credential.
type Factory func(cred Credential) (Client, error)

// FullName joins owner and name the way both platforms display them.
func FullName(owner, name string) string {
	return fmt.Sprintf("%s/%s", owner, name)
}
