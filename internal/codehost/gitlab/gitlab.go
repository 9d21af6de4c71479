// Package gitlab implements codehost.Client on the GitLab REST API.
// Projects are addressed by their "namespace/path" full name, pull
// requests map to merge requests.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/rigdev/repogov/internal/codehost"
)

const perPage = 100

// Config holds the settings shared by every client the factory builds.
type Config struct {
	// BaseURL of a self-managed instance. Empty means gitlab.com.
	BaseURL string
}

// Client implements codehost.Client using the GitLab client-go library.
type Client struct {
	gl *gl.Client
}

var _ codehost.Client = (*Client)(nil)

// New creates a Client authenticated with cred.
func New(cfg Config, cred codehost.Credential) (*Client, error) {
	var opts []gl.ClientOptionFunc
	if cfg.BaseURL != "" {
		opts = append(opts, gl.WithBaseURL(cfg.BaseURL))
	}

	client, err := gl.NewClient(cred.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gitlab client: %w", err)
	}
	return &Client{gl: client}, nil
}

// NewFactory returns a codehost.Factory producing GitLab clients.
func NewFactory(cfg Config) codehost.Factory {
	return func(cred codehost.Credential) (codehost.Client, error) {
		return New(cfg, cred)
	}
}

func pid(owner, name string) string {
	return codehost.FullName(owner, name)
}

// GetRepository fetches project metadata.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*codehost.Repository, error) {
	proj, resp, err := c.gl.Projects.GetProject(pid(owner, name), nil, gl.WithContext(ctx))
	if err != nil {
		return nil, hostError("get project", resp, nil, err)
	}
	return toRepository(proj), nil
}

// GetBranchHead returns the commit ID at the tip of branch.
func (c *Client) GetBranchHead(ctx context.Context, owner, name, branch string) (string, error) {
	op := fmt.Sprintf("get branch %s", branch)

	b, resp, err := c.gl.Branches.GetBranch(pid(owner, name), branch, gl.WithContext(ctx))
	if err != nil {
		return "", hostError(op, resp, nil, err)
	}
	if b.Commit == nil || b.Commit.ID == "" {
		return "", codehost.NewHostError(op, 0, nil, errors.New("branch has no commit"))
	}
	return b.Commit.ID, nil
}

// CreateBranch creates branch from fromSHA.
func (c *Client) CreateBranch(ctx context.Context, owner, name, branch, fromSHA string) error {
	_, resp, err := c.gl.Branches.CreateBranch(pid(owner, name), &gl.CreateBranchOptions{
		Branch: gl.Ptr(branch),
		Ref:    gl.Ptr(fromSHA),
	}, gl.WithContext(ctx))
	if err != nil {
		var kind error
		if strings.Contains(strings.ToLower(err.Error()), "already exists") {
			kind = codehost.ErrAlreadyExists
		}
		return hostError(fmt.Sprintf("create branch %s", branch), resp, kind, err)
	}
	return nil
}

// GetFileContent reads path at ref. The revision token is the file's
// last commit ID, which GitLab checks on update.
func (c *Client) GetFileContent(ctx context.Context, owner, name, path, ref string) (*codehost.FileContent, error) {
	op := fmt.Sprintf("get file %s@%s", path, ref)

	f, resp, err := c.gl.RepositoryFiles.GetFile(pid(owner, name), path,
		&gl.GetFileOptions{Ref: gl.Ptr(ref)}, gl.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return &codehost.FileContent{Found: false}, nil
		}
		return nil, hostError(op, resp, nil, err)
	}
	if f.Encoding != "" && f.Encoding != "base64" {
		return nil, codehost.NewHostError(op, 0, codehost.ErrUnsupportedEncoding, fmt.Errorf("encoding %q", f.Encoding))
	}

	return &codehost.FileContent{
		Found:   true,
		Encoded: f.Content,
		SHA:     f.LastCommitID,
	}, nil
}

// WriteFileContent commits a single create or update action.
func (c *Client) WriteFileContent(ctx context.Context, owner, name string, req codehost.WriteRequest) (*codehost.Commit, error) {
	action := &gl.CommitActionOptions{
		Action:   gl.Ptr(gl.FileCreate),
		FilePath: gl.Ptr(req.Path),
		Content:  gl.Ptr(req.Encoded),
		Encoding: gl.Ptr("base64"),
	}
	if req.PriorSHA != "" {
		action.Action = gl.Ptr(gl.FileUpdate)
		action.LastCommitID = gl.Ptr(req.PriorSHA)
	}

	commit, resp, err := c.gl.Commits.CreateCommit(pid(owner, name), &gl.CreateCommitOptions{
		Branch:        gl.Ptr(req.Branch),
		CommitMessage: gl.Ptr(req.Message),
		Actions:       []*gl.CommitActionOptions{action},
	}, gl.WithContext(ctx))
	if err != nil {
		return nil, hostError(fmt.Sprintf("commit %s@%s", req.Path, req.Branch), resp, nil, err)
	}

	return &codehost.Commit{SHA: commit.ID, URL: commit.WebURL}, nil
}

// CreatePullRequest opens a merge request from req.Head into req.Base.
func (c *Client) CreatePullRequest(ctx context.Context, owner, name string, req codehost.PullRequestRequest) (*codehost.PullRequest, error) {
	mr, resp, err := c.gl.MergeRequests.CreateMergeRequest(pid(owner, name), &gl.CreateMergeRequestOptions{
		Title:        gl.Ptr(req.Title),
		Description:  gl.Ptr(req.Body),
		SourceBranch: gl.Ptr(req.Head),
		TargetBranch: gl.Ptr(req.Base),
	}, gl.WithContext(ctx))
	if err != nil {
		return nil, hostError("create merge request", resp, nil, err)
	}

	return &codehost.PullRequest{
		Number: int(mr.IID),
		URL:    mr.WebURL,
	}, nil
}

// ListProtectedBranches returns protected branch names (or wildcards).
func (c *Client) ListProtectedBranches(ctx context.Context, owner, name string) ([]string, error) {
	branches, resp, err := c.gl.ProtectedBranches.ListProtectedBranches(pid(owner, name), nil, gl.WithContext(ctx))
	if err != nil {
		return nil, hostError("list protected branches", resp, nil, err)
	}

	names := make([]string, 0, len(branches))
	for _, b := range branches {
		names = append(names, b.Name)
	}
	return names, nil
}

// ListWebhooks returns project hooks. GitLab hooks have no active flag;
// every listed hook is reported active.
func (c *Client) ListWebhooks(ctx context.Context, owner, name string) ([]codehost.Webhook, error) {
	hooks, resp, err := c.gl.Projects.ListProjectHooks(pid(owner, name), nil, gl.WithContext(ctx))
	if err != nil {
		return nil, hostError("list project hooks", resp, nil, err)
	}

	out := make([]codehost.Webhook, 0, len(hooks))
	for _, h := range hooks {
		var events []string
		if h.PushEvents {
			events = append(events, "push")
		}
		if h.MergeRequestsEvents {
			events = append(events, "merge_requests")
		}
		if h.TagPushEvents {
			events = append(events, "tag_push")
		}
		out = append(out, codehost.Webhook{
			ID:     int64(h.ID),
			URL:    h.URL,
			Active: true,
			Events: events,
		})
	}
	return out, nil
}

// ListOwnRepositories lists public projects owned by the token's user.
func (c *Client) ListOwnRepositories(ctx context.Context) ([]codehost.Repository, error) {
	opts := &gl.ListProjectsOptions{
		ListOptions: gl.ListOptions{PerPage: perPage},
		Owned:       gl.Ptr(true),
		Visibility:  gl.Ptr(gl.PublicVisibility),
	}

	var repos []codehost.Repository
	for {
		projects, resp, err := c.gl.Projects.ListProjects(opts, gl.WithContext(ctx))
		if err != nil {
			return nil, hostError("list projects", resp, nil, err)
		}
		for _, p := range projects {
			repos = append(repos, *toRepository(p))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return repos, nil
}

func toRepository(p *gl.Project) *codehost.Repository {
	repo := &codehost.Repository{
		Name:          p.Path,
		FullName:      p.PathWithNamespace,
		Description:   p.Description,
		HTMLURL:       p.WebURL,
		DefaultBranch: p.DefaultBranch,
		Private:       p.Visibility != gl.PublicVisibility,
	}
	if p.Namespace != nil {
		repo.Owner = p.Namespace.FullPath
		repo.OwnerAvatarURL = p.Namespace.AvatarURL
		repo.OwnerHTMLURL = p.Namespace.WebURL
	}
	if repo.Owner == "" {
		repo.Owner = strings.TrimSuffix(p.PathWithNamespace, "/"+p.Path)
	}
	return repo
}

func hostError(op string, resp *gl.Response, kind, err error) error {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	// GitLab reports duplicate names and validation failures as 400.
	if kind == nil && status == http.StatusBadRequest {
		kind = codehost.ErrUnprocessable
	}
	return codehost.NewHostError(op, status, kind, err)
}
