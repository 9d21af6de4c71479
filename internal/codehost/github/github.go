// Package github implements codehost.Client on the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"

	"github.com/rigdev/repogov/internal/codehost"
)

const perPage = 100

// Config holds the settings shared by every client the factory builds.
type Config struct {
	// BaseURL is an optional GitHub Enterprise API URL
	// (e.g. "https://git.corp.example.com/api/v3/"). Empty means github.com.
	BaseURL string
}

// Client implements codehost.Client using go-github.
type Client struct {
	gh *github.Client
}

var _ codehost.Client = (*Client)(nil)

// New creates a Client authenticated with cred.
// An empty token yields an unauthenticated client.
func New(cfg Config, cred codehost.Credential) (*Client, error) {
	var httpClient *http.Client
	if cred.Token != "" {
		httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: cred.Token, TokenType: "Bearer"},
		))
	}

	client := github.NewClient(httpClient)
	if cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("create github enterprise client: %w", err)
		}
	}

	return &Client{gh: client}, nil
}

// NewFactory returns a codehost.Factory producing GitHub clients.
func NewFactory(cfg Config) codehost.Factory {
	return func(cred codehost.Credential) (codehost.Client, error) {
		return New(cfg, cred)
	}
}

// GetRepository fetches repository metadata, including the default branch.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*codehost.Repository, error) {
	repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, hostError("get repository", resp, nil, err)
	}
	return toRepository(repo), nil
}

// GetBranchHead returns the SHA the branch currently points at.
func (c *Client) GetBranchHead(ctx context.Context, owner, name, branch string) (string, error) {
	ref, resp, err := c.gh.Git.GetRef(ctx, owner, name, "heads/"+branch)
	if err != nil {
		return "", hostError(fmt.Sprintf("get ref heads/%s", branch), resp, nil, err)
	}
	sha := ref.GetObject().GetSHA()
	if sha == "" {
		return "", codehost.NewHostError(fmt.Sprintf("get ref heads/%s", branch), 0, nil, errors.New("ref has no object sha"))
	}
	return sha, nil
}

// CreateBranch creates refs/heads/<branch> at fromSHA.
func (c *Client) CreateBranch(ctx context.Context, owner, name, branch, fromSHA string) error {
	ref := &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.String(fromSHA)},
	}

	_, resp, err := c.gh.Git.CreateRef(ctx, owner, name, ref)
	if err != nil {
		var kind error
		// GitHub answers 422 "Reference already exists" on collisions.
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity &&
			strings.Contains(strings.ToLower(err.Error()), "already exists") {
			kind = codehost.ErrAlreadyExists
		}
		return hostError(fmt.Sprintf("create ref %s", branch), resp, kind, err)
	}
	return nil
}

// GetFileContent reads path at ref. A 404 is reported as Found == false.
func (c *Client) GetFileContent(ctx context.Context, owner, name, path, ref string) (*codehost.FileContent, error) {
	op := fmt.Sprintf("get content %s@%s", path, ref)

	file, dir, resp, err := c.gh.Repositories.GetContents(ctx, owner, name, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return &codehost.FileContent{Found: false}, nil
		}
		return nil, hostError(op, resp, nil, err)
	}
	if file == nil || dir != nil {
		return nil, codehost.NewHostError(op, 0, codehost.ErrNotAFile, fmt.Errorf("%q is a directory", path))
	}

	// Files above 1MB come back with encoding "none" and no body.
	if enc := file.GetEncoding(); enc != "" && enc != "base64" {
		return nil, codehost.NewHostError(op, 0, codehost.ErrUnsupportedEncoding, fmt.Errorf("encoding %q", enc))
	}

	// Content is kept in its wire form; GetContent would decode it.
	var encoded string
	if file.Content != nil {
		encoded = *file.Content
	}
	return &codehost.FileContent{
		Found:   true,
		Encoded: encoded,
		SHA:     file.GetSHA(),
	}, nil
}

// contentsRequest is the PUT /contents body. The content is sent exactly
// as encoded by the caller.
type contentsRequest struct {
	Message string  `json:"message"`
	Content string  `json:"content"`
	Branch  string  `json:"branch,omitempty"`
	SHA     *string `json:"sha,omitempty"`
}

type contentsResponse struct {
	Commit struct {
		SHA     string `json:"sha"`
		HTMLURL string `json:"html_url"`
	} `json:"commit"`
}

// WriteFileContent creates or updates a file with one commit.
func (c *Client) WriteFileContent(ctx context.Context, owner, name string, req codehost.WriteRequest) (*codehost.Commit, error) {
	op := fmt.Sprintf("write content %s@%s", req.Path, req.Branch)

	body := contentsRequest{
		Message: req.Message,
		Content: req.Encoded,
		Branch:  req.Branch,
	}
	if req.PriorSHA != "" {
		body.SHA = github.String(req.PriorSHA)
	}

	u := fmt.Sprintf("repos/%s/%s/contents/%s", owner, name, escapePath(req.Path))
	httpReq, err := c.gh.NewRequest(http.MethodPut, u, body)
	if err != nil {
		return nil, codehost.NewHostError(op, 0, nil, err)
	}

	var out contentsResponse
	resp, err := c.gh.Do(ctx, httpReq, &out)
	if err != nil {
		return nil, hostError(op, resp, nil, err)
	}

	return &codehost.Commit{SHA: out.Commit.SHA, URL: out.Commit.HTMLURL}, nil
}

// CreatePullRequest opens a pull request from req.Head into req.Base.
func (c *Client) CreatePullRequest(ctx context.Context, owner, name string, req codehost.PullRequestRequest) (*codehost.PullRequest, error) {
	pr := &github.NewPullRequest{
		Title: github.String(req.Title),
		Head:  github.String(req.Head),
		Base:  github.String(req.Base),
		Body:  github.String(req.Body),
	}

	created, resp, err := c.gh.PullRequests.Create(ctx, owner, name, pr)
	if err != nil {
		return nil, hostError("create pull request", resp, nil, err)
	}

	return &codehost.PullRequest{
		Number: created.GetNumber(),
		URL:    created.GetHTMLURL(),
	}, nil
}

// ListProtectedBranches returns the names of branches with protection rules.
func (c *Client) ListProtectedBranches(ctx context.Context, owner, name string) ([]string, error) {
	opts := &github.BranchListOptions{
		Protected:   github.Bool(true),
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var names []string
	for {
		branches, resp, err := c.gh.Repositories.ListBranches(ctx, owner, name, opts)
		if err != nil {
			return nil, hostError("list protected branches", resp, nil, err)
		}
		for _, b := range branches {
			names = append(names, b.GetName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return names, nil
}

// ListWebhooks returns the repository webhooks with their target URLs.
func (c *Client) ListWebhooks(ctx context.Context, owner, name string) ([]codehost.Webhook, error) {
	opts := &github.ListOptions{PerPage: perPage}

	var hooks []codehost.Webhook
	for {
		page, resp, err := c.gh.Repositories.ListHooks(ctx, owner, name, opts)
		if err != nil {
			return nil, hostError("list webhooks", resp, nil, err)
		}
		for _, h := range page {
			hooks = append(hooks, codehost.Webhook{
				ID:     h.GetID(),
				URL:    h.GetConfig().GetURL(),
				Active: h.GetActive(),
				Events: h.Events,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return hooks, nil
}

// ListOwnRepositories lists public repositories owned by the
// authenticated user.
func (c *Client) ListOwnRepositories(ctx context.Context) ([]codehost.Repository, error) {
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Visibility:  "public",
		Affiliation: "owner",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var repos []codehost.Repository
	for {
		page, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, hostError("list own repositories", resp, nil, err)
		}
		for _, r := range page {
			repos = append(repos, *toRepository(r))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return repos, nil
}

func toRepository(r *github.Repository) *codehost.Repository {
	return &codehost.Repository{
		Owner:          r.GetOwner().GetLogin(),
		Name:           r.GetName(),
		FullName:       r.GetFullName(),
		Description:    r.GetDescription(),
		HTMLURL:        r.GetHTMLURL(),
		DefaultBranch:  r.GetDefaultBranch(),
		OwnerAvatarURL: r.GetOwner().GetAvatarURL(),
		OwnerHTMLURL:   r.GetOwner().GetHTMLURL(),
		Private:        r.GetPrivate(),
	}
}

func hostError(op string, resp *github.Response, kind, err error) error {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	return codehost.NewHostError(op, status, kind, err)
}

// escapePath escapes each segment of a repository path.
func escapePath(p string) string {
	return (&url.URL{Path: strings.TrimSuffix(p, "/")}).String()
}
