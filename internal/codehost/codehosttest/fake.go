// Package codehosttest provides an in-memory codehost.Client for tests.
package codehosttest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rigdev/repogov/internal/codec"
	"github.com/rigdev/repogov/internal/codehost"
)

// Fake is an in-memory codehost.Client. Any operation can be made to fail
// through FailOn, and every call is recorded in order.
//
// Fields may be set directly before the fake is shared between goroutines.
type Fake struct {
	mu sync.Mutex

	DefaultBranch string
	Branches      map[string]string
	Files         map[string]codehost.FileContent // key: branch + ":" + path

	Protected []string
	Hooks     []codehost.Webhook
	Owned     []codehost.Repository
	Missing   map[string]bool // full names GetRepository reports as 404

	FailOn map[string]error
	OnCall func(op string)

	Writes []codehost.WriteRequest
	Pulls  []codehost.PullRequestRequest

	calls  []string
	creds  []codehost.Credential
	nextPR int
}

// New returns a fake whose default branch "main" points at abc123.
func New() *Fake {
	return &Fake{
		DefaultBranch: "main",
		Branches:      map[string]string{"main": "abc123"},
		Files:         map[string]codehost.FileContent{},
		Missing:       map[string]bool{},
		FailOn:        map[string]error{},
		nextPR:        1,
	}
}

// Factory satisfies codehost.Factory and always returns f.
func (f *Fake) Factory(cred codehost.Credential) (codehost.Client, error) {
	f.mu.Lock()
	f.creds = append(f.creds, cred)
	f.mu.Unlock()
	return f, nil
}

// Calls returns the operations invoked so far.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Credentials returns every credential passed to Factory.
func (f *Fake) Credentials() []codehost.Credential {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]codehost.Credential(nil), f.creds...)
}

// PutFile stores content on branch with the given revision SHA.
func (f *Fake) PutFile(branch, path, content, sha string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Files[branch+":"+path] = codehost.FileContent{Found: true, Encoded: codec.EncodeString(content), SHA: sha}
}

// WrittenContent decodes the content of the i-th write.
func (f *Fake) WrittenContent(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, err := codec.DecodeString(f.Writes[i].Encoded)
	if err != nil {
		return ""
	}
	return out
}

func (f *Fake) record(op string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	err := f.FailOn[op]
	hook := f.OnCall
	f.mu.Unlock()

	if hook != nil {
		hook(op)
	}
	return err
}

func (f *Fake) GetRepository(ctx context.Context, owner, name string) (*codehost.Repository, error) {
	if err := f.record("GetRepository"); err != nil {
		return nil, err
	}
	full := codehost.FullName(owner, name)
	f.mu.Lock()
	missing := f.Missing[full]
	f.mu.Unlock()
	if missing {
		return nil, codehost.NewHostError("get repository", http.StatusNotFound, nil, fmt.Errorf("%s not found", full))
	}
	return &codehost.Repository{
		Owner:         owner,
		Name:          name,
		FullName:      full,
		Description:   "repository " + name,
		HTMLURL:       "https://example.com/" + full,
		DefaultBranch: f.DefaultBranch,
	}, nil
}

func (f *Fake) GetBranchHead(ctx context.Context, owner, name, branch string) (string, error) {
	if err := f.record("GetBranchHead"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sha, ok := f.Branches[branch]
	if !ok {
		return "", codehost.NewHostError("get ref", http.StatusNotFound, nil, fmt.Errorf("no branch %s", branch))
	}
	return sha, nil
}

func (f *Fake) CreateBranch(ctx context.Context, owner, name, branch, fromSHA string) error {
	if err := f.record("CreateBranch"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Branches[branch]; ok {
		return codehost.NewHostError("create ref", http.StatusUnprocessableEntity, codehost.ErrAlreadyExists, fmt.Errorf("Reference already exists"))
	}
	f.Branches[branch] = fromSHA
	// The new branch sees the files of the default branch.
	for key, fc := range f.Files {
		if path, ok := strings.CutPrefix(key, f.DefaultBranch+":"); ok {
			f.Files[branch+":"+path] = fc
		}
	}
	return nil
}

func (f *Fake) GetFileContent(ctx context.Context, owner, name, path, ref string) (*codehost.FileContent, error) {
	if err := f.record("GetFileContent"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if ref == "" {
		ref = f.DefaultBranch
	}
	fc, ok := f.Files[ref+":"+path]
	if !ok {
		return &codehost.FileContent{Found: false}, nil
	}
	return &fc, nil
}

func (f *Fake) WriteFileContent(ctx context.Context, owner, name string, req codehost.WriteRequest) (*codehost.Commit, error) {
	if err := f.record("WriteFileContent"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes = append(f.Writes, req)
	f.Files[req.Branch+":"+req.Path] = codehost.FileContent{Found: true, Encoded: req.Encoded, SHA: "new-sha"}
	return &codehost.Commit{SHA: fmt.Sprintf("commit-%d", len(f.Writes))}, nil
}

func (f *Fake) CreatePullRequest(ctx context.Context, owner, name string, req codehost.PullRequestRequest) (*codehost.PullRequest, error) {
	if err := f.record("CreatePullRequest"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pulls = append(f.Pulls, req)
	n := f.nextPR
	f.nextPR++
	return &codehost.PullRequest{Number: n, URL: fmt.Sprintf("https://example.com/%s/%s/pull/%d", owner, name, n)}, nil
}

func (f *Fake) ListProtectedBranches(ctx context.Context, owner, name string) ([]string, error) {
	if err := f.record("ListProtectedBranches"); err != nil {
		return nil, err
	}
	return f.Protected, nil
}

func (f *Fake) ListWebhooks(ctx context.Context, owner, name string) ([]codehost.Webhook, error) {
	if err := f.record("ListWebhooks"); err != nil {
		return nil, err
	}
	return f.Hooks, nil
}

func (f *Fake) ListOwnRepositories(ctx context.Context) ([]codehost.Repository, error) {
	if err := f.record("ListOwnRepositories"); err != nil {
		return nil, err
	}
	return f.Owned, nil
}

var _ codehost.Client = (*Fake)(nil)
