package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v60/github"

	"github.com/rigdev/repogov/internal/codec"
	"github.com/rigdev/repogov/internal/codehost"
)

// newTestClient creates a Client whose go-github client talks to an httptest server.
func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := github.NewClient(nil)
	u, _ := url.Parse(server.URL + "/")
	client.BaseURL = u

	return &Client{gh: client}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

// --- GetRepository tests ---

func TestGetRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/site", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{
			"name": "site",
			"full_name": "octo/site",
			"description": "static site",
			"html_url": "https://github.com/octo/site",
			"default_branch": "trunk",
			"private": false,
			"owner": {"login": "octo", "avatar_url": "https://avatars/octo", "html_url": "https://github.com/octo"}
		}`)
	})

	c := newTestClient(t, mux)

	repo, err := c.GetRepository(context.Background(), "octo", "site")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.DefaultBranch != "trunk" {
		t.Errorf("default branch = %q, want %q", repo.DefaultBranch, "trunk")
	}
	if repo.Owner != "octo" || repo.FullName != "octo/site" {
		t.Errorf("owner/full name = %q/%q", repo.Owner, repo.FullName)
	}
	if repo.OwnerAvatarURL != "https://avatars/octo" {
		t.Errorf("avatar = %q", repo.OwnerAvatarURL)
	}
}

func TestGetRepositoryNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/missing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"message": "Not Found"}`)
	})

	c := newTestClient(t, mux)

	_, err := c.GetRepository(context.Background(), "octo", "missing")
	if !errors.Is(err, codehost.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if codehost.StatusCode(err) != http.StatusNotFound {
		t.Errorf("status = %d, want 404", codehost.StatusCode(err))
	}
}

// --- Branch tests ---

func TestGetBranchHead(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/site/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"ref": "refs/heads/main", "object": {"sha": "abc123", "type": "commit"}}`)
	})

	c := newTestClient(t, mux)

	sha, err := c.GetBranchHead(context.Background(), "octo", "site", "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sha != "abc123" {
		t.Errorf("sha = %q, want %q", sha, "abc123")
	}
}

func TestCreateBranch(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		response   string
		wantKind   error
	}{
		{
			name:       "created",
			statusCode: http.StatusCreated,
			response:   `{"ref": "refs/heads/docs-20240101120000", "object": {"sha": "abc123"}}`,
		},
		{
			name:       "already exists",
			statusCode: http.StatusUnprocessableEntity,
			response:   `{"message": "Reference already exists"}`,
			wantKind:   codehost.ErrAlreadyExists,
		},
		{
			name:       "invalid ref",
			statusCode: http.StatusUnprocessableEntity,
			response:   `{"message": "Invalid request"}`,
			wantKind:   codehost.ErrUnprocessable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any

			mux := http.NewServeMux()
			mux.HandleFunc("POST /repos/octo/site/git/refs", func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewDecoder(r.Body).Decode(&got)
				writeJSON(w, tt.statusCode, tt.response)
			})

			c := newTestClient(t, mux)

			err := c.CreateBranch(context.Background(), "octo", "site", "docs-20240101120000", "abc123")
			if tt.wantKind == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			} else if !errors.Is(err, tt.wantKind) {
				t.Fatalf("err = %v, want %v", err, tt.wantKind)
			}

			if got["ref"] != "refs/heads/docs-20240101120000" {
				t.Errorf("ref = %v", got["ref"])
			}
			if got["sha"] != "abc123" {
				t.Errorf("sha = %v", got["sha"])
			}
		})
	}
}

// --- Content tests ---

func TestGetFileContent(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		response   string
		wantFound  bool
		wantSHA    string
		wantErr    error
	}{
		{
			name:       "file",
			statusCode: http.StatusOK,
			response:   `{"type": "file", "encoding": "base64", "sha": "s1", "path": "docs/a.md", "content": "aGVs\nbG8=\n"}`,
			wantFound:  true,
			wantSHA:    "s1",
		},
		{
			name:       "missing",
			statusCode: http.StatusNotFound,
			response:   `{"message": "Not Found"}`,
		},
		{
			name:       "directory",
			statusCode: http.StatusOK,
			response:   `[{"type": "file", "path": "docs/a.md"}]`,
			wantErr:    codehost.ErrNotAFile,
		},
		{
			name:       "too large",
			statusCode: http.StatusOK,
			response:   `{"type": "file", "encoding": "none", "sha": "s2", "path": "docs/a.md", "content": ""}`,
			wantErr:    codehost.ErrUnsupportedEncoding,
		},
		{
			name:       "forbidden",
			statusCode: http.StatusForbidden,
			response:   `{"message": "Resource not accessible"}`,
			wantErr:    codehost.ErrPermission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotRef string

			mux := http.NewServeMux()
			mux.HandleFunc("GET /repos/octo/site/contents/docs/a.md", func(w http.ResponseWriter, r *http.Request) {
				gotRef = r.URL.Query().Get("ref")
				writeJSON(w, tt.statusCode, tt.response)
			})

			c := newTestClient(t, mux)

			fc, err := c.GetFileContent(context.Background(), "octo", "site", "docs/a.md", "feature")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotRef != "feature" {
				t.Errorf("ref = %q, want %q", gotRef, "feature")
			}
			if fc.Found != tt.wantFound {
				t.Errorf("found = %v, want %v", fc.Found, tt.wantFound)
			}
			if fc.SHA != tt.wantSHA {
				t.Errorf("sha = %q, want %q", fc.SHA, tt.wantSHA)
			}
			if tt.wantFound && fc.Encoded != "aGVs\nbG8=\n" {
				t.Errorf("encoded = %q", fc.Encoded)
			}
		})
	}
}

func TestGetFileContentKeepsWireEncoding(t *testing.T) {
	// JSON escaped newlines, as GitHub wraps base64 at 60 columns.
	const wire = `IyBUaXRsZQoKU29tZSBs\nb25nZXIgdGV4dC4K\n`

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/site/contents/README.md", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"type": "file", "encoding": "base64", "sha": "s3", "path": "README.md", "content": "`+wire+`"}`)
	})

	c := newTestClient(t, mux)

	fc, err := c.GetFileContent(context.Background(), "octo", "site", "README.md", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.Encoded != "IyBUaXRsZQoKU29tZSBs\nb25nZXIgdGV4dC4K\n" {
		t.Errorf("encoded = %q, want the base64 exactly as sent", fc.Encoded)
	}
	text, err := codec.DecodeString(fc.Encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if text != "# Title\n\nSome longer text.\n" {
		t.Errorf("decoded = %q", text)
	}
}

func TestWriteFileContent(t *testing.T) {
	tests := []struct {
		name     string
		priorSHA string
		wantSHA  bool
	}{
		{name: "create", priorSHA: ""},
		{name: "update", priorSHA: "old-sha", wantSHA: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any

			mux := http.NewServeMux()
			mux.HandleFunc("PUT /repos/octo/site/contents/docs/a.md", func(w http.ResponseWriter, r *http.Request) {
				raw, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(raw, &got)
				writeJSON(w, http.StatusCreated, `{"content": {"sha": "new-blob"}, "commit": {"sha": "c1", "html_url": "https://github.com/octo/site/commit/c1"}}`)
			})

			c := newTestClient(t, mux)

			commit, err := c.WriteFileContent(context.Background(), "octo", "site", codehost.WriteRequest{
				Path:     "docs/a.md",
				Encoded:  "aGVsbG8=",
				Message:  "docs: update",
				Branch:   "docs-20240101120000",
				PriorSHA: tt.priorSHA,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if commit.SHA != "c1" {
				t.Errorf("commit sha = %q, want c1", commit.SHA)
			}

			if got["content"] != "aGVsbG8=" {
				t.Errorf("content = %v", got["content"])
			}
			if got["branch"] != "docs-20240101120000" {
				t.Errorf("branch = %v", got["branch"])
			}
			if got["message"] != "docs: update" {
				t.Errorf("message = %v", got["message"])
			}
			sha, has := got["sha"]
			if has != tt.wantSHA {
				t.Fatalf("sha present = %v, want %v", has, tt.wantSHA)
			}
			if tt.wantSHA && sha != tt.priorSHA {
				t.Errorf("sha = %v, want %v", sha, tt.priorSHA)
			}
		})
	}
}

func TestWriteFileContentConflict(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /repos/octo/site/contents/a.txt", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, `{"message": "a.txt does not match old-sha"}`)
	})

	c := newTestClient(t, mux)

	_, err := c.WriteFileContent(context.Background(), "octo", "site", codehost.WriteRequest{
		Path: "a.txt", Encoded: "eA==", Message: "m", Branch: "b", PriorSHA: "old-sha",
	})
	if !errors.Is(err, codehost.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

// --- Pull request tests ---

func TestCreatePullRequest(t *testing.T) {
	var got map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/octo/site/pulls", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusCreated, `{"number": 7, "html_url": "https://github.com/octo/site/pull/7"}`)
	})

	c := newTestClient(t, mux)

	pr, err := c.CreatePullRequest(context.Background(), "octo", "site", codehost.PullRequestRequest{
		Title: "docs-20240101120000",
		Head:  "docs-20240101120000",
		Base:  "main",
		Body:  "update docs",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pr.Number != 7 || pr.URL != "https://github.com/octo/site/pull/7" {
		t.Errorf("pr = %+v", pr)
	}
	if got["head"] != "docs-20240101120000" || got["base"] != "main" {
		t.Errorf("head/base = %v/%v", got["head"], got["base"])
	}
	if got["body"] != "update docs" {
		t.Errorf("body = %v", got["body"])
	}
}

// --- Settings tests ---

func TestListProtectedBranches(t *testing.T) {
	var gotProtected string

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/site/branches", func(w http.ResponseWriter, r *http.Request) {
		gotProtected = r.URL.Query().Get("protected")
		writeJSON(w, http.StatusOK, `[{"name": "main", "protected": true}, {"name": "release", "protected": true}]`)
	})

	c := newTestClient(t, mux)

	names, err := c.ListProtectedBranches(context.Background(), "octo", "site")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotProtected != "true" {
		t.Errorf("protected query = %q, want true", gotProtected)
	}
	if len(names) != 2 || names[0] != "main" || names[1] != "release" {
		t.Errorf("names = %v", names)
	}
}

func TestListWebhooks(t *testing.T) {
	mux := http.NewServeMux()
	var perPageQuery string
	mux.HandleFunc("GET /repos/octo/site/hooks", func(w http.ResponseWriter, r *http.Request) {
		perPageQuery = r.URL.Query().Get("per_page")
		writeJSON(w, http.StatusOK, `[
			{"id": 1, "active": true, "events": ["push"], "config": {"url": "https://ci.example.com/hook", "content_type": "json"}},
			{"id": 2, "active": false, "events": ["pull_request"], "config": {"url": "https://chat.example.com/hook"}}
		]`)
	})

	c := newTestClient(t, mux)

	hooks, err := c.ListWebhooks(context.Background(), "octo", "site")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hooks) != 2 {
		t.Fatalf("hooks = %d, want 2", len(hooks))
	}
	if hooks[0].URL != "https://ci.example.com/hook" || !hooks[0].Active {
		t.Errorf("hooks[0] = %+v", hooks[0])
	}
	if hooks[1].ID != 2 || hooks[1].Active {
		t.Errorf("hooks[1] = %+v", hooks[1])
	}
	if len(hooks[1].Events) != 1 || hooks[1].Events[0] != "pull_request" {
		t.Errorf("hooks[1].Events = %v", hooks[1].Events)
	}
	if perPageQuery != "100" {
		t.Errorf("per_page = %q, want 100", perPageQuery)
	}
}

func TestListWebhooksForbidden(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/site/hooks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, `{"message": "Must have admin rights to Repository."}`)
	})

	c := newTestClient(t, mux)

	_, err := c.ListWebhooks(context.Background(), "octo", "site")
	if !errors.Is(err, codehost.ErrPermission) {
		t.Fatalf("err = %v, want ErrPermission", err)
	}
}

func TestListOwnRepositories(t *testing.T) {
	var query url.Values

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user/repos", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		writeJSON(w, http.StatusOK, `[
			{"name": "site", "full_name": "octo/site", "default_branch": "main", "owner": {"login": "octo"}},
			{"name": "infra", "full_name": "octo/infra", "default_branch": "master", "owner": {"login": "octo"}}
		]`)
	})

	c := newTestClient(t, mux)

	repos, err := c.ListOwnRepositories(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query.Get("visibility") != "public" || query.Get("affiliation") != "owner" {
		t.Errorf("query = %v", query)
	}
	if len(repos) != 2 || repos[1].Name != "infra" || repos[1].DefaultBranch != "master" {
		t.Errorf("repos = %+v", repos)
	}
}

func TestNewEnterprise(t *testing.T) {
	c, err := New(Config{BaseURL: "https://git.corp.example.com/api/v3/"}, codehost.Credential{Token: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.gh.BaseURL.String(); got != "https://git.corp.example.com/api/v3/" {
		t.Errorf("base url = %q", got)
	}
}
