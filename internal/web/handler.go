// Package web serves the JSON API over the repository directory and the
// proposal service.
package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	json "github.com/goccy/go-json"
	logger "github.com/sirupsen/logrus"

	"github.com/rigdev/repogov/internal/artifact"
	"github.com/rigdev/repogov/internal/codec"
	"github.com/rigdev/repogov/internal/codehost"
	"github.com/rigdev/repogov/internal/core"
	"github.com/rigdev/repogov/internal/directory"
	"github.com/rigdev/repogov/internal/metrics"
	"github.com/rigdev/repogov/internal/proposal"
	"github.com/rigdev/repogov/internal/storage"
)

const maxBodyBytes = 10 << 20

// History is the read side of the proposal store.
type History interface {
	GetProposal(id string) (*storage.ProposalRecord, error)
	ListProposals(f storage.ListFilter) ([]storage.ProposalRecord, error)
	GetLogs(proposalID string) ([]storage.LogEntry, error)
}

// Deps are the collaborators of the API handler.
type Deps struct {
	Service   *core.Service
	Directory *directory.Directory
	History   History // optional; history routes answer 404 without it

	// Token is used when a request carries no Authorization header.
	Token          string
	AllowedOrigins []string
	Clock          func() time.Time
	Log            logger.FieldLogger
}

type api struct {
	Deps
}

// NewHandler creates an http.Handler that serves the API.
func NewHandler(deps Deps) http.Handler {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Log == nil {
		deps.Log = logger.StandardLogger()
	}
	a := &api{Deps: deps}

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
		r.Use(bodySizeLimitMiddleware(maxBodyBytes))

		r.Get("/repos", a.handleListRepos)
		r.Route("/repos/{owner}/{name}", func(r chi.Router) {
			r.Get("/settings", a.handleSettings)
			r.Get("/contents", a.handleContents)
			r.Post("/proposals", a.handlePropose)
			r.Post("/collaborators", a.handleCollaborator)
			r.Post("/gitignore", a.handleGitignore)
		})
		r.Get("/proposals", a.handleListProposals)
		r.Get("/proposals/{id}", a.handleGetProposal)
		r.Get("/stats", a.handleStats)
	})

	return r
}

// credential takes the bearer token of the request, falling back to the
// configured token.
func (a *api) credential(r *http.Request) codehost.Credential {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	for _, scheme := range []string{"Bearer ", "bearer ", "token "} {
		if tok, ok := strings.CutPrefix(auth, scheme); ok && strings.TrimSpace(tok) != "" {
			return codehost.Credential{Token: strings.TrimSpace(tok)}
		}
	}
	return codehost.Credential{Token: a.Token}
}

func repoRef(r *http.Request) proposal.RepositoryRef {
	return proposal.RepositoryRef{Owner: chi.URLParam(r, "owner"), Name: chi.URLParam(r, "name")}
}

type repoListResponse struct {
	Repositories []codehost.Repository `json:"repositories"`
	Error        string                `json:"error,omitempty"`
}

func (a *api) handleListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := a.Directory.List(r.Context(), a.credential(r))
	if err != nil && len(repos) == 0 {
		a.writeError(w, err)
		return
	}
	resp := repoListResponse{Repositories: repos}
	if resp.Repositories == nil {
		resp.Repositories = []codehost.Repository{}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type settingsResponse struct {
	*directory.Settings
	Error string `json:"error,omitempty"`
}

func (a *api) handleSettings(w http.ResponseWriter, r *http.Request) {
	ref := repoRef(r)
	settings, err := a.Directory.Inspect(r.Context(), a.credential(r), ref.Owner, ref.Name)
	if settings == nil {
		a.writeError(w, err)
		return
	}
	resp := settingsResponse{Settings: settings}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) handleContents(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "path query parameter is required"})
		return
	}
	file, err := a.Service.ReadFile(r.Context(), a.credential(r), repoRef(r), path, r.URL.Query().Get("ref"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

type proposeRequest struct {
	Purpose  string `json:"purpose"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"` // "" or "base64"
	Summary  string `json:"summary"`
}

func (a *api) handlePropose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	content := []byte(req.Content)
	switch req.Encoding {
	case "":
	case "base64":
		decoded, err := codec.Decode(req.Content)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		content = decoded
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown encoding " + strconv.Quote(req.Encoding)})
		return
	}

	out, err := a.Service.Propose(r.Context(), a.credential(r), repoRef(r), proposal.ProposedChange{
		Purpose: req.Purpose,
		Path:    req.Path,
		Content: content,
		Summary: req.Summary,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (a *api) handleCollaborator(w http.ResponseWriter, r *http.Request) {
	var req artifact.Collaborator
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := a.Service.ProposeCollaborator(r.Context(), a.credential(r), repoRef(r), req)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

type gitignoreRequest struct {
	Entries []string `json:"entries"`
}

func (a *api) handleGitignore(w http.ResponseWriter, r *http.Request) {
	var req gitignoreRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := a.Service.UpdateGitignore(r.Context(), a.credential(r), repoRef(r), req.Entries)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (a *api) handleListProposals(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "history is disabled"})
		return
	}
	q := r.URL.Query()
	f := storage.ListFilter{Repo: q.Get("repo"), Status: storage.Status(q.Get("status"))}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		f.Limit = n
	}

	records, err := a.History.ListProposals(f)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if records == nil {
		records = []storage.ProposalRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

type proposalDetail struct {
	*storage.ProposalRecord
	Logs []storage.LogEntry `json:"logs"`
}

func (a *api) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "history is disabled"})
		return
	}
	id := chi.URLParam(r, "id")
	rec, err := a.History.GetProposal(id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "proposal not found"})
		return
	}
	logs, err := a.History.GetLogs(id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if logs == nil {
		logs = []storage.LogEntry{}
	}
	writeJSON(w, http.StatusOK, proposalDetail{ProposalRecord: rec, Logs: logs})
}

func (a *api) handleStats(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "history is disabled"})
		return
	}
	now := a.Clock()
	records, err := a.History.ListProposals(storage.ListFilter{Since: now.Add(-metrics.Window)})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics.Calculate(records, now))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// bodySizeLimitMiddleware limits the request body size.
func bodySizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("[web] JSON encode error: %v", err)
	}
}
