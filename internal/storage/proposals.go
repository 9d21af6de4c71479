package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Status is the lifecycle of a recorded proposal. The first three are set
// by the proposal service, merged and closed by the pull request webhook.
type Status string

const (
	StatusRunning Status = "running"
	StatusOpen    Status = "open"
	StatusFailed  Status = "failed"
	StatusMerged  Status = "merged"
	StatusClosed  Status = "closed"
)

// ProposalRecord is one proposal run as kept in history.
type ProposalRecord struct {
	ID          string     `json:"id"`
	Repo        string     `json:"repo"` // owner/name
	Purpose     string     `json:"purpose"`
	Path        string     `json:"path"`
	Summary     string     `json:"summary"`
	Status      Status     `json:"status"`
	Phase       string     `json:"phase,omitempty"`
	FailedStep  string     `json:"failed_step,omitempty"`
	Error       string     `json:"error,omitempty"`
	Branch      string     `json:"branch,omitempty"`
	BaseSHA     string     `json:"base_sha,omitempty"`
	Mode        string     `json:"mode,omitempty"`
	CommitSHA   string     `json:"commit_sha,omitempty"`
	PRNumber    int        `json:"pr_number,omitempty"`
	PRURL       string     `json:"pr_url,omitempty"`
	Warnings    []string   `json:"warnings,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// NewProposalRecord returns a running record with a fresh ID.
func NewProposalRecord(repo, purpose, path, summary string, now time.Time) *ProposalRecord {
	return &ProposalRecord{
		ID:        uuid.NewString(),
		Repo:      repo,
		Purpose:   purpose,
		Path:      path,
		Summary:   summary,
		Status:    StatusRunning,
		CreatedAt: now.UTC(),
	}
}

// ListFilter narrows ListProposals. Zero values match everything.
type ListFilter struct {
	Repo   string
	Status Status
	Since  time.Time
	Limit  int
}

// SaveProposal upserts a proposal. The full record is stored as JSON in
// the data column.
func (d *DB) SaveProposal(p *ProposalRecord) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal proposal: %w", err)
	}

	_, err = d.db.Exec(
		`INSERT INTO proposals (id, repo, purpose, branch, status, data, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			branch = excluded.branch,
			status = excluded.status,
			data = excluded.data,
			completed_at = excluded.completed_at`,
		p.ID, p.Repo, p.Purpose, p.Branch, string(p.Status), string(data),
		p.CreatedAt, p.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("save proposal %s: %w", p.ID, err)
	}
	return nil
}

// GetProposal retrieves a proposal by its ID. A missing ID yields nil, nil.
func (d *DB) GetProposal(id string) (*ProposalRecord, error) {
	var data string
	err := d.db.QueryRow("SELECT data FROM proposals WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal %s: %w", id, err)
	}
	return decodeProposal(data)
}

// FindByBranch returns the newest proposal of repo that created branch.
func (d *DB) FindByBranch(repo, branch string) (*ProposalRecord, error) {
	var data string
	err := d.db.QueryRow(
		`SELECT data FROM proposals WHERE repo = ? COLLATE NOCASE AND branch = ? ORDER BY created_at DESC LIMIT 1`,
		repo, branch,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find proposal %s@%s: %w", repo, branch, err)
	}
	return decodeProposal(data)
}

// ListProposals returns proposals ordered by creation time descending.
func (d *DB) ListProposals(f ListFilter) ([]ProposalRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.Repo != "" {
		where = append(where, "repo = ? COLLATE NOCASE")
		args = append(args, f.Repo)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}

	query := "SELECT data FROM proposals"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var out []ProposalRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		p, err := decodeProposal(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func decodeProposal(data string) (*ProposalRecord, error) {
	var p ProposalRecord
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("unmarshal proposal: %w", err)
	}
	return &p, nil
}
