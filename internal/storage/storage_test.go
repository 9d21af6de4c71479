package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// --- Proposals ---

func TestProposals_SaveAndGet(t *testing.T) {
	db := testDB(t)

	p := NewProposalRecord("octo/site", "collaborator-add", "terraform-module/collaborator_octocat.tf", "Add octocat", base)
	p.Warnings = []string{"content is large"}
	if err := db.SaveProposal(p); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.GetProposal(p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected proposal, got nil")
	}
	if got.Repo != "octo/site" || got.Purpose != "collaborator-add" {
		t.Errorf("got %+v", got)
	}
	if got.Status != StatusRunning {
		t.Errorf("status = %q, want %q", got.Status, StatusRunning)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, base)
	}
	if len(got.Warnings) != 1 {
		t.Errorf("warnings = %v", got.Warnings)
	}
}

func TestProposals_GetMissing(t *testing.T) {
	db := testDB(t)

	got, err := db.GetProposal("nonexistent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestProposals_IDsAreUnique(t *testing.T) {
	a := NewProposalRecord("octo/site", "p", "a", "", base)
	b := NewProposalRecord("octo/site", "p", "a", "", base)
	if a.ID == b.ID {
		t.Fatalf("expected distinct IDs, both %s", a.ID)
	}
}

func TestProposals_Upsert(t *testing.T) {
	db := testDB(t)

	p := NewProposalRecord("octo/site", "propose", "a.txt", "", base)
	if err := db.SaveProposal(p); err != nil {
		t.Fatalf("save running: %v", err)
	}

	done := base.Add(3 * time.Second)
	p.Status = StatusOpen
	p.Branch = "propose-20240301120000"
	p.PRNumber = 7
	p.CompletedAt = &done
	if err := db.SaveProposal(p); err != nil {
		t.Fatalf("save open: %v", err)
	}

	all, err := db.ListProposals(ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 proposal after upsert, got %d", len(all))
	}
	if all[0].Status != StatusOpen || all[0].PRNumber != 7 {
		t.Errorf("got %+v", all[0])
	}
}

func TestProposals_ListFilters(t *testing.T) {
	db := testDB(t)

	records := []*ProposalRecord{
		NewProposalRecord("octo/site", "a", "a", "", base),
		NewProposalRecord("octo/site", "b", "b", "", base.Add(time.Hour)),
		NewProposalRecord("octo/infra", "c", "c", "", base.Add(2*time.Hour)),
	}
	records[1].Status = StatusFailed
	for _, r := range records {
		if err := db.SaveProposal(r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	all, err := db.ListProposals(ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].Purpose != "c" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	site, _ := db.ListProposals(ListFilter{Repo: "OCTO/site"})
	if len(site) != 2 {
		t.Errorf("repo filter: got %d, want 2", len(site))
	}

	failed, _ := db.ListProposals(ListFilter{Status: StatusFailed})
	if len(failed) != 1 || failed[0].Purpose != "b" {
		t.Errorf("status filter: got %+v", failed)
	}

	recent, _ := db.ListProposals(ListFilter{Since: base.Add(30 * time.Minute)})
	if len(recent) != 2 {
		t.Errorf("since filter: got %d, want 2", len(recent))
	}

	limited, _ := db.ListProposals(ListFilter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit: got %d, want 1", len(limited))
	}
}

func TestProposals_FindByBranch(t *testing.T) {
	db := testDB(t)

	p := NewProposalRecord("octo/site", "propose", "a.txt", "", base)
	p.Branch = "propose-20240301120000"
	p.Status = StatusOpen
	if err := db.SaveProposal(p); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.FindByBranch("octo/site", "propose-20240301120000")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got == nil || got.ID != p.ID {
		t.Fatalf("got %+v, want %s", got, p.ID)
	}

	missing, err := db.FindByBranch("octo/infra", "propose-20240301120000")
	if err != nil {
		t.Fatalf("find other repo: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for other repo, got %+v", missing)
	}
}

// --- Logs ---

func TestLogs_AppendAndGet(t *testing.T) {
	db := testDB(t)

	db.AppendLog("p-1", base, "info", "default branch main at abc123")
	db.AppendLog("p-1", base.Add(time.Second), "error", "create-branch failed")

	logs, err := db.GetLogs("p-1")
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if logs[0].Message != "default branch main at abc123" {
		t.Errorf("first message = %q", logs[0].Message)
	}
	if logs[1].Level != "error" {
		t.Errorf("second level = %q, want error", logs[1].Level)
	}
	if !logs[1].Timestamp.Equal(base.Add(time.Second)) {
		t.Errorf("timestamp = %v", logs[1].Timestamp)
	}
}

func TestLogs_GetSince(t *testing.T) {
	db := testDB(t)

	db.AppendLog("p-1", base, "info", "one")
	db.AppendLog("p-1", base, "info", "two")
	db.AppendLog("p-1", base, "info", "three")

	all, _ := db.GetLogs("p-1")
	since, err := db.GetLogsSince("p-1", all[0].ID)
	if err != nil {
		t.Fatalf("get since: %v", err)
	}
	if len(since) != 2 || since[0].Message != "two" {
		t.Errorf("got %+v", since)
	}
}

func TestLogs_IsolationByProposal(t *testing.T) {
	db := testDB(t)

	db.AppendLog("p-1", base, "info", "mine")
	db.AppendLog("p-2", base, "info", "theirs")

	logs, _ := db.GetLogs("p-1")
	if len(logs) != 1 || logs[0].Message != "mine" {
		t.Errorf("got %+v", logs)
	}
}

// --- Open ---

func TestOpen_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deeper")
	db, err := Open(filepath.Join(dir, "repogov.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected directory to exist: %v", err)
	}
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repogov.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	p := NewProposalRecord("octo/site", "propose", "a.txt", "", base)
	if err := db.SaveProposal(p); err != nil {
		t.Fatalf("save: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	got, err := db.GetProposal(p.ID)
	if err != nil || got == nil {
		t.Fatalf("get after reopen: %v, %v", got, err)
	}
}
