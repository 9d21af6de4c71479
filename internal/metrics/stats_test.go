package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/rigdev/repogov/internal/storage"
)

func TestCalculate(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}

	records := []storage.ProposalRecord{
		{ID: "open", Status: storage.StatusOpen, CreatedAt: now.Add(-48 * time.Hour), CompletedAt: at(-48*time.Hour + 4*time.Second)},
		{ID: "merged", Status: storage.StatusMerged, CreatedAt: now.Add(-24 * time.Hour), CompletedAt: at(-24*time.Hour + 2*time.Second), ClosedAt: at(-12 * time.Hour)},
		{ID: "failed-1", Status: storage.StatusFailed, FailedStep: "create-branch", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "failed-2", Status: storage.StatusFailed, FailedStep: "create-branch", CreatedAt: now.Add(-time.Hour)},
		{ID: "running", Status: storage.StatusRunning, CreatedAt: now.Add(-time.Minute)},
		{ID: "old", Status: storage.StatusFailed, FailedStep: "write-content", CreatedAt: now.Add(-45 * 24 * time.Hour)},
	}

	s := Calculate(records, now)

	if s.Total != 5 {
		t.Errorf("Total = %d, want 5", s.Total)
	}
	if s.Open != 1 || s.Merged != 1 || s.Failed != 2 || s.Running != 1 {
		t.Errorf("counts = %+v", s)
	}
	if math.Abs(s.SuccessRate-50.0) > 0.001 {
		t.Errorf("SuccessRate = %f, want 50", s.SuccessRate)
	}
	if s.FailuresByStep["create-branch"] != 2 {
		t.Errorf("FailuresByStep = %v", s.FailuresByStep)
	}
	if _, ok := s.FailuresByStep["write-content"]; ok {
		t.Error("records outside the window must not be counted")
	}
	if s.MeanTimeToPR != 3*time.Second {
		t.Errorf("MeanTimeToPR = %v, want 3s", s.MeanTimeToPR)
	}
	if s.MeanTimeToMerge != 12*time.Hour {
		t.Errorf("MeanTimeToMerge = %v, want 12h", s.MeanTimeToMerge)
	}
}

func TestCalculateEmpty(t *testing.T) {
	s := Calculate(nil, time.Now())
	if s.Total != 0 || s.SuccessRate != 0 || s.MeanTimeToPR != 0 {
		t.Errorf("expected zero stats, got %+v", s)
	}
	if s.FailuresByStep == nil {
		t.Error("FailuresByStep should be an empty map, not nil")
	}
}
