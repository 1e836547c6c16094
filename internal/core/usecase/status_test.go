package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/casefile/internal/core/domain"
)

type statusDocsFake struct {
	submitRepoFake

	docs []domain.Document
}

func (f *statusDocsFake) ListByBatch(context.Context, string) ([]domain.Document, error) {
	return f.docs, nil
}

func TestBatchStatusAggregatesMembers(t *testing.T) {
	docs := []domain.Document{
		{ID: "a", CaseID: "case-1", Status: domain.StatusCompleted},
		{ID: "b", CaseID: "case-1", Status: domain.StatusProcessing},
	}
	store := &synthStoreFake{stored: &domain.Synthesis{CaseID: "case-1", Summary: "so far"}}
	uc := NewBatchStatusUseCase(&statusDocsFake{docs: docs}, store)

	report, err := uc.BatchStatus(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("BatchStatus() error = %v", err)
	}
	if report.Status != domain.BatchProcessing {
		t.Fatalf("status = %s, want processing", report.Status)
	}
	if report.Progress.Percentage != 50 {
		t.Fatalf("percentage = %d, want 50", report.Progress.Percentage)
	}
	if report.CaseID != "case-1" {
		t.Fatalf("case id = %q", report.CaseID)
	}
	if report.Synthesis == nil || report.Synthesis.Summary != "so far" {
		t.Fatal("expected interim synthesis attached")
	}
}

func TestBatchStatusUnknownBatch(t *testing.T) {
	uc := NewBatchStatusUseCase(&statusDocsFake{}, &synthStoreFake{})

	_, err := uc.BatchStatus(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrBatchNotFound) {
		t.Fatalf("expected batch not found, got %v", err)
	}
}

func TestBatchStatusToleratesMissingSynthesis(t *testing.T) {
	docs := []domain.Document{{ID: "a", CaseID: "case-1", Status: domain.StatusFailed}}
	uc := NewBatchStatusUseCase(&statusDocsFake{docs: docs}, &synthStoreFake{})

	report, err := uc.BatchStatus(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("BatchStatus() error = %v", err)
	}
	if report.Status != domain.BatchFailed {
		t.Fatalf("status = %s, want failed", report.Status)
	}
	if report.Synthesis != nil {
		t.Fatal("expected no synthesis")
	}
}

func TestBatchStatusPropagatesRepoErrors(t *testing.T) {
	fakeErr := errors.New("db down")
	failing := &failingDocsFake{err: fakeErr}

	uc := NewBatchStatusUseCase(failing, &synthStoreFake{})
	_, err := uc.BatchStatus(context.Background(), "batch-1")
	if !errors.Is(err, fakeErr) {
		t.Fatalf("expected wrapped repo error, got %v", err)
	}
}

type failingDocsFake struct {
	submitRepoFake

	err error
}

func (f *failingDocsFake) ListByBatch(context.Context, string) ([]domain.Document, error) {
	return nil, f.err
}
