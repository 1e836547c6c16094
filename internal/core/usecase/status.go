package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/casefile/internal/core/domain"
	"github.com/kirillkom/casefile/internal/core/ports"
)

type BatchStatusUseCase struct {
	docs      ports.DocumentRepository
	syntheses ports.SynthesisRepository
}

func NewBatchStatusUseCase(docs ports.DocumentRepository, syntheses ports.SynthesisRepository) *BatchStatusUseCase {
	return &BatchStatusUseCase{docs: docs, syntheses: syntheses}
}

// BatchStatus folds member documents into the batch-level view. The batch has
// no row of its own; an unknown id is simply a batch with no members.
func (uc *BatchStatusUseCase) BatchStatus(ctx context.Context, batchID string) (*ports.BatchStatusReport, error) {
	docs, err := uc.docs.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, domain.WrapError(domain.ErrBatchNotFound, "batch status", errors.New(batchID))
	}

	report := &ports.BatchStatusReport{
		BatchID:   batchID,
		CaseID:    docs[0].CaseID,
		Status:    domain.DeriveBatchStatus(docs),
		Progress:  domain.ComputeProgress(docs),
		Documents: docs,
	}

	synthesis, err := uc.syntheses.GetByCase(ctx, report.CaseID, domain.SynthesisOverall)
	if err != nil && !domain.IsKind(err, domain.ErrSynthesisNotFound) {
		return nil, fmt.Errorf("load synthesis: %w", err)
	}
	report.Synthesis = synthesis

	return report, nil
}
