package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/casefile/internal/core/domain"
	"github.com/kirillkom/casefile/internal/core/ports"
)

// SynthesisRegenerator is the slice of the synthesis service the batch
// pipeline needs after its documents settle.
type SynthesisRegenerator interface {
	Regenerate(ctx context.Context, caseID, language string) (*domain.Synthesis, error)
}

type ProcessBatchUseCase struct {
	repo        ports.DocumentRepository
	storage     ports.ObjectStorage
	preparer    ports.DocumentPreparer
	classifier  ports.DocumentClassifier
	extractor   ports.FactExtractor
	synthesizer SynthesisRegenerator

	maxConcurrency int
}

func NewProcessBatchUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	preparer ports.DocumentPreparer,
	classifier ports.DocumentClassifier,
	extractor ports.FactExtractor,
	synthesizer SynthesisRegenerator,
	maxConcurrency int,
) *ProcessBatchUseCase {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &ProcessBatchUseCase{
		repo:           repo,
		storage:        storage,
		preparer:       preparer,
		classifier:     classifier,
		extractor:      extractor,
		synthesizer:    synthesizer,
		maxConcurrency: maxConcurrency,
	}
}

// memberState tracks one document through the batch pipeline. fetchErr is the
// per-document failure; anything recorded there stays isolated to that member.
type memberState struct {
	member   domain.BatchMember
	data     []byte
	prepared domain.Prepared
	fetchErr error
}

// ProcessBatch runs the whole pipeline for one submitted batch. Per-document
// failures mark only that document failed and the rest continue; persistence
// failures escape the per-document boundary and fail the entire batch.
func (uc *ProcessBatchUseCase) ProcessBatch(ctx context.Context, batch domain.Batch) error {
	if len(batch.Members) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "process batch", errors.New("batch has no members"))
	}

	if err := uc.markAllProcessing(ctx, batch); err != nil {
		return uc.failBatch(ctx, batch, err)
	}

	states, err := uc.fetchAndPrepare(ctx, batch)
	if err != nil {
		return uc.failBatch(ctx, batch, err)
	}

	if err := uc.analyzeAll(ctx, batch, states); err != nil {
		return uc.failBatch(ctx, batch, err)
	}

	if err := uc.synthesize(ctx, batch); err != nil {
		return uc.failBatch(ctx, batch, err)
	}
	return nil
}

func (uc *ProcessBatchUseCase) markAllProcessing(ctx context.Context, batch domain.Batch) error {
	for _, member := range batch.Members {
		if err := uc.repo.UpdateStatus(ctx, member.DocumentID, domain.StatusProcessing, ""); err != nil {
			return fmt.Errorf("set status=processing for %s: %w", member.DocumentID, err)
		}
	}
	return nil
}

// fetchAndPrepare downloads and inspects every member concurrently. Download
// failures are recorded per member; only repository errors abort the stage.
func (uc *ProcessBatchUseCase) fetchAndPrepare(ctx context.Context, batch domain.Batch) ([]*memberState, error) {
	states := make([]*memberState, len(batch.Members))
	for i, member := range batch.Members {
		states[i] = &memberState{member: member}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(uc.maxConcurrency)

	for _, state := range states {
		group.Go(func() error {
			data, err := uc.storage.Get(groupCtx, state.member.StorageKey)
			if err != nil {
				state.fetchErr = fmt.Errorf("download %s: %w", state.member.StorageKey, err)
				slog.Warn("document_download_failed",
					"batch_id", batch.ID,
					"document_id", state.member.DocumentID,
					"error", err,
				)
				return nil
			}
			state.data = data
			state.prepared = uc.preparer.Prepare(groupCtx, data)

			if err := uc.repo.SavePreparation(groupCtx, state.member.DocumentID, state.prepared); err != nil {
				return fmt.Errorf("save preparation for %s: %w", state.member.DocumentID, err)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return states, nil
}

// analyzeAll classifies and extracts each fetched member. Model trouble never
// fails a document here: classification falls back to the other category and
// extraction degrades inside the extractor.
func (uc *ProcessBatchUseCase) analyzeAll(ctx context.Context, batch domain.Batch, states []*memberState) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(uc.maxConcurrency)

	for _, state := range states {
		group.Go(func() error {
			if state.fetchErr != nil {
				if err := uc.repo.UpdateStatus(groupCtx, state.member.DocumentID, domain.StatusFailed, state.fetchErr.Error()); err != nil {
					return fmt.Errorf("mark %s failed: %w", state.member.DocumentID, err)
				}
				return nil
			}
			return uc.analyzeOne(groupCtx, batch, state)
		})
	}

	return group.Wait()
}

func (uc *ProcessBatchUseCase) analyzeOne(ctx context.Context, batch domain.Batch, state *memberState) error {
	category, err := uc.classifier.Classify(ctx, ports.ClassifyInput{
		Filename: state.member.Filename,
		Text:     state.prepared.Text,
		Raw:      state.data,
	})
	if err != nil {
		category = domain.CategoryOther
		slog.Warn("classification_fallback",
			"batch_id", batch.ID,
			"document_id", state.member.DocumentID,
			"error", err,
		)
	}

	extraction := uc.extractor.Extract(ctx, ports.ExtractInput{
		Filename: state.member.Filename,
		Category: category,
		Text:     state.prepared.Text,
		Raw:      state.data,
		Language: batch.OutputLanguage,
	})

	if err := uc.repo.SaveExtraction(ctx, state.member.DocumentID, category, extraction); err != nil {
		return fmt.Errorf("save extraction for %s: %w", state.member.DocumentID, err)
	}
	return nil
}

func (uc *ProcessBatchUseCase) synthesize(ctx context.Context, batch domain.Batch) error {
	if _, err := uc.synthesizer.Regenerate(ctx, batch.CaseID, batch.OutputLanguage); err != nil {
		return fmt.Errorf("regenerate synthesis: %w", err)
	}
	return nil
}

// failBatch records the fatal error on every member that has not already
// settled. Documents that completed before the failure keep their result.
func (uc *ProcessBatchUseCase) failBatch(ctx context.Context, batch domain.Batch, cause error) error {
	if markErr := uc.repo.MarkBatchFailed(ctx, batch.ID, cause.Error()); markErr != nil {
		return fmt.Errorf("%w; mark batch failed: %v", cause, markErr)
	}
	return cause
}
