package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/casefile/internal/core/domain"
	"github.com/kirillkom/casefile/internal/core/ports"
)

type SynthesizeCaseUseCase struct {
	docs            ports.DocumentRepository
	syntheses       ports.SynthesisRepository
	synthesizer     ports.CaseSynthesizer
	defaultLanguage string
}

func NewSynthesizeCaseUseCase(
	docs ports.DocumentRepository,
	syntheses ports.SynthesisRepository,
	synthesizer ports.CaseSynthesizer,
	defaultLanguage string,
) *SynthesizeCaseUseCase {
	return &SynthesizeCaseUseCase{
		docs:            docs,
		syntheses:       syntheses,
		synthesizer:     synthesizer,
		defaultLanguage: defaultLanguage,
	}
}

func (uc *SynthesizeCaseUseCase) Get(ctx context.Context, caseID string) (*domain.Synthesis, error) {
	return uc.syntheses.GetByCase(ctx, caseID, domain.SynthesisOverall)
}

// Regenerate rebuilds the case aggregate from every completed document the
// case has, regardless of which batch produced it. User overrides survive
// regeneration verbatim; when the last completed document is gone the stored
// row is deleted rather than left stale.
func (uc *SynthesizeCaseUseCase) Regenerate(ctx context.Context, caseID, language string) (*domain.Synthesis, error) {
	if strings.TrimSpace(language) == "" {
		language = uc.defaultLanguage
	}

	docs, err := uc.docs.ListCompletedByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("list completed documents: %w", err)
	}

	if len(docs) == 0 {
		deleted, err := uc.syntheses.DeleteByCase(ctx, caseID, domain.SynthesisOverall)
		if err != nil {
			return nil, fmt.Errorf("delete stale synthesis: %w", err)
		}
		if deleted {
			slog.Info("synthesis_deleted", "case_id", caseID, "reason", "no completed documents")
		}
		return nil, nil
	}

	result := uc.synthesizer.Synthesize(ctx, caseID, docs, language)

	prior, err := uc.syntheses.GetByCase(ctx, caseID, domain.SynthesisOverall)
	if err != nil && !domain.IsKind(err, domain.ErrSynthesisNotFound) {
		return nil, fmt.Errorf("load prior synthesis: %w", err)
	}
	if prior != nil && len(prior.Overrides) > 0 {
		result.Overrides = prior.Overrides
	}

	result.CaseID = caseID
	result.Category = domain.SynthesisOverall
	result.UpdatedAt = time.Now().UTC()

	if err := uc.syntheses.Upsert(ctx, result); err != nil {
		return nil, fmt.Errorf("store synthesis: %w", err)
	}
	return result, nil
}

// ApplyOverrides merges user corrections into the stored aggregate without
// touching the generated fields.
func (uc *SynthesizeCaseUseCase) ApplyOverrides(ctx context.Context, caseID string, patch map[string]any) (*domain.Synthesis, error) {
	if len(patch) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "apply overrides", errors.New("empty patch"))
	}

	current, err := uc.syntheses.GetByCase(ctx, caseID, domain.SynthesisOverall)
	if err != nil {
		return nil, err
	}

	merged, err := domain.MergeOverrides(current.Overrides, patch)
	if err != nil {
		return nil, err
	}

	current.Overrides = merged
	current.UpdatedAt = time.Now().UTC()

	if err := uc.syntheses.Upsert(ctx, current); err != nil {
		return nil, fmt.Errorf("store overrides: %w", err)
	}
	return current, nil
}
