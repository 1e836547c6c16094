package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/casefile/internal/core/domain"
)

type SynthesisRepository struct {
	db *sql.DB
}

func NewSynthesisRepository(db *sql.DB) *SynthesisRepository {
	return &SynthesisRepository{db: db}
}

func (r *SynthesisRepository) GetByCase(ctx context.Context, caseID string, category domain.Category) (*domain.Synthesis, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT case_id, category, summary, risk_level, key_findings, recommendations,
	annual_cost_breakdown, one_time_cost_breakdown, cross_document_themes, overrides, updated_at
FROM syntheses
WHERE case_id = $1 AND category = $2
`, caseID, string(category))

	var s domain.Synthesis
	var categoryRaw string
	var findingsRaw, recsRaw, annualRaw, oneTimeRaw, themesRaw []byte
	var overridesRaw []byte

	err := row.Scan(
		&s.CaseID, &categoryRaw, &s.Summary, &s.RiskLevel, &findingsRaw, &recsRaw,
		&annualRaw, &oneTimeRaw, &themesRaw, &overridesRaw, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSynthesisNotFound, "get synthesis", errors.New(caseID))
		}
		return nil, fmt.Errorf("scan synthesis: %w", err)
	}

	s.Category = domain.Category(categoryRaw)
	for _, field := range []struct {
		raw []byte
		out any
	}{
		{findingsRaw, &s.KeyFindings},
		{recsRaw, &s.Recommendations},
		{annualRaw, &s.AnnualCostBreakdown},
		{oneTimeRaw, &s.OneTimeCostBreakdown},
		{themesRaw, &s.CrossDocumentThemes},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.out); err != nil {
			return nil, fmt.Errorf("unmarshal synthesis field: %w", err)
		}
	}
	if len(overridesRaw) > 0 {
		s.Overrides = json.RawMessage(overridesRaw)
	}
	return &s, nil
}

func (r *SynthesisRepository) Upsert(ctx context.Context, synthesis *domain.Synthesis) error {
	findingsJSON, err := json.Marshal(emptyIfNilStrings(synthesis.KeyFindings))
	if err != nil {
		return fmt.Errorf("marshal key findings: %w", err)
	}
	recsJSON, err := json.Marshal(emptyIfNilStrings(synthesis.Recommendations))
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}
	annualJSON, err := json.Marshal(emptyIfNilMap(synthesis.AnnualCostBreakdown))
	if err != nil {
		return fmt.Errorf("marshal annual breakdown: %w", err)
	}
	oneTimeJSON, err := json.Marshal(emptyIfNilMap(synthesis.OneTimeCostBreakdown))
	if err != nil {
		return fmt.Errorf("marshal one-time breakdown: %w", err)
	}
	themesJSON, err := json.Marshal(emptyIfNilStrings(synthesis.CrossDocumentThemes))
	if err != nil {
		return fmt.Errorf("marshal themes: %w", err)
	}
	var overrides any
	if len(synthesis.Overrides) > 0 {
		overrides = []byte(synthesis.Overrides)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO syntheses (
	case_id, category, summary, risk_level, key_findings, recommendations,
	annual_cost_breakdown, one_time_cost_breakdown, cross_document_themes, overrides, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (case_id, category) DO UPDATE SET
	summary = EXCLUDED.summary,
	risk_level = EXCLUDED.risk_level,
	key_findings = EXCLUDED.key_findings,
	recommendations = EXCLUDED.recommendations,
	annual_cost_breakdown = EXCLUDED.annual_cost_breakdown,
	one_time_cost_breakdown = EXCLUDED.one_time_cost_breakdown,
	cross_document_themes = EXCLUDED.cross_document_themes,
	overrides = EXCLUDED.overrides,
	updated_at = EXCLUDED.updated_at
`,
		synthesis.CaseID, string(synthesis.Category), synthesis.Summary, synthesis.RiskLevel,
		findingsJSON, recsJSON, annualJSON, oneTimeJSON, themesJSON, overrides, synthesis.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert synthesis: %w", err)
	}
	return nil
}

func (r *SynthesisRepository) DeleteByCase(ctx context.Context, caseID string, category domain.Category) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM syntheses WHERE case_id = $1 AND category = $2`, caseID, string(category))
	if err != nil {
		return false, fmt.Errorf("delete synthesis: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete synthesis rows: %w", err)
	}
	return affected > 0, nil
}

func emptyIfNilMap(values map[string]float64) map[string]float64 {
	if values == nil {
		return map[string]float64{}
	}
	return values
}
