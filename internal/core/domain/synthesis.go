package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SynthesisOverall is the Category value of the case-wide synthesis row.
const SynthesisOverall Category = ""

// Synthesis is the cross-document aggregate for one case. One row exists per
// (case, category) pair; the empty category is the overall view.
type Synthesis struct {
	CaseID   string   `json:"case_id"`
	Category Category `json:"category,omitempty"`

	Summary              string             `json:"summary"`
	RiskLevel            string             `json:"risk_level"`
	KeyFindings          []string           `json:"key_findings"`
	Recommendations      []string           `json:"recommendations"`
	AnnualCostBreakdown  map[string]float64 `json:"annual_cost_breakdown"`
	OneTimeCostBreakdown map[string]float64 `json:"one_time_cost_breakdown"`
	CrossDocumentThemes  []string           `json:"cross_document_themes"`

	// Overrides carries user-entered corrections verbatim. Regeneration
	// replaces every model-produced field but copies this blob forward
	// untouched.
	Overrides json.RawMessage `json:"overrides,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DegradedSynthesis is stored when aggregation itself fails. It keeps the row
// present so the api has something to show, flagged as unknown risk.
func DegradedSynthesis(caseID string, category Category, documentCount int) *Synthesis {
	return &Synthesis{
		CaseID:               caseID,
		Category:             category,
		Summary:              fmt.Sprintf("Synthesis could not be generated for %d analyzed document(s); manual review required.", documentCount),
		RiskLevel:            "unknown",
		KeyFindings:          []string{},
		Recommendations:      []string{},
		AnnualCostBreakdown:  map[string]float64{},
		OneTimeCostBreakdown: map[string]float64{},
		CrossDocumentThemes:  []string{},
	}
}

// MergeOverrides applies patch on top of the existing overrides blob, key by
// key at the top level. A null value removes the key.
func MergeOverrides(existing json.RawMessage, patch map[string]any) (json.RawMessage, error) {
	merged := map[string]any{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return nil, WrapError(ErrInvalidInput, "decode stored overrides", err)
		}
	}
	for key, value := range patch {
		if value == nil {
			delete(merged, key)
			continue
		}
		merged[key] = value
	}
	if len(merged) == 0 {
		return nil, nil
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode merged overrides: %w", err)
	}
	return out, nil
}
