package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/casefile/internal/core/domain"
	"github.com/kirillkom/casefile/internal/infrastructure/llm/jsonrepair"
)

const synthesisMaxTokens = 1500

type Synthesizer struct {
	client *Client
}

func NewSynthesizer(client *Client) *Synthesizer {
	return &Synthesizer{client: client}
}

// Synthesize builds the case-level aggregate from every completed document.
// Any failure degrades to a placeholder synthesis rather than an error; the
// documents themselves already hold their individual results.
func (s *Synthesizer) Synthesize(ctx context.Context, caseID string, docs []domain.Document, language string) *domain.Synthesis {
	digest := buildDocumentDigest(docs)

	response, err := s.client.generate(ctx, generateRequest{
		prompt:    buildSynthesisPrompt(len(docs), language, digest),
		maxTokens: synthesisMaxTokens,
	})
	if err != nil {
		slog.Warn("synthesis_degraded", "case_id", caseID, "stage", "generate", "error", err)
		return domain.DegradedSynthesis(caseID, domain.SynthesisOverall, len(docs))
	}

	var result domain.Synthesis
	if err := json.Unmarshal([]byte(jsonrepair.Extract(response)), &result); err != nil {
		slog.Warn("synthesis_degraded", "case_id", caseID, "stage", "decode", "error", err)
		return domain.DegradedSynthesis(caseID, domain.SynthesisOverall, len(docs))
	}

	result.CaseID = caseID
	result.Category = domain.SynthesisOverall
	if result.RiskLevel == "" {
		result.RiskLevel = "unknown"
	}
	if result.KeyFindings == nil {
		result.KeyFindings = []string{}
	}
	if result.Recommendations == nil {
		result.Recommendations = []string{}
	}
	if result.AnnualCostBreakdown == nil {
		result.AnnualCostBreakdown = map[string]float64{}
	}
	if result.OneTimeCostBreakdown == nil {
		result.OneTimeCostBreakdown = map[string]float64{}
	}
	if result.CrossDocumentThemes == nil {
		result.CrossDocumentThemes = []string{}
	}
	return &result
}

func buildDocumentDigest(docs []domain.Document) string {
	var builder strings.Builder
	for _, doc := range docs {
		summary := doc.Summary
		if summary == "" && doc.Extraction != nil {
			summary = doc.Extraction.Summary
		}
		fmt.Fprintf(&builder, "- %s (%s): %s\n", doc.Filename, doc.Category, summary)
		if doc.AnnualCost > 0 {
			fmt.Fprintf(&builder, "  annual cost: %.2f\n", doc.AnnualCost)
		}
		for _, cost := range doc.OneTimeCosts {
			fmt.Fprintf(&builder, "  one-time: %s %.2f\n", cost.Description, cost.Amount)
		}
	}
	return builder.String()
}
