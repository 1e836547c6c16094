package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/casefile/internal/core/domain"
)

const classifyPromptTemplate = `You are sorting case documents for a property file.
Classify the document %q into exactly one of these categories:

- filing: minutes or resolutions of a formal assembly or filing
- inspection: technical inspection, survey or diagnostic report
- tax_notice: a tax assessment or demand from an authority
- fee_statement: a statement of recurring charges or service fees
- other: anything that fits none of the above

Respond with the category name only, lowercase, no punctuation.

Document content:
%s`

func buildClassifyPrompt(filename, text string) string {
	return fmt.Sprintf(classifyPromptTemplate, filename, clip(text, 4000))
}

const extractPreamble = `You are extracting facts from the case document %q (category: %s).
Respond in %s with a single JSON object and nothing else. The object must contain:
  "summary": string, two or three sentences,
  "key_insights": array of short strings,
  "annual_cost": number, total recurring yearly cost in the document (0 if none),
  "one_time_costs": array of {"description", "amount", "timeline", "urgency"},
  "subcategory": string, a short free-form refinement of the category`

var extractDetails = map[domain.Category]string{
	domain.CategoryFiling: `,
  "filing": {"filing_date": string, "decisions": array of strings, "upcoming_actions": array of {"description", "amount", "timeline", "urgency"}}`,
	domain.CategoryInspection: `,
  "inspection": {"inspection_date": string, "compliance_status": string, "issues": array of {"issue", "severity", "location", "estimated_fix_cost"}}`,
	domain.CategoryTaxNotice: `,
  "levy": {"document_year": string, "total_amount": number, "breakdown": object of label to amount, "payment_schedule": array of {"date", "amount"}}`,
	domain.CategoryFeeStatement: `,
  "levy": {"document_year": string, "total_amount": number, "breakdown": object of label to amount, "payment_schedule": array of {"date", "amount"}}`,
}

func buildExtractPrompt(filename string, category domain.Category, language, text string) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf(extractPreamble, filename, category, languageName(language)))
	if detail, ok := extractDetails[category]; ok {
		builder.WriteString(detail)
	}
	builder.WriteString("\n\nAmounts are plain numbers without thousand separators or currency symbols.")
	if text != "" {
		builder.WriteString("\n\nDocument content:\n")
		builder.WriteString(clip(text, 20000))
	} else {
		builder.WriteString("\n\nThe document is attached as raw content.")
	}
	return builder.String()
}

const synthesisPromptTemplate = `You are writing the case-level synthesis over %d analyzed documents.
Respond in %s with a single JSON object and nothing else:
  "summary": string, the overall picture in a short paragraph,
  "risk_level": one of "low", "medium", "high",
  "key_findings": array of short strings,
  "recommendations": array of short strings,
  "annual_cost_breakdown": object mapping category to yearly amount,
  "one_time_cost_breakdown": object mapping category to one-time amount,
  "cross_document_themes": array of short strings naming issues seen in more than one document

Per-document results:
%s`

func buildSynthesisPrompt(docCount int, language, digest string) string {
	return fmt.Sprintf(synthesisPromptTemplate, docCount, languageName(language), digest)
}

func languageName(code string) string {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "", "en", "english":
		return "English"
	case "fr", "french":
		return "French"
	case "de", "german":
		return "German"
	case "es", "spanish":
		return "Spanish"
	default:
		return code
	}
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
