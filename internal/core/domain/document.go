package domain

import (
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// CanTransition reports whether the status machine allows moving from s to
// next. Statuses only move forward; terminal states never change.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Category string

const (
	CategoryFiling       Category = "filing"
	CategoryInspection   Category = "inspection"
	CategoryTaxNotice    Category = "tax_notice"
	CategoryFeeStatement Category = "fee_statement"
	CategoryOther        Category = "other"
)

// Categories lists every category a classifier may assign, in prompt order.
func Categories() []Category {
	return []Category{
		CategoryFiling,
		CategoryInspection,
		CategoryTaxNotice,
		CategoryFeeStatement,
		CategoryOther,
	}
}

// ParseCategory maps a raw model label onto the closed category set. Anything
// outside the set, including an empty label, collapses to CategoryOther.
func ParseCategory(raw string) Category {
	switch Category(normalizeLabel(raw)) {
	case CategoryFiling:
		return CategoryFiling
	case CategoryInspection:
		return CategoryInspection
	case CategoryTaxNotice:
		return CategoryTaxNotice
	case CategoryFeeStatement:
		return CategoryFeeStatement
	default:
		return CategoryOther
	}
}

func normalizeLabel(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	label = strings.Trim(label, `"'.`)
	return strings.ReplaceAll(label, " ", "_")
}

type Document struct {
	ID         string `json:"id"`
	CaseID     string `json:"case_id"`
	BatchID    string `json:"batch_id,omitempty"`
	Filename   string `json:"filename"`
	StorageKey string `json:"storage_key"`

	Category    Category    `json:"category,omitempty"`
	Subcategory string      `json:"subcategory,omitempty"`
	Extraction  *Extraction `json:"extraction,omitempty"`

	Summary      string     `json:"summary,omitempty"`
	KeyInsights  []string   `json:"key_insights,omitempty"`
	AnnualCost   float64    `json:"annual_cost,omitempty"`
	OneTimeCosts []CostItem `json:"one_time_costs,omitempty"`

	PageCount       int  `json:"page_count"`
	TextExtractable bool `json:"text_extractable"`

	Status                DocumentStatus `json:"status"`
	ProcessingError       string         `json:"processing_error,omitempty"`
	ProcessingStartedAt   *time.Time     `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time     `json:"processing_completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Prepared is what the preparer learned about a raw file before analysis.
// Text is empty when the file is not a readable PDF; that is not an error,
// the document simply goes to the model as binary content.
type Prepared struct {
	PageCount       int
	Text            string
	TextExtractable bool
}
