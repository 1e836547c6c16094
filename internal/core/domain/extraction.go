package domain

import "fmt"

// CostItem is a single dated or undated expense pulled out of a document.
type CostItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Timeline    string  `json:"timeline,omitempty"`
	Urgency     string  `json:"urgency,omitempty"`
}

// Extraction holds the structured facts pulled from one document. The shared
// fields are filled for every category; exactly one of the detail pointers is
// set depending on what the document turned out to be.
type Extraction struct {
	Summary      string     `json:"summary"`
	KeyInsights  []string   `json:"key_insights"`
	AnnualCost   float64    `json:"annual_cost"`
	OneTimeCosts []CostItem `json:"one_time_costs"`
	Subcategory  string     `json:"subcategory,omitempty"`

	Filing     *FilingDetails     `json:"filing,omitempty"`
	Inspection *InspectionDetails `json:"inspection,omitempty"`
	Levy       *LevyDetails       `json:"levy,omitempty"`

	// Degraded marks extractions produced by the fallback path after the
	// model response could not be recovered.
	Degraded bool `json:"degraded,omitempty"`
}

type FilingDetails struct {
	FilingDate      string     `json:"filing_date,omitempty"`
	Decisions       []string   `json:"decisions,omitempty"`
	UpcomingActions []CostItem `json:"upcoming_actions,omitempty"`
}

type InspectionDetails struct {
	InspectionDate   string            `json:"inspection_date,omitempty"`
	ComplianceStatus string            `json:"compliance_status,omitempty"`
	Issues           []InspectionIssue `json:"issues,omitempty"`
}

type InspectionIssue struct {
	Issue            string  `json:"issue"`
	Severity         string  `json:"severity,omitempty"`
	Location         string  `json:"location,omitempty"`
	EstimatedFixCost float64 `json:"estimated_fix_cost,omitempty"`
}

// LevyDetails covers the money-demand categories, tax notices and fee
// statements alike.
type LevyDetails struct {
	DocumentYear    string             `json:"document_year,omitempty"`
	TotalAmount     float64            `json:"total_amount,omitempty"`
	Breakdown       map[string]float64 `json:"breakdown,omitempty"`
	PaymentSchedule []ScheduledPayment `json:"payment_schedule,omitempty"`
}

type ScheduledPayment struct {
	Date   string  `json:"date,omitempty"`
	Amount float64 `json:"amount"`
}

// FallbackExtraction is the safe result recorded when extraction cannot
// recover anything usable from the model. The document still completes; the
// summary tells the reader review is needed.
func FallbackExtraction(filename string) *Extraction {
	return &Extraction{
		Summary:      fmt.Sprintf("Document %s could not be analyzed automatically and needs manual review.", filename),
		KeyInsights:  []string{"Automatic analysis failed; content not evaluated."},
		AnnualCost:   0,
		OneTimeCosts: []CostItem{},
		Degraded:     true,
	}
}
