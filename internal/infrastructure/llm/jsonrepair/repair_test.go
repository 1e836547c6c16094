package jsonrepair

import (
	"encoding/json"
	"testing"
)

func TestRepairClosesTruncatedStructures(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"truncated array in object", `{"a": [1, 2`, `{"a": [1, 2]}`},
		{"unterminated string", `{"summary": "cut off`, `{"summary": "cut off"}`},
		{"trailing comma before close", `{"a": 1,`, `{"a": 1}`},
		{"already balanced", `{"a": 1}`, `{"a": 1}`},
		{"nested truncation", `{"a": {"b": [`, `{"a": {"b": []}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Repair(tc.in)
			if got != tc.want {
				t.Fatalf("Repair(%q) = %q, want %q", tc.in, got, tc.want)
			}
			var out any
			if err := json.Unmarshal([]byte(got), &out); err != nil {
				t.Fatalf("repaired output is not valid JSON: %v", err)
			}
		})
	}
}

func TestExtractStripsProseAndFences(t *testing.T) {
	raw := "Here is the analysis you asked for:\n```json\n{\"summary\": \"ok\", \"annual_cost\": 1,250.50}\n```"

	got := Extract(raw)

	var parsed struct {
		Summary    string  `json:"summary"`
		AnnualCost float64 `json:"annual_cost"`
	}
	if err := json.Unmarshal([]byte(got), &parsed); err != nil {
		t.Fatalf("extract produced invalid JSON %q: %v", got, err)
	}
	if parsed.Summary != "ok" {
		t.Errorf("summary = %q", parsed.Summary)
	}
	if parsed.AnnualCost != 1250.50 {
		t.Errorf("annual_cost = %v, want 1250.50", parsed.AnnualCost)
	}
}

func TestExtractCollapsesMillionSeparators(t *testing.T) {
	got := Extract(`{"total": 1,250,000.75}`)

	var parsed struct {
		Total float64 `json:"total"`
	}
	if err := json.Unmarshal([]byte(got), &parsed); err != nil {
		t.Fatalf("invalid JSON %q: %v", got, err)
	}
	if parsed.Total != 1250000.75 {
		t.Fatalf("total = %v, want 1250000.75", parsed.Total)
	}
}

func TestExtractRemovesTrailingCommas(t *testing.T) {
	got := Extract(`{"items": [1, 2, 3,], "done": true,}`)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(got), &parsed); err != nil {
		t.Fatalf("invalid JSON %q: %v", got, err)
	}
}

func TestExtractPassesThroughResponseWithoutJSON(t *testing.T) {
	// Nothing to find; the caller's unmarshal decides what happens next.
	in := "no structured content here"
	if got := Extract(in); got != in {
		t.Fatalf("Extract(%q) = %q, want input unchanged", in, got)
	}
}
