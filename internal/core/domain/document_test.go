package domain

import "testing"

func TestCanTransitionForwardOnly(t *testing.T) {
	cases := []struct {
		from    DocumentStatus
		to      DocumentStatus
		allowed bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCompleted, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusFailed, StatusProcessing, false},
		{StatusFailed, StatusCompleted, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestParseCategoryClosedSet(t *testing.T) {
	cases := []struct {
		raw  string
		want Category
	}{
		{"filing", CategoryFiling},
		{" Filing ", CategoryFiling},
		{`"tax_notice"`, CategoryTaxNotice},
		{"Tax Notice", CategoryTaxNotice},
		{"fee_statement.", CategoryFeeStatement},
		{"inspection", CategoryInspection},
		{"banana", CategoryOther},
		{"", CategoryOther},
		{"filings", CategoryOther},
	}

	for _, tc := range cases {
		if got := ParseCategory(tc.raw); got != tc.want {
			t.Errorf("ParseCategory(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
