// Package jsonrepair recovers JSON payloads from model responses that arrive
// wrapped in prose, fenced in markdown, or truncated mid-structure.
package jsonrepair

import (
	"regexp"
	"strings"
)

var (
	fenceRe          = regexp.MustCompile("```(?:json)?\\s*")
	thousandsPairRe  = regexp.MustCompile(`:\s*(\d+),(\d+\.?\d*)`)
	thousandsTrioRe  = regexp.MustCompile(`:\s*(\d+),(\d+),(\d+\.?\d*)`)
	trailingCommaRe  = regexp.MustCompile(`,(\s*[}\]])`)
	danglingCommaRe  = regexp.MustCompile(`,\s*$`)
)

// Extract pulls the JSON document out of a raw model response: strips leading
// prose and markdown fences, fixes thousand-separated numbers and trailing
// commas, then repairs any truncation. The result is best-effort; callers
// still have to unmarshal and validate it.
func Extract(response string) string {
	start := len(response)
	if i := strings.Index(response, "{"); i != -1 {
		start = i
	}
	if i := strings.Index(response, "["); i != -1 && i < start {
		start = i
	}
	if start > 0 && start < len(response) {
		response = response[start:]
	}

	if strings.Contains(response, "```") {
		response = fenceRe.ReplaceAllString(response, "")
	}

	// "annual_cost": 12,500.50 is a number with a thousands separator, not
	// two values. Trio first so 1,250,000 collapses in one pass.
	response = thousandsTrioRe.ReplaceAllString(response, ": $1$2$3")
	response = thousandsPairRe.ReplaceAllString(response, ": $1$2")

	response = trailingCommaRe.ReplaceAllString(response, "$1")

	return Repair(strings.TrimSpace(response))
}

// Repair closes what a truncated response left open: an unterminated string,
// a dangling comma, and any unbalanced brackets or braces, in that order.
func Repair(s string) string {
	openBraces := strings.Count(s, "{") - strings.Count(s, "}")
	openBrackets := strings.Count(s, "[") - strings.Count(s, "]")

	inString := false
	for i := 0; i < len(s); i++ {
		if s[i] == '"' && (i == 0 || s[i-1] != '\\') {
			inString = !inString
		}
	}
	if inString {
		s += `"`
	}

	s = danglingCommaRe.ReplaceAllString(s, "")

	if openBrackets > 0 {
		s += strings.Repeat("]", openBrackets)
	}
	if openBraces > 0 {
		s += strings.Repeat("}", openBraces)
	}
	return s
}
