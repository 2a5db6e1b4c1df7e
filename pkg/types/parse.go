package types

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline   = regexp.MustCompile(`(?m)//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseClassification parses a model answer. Answers that are not JSON
// yield an Unknown classification rather than an error.
func ParseClassification(raw string) *Classification {
	raw = SanitizeModelJSON(raw)

	if !strings.HasPrefix(raw, "{") {
		return Unknown("Model returned non-JSON response", "non-json")
	}

	var result Classification
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Unknown("Failed to parse model response", "parse-error")
	}
	if strings.TrimSpace(result.Label) == "" {
		return Unknown("Model returned no label", "empty")
	}
	return &result
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
