package detect

import (
	"regexp"

	"github.com/Wikid82/argus/internal/models"
)

// RulesVersion identifies the signature table below. Bump it whenever a rule
// is added or changed, together with a case in rules_test.go.
const RulesVersion = "2026.10-2"

// Rule is a single hand-curated signature.
type Rule struct {
	ID          string
	Kind        models.EventKind
	Description string
	Pattern     *regexp.Regexp
}

// Patterns are RE2, so matching is linear in the input length.
var rules = []Rule{
	{
		ID:          "sqli-quote-or",
		Kind:        models.EventSQLInjection,
		Description: "quote OR quote tautology",
		Pattern:     regexp.MustCompile(`(?i)'\s*or\s*'[^']*'\s*=\s*'`),
	},
	{
		ID:          "sqli-or-numeric",
		Kind:        models.EventSQLInjection,
		Description: "quote OR numeric comparison",
		Pattern:     regexp.MustCompile(`(?i)'\s*or\s+\d+\s*=\s*\d+`),
	},
	{
		ID:          "sqli-comment",
		Kind:        models.EventSQLInjection,
		Description: "quote followed by a comment terminator at end of input",
		Pattern:     regexp.MustCompile(`'\s*(?:--|#|/\*)\s*$`),
	},
	{
		ID:          "sqli-stacked-ddl",
		Kind:        models.EventSQLInjection,
		Description: "statement separator followed by DDL",
		Pattern:     regexp.MustCompile(`(?i);\s*(?:drop|truncate|alter|create)\s+(?:table|database|index|view|schema)\b`),
	},
	{
		ID:          "sqli-stacked-dml",
		Kind:        models.EventSQLInjection,
		Description: "statement separator followed by DML",
		Pattern:     regexp.MustCompile(`(?i);\s*(?:delete\s+from|insert\s+into|update\s+\w+\s+set|select\s+\S+\s+from|exec(?:ute)?\s)`),
	},
	{
		ID:          "sqli-union-select",
		Kind:        models.EventSQLInjection,
		Description: "UNION SELECT",
		Pattern:     regexp.MustCompile(`(?i)\bunion\s+(?:all\s+)?select\b`),
	},
	{
		ID:          "sqli-tautology",
		Kind:        models.EventSQLInjection,
		Description: "1=1 style tautology",
		Pattern:     regexp.MustCompile(`\b1\s*=\s*1\b`),
	},
	{
		ID:          "xss-script-tag",
		Kind:        models.EventXSS,
		Description: "script tag",
		Pattern:     regexp.MustCompile(`(?i)<\s*script\b`),
	},
	{
		ID:          "xss-iframe-src",
		Kind:        models.EventXSS,
		Description: "iframe with a src attribute",
		Pattern:     regexp.MustCompile(`(?i)<\s*iframe\b[^>]*\bsrc\s*=`),
	},
	{
		ID:          "xss-event-handler",
		Kind:        models.EventXSS,
		Description: "inline event handler bound to a quoted value",
		Pattern:     regexp.MustCompile(`(?i)\bon[a-z]+\s*=\s*["']`),
	},
	{
		ID:          "xss-script-scheme",
		Kind:        models.EventXSS,
		Description: "javascript: or vbscript: URI",
		Pattern:     regexp.MustCompile(`(?i)\b(?:javascript|vbscript)\s*:\S`),
	},
}

// Rules returns a copy of the signature table, optionally filtered by kind.
func Rules(kind models.EventKind) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if kind == "" || r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}
