package redactor

import (
	"regexp"

	"github.com/meshtap/meshtap/internal/tapevent"
)

// Rule describes one redaction pattern applied to tapped request fields.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Replace string
}

// Redactor applies a list of Rules to the request path and authority of
// tap events in-place, before they reach the terminal or a JSON export.
type Redactor struct {
	rules []Rule
}

// Default returns a Redactor with built-in rules for common credential
// and PII patterns.
func Default() *Redactor {
	return &Redactor{rules: defaultRules()}
}

// New creates a Redactor with the provided rules.
func New(rules []Rule) *Redactor {
	return &Redactor{rules: rules}
}

// Redact modifies the event's requestInit path and authority in-place,
// applying all rules. Events without a requestInit payload are left alone.
func (r *Redactor) Redact(e *tapevent.Event) {
	if e == nil || e.RequestInit == nil {
		return
	}
	for _, rule := range r.rules {
		e.RequestInit.Path = rule.Pattern.ReplaceAllString(e.RequestInit.Path, rule.Replace)
		e.RequestInit.Authority = rule.Pattern.ReplaceAllString(e.RequestInit.Authority, rule.Replace)
	}
}

func defaultRules() []Rule {
	return []Rule{
		{
			Name:    "credential",
			Pattern: regexp.MustCompile(`(?i)(password|passwd|pwd|token|secret|api_?key)=[^\s&]+`),
			Replace: "${1}=***",
		},
		{
			Name:    "bearer_token",
			Pattern: regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._~+/\-]+=*`),
			Replace: "Bearer ***",
		},
		{
			Name:    "email",
			Pattern: regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
			Replace: "***@***",
		},
		{
			Name:    "credit_card",
			Pattern: regexp.MustCompile(`\b(\d{4}[\s\-]?){3}\d{4}\b`),
			Replace: "****-****-****-****",
		},
	}
}
