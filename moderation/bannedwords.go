package moderation

import (
	"fmt"
	"log/slog"
	"regexp"
)

// BannedWordRule is one tenant-configured banned word or phrase. Rules are
// evaluated independently in list order; the first match wins.
type BannedWordRule struct {
	ID              int64
	Pattern         string
	IsRegex         bool
	Enabled         bool
	Severity        string
	Action          Action
	TimeoutDuration int

	compiled *regexp.Regexp
}

// Compile builds the case-insensitive matcher for the rule. Literal patterns
// are word-boundary wrapped so "cat" does not match "category"; regex patterns
// are taken as written.
func (r *BannedWordRule) Compile() error {
	expr := `(?i)\b` + regexp.QuoteMeta(r.Pattern) + `\b`
	if r.IsRegex {
		expr = `(?i)` + r.Pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("banned word rule %d: %w", r.ID, err)
	}
	r.compiled = re
	return nil
}

// Matches reports whether the message content trips this rule. An invalid
// pattern is logged once and the rule is skipped; it never aborts evaluation
// of the remaining rules.
func (r *BannedWordRule) Matches(content string) bool {
	if !r.Enabled {
		return false
	}
	if r.compiled == nil {
		if err := r.Compile(); err != nil {
			slog.Warn("skipping invalid banned word pattern",
				slog.Int64("rule_id", r.ID), slog.Any("err", err))
			r.Enabled = false
			return false
		}
	}
	return r.compiled.MatchString(content)
}
