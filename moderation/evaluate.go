package moderation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Decision is the outcome of evaluating one message. It is produced fresh per
// message and handed to the ActionExecutor / AuditLogger collaborators; it is
// never persisted directly.
type Decision struct {
	ShouldAct  bool
	Action     Action
	Reason     string
	FilterType FilterType
	Duration   int // seconds, meaningful for timeouts
}

var noDecision = Decision{Action: ActionNone}

// PermitLookup answers whether a user holds an active permit covering a filter
// kind at the given instant. Keyed by username to match how permits are
// granted. Store.Lookup produces one bound to a tenant.
type PermitLookup func(username string, kind FilterType, now time.Time) bool

// ActionExecutor performs the platform side of a decision (delete message,
// timeout, ban). Implemented by the Kick API client.
type ActionExecutor interface {
	Apply(ctx context.Context, channelID string, d Decision, target UserContext, messageID string) error
}

// AuditLogger persists decisions for the dashboard moderation history.
type AuditLogger interface {
	Record(ctx context.Context, accountID string, d Decision, targetUserID, targetUsername, content, messageID string) error
}

var urlPattern = regexp.MustCompile(`(?i)\b(?:https?://)?(?:www\.)?[a-z0-9][a-z0-9-]*(?:\.[a-z0-9-]+)*\.[a-z]{2,}(?:/[^\s]*)?`)

// Kick renders emotes inline as [emote:12345:name].
var emoteToken = regexp.MustCompile(`\[emote:\d+:[^\]]*\]`)

// Evaluate runs the enabled filters against a message in fixed priority order
// (banned words, links, caps, spam, symbols) and returns the first firing
// decision. Broadcasters and moderators are exempt before any rule runs. A nil
// settings snapshot means the tenant has no moderation configured. Evaluate is
// pure: the clock is only consulted through now for permit expiry.
func Evaluate(s *Settings, rules []BannedWordRule, content string, user UserContext, permits PermitLookup, now time.Time) Decision {
	if s == nil {
		return noDecision
	}
	if user.Exempt() {
		return noDecision
	}

	if s.BannedWords.Enabled {
		if d, ok := checkBannedWords(s, rules, content); ok {
			return d
		}
	}
	if s.Links.Enabled && !exemptFrom(s.Links, FilterLink, user, permits, now) {
		if d, ok := checkLinks(s, content); ok {
			return d
		}
	}
	if s.Caps.Enabled && !MeetsLevel(user.Level, s.Caps.PermitLevel) {
		if d, ok := checkCaps(s, content); ok {
			return d
		}
	}
	if s.Spam.Enabled && !MeetsLevel(user.Level, s.Spam.PermitLevel) {
		if d, ok := checkSpam(s, content); ok {
			return d
		}
	}
	if s.Symbols.Enabled && !MeetsLevel(user.Level, s.Symbols.PermitLevel) {
		if d, ok := checkSymbols(s, content); ok {
			return d
		}
	}
	return noDecision
}

// exemptFrom covers the filters where an active permit can apply on top of the
// role threshold. Only the link filter consults permits today, but a permit of
// type all covers any kind passed here.
func exemptFrom(cfg FilterConfig, kind FilterType, user UserContext, permits PermitLookup, now time.Time) bool {
	if MeetsLevel(user.Level, cfg.PermitLevel) {
		return true
	}
	return permits != nil && permits(user.Username, kind, now)
}

func checkBannedWords(s *Settings, rules []BannedWordRule, content string) (Decision, bool) {
	for i := range rules {
		r := &rules[i]
		if !r.Matches(content) {
			continue
		}
		action := r.Action
		duration := r.TimeoutDuration
		if action == "" || action == ActionNone {
			action = s.BannedWords.Action
			duration = s.BannedWords.TimeoutDuration
		}
		return Decision{
			ShouldAct:  true,
			Action:     action,
			Reason:     "banned word or phrase",
			FilterType: FilterBannedWord,
			Duration:   duration,
		}, true
	}
	return noDecision, false
}

func checkLinks(s *Settings, content string) (Decision, bool) {
	for _, match := range urlPattern.FindAllString(content, -1) {
		if !whitelisted(match, s.LinkWhitelist) {
			return Decision{
				ShouldAct:  true,
				Action:     s.Links.Action,
				Reason:     "link not permitted",
				FilterType: FilterLink,
				Duration:   s.Links.TimeoutDuration,
			}, true
		}
	}
	return noDecision, false
}

func whitelisted(url string, whitelist []string) bool {
	lower := strings.ToLower(url)
	for _, entry := range whitelist {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry != "" && strings.Contains(lower, entry) {
			return true
		}
	}
	return false
}

func checkCaps(s *Settings, content string) (Decision, bool) {
	letters, upper := 0, 0
	for _, r := range content {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters < s.CapsMinLength {
		return noDecision, false
	}
	pct := float64(upper) / float64(letters) * 100
	if pct < s.CapsThreshold {
		return noDecision, false
	}
	return Decision{
		ShouldAct:  true,
		Action:     s.Caps.Action,
		Reason:     fmt.Sprintf("excessive caps (%.0f%%)", pct),
		FilterType: FilterCaps,
		Duration:   s.Caps.TimeoutDuration,
	}, true
}

func checkSpam(s *Settings, content string) (Decision, bool) {
	if run := longestRun(content); run > s.SpamMaxRepeats {
		return spamDecision(s, fmt.Sprintf("repeated characters (%d in a row)", run)), true
	}
	counts := make(map[string]int)
	for _, w := range strings.Fields(content) {
		w = strings.ToLower(w)
		// single characters are too noisy to count as spam words
		if len(w) < 2 {
			continue
		}
		counts[w]++
		if counts[w] > s.SpamMaxRepeats {
			return spamDecision(s, fmt.Sprintf("repeated word %q", w)), true
		}
	}
	if n := countEmotes(content); n > s.SpamMaxEmotes {
		return spamDecision(s, fmt.Sprintf("too many emotes (%d)", n)), true
	}
	return noDecision, false
}

func spamDecision(s *Settings, reason string) Decision {
	return Decision{
		ShouldAct:  true,
		Action:     s.Spam.Action,
		Reason:     reason,
		FilterType: FilterSpam,
		Duration:   s.Spam.TimeoutDuration,
	}
}

// longestRun returns the length of the longest consecutive identical-rune run.
func longestRun(content string) int {
	var prev rune
	run, max := 0, 0
	for _, r := range content {
		if r == prev {
			run++
		} else {
			run = 1
			prev = r
		}
		if run > max {
			max = run
		}
	}
	return max
}

func countEmotes(content string) int {
	n := len(emoteToken.FindAllString(content, -1))
	for _, r := range emoteToken.ReplaceAllString(content, "") {
		if isEmoji(r) {
			n++
		}
	}
	return n
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // pictographs, emoticons, symbols
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case unicode.Is(unicode.So, r):
		return true
	}
	return false
}

func checkSymbols(s *Settings, content string) (Decision, bool) {
	if utf8.RuneCountInString(content) < s.SymbolMinLength {
		return noDecision, false
	}
	stripped := make([]rune, 0, len(content))
	for _, r := range emoteToken.ReplaceAllString(content, "") {
		if !isEmoji(r) {
			stripped = append(stripped, r)
		}
	}
	if len(stripped) == 0 {
		return noDecision, false
	}
	symbols := 0
	for _, r := range stripped {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			symbols++
		}
	}
	pct := float64(symbols) / float64(len(stripped)) * 100
	if pct < s.SymbolThreshold {
		return noDecision, false
	}
	return Decision{
		ShouldAct:  true,
		Action:     s.Symbols.Action,
		Reason:     fmt.Sprintf("excessive symbols (%.0f%%)", pct),
		FilterType: FilterSymbol,
		Duration:   s.Symbols.TimeoutDuration,
	}, true
}
