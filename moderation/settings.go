// Package moderation implements the per-message rule evaluation pipeline:
// banned words, links, caps, spam, and symbol filters with role and permit
// exemptions. Evaluation is a pure function over a settings snapshot; the only
// temporal state is permit expiry, owned by Store.
package moderation

import "fmt"

// Action is what the bot does when a filter fires.
type Action string

const (
	ActionNone    Action = "none"
	ActionDelete  Action = "delete"
	ActionTimeout Action = "timeout"
	ActionBan     Action = "ban"
)

// ParseAction validates an action string at the configuration boundary.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionDelete, ActionTimeout, ActionBan:
		return Action(s), nil
	}
	return ActionNone, fmt.Errorf("unknown moderation action %q", s)
}

// FilterType identifies which filter produced a decision.
type FilterType string

const (
	FilterBannedWord FilterType = "banned_word"
	FilterLink       FilterType = "link"
	FilterCaps       FilterType = "caps"
	FilterSpam       FilterType = "spam"
	FilterSymbol     FilterType = "symbol"
)

// FilterConfig is the shared per-filter knobs: whether it runs, what it does
// when it fires, and the minimum role that bypasses it.
type FilterConfig struct {
	Enabled         bool
	Action          Action
	TimeoutDuration int // seconds, used when Action is timeout
	PermitLevel     Level
}

// Settings is one tenant's moderation configuration, loaded fresh per message.
type Settings struct {
	BannedWords FilterConfig

	Links         FilterConfig
	LinkWhitelist []string

	Caps          FilterConfig
	CapsMinLength int
	CapsThreshold float64 // percentage 0..100

	Spam           FilterConfig
	SpamMaxRepeats int
	SpamMaxEmotes  int

	Symbols         FilterConfig
	SymbolMinLength int
	SymbolThreshold float64 // percentage 0..100
}

// DefaultSettings returns the configuration applied to a newly created tenant.
// All filters start disabled; thresholds match the dashboard defaults.
func DefaultSettings() Settings {
	return Settings{
		BannedWords: FilterConfig{Action: ActionDelete, TimeoutDuration: 600},
		Links:       FilterConfig{Action: ActionDelete, TimeoutDuration: 600, PermitLevel: LevelSubscriber},
		Caps:        FilterConfig{Action: ActionDelete, TimeoutDuration: 600, PermitLevel: LevelVIP},
		Spam:        FilterConfig{Action: ActionTimeout, TimeoutDuration: 300, PermitLevel: LevelVIP},
		Symbols:     FilterConfig{Action: ActionDelete, TimeoutDuration: 600, PermitLevel: LevelVIP},

		CapsMinLength: 10,
		CapsThreshold: 70,

		SpamMaxRepeats: 5,
		SpamMaxEmotes:  10,

		SymbolMinLength: 10,
		SymbolThreshold: 50,
	}
}
