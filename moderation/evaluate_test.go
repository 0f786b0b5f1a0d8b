package moderation

import (
	"strings"
	"testing"
	"time"
)

func allEnabled() *Settings {
	s := DefaultSettings()
	s.BannedWords.Enabled = true
	s.Links.Enabled = true
	s.Caps.Enabled = true
	s.Spam.Enabled = true
	s.Symbols.Enabled = true
	return &s
}

func follower(id string) UserContext {
	return UserContext{UserID: id, Username: id, Level: LevelFollower}
}

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestEvaluateModeratorAndBroadcasterAlwaysExempt(t *testing.T) {
	s := allEnabled()
	rules := []BannedWordRule{{ID: 1, Pattern: "badword", Enabled: true, Action: ActionBan}}
	content := "BADWORD http://spam.example.com AAAAAAAAAAAAAAA!!!!!!!!!!"

	users := []UserContext{
		{UserID: "1", Level: LevelBroadcaster, IsBroadcaster: true},
		{UserID: "2", Level: LevelModerator, IsModerator: true},
	}
	for _, u := range users {
		d := Evaluate(s, rules, content, u, nil, now)
		if d.ShouldAct {
			t.Errorf("level %s: expected exempt, got action %s (%s)", u.Level, d.Action, d.Reason)
		}
		if d.Action != ActionNone {
			t.Errorf("level %s: expected none, got %s", u.Level, d.Action)
		}
	}
}

func TestEvaluateNilSettings(t *testing.T) {
	d := Evaluate(nil, nil, "anything at all", follower("u1"), nil, now)
	if d.ShouldAct || d.Action != ActionNone {
		t.Fatalf("nil settings must never act, got %+v", d)
	}
}

func TestBannedWordLiteralWordBoundary(t *testing.T) {
	s := allEnabled()
	rules := []BannedWordRule{{ID: 1, Pattern: "cat", Enabled: true, Action: ActionDelete}}

	tests := []struct {
		name    string
		content string
		fires   bool
	}{
		{"exact word", "what a cat", true},
		{"case insensitive", "what a CaT", true},
		{"punctuation bounded", "cat!", true},
		{"embedded in longer word", "concatenate the category", false},
		{"absent", "a dog appears", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(s, rules, tt.content, follower("u1"), nil, now)
			if d.ShouldAct != tt.fires {
				t.Errorf("content %q: fired=%v, want %v", tt.content, d.ShouldAct, tt.fires)
			}
			if tt.fires && d.FilterType != FilterBannedWord {
				t.Errorf("filter type %s, want banned_word", d.FilterType)
			}
		})
	}
}

func TestBannedWordRegexMode(t *testing.T) {
	s := allEnabled()
	rules := []BannedWordRule{{ID: 1, Pattern: `gg+ ez`, IsRegex: true, Enabled: true, Action: ActionTimeout, TimeoutDuration: 120}}

	d := Evaluate(s, rules, "GGGG EZ no re", follower("u1"), nil, now)
	if !d.ShouldAct || d.Action != ActionTimeout || d.Duration != 120 {
		t.Fatalf("regex rule should fire with its own action, got %+v", d)
	}
}

func TestBannedWordInvalidRegexSkipped(t *testing.T) {
	s := allEnabled()
	rules := []BannedWordRule{
		{ID: 1, Pattern: `([`, IsRegex: true, Enabled: true, Action: ActionBan},
		{ID: 2, Pattern: "spoiler", Enabled: true, Action: ActionDelete},
	}

	d := Evaluate(s, rules, "huge spoiler ahead", follower("u1"), nil, now)
	if !d.ShouldAct {
		t.Fatal("valid rule after invalid regex must still be evaluated")
	}
	if d.Action != ActionDelete {
		t.Fatalf("got action %s, want delete from rule 2", d.Action)
	}
}

func TestLinkFilter(t *testing.T) {
	s := allEnabled()
	s.Links.PermitLevel = LevelSubscriber
	content := "check out http://spam.example.com now"

	d := Evaluate(s, nil, content, follower("u1"), nil, now)
	if !d.ShouldAct || d.FilterType != FilterLink {
		t.Fatalf("follower posting a link should fire link filter, got %+v", d)
	}

	sub := UserContext{UserID: "u2", Level: LevelSubscriber}
	if d := Evaluate(s, nil, content, sub, nil, now); d.ShouldAct {
		t.Fatalf("subscriber meets permit level, got %+v", d)
	}
}

func TestLinkWhitelist(t *testing.T) {
	s := allEnabled()
	s.LinkWhitelist = []string{"clips.example.tv", "Kick.com"}

	tests := []struct {
		name    string
		content string
		fires   bool
	}{
		{"whitelisted domain", "watch clips.example.tv/abc", false},
		{"whitelist case insensitive", "go to KICK.COM/streamer", false},
		{"bare url without scheme", "spam.example.com/free", true},
		{"mixed: one bad link", "clips.example.tv and evil.example.org", true},
		{"no link", "no links here, honest", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(s, nil, tt.content, follower("u1"), nil, now)
			if d.ShouldAct != tt.fires {
				t.Errorf("content %q: fired=%v, want %v (%s)", tt.content, d.ShouldAct, tt.fires, d.Reason)
			}
		})
	}
}

func TestCapsFilterThreshold(t *testing.T) {
	s := allEnabled()
	s.CapsMinLength = 10
	// 20 letters, 15 uppercase = 75%
	content := "AAAAABBBBBCCCCCddddd"

	s.CapsThreshold = 70
	if d := Evaluate(s, nil, content, follower("u1"), nil, now); !d.ShouldAct || d.FilterType != FilterCaps {
		t.Fatalf("75%% caps with threshold 70 should fire, got %+v", d)
	}

	s.CapsThreshold = 80
	if d := Evaluate(s, nil, content, follower("u1"), nil, now); d.ShouldAct {
		t.Fatalf("75%% caps with threshold 80 should not fire, got %+v", d)
	}
}

func TestCapsFilterMinLength(t *testing.T) {
	s := allEnabled()
	s.CapsMinLength = 10
	s.CapsThreshold = 50
	// only 5 letters once symbols are stripped
	if d := Evaluate(s, nil, "WOW!! 123 GG", follower("u1"), nil, now); d.ShouldAct && d.FilterType == FilterCaps {
		t.Fatalf("below caps min length must not fire, got %+v", d)
	}
}

func TestSpamFilter(t *testing.T) {
	s := allEnabled()
	s.SpamMaxRepeats = 4
	s.SpamMaxEmotes = 3

	tests := []struct {
		name    string
		content string
		fires   bool
	}{
		{"repeated characters", "aaaaaaaaaa", true},
		{"repeated word", "hi hi hi hi hi", true},
		{"repeated word case insensitive", "GG gg Gg gG gg wow", true},
		{"single characters ignored", "a a a a a a a", false},
		{"under repeat limit", "haha okay sure", false},
		{"emote flood", "[emote:1:a][emote:2:b][emote:3:c][emote:4:d]", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(s, nil, tt.content, follower("u1"), nil, now)
			fired := d.ShouldAct && d.FilterType == FilterSpam
			if fired != tt.fires {
				t.Errorf("content %q: fired=%v, want %v (%s)", tt.content, fired, tt.fires, d.Reason)
			}
		})
	}
}

func TestSymbolFilter(t *testing.T) {
	s := allEnabled()
	s.SymbolMinLength = 10
	s.SymbolThreshold = 50

	if d := Evaluate(s, nil, "!!!???###$$$%%%", follower("u1"), nil, now); !d.ShouldAct || d.FilterType != FilterSymbol {
		t.Fatalf("symbol flood should fire, got %+v", d)
	}
	if d := Evaluate(s, nil, "normal sentence with one !", follower("u1"), nil, now); d.ShouldAct {
		t.Fatalf("mostly letters should not fire, got %+v", d)
	}
	if d := Evaluate(s, nil, "!!!", follower("u1"), nil, now); d.ShouldAct {
		t.Fatalf("below symbol min length must not fire, got %+v", d)
	}
}

func TestPriorityOrderBannedWordBeatsCaps(t *testing.T) {
	s := allEnabled()
	s.CapsMinLength = 5
	s.CapsThreshold = 50
	rules := []BannedWordRule{{ID: 1, Pattern: "badword", Enabled: true, Action: ActionBan}}

	d := Evaluate(s, rules, "BADWORD AAAAAAAAAA", follower("u1"), nil, now)
	if d.FilterType != FilterBannedWord {
		t.Fatalf("banned word must win over caps, got %s", d.FilterType)
	}
	if d.Action != ActionBan {
		t.Fatalf("decision must carry the firing rule's action, got %s", d.Action)
	}
}

func TestPermitExemptsLinkFilter(t *testing.T) {
	s := allEnabled()
	s.Links.PermitLevel = LevelBroadcaster // role never exempts in this test

	store := NewStore()
	store.Grant("acct1", Permit{Username: "u1", Type: PermitLink, ExpiresAt: now.Add(60 * time.Second), GrantedBy: "mod"})

	content := "grab it at spam.example.com"
	lookup := store.Lookup("acct1")

	if d := Evaluate(s, nil, content, follower("u1"), lookup, now); d.ShouldAct {
		t.Fatalf("active link permit must exempt, got %+v", d)
	}
	// other users are not covered
	if d := Evaluate(s, nil, content, follower("u2"), lookup, now); !d.ShouldAct {
		t.Fatal("permit for u1 must not cover u2")
	}
	// after expiry the filter fires again
	later := now.Add(61 * time.Second)
	if d := Evaluate(s, nil, content, follower("u1"), lookup, later); !d.ShouldAct {
		t.Fatal("expired permit must not exempt")
	}
}

func TestPermitDoesNotApplyToCaps(t *testing.T) {
	s := allEnabled()
	s.CapsMinLength = 5
	s.CapsThreshold = 50

	store := NewStore()
	store.Grant("acct1", Permit{Username: "u1", Type: PermitLink, ExpiresAt: now.Add(time.Hour)})

	d := Evaluate(s, nil, "AAAAAAAAAA", follower("u1"), store.Lookup("acct1"), now)
	if !d.ShouldAct || d.FilterType != FilterCaps {
		t.Fatalf("link permit must not exempt the caps filter, got %+v", d)
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	s := allEnabled()
	rules := []BannedWordRule{{ID: 1, Pattern: "badword", Enabled: true, Action: ActionDelete}}
	content := "BADWORD and also http://spam.example.com " + strings.Repeat("a", 20)

	first := Evaluate(s, rules, content, follower("u1"), nil, now)
	second := Evaluate(s, rules, content, follower("u1"), nil, now)
	if first != second {
		t.Fatalf("same inputs must yield identical decisions: %+v vs %+v", first, second)
	}
}

func TestDisabledFiltersAreSkipped(t *testing.T) {
	s := allEnabled()
	s.Links.Enabled = false
	if d := Evaluate(s, nil, "spam.example.com", follower("u1"), nil, now); d.ShouldAct {
		t.Fatalf("disabled link filter must not fire, got %+v", d)
	}
}
