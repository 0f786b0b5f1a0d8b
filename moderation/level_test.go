package moderation

import "testing"

func TestMeetsLevel(t *testing.T) {
	tests := []struct {
		user, required Level
		want           bool
	}{
		{LevelEveryone, LevelEveryone, true},
		{LevelFollower, LevelSubscriber, false},
		{LevelSubscriber, LevelSubscriber, true},
		{LevelVIP, LevelSubscriber, true},
		{LevelModerator, LevelVIP, true},
		{LevelBroadcaster, LevelModerator, true},
		{LevelVIP, LevelModerator, false},
	}
	for _, tt := range tests {
		if got := MeetsLevel(tt.user, tt.required); got != tt.want {
			t.Errorf("MeetsLevel(%s, %s) = %v, want %v", tt.user, tt.required, got, tt.want)
		}
	}
}

func TestParseLevelRoundTrip(t *testing.T) {
	for _, name := range []string{"everyone", "follower", "subscriber", "vip", "moderator", "broadcaster"} {
		l, err := ParseLevel(name)
		if err != nil {
			t.Fatalf("ParseLevel(%s): %v", name, err)
		}
		if l.String() != name {
			t.Errorf("round trip %s -> %s", name, l.String())
		}
	}
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	if _, err := ParseLevel("overlord"); err == nil {
		t.Fatal("unknown level strings must fail at configuration load")
	}
}
