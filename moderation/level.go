package moderation

import "fmt"

// Level is a chatter's standing in a channel. Levels form a total order used
// both for command gating and filter exemption thresholds.
type Level int

const (
	LevelEveryone Level = iota
	LevelFollower
	LevelSubscriber
	LevelVIP
	LevelModerator
	LevelBroadcaster
)

var levelNames = map[Level]string{
	LevelEveryone:    "everyone",
	LevelFollower:    "follower",
	LevelSubscriber:  "subscriber",
	LevelVIP:         "vip",
	LevelModerator:   "moderator",
	LevelBroadcaster: "broadcaster",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return "everyone"
}

// ParseLevel converts a stored level string into a Level. Unknown strings are a
// configuration error and are rejected here so the per-message hot path never
// has to deal with them.
func ParseLevel(s string) (Level, error) {
	for l, name := range levelNames {
		if name == s {
			return l, nil
		}
	}
	return LevelEveryone, fmt.Errorf("unknown role level %q", s)
}

// MeetsLevel reports whether a user's level satisfies a required minimum.
func MeetsLevel(user, required Level) bool {
	return user >= required
}

// UserContext is the per-message identity snapshot derived from chat event
// badges. It is transient and never persisted.
type UserContext struct {
	UserID        string
	Username      string
	Level         Level
	IsBroadcaster bool
	IsModerator   bool
}

// Exempt reports whether the user bypasses all moderation unconditionally.
func (u UserContext) Exempt() bool {
	return u.IsBroadcaster || u.IsModerator || u.Level >= LevelModerator
}
