// Package template renders the small {variable} substitution grammar used in
// command replies, alerts, and giveaway messages. The variable set is closed:
// each name maps to a typed resolver, and an unknown name renders an explicit
// marker instead of silently disappearing.
package template

import (
	"regexp"
	"strings"
)

// Vars carries the per-message values available to a template.
type Vars struct {
	User    string
	Channel string
	Target  string
	Args    []string
	Count   string
	Points  string
	Rank    string
	Query   string
}

var varPattern = regexp.MustCompile(`\{([a-z0-9._]+)\}`)

type resolver func(Vars) string

var resolvers = map[string]resolver{
	"user":    func(v Vars) string { return v.User },
	"channel": func(v Vars) string { return v.Channel },
	"target": func(v Vars) string {
		if v.Target != "" {
			return v.Target
		}
		return v.User
	},
	"args":   func(v Vars) string { return strings.Join(v.Args, " ") },
	"arg1":   func(v Vars) string { return arg(v, 0) },
	"arg2":   func(v Vars) string { return arg(v, 1) },
	"count":  func(v Vars) string { return v.Count },
	"points": func(v Vars) string { return v.Points },
	"rank":   func(v Vars) string { return v.Rank },
	"query":  func(v Vars) string { return v.Query },
}

func arg(v Vars, i int) string {
	if i < len(v.Args) {
		return v.Args[i]
	}
	return ""
}

// Render substitutes every {name} occurrence in text. Unknown names render as
// {unknown:name} so a misconfigured template is visible in chat rather than
// silently blank.
func Render(text string, v Vars) string {
	return varPattern.ReplaceAllStringFunc(text, func(m string) string {
		name := m[1 : len(m)-1]
		if fn, ok := resolvers[name]; ok {
			return fn(v)
		}
		return "{unknown:" + name + "}"
	})
}

// Validate reports the unknown variable names in a template, for rejection at
// the settings API boundary.
func Validate(text string) []string {
	var unknown []string
	for _, m := range varPattern.FindAllStringSubmatch(text, -1) {
		if _, ok := resolvers[m[1]]; !ok {
			unknown = append(unknown, m[1])
		}
	}
	return unknown
}
