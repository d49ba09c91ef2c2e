package dedupe

import (
	"time"

	"github.com/okian/patternwatch/internal/domain/model"
)

// DefaultWindow is the dedup window of the inactivity and positive streak
// passes.
const DefaultWindow = 7 * 24 * time.Hour

// Scope selects which stored alerts block a new one.
type Scope int

const (
	// ScopeUndismissed only counts alerts the user has not dismissed.
	ScopeUndismissed Scope = iota
	// ScopeAny counts every alert regardless of status.
	ScopeAny
)

// Rule describes how one alert type is deduplicated against the store.
type Rule struct {
	Window      time.Duration
	Scope       Scope
	MatchEntity bool // also require the same related entity
}

// Filter builds the store filter for a candidate alert at now.
func (r Rule) Filter(t model.AlertType, userID, entityID string, now time.Time) model.AlertFilter {
	f := model.AlertFilter{
		UserID:          userID,
		Type:            t,
		Since:           now.Add(-r.Window),
		UndismissedOnly: r.Scope == ScopeUndismissed,
	}
	if r.MatchEntity {
		f.RelatedEntityID = entityID
	}
	return f
}

// CooldownPolicy maps alert types to their dedup rule. Types without a
// rule are always proposed.
type CooldownPolicy struct {
	rules map[model.AlertType]Rule
}

// DefaultPolicy dedups inactivity (undismissed) and positive streak (any
// status) alerts within one week. Other types are not deduplicated.
func DefaultPolicy() CooldownPolicy {
	return CooldownPolicy{rules: map[model.AlertType]Rule{
		model.AlertInactivity:     {Window: DefaultWindow, Scope: ScopeUndismissed},
		model.AlertPositiveStreak: {Window: DefaultWindow, Scope: ScopeAny},
	}}
}

// WithCooldown returns a copy of p that also dedups stagnation, broken
// streak, performance drop and overdue goal alerts against undismissed
// alerts of the same user and related entity within window.
func (p CooldownPolicy) WithCooldown(window time.Duration) CooldownPolicy {
	if window <= 0 {
		window = DefaultWindow
	}
	out := CooldownPolicy{rules: make(map[model.AlertType]Rule, len(model.AlertTypes))}
	for t, r := range p.rules {
		out.rules[t] = r
	}
	for _, t := range []model.AlertType{
		model.AlertSkillStagnation,
		model.AlertStreakBroken,
		model.AlertPerformanceDrop,
		model.AlertGoalOverdue,
	} {
		if _, ok := out.rules[t]; !ok {
			out.rules[t] = Rule{Window: window, Scope: ScopeUndismissed, MatchEntity: true}
		}
	}
	return out
}

// Rule returns the rule for t, if any.
func (p CooldownPolicy) Rule(t model.AlertType) (Rule, bool) {
	r, ok := p.rules[t]
	return r, ok
}

// Builtin reports whether t is deduplicated by its own pass rather than by
// the post-pass cooldown filter.
func Builtin(t model.AlertType) bool {
	return t == model.AlertInactivity || t == model.AlertPositiveStreak
}
