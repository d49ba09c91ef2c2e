// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// EventType enumerates activity event kinds emitted by gameplay and training.
type EventType string

// Event types the detector reads. Other values pass through untouched.
const (
	EventStreakBroken     EventType = "STREAK_BROKEN"
	EventGameCompleted    EventType = "GAME_COMPLETED"
	EventTrainingComplete EventType = "TRAINING_COMPLETED"
	EventQuizCompleted    EventType = "QUIZ_COMPLETED"
	EventLogin            EventType = "LOGIN"
)

// metadataPreviousStreak is the event metadata key carrying the streak length
// that was lost.
const metadataPreviousStreak = "previousStreak"

// ActivityEvent is an append-only record produced outside this service.
type ActivityEvent struct {
	ID             string
	UserID         string
	OrganizationID string
	Type           EventType
	Score          *float64 // nil when the event carries no score
	Metadata       map[string]any
	CreatedAt      time.Time
}

// PreviousStreak reads the previousStreak metadata value, defaulting to 0.
// JSON numbers, integers and numeric strings are accepted. Fractional values
// truncate toward zero.
func (e ActivityEvent) PreviousStreak() int {
	raw, ok := e.Metadata[metadataPreviousStreak]
	if !ok || raw == nil {
		return 0
	}
	switch v := raw.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
		if f, err := v.Float64(); err == nil {
			return int(f)
		}
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int(f)
		}
	}
	return 0
}

// HasScore reports whether the event carries a score.
func (e ActivityEvent) HasScore() bool { return e.Score != nil }

// EventFilter selects activity events. Zero fields do not filter.
type EventFilter struct {
	Type       EventType
	Since      time.Time // inclusive lower bound on CreatedAt
	ScoredOnly bool
}

// Matches reports whether e satisfies the filter.
func (f EventFilter) Matches(e ActivityEvent) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	if f.ScoredOnly && e.Score == nil {
		return false
	}
	return true
}
