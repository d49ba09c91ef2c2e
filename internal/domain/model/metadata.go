package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownAlertType is returned when decoding metadata for an unknown type.
var ErrUnknownAlertType = errors.New("unknown alert type")

// AlertMetadata is the per-type payload of an alert. Each alert type has
// exactly one metadata variant.
type AlertMetadata interface {
	AlertType() AlertType
}

// StagnationMetadata accompanies skill_stagnation alerts.
type StagnationMetadata struct {
	DaysInactive   int  `json:"days_inactive"`
	SkillLevel     int  `json:"skill_level"`
	NeverPracticed bool `json:"never_practiced,omitempty"`
}

// StreakBrokenMetadata accompanies streak_broken alerts.
type StreakBrokenMetadata struct {
	PreviousStreak int `json:"previous_streak"`
}

// InactivityMetadata accompanies inactivity alerts.
type InactivityMetadata struct {
	WindowDays int `json:"window_days"`
}

// DropMetadata accompanies performance_drop alerts. Values are rounded.
type DropMetadata struct {
	DropPercent     float64 `json:"drop_percent"`
	RecentAvg       float64 `json:"recent_avg"`
	PreviousAvg     float64 `json:"previous_avg"`
	RecentSamples   int     `json:"recent_samples"`
	PreviousSamples int     `json:"previous_samples"`
}

// OverdueMetadata accompanies goal_overdue alerts.
type OverdueMetadata struct {
	DaysOverdue     int       `json:"days_overdue"`
	ProgressPercent int       `json:"progress"`
	TargetDate      time.Time `json:"target_date"`
}

// PositiveStreakMetadata accompanies positive_streak alerts.
type PositiveStreakMetadata struct {
	CurrentStreak int `json:"current_streak"`
}

func (StagnationMetadata) AlertType() AlertType     { return AlertSkillStagnation }
func (StreakBrokenMetadata) AlertType() AlertType   { return AlertStreakBroken }
func (InactivityMetadata) AlertType() AlertType     { return AlertInactivity }
func (DropMetadata) AlertType() AlertType           { return AlertPerformanceDrop }
func (OverdueMetadata) AlertType() AlertType        { return AlertGoalOverdue }
func (PositiveStreakMetadata) AlertType() AlertType { return AlertPositiveStreak }

// EncodeMetadata serializes metadata to the JSON object stored with the alert.
// A nil metadata encodes as an empty object.
func EncodeMetadata(m AlertMetadata) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s metadata: %w", m.AlertType(), err)
	}
	return b, nil
}

// DecodeMetadata parses stored metadata into the variant for t.
func DecodeMetadata(t AlertType, raw []byte) (AlertMetadata, error) {
	var (
		out AlertMetadata
		err error
	)
	switch t {
	case AlertSkillStagnation:
		var m StagnationMetadata
		err = unmarshalObject(raw, &m)
		out = m
	case AlertStreakBroken:
		var m StreakBrokenMetadata
		err = unmarshalObject(raw, &m)
		out = m
	case AlertInactivity:
		var m InactivityMetadata
		err = unmarshalObject(raw, &m)
		out = m
	case AlertPerformanceDrop:
		var m DropMetadata
		err = unmarshalObject(raw, &m)
		out = m
	case AlertGoalOverdue:
		var m OverdueMetadata
		err = unmarshalObject(raw, &m)
		out = m
	case AlertPositiveStreak:
		var m PositiveStreakMetadata
		err = unmarshalObject(raw, &m)
		out = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlertType, t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", t, err)
	}
	return out, nil
}

func unmarshalObject(raw []byte, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
