package model

import "time"

// AlertType identifies the pattern an alert reports.
type AlertType string

// Alert types produced by the detector.
const (
	AlertSkillStagnation AlertType = "skill_stagnation"
	AlertStreakBroken    AlertType = "streak_broken"
	AlertInactivity      AlertType = "inactivity"
	AlertPerformanceDrop AlertType = "performance_drop"
	AlertGoalOverdue     AlertType = "goal_overdue"
	AlertPositiveStreak  AlertType = "positive_streak"
)

// AlertTypes lists every alert type in pass order.
var AlertTypes = []AlertType{
	AlertSkillStagnation,
	AlertStreakBroken,
	AlertInactivity,
	AlertPerformanceDrop,
	AlertGoalOverdue,
	AlertPositiveStreak,
}

// Severity is the urgency tag of an alert. Positive is outside the
// info < warning < critical order.
type Severity string

// Severities.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeverityPositive Severity = "positive"
)

// Suggested action types understood by the front end.
const (
	ActionGame     = "game"
	ActionTraining = "training"
	ActionPDI      = "pdi"
	ActionView     = "view"
)

// Related entity types.
const (
	EntitySkill = "skill"
	EntityGoal  = "goal"
)

// EvolutionAlert is a stored detection result for one user. Empty strings in
// the optional fields are persisted as NULL.
type EvolutionAlert struct {
	ID                  string
	UserID              string
	OrganizationID      string
	Type                AlertType
	Severity            Severity
	Title               string
	Description         string
	SuggestedAction     string
	SuggestedActionType string
	SuggestedActionID   string
	RelatedEntityType   string
	RelatedEntityID     string
	Metadata            AlertMetadata
	IsRead              bool
	IsDismissed         bool
	CreatedAt           time.Time
}

// NotificationTypeAlert is the notification type used for team escalations.
const NotificationTypeAlert = "alert"

// Notification is an in-app message for a manager.
type Notification struct {
	ID        string
	UserID    string // recipient
	Type      string
	Title     string
	Message   string
	Data      NotificationData
	IsRead    bool
	CreatedAt time.Time
}

// NotificationData is the payload attached to a team escalation.
type NotificationData struct {
	AlertType       AlertType `json:"alert_type"`
	Severity        Severity  `json:"severity"`
	TargetUserID    string    `json:"target_user_id"`
	SuggestedAction string    `json:"suggested_action"`
}

// AlertFilter selects previously stored alerts for deduplication checks.
type AlertFilter struct {
	UserID          string
	Type            AlertType
	Since           time.Time // inclusive lower bound on CreatedAt
	UndismissedOnly bool
	RelatedEntityID string // ignored when empty
}

// Matches reports whether a stored alert satisfies the filter.
func (f AlertFilter) Matches(a EvolutionAlert) bool {
	if a.UserID != f.UserID || a.Type != f.Type {
		return false
	}
	if a.CreatedAt.Before(f.Since) {
		return false
	}
	if f.UndismissedOnly && a.IsDismissed {
		return false
	}
	if f.RelatedEntityID != "" && a.RelatedEntityID != f.RelatedEntityID {
		return false
	}
	return true
}
