// Package types contains the wire shapes returned by the detect-patterns trigger.
package types

import "github.com/okian/patternwatch/internal/domain/model"

// Summary holds the number of proposed alerts per type.
type Summary struct {
	SkillStagnation int `json:"skillStagnation"`
	StreakBroken    int `json:"streakBroken"`
	Inactivity      int `json:"inactivity"`
	PerformanceDrop int `json:"performanceDrop"`
	GoalOverdue     int `json:"goalOverdue"`
	PositiveStreak  int `json:"positiveStreak"`
}

// Add increments the counter for t. Unknown types are ignored.
func (s *Summary) Add(t model.AlertType) {
	switch t {
	case model.AlertSkillStagnation:
		s.SkillStagnation++
	case model.AlertStreakBroken:
		s.StreakBroken++
	case model.AlertInactivity:
		s.Inactivity++
	case model.AlertPerformanceDrop:
		s.PerformanceDrop++
	case model.AlertGoalOverdue:
		s.GoalOverdue++
	case model.AlertPositiveStreak:
		s.PositiveStreak++
	}
}

// Count returns the counter for t.
func (s Summary) Count(t model.AlertType) int {
	switch t {
	case model.AlertSkillStagnation:
		return s.SkillStagnation
	case model.AlertStreakBroken:
		return s.StreakBroken
	case model.AlertInactivity:
		return s.Inactivity
	case model.AlertPerformanceDrop:
		return s.PerformanceDrop
	case model.AlertGoalOverdue:
		return s.GoalOverdue
	case model.AlertPositiveStreak:
		return s.PositiveStreak
	}
	return 0
}

// Total returns the sum of all counters.
func (s Summary) Total() int {
	return s.SkillStagnation + s.StreakBroken + s.Inactivity +
		s.PerformanceDrop + s.GoalOverdue + s.PositiveStreak
}

// Report is the successful response of a detection run.
type Report struct {
	Success              bool    `json:"success"`
	AlertsGenerated      int     `json:"alertsGenerated"`
	AlertsCreated        int     `json:"alertsCreated"`
	ManagerNotifications int     `json:"managerNotifications"`
	Summary              Summary `json:"summary"`
}

// ErrorResponse is the failure response of a detection run.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewErrorResponse wraps msg in a failure response.
func NewErrorResponse(msg string) ErrorResponse {
	return ErrorResponse{Success: false, Error: msg}
}
