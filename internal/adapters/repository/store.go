// Package repository provides the stores behind the detector: a gorm store
// for postgres and sqlite, and an in-memory store for tests and local runs.
package repository

import (
	"context"
	"time"

	"github.com/okian/patternwatch/internal/domain/model"
)

// Store provides read/write access to the learning data and the alerts
// produced from it.
type Store interface {
	// StaleSkills returns unlocked skills last practiced before the given
	// time, including skills that were never practiced.
	StaleSkills(ctx context.Context, before time.Time) ([]model.SkillLevel, error)

	// ListEvents returns activity events matching the filter, oldest first.
	ListEvents(ctx context.Context, f model.EventFilter) ([]model.ActivityEvent, error)

	// ActiveUserIDs returns the distinct users with an event since the given time.
	ActiveUserIDs(ctx context.Context, since time.Time) ([]string, error)

	// ActiveMembers returns every active organization membership.
	ActiveMembers(ctx context.Context) ([]model.OrganizationMember, error)

	// HasAlert reports whether a stored alert matches the filter.
	HasAlert(ctx context.Context, f model.AlertFilter) (bool, error)

	// OverdueGoals returns active goals of active plans with a target date
	// before now and progress below 100.
	OverdueGoals(ctx context.Context, now time.Time) ([]model.GoalWithPlan, error)

	// ActiveStreaks returns active streaks of at least minStreak days.
	ActiveStreaks(ctx context.Context, minStreak int) ([]model.StreakState, error)

	// Managers returns active owner, admin and manager members of the organization.
	Managers(ctx context.Context, organizationID string) ([]model.OrganizationMember, error)

	InsertAlert(ctx context.Context, a *model.EvolutionAlert) error
	InsertNotification(ctx context.Context, n *model.Notification) error

	// Alerts returns every stored alert, oldest first.
	Alerts(ctx context.Context) ([]model.EvolutionAlert, error)
	// Notifications returns every stored notification, oldest first.
	Notifications(ctx context.Context) ([]model.Notification, error)
	// Counts returns row counts for the service stats.
	Counts(ctx context.Context) (Counts, error)

	Seeder

	Close() error
}

// Seeder writes the externally owned rows. It backs the seed command and
// tests.
type Seeder interface {
	AddEvents(ctx context.Context, events ...model.ActivityEvent) error
	AddSkills(ctx context.Context, skills ...model.SkillLevel) error
	AddStreaks(ctx context.Context, streaks ...model.StreakState) error
	AddPlans(ctx context.Context, plans ...model.DevelopmentPlan) error
	AddGoals(ctx context.Context, goals ...model.DevelopmentGoal) error
	AddMembers(ctx context.Context, members ...model.OrganizationMember) error
}

// Counts holds table sizes.
type Counts struct {
	Events        int64 `json:"events"`
	Alerts        int64 `json:"alerts"`
	Notifications int64 `json:"notifications"`
}
