package detector

import (
	"context"
	"time"

	"github.com/okian/patternwatch/internal/domain/model"
)

// Store is the narrow view of the relational store the detector needs.
// Read methods are used by the passes, the insert methods by persistence.
type Store interface {
	// StaleSkills returns unlocked skills last practiced before the given
	// time, including skills that were never practiced.
	StaleSkills(ctx context.Context, before time.Time) ([]model.SkillLevel, error)

	// ListEvents returns activity events matching the filter ordered by
	// creation time.
	ListEvents(ctx context.Context, f model.EventFilter) ([]model.ActivityEvent, error)

	// ActiveUserIDs returns the distinct users with any event since the
	// given time.
	ActiveUserIDs(ctx context.Context, since time.Time) ([]string, error)

	// ActiveMembers returns every active organization membership.
	ActiveMembers(ctx context.Context) ([]model.OrganizationMember, error)

	// HasAlert reports whether a stored alert matches the filter.
	HasAlert(ctx context.Context, f model.AlertFilter) (bool, error)

	// OverdueGoals returns active goals with a target date before now and
	// progress below 100, joined to their plan.
	OverdueGoals(ctx context.Context, now time.Time) ([]model.GoalWithPlan, error)

	// ActiveStreaks returns active streaks of at least minStreak days.
	ActiveStreaks(ctx context.Context, minStreak int) ([]model.StreakState, error)

	// Managers returns active members of the organization holding a
	// manager role.
	Managers(ctx context.Context, organizationID string) ([]model.OrganizationMember, error)

	InsertAlert(ctx context.Context, a *model.EvolutionAlert) error
	InsertNotification(ctx context.Context, n *model.Notification) error
}
