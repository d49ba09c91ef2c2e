package model

import "time"

// Status values shared by development plans and goals.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// SkillLevel is a user's progression in one skill of the skill tree.
type SkillLevel struct {
	ID              string
	UserID          string
	SkillID         string
	SkillName       string
	OrganizationID  string
	CurrentLevel    int
	LastPracticedAt *time.Time // nil when never practiced
	IsUnlocked      bool
}

// StreakState is a user's current daily-activity streak.
type StreakState struct {
	UserID         string
	OrganizationID string
	CurrentStreak  int
	IsActive       bool
}

// DevelopmentPlan (PDI) groups development goals of one user.
type DevelopmentPlan struct {
	ID             string
	UserID         string
	OrganizationID string
	Status         string
}

// DevelopmentGoal is a dated target inside a development plan.
type DevelopmentGoal struct {
	ID              string
	PlanID          string
	Title           string
	ProgressPercent int
	TargetDate      time.Time
	Status          string
}

// GoalWithPlan is a goal joined to its owning plan.
type GoalWithPlan struct {
	Goal DevelopmentGoal
	Plan DevelopmentPlan
}

// OrgRole is a member's role inside an organization.
type OrgRole string

// Organization roles.
const (
	RoleOwner   OrgRole = "owner"
	RoleAdmin   OrgRole = "admin"
	RoleManager OrgRole = "manager"
	RoleMember  OrgRole = "member"
)

// ManagerRoles are the roles that receive team escalations.
var ManagerRoles = []OrgRole{RoleOwner, RoleAdmin, RoleManager}

// IsManager reports whether the role receives team escalations.
func (r OrgRole) IsManager() bool {
	for _, m := range ManagerRoles {
		if r == m {
			return true
		}
	}
	return false
}

// OrganizationMember links a user to an organization.
type OrganizationMember struct {
	UserID         string
	OrganizationID string
	Role           OrgRole
	IsActive       bool
}
