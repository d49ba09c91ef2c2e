// Package seed generates synthetic fixtures that exercise every detection
// pass and writes them through the repository seeding methods.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/patternwatch/internal/adapters/repository"
	"github.com/okian/patternwatch/internal/domain/model"
)

// Scenario is the behavior a generated user exhibits.
type Scenario int

// Scenarios are assigned round-robin in this order.
const (
	ScenarioStagnantSkill Scenario = iota
	ScenarioBrokenStreak
	ScenarioLongBrokenStreak
	ScenarioInactive
	ScenarioPerformanceDrop
	ScenarioOverdueGoal
	ScenarioPositiveStreak
	ScenarioHealthy

	scenarioCount
)

var scenarioNames = [...]string{
	"stagnant_skill",
	"broken_streak",
	"long_broken_streak",
	"inactive",
	"performance_drop",
	"overdue_goal",
	"positive_streak",
	"healthy",
}

func (s Scenario) String() string {
	if s < 0 || s >= scenarioCount {
		return fmt.Sprintf("scenario(%d)", int(s))
	}
	return scenarioNames[s]
}

// Scenario shape constants.
const (
	day                  = 24 * time.Hour
	stagnantDays         = 30
	shortBrokenStreak    = 10
	longBrokenStreak     = 20
	inactiveLastSeen     = 10
	previousGamesDaysAgo = 10
	recentGamesDaysAgo   = 2
	gamesPerWindow       = 3
	previousGameScore    = 80.0
	recentGameScore      = 40.0
	overdueDays          = 20
	overdueProgress      = 30
	positiveStreak       = 12
	healthyStreak        = 3
)

// Config sizes the generated data set.
type Config struct {
	Users         int
	Organizations int
}

// DefaultConfig covers every scenario once in a single organization.
func DefaultConfig() Config {
	return Config{Users: int(scenarioCount), Organizations: 1}
}

// Fixtures is a generated data set.
type Fixtures struct {
	Members   []model.OrganizationMember
	Events    []model.ActivityEvent
	Skills    []model.SkillLevel
	Streaks   []model.StreakState
	Plans     []model.DevelopmentPlan
	Goals     []model.DevelopmentGoal
	Scenarios map[string]Scenario
}

// UserID returns the id of the i-th generated user.
func UserID(i int) string { return fmt.Sprintf("user-%03d", i) }

// OrganizationID returns the id of the i-th generated organization.
func OrganizationID(i int) string { return fmt.Sprintf("org-%02d", i) }

// ScenarioFor returns the scenario of the i-th generated user.
func ScenarioFor(i int) Scenario { return Scenario(i % int(scenarioCount)) }

// Generate builds fixtures relative to now. Every organization gets one
// owner and one manager; users are spread over organizations round-robin.
func Generate(cfg Config, now time.Time) Fixtures {
	if cfg.Organizations <= 0 {
		cfg.Organizations = 1
	}
	if cfg.Users < 0 {
		cfg.Users = 0
	}

	f := Fixtures{Scenarios: make(map[string]Scenario, cfg.Users)}
	ago := func(days int) time.Time { return now.Add(-time.Duration(days) * day) }

	for o := 0; o < cfg.Organizations; o++ {
		org := OrganizationID(o)
		for _, role := range []model.OrgRole{model.RoleOwner, model.RoleManager} {
			id := fmt.Sprintf("%s-%s", org, role)
			f.Members = append(f.Members, model.OrganizationMember{UserID: id, OrganizationID: org, Role: role, IsActive: true})
			f.Events = append(f.Events, event(id, org, model.EventLogin, ago(1), nil, nil))
		}
	}

	for i := 0; i < cfg.Users; i++ {
		user, org := UserID(i), OrganizationID(i%cfg.Organizations)
		sc := ScenarioFor(i)
		f.Scenarios[user] = sc
		f.Members = append(f.Members, model.OrganizationMember{UserID: user, OrganizationID: org, Role: model.RoleMember, IsActive: true})

		if sc == ScenarioInactive {
			f.Events = append(f.Events, event(user, org, model.EventLogin, ago(inactiveLastSeen), nil, nil))
			continue
		}
		f.Events = append(f.Events, event(user, org, model.EventLogin, ago(1), nil, nil))
		f.Skills = append(f.Skills, skill(user, org, "Comunicação", ago(1)))

		switch sc {
		case ScenarioStagnantSkill:
			f.Skills = append(f.Skills, skill(user, org, "Negociação", ago(stagnantDays)))
		case ScenarioBrokenStreak, ScenarioLongBrokenStreak:
			lost := shortBrokenStreak
			if sc == ScenarioLongBrokenStreak {
				lost = longBrokenStreak
			}
			f.Events = append(f.Events, event(user, org, model.EventStreakBroken, now.Add(-2*time.Hour), nil,
				map[string]any{"previousStreak": lost}))
			f.Streaks = append(f.Streaks, model.StreakState{UserID: user, OrganizationID: org})
		case ScenarioPerformanceDrop:
			for g := 0; g < gamesPerWindow; g++ {
				offset := time.Duration(g) * time.Hour
				prev, recent := previousGameScore, recentGameScore
				f.Events = append(f.Events,
					event(user, org, model.EventGameCompleted, ago(previousGamesDaysAgo).Add(offset), &prev, nil),
					event(user, org, model.EventGameCompleted, ago(recentGamesDaysAgo).Add(offset), &recent, nil),
				)
			}
		case ScenarioOverdueGoal:
			plan := model.DevelopmentPlan{ID: uuid.NewString(), UserID: user, OrganizationID: org, Status: model.StatusActive}
			f.Plans = append(f.Plans, plan)
			f.Goals = append(f.Goals, model.DevelopmentGoal{
				ID:              uuid.NewString(),
				PlanID:          plan.ID,
				Title:           "Concluir certificação",
				ProgressPercent: overdueProgress,
				TargetDate:      ago(overdueDays),
				Status:          model.StatusActive,
			})
		case ScenarioPositiveStreak:
			f.Streaks = append(f.Streaks, model.StreakState{UserID: user, OrganizationID: org, CurrentStreak: positiveStreak, IsActive: true})
		case ScenarioHealthy:
			f.Streaks = append(f.Streaks, model.StreakState{UserID: user, OrganizationID: org, CurrentStreak: healthyStreak, IsActive: true})
		}
	}
	return f
}

func event(user, org string, t model.EventType, at time.Time, score *float64, meta map[string]any) model.ActivityEvent {
	return model.ActivityEvent{
		ID:             uuid.NewString(),
		UserID:         user,
		OrganizationID: org,
		Type:           t,
		Score:          score,
		Metadata:       meta,
		CreatedAt:      at,
	}
}

func skill(user, org, name string, practiced time.Time) model.SkillLevel {
	return model.SkillLevel{
		ID:              uuid.NewString(),
		UserID:          user,
		SkillID:         uuid.NewString(),
		SkillName:       name,
		OrganizationID:  org,
		CurrentLevel:    2,
		LastPracticedAt: &practiced,
		IsUnlocked:      true,
	}
}

// Write inserts f through w. Plans are written before goals.
func Write(ctx context.Context, w repository.Seeder, f Fixtures) error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"members", func() error { return w.AddMembers(ctx, f.Members...) }},
		{"events", func() error { return w.AddEvents(ctx, f.Events...) }},
		{"skills", func() error { return w.AddSkills(ctx, f.Skills...) }},
		{"streaks", func() error { return w.AddStreaks(ctx, f.Streaks...) }},
		{"plans", func() error { return w.AddPlans(ctx, f.Plans...) }},
		{"goals", func() error { return w.AddGoals(ctx, f.Goals...) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("seed %s: %w", s.name, err)
		}
	}
	return nil
}
