package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/patternwatch/internal/domain/model"
)

// MemoryStore keeps every table in slices guarded by one RWMutex. Rows are
// returned in insertion order unless a method documents otherwise.
type MemoryStore struct {
	mu sync.RWMutex

	events        []model.ActivityEvent
	skills        []model.SkillLevel
	streaks       []model.StreakState
	plans         map[string]model.DevelopmentPlan
	goals         []model.DevelopmentGoal
	members       []model.OrganizationMember
	alerts        []model.EvolutionAlert
	alertIDs      map[string]struct{}
	notifications []model.Notification
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:    make(map[string]model.DevelopmentPlan),
		alertIDs: make(map[string]struct{}),
	}
}

func (s *MemoryStore) StaleSkills(ctx context.Context, before time.Time) ([]model.SkillLevel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.SkillLevel
	for _, sk := range s.skills {
		if !sk.IsUnlocked {
			continue
		}
		if sk.LastPracticedAt == nil || sk.LastPracticedAt.Before(before) {
			out = append(out, copySkill(sk))
		}
	}
	return out, nil
}

func (s *MemoryStore) ListEvents(ctx context.Context, f model.EventFilter) ([]model.ActivityEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ActivityEvent
	for _, e := range s.events {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ActiveUserIDs(ctx context.Context, since time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, e := range s.events {
		if e.CreatedAt.Before(since) {
			continue
		}
		if _, ok := seen[e.UserID]; ok {
			continue
		}
		seen[e.UserID] = struct{}{}
		out = append(out, e.UserID)
	}
	return out, nil
}

func (s *MemoryStore) ActiveMembers(ctx context.Context) ([]model.OrganizationMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.OrganizationMember
	for _, m := range s.members {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) HasAlert(ctx context.Context, f model.AlertFilter) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.alerts {
		if f.Matches(a) {
			return true, nil
		}
	}
	return false, nil
}

// OverdueGoals returns goals sorted by target date, oldest first.
func (s *MemoryStore) OverdueGoals(ctx context.Context, now time.Time) ([]model.GoalWithPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.GoalWithPlan
	for _, g := range s.goals {
		if g.Status != model.StatusActive || g.ProgressPercent >= 100 || !g.TargetDate.Before(now) {
			continue
		}
		p, ok := s.plans[g.PlanID]
		if !ok || p.Status != model.StatusActive {
			continue
		}
		out = append(out, model.GoalWithPlan{Goal: g, Plan: p})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Goal.TargetDate.Before(out[j].Goal.TargetDate) })
	return out, nil
}

func (s *MemoryStore) ActiveStreaks(ctx context.Context, minStreak int) ([]model.StreakState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.StreakState
	for _, st := range s.streaks {
		if st.IsActive && st.CurrentStreak >= minStreak {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *MemoryStore) Managers(ctx context.Context, organizationID string) ([]model.OrganizationMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.OrganizationMember
	for _, m := range s.members {
		if m.OrganizationID == organizationID && m.IsActive && m.Role.IsManager() {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) InsertAlert(ctx context.Context, a *model.EvolutionAlert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.alertIDs[a.ID]; dup {
		return fmt.Errorf("insert alert %s: %w", a.ID, ErrDuplicateID)
	}
	s.alertIDs[a.ID] = struct{}{}
	s.alerts = append(s.alerts, *a)
	return nil
}

func (s *MemoryStore) InsertNotification(ctx context.Context, n *model.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *MemoryStore) Alerts(ctx context.Context) ([]model.EvolutionAlert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.EvolutionAlert, len(s.alerts))
	copy(out, s.alerts)
	return out, nil
}

func (s *MemoryStore) Notifications(ctx context.Context) ([]model.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out, nil
}

func (s *MemoryStore) Counts(ctx context.Context) (Counts, error) {
	if err := ctx.Err(); err != nil {
		return Counts{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Events:        int64(len(s.events)),
		Alerts:        int64(len(s.alerts)),
		Notifications: int64(len(s.notifications)),
	}, nil
}

func (s *MemoryStore) AddEvents(ctx context.Context, events ...model.ActivityEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		s.events = append(s.events, e)
	}
	return nil
}

func (s *MemoryStore) AddSkills(ctx context.Context, skills ...model.SkillLevel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sk := range skills {
		if sk.ID == "" {
			sk.ID = uuid.NewString()
		}
		s.skills = append(s.skills, copySkill(sk))
	}
	return nil
}

func (s *MemoryStore) AddStreaks(ctx context.Context, streaks ...model.StreakState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaks = append(s.streaks, streaks...)
	return nil
}

func (s *MemoryStore) AddPlans(ctx context.Context, plans ...model.DevelopmentPlan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range plans {
		if p.ID == "" {
			return fmt.Errorf("add plan: %w", ErrMissingID)
		}
		s.plans[p.ID] = p
	}
	return nil
}

func (s *MemoryStore) AddGoals(ctx context.Context, goals ...model.DevelopmentGoal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range goals {
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		s.goals = append(s.goals, g)
	}
	return nil
}

func (s *MemoryStore) AddMembers(ctx context.Context, members ...model.OrganizationMember) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = append(s.members, members...)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func copySkill(sk model.SkillLevel) model.SkillLevel {
	if sk.LastPracticedAt != nil {
		t := *sk.LastPracticedAt
		sk.LastPracticedAt = &t
	}
	return sk
}
