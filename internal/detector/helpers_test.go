package detector_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/patternwatch/internal/adapters/repository"
	"github.com/okian/patternwatch/internal/domain/model"
)

var (
	now         = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	errInjected = errors.New("injected failure")
)

func daysAgo(d int) time.Time { return now.Add(-time.Duration(d) * 24 * time.Hour) }

func ptr[T any](v T) *T { return &v }

// faultyStore wraps the memory store and fails selected calls.
type faultyStore struct {
	*repository.MemoryStore

	mu                sync.Mutex
	queryErr          map[string]error
	hasAlertErr       error
	failAlertInsert   func(a *model.EvolutionAlert) bool
	notificationErr   error
	overdueOverride   []model.GoalWithPlan
	managerCalls      int
	alertInsertCalled int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryStore: repository.NewMemoryStore(), queryErr: map[string]error{}}
}

func (f *faultyStore) fail(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryErr[method]
}

func (f *faultyStore) StaleSkills(ctx context.Context, before time.Time) ([]model.SkillLevel, error) {
	if err := f.fail("StaleSkills"); err != nil {
		return nil, err
	}
	return f.MemoryStore.StaleSkills(ctx, before)
}

func (f *faultyStore) ListEvents(ctx context.Context, flt model.EventFilter) ([]model.ActivityEvent, error) {
	if err := f.fail("ListEvents"); err != nil {
		return nil, err
	}
	return f.MemoryStore.ListEvents(ctx, flt)
}

func (f *faultyStore) ActiveUserIDs(ctx context.Context, since time.Time) ([]string, error) {
	if err := f.fail("ActiveUserIDs"); err != nil {
		return nil, err
	}
	return f.MemoryStore.ActiveUserIDs(ctx, since)
}

func (f *faultyStore) ActiveMembers(ctx context.Context) ([]model.OrganizationMember, error) {
	if err := f.fail("ActiveMembers"); err != nil {
		return nil, err
	}
	return f.MemoryStore.ActiveMembers(ctx)
}

func (f *faultyStore) HasAlert(ctx context.Context, flt model.AlertFilter) (bool, error) {
	if f.hasAlertErr != nil {
		return false, f.hasAlertErr
	}
	return f.MemoryStore.HasAlert(ctx, flt)
}

func (f *faultyStore) OverdueGoals(ctx context.Context, t time.Time) ([]model.GoalWithPlan, error) {
	if err := f.fail("OverdueGoals"); err != nil {
		return nil, err
	}
	if f.overdueOverride != nil {
		return f.overdueOverride, nil
	}
	return f.MemoryStore.OverdueGoals(ctx, t)
}

func (f *faultyStore) ActiveStreaks(ctx context.Context, minStreak int) ([]model.StreakState, error) {
	if err := f.fail("ActiveStreaks"); err != nil {
		return nil, err
	}
	return f.MemoryStore.ActiveStreaks(ctx, minStreak)
}

func (f *faultyStore) Managers(ctx context.Context, org string) ([]model.OrganizationMember, error) {
	f.mu.Lock()
	f.managerCalls++
	f.mu.Unlock()
	if err := f.fail("Managers"); err != nil {
		return nil, err
	}
	return f.MemoryStore.Managers(ctx, org)
}

func (f *faultyStore) InsertAlert(ctx context.Context, a *model.EvolutionAlert) error {
	f.mu.Lock()
	f.alertInsertCalled++
	f.mu.Unlock()
	if f.failAlertInsert != nil && f.failAlertInsert(a) {
		return errInjected
	}
	return f.MemoryStore.InsertAlert(ctx, a)
}

func (f *faultyStore) InsertNotification(ctx context.Context, n *model.Notification) error {
	if f.notificationErr != nil {
		return f.notificationErr
	}
	return f.MemoryStore.InsertNotification(ctx, n)
}

func alertsOf(s *faultyStore, t model.AlertType) []model.EvolutionAlert {
	all, _ := s.Alerts(context.Background())
	var out []model.EvolutionAlert
	for _, a := range all {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

func games(user string, at time.Time, scores ...float64) []model.ActivityEvent {
	out := make([]model.ActivityEvent, 0, len(scores))
	for i, sc := range scores {
		out = append(out, model.ActivityEvent{
			UserID:         user,
			OrganizationID: "org-1",
			Type:           model.EventGameCompleted,
			Score:          ptr(sc),
			CreatedAt:      at.Add(time.Duration(i) * time.Hour),
		})
	}
	return out
}
