package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/okian/patternwatch/internal/domain/model"
)

// GormStore implements Store on a relational database through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying connection.
func (s *GormStore) DB() *gorm.DB { return s.db }

// Migrate creates or updates every table.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allRows()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (s *GormStore) StaleSkills(ctx context.Context, before time.Time) ([]model.SkillLevel, error) {
	var rows []skillLevelRow
	err := s.db.WithContext(ctx).
		Where("is_unlocked = ?", true).
		Where("last_practiced_at IS NULL OR last_practiced_at < ?", before.UTC()).
		Order("user_id, skill_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query stale skills: %w", err)
	}
	out := make([]model.SkillLevel, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *GormStore) ListEvents(ctx context.Context, f model.EventFilter) ([]model.ActivityEvent, error) {
	q := s.db.WithContext(ctx).Model(&activityEventRow{})
	if f.Type != "" {
		q = q.Where("event_type = ?", string(f.Type))
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since.UTC())
	}
	if f.ScoredOnly {
		q = q.Where("score IS NOT NULL")
	}

	var rows []activityEventRow
	if err := q.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	out := make([]model.ActivityEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *GormStore) ActiveUserIDs(ctx context.Context, since time.Time) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&activityEventRow{}).
		Where("created_at >= ?", since.UTC()).
		Distinct("user_id").
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("query active users: %w", err)
	}
	return ids, nil
}

func (s *GormStore) ActiveMembers(ctx context.Context) ([]model.OrganizationMember, error) {
	var rows []organizationMemberRow
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("user_id, organization_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query active members: %w", err)
	}
	return membersToModel(rows), nil
}

func (s *GormStore) HasAlert(ctx context.Context, f model.AlertFilter) (bool, error) {
	q := s.db.WithContext(ctx).
		Model(&evolutionAlertRow{}).
		Where("user_id = ? AND alert_type = ? AND created_at >= ?", f.UserID, string(f.Type), f.Since.UTC())
	if f.UndismissedOnly {
		q = q.Where("is_dismissed = ?", false)
	}
	if f.RelatedEntityID != "" {
		q = q.Where("related_entity_id = ?", f.RelatedEntityID)
	}

	var ids []string
	if err := q.Limit(1).Pluck("id", &ids).Error; err != nil {
		return false, fmt.Errorf("query alerts: %w", err)
	}
	return len(ids) > 0, nil
}

// goalPlanRow is the projection of the goal/plan join.
type goalPlanRow struct {
	GoalID          string
	PlanID          string
	Title           string
	ProgressPercent int
	TargetDate      time.Time
	GoalStatus      string
	UserID          string
	OrganizationID  string
	PlanStatus      string
}

func (s *GormStore) OverdueGoals(ctx context.Context, now time.Time) ([]model.GoalWithPlan, error) {
	var rows []goalPlanRow
	err := s.db.WithContext(ctx).
		Table("development_goals AS g").
		Select(`g.id AS goal_id, g.plan_id, g.title, g.progress_percent, g.target_date,
			g.status AS goal_status, p.user_id, p.organization_id, p.status AS plan_status`).
		Joins("JOIN development_plans AS p ON p.id = g.plan_id").
		Where("g.target_date < ? AND g.progress_percent < ? AND g.status = ? AND p.status = ?",
			now.UTC(), 100, model.StatusActive, model.StatusActive).
		Order("g.target_date, g.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query overdue goals: %w", err)
	}

	out := make([]model.GoalWithPlan, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.GoalWithPlan{
			Goal: model.DevelopmentGoal{
				ID:              r.GoalID,
				PlanID:          r.PlanID,
				Title:           r.Title,
				ProgressPercent: r.ProgressPercent,
				TargetDate:      r.TargetDate.UTC(),
				Status:          r.GoalStatus,
			},
			Plan: model.DevelopmentPlan{
				ID:             r.PlanID,
				UserID:         r.UserID,
				OrganizationID: r.OrganizationID,
				Status:         r.PlanStatus,
			},
		})
	}
	return out, nil
}

func (s *GormStore) ActiveStreaks(ctx context.Context, minStreak int) ([]model.StreakState, error) {
	var rows []streakStateRow
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND current_streak >= ?", true, minStreak).
		Order("user_id, organization_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query active streaks: %w", err)
	}
	out := make([]model.StreakState, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *GormStore) Managers(ctx context.Context, organizationID string) ([]model.OrganizationMember, error) {
	roles := make([]string, 0, len(model.ManagerRoles))
	for _, r := range model.ManagerRoles {
		roles = append(roles, string(r))
	}

	var rows []organizationMemberRow
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND is_active = ? AND org_role IN ?", organizationID, true, roles).
		Order("user_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query managers of %s: %w", organizationID, err)
	}
	return membersToModel(rows), nil
}

func (s *GormStore) InsertAlert(ctx context.Context, a *model.EvolutionAlert) error {
	if a.ID == "" {
		return fmt.Errorf("insert alert: %w", ErrMissingID)
	}
	row, err := alertToRow(a)
	if err != nil {
		return fmt.Errorf("insert alert %s: %w", a.ID, err)
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert alert %s: %w", a.ID, err)
	}
	return nil
}

func (s *GormStore) InsertNotification(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		return fmt.Errorf("insert notification: %w", ErrMissingID)
	}
	row, err := notificationToRow(n)
	if err != nil {
		return fmt.Errorf("insert notification %s: %w", n.ID, err)
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert notification %s: %w", n.ID, err)
	}
	return nil
}

func (s *GormStore) Alerts(ctx context.Context) ([]model.EvolutionAlert, error) {
	var rows []evolutionAlertRow
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	out := make([]model.EvolutionAlert, 0, len(rows))
	for _, r := range rows {
		a, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *GormStore) Notifications(ctx context.Context) ([]model.Notification, error) {
	var rows []notificationRow
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	out := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *GormStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	db := s.db.WithContext(ctx)
	if err := db.Model(&activityEventRow{}).Count(&c.Events).Error; err != nil {
		return Counts{}, fmt.Errorf("count events: %w", err)
	}
	if err := db.Model(&evolutionAlertRow{}).Count(&c.Alerts).Error; err != nil {
		return Counts{}, fmt.Errorf("count alerts: %w", err)
	}
	if err := db.Model(&notificationRow{}).Count(&c.Notifications).Error; err != nil {
		return Counts{}, fmt.Errorf("count notifications: %w", err)
	}
	return c, nil
}

func (s *GormStore) AddEvents(ctx context.Context, events ...model.ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]activityEventRow, 0, len(events))
	for _, e := range events {
		if e.ID == "" {
			e.ID = newID()
		}
		r, err := eventToRow(e)
		if err != nil {
			return err
		}
		rows = append(rows, r)
	}
	return s.create(ctx, "events", &rows)
}

func (s *GormStore) AddSkills(ctx context.Context, skills ...model.SkillLevel) error {
	if len(skills) == 0 {
		return nil
	}
	rows := make([]skillLevelRow, 0, len(skills))
	for _, sk := range skills {
		if sk.ID == "" {
			sk.ID = newID()
		}
		rows = append(rows, skillToRow(sk))
	}
	return s.create(ctx, "skills", &rows)
}

func (s *GormStore) AddStreaks(ctx context.Context, streaks ...model.StreakState) error {
	if len(streaks) == 0 {
		return nil
	}
	rows := make([]streakStateRow, 0, len(streaks))
	for _, st := range streaks {
		rows = append(rows, streakStateRow{
			UserID:         st.UserID,
			OrganizationID: st.OrganizationID,
			CurrentStreak:  st.CurrentStreak,
			IsActive:       st.IsActive,
		})
	}
	return s.create(ctx, "streaks", &rows)
}

func (s *GormStore) AddPlans(ctx context.Context, plans ...model.DevelopmentPlan) error {
	if len(plans) == 0 {
		return nil
	}
	rows := make([]developmentPlanRow, 0, len(plans))
	for _, p := range plans {
		if p.ID == "" {
			return fmt.Errorf("add plan: %w", ErrMissingID)
		}
		rows = append(rows, developmentPlanRow{
			ID:             p.ID,
			UserID:         p.UserID,
			OrganizationID: p.OrganizationID,
			Status:         p.Status,
		})
	}
	return s.create(ctx, "plans", &rows)
}

func (s *GormStore) AddGoals(ctx context.Context, goals ...model.DevelopmentGoal) error {
	if len(goals) == 0 {
		return nil
	}
	rows := make([]developmentGoalRow, 0, len(goals))
	for _, g := range goals {
		if g.ID == "" {
			g.ID = newID()
		}
		rows = append(rows, developmentGoalRow{
			ID:              g.ID,
			PlanID:          g.PlanID,
			Title:           g.Title,
			ProgressPercent: g.ProgressPercent,
			TargetDate:      g.TargetDate.UTC(),
			Status:          g.Status,
		})
	}
	return s.create(ctx, "goals", &rows)
}

func (s *GormStore) AddMembers(ctx context.Context, members ...model.OrganizationMember) error {
	if len(members) == 0 {
		return nil
	}
	rows := make([]organizationMemberRow, 0, len(members))
	for _, m := range members {
		rows = append(rows, organizationMemberRow{
			UserID:         m.UserID,
			OrganizationID: m.OrganizationID,
			OrgRole:        string(m.Role),
			IsActive:       m.IsActive,
		})
	}
	return s.create(ctx, "members", &rows)
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}

const seedBatchSize = 500

func (s *GormStore) create(ctx context.Context, what string, rows any) error {
	if err := s.db.WithContext(ctx).CreateInBatches(rows, seedBatchSize).Error; err != nil {
		return fmt.Errorf("add %s: %w", what, err)
	}
	return nil
}

func membersToModel(rows []organizationMemberRow) []model.OrganizationMember {
	out := make([]model.OrganizationMember, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}
