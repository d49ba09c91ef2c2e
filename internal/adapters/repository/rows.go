package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/okian/patternwatch/internal/domain/model"
)

// Row types map the tables one to one. Ids are generated by the service so
// no column relies on database defaults.

type activityEventRow struct {
	ID             string `gorm:"primaryKey;size:36"`
	UserID         string `gorm:"size:36;not null;index"`
	OrganizationID string `gorm:"size:36"`
	EventType      string `gorm:"size:64;not null;index"`
	Score          *float64
	Metadata       datatypes.JSON
	CreatedAt      time.Time `gorm:"not null;index"`
}

func (activityEventRow) TableName() string { return "activity_events" }

type skillLevelRow struct {
	ID              string `gorm:"primaryKey;size:36"`
	UserID          string `gorm:"size:36;not null;index"`
	SkillID         string `gorm:"size:36;not null"`
	SkillName       string
	OrganizationID  string `gorm:"size:36"`
	CurrentLevel    int
	LastPracticedAt *time.Time `gorm:"index"`
	IsUnlocked      bool       `gorm:"not null"`
}

func (skillLevelRow) TableName() string { return "skill_levels" }

type streakStateRow struct {
	UserID         string `gorm:"primaryKey;size:36"`
	OrganizationID string `gorm:"primaryKey;size:36"`
	CurrentStreak  int    `gorm:"not null"`
	IsActive       bool   `gorm:"not null"`
}

func (streakStateRow) TableName() string { return "streak_states" }

type developmentPlanRow struct {
	ID             string `gorm:"primaryKey;size:36"`
	UserID         string `gorm:"size:36;not null;index"`
	OrganizationID string `gorm:"size:36"`
	Status         string `gorm:"size:32;not null"`
}

func (developmentPlanRow) TableName() string { return "development_plans" }

type developmentGoalRow struct {
	ID              string `gorm:"primaryKey;size:36"`
	PlanID          string `gorm:"size:36;not null;index"`
	Title           string
	ProgressPercent int       `gorm:"not null"`
	TargetDate      time.Time `gorm:"not null;index"`
	Status          string    `gorm:"size:32;not null"`
}

func (developmentGoalRow) TableName() string { return "development_goals" }

type organizationMemberRow struct {
	UserID         string `gorm:"primaryKey;size:36"`
	OrganizationID string `gorm:"primaryKey;size:36;index"`
	OrgRole        string `gorm:"size:32;not null"`
	IsActive       bool   `gorm:"not null"`
}

func (organizationMemberRow) TableName() string { return "organization_members" }

type evolutionAlertRow struct {
	ID                  string  `gorm:"primaryKey;size:36"`
	UserID              string  `gorm:"size:36;not null;index:idx_alerts_user_type"`
	OrganizationID      *string `gorm:"size:36"`
	AlertType           string  `gorm:"size:32;not null;index:idx_alerts_user_type"`
	Severity            string  `gorm:"size:16;not null"`
	Title               string  `gorm:"not null"`
	Description         string
	SuggestedAction     *string
	SuggestedActionType *string `gorm:"size:32"`
	SuggestedActionID   *string `gorm:"size:36"`
	RelatedEntityType   *string `gorm:"size:32"`
	RelatedEntityID     *string `gorm:"size:36"`
	Metadata            datatypes.JSON
	IsRead              bool      `gorm:"not null"`
	IsDismissed         bool      `gorm:"not null"`
	CreatedAt           time.Time `gorm:"not null;index"`
}

func (evolutionAlertRow) TableName() string { return "evolution_alerts" }

type notificationRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"size:36;not null;index"`
	Type      string `gorm:"size:32;not null"`
	Title     string `gorm:"not null"`
	Message   string
	Data      datatypes.JSON
	IsRead    bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (notificationRow) TableName() string { return "notifications" }

// allRows lists every table in migration order.
func allRows() []any {
	return []any{
		&activityEventRow{},
		&skillLevelRow{},
		&streakStateRow{},
		&developmentPlanRow{},
		&developmentGoalRow{},
		&organizationMemberRow{},
		&evolutionAlertRow{},
		&notificationRow{},
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func eventToRow(e model.ActivityEvent) (activityEventRow, error) {
	meta := datatypes.JSON("{}")
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return activityEventRow{}, fmt.Errorf("encode event %s metadata: %w", e.ID, err)
		}
		meta = raw
	}
	return activityEventRow{
		ID:             e.ID,
		UserID:         e.UserID,
		OrganizationID: e.OrganizationID,
		EventType:      string(e.Type),
		Score:          e.Score,
		Metadata:       meta,
		CreatedAt:      e.CreatedAt.UTC(),
	}, nil
}

func (r activityEventRow) toModel() model.ActivityEvent {
	e := model.ActivityEvent{
		ID:             r.ID,
		UserID:         r.UserID,
		OrganizationID: r.OrganizationID,
		Type:           model.EventType(r.EventType),
		Score:          r.Score,
		CreatedAt:      r.CreatedAt.UTC(),
	}
	if len(r.Metadata) > 0 {
		var m map[string]any
		// Event metadata is owned upstream; an unreadable blob reads as empty.
		if err := json.Unmarshal(r.Metadata, &m); err == nil {
			e.Metadata = m
		}
	}
	return e
}

func skillToRow(s model.SkillLevel) skillLevelRow {
	return skillLevelRow{
		ID:              s.ID,
		UserID:          s.UserID,
		SkillID:         s.SkillID,
		SkillName:       s.SkillName,
		OrganizationID:  s.OrganizationID,
		CurrentLevel:    s.CurrentLevel,
		LastPracticedAt: utcPtr(s.LastPracticedAt),
		IsUnlocked:      s.IsUnlocked,
	}
}

func (r skillLevelRow) toModel() model.SkillLevel {
	return model.SkillLevel{
		ID:              r.ID,
		UserID:          r.UserID,
		SkillID:         r.SkillID,
		SkillName:       r.SkillName,
		OrganizationID:  r.OrganizationID,
		CurrentLevel:    r.CurrentLevel,
		LastPracticedAt: utcPtr(r.LastPracticedAt),
		IsUnlocked:      r.IsUnlocked,
	}
}

func (r streakStateRow) toModel() model.StreakState {
	return model.StreakState{
		UserID:         r.UserID,
		OrganizationID: r.OrganizationID,
		CurrentStreak:  r.CurrentStreak,
		IsActive:       r.IsActive,
	}
}

func (r organizationMemberRow) toModel() model.OrganizationMember {
	return model.OrganizationMember{
		UserID:         r.UserID,
		OrganizationID: r.OrganizationID,
		Role:           model.OrgRole(r.OrgRole),
		IsActive:       r.IsActive,
	}
}

func alertToRow(a *model.EvolutionAlert) (evolutionAlertRow, error) {
	meta, err := model.EncodeMetadata(a.Metadata)
	if err != nil {
		return evolutionAlertRow{}, err
	}
	return evolutionAlertRow{
		ID:                  a.ID,
		UserID:              a.UserID,
		OrganizationID:      nullable(a.OrganizationID),
		AlertType:           string(a.Type),
		Severity:            string(a.Severity),
		Title:               a.Title,
		Description:         a.Description,
		SuggestedAction:     nullable(a.SuggestedAction),
		SuggestedActionType: nullable(a.SuggestedActionType),
		SuggestedActionID:   nullable(a.SuggestedActionID),
		RelatedEntityType:   nullable(a.RelatedEntityType),
		RelatedEntityID:     nullable(a.RelatedEntityID),
		Metadata:            meta,
		IsRead:              a.IsRead,
		IsDismissed:         a.IsDismissed,
		CreatedAt:           a.CreatedAt.UTC(),
	}, nil
}

func (r evolutionAlertRow) toModel() (model.EvolutionAlert, error) {
	t := model.AlertType(r.AlertType)
	meta, err := model.DecodeMetadata(t, r.Metadata)
	if err != nil {
		return model.EvolutionAlert{}, fmt.Errorf("alert %s: %w", r.ID, err)
	}
	return model.EvolutionAlert{
		ID:                  r.ID,
		UserID:              r.UserID,
		OrganizationID:      deref(r.OrganizationID),
		Type:                t,
		Severity:            model.Severity(r.Severity),
		Title:               r.Title,
		Description:         r.Description,
		SuggestedAction:     deref(r.SuggestedAction),
		SuggestedActionType: deref(r.SuggestedActionType),
		SuggestedActionID:   deref(r.SuggestedActionID),
		RelatedEntityType:   deref(r.RelatedEntityType),
		RelatedEntityID:     deref(r.RelatedEntityID),
		Metadata:            meta,
		IsRead:              r.IsRead,
		IsDismissed:         r.IsDismissed,
		CreatedAt:           r.CreatedAt.UTC(),
	}, nil
}

func notificationToRow(n *model.Notification) (notificationRow, error) {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return notificationRow{}, fmt.Errorf("encode notification data: %w", err)
	}
	return notificationRow{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      data,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.UTC(),
	}, nil
}

func (r notificationRow) toModel() (model.Notification, error) {
	n := model.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      r.Type,
		Title:     r.Title,
		Message:   r.Message,
		IsRead:    r.IsRead,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &n.Data); err != nil {
			return model.Notification{}, fmt.Errorf("notification %s data: %w", r.ID, err)
		}
	}
	return n, nil
}
