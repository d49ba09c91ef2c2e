package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/patternwatch/internal/domain/dedupe"
	"github.com/okian/patternwatch/internal/domain/model"
	"github.com/okian/patternwatch/internal/domain/scoring"
)

// Thresholds of the detection heuristics.
const (
	StagnationWarningDays   = 21
	StreakBrokenMin         = 7
	StreakBrokenCritical    = 14
	InactivityWindowDays    = 7
	DropWarningPercent      = 20.0
	DropCriticalPercent     = 40.0
	OverdueCriticalDays     = 14
	PositiveStreakMin       = 7
	goalCompleteProgressPct = 100
)

// PassFunc proposes alerts from one data view. It must not write to the
// store. A returned error wrapping ErrRecordSkipped reports records that
// were dropped; the proposals returned alongside it are still valid. Any
// other error discards the pass output.
type PassFunc func(ctx context.Context, w Window, s Store) ([]model.EvolutionAlert, error)

// Pass is one named detection heuristic.
type Pass struct {
	Name string
	Type model.AlertType
	Run  PassFunc
}

// PassConfig tunes the default passes.
type PassConfig struct {
	// IncludeNeverPracticed keeps unlocked skills without any practice in
	// the stagnation scan.
	IncludeNeverPracticed bool
	// MinSamples is the per-window game floor of the default scorer. Zero
	// keeps the scorer default. Ignored when Scorer is set.
	MinSamples int
	// Scorer computes performance drops. Nil uses a WindowScorer.
	Scorer scoring.Scorer
}

// Passes returns the six passes in detection order.
func Passes(cfg PassConfig) []Pass {
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = scoring.NewWindowScorer(scoring.WithMinSamples(cfg.MinSamples))
	}
	return []Pass{
		StagnationPass(cfg.IncludeNeverPracticed),
		BrokenStreakPass(),
		InactivityPass(),
		PerformanceDropPass(scorer),
		OverdueGoalPass(),
		PositiveStreakPass(),
	}
}

// DefaultPasses returns the passes with their observed defaults.
func DefaultPasses() []Pass {
	return Passes(PassConfig{IncludeNeverPracticed: true})
}

func skipped(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRecordSkipped, fmt.Sprintf(format, args...))
}

// StagnationPass flags unlocked skills not practiced for two weeks. A skill
// that was never practiced is measured from the Unix epoch.
func StagnationPass(includeNeverPracticed bool) Pass {
	return Pass{
		Name: "stagnation",
		Type: model.AlertSkillStagnation,
		Run: func(ctx context.Context, w Window, s Store) ([]model.EvolutionAlert, error) {
			skills, err := s.StaleSkills(ctx, w.TwoWeeksAgo)
			if err != nil {
				return nil, fmt.Errorf("stale skills: %w", err)
			}

			var out []model.EvolutionAlert
			for _, sk := range skills {
				if !sk.IsUnlocked {
					continue
				}
				last := time.Unix(0, 0).UTC()
				never := sk.LastPracticedAt == nil
				if never {
					if !includeNeverPracticed {
						continue
					}
				} else {
					if !sk.LastPracticedAt.Before(w.TwoWeeksAgo) {
						continue
					}
					last = *sk.LastPracticedAt
				}

				days := w.DaysSince(last)
				severity := model.SeverityInfo
				if days > StagnationWarningDays {
					severity = model.SeverityWarning
				}
				out = append(out, model.EvolutionAlert{
					UserID:              sk.UserID,
					OrganizationID:      sk.OrganizationID,
					Type:                model.AlertSkillStagnation,
					Severity:            severity,
					Title:               fmt.Sprintf("Skill estagnada há %d dias", days),
					Description:         fmt.Sprintf("Você não pratica %s há %d dias. Que tal um jogo rápido para retomar?", sk.SkillName, days),
					SuggestedAction:     fmt.Sprintf("Praticar %s", sk.SkillName),
					SuggestedActionType: model.ActionGame,
					SuggestedActionID:   sk.SkillID,
					RelatedEntityType:   model.EntitySkill,
					RelatedEntityID:     sk.SkillID,
					Metadata: model.StagnationMetadata{
						DaysInactive:   days,
						SkillLevel:     sk.CurrentLevel,
						NeverPracticed: never,
					},
				})
			}
			return out, nil
		},
	}
}

// BrokenStreakPass flags streaks of a week or more lost in the last day.
func BrokenStreakPass() Pass {
	return Pass{
		Name: "broken_streak",
		Type: model.AlertStreakBroken,
		Run: func(ctx context.Context, w Window, s Store) ([]model.EvolutionAlert, error) {
			events, err := s.ListEvents(ctx, model.EventFilter{Type: model.EventStreakBroken, Since: w.Yesterday})
			if err != nil {
				return nil, fmt.Errorf("streak broken events: %w", err)
			}

			var out []model.EvolutionAlert
			for _, e := range events {
				if e.Type != model.EventStreakBroken || e.CreatedAt.Before(w.Yesterday) {
					continue
				}
				n := e.PreviousStreak()
				if n < StreakBrokenMin {
					continue
				}
				severity := model.SeverityWarning
				if n >= StreakBrokenCritical {
					severity = model.SeverityCritical
				}
				out = append(out, model.EvolutionAlert{
					UserID:              e.UserID,
					OrganizationID:      e.OrganizationID,
					Type:                model.AlertStreakBroken,
					Severity:            severity,
					Title:               fmt.Sprintf("Streak de %d dias quebrado", n),
					Description:         fmt.Sprintf("Seu streak de %d dias foi interrompido. Volte hoje para começar um novo!", n),
					SuggestedAction:     "Jogar agora",
					SuggestedActionType: model.ActionGame,
					Metadata:            model.StreakBrokenMetadata{PreviousStreak: n},
				})
			}
			return out, nil
		},
	}
}

// InactivityPass flags active members without any event in the last week,
// unless an undismissed inactivity alert from the same week exists.
func InactivityPass() Pass {
	rule, _ := dedupe.DefaultPolicy().Rule(model.AlertInactivity)
	return Pass{
		Name: "inactivity",
		Type: model.AlertInactivity,
		Run: func(ctx context.Context, w Window, s Store) ([]model.EvolutionAlert, error) {
			active, err := s.ActiveUserIDs(ctx, w.WeekAgo)
			if err != nil {
				return nil, fmt.Errorf("active users: %w", err)
			}
			members, err := s.ActiveMembers(ctx)
			if err != nil {
				return nil, fmt.Errorf("active members: %w", err)
			}

			activeSet := make(map[string]struct{}, len(active))
			for _, id := range active {
				activeSet[id] = struct{}{}
			}

			seen := dedupe.NewInMemoryDeduper()
			var (
				out   []model.EvolutionAlert
				skips []error
			)
			for _, m := range members {
				if !m.IsActive {
					continue
				}
				if _, ok := activeSet[m.UserID]; ok {
					continue
				}
				if seen.SeenAndRecord(ctx, dedupe.Key(model.AlertInactivity, m.UserID, "")) {
					continue
				}
				exists, err := s.HasAlert(ctx, rule.Filter(model.AlertInactivity, m.UserID, "", w.Now))
				if err != nil {
					skips = append(skips, skipped("inactivity dedup for user %s: %v", m.UserID, err))
					continue
				}
				if exists {
					continue
				}
				out = append(out, model.EvolutionAlert{
					UserID:              m.UserID,
					OrganizationID:      m.OrganizationID,
					Type:                model.AlertInactivity,
					Severity:            model.SeverityWarning,
					Title:               "Você está inativo há 7+ dias",
					Description:         "Não registramos atividades suas na última semana. Retome sua trilha de treinamentos.",
					SuggestedAction:     "Ver treinamentos",
					SuggestedActionType: model.ActionTraining,
					Metadata:            model.InactivityMetadata{WindowDays: InactivityWindowDays},
				})
			}
			return out, errors.Join(skips...)
		},
	}
}

// PerformanceDropPass compares each user's game scores of the last week
// against the week before. A nil scorer uses a default WindowScorer.
func PerformanceDropPass(scorer scoring.Scorer) Pass {
	if scorer == nil {
		scorer = scoring.NewWindowScorer()
	}
	return Pass{
		Name: "performance_drop",
		Type: model.AlertPerformanceDrop,
		Run: func(ctx context.Context, w Window, s Store) ([]model.EvolutionAlert, error) {
			events, err := s.ListEvents(ctx, model.EventFilter{
				Type:       model.EventGameCompleted,
				Since:      w.TwoWeeksAgo,
				ScoredOnly: true,
			})
			if err != nil {
				return nil, fmt.Errorf("game events: %w", err)
			}

			type bucket struct {
				in     scoring.Input
				org    string
				lastAt time.Time
			}
			var order []string
			byUser := make(map[string]*bucket)
			for _, e := range events {
				if e.Type != model.EventGameCompleted || !e.HasScore() || e.CreatedAt.Before(w.TwoWeeksAgo) {
					continue
				}
				b, ok := byUser[e.UserID]
				if !ok {
					b = &bucket{in: scoring.Input{UserID: e.UserID}}
					byUser[e.UserID] = b
					order = append(order, e.UserID)
				}
				b.in.Add(e.CreatedAt, w.WeekAgo, *e.Score)
				if !e.CreatedAt.Before(b.lastAt) {
					b.lastAt = e.CreatedAt
					b.org = e.OrganizationID
				}
			}

			var out []model.EvolutionAlert
			for _, userID := range order {
				b := byUser[userID]
				res, err := scorer.Score(ctx, b.in)
				switch {
				case errors.Is(err, scoring.ErrInsufficientSamples), errors.Is(err, scoring.ErrNonPositiveBaseline):
					continue
				case err != nil:
					return nil, fmt.Errorf("score user %s: %w", userID, err)
				}
				if res.DropPercent < DropWarningPercent {
					continue
				}
				severity := model.SeverityWarning
				if res.DropPercent >= DropCriticalPercent {
					severity = model.SeverityCritical
				}
				meta := model.DropMetadata{
					DropPercent:     scoring.Round(res.DropPercent),
					RecentAvg:       scoring.Round(res.RecentAvg),
					PreviousAvg:     scoring.Round(res.PreviousAvg),
					RecentSamples:   res.RecentSamples,
					PreviousSamples: res.PreviousSamples,
				}
				out = append(out, model.EvolutionAlert{
					UserID:         userID,
					OrganizationID: b.org,
					Type:           model.AlertPerformanceDrop,
					Severity:       severity,
					Title:          fmt.Sprintf("Queda de %.0f%% no desempenho", meta.DropPercent),
					Description: fmt.Sprintf("Sua média recente (%.0f) está %.0f%% abaixo da semana anterior (%.0f).",
						meta.RecentAvg, meta.DropPercent, meta.PreviousAvg),
					SuggestedAction:     "Revisar conteúdos",
					SuggestedActionType: model.ActionTraining,
					Metadata:            meta,
				})
			}
			return out, nil
		},
	}
}

// OverdueGoalPass flags unfinished goals of active plans past their target
// date.
func OverdueGoalPass() Pass {
	return Pass{
		Name: "goal_overdue",
		Type: model.AlertGoalOverdue,
		Run: func(ctx context.Context, w Window, s Store) ([]model.EvolutionAlert, error) {
			goals, err := s.OverdueGoals(ctx, w.Now)
			if err != nil {
				return nil, fmt.Errorf("overdue goals: %w", err)
			}

			var out []model.EvolutionAlert
			for _, gp := range goals {
				g, p := gp.Goal, gp.Plan
				// The join may return plans in other states.
				if p.Status != model.StatusActive || g.Status != model.StatusActive {
					continue
				}
				if g.ProgressPercent >= goalCompleteProgressPct || !g.TargetDate.Before(w.Now) {
					continue
				}
				days := w.DaysSince(g.TargetDate)
				severity := model.SeverityWarning
				if days > OverdueCriticalDays {
					severity = model.SeverityCritical
				}
				out = append(out, model.EvolutionAlert{
					UserID:              p.UserID,
					OrganizationID:      p.OrganizationID,
					Type:                model.AlertGoalOverdue,
					Severity:            severity,
					Title:               fmt.Sprintf("Meta atrasada: %s", g.Title),
					Description:         fmt.Sprintf("A meta \"%s\" está atrasada há %d dias com %d%% de progresso.", g.Title, days, g.ProgressPercent),
					SuggestedAction:     "Atualizar PDI",
					SuggestedActionType: model.ActionPDI,
					SuggestedActionID:   p.ID,
					RelatedEntityType:   model.EntityGoal,
					RelatedEntityID:     g.ID,
					Metadata: model.OverdueMetadata{
						DaysOverdue:     days,
						ProgressPercent: g.ProgressPercent,
						TargetDate:      g.TargetDate,
					},
				})
			}
			return out, nil
		},
	}
}

// PositiveStreakPass praises active streaks of a week or more, at most once
// per user per week.
func PositiveStreakPass() Pass {
	rule, _ := dedupe.DefaultPolicy().Rule(model.AlertPositiveStreak)
	return Pass{
		Name: "positive_streak",
		Type: model.AlertPositiveStreak,
		Run: func(ctx context.Context, w Window, s Store) ([]model.EvolutionAlert, error) {
			streaks, err := s.ActiveStreaks(ctx, PositiveStreakMin)
			if err != nil {
				return nil, fmt.Errorf("active streaks: %w", err)
			}

			seen := dedupe.NewInMemoryDeduper()
			var (
				out   []model.EvolutionAlert
				skips []error
			)
			for _, st := range streaks {
				if !st.IsActive || st.CurrentStreak < PositiveStreakMin {
					continue
				}
				if seen.SeenAndRecord(ctx, dedupe.Key(model.AlertPositiveStreak, st.UserID, "")) {
					continue
				}
				exists, err := s.HasAlert(ctx, rule.Filter(model.AlertPositiveStreak, st.UserID, "", w.Now))
				if err != nil {
					skips = append(skips, skipped("positive streak dedup for user %s: %v", st.UserID, err))
					continue
				}
				if exists {
					continue
				}
				out = append(out, model.EvolutionAlert{
					UserID:              st.UserID,
					OrganizationID:      st.OrganizationID,
					Type:                model.AlertPositiveStreak,
					Severity:            model.SeverityPositive,
					Title:               fmt.Sprintf("🔥 %d dias de streak!", st.CurrentStreak),
					Description:         fmt.Sprintf("Parabéns! Você mantém um streak de %d dias. Continue assim!", st.CurrentStreak),
					SuggestedAction:     "Ver conquistas",
					SuggestedActionType: model.ActionView,
					Metadata:            model.PositiveStreakMetadata{CurrentStreak: st.CurrentStreak},
				})
			}
			return out, errors.Join(skips...)
		},
	}
}
