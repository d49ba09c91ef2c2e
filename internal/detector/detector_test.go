package detector_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/patternwatch/internal/detector"
	"github.com/okian/patternwatch/internal/domain/model"
	"github.com/okian/patternwatch/internal/domain/types"
)

// seedEveryPass stores one qualifying row per pass.
func seedEveryPass(ctx context.Context, s *faultyStore) {
	So(s.AddSkills(ctx, model.SkillLevel{UserID: "u-skill", SkillID: "s1", OrganizationID: "org-1", IsUnlocked: true, LastPracticedAt: ptr(daysAgo(30))}), ShouldBeNil)
	So(s.AddEvents(ctx, model.ActivityEvent{UserID: "u-streak", OrganizationID: "org-1", Type: model.EventStreakBroken, Metadata: map[string]any{"previousStreak": 20}, CreatedAt: daysAgo(0).Add(-time.Hour)}), ShouldBeNil)
	So(s.AddMembers(ctx, model.OrganizationMember{UserID: "u-idle", OrganizationID: "org-1", Role: model.RoleMember, IsActive: true}), ShouldBeNil)
	So(s.AddEvents(ctx, games("u-drop", daysAgo(12), 100, 100, 100)...), ShouldBeNil)
	So(s.AddEvents(ctx, games("u-drop", daysAgo(3), 40, 40, 40)...), ShouldBeNil)
	So(s.AddPlans(ctx, model.DevelopmentPlan{ID: "plan-1", UserID: "u-goal", OrganizationID: "org-1", Status: model.StatusActive}), ShouldBeNil)
	So(s.AddGoals(ctx, model.DevelopmentGoal{ID: "g1", PlanID: "plan-1", Title: "PDI", ProgressPercent: 40, TargetDate: daysAgo(10), Status: model.StatusActive}), ShouldBeNil)
	So(s.AddStreaks(ctx, model.StreakState{UserID: "u-hot", OrganizationID: "org-1", CurrentStreak: 10, IsActive: true}), ShouldBeNil)
}

func TestDetectorEmptyRun(t *testing.T) {
	Convey("Given a store with no qualifying rows", t, func() {
		ctx := context.Background()
		s := newFaultyStore()
		d := detector.New(s)

		Convey("When detection runs", func() {
			report, err := d.RunAt(ctx, now)

			Convey("Then every count is zero", func() {
				So(err, ShouldBeNil)
				So(report, ShouldResemble, types.Report{Success: true})
				So(report.Summary.Total(), ShouldEqual, 0)
			})
		})
	})
}

func TestDetectorFullRun(t *testing.T) {
	Convey("Given one qualifying row per pass", t, func() {
		ctx := context.Background()
		s := newFaultyStore()
		seedEveryPass(ctx, s)

		Convey("When detection runs", func() {
			ids := 0
			d := detector.New(s, detector.WithIDGenerator(func() string {
				ids++
				return "id-" + string(rune('a'+ids))
			}))
			report, err := d.RunAt(ctx, now)
			So(err, ShouldBeNil)

			Convey("Then the report counts every pass", func() {
				So(report.Success, ShouldBeTrue)
				So(report.AlertsGenerated, ShouldEqual, 6)
				So(report.AlertsCreated, ShouldEqual, 6)
				So(report.Summary, ShouldResemble, types.Summary{
					SkillStagnation: 1, StreakBroken: 1, Inactivity: 1,
					PerformanceDrop: 1, GoalOverdue: 1, PositiveStreak: 1,
				})
			})

			Convey("Then stored alerts are unread and undismissed with the run time", func() {
				alerts, err := s.Alerts(ctx)
				So(err, ShouldBeNil)
				So(len(alerts), ShouldEqual, 6)
				for _, a := range alerts {
					So(a.IsRead, ShouldBeFalse)
					So(a.IsDismissed, ShouldBeFalse)
					So(a.CreatedAt, ShouldEqual, now)
					So(a.ID, ShouldStartWith, "id-")
				}
				So(alerts[0].Type, ShouldEqual, model.AlertSkillStagnation)
				So(alerts[5].Type, ShouldEqual, model.AlertPositiveStreak)
			})

			Convey("Then no managers means no notifications", func() {
				So(report.ManagerNotifications, ShouldEqual, 0)
			})

			Convey("Then a second run dedups inactivity and positive streak only", func() {
				second, err := d.RunAt(ctx, now.Add(time.Hour))
				So(err, ShouldBeNil)
				So(second.Summary.Inactivity, ShouldEqual, 0)
				So(second.Summary.PositiveStreak, ShouldEqual, 0)
				So(second.Summary.SkillStagnation, ShouldEqual, 1)
				So(second.Summary.GoalOverdue, ShouldEqual, 1)
				So(len(alertsOf(s, model.AlertSkillStagnation)), ShouldEqual, 2)
			})
		})

		Convey("When detection runs with parallel passes", func() {
			report, err := detector.New(s, detector.WithParallelPasses(true)).RunAt(ctx, now)

			Convey("Then the result matches a sequential run in pass order", func() {
				So(err, ShouldBeNil)
				So(report.AlertsGenerated, ShouldEqual, 6)
				alerts, _ := s.Alerts(ctx)
				for i, a := range alerts {
					So(a.Type, ShouldEqual, model.AlertTypes[i])
				}
			})
		})

		Convey("When the cooldown policy is enabled", func() {
			d := detector.New(s, detector.WithCooldown(0))
			_, err := d.RunAt(ctx, now)
			So(err, ShouldBeNil)
			second, err := d.RunAt(ctx, now.Add(time.Hour))

			Convey("Then no type is repeated within the window", func() {
				So(err, ShouldBeNil)
				So(second.AlertsGenerated, ShouldEqual, 0)
				So(len(alertsOf(s, model.AlertGoalOverdue)), ShouldEqual, 1)
			})
		})

		Convey("When the cooldown lookup fails", func() {
			d := detector.New(s,
				detector.WithCooldown(0),
				detector.WithPasses(detector.StagnationPass(true)))
			s.hasAlertErr = errInjected
			report, err := d.RunAt(ctx, now)

			Convey("Then the proposal is kept", func() {
				So(err, ShouldBeNil)
				So(report.AlertsCreated, ShouldEqual, 1)
			})
		})
	})
}

func TestDetectorCooldownWithinRun(t *testing.T) {
	Convey("Given two broken streak events for the same user", t, func() {
		ctx := context.Background()
		s := newFaultyStore()
		for _, h := range []int{2, 4} {
			So(s.AddEvents(ctx, model.ActivityEvent{
				UserID: "u1", Type: model.EventStreakBroken,
				Metadata:  map[string]any{"previousStreak": 8},
				CreatedAt: now.Add(-time.Duration(h) * time.Hour),
			}), ShouldBeNil)
		}
		passes := detector.WithPasses(detector.BrokenStreakPass())

		Convey("When cooldown is off", func() {
			report, err := detector.New(s, passes).RunAt(ctx, now)

			Convey("Then both are proposed", func() {
				So(err, ShouldBeNil)
				So(report.Summary.StreakBroken, ShouldEqual, 2)
			})
		})

		Convey("When cooldown is on", func() {
			report, err := detector.New(s, passes, detector.WithCooldown(0)).RunAt(ctx, now)

			Convey("Then only one is proposed", func() {
				So(err, ShouldBeNil)
				So(report.Summary.StreakBroken, ShouldEqual, 1)
			})
		})
	})
}

func TestDetectorFanOut(t *testing.T) {
	Convey("Given a critical broken streak in an organization", t, func() {
		ctx := context.Background()
		s := newFaultyStore()
		So(s.AddEvents(ctx, model.ActivityEvent{
			UserID: "subject", OrganizationID: "org-1", Type: model.EventStreakBroken,
			Metadata: map[string]any{"previousStreak": 20}, CreatedAt: daysAgo(0).Add(-time.Hour),
		}), ShouldBeNil)
		So(s.AddMembers(ctx,
			model.OrganizationMember{UserID: "owner", OrganizationID: "org-1", Role: model.RoleOwner, IsActive: true},
			model.OrganizationMember{UserID: "admin", OrganizationID: "org-1", Role: model.RoleAdmin, IsActive: true},
			model.OrganizationMember{UserID: "manager", OrganizationID: "org-1", Role: model.RoleManager, IsActive: true},
			model.OrganizationMember{UserID: "member", OrganizationID: "org-1", Role: model.RoleMember, IsActive: true},
			model.OrganizationMember{UserID: "other-org", OrganizationID: "org-2", Role: model.RoleOwner, IsActive: true},
		), ShouldBeNil)
		passes := detector.WithPasses(detector.BrokenStreakPass())

		Convey("When detection runs", func() {
			report, err := detector.New(s, passes).RunAt(ctx, now)
			So(err, ShouldBeNil)

			Convey("Then each of the three managers is notified once", func() {
				So(report.ManagerNotifications, ShouldEqual, 3)
				list, _ := s.Notifications(ctx)
				So(len(list), ShouldEqual, 3)
				recipients := map[string]bool{}
				for _, n := range list {
					recipients[n.UserID] = true
					So(n.Type, ShouldEqual, model.NotificationTypeAlert)
					So(n.Title, ShouldEqual, "[Equipe] Streak de 20 dias quebrado")
					So(n.IsRead, ShouldBeFalse)
					So(n.Data, ShouldResemble, model.NotificationData{
						AlertType:       model.AlertStreakBroken,
						Severity:        model.SeverityCritical,
						TargetUserID:    "subject",
						SuggestedAction: "Jogar agora",
					})
				}
				So(recipients, ShouldResemble, map[string]bool{"owner": true, "admin": true, "manager": true})
			})
		})

		Convey("When fan-out is capped", func() {
			report, err := detector.New(s, passes, detector.WithMaxManagersPerAlert(2)).RunAt(ctx, now)

			Convey("Then at most two managers are notified", func() {
				So(err, ShouldBeNil)
				So(report.ManagerNotifications, ShouldEqual, 2)
			})
		})

		Convey("When the manager lookup fails", func() {
			s.queryErr["Managers"] = errInjected
			report, err := detector.New(s, passes).RunAt(ctx, now)

			Convey("Then the alert is still created without notifications", func() {
				So(err, ShouldBeNil)
				So(report.AlertsCreated, ShouldEqual, 1)
				So(report.ManagerNotifications, ShouldEqual, 0)
			})
		})

		Convey("When notification inserts fail", func() {
			s.notificationErr = errInjected
			report, err := detector.New(s, passes).RunAt(ctx, now)

			Convey("Then only successful inserts are counted", func() {
				So(err, ShouldBeNil)
				So(report.AlertsCreated, ShouldEqual, 1)
				So(report.ManagerNotifications, ShouldEqual, 0)
			})
		})

		Convey("When the alert insert fails", func() {
			s.failAlertInsert = func(*model.EvolutionAlert) bool { return true }
			report, err := detector.New(s, passes).RunAt(ctx, now)

			Convey("Then no manager is notified for it", func() {
				So(err, ShouldBeNil)
				So(report.AlertsGenerated, ShouldEqual, 1)
				So(report.AlertsCreated, ShouldEqual, 0)
				So(report.ManagerNotifications, ShouldEqual, 0)
			})
		})
	})

	Convey("Given three listed managers one of which is the alert subject", t, func() {
		ctx := context.Background()
		s := newFaultyStore()
		So(s.AddEvents(ctx, model.ActivityEvent{
			UserID: "subject", OrganizationID: "org-1", Type: model.EventStreakBroken,
			Metadata: map[string]any{"previousStreak": 20}, CreatedAt: daysAgo(0).Add(-time.Hour),
		}), ShouldBeNil)
		So(s.AddMembers(ctx,
			model.OrganizationMember{UserID: "subject", OrganizationID: "org-1", Role: model.RoleManager, IsActive: true},
			model.OrganizationMember{UserID: "owner", OrganizationID: "org-1", Role: model.RoleOwner, IsActive: true},
			model.OrganizationMember{UserID: "admin", OrganizationID: "org-1", Role: model.RoleAdmin, IsActive: true},
		), ShouldBeNil)

		Convey("When detection runs", func() {
			report, err := detector.New(s, detector.WithPasses(detector.BrokenStreakPass())).RunAt(ctx, now)

			Convey("Then only the two other managers are notified", func() {
				So(err, ShouldBeNil)
				So(report.ManagerNotifications, ShouldEqual, 2)
				notes, _ := s.Notifications(ctx)
				So(len(notes), ShouldEqual, 2)
				for _, n := range notes {
					So(n.UserID, ShouldNotEqual, "subject")
				}
			})
		})
	})

	Convey("Given two critical alerts in the same organization", t, func() {
		ctx := context.Background()
		s := newFaultyStore()
		for _, u := range []string{"a", "b"} {
			So(s.AddEvents(ctx, model.ActivityEvent{
				UserID: u, OrganizationID: "org-1", Type: model.EventStreakBroken,
				Metadata: map[string]any{"previousStreak": 15}, CreatedAt: daysAgo(0).Add(-time.Hour),
			}), ShouldBeNil)
		}
		So(s.AddMembers(ctx, model.OrganizationMember{UserID: "boss", OrganizationID: "org-1", Role: model.RoleOwner, IsActive: true}), ShouldBeNil)

		Convey("When detection runs", func() {
			report, err := detector.New(s, detector.WithPasses(detector.BrokenStreakPass())).RunAt(ctx, now)

			Convey("Then the manager list is looked up once", func() {
				So(err, ShouldBeNil)
				So(report.ManagerNotifications, ShouldEqual, 2)
				So(s.managerCalls, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a critical alert without organization", t, func() {
		ctx := context.Background()
		s := newFaultyStore()
		So(s.AddEvents(ctx, model.ActivityEvent{
			UserID: "solo", Type: model.EventStreakBroken,
			Metadata: map[string]any{"previousStreak": 15}, CreatedAt: daysAgo(0).Add(-time.Hour),
		}), ShouldBeNil)

		Convey("When detection runs", func() {
			report, err := detector.New(s, detector.WithPasses(detector.BrokenStreakPass())).RunAt(ctx, now)

			Convey("Then no manager lookup happens", func() {
				So(err, ShouldBeNil)
				So(report.AlertsCreated, ShouldEqual, 1)
				So(s.managerCalls, ShouldEqual, 0)
			})
		})
	})
}

func TestDetectorFailureIsolation(t *testing.T) {
	Convey("Given one qualifying row per pass", t, func() {
		ctx := context.Background()
		s := newFaultyStore()
		seedEveryPass(ctx, s)

		Convey("When the first alert insert fails", func() {
			first := true
			s.failAlertInsert = func(*model.EvolutionAlert) bool {
				if first {
					first = false
					return true
				}
				return false
			}
			report, err := detector.New(s).RunAt(ctx, now)

			Convey("Then the remaining alerts are still inserted", func() {
				So(err, ShouldBeNil)
				So(report.AlertsGenerated, ShouldEqual, 6)
				So(report.AlertsCreated, ShouldEqual, 5)
				So(s.alertInsertCalled, ShouldEqual, 6)
			})
		})

		Convey("When one pass query fails", func() {
			s.queryErr["StaleSkills"] = errInjected
			report, err := detector.New(s).RunAt(ctx, now)

			Convey("Then the other passes still produce alerts", func() {
				So(err, ShouldBeNil)
				So(report.Summary.SkillStagnation, ShouldEqual, 0)
				So(report.AlertsGenerated, ShouldEqual, 5)
			})
		})

		Convey("When a pass panics", func() {
			boom := detector.Pass{
				Name: "boom",
				Type: model.AlertSkillStagnation,
				Run: func(context.Context, detector.Window, detector.Store) ([]model.EvolutionAlert, error) {
					panic("boom")
				},
			}
			report, err := detector.New(s, detector.WithPasses(boom, detector.PositiveStreakPass())).RunAt(ctx, now)

			Convey("Then it counts as a failed pass", func() {
				So(err, ShouldBeNil)
				So(report.AlertsGenerated, ShouldEqual, 1)
				So(report.Summary.PositiveStreak, ShouldEqual, 1)
			})
		})

		Convey("When the dedup lookups fail", func() {
			s.hasAlertErr = errInjected
			report, err := detector.New(s).RunAt(ctx, now)

			Convey("Then only the deduplicated passes lose their alerts", func() {
				So(err, ShouldBeNil)
				So(report.Summary.Inactivity, ShouldEqual, 0)
				So(report.Summary.PositiveStreak, ShouldEqual, 0)
				So(report.AlertsGenerated, ShouldEqual, 4)
			})
		})
	})
}

func TestDetectorErrors(t *testing.T) {
	Convey("Given a detector without store", t, func() {
		_, err := detector.New(nil).RunAt(context.Background(), now)

		Convey("Then ErrNilStore is returned", func() {
			So(errors.Is(err, detector.ErrNilStore), ShouldBeTrue)
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		report, err := detector.New(newFaultyStore()).RunAt(ctx, now)

		Convey("Then the run fails without a report", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(report.Success, ShouldBeFalse)
		})
	})

	Convey("Given a detector with a fixed clock", t, func() {
		s := newFaultyStore()
		So(s.AddStreaks(context.Background(), model.StreakState{UserID: "u1", CurrentStreak: 9, IsActive: true}), ShouldBeNil)
		d := detector.New(s,
			detector.WithClock(func() time.Time { return now }),
			detector.WithPasses(detector.PositiveStreakPass()))

		Convey("When Run is called", func() {
			_, err := d.Run(context.Background())

			Convey("Then alerts carry the clock time", func() {
				So(err, ShouldBeNil)
				alerts := alertsOf(s, model.AlertPositiveStreak)
				So(len(alerts), ShouldEqual, 1)
				So(alerts[0].CreatedAt, ShouldEqual, now)
				So(len(d.Passes()), ShouldEqual, 1)
			})
		})
	})
}
