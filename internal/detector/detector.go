// Package detector finds behavioral patterns in learning activity and turns
// them into evolution alerts and manager escalations.
//
// A run evaluates every Pass against the same Window, optionally filters the
// proposals through the cooldown policy, and then persists them one row at
// a time. Failures are isolated per pass and per row.
package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/okian/patternwatch/internal/domain/dedupe"
	"github.com/okian/patternwatch/internal/domain/model"
	"github.com/okian/patternwatch/internal/domain/types"
	"github.com/okian/patternwatch/pkg/logger"
	"github.com/okian/patternwatch/pkg/metrics"
)

const (
	tracerName        = "github.com/okian/patternwatch/internal/detector"
	teamTitlePrefix   = "[Equipe] "
	maxParallelPasses = 6
)

// Detector runs the detection passes and persists their proposals.
type Detector struct {
	store       Store
	passes      []Pass
	policy      dedupe.CooldownPolicy
	cooldown    bool
	maxManagers int
	parallel    bool
	clock       func() time.Time
	newID       func() string
	log         logger.Logger
	tracer      trace.Tracer
}

// New constructs a Detector over store with the default passes.
func New(store Store, opts ...Option) *Detector {
	d := &Detector{
		store:  store,
		passes: DefaultPasses(),
		policy: dedupe.DefaultPolicy(),
		clock:  time.Now,
		newID:  uuid.NewString,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.tracer = otel.Tracer(tracerName)
	return d
}

// Passes returns the configured passes in run order.
func (d *Detector) Passes() []Pass {
	out := make([]Pass, len(d.passes))
	copy(out, d.passes)
	return out
}

// Run detects patterns as of the detector clock.
func (d *Detector) Run(ctx context.Context) (types.Report, error) {
	return d.RunAt(ctx, d.clock().UTC())
}

// RunAt detects patterns as of now. Query and insert failures are logged
// and never fail the run; an error is only returned when the run could not
// complete at all.
func (d *Detector) RunAt(ctx context.Context, now time.Time) (report types.Report, err error) {
	if d.store == nil {
		return types.Report{}, ErrNilStore
	}

	ctx, span := d.tracer.Start(ctx, "detector.Run",
		trace.WithAttributes(attribute.String("detector.now", now.Format(time.RFC3339))))
	defer func() {
		if r := recover(); r != nil {
			report = types.Report{}
			err = fmt.Errorf("%w: %v", ErrRunPanicked, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	w := NewWindow(now)
	proposals := d.propose(ctx, w)
	if err := ctx.Err(); err != nil {
		return types.Report{}, fmt.Errorf("detection cancelled: %w", err)
	}
	if d.cooldown {
		proposals = d.applyCooldown(ctx, w, proposals)
	}

	report = types.Report{Success: true, AlertsGenerated: len(proposals)}
	for _, p := range proposals {
		report.Summary.Add(p.Type)
		metrics.RecordAlertProposed(string(p.Type))
	}
	report.AlertsCreated, report.ManagerNotifications = d.persist(ctx, now, proposals)

	span.SetAttributes(
		attribute.Int("detector.alerts_generated", report.AlertsGenerated),
		attribute.Int("detector.alerts_created", report.AlertsCreated),
		attribute.Int("detector.notifications", report.ManagerNotifications),
	)
	d.log.Info(ctx, "detection finished",
		logger.Int("alerts_generated", report.AlertsGenerated),
		logger.Int("alerts_created", report.AlertsCreated),
		logger.Int("manager_notifications", report.ManagerNotifications))
	return report, nil
}

// propose runs every pass and concatenates their output in pass order.
func (d *Detector) propose(ctx context.Context, w Window) []model.EvolutionAlert {
	results := make([][]model.EvolutionAlert, len(d.passes))

	if d.parallel {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxParallelPasses)
		for i, p := range d.passes {
			g.Go(func() error {
				results[i] = d.runPass(gctx, w, p)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, p := range d.passes {
			results[i] = d.runPass(ctx, w, p)
		}
	}

	var out []model.EvolutionAlert
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

func (d *Detector) runPass(ctx context.Context, w Window, p Pass) []model.EvolutionAlert {
	ctx, span := d.tracer.Start(ctx, "detector.pass",
		trace.WithAttributes(attribute.String("detector.pass", p.Name)))
	defer span.End()

	log := d.log.With(logger.String("pass", p.Name))
	start := time.Now()
	proposals, err := d.safeRun(ctx, w, p)
	metrics.RecordPass(p.Name, time.Since(start).Seconds())

	switch {
	case err == nil:
	case errors.Is(err, ErrRecordSkipped):
		log.Warn(ctx, "pass skipped records", logger.Error(err))
	default:
		metrics.RecordPassFailure(p.Name)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error(ctx, "pass failed", logger.Error(err))
		return nil
	}

	span.SetAttributes(attribute.Int("detector.proposals", len(proposals)))
	log.Debug(ctx, "pass finished", logger.Int("proposals", len(proposals)))
	return proposals
}

func (d *Detector) safeRun(ctx context.Context, w Window, p Pass) (out []model.EvolutionAlert, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: %s: %v", ErrPassPanicked, p.Name, r)
		}
	}()
	return p.Run(ctx, w, d.store)
}

// applyCooldown drops proposals already covered by a stored alert inside
// the cooldown window, or repeated within this run. A failed lookup keeps
// the proposal.
func (d *Detector) applyCooldown(ctx context.Context, w Window, proposals []model.EvolutionAlert) []model.EvolutionAlert {
	seen := dedupe.NewInMemoryDeduper()
	out := make([]model.EvolutionAlert, 0, len(proposals))
	for _, p := range proposals {
		rule, ok := d.policy.Rule(p.Type)
		if !ok || dedupe.Builtin(p.Type) {
			out = append(out, p)
			continue
		}
		if seen.SeenAndRecord(ctx, dedupe.Key(p.Type, p.UserID, p.RelatedEntityID)) {
			metrics.RecordAlertSuppressed(string(p.Type))
			continue
		}
		exists, err := d.store.HasAlert(ctx, rule.Filter(p.Type, p.UserID, p.RelatedEntityID, w.Now))
		if err != nil {
			d.log.Warn(ctx, "cooldown lookup failed",
				logger.String("user_id", p.UserID),
				logger.String("alert_type", string(p.Type)),
				logger.Error(err))
			out = append(out, p)
			continue
		}
		if exists {
			metrics.RecordAlertSuppressed(string(p.Type))
			continue
		}
		out = append(out, p)
	}
	return out
}

// persist inserts each proposal and fans critical alerts out to the
// managers of their organization.
func (d *Detector) persist(ctx context.Context, now time.Time, proposals []model.EvolutionAlert) (created, notified int) {
	managers := make(map[string][]model.OrganizationMember)

	for _, p := range proposals {
		a := p
		a.ID = d.newID()
		a.CreatedAt = now
		a.IsRead = false
		a.IsDismissed = false

		if err := d.store.InsertAlert(ctx, &a); err != nil {
			metrics.RecordAlertInsertFailure(string(a.Type))
			d.log.Error(ctx, "alert insert failed",
				logger.String("user_id", a.UserID),
				logger.String("alert_type", string(a.Type)),
				logger.Error(err))
			continue
		}
		created++
		metrics.RecordAlertInserted(string(a.Type))

		if a.Severity != model.SeverityCritical || a.OrganizationID == "" {
			continue
		}
		notified += d.escalate(ctx, now, a, managers)
	}
	return created, notified
}

// escalate notifies the managers of the alert's organization, except the
// alert subject. Manager lists are cached in cache for the run.
func (d *Detector) escalate(ctx context.Context, now time.Time, a model.EvolutionAlert, cache map[string][]model.OrganizationMember) int {
	list, ok := cache[a.OrganizationID]
	if !ok {
		var err error
		list, err = d.store.Managers(ctx, a.OrganizationID)
		if err != nil {
			d.log.Error(ctx, "manager lookup failed",
				logger.String("organization_id", a.OrganizationID),
				logger.String("alert_id", a.ID),
				logger.Error(err))
			return 0
		}
		cache[a.OrganizationID] = list
	}

	sent, attempted := 0, 0
	recipients := make(map[string]struct{}, len(list))
	for _, m := range list {
		if m.UserID == a.UserID || !m.IsActive || !m.Role.IsManager() {
			continue
		}
		if _, dup := recipients[m.UserID]; dup {
			continue
		}
		if d.maxManagers > 0 && attempted >= d.maxManagers {
			break
		}
		recipients[m.UserID] = struct{}{}
		attempted++

		n := &model.Notification{
			ID:      d.newID(),
			UserID:  m.UserID,
			Type:    model.NotificationTypeAlert,
			Title:   teamTitlePrefix + a.Title,
			Message: a.Description,
			Data: model.NotificationData{
				AlertType:       a.Type,
				Severity:        a.Severity,
				TargetUserID:    a.UserID,
				SuggestedAction: a.SuggestedAction,
			},
			CreatedAt: now,
		}
		if err := d.store.InsertNotification(ctx, n); err != nil {
			metrics.RecordNotificationFailure()
			d.log.Error(ctx, "notification insert failed",
				logger.String("manager_id", m.UserID),
				logger.String("alert_type", string(a.Type)),
				logger.Error(err))
			continue
		}
		sent++
		metrics.RecordNotificationSent()
	}
	return sent
}
