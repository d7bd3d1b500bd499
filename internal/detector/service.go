package detector

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Source,WatermarkStore,AuditAppender,NotificationCreator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"beacon/internal/audit"
	detectormetrics "beacon/internal/detector/metrics"
	"beacon/internal/notification"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
	"beacon/pkg/platform/tx"
	"beacon/pkg/requestcontext"
)

// Source is the watched-entity read model maintained by the surrounding
// application. The detector only ever reads from it.
type Source interface {
	// Tenants lists every tenant that owns watched entities.
	Tenants(ctx context.Context) ([]id.TenantID, error)
	// ListEntered returns entities of one type that entered one of the given
	// statuses inside the (since, until] window.
	ListEntered(ctx context.Context, tenantID id.TenantID, entityType string, statuses []string, since, until time.Time) ([]WatchedEntity, error)
}

// WatermarkStore persists scan cursors and their leases. All mutual
// exclusion lives in the store (one atomic statement per call), because
// detector invocations share no memory.
type WatermarkStore interface {
	// AcquireLease claims the (tenant, entityType) watermark for owner until
	// now+ttl. Returns sentinel.ErrLeaseHeld when another owner holds a live
	// lease.
	AcquireLease(ctx context.Context, tenantID id.TenantID, entityType, owner string, ttl time.Duration, now time.Time) (*Watermark, error)
	// CompleteScan advances last_scanned_at and releases the lease, provided
	// owner still holds it.
	CompleteScan(ctx context.Context, tenantID id.TenantID, entityType, owner string, scannedThrough time.Time) error
	// ReleaseLease frees the lease without advancing the watermark, so the
	// next run re-scans the same window.
	ReleaseLease(ctx context.Context, tenantID id.TenantID, entityType, owner string) error
}

// AuditAppender is the slice of the audit ledger the detector writes through.
type AuditAppender interface {
	Append(ctx context.Context, entry audit.Entry) (uuid.UUID, bool, error)
}

// NotificationCreator is the slice of the notification service the detector
// writes through.
type NotificationCreator interface {
	Create(ctx context.Context, n notification.Notification) (*notification.Notification, bool, error)
}

// Runner is the transition detector: a stateless worker invoked on a
// schedule or on demand. Any number of invocations may overlap; the
// watermark lease and the notification epoch constraint keep the outcome
// exactly-once per epoch regardless.
type Runner struct {
	source        Source
	watermarks    WatermarkStore
	ledger        AuditAppender
	notifications NotificationCreator
	txRunner      tx.Runner
	triggers      []Trigger

	owner       string
	leaseTTL    time.Duration
	concurrency int

	logger  *slog.Logger
	metrics *detectormetrics.Metrics
	tracer  trace.Tracer
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics attaches the detector's Prometheus metrics.
func WithMetrics(m *detectormetrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithLeaseTTL bounds how long a crashed run can block the next one.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(r *Runner) {
		if ttl > 0 {
			r.leaseTTL = ttl
		}
	}
}

// WithConcurrency caps how many (tenant, entity type) scans run in parallel
// during a batch-all invocation.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithOwner overrides the lease owner label (host + random suffix by default).
func WithOwner(owner string) Option {
	return func(r *Runner) {
		if owner != "" {
			r.owner = owner
		}
	}
}

const (
	defaultLeaseTTL    = 5 * time.Minute
	defaultConcurrency = 4
)

// NewRunner constructs the detector over its collaborators. triggers defines
// which (entity type, status) pairs produce events; everything else is
// ignored.
func NewRunner(
	source Source,
	watermarks WatermarkStore,
	ledger AuditAppender,
	notifications NotificationCreator,
	txRunner tx.Runner,
	triggers []Trigger,
	logger *slog.Logger,
	opts ...Option,
) *Runner {
	host, _ := os.Hostname()
	r := &Runner{
		source:        source,
		watermarks:    watermarks,
		ledger:        ledger,
		notifications: notifications,
		txRunner:      txRunner,
		triggers:      triggers,
		owner:         fmt.Sprintf("%s-%s", host, uuid.NewString()[:8]),
		leaseTTL:      defaultLeaseTTL,
		concurrency:   defaultConcurrency,
		logger:        logger,
		tracer:        otel.Tracer("beacon/detector"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run scans for transitions since the stored watermark (or req.Since) and
// reports what it did. Per-entity failures and lease contention are counted,
// never returned; Run only errors when the tenant set itself cannot be
// resolved.
func (r *Runner) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)

	ctx, span := r.tracer.Start(ctx, "detector.run")
	defer span.End()

	if r.metrics != nil {
		r.metrics.RunsStarted.Inc()
		defer r.metrics.ObserveRun(start)
	}

	tenants, err := r.resolveTenants(ctx, req)
	if err != nil {
		return RunSummary{}, err
	}

	statusesByType := make(map[string][]string)
	for _, trigger := range r.triggers {
		statusesByType[trigger.EntityType] = append(statusesByType[trigger.EntityType], trigger.Status)
	}

	var (
		mu    sync.Mutex
		total RunSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, tenantID := range tenants {
		for entityType, statuses := range statusesByType {
			g.Go(func() error {
				partial := r.scan(gctx, tenantID, entityType, statuses, req.Since, now)
				mu.Lock()
				total.add(partial)
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	span.SetAttributes(
		attribute.Int("entities_scanned", total.EntitiesScanned),
		attribute.Int("notifications_created", total.NotificationsCreated),
		attribute.Int("errors", total.Errors),
	)
	return total, nil
}

func (r *Runner) resolveTenants(ctx context.Context, req RunRequest) ([]id.TenantID, error) {
	if req.TenantID != nil {
		return []id.TenantID{*req.TenantID}, nil
	}
	tenants, err := r.source.Tenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve tenants for batch run: %w", err)
	}
	return tenants, nil
}

// scan processes one (tenant, entity type) window under a watermark lease.
func (r *Runner) scan(ctx context.Context, tenantID id.TenantID, entityType string, statuses []string, sinceOverride *time.Time, now time.Time) RunSummary {
	ctx, span := r.tracer.Start(ctx, "detector.scan", trace.WithAttributes(
		attribute.String("tenant_id", tenantID.String()),
		attribute.String("entity_type", entityType),
	))
	defer span.End()

	watermark, err := r.watermarks.AcquireLease(ctx, tenantID, entityType, r.owner, r.leaseTTL, now)
	if errors.Is(err, sentinel.ErrLeaseHeld) {
		// Another runner is on this window; the schedule retries us.
		if r.metrics != nil {
			r.metrics.LeaseContention.Inc()
		}
		return RunSummary{LeaseContention: 1}
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "watermark lease acquisition failed",
			"tenant_id", tenantID, "entity_type", entityType, "error", err)
		return RunSummary{Errors: 1}
	}

	since := watermark.LastScannedAt
	if sinceOverride != nil {
		since = *sinceOverride
	}

	entities, err := r.source.ListEntered(ctx, tenantID, entityType, statuses, since, now)
	if err != nil {
		r.logger.ErrorContext(ctx, "watched entity listing failed",
			"tenant_id", tenantID, "entity_type", entityType, "error", err)
		r.release(ctx, tenantID, entityType)
		return RunSummary{Errors: 1}
	}

	var summary RunSummary
	for _, entity := range entities {
		summary.EntitiesScanned++
		if r.metrics != nil {
			r.metrics.EntitiesScanned.Inc()
		}

		auditWritten, notifCreated, err := r.processEntity(ctx, entity)
		if err != nil {
			// Skip the entity, keep the batch going. The window is not
			// advanced below, so the next run retries it, and the epoch
			// constraint keeps the retry from double-writing the rest.
			summary.Errors++
			if r.metrics != nil {
				r.metrics.EntityErrors.Inc()
			}
			r.logger.ErrorContext(ctx, "entity transition processing failed",
				"tenant_id", entity.TenantID,
				"entity_id", entity.EntityID,
				"entity_type", entity.EntityType,
				"error", err)
			continue
		}
		summary.AuditEntriesWritten += auditWritten
		summary.NotificationsCreated += notifCreated
	}

	if summary.Errors == 0 {
		if err := r.watermarks.CompleteScan(ctx, tenantID, entityType, r.owner, now); err != nil {
			summary.Errors++
			r.logger.ErrorContext(ctx, "watermark advance failed",
				"tenant_id", tenantID, "entity_type", entityType, "error", err)
		}
		return summary
	}

	r.release(ctx, tenantID, entityType)
	return summary
}

func (r *Runner) release(ctx context.Context, tenantID id.TenantID, entityType string) {
	if err := r.watermarks.ReleaseLease(ctx, tenantID, entityType, r.owner); err != nil {
		// Not fatal: the lease is time-bound and expires on its own.
		r.logger.WarnContext(ctx, "watermark lease release failed",
			"tenant_id", tenantID, "entity_type", entityType, "error", err)
	}
}

// processEntity performs the single atomic unit of work for one transition:
// audit entry plus at-most-once notification, in one storage transaction.
func (r *Runner) processEntity(ctx context.Context, entity WatchedEntity) (auditWritten, notifCreated int, err error) {
	epoch := EpochToken(entity.EntityID, entity.Status, entity.StatusChangedAt)

	afterState, err := json.Marshal(map[string]any{
		"status":            entity.Status,
		"status_changed_at": entity.StatusChangedAt,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("marshal transition snapshot: %w", err)
	}

	err = r.txRunner.RunInTx(ctx, func(txCtx context.Context) error {
		// Audit entries are always written; the epoch token keeps a racing
		// duplicate run from recording the same transition twice.
		_, inserted, err := r.ledger.Append(txCtx, audit.Entry{
			TenantID:    entity.TenantID,
			SubjectType: entity.EntityType,
			SubjectID:   entity.EntityID,
			ActorID:     nil, // system actor
			Action:      audit.ActionStatusTransition,
			AfterState:  afterState,
			EpochToken:  epoch,
		})
		if err != nil {
			return err
		}
		if inserted {
			auditWritten = 1
		}

		// Notifications are written at most once per epoch; a collision is
		// the other runner having won, which is success here.
		_, created, err := r.notifications.Create(txCtx, notification.Notification{
			TenantID:    entity.TenantID,
			Audience:    notification.TenantWide(),
			Kind:        notification.KindEntityEnteredState,
			SubjectType: entity.EntityType,
			SubjectID:   entity.EntityID,
			Message:     fmt.Sprintf("%s entered status %q", entity.EntityType, entity.Status),
			DeepLink:    fmt.Sprintf("/%s/%s", entity.EntityType, entity.EntityID),
			EpochToken:  epoch,
		})
		if err != nil {
			return err
		}
		if created {
			notifCreated = 1
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return auditWritten, notifCreated, nil
}
