package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	notifmetrics "beacon/internal/notification/metrics"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/sentinel"
	"beacon/pkg/requestcontext"
	"beacon/pkg/scope"
)

// Store persists notifications. Reads are always predicated on
// tenant + audience; implementations never expose an unscoped listing.
type Store interface {
	// Create inserts the notification or, when the epoch uniqueness
	// constraint collides, returns the already-existing row with
	// created=false. Collisions are an expected outcome, not an error.
	Create(ctx context.Context, n *Notification) (existing *Notification, created bool, err error)
	// MarkRead flips unread->read for a row visible to (tenant, actor).
	// Idempotent; returns sentinel.ErrNotFound when no visible row matches,
	// whether the row is missing or belongs to someone else.
	MarkRead(ctx context.Context, tenantID id.TenantID, actorID id.ActorID, notificationID uuid.UUID, readAt time.Time) (*Notification, error)
	List(ctx context.Context, tenantID id.TenantID, actorID id.ActorID, filter Filter, page PageRequest) ([]Notification, int, error)
	UnreadCount(ctx context.Context, tenantID id.TenantID, actorID id.ActorID) (int, error)
}

// UnreadCache is an optional read-through cache for the unread badge count.
// Correctness never depends on it; a nil cache means direct store counts.
type UnreadCache interface {
	Get(ctx context.Context, tenantID id.TenantID, actorID id.ActorID) (count int, ok bool, err error)
	Set(ctx context.Context, tenantID id.TenantID, actorID id.ActorID, count int) error
	// Invalidate drops all cached counts for the tenant. Tenant-wide
	// notifications change every actor's badge, so invalidation is
	// tenant-granular.
	Invalidate(ctx context.Context, tenantID id.TenantID) error
}

// Service owns the feed lifecycle: create (epoch-deduplicated), mark read,
// list, count.
type Service struct {
	store   Store
	cache   UnreadCache
	logger  *slog.Logger
	metrics *notifmetrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithUnreadCache attaches a badge-count cache.
func WithUnreadCache(cache UnreadCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithMetrics attaches the feature's Prometheus metrics.
func WithMetrics(m *notifmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService constructs the notification service.
func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a notification, absorbing the epoch-dedup collision into a
// successful no-op: callers always get the canonical row back and never need
// conflict handling of their own. The second return reports whether a new
// row was actually written.
func (s *Service) Create(ctx context.Context, n Notification) (*Notification, bool, error) {
	if n.TenantID.IsNil() {
		return nil, false, dErrors.New(dErrors.CodeValidation, "notification requires a tenant")
	}
	if n.SubjectID == uuid.Nil || n.SubjectType == "" {
		return nil, false, dErrors.New(dErrors.CodeValidation, "notification requires a subject")
	}
	if n.Kind == "" {
		return nil, false, dErrors.New(dErrors.CodeValidation, "notification requires a kind")
	}
	if n.EpochToken == "" {
		return nil, false, dErrors.New(dErrors.CodeValidation, "notification requires an epoch token")
	}

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = requestcontext.Now(ctx)
	}
	n.IsRead = false
	n.ReadAt = nil

	row, created, err := s.store.Create(ctx, &n)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create notification")
	}
	if created {
		if s.metrics != nil {
			s.metrics.IncrementCreated()
		}
		s.invalidateUnread(ctx, n.TenantID)
	} else if s.metrics != nil {
		s.metrics.IncrementDeduplicated()
	}
	return row, created, nil
}

// MarkRead transitions a notification the caller can see to read. Marking an
// already-read notification succeeds with no change. A notification that is
// missing, in another tenant, or addressed to someone else uniformly yields
// CodeNotFound so existence never leaks across tenants.
func (s *Service) MarkRead(ctx context.Context, callerScope scope.Scope, notificationID uuid.UUID) (*Notification, error) {
	if callerScope.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "mark-read requires an authenticated scope")
	}
	if notificationID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "notification id is required")
	}

	row, err := s.store.MarkRead(ctx, callerScope.TenantID(), callerScope.ActorID(), notificationID, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "notification not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notification read")
	}

	if s.metrics != nil {
		s.metrics.IncrementRead()
	}
	s.invalidateUnread(ctx, callerScope.TenantID())
	return row, nil
}

// List returns one page of the caller's feed with a stable total and the
// unread badge count.
func (s *Service) List(ctx context.Context, callerScope scope.Scope, filter Filter, page PageRequest) (Page, error) {
	if callerScope.IsZero() {
		return Page{}, dErrors.New(dErrors.CodeUnauthorized, "feed listing requires an authenticated scope")
	}
	if page.Limit <= 0 || page.Limit > maxPageLimit {
		page.Limit = defaultPageLimit
	}
	if page.Offset < 0 {
		page.Offset = 0
	}

	rows, total, err := s.store.List(ctx, callerScope.TenantID(), callerScope.ActorID(), filter, page)
	if err != nil {
		return Page{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	unread, err := s.UnreadCount(ctx, callerScope)
	if err != nil {
		return Page{}, err
	}
	return Page{Notifications: rows, Total: total, UnreadCount: unread}, nil
}

// UnreadCount returns the badge count for the caller, served from the cache
// when one is attached.
func (s *Service) UnreadCount(ctx context.Context, callerScope scope.Scope) (int, error) {
	if callerScope.IsZero() {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "unread count requires an authenticated scope")
	}

	if s.cache != nil {
		count, ok, err := s.cache.Get(ctx, callerScope.TenantID(), callerScope.ActorID())
		if err != nil {
			s.logger.WarnContext(ctx, "unread cache read failed",
				"tenant_id", callerScope.TenantID(), "error", err)
		} else if ok {
			return count, nil
		}
	}

	count, err := s.store.UnreadCount(ctx, callerScope.TenantID(), callerScope.ActorID())
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count unread notifications")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, callerScope.TenantID(), callerScope.ActorID(), count); err != nil {
			s.logger.WarnContext(ctx, "unread cache write failed",
				"tenant_id", callerScope.TenantID(), "error", err)
		}
	}
	return count, nil
}

func (s *Service) invalidateUnread(ctx context.Context, tenantID id.TenantID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		s.logger.WarnContext(ctx, "unread cache invalidation failed",
			"tenant_id", tenantID, "error", err)
	}
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)
