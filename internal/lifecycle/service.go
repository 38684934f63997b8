// Package lifecycle is the transactional core of taskflow. Every mutation
// runs as one database transaction that performs its invariant checks, the
// write and the audit append together; after commit the audit entry is
// logged and handed to the event publisher.
//
// The acting user id passed to each mutation is trusted: authentication
// happens in the adapters (CLI, HTTP) before the service is called.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/baiirun/taskflow/internal/apperr"
	"github.com/baiirun/taskflow/internal/auth"
	"github.com/baiirun/taskflow/internal/db"
	"github.com/baiirun/taskflow/internal/events"
	"github.com/baiirun/taskflow/internal/model"
)

// Canonical invariant messages.
const (
	MsgAssigneeNotMember = "assignee must be a member of the project"
	MsgTaskCompleted     = "cannot update a completed task"
)

// ErrInvalidCredentials is returned by Authenticate for an unknown email or
// a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Service exposes the task lifecycle, membership management and the
// read-side queries.
type Service struct {
	db        *db.DB
	now       func() time.Time
	logger    *slog.Logger
	publisher events.Publisher
	hasher    *auth.PasswordHasher
}

type Option func(*Service)

// WithClock overrides time.Now. Tests use it to pin "now" for overdue counts.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithPublisher sets where committed audit entries are sent.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithPasswordHasher(h *auth.PasswordHasher) Option {
	return func(s *Service) { s.hasher = h }
}

func New(store *db.DB, opts ...Option) *Service {
	s := &Service{
		db:        store,
		now:       time.Now,
		logger:    slog.Default(),
		publisher: events.Nop{},
		hasher:    auth.NewPasswordHasher(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// clock returns the current time at the precision the store keeps.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// mutate runs fn in one transaction and appends the audit entry it returns
// in that same transaction. A nil entry means fn changed nothing and nothing
// is recorded.
func (s *Service) mutate(ctx context.Context, actor string, fn func(tx *db.Tx, at time.Time) (*model.AuditEntry, error)) error {
	if strings.TrimSpace(actor) == "" {
		return apperr.BadRequest("acting user is required")
	}

	var entry *model.AuditEntry
	err := s.db.WithTx(ctx, func(tx *db.Tx) error {
		at := s.clock()
		e, err := fn(tx, at)
		if err != nil || e == nil {
			return err
		}
		e.ID = model.NewID()
		e.ActorID = actor
		e.CreatedAt = at
		if err := tx.AppendAudit(ctx, e); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			s.logger.Error("mutation failed", "actor_id", actor, "error", err)
		}
		return err
	}
	if entry == nil {
		return nil
	}

	s.logger.Info("mutation committed",
		"action", entry.Action,
		"entity_type", entry.EntityType,
		"entity_id", entry.EntityID,
		"actor_id", entry.ActorID,
	)
	if err := s.publisher.Publish(ctx, *entry); err != nil {
		s.logger.Warn("failed to publish audit event", "audit_id", entry.ID, "action", entry.Action, "error", err)
	}
	return nil
}

func taskEntry(t *model.Task, orgID string, details model.AuditDetails) *model.AuditEntry {
	return &model.AuditEntry{
		Action:         details.Action(),
		EntityType:     model.EntityTask,
		EntityID:       t.ID,
		OrganizationID: orgID,
		Details:        details,
	}
}

func projectEntry(p *model.Project, details model.AuditDetails) *model.AuditEntry {
	return &model.AuditEntry{
		Action:         details.Action(),
		EntityType:     model.EntityProject,
		EntityID:       p.ID,
		OrganizationID: p.OrganizationID,
		Details:        details,
	}
}

// checkAssignee verifies the user exists and holds a membership tuple. The
// tuple is read with a lock so a concurrent removal waits for this
// transaction.
func checkAssignee(ctx context.Context, tx *db.Tx, projectID, userID string) error {
	exists, err := tx.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound("User")
	}

	member, err := tx.LockMembership(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if !member {
		return apperr.Invariant(MsgAssigneeNotMember)
	}
	return nil
}

// nonEmpty maps nil and "" to nil.
func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func validatePage(p model.Page) error {
	if p.Page < 1 {
		return apperr.BadRequest("page must be at least 1")
	}
	if p.Limit < 1 {
		return apperr.BadRequest("limit must be at least 1")
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return apperr.BadRequest("page is out of range")
	}
	return nil
}
