package lifecycle

import (
	"context"

	"github.com/baiirun/taskflow/internal/apperr"
	"github.com/baiirun/taskflow/internal/model"
)

// ListTasks returns one page of tasks matching f. Reads take no locks.
func (s *Service) ListTasks(ctx context.Context, f model.TaskFilter, p model.Page) (*model.TaskPage, error) {
	if err := validatePage(p); err != nil {
		return nil, err
	}
	return s.db.ListTasks(ctx, f, p)
}

// ProjectAnalytics computes completion counts per user, the overdue count
// and the average completion time for a project. Nothing is cached; overdue
// is evaluated against the current time on every call.
func (s *Service) ProjectAnalytics(ctx context.Context, projectID string) (*model.ProjectAnalytics, error) {
	exists, err := s.db.ProjectExists(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound("Project")
	}
	return s.db.ProjectAnalytics(ctx, projectID, s.clock())
}

// ListAudit returns one page of audit entries, newest first.
func (s *Service) ListAudit(ctx context.Context, f model.AuditFilter, p model.Page) (*model.AuditPage, error) {
	if err := validatePage(p); err != nil {
		return nil, err
	}
	return s.db.ListAudit(ctx, f, p)
}
