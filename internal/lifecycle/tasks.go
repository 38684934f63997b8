package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/baiirun/taskflow/internal/apperr"
	"github.com/baiirun/taskflow/internal/db"
	"github.com/baiirun/taskflow/internal/model"
)

// CreateTaskInput holds the fields of a new task. Status defaults to ToDo.
type CreateTaskInput struct {
	ProjectID   string
	Title       string
	Description *string
	DueDate     time.Time
	AssigneeID  *string
	Status      model.Status
}

// CreateTask inserts a task. A given assignee must exist and be a member of
// the project.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput, actor string) (*model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.BadRequest("title is required")
	}
	if in.DueDate.IsZero() {
		return nil, apperr.BadRequest("dueDate is required")
	}
	status := in.Status
	if status == "" {
		status = model.StatusToDo
	}
	if !status.IsValid() {
		return nil, apperr.BadRequest("invalid status: %s", status)
	}

	var task *model.Task
	err := s.mutate(ctx, actor, func(tx *db.Tx, at time.Time) (*model.AuditEntry, error) {
		project, err := tx.GetProject(ctx, in.ProjectID)
		if err != nil {
			return nil, err
		}

		assignee := nonEmpty(in.AssigneeID)
		if assignee != nil {
			if err := checkAssignee(ctx, tx, project.ID, *assignee); err != nil {
				return nil, err
			}
		}

		t := &model.Task{
			ID:          model.NewID(),
			ProjectID:   project.ID,
			Title:       title,
			Description: nonEmpty(in.Description),
			Status:      status,
			AssigneeID:  assignee,
			DueDate:     in.DueDate.UTC().Truncate(time.Millisecond),
			CreatedAt:   at,
			UpdatedAt:   at,
		}
		if status == model.StatusDone {
			t.CompletedAt = &at
		}
		if err := tx.InsertTask(ctx, t); err != nil {
			return nil, err
		}

		task = t
		return taskEntry(t, project.OrganizationID, model.TaskCreatedDetails{
			Title:      t.Title,
			Status:     t.Status,
			AssigneeID: t.AssigneeID,
			DueDate:    t.DueDate,
		}), nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateTaskFields edits title, description or due date. Status and assignee
// are never touched. An empty description clears it.
func (s *Service) UpdateTaskFields(ctx context.Context, taskID string, f model.TaskFields, actor string) (*model.Task, error) {
	if f.IsEmpty() {
		return nil, apperr.BadRequest("no fields to update")
	}
	if f.Title != nil {
		title := strings.TrimSpace(*f.Title)
		if title == "" {
			return nil, apperr.BadRequest("title cannot be empty")
		}
		f.Title = &title
	}
	if f.DueDate != nil {
		if f.DueDate.IsZero() {
			return nil, apperr.BadRequest("dueDate cannot be empty")
		}
		due := f.DueDate.UTC().Truncate(time.Millisecond)
		f.DueDate = &due
	}

	var task *model.Task
	err := s.mutate(ctx, actor, func(tx *db.Tx, at time.Time) (*model.AuditEntry, error) {
		t, err := tx.GetTaskForUpdate(ctx, taskID)
		if err != nil {
			return nil, err
		}
		project, err := tx.GetProject(ctx, t.ProjectID)
		if err != nil {
			return nil, err
		}

		var old, changed model.TaskFieldChanges
		if f.Title != nil {
			title := t.Title
			old.Title = &title
			t.Title = *f.Title
			changed.Title = f.Title
		}
		if f.Description != nil {
			old.Description = model.SetNullString(t.Description)
			t.Description = nonEmpty(f.Description)
			changed.Description = model.SetNullString(t.Description)
		}
		if f.DueDate != nil {
			due := t.DueDate
			old.DueDate = &due
			t.DueDate = *f.DueDate
			changed.DueDate = f.DueDate
		}

		if err := tx.UpdateTaskFields(ctx, t.ID, f, at); err != nil {
			return nil, err
		}
		t.UpdatedAt = at

		task = t
		return taskEntry(t, project.OrganizationID, model.TaskUpdatedDetails{Old: old, New: changed}), nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// TransitionStatus moves a task to status. Done is terminal; entering it
// stamps the completion time in the same write.
func (s *Service) TransitionStatus(ctx context.Context, taskID string, status model.Status, actor string) (*model.Task, error) {
	var task *model.Task
	err := s.mutate(ctx, actor, func(tx *db.Tx, at time.Time) (*model.AuditEntry, error) {
		t, err := tx.GetTaskForUpdate(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if t.Status.IsTerminal() {
			return nil, apperr.Invariant(MsgTaskCompleted)
		}
		if !status.IsValid() {
			return nil, apperr.BadRequest("invalid status: %s", status)
		}
		project, err := tx.GetProject(ctx, t.ProjectID)
		if err != nil {
			return nil, err
		}

		var completedAt *time.Time
		if status == model.StatusDone {
			completedAt = &at
		}
		if err := tx.SetTaskStatus(ctx, t.ID, status, completedAt, at); err != nil {
			return nil, err
		}

		old := t.Status
		t.Status = status
		t.CompletedAt = completedAt
		t.UpdatedAt = at

		task = t
		return taskEntry(t, project.OrganizationID, model.TaskStatusUpdatedDetails{
			OldStatus: old,
			NewStatus: status,
		}), nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Reassign sets or clears (nil) a task's assignee. Keeping the current
// assignee succeeds without a membership check and is still audited.
func (s *Service) Reassign(ctx context.Context, taskID string, assigneeID *string, actor string) (*model.Task, error) {
	assignee := nonEmpty(assigneeID)

	var task *model.Task
	err := s.mutate(ctx, actor, func(tx *db.Tx, at time.Time) (*model.AuditEntry, error) {
		t, err := tx.GetTaskForUpdate(ctx, taskID)
		if err != nil {
			return nil, err
		}
		project, err := tx.GetProject(ctx, t.ProjectID)
		if err != nil {
			return nil, err
		}

		unchanged := t.AssigneeID != nil && assignee != nil && *t.AssigneeID == *assignee
		if assignee != nil && !unchanged {
			if err := checkAssignee(ctx, tx, t.ProjectID, *assignee); err != nil {
				return nil, err
			}
		}

		if err := tx.SetTaskAssignee(ctx, t.ID, assignee, at); err != nil {
			return nil, err
		}

		old := t.AssigneeID
		t.AssigneeID = assignee
		t.UpdatedAt = at

		task = t
		return taskEntry(t, project.OrganizationID, model.TaskAssigneeUpdatedDetails{
			OldAssigneeID: old,
			NewAssigneeID: assignee,
		}), nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask soft-deletes a task. Its id stays valid for audit lookups.
func (s *Service) DeleteTask(ctx context.Context, taskID string, actor string) error {
	return s.mutate(ctx, actor, func(tx *db.Tx, at time.Time) (*model.AuditEntry, error) {
		t, err := tx.GetTaskForUpdate(ctx, taskID)
		if err != nil {
			return nil, err
		}
		project, err := tx.GetProject(ctx, t.ProjectID)
		if err != nil {
			return nil, err
		}
		if err := tx.SoftDeleteTask(ctx, t.ID, at); err != nil {
			return nil, err
		}
		return taskEntry(t, project.OrganizationID, model.TaskDeletedDetails{Title: t.Title}), nil
	})
}

// GetTask returns a non-deleted task.
func (s *Service) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	return s.db.GetTask(ctx, taskID)
}
