package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/baiirun/taskflow/internal/apperr"
	"github.com/baiirun/taskflow/internal/model"
)

const taskColumns = `id, project_id, title, description, status, assignee_id, due_date, completed_at, created_at, updated_at, deleted_at`

// GetTask retrieves a non-deleted task by ID.
func (c conn) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return c.getTask(ctx, id, false)
}

// GetTaskForUpdate is GetTask as a locking read: concurrent mutations of the
// same task wait until this transaction ends.
func (tx *Tx) GetTaskForUpdate(ctx context.Context, id string) (*model.Task, error) {
	return tx.getTask(ctx, id, true)
}

func (c conn) getTask(ctx context.Context, id string, lock bool) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ? AND deleted_at IS NULL`
	if lock {
		query += c.forUpdate()
	}

	task, err := scanTask(c.queryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Task")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// InsertTask creates a task row.
func (tx *Tx) InsertTask(ctx context.Context, t *model.Task) error {
	if !t.Status.IsValid() {
		return apperr.BadRequest("invalid status: %s", t.Status)
	}

	_, err := tx.exec(ctx, `
		INSERT INTO tasks (id, project_id, title, description, status, assignee_id, due_date, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Title, t.Description, string(t.Status), t.AssigneeID,
		toMillis(t.DueDate), nullMillis(t.CompletedAt), toMillis(t.CreatedAt), toMillis(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// UpdateTaskFields applies the set fields of f. An empty description clears it.
func (tx *Tx) UpdateTaskFields(ctx context.Context, id string, f model.TaskFields, at time.Time) error {
	query := `UPDATE tasks SET updated_at = ?`
	args := []any{toMillis(at)}

	if f.Title != nil {
		query += `, title = ?`
		args = append(args, *f.Title)
	}
	if f.Description != nil {
		query += `, description = ?`
		if *f.Description == "" {
			args = append(args, nil)
		} else {
			args = append(args, *f.Description)
		}
	}
	if f.DueDate != nil {
		query += `, due_date = ?`
		args = append(args, toMillis(*f.DueDate))
	}
	query += ` WHERE id = ? AND deleted_at IS NULL`
	args = append(args, id)

	return tx.execOne(ctx, "update task", query, args...)
}

// SetTaskStatus writes status and completion timestamp together.
func (tx *Tx) SetTaskStatus(ctx context.Context, id string, status model.Status, completedAt *time.Time, at time.Time) error {
	if !status.IsValid() {
		return apperr.BadRequest("invalid status: %s", status)
	}
	return tx.execOne(ctx, "update status", `
		UPDATE tasks SET status = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		string(status), nullMillis(completedAt), toMillis(at), id)
}

// SetTaskAssignee sets or clears (nil) the assignee.
func (tx *Tx) SetTaskAssignee(ctx context.Context, id string, assigneeID *string, at time.Time) error {
	return tx.execOne(ctx, "update assignee", `
		UPDATE tasks SET assignee_id = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		assigneeID, toMillis(at), id)
}

// SoftDeleteTask hides a task from default reads. The row is kept so audit
// entries can still be correlated with it.
func (tx *Tx) SoftDeleteTask(ctx context.Context, id string, at time.Time) error {
	return tx.execOne(ctx, "delete task", `
		UPDATE tasks SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		toMillis(at), toMillis(at), id)
}

// execOne runs a single-row update and reports a missing task as NotFound.
func (tx *Tx) execOne(ctx context.Context, what, query string, args ...any) error {
	result, err := tx.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFound("Task")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*model.Task, error) {
	var (
		t                             model.Task
		description, assigneeID       sql.NullString
		dueDate, createdAt, updatedAt int64
		completedAt, deletedAt        sql.NullInt64
	)
	if err := row.Scan(
		&t.ID, &t.ProjectID, &t.Title, &description, &t.Status, &assigneeID,
		&dueDate, &completedAt, &createdAt, &updatedAt, &deletedAt,
	); err != nil {
		return nil, err
	}

	t.Description = stringPtr(description)
	t.AssigneeID = stringPtr(assigneeID)
	t.DueDate = fromMillis(dueDate)
	t.CompletedAt = timePtr(completedAt)
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	t.DeletedAt = timePtr(deletedAt)
	return &t, nil
}
