package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/baiirun/taskflow/internal/apperr"
	"github.com/baiirun/taskflow/internal/model"
)

// ListTasks returns non-deleted tasks matching every set filter, newest first.
// Search matches title or description, case-insensitively.
func (c conn) ListTasks(ctx context.Context, f model.TaskFilter, p model.Page) (*model.TaskPage, error) {
	where := ` WHERE t.deleted_at IS NULL`
	args := []any{}

	if f.ProjectID != "" {
		where += ` AND t.project_id = ?`
		args = append(args, f.ProjectID)
	}
	if f.AssigneeID != "" {
		where += ` AND t.assignee_id = ?`
		args = append(args, f.AssigneeID)
	}
	if f.Status != nil {
		if !f.Status.IsValid() {
			return nil, apperr.BadRequest("invalid status: %s", *f.Status)
		}
		where += ` AND t.status = ?`
		args = append(args, string(*f.Status))
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		where += ` AND (lower(t.title) LIKE ? ESCAPE '\' OR lower(COALESCE(t.description, '')) LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern)
	}

	var total int
	if err := c.queryRow(ctx, `SELECT COUNT(*) FROM tasks t`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	rows, err := c.query(ctx, `
		SELECT t.id, t.project_id, t.title, t.description, t.status, t.assignee_id, t.due_date,
		       t.completed_at, t.created_at, t.updated_at, t.deleted_at,
		       p.name, u.email
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
		LEFT JOIN users u ON u.id = t.assignee_id`+where+`
		ORDER BY t.created_at DESC, t.seq DESC
		LIMIT ? OFFSET ?`,
		append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	page := &model.TaskPage{
		Tasks:      []model.TaskView{},
		Total:      total,
		Page:       p.Page,
		TotalPages: p.TotalPages(total),
	}
	for rows.Next() {
		view, err := scanTaskView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		page.Tasks = append(page.Tasks, *view)
	}
	return page, rows.Err()
}

// taskViewRow adapts a row carrying task columns plus project name and
// assignee email to scanTask.
type taskViewRow struct {
	rows        *sql.Rows
	projectName *string
	email       *sql.NullString
}

func (r taskViewRow) Scan(dest ...any) error {
	return r.rows.Scan(append(dest, r.projectName, r.email)...)
}

func scanTaskView(rows *sql.Rows) (*model.TaskView, error) {
	var (
		projectName string
		email       sql.NullString
	)
	task, err := scanTask(taskViewRow{rows: rows, projectName: &projectName, email: &email})
	if err != nil {
		return nil, err
	}

	view := &model.TaskView{
		Task:    *task,
		Project: model.ProjectRef{ID: task.ProjectID, Name: projectName},
	}
	if task.AssigneeID != nil && email.Valid {
		view.Assignee = &model.UserRef{ID: *task.AssigneeID, Email: email.String}
	}
	return view, nil
}

// escapeLike escapes LIKE wildcards so search input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
