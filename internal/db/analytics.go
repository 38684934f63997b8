package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/baiirun/taskflow/internal/model"
)

// CompletedTasksPerUser counts Done tasks per assignee in a project. Users
// without Done tasks, and Done tasks without an assignee, are omitted.
func (c conn) CompletedTasksPerUser(ctx context.Context, projectID string) ([]model.UserCompletion, error) {
	rows, err := c.query(ctx, `
		SELECT u.id, u.email, COUNT(t.id)
		FROM tasks t
		JOIN users u ON u.id = t.assignee_id
		WHERE t.project_id = ? AND t.status = ? AND t.deleted_at IS NULL
		GROUP BY u.id, u.email
		ORDER BY COUNT(t.id) DESC, u.email ASC`,
		projectID, string(model.StatusDone))
	if err != nil {
		return nil, fmt.Errorf("failed to count completed tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	completions := []model.UserCompletion{}
	for rows.Next() {
		var uc model.UserCompletion
		if err := rows.Scan(&uc.User.ID, &uc.User.Email, &uc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan completion count: %w", err)
		}
		completions = append(completions, uc)
	}
	return completions, rows.Err()
}

// OverdueTaskCount counts tasks that are not Done and whose due date is
// strictly before now. Overdue is never stored; it is derived on every call.
func (c conn) OverdueTaskCount(ctx context.Context, projectID string, now time.Time) (int, error) {
	var count int
	err := c.queryRow(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE project_id = ? AND status <> ? AND due_date < ? AND deleted_at IS NULL`,
		projectID, string(model.StatusDone), toMillis(now)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count overdue tasks: %w", err)
	}
	return count, nil
}

// AverageCompletionTime is the mean of completed_at - created_at, in
// milliseconds, over Done tasks with a completion timestamp. It is 0 when
// there are none.
func (c conn) AverageCompletionTime(ctx context.Context, projectID string) (float64, error) {
	var avg sql.NullFloat64
	err := c.queryRow(ctx, `
		SELECT CAST(AVG(completed_at - created_at) AS DOUBLE PRECISION)
		FROM tasks
		WHERE project_id = ? AND status = ? AND completed_at IS NOT NULL AND deleted_at IS NULL`,
		projectID, string(model.StatusDone)).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to average completion time: %w", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

// ProjectAnalytics computes the three figures for a project. The sub-queries
// run without locks and may observe slightly different snapshots.
func (c conn) ProjectAnalytics(ctx context.Context, projectID string, now time.Time) (*model.ProjectAnalytics, error) {
	completed, err := c.CompletedTasksPerUser(ctx, projectID)
	if err != nil {
		return nil, err
	}
	overdue, err := c.OverdueTaskCount(ctx, projectID, now)
	if err != nil {
		return nil, err
	}
	avg, err := c.AverageCompletionTime(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return &model.ProjectAnalytics{
		CompletedTasksPerUser: completed,
		OverdueTaskCount:      overdue,
		AverageCompletionTime: avg,
	}, nil
}
