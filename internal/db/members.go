package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/baiirun/taskflow/internal/model"
)

// MembershipExists reports whether userID is a member of projectID. It is a
// plain read; use Tx.LockMembership when the answer guards a write.
func (c conn) MembershipExists(ctx context.Context, projectID, userID string) (bool, error) {
	return c.membership(ctx, projectID, userID, false)
}

// LockMembership is MembershipExists as a locking read. A concurrent
// RemoveMember of the same tuple cannot commit until this transaction ends.
func (tx *Tx) LockMembership(ctx context.Context, projectID, userID string) (bool, error) {
	return tx.membership(ctx, projectID, userID, true)
}

func (c conn) membership(ctx context.Context, projectID, userID string, lock bool) (bool, error) {
	query := `SELECT 1 FROM project_members WHERE project_id = ? AND user_id = ?`
	if lock {
		query += c.forUpdate()
	}

	var one int
	err := c.queryRow(ctx, query, projectID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return true, nil
}

// AddMember inserts the (project, user) tuple. It reports false when the
// tuple already existed.
func (tx *Tx) AddMember(ctx context.Context, projectID, userID string, at time.Time) (bool, error) {
	result, err := tx.exec(ctx, `
		INSERT INTO project_members (project_id, user_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (project_id, user_id) DO NOTHING`,
		projectID, userID, toMillis(at))
	if err != nil {
		return false, fmt.Errorf("failed to add member: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// RemoveMember deletes the (project, user) tuple. Tasks already assigned to
// the user keep their assignee. It reports false when there was no tuple.
func (tx *Tx) RemoveMember(ctx context.Context, projectID, userID string) (bool, error) {
	result, err := tx.exec(ctx, `
		DELETE FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove member: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ListMembers returns a project's members ordered by join time.
func (c conn) ListMembers(ctx context.Context, projectID string) ([]model.Member, error) {
	rows, err := c.query(ctx, `
		SELECT pm.project_id, u.id, u.email, u.role, pm.created_at
		FROM project_members pm
		JOIN users u ON u.id = pm.user_id
		WHERE pm.project_id = ?
		ORDER BY pm.created_at ASC, u.email ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var members []model.Member
	for rows.Next() {
		var (
			m       model.Member
			addedAt int64
		)
		if err := rows.Scan(&m.ProjectID, &m.User.ID, &m.User.Email, &m.Role, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.AddedAt = fromMillis(addedAt)
		members = append(members, m)
	}
	return members, rows.Err()
}
