package db

import (
	"context"
	"fmt"

	"github.com/baiirun/taskflow/internal/apperr"
	"github.com/baiirun/taskflow/internal/model"
)

// AppendAudit writes an audit entry inside tx. Entries are never updated or
// deleted, so there is no counterpart outside a transaction.
func (tx *Tx) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	if e.Details != nil && e.Details.Action() != e.Action {
		return fmt.Errorf("audit details %s do not match action %s", e.Details.Action(), e.Action)
	}
	details, err := model.EncodeAuditDetails(e.Details)
	if err != nil {
		return err
	}

	_, err = tx.exec(ctx, `
		INSERT INTO audit_entries (id, action, entity_type, entity_id, actor_id, organization_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Action), string(e.EntityType), e.EntityID, e.ActorID, e.OrganizationID,
		string(details), toMillis(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListAudit returns audit entries newest first.
func (c conn) ListAudit(ctx context.Context, f model.AuditFilter, p model.Page) (*model.AuditPage, error) {
	if f.TaskID != "" && f.ProjectID != "" {
		return nil, apperr.BadRequest("taskId and projectId filters are mutually exclusive")
	}

	where := ` WHERE 1=1`
	args := []any{}

	if f.TaskID != "" {
		where += ` AND entity_type = ? AND entity_id = ?`
		args = append(args, string(model.EntityTask), f.TaskID)
	}
	if f.ProjectID != "" {
		where += ` AND entity_type = ? AND entity_id = ?`
		args = append(args, string(model.EntityProject), f.ProjectID)
	}
	if f.UserID != "" {
		where += ` AND actor_id = ?`
		args = append(args, f.UserID)
	}

	var total int
	if err := c.queryRow(ctx, `SELECT COUNT(*) FROM audit_entries`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count audit entries: %w", err)
	}

	rows, err := c.query(ctx, `
		SELECT id, action, entity_type, entity_id, actor_id, organization_id, details, created_at
		FROM audit_entries`+where+`
		ORDER BY created_at DESC, seq DESC
		LIMIT ? OFFSET ?`,
		append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	page := &model.AuditPage{
		Entries:    []model.AuditEntry{},
		Total:      total,
		Page:       p.Page,
		TotalPages: p.TotalPages(total),
	}
	for rows.Next() {
		var (
			e         model.AuditEntry
			details   string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &e.EntityID, &e.ActorID,
			&e.OrganizationID, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.CreatedAt = fromMillis(createdAt)
		if e.Details, err = model.DecodeAuditDetails(e.Action, []byte(details)); err != nil {
			return nil, err
		}
		page.Entries = append(page.Entries, e)
	}
	return page, rows.Err()
}
