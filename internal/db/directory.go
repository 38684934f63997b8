package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/baiirun/taskflow/internal/apperr"
	"github.com/baiirun/taskflow/internal/model"
)

// CreateOrganization inserts an organization.
func (c conn) CreateOrganization(ctx context.Context, org *model.Organization) error {
	if strings.TrimSpace(org.Name) == "" {
		return apperr.BadRequest("organization name is required")
	}
	_, err := c.exec(ctx, `
		INSERT INTO organizations (id, name, created_at) VALUES (?, ?, ?)`,
		org.ID, org.Name, toMillis(org.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// GetOrganization retrieves an organization by ID.
func (c conn) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	var (
		org       model.Organization
		createdAt int64
	)
	err := c.queryRow(ctx, `SELECT id, name, created_at FROM organizations WHERE id = ?`, id).
		Scan(&org.ID, &org.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Organization")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	org.CreatedAt = fromMillis(createdAt)
	return &org, nil
}

// CreateUser inserts a user. The email must be unused.
func (c conn) CreateUser(ctx context.Context, u *model.User) error {
	if !u.Role.IsValid() {
		return apperr.BadRequest("invalid role: %s", u.Role)
	}
	if _, err := c.GetOrganization(ctx, u.OrganizationID); err != nil {
		return err
	}
	if _, err := c.FindUserByEmail(ctx, u.Email); err == nil {
		return apperr.BadRequest("user already exists: %s", u.Email)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return c.insertUser(ctx, u)
}

// insertUser writes the row. A concurrent insert of the same email, in any
// case, fails on idx_users_email.
func (c conn) insertUser(ctx context.Context, u *model.User) error {
	_, err := c.exec(ctx, `
		INSERT INTO users (id, organization_id, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.OrganizationID, u.Email, u.PasswordHash, string(u.Role), toMillis(u.CreatedAt))
	if isUniqueViolation(err) {
		return apperr.BadRequest("user already exists: %s", u.Email)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (c conn) GetUser(ctx context.Context, id string) (*model.User, error) {
	return c.scanUser(c.queryRow(ctx, `
		SELECT id, organization_id, email, password_hash, role, created_at
		FROM users WHERE id = ?`, id))
}

// FindUserByEmail retrieves a user by email, case-insensitively.
func (c conn) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return c.scanUser(c.queryRow(ctx, `
		SELECT id, organization_id, email, password_hash, role, created_at
		FROM users WHERE lower(email) = lower(?)`, email))
}

func (c conn) scanUser(row *sql.Row) (*model.User, error) {
	var (
		u         model.User
		createdAt int64
	)
	err := row.Scan(&u.ID, &u.OrganizationID, &u.Email, &u.PasswordHash, &u.Role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("User")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

// UserExists reports whether a user with id exists.
func (c conn) UserExists(ctx context.Context, id string) (bool, error) {
	return c.exists(ctx, `SELECT 1 FROM users WHERE id = ?`, id)
}

// CreateProject inserts a project. Names are unique per organization,
// ignoring case.
func (c conn) CreateProject(ctx context.Context, p *model.Project) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperr.BadRequest("project name is required")
	}
	if _, err := c.GetOrganization(ctx, p.OrganizationID); err != nil {
		return err
	}

	taken, err := c.exists(ctx, `
		SELECT 1 FROM projects WHERE organization_id = ? AND lower(name) = lower(?)`,
		p.OrganizationID, p.Name)
	if err != nil {
		return err
	}
	if taken {
		return apperr.BadRequest("project already exists in this organization")
	}

	_, err = c.exec(ctx, `
		INSERT INTO projects (id, organization_id, name, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.OrganizationID, p.Name, toMillis(p.CreatedAt))
	if isUniqueViolation(err) {
		return apperr.BadRequest("project already exists in this organization")
	}
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID.
func (c conn) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var (
		p         model.Project
		createdAt int64
	)
	err := c.queryRow(ctx, `
		SELECT id, organization_id, name, created_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.OrganizationID, &p.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Project")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}

// ProjectExists reports whether a project with id exists.
func (c conn) ProjectExists(ctx context.Context, id string) (bool, error) {
	return c.exists(ctx, `SELECT 1 FROM projects WHERE id = ?`, id)
}

// ListProjects returns an organization's projects ordered by name.
func (c conn) ListProjects(ctx context.Context, organizationID string) ([]model.Project, error) {
	rows, err := c.query(ctx, `
		SELECT id, organization_id, name, created_at FROM projects
		WHERE organization_id = ?
		ORDER BY lower(name)`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []model.Project
	for rows.Next() {
		var (
			p         model.Project
			createdAt int64
		)
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.CreatedAt = fromMillis(createdAt)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (c conn) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := c.queryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return true, nil
}
