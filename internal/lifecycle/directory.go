package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/baiirun/taskflow/internal/apperr"
	"github.com/baiirun/taskflow/internal/db"
	"github.com/baiirun/taskflow/internal/model"
)

func (s *Service) CreateOrganization(ctx context.Context, name string) (*model.Organization, error) {
	org := &model.Organization{
		ID:        model.NewID(),
		Name:      strings.TrimSpace(name),
		CreatedAt: s.clock(),
	}
	if err := s.db.CreateOrganization(ctx, org); err != nil {
		return nil, err
	}
	s.logger.Info("organization created", "organization_id", org.ID)
	return org, nil
}

// CreateUserInput holds the fields of a new user. Role defaults to Member.
type CreateUserInput struct {
	OrganizationID string
	Email          string
	Password       string
	Role           model.Role
}

// CreateUser stores a user with a bcrypt hash of the password.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error) {
	email := strings.TrimSpace(in.Email)
	if !strings.Contains(email, "@") {
		return nil, apperr.BadRequest("invalid email: %s", in.Email)
	}
	if in.Password == "" {
		return nil, apperr.BadRequest("password is required")
	}
	role := in.Role
	if role == "" {
		role = model.RoleMember
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &model.User{
		ID:             model.NewID(),
		OrganizationID: in.OrganizationID,
		Email:          email,
		PasswordHash:   hash,
		Role:           role,
		CreatedAt:      s.clock(),
	}
	err = s.db.WithTx(ctx, func(tx *db.Tx) error {
		return tx.CreateUser(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", "user_id", u.ID, "organization_id", u.OrganizationID)
	return u, nil
}

// Authenticate returns the user whose email and password match.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.db.FindUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// CreateProject stores a project. When the creator exists it becomes the
// first member, and that membership is audited.
func (s *Service) CreateProject(ctx context.Context, organizationID, name, creatorID string) (*model.Project, error) {
	p := &model.Project{
		ID:             model.NewID(),
		OrganizationID: organizationID,
		Name:           strings.TrimSpace(name),
	}

	insert := func(tx *db.Tx, at time.Time) (*model.AuditEntry, error) {
		p.CreatedAt = at
		if err := tx.CreateProject(ctx, p); err != nil {
			return nil, err
		}
		if creatorID == "" {
			return nil, nil
		}
		exists, err := tx.UserExists(ctx, creatorID)
		if err != nil || !exists {
			return nil, err
		}
		if _, err := tx.AddMember(ctx, p.ID, creatorID, at); err != nil {
			return nil, err
		}
		return projectEntry(p, model.MemberDetails{UserID: creatorID}), nil
	}

	var err error
	if creatorID == "" {
		err = s.db.WithTx(ctx, func(tx *db.Tx) error {
			_, err := insert(tx, s.clock())
			return err
		})
	} else {
		err = s.mutate(ctx, creatorID, insert)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("project created", "project_id", p.ID, "organization_id", p.OrganizationID)
	return p, nil
}

// AddMember adds userID to a project. Adding an existing member changes
// nothing and is not audited.
func (s *Service) AddMember(ctx context.Context, projectID, userID, actor string) error {
	return s.mutate(ctx, actor, func(tx *db.Tx, at time.Time) (*model.AuditEntry, error) {
		project, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		exists, err := tx.UserExists(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperr.NotFound("User")
		}

		added, err := tx.AddMember(ctx, project.ID, userID, at)
		if err != nil || !added {
			return nil, err
		}
		return projectEntry(project, model.MemberDetails{UserID: userID}), nil
	})
}

// RemoveMember deletes the membership tuple. Tasks already assigned to the
// user keep their assignee. A removal that races a locked membership read
// waits for that transaction to finish.
func (s *Service) RemoveMember(ctx context.Context, projectID, userID, actor string) error {
	return s.mutate(ctx, actor, func(tx *db.Tx, at time.Time) (*model.AuditEntry, error) {
		project, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return nil, err
		}

		removed, err := tx.RemoveMember(ctx, project.ID, userID)
		if err != nil {
			return nil, err
		}
		if !removed {
			return nil, apperr.NotFound("Membership")
		}
		return projectEntry(project, model.MemberDetails{UserID: userID, Removed: true}), nil
	})
}

// ListMembers returns a project's members.
func (s *Service) ListMembers(ctx context.Context, projectID string) ([]model.Member, error) {
	if _, err := s.db.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	members, err := s.db.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []model.Member{}
	}
	return members, nil
}

// ListProjects returns an organization's projects.
func (s *Service) ListProjects(ctx context.Context, organizationID string) ([]model.Project, error) {
	if _, err := s.db.GetOrganization(ctx, organizationID); err != nil {
		return nil, err
	}
	return s.db.ListProjects(ctx, organizationID)
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.db.GetUser(ctx, userID)
}
