package model

import "time"

type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleMember Role = "Member"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleMember
}

type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type User struct {
	ID             string
	OrganizationID string
	Email          string
	PasswordHash   string
	Role           Role
	CreatedAt      time.Time
}

type Project struct {
	ID             string
	OrganizationID string
	Name           string
	CreatedAt      time.Time
}

// UserRef is the {id, email} projection of a user.
type UserRef struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ProjectRef is the {id, name} projection of a project.
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Member is one row of a project's membership.
type Member struct {
	ProjectID string
	User      UserRef
	Role      Role
	AddedAt   time.Time
}
