package db

import (
	"context"
	"errors"
	"testing"

	"github.com/baiirun/taskflow/internal/apperr"
	"github.com/baiirun/taskflow/internal/model"
)

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)

	u := &model.User{
		ID:             model.NewID(),
		OrganizationID: f.org.ID,
		Email:          "ALICE@example.com",
		PasswordHash:   "x",
		Role:           model.RoleMember,
		CreatedAt:      baseTime,
	}
	err := db.CreateUser(context.Background(), u)
	if !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("err = %v, want bad request", err)
	}
}

func TestInsertUser_EmailUniqueIgnoresCase(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)

	// Skips the lookup in CreateUser, as a racing insert would.
	u := &model.User{
		ID:             model.NewID(),
		OrganizationID: f.org.ID,
		Email:          "Alice@Example.com",
		PasswordHash:   "x",
		Role:           model.RoleMember,
		CreatedAt:      baseTime,
	}
	err := db.insertUser(context.Background(), u)
	if !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("err = %v, want bad request", err)
	}

	u.ID = model.NewID()
	u.Email = "carol@example.com"
	if err := db.insertUser(context.Background(), u); err != nil {
		t.Fatalf("insertUser: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Exec(`INSERT INTO organizations (id, name, created_at) VALUES ('o1', 'A', 0)`)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err = db.Exec(`INSERT INTO organizations (id, name, created_at) VALUES ('o1', 'B', 0)`)
	if !isUniqueViolation(err) {
		t.Errorf("isUniqueViolation(%v) = false, want true", err)
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Error("isUniqueViolation(plain error) = true, want false")
	}
}

func TestCreateUser_InvalidRole(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)

	u := &model.User{
		ID:             model.NewID(),
		OrganizationID: f.org.ID,
		Email:          "dave@example.com",
		Role:           model.Role("Owner"),
	}
	if err := db.CreateUser(context.Background(), u); !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("err = %v, want bad request", err)
	}
}

func TestCreateUser_UnknownOrganization(t *testing.T) {
	db := setupTestDB(t)

	u := &model.User{
		ID:             model.NewID(),
		OrganizationID: "nonexistent",
		Email:          "erin@example.com",
		Role:           model.RoleMember,
	}
	if err := db.CreateUser(context.Background(), u); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestFindUserByEmail(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	got, err := db.FindUserByEmail(ctx, "Bob@Example.com")
	if err != nil {
		t.Fatalf("failed to find user: %v", err)
	}
	if got.ID != f.bob.ID {
		t.Errorf("id = %q, want %q", got.ID, f.bob.ID)
	}

	if _, err := db.FindUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestCreateProject_DuplicateNameIgnoresCase(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	dup := &model.Project{ID: model.NewID(), OrganizationID: f.org.ID, Name: "APOLLO", CreatedAt: baseTime}
	if err := db.CreateProject(ctx, dup); !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("err = %v, want bad request", err)
	}

	// Same name in another organization is fine.
	other := &model.Organization{ID: model.NewID(), Name: "Globex", CreatedAt: baseTime}
	if err := db.CreateOrganization(ctx, other); err != nil {
		t.Fatalf("failed to create organization: %v", err)
	}
	p := &model.Project{ID: model.NewID(), OrganizationID: other.ID, Name: "Apollo", CreatedAt: baseTime}
	if err := db.CreateProject(ctx, p); err != nil {
		t.Errorf("failed to create project in other org: %v", err)
	}
}

func TestCreateProject_EmptyName(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)

	p := &model.Project{ID: model.NewID(), OrganizationID: f.org.ID, Name: "  "}
	if err := db.CreateProject(context.Background(), p); !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("err = %v, want bad request", err)
	}
}

func TestGetProject(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	got, err := db.GetProject(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("failed to get project: %v", err)
	}
	if got.Name != "Apollo" {
		t.Errorf("name = %q, want %q", got.Name, "Apollo")
	}

	_, err = db.GetProject(ctx, "nonexistent")
	if got := apperr.Message(err); got != "Project not found" {
		t.Errorf("message = %q, want %q", got, "Project not found")
	}
}

func TestListProjects(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	p := &model.Project{ID: model.NewID(), OrganizationID: f.org.ID, Name: "artemis", CreatedAt: baseTime}
	if err := db.CreateProject(ctx, p); err != nil {
		t.Fatalf("failed to create project: %v", err)
	}

	projects, err := db.ListProjects(ctx, f.org.ID)
	if err != nil {
		t.Fatalf("failed to list projects: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}
	if projects[0].Name != "Apollo" || projects[1].Name != "artemis" {
		t.Errorf("order = [%q %q], want [Apollo artemis]", projects[0].Name, projects[1].Name)
	}
}

func TestExists(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	if ok, err := db.ProjectExists(ctx, f.project.ID); err != nil || !ok {
		t.Errorf("ProjectExists = %v, %v; want true", ok, err)
	}
	if ok, err := db.UserExists(ctx, "nonexistent"); err != nil || ok {
		t.Errorf("UserExists = %v, %v; want false", ok, err)
	}
}
