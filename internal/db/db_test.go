package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/baiirun/taskflow/internal/apperr"
	"github.com/baiirun/taskflow/internal/model"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}

	if err := db.Init(); err != nil {
		t.Fatalf("failed to init db: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fixture is an organization with one project and two users, both members.
type fixture struct {
	org     *model.Organization
	project *model.Project
	alice   *model.User
	bob     *model.User
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setupFixture(t *testing.T, db *DB) fixture {
	t.Helper()
	ctx := context.Background()

	f := fixture{
		org: &model.Organization{ID: model.NewID(), Name: "Acme", CreatedAt: baseTime},
	}
	if err := db.CreateOrganization(ctx, f.org); err != nil {
		t.Fatalf("failed to create organization: %v", err)
	}

	f.project = &model.Project{ID: model.NewID(), OrganizationID: f.org.ID, Name: "Apollo", CreatedAt: baseTime}
	if err := db.CreateProject(ctx, f.project); err != nil {
		t.Fatalf("failed to create project: %v", err)
	}

	f.alice = createTestUser(t, db, f.org.ID, "alice@example.com")
	f.bob = createTestUser(t, db, f.org.ID, "bob@example.com")

	err := db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.AddMember(ctx, f.project.ID, f.alice.ID, baseTime); err != nil {
			return err
		}
		_, err := tx.AddMember(ctx, f.project.ID, f.bob.ID, baseTime.Add(time.Second))
		return err
	})
	if err != nil {
		t.Fatalf("failed to add members: %v", err)
	}
	return f
}

func createTestUser(t *testing.T, db *DB, orgID, email string) *model.User {
	t.Helper()
	u := &model.User{
		ID:             model.NewID(),
		OrganizationID: orgID,
		Email:          email,
		PasswordHash:   "x",
		Role:           model.RoleMember,
		CreatedAt:      baseTime,
	}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return u
}

func createTestTask(t *testing.T, db *DB, projectID, title string, status model.Status, created time.Time) *model.Task {
	t.Helper()
	task := &model.Task{
		ID:        model.NewID(),
		ProjectID: projectID,
		Title:     title,
		Status:    status,
		DueDate:   created.Add(72 * time.Hour),
		CreatedAt: created,
		UpdatedAt: created,
	}
	if status == model.StatusDone {
		task.CompletedAt = &created
	}
	err := db.WithTx(context.Background(), func(tx *Tx) error {
		return tx.InsertTask(context.Background(), task)
	})
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	return task
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	// Should create parent directories
	if _, err := os.Stat(filepath.Dir(path)); os.IsNotExist(err) {
		t.Error("expected directory to be created")
	}
	if db.Dialect() != DriverSQLite {
		t.Errorf("dialect = %q, want %q", db.Dialect(), DriverSQLite)
	}
}

func TestOpenConfig_UnknownDriver(t *testing.T) {
	_, err := OpenConfig(Config{Driver: "oracle"})
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestDefaultPath(t *testing.T) {
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("failed to get default path: %v", err)
	}

	if !filepath.IsAbs(path) {
		t.Errorf("expected absolute path, got %q", path)
	}

	if !strings.Contains(path, filepath.Join(".taskflow", "taskflow.db")) {
		t.Errorf("expected path to contain .taskflow/taskflow.db, got %q", path)
	}
}

func TestInit_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Init(); err != nil {
		t.Fatalf("second init failed: %v", err)
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		driver Driver
		query  string
		want   string
	}{
		{DriverSQLite, "SELECT 1 WHERE a = ? AND b = ?", "SELECT 1 WHERE a = ? AND b = ?"},
		{DriverPostgres, "SELECT 1 WHERE a = ? AND b = ?", "SELECT 1 WHERE a = $1 AND b = $2"},
		{DriverPostgres, "SELECT 1", "SELECT 1"},
	}

	for _, tt := range tests {
		c := conn{driver: tt.driver}
		if got := c.rebind(tt.query); got != tt.want {
			t.Errorf("rebind(%q) on %s = %q, want %q", tt.query, tt.driver, got, tt.want)
		}
	}
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	task := &model.Task{
		ID:        model.NewID(),
		ProjectID: f.project.ID,
		Title:     "Rolled back",
		Status:    model.StatusToDo,
		DueDate:   baseTime,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	boom := errors.New("boom")
	err := db.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertTask(ctx, task); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	if _, err := db.GetTask(ctx, task.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected rolled back task to be absent, got %v", err)
	}
}

func TestWithTx_ConnectionReusableAfterRollback(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = db.WithTx(ctx, func(tx *Tx) error { return errors.New("fail") })
	}

	createTestTask(t, db, f.project.ID, "After rollbacks", model.StatusToDo, baseTime)
}

func TestClassify(t *testing.T) {
	if err := classify(nil); err != nil {
		t.Errorf("classify(nil) = %v, want nil", err)
	}

	nf := apperr.NotFound("Task")
	if got := classify(nf); got != nf {
		t.Errorf("classified error was rewrapped: %v", got)
	}

	plain := errors.New("plain")
	if got := classify(plain); apperr.KindOf(got) != apperr.KindInternal {
		t.Errorf("plain error kind = %v, want internal", apperr.KindOf(got))
	}
}
