package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/baiirun/taskflow/internal/apperr"
	"github.com/baiirun/taskflow/internal/auth"
	"github.com/baiirun/taskflow/internal/db"
	"github.com/baiirun/taskflow/internal/events"
	"github.com/baiirun/taskflow/internal/model"
)

var testNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

// testClock is a settable clock shared by a service under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type env struct {
	svc       *Service
	db        *db.DB
	path      string
	clock     *testClock
	published *events.Recorder
	org       *model.Organization
	project   *model.Project
	alice     *model.User // project creator
	bob       *model.User // added member
	carol     *model.User // not a member
}

func setupTestDB(t *testing.T, path string) *db.DB {
	t.Helper()
	store, err := db.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Init())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestService(t *testing.T, store *db.DB, opts ...Option) (*Service, *testClock, *events.Recorder) {
	t.Helper()
	clock := &testClock{now: testNow}
	rec := &events.Recorder{}
	base := []Option{
		WithClock(clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithPublisher(rec),
		WithPasswordHasher(auth.NewPasswordHasherWithCost(bcrypt.MinCost)),
	}
	return New(store, append(base, opts...)...), clock, rec
}

func setupEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "test.db")
	store := setupTestDB(t, path)
	svc, clock, rec := newTestService(t, store, opts...)
	e := &env{svc: svc, db: store, path: path, clock: clock, published: rec}

	var err error
	e.org, err = svc.CreateOrganization(ctx, "Acme")
	require.NoError(t, err)

	e.alice = e.createUser(t, "alice@example.com")
	e.bob = e.createUser(t, "bob@example.com")
	e.carol = e.createUser(t, "carol@example.com")

	e.project, err = svc.CreateProject(ctx, e.org.ID, "Apollo", e.alice.ID)
	require.NoError(t, err)
	require.NoError(t, svc.AddMember(ctx, e.project.ID, e.bob.ID, e.alice.ID))

	return e
}

func (e *env) createUser(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := e.svc.CreateUser(context.Background(), CreateUserInput{
		OrganizationID: e.org.ID,
		Email:          email,
		Password:       "secret",
	})
	require.NoError(t, err)
	return u
}

func (e *env) createTask(t *testing.T, title string, assignee *string) *model.Task {
	t.Helper()
	task, err := e.svc.CreateTask(context.Background(), CreateTaskInput{
		ProjectID:  e.project.ID,
		Title:      title,
		DueDate:    testNow.Add(7 * 24 * time.Hour),
		AssigneeID: assignee,
	}, e.alice.ID)
	require.NoError(t, err)
	return task
}

// taskAudit returns the audit entries for a task, newest first.
func (e *env) taskAudit(t *testing.T, taskID string) []model.AuditEntry {
	t.Helper()
	page, err := e.svc.ListAudit(context.Background(), model.AuditFilter{TaskID: taskID}, model.Page{Page: 1, Limit: 100})
	require.NoError(t, err)
	return page.Entries
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), "error: %v", err)
}

func TestMutate_RequiresActor(t *testing.T) {
	e := setupEnv(t)

	_, err := e.svc.CreateTask(context.Background(), CreateTaskInput{
		ProjectID: e.project.ID,
		Title:     "No actor",
		DueDate:   testNow,
	}, " ")
	assertKind(t, err, apperr.KindBadRequest)
}

func TestMutate_PublishesAfterCommit(t *testing.T) {
	e := setupEnv(t)
	before := len(e.published.Entries())

	task := e.createTask(t, "Published", nil)

	got := e.published.Entries()
	require.Len(t, got, before+1)
	last := got[len(got)-1]
	assert.Equal(t, model.ActionTaskCreated, last.Action)
	assert.Equal(t, task.ID, last.EntityID)
	assert.Equal(t, e.alice.ID, last.ActorID)
	assert.Equal(t, e.org.ID, last.OrganizationID)
}

func TestMutate_PublishFailureDoesNotFailMutation(t *testing.T) {
	e := setupEnv(t)
	e.published.Err = errors.New("broker down")

	task := e.createTask(t, "Still committed", nil)

	got, err := e.svc.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Still committed", got.Title)
	assert.Len(t, e.taskAudit(t, task.ID), 1)
}

func TestMutate_FailureIsNotPublished(t *testing.T) {
	e := setupEnv(t)
	before := len(e.published.Entries())

	_, err := e.svc.CreateTask(context.Background(), CreateTaskInput{
		ProjectID:  e.project.ID,
		Title:      "Bad assignee",
		DueDate:    testNow,
		AssigneeID: &e.carol.ID,
	}, e.alice.ID)
	assertKind(t, err, apperr.KindInvariant)
	assert.Len(t, e.published.Entries(), before)
}
