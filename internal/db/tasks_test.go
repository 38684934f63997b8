package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/baiirun/taskflow/internal/apperr"
	"github.com/baiirun/taskflow/internal/model"
)

func TestInsertTask(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	desc := "Write the launch checklist"
	task := &model.Task{
		ID:          model.NewID(),
		ProjectID:   f.project.ID,
		Title:       "Checklist",
		Description: &desc,
		Status:      model.StatusToDo,
		AssigneeID:  &f.alice.ID,
		DueDate:     baseTime.Add(24 * time.Hour),
		CreatedAt:   baseTime,
		UpdatedAt:   baseTime,
	}
	err := db.WithTx(ctx, func(tx *Tx) error { return tx.InsertTask(ctx, task) })
	if err != nil {
		t.Fatalf("failed to insert task: %v", err)
	}

	got, err := db.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("failed to get task: %v", err)
	}
	if got.Title != task.Title {
		t.Errorf("title = %q, want %q", got.Title, task.Title)
	}
	if got.Description == nil || *got.Description != desc {
		t.Errorf("description = %v, want %q", got.Description, desc)
	}
	if got.AssigneeID == nil || *got.AssigneeID != f.alice.ID {
		t.Errorf("assignee = %v, want %q", got.AssigneeID, f.alice.ID)
	}
	if !got.DueDate.Equal(task.DueDate) {
		t.Errorf("due date = %v, want %v", got.DueDate, task.DueDate)
	}
	if got.CompletedAt != nil {
		t.Errorf("completed at = %v, want nil", got.CompletedAt)
	}
	if got.DeletedAt != nil {
		t.Errorf("deleted at = %v, want nil", got.DeletedAt)
	}
}

func TestInsertTask_InvalidStatus(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	task := &model.Task{
		ID:        model.NewID(),
		ProjectID: f.project.ID,
		Title:     "Test",
		Status:    model.Status("invalid"),
	}
	err := db.WithTx(ctx, func(tx *Tx) error { return tx.InsertTask(ctx, task) })
	if !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("err = %v, want bad request", err)
	}
}

func TestInsertTask_UnknownProject(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &model.Task{
		ID:        model.NewID(),
		ProjectID: "nonexistent",
		Title:     "Orphan",
		Status:    model.StatusToDo,
		DueDate:   baseTime,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	err := db.WithTx(ctx, func(tx *Tx) error { return tx.InsertTask(ctx, task) })
	if err == nil {
		t.Error("expected foreign key error for unknown project")
	}
}

func TestGetTask_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetTask(context.Background(), "nonexistent")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
	if got := apperr.Message(err); got != "Task not found" {
		t.Errorf("message = %q, want %q", got, "Task not found")
	}
}

func TestUpdateTaskFields(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	task := createTestTask(t, db, f.project.ID, "Original", model.StatusToDo, baseTime)

	title := "Renamed"
	due := baseTime.Add(48 * time.Hour)
	at := baseTime.Add(time.Minute)
	err := db.WithTx(ctx, func(tx *Tx) error {
		return tx.UpdateTaskFields(ctx, task.ID, model.TaskFields{Title: &title, DueDate: &due}, at)
	})
	if err != nil {
		t.Fatalf("failed to update fields: %v", err)
	}

	got, _ := db.GetTask(ctx, task.ID)
	if got.Title != title {
		t.Errorf("title = %q, want %q", got.Title, title)
	}
	if !got.DueDate.Equal(due) {
		t.Errorf("due date = %v, want %v", got.DueDate, due)
	}
	if !got.UpdatedAt.Equal(at) {
		t.Errorf("updated at = %v, want %v", got.UpdatedAt, at)
	}
}

func TestUpdateTaskFields_EmptyDescriptionClears(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	task := createTestTask(t, db, f.project.ID, "Test", model.StatusToDo, baseTime)

	desc := "Some text"
	err := db.WithTx(ctx, func(tx *Tx) error {
		return tx.UpdateTaskFields(ctx, task.ID, model.TaskFields{Description: &desc}, baseTime)
	})
	if err != nil {
		t.Fatalf("failed to set description: %v", err)
	}
	got, _ := db.GetTask(ctx, task.ID)
	if got.Description == nil || *got.Description != desc {
		t.Fatalf("description = %v, want %q", got.Description, desc)
	}

	empty := ""
	err = db.WithTx(ctx, func(tx *Tx) error {
		return tx.UpdateTaskFields(ctx, task.ID, model.TaskFields{Description: &empty}, baseTime)
	})
	if err != nil {
		t.Fatalf("failed to clear description: %v", err)
	}
	got, _ = db.GetTask(ctx, task.ID)
	if got.Description != nil {
		t.Errorf("expected description to be nil, got %q", *got.Description)
	}
}

func TestSetTaskStatus(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	task := createTestTask(t, db, f.project.ID, "Test", model.StatusToDo, baseTime)

	done := baseTime.Add(2 * time.Hour)
	err := db.WithTx(ctx, func(tx *Tx) error {
		return tx.SetTaskStatus(ctx, task.ID, model.StatusDone, &done, done)
	})
	if err != nil {
		t.Fatalf("failed to set status: %v", err)
	}

	got, _ := db.GetTask(ctx, task.ID)
	if got.Status != model.StatusDone {
		t.Errorf("status = %q, want %q", got.Status, model.StatusDone)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("completed at = %v, want %v", got.CompletedAt, done)
	}
}

func TestSetTaskStatus_InvalidStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *Tx) error {
		return tx.SetTaskStatus(ctx, "any", model.Status("invalid"), nil, baseTime)
	})
	if !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("err = %v, want bad request", err)
	}
}

func TestSetTaskAssignee(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	task := createTestTask(t, db, f.project.ID, "Test", model.StatusToDo, baseTime)

	err := db.WithTx(ctx, func(tx *Tx) error {
		return tx.SetTaskAssignee(ctx, task.ID, &f.bob.ID, baseTime)
	})
	if err != nil {
		t.Fatalf("failed to assign: %v", err)
	}
	got, _ := db.GetTask(ctx, task.ID)
	if got.AssigneeID == nil || *got.AssigneeID != f.bob.ID {
		t.Errorf("assignee = %v, want %q", got.AssigneeID, f.bob.ID)
	}

	err = db.WithTx(ctx, func(tx *Tx) error {
		return tx.SetTaskAssignee(ctx, task.ID, nil, baseTime)
	})
	if err != nil {
		t.Fatalf("failed to unassign: %v", err)
	}
	got, _ = db.GetTask(ctx, task.ID)
	if got.AssigneeID != nil {
		t.Errorf("expected assignee to be nil, got %q", *got.AssigneeID)
	}
}

func TestSoftDeleteTask(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	task := createTestTask(t, db, f.project.ID, "Doomed", model.StatusToDo, baseTime)

	err := db.WithTx(ctx, func(tx *Tx) error { return tx.SoftDeleteTask(ctx, task.ID, baseTime) })
	if err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	if _, err := db.GetTask(ctx, task.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want not found after delete", err)
	}

	// Deleting again is a miss, and so are further writes.
	err = db.WithTx(ctx, func(tx *Tx) error { return tx.SoftDeleteTask(ctx, task.ID, baseTime) })
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want not found", err)
	}
	err = db.WithTx(ctx, func(tx *Tx) error { return tx.SetTaskAssignee(ctx, task.ID, nil, baseTime) })
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("assign after delete err = %v, want not found", err)
	}
}

func TestGetTaskForUpdate(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	task := createTestTask(t, db, f.project.ID, "Locked", model.StatusInProgress, baseTime)

	err := db.WithTx(ctx, func(tx *Tx) error {
		got, err := tx.GetTaskForUpdate(ctx, task.ID)
		if err != nil {
			return err
		}
		if got.Status != model.StatusInProgress {
			t.Errorf("status = %q, want %q", got.Status, model.StatusInProgress)
		}
		_, err = tx.GetTaskForUpdate(ctx, "nonexistent")
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("err = %v, want not found", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}
