package db

import (
	"context"
	"testing"
	"time"

	"github.com/baiirun/taskflow/internal/model"
)

func TestMembershipExists(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	outsider := createTestUser(t, db, f.org.ID, "carol@example.com")

	tests := []struct {
		name   string
		userID string
		want   bool
	}{
		{"member", f.alice.ID, true},
		{"non-member", outsider.ID, false},
		{"unknown user", "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.MembershipExists(ctx, f.project.ID, tt.userID)
			if err != nil {
				t.Fatalf("failed to check membership: %v", err)
			}
			if got != tt.want {
				t.Errorf("MembershipExists = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddMember_Duplicate(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	var added bool
	err := db.WithTx(ctx, func(tx *Tx) error {
		var err error
		added, err = tx.AddMember(ctx, f.project.ID, f.alice.ID, baseTime)
		return err
	})
	if err != nil {
		t.Fatalf("failed to add member: %v", err)
	}
	if added {
		t.Error("expected duplicate add to report false")
	}
}

func TestRemoveMember(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	// Assigned tasks keep their assignee after the member leaves.
	task := createTestTask(t, db, f.project.ID, "Owned", model.StatusToDo, baseTime)
	err := db.WithTx(ctx, func(tx *Tx) error {
		return tx.SetTaskAssignee(ctx, task.ID, &f.bob.ID, baseTime)
	})
	if err != nil {
		t.Fatalf("failed to assign: %v", err)
	}

	var removed bool
	err = db.WithTx(ctx, func(tx *Tx) error {
		var err error
		removed, err = tx.RemoveMember(ctx, f.project.ID, f.bob.ID)
		return err
	})
	if err != nil {
		t.Fatalf("failed to remove member: %v", err)
	}
	if !removed {
		t.Error("expected remove to report true")
	}

	ok, _ := db.MembershipExists(ctx, f.project.ID, f.bob.ID)
	if ok {
		t.Error("expected bob to no longer be a member")
	}

	got, _ := db.GetTask(ctx, task.ID)
	if got.AssigneeID == nil || *got.AssigneeID != f.bob.ID {
		t.Errorf("assignee = %v, want %q", got.AssigneeID, f.bob.ID)
	}

	err = db.WithTx(ctx, func(tx *Tx) error {
		var err error
		removed, err = tx.RemoveMember(ctx, f.project.ID, f.bob.ID)
		return err
	})
	if err != nil {
		t.Fatalf("failed second remove: %v", err)
	}
	if removed {
		t.Error("expected second remove to report false")
	}
}

func TestLockMembership(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *Tx) error {
		ok, err := tx.LockMembership(ctx, f.project.ID, f.alice.ID)
		if err != nil {
			return err
		}
		if !ok {
			t.Error("expected alice to be a member")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

func TestListMembers(t *testing.T) {
	db := setupTestDB(t)
	f := setupFixture(t, db)

	members, err := db.ListMembers(context.Background(), f.project.ID)
	if err != nil {
		t.Fatalf("failed to list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].User.Email != "alice@example.com" {
		t.Errorf("first member = %q, want alice@example.com", members[0].User.Email)
	}
	if members[1].User.ID != f.bob.ID {
		t.Errorf("second member = %q, want %q", members[1].User.ID, f.bob.ID)
	}
	if !members[1].AddedAt.Equal(baseTime.Add(time.Second)) {
		t.Errorf("added at = %v, want %v", members[1].AddedAt, baseTime.Add(time.Second))
	}
	if members[0].Role != model.RoleMember {
		t.Errorf("role = %q, want %q", members[0].Role, model.RoleMember)
	}
}
