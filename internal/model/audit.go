package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type Action string

const (
	ActionTaskCreated         Action = "TASK_CREATED"
	ActionTaskUpdated         Action = "TASK_UPDATED"
	ActionTaskStatusUpdated   Action = "TASK_STATUS_UPDATED"
	ActionTaskAssigneeUpdated Action = "TASK_ASSIGNEE_UPDATED"
	ActionTaskDeleted         Action = "TASK_DELETED"
	ActionMemberAdded         Action = "MEMBER_ADDED"
	ActionMemberRemoved       Action = "MEMBER_REMOVED"
)

type EntityType string

const (
	EntityTask    EntityType = "Task"
	EntityProject EntityType = "Project"
)

// AuditEntry is an immutable record of one committed mutation.
type AuditEntry struct {
	ID             string
	Action         Action
	EntityType     EntityType
	EntityID       string
	ActorID        string
	OrganizationID string
	Details        AuditDetails
	CreatedAt      time.Time
}

// AuditDetails is the per-action payload of an AuditEntry. Each variant
// carries only the fields relevant to its action.
type AuditDetails interface {
	Action() Action
}

type TaskCreatedDetails struct {
	Title      string    `json:"title"`
	Status     Status    `json:"status"`
	AssigneeID *string   `json:"assigneeId"`
	DueDate    time.Time `json:"dueDate"`
}

func (TaskCreatedDetails) Action() Action { return ActionTaskCreated }

// TaskUpdatedDetails records the edited fields before and after the update.
// Fields that were not edited are omitted from both sides.
type TaskUpdatedDetails struct {
	Old TaskFieldChanges `json:"old"`
	New TaskFieldChanges `json:"new"`
}

type TaskFieldChanges struct {
	Title       *string    `json:"title,omitempty"`
	Description NullString `json:"description,omitzero"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// NullString is a nullable string that remembers whether it was set, so an
// edited null description encodes as null rather than disappearing.
type NullString struct {
	Value *string
	Set   bool
}

func SetNullString(v *string) NullString {
	return NullString{Value: v, Set: true}
}

func (n NullString) IsZero() bool { return !n.Set }

func (n NullString) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Value)
}

func (n *NullString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

func (TaskUpdatedDetails) Action() Action { return ActionTaskUpdated }

type TaskStatusUpdatedDetails struct {
	OldStatus Status `json:"oldStatus"`
	NewStatus Status `json:"newStatus"`
}

func (TaskStatusUpdatedDetails) Action() Action { return ActionTaskStatusUpdated }

type TaskAssigneeUpdatedDetails struct {
	OldAssigneeID *string `json:"oldAssigneeId"`
	NewAssigneeID *string `json:"newAssigneeId"`
}

func (TaskAssigneeUpdatedDetails) Action() Action { return ActionTaskAssigneeUpdated }

type TaskDeletedDetails struct {
	Title string `json:"title"`
}

func (TaskDeletedDetails) Action() Action { return ActionTaskDeleted }

type MemberDetails struct {
	UserID  string `json:"userId"`
	Removed bool   `json:"-"`
}

func (d MemberDetails) Action() Action {
	if d.Removed {
		return ActionMemberRemoved
	}
	return ActionMemberAdded
}

// EncodeAuditDetails serializes a details variant for storage.
func EncodeAuditDetails(d AuditDetails) ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s details: %w", d.Action(), err)
	}
	return b, nil
}

// DecodeAuditDetails restores the details variant selected by action.
func DecodeAuditDetails(action Action, raw []byte) (AuditDetails, error) {
	var (
		d   AuditDetails
		err error
	)
	switch action {
	case ActionTaskCreated:
		var v TaskCreatedDetails
		err = json.Unmarshal(raw, &v)
		d = v
	case ActionTaskUpdated:
		var v TaskUpdatedDetails
		err = json.Unmarshal(raw, &v)
		d = v
	case ActionTaskStatusUpdated:
		var v TaskStatusUpdatedDetails
		err = json.Unmarshal(raw, &v)
		d = v
	case ActionTaskAssigneeUpdated:
		var v TaskAssigneeUpdatedDetails
		err = json.Unmarshal(raw, &v)
		d = v
	case ActionTaskDeleted:
		var v TaskDeletedDetails
		err = json.Unmarshal(raw, &v)
		d = v
	case ActionMemberAdded, ActionMemberRemoved:
		var v MemberDetails
		err = json.Unmarshal(raw, &v)
		v.Removed = action == ActionMemberRemoved
		d = v
	default:
		return nil, fmt.Errorf("unknown audit action: %s", action)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s details: %w", action, err)
	}
	return d, nil
}
