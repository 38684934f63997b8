package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusToDo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// IsValid reports whether s is one of the three lifecycle statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusDone
}

// ParseStatus accepts the canonical values plus the display spellings
// ("To Do", "In Progress", "in-progress") and returns the canonical status.
// Unknown input is returned unchanged so callers can report it.
func ParseStatus(s string) Status {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch norm {
	case "todo", "to_do":
		return StatusToDo
	case "in_progress", "inprogress":
		return StatusInProgress
	case "done":
		return StatusDone
	}
	return Status(s)
}

// Task is a unit of work inside a project.
//
// CompletedAt is non-nil exactly when Status is StatusDone. DeletedAt marks a
// soft-deleted task; such tasks are hidden from default reads but their ID stays
// valid for audit lookups.
type Task struct {
	ID          string
	ProjectID   string
	Title       string
	Description *string
	Status      Status
	AssigneeID  *string
	DueDate     time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// TaskFields is a partial set of editable task fields. Nil means "unchanged".
type TaskFields struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// IsEmpty reports whether no field is set.
func (f TaskFields) IsEmpty() bool {
	return f.Title == nil && f.Description == nil && f.DueDate == nil
}

// TaskView is a task plus the minimal projections needed to render it.
type TaskView struct {
	Task
	Assignee *UserRef
	Project  ProjectRef
}

// NewID returns a fresh opaque identifier.
func NewID() string {
	return uuid.NewString()
}
