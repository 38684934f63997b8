package model

// Page describes offset pagination. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Offset returns (page-1)*limit. Callers reject pages whose offset would
// overflow an int.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages returns ceil(total/limit).
func (p Page) TotalPages(total int) int {
	if p.Limit <= 0 {
		return 0
	}
	n := total / p.Limit
	if total%p.Limit != 0 {
		n++
	}
	return n
}

// TaskFilter narrows a task listing. Empty fields are ignored; set fields are
// combined with AND.
type TaskFilter struct {
	ProjectID  string
	AssigneeID string
	Status     *Status
	Search     string
}

type TaskPage struct {
	Tasks      []TaskView
	Total      int
	Page       int
	TotalPages int
}

// AuditFilter selects audit entries. TaskID and ProjectID imply the entity
// type and are mutually exclusive; UserID filters by actor.
type AuditFilter struct {
	TaskID    string
	ProjectID string
	UserID    string
}

type AuditPage struct {
	Entries    []AuditEntry
	Total      int
	Page       int
	TotalPages int
}

// UserCompletion is one row of completedTasksPerUser.
type UserCompletion struct {
	User  UserRef
	Count int
}

// ProjectAnalytics holds the lifecycle figures for one project.
// AverageCompletionTime is in milliseconds.
type ProjectAnalytics struct {
	CompletedTasksPerUser []UserCompletion
	OverdueTaskCount      int
	AverageCompletionTime float64
}
