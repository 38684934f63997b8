package httpapi

import (
	"time"

	"github.com/baiirun/taskflow/internal/events"
	"github.com/baiirun/taskflow/internal/model"
)

type TaskJSON struct {
	ID          string            `json:"id"`
	ProjectID   string            `json:"projectId"`
	Title       string            `json:"title"`
	Description *string           `json:"description"`
	Status      model.Status      `json:"status"`
	AssigneeID  *string           `json:"assigneeId"`
	DueDate     time.Time         `json:"dueDate"`
	CompletedAt *time.Time        `json:"completedAt"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	Assignee    *model.UserRef    `json:"assignee,omitempty"`
	Project     *model.ProjectRef `json:"project,omitempty"`
}

type TaskPageJSON struct {
	Tasks      []TaskJSON `json:"tasks"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	TotalPages int        `json:"totalPages"`
}

type ActivityPageJSON struct {
	Logs       []events.Message `json:"logs"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	TotalPages int              `json:"totalPages"`
}

type CompletionJSON struct {
	User  model.UserRef `json:"user"`
	Count int           `json:"count"`
}

type AnalyticsJSON struct {
	CompletedTasksPerUser []CompletionJSON `json:"completedTasksPerUser"`
	OverdueTaskCount      int              `json:"overdueTaskCount"`
	// Milliseconds.
	AverageCompletionTime float64 `json:"averageCompletionTime"`
}

type MemberJSON struct {
	User    model.UserRef `json:"user"`
	Role    model.Role    `json:"role"`
	AddedAt time.Time     `json:"addedAt"`
}

type LoginJSON struct {
	Token     string   `json:"token"`
	ExpiresIn int64    `json:"expiresIn"` // seconds
	User      UserJSON `json:"user"`
}

type UserJSON struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Role           model.Role `json:"role"`
	OrganizationID string     `json:"organizationId"`
}

func NewTaskJSON(t *model.Task) TaskJSON {
	return TaskJSON{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		AssigneeID:  t.AssigneeID,
		DueDate:     t.DueDate,
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func newTaskViewJSON(v *model.TaskView) TaskJSON {
	out := NewTaskJSON(&v.Task)
	out.Assignee = v.Assignee
	project := v.Project
	out.Project = &project
	return out
}

func NewTaskPageJSON(p *model.TaskPage) TaskPageJSON {
	tasks := make([]TaskJSON, 0, len(p.Tasks))
	for i := range p.Tasks {
		tasks = append(tasks, newTaskViewJSON(&p.Tasks[i]))
	}
	return TaskPageJSON{Tasks: tasks, Total: p.Total, Page: p.Page, TotalPages: p.TotalPages}
}

func NewActivityPageJSON(p *model.AuditPage) ActivityPageJSON {
	logs := make([]events.Message, 0, len(p.Entries))
	for _, e := range p.Entries {
		logs = append(logs, events.NewMessage(e))
	}
	return ActivityPageJSON{Logs: logs, Total: p.Total, Page: p.Page, TotalPages: p.TotalPages}
}

func NewAnalyticsJSON(a *model.ProjectAnalytics) AnalyticsJSON {
	rows := make([]CompletionJSON, 0, len(a.CompletedTasksPerUser))
	for _, r := range a.CompletedTasksPerUser {
		rows = append(rows, CompletionJSON{User: r.User, Count: r.Count})
	}
	return AnalyticsJSON{
		CompletedTasksPerUser: rows,
		OverdueTaskCount:      a.OverdueTaskCount,
		AverageCompletionTime: a.AverageCompletionTime,
	}
}

func NewMembersJSON(members []model.Member) []MemberJSON {
	out := make([]MemberJSON, 0, len(members))
	for _, m := range members {
		out = append(out, MemberJSON{User: m.User, Role: m.Role, AddedAt: m.AddedAt})
	}
	return out
}

func NewUserJSON(u *model.User) UserJSON {
	return UserJSON{ID: u.ID, Email: u.Email, Role: u.Role, OrganizationID: u.OrganizationID}
}
