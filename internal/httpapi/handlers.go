package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/baiirun/taskflow/internal/auth"
	"github.com/baiirun/taskflow/internal/lifecycle"
	"github.com/baiirun/taskflow/internal/model"
)

const (
	defaultTaskLimit     = 10
	defaultActivityLimit = 20
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createTaskRequest struct {
	ProjectID   string     `json:"projectId"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	AssigneeID  *string    `json:"assigneeId"`
	Status      string     `json:"status"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type assigneeRequest struct {
	AssigneeID *string `json:"assigneeId"`
}

type memberRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type listTasksQuery struct {
	ProjectID  string `form:"projectId"`
	AssigneeID string `form:"assigneeId"`
	Status     string `form:"status"`
	Search     string `form:"search"`
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
}

type activityQuery struct {
	TaskID    string `form:"taskId"`
	ProjectID string `form:"projectId"`
	UserID    string `form:"userId"`
	Page      int    `form:"page"`
	Limit     int    `form:"limit"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := s.svc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	token, err := s.tokens.Issue(auth.Identity{
		UserID:         user.ID,
		Email:          user.Email,
		OrganizationID: user.OrganizationID,
		Role:           string(user.Role),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginJSON{
		Token:     token,
		ExpiresIn: int64(s.tokens.TTL().Seconds()),
		User:      NewUserJSON(user),
	})
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	in := lifecycle.CreateTaskInput{
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
	}
	if req.DueDate != nil {
		in.DueDate = *req.DueDate
	}
	if req.Status != "" {
		in.Status = model.ParseStatus(req.Status)
	}

	task, err := s.svc.CreateTask(c.Request.Context(), in, actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewTaskJSON(task))
}

func (s *Server) handleListTasks(c *gin.Context) {
	q := listTasksQuery{Page: 1, Limit: defaultTaskLimit}
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	filter := model.TaskFilter{
		ProjectID:  q.ProjectID,
		AssigneeID: q.AssigneeID,
		Search:     strings.TrimSpace(q.Search),
	}
	if q.Status != "" {
		status := model.ParseStatus(q.Status)
		if !status.IsValid() {
			abortJSON(c, http.StatusBadRequest, "invalid status: "+q.Status)
			return
		}
		filter.Status = &status
	}

	page, err := s.svc.ListTasks(c.Request.Context(), filter, model.Page{Page: q.Page, Limit: q.Limit})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewTaskPageJSON(page))
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.svc.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewTaskJSON(task))
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var fields model.TaskFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, err)
		return
	}

	task, err := s.svc.UpdateTaskFields(c.Request.Context(), c.Param("id"), fields, actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewTaskJSON(task))
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.svc.DeleteTask(c.Request.Context(), c.Param("id"), actor(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleTransitionStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := s.svc.TransitionStatus(c.Request.Context(), c.Param("id"), model.ParseStatus(req.Status), actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewTaskJSON(task))
}

func (s *Server) handleReassign(c *gin.Context) {
	var req assigneeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := s.svc.Reassign(c.Request.Context(), c.Param("id"), req.AssigneeID, actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewTaskJSON(task))
}

func (s *Server) handleProjectAnalytics(c *gin.Context) {
	analytics, err := s.svc.ProjectAnalytics(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewAnalyticsJSON(analytics))
}

func (s *Server) handleListMembers(c *gin.Context) {
	members, err := s.svc.ListMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewMembersJSON(members))
}

func (s *Server) handleAddMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	projectID := c.Param("id")
	if err := s.svc.AddMember(c.Request.Context(), projectID, req.UserID, actor(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"projectId": projectID, "userId": req.UserID})
}

func (s *Server) handleRemoveMember(c *gin.Context) {
	if err := s.svc.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("userId"), actor(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListActivity(c *gin.Context) {
	q := activityQuery{Page: 1, Limit: defaultActivityLimit}
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	page, err := s.svc.ListAudit(c.Request.Context(), model.AuditFilter{
		TaskID:    q.TaskID,
		ProjectID: q.ProjectID,
		UserID:    q.UserID,
	}, model.Page{Page: q.Page, Limit: q.Limit})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewActivityPageJSON(page))
}
