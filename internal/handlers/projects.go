package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"projecthub/internal/middleware"
	"projecthub/internal/models"
	"projecthub/internal/service"
)

type projectResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newProjectResponse(p models.Project) projectResponse {
	return projectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Status:      string(p.Status),
		UserID:      p.UserID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type messageResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	SenderID  string    `json:"sender_id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func newMessageResponse(m models.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		SenderID:  m.SenderID,
		Type:      string(m.Type),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// identity fetches the caller set by middleware.Auth, answering 401 when it
// is missing.
func identity(c *gin.Context) (models.Identity, bool) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return id, ok
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h HandlerSet) CreateProject(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}

	project, err := h.projects.Create(c.Request.Context(), caller, service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"project": newProjectResponse(project)})
}

func (h HandlerSet) ListProjects(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}

	projects, err := h.projects.List(c.Request.Context(), caller)
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		items = append(items, newProjectResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"projects": items})
}

func (h HandlerSet) GetProject(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}

	project, err := h.projects.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": newProjectResponse(project)})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h HandlerSet) UpdateProjectStatus(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}

	project, err := h.projects.UpdateStatus(c.Request.Context(), caller, c.Param("id"), models.ProjectStatus(req.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": newProjectResponse(project)})
}

func (h HandlerSet) CancelProject(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}

	if err := h.projects.Cancel(c.Request.Context(), caller, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "project cancelled"})
}

func (h HandlerSet) ListUpdates(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}

	updates, err := h.projects.Updates(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]messageResponse, 0, len(updates))
	for _, u := range updates {
		items = append(items, newMessageResponse(u))
	}
	c.JSON(http.StatusOK, gin.H{"updates": items})
}

type postUpdateRequest struct {
	Update string `json:"update"`
}

func (h HandlerSet) PostUpdate(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	var req postUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}

	update, err := h.projects.PostUpdate(c.Request.Context(), caller, c.Param("id"), req.Update)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"update": newMessageResponse(update)})
}
