package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"projecthub/internal/middleware"
	"projecthub/internal/service"
)

type projectWithOwnerResponse struct {
	ID          string    `json:"project_id"`
	Name        string    `json:"project_name"`
	Description string    `json:"project_description"`
	Status      string    `json:"project_status"`
	CreatedAt   time.Time `json:"project_created_at"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	UserEmail   string    `json:"user_email"`
}

// ListAllProjects is the provider overview of every project with its owner.
func (h HandlerSet) ListAllProjects(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var page service.Page
	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 {
			page.PerPage = v
		}
	}
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page.Page = v
		}
	}

	projects, page, err := h.projects.ListAll(c.Request.Context(), identity, page)
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]projectWithOwnerResponse, 0, len(projects))
	for _, p := range projects {
		items = append(items, projectWithOwnerResponse{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Status:      string(p.Status),
			CreatedAt:   p.CreatedAt,
			UserID:      p.UserID,
			UserName:    p.OwnerName,
			UserEmail:   p.OwnerEmail,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"items":   items,
		"page":    page.Page,
		"perPage": page.PerPage,
	})
}
