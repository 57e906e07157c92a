package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"projecthub/internal/models"
	"projecthub/internal/service"
)

type feedProject struct {
	Name string `json:"name"`
}

type feedURLs struct {
	ContractURL string `json:"contract_url"`
	PaymentURL  string `json:"payment_url"`
}

type feedItemResponse struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"project_id"`
	Type      string      `json:"type"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	Project   feedProject `json:"project"`
	URLs      *feedURLs   `json:"urls,omitempty"`
}

func (h HandlerSet) ListMessages(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}

	feed, err := h.messages.Feed(c.Request.Context(), caller)
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]feedItemResponse, 0, len(feed))
	for _, item := range feed {
		resp := feedItemResponse{
			ID:        item.ID,
			ProjectID: item.ProjectID,
			Type:      item.Kind,
			Content:   item.Content,
			CreatedAt: item.CreatedAt,
			Project:   feedProject{Name: item.ProjectName},
		}
		if item.Kind == service.FeedKindContract {
			resp.URLs = &feedURLs{ContractURL: item.ContractURL, PaymentURL: item.PaymentURL}
		}
		items = append(items, resp)
	}
	c.JSON(http.StatusOK, gin.H{"messages": items})
}

type postMessageRequest struct {
	ProjectID string `json:"project_id"`
	Content   string `json:"content"`
	Type      string `json:"type"`
}

func (h HandlerSet) PostMessage(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}

	sent, err := h.messages.Post(c.Request.Context(), caller, service.PostMessageInput{
		ProjectID: req.ProjectID,
		Content:   req.Content,
		Type:      models.MessageType(req.Type),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]messageResponse, 0, len(sent))
	for _, m := range sent {
		items = append(items, newMessageResponse(m))
	}
	c.JSON(http.StatusCreated, gin.H{"messages": items})
}
