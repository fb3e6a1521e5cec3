package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gitguide/gitguide-backend/internal/apperr"
	"github.com/gitguide/gitguide-backend/internal/services"
)

type ChatHandler struct {
	svc services.ChatService
}

func NewChatHandler(svc services.ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type chatSendRequest struct {
	Message string `json:"message"`
}

// POST /api/projects/:id/chat
func (h *ChatHandler) Send(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	projectID, err := parseUUIDParam(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	var req chatSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Wrap(apperr.CodeValidation, "invalid request body", err))
		return
	}
	reply, err := h.svc.Send(c.Request.Context(), userID, projectID, req.Message)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, reply)
}

// GET /api/projects/:id/chat/history
func (h *ChatHandler) History(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	projectID, err := parseUUIDParam(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		parsed, pErr := strconv.Atoi(v)
		if pErr != nil || parsed < 0 {
			RespondError(c, apperr.New(apperr.CodeValidation, "invalid limit"))
			return
		}
		limit = parsed
	}
	messages, err := h.svc.History(c.Request.Context(), userID, projectID, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"messages": messages})
}
