package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/gitguide/gitguide-backend/internal/services"
)

type ProcessingHandler struct {
	svc services.ProcessingService
}

func NewProcessingHandler(svc services.ProcessingService) *ProcessingHandler {
	return &ProcessingHandler{svc: svc}
}

// POST /api/projects/:id/process
func (h *ProcessingHandler) Trigger(c *gin.Context) {
	h.enqueue(c, false)
}

// POST /api/projects/:id/regenerate
func (h *ProcessingHandler) Regenerate(c *gin.Context) {
	h.enqueue(c, true)
}

func (h *ProcessingHandler) enqueue(c *gin.Context, force bool) {
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
	run, err := h.svc.Enqueue(c.Request.Context(), userID, projectID, force)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"run": run})
}

// GET /api/projects/:id/status
func (h *ProcessingHandler) Status(c *gin.Context) {
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
	status, err := h.svc.Status(c.Request.Context(), userID, projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, status)
}
