package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/gitguide/gitguide-backend/internal/apperr"
	"github.com/gitguide/gitguide-backend/internal/services"
)

type TaskHandler struct {
	svc services.TaskService
}

func NewTaskHandler(svc services.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// POST /api/projects/:id/tasks/:taskId/complete
// The task segment accepts either the row id or the positional external id.
func (h *TaskHandler) Complete(c *gin.Context) {
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
	taskRef := c.Param("taskId")
	if taskRef == "" {
		RespondError(c, apperr.New(apperr.CodeValidation, "task id is required"))
		return
	}
	result, err := h.svc.Complete(c.Request.Context(), userID, projectID, taskRef)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}

// GET /api/projects/:id/progress
func (h *TaskHandler) Progress(c *gin.Context) {
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
	progress, err := h.svc.GetProgress(c.Request.Context(), userID, projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, progress)
}
